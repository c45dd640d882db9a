package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"codegraph/internal/query/exec"
)

// Style definitions for tabular output.
var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#5A56E0", Dark: "#7571F9"})
	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#C0392B", Dark: "#E74C3C"})
	faintStyle = lipgloss.NewStyle().Faint(true)
)

// renderResult writes a query result as an aligned table, or as JSON when
// jsonOut is set.
func renderResult(w io.Writer, res *exec.Result, jsonOut bool) error {
	if jsonOut {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	if res.Error != "" {
		fmt.Fprintln(w, errorStyle.Render("Error: "+res.Error))
		return nil
	}
	if len(res.Rows) == 0 {
		fmt.Fprintln(w, "No results found.")
	} else {
		renderTable(w, res.Columns, res.Rows)
		fmt.Fprintf(w, "\n%d result(s)", res.RowCount)
		fmt.Fprintln(w, faintStyle.Render(fmt.Sprintf("  [%.2fms]", res.ElapsedMs)))
	}
	if len(res.Summary) > 0 {
		renderSummary(w, res.Summary)
	}
	return nil
}

func renderTable(w io.Writer, columns []string, rows [][]any) {
	widths := make([]int, len(columns))
	for i, c := range columns {
		widths[i] = len(c)
	}
	cells := make([][]string, len(rows))
	for r, row := range rows {
		cells[r] = make([]string, len(columns))
		for i := range columns {
			var s string
			if i < len(row) {
				s = fmt.Sprint(row[i])
			}
			cells[r][i] = s
			if len(s) > widths[i] {
				widths[i] = len(s)
			}
		}
	}

	var header strings.Builder
	for i, c := range columns {
		if i > 0 {
			header.WriteString("  ")
		}
		header.WriteString(fmt.Sprintf("%-*s", widths[i], strings.ToUpper(c)))
	}
	fmt.Fprintln(w, headerStyle.Render(header.String()))
	for _, row := range cells {
		for i, cell := range row {
			if i > 0 {
				fmt.Fprint(w, "  ")
			}
			fmt.Fprintf(w, "%-*s", widths[i], cell)
		}
		fmt.Fprintln(w)
	}
}

func renderSummary(w io.Writer, summary map[string]any) {
	keys := make([]string, 0, len(summary))
	for k := range summary {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Fprintln(w)
	for _, k := range keys {
		v := summary[k]
		if f, ok := v.(float64); ok {
			fmt.Fprintf(w, "  %-18s %.2f\n", k, f)
			continue
		}
		fmt.Fprintf(w, "  %-18s %v\n", k, v)
	}
}
