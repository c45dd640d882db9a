package cli

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Build metadata, overridden by ldflags on release builds. When Commit is
// left empty the VCS revision recorded by the Go toolchain is used instead.
var (
	Version   = "dev"
	Commit    = ""
	BuildDate = ""
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("codegraph %s\n", buildVersion())
			fmt.Printf("%s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}

// buildVersion renders "dev", "dev (abc123def012)", or
// "1.2.0 (abc123def012, 2026-08-30)" depending on what build metadata is
// available.
func buildVersion() string {
	commit := Commit
	if commit == "" {
		if info, ok := debug.ReadBuildInfo(); ok {
			for _, s := range info.Settings {
				if s.Key == "vcs.revision" && len(s.Value) >= 12 {
					commit = s.Value[:12]
				}
			}
		}
	}
	var meta string
	switch {
	case commit != "" && BuildDate != "":
		meta = commit + ", " + BuildDate
	case commit != "":
		meta = commit
	case BuildDate != "":
		meta = BuildDate
	}
	if meta == "" {
		return Version
	}
	return Version + " (" + meta + ")"
}
