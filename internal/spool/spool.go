// Package spool consumes extractor output. Out-of-process extractors drop one
// JSON batch file per analyzed source file into a spool directory; the
// spooler drains what is already there, then watches for new drops, applies
// each batch to the store, and deletes the consumed file.
package spool

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	ignore "github.com/sabhiram/go-gitignore"

	"codegraph/internal/ingest"
)

// Config holds spooler settings.
type Config struct {
	// Dir is the spool directory extractors write into.
	Dir string
	// Excludes are gitignore-style patterns for spool entries to skip.
	Excludes []string
}

// Spooler drains and watches a spool directory.
type Spooler struct {
	cfg     Config
	applier *ingest.Applier
	matcher *ignore.GitIgnore

	// OnApply, when set, is called after each consumed batch.
	OnApply func(filePath string, applied bool)
	// Logf, when set, receives non-fatal consumption errors.
	Logf func(format string, args ...any)

	mu     sync.Mutex
	closed bool
	fsw    *fsnotify.Watcher
}

func New(cfg Config, applier *ingest.Applier) (*Spooler, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("spool: empty directory")
	}
	return &Spooler{
		cfg:     cfg,
		applier: applier,
		matcher: ignore.CompileIgnoreLines(cfg.Excludes...),
	}, nil
}

func (s *Spooler) logf(format string, args ...any) {
	if s.Logf != nil {
		s.Logf(format, args...)
	}
}

func (s *Spooler) skip(path string) bool {
	if !strings.HasSuffix(path, ".json") {
		return true
	}
	rel, err := filepath.Rel(s.cfg.Dir, path)
	if err != nil {
		rel = filepath.Base(path)
	}
	return s.matcher.MatchesPath(rel)
}

// DrainOnce consumes every batch file currently in the spool directory, in
// name order, and reports how many were consumed. Individual bad batches are
// logged and left in place; they do not stop the drain.
func (s *Spooler) DrainOnce(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(s.cfg.Dir)
	if err != nil {
		return 0, fmt.Errorf("read spool dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	consumed := 0
	for _, name := range names {
		if ctx.Err() != nil {
			return consumed, ctx.Err()
		}
		path := filepath.Join(s.cfg.Dir, name)
		if s.skip(path) {
			continue
		}
		if err := s.consume(ctx, path); err != nil {
			s.logf("spool: %s: %v", name, err)
			continue
		}
		consumed++
	}
	return consumed, nil
}

// consume applies one batch file and deletes it on success.
func (s *Spooler) consume(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // already consumed by an earlier event
		}
		return err
	}
	b, err := ingest.ParseBatch(data)
	if err != nil {
		return err
	}

	applied := false
	if b.Deleted {
		if err := s.applier.Remove(ctx, b.FilePath); err != nil {
			return err
		}
		applied = true
	} else {
		applied, err = s.applier.Apply(ctx, b)
		if err != nil {
			return err
		}
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	if s.OnApply != nil {
		s.OnApply(b.FilePath, applied)
	}
	return nil
}

const debounceWindow = 100 * time.Millisecond

// Run drains the spool, then watches for new drops until the context is
// cancelled. Writes are debounced per path so a half-written batch is not
// consumed mid-write.
func (s *Spooler) Run(ctx context.Context) error {
	if _, err := s.DrainOnce(ctx); err != nil {
		return err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("spool watcher: %w", err)
	}
	s.mu.Lock()
	s.fsw = fsw
	s.mu.Unlock()
	defer s.Close()

	if err := fsw.Add(s.cfg.Dir); err != nil {
		return fmt.Errorf("watch %s: %w", s.cfg.Dir, err)
	}

	timers := make(map[string]*time.Timer)
	var mu sync.Mutex
	ready := make(chan string, 100)

	for {
		select {
		case <-ctx.Done():
			mu.Lock()
			for _, t := range timers {
				t.Stop()
			}
			mu.Unlock()
			return ctx.Err()

		case evt, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !evt.Op.Has(fsnotify.Create) && !evt.Op.Has(fsnotify.Write) {
				continue
			}
			if s.skip(evt.Name) {
				continue
			}
			path := evt.Name
			mu.Lock()
			if t, exists := timers[path]; exists {
				t.Stop()
			}
			timers[path] = time.AfterFunc(debounceWindow, func() {
				mu.Lock()
				delete(timers, path)
				mu.Unlock()
				select {
				case ready <- path:
				case <-ctx.Done():
				}
			})
			mu.Unlock()

		case path := <-ready:
			if err := s.consume(ctx, path); err != nil {
				s.logf("spool: %s: %v", filepath.Base(path), err)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			s.logf("spool: watch error: %v", err)
		}
	}
}

// Close shuts down the watcher.
func (s *Spooler) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.fsw != nil {
		return s.fsw.Close()
	}
	return nil
}
