package cli

import (
	"errors"
	"fmt"
	"time"

	"codegraph/internal/config"
	"codegraph/internal/graph"
	"codegraph/internal/graph/embedded"
)

const (
	lockRetries = 5
	lockBackoff = 200 * time.Millisecond
)

// openStore opens the graph store from config. Writable opens contend for
// the single-writer lock; a held lock is retried with backoff here, at the
// outermost layer, so library code stays retry-free.
func openStore(cfg *config.Config, writable bool) (graph.Store, error) {
	opts := embedded.Options{ReadOnly: !writable}

	var lastErr error
	backoff := lockBackoff
	for attempt := 0; attempt <= lockRetries; attempt++ {
		store, err := embedded.Open(cfg.Store.Path, opts)
		if err == nil {
			return store, nil
		}
		lastErr = err
		if !writable || !errors.Is(err, graph.ErrLockConflict) {
			return nil, fmt.Errorf("open graph store: %w", err)
		}
		time.Sleep(backoff)
		backoff *= 2
	}
	return nil, fmt.Errorf("open graph store: %w", lastErr)
}

// loadConfig loads and validates configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
