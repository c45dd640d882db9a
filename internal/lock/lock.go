// Package lock implements the single-writer protocol for the graph store.
// One process at a time may hold the write lock; a second writer fails fast
// with graph.ErrLockConflict instead of blocking.
package lock

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"codegraph/internal/graph"
)

// Info describes the current lock holder. It is written into the lock file
// for visibility; the lock itself is the advisory flock, which the OS
// releases automatically if the holder dies.
type Info struct {
	PID        int       `json:"pid"`
	AcquiredAt time.Time `json:"acquired_at"`
	Hostname   string    `json:"hostname,omitempty"`
}

// WriteLock is an exclusive advisory lock on the store directory.
type WriteLock struct {
	path string
	file *os.File
}

// Acquire takes the write lock for the store at dir. It is non-blocking: when
// another live process holds the lock it returns graph.ErrLockConflict
// wrapped with the holder's details.
func Acquire(dir string) (*WriteLock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	path := filepath.Join(dir, "writer.lock")
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	if err := flockExclusive(f); err != nil {
		holder := readInfo(path)
		_ = f.Close()
		if errors.Is(err, errWouldBlock) {
			if holder != nil {
				return nil, fmt.Errorf("%w (pid %d since %s)",
					graph.ErrLockConflict, holder.PID, holder.AcquiredAt.Format(time.RFC3339))
			}
			return nil, graph.ErrLockConflict
		}
		return nil, fmt.Errorf("flock %s: %w", path, err)
	}

	host, _ := os.Hostname()
	info := Info{PID: os.Getpid(), AcquiredAt: time.Now().UTC(), Hostname: host}
	data, _ := json.Marshal(info)
	if err := f.Truncate(0); err == nil {
		_, _ = f.WriteAt(data, 0)
		_ = f.Sync()
	}

	return &WriteLock{path: path, file: f}, nil
}

// Release drops the lock and removes the holder record. Safe to call once.
func (l *WriteLock) Release() error {
	if l.file == nil {
		return nil
	}
	_ = l.file.Truncate(0)
	err := flockRelease(l.file)
	closeErr := l.file.Close()
	l.file = nil
	if err != nil {
		return fmt.Errorf("unlock %s: %w", l.path, err)
	}
	return closeErr
}

// Holder returns the recorded lock holder for the store at dir, or nil when
// no holder record exists.
func Holder(dir string) *Info {
	return readInfo(filepath.Join(dir, "writer.lock"))
}

func readInfo(path string) *Info {
	data, err := os.ReadFile(path)
	if err != nil || len(data) == 0 {
		return nil
	}
	var info Info
	if json.Unmarshal(data, &info) != nil {
		return nil
	}
	return &info
}
