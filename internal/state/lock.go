package state

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// RunLock is a cross-process lock over a crawl data directory. It
// prevents two crawls of the same root from interleaving state commits.
type RunLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewRunLock creates a lock for the given data directory. The lock
// file is created at <dir>/.crawl.lock.
func NewRunLock(dir string) *RunLock {
	lockPath := filepath.Join(dir, ".crawl.lock")
	return &RunLock{
		path:  lockPath,
		flock: flock.New(lockPath),
	}
}

// TryLock attempts to acquire the lock without blocking.
// Returns false if another crawl currently holds it.
func (l *RunLock) TryLock() (bool, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return false, fmt.Errorf("failed to create lock directory: %w", err)
	}

	acquired, err := l.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("failed to acquire run lock: %w", err)
	}
	if acquired {
		l.locked = true
	}
	return acquired, nil
}

// Unlock releases the lock. Safe to call on an unlocked RunLock.
func (l *RunLock) Unlock() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release run lock: %w", err)
	}
	return nil
}
