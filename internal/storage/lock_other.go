//go:build !unix

package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Lock is a held advisory lock on one report directory. Without flock, a
// marker file created with O_EXCL stands in: two processes still cannot
// interleave writes, they fail fast with ErrLockHeld instead.
type Lock struct {
	path string
}

// Lock acquires the marker-file lock, retrying until the store's
// configured wait elapses.
func (s *Store) Lock(ctx context.Context) (*Lock, error) {
	if err := s.Init(); err != nil {
		return nil, err
	}
	path := filepath.Join(s.dir, LockFile)
	deadline := time.Now().Add(s.lockWait)
	for {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			_, _ = fmt.Fprintf(f, "%d\n", os.Getpid())
			_ = f.Close()
			return &Lock{path: path}, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("create lock marker: %w", err)
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%s: %w", path, ErrLockHeld)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}

// Release removes the marker file.
func (l *Lock) Release() error {
	if l == nil || l.path == "" {
		return nil
	}
	err := os.Remove(l.path)
	l.path = ""
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
