// Package lock provides a cross-process exclusive lock on a display
// device using flock(2). The display is single-threaded per instance,
// and two processes committing to one writeback connector would
// interleave their transactions, so every command that touches the
// device runs under Run.
//
// Possession of a Scope is proof the lock is held: it can only be
// obtained inside Run.
package lock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"
)

// Scope represents the region in which the device lock is held.
type Scope interface {
	// Path returns the lock file path.
	Path() string

	// FD returns the raw lock file descriptor (for logging/diagnostics).
	FD() int

	scopeMarker()
}

type scope struct {
	f *os.File
}

func (*scope) scopeMarker() {}

func (s *scope) Path() string { return s.f.Name() }

func (s *scope) FD() int { return int(s.f.Fd()) }

// ErrNotAcquired is returned by TryRun when another process holds the
// lock.
var ErrNotAcquired = errors.New("device lock held by another process")

// Run acquires the lock at lockPath, executes fn, then releases it.
// It polls with LOCK_EX|LOCK_NB and exponential backoff until the lock
// is free or ctx is done.
func Run(ctx context.Context, lockPath string, fn func(context.Context, Scope) error) error {
	f, err := acquire(ctx, lockPath, true)
	if err != nil {
		return err
	}
	defer f.Close()

	return fn(ctx, &scope{f: f})
}

// TryRun is Run without waiting: if the lock is held it returns
// ErrNotAcquired.
func TryRun(ctx context.Context, lockPath string, fn func(context.Context, Scope) error) error {
	f, err := acquire(ctx, lockPath, false)
	if err != nil {
		return err
	}
	defer f.Close()

	return fn(ctx, &scope{f: f})
}

func acquire(ctx context.Context, path string, wait bool) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|unix.O_CLOEXEC, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	backoff := 25 * time.Millisecond
	const maxBackoff = 500 * time.Millisecond

	for {
		err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			return f, nil
		}
		if !errors.Is(err, unix.EWOULDBLOCK) {
			f.Close()
			return nil, fmt.Errorf("flock %s: %w", path, err)
		}
		if !wait {
			f.Close()
			return nil, fmt.Errorf("%s: %w", path, ErrNotAcquired)
		}

		select {
		case <-ctx.Done():
			f.Close()
			return nil, ctx.Err()
		case <-time.After(backoff):
		}

		backoff = min(backoff*2, maxBackoff)
	}
}
