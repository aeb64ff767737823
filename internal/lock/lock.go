// Package lock provides store-level advisory locking for Menger, used to
// serialize structural dimension mutations (reparent, merge, prune, rename,
// delete)
// so that two sessions writing to the same PostgreSQL store don't race each
// other's closure-table edits (§5 concurrency model).
//
// The two backends need different mechanics: PostgreSQL exposes a real
// cross-connection advisory lock, while SQLite (single-process
// use per §6) only ever needs to serialize goroutines within this process.
// Both implementations satisfy the same Lock interface so callers in
// internal/backend don't need to know which one they hold.
package lock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrLockTimeout is returned when lock acquisition times out because
// another session is holding the lock.
var ErrLockTimeout = errors.New("lock acquisition timed out")

// Common timeout values for lock acquisition (in seconds).
const (
	// TimeoutImmediate returns immediately if the lock cannot be acquired.
	TimeoutImmediate = 0
	// TimeoutShort suits fast-failing duplicate-writer detection.
	TimeoutShort = 1
	// TimeoutMedium is a reasonable wait for transient conflicts.
	TimeoutMedium = 10
	// TimeoutLong allows extended waiting behind a long-running mutation.
	TimeoutLong = 60
	// TimeoutInfinite waits indefinitely until the lock is acquired.
	TimeoutInfinite = -1
)

// Lock is a named, re-entrant-free advisory lock: Acquire blocks up to
// timeoutSeconds, Release gives it up. Implementations must be safe to
// call Release on a lock that was never successfully acquired (it is then
// a no-op returning false, nil).
type Lock interface {
	Acquire(ctx context.Context, timeoutSeconds int) (bool, error)
	Release(ctx context.Context) (bool, error)
	IsHeld() bool
	Name() string
}

// TryAcquire attempts to acquire l immediately without waiting.
func TryAcquire(ctx context.Context, l Lock) (bool, error) {
	return l.Acquire(ctx, TimeoutImmediate)
}

// AcquireOrFail acquires l with TimeoutShort, returning ErrLockTimeout if
// another session is already holding it.
func AcquireOrFail(ctx context.Context, l Lock) error {
	acquired, err := l.Acquire(ctx, TimeoutShort)
	if err != nil {
		return err
	}
	if !acquired {
		return fmt.Errorf("%w: lock %q is held by another session", ErrLockTimeout, l.Name())
	}
	return nil
}

// WithLock acquires l, runs fn, and releases l even if fn panics.
func WithLock(ctx context.Context, l Lock, timeoutSeconds int, fn func() error) error {
	acquired, err := l.Acquire(ctx, timeoutSeconds)
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !acquired {
		return fmt.Errorf("%w: lock %q is held by another session", ErrLockTimeout, l.Name())
	}

	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, _ = l.Release(releaseCtx)
	}()

	return fn()
}

// WithDimensionLock runs fn while holding the lock scoped to a dimension's
// structural mutations.
func WithDimensionLock(ctx context.Context, newLock func(name string) Lock, dimensionName string, fn func() error) error {
	l := newLock(GenerateDimensionLockName(dimensionName))
	return WithLock(ctx, l, TimeoutMedium, fn)
}

// GenerateDimensionLockName builds the lock name guarding a dimension's
// structural mutations (create_coordinate is excluded — only
// reparent/merge/prune/rename/delete touch enough of the closure table to race).
func GenerateDimensionLockName(dimensionName string) string {
	return "menger:dimension:" + sanitize(dimensionName)
}

// GenerateStoreLockName builds the lock name guarding whole-store
// operations (register, snapshot).
func GenerateStoreLockName(storeName string) string {
	return "menger:store:" + sanitize(storeName)
}

func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			return r
		}
		return '_'
	}, name)
}
