package lock

import (
	"context"
	"testing"
)

func TestSQLiteLock_AcquireRelease(t *testing.T) {
	ctx := context.Background()
	l := NewSQLiteLock("test-sqlite-basic")

	acquired, err := l.Acquire(ctx, TimeoutImmediate)
	if err != nil || !acquired {
		t.Fatalf("expected to acquire uncontended lock, got %v %v", acquired, err)
	}
	if !l.IsHeld() {
		t.Error("expected IsHeld() true after acquire")
	}

	released, err := l.Release(ctx)
	if err != nil || !released {
		t.Fatalf("expected to release held lock, got %v %v", released, err)
	}
	if l.IsHeld() {
		t.Error("expected IsHeld() false after release")
	}
}

func TestSQLiteLock_ContendedImmediateFails(t *testing.T) {
	ctx := context.Background()
	name := "test-sqlite-contended"

	holder := NewSQLiteLock(name)
	if acquired, err := holder.Acquire(ctx, TimeoutImmediate); err != nil || !acquired {
		t.Fatalf("setup: failed to acquire holder lock: %v %v", acquired, err)
	}
	defer holder.Release(ctx)

	contender := NewSQLiteLock(name)
	acquired, err := contender.Acquire(ctx, TimeoutImmediate)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if acquired {
		t.Error("expected contended immediate acquire to fail")
	}
}

func TestSQLiteLock_ReleaseWithoutAcquireIsNoop(t *testing.T) {
	ctx := context.Background()
	l := NewSQLiteLock("test-sqlite-noop-release")

	released, err := l.Release(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if released {
		t.Error("expected Release() to report false when lock was never held")
	}
}

func TestSQLiteLock_DoubleAcquireByHolderIsIdempotent(t *testing.T) {
	ctx := context.Background()
	l := NewSQLiteLock("test-sqlite-idempotent")

	if acquired, err := l.Acquire(ctx, TimeoutImmediate); err != nil || !acquired {
		t.Fatalf("first acquire failed: %v %v", acquired, err)
	}
	acquired, err := l.Acquire(ctx, TimeoutImmediate)
	if err != nil || !acquired {
		t.Fatalf("re-acquire by the same holder should succeed: %v %v", acquired, err)
	}
	l.Release(ctx)
}
