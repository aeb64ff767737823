package lock

import (
	"context"
	"database/sql"
	"fmt"
	"hash/fnv"
	"time"
)

// PostgresLock is a cross-connection advisory lock backed by PostgreSQL's
// pg_advisory_lock/pg_advisory_unlock, the retargeted analogue of the
// teacher's MySQL GET_LOCK-based AdvisoryLock. PostgreSQL advisory locks
// are keyed by a single bigint, so the lock name is hashed down to one.
type PostgresLock struct {
	db   *sql.DB
	name string
	key  int64
	held bool
}

// NewPostgresLock creates a lock with the given name. The lock is not
// acquired until Acquire is called.
func NewPostgresLock(db *sql.DB, name string) *PostgresLock {
	return &PostgresLock{db: db, name: name, key: lockKey(name)}
}

// lockKey hashes a lock name into the int64 key pg_advisory_lock expects.
func lockKey(name string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	return int64(h.Sum64())
}

// Acquire attempts to obtain the lock, blocking up to timeoutSeconds.
// PostgreSQL's pg_advisory_lock itself blocks indefinitely, so a
// timeoutSeconds > 0 is implemented by polling pg_try_advisory_lock; 0
// means try once and return immediately; a negative value waits on the
// blocking form indefinitely.
func (l *PostgresLock) Acquire(ctx context.Context, timeoutSeconds int) (bool, error) {
	if l.held {
		return true, nil
	}

	if timeoutSeconds < 0 {
		if _, err := l.db.ExecContext(ctx, "SELECT pg_advisory_lock($1)", l.key); err != nil {
			return false, fmt.Errorf("failed to execute pg_advisory_lock: %w", err)
		}
		l.held = true
		return true, nil
	}

	ticker := pollInterval
	elapsed := 0
	for {
		acquired, err := l.tryOnce(ctx)
		if err != nil {
			return false, err
		}
		if acquired {
			l.held = true
			return true, nil
		}
		if elapsed >= timeoutSeconds*1000 {
			return false, nil
		}
		if !sleepMillis(ctx, ticker) {
			return false, ctx.Err()
		}
		elapsed += ticker
	}
}

// pollInterval is the polling granularity, in milliseconds, used while
// waiting for a bounded-timeout acquire.
const pollInterval = 50

func (l *PostgresLock) tryOnce(ctx context.Context) (bool, error) {
	var acquired bool
	row := l.db.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", l.key)
	if err := row.Scan(&acquired); err != nil {
		return false, fmt.Errorf("failed to execute pg_try_advisory_lock: %w", err)
	}
	return acquired, nil
}

// Release releases the lock. Returns false, nil if it was not held.
func (l *PostgresLock) Release(ctx context.Context) (bool, error) {
	if !l.held {
		return false, nil
	}

	var released bool
	row := l.db.QueryRowContext(ctx, "SELECT pg_advisory_unlock($1)", l.key)
	if err := row.Scan(&released); err != nil {
		return false, fmt.Errorf("failed to execute pg_advisory_unlock: %w", err)
	}
	l.held = false
	return released, nil
}

// IsHeld reports whether this instance currently holds the lock.
func (l *PostgresLock) IsHeld() bool { return l.held }

// Name returns the lock's name.
func (l *PostgresLock) Name() string { return l.name }

// sleepMillis sleeps for d milliseconds or until ctx is done, whichever
// comes first. Returns false if ctx was done first.
func sleepMillis(ctx context.Context, d int) bool {
	timer := time.NewTimer(time.Duration(d) * time.Millisecond)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
