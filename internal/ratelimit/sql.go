package ratelimit

import (
	"context"
	"database/sql"
	"sync"
	"time"
)

// SQLStore persists counters in the rate_limit_counters table so they
// survive restarts and are shared by replicas using the same database.
type SQLStore struct {
	db *sql.DB

	// SQLite has one writer. Hits from this process queue here rather than
	// on the busy handler, so contention never spills into the fallback.
	mu sync.Mutex
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) Increment(ctx context.Context, key string, window time.Duration, now time.Time) (Counter, error) {
	nowMs := now.UnixMilli()
	windowMs := window.Milliseconds()

	s.mu.Lock()
	defer s.mu.Unlock()

	// SET expressions see the row as it was before the update.
	var count, startMs int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO rate_limit_counters (scope_key, count, window_start_ms, expires_at_ms)
		VALUES (?, 1, ?, ?)
		ON CONFLICT(scope_key) DO UPDATE SET
			count = CASE
				WHEN excluded.window_start_ms - rate_limit_counters.window_start_ms >= ? THEN 1
				ELSE rate_limit_counters.count + 1
			END,
			window_start_ms = CASE
				WHEN excluded.window_start_ms - rate_limit_counters.window_start_ms >= ? THEN excluded.window_start_ms
				ELSE rate_limit_counters.window_start_ms
			END,
			expires_at_ms = CASE
				WHEN excluded.window_start_ms - rate_limit_counters.window_start_ms >= ? THEN excluded.expires_at_ms
				ELSE rate_limit_counters.expires_at_ms
			END
		RETURNING count, window_start_ms
	`, key, nowMs, nowMs+windowMs, windowMs, windowMs, windowMs).Scan(&count, &startMs)
	if err != nil {
		return Counter{}, err
	}
	return Counter{Count: count, WindowStart: time.UnixMilli(startMs)}, nil
}

func (s *SQLStore) Sweep(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM rate_limit_counters WHERE expires_at_ms <= ?`, now.UnixMilli())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
