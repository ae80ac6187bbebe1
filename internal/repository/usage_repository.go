package repository

import (
	"context"
	"database/sql"
	"time"
)

// UsageRepository runs the aggregate queries quota checks are computed from.
// Nothing here is cached; every call reads live rows.
type UsageRepository struct {
	db *sql.DB
}

func NewUsageRepository(db *sql.DB) *UsageRepository {
	return &UsageRepository{db: db}
}

func (r *UsageRepository) CountFiles(ctx context.Context, ownerID string) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM files WHERE owner_id = ?`, ownerID).Scan(&n)
	return n, err
}

func (r *UsageRepository) CountShortLinks(ctx context.Context, ownerID string) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM short_links WHERE owner_id = ?`, ownerID).Scan(&n)
	return n, err
}

func (r *UsageRepository) SumFileBytes(ctx context.Context, ownerID string) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(size_bytes), 0) FROM files WHERE owner_id = ?
	`, ownerID).Scan(&n)
	return n, err
}

// SumFileBytesCreatedBetween sums sizes of files created in [from, to],
// both ends inclusive at millisecond precision.
func (r *UsageRepository) SumFileBytesCreatedBetween(ctx context.Context, ownerID string, from, to time.Time) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(size_bytes), 0) FROM files
		WHERE owner_id = ? AND created_at_ms >= ? AND created_at_ms <= ?
	`, ownerID, from.UnixMilli(), to.UnixMilli()).Scan(&n)
	return n, err
}
