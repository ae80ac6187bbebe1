package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/SecuShare/filevault/internal/models"
)

type ShortLinkRepository struct {
	db *sql.DB
}

func NewShortLinkRepository(db *sql.DB) *ShortLinkRepository {
	return &ShortLinkRepository{db: db}
}

const shortLinkColumns = `id, slug, owner_id, target_url, password_hash, clicks, expires_at_ms, created_at_ms`

func scanShortLink(row rowScanner) (*models.ShortLink, error) {
	link := &models.ShortLink{}
	var expiresAtMs sql.NullInt64
	var createdAtMs int64
	if err := row.Scan(&link.ID, &link.Slug, &link.OwnerID, &link.TargetURL, &link.PasswordHash,
		&link.Clicks, &expiresAtMs, &createdAtMs); err != nil {
		return nil, err
	}
	if expiresAtMs.Valid {
		t := time.UnixMilli(expiresAtMs.Int64)
		link.ExpiresAt = &t
	}
	link.CreatedAt = time.UnixMilli(createdAtMs)
	return link, nil
}

func (r *ShortLinkRepository) Create(ctx context.Context, link *models.ShortLink) error {
	var expiresAtMs interface{}
	if link.ExpiresAt != nil {
		expiresAtMs = link.ExpiresAt.UnixMilli()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO short_links (id, slug, owner_id, target_url, password_hash, clicks, expires_at_ms, created_at_ms)
		VALUES (?, ?, ?, ?, ?, 0, ?, ?)
	`, link.ID, link.Slug, link.OwnerID, link.TargetURL, link.PasswordHash, expiresAtMs, link.CreatedAt.UnixMilli())
	return err
}

func (r *ShortLinkRepository) GetBySlug(ctx context.Context, slug string) (*models.ShortLink, error) {
	return scanShortLink(r.db.QueryRowContext(ctx, `SELECT `+shortLinkColumns+` FROM short_links WHERE slug = ?`, slug))
}

func (r *ShortLinkRepository) GetByOwnerID(ctx context.Context, ownerID string) ([]*models.ShortLink, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+shortLinkColumns+`
		FROM short_links WHERE owner_id = ? ORDER BY created_at_ms DESC
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []*models.ShortLink
	for rows.Next() {
		link, err := scanShortLink(rows)
		if err != nil {
			return nil, err
		}
		links = append(links, link)
	}
	return links, rows.Err()
}

func (r *ShortLinkRepository) IncrementClicks(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE short_links SET clicks = clicks + 1 WHERE id = ?`, id)
	return err
}

// DeleteOwned removes a link only when it belongs to ownerID.
func (r *ShortLinkRepository) DeleteOwned(ctx context.Context, slug, ownerID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM short_links WHERE slug = ? AND owner_id = ?`, slug, ownerID)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

func (r *ShortLinkRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM short_links WHERE expires_at_ms IS NOT NULL AND expires_at_ms <= ?
	`, now.UnixMilli())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
