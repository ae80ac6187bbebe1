package repository

import (
	"context"
	"database/sql"

	"github.com/SecuShare/filevault/internal/models"
)

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, email, display_name, role, max_storage_mb, max_upload_mb, files_limit, short_links_limit, created_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*models.User, error) {
	user := &models.User{}
	var role string
	var maxStorage, maxUpload, files, links sql.NullInt64
	if err := row.Scan(&user.ID, &user.Email, &user.DisplayName, &role,
		&maxStorage, &maxUpload, &files, &links, &user.CreatedAt); err != nil {
		return nil, err
	}
	user.Role = models.ParseRole(role)
	user.Overrides = models.LimitOverrides{
		MaxStorageMB:    normalizeOverride(maxStorage),
		MaxUploadMB:     normalizeOverride(maxUpload),
		FilesLimit:      normalizeOverride(files),
		ShortLinksLimit: normalizeOverride(links),
	}
	return user, nil
}

// normalizeOverride treats 0 (and any non-positive value) as "no override".
// A stored 0 never means "zero allowed".
func normalizeOverride(v sql.NullInt64) *int64 {
	if !v.Valid || v.Int64 <= 0 {
		return nil
	}
	n := v.Int64
	return &n
}

func nullableOverride(v *int64) interface{} {
	if v == nil || *v <= 0 {
		return nil
	}
	return *v
}

func (r *UserRepository) Create(user *models.User) error {
	role := user.Role
	if role == "" {
		role = models.RoleUser
	}
	_, err := r.db.Exec(`
		INSERT INTO users (id, email, display_name, role, max_storage_mb, max_upload_mb, files_limit, short_links_limit, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, user.ID, user.Email, user.DisplayName, string(role),
		nullableOverride(user.Overrides.MaxStorageMB),
		nullableOverride(user.Overrides.MaxUploadMB),
		nullableOverride(user.Overrides.FilesLimit),
		nullableOverride(user.Overrides.ShortLinksLimit),
		user.CreatedAt)
	return err
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

// GetLimitOverrides returns the normalized per-user overrides.
func (r *UserRepository) GetLimitOverrides(ctx context.Context, id string) (models.LimitOverrides, error) {
	user, err := r.GetByID(ctx, id)
	if err != nil {
		return models.LimitOverrides{}, err
	}
	return user.Overrides, nil
}

// GetContactEmail returns the address limit notifications are sent to.
func (r *UserRepository) GetContactEmail(ctx context.Context, id string) (string, error) {
	var email string
	err := r.db.QueryRowContext(ctx, `SELECT email FROM users WHERE id = ?`, id).Scan(&email)
	return email, err
}

func (r *UserRepository) SetLimitOverrides(ctx context.Context, id string, overrides models.LimitOverrides) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET max_storage_mb = ?, max_upload_mb = ?, files_limit = ?, short_links_limit = ?
		WHERE id = ?
	`, nullableOverride(overrides.MaxStorageMB),
		nullableOverride(overrides.MaxUploadMB),
		nullableOverride(overrides.FilesLimit),
		nullableOverride(overrides.ShortLinksLimit),
		id)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

func (r *UserRepository) UpdateDisplayName(ctx context.Context, id, displayName string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE users SET display_name = ? WHERE id = ?`, displayName, id)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

func (r *UserRepository) SetRole(ctx context.Context, id string, role models.Role) error {
	result, err := r.db.ExecContext(ctx, `UPDATE users SET role = ? WHERE id = ?`, string(role), id)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

func (r *UserRepository) CountAdmins(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE role IN ('admin', 'owner')`).Scan(&count)
	return count, err
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	return err
}

func (r *UserRepository) ListAll(ctx context.Context) ([]*models.AdminUserInfo, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT u.id, u.email, u.role, u.max_storage_mb, u.max_upload_mb, u.files_limit, u.short_links_limit, u.created_at,
		       (SELECT COUNT(*) FROM files f WHERE f.owner_id = u.id),
		       (SELECT COALESCE(SUM(f.size_bytes), 0) FROM files f WHERE f.owner_id = u.id),
		       (SELECT COUNT(*) FROM short_links l WHERE l.owner_id = u.id)
		FROM users u
		ORDER BY u.created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*models.AdminUserInfo
	for rows.Next() {
		u := &models.AdminUserInfo{}
		var role string
		var maxStorage, maxUpload, files, links sql.NullInt64
		if err := rows.Scan(&u.ID, &u.Email, &role, &maxStorage, &maxUpload, &files, &links, &u.CreatedAt,
			&u.FileCount, &u.StorageBytes, &u.ShortLinkCount); err != nil {
			return nil, err
		}
		u.Role = models.ParseRole(role)
		u.Overrides = models.LimitOverrides{
			MaxStorageMB:    normalizeOverride(maxStorage),
			MaxUploadMB:     normalizeOverride(maxUpload),
			FilesLimit:      normalizeOverride(files),
			ShortLinksLimit: normalizeOverride(links),
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func requireAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
