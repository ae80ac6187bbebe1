package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/SecuShare/filevault/internal/models"
)

type FileRepository struct {
	db *sql.DB
}

func NewFileRepository(db *sql.DB) *FileRepository {
	return &FileRepository{db: db}
}

const fileColumns = `id, owner_id, original_filename, stored_filename, mime_type, size_bytes, created_at_ms`

func scanFile(row rowScanner) (*models.File, error) {
	file := &models.File{}
	var createdAtMs int64
	if err := row.Scan(&file.ID, &file.OwnerID, &file.OriginalFilename, &file.StoredFilename,
		&file.MimeType, &file.SizeBytes, &createdAtMs); err != nil {
		return nil, err
	}
	file.CreatedAt = time.UnixMilli(createdAtMs)
	return file, nil
}

func (r *FileRepository) Create(ctx context.Context, file *models.File) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO files (id, owner_id, original_filename, stored_filename, mime_type, size_bytes, created_at_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, file.ID, file.OwnerID, file.OriginalFilename, file.StoredFilename, file.MimeType, file.SizeBytes, file.CreatedAt.UnixMilli())
	return err
}

func (r *FileRepository) GetByID(ctx context.Context, id string) (*models.File, error) {
	return scanFile(r.db.QueryRowContext(ctx, `SELECT `+fileColumns+` FROM files WHERE id = ?`, id))
}

func (r *FileRepository) GetByOwnerID(ctx context.Context, ownerID string) ([]*models.File, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+fileColumns+`
		FROM files WHERE owner_id = ? ORDER BY created_at_ms DESC
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []*models.File
	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return files, nil
}

func (r *FileRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM files WHERE id = ?`, id)
	return err
}
