package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/SecuShare/filevault/internal/models"
	"github.com/SecuShare/filevault/internal/quota"
	"github.com/SecuShare/filevault/internal/repository"
	"github.com/SecuShare/filevault/pkg/logger"
	"github.com/SecuShare/filevault/pkg/sanitize"
)

// sniffSize is the number of leading bytes read for MIME-type detection.
// 3072 bytes is sufficient for the mimetype library to identify all
// supported formats.
const sniffSize = 3072

type FileService struct {
	fileRepo    *repository.FileRepository
	settings    quota.DefaultsSource
	policy      *quota.Policy
	storagePath string
	now         func() time.Time
}

func NewFileService(
	fileRepo *repository.FileRepository,
	settings quota.DefaultsSource,
	policy *quota.Policy,
	storagePath string,
) *FileService {
	return &FileService{
		fileRepo:    fileRepo,
		settings:    settings,
		policy:      policy,
		storagePath: storagePath,
		now:         time.Now,
	}
}

// UploadFile is one part of a multi-file upload. Size is the declared size
// used for admission; the stored size is what was actually written.
type UploadFile struct {
	Filename string
	Size     int64
	Content  io.Reader
}

type preparedUpload struct {
	filename string
	mimeType string
	content  io.Reader
}

// Upload admits and stores a batch. Either every file is stored or none is.
func (s *FileService) Upload(ctx context.Context, userID string, role models.Role, files []UploadFile) ([]*models.File, error) {
	if len(files) == 0 {
		return nil, ErrNoFiles
	}

	defaults, err := quota.LoadServerDefaults(ctx, s.settings)
	if err != nil {
		return nil, err
	}

	prepared := make([]preparedUpload, 0, len(files))
	sizesMB := make([]float64, 0, len(files))
	for _, f := range files {
		p, err := prepareUpload(defaults, f)
		if err != nil {
			return nil, err
		}
		prepared = append(prepared, p)
		sizesMB = append(sizesMB, quota.BytesToMB(f.Size))
	}

	if err := s.policy.AssertCanCreate(ctx, userID, quota.KindFiles, role, int64(len(files))); err != nil {
		return nil, err
	}
	if err := s.policy.AssertUploadAllowed(ctx, userID, role, sizesMB); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(s.storagePath, 0750); err != nil {
		return nil, err
	}

	stored := make([]*models.File, 0, len(prepared))
	rollback := func() {
		for _, f := range stored {
			if err := s.fileRepo.Delete(ctx, f.ID); err != nil {
				logger.Warn().Err(err).Str("file_id", f.ID).Msg("Failed to roll back file metadata")
			}
			if err := removeFileIfExists(s.GetFilePath(f)); err != nil {
				logger.Warn().Err(err).Str("file_id", f.ID).Msg("Failed to roll back file blob")
			}
		}
	}

	for _, p := range prepared {
		record, err := s.store(ctx, userID, p)
		if err != nil {
			rollback()
			return nil, err
		}
		stored = append(stored, record)
	}

	return stored, nil
}

func prepareUpload(defaults quota.ServerDefaults, f UploadFile) (preparedUpload, error) {
	name := sanitize.FilenameOr(f.Filename, "unnamed")
	if !defaults.ExtensionAllowed(name) {
		return preparedUpload{}, &UploadRejectedError{Filename: name, Reason: "file extension is not allowed"}
	}

	buf := make([]byte, sniffSize)
	n, err := io.ReadAtLeast(f.Content, buf, 1)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return preparedUpload{}, fmt.Errorf("read upload header for MIME sniff: %w", err)
	}
	buf = buf[:n]

	detected := mimetype.Detect(buf).String()
	if !defaults.MIMEAllowed(detected) {
		return preparedUpload{}, &UploadRejectedError{
			Filename:        name,
			Reason:          fmt.Sprintf("file type %s is not allowed", detected),
			UnsupportedType: true,
		}
	}

	return preparedUpload{
		filename: name,
		mimeType: detected,
		content:  io.MultiReader(bytes.NewReader(buf), f.Content),
	}, nil
}

func (s *FileService) store(ctx context.Context, userID string, p preparedUpload) (*models.File, error) {
	fileID := uuid.New().String()
	storedName := fileID + ".bin"
	filePath := filepath.Join(s.storagePath, storedName)

	// #nosec G304 -- filePath is built from trusted storagePath and a server-generated UUID filename.
	out, err := os.OpenFile(filePath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return nil, err
	}

	written, err := io.Copy(out, p.content)
	closeErr := out.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		if removeErr := removeFileIfExists(filePath); removeErr != nil {
			return nil, fmt.Errorf("write file: %w (cleanup failed: %v)", err, removeErr)
		}
		return nil, err
	}

	record := &models.File{
		ID:               fileID,
		OwnerID:          userID,
		OriginalFilename: p.filename,
		StoredFilename:   storedName,
		MimeType:         p.mimeType,
		SizeBytes:        written,
		CreatedAt:        s.now(),
	}
	if err := s.fileRepo.Create(ctx, record); err != nil {
		if removeErr := removeFileIfExists(filePath); removeErr != nil {
			return nil, fmt.Errorf("persist file metadata: %w (cleanup failed: %v)", err, removeErr)
		}
		return nil, err
	}
	return record, nil
}

func (s *FileService) List(ctx context.Context, userID string) ([]*models.File, error) {
	return s.fileRepo.GetByOwnerID(ctx, userID)
}

// GetOwned returns the file only when userID owns it.
func (s *FileService) GetOwned(ctx context.Context, id, userID string) (*models.File, error) {
	file, err := s.fileRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrFileNotFound
		}
		return nil, err
	}
	if file.OwnerID != userID {
		return nil, ErrFileNotFound
	}
	return file, nil
}

func (s *FileService) GetFilePath(file *models.File) string {
	return filepath.Join(s.storagePath, file.StoredFilename)
}

// Delete removes the metadata row first, then the blob.
func (s *FileService) Delete(ctx context.Context, id, userID string) error {
	file, err := s.GetOwned(ctx, id, userID)
	if err != nil {
		return err
	}

	if err := s.fileRepo.Delete(ctx, id); err != nil {
		return err
	}
	if err := removeFileIfExists(s.GetFilePath(file)); err != nil {
		return fmt.Errorf("remove file blob: %w", err)
	}

	logger.Audit("file_deleted", userID, map[string]string{"file_id": id})
	return nil
}

func removeFileIfExists(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
