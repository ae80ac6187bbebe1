package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/SecuShare/filevault/internal/models"
	"github.com/SecuShare/filevault/internal/quota"
	"github.com/SecuShare/filevault/internal/repository"
	"github.com/SecuShare/filevault/pkg/logger"
)

// AdminService manages server defaults and per-user limit overrides.
// Settings are written straight to the database; quota checks re-read them
// on every request, so there is no cache to refresh here.
type AdminService struct {
	settingsRepo *repository.SettingsRepository
	userRepo     *repository.UserRepository
	numericKeys  map[string]bool
	listKeys     map[string]bool
}

func NewAdminService(settingsRepo *repository.SettingsRepository, userRepo *repository.UserRepository) *AdminService {
	svc := &AdminService{
		settingsRepo: settingsRepo,
		userRepo:     userRepo,
		numericKeys:  make(map[string]bool),
		listKeys:     make(map[string]bool),
	}
	for _, k := range quota.NumericSettingKeys() {
		svc.numericKeys[k] = true
	}
	for _, k := range quota.ListSettingKeys() {
		svc.listKeys[k] = true
	}
	return svc
}

func (s *AdminService) GetAllSettings(ctx context.Context) ([]*models.AppSetting, error) {
	return s.settingsRepo.GetAll(ctx)
}

// UpdateSettings validates every key before writing any of them.
func (s *AdminService) UpdateSettings(ctx context.Context, adminID string, updates map[string]string) error {
	if len(updates) == 0 {
		return fmt.Errorf("%w: no settings given", ErrInvalidInput)
	}

	normalized := make(map[string]string, len(updates))
	for key, value := range updates {
		switch {
		case s.numericKeys[key]:
			setting, err := quota.ParseSetting(value)
			if err != nil {
				return fmt.Errorf("%w: %s %v", ErrInvalidInput, key, err)
			}
			if setting.Unlimited {
				normalized[key] = quota.UnlimitedValue
			} else {
				normalized[key] = strconv.FormatInt(setting.Value, 10)
			}
		case s.listKeys[key]:
			normalized[key] = strings.Join(quota.SplitList(value), ",")
		default:
			return fmt.Errorf("%w: unknown setting key %q", ErrInvalidInput, key)
		}
	}

	if err := s.settingsRepo.SetMany(ctx, normalized); err != nil {
		return err
	}

	fields := make(map[string]string, len(normalized))
	for k, v := range normalized {
		fields[k] = v
	}
	logger.Audit("settings_updated", adminID, fields)
	return nil
}

// SetUserLimits replaces a user's overrides. Zero or nil clears an override
// so the role default applies again.
func (s *AdminService) SetUserLimits(ctx context.Context, adminID, userID string, overrides models.LimitOverrides) error {
	for name, v := range map[string]*int64{
		"max_storage_mb":    overrides.MaxStorageMB,
		"max_upload_mb":     overrides.MaxUploadMB,
		"files_limit":       overrides.FilesLimit,
		"short_links_limit": overrides.ShortLinksLimit,
	} {
		if v != nil && *v < 0 {
			return fmt.Errorf("%w: %s must not be negative", ErrInvalidInput, name)
		}
	}

	if err := s.userRepo.SetLimitOverrides(ctx, userID, overrides); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}

	logger.Audit("user_limits_updated", adminID, map[string]string{
		"target_user_id":    userID,
		"max_storage_mb":    overrideString(overrides.MaxStorageMB),
		"max_upload_mb":     overrideString(overrides.MaxUploadMB),
		"files_limit":       overrideString(overrides.FilesLimit),
		"short_links_limit": overrideString(overrides.ShortLinksLimit),
	})
	return nil
}

func (s *AdminService) ListUsers(ctx context.Context) ([]*models.AdminUserInfo, error) {
	return s.userRepo.ListAll(ctx)
}

// SetUserRole changes a user's role. The owner role cannot be granted or
// removed here, and the last admin cannot be demoted.
func (s *AdminService) SetUserRole(ctx context.Context, adminID, userID string, role models.Role) error {
	if role != models.RoleAdmin && role != models.RoleUser {
		return fmt.Errorf("%w: role must be admin or user", ErrInvalidInput)
	}

	target, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if target.Role == models.RoleOwner {
		return fmt.Errorf("%w: the owner role cannot be changed", ErrForbidden)
	}
	if target.Role.IsAdmin() && !role.IsAdmin() {
		if err := s.ensureOtherAdmin(ctx); err != nil {
			return err
		}
	}

	if err := s.userRepo.SetRole(ctx, userID, role); err != nil {
		return err
	}
	logger.Audit("user_role_changed", adminID, map[string]string{
		"target_user_id": userID,
		"role":           string(role),
	})
	return nil
}

func (s *AdminService) DeleteUser(ctx context.Context, userID, adminID string) error {
	if userID == adminID {
		return fmt.Errorf("%w: cannot delete your own account", ErrForbidden)
	}

	target, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if target.Role == models.RoleOwner {
		return fmt.Errorf("%w: the owner cannot be deleted", ErrForbidden)
	}
	if target.Role.IsAdmin() {
		if err := s.ensureOtherAdmin(ctx); err != nil {
			return err
		}
	}

	if err := s.userRepo.Delete(ctx, userID); err != nil {
		return err
	}
	logger.Audit("user_deleted", adminID, map[string]string{"target_user_id": userID})
	return nil
}

func (s *AdminService) ensureOtherAdmin(ctx context.Context) error {
	count, err := s.userRepo.CountAdmins(ctx)
	if err != nil {
		return err
	}
	if count <= 1 {
		return fmt.Errorf("%w: cannot remove the last admin", ErrForbidden)
	}
	return nil
}

func overrideString(v *int64) string {
	if v == nil || *v <= 0 {
		return "default"
	}
	return strconv.FormatInt(*v, 10)
}
