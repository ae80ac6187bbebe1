package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/SecuShare/filevault/internal/models"
)

func TestAdminService_UpdateSettings_RejectsUnknownSettingKey(t *testing.T) {
	env := newTestEnv(t)

	err := env.admin.UpdateSettings(context.Background(), "admin-1", map[string]string{
		"unknown_setting": "1",
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if !strings.Contains(err.Error(), "unknown_setting") {
		t.Fatalf("expected error to name the key, got %v", err)
	}
}

func TestAdminService_UpdateSettings_RejectsInvalidValues(t *testing.T) {
	env := newTestEnv(t)

	testCases := []struct {
		name string
		key  string
		val  string
	}{
		{name: "negative", key: "files_limit_user", val: "-1"},
		{name: "fraction", key: "max_upload_mb", val: "1.5"},
		{name: "word", key: "storage_quota_mb_admin", val: "lots"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := env.admin.UpdateSettings(context.Background(), "admin-1", map[string]string{tc.key: tc.val})
			if !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.key) {
				t.Fatalf("expected error to name %s, got %v", tc.key, err)
			}
		})
	}
}

func TestAdminService_UpdateSettings_IsAllOrNothing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	err := env.admin.UpdateSettings(ctx, "admin-1", map[string]string{
		"files_limit_user": "7",
		"max_upload_mb":    "nope",
	})
	if err == nil {
		t.Fatal("expected invalid batch to be rejected")
	}

	values, err := env.settingsRepo.GetAllMap(ctx)
	if err != nil {
		t.Fatalf("GetAllMap: %v", err)
	}
	if value := values["files_limit_user"]; value != "1000" {
		t.Fatalf("expected files_limit_user to keep its default, got %q", values["files_limit_user"])
	}
}

func TestAdminService_UpdateSettings_NormalizesValues(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if err := env.admin.UpdateSettings(ctx, "admin-1", map[string]string{
		"files_limit_user":      " 0042 ",
		"max_upload_mb":         "Unlimited",
		"disallowed_extensions": " .exe , .BAT,, ",
	}); err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}

	all, err := env.settingsRepo.GetAllMap(ctx)
	if err != nil {
		t.Fatalf("GetAllMap: %v", err)
	}
	if all["files_limit_user"] != "42" {
		t.Fatalf("expected 42, got %q", all["files_limit_user"])
	}
	if all["max_upload_mb"] != "unlimited" {
		t.Fatalf("expected unlimited, got %q", all["max_upload_mb"])
	}
	if all["disallowed_extensions"] != ".exe,.BAT" {
		t.Fatalf("expected trimmed list, got %q", all["disallowed_extensions"])
	}
}

func TestAdminService_SetUserLimits(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "user-1", models.RoleUser)
	ctx := context.Background()

	if err := env.admin.SetUserLimits(ctx, "admin-1", "user-1", models.LimitOverrides{FilesLimit: int64Ptr(-5)}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for negative override, got %v", err)
	}
	if err := env.admin.SetUserLimits(ctx, "admin-1", "missing", models.LimitOverrides{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := env.admin.SetUserLimits(ctx, "admin-1", "user-1", models.LimitOverrides{
		MaxStorageMB: int64Ptr(50),
		FilesLimit:   int64Ptr(0),
	}); err != nil {
		t.Fatalf("SetUserLimits: %v", err)
	}
	got, err := env.userRepo.GetLimitOverrides(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetLimitOverrides: %v", err)
	}
	if got.MaxStorageMB == nil || *got.MaxStorageMB != 50 {
		t.Fatalf("expected storage override 50, got %v", got.MaxStorageMB)
	}
	if got.FilesLimit != nil {
		t.Fatalf("expected zero files override to clear, got %d", *got.FilesLimit)
	}
}

func TestAdminService_SetUserRole_ProtectsLastAdminAndOwner(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "owner-1", models.RoleOwner)
	env.createUser(t, "admin-1", models.RoleAdmin)
	env.createUser(t, "user-1", models.RoleUser)
	ctx := context.Background()

	if err := env.admin.SetUserRole(ctx, "admin-1", "owner-1", models.RoleUser); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected owner role change to be forbidden, got %v", err)
	}
	if err := env.admin.SetUserRole(ctx, "owner-1", "user-1", models.RoleOwner); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected owner grant to be rejected, got %v", err)
	}

	// Owner still counts as an admin, so admin-1 can be demoted.
	if err := env.admin.SetUserRole(ctx, "owner-1", "admin-1", models.RoleUser); err != nil {
		t.Fatalf("demote admin: %v", err)
	}
	user, err := env.userRepo.GetByID(ctx, "admin-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if user.Role != models.RoleUser {
		t.Fatalf("expected role user, got %s", user.Role)
	}
}

func TestAdminService_DeleteUser(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "admin-1", models.RoleAdmin)
	env.createUser(t, "user-1", models.RoleUser)
	ctx := context.Background()

	if err := env.admin.DeleteUser(ctx, "admin-1", "admin-1"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected self-delete to be forbidden, got %v", err)
	}
	if err := env.admin.DeleteUser(ctx, "missing", "admin-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := env.admin.DeleteUser(ctx, "user-1", "admin-1"); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}

	users, err := env.admin.ListUsers(ctx)
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(users) != 1 || users[0].ID != "admin-1" {
		t.Fatalf("expected only admin-1 to remain, got %+v", users)
	}
}
