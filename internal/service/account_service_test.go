package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/SecuShare/filevault/internal/models"
	"github.com/SecuShare/filevault/internal/quota"
)

func TestAccountService_Overview(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "user-1", models.RoleUser)
	ctx := context.Background()

	if err := env.userRepo.SetLimitOverrides(ctx, "user-1", models.LimitOverrides{MaxStorageMB: int64Ptr(50)}); err != nil {
		t.Fatalf("SetLimitOverrides: %v", err)
	}
	if _, err := env.files.Upload(ctx, "user-1", models.RoleUser, []UploadFile{textUpload("a.txt", 2_400_000)}); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if _, err := env.links.Create(ctx, "user-1", models.RoleUser, CreateShortLinkRequest{TargetURL: "https://example.com"}); err != nil {
		t.Fatalf("Create link: %v", err)
	}

	now := time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)
	env.accounts.now = func() time.Time { return now }

	overview, err := env.accounts.Overview(ctx, "user-1", models.RoleUser)
	if err != nil {
		t.Fatalf("Overview: %v", err)
	}

	if overview.Files.Used != 1 || overview.Files.Limit != quota.LimitOf(1000) || overview.Files.From != quota.SourceRoleDefault {
		t.Fatalf("unexpected files line: %+v", overview.Files)
	}
	if overview.ShortLinks.Used != 1 || overview.ShortLinks.Limit != quota.LimitOf(100) {
		t.Fatalf("unexpected short links line: %+v", overview.ShortLinks)
	}
	if overview.Storage.Used != 2 || overview.Storage.Limit != quota.LimitOf(50) || overview.Storage.From != quota.SourceOverride {
		t.Fatalf("unexpected storage line: %+v", overview.Storage)
	}
	if overview.MaxUploadMB != quota.LimitOf(100) || overview.MaxFilesPerUpload != quota.LimitOf(10) {
		t.Fatalf("unexpected upload limits: %v %v", overview.MaxUploadMB, overview.MaxFilesPerUpload)
	}
	wantReset := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	if !overview.DailyResetsAt.Equal(wantReset) {
		t.Fatalf("expected daily reset at %v, got %v", wantReset, overview.DailyResetsAt)
	}
}

func TestAccountService_Overview_AdminCountsUnlimited(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "owner-1", models.RoleOwner)

	overview, err := env.accounts.Overview(context.Background(), "owner-1", models.RoleOwner)
	if err != nil {
		t.Fatalf("Overview: %v", err)
	}
	if !overview.Files.Limit.IsUnlimited() || !overview.ShortLinks.Limit.IsUnlimited() {
		t.Fatalf("expected unlimited counts for owner, got files=%v links=%v", overview.Files.Limit, overview.ShortLinks.Limit)
	}
	if overview.Storage.Limit != quota.LimitOf(10000) {
		t.Fatalf("expected admin storage default, got %v", overview.Storage.Limit)
	}
}

func TestAccountService_UpdateDisplayName(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "user-1", models.RoleUser)
	ctx := context.Background()

	user, err := env.accounts.UpdateDisplayName(ctx, "user-1", "  Ada  ")
	if err != nil {
		t.Fatalf("UpdateDisplayName: %v", err)
	}
	if user.DisplayName != "Ada" {
		t.Fatalf("expected trimmed name, got %q", user.DisplayName)
	}

	if _, err := env.accounts.UpdateDisplayName(ctx, "user-1", "   "); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for blank name, got %v", err)
	}
	if _, err := env.accounts.UpdateDisplayName(ctx, "user-1", strings.Repeat("x", maxDisplayNameLength+1)); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for long name, got %v", err)
	}
	if _, err := env.accounts.UpdateDisplayName(ctx, "missing", "Ada"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
