package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/SecuShare/filevault/internal/models"
	"github.com/SecuShare/filevault/internal/quota"
)

func TestShortLinkService_CreateAndResolve(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "user-1", models.RoleUser)
	ctx := context.Background()

	link, err := env.links.Create(ctx, "user-1", models.RoleUser, CreateShortLinkRequest{TargetURL: "https://example.com/docs"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(link.Slug) != slugLength {
		t.Fatalf("expected %d character slug, got %q", slugLength, link.Slug)
	}

	target, err := env.links.Resolve(ctx, link.Slug)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if target != "https://example.com/docs" {
		t.Fatalf("unexpected target %q", target)
	}

	links, err := env.links.List(ctx, "user-1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(links) != 1 || links[0].Clicks != 1 {
		t.Fatalf("expected one link with one click, got %+v", links)
	}
}

func TestShortLinkService_Create_RejectsNonHTTPTarget(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "user-1", models.RoleUser)

	for _, target := range []string{"", "ftp://example.com/file", "/relative/path", "javascript:alert(1)"} {
		_, err := env.links.Create(context.Background(), "user-1", models.RoleUser, CreateShortLinkRequest{TargetURL: target})
		if !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("target %q: expected ErrInvalidInput, got %v", target, err)
		}
	}
}

func TestShortLinkService_PasswordProtectedLink(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "user-1", models.RoleUser)
	ctx := context.Background()

	password := "hunter22"
	link, err := env.links.Create(ctx, "user-1", models.RoleUser, CreateShortLinkRequest{
		TargetURL: "https://example.com/private",
		Password:  &password,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := env.links.Resolve(ctx, link.Slug); !errors.Is(err, ErrPasswordRequired) {
		t.Fatalf("expected ErrPasswordRequired, got %v", err)
	}
	if _, err := env.links.Unlock(ctx, link.Slug, "wrong-password"); !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("expected ErrInvalidPassword, got %v", err)
	}
	target, err := env.links.Unlock(ctx, link.Slug, password)
	if err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	if target != "https://example.com/private" {
		t.Fatalf("unexpected target %q", target)
	}
}

func TestShortLinkService_Create_EnforcesLimit(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "user-1", models.RoleUser)
	env.setSettings(t, map[string]string{"short_links_limit_user": "1"})
	ctx := context.Background()

	req := CreateShortLinkRequest{TargetURL: "https://example.com"}
	if _, err := env.links.Create(ctx, "user-1", models.RoleUser, req); err != nil {
		t.Fatalf("first Create: %v", err)
	}
	_, err := env.links.Create(ctx, "user-1", models.RoleUser, req)
	if !errors.Is(err, quota.ErrLimitExceeded) {
		t.Fatalf("expected ErrLimitExceeded, got %v", err)
	}

	// A per-user override lifts the role default.
	if err := env.userRepo.SetLimitOverrides(ctx, "user-1", models.LimitOverrides{ShortLinksLimit: int64Ptr(3)}); err != nil {
		t.Fatalf("SetLimitOverrides: %v", err)
	}
	if _, err := env.links.Create(ctx, "user-1", models.RoleUser, req); err != nil {
		t.Fatalf("Create after override: %v", err)
	}
}

func TestShortLinkService_ExpiredLinks(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "user-1", models.RoleUser)
	ctx := context.Background()

	now := time.Now()
	env.links.now = func() time.Time { return now }
	expiresAt := now.Add(time.Hour)

	link, err := env.links.Create(ctx, "user-1", models.RoleUser, CreateShortLinkRequest{
		TargetURL: "https://example.com",
		ExpiresAt: &expiresAt,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	env.links.now = func() time.Time { return now.Add(2 * time.Hour) }
	if _, err := env.links.Resolve(ctx, link.Slug); !errors.Is(err, ErrLinkExpired) {
		t.Fatalf("expected ErrLinkExpired, got %v", err)
	}

	removed, err := env.links.DeleteExpired(ctx)
	if err != nil {
		t.Fatalf("DeleteExpired: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 link removed, got %d", removed)
	}
	if _, err := env.links.Resolve(ctx, link.Slug); !errors.Is(err, ErrLinkNotFound) {
		t.Fatalf("expected ErrLinkNotFound after cleanup, got %v", err)
	}
}

func TestShortLinkService_Create_RejectsPastExpiry(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "user-1", models.RoleUser)

	past := time.Now().Add(-time.Minute)
	_, err := env.links.Create(context.Background(), "user-1", models.RoleUser, CreateShortLinkRequest{
		TargetURL: "https://example.com",
		ExpiresAt: &past,
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestShortLinkService_Delete_OnlyOwner(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "user-1", models.RoleUser)
	ctx := context.Background()

	link, err := env.links.Create(ctx, "user-1", models.RoleUser, CreateShortLinkRequest{TargetURL: "https://example.com"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := env.links.Delete(ctx, link.Slug, "user-2"); !errors.Is(err, ErrLinkNotFound) {
		t.Fatalf("expected ErrLinkNotFound for non-owner, got %v", err)
	}
	if err := env.links.Delete(ctx, link.Slug, "user-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
}
