package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/SecuShare/filevault/internal/config"
	"github.com/SecuShare/filevault/internal/models"
	"github.com/SecuShare/filevault/internal/quota"
	"github.com/SecuShare/filevault/internal/ratelimit"
	"github.com/SecuShare/filevault/internal/repository"
	"github.com/SecuShare/filevault/internal/service"
	"github.com/SecuShare/filevault/pkg/response"
	"github.com/SecuShare/filevault/pkg/testutil"
)

type countingRunner struct{ runs int }

func (r *countingRunner) RunNow(context.Context) { r.runs++ }

type testServer struct {
	app      *fiber.App
	auth     *service.AuthService
	users    *repository.UserRepository
	settings *repository.SettingsRepository
	clock    *testutil.Clock
	runner   *countingRunner
}

func newTestServer(t *testing.T, rl config.RateLimitConfig) *testServer {
	t.Helper()

	db, cfg, cleanup := testutil.SetupTest(t)
	t.Cleanup(cleanup)

	users := repository.NewUserRepository(db)
	settings := repository.NewSettingsRepository(db)
	resolver := quota.NewResolver(users, settings)
	accountant := quota.NewAccountant(repository.NewUsageRepository(db), quota.WithLocation(time.UTC))
	policy := quota.NewPolicy(resolver, accountant, nil)

	clock := testutil.NewClock(time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC))
	limiter := ratelimit.NewLimiter(ratelimit.NewMemoryStore(), ratelimit.WithClock(clock.Now))

	authSvc := service.NewAuthService(users, &config.Config{
		Auth: config.AuthConfig{JWTSecret: "handler-test-secret", TokenTTL: time.Hour},
	})
	runner := &countingRunner{}

	app := fiber.New()
	app.Use(RequestIDMiddleware())
	RegisterRoutes(app, Routes{
		Auth:      authSvc,
		Limiter:   limiter,
		RateLimit: rl,
		Files:     NewFileHandler(service.NewFileService(repository.NewFileRepository(db), settings, policy, cfg.StoragePath)),
		Links:     NewLinkHandler(service.NewShortLinkService(repository.NewShortLinkRepository(db), policy)),
		Account:   NewAccountHandler(service.NewAccountService(users, resolver, accountant, time.UTC)),
		Admin:     NewAdminHandler(service.NewAdminService(settings, users), runner),
	})

	return &testServer{app: app, auth: authSvc, users: users, settings: settings, clock: clock, runner: runner}
}

func defaultRateLimits() config.RateLimitConfig {
	return config.RateLimitConfig{Window: time.Minute, IP: 1000, User: 1000, Resource: 1000}
}

func (s *testServer) userToken(t *testing.T, id string, role models.Role) string {
	t.Helper()
	if err := s.users.Create(&models.User{ID: id, Email: id + "@example.com", Role: role, CreatedAt: time.Now()}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	token, err := s.auth.GenerateToken(id, role)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	return token
}

func (s *testServer) do(t *testing.T, req *http.Request, token string) (*http.Response, response.APIResponse) {
	t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	var payload response.APIResponse
	body, _ := io.ReadAll(resp.Body)
	if len(body) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Fatalf("decode response %q: %v", body, err)
		}
	}
	return resp, payload
}

func jsonRequest(method, path string, body interface{}) *http.Request {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func uploadRequest(t *testing.T, files map[string][]byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for name, content := range files {
		part, err := w.CreateFormFile("files", name)
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		if _, err := part.Write(content); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/files", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestRoutes_RequireAuthentication(t *testing.T) {
	srv := newTestServer(t, defaultRateLimits())

	resp, _ := srv.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/files", nil), "")
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}

	resp, _ = srv.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/files", nil), "not-a-token")
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", resp.StatusCode)
	}
}

func TestRoutes_AdminRequiresAdminRole(t *testing.T) {
	srv := newTestServer(t, defaultRateLimits())
	userToken := srv.userToken(t, "user-1", models.RoleUser)
	ownerToken := srv.userToken(t, "owner-1", models.RoleOwner)

	resp, _ := srv.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/admin/settings", nil), userToken)
	if resp.StatusCode != fiber.StatusForbidden {
		t.Fatalf("expected 403 for user, got %d", resp.StatusCode)
	}

	resp, _ = srv.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/admin/settings", nil), ownerToken)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected owner to be treated as admin, got %d", resp.StatusCode)
	}

	resp, _ = srv.do(t, httptest.NewRequest(http.MethodPost, "/api/v1/admin/cleanup", nil), ownerToken)
	if resp.StatusCode != fiber.StatusOK || srv.runner.runs != 1 {
		t.Fatalf("expected cleanup to run once, status=%d runs=%d", resp.StatusCode, srv.runner.runs)
	}
}

func TestRoutes_RoleIsReadFromDatabase(t *testing.T) {
	srv := newTestServer(t, defaultRateLimits())
	srv.userToken(t, "owner-1", models.RoleOwner)
	token := srv.userToken(t, "admin-1", models.RoleAdmin)

	if err := srv.users.SetRole(context.Background(), "admin-1", models.RoleUser); err != nil {
		t.Fatalf("SetRole: %v", err)
	}

	resp, _ := srv.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/admin/settings", nil), token)
	if resp.StatusCode != fiber.StatusForbidden {
		t.Fatalf("expected demoted admin to lose access, got %d", resp.StatusCode)
	}
}

func TestRoutes_UserActionRateLimit(t *testing.T) {
	rl := defaultRateLimits()
	rl.User = 2
	srv := newTestServer(t, rl)
	token := srv.userToken(t, "user-1", models.RoleUser)

	create := func() *http.Response {
		resp, _ := srv.do(t, jsonRequest(http.MethodPost, "/api/v1/links", map[string]string{
			"target_url": "https://example.com",
		}), token)
		return resp
	}

	first := create()
	if first.StatusCode != fiber.StatusCreated {
		t.Fatalf("expected 201, got %d", first.StatusCode)
	}
	if first.Header.Get("RateLimit-Limit") != "2" || first.Header.Get("RateLimit-Remaining") != "1" {
		t.Fatalf("unexpected rate limit headers: limit=%q remaining=%q",
			first.Header.Get("RateLimit-Limit"), first.Header.Get("RateLimit-Remaining"))
	}
	if create().StatusCode != fiber.StatusCreated {
		t.Fatal("expected second create to pass")
	}

	srv.clock.Advance(20 * time.Second)
	third := create()
	if third.StatusCode != fiber.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", third.StatusCode)
	}
	if got := third.Header.Get("Retry-After"); got != "40" {
		t.Fatalf("expected Retry-After 40, got %q", got)
	}
	if third.Header.Get("RateLimit-Remaining") != "0" {
		t.Fatalf("expected RateLimit-Remaining 0, got %q", third.Header.Get("RateLimit-Remaining"))
	}

	// Profile updates are counted separately from link creation.
	resp, _ := srv.do(t, jsonRequest(http.MethodPut, "/api/v1/account/profile", map[string]string{
		"display_name": "Ada",
	}), token)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected profile update to pass, got %d", resp.StatusCode)
	}

	srv.clock.Advance(40 * time.Second)
	if create().StatusCode != fiber.StatusCreated {
		t.Fatal("expected create to pass after the window reset")
	}
}

func TestRoutes_PublicLinkResourceRateLimit(t *testing.T) {
	rl := defaultRateLimits()
	rl.Resource = 1
	srv := newTestServer(t, rl)
	token := srv.userToken(t, "user-1", models.RoleUser)

	_, payload := srv.do(t, jsonRequest(http.MethodPost, "/api/v1/links", map[string]string{
		"target_url": "https://example.com/landing",
	}), token)
	data, _ := payload.Data.(map[string]interface{})
	slug, _ := data["slug"].(string)
	if slug == "" {
		t.Fatalf("expected slug in response, got %+v", payload)
	}

	resp, _ := srv.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/s/"+slug, nil), "")
	if resp.StatusCode != fiber.StatusFound {
		t.Fatalf("expected redirect, got %d", resp.StatusCode)
	}
	if resp.Header.Get("Location") != "https://example.com/landing" {
		t.Fatalf("unexpected Location %q", resp.Header.Get("Location"))
	}

	resp, payload = srv.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/s/"+slug, nil), "")
	if resp.StatusCode != fiber.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", resp.StatusCode)
	}
	if resp.Header.Get("Retry-After") != "60" {
		t.Fatalf("expected Retry-After 60, got %q", resp.Header.Get("Retry-After"))
	}
	details, _ := payload.Details.(map[string]interface{})
	limits, _ := details["limits"].([]interface{})
	if len(limits) != 1 || limits[0] != "resource" {
		t.Fatalf("expected resource limiter to be reported, got %v", details)
	}
}

func TestRoutes_UploadLimitExceededIs429WithDetails(t *testing.T) {
	srv := newTestServer(t, defaultRateLimits())
	token := srv.userToken(t, "user-1", models.RoleUser)
	if err := srv.settings.SetMany(context.Background(), map[string]string{"files_limit_user": "1"}); err != nil {
		t.Fatalf("set setting: %v", err)
	}

	resp, _ := srv.do(t, uploadRequest(t, map[string][]byte{"a.txt": []byte("hello")}), token)
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	resp, payload := srv.do(t, uploadRequest(t, map[string][]byte{"b.txt": []byte("again")}), token)
	if resp.StatusCode != fiber.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", resp.StatusCode)
	}
	if payload.Error != "You have reached your file limit (1 of 1 used)" {
		t.Fatalf("unexpected error message %q", payload.Error)
	}
	details, _ := payload.Details.(map[string]interface{})
	if details["kind"] != "files" || details["used"] != float64(1) || details["limit"] != float64(1) {
		t.Fatalf("unexpected details: %v", details)
	}
}

func TestRoutes_UploadRejectsDisallowedType(t *testing.T) {
	srv := newTestServer(t, defaultRateLimits())
	token := srv.userToken(t, "user-1", models.RoleUser)
	if err := srv.settings.SetMany(context.Background(), map[string]string{"allowed_mime_prefixes": "image/"}); err != nil {
		t.Fatalf("set setting: %v", err)
	}

	resp, payload := srv.do(t, uploadRequest(t, map[string][]byte{"a.txt": []byte("plain text")}), token)
	if resp.StatusCode != fiber.StatusUnsupportedMediaType {
		t.Fatalf("expected 415, got %d (%s)", resp.StatusCode, payload.Error)
	}
}

func TestRoutes_UsageOverview(t *testing.T) {
	srv := newTestServer(t, defaultRateLimits())
	token := srv.userToken(t, "user-1", models.RoleUser)

	resp, payload := srv.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/account/usage", nil), token)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	data, _ := payload.Data.(map[string]interface{})
	files, _ := data["files"].(map[string]interface{})
	if files["limit"] != float64(1000) || files["used"] != float64(0) {
		t.Fatalf("unexpected files usage: %v", files)
	}
}

func TestRoutes_AdminSetUserLimits(t *testing.T) {
	srv := newTestServer(t, defaultRateLimits())
	adminToken := srv.userToken(t, "admin-1", models.RoleAdmin)
	srv.userToken(t, "user-1", models.RoleUser)

	resp, _ := srv.do(t, jsonRequest(http.MethodPut, "/api/v1/admin/users/user-1/limits", map[string]interface{}{
		"files_limit": 3,
	}), adminToken)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	resp, _ = srv.do(t, jsonRequest(http.MethodPut, "/api/v1/admin/users/missing/limits", map[string]interface{}{
		"files_limit": 3,
	}), adminToken)
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}

	resp, _ = srv.do(t, jsonRequest(http.MethodPut, "/api/v1/admin/settings", map[string]interface{}{
		"settings": map[string]string{"bogus": "1"},
	}), adminToken)
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("expected 400 for unknown key, got %d", resp.StatusCode)
	}
}
