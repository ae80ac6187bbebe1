package service

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/SecuShare/filevault/internal/config"
	"github.com/SecuShare/filevault/internal/models"
	"github.com/SecuShare/filevault/internal/quota"
	"github.com/SecuShare/filevault/internal/repository"
	"github.com/SecuShare/filevault/pkg/testutil"
)

type notification struct {
	userID    string
	limitName string
	details   string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notification
}

func (r *recordingNotifier) Notify(userID, limitName, details string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, notification{userID: userID, limitName: limitName, details: details})
}

func (r *recordingNotifier) all() []notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notification(nil), r.sent...)
}

// testEnv wires the real repositories and quota stack over a temp database.
type testEnv struct {
	db           *sql.DB
	storagePath  string
	userRepo     *repository.UserRepository
	fileRepo     *repository.FileRepository
	linkRepo     *repository.ShortLinkRepository
	settingsRepo *repository.SettingsRepository
	notifier     *recordingNotifier
	resolver     *quota.Resolver
	accountant   *quota.Accountant
	policy       *quota.Policy

	files    *FileService
	links    *ShortLinkService
	accounts *AccountService
	admin    *AdminService
	auth     *AuthService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, cfg, cleanup := testutil.SetupTest(t)
	t.Cleanup(cleanup)

	env := &testEnv{
		db:           db,
		storagePath:  cfg.StoragePath,
		userRepo:     repository.NewUserRepository(db),
		fileRepo:     repository.NewFileRepository(db),
		linkRepo:     repository.NewShortLinkRepository(db),
		settingsRepo: repository.NewSettingsRepository(db),
		notifier:     &recordingNotifier{},
	}
	env.resolver = quota.NewResolver(env.userRepo, env.settingsRepo)
	env.accountant = quota.NewAccountant(repository.NewUsageRepository(db), quota.WithLocation(time.UTC))
	env.policy = quota.NewPolicy(env.resolver, env.accountant, env.notifier)

	env.files = NewFileService(env.fileRepo, env.settingsRepo, env.policy, cfg.StoragePath)
	env.links = NewShortLinkService(env.linkRepo, env.policy)
	env.accounts = NewAccountService(env.userRepo, env.resolver, env.accountant, time.UTC)
	env.admin = NewAdminService(env.settingsRepo, env.userRepo)
	env.auth = NewAuthService(env.userRepo, &config.Config{
		Auth: config.AuthConfig{JWTSecret: "test-secret-key-for-testing", TokenTTL: time.Hour},
	})
	return env
}

func (e *testEnv) createUser(t *testing.T, id string, role models.Role) {
	t.Helper()
	if err := e.userRepo.Create(&models.User{
		ID:        id,
		Email:     id + "@example.com",
		Role:      role,
		CreatedAt: time.Now(),
	}); err != nil {
		t.Fatalf("create user %s: %v", id, err)
	}
}

func (e *testEnv) setSettings(t *testing.T, values map[string]string) {
	t.Helper()
	if err := e.settingsRepo.SetMany(context.Background(), values); err != nil {
		t.Fatalf("set settings: %v", err)
	}
}

func int64Ptr(v int64) *int64 { return &v }
