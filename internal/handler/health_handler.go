package handler

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gofiber/fiber/v2"
)

const readinessTimeout = 3 * time.Second

// HealthCheck is an extra readiness probe, for example the Redis counter
// store.
type HealthCheck func(ctx context.Context) error

// HealthHandler handles health check endpoints
type HealthHandler struct {
	db          *sql.DB
	storagePath string
	extra       map[string]HealthCheck
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db *sql.DB, storagePath string) *HealthHandler {
	return &HealthHandler{
		db:          db,
		storagePath: storagePath,
		extra:       make(map[string]HealthCheck),
	}
}

// AddCheck registers a named readiness probe.
func (h *HealthHandler) AddCheck(name string, check HealthCheck) {
	h.extra[name] = check
}

// Liveness returns basic liveness status (is the server running?)
func (h *HealthHandler) Liveness(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "ok",
	})
}

// Readiness returns readiness status (can the server handle requests?)
func (h *HealthHandler) Readiness(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), readinessTimeout)
	defer cancel()

	checks := make(map[string]interface{})
	allHealthy := true
	record := func(name string, err error) {
		if err != nil {
			checks[name] = fiber.Map{
				"status": "unhealthy",
				"error":  err.Error(),
			}
			allHealthy = false
			return
		}
		checks[name] = fiber.Map{"status": "healthy"}
	}

	record("database", h.checkDatabase(ctx))
	record("storage", h.checkStorage())

	names := make([]string, 0, len(h.extra))
	for name := range h.extra {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		record(name, h.extra[name](ctx))
	}

	status := "ok"
	statusCode := fiber.StatusOK
	if !allHealthy {
		status = "degraded"
		statusCode = fiber.StatusServiceUnavailable
	}

	return c.Status(statusCode).JSON(fiber.Map{
		"status": status,
		"checks": checks,
	})
}

// checkDatabase verifies database connectivity
func (h *HealthHandler) checkDatabase(ctx context.Context) error {
	if h.db == nil {
		return errDatabaseUnavailable
	}
	return h.db.PingContext(ctx)
}

// checkStorage verifies storage directory is accessible and writable
func (h *HealthHandler) checkStorage() error {
	if err := os.MkdirAll(h.storagePath, 0750); err != nil {
		return errStorageUnavailable
	}

	testFile := filepath.Join(h.storagePath, ".healthcheck")
	f, err := os.Create(testFile) // #nosec G304 -- fixed name under the configured storage path.
	if err != nil {
		return errStorageUnavailable
	}
	f.Close()

	os.Remove(testFile)
	return nil
}
