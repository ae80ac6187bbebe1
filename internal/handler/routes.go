package handler

import (
	"github.com/SecuShare/filevault/internal/config"
	"github.com/SecuShare/filevault/internal/ratelimit"
	"github.com/SecuShare/filevault/internal/service"
	"github.com/gofiber/fiber/v2"
)

const jsonBodyLimitBytes = 1 * 1024 * 1024

// Routes groups everything RegisterRoutes mounts.
type Routes struct {
	Auth      *service.AuthService
	Limiter   *ratelimit.Limiter
	RateLimit config.RateLimitConfig

	Files   *FileHandler
	Links   *LinkHandler
	Account *AccountHandler
	Admin   *AdminHandler
}

// RegisterRoutes mounts the API under /api/v1. Uploads, link creation and
// profile changes are throttled per IP and per user+action; public link
// resolution per IP and per link.
func RegisterRoutes(app *fiber.App, r Routes) {
	jsonBodyLimit := BodyLimitMiddleware(jsonBodyLimitBytes)
	requireAuth := AuthMiddleware(r.Auth)
	limit := func(rules ...Rule) fiber.Handler {
		return RateLimitMiddleware(r.Limiter, rules...)
	}
	ip := IPRule(r.RateLimit)

	api := app.Group("/api/v1")

	files := api.Group("/files", requireAuth)
	files.Post("/", limit(ip, UserActionRule(r.RateLimit, "upload")), r.Files.Upload)
	files.Get("/", r.Files.List)
	files.Get("/:id", r.Files.Download)
	files.Delete("/:id", r.Files.Delete)

	links := api.Group("/links", requireAuth)
	links.Post("/", jsonBodyLimit, limit(ip, UserActionRule(r.RateLimit, "link")), r.Links.Create)
	links.Get("/", r.Links.List)
	links.Delete("/:slug", r.Links.Delete)

	public := api.Group("/s")
	public.Get("/:slug", limit(ip, ResourceRule(r.RateLimit)), r.Links.Resolve)
	public.Post("/:slug/unlock", jsonBodyLimit, limit(ip, ResourceRule(r.RateLimit)), r.Links.Unlock)

	account := api.Group("/account", requireAuth)
	account.Get("/", r.Account.Me)
	account.Put("/profile", jsonBodyLimit, limit(ip, UserActionRule(r.RateLimit, "profile")), r.Account.UpdateProfile)
	account.Get("/usage", r.Account.Usage)

	admin := api.Group("/admin", requireAuth, AdminMiddleware())
	admin.Get("/settings", r.Admin.GetSettings)
	admin.Put("/settings", jsonBodyLimit, r.Admin.UpdateSettings)
	admin.Get("/users", r.Admin.ListUsers)
	admin.Put("/users/:id/limits", jsonBodyLimit, r.Admin.SetUserLimits)
	admin.Put("/users/:id/role", jsonBodyLimit, r.Admin.SetUserRole)
	admin.Delete("/users/:id", r.Admin.DeleteUser)
	admin.Post("/cleanup", r.Admin.TriggerCleanup)
}
