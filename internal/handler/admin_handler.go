package handler

import (
	"context"

	"github.com/SecuShare/filevault/internal/models"
	"github.com/SecuShare/filevault/internal/service"
	"github.com/SecuShare/filevault/pkg/response"
	"github.com/gofiber/fiber/v2"
)

// MaintenanceRunner runs the background maintenance jobs immediately.
type MaintenanceRunner interface {
	RunNow(ctx context.Context)
}

type AdminHandler struct {
	adminSvc    *service.AdminService
	maintenance MaintenanceRunner
}

func NewAdminHandler(adminSvc *service.AdminService, maintenance MaintenanceRunner) *AdminHandler {
	return &AdminHandler{adminSvc: adminSvc, maintenance: maintenance}
}

func (h *AdminHandler) GetSettings(c *fiber.Ctx) error {
	settings, err := h.adminSvc.GetAllSettings(c.UserContext())
	if err != nil {
		return writeServiceError(c, err, "failed to load settings")
	}
	return response.Success(c, settings)
}

// UpdateSettings modifies server defaults. Values are non-negative integers
// or "unlimited" for numeric keys, comma-separated lists otherwise.
func (h *AdminHandler) UpdateSettings(c *fiber.Ctx) error {
	var req struct {
		Settings map[string]string `json:"settings"`
	}
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}

	if err := h.adminSvc.UpdateSettings(c.UserContext(), localUserID(c), req.Settings); err != nil {
		return writeServiceError(c, err, "failed to update settings")
	}
	return response.Success(c, map[string]string{"message": "settings updated"})
}

// ListUsers returns all users with usage info.
func (h *AdminHandler) ListUsers(c *fiber.Ctx) error {
	users, err := h.adminSvc.ListUsers(c.UserContext())
	if err != nil {
		return writeServiceError(c, err, "failed to list users")
	}
	return response.Success(c, users)
}

// SetUserLimits replaces the target user's overrides. Omitted, null or zero
// fields fall back to the role default.
func (h *AdminHandler) SetUserLimits(c *fiber.Ctx) error {
	var overrides models.LimitOverrides
	if err := c.BodyParser(&overrides); err != nil {
		return response.BadRequest(c, "invalid request body")
	}

	if err := h.adminSvc.SetUserLimits(c.UserContext(), localUserID(c), c.Params("id"), overrides); err != nil {
		return writeServiceError(c, err, "failed to update user limits")
	}
	return response.Success(c, map[string]string{"message": "user limits updated"})
}

func (h *AdminHandler) SetUserRole(c *fiber.Ctx) error {
	var req struct {
		Role string `json:"role"`
	}
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}

	if err := h.adminSvc.SetUserRole(c.UserContext(), localUserID(c), c.Params("id"), models.Role(req.Role)); err != nil {
		return writeServiceError(c, err, "failed to update user role")
	}
	return response.Success(c, map[string]string{"message": "user role updated"})
}

// DeleteUser removes a user and their files.
func (h *AdminHandler) DeleteUser(c *fiber.Ctx) error {
	targetID := c.Params("id")
	if targetID == "" {
		return response.BadRequest(c, "user ID is required")
	}

	if err := h.adminSvc.DeleteUser(c.UserContext(), targetID, localUserID(c)); err != nil {
		return writeServiceError(c, err, "failed to delete user")
	}
	return response.Success(c, map[string]string{"message": "user deleted"})
}

// TriggerCleanup runs the same jobs as the background scheduler.
func (h *AdminHandler) TriggerCleanup(c *fiber.Ctx) error {
	if h.maintenance == nil {
		return response.Error(c, fiber.StatusServiceUnavailable, "maintenance is not configured")
	}
	h.maintenance.RunNow(c.UserContext())
	return response.Success(c, map[string]string{"message": "cleanup completed"})
}
