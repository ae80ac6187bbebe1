package handler

import (
	"github.com/SecuShare/filevault/internal/service"
	"github.com/SecuShare/filevault/pkg/response"
	"github.com/gofiber/fiber/v2"
)

type AccountHandler struct {
	accountSvc *service.AccountService
}

func NewAccountHandler(accountSvc *service.AccountService) *AccountHandler {
	return &AccountHandler{accountSvc: accountSvc}
}

func (h *AccountHandler) Me(c *fiber.Ctx) error {
	user, err := h.accountSvc.GetProfile(c.UserContext(), localUserID(c))
	if err != nil {
		return writeServiceError(c, err, "failed to load profile")
	}
	return response.Success(c, user)
}

func (h *AccountHandler) UpdateProfile(c *fiber.Ctx) error {
	var req struct {
		DisplayName string `json:"display_name"`
	}
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}

	user, err := h.accountSvc.UpdateDisplayName(c.UserContext(), localUserID(c), req.DisplayName)
	if err != nil {
		return writeServiceError(c, err, "failed to update profile")
	}
	return response.Success(c, user)
}

// Usage reports "X of Y used" for every limit that applies to the caller.
func (h *AccountHandler) Usage(c *fiber.Ctx) error {
	overview, err := h.accountSvc.Overview(c.UserContext(), localUserID(c), localRole(c))
	if err != nil {
		return writeServiceError(c, err, "failed to load usage")
	}
	return response.Success(c, overview)
}
