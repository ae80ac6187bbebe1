package handler

import (
	"time"

	"github.com/SecuShare/filevault/internal/service"
	"github.com/SecuShare/filevault/pkg/response"
	"github.com/gofiber/fiber/v2"
)

type LinkHandler struct {
	linkSvc *service.ShortLinkService
}

func NewLinkHandler(linkSvc *service.ShortLinkService) *LinkHandler {
	return &LinkHandler{linkSvc: linkSvc}
}

type createLinkRequest struct {
	TargetURL string  `json:"target_url"`
	Password  *string `json:"password"`
	ExpiresAt *string `json:"expires_at"`
}

func (h *LinkHandler) Create(c *fiber.Ctx) error {
	var req createLinkRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}

	svcReq := service.CreateShortLinkRequest{
		TargetURL: req.TargetURL,
		Password:  req.Password,
	}
	if req.ExpiresAt != nil && *req.ExpiresAt != "" {
		expiresAt, err := time.Parse(time.RFC3339, *req.ExpiresAt)
		if err != nil {
			return response.BadRequest(c, "expires_at must be an RFC 3339 timestamp")
		}
		svcReq.ExpiresAt = &expiresAt
	}

	link, err := h.linkSvc.Create(c.UserContext(), localUserID(c), localRole(c), svcReq)
	if err != nil {
		return writeServiceError(c, err, "failed to create short link")
	}

	recordShortLinkCreated()
	return response.Created(c, link)
}

func (h *LinkHandler) List(c *fiber.Ctx) error {
	links, err := h.linkSvc.List(c.UserContext(), localUserID(c))
	if err != nil {
		return writeServiceError(c, err, "failed to retrieve short links")
	}
	return response.Success(c, links)
}

func (h *LinkHandler) Delete(c *fiber.Ctx) error {
	if err := h.linkSvc.Delete(c.UserContext(), c.Params("slug"), localUserID(c)); err != nil {
		return writeServiceError(c, err, "failed to delete short link")
	}
	return response.Success(c, map[string]string{"message": "short link deleted"})
}

// Resolve redirects to the target of an unprotected link.
func (h *LinkHandler) Resolve(c *fiber.Ctx) error {
	target, err := h.linkSvc.Resolve(c.UserContext(), c.Params("slug"))
	if err != nil {
		return writeServiceError(c, err, "failed to resolve short link")
	}
	return c.Redirect(target, fiber.StatusFound)
}

// Unlock returns the target of a password-protected link.
func (h *LinkHandler) Unlock(c *fiber.Ctx) error {
	var req struct {
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}

	target, err := h.linkSvc.Unlock(c.UserContext(), c.Params("slug"), req.Password)
	if err != nil {
		return writeServiceError(c, err, "failed to unlock short link")
	}
	return response.Success(c, map[string]string{"target_url": target})
}
