package handler

import (
	"errors"

	"github.com/SecuShare/filevault/internal/quota"
	"github.com/SecuShare/filevault/internal/ratelimit"
	"github.com/SecuShare/filevault/internal/service"
	"github.com/SecuShare/filevault/pkg/logger"
	"github.com/SecuShare/filevault/pkg/response"
	"github.com/gofiber/fiber/v2"
)

var (
	errDatabaseUnavailable = errors.New("database not initialized")
	errStorageUnavailable  = errors.New("storage not accessible")
)

// writeServiceError maps service and admission errors onto the response
// envelope. Anything unrecognised is logged and reported as fallback.
func writeServiceError(c *fiber.Ctx, err error, fallback string) error {
	var limitErr *quota.LimitExceededError
	if errors.As(err, &limitErr) {
		return response.TooManyRequests(c, limitErr.Message, limitErr.Details())
	}

	var rateErr *ratelimit.RateLimitedError
	if errors.As(err, &rateErr) {
		return writeRateLimited(c, rateErr.Decision)
	}

	var rejected *service.UploadRejectedError
	if errors.As(err, &rejected) {
		status := fiber.StatusBadRequest
		if rejected.UnsupportedType {
			status = fiber.StatusUnsupportedMediaType
		}
		return response.ErrorWithDetails(c, status, rejected.Error(), fiber.Map{"filename": rejected.Filename})
	}

	switch {
	case errors.Is(err, service.ErrInvalidInput), errors.Is(err, service.ErrNoFiles):
		return response.BadRequest(c, err.Error())
	case errors.Is(err, service.ErrNotFound),
		errors.Is(err, service.ErrFileNotFound),
		errors.Is(err, service.ErrLinkNotFound):
		return response.NotFound(c, err.Error())
	case errors.Is(err, service.ErrLinkExpired):
		return response.Gone(c, err.Error())
	case errors.Is(err, service.ErrPasswordRequired), errors.Is(err, service.ErrInvalidPassword):
		return response.Unauthorized(c, err.Error())
	case errors.Is(err, service.ErrForbidden):
		return response.Forbidden(c, err.Error())
	case errors.Is(err, service.ErrUnauthorized):
		return response.Unauthorized(c, err.Error())
	}

	logger.Error().Err(err).
		Str("path", c.Path()).
		Str("request_id", requestID(c)).
		Msg(fallback)
	return response.InternalError(c, fallback)
}

func requestID(c *fiber.Ctx) string {
	id, _ := c.Locals(localsRequestID).(string)
	return id
}
