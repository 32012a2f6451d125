package httpx

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/noteduco342/campus-stories-backend/internal/service"
)

type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func requestID(c *fiber.Ctx) string {
	if v := c.Locals("requestid"); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func Error(c *fiber.Ctx, status int, code string, message string) error {
	if message == "" {
		message = "Request failed"
	}
	return c.Status(status).JSON(ErrorResponse{
		Error:     message,
		Code:      code,
		RequestID: requestID(c),
	})
}

func BadRequest(c *fiber.Ctx, code string, message string) error {
	return Error(c, fiber.StatusBadRequest, code, message)
}

func Unauthorized(c *fiber.Ctx, code string, message string) error {
	return Error(c, fiber.StatusUnauthorized, code, message)
}

func Forbidden(c *fiber.Ctx, code string, message string) error {
	return Error(c, fiber.StatusForbidden, code, message)
}

func NotFound(c *fiber.Ctx, code string, message string) error {
	return Error(c, fiber.StatusNotFound, code, message)
}

func Internal(c *fiber.Ctx, code string) error {
	return Error(c, fiber.StatusInternalServerError, code, "Internal server error")
}

func ServiceUnavailable(c *fiber.Ctx, code string, message string) error {
	return Error(c, fiber.StatusServiceUnavailable, code, message)
}

// FromServiceError maps the service layer's error taxonomy onto HTTP statuses:
// validation errors are the caller's fault, authorization errors are forbidden,
// transient store errors are retryable.
func FromServiceError(c *fiber.Ctx, err error) error {
	var valErr *service.ValidationError
	if errors.As(err, &valErr) {
		return BadRequest(c, "invalid_"+valErr.Field, valErr.Error())
	}

	var authzErr *service.AuthorizationError
	if errors.As(err, &authzErr) {
		return Forbidden(c, "forbidden", authzErr.Error())
	}

	if errors.Is(err, service.ErrStorageNotConfigured) {
		return ServiceUnavailable(c, "storage_unavailable", "Media storage is not configured")
	}

	var storeErr *service.TransientStoreError
	if errors.As(err, &storeErr) {
		return ServiceUnavailable(c, "store_unavailable", "Temporary storage failure, retry shortly")
	}

	return Internal(c, "internal_error")
}

func LocalUint(c *fiber.Ctx, key string) (uint, error) {
	v := c.Locals(key)
	if v == nil {
		return 0, fmt.Errorf("missing local %s", key)
	}
	u, ok := v.(uint)
	if !ok {
		return 0, fmt.Errorf("invalid local %s", key)
	}
	return u, nil
}
