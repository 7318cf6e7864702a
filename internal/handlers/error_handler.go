package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"productapi/internal/apperrors"
	"productapi/internal/logger"
)

const genericErrorMessage = "An unexpected error occurred. Please try again later."

// ApiError is the body of every error response.
type ApiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorHandler maps errors returned by handlers and middleware to ApiError
// responses. Unexpected errors are logged and answered with a generic 500.
func ErrorHandler(log *logger.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status, body := toApiError(err)
		if status >= fiber.StatusInternalServerError {
			log.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
		} else {
			log.Debug("request rejected", "method", c.Method(), "path", c.Path(), "status", status, "error", err)
		}
		return c.Status(status).JSON(body)
	}
}

func toApiError(err error) (int, ApiError) {
	var (
		verr  *apperrors.ValidationError
		nferr *apperrors.NotFoundError
		ferr  *fiber.Error
	)
	switch {
	case errors.As(err, &verr):
		return fiber.StatusBadRequest, ApiError{
			Code:    statusCode(fiber.StatusBadRequest),
			Message: "One or more validation errors occurred.",
			Details: verr.Errors,
		}
	case errors.As(err, &nferr):
		return fiber.StatusNotFound, ApiError{
			Code:    statusCode(fiber.StatusNotFound),
			Message: nferr.Error() + ".",
		}
	case errors.As(err, &ferr) && ferr.Code < fiber.StatusInternalServerError:
		return ferr.Code, ApiError{
			Code:    statusCode(ferr.Code),
			Message: ferr.Message,
		}
	default:
		return fiber.StatusInternalServerError, ApiError{
			Code:    statusCode(fiber.StatusInternalServerError),
			Message: genericErrorMessage,
		}
	}
}

// statusCode turns a status into its CamelCase name, e.g. 404 -> "NotFound".
func statusCode(status int) string {
	return strings.ReplaceAll(http.StatusText(status), " ", "")
}
