package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/cleared-dev/banktx/internal/importer"
	"github.com/cleared-dev/banktx/internal/logger"
)

// APIError is the JSON body of every failed request.
type APIError struct {
	Message string   `json:"message"`
	Details []string `json:"details"`
}

const (
	msgValidation = "Validation failed"
	msgUnexpected = "Unexpected server error"
)

// handleError maps handler errors to responses. Only validation details are
// ever returned to the client.
func handleError(c *fiber.Ctx, err error) error {
	if verr, ok := importer.AsValidationError(err); ok {
		details := verr.Details
		if details == nil {
			details = []string{}
		}
		return c.Status(fiber.StatusBadRequest).JSON(APIError{Message: msgValidation, Details: details})
	}

	var ferr *fiber.Error
	if errors.As(err, &ferr) && ferr.Code < fiber.StatusInternalServerError {
		return c.Status(ferr.Code).JSON(APIError{Message: ferr.Message, Details: []string{}})
	}

	log := logger.FromContext(c.UserContext())
	log.Error().Err(err).Str("path", c.Path()).Msg("unexpected error")
	return c.Status(fiber.StatusInternalServerError).JSON(APIError{Message: msgUnexpected, Details: []string{}})
}
