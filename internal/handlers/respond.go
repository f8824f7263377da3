package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/gideonjohnson/PrepCoach-sub004/internal/services"
)

// respondError is the only place service errors become HTTP responses. Unknown errors
// are logged and reported as a generic 500 so no internal text leaks.
func respondError(c *fiber.Ctx, logger zerolog.Logger, err error) error {
	serviceErr, ok := services.AsError(err)
	if !ok {
		logger.Error().Err(err).Str("path", c.Path()).Msg("unhandled request error")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Internal server error",
			"code":  "INTERNAL",
		})
	}

	status := statusForKind(serviceErr.Kind)
	if status >= fiber.StatusInternalServerError {
		logger.Error().Err(err).Str("path", c.Path()).Str("code", serviceErr.Code).Msg("request failed")
	}
	return c.Status(status).JSON(fiber.Map{
		"error": serviceErr.Message,
		"code":  serviceErr.Code,
	})
}

func statusForKind(kind services.ErrorKind) int {
	switch kind {
	case services.KindUnauthenticated:
		return fiber.StatusUnauthorized
	case services.KindForbidden:
		return fiber.StatusForbidden
	case services.KindNotFound:
		return fiber.StatusNotFound
	case services.KindValidation, services.KindBusinessRule:
		return fiber.StatusBadRequest
	case services.KindConflict:
		return fiber.StatusConflict
	case services.KindExternal:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": message,
		"code":  services.ErrValidation.Code,
	})
}

// currentUser reads the identity AuthRequired stored on the request.
func currentUser(c *fiber.Ctx) (int64, string, error) {
	userIDStr, ok := c.Locals("user_id").(string)
	if !ok {
		return 0, "", services.ErrUnauthenticated
	}
	userID, err := strconv.ParseInt(userIDStr, 10, 64)
	if err != nil || userID <= 0 {
		return 0, "", services.ErrUnauthenticated.WithMessage("Invalid token")
	}
	role, _ := c.Locals("role").(string)
	return userID, role, nil
}

func parseIDParam(c *fiber.Ctx, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Params(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func parsePositiveInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func parseNonNegativeInt64(raw string) (int64, error) {
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || value < 0 {
		return 0, strconv.ErrSyntax
	}
	return value, nil
}
