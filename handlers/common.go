// handlers/common.go
package handlers

import (
	"errors"
	"strconv"

	"plane-spot-system/logger"
	"plane-spot-system/services"

	"github.com/gofiber/fiber/v2"
)

var errorStatus = map[services.ErrorKind]int{
	services.KindNotFound:            fiber.StatusNotFound,
	services.KindQuotaExceeded:       fiber.StatusTooManyRequests,
	services.KindNoWalletAddress:     fiber.StatusPreconditionFailed,
	services.KindUpstreamUnavailable: fiber.StatusBadGateway,
	services.KindUpstreamTimeout:     fiber.StatusGatewayTimeout,
	services.KindValidation:          fiber.StatusBadRequest,
	services.KindAlreadyGuessed:      fiber.StatusConflict,
	services.KindForbidden:           fiber.StatusForbidden,
}

// respondError writes an AppError as a structured payload; anything else is a 500.
func respondError(c *fiber.Ctx, err error) error {
	var appErr *services.AppError
	if !errors.As(err, &appErr) {
		log := logger.WithComponent("http")
		log.Error().Err(err).Str("path", c.Path()).Msg("❌ unhandled error")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}

	status, ok := errorStatus[appErr.Kind]
	if !ok {
		status = fiber.StatusInternalServerError
	}
	body := fiber.Map{
		"error": appErr.Message,
		"code":  appErr.Kind,
	}
	if appErr.Field != "" {
		body["field"] = appErr.Field
	}
	if appErr.NextReset != nil {
		body["next_reset"] = appErr.NextReset
	}
	if appErr.Kind == services.KindUpstreamUnavailable || appErr.Kind == services.KindUpstreamTimeout {
		body["retry"] = true
	}
	return c.Status(status).JSON(body)
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": msg,
		"code":  services.KindValidation,
	})
}

func queryInt(c *fiber.Ctx, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return def
	}
	return v
}

func queryFloat(c *fiber.Ctx, key string) (float64, bool) {
	v, err := strconv.ParseFloat(c.Query(key), 64)
	return v, err == nil
}
