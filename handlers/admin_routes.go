// handlers/admin_routes.go
package handlers

import (
	"plane-spot-system/middleware"
	"plane-spot-system/services"

	"github.com/gofiber/fiber/v2"
)

// SetupAdminRoutes mounts operator-only maintenance routes under /s/admin.
func SetupAdminRoutes(router fiber.Router, users *services.UserService) {
	admin := router.Group("/s/admin", middleware.UserContextMiddleware(), middleware.RequireRole("admin"))

	admin.Post("/reset/daily", func(c *fiber.Ctx) error {
		n, err := users.ResetAllDaily(c.UserContext(), true)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"reset": "daily", "users": n})
	})

	admin.Post("/reset/weekly", func(c *fiber.Ctx) error {
		n, err := users.ResetAllWeekly(c.UserContext())
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"reset": "weekly", "users": n})
	})

	admin.Post("/xp/grant", func(c *fiber.Ctx) error {
		var body struct {
			UserID string `json:"user_id"`
			XP     int64  `json:"xp"`
			Reason string `json:"reason"`
		}
		if err := c.BodyParser(&body); err != nil {
			return badRequest(c, "invalid request body")
		}
		if err := users.GrantXP(c.UserContext(), body.UserID, body.XP, body.Reason); err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"granted": body.XP, "user_id": body.UserID})
	})
}
