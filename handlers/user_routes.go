// handlers/user_routes.go
package handlers

import (
	"plane-spot-system/middleware"
	"plane-spot-system/services"

	"github.com/gofiber/fiber/v2"
)

// UserDeps groups the services behind the player-facing routes.
type UserDeps struct {
	Users         *services.UserService
	Badges        *services.BadgeService
	Achievements  *services.AchievementService
	Wallets       *services.WalletService
	Subscriptions *services.SubscriptionService
}

// SetupUserRoutes mounts profile, progression, social and subscription routes.
func SetupUserRoutes(router fiber.Router, d UserDeps) {
	router.Get("/leaderboard/weekly", func(c *fiber.Ctx) error {
		entries, err := d.Users.WeeklyLeaderboard(c.UserContext(), queryInt(c, "limit", 20))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"entries": entries})
	})

	secured := middleware.UserContextMiddleware()

	router.Get("/user/profile", secured, func(c *fiber.Ctx) error {
		profile, err := d.Users.GetProfile(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(profile)
	})

	router.Get("/user/xp", secured, func(c *fiber.Ctx) error {
		profile, err := d.Users.GetProfile(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{
			"total_xp":        profile.TotalXP,
			"weekly_xp":       profile.WeeklyXP,
			"spots_remaining": profile.SpotsRemaining,
			"daily_limit":     profile.DailySpotLimit,
			"premium":         profile.Premium,
			"current_streak":  profile.CurrentStreak,
			"next_reset":      profile.NextReset,
		})
	})

	router.Get("/user/badges", secured, func(c *fiber.Ctx) error {
		badges, err := d.Badges.ListBadges(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"badges": badges})
	})

	router.Get("/user/achievements", secured, func(c *fiber.Ctx) error {
		list, err := d.Achievements.RefreshAchievements(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"achievements": list})
	})

	router.Put("/user/wallet", secured, func(c *fiber.Ctx) error {
		var body struct {
			Chain   string `json:"chain"`
			Address string `json:"address"`
		}
		if err := c.BodyParser(&body); err != nil {
			return badRequest(c, "invalid request body")
		}
		userID := middleware.UserID(c)
		if _, err := d.Users.Get(c.UserContext(), userID); err != nil {
			return respondError(c, err)
		}
		wallet, err := d.Wallets.LinkWallet(c.UserContext(), userID, body.Chain, body.Address)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(wallet)
	})

	router.Post("/users/:id/follow", secured, func(c *fiber.Ctx) error {
		if err := d.Users.Follow(c.UserContext(), middleware.UserID(c), c.Params("id")); err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"following": true})
	})

	router.Delete("/users/:id/follow", secured, func(c *fiber.Ctx) error {
		if err := d.Users.Unfollow(c.UserContext(), middleware.UserID(c), c.Params("id")); err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"following": false})
	})

	router.Post("/subscription/confirm", secured, func(c *fiber.Ctx) error {
		var body struct {
			PaymentID string `json:"payment_id"`
		}
		if err := c.BodyParser(&body); err != nil {
			return badRequest(c, "invalid request body")
		}
		sub, err := d.Subscriptions.Confirm(c.UserContext(), middleware.UserID(c), body.PaymentID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"subscription": sub, "premium": true})
	})
}
