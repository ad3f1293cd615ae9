// handlers/spot_routes.go
package handlers

import (
	"plane-spot-system/middleware"
	"plane-spot-system/services"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// SetupSpotRoutes mounts spotting, guessing and flight lookup.
func SetupSpotRoutes(router fiber.Router, spots *services.SpotService, flights *services.FlightService) {
	// public: no user context needed
	router.Get("/teleport/locations", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"locations": services.TeleportLocations()})
	})

	router.Get("/spots/latest", func(c *fiber.Ctx) error {
		spot, err := spots.LatestSpot(c.UserContext())
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(spot)
	})

	secured := middleware.UserContextMiddleware()

	router.Get("/flights/nearby", secured, func(c *fiber.Ctx) error {
		if flights == nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "flight lookup not configured"})
		}
		lat, latOK := queryFloat(c, "lat")
		lon, lonOK := queryFloat(c, "lon")
		if slugID := c.Query("teleport"); slugID != "" {
			loc, ok := services.LookupTeleport(slugID)
			if !ok {
				return badRequest(c, "unknown teleport location")
			}
			lat, lon, latOK, lonOK = loc.Latitude, loc.Longitude, true, true
		}
		if !latOK || !lonOK {
			return badRequest(c, "lat and lon query parameters are required")
		}

		list, err := flights.Nearby(c.UserContext(), middleware.UserID(c), lat, lon)
		if err != nil {
			return respondError(c, err)
		}
		views := make([]services.FlightView, len(list))
		for i := range list {
			views[i] = services.NewFlightView(list[i])
		}
		return c.JSON(fiber.Map{"flights": views, "count": len(views)})
	})

	router.Post("/spots", secured, func(c *fiber.Ctx) error {
		var in services.SpotInput
		if err := c.BodyParser(&in); err != nil {
			return badRequest(c, "invalid request body")
		}
		in.UserID = middleware.UserID(c)

		result, err := spots.CreateSpot(c.UserContext(), in)
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(result)
	})

	router.Post("/spots/:id/guess", secured, func(c *fiber.Ctx) error {
		spotID := c.Params("id")
		if _, err := uuid.Parse(spotID); err != nil {
			return badRequest(c, "invalid spot id")
		}
		var g services.Guess
		if err := c.BodyParser(&g); err != nil {
			return badRequest(c, "invalid request body")
		}

		view, result, err := spots.SubmitGuess(c.UserContext(), middleware.UserID(c), spotID, g)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"spot": view, "result": result})
	})

	router.Get("/user/spots", secured, func(c *fiber.Ctx) error {
		page, err := spots.ListUserSpots(c.UserContext(), middleware.UserID(c), queryInt(c, "limit", 20), queryInt(c, "offset", 0))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(page)
	})
}
