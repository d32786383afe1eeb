package trip

import (
	"backend-birdtours/internal/shared/apperr"

	"github.com/gofiber/fiber/v2"
)

// RegisterRoutes mounts the customer catalogue.
func RegisterRoutes(r fiber.Router, svc *Service) {
	r.Get("/", func(c *fiber.Ctx) error {
		trips, err := svc.ListActive(c.Context(), c.Query("region"))
		if err != nil {
			return apperr.Fiber(err)
		}
		return c.JSON(trips)
	})

	r.Get("/:slug", func(c *fiber.Ctx) error {
		trip, err := svc.GetActiveBySlug(c.Context(), c.Params("slug"))
		if err != nil {
			return apperr.Fiber(err)
		}
		return c.JSON(trip)
	})
}

// RegisterAdminRoutes mounts operator management of the catalogue.
func RegisterAdminRoutes(r fiber.Router, svc *Service) {
	r.Get("/", func(c *fiber.Ctx) error {
		trips, err := svc.ListAll(c.Context())
		if err != nil {
			return apperr.Fiber(err)
		}
		return c.JSON(trips)
	})

	r.Post("/", func(c *fiber.Ctx) error {
		var req Trip
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		trip, err := svc.CreateTrip(c.Context(), req)
		if err != nil {
			return apperr.Fiber(err)
		}
		return c.Status(fiber.StatusCreated).JSON(trip)
	})

	r.Put("/:id", func(c *fiber.Ctx) error {
		var req TripPatch
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		trip, err := svc.UpdateTrip(c.Context(), c.Params("id"), req)
		if err != nil {
			return apperr.Fiber(err)
		}
		return c.JSON(trip)
	})

	r.Delete("/:id", func(c *fiber.Ctx) error {
		if err := svc.DeleteTrip(c.Context(), c.Params("id")); err != nil {
			return apperr.Fiber(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}
