package booking

import (
	"backend-birdtours/internal/auth"
	"backend-birdtours/internal/shared/apperr"

	"github.com/gofiber/fiber/v2"
)

// RegisterRoutes mounts the caller's bookings. r must sit behind
// auth.JWTMiddleware.
func RegisterRoutes(r fiber.Router, svc *Service) {
	r.Get("/", func(c *fiber.Ctx) error {
		bookings, err := svc.List(c.Context(), auth.UserID(c), Status(c.Query("status")))
		if err != nil {
			return apperr.Fiber(err)
		}
		return c.JSON(bookings)
	})

	r.Get("/stats", func(c *fiber.Ctx) error {
		stats, err := svc.Stats(c.Context(), auth.UserID(c))
		if err != nil {
			return apperr.Fiber(err)
		}
		return c.JSON(stats)
	})

	r.Get("/:id", func(c *fiber.Ctx) error {
		b, err := svc.Get(c.Context(), auth.UserID(c), c.Params("id"))
		if err != nil {
			return apperr.Fiber(err)
		}
		return c.JSON(b)
	})

	r.Post("/", func(c *fiber.Ctx) error {
		var req CreateRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		b, err := svc.Create(c.Context(), auth.UserID(c), req)
		if err != nil {
			return apperr.Fiber(err)
		}
		return c.Status(fiber.StatusCreated).JSON(b)
	})

	r.Patch("/:id", func(c *fiber.Ctx) error {
		var req Patch
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		b, err := svc.Update(c.Context(), auth.UserID(c), c.Params("id"), req)
		if err != nil {
			return apperr.Fiber(err)
		}
		return c.JSON(b)
	})

	r.Delete("/:id", func(c *fiber.Ctx) error {
		if err := svc.Delete(c.Context(), auth.UserID(c), c.Params("id")); err != nil {
			return apperr.Fiber(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}

func RegisterAdminRoutes(r fiber.Router, svc *Service) {
	r.Get("/", func(c *fiber.Ctx) error {
		bookings, err := svc.ListAll(c.Context(), Status(c.Query("status")))
		if err != nil {
			return apperr.Fiber(err)
		}
		return c.JSON(bookings)
	})

	r.Patch("/:id", func(c *fiber.Ctx) error {
		var req Patch
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		b, err := svc.AdminUpdate(c.Context(), c.Params("id"), req)
		if err != nil {
			return apperr.Fiber(err)
		}
		return c.JSON(b)
	})
}
