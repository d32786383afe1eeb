package profile

import (
	"backend-birdtours/internal/auth"
	"backend-birdtours/internal/shared/apperr"

	"github.com/gofiber/fiber/v2"
)

// RegisterRoutes mounts the caller's own profile. r must sit behind
// auth.JWTMiddleware.
func RegisterRoutes(r fiber.Router, svc *Service) {
	r.Get("/", func(c *fiber.Ctx) error {
		p, err := svc.Get(c.Context(), auth.UserID(c))
		if err != nil {
			return apperr.Fiber(err)
		}
		return c.JSON(p)
	})

	r.Put("/", func(c *fiber.Ctx) error {
		var req ProfilePatch
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		p, err := svc.Update(c.Context(), auth.UserID(c), req)
		if err != nil {
			return apperr.Fiber(err)
		}
		return c.JSON(p)
	})
}

func RegisterAdminRoutes(r fiber.Router, svc *Service) {
	r.Get("/", func(c *fiber.Ctx) error {
		profiles, err := svc.List(c.Context())
		if err != nil {
			return apperr.Fiber(err)
		}
		return c.JSON(profiles)
	})

	r.Get("/:id", func(c *fiber.Ctx) error {
		p, err := svc.Get(c.Context(), c.Params("id"))
		if err != nil {
			return apperr.Fiber(err)
		}
		return c.JSON(p)
	})

	r.Put("/:id", func(c *fiber.Ctx) error {
		var req ProfilePatch
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		p, err := svc.Update(c.Context(), c.Params("id"), req)
		if err != nil {
			return apperr.Fiber(err)
		}
		return c.JSON(p)
	})

	r.Delete("/:id", func(c *fiber.Ctx) error {
		if err := svc.Delete(c.Context(), c.Params("id")); err != nil {
			return apperr.Fiber(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}
