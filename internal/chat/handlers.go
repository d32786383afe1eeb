package chat

import (
	"backend-birdtours/internal/auth"
	"backend-birdtours/internal/shared/apperr"

	"github.com/gofiber/fiber/v2"
)

// RegisterRoutes mounts booking threads under a bookings group that sits
// behind auth.JWTMiddleware.
func RegisterRoutes(r fiber.Router, svc *Service) {
	r.Get("/:id/messages", func(c *fiber.Ctx) error {
		messages, err := svc.List(c.Context(), auth.UserID(c), c.Params("id"))
		if err != nil {
			return apperr.Fiber(err)
		}
		return c.JSON(messages)
	})

	r.Post("/:id/messages", func(c *fiber.Ctx) error {
		var req SendRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		m, err := svc.SendAsUser(c.Context(), auth.UserID(c), c.Params("id"), req)
		if err != nil {
			return apperr.Fiber(err)
		}
		return c.Status(fiber.StatusCreated).JSON(m)
	})

	r.Post("/:id/messages/read", func(c *fiber.Ctx) error {
		n, err := svc.MarkReadAsUser(c.Context(), auth.UserID(c), c.Params("id"))
		if err != nil {
			return apperr.Fiber(err)
		}
		return c.JSON(fiber.Map{"marked": n})
	})
}

func RegisterAdminRoutes(r fiber.Router, svc *Service) {
	r.Get("/:id/messages", func(c *fiber.Ctx) error {
		messages, err := svc.Thread(c.Context(), c.Params("id"))
		if err != nil {
			return apperr.Fiber(err)
		}
		return c.JSON(messages)
	})

	r.Post("/:id/messages", func(c *fiber.Ctx) error {
		var req SendRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if req.SenderType == "" {
			req.SenderType = SenderAdmin
		}
		m, err := svc.SendAsStaff(c.Context(), c.Params("id"), req)
		if err != nil {
			return apperr.Fiber(err)
		}
		return c.Status(fiber.StatusCreated).JSON(m)
	})

	r.Post("/:id/messages/read", func(c *fiber.Ctx) error {
		n, err := svc.MarkRead(c.Context(), c.Params("id"), SenderAdmin)
		if err != nil {
			return apperr.Fiber(err)
		}
		return c.JSON(fiber.Map{"marked": n})
	})
}
