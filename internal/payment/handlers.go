package payment

import (
	"backend-birdtours/internal/auth"
	"backend-birdtours/internal/shared/apperr"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service) {
	r.Get("/:id/payments", func(c *fiber.Ctx) error {
		payments, err := svc.List(c.Context(), auth.UserID(c), c.Params("id"))
		if err != nil {
			return apperr.Fiber(err)
		}
		return c.JSON(payments)
	})
}

func RegisterAdminRoutes(r fiber.Router, svc *Service) {
	r.Get("/:id/payments", func(c *fiber.Ctx) error {
		payments, err := svc.ListForBooking(c.Context(), c.Params("id"))
		if err != nil {
			return apperr.Fiber(err)
		}
		return c.JSON(payments)
	})

	r.Post("/:id/payments", func(c *fiber.Ctx) error {
		var req ScheduleRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		p, err := svc.Schedule(c.Context(), c.Params("id"), req)
		if err != nil {
			return apperr.Fiber(err)
		}
		return c.Status(fiber.StatusCreated).JSON(p)
	})

	r.Patch("/:id/payments/:paymentID", func(c *fiber.Ctx) error {
		var req StatusRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		p, err := svc.UpdateStatus(c.Context(), c.Params("paymentID"), req.PaymentStatus)
		if err != nil {
			return apperr.Fiber(err)
		}
		return c.JSON(p)
	})
}
