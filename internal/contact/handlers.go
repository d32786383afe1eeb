package contact

import (
	"backend-birdtours/internal/shared/apperr"

	"github.com/gofiber/fiber/v2"
)

// RegisterRoutes mounts POST / on r. limit, when non-nil, runs first.
func RegisterRoutes(r fiber.Router, svc *Service, limit fiber.Handler) {
	handlers := []fiber.Handler{}
	if limit != nil {
		handlers = append(handlers, limit)
	}
	handlers = append(handlers, func(c *fiber.Ctx) error {
		var req Inquiry
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		if _, err := svc.Submit(c.Context(), req); err != nil {
			return apperr.Fiber(err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": MsgThanks})
	})
	r.Post("/", handlers...)
}
