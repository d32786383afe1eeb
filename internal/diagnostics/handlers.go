package diagnostics

import (
	"backend-birdtours/internal/shared/apperr"

	"github.com/gofiber/fiber/v2"
)

type applyRequest struct {
	ID string `json:"id"`
}

// RegisterRoutes mounts the operator schema tools. r must sit behind the
// service-key middleware.
func RegisterRoutes(r fiber.Router, svc *Service) {
	r.Get("/schema", func(c *fiber.Ctx) error {
		schema, err := svc.CurrentSchema(c.Context())
		if err != nil {
			return apperr.Fiber(err)
		}
		return c.JSON(schema)
	})

	r.Get("/schema/expected", func(c *fiber.Ctx) error {
		return c.JSON(svc.ExpectedSchema())
	})

	r.Get("/gaps", func(c *fiber.Ctx) error {
		gaps, err := svc.Gaps(c.Context())
		if err != nil {
			return apperr.Fiber(err)
		}
		return c.JSON(fiber.Map{"gaps": gaps, "count": len(gaps)})
	})

	r.Post("/gaps/apply", func(c *fiber.Ctx) error {
		var req applyRequest
		if err := c.BodyParser(&req); err != nil || req.ID == "" {
			return fiber.NewError(fiber.StatusBadRequest, "id required")
		}
		gap, err := svc.Apply(c.Context(), req.ID)
		if err != nil {
			return apperr.Fiber(err)
		}
		return c.JSON(gap)
	})
}
