package auth

import (
	"backend-birdtours/internal/shared/apperr"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service) {
	r.Post("/signup", func(c *fiber.Ctx) error {
		var req SignUpRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		identity, tokens, err := svc.SignUp(c.Context(), req)
		if err != nil {
			return apperr.Fiber(err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"user": identity, "tokens": tokens})
	})

	r.Post("/signin", func(c *fiber.Ctx) error {
		var req SignInRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		identity, tokens, err := svc.SignIn(c.Context(), req)
		if err != nil {
			return apperr.Fiber(err)
		}
		return c.JSON(fiber.Map{"user": identity, "tokens": tokens})
	})

	r.Post("/refresh", func(c *fiber.Ctx) error {
		var req RefreshRequest
		if err := c.BodyParser(&req); err != nil || req.RefreshToken == "" {
			return fiber.NewError(fiber.StatusBadRequest, "refresh_token required")
		}

		userID, err := svc.ValidateRefreshToken(c.Context(), req.RefreshToken)
		if err != nil {
			return apperr.Fiber(err)
		}

		resp, err := svc.GenerateTokens(c.Context(), userID)
		if err != nil {
			return apperr.Fiber(err)
		}
		return c.JSON(resp)
	})

	r.Get("/verify", func(c *fiber.Ctx) error {
		token := bearerFromHeader(c.Get("Authorization"))
		if token == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing bearer token")
		}

		userID, err := svc.ValidateAccessToken(token)
		if err != nil {
			return apperr.Fiber(err)
		}
		return c.JSON(fiber.Map{"user_id": userID})
	})

	r.Post("/reset-password", func(c *fiber.Ctx) error {
		var req ResetPasswordRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		if _, err := svc.RequestPasswordReset(c.Context(), req.Email); err != nil {
			return apperr.Fiber(err)
		}
		return c.JSON(fiber.Map{"message": MsgResetSent})
	})

	r.Post("/update-password", func(c *fiber.Ctx) error {
		var req UpdatePasswordRequest
		if err := c.BodyParser(&req); err != nil || req.Token == "" {
			return fiber.NewError(fiber.StatusBadRequest, "token and password required")
		}
		if err := svc.UpdatePassword(c.Context(), req); err != nil {
			return apperr.Fiber(err)
		}
		return c.JSON(fiber.Map{"message": "Your password has been updated."})
	})
}
