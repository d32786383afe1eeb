package logging

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// RequestLogger logs one entry per request. Handler errors are rendered
// through the app error handler first so the logged status is the one sent.
func RequestLogger(logger *logrus.Logger) fiber.Handler {
	logger = OrDiscard(logger)
	return func(c *fiber.Ctx) error {
		start := time.Now()
		if chainErr := c.Next(); chainErr != nil {
			if err := c.App().ErrorHandler(c, chainErr); err != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		status := c.Response().StatusCode()
		entry := logger.WithFields(logrus.Fields{
			"method":      c.Method(),
			"path":        c.Path(),
			"status_code": status,
			"client_ip":   c.IP(),
			"duration_ms": time.Since(start).Milliseconds(),
			"type":        "request",
		})
		switch {
		case status >= 500:
			entry.Error("HTTP request")
		case status >= 400:
			entry.Warn("HTTP request")
		default:
			entry.Info("HTTP request")
		}
		return nil
	}
}
