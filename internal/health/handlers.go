package health

import "github.com/gofiber/fiber/v2"

// RegisterRoutes mounts the analysis report. r must sit behind the
// service-key middleware.
func RegisterRoutes(r fiber.Router, analyzer *Analyzer) {
	r.Get("/analysis", func(c *fiber.Ctx) error {
		return c.JSON(analyzer.RunCompleteAnalysis(c.Context()))
	})
}
