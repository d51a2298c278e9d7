package records

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"vitalscan/internal/database"
)

// RegisterRoutes wires the records API onto app.
func RegisterRoutes(app *fiber.App, handler *ScanHandler, db database.Service) {
	// Apply CORS middleware
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "*",
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH",
		AllowHeaders:     "Accept,Authorization,Content-Type",
		AllowCredentials: false, // credentials require explicit origins
		MaxAge:           300,
	}))

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "vitalscan records API running",
		})
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(db.Health())
	})

	api := app.Group("/api")
	api.Post("/vital-scan/save", handler.SaveScan)
	api.Get("/user/reports", handler.GetReports)
}
