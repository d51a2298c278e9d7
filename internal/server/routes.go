package server

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"vitalscan/internal/journal"
	"vitalscan/internal/scan"
)

func (s *FiberServer) RegisterFiberRoutes() {
	// Apply CORS middleware
	s.App.Use(cors.New(cors.Config{
		AllowOrigins:     s.corsOrigins(),
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH",
		AllowHeaders:     "Accept,Authorization,Content-Type",
		AllowCredentials: false, // credentials require explicit origins
		MaxAge:           300,
	}))

	s.App.Get("/", s.RootHandler)

	s.App.Get("/health", s.healthHandler)

	// Scan routes
	api := s.App.Group("/api")
	api.Post("/scan/start", s.startScanHandler)
	api.Post("/scan/stop", s.stopScanHandler)
	api.Get("/scan/state", s.scanStateHandler)
	api.Get("/scan/preview", s.previewHandler)
	api.Post("/scan/retry-device", s.retryDeviceHandler)
	api.Post("/scan/demo-mode", s.demoModeHandler)
	api.Get("/scan/recent", s.recentScansHandler)

	// Records passthrough
	api.Get("/reports", s.reportsHandler)

	// Backend health probes
	api.Get("/health/services", s.serviceHealthHandler)

	// WebSocket route for live session state
	go s.hub.Run()
	s.App.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	s.App.Get("/ws/state", websocket.New(s.hub.handleClient))
}

func (s *FiberServer) corsOrigins() string {
	if s.cfg != nil && s.cfg.Server.CORSOrigins != "" {
		return s.cfg.Server.CORSOrigins
	}
	return "*"
}

func (s *FiberServer) RootHandler(c *fiber.Ctx) error {
	resp := fiber.Map{
		"message": "vitalscan station API running",
	}

	return c.JSON(resp)
}

func (s *FiberServer) healthHandler(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"message": "Station is healthy",
		"status":  "ok",
	})
}

func (s *FiberServer) startScanHandler(c *fiber.Ctx) error {
	sessionID, err := s.controller.Start(c.Context())
	if err != nil {
		if errors.Is(err, scan.ErrBusy) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
		}
		if errors.Is(err, scan.ErrDeviceNotReady) {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": err.Error()})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to start scan"})
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"sessionId": sessionID})
}

func (s *FiberServer) stopScanHandler(c *fiber.Ctx) error {
	//hand the stop to the controller; repeat requests are no-ops
	s.controller.ForceStop(scan.StopUser)
	return c.Status(fiber.StatusAccepted).JSON(s.state.Snapshot())
}

func (s *FiberServer) scanStateHandler(c *fiber.Ctx) error {
	return c.JSON(s.state.Snapshot())
}

func (s *FiberServer) previewHandler(c *fiber.Ctx) error {
	sink := s.controller.Preview()
	if sink == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Capture device not ready"})
	}
	frame, err := sink.JPEG()
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "No preview frame available"})
	}
	c.Set(fiber.HeaderContentType, "image/jpeg")
	return c.Send(frame)
}

func (s *FiberServer) retryDeviceHandler(c *fiber.Ctx) error {
	if err := s.controller.AcquireDevice(c.Context()); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(s.state.Snapshot())
}

func (s *FiberServer) demoModeHandler(c *fiber.Ctx) error {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := s.controller.SetDemoMode(c.Context(), req.Enabled); err != nil {
		if errors.Is(err, scan.ErrBusy) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
		}
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(s.state.Snapshot())
}

func (s *FiberServer) recentScansHandler(c *fiber.Ctx) error {
	entries := []journal.Entry{}
	if s.journal != nil {
		recent, err := s.journal.Recent(c.QueryInt("limit", 10))
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load recent scans"})
		}
		if recent != nil {
			entries = recent
		}
	}
	return c.JSON(fiber.Map{"scans": entries})
}

func (s *FiberServer) reportsHandler(c *fiber.Ctx) error {
	if s.reports == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Records service not configured"})
	}
	resp, err := s.reports.Reports(c.Context())
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "Failed to load reports"})
	}
	return c.JSON(resp)
}

func (s *FiberServer) serviceHealthHandler(c *fiber.Ctx) error {
	if s.monitor == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Health monitor not configured"})
	}
	if c.QueryBool("probe") {
		return c.JSON(s.monitor.CheckOnce(c.Context()))
	}
	report, ok := s.monitor.Latest()
	if !ok {
		return c.JSON(s.monitor.CheckOnce(c.Context()))
	}
	return c.JSON(report)
}
