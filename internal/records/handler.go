package records

import (
	"github.com/gofiber/fiber/v2"
)

type ScanHandler struct {
	scanService *ScanService
}

// This is a constructor that injects dependencies
func NewScanHandler(scanService *ScanService) *ScanHandler {
	return &ScanHandler{scanService: scanService}
}

func (h *ScanHandler) SaveScan(c *fiber.Ctx) error {
	var req SaveRequest

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	//call service to store the scan
	record, err := h.scanService.SaveScan(c.Context(), req)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to save scan",
		})
	}

	return c.JSON(SaveResponse{Success: true, ID: record.ID.Hex()})
}

func (h *ScanHandler) GetReports(c *fiber.Ctx) error {
	reports, err := h.scanService.RecentReports(c.Context(), 10)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load reports",
		})
	}

	return c.JSON(ReportsResponse{Reports: reports})
}
