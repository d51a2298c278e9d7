package server

import (
	"github.com/gofiber/fiber/v2"

	"vitalscan/internal/config"
	"vitalscan/internal/health"
	"vitalscan/internal/journal"
	"vitalscan/internal/records"
	"vitalscan/internal/scan"
)

// FiberServer is the station's HTTP surface: session control, preview
// frames, observable state, and backend health for the operator UI.
type FiberServer struct {
	*fiber.App

	cfg        *config.Config
	controller *scan.Controller
	state      *scan.StateStore
	monitor    *health.Monitor
	journal    *journal.Journal
	reports    *records.Client
	hub        *StateHub
}

func New(cfg *config.Config, controller *scan.Controller, state *scan.StateStore, monitor *health.Monitor, jrnl *journal.Journal, reports *records.Client) *FiberServer {
	app := fiber.New(fiber.Config{
		ServerHeader: "vitalscan",
		AppName:      "vitalscan",
	})

	return &FiberServer{
		App:        app,
		cfg:        cfg,
		controller: controller,
		state:      state,
		monitor:    monitor,
		journal:    jrnl,
		reports:    reports,
		hub:        NewStateHub(state),
	}
}
