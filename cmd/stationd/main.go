package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"vitalscan/internal/analyzer"
	"vitalscan/internal/capture"
	"vitalscan/internal/config"
	"vitalscan/internal/health"
	"vitalscan/internal/journal"
	"vitalscan/internal/records"
	"vitalscan/internal/scan"
	"vitalscan/internal/server"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	cfgPath   string
	demoMode  bool
	proxyMode bool
)

var rootCmd = &cobra.Command{
	Use:   "stationd",
	Short: "Vital scan capture station",
	Long: `stationd runs the vitals capture station: camera control, timed scan
sessions, the result pipeline, and the HTTP/WebSocket API the operator
UI talks to.`,
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the station API server",
	RunE:  runServe,
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run a single scan from the terminal and print the result",
	RunE:  runScan,
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Probe the analyzer and records services once and report",
	RunE:  runDoctor,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("stationd %s (commit %s, built %s)\n", version, commit, date)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to YAML config file")
	rootCmd.PersistentFlags().BoolVar(&demoMode, "demo", false, "use the simulated camera instead of real hardware")
	rootCmd.PersistentFlags().BoolVar(&proxyMode, "proxy", false, "route backend requests through the CORS relay")
	rootCmd.AddCommand(serveCmd, scanCmd, doctorCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// station bundles everything a command needs once the config is resolved.
type station struct {
	cfg        *config.Config
	state      *scan.StateStore
	controller *scan.Controller
	monitor    *health.Monitor
	journal    *journal.Journal
	records    *records.Client
	server     *server.FiberServer
}

func buildStation() (*station, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if proxyMode {
		cfg.Proxy.Enabled = true
	}

	settings := capture.Settings{
		VideoDevice: cfg.Capture.VideoDevice,
		Width:       cfg.Capture.Width,
		Height:      cfg.Capture.Height,
		Framerate:   cfg.Capture.Framerate,
		BitrateKbps: cfg.Capture.BitrateKbps,
	}
	var camera capture.Camera
	switch cfg.Capture.Device {
	case "sim":
		camera = capture.NewSimCamera(settings)
	case "rtmp":
		camera = capture.NewRTMPCamera(cfg.Capture.RTMPPort, cfg.Capture.RTMPKey)
	default:
		camera = capture.NewGstCamera(settings)
	}
	sim := capture.NewSimCamera(settings)

	analyzeClient := analyzer.NewClient(cfg.Analyzer.BaseURL, cfg.Analyzer.Timeout())
	recordsClient := records.NewClient(cfg.Records.BaseURL, cfg.Records.Timeout())
	if cfg.Proxy.Enabled {
		analyzeClient.EnableProxy(cfg.Proxy.Origin)
		recordsClient.EnableProxy(cfg.Proxy.Origin)
	}

	jrnl, err := journal.Open(cfg.Journal.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open scan journal: %w", err)
	}

	state := scan.NewStateStore()
	pipeline := scan.NewPipeline(analyzeClient, recordsClient, jrnl, state)
	controller := scan.NewController(camera, sim, pipeline, state, scan.ControllerOptions{
		DurationSeconds: cfg.Scan.DurationSeconds,
		SettleDelay:     cfg.Scan.SettleDelay(),
	})

	monitor := health.NewMonitor([]health.Target{
		{Name: "records", URL: cfg.Records.BaseURL + "/health"},
		{Name: "analyzer", URL: cfg.Analyzer.BaseURL + "/health"},
	}, cfg.Health.Interval(), cfg.Health.Timeout())
	if cfg.Proxy.Enabled {
		monitor.EnableProxy(cfg.Proxy.Origin)
	}

	return &station{
		cfg:        cfg,
		state:      state,
		controller: controller,
		monitor:    monitor,
		journal:    jrnl,
		records:    recordsClient,
		server:     server.New(cfg, controller, state, monitor, jrnl, recordsClient),
	}, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	st, err := buildStation()
	if err != nil {
		return err
	}
	defer st.journal.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if demoMode {
		if err := st.controller.SetDemoMode(ctx, true); err != nil {
			log.Printf("stationd: simulated camera unavailable: %v", err)
		}
	} else if err := st.controller.AcquireDevice(ctx); err != nil {
		// The station still serves its API; the operator can retry the device.
		log.Printf("stationd: capture device unavailable: %v", err)
	}

	go st.monitor.RunPeriodic(ctx)

	st.server.RegisterFiberRoutes()
	log.Printf("stationd %s serving on :%d (capture backend %s)", version, st.cfg.Server.Port, st.cfg.Capture.Device)

	go func() {
		if err := st.server.Listen(fmt.Sprintf(":%d", st.cfg.Server.Port)); err != nil {
			log.Fatalf("http server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down gracefully, press Ctrl+C again to force")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := st.server.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown with error: %v", err)
	}
	if err := st.controller.Close(); err != nil {
		log.Printf("stationd: capture shutdown error: %v", err)
	}
	log.Println("Server exiting")
	return nil
}

func runScan(cmd *cobra.Command, args []string) error {
	st, err := buildStation()
	if err != nil {
		return err
	}
	defer st.journal.Close()
	defer st.controller.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if demoMode {
		if err := st.controller.SetDemoMode(ctx, true); err != nil {
			return err
		}
	}

	sessionID, err := st.controller.Start(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("recording session %s for %d seconds\n", sessionID, st.cfg.Scan.DurationSeconds)

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			st.controller.ForceStop(scan.StopUser)
			return ctx.Err()
		case <-ticker.C:
			snap := st.state.Snapshot()
			if snap.Recording || snap.Processing {
				continue
			}
			if snap.LastError != nil {
				return fmt.Errorf("scan failed (%s): %s", snap.LastError.Kind, snap.LastError.Message)
			}
			if snap.LastResult == nil {
				continue
			}
			fmt.Println()
			fmt.Println(snap.LastResult.AIInterpretation)
			fmt.Printf("\nresult stored: %s\n", snap.StorageOutcome)
			return nil
		}
	}
}

func runDoctor(cmd *cobra.Command, args []string) error {
	st, err := buildStation()
	if err != nil {
		return err
	}
	defer st.journal.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	report := st.monitor.CheckOnce(ctx)

	names := make([]string, 0, len(report.Services))
	for name := range report.Services {
		names = append(names, name)
	}
	sort.Strings(names)

	failed := false
	for _, name := range names {
		svc := report.Services[name]
		status := "ok"
		if !svc.OK {
			failed = true
			status = svc.Message
			if svc.ErrorKind != "" {
				status = fmt.Sprintf("%s [%s]", svc.Message, svc.ErrorKind)
			}
		}
		fmt.Printf("%-10s %5dms  %s\n", name, svc.LatencyMs, status)
	}
	if failed {
		return fmt.Errorf("one or more services are unhealthy")
	}
	return nil
}
