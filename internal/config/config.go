package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"gopkg.in/yaml.v3"
)

// Config holds all settings for the station and records services.
// Values resolve in order: built-in defaults, then an optional YAML file,
// then environment variables.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Capture  CaptureConfig  `yaml:"capture"`
	Scan     ScanConfig     `yaml:"scan"`
	Analyzer AnalyzerConfig `yaml:"analyzer"`
	Records  RecordsConfig  `yaml:"records"`
	Health   HealthConfig   `yaml:"health"`
	Proxy    ProxyConfig    `yaml:"proxy"`
	Journal  JournalConfig  `yaml:"journal"`
	Database DatabaseConfig `yaml:"database"`
}

type ServerConfig struct {
	Port        int    `yaml:"port"`
	CORSOrigins string `yaml:"cors_origins"`
}

type CaptureConfig struct {
	Device      string `yaml:"device"`       // camera backend: gst, sim, or rtmp
	VideoDevice string `yaml:"video_device"` // v4l2 device path, empty for auto
	Width       int    `yaml:"width"`
	Height      int    `yaml:"height"`
	Framerate   int    `yaml:"framerate"`
	BitrateKbps int    `yaml:"bitrate_kbps"`
	RTMPPort    int    `yaml:"rtmp_port"`
	RTMPKey     string `yaml:"rtmp_key"`
}

type ScanConfig struct {
	DurationSeconds int    `yaml:"duration_seconds"`
	SettleDelayMs   int    `yaml:"settle_delay_ms"`
	StationID       string `yaml:"station_id"`
}

type AnalyzerConfig struct {
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type RecordsConfig struct {
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	Port           int    `yaml:"port"`    // recordsd listen port
	UserID         string `yaml:"user_id"` // identity stamped on saved scans
}

type HealthConfig struct {
	IntervalSeconds int `yaml:"interval_seconds"`
	TimeoutSeconds  int `yaml:"timeout_seconds"`
}

type ProxyConfig struct {
	Enabled bool   `yaml:"enabled"`
	Origin  string `yaml:"origin"`
}

type JournalConfig struct {
	Path string `yaml:"path"`
}

type DatabaseConfig struct {
	URI  string `yaml:"uri"`
	Name string `yaml:"name"`
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        8080,
			CORSOrigins: "*",
		},
		Capture: CaptureConfig{
			Device:      "gst",
			Width:       640,
			Height:      480,
			Framerate:   30,
			BitrateKbps: 2500,
			RTMPPort:    1935,
			RTMPKey:     "station",
		},
		Scan: ScanConfig{
			DurationSeconds: 30,
			SettleDelayMs:   150,
			StationID:       "station-01",
		},
		Analyzer: AnalyzerConfig{
			BaseURL:        "http://localhost:8001",
			TimeoutSeconds: 60,
		},
		Records: RecordsConfig{
			BaseURL:        "http://localhost:8000",
			TimeoutSeconds: 10,
			Port:           8000,
			UserID:         "station",
		},
		Health: HealthConfig{
			IntervalSeconds: 10,
			TimeoutSeconds:  5,
		},
		Proxy: ProxyConfig{
			Enabled: false,
			Origin:  "https://cors-anywhere.herokuapp.com/",
		},
		Journal: JournalConfig{
			Path: "vitalscan.db",
		},
		Database: DatabaseConfig{
			URI:  "mongodb://localhost:27017",
			Name: "vitalscan",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file, and
// environment overrides, then validates it.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Port = getIntEnv("PORT", c.Server.Port)
	c.Server.CORSOrigins = getEnv("CORS_ORIGINS", c.Server.CORSOrigins)

	c.Capture.Device = getEnv("CAPTURE_DEVICE", c.Capture.Device)
	c.Capture.VideoDevice = getEnv("CAPTURE_VIDEO_DEVICE", c.Capture.VideoDevice)
	c.Capture.Width = getIntEnv("CAPTURE_WIDTH", c.Capture.Width)
	c.Capture.Height = getIntEnv("CAPTURE_HEIGHT", c.Capture.Height)
	c.Capture.Framerate = getIntEnv("CAPTURE_FRAMERATE", c.Capture.Framerate)
	c.Capture.BitrateKbps = getIntEnv("CAPTURE_BITRATE_KBPS", c.Capture.BitrateKbps)
	c.Capture.RTMPPort = getIntEnv("RTMP_PORT", c.Capture.RTMPPort)
	c.Capture.RTMPKey = getEnv("RTMP_KEY", c.Capture.RTMPKey)

	c.Scan.DurationSeconds = getIntEnv("SCAN_DURATION_SECONDS", c.Scan.DurationSeconds)
	c.Scan.SettleDelayMs = getIntEnv("SCAN_SETTLE_DELAY_MS", c.Scan.SettleDelayMs)
	c.Scan.StationID = getEnv("SCAN_STATION_ID", c.Scan.StationID)

	c.Analyzer.BaseURL = getEnv("ANALYZER_URL", c.Analyzer.BaseURL)
	c.Analyzer.TimeoutSeconds = getIntEnv("ANALYZER_TIMEOUT_SECONDS", c.Analyzer.TimeoutSeconds)

	c.Records.BaseURL = getEnv("RECORDS_URL", c.Records.BaseURL)
	c.Records.TimeoutSeconds = getIntEnv("RECORDS_TIMEOUT_SECONDS", c.Records.TimeoutSeconds)
	c.Records.Port = getIntEnv("RECORDS_PORT", c.Records.Port)
	c.Records.UserID = getEnv("RECORDS_USER_ID", c.Records.UserID)

	c.Health.IntervalSeconds = getIntEnv("HEALTH_INTERVAL_SECONDS", c.Health.IntervalSeconds)
	c.Health.TimeoutSeconds = getIntEnv("HEALTH_TIMEOUT_SECONDS", c.Health.TimeoutSeconds)

	c.Proxy.Enabled = getBoolEnv("PROXY_ENABLED", c.Proxy.Enabled)
	c.Proxy.Origin = getEnv("PROXY_ORIGIN", c.Proxy.Origin)

	c.Journal.Path = getEnv("JOURNAL_PATH", c.Journal.Path)

	c.Database.URI = getEnv("DB_URI", c.Database.URI)
	c.Database.Name = getEnv("DB_NAME", c.Database.Name)
}

// Validate checks that the configuration is usable before any service starts.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	switch c.Capture.Device {
	case "gst", "sim", "rtmp":
	default:
		return fmt.Errorf("invalid capture device %q (want gst, sim, or rtmp)", c.Capture.Device)
	}
	if c.Capture.Width <= 0 || c.Capture.Height <= 0 {
		return fmt.Errorf("invalid capture resolution %dx%d", c.Capture.Width, c.Capture.Height)
	}
	if c.Capture.Framerate <= 0 {
		return fmt.Errorf("invalid capture framerate: %d", c.Capture.Framerate)
	}
	if c.Capture.BitrateKbps <= 0 {
		return fmt.Errorf("invalid capture bitrate: %d kbps", c.Capture.BitrateKbps)
	}
	if c.Scan.DurationSeconds <= 0 {
		return fmt.Errorf("invalid scan duration: %d seconds", c.Scan.DurationSeconds)
	}
	if c.Scan.SettleDelayMs < 0 {
		return fmt.Errorf("invalid settle delay: %d ms", c.Scan.SettleDelayMs)
	}
	if c.Analyzer.BaseURL == "" {
		return fmt.Errorf("analyzer base URL is required")
	}
	if c.Records.BaseURL == "" {
		return fmt.Errorf("records base URL is required")
	}
	if c.Health.IntervalSeconds <= 0 {
		return fmt.Errorf("invalid health poll interval: %d seconds", c.Health.IntervalSeconds)
	}
	if c.Proxy.Enabled && c.Proxy.Origin == "" {
		return fmt.Errorf("proxy enabled but no proxy origin configured")
	}
	return nil
}

// SettleDelay is the pause between stopping the device and handing the
// buffered capture to processing.
func (c *ScanConfig) SettleDelay() time.Duration {
	return time.Duration(c.SettleDelayMs) * time.Millisecond
}

// Duration is the fixed length of a scan recording.
func (c *ScanConfig) Duration() time.Duration {
	return time.Duration(c.DurationSeconds) * time.Second
}

func (c *AnalyzerConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c *RecordsConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c *HealthConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

func (c *HealthConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func getEnv(key string, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
