package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tracehound/tracehound/pkg/errors"
	"github.com/tracehound/tracehound/pkg/paths"
)

// DefaultServerBind is the loopback address the projection server binds
// when nothing else is configured.
const DefaultServerBind = "127.0.0.1:4488"

// Config holds all tracehound configuration
type Config struct {
	// ResultsDir is where trace archives are discovered when no path is given
	ResultsDir string `yaml:"results_dir"`

	// StaleAfterMinutes flags archives older than this in the picker
	StaleAfterMinutes int `yaml:"stale_after_minutes"`

	Report    ReportConfig    `yaml:"report"`
	Logging   LoggingConfig   `yaml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Server    ServerConfig    `yaml:"server"`
}

// ReportConfig carries the default knobs for report projections
type ReportConfig struct {
	// ConsoleLimit caps console query results when --limit is not given
	ConsoleLimit int `yaml:"console_limit"`

	// AroundWindowMs is the default half-width of time-window queries
	AroundWindowMs float64 `yaml:"around_window_ms"`

	// ScreenshotContext is the default number of frames before and after
	ScreenshotContext int `yaml:"screenshot_context"`

	// IssueLimit caps detailed issues in a diagnosis report
	IssueLimit int `yaml:"issue_limit"`
}

// LoggingConfig controls the structured diagnostic log
type LoggingConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Directory string `yaml:"directory"`
	Level     string `yaml:"level"`
}

// TelemetryConfig controls optional span tracing of the pipeline
type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
}

// ServerConfig configures the read-only projection server
type ServerConfig struct {
	Bind           string  `yaml:"bind"`
	RequireToken   bool    `yaml:"require_token"`
	AuthToken      string  `yaml:"auth_token"`
	PublicMetrics  bool    `yaml:"public_metrics"`
	RateLimitRPS   float64 `yaml:"rate_limit_rps"`
	RateLimitBurst int     `yaml:"rate_limit_burst"`
}

// DefaultConfig returns the baseline configuration
func DefaultConfig() *Config {
	return &Config{
		ResultsDir:        paths.DefaultResultsDir,
		StaleAfterMinutes: 60,
		Report: ReportConfig{
			ConsoleLimit:      50,
			AroundWindowMs:    5000,
			ScreenshotContext: 3,
			IssueLimit:        10,
		},
		Logging: LoggingConfig{
			Enabled:   false,
			Directory: "",
			Level:     "info",
		},
		Telemetry: TelemetryConfig{
			Enabled:     false,
			ServiceName: "tracehound",
		},
		Server: ServerConfig{
			Bind:           DefaultServerBind,
			RequireToken:   false,
			PublicMetrics:  false,
			RateLimitRPS:   10,
			RateLimitBurst: 20,
		},
	}
}

// Load reads configuration with the standard precedence: defaults, user
// config, project config, environment overrides.
func Load() (*Config, error) {
	// Start with defaults
	cfg := DefaultConfig()

	// Load user config (~/.tracehound/config.yaml)
	home, err := os.UserHomeDir()
	if err != nil {
		// Fall back to HOME env var if UserHomeDir fails
		home = os.Getenv("HOME")
	}
	if home != "" {
		userConfigPath := filepath.Join(home, ".tracehound", "config.yaml")
		if err := loadAndMerge(cfg, userConfigPath); err != nil && !os.IsNotExist(err) {
			return nil, errors.Wrap(err, errors.ErrCodeConfigLoad, "loading user config").
				WithContext("path", userConfigPath)
		}
	}

	// Load project config (./.tracehound/config.yaml)
	projectConfigPath := filepath.Join(".", ".tracehound", "config.yaml")
	if err := loadAndMerge(cfg, projectConfigPath); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, errors.ErrCodeConfigLoad, "loading project config").
			WithContext("path", projectConfigPath)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "invalid configuration")
	}

	return cfg, nil
}

// LoadFromPath loads configuration from a specific file path
func LoadFromPath(path string) (*Config, error) {
	cfg := DefaultConfig()

	if err := loadAndMerge(cfg, path); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigLoad, "loading config file").
			WithContext("path", path)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "invalid configuration")
	}

	return cfg, nil
}

// ApplyEnvOverridesForTest exposes env override logic for tests without file I/O.
func ApplyEnvOverridesForTest(cfg *Config) {
	applyEnvOverrides(cfg)
}

// applyEnvOverrides applies environment variable overrides
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(paths.EnvResultsDir); v != "" {
		cfg.ResultsDir = v
	}
	if v := os.Getenv("TRACEHOUND_STALE_AFTER"); v != "" {
		if minutes, err := strconv.Atoi(v); err == nil {
			cfg.StaleAfterMinutes = minutes
		}
	}
	if v := os.Getenv("TRACEHOUND_CONSOLE_LIMIT"); v != "" {
		if limit, err := strconv.Atoi(v); err == nil {
			cfg.Report.ConsoleLimit = limit
		}
	}

	if val, ok := envBool("TRACEHOUND_LOG_ENABLED"); ok {
		cfg.Logging.Enabled = val
	}
	if v := os.Getenv(paths.EnvLogDir); v != "" {
		cfg.Logging.Directory = v
	}
	if v := os.Getenv("TRACEHOUND_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	if val, ok := envBool("TRACEHOUND_TRACE_SPANS"); ok {
		cfg.Telemetry.Enabled = val
	}

	if v := os.Getenv("TRACEHOUND_BIND"); v != "" {
		cfg.Server.Bind = v
	}
	if v := os.Getenv("TRACEHOUND_AUTH_TOKEN"); v != "" {
		cfg.Server.AuthToken = v
	}
	if val, ok := envBool("TRACEHOUND_PUBLIC_METRICS"); ok {
		cfg.Server.PublicMetrics = val
	}
}

func envBool(key string) (bool, bool) {
	val := os.Getenv(key)
	if val == "" {
		return false, false
	}
	switch strings.ToLower(val) {
	case "1", "true", "yes", "on":
		return true, true
	case "0", "false", "no", "off":
		return false, true
	default:
		return false, false
	}
}

// IsLoopbackBindAddress reports whether addr resolves to a loopback host.
func IsLoopbackBindAddress(addr string) bool {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return false
	}

	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	host = strings.TrimSpace(host)
	if host == "" {
		return false
	}
	switch strings.ToLower(host) {
	case "localhost":
		return true
	case "0.0.0.0", "::":
		return false
	default:
		ip := net.ParseIP(host)
		if ip == nil {
			return false
		}
		return ip.IsLoopback()
	}
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ResultsDir) == "" {
		return fmt.Errorf("results_dir cannot be empty")
	}
	if c.StaleAfterMinutes < 0 {
		return fmt.Errorf("stale_after_minutes must be >= 0, got %d", c.StaleAfterMinutes)
	}

	if c.Report.ConsoleLimit < 1 {
		return fmt.Errorf("report.console_limit must be >= 1, got %d", c.Report.ConsoleLimit)
	}
	if c.Report.AroundWindowMs <= 0 {
		return fmt.Errorf("report.around_window_ms must be > 0, got %v", c.Report.AroundWindowMs)
	}
	if c.Report.ScreenshotContext < 0 {
		return fmt.Errorf("report.screenshot_context must be >= 0, got %d", c.Report.ScreenshotContext)
	}
	if c.Report.IssueLimit < 1 {
		return fmt.Errorf("report.issue_limit must be >= 1, got %d", c.Report.IssueLimit)
	}

	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if c.Logging.Level != "" && !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", c.Logging.Level)
	}

	if strings.TrimSpace(c.Server.Bind) != "" {
		if _, _, err := net.SplitHostPort(strings.TrimSpace(c.Server.Bind)); err != nil {
			return fmt.Errorf("invalid server bind address %q: %v", c.Server.Bind, err)
		}
	}
	if c.Server.RateLimitRPS < 0 {
		return fmt.Errorf("server.rate_limit_rps must be >= 0, got %v", c.Server.RateLimitRPS)
	}
	if c.Server.RateLimitBurst < 0 {
		return fmt.Errorf("server.rate_limit_burst must be >= 0, got %d", c.Server.RateLimitBurst)
	}

	return nil
}

// ValidationWarnings returns non-fatal configuration concerns
func (c *Config) ValidationWarnings() []string {
	var warnings []string

	if !IsLoopbackBindAddress(c.Server.Bind) && !c.Server.RequireToken && strings.TrimSpace(c.Server.AuthToken) == "" {
		warnings = append(warnings,
			fmt.Sprintf("server bind %q is not loopback and no auth token is set; serve will refuse to start", c.Server.Bind))
	}
	if c.Server.PublicMetrics && !IsLoopbackBindAddress(c.Server.Bind) {
		warnings = append(warnings, "public metrics on a non-loopback bind exposes traffic counters to the network")
	}
	if c.Logging.Enabled && strings.TrimSpace(c.Logging.Directory) == "" {
		warnings = append(warnings,
			fmt.Sprintf("logging enabled without a directory; defaulting to %s", paths.LogsBaseDir()))
	}

	return warnings
}
