package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"TRACEHOUND_RESULTS_DIR",
		"TRACEHOUND_STALE_AFTER",
		"TRACEHOUND_CONSOLE_LIMIT",
		"TRACEHOUND_LOG_ENABLED",
		"TRACEHOUND_LOG_DIR",
		"TRACEHOUND_LOG_LEVEL",
		"TRACEHOUND_TRACE_SPANS",
		"TRACEHOUND_BIND",
		"TRACEHOUND_AUTH_TOKEN",
		"TRACEHOUND_PUBLIC_METRICS",
	} {
		t.Setenv(key, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.ResultsDir != "test-results" {
		t.Errorf("ResultsDir = %q, want test-results", cfg.ResultsDir)
	}
	if cfg.StaleAfterMinutes != 60 {
		t.Errorf("StaleAfterMinutes = %d, want 60", cfg.StaleAfterMinutes)
	}
	if cfg.Report.ConsoleLimit != 50 {
		t.Errorf("ConsoleLimit = %d, want 50", cfg.Report.ConsoleLimit)
	}
	if cfg.Report.AroundWindowMs != 5000 {
		t.Errorf("AroundWindowMs = %v, want 5000", cfg.Report.AroundWindowMs)
	}
	if cfg.Report.ScreenshotContext != 3 {
		t.Errorf("ScreenshotContext = %d, want 3", cfg.Report.ScreenshotContext)
	}
	if cfg.Report.IssueLimit != 10 {
		t.Errorf("IssueLimit = %d, want 10", cfg.Report.IssueLimit)
	}
	if cfg.Server.Bind != DefaultServerBind {
		t.Errorf("Server.Bind = %q, want %q", cfg.Server.Bind, DefaultServerBind)
	}
	if cfg.Telemetry.Enabled {
		t.Error("telemetry should be disabled by default")
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadFromPath(t *testing.T) {
	clearConfigEnv(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
results_dir: artifacts/runs
stale_after_minutes: 15
report:
  console_limit: 5
  screenshot_context: 0
logging:
  enabled: true
  level: debug
server:
  bind: "127.0.0.1:9000"
  require_token: true
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if cfg.ResultsDir != "artifacts/runs" {
		t.Errorf("ResultsDir = %q", cfg.ResultsDir)
	}
	if cfg.StaleAfterMinutes != 15 {
		t.Errorf("StaleAfterMinutes = %d, want 15", cfg.StaleAfterMinutes)
	}
	if cfg.Report.ConsoleLimit != 5 {
		t.Errorf("ConsoleLimit = %d, want 5", cfg.Report.ConsoleLimit)
	}
	// Explicit zero must override the default of 3
	if cfg.Report.ScreenshotContext != 0 {
		t.Errorf("ScreenshotContext = %d, want 0", cfg.Report.ScreenshotContext)
	}
	// Unset fields keep defaults
	if cfg.Report.AroundWindowMs != 5000 {
		t.Errorf("AroundWindowMs = %v, want default 5000", cfg.Report.AroundWindowMs)
	}
	if !cfg.Logging.Enabled {
		t.Error("logging.enabled should be true")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	if cfg.Server.Bind != "127.0.0.1:9000" {
		t.Errorf("Server.Bind = %q", cfg.Server.Bind)
	}
	if !cfg.Server.RequireToken {
		t.Error("server.require_token should be true")
	}
}

func TestLoadFromPath_MissingFile(t *testing.T) {
	clearConfigEnv(t)

	_, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoadFromPath_InvalidYAML(t *testing.T) {
	clearConfigEnv(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("results_dir: [unclosed"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	_, err := LoadFromPath(path)
	if err == nil {
		t.Fatal("expected error for invalid YAML")
	}
	if !strings.Contains(err.Error(), "parsing YAML") {
		t.Errorf("error should mention YAML parsing: %v", err)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("TRACEHOUND_RESULTS_DIR", "/var/traces")
	t.Setenv("TRACEHOUND_STALE_AFTER", "30")
	t.Setenv("TRACEHOUND_CONSOLE_LIMIT", "7")
	t.Setenv("TRACEHOUND_TRACE_SPANS", "true")
	t.Setenv("TRACEHOUND_BIND", "127.0.0.1:9999")
	t.Setenv("TRACEHOUND_AUTH_TOKEN", "s3cret")
	t.Setenv("TRACEHOUND_LOG_LEVEL", "warn")

	cfg := DefaultConfig()
	ApplyEnvOverridesForTest(cfg)

	if cfg.ResultsDir != "/var/traces" {
		t.Errorf("ResultsDir = %q", cfg.ResultsDir)
	}
	if cfg.StaleAfterMinutes != 30 {
		t.Errorf("StaleAfterMinutes = %d", cfg.StaleAfterMinutes)
	}
	if cfg.Report.ConsoleLimit != 7 {
		t.Errorf("ConsoleLimit = %d", cfg.Report.ConsoleLimit)
	}
	if !cfg.Telemetry.Enabled {
		t.Error("TRACEHOUND_TRACE_SPANS should enable telemetry")
	}
	if cfg.Server.Bind != "127.0.0.1:9999" {
		t.Errorf("Server.Bind = %q", cfg.Server.Bind)
	}
	if cfg.Server.AuthToken != "s3cret" {
		t.Errorf("Server.AuthToken = %q", cfg.Server.AuthToken)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q", cfg.Logging.Level)
	}
}

func TestApplyEnvOverrides_InvalidNumbersIgnored(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("TRACEHOUND_STALE_AFTER", "soon")

	cfg := DefaultConfig()
	ApplyEnvOverridesForTest(cfg)

	if cfg.StaleAfterMinutes != 60 {
		t.Errorf("invalid env number should keep default, got %d", cfg.StaleAfterMinutes)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "empty results dir",
			mutate:  func(c *Config) { c.ResultsDir = " " },
			wantErr: "results_dir",
		},
		{
			name:    "negative staleness",
			mutate:  func(c *Config) { c.StaleAfterMinutes = -1 },
			wantErr: "stale_after_minutes",
		},
		{
			name:    "zero console limit",
			mutate:  func(c *Config) { c.Report.ConsoleLimit = 0 },
			wantErr: "console_limit",
		},
		{
			name:    "negative around window",
			mutate:  func(c *Config) { c.Report.AroundWindowMs = -5 },
			wantErr: "around_window_ms",
		},
		{
			name:    "negative screenshot context",
			mutate:  func(c *Config) { c.Report.ScreenshotContext = -1 },
			wantErr: "screenshot_context",
		},
		{
			name:    "zero issue limit",
			mutate:  func(c *Config) { c.Report.IssueLimit = 0 },
			wantErr: "issue_limit",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "loud" },
			wantErr: "log level",
		},
		{
			name:    "bad bind address",
			mutate:  func(c *Config) { c.Server.Bind = "no-port" },
			wantErr: "bind address",
		},
		{
			name:    "negative rate limit",
			mutate:  func(c *Config) { c.Server.RateLimitRPS = -1 },
			wantErr: "rate_limit_rps",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q should mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestIsLoopbackBindAddress(t *testing.T) {
	tests := []struct {
		addr string
		want bool
	}{
		{"127.0.0.1:4488", true},
		{"localhost:4488", true},
		{"[::1]:4488", true},
		{"0.0.0.0:4488", false},
		{"[::]:4488", false},
		{"192.168.1.5:4488", false},
		{"example.com:4488", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsLoopbackBindAddress(tt.addr); got != tt.want {
			t.Errorf("IsLoopbackBindAddress(%q) = %v, want %v", tt.addr, got, tt.want)
		}
	}
}

func TestValidationWarnings(t *testing.T) {
	cfg := DefaultConfig()
	if warnings := cfg.ValidationWarnings(); len(warnings) != 0 {
		t.Errorf("default config should have no warnings, got %v", warnings)
	}

	cfg.Server.Bind = "0.0.0.0:4488"
	warnings := cfg.ValidationWarnings()
	if len(warnings) == 0 {
		t.Fatal("non-loopback bind without a token should warn")
	}
	if !strings.Contains(warnings[0], "not loopback") {
		t.Errorf("warning should mention loopback: %q", warnings[0])
	}

	cfg.Server.AuthToken = "t"
	cfg.Server.PublicMetrics = true
	warnings = cfg.ValidationWarnings()
	found := false
	for _, w := range warnings {
		if strings.Contains(w, "public metrics") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected public metrics warning, got %v", warnings)
	}
}
