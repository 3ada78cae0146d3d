package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// loadAndMerge loads a YAML file and merges it into the config.
func loadAndMerge(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var override Config
	if err := yaml.Unmarshal(data, &override); err != nil {
		return fmt.Errorf("parsing YAML: %w", err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parsing YAML: %w", err)
	}

	mergeConfigs(cfg, &override, raw)
	return nil
}

// mergeConfigs merges override into base. Bools and other fields whose
// zero value is meaningful are merged only when the raw document carries
// the key.
func mergeConfigs(base, override *Config, raw map[string]any) {
	if override == nil {
		return
	}

	if override.ResultsDir != "" {
		base.ResultsDir = override.ResultsDir
	}
	if fieldSet(raw, "stale_after_minutes") {
		base.StaleAfterMinutes = override.StaleAfterMinutes
	}

	if override.Report.ConsoleLimit != 0 {
		base.Report.ConsoleLimit = override.Report.ConsoleLimit
	}
	if override.Report.AroundWindowMs != 0 {
		base.Report.AroundWindowMs = override.Report.AroundWindowMs
	}
	if fieldSet(raw, "report", "screenshot_context") {
		base.Report.ScreenshotContext = override.Report.ScreenshotContext
	}
	if override.Report.IssueLimit != 0 {
		base.Report.IssueLimit = override.Report.IssueLimit
	}

	if fieldSet(raw, "logging", "enabled") {
		base.Logging.Enabled = override.Logging.Enabled
	}
	if override.Logging.Directory != "" {
		base.Logging.Directory = override.Logging.Directory
	}
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}

	if fieldSet(raw, "telemetry", "enabled") {
		base.Telemetry.Enabled = override.Telemetry.Enabled
	}
	if override.Telemetry.ServiceName != "" {
		base.Telemetry.ServiceName = override.Telemetry.ServiceName
	}

	if override.Server.Bind != "" {
		base.Server.Bind = override.Server.Bind
	}
	if fieldSet(raw, "server", "require_token") {
		base.Server.RequireToken = override.Server.RequireToken
	}
	if override.Server.AuthToken != "" {
		base.Server.AuthToken = override.Server.AuthToken
	}
	if fieldSet(raw, "server", "public_metrics") {
		base.Server.PublicMetrics = override.Server.PublicMetrics
	}
	if override.Server.RateLimitRPS != 0 {
		base.Server.RateLimitRPS = override.Server.RateLimitRPS
	}
	if override.Server.RateLimitBurst != 0 {
		base.Server.RateLimitBurst = override.Server.RateLimitBurst
	}
}

func fieldSet(raw map[string]any, path ...string) bool {
	if len(path) == 0 || raw == nil {
		return false
	}
	current := any(raw)
	for _, key := range path {
		m, ok := current.(map[string]any)
		if !ok {
			return false
		}
		val, ok := m[key]
		if !ok {
			return false
		}
		current = val
	}
	return true
}
