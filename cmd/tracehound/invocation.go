package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/tracehound/tracehound/pkg/config"
	"github.com/tracehound/tracehound/pkg/logging"
	"github.com/tracehound/tracehound/pkg/paths"
	"github.com/tracehound/tracehound/pkg/report"
	"github.com/tracehound/tracehound/pkg/telemetry"
	"github.com/tracehound/tracehound/pkg/trace"
)

// invocation carries everything one command run needs: resolved
// configuration, the diagnostic logger, the archive selector, and the
// optional span exporter. Nothing here outlives the process.
type invocation struct {
	cfg        *config.Config
	logger     *logging.Logger
	resultsDir string
	staleAfter time.Duration
	selector   trace.Selector
	tracer     *telemetry.TracerProvider
	id         string
}

func newInvocation() (*invocation, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	inv := &invocation{
		cfg:        cfg,
		id:         ulid.Make().String(),
		resultsDir: paths.ResultsDir(cfg.ResultsDir),
		staleAfter: time.Duration(cfg.StaleAfterMinutes) * time.Minute,
		// Prompts go to stderr; stdout carries only the envelope.
		selector: trace.TerminalSelector(os.Stdin, os.Stderr),
	}
	inv.logger = buildLogger(cfg, inv.id)

	if cfg.Telemetry.Enabled {
		tp, err := telemetry.NewTracerProvider(cfg.Telemetry.ServiceName, version)
		if err != nil {
			_ = inv.logger.Warn(logging.CategoryConfig, "telemetry_init_failed",
				fmt.Sprintf("span exporter unavailable: %v", err), nil)
		} else {
			inv.tracer = tp
		}
	}

	return inv, nil
}

func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFromPath(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, withExitCode(err, 2)
	}
	return cfg, nil
}

func buildLogger(cfg *config.Config, invocationID string) *logging.Logger {
	if !cfg.Logging.Enabled {
		return logging.NewConsoleLogger(os.Stderr)
	}

	logger, err := logging.NewLogger(logDir(cfg), invocationID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: diagnostic log unavailable: %v\n", err)
		return logging.NewConsoleLogger(os.Stderr)
	}
	if level := strings.TrimSpace(cfg.Logging.Level); level != "" {
		logger.SetMinLevel(logging.Level(strings.ToLower(level)))
	}
	return logger
}

func (inv *invocation) Close() {
	if inv.tracer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = inv.tracer.Shutdown(ctx)
		cancel()
	}
	_ = inv.logger.Close()
}

func (inv *invocation) loadTrace(ctx context.Context, path string) (*trace.Context, trace.ParseStats, error) {
	return trace.LoadContext(ctx, trace.IngestOptions{
		Path:       path,
		ResultsDir: inv.resultsDir,
		StaleAfter: inv.staleAfter,
		Select:     inv.selector,
		Logger:     inv.logger,
	})
}

// emit runs one report command end to end: load the trace, project it,
// and write the envelope.
func (inv *invocation) emit(command, tracePath string, project func(context.Context, *trace.Context, trace.ParseStats) (any, error)) error {
	ctx, span := telemetry.StartSpan(context.Background(), "cli."+command)
	defer span.End()
	telemetry.SetAttributes(ctx, telemetry.AttrCommand.String(command))

	tc, stats, err := inv.loadTrace(ctx, tracePath)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return err
	}

	results, err := project(ctx, tc, stats)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return err
	}

	return report.WriteEnvelope(os.Stdout, command, tc.SourcePath, results)
}
