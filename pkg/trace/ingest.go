package trace

import (
	"context"
	"fmt"
	"time"

	"github.com/tracehound/tracehound/pkg/errors"
	"github.com/tracehound/tracehound/pkg/logging"
	"github.com/tracehound/tracehound/pkg/telemetry"
)

// IngestOptions configures trace resolution and loading.
type IngestOptions struct {
	// Path is the archive or directory to load; empty triggers selection.
	Path string

	// ResultsDir is searched for archives when Path is empty.
	ResultsDir string

	// StaleAfter flags old archives during selection.
	StaleAfter time.Duration

	// Select chooses among discovered archives when Path is empty.
	Select Selector

	Logger *logging.Logger
}

// LoadContext runs the full ingestion pipeline: resolve the input path,
// extract, parse every shard, and build the immutable Context.
func LoadContext(ctx context.Context, opts IngestOptions) (*Context, ParseStats, error) {
	ctx, span := telemetry.StartSpan(ctx, "trace.ingest")
	defer span.End()

	path := opts.Path
	if path == "" {
		resolved, err := selectTrace(opts)
		if err != nil {
			telemetry.RecordError(ctx, err)
			return nil, ParseStats{}, err
		}
		path = resolved
	}
	telemetry.SetAttributes(ctx, telemetry.AttrTracePath.String(path))

	if opts.Logger != nil {
		opts.Logger.SetTracePath(path)
	}

	loadCtx, loadSpan := telemetry.StartSpan(ctx, "trace.load")
	dir, err := Load(path, opts.Logger)
	if err != nil {
		telemetry.RecordError(loadCtx, err)
		loadSpan.End()
		return nil, ParseStats{}, err
	}
	loadSpan.End()

	parseCtx, parseSpan := telemetry.StartSpan(ctx, "trace.parse")
	events, stats, err := ParseDir(dir, opts.Logger)
	if err != nil {
		telemetry.RecordError(parseCtx, err)
		parseSpan.End()
		return nil, stats, err
	}
	telemetry.SetAttributes(parseCtx,
		telemetry.AttrShardCount.Int(stats.Files),
		telemetry.AttrEventCount.Int(stats.Parsed),
	)
	parseSpan.End()

	errCtx, err := LoadErrorContext(dir, path)
	if err != nil {
		// The document is supplementary; an unreadable one degrades the
		// verdict signal but never the whole report.
		logWarn(opts.Logger, logging.CategoryLoader, "error_context_unreadable",
			fmt.Sprintf("error-context document unreadable: %v", err), nil)
		errCtx = nil
	}

	buildCtx, buildSpan := telemetry.StartSpan(ctx, "trace.build")
	c := Build(events, errCtx, opts.Logger)
	c.SourcePath = path
	c.TraceDir = dir
	telemetry.SetAttributes(buildCtx, telemetry.AttrVerdict.String(string(c.Verdict)))
	buildSpan.End()

	logInfo(opts.Logger, logging.CategoryLoader, "trace_loaded",
		fmt.Sprintf("loaded %s: %d events across %d shards, verdict %s",
			path, stats.Parsed, stats.Files, c.Verdict),
		map[string]any{
			"events":  stats.Parsed,
			"skipped": stats.Skipped,
			"shards":  stats.Files,
			"verdict": string(c.Verdict),
		})

	return c, stats, nil
}

func selectTrace(opts IngestOptions) (string, error) {
	candidates, err := Discover(opts.ResultsDir, opts.StaleAfter)
	if err != nil {
		return "", err
	}
	if opts.Select == nil {
		return "", errors.New(errors.ErrCodeSelection, "no trace path given").
			WithRemediation("pass a trace path as the last argument")
	}
	return opts.Select(candidates)
}

func logInfo(logger *logging.Logger, category logging.Category, eventType, message string, details map[string]any) {
	if logger == nil {
		return
	}
	_ = logger.Info(category, eventType, message, details)
}
