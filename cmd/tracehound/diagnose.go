package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/oklog/ulid/v2"

	"github.com/tracehound/tracehound/pkg/diagnose"
	"github.com/tracehound/tracehound/pkg/errors"
	"github.com/tracehound/tracehound/pkg/logging"
	"github.com/tracehound/tracehound/pkg/report"
	"github.com/tracehound/tracehound/pkg/telemetry"
	"github.com/tracehound/tracehound/pkg/trace"
)

func runDiagnoseCommand(args []string) error {
	inv, err := newInvocation()
	if err != nil {
		return err
	}
	defer inv.Close()

	fs := flag.NewFlagSet("diagnose", flag.ContinueOnError)
	verbose := fs.Bool("verbose", false, "include recovered issues in the report")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	tracePath, err := tracePathArg(fs)
	if err != nil {
		return err
	}

	return inv.emit("diagnose", tracePath, func(ctx context.Context, tc *trace.Context, _ trace.ParseStats) (any, error) {
		rep := diagnose.Run(ctx, tc, diagnose.Options{
			Verbose: *verbose,
			Limit:   inv.cfg.Report.IssueLimit,
		})
		telemetry.SetAttributes(ctx, telemetry.AttrIssueCount.Int(rep.TotalIssues))
		return rep, nil
	})
}

// batchItem is one trace's outcome inside a batch report. Exactly one of
// Report and Error is set.
type batchItem struct {
	TracePath string           `json:"tracePath"`
	Report    *diagnose.Report `json:"report,omitempty"`
	Error     string           `json:"error,omitempty"`
	Code      string           `json:"code,omitempty"`
}

type batchReport struct {
	ReportID  string      `json:"reportId"`
	Processed int         `json:"processed"`
	Failed    int         `json:"failed"`
	Traces    []batchItem `json:"traces"`
}

func runDiagnoseAllCommand(args []string) error {
	inv, err := newInvocation()
	if err != nil {
		return err
	}
	defer inv.Close()

	fs := flag.NewFlagSet("diagnose-all", flag.ContinueOnError)
	verbose := fs.Bool("verbose", false, "include recovered issues in each report")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return errors.New(errors.ErrCodeInvalidQuery,
			fmt.Sprintf("unexpected argument %q", fs.Arg(0))).
			WithRemediation("diagnose-all scans the results directory; use diagnose for a single trace")
	}

	ctx, span := telemetry.StartSpan(context.Background(), "cli.diagnose-all")
	defer span.End()
	telemetry.SetAttributes(ctx, telemetry.AttrCommand.String("diagnose-all"))

	candidates, err := trace.Discover(inv.resultsDir, inv.staleAfter)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return err
	}
	telemetry.SetAttributes(ctx, telemetry.AttrBatchSize.Int(len(candidates)))

	batch := batchReport{
		ReportID: ulid.Make().String(),
		Traces:   make([]batchItem, 0, len(candidates)),
	}
	for _, candidate := range candidates {
		item := batchItem{TracePath: candidate.Path}
		rep, err := inv.diagnoseOne(ctx, candidate.Path, *verbose)
		if err != nil {
			// One broken archive must not sink the rest of the batch.
			item.Error = err.Error()
			item.Code = string(errors.ErrCodeBatchItem)
			batch.Failed++
			_ = inv.logger.Warn(logging.CategoryBatch, "item_failed",
				fmt.Sprintf("diagnosing %s: %v", candidate.Path, err),
				map[string]any{"trace": candidate.Path, "report_id": batch.ReportID})
		} else {
			item.Report = rep
			batch.Processed++
		}
		batch.Traces = append(batch.Traces, item)
	}

	_ = inv.logger.Info(logging.CategoryBatch, "batch_complete",
		fmt.Sprintf("batch %s: %d processed, %d failed", batch.ReportID, batch.Processed, batch.Failed),
		map[string]any{
			"report_id": batch.ReportID,
			"processed": batch.Processed,
			"failed":    batch.Failed,
		})

	return report.WriteEnvelope(os.Stdout, "diagnose-all", inv.resultsDir, batch)
}

func (inv *invocation) diagnoseOne(ctx context.Context, path string, verbose bool) (*diagnose.Report, error) {
	tc, _, err := trace.LoadContext(ctx, trace.IngestOptions{
		Path:   path,
		Logger: inv.logger,
	})
	if err != nil {
		return nil, err
	}
	return diagnose.Run(ctx, tc, diagnose.Options{
		Verbose: verbose,
		Limit:   inv.cfg.Report.IssueLimit,
	}), nil
}
