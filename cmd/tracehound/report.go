package main

import (
	"context"
	"flag"

	"github.com/tracehound/tracehound/pkg/errors"
	"github.com/tracehound/tracehound/pkg/report"
	"github.com/tracehound/tracehound/pkg/trace"
)

// runSimpleView covers the projections that take no options of their own:
// parse the optional trace path, load, project, emit.
func runSimpleView(command string, args []string, project func(*trace.Context, trace.ParseStats) any) error {
	inv, err := newInvocation()
	if err != nil {
		return err
	}
	defer inv.Close()

	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	tracePath, err := tracePathArg(fs)
	if err != nil {
		return err
	}

	return inv.emit(command, tracePath, func(_ context.Context, tc *trace.Context, stats trace.ParseStats) (any, error) {
		return project(tc, stats), nil
	})
}

func runSummaryCommand(args []string) error {
	return runSimpleView("summary", args, func(tc *trace.Context, stats trace.ParseStats) any {
		view := report.Summary(tc)
		view.Parse = &stats
		return view
	})
}

func runErrorsCommand(args []string) error {
	return runSimpleView("errors", args, func(tc *trace.Context, _ trace.ParseStats) any {
		return report.Errors(tc)
	})
}

func runActionsCommand(args []string) error {
	return runSimpleView("actions", args, func(tc *trace.Context, _ trace.ParseStats) any {
		return report.Actions(tc)
	})
}

func runScreenshotsCommand(args []string) error {
	return runSimpleView("screenshots", args, func(tc *trace.Context, _ trace.ParseStats) any {
		return report.Screenshots(tc)
	})
}

func runTimelineCommand(args []string) error {
	return runSimpleView("timeline", args, func(tc *trace.Context, _ trace.ParseStats) any {
		return report.Timeline(tc)
	})
}

func runScreenshotCommand(args []string) error {
	inv, err := newInvocation()
	if err != nil {
		return err
	}
	defer inv.Close()

	fs := flag.NewFlagSet("screenshot", flag.ContinueOnError)
	at := fs.String("at", "", `zero-based index, or "error" for the frame nearest the recorded failure (default: last)`)
	contextSize := fs.Int("context", inv.cfg.Report.ScreenshotContext, "frames to include before and after the target")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	tracePath, err := tracePathArg(fs)
	if err != nil {
		return err
	}
	if *contextSize < 0 {
		return errors.New(errors.ErrCodeInvalidQuery, "context must not be negative")
	}

	return inv.emit("screenshot", tracePath, func(_ context.Context, tc *trace.Context, _ trace.ParseStats) (any, error) {
		return report.Screenshot(tc, report.ScreenshotOptions{At: *at, Context: *contextSize})
	})
}

func runConsoleCommand(args []string) error {
	inv, err := newInvocation()
	if err != nil {
		return err
	}
	defer inv.Close()

	fs := flag.NewFlagSet("console", flag.ContinueOnError)
	msgType := fs.String("type", "", "keep only messages of this console type (log, error, warning)")
	filter := fs.String("filter", "", "regular expression applied to message text")
	limit := fs.Int("limit", inv.cfg.Report.ConsoleLimit, "cap the number of results")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	tracePath, err := tracePathArg(fs)
	if err != nil {
		return err
	}

	return inv.emit("console", tracePath, func(_ context.Context, tc *trace.Context, _ trace.ParseStats) (any, error) {
		return report.Console(tc, report.ConsoleOptions{
			Type:   *msgType,
			Filter: *filter,
			Limit:  *limit,
		})
	})
}

func runAroundCommand(args []string) error {
	inv, err := newInvocation()
	if err != nil {
		return err
	}
	defer inv.Close()

	fs := flag.NewFlagSet("around", flag.ContinueOnError)
	target := fs.Float64("time", -1, "target timestamp in trace milliseconds (required)")
	window := fs.Float64("window", inv.cfg.Report.AroundWindowMs, "half-width of the window in milliseconds")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	tracePath, err := tracePathArg(fs)
	if err != nil {
		return err
	}
	if *target < 0 {
		return errors.New(errors.ErrCodeInvalidQuery, "around requires --time").
			WithRemediation("pass the target timestamp in trace milliseconds, e.g. --time 4500")
	}

	return inv.emit("around", tracePath, func(_ context.Context, tc *trace.Context, _ trace.ParseStats) (any, error) {
		return report.Around(tc, report.AroundOptions{Time: *target, Window: *window})
	})
}
