package diagnose

import (
	"context"
	"sort"

	"github.com/tracehound/tracehound/pkg/telemetry"
	"github.com/tracehound/tracehound/pkg/trace"
)

// dedupWindowMs collapses same-category issues closer than this to the
// earliest one. Retries and cascading handlers typically re-report the same
// failure within a second.
const dedupWindowMs = 1000.0

// DefaultIssueLimit bounds the issue list in a report.
const DefaultIssueLimit = 10

// issueTextLimit caps the quoted signal text per issue.
const issueTextLimit = 300

// Signal sources. Runner stdout, stderr, structured errors, and the
// error-context document all attribute to runner-output: the runner wrote
// every one of them.
const (
	SourceConsole      = "console"
	SourcePageError    = "page-error"
	SourceRunnerOutput = "runner-output"
)

// Options configures one diagnosis pass.
type Options struct {
	// Verbose includes recovered issues in the report.
	Verbose bool

	// Limit caps the issue list; zero or negative means DefaultIssueLimit.
	Limit int
}

// Issue is one diagnosed failure signal.
type Issue struct {
	TS          float64  `json:"ts"`
	Category    Category `json:"category"`
	Source      string   `json:"source"`
	Text        string   `json:"text"`
	Explanation string   `json:"explanation"`
	Remedy      string   `json:"remedy"`
	Recovered   bool     `json:"recovered,omitempty"`
}

// signal is one textual data point scanned against the signature table.
type signal struct {
	ts     float64
	source string
	text   string
}

// Run scans every textual signal in the trace context against the signature
// table and assembles a DiagnosisReport. It is pure over its inputs: the
// same context and options always produce the same report.
func Run(ctx context.Context, tc *trace.Context, opts Options) *Report {
	ctx, span := telemetry.StartSpan(ctx, "diagnose.run")
	defer span.End()

	signals := collectSignals(tc)
	markers := recoveryTimes(tc)

	var issues []Issue
	for _, sig := range signals {
		if suppressed(sig.text) {
			continue
		}
		match, ok := matchSignature(sig.text)
		if !ok {
			continue
		}
		issue := Issue{
			TS:          sig.ts,
			Category:    match.category,
			Source:      sig.source,
			Text:        truncateText(sig.text),
			Explanation: match.explanation,
			Remedy:      match.remedy,
		}
		// An assertion that later "recovered" still failed the test; it
		// never loses its standing.
		if match.category != CategoryAssertionFailure && recoveredAfter(markers, sig.ts) {
			issue.Recovered = true
		}
		issues = append(issues, issue)
	}

	issues = dedupe(issues)
	report := assemble(tc, issues, opts)

	telemetry.SetAttributes(ctx, telemetry.AttrIssueCount.Int(report.TotalIssues))
	return report
}

// collectSignals flattens every textual stream into one time-ordered list.
func collectSignals(tc *trace.Context) []signal {
	var signals []signal

	for _, m := range tc.Console {
		signals = append(signals, signal{ts: m.TS, source: SourceConsole, text: m.Text})
	}
	for _, e := range tc.PageErrors {
		signals = append(signals, signal{ts: e.TS, source: SourcePageError, text: e.Message})
	}
	for _, line := range tc.Stdout {
		signals = append(signals, signal{ts: line.TS, source: SourceRunnerOutput, text: line.Text})
	}
	for _, line := range tc.Stderr {
		signals = append(signals, signal{ts: line.TS, source: SourceRunnerOutput, text: line.Text})
	}
	for _, e := range tc.RunnerErrors {
		signals = append(signals, signal{ts: e.TS, source: SourceRunnerOutput, text: e.Message})
	}
	if tc.ErrorContext != nil && tc.ErrorContext.Snippet != "" {
		signals = append(signals, signal{ts: tc.ErrorTime, source: SourceRunnerOutput, text: tc.ErrorContext.Snippet})
	}

	sort.SliceStable(signals, func(i, j int) bool { return signals[i].ts < signals[j].ts })
	return signals
}

// recoveryTimes lists the timestamps of retry-success markers across all
// output streams.
func recoveryTimes(tc *trace.Context) []float64 {
	var times []float64
	for _, line := range tc.Stdout {
		if isRecoveryMarker(line.Text) {
			times = append(times, line.TS)
		}
	}
	for _, line := range tc.Stderr {
		if isRecoveryMarker(line.Text) {
			times = append(times, line.TS)
		}
	}
	for _, m := range tc.Console {
		if isRecoveryMarker(m.Text) {
			times = append(times, m.TS)
		}
	}
	for _, l := range tc.Logs {
		if isRecoveryMarker(l.Text) {
			times = append(times, l.TS)
		}
	}
	return times
}

func recoveredAfter(markers []float64, ts float64) bool {
	for _, marker := range markers {
		if marker > ts {
			return true
		}
	}
	return false
}

// dedupe collapses same-category issues within the dedup window to the
// earliest occurrence. Issues must already be sorted by time.
func dedupe(issues []Issue) []Issue {
	if len(issues) < 2 {
		return issues
	}

	lastKept := make(map[Category]float64)
	kept := issues[:0]
	for _, issue := range issues {
		if prev, seen := lastKept[issue.Category]; seen && issue.TS-prev < dedupWindowMs {
			continue
		}
		lastKept[issue.Category] = issue.TS
		kept = append(kept, issue)
	}
	return kept
}

func truncateText(text string) string {
	runes := []rune(text)
	if len(runes) <= issueTextLimit {
		return text
	}
	return string(runes[:issueTextLimit]) + "…"
}
