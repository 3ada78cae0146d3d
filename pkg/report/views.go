package report

import (
	"github.com/tracehound/tracehound/pkg/trace"
)

// Counts tallies every collection in the built context. Each field equals
// the length of the corresponding Context slice.
type Counts struct {
	Screenshots  int `json:"screenshots"`
	Console      int `json:"console"`
	PageErrors   int `json:"pageErrors"`
	Actions      int `json:"actions"`
	Logs         int `json:"logs"`
	Stdout       int `json:"stdout"`
	Stderr       int `json:"stderr"`
	RunnerErrors int `json:"runnerErrors"`
	Snapshots    int `json:"snapshots"`
	Inputs       int `json:"inputs"`
}

// SummaryView is the top-level reading of one trace.
type SummaryView struct {
	TestName     string              `json:"testName,omitempty"`
	Browser      string              `json:"browser,omitempty"`
	Verdict      trace.Verdict       `json:"verdict"`
	StartTime    float64             `json:"startTime"`
	DurationMs   float64             `json:"durationMs"`
	ErrorTime    float64             `json:"errorTime,omitempty"`
	ErrorMessage string              `json:"errorMessage,omitempty"`
	Counts       Counts              `json:"counts"`
	ErrorContext *trace.ErrorContext `json:"errorContext,omitempty"`

	// Parse reports how the shards decoded; attached by the caller, which
	// owns the ingest statistics.
	Parse *trace.ParseStats `json:"parse,omitempty"`
}

// Summary projects the context into its one-screen overview.
func Summary(tc *trace.Context) *SummaryView {
	return &SummaryView{
		TestName:     tc.TestName,
		Browser:      tc.Browser,
		Verdict:      tc.Verdict,
		StartTime:    tc.StartTime,
		DurationMs:   tc.Duration,
		ErrorTime:    tc.ErrorTime,
		ErrorMessage: tc.ErrorMessage,
		Counts: Counts{
			Screenshots:  len(tc.Screenshots),
			Console:      len(tc.Console),
			PageErrors:   len(tc.PageErrors),
			Actions:      len(tc.Actions),
			Logs:         len(tc.Logs),
			Stdout:       len(tc.Stdout),
			Stderr:       len(tc.Stderr),
			RunnerErrors: len(tc.RunnerErrors),
			Snapshots:    len(tc.Snapshots),
			Inputs:       len(tc.Inputs),
		},
		ErrorContext: tc.ErrorContext,
	}
}

// ErrorsView gathers every failure signal in one place.
type ErrorsView struct {
	Verdict       trace.Verdict          `json:"verdict"`
	ErrorTime     float64                `json:"errorTime,omitempty"`
	ErrorMessage  string                 `json:"errorMessage,omitempty"`
	PageErrors    []trace.PageError      `json:"pageErrors"`
	RunnerErrors  []trace.RunnerError    `json:"runnerErrors"`
	ConsoleErrors []trace.ConsoleMessage `json:"consoleErrors"`
	FailedActions []trace.Action         `json:"failedActions"`
	ErrorContext  *trace.ErrorContext    `json:"errorContext,omitempty"`
}

// Errors projects everything that went wrong, regardless of verdict.
func Errors(tc *trace.Context) *ErrorsView {
	view := &ErrorsView{
		Verdict:       tc.Verdict,
		ErrorTime:     tc.ErrorTime,
		ErrorMessage:  tc.ErrorMessage,
		PageErrors:    tc.PageErrors,
		RunnerErrors:  tc.RunnerErrors,
		ConsoleErrors: []trace.ConsoleMessage{},
		FailedActions: []trace.Action{},
		ErrorContext:  tc.ErrorContext,
	}
	for _, m := range tc.Console {
		if m.Type == "error" {
			view.ConsoleErrors = append(view.ConsoleErrors, m)
		}
	}
	for _, a := range tc.Actions {
		if a.Failed() {
			view.FailedActions = append(view.FailedActions, a)
		}
	}
	return view
}

// ActionEntry is an action with its derived timing.
type ActionEntry struct {
	trace.Action
	DurationMs float64 `json:"durationMs"`
}

// ActionsView lists every recorded action in start order.
type ActionsView struct {
	Count   int           `json:"count"`
	Failed  int           `json:"failed"`
	Actions []ActionEntry `json:"actions"`
}

// Actions projects the merged action list.
func Actions(tc *trace.Context) *ActionsView {
	view := &ActionsView{Count: len(tc.Actions), Actions: make([]ActionEntry, 0, len(tc.Actions))}
	for _, a := range tc.Actions {
		if a.Failed() {
			view.Failed++
		}
		view.Actions = append(view.Actions, ActionEntry{Action: a, DurationMs: a.Duration()})
	}
	return view
}

// ScreenshotsView lists every screencast frame with its resource path.
type ScreenshotsView struct {
	Count       int            `json:"count"`
	Screenshots []ScreenshotAt `json:"screenshots"`
}

// Screenshots projects the frame list in time order.
func Screenshots(tc *trace.Context) *ScreenshotsView {
	view := &ScreenshotsView{Count: len(tc.Screenshots), Screenshots: make([]ScreenshotAt, 0, len(tc.Screenshots))}
	for i, s := range tc.Screenshots {
		view.Screenshots = append(view.Screenshots, ScreenshotAt{
			Index:      i,
			Screenshot: s,
			Path:       tc.ResourcePath(s.SHA1),
		})
	}
	return view
}
