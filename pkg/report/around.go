package report

import "github.com/tracehound/tracehound/pkg/trace"

// AroundView is every signal recorded within the window of one moment.
type AroundView struct {
	Time   float64 `json:"time"`
	Window float64 `json:"window"`
	Total  int     `json:"total"`

	Actions      []trace.Action         `json:"actions"`
	Console      []trace.ConsoleMessage `json:"console"`
	PageErrors   []trace.PageError      `json:"pageErrors"`
	Logs         []trace.LogLine        `json:"logs"`
	Stdout       []trace.RunnerLine     `json:"stdout"`
	Stderr       []trace.RunnerLine     `json:"stderr"`
	RunnerErrors []trace.RunnerError    `json:"runnerErrors"`
	Screenshots  []ScreenshotAt         `json:"screenshots"`
	Snapshots    []trace.PageSnapshot   `json:"snapshots"`
	Inputs       []trace.Input          `json:"inputs"`
}

// Around slices every collection down to the ±window around the target
// time. Actions qualify when their lifetime overlaps the window.
func Around(tc *trace.Context, opts AroundOptions) (*AroundView, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	window := opts.window()
	lo, hi := opts.Time-window, opts.Time+window
	inWindow := func(ts float64) bool { return ts >= lo && ts <= hi }

	view := &AroundView{
		Time: opts.Time, Window: window,
		Actions:      []trace.Action{},
		Console:      []trace.ConsoleMessage{},
		PageErrors:   []trace.PageError{},
		Logs:         []trace.LogLine{},
		Stdout:       []trace.RunnerLine{},
		Stderr:       []trace.RunnerLine{},
		RunnerErrors: []trace.RunnerError{},
		Screenshots:  []ScreenshotAt{},
		Snapshots:    []trace.PageSnapshot{},
		Inputs:       []trace.Input{},
	}

	for _, a := range tc.Actions {
		end := a.EndTS
		if !a.Complete {
			end = a.StartTS
		}
		if a.StartTS <= hi && end >= lo {
			view.Actions = append(view.Actions, a)
		}
	}
	for _, m := range tc.Console {
		if inWindow(m.TS) {
			view.Console = append(view.Console, m)
		}
	}
	for _, e := range tc.PageErrors {
		if inWindow(e.TS) {
			view.PageErrors = append(view.PageErrors, e)
		}
	}
	for _, l := range tc.Logs {
		if inWindow(l.TS) {
			view.Logs = append(view.Logs, l)
		}
	}
	for _, l := range tc.Stdout {
		if inWindow(l.TS) {
			view.Stdout = append(view.Stdout, l)
		}
	}
	for _, l := range tc.Stderr {
		if inWindow(l.TS) {
			view.Stderr = append(view.Stderr, l)
		}
	}
	for _, e := range tc.RunnerErrors {
		if inWindow(e.TS) {
			view.RunnerErrors = append(view.RunnerErrors, e)
		}
	}
	for i, s := range tc.Screenshots {
		if inWindow(s.TS) {
			view.Screenshots = append(view.Screenshots, screenshotAt(tc, i))
		}
	}
	for _, s := range tc.Snapshots {
		if inWindow(s.TS) {
			view.Snapshots = append(view.Snapshots, s)
		}
	}
	for _, in := range tc.Inputs {
		if inWindow(in.TS) {
			view.Inputs = append(view.Inputs, in)
		}
	}

	view.Total = len(view.Actions) + len(view.Console) + len(view.PageErrors) +
		len(view.Logs) + len(view.Stdout) + len(view.Stderr) +
		len(view.RunnerErrors) + len(view.Screenshots) + len(view.Snapshots) +
		len(view.Inputs)

	return view, nil
}
