package trace

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tracehound/tracehound/pkg/logging"
)

// Verdict classifies the outcome of a recorded test run.
type Verdict string

const (
	VerdictPassed  Verdict = "passed"
	VerdictFailed  Verdict = "failed"
	VerdictUnknown Verdict = "unknown"
)

// Markers in runner output that indicate an assertion failure.
var assertionMarkers = []string{"Expected", "Error:"}

// Screenshot is one screencast frame, addressed by resource hash.
type Screenshot struct {
	TS     float64 `json:"ts"`
	SHA1   string  `json:"sha1"`
	Width  int     `json:"width"`
	Height int     `json:"height"`
}

// ConsoleMessage is one browser console entry.
type ConsoleMessage struct {
	TS       float64 `json:"ts"`
	Type     string  `json:"type"`
	Text     string  `json:"text"`
	Location string  `json:"location,omitempty"`
}

// PageError is an uncaught page-level error.
type PageError struct {
	TS      float64 `json:"ts"`
	Message string  `json:"message"`
	Stack   string  `json:"stack,omitempty"`
}

// Action is the merge of an action-start and its matching action-end.
// An action with no observed end stays incomplete; that usually means
// the run hung or was killed mid-action.
type Action struct {
	CallID   string         `json:"callId"`
	Method   string         `json:"method"`
	Params   map[string]any `json:"params,omitempty"`
	StartTS  float64        `json:"startTs"`
	EndTS    float64        `json:"endTs,omitempty"`
	Complete bool           `json:"complete"`
	Error    string         `json:"error,omitempty"`
}

// Duration returns the action's elapsed milliseconds, zero while incomplete.
func (a Action) Duration() float64 {
	if !a.Complete {
		return 0
	}
	return a.EndTS - a.StartTS
}

// Failed reports whether the action ended with an error.
func (a Action) Failed() bool {
	return a.Error != ""
}

// LogLine is an internal runner log entry.
type LogLine struct {
	TS   float64 `json:"ts"`
	Text string  `json:"text"`
}

// RunnerLine is one line of runner stdout or stderr.
type RunnerLine struct {
	TS   float64 `json:"ts"`
	Text string  `json:"text"`
}

// RunnerError is a structured error reported by the runner.
type RunnerError struct {
	TS      float64 `json:"ts"`
	Message string  `json:"message"`
	Stack   string  `json:"stack,omitempty"`
}

// Input is a recorded user input gesture.
type Input struct {
	TS        float64 `json:"ts"`
	InputType string  `json:"inputType"`
	X         float64 `json:"x,omitempty"`
	Y         float64 `json:"y,omitempty"`
	Key       string  `json:"key,omitempty"`
}

// PageSnapshot is the digest of a frame-snapshot payload: the page title
// and a trimmed preview of its visible text.
type PageSnapshot struct {
	TS       float64 `json:"ts"`
	FrameURL string  `json:"frameUrl,omitempty"`
	Title    string  `json:"title,omitempty"`
	Preview  string  `json:"preview,omitempty"`
}

// ErrorContext is the parsed sibling error-context.md document. It is
// written only for failed runs, so its presence alone decides the verdict.
type ErrorContext struct {
	TestName string `json:"testName,omitempty"`
	Location string `json:"location,omitempty"`
	Snippet  string `json:"snippet,omitempty"`
}

// Context is the complete, immutable view of one recorded test run.
// Every timestamped collection is sorted ascending; all report views are
// pure projections over this struct.
type Context struct {
	SourcePath string `json:"sourcePath"`
	TraceDir   string `json:"-"`

	TestName  string  `json:"testName,omitempty"`
	Browser   string  `json:"browser,omitempty"`
	StartTime float64 `json:"startTime"`
	Duration  float64 `json:"duration"`
	Verdict   Verdict `json:"verdict"`

	ErrorTime    float64 `json:"errorTime,omitempty"`
	ErrorMessage string  `json:"errorMessage,omitempty"`

	Screenshots  []Screenshot     `json:"screenshots"`
	Console      []ConsoleMessage `json:"console"`
	PageErrors   []PageError      `json:"pageErrors"`
	Actions      []Action         `json:"actions"`
	Logs         []LogLine        `json:"logs"`
	Stdout       []RunnerLine     `json:"stdout"`
	Stderr       []RunnerLine     `json:"stderr"`
	RunnerErrors []RunnerError    `json:"runnerErrors"`
	Snapshots    []PageSnapshot   `json:"snapshots"`
	Inputs       []Input          `json:"inputs"`

	ErrorContext *ErrorContext `json:"errorContext,omitempty"`
}

// ResourcePath resolves a content-addressed blob under the trace directory.
func (c *Context) ResourcePath(sha1 string) string {
	return filepath.Join(c.TraceDir, "resources", sha1)
}

// Build assembles a Context from parsed events. The error-context document
// may be nil; when present it forces the failed verdict.
func Build(events []Event, errCtx *ErrorContext, logger *logging.Logger) *Context {
	c := &Context{
		Screenshots:  []Screenshot{},
		Console:      []ConsoleMessage{},
		PageErrors:   []PageError{},
		Actions:      []Action{},
		Logs:         []LogLine{},
		Stdout:       []RunnerLine{},
		Stderr:       []RunnerLine{},
		RunnerErrors: []RunnerError{},
		Snapshots:    []PageSnapshot{},
		Inputs:       []Input{},
		ErrorContext: errCtx,
	}

	if len(events) == 0 {
		c.Verdict = VerdictUnknown
		if errCtx != nil {
			c.applyErrorContext()
		}
		return c
	}

	actionsByCall := make(map[string]*Action)
	var actionOrder []string

	for _, event := range events {
		switch e := event.(type) {
		case *ContextOptionsEvent:
			if c.StartTime == 0 && e.StartTime != 0 {
				c.StartTime = e.StartTime
			}
			if c.TestName == "" && e.TestName != "" {
				c.TestName = e.TestName
			}
			if c.Browser == "" && e.Browser != "" {
				c.Browser = e.Browser
			}
		case *ActionStartEvent:
			if _, exists := actionsByCall[e.CallID]; exists {
				logWarn(logger, logging.CategoryBuilder, "duplicate_action_start",
					fmt.Sprintf("duplicate action-start for call %s, keeping the first", e.CallID),
					map[string]any{"callId": e.CallID})
				continue
			}
			actionsByCall[e.CallID] = &Action{
				CallID:  e.CallID,
				Method:  e.Method,
				Params:  e.Params,
				StartTS: e.TS,
			}
			actionOrder = append(actionOrder, e.CallID)
		case *ActionEndEvent:
			action, ok := actionsByCall[e.CallID]
			if !ok {
				// End without start signals a truncated shard. Dropped,
				// since there is nothing to attach it to.
				logWarn(logger, logging.CategoryBuilder, "orphan_action_end",
					fmt.Sprintf("action-end for unknown call %s dropped", e.CallID),
					map[string]any{"callId": e.CallID})
				continue
			}
			if action.Complete {
				logWarn(logger, logging.CategoryBuilder, "duplicate_action_end",
					fmt.Sprintf("duplicate action-end for call %s dropped", e.CallID),
					map[string]any{"callId": e.CallID})
				continue
			}
			action.EndTS = e.TS
			action.Complete = true
			action.Error = e.Error
		case *ScreencastFrameEvent:
			c.Screenshots = append(c.Screenshots, Screenshot{
				TS: e.TS, SHA1: e.SHA1, Width: e.Width, Height: e.Height,
			})
		case *ConsoleMessageEvent:
			c.Console = append(c.Console, ConsoleMessage{
				TS: e.TS, Type: e.MessageType, Text: e.Text, Location: e.Location,
			})
		case *LogEvent:
			c.Logs = append(c.Logs, LogLine{TS: e.TS, Text: e.Text})
		case *BrowserErrorEvent:
			c.PageErrors = append(c.PageErrors, PageError{
				TS: e.TS, Message: e.Message, Stack: e.Stack,
			})
		case *InputEvent:
			c.Inputs = append(c.Inputs, Input{
				TS: e.TS, InputType: e.InputType, X: e.X, Y: e.Y, Key: e.Key,
			})
		case *FrameSnapshotEvent:
			c.Snapshots = append(c.Snapshots, DigestSnapshot(e))
		case *RunnerStdoutEvent:
			c.Stdout = append(c.Stdout, RunnerLine{TS: e.TS, Text: e.Text})
		case *RunnerStderrEvent:
			c.Stderr = append(c.Stderr, RunnerLine{TS: e.TS, Text: e.Text})
		case *RunnerErrorEvent:
			c.RunnerErrors = append(c.RunnerErrors, RunnerError{
				TS: e.TS, Message: e.Message, Stack: e.Stack,
			})
		}
	}

	for _, callID := range actionOrder {
		c.Actions = append(c.Actions, *actionsByCall[callID])
	}

	c.sortCollections()
	c.computeDuration(events)
	c.computeVerdict()

	if errCtx != nil {
		c.applyErrorContext()
	}

	return c
}

func (c *Context) sortCollections() {
	sort.SliceStable(c.Screenshots, func(i, j int) bool { return c.Screenshots[i].TS < c.Screenshots[j].TS })
	sort.SliceStable(c.Console, func(i, j int) bool { return c.Console[i].TS < c.Console[j].TS })
	sort.SliceStable(c.PageErrors, func(i, j int) bool { return c.PageErrors[i].TS < c.PageErrors[j].TS })
	sort.SliceStable(c.Actions, func(i, j int) bool { return c.Actions[i].StartTS < c.Actions[j].StartTS })
	sort.SliceStable(c.Logs, func(i, j int) bool { return c.Logs[i].TS < c.Logs[j].TS })
	sort.SliceStable(c.Stdout, func(i, j int) bool { return c.Stdout[i].TS < c.Stdout[j].TS })
	sort.SliceStable(c.Stderr, func(i, j int) bool { return c.Stderr[i].TS < c.Stderr[j].TS })
	sort.SliceStable(c.RunnerErrors, func(i, j int) bool { return c.RunnerErrors[i].TS < c.RunnerErrors[j].TS })
	sort.SliceStable(c.Snapshots, func(i, j int) bool { return c.Snapshots[i].TS < c.Snapshots[j].TS })
	sort.SliceStable(c.Inputs, func(i, j int) bool { return c.Inputs[i].TS < c.Inputs[j].TS })
}

func (c *Context) computeDuration(events []Event) {
	var last float64
	for _, event := range events {
		if ts := event.Timestamp(); ts > last {
			last = ts
		}
	}
	duration := last - c.StartTime
	if duration < 0 {
		duration = 0
	}
	c.Duration = duration
}

// computeVerdict applies the priority order: assertion markers in runner
// output win over page errors; anything else passes.
func (c *Context) computeVerdict() {
	if line, ok := c.firstAssertionLine(); ok {
		c.Verdict = VerdictFailed
		c.ErrorTime = line.TS
		c.ErrorMessage = line.Text
		return
	}

	if len(c.PageErrors) > 0 {
		first := c.PageErrors[0]
		c.Verdict = VerdictFailed
		c.ErrorTime = first.TS
		c.ErrorMessage = first.Message
		return
	}

	c.Verdict = VerdictPassed
}

// firstAssertionLine scans runner stdout and stderr merged by time for the
// earliest assertion-failure marker.
func (c *Context) firstAssertionLine() (RunnerLine, bool) {
	merged := make([]RunnerLine, 0, len(c.Stdout)+len(c.Stderr))
	merged = append(merged, c.Stdout...)
	merged = append(merged, c.Stderr...)
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].TS < merged[j].TS })

	for _, line := range merged {
		for _, marker := range assertionMarkers {
			if strings.Contains(line.Text, marker) {
				return line, true
			}
		}
	}
	return RunnerLine{}, false
}

// applyErrorContext forces the failed verdict. The document is only ever
// written for failed runs, so it overrides whatever was computed.
func (c *Context) applyErrorContext() {
	c.Verdict = VerdictFailed
	if c.TestName == "" && c.ErrorContext.TestName != "" {
		c.TestName = c.ErrorContext.TestName
	}
	if c.ErrorMessage == "" && c.ErrorContext.Snippet != "" {
		c.ErrorMessage = c.ErrorContext.Snippet
	}
}

func logWarn(logger *logging.Logger, category logging.Category, eventType, message string, details map[string]any) {
	if logger == nil {
		return
	}
	_ = logger.Warn(category, eventType, message, details)
}
