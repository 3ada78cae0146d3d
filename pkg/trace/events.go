package trace

import (
	"encoding/json"
	"fmt"

	"github.com/tracehound/tracehound/pkg/errors"
)

// Kind names an event variant on the wire.
type Kind string

const (
	KindContextOptions  Kind = "context-options"
	KindActionStart     Kind = "action-start"
	KindActionEnd       Kind = "action-end"
	KindScreencastFrame Kind = "screencast-frame"
	KindConsoleMessage  Kind = "console-message"
	KindLog             Kind = "log"
	KindBrowserError    Kind = "browser-error"
	KindInput           Kind = "input"
	KindFrameSnapshot   Kind = "frame-snapshot"
	KindRunnerStdout    Kind = "runner-stdout"
	KindRunnerStderr    Kind = "runner-stderr"
	KindRunnerError     Kind = "runner-error"
)

// Event is one record from a trace shard. The variant set is closed:
// decoding rejects unknown kinds rather than carrying them as untyped bags.
type Event interface {
	Kind() Kind
	// Timestamp returns the event time in milliseconds.
	Timestamp() float64

	isEvent()
}

// ContextOptionsEvent opens a browser context and anchors the trace start.
type ContextOptionsEvent struct {
	TS        float64        `json:"ts"`
	StartTime float64        `json:"startTime"`
	TestName  string         `json:"testName"`
	Browser   string         `json:"browser"`
	Options   map[string]any `json:"options"`
}

// ActionStartEvent begins a runner action such as a click or navigation.
type ActionStartEvent struct {
	TS     float64        `json:"ts"`
	CallID string         `json:"callId"`
	Method string         `json:"method"`
	Params map[string]any `json:"params"`
}

// ActionEndEvent closes the action with the matching call identifier.
type ActionEndEvent struct {
	TS     float64 `json:"ts"`
	CallID string  `json:"callId"`
	Error  string  `json:"error"`
}

// ScreencastFrameEvent references a captured screenshot by resource hash.
type ScreencastFrameEvent struct {
	TS     float64 `json:"ts"`
	SHA1   string  `json:"sha1"`
	Width  int     `json:"width"`
	Height int     `json:"height"`
}

// ConsoleMessageEvent is one browser console entry.
type ConsoleMessageEvent struct {
	TS          float64 `json:"ts"`
	MessageType string  `json:"messageType"`
	Text        string  `json:"text"`
	Location    string  `json:"location"`
}

// LogEvent is an internal runner log line recorded into the trace.
type LogEvent struct {
	TS   float64 `json:"ts"`
	Text string  `json:"text"`
}

// BrowserErrorEvent is an uncaught page-level error.
type BrowserErrorEvent struct {
	TS      float64 `json:"ts"`
	Message string  `json:"message"`
	Stack   string  `json:"stack"`
}

// InputEvent is a recorded user input gesture.
type InputEvent struct {
	TS        float64 `json:"ts"`
	InputType string  `json:"inputType"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Key       string  `json:"key"`
}

// FrameSnapshotEvent carries the serialized DOM of a frame.
type FrameSnapshotEvent struct {
	TS       float64 `json:"ts"`
	HTML     string  `json:"html"`
	FrameURL string  `json:"frameUrl"`
}

// RunnerStdoutEvent is one line the test runner wrote to stdout.
type RunnerStdoutEvent struct {
	TS   float64 `json:"ts"`
	Text string  `json:"text"`
}

// RunnerStderrEvent is one line the test runner wrote to stderr.
type RunnerStderrEvent struct {
	TS   float64 `json:"ts"`
	Text string  `json:"text"`
}

// RunnerErrorEvent is a structured error reported by the runner itself.
type RunnerErrorEvent struct {
	TS      float64 `json:"ts"`
	Message string  `json:"message"`
	Stack   string  `json:"stack"`
}

func (e *ContextOptionsEvent) Kind() Kind  { return KindContextOptions }
func (e *ActionStartEvent) Kind() Kind     { return KindActionStart }
func (e *ActionEndEvent) Kind() Kind       { return KindActionEnd }
func (e *ScreencastFrameEvent) Kind() Kind { return KindScreencastFrame }
func (e *ConsoleMessageEvent) Kind() Kind  { return KindConsoleMessage }
func (e *LogEvent) Kind() Kind             { return KindLog }
func (e *BrowserErrorEvent) Kind() Kind    { return KindBrowserError }
func (e *InputEvent) Kind() Kind           { return KindInput }
func (e *FrameSnapshotEvent) Kind() Kind   { return KindFrameSnapshot }
func (e *RunnerStdoutEvent) Kind() Kind    { return KindRunnerStdout }
func (e *RunnerStderrEvent) Kind() Kind    { return KindRunnerStderr }
func (e *RunnerErrorEvent) Kind() Kind     { return KindRunnerError }

func (e *ContextOptionsEvent) Timestamp() float64  { return e.TS }
func (e *ActionStartEvent) Timestamp() float64     { return e.TS }
func (e *ActionEndEvent) Timestamp() float64       { return e.TS }
func (e *ScreencastFrameEvent) Timestamp() float64 { return e.TS }
func (e *ConsoleMessageEvent) Timestamp() float64  { return e.TS }
func (e *LogEvent) Timestamp() float64             { return e.TS }
func (e *BrowserErrorEvent) Timestamp() float64    { return e.TS }
func (e *InputEvent) Timestamp() float64           { return e.TS }
func (e *FrameSnapshotEvent) Timestamp() float64   { return e.TS }
func (e *RunnerStdoutEvent) Timestamp() float64    { return e.TS }
func (e *RunnerStderrEvent) Timestamp() float64    { return e.TS }
func (e *RunnerErrorEvent) Timestamp() float64     { return e.TS }

func (*ContextOptionsEvent) isEvent()  {}
func (*ActionStartEvent) isEvent()     {}
func (*ActionEndEvent) isEvent()       {}
func (*ScreencastFrameEvent) isEvent() {}
func (*ConsoleMessageEvent) isEvent()  {}
func (*LogEvent) isEvent()             {}
func (*BrowserErrorEvent) isEvent()    {}
func (*InputEvent) isEvent()           {}
func (*FrameSnapshotEvent) isEvent()   {}
func (*RunnerStdoutEvent) isEvent()    {}
func (*RunnerStderrEvent) isEvent()    {}
func (*RunnerErrorEvent) isEvent()     {}

// envelope is the first decode phase: just enough to dispatch on kind.
type envelope struct {
	Type string `json:"type"`
}

// DecodeEvent decodes one trace line into its typed variant. Both phases
// are fallible: a malformed envelope, an unknown kind, and a malformed
// payload all return a recoverable PARSE error.
func DecodeEvent(line []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(line, &env); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeParse, "malformed event line").
			WithRecoverable(true)
	}
	if env.Type == "" {
		return nil, errors.New(errors.ErrCodeParse, "event line missing type").
			WithRecoverable(true)
	}

	event := newEvent(Kind(env.Type))
	if event == nil {
		return nil, errors.New(errors.ErrCodeParse, fmt.Sprintf("unknown event type %q", env.Type)).
			WithRecoverable(true)
	}

	if err := json.Unmarshal(line, event); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeParse, fmt.Sprintf("malformed %s payload", env.Type)).
			WithRecoverable(true)
	}
	return event, nil
}

func newEvent(kind Kind) Event {
	switch kind {
	case KindContextOptions:
		return &ContextOptionsEvent{}
	case KindActionStart:
		return &ActionStartEvent{}
	case KindActionEnd:
		return &ActionEndEvent{}
	case KindScreencastFrame:
		return &ScreencastFrameEvent{}
	case KindConsoleMessage:
		return &ConsoleMessageEvent{}
	case KindLog:
		return &LogEvent{}
	case KindBrowserError:
		return &BrowserErrorEvent{}
	case KindInput:
		return &InputEvent{}
	case KindFrameSnapshot:
		return &FrameSnapshotEvent{}
	case KindRunnerStdout:
		return &RunnerStdoutEvent{}
	case KindRunnerStderr:
		return &RunnerStderrEvent{}
	case KindRunnerError:
		return &RunnerErrorEvent{}
	default:
		return nil
	}
}
