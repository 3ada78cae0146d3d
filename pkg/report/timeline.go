package report

import (
	"fmt"
	"sort"

	"github.com/tracehound/tracehound/pkg/trace"
)

// Timeline entry kinds.
const (
	TimelineAction       = "action"
	TimelineConsoleError = "console-error"
	TimelinePageError    = "page-error"
)

// timelineTextLimit keeps one entry on one line.
const timelineTextLimit = 120

// TimelineEntry is one moment in the merged chronology.
type TimelineEntry struct {
	TS          float64 `json:"ts"`
	Kind        string  `json:"kind"`
	Description string  `json:"description"`
}

// TimelineView is the full chronological story of the run.
type TimelineView struct {
	Count   int             `json:"count"`
	Entries []TimelineEntry `json:"entries"`
}

// Timeline merges actions, console errors, and page errors into one
// time-ordered narrative.
func Timeline(tc *trace.Context) *TimelineView {
	entries := make([]TimelineEntry, 0, len(tc.Actions)+len(tc.Console)+len(tc.PageErrors))

	for _, a := range tc.Actions {
		entries = append(entries, TimelineEntry{
			TS:          a.StartTS,
			Kind:        TimelineAction,
			Description: describeAction(a),
		})
	}
	for _, m := range tc.Console {
		if m.Type != "error" {
			continue
		}
		entries = append(entries, TimelineEntry{
			TS:          m.TS,
			Kind:        TimelineConsoleError,
			Description: "console error: " + clip(m.Text),
		})
	}
	for _, e := range tc.PageErrors {
		entries = append(entries, TimelineEntry{
			TS:          e.TS,
			Kind:        TimelinePageError,
			Description: "page error: " + clip(e.Message),
		})
	}

	sort.SliceStable(entries, func(i, j int) bool { return entries[i].TS < entries[j].TS })
	return &TimelineView{Count: len(entries), Entries: entries}
}

func describeAction(a trace.Action) string {
	switch {
	case !a.Complete:
		return fmt.Sprintf("%s (incomplete)", a.Method)
	case a.Failed():
		return fmt.Sprintf("%s failed after %.0fms: %s", a.Method, a.Duration(), clip(a.Error))
	default:
		return fmt.Sprintf("%s (%.0fms)", a.Method, a.Duration())
	}
}

func clip(text string) string {
	runes := []rune(text)
	if len(runes) <= timelineTextLimit {
		return text
	}
	return string(runes[:timelineTextLimit]) + "…"
}
