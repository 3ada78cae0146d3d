package report

import "github.com/tracehound/tracehound/pkg/trace"

// ConsoleView is the filtered console listing.
type ConsoleView struct {
	Type      string                 `json:"type,omitempty"`
	Filter    string                 `json:"filter,omitempty"`
	Matched   int                    `json:"matched"`
	Truncated bool                   `json:"truncated,omitempty"`
	Messages  []trace.ConsoleMessage `json:"messages"`
}

// Console filters console messages by type and regex, capped at the limit.
// Matched counts every hit before the cap is applied.
func Console(tc *trace.Context, opts ConsoleOptions) (*ConsoleView, error) {
	re, err := opts.compile()
	if err != nil {
		return nil, err
	}

	view := &ConsoleView{Type: opts.Type, Filter: opts.Filter, Messages: []trace.ConsoleMessage{}}
	limit := opts.limit()

	for _, m := range tc.Console {
		if opts.Type != "" && m.Type != opts.Type {
			continue
		}
		if re != nil && !re.MatchString(m.Text) {
			continue
		}
		view.Matched++
		if len(view.Messages) < limit {
			view.Messages = append(view.Messages, m)
		}
	}

	view.Truncated = view.Matched > len(view.Messages)
	return view, nil
}
