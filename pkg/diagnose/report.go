package diagnose

import (
	"fmt"

	"github.com/tracehound/tracehound/pkg/trace"
)

// Report is the full outcome of one diagnosis pass over a trace.
type Report struct {
	TestName string        `json:"testName,omitempty"`
	Verdict  trace.Verdict `json:"verdict"`

	// Summary is the one-line human reading of the report.
	Summary string `json:"summary"`

	// Primary is the issue most worth reading first: the earliest
	// non-recovered critical issue, or the earliest non-recovered issue.
	// Nil when the trace is clean.
	Primary *Issue `json:"primary,omitempty"`

	// Issues lists diagnosed issues by time, capped at the configured
	// limit. Counts are computed before the cap.
	Issues []Issue `json:"issues"`

	Counts      map[Category]int `json:"counts"`
	TotalIssues int              `json:"totalIssues"`

	// HiddenRecovered counts recovered issues excluded from the list.
	// Always zero in verbose mode, where they are listed instead.
	HiddenRecovered int `json:"hiddenRecovered,omitempty"`
}

// assemble turns the deduplicated issue list into a Report.
func assemble(tc *trace.Context, issues []Issue, opts Options) *Report {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultIssueLimit
	}

	primary := selectPrimary(issues)

	visible := issues
	hidden := 0
	if !opts.Verbose {
		visible = make([]Issue, 0, len(issues))
		for _, issue := range issues {
			if issue.Recovered {
				hidden++
				continue
			}
			visible = append(visible, issue)
		}
	}

	counts := make(map[Category]int)
	for _, issue := range visible {
		counts[issue.Category]++
	}
	total := len(visible)

	if len(visible) > limit {
		visible = visible[:limit]
	}
	if visible == nil {
		visible = []Issue{}
	}

	return &Report{
		TestName:        tc.TestName,
		Verdict:         tc.Verdict,
		Summary:         renderSummary(total, primary, hidden),
		Primary:         primary,
		Issues:          visible,
		Counts:          counts,
		TotalIssues:     total,
		HiddenRecovered: hidden,
	}
}

// selectPrimary picks the first non-recovered critical issue, falling back
// to the first non-recovered issue of any category.
func selectPrimary(issues []Issue) *Issue {
	for _, issue := range issues {
		if issue.Recovered {
			continue
		}
		if issue.Category.Critical() {
			p := issue
			return &p
		}
	}
	for _, issue := range issues {
		if !issue.Recovered {
			p := issue
			return &p
		}
	}
	return nil
}

func renderSummary(total int, primary *Issue, hidden int) string {
	if primary == nil {
		switch {
		case total > 0:
			return fmt.Sprintf("no active failures; %s listed", pluralize(total, "recovered issue"))
		case hidden > 0:
			return fmt.Sprintf("no known error patterns detected (%s hidden)", pluralize(hidden, "recovered issue"))
		default:
			return "no known error patterns detected"
		}
	}
	return fmt.Sprintf("⚠ %s detected; primary: %s", pluralize(total, "issue"), primary.Category)
}

func pluralize(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
