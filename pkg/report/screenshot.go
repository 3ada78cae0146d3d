package report

import (
	"math"
	"sort"

	"github.com/tracehound/tracehound/pkg/errors"
	"github.com/tracehound/tracehound/pkg/trace"
)

// ScreenshotAt is one frame annotated with its position and resource path.
type ScreenshotAt struct {
	Index int `json:"index"`
	trace.Screenshot
	Path string `json:"path,omitempty"`

	// DeltaMs is the signed distance to the query anchor; only set by the
	// nearest-screenshot projection.
	DeltaMs float64 `json:"deltaMs,omitempty"`
}

// ScreenshotView is the nearest-screenshot result: one target frame plus
// clipped context on either side. Found is false when the trace recorded
// no frames at all.
type ScreenshotView struct {
	Found  bool           `json:"found"`
	Total  int            `json:"total"`
	Target *ScreenshotAt  `json:"target,omitempty"`
	Before []ScreenshotAt `json:"before"`
	After  []ScreenshotAt `json:"after"`
}

// Screenshot resolves the target frame (by index, or nearest the recorded
// failure) and slices context around it, clipping at both ends.
func Screenshot(tc *trace.Context, opts ScreenshotOptions) (*ScreenshotView, error) {
	view := &ScreenshotView{Before: []ScreenshotAt{}, After: []ScreenshotAt{}, Total: len(tc.Screenshots)}
	if len(tc.Screenshots) == 0 {
		return view, nil
	}

	idx, anchorOnError, err := opts.target(len(tc.Screenshots))
	if err != nil {
		return nil, err
	}

	var delta float64
	if anchorOnError {
		if tc.Verdict != trace.VerdictFailed {
			return nil, errors.New(errors.ErrCodeInvalidQuery, "trace has no recorded failure to anchor on").
				WithRemediation("pass a numeric index instead of \"error\"")
		}
		idx, delta = NearestScreenshot(tc.Screenshots, tc.ErrorTime)
	}

	view.Found = true
	target := screenshotAt(tc, idx)
	target.DeltaMs = delta
	view.Target = &target

	n := opts.contextSize()
	for i := idx - n; i < idx; i++ {
		if i < 0 {
			continue
		}
		view.Before = append(view.Before, screenshotAt(tc, i))
	}
	for i := idx + 1; i <= idx+n && i < len(tc.Screenshots); i++ {
		view.After = append(view.After, screenshotAt(tc, i))
	}

	return view, nil
}

// NearestScreenshot finds the frame with the minimum absolute time distance
// from ts. Frames must be sorted ascending. On an exact tie between the
// frames either side, the earlier one wins.
func NearestScreenshot(shots []trace.Screenshot, ts float64) (int, float64) {
	right := sort.Search(len(shots), func(i int) bool { return shots[i].TS >= ts })

	if right == len(shots) {
		last := len(shots) - 1
		return last, shots[last].TS - ts
	}
	if right == 0 {
		return 0, shots[0].TS - ts
	}

	left := right - 1
	if math.Abs(shots[left].TS-ts) <= math.Abs(shots[right].TS-ts) {
		return left, shots[left].TS - ts
	}
	return right, shots[right].TS - ts
}

func screenshotAt(tc *trace.Context, i int) ScreenshotAt {
	s := tc.Screenshots[i]
	return ScreenshotAt{Index: i, Screenshot: s, Path: tc.ResourcePath(s.SHA1)}
}
