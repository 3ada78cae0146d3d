package report

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/tracehound/tracehound/pkg/errors"
)

// DefaultConsoleLimit caps console query results when no limit is given.
const DefaultConsoleLimit = 50

// DefaultAroundWindowMs is the half-width of a time-window query.
const DefaultAroundWindowMs = 5000.0

// DefaultScreenshotContext is how many frames to show either side of the
// screenshot target.
const DefaultScreenshotContext = 3

// ConsoleOptions filters the console projection. Zero values mean
// "unfiltered" for Type and Filter and "default cap" for Limit.
type ConsoleOptions struct {
	// Type keeps only messages of this console type (log, error, warning).
	Type string

	// Filter is a regular expression applied to message text.
	Filter string

	// Limit caps the result list.
	Limit int
}

func (o ConsoleOptions) compile() (*regexp.Regexp, error) {
	if o.Filter == "" {
		return nil, nil
	}
	re, err := regexp.Compile(o.Filter)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidQuery, "invalid console filter").
			WithContext("filter", o.Filter).
			WithRemediation("pass a valid Go regular expression to --filter")
	}
	return re, nil
}

func (o ConsoleOptions) limit() int {
	if o.Limit <= 0 {
		return DefaultConsoleLimit
	}
	return o.Limit
}

// ScreenshotTargetError anchors the screenshot query on the recorded
// failure time instead of a numeric index.
const ScreenshotTargetError = "error"

// ScreenshotOptions selects one screenshot plus surrounding context.
type ScreenshotOptions struct {
	// At is a zero-based index, or ScreenshotTargetError for the frame
	// nearest the recorded failure. Empty means the last screenshot.
	At string

	// Context is how many frames to include before and after the target.
	// Negative means DefaultScreenshotContext.
	Context int
}

// target resolves At to (index, anchorsOnError). total is the screenshot
// count; the index form is range-checked here.
func (o ScreenshotOptions) target(total int) (int, bool, error) {
	if o.At == ScreenshotTargetError {
		return 0, true, nil
	}
	if o.At == "" {
		return total - 1, false, nil
	}
	idx, err := strconv.Atoi(o.At)
	if err != nil {
		return 0, false, errors.New(errors.ErrCodeInvalidQuery,
			fmt.Sprintf("screenshot target %q is neither an index nor %q", o.At, ScreenshotTargetError))
	}
	if idx < 0 || idx >= total {
		return 0, false, errors.New(errors.ErrCodeInvalidQuery,
			fmt.Sprintf("screenshot index %d out of range 0-%d", idx, total-1))
	}
	return idx, false, nil
}

func (o ScreenshotOptions) contextSize() int {
	if o.Context < 0 {
		return DefaultScreenshotContext
	}
	return o.Context
}

// AroundOptions selects every signal within Window ms of Time.
type AroundOptions struct {
	Time   float64
	Window float64
}

func (o AroundOptions) validate() error {
	if o.Time < 0 {
		return errors.New(errors.ErrCodeInvalidQuery, "target time must not be negative")
	}
	if o.Window < 0 {
		return errors.New(errors.ErrCodeInvalidQuery, "window must not be negative")
	}
	return nil
}

func (o AroundOptions) window() float64 {
	if o.Window == 0 {
		return DefaultAroundWindowMs
	}
	return o.Window
}
