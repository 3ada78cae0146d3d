package trace

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"golang.org/x/term"

	"github.com/tracehound/tracehound/pkg/errors"
)

// Selector chooses one archive from the discovered candidates. Injectable
// so batch mode and tests never touch a terminal.
type Selector func(candidates []Candidate) (string, error)

type pickerStyles struct {
	title lipgloss.Style
	index lipgloss.Style
	path  lipgloss.Style
	stale lipgloss.Style
	meta  lipgloss.Style
}

func newPickerStyles() pickerStyles {
	dim := lipgloss.AdaptiveColor{Light: "#666666", Dark: "#888888"}
	return pickerStyles{
		title: lipgloss.NewStyle().Bold(true),
		index: lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#0066CC", Dark: "#5599FF"}),
		path:  lipgloss.NewStyle(),
		stale: lipgloss.NewStyle().Foreground(dim).Faint(true),
		meta:  lipgloss.NewStyle().Foreground(dim),
	}
}

// TerminalSelector prompts for a numeric choice. It requires both ends to
// be real terminals; anything else fails rather than hanging a pipeline.
func TerminalSelector(in, out *os.File) Selector {
	return func(candidates []Candidate) (string, error) {
		if len(candidates) == 0 {
			return "", errors.New(errors.ErrCodeSelection, "no trace archives found").
				WithRemediation("run your tests with tracing enabled or pass a trace path directly")
		}

		if !term.IsTerminal(int(in.Fd())) || !term.IsTerminal(int(out.Fd())) {
			return "", errors.New(errors.ErrCodeSelection, "no trace path given and no interactive terminal to pick one").
				WithRemediation("pass a trace path as the last argument")
		}

		width := 80
		if w, _, err := term.GetSize(int(out.Fd())); err == nil && w > 0 {
			width = w
		}

		styles := newPickerStyles()
		fmt.Fprintln(out, styles.title.Render("Recent traces:"))
		for i, candidate := range candidates {
			fmt.Fprintln(out, renderCandidate(i+1, candidate, width, styles))
		}

		fmt.Fprintf(out, "Select a trace [1-%d]: ", len(candidates))
		reader := bufio.NewReader(in)
		input, err := reader.ReadString('\n')
		if err != nil {
			return "", errors.Wrap(err, errors.ErrCodeSelection, "reading selection")
		}

		choice, err := strconv.Atoi(strings.TrimSpace(input))
		if err != nil || choice < 1 || choice > len(candidates) {
			return "", errors.New(errors.ErrCodeSelection,
				fmt.Sprintf("selection %q out of range 1-%d", strings.TrimSpace(input), len(candidates)))
		}

		return candidates[choice-1].Path, nil
	}
}

func renderCandidate(number int, candidate Candidate, width int, styles pickerStyles) string {
	label := fmt.Sprintf("%2d)", number)
	meta := humanAge(time.Since(candidate.ModTime))
	if candidate.Stale {
		meta += " (stale)"
	}

	// Leave room for the label, the metadata column, and separators.
	pathWidth := width - len(label) - runewidth.StringWidth(meta) - 4
	if pathWidth < 16 {
		pathWidth = 16
	}
	path := runewidth.Truncate(candidate.Path, pathWidth, "…")

	pathStyle := styles.path
	if candidate.Stale {
		pathStyle = styles.stale
	}

	return fmt.Sprintf("%s %s  %s",
		styles.index.Render(label),
		pathStyle.Render(path),
		styles.meta.Render(meta))
}

func humanAge(age time.Duration) string {
	switch {
	case age < time.Minute:
		return "just now"
	case age < time.Hour:
		return fmt.Sprintf("%dm ago", int(age.Minutes()))
	case age < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(age.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(age.Hours()/24))
	}
}
