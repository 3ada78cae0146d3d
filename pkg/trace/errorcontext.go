package trace

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"

	"github.com/tracehound/tracehound/pkg/errors"
)

// errorContextName is the sibling document the runner writes only for
// failed runs.
const errorContextName = "error-context.md"

// LoadErrorContext finds and parses the error-context document: first
// inside the trace directory, then next to the source path. Absence is
// not an error; most traces belong to passing runs.
func LoadErrorContext(traceDir, sourcePath string) (*ErrorContext, error) {
	candidates := []string{filepath.Join(traceDir, errorContextName)}
	if sourcePath != "" {
		candidates = append(candidates, filepath.Join(filepath.Dir(sourcePath), errorContextName))
	}

	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInvalidPath, "reading error-context document").
				WithContext("path", path).
				WithRecoverable(true)
		}
		return ParseErrorContext(data)
	}
	return nil, nil
}

// ParseErrorContext extracts the fixed fields of an error-context
// document: the Name and Location list items under "Test info" and the
// fenced block under "Error details".
func ParseErrorContext(source []byte) (*ErrorContext, error) {
	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
	)
	doc := md.Parser().Parse(text.NewReader(source))

	ec := &ErrorContext{}
	section := ""

	err := ast.Walk(doc, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch n := node.(type) {
		case *ast.Heading:
			section = strings.ToLower(strings.TrimSpace(collectPlainText(n, source)))

		case *ast.ListItem:
			if !strings.Contains(section, "test info") {
				return ast.WalkContinue, nil
			}
			item := strings.TrimSpace(collectPlainText(n, source))
			if name, ok := strings.CutPrefix(item, "Name:"); ok {
				ec.TestName = strings.TrimSpace(name)
			} else if location, ok := strings.CutPrefix(item, "Location:"); ok {
				ec.Location = strings.TrimSpace(location)
			}
			return ast.WalkSkipChildren, nil

		case *ast.FencedCodeBlock:
			if !strings.Contains(section, "error details") {
				return ast.WalkContinue, nil
			}
			if ec.Snippet == "" {
				ec.Snippet = strings.TrimRight(codeBlockText(n, source), "\n")
			}
			return ast.WalkSkipChildren, nil
		}

		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeParse, "walking error-context document").
			WithRecoverable(true)
	}

	return ec, nil
}

func codeBlockText(n *ast.FencedCodeBlock, source []byte) string {
	var b strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		segment := lines.At(i)
		b.Write(segment.Value(source))
	}
	return b.String()
}

// collectPlainText gathers the plain text beneath a node.
func collectPlainText(node ast.Node, source []byte) string {
	var b strings.Builder
	var walk func(ast.Node)
	walk = func(n ast.Node) {
		switch t := n.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(source))
			if t.SoftLineBreak() {
				b.WriteByte(' ')
			}
			if t.HardLineBreak() {
				b.WriteByte('\n')
			}
		case *ast.String:
			b.Write(t.Value)
		}
		for child := n.FirstChild(); child != nil; child = child.NextSibling() {
			walk(child)
		}
	}
	walk(node)
	return b.String()
}
