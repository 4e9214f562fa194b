// Package diff computes line-based unified differences between snapshot
// projections.
package diff

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// DefaultContext is the number of unchanged lines shown around each hunk.
const DefaultContext = 3

// Differ implements monitor.Differ.
type Differ struct {
	Context int
}

// New returns a Differ using DefaultContext.
func New() Differ {
	return Differ{Context: DefaultContext}
}

// Diff returns the unified diff of previous and current with the two
// `---`/`+++` header lines removed. Identical inputs yield "".
func (d Differ) Diff(previous, current string) string {
	return unified(previous, current, d.Context)
}

func unified(previous, current string, context int) string {
	if previous == current {
		return ""
	}
	out, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        splitLines(previous),
		B:        splitLines(current),
		FromFile: "previous",
		ToFile:   "current",
		Context:  context,
	})
	if err != nil || out == "" {
		return ""
	}
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	if len(lines) <= 2 {
		return ""
	}
	return strings.Join(lines[2:], "\n")
}

// splitLines splits s into newline-terminated lines. A trailing newline does
// not produce an extra empty line and "" produces no lines.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.TrimSuffix(s, "\n")
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] += "\n"
	}
	return lines
}
