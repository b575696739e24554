// Package source retrieves original source text for spans and recovers
// syntactic structure (account references, vec! literals) that MIR has
// already lost.
package source

import (
	"strings"

	"github.com/otter-sec/anchor-lints-sub000/analysis/ir"
)

// Map gives span-based access to the program's source files. Lookups never
// fail: a span outside the map yields an empty snippet and callers degrade
// to type-based disambiguation.
type Map struct {
	files map[string][]string
}

// NewMap builds a source map from file name to file content.
func NewMap(sources map[string]string) *Map {
	files := make(map[string][]string, len(sources))
	for name, content := range sources {
		files[name] = strings.Split(content, "\n")
	}
	return &Map{files: files}
}

// Snippet returns the source text the span covers. Multi-line spans return
// the joined lines.
func (m *Map) Snippet(span ir.Span) string {
	lines, ok := m.files[span.File]
	if !ok || span.Line < 1 || span.Line > len(lines) {
		return ""
	}
	end := span.EndLine
	if end < span.Line {
		end = span.Line
	}
	if end > len(lines) {
		end = len(lines)
	}
	if span.Line == end {
		line := lines[span.Line-1]
		if span.Col >= 1 && span.Col <= len(line) {
			return line[span.Col-1:]
		}
		return line
	}
	return strings.Join(lines[span.Line-1:end], "\n")
}

// Line returns the whole source line the span starts on.
func (m *Map) Line(span ir.Span) string {
	lines, ok := m.files[span.File]
	if !ok || span.Line < 1 || span.Line > len(lines) {
		return ""
	}
	return lines[span.Line-1]
}

// ExpandBracketed returns the source starting at the span's line and
// continuing until bracket depth returns to zero, for multi-line vec!
// literals and similar constructs.
func (m *Map) ExpandBracketed(span ir.Span) string {
	lines, ok := m.files[span.File]
	if !ok || span.Line < 1 || span.Line > len(lines) {
		return ""
	}
	var buf strings.Builder
	depth := 0
	seenOpen := false
	for _, line := range lines[span.Line-1:] {
		buf.WriteString(line)
		buf.WriteByte('\n')
		for _, ch := range line {
			switch ch {
			case '[', '(', '{':
				seenOpen = true
				depth++
			case ']', ')', '}':
				if depth > 0 {
					depth--
				}
			}
		}
		if seenOpen && depth == 0 {
			break
		}
	}
	return buf.String()
}

// RemoveComments drops line comments from a code snippet.
func RemoveComments(code string) string {
	var kept []string
	for _, line := range strings.Split(code, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "//") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}
