// Package diag collects and renders lint findings.
package diag

import (
	"fmt"
	"io"
	"sort"

	"github.com/otter-sec/anchor-lints-sub000/analysis/ir"
	"github.com/otter-sec/anchor-lints-sub000/internal/formatutil"
)

// Diagnostic is a single lint finding anchored to a source span.
type Diagnostic struct {
	// Lint is the reporting lint's name, e.g. "missing_signer_validation".
	Lint    string  `json:"lint"`
	Span    ir.Span `json:"span"`
	Message string  `json:"message"`
	// Note and NoteSpan optionally point at related code, such as the
	// account field declaration behind a flagged use.
	Note     string  `json:"note,omitempty"`
	NoteSpan ir.Span `json:"note_span"`
}

func (d Diagnostic) key() string {
	return fmt.Sprintf("%s|%s|%s", d.Lint, d.Span, d.Message)
}

// Reporter accumulates diagnostics, deduplicating repeats. The zero value
// is ready to use.
type Reporter struct {
	seen  map[string]bool
	diags []Diagnostic
}

// Report records a finding. A finding with the same lint, span and message
// as an earlier one is dropped.
func (r *Reporter) Report(d Diagnostic) {
	if r.seen == nil {
		r.seen = make(map[string]bool)
	}
	k := d.key()
	if r.seen[k] {
		return
	}
	r.seen[k] = true
	r.diags = append(r.diags, d)
}

// Reportf records a finding with a formatted message.
func (r *Reporter) Reportf(lint string, span ir.Span, format string, args ...interface{}) {
	r.Report(Diagnostic{Lint: lint, Span: span, Message: fmt.Sprintf(format, args...)})
}

// Diagnostics returns the findings ordered by file, line, column, lint and
// message. The order is stable across runs.
func (r *Reporter) Diagnostics() []Diagnostic {
	out := make([]Diagnostic, len(r.diags))
	copy(out, r.diags)
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Span.File != b.Span.File {
			return a.Span.File < b.Span.File
		}
		if a.Span.Line != b.Span.Line {
			return a.Span.Line < b.Span.Line
		}
		if a.Span.Col != b.Span.Col {
			return a.Span.Col < b.Span.Col
		}
		if a.Lint != b.Lint {
			return a.Lint < b.Lint
		}
		return a.Message < b.Message
	})
	return out
}

// Count returns the number of distinct findings recorded so far.
func (r *Reporter) Count() int { return len(r.diags) }

// Print writes the findings to w, one per line, with an optional note line.
func (r *Reporter) Print(w io.Writer) {
	PrintDiagnostics(w, r.Diagnostics())
}

// PrintDiagnostics writes diagnostics to w in the text report format. The
// caller is responsible for ordering; Reporter.Diagnostics already sorts.
func PrintDiagnostics(w io.Writer, diags []Diagnostic) {
	for _, d := range diags {
		fmt.Fprintf(w, "%s: %s: %s\n",
			formatutil.Yellow("warning"),
			formatutil.Bold(d.Lint),
			d.Message)
		fmt.Fprintf(w, "  %s %s\n", formatutil.Faint("-->"), d.Span)
		if d.Note != "" {
			if d.NoteSpan.IsZero() {
				fmt.Fprintf(w, "  %s %s\n", formatutil.Faint("note:"), d.Note)
			} else {
				fmt.Fprintf(w, "  %s %s (%s)\n",
					formatutil.Faint("note:"), d.Note, d.NoteSpan)
			}
		}
	}
}
