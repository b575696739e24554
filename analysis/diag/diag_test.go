package diag

import (
	"bytes"
	"strings"
	"testing"

	"github.com/otter-sec/anchor-lints-sub000/analysis/ir"
)

func span(file string, line int) ir.Span {
	return ir.Span{File: file, Line: line, Col: 1, EndLine: line}
}

func TestReportDeduplicates(t *testing.T) {
	var r Reporter
	d := Diagnostic{Lint: "missing_signer", Span: span("lib.rs", 10), Message: "m"}
	r.Report(d)
	r.Report(d)
	if r.Count() != 1 {
		t.Errorf("duplicate findings should collapse, got %d", r.Count())
	}
	d.Message = "other"
	r.Report(d)
	if r.Count() != 2 {
		t.Errorf("distinct messages are distinct findings, got %d", r.Count())
	}
}

func TestDiagnosticsOrder(t *testing.T) {
	var r Reporter
	r.Reportf("b_lint", span("z.rs", 1), "z first by file")
	r.Reportf("b_lint", span("a.rs", 9), "later line")
	r.Reportf("b_lint", span("a.rs", 2), "b lint")
	r.Reportf("a_lint", span("a.rs", 2), "a lint")
	got := r.Diagnostics()
	if got[0].Lint != "a_lint" || got[0].Span.Line != 2 {
		t.Errorf("order head: %+v", got[0])
	}
	if got[1].Lint != "b_lint" || got[2].Span.Line != 9 {
		t.Errorf("order middle: %+v %+v", got[1], got[2])
	}
	if got[3].Span.File != "z.rs" {
		t.Errorf("order tail: %+v", got[3])
	}
}

func TestPrint(t *testing.T) {
	var r Reporter
	r.Report(Diagnostic{
		Lint:     "arbitrary_cpi",
		Span:     span("lib.rs", 42),
		Message:  "program id is attacker controlled",
		Note:     "account declared here",
		NoteSpan: span("lib.rs", 7),
	})
	var buf bytes.Buffer
	r.Print(&buf)
	out := buf.String()
	for _, want := range []string{
		"warning", "arbitrary_cpi", "program id is attacker controlled",
		"lib.rs:42:1", "note:", "account declared here", "lib.rs:7:1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("printed report missing %q:\n%s", want, out)
		}
	}
}

func TestPrintNoteWithoutSpan(t *testing.T) {
	var buf bytes.Buffer
	PrintDiagnostics(&buf, []Diagnostic{{
		Lint: "l", Span: span("lib.rs", 1), Message: "m", Note: "plain note",
	}})
	if !strings.Contains(buf.String(), "plain note") {
		t.Errorf("note without span should still print:\n%s", buf.String())
	}
}
