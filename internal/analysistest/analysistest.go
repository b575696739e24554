// Package analysistest runs lints over fixture archives and checks the
// emitted spans against marker comments in the fixture sources.
//
// A fixture is a txtar archive bundling one IR export (the .json file) with
// the Rust sources it was produced from. Source lines may end with a
// `// [marker]` comment: a marker carrying the lint's unsafe token demands a
// diagnostic on that line, and a marker starting with "safe" forbids one.
package analysistest

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"testing"

	"github.com/otter-sec/anchor-lints-sub000/analysis"
	"github.com/otter-sec/anchor-lints-sub000/analysis/diag"
	"github.com/otter-sec/anchor-lints-sub000/analysis/ir"
	"github.com/otter-sec/anchor-lints-sub000/analysis/source"
	"golang.org/x/tools/txtar"
)

// Match a trailing marker comment like "// [missing_owner_check]"
var markerRegex = regexp.MustCompile(`//\s*\[([A-Za-z0-9_]+)\]\s*$`)

// LPos is a file position with the column dropped; markers bind whole lines.
type LPos struct {
	Filename string
	Line     int
}

func (p LPos) String() string {
	return fmt.Sprintf("%s:%d", p.Filename, p.Line)
}

// Fixture is a loaded test archive: the decoded IR export plus the fixture
// sources, keyed by archive file name.
type Fixture struct {
	Prog    *ir.Program
	Sources map[string]string
}

// LoadFixture reads the txtar archive at path. Exactly one .json file is
// expected; every other file is treated as a fixture source and merged into
// the program's source map, so exports need not embed the text twice.
func LoadFixture(t *testing.T, path string) *Fixture {
	t.Helper()
	archive, err := txtar.ParseFile(path)
	if err != nil {
		t.Fatalf("failed to read fixture %s: %v", path, err)
	}
	fixture := &Fixture{Sources: make(map[string]string)}
	for _, f := range archive.Files {
		if strings.HasSuffix(f.Name, ".json") {
			if fixture.Prog != nil {
				t.Fatalf("fixture %s has more than one IR export", path)
			}
			prog, err := ir.Decode(bytes.NewReader(f.Data))
			if err != nil {
				t.Fatalf("failed to decode IR export %s in %s: %v", f.Name, path, err)
			}
			fixture.Prog = prog
			continue
		}
		fixture.Sources[f.Name] = string(f.Data)
	}
	if fixture.Prog == nil {
		t.Fatalf("fixture %s has no IR export", path)
	}
	if fixture.Prog.Sources == nil {
		fixture.Prog.Sources = make(map[string]string)
	}
	for name, text := range fixture.Sources {
		if _, ok := fixture.Prog.Sources[name]; !ok {
			fixture.Prog.Sources[name] = text
		}
	}
	return fixture
}

// Markers scans the fixture sources and returns the marker name found on
// each annotated line.
func (f *Fixture) Markers() map[LPos]string {
	out := make(map[LPos]string)
	for name, text := range f.Sources {
		for i, line := range strings.Split(text, "\n") {
			if m := markerRegex.FindStringSubmatch(line); m != nil {
				out[LPos{Filename: name, Line: i + 1}] = m[1]
			}
		}
	}
	return out
}

// RunLint runs a single lint over the fixture's program and returns its
// findings in span order.
func RunLint(f *Fixture, l analysis.Lint) []diag.Diagnostic {
	src := source.NewMap(f.Prog.Sources)
	rep := &diag.Reporter{}
	l.Run(f.Prog, src, rep)
	return rep.Diagnostics()
}

// CheckLint loads the fixture at path, runs l, and diffs the emitted spans
// against the fixture markers. Lines marked with the lint's unsafe token
// must receive a diagnostic; lines whose marker starts with "safe" must not.
func CheckLint(t *testing.T, path string, l analysis.Lint, unsafeMarker string) {
	t.Helper()
	fixture := LoadFixture(t, path)
	diags := RunLint(fixture, l)

	reported := make(map[LPos]bool)
	for _, d := range diags {
		reported[LPos{Filename: d.Span.File, Line: d.Span.Line}] = true
	}

	for pos, marker := range fixture.Markers() {
		switch {
		case marker == unsafeMarker:
			if !reported[pos] {
				t.Errorf("%s: expected a %s diagnostic, got none", pos, l.Name)
			}
		case strings.HasPrefix(marker, "safe"):
			if reported[pos] {
				t.Errorf("%s: unexpected %s diagnostic on safe line", pos, l.Name)
			}
		}
	}
}
