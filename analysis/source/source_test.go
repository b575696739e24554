package source

import (
	"strings"
	"testing"

	"github.com/otter-sec/anchor-lints-sub000/analysis/ir"
)

const libRS = `use anchor_lang::prelude::*;

pub fn handler(ctx: Context<Transfer>) -> Result<()> {
    let accounts = vec![
        ctx.accounts.from.to_account_info(),
        ctx.accounts.to.to_account_info(),
    ];
    // a trailing comment
    invoke(&instruction, &accounts)?;
    Ok(())
}`

func testMap() *Map {
	return NewMap(map[string]string{"lib.rs": libRS})
}

func TestSnippet(t *testing.T) {
	m := testMap()
	span := ir.Span{File: "lib.rs", Line: 5, Col: 9, EndLine: 5}
	if got := m.Snippet(span); got != "ctx.accounts.from.to_account_info()," {
		t.Errorf("snippet: got %q", got)
	}
	multi := ir.Span{File: "lib.rs", Line: 4, Col: 1, EndLine: 7}
	if got := m.Snippet(multi); !strings.Contains(got, "vec![") || !strings.Contains(got, "];") {
		t.Errorf("multi-line snippet: got %q", got)
	}
	if got := m.Snippet(ir.Span{File: "missing.rs", Line: 1}); got != "" {
		t.Errorf("unknown file should yield an empty snippet, got %q", got)
	}
	if got := m.Snippet(ir.Span{File: "lib.rs", Line: 99}); got != "" {
		t.Errorf("out-of-range line should yield an empty snippet, got %q", got)
	}
}

func TestLine(t *testing.T) {
	m := testMap()
	span := ir.Span{File: "lib.rs", Line: 9, Col: 30}
	if got := strings.TrimSpace(m.Line(span)); got != "invoke(&instruction, &accounts)?;" {
		t.Errorf("line: got %q", got)
	}
}

func TestExpandBracketed(t *testing.T) {
	m := testMap()
	span := ir.Span{File: "lib.rs", Line: 4, Col: 20}
	got := m.ExpandBracketed(span)
	if !strings.Contains(got, "ctx.accounts.to.to_account_info()") {
		t.Errorf("expansion should cover the whole vec! literal, got %q", got)
	}
	if strings.Contains(got, "invoke") {
		t.Errorf("expansion should stop at balanced brackets, got %q", got)
	}
}

func TestRemoveComments(t *testing.T) {
	in := "let a = 1;\n// drop me\nlet b = 2;"
	got := RemoveComments(in)
	if strings.Contains(got, "drop me") || !strings.Contains(got, "let b") {
		t.Errorf("RemoveComments: got %q", got)
	}
}

func TestExtractAccountName(t *testing.T) {
	cases := []struct{ in, want string }{
		{"ctx.accounts.vault.to_account_info()", "vault"},
		{"&mut ctx.accounts.user", "user"},
		{"accounts.pool", "pool"},
		{"user.key()", "user"},
		{"self.accounts.authority", "authority"},
		{"just_a_name", "just_a_name"},
	}
	for _, c := range cases {
		if got := ExtractAccountName(c.in); got != c.want {
			t.Errorf("ExtractAccountName(%q): got %q, want %q", c.in, got, c.want)
		}
	}
}

func TestExtractContextAccount(t *testing.T) {
	line := "    let info = ctx.accounts.vault.to_account_info(); // [flag]"
	if got := ExtractContextAccount(line, true); got != "vault" {
		t.Errorf("onlyName: got %q", got)
	}
	if got := ExtractContextAccount(line, false); got != "ctx.accounts.vault" {
		t.Errorf("full path: got %q", got)
	}
}

func TestExtractVecElements(t *testing.T) {
	snippet := "vec![a.to_account_info(), b.key(), helper(c, d)]"
	got := ExtractVecElements(snippet)
	want := []string{"a.to_account_info()", "b.key()", "helper(c, d)"}
	if len(got) != len(want) {
		t.Fatalf("elements: got %v", got)
	}
	for i := range want {
		if strings.TrimSpace(got[i]) != want[i] {
			t.Errorf("element %d: got %q, want %q", i, got[i], want[i])
		}
	}
	if ExtractVecElements("not a vec") != nil {
		t.Errorf("non-vec snippet should yield nil")
	}
}
