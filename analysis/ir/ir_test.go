package ir

import "testing"

func TestSpanZero(t *testing.T) {
	var s Span
	if !s.IsZero() {
		t.Errorf("zero span should report IsZero")
	}
	if s.String() != "<no location>" {
		t.Errorf("unexpected zero span rendering: %s", s)
	}
	s = Span{File: "lib.rs", Line: 10, Col: 5}
	if s.IsZero() {
		t.Errorf("located span should not report IsZero")
	}
	if s.String() != "lib.rs:10:5" {
		t.Errorf("unexpected span rendering: %s", s)
	}
}

func TestSpanSameLine(t *testing.T) {
	a := Span{File: "lib.rs", Line: 3, Col: 1}
	b := Span{File: "lib.rs", Line: 3, Col: 20}
	c := Span{File: "other.rs", Line: 3, Col: 1}
	if !a.SameLine(b) {
		t.Errorf("spans on the same line should match")
	}
	if a.SameLine(c) {
		t.Errorf("spans in different files should not match")
	}
}

func TestPlaceAsLocal(t *testing.T) {
	p := Place{Local: 3}
	if l, ok := p.AsLocal(); !ok || l != 3 {
		t.Errorf("bare place should resolve to its local, got %d %v", l, ok)
	}
	p.Projections = []Projection{{Kind: ProjDeref}}
	if _, ok := p.AsLocal(); ok {
		t.Errorf("projected place should not resolve to a local")
	}
}

func TestPlaceString(t *testing.T) {
	p := Place{Local: 1, Projections: []Projection{
		{Kind: ProjDeref},
		{Kind: ProjField, Name: "accounts"},
		{Kind: ProjField, Field: 2},
		{Kind: ProjIndex},
	}}
	want := "_1.*.accounts.2[_]"
	if got := p.String(); got != want {
		t.Errorf("place rendering: got %q, want %q", got, want)
	}
}

func blockID(b BlockID) *BlockID { return &b }

func TestTerminatorSuccessors(t *testing.T) {
	call := Terminator{Kind: TermCall, Target: blockID(1), Cleanup: blockID(2)}
	if got := call.Successors(); len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("call successors: got %v", got)
	}
	sw := Terminator{
		Kind:      TermSwitchInt,
		Targets:   []SwitchTarget{{Value: 0, Block: 3}, {Value: 1, Block: 4}},
		Otherwise: blockID(5),
	}
	if got := sw.Successors(); len(got) != 3 || got[2] != 5 {
		t.Errorf("switch successors: got %v", got)
	}
	ret := Terminator{Kind: TermReturn}
	if got := ret.Successors(); len(got) != 0 {
		t.Errorf("return should have no successors, got %v", got)
	}
}

func TestAsStaticIf(t *testing.T) {
	sw := Terminator{
		Kind:      TermSwitchInt,
		Targets:   []SwitchTarget{{Value: 0, Block: 2}},
		Otherwise: blockID(3),
	}
	value, then, els, ok := sw.AsStaticIf()
	if !ok || value != 0 || then != 2 || els != 3 {
		t.Errorf("static if: got (%d, %d, %d, %v)", value, then, els, ok)
	}
	sw.Targets = append(sw.Targets, SwitchTarget{Value: 1, Block: 4})
	if _, _, _, ok := sw.AsStaticIf(); ok {
		t.Errorf("three-way switch should not decompose as a static if")
	}
}

func TestBodyLocals(t *testing.T) {
	inner := &Type{Kind: KindAdt, Path: "my_program::Pool"}
	body := &Body{
		DefPath:  "my_program::handler",
		ArgCount: 1,
		Locals: []LocalDecl{
			{Type: &Type{Kind: KindUnit}},
			{Type: &Type{Kind: KindRef, Elem: inner}, Span: Span{File: "lib.rs", Line: 4}},
		},
	}
	if got := body.LocalType(1); got == nil || got.Path != inner.Path {
		t.Errorf("LocalType should peel references, got %v", got)
	}
	if body.LocalType(7) != nil {
		t.Errorf("out-of-range local should have nil type")
	}
	if !body.IsParam(1) || body.IsParam(0) || body.IsParam(2) {
		t.Errorf("IsParam should hold exactly for locals 1..=ArgCount")
	}
	if got := body.LocalSpan(1); got.Line != 4 {
		t.Errorf("LocalSpan: got %v", got)
	}
}

func TestProgramLookup(t *testing.T) {
	prog := &Program{
		Functions: []*Body{{DefPath: "my_program::instructions::withdraw", ArgCount: 0, Locals: []LocalDecl{{}}}},
		Structs: []*StructDef{
			{Path: "my_program::instructions::Withdraw", Name: "Withdraw"},
		},
	}
	if prog.Function("my_program::instructions::withdraw") == nil {
		t.Errorf("exact function lookup failed")
	}
	if prog.Function("withdraw") != nil {
		t.Errorf("function lookup should be exact")
	}
	if prog.Struct("my_program::instructions::Withdraw") == nil {
		t.Errorf("exact struct lookup failed")
	}
	if prog.Struct("other_crate::Withdraw") == nil {
		t.Errorf("struct lookup should fall back to a name-suffix match")
	}
	if prog.Struct("other_crate::Deposit") != nil {
		t.Errorf("unrelated struct should not resolve")
	}
}
