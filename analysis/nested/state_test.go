package nested

import (
	"testing"

	"github.com/otter-sec/anchor-lints-sub000/analysis/ir"
)

func TestEnterLeave(t *testing.T) {
	s := NewState()
	if !s.Enter("crate::helper") {
		t.Fatalf("first entry should succeed")
	}
	if s.Enter("crate::helper") {
		t.Errorf("re-entering a function on the stack must fail")
	}
	s.Leave("crate::helper")
	if s.Enter("crate::helper") {
		t.Errorf("a finished function must not be analyzed again")
	}
	if !s.Enter("crate::other") {
		t.Errorf("unrelated functions enter independently")
	}
}

func TestMarkWarned(t *testing.T) {
	s := NewState()
	if !s.MarkWarned("vault:lib.rs:10:3") {
		t.Errorf("first warning should record")
	}
	if s.MarkWarned("vault:lib.rs:10:3") {
		t.Errorf("repeated key should be suppressed")
	}
	if !s.MarkWarned("vault:lib.rs:11:3") {
		t.Errorf("distinct keys warn independently")
	}
}

func TestTraitMethodSpans(t *testing.T) {
	s := NewState()
	at := ir.Span{File: "lib.rs", Line: 20, Col: 5}
	s.NoteTraitMethod(at)
	if !s.SawTraitMethodAt(ir.Span{File: "lib.rs", Line: 20, Col: 30}) {
		t.Errorf("same-line span should match")
	}
	if s.SawTraitMethodAt(ir.Span{File: "lib.rs", Line: 21}) {
		t.Errorf("different line should not match")
	}
	if len(s.TraitMethodSpans()) != 1 {
		t.Errorf("spans: got %v", s.TraitMethodSpans())
	}
}
