package mir

import (
	"testing"

	"github.com/otter-sec/anchor-lints-sub000/analysis/anchor"
	"github.com/otter-sec/anchor-lints-sub000/analysis/ir"
	"github.com/otter-sec/anchor-lints-sub000/analysis/source"
)

func newTestAnalyzer(body *ir.Body) *Analyzer {
	return NewAnalyzer(&ir.Program{}, body, source.NewMap(nil))
}

func gotoBlock(b ir.BlockID) ir.Terminator {
	return ir.Terminator{Kind: ir.TermGoto, GotoTarget: &b}
}

// diamondBody builds 0 -> (1 | 2) -> 3.
func diamondBody() *ir.Body {
	one, two, three := ir.BlockID(1), ir.BlockID(2), ir.BlockID(3)
	return &ir.Body{
		DefPath: "test::diamond",
		Locals:  unitLocals(4),
		Blocks: []ir.BasicBlock{
			{Terminator: ir.Terminator{
				Kind:      ir.TermSwitchInt,
				Discr:     &ir.Operand{Kind: ir.OpCopy, Place: ir.Place{Local: 1}},
				Targets:   []ir.SwitchTarget{{Value: 0, Block: one}},
				Otherwise: &two,
			}},
			{Terminator: gotoBlock(three)},
			{Terminator: gotoBlock(three)},
			{Terminator: ir.Terminator{Kind: ir.TermReturn}},
		},
	}
}

func TestResolveToOriginal(t *testing.T) {
	a := newTestAnalyzer(oneBlockBody(
		assign(2, refTo(1)),
		assign(3, useOf(2)),
		assign(5, constUse()),
	))
	if got := a.ResolveToOriginal(3); got != 1 {
		t.Errorf("_3 should resolve to _1, got _%d", got)
	}
	if got := a.ResolveToOriginal(5); got != 5 {
		t.Errorf("an unrelated local resolves to itself, got _%d", got)
	}
}

func TestSameValueAndResolved(t *testing.T) {
	a := newTestAnalyzer(oneBlockBody(
		assign(2, useOf(1)),
		assign(3, useOf(2)),
		assign(4, useOf(1)),
	))
	if !a.SameValue(1, 3) {
		t.Errorf("_1 flows into _3")
	}
	if a.SameValue(3, 1) {
		t.Errorf("flow is directed")
	}
	if !a.SameResolved(3, 4) {
		t.Errorf("_3 and _4 share the original _1")
	}
}

func TestOriginOf(t *testing.T) {
	body := oneBlockBody(
		assign(2, useOf(1)),
		assign(3, constUse()),
		assign(4, useOf(3)),
	)
	body.ArgCount = 1
	a := newTestAnalyzer(body)
	if got := a.OriginOf(localOp(2)); got != OriginParameter {
		t.Errorf("copy of a parameter: got %v", got)
	}
	if got := a.OriginOf(localOp(4)); got != OriginConstant {
		t.Errorf("copy of a constant: got %v", got)
	}
	if got := a.OriginOf(ir.Operand{Kind: ir.OpConstant}); got != OriginConstant {
		t.Errorf("constant operand: got %v", got)
	}
}

func TestReachable(t *testing.T) {
	a := newTestAnalyzer(diamondBody())
	if !a.Reachable(0, 3) || !a.Reachable(1, 3) {
		t.Errorf("diamond exit should be reachable")
	}
	if a.Reachable(1, 2) {
		t.Errorf("branch arms are not mutually reachable")
	}
	if a.Reachable(3, 0) {
		t.Errorf("edges are directed")
	}
}

func TestDominates(t *testing.T) {
	a := newTestAnalyzer(diamondBody())
	if !a.Dominates(0, 3) {
		t.Errorf("entry dominates the exit")
	}
	if a.Dominates(1, 3) {
		t.Errorf("one arm of a diamond does not dominate the join")
	}
	if !a.Dominates(2, 2) {
		t.Errorf("a block dominates itself")
	}
}

func TestReachableWithoutPassing(t *testing.T) {
	a := newTestAnalyzer(diamondBody())
	if !a.ReachableWithoutPassing([]ir.BlockID{0}, []ir.BlockID{3}, []ir.BlockID{1}) {
		t.Errorf("avoiding one arm still reaches the join through the other")
	}
	if a.ReachableWithoutPassing([]ir.BlockID{0}, []ir.BlockID{3}, []ir.BlockID{1, 2}) {
		t.Errorf("banning both arms cuts off the join")
	}
	trace := a.TraceWithoutPassing([]ir.BlockID{0}, []ir.BlockID{3}, nil)
	if trace[3] != 0 {
		t.Errorf("trace should map the join back to the entry, got %v", trace)
	}
}

func TestTakesCpiContext(t *testing.T) {
	body := oneBlockBody()
	body.Locals[2].Type = &ir.Type{Kind: ir.KindAdt, Path: anchor.PathCpiContext}
	a := newTestAnalyzer(body)
	withCtx := []ir.Arg{{Operand: localOp(2)}}
	withoutCtx := []ir.Arg{{Operand: localOp(3)}}
	if !a.TakesCpiContext(withCtx) {
		t.Errorf("CpiContext argument not detected")
	}
	if a.TakesCpiContext(withoutCtx) {
		t.Errorf("plain argument misdetected")
	}
}

func TestTypeOf(t *testing.T) {
	body := oneBlockBody()
	body.Locals[1].Type = &ir.Type{Kind: ir.KindRef, Elem: &ir.Type{Kind: ir.KindAdt, Path: anchor.PathPubkey}}
	a := newTestAnalyzer(body)
	if got := a.TypeOf(localOp(1)); got == nil || got.Path != anchor.PathPubkey {
		t.Errorf("TypeOf should peel references, got %v", got)
	}
	if !a.IsPubkeyLocal(1) {
		t.Errorf("pubkey local not detected")
	}
}
