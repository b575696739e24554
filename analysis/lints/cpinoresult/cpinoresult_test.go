package cpinoresult

import (
	"testing"

	"github.com/otter-sec/anchor-lints-sub000/analysis/anchor"
	"github.com/otter-sec/anchor-lints-sub000/analysis/diag"
	"github.com/otter-sec/anchor-lints-sub000/analysis/ir"
	"github.com/otter-sec/anchor-lints-sub000/analysis/source"
)

func adt(path string, args ...*ir.Type) *ir.Type {
	return &ir.Type{Kind: ir.KindAdt, Path: path, Args: args}
}

func localArg(l ir.Local) ir.Arg {
	return ir.Arg{Operand: ir.Operand{Kind: ir.OpMove, Place: ir.Place{Local: l}}}
}

func blockID(n ir.BlockID) *ir.BlockID { return &n }

func call(fn ir.FuncRef, args []ir.Arg, dest ir.Local, target ir.BlockID) ir.Terminator {
	return ir.Terminator{
		Kind:        ir.TermCall,
		Func:        fn,
		Args:        args,
		Destination: ir.Place{Local: dest},
		Target:      blockID(target),
		Span:        ir.Span{File: "src/lib.rs", Line: 3, Col: 5, EndLine: 3},
	}
}

// cpiCall invokes a token transfer through the CpiContext in local 1,
// storing the Result in dest.
func cpiCall(dest ir.Local, target ir.BlockID) ir.BasicBlock {
	return ir.BasicBlock{Terminator: call(
		ir.FuncRef{Path: "anchor_spl::token::transfer", Name: "transfer"},
		[]ir.Arg{localArg(1)}, dest, target)}
}

func ret() ir.BasicBlock {
	return ir.BasicBlock{Terminator: ir.Terminator{Kind: ir.TermReturn}}
}

// Locals: _1 CpiContext, _2 Result, _3 discriminant, _4 scratch.
func program(blocks ...ir.BasicBlock) *ir.Program {
	return &ir.Program{
		Crate: "my_program",
		Functions: []*ir.Body{{
			DefPath:  "my_program::forward",
			Name:     "forward",
			ArgCount: 1,
			Locals: []ir.LocalDecl{
				{Type: &ir.Type{Kind: ir.KindUnit}},
				{Type: adt(anchor.PathCpiContext)},
				{Type: adt("core::result::Result")},
				{Type: &ir.Type{Kind: ir.KindUint}},
				{Type: &ir.Type{Kind: ir.KindUnit}},
			},
			Blocks: blocks,
			Params: []ir.Param{{Name: "cpi_ctx"}},
		}},
	}
}

func runOn(prog *ir.Program) []diag.Diagnostic {
	rep := &diag.Reporter{}
	Run(prog, source.NewMap(prog.Sources), rep)
	return rep.Diagnostics()
}

func TestUnhandledResultReported(t *testing.T) {
	// The result is read (passed along) but never checked.
	prog := program(
		cpiCall(2, 1),
		ir.BasicBlock{Terminator: call(
			ir.FuncRef{Path: "my_program::emit_result", Name: "emit_result"},
			[]ir.Arg{localArg(2)}, 4, 2)},
		ret(),
	)
	diags := runOn(prog)
	if len(diags) != 1 {
		t.Fatalf("diagnostics: got %+v", diags)
	}
	if diags[0].Lint != Name || diags[0].Span.Line != 3 {
		t.Errorf("finding should point at the CPI call, got %+v", diags[0])
	}
}

func TestReturnedDirectlyAccepted(t *testing.T) {
	prog := program(cpiCall(0, 1), ret())
	if diags := runOn(prog); len(diags) != 0 {
		t.Errorf("the caller sees the result, got %+v", diags)
	}
}

func TestExplicitDiscardAccepted(t *testing.T) {
	// let _ = transfer(...): the result local is never read again.
	prog := program(cpiCall(2, 1), ret())
	if diags := runOn(prog); len(diags) != 0 {
		t.Errorf("an explicit discard is a decision, got %+v", diags)
	}
}

func TestTryOperatorAccepted(t *testing.T) {
	prog := program(
		cpiCall(2, 1),
		ir.BasicBlock{Terminator: call(
			ir.FuncRef{Path: "core::ops::try_trait::Try::branch", Name: "branch"},
			[]ir.Arg{localArg(2)}, 4, 2)},
		ret(),
	)
	if diags := runOn(prog); len(diags) != 0 {
		t.Errorf("`?` propagates the error, got %+v", diags)
	}
}

func TestUnwrapAccepted(t *testing.T) {
	prog := program(
		cpiCall(2, 1),
		ir.BasicBlock{Terminator: call(
			ir.FuncRef{Path: "core::result::Result::<T, E>::unwrap", Name: "unwrap"},
			[]ir.Arg{localArg(2)}, 4, 2)},
		ret(),
	)
	if diags := runOn(prog); len(diags) != 0 {
		t.Errorf("unwrap panics on failure, got %+v", diags)
	}
}

func TestMatchOnResultAccepted(t *testing.T) {
	discr := ir.Operand{Kind: ir.OpMove, Place: ir.Place{Local: 3}}
	prog := program(
		cpiCall(2, 1),
		ir.BasicBlock{
			Statements: []ir.Statement{{
				Kind:   ir.StAssign,
				Place:  ir.Place{Local: 3},
				Rvalue: &ir.Rvalue{Kind: ir.RvDiscriminant, Place: &ir.Place{Local: 2}},
			}},
			Terminator: ir.Terminator{
				Kind:      ir.TermSwitchInt,
				Discr:     &discr,
				Targets:   []ir.SwitchTarget{{Value: 0, Block: 2}},
				Otherwise: blockID(3),
			},
		},
		ret(),
		ret(),
	)
	if diags := runOn(prog); len(diags) != 0 {
		t.Errorf("matching on the result handles it, got %+v", diags)
	}
}

func TestBuilderCallIgnored(t *testing.T) {
	// with_signer returns a CpiContext; it is a builder, not the invocation.
	prog := program(
		ir.BasicBlock{Terminator: call(
			ir.FuncRef{Path: "anchor_lang::context::CpiContext::with_signer", Name: "with_signer",
				Return: adt(anchor.PathCpiContext)},
			[]ir.Arg{localArg(1)}, 2, 1)},
		ret(),
	)
	if diags := runOn(prog); len(diags) != 0 {
		t.Errorf("builder methods are not CPIs, got %+v", diags)
	}
}
