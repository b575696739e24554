package nested

import (
	"testing"

	"github.com/otter-sec/anchor-lints-sub000/analysis/anchor"
	"github.com/otter-sec/anchor-lints-sub000/analysis/ir"
	"github.com/otter-sec/anchor-lints-sub000/analysis/mir"
	"github.com/otter-sec/anchor-lints-sub000/analysis/source"
)

func adt(path string, args ...*ir.Type) *ir.Type {
	return &ir.Type{Kind: ir.KindAdt, Path: path, Args: args}
}

func localArg(l ir.Local) ir.Arg {
	return ir.Arg{Operand: ir.Operand{Kind: ir.OpCopy, Place: ir.Place{Local: l}}}
}

func nestedProgram() *ir.Program {
	return &ir.Program{
		Crate: "my_program",
		Structs: []*ir.StructDef{{
			Path:           "my_program::Transfer",
			Name:           "Transfer",
			DeriveAccounts: true,
			Fields: []ir.FieldDef{
				{Name: "authority", Type: adt(anchor.PathSigner)},
				{Name: "vault", Type: adt(anchor.PathAccountPrelude, adt("my_program::Vault"))},
			},
		}},
	}
}

func handlerAnalyzer(t *testing.T) *mir.Analyzer {
	t.Helper()
	body := &ir.Body{
		DefPath:  "my_program::transfer",
		ArgCount: 1,
		Locals: []ir.LocalDecl{
			{Type: &ir.Type{Kind: ir.KindUnit}},
			{Type: adt(anchor.PathContext, adt("my_program::Transfer"))},
			{Type: adt("my_program::Transfer")},
			{Type: adt(anchor.PathSigner)},
			{Type: &ir.Type{Kind: ir.KindUint}},
		},
		Blocks: []ir.BasicBlock{{Terminator: ir.Terminator{Kind: ir.TermReturn}}},
		Params: []ir.Param{{Name: "ctx"}},
	}
	a := mir.NewAnalyzer(nestedProgram(), body, source.NewMap(nil))
	if a.Context == nil {
		t.Fatalf("test handler should extract a context")
	}
	return a
}

func TestClassifyArgsForwardsContext(t *testing.T) {
	a := handlerAnalyzer(t)
	got := ClassifyArgs(a, []ir.Arg{localArg(1)}, nil)
	if got == nil || got.Kind != Ctx {
		t.Errorf("forwarded context: got %+v", got)
	}
}

func TestClassifyArgsForwardsAccountsStruct(t *testing.T) {
	a := handlerAnalyzer(t)
	got := ClassifyArgs(a, []ir.Arg{localArg(2)}, nil)
	if got == nil || got.Kind != Accounts {
		t.Errorf("forwarded accounts struct: got %+v", got)
	}
}

func TestClassifyArgsForwardsAccount(t *testing.T) {
	a := handlerAnalyzer(t)
	got := ClassifyArgs(a, []ir.Arg{localArg(3)}, nil)
	if got == nil || got.Kind != Account {
		t.Fatalf("forwarded account: got %+v", got)
	}
	if _, ok := got.Accounts["authority"]; !ok {
		t.Errorf("account should bind by field name, got %v", got.Accounts)
	}
}

func TestClassifyArgsUnrelated(t *testing.T) {
	a := handlerAnalyzer(t)
	if got := ClassifyArgs(a, []ir.Arg{localArg(4)}, nil); got != nil {
		t.Errorf("a plain integer argument is not a context forward, got %+v", got)
	}
}

func TestClassifyParamArgs(t *testing.T) {
	body := &ir.Body{
		DefPath:  "my_program::helper",
		ArgCount: 1,
		Locals: []ir.LocalDecl{
			{Type: &ir.Type{Kind: ir.KindUnit}},
			{Type: adt(anchor.PathAccountInfo)},
		},
		Blocks: []ir.BasicBlock{{Terminator: ir.Terminator{Kind: ir.TermReturn}}},
		Params: []ir.Param{{Name: "payer"}},
	}
	a := mir.NewAnalyzer(&ir.Program{}, body, source.NewMap(nil))
	got := ClassifyParamArgs(a, []ir.Arg{localArg(1)})
	if got == nil || got.Kind != Account {
		t.Fatalf("param forwarding: got %+v", got)
	}
	if acc, ok := got.Accounts["payer"]; !ok || acc.Local != 1 {
		t.Errorf("param binding: got %v", got.Accounts)
	}
}
