package missingsigner

import (
	"strings"
	"testing"

	"github.com/otter-sec/anchor-lints-sub000/analysis/anchor"
	"github.com/otter-sec/anchor-lints-sub000/analysis/diag"
	"github.com/otter-sec/anchor-lints-sub000/analysis/ir"
	"github.com/otter-sec/anchor-lints-sub000/analysis/source"
)

const libRS = `fn do_transfer(ctx: Context<DoTransfer>, amount: u64) -> Result<()> {
    let cpi_accounts = Transfer {
        from: ctx.accounts.from.to_account_info(),
        to: ctx.accounts.to.to_account_info(),
        authority: ctx.accounts.authority.to_account_info(),
    };
    Ok(())
}
`

func adt(path string, args ...*ir.Type) *ir.Type {
	return &ir.Type{Kind: ir.KindAdt, Path: path, Args: args}
}

func localOp(l ir.Local) ir.Operand {
	return ir.Operand{Kind: ir.OpMove, Place: ir.Place{Local: l}}
}

func localArg(l ir.Local) ir.Arg {
	return ir.Arg{Operand: localOp(l)}
}

func blockID(n ir.BlockID) *ir.BlockID { return &n }

// transferProgram models a token transfer CPI whose authority account has
// the given type. Locals: _1 ctx, _2 token program info, _3 from info,
// _4 to info, _5 authority info, _6 Transfer accounts, _7 CpiContext.
func transferProgram(authorityType *ir.Type, ctor string) *ir.Program {
	info := adt(anchor.PathAccountInfo)
	ctorArgs := []ir.Arg{localArg(2), localArg(6)}
	if ctor == "new_with_signer" {
		ctorArgs = append(ctorArgs, localArg(8))
	}
	body := &ir.Body{
		DefPath:  "my_program::do_transfer",
		Name:     "do_transfer",
		ArgCount: 1,
		Locals: []ir.LocalDecl{
			{Type: &ir.Type{Kind: ir.KindUnit}},
			{Type: adt(anchor.PathContext, adt("my_program::DoTransfer"))},
			{Type: info},
			{Type: info},
			{Type: info},
			{Type: info, Span: ir.Span{File: "src/lib.rs", Line: 5, Col: 9, EndLine: 5}},
			{Type: adt("anchor_spl::token::Transfer")},
			{Type: adt(anchor.PathCpiContext)},
			{Type: &ir.Type{Kind: ir.KindSlice}},
		},
		Blocks: []ir.BasicBlock{
			{
				Statements: []ir.Statement{{
					Kind:  ir.StAssign,
					Place: ir.Place{Local: 6},
					Rvalue: &ir.Rvalue{
						Kind:     ir.RvAggregate,
						Adt:      "anchor_spl::token::Transfer",
						Operands: []ir.Operand{localOp(3), localOp(4), localOp(5)},
					},
					Span: ir.Span{File: "src/lib.rs", Line: 2, Col: 5, EndLine: 6},
				}},
				Terminator: ir.Terminator{
					Kind: ir.TermCall,
					Func: ir.FuncRef{
						Path:   "anchor_lang::context::CpiContext::" + ctor,
						Name:   ctor,
						Return: adt(anchor.PathCpiContext),
					},
					Args:        ctorArgs,
					Destination: ir.Place{Local: 7},
					Target:      blockID(1),
				},
			},
			{
				Terminator: ir.Terminator{
					Kind: ir.TermCall,
					Func: ir.FuncRef{
						Path: "anchor_spl::token::transfer",
						Name: "transfer",
					},
					Args:   []ir.Arg{localArg(7)},
					Target: blockID(2),
					Span:   ir.Span{File: "src/lib.rs", Line: 7, Col: 5, EndLine: 7},
				},
			},
			{Terminator: ir.Terminator{Kind: ir.TermReturn}},
		},
		Params: []ir.Param{{Name: "ctx"}},
	}
	return &ir.Program{
		Crate:     "my_program",
		Functions: []*ir.Body{body},
		Structs: []*ir.StructDef{{
			Path:           "my_program::DoTransfer",
			Name:           "DoTransfer",
			DeriveAccounts: true,
			Fields: []ir.FieldDef{
				{Name: "from", Type: adt(anchor.PathAccountPrelude, adt(anchor.PathTokenAccount)),
					AccountAttrs: []string{"mut"}},
				{Name: "to", Type: adt(anchor.PathAccountPrelude, adt(anchor.PathTokenAccount)),
					AccountAttrs: []string{"mut"}},
				{Name: "authority", Type: authorityType,
					Span: ir.Span{File: "src/lib.rs", Line: 14, Col: 5, EndLine: 14}},
			},
		}},
		Sources: map[string]string{"src/lib.rs": libRS},
	}
}

func runOn(prog *ir.Program) []diag.Diagnostic {
	rep := &diag.Reporter{}
	Run(prog, source.NewMap(prog.Sources), rep)
	return rep.Diagnostics()
}

func TestUnvalidatedAuthorityReported(t *testing.T) {
	prog := transferProgram(adt(anchor.PathAccountInfo), "new")
	diags := runOn(prog)
	if len(diags) != 1 {
		t.Fatalf("diagnostics: got %+v", diags)
	}
	d := diags[0]
	if d.Lint != Name || !strings.Contains(d.Message, "`authority`") {
		t.Errorf("finding: %+v", d)
	}
}

func TestSignerTypeAccepted(t *testing.T) {
	prog := transferProgram(adt(anchor.PathSigner), "new")
	if diags := runOn(prog); len(diags) != 0 {
		t.Errorf("Signer<'info> authority is validated, got %+v", diags)
	}
}

func TestSignerAttrAccepted(t *testing.T) {
	prog := transferProgram(adt(anchor.PathAccountInfo), "new")
	prog.Structs[0].Fields[2].AccountAttrs = []string{"signer"}
	if diags := runOn(prog); len(diags) != 0 {
		t.Errorf("#[account(signer)] authority is validated, got %+v", diags)
	}
}

func TestPdaSignedContextSkipped(t *testing.T) {
	prog := transferProgram(adt(anchor.PathAccountInfo), "new_with_signer")
	if diags := runOn(prog); len(diags) != 0 {
		t.Errorf("new_with_signer means the PDA signs, got %+v", diags)
	}
}
