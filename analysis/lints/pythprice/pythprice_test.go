package pythprice

import (
	"strings"
	"testing"

	"github.com/otter-sec/anchor-lints-sub000/analysis/anchor"
	"github.com/otter-sec/anchor-lints-sub000/analysis/diag"
	"github.com/otter-sec/anchor-lints-sub000/analysis/ir"
	"github.com/otter-sec/anchor-lints-sub000/analysis/source"
)

const libRS = `fn read(ctx: Context<ReadPrice>) -> Result<()> {
    let price = ctx.accounts.price_update.get_price_no_older_than(&clock, 60, &feed_id)?;
    require_keys_eq!(ctx.accounts.price_update.key(), canonical_feed);
    let update = &ctx.accounts.price_update;
    let state = &mut ctx.accounts.state;
    Ok(())
}
`

func adt(path string, args ...*ir.Type) *ir.Type {
	return &ir.Type{Kind: ir.KindAdt, Path: path, Args: args}
}

func ref(t *ir.Type) *ir.Type { return &ir.Type{Kind: ir.KindRef, Elem: t} }

func localArg(l ir.Local) ir.Arg {
	return ir.Arg{Operand: ir.Operand{Kind: ir.OpMove, Place: ir.Place{Local: l}}}
}

func copyPlace(p ir.Place) *ir.Operand {
	return &ir.Operand{Kind: ir.OpCopy, Place: p}
}

func blockID(n ir.BlockID) *ir.BlockID { return &n }

type options struct {
	pda       bool
	keyCheck  bool
	compare   bool
	storeBack bool
}

// priceProgram consumes a Pyth price update. Locals: _2 get_price
// receiver, _4 price update ref, _5 publish time, _6 state ref, _7 stored
// publish time, _8 comparison result, _9 price update key.
func priceProgram(o options) *ir.Program {
	span := func(line, col int) ir.Span {
		return ir.Span{File: "src/lib.rs", Line: line, Col: col, EndLine: line}
	}
	priceTy := adt(anchor.PathPriceUpdateV2)
	stateTy := adt("my_program::OracleState")
	i64 := &ir.Type{Kind: ir.KindInt}

	priceAttrs := []string(nil)
	if o.pda {
		priceAttrs = []string{`seeds = [b"price"], bump`}
	}

	publishTimePlace := ir.Place{Local: 4, Projections: []ir.Projection{
		{Kind: ir.ProjDeref},
		{Kind: ir.ProjField, Name: "price_message"},
		{Kind: ir.ProjField, Name: "publish_time"},
	}}
	lastPublishPlace := ir.Place{Local: 6, Projections: []ir.Projection{
		{Kind: ir.ProjDeref},
		{Kind: ir.ProjField, Name: "last_publish_time"},
	}}

	var stmts []ir.Statement
	if o.compare {
		stmts = append(stmts,
			ir.Statement{Kind: ir.StAssign, Place: ir.Place{Local: 5},
				Rvalue: &ir.Rvalue{Kind: ir.RvUse, Operand: copyPlace(publishTimePlace)}},
			ir.Statement{Kind: ir.StAssign, Place: ir.Place{Local: 7},
				Rvalue: &ir.Rvalue{Kind: ir.RvUse, Operand: copyPlace(lastPublishPlace)}},
			ir.Statement{Kind: ir.StAssign, Place: ir.Place{Local: 8},
				Rvalue: &ir.Rvalue{Kind: ir.RvBinaryOp, Op: "Gt",
					Left:  copyPlace(ir.Place{Local: 5}),
					Right: copyPlace(ir.Place{Local: 7})}},
		)
	}
	if o.storeBack {
		stmts = append(stmts, ir.Statement{Kind: ir.StAssign, Place: lastPublishPlace,
			Rvalue: &ir.Rvalue{Kind: ir.RvUse, Operand: copyPlace(ir.Place{Local: 5})}})
	}

	keyBlock := ir.BasicBlock{
		Terminator: ir.Terminator{Kind: ir.TermGoto, GotoTarget: blockID(2)},
	}
	if o.keyCheck {
		keyBlock = ir.BasicBlock{Terminator: ir.Terminator{
			Kind:        ir.TermCall,
			Func:        ir.FuncRef{Path: "core::cmp::PartialEq::eq", Name: "eq"},
			Args:        []ir.Arg{localArg(9)},
			Destination: ir.Place{Local: 10},
			Target:      blockID(2),
			Span:        span(3, 5),
		}}
	}

	body := &ir.Body{
		DefPath:  "my_program::read",
		Name:     "read",
		ArgCount: 1,
		Locals: []ir.LocalDecl{
			{Type: &ir.Type{Kind: ir.KindUnit}},
			{Type: adt(anchor.PathContext, adt("my_program::ReadPrice"))},
			{Type: ref(priceTy), Span: span(2, 17)},
			{Type: i64},
			{Type: ref(priceTy), Span: span(4, 19)},
			{Type: i64},
			{Type: ref(stateTy)},
			{Type: i64},
			{Type: &ir.Type{Kind: ir.KindBool}},
			{Type: adt("anchor_lang::prelude::Pubkey"), Span: span(3, 22)},
			{Type: &ir.Type{Kind: ir.KindBool}},
		},
		Blocks: []ir.BasicBlock{
			{
				Statements: stmts,
				Terminator: ir.Terminator{
					Kind: ir.TermCall,
					Func: ir.FuncRef{
						Path: "pyth_solana_receiver_sdk::price_update::PriceUpdateV2::get_price_no_older_than",
						Name: "get_price_no_older_than",
					},
					Args:        []ir.Arg{localArg(2)},
					Destination: ir.Place{Local: 3},
					Target:      blockID(1),
					Span:        span(2, 17),
				},
			},
			keyBlock,
			{Terminator: ir.Terminator{Kind: ir.TermReturn}},
		},
		Params: []ir.Param{{Name: "ctx"}},
	}
	return &ir.Program{
		Crate:     "my_program",
		Functions: []*ir.Body{body},
		Structs: []*ir.StructDef{{
			Path:           "my_program::ReadPrice",
			Name:           "ReadPrice",
			DeriveAccounts: true,
			Fields: []ir.FieldDef{
				{Name: "price_update", Type: adt(anchor.PathAccountPrelude, priceTy),
					Span:         ir.Span{File: "src/lib.rs", Line: 12, Col: 5, EndLine: 12},
					AccountAttrs: priceAttrs},
				{Name: "state", Type: adt(anchor.PathAccountPrelude, stateTy),
					AccountAttrs: []string{"mut"}},
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

func TestUnvalidatedPriceReadReported(t *testing.T) {
	diags := runOn(priceProgram(options{}))
	if len(diags) != 1 {
		t.Fatalf("diagnostics: got %+v", diags)
	}
	d := diags[0]
	if d.Lint != Name || d.Span.Line != 2 {
		t.Errorf("finding should point at the get_price call, got %+v", d)
	}
	if !strings.Contains(d.Message, "`price_update`") {
		t.Errorf("message: %q", d.Message)
	}
}

func TestPdaPriceAccountAccepted(t *testing.T) {
	if diags := runOn(priceProgram(options{pda: true})); len(diags) != 0 {
		t.Errorf("PDA derivation pins the feed, got %+v", diags)
	}
}

func TestPubkeyCheckAccepted(t *testing.T) {
	if diags := runOn(priceProgram(options{keyCheck: true})); len(diags) != 0 {
		t.Errorf("a canonical feed comparison validates the source, got %+v", diags)
	}
}

func TestMonotonicPublishTimeAccepted(t *testing.T) {
	diags := runOn(priceProgram(options{compare: true, storeBack: true}))
	if len(diags) != 0 {
		t.Errorf("compare plus store enforces monotonicity, got %+v", diags)
	}
}

func TestComparisonAloneRejected(t *testing.T) {
	diags := runOn(priceProgram(options{compare: true}))
	if len(diags) != 1 {
		t.Errorf("comparing without storing still allows replays, got %+v", diags)
	}
}

func TestStoreAloneRejected(t *testing.T) {
	diags := runOn(priceProgram(options{compare: false, storeBack: true}))
	if len(diags) != 1 {
		t.Errorf("storing without comparing never rejects, got %+v", diags)
	}
}
