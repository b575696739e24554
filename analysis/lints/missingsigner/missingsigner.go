// Package missingsigner warns when a CPI that requires a signing account is
// handed an account that is neither declared a signer nor signed with PDA
// seeds.
package missingsigner

import (
	"github.com/otter-sec/anchor-lints-sub000/analysis/anchor"
	"github.com/otter-sec/anchor-lints-sub000/analysis/cpi"
	"github.com/otter-sec/anchor-lints-sub000/analysis/diag"
	"github.com/otter-sec/anchor-lints-sub000/analysis/ir"
	"github.com/otter-sec/anchor-lints-sub000/analysis/mir"
	"github.com/otter-sec/anchor-lints-sub000/analysis/source"
	"github.com/otter-sec/anchor-lints-sub000/internal/funcutil"
)

const Name = "missing_signer_validation"

func Run(prog *ir.Program, src *source.Map, rep *diag.Reporter) {
	for _, body := range prog.Functions {
		if body.Span.FromExpansion || body.UnsatisfiablePreds {
			continue
		}
		checkFn(prog, body, src, rep)
	}
}

func checkFn(prog *ir.Program, body *ir.Body, src *source.Map, rep *diag.Reporter) {
	a := mir.NewAnalyzer(prog, body, src)
	if a.Context == nil {
		return
	}

	signers := accountsWithSignerAttr(a.Context)

	// usedAsSigner maps context-account names to the span of the CPI that
	// requires their signature.
	usedAsSigner := make(map[string]ir.Span)

	for bi := range body.Blocks {
		term := &body.Blocks[bi].Terminator
		if term.Kind != ir.TermCall {
			continue
		}
		kind := cpi.Detect(term.Func.Path)
		if kind == cpi.Unknown {
			continue
		}
		rule := cpi.SignerRule(kind)
		if rule == nil {
			continue
		}
		switch rule.Source {
		case cpi.ContextSigner:
			if ctxLocal, ok := argLocal(term.Args, 0); ok {
				collectContextSigners(a, ir.BlockID(bi), ctxLocal, rule, usedAsSigner)
			}
		case cpi.ArgIndex:
			if local, ok := argLocal(term.Args, rule.Arg); ok {
				if ref := a.AccountName(local, true); ref != nil {
					usedAsSigner[ref.Name] = a.Body.LocalSpan(local)
				}
			}
		}
	}

	for _, name := range funcutil.SortedKeys(usedAsSigner) {
		if signers[name] {
			continue
		}
		rep.Reportf(Name, usedAsSigner[name],
			"account `%s` is used as a signer but lacks signer validation, add `#[account(signer)]`", name)
	}
}

func argLocal(args []ir.Arg, index int) (ir.Local, bool) {
	if index >= len(args) {
		return -1, false
	}
	return args[index].Operand.AsLocal()
}

// collectContextSigners finds the CpiContext constructor feeding the CPI
// call, skips PDA-signed contexts, and pulls the rule's signer field out of
// the accounts-struct aggregate.
func collectContextSigners(a *mir.Analyzer, cpiBlock ir.BlockID, cpiCtxLocal ir.Local, rule *cpi.Rule, out map[string]ir.Span) {
	for bi := range a.Body.Blocks {
		bb := ir.BlockID(bi)
		term := &a.Body.Blocks[bi].Terminator
		if term.Kind == ir.TermCall && anchor.IsCpiContext(term.Func.Return) {
			// new_with_signer means the signer is a PDA; nothing to check.
			if term.Func.Name == "new_with_signer" && len(term.Args) >= 3 {
				continue
			}
			accountsLocal, ok := argLocal(term.Args, 1)
			if !ok {
				continue
			}
			dest, ok := term.Destination.AsLocal()
			if !ok || !a.Related(dest, cpiCtxLocal) {
				continue
			}
			collectAggregateSigner(a, bb, accountsLocal, rule, out)
			return
		}
		if bb == cpiBlock {
			return
		}
	}
}

// collectAggregateSigner locates the accounts-struct aggregate related to
// accountsLocal and records the account bound to the rule's signer field.
func collectAggregateSigner(a *mir.Analyzer, accountsBlock ir.BlockID, accountsLocal ir.Local, rule *cpi.Rule, out map[string]ir.Span) {
	for bi := range a.Body.Blocks {
		block := &a.Body.Blocks[bi]
		if block.Terminator.Kind == ir.TermCall {
			for si := range block.Statements {
				stmt := &block.Statements[si]
				if stmt.Kind != ir.StAssign || stmt.Rvalue == nil ||
					stmt.Rvalue.Kind != ir.RvAggregate || stmt.Rvalue.Adt == "" {
					continue
				}
				structLocal, ok := stmt.Place.AsLocal()
				if !ok || !a.Related(structLocal, accountsLocal) {
					continue
				}

				fieldIndex := signerFieldIndex(a.Prog, stmt.Rvalue.Adt, rule.Field)
				if fieldIndex >= 0 && fieldIndex < len(stmt.Rvalue.Operands) {
					if local, ok := stmt.Rvalue.Operands[fieldIndex].AsLocal(); ok {
						if ref := a.AccountName(local, true); ref != nil {
							out[ref.Name] = stmt.Span
						}
					}
				}
				break
			}
		}
		if ir.BlockID(bi) == accountsBlock {
			return
		}
	}
}

// signerFieldIndex resolves the field position of the signer in the CPI
// accounts struct. Struct layouts of the known CPI kinds are stable, so the
// definition may come from the program dump or, failing that, the field
// order conventions of anchor_spl.
func signerFieldIndex(prog *ir.Program, adtPath, field string) int {
	if def := prog.Struct(adtPath); def != nil {
		for i := range def.Fields {
			if def.Fields[i].Name == field {
				return i
			}
		}
		return -1
	}
	if order, ok := cpiStructFields[adtPath]; ok {
		for i, name := range order {
			if name == field {
				return i
			}
		}
	}
	return -1
}

// Field order of the anchor_spl / anchor_lang CPI accounts structs, used
// when the dump does not carry the upstream definition.
var cpiStructFields = map[string][]string{
	"anchor_spl::token::Transfer":           {"from", "to", "authority"},
	"anchor_spl::token::MintTo":             {"mint", "to", "authority"},
	"anchor_spl::token::Burn":               {"mint", "from", "authority"},
	"anchor_spl::token::SetAuthority":       {"current_authority", "account_or_mint"},
	"anchor_spl::token::CloseAccount":       {"account", "destination", "authority"},
	"anchor_spl::token::FreezeAccount":      {"account", "mint", "authority"},
	"anchor_spl::token::ThawAccount":        {"account", "mint", "authority"},
	"anchor_spl::token::Approve":            {"to", "delegate", "authority"},
	"anchor_spl::token::Revoke":             {"source", "authority"},
	"anchor_spl::token::SyncNative":         {"account"},
	"anchor_lang::system_program::Transfer": {"from", "to"},
	"anchor_spl::associated_token::Create": {
		"payer", "associated_token", "authority", "mint", "system_program", "token_program",
	},
}

// accountsWithSignerAttr collects the fields declared Signer<'info> or
// carrying #[account(signer)].
func accountsWithSignerAttr(ctx *anchor.Context) map[string]bool {
	signers := make(map[string]bool)
	for i := range ctx.Accounts {
		field := &ctx.Accounts[i]
		if anchor.IsSigner(field.Type) || field.Constraints.Signer {
			signers[field.Name] = true
		}
	}
	return signers
}
