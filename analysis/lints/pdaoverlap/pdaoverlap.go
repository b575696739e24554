// Package pdaoverlap flags mutable user-controlled accounts passed to CPIs
// that sign with a PDA. When the callee expects such an account to be an
// uninitialized signer, an attacker can pass the PDA signer itself, causing
// the PDA to be initialized and drained.
package pdaoverlap

import (
	"strings"

	"github.com/otter-sec/anchor-lints-sub000/analysis/anchor"
	"github.com/otter-sec/anchor-lints-sub000/analysis/cpi"
	"github.com/otter-sec/anchor-lints-sub000/analysis/diag"
	"github.com/otter-sec/anchor-lints-sub000/analysis/ir"
	"github.com/otter-sec/anchor-lints-sub000/analysis/mir"
	"github.com/otter-sec/anchor-lints-sub000/analysis/nested"
	"github.com/otter-sec/anchor-lints-sub000/analysis/source"
)

const Name = "pda_signer_account_overlap"

func Run(prog *ir.Program, src *source.Map, rep *diag.Reporter) {
	state := nested.NewState()
	for _, body := range prog.Functions {
		if body.Span.FromExpansion || body.UnsatisfiablePreds {
			continue
		}
		checkFn(prog, body, src, rep, state)
	}
}

func checkFn(prog *ir.Program, body *ir.Body, src *source.Map, rep *diag.Reporter, state *nested.State) {
	if !state.Enter(body.DefPath) {
		return
	}
	defer state.Leave(body.DefPath)

	a := mir.NewAnalyzer(prog, body, src)
	if a.Context == nil {
		return
	}

	unsafeAccounts, pdaSigners := a.ExtractUnsafeAccountsAndPDAs()
	if len(unsafeAccounts) == 0 || len(pdaSigners) == 0 {
		return
	}

	analyzeBlocks(prog, a, a.Context, unsafeAccounts, pdaSigners, src, rep, state)
}

func analyzeBlocks(prog *ir.Program, a *mir.Analyzer, parent *anchor.Context,
	unsafeAccounts []mir.UnsafeAccount, pdaSigners []mir.PdaSigner,
	src *source.Map, rep *diag.Reporter, state *nested.State) {

	for bi := range a.Body.Blocks {
		term := &a.Body.Blocks[bi].Terminator
		if term.Kind != ir.TermCall {
			continue
		}

		if anchor.IsCpiContext(term.Func.Return) && cpi.IsNewWithSigner(&term.Func) {
			passed := accountsPassedToCpi(a, term.Args, parent)
			if len(passed) > 0 && usesPdaSigner(a, term) {
				reportOverlaps(rep, term.Span, passed, unsafeAccounts, pdaSigners, state)
			}
			continue
		}

		descendIntoCallee(prog, a, parent, term, unsafeAccounts, pdaSigners, src, rep, state)
	}
}

// usesPdaSigner decides whether the call carries signer seeds. invoke_signed
// passes them directly; new_with_signer and CPI wrappers take them as the
// trailing argument.
func usesPdaSigner(a *mir.Analyzer, term *ir.Terminator) bool {
	if strings.HasSuffix(term.Func.Name, "invoke_signed") ||
		strings.HasSuffix(term.Func.Name, "invoke_signed_unchecked") {
		return true
	}
	if a.TakesCpiContext(term.Args) {
		return len(term.Args) >= 3
	}
	return anchor.IsCpiContext(term.Func.Return) && len(term.Args) >= 2
}

// accountsPassedToCpi resolves the CpiContext constructor's accounts-struct
// argument back to the context accounts it bundles.
func accountsPassedToCpi(a *mir.Analyzer, args []ir.Arg, parent *anchor.Context) map[string]bool {
	passed := make(map[string]bool)
	if len(args) < 2 {
		return passed
	}
	accountsLocal, ok := args[1].Operand.AsLocal()
	if !ok {
		return passed
	}
	for _, fieldLocal := range a.FindCpiAccountsStruct(accountsLocal) {
		if ref := a.IsFromCpiContext(fieldLocal, parent); ref != nil {
			passed[ref.Name] = true
		}
	}
	return passed
}

func reportOverlaps(rep *diag.Reporter, span ir.Span, passed map[string]bool,
	unsafeAccounts []mir.UnsafeAccount, pdaSigners []mir.PdaSigner, state *nested.State) {

	for _, acc := range unsafeAccounts {
		if !passed[acc.Name] || !acc.Mutable {
			continue
		}
		for _, pda := range pdaSigners {
			if !passed[pda.Name] {
				continue
			}
			if constraintPreventsOverlap(acc.Constraints, acc.Name, pda.Name) {
				continue
			}
			if state.MarkWarned(Name + ":" + span.String() + ":" + acc.Name) {
				rep.Report(diag.Diagnostic{
					Lint:    Name,
					Span:    span,
					Message: "user-controlled account passed to CPI with PDA signer",
					Note: "Account `" + acc.Name + "` is user-controlled and passed to CPI with PDA `" +
						pda.Name + "` as signer, please verify on the callee side if the account is expected to be uninitialized",
					NoteSpan: acc.Span,
				})
			}
			// One report per unsafe account; more PDA signers in the same
			// call would restate the same overlap.
			break
		}
	}
}

// constraintPreventsOverlap checks for a raw constraint asserting the two
// accounts differ, e.g. `constraint = a.key() != pda.key()`.
func constraintPreventsOverlap(constraints []string, account, pda string) bool {
	for _, c := range constraints {
		if strings.Contains(c, account) && strings.Contains(c, pda) && strings.Contains(c, "!=") {
			return true
		}
	}
	return false
}

// descendIntoCallee follows calls that forward the context, accounts struct
// or individual accounts into a helper defined in the same crate.
func descendIntoCallee(prog *ir.Program, a *mir.Analyzer, parent *anchor.Context,
	term *ir.Terminator, unsafeAccounts []mir.UnsafeAccount, pdaSigners []mir.PdaSigner,
	src *source.Map, rep *diag.Reporter, state *nested.State) {

	callee := prog.Function(term.Func.Path)
	if callee == nil || callee.TraitMethod {
		return
	}
	if nested.ClassifyArgs(a, term.Args, parent) == nil &&
		!isImplementationMethod(a, term.Args, parent) {
		return
	}
	if !state.Enter(callee.DefPath) {
		return
	}
	defer state.Leave(callee.DefPath)

	na := mir.NewAnalyzer(prog, callee, src)
	analyzeBlocks(prog, na, parent, unsafeAccounts, pdaSigners, src, rep, state)
}

// isImplementationMethod recognizes `self.helper()` calls on the accounts
// struct itself.
func isImplementationMethod(a *mir.Analyzer, args []ir.Arg, parent *anchor.Context) bool {
	if parent == nil || parent.Struct == nil || len(args) == 0 {
		return false
	}
	local, ok := args[0].Operand.AsLocal()
	if !ok {
		return false
	}
	ty := a.Body.LocalType(local)
	return ty != nil && ty.PathEndsWith(parent.Struct.Name)
}
