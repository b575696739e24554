// Package accountreload flags account data reads that happen after a CPI
// without an intervening reload. A CPI may rewrite an account's on-chain
// data, but the deserialized wrapper keeps the pre-invoke copy until
// reload() is called.
package accountreload

import (
	"github.com/otter-sec/anchor-lints-sub000/analysis/cpi"
	"github.com/otter-sec/anchor-lints-sub000/analysis/diag"
	"github.com/otter-sec/anchor-lints-sub000/analysis/ir"
	"github.com/otter-sec/anchor-lints-sub000/analysis/mir"
	"github.com/otter-sec/anchor-lints-sub000/analysis/nested"
	"github.com/otter-sec/anchor-lints-sub000/analysis/source"
	"github.com/otter-sec/anchor-lints-sub000/internal/funcutil"
)

const Name = "missing_account_reload"

func Run(prog *ir.Program, src *source.Map, rep *diag.Reporter) {
	for _, body := range prog.Functions {
		if body.Span.FromExpansion || body.UnsatisfiablePreds {
			continue
		}
		checkFn(prog, body, src, rep)
	}
}

type access struct {
	block ir.BlockID
	span  ir.Span
}

func checkFn(prog *ir.Program, body *ir.Body, src *source.Map, rep *diag.Reporter) {
	a := mir.NewAnalyzer(prog, body, src)
	if a.Context == nil {
		return
	}

	// We need to identify
	// A) CPI invocations
	// then, for each account handed to a CPI context,
	// B) data accesses (deref on the account)
	// C) reloads of the account
	// and report each (B) reachable from an (A) without passing a (C).
	cpiCalls := make(map[ir.BlockID]ir.Span)
	accountAccesses := make(map[string][]access)
	accountReloads := make(map[string][]ir.BlockID)
	cpiAccounts := make(map[string]ir.BlockID)

	state := nested.NewState()
	state.Enter(body.DefPath)

	for bi := range body.Blocks {
		bb := ir.BlockID(bi)
		term := &body.Blocks[bi].Terminator
		if term.Kind != ir.TermCall {
			continue
		}
		fn := &term.Func

		switch {
		case cpi.IsReloadFn(fn):
			if name, ok := receiverAccount(a, term.Args, false); ok {
				accountReloads[name] = append(accountReloads[name], bb)
			}

		case cpi.IsInvokeFn(fn) || a.TakesCpiContext(term.Args):
			cpiCalls[bb] = term.Span

		case isDerefFn(fn):
			if name, ok := receiverAccount(a, term.Args, false); ok {
				accountAccesses[name] = append(accountAccesses[name], access{bb, term.Span})
			}

		case isCpiContextCtor(fn):
			// CpiContext construction: arg 1 carries the accounts struct.
			collectCpiAccounts(a, term, bb, cpiAccounts)

		default:
			propagateNested(prog, a, src, state, term, bb,
				cpiCalls, accountAccesses, accountReloads, cpiAccounts)
		}
	}

	// Only accounts handed to a CPI that actually runs can go stale.
	cpiBlocks := funcutil.SortedKeys(cpiCalls)
	for _, name := range funcutil.SortedKeys(cpiAccounts) {
		if !reachesAny(a, cpiAccounts[name], cpiBlocks) {
			delete(cpiAccounts, name)
		}
	}

	for _, name := range funcutil.SortedKeys(accountAccesses) {
		if _, ok := cpiAccounts[name]; !ok {
			continue
		}
		accesses := accountAccesses[name]
		var accessBlocks []ir.BlockID
		spans := make(map[ir.BlockID]ir.Span, len(accesses))
		for _, acc := range accesses {
			accessBlocks = append(accessBlocks, acc.block)
			spans[acc.block] = acc.span
		}
		stale := a.TraceWithoutPassing(cpiBlocks, accessBlocks, accountReloads[name])
		for _, accessBlock := range funcutil.SortedKeys(stale) {
			rep.Report(diag.Diagnostic{
				Lint:     Name,
				Span:     spans[accessBlock],
				Message:  "accessing an account after a CPI without calling `reload()`",
				Note:     "CPI is here",
				NoteSpan: cpiCalls[stale[accessBlock]],
			})
		}
	}
}

func isDerefFn(fn *ir.FuncRef) bool {
	return fn.Name == "deref" || fn.Name == "deref_mut"
}

func isCpiContextCtor(fn *ir.FuncRef) bool {
	return cpi.IsCpiContextNew(fn) || cpi.IsNewWithSigner(fn)
}

func receiverAccount(a *mir.Analyzer, args []ir.Arg, onlyName bool) (string, bool) {
	if len(args) == 0 {
		return "", false
	}
	local, ok := args[0].Operand.AsLocal()
	if !ok {
		return "", false
	}
	if ref := a.AccountName(local, onlyName); ref != nil {
		return ref.Name, true
	}
	return "", false
}

func collectCpiAccounts(a *mir.Analyzer, term *ir.Terminator, bb ir.BlockID, out map[string]ir.BlockID) {
	if len(term.Args) < 2 {
		return
	}
	accountsLocal, ok := term.Args[1].Operand.AsLocal()
	if !ok {
		return
	}
	for _, accountLocal := range a.FindCpiAccountsStruct(accountsLocal) {
		if ref := a.AccountName(accountLocal, false); ref != nil {
			out[ref.Name] = bb
		}
	}
}

func reachesAny(a *mir.Analyzer, from ir.BlockID, to []ir.BlockID) bool {
	for _, t := range to {
		if a.Reachable(from, t) {
			return true
		}
	}
	return false
}
