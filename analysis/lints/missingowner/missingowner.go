// Package missingowner flags unchecked accounts whose data is read without
// any detectable owner validation.
package missingowner

import (
	"github.com/otter-sec/anchor-lints-sub000/analysis/anchor"
	"github.com/otter-sec/anchor-lints-sub000/analysis/cpi"
	"github.com/otter-sec/anchor-lints-sub000/analysis/diag"
	"github.com/otter-sec/anchor-lints-sub000/analysis/ir"
	"github.com/otter-sec/anchor-lints-sub000/analysis/mir"
	"github.com/otter-sec/anchor-lints-sub000/analysis/source"
	"github.com/otter-sec/anchor-lints-sub000/internal/funcutil"
)

const Name = "missing_owner_check"

func Run(prog *ir.Program, src *source.Map, rep *diag.Reporter) {
	for _, body := range prog.Functions {
		if body.Span.FromExpansion || body.UnsatisfiablePreds {
			continue
		}
		checkFn(prog, body, src, rep)
	}
}

// accountInfo describes a context field that carries no type-level owner
// guarantee.
type accountInfo struct {
	name     string
	span     ir.Span
	hasSeeds bool
	hasAddr  bool
	hasOwner bool
}

func checkFn(prog *ir.Program, body *ir.Body, src *source.Map, rep *diag.Reporter) {
	a := mir.NewAnalyzer(prog, body, src)
	if a.Context == nil {
		return
	}

	needCheck := accountsNeedingCheck(a.Context)
	if len(needCheck) == 0 {
		return
	}

	accessed := accountsWithDataAccess(a)
	for _, name := range funcutil.SortedKeys(needCheck) {
		info := needCheck[name]
		if !needsOwnerCheck(info, accessed) {
			continue
		}
		rep.Reportf(Name, info.span,
			"account `%s` has its data accessed but no owner validation detected, consider adding `#[account(owner = <program>)]`, using `Account<'info, T>`, or ensure manual validation is performed",
			name)
	}
}

func accountsNeedingCheck(ctx *anchor.Context) map[string]*accountInfo {
	out := make(map[string]*accountInfo)
	for i := range ctx.Accounts {
		field := &ctx.Accounts[i]
		inner := anchor.PeelBox(field.Type)
		// Account-like wrappers deserialize against a declared owner.
		if anchor.IsAccount(inner) || anchor.IsAccountLoader(inner) || anchor.IsInterfaceAccount(inner) {
			continue
		}
		cons := field.Constraints
		out[field.Name] = &accountInfo{
			name:     field.Name,
			span:     field.Span,
			hasSeeds: cons.HasSeeds,
			hasAddr:  cons.HasAddress,
			hasOwner: cons.HasOwner,
		}
	}
	return out
}

func needsOwnerCheck(info *accountInfo, accessed map[string]bool) bool {
	if info.hasSeeds || info.hasAddr || info.hasOwner {
		return false
	}
	return accessed[info.name]
}

// accountsWithDataAccess finds accounts whose raw data reaches a borrow or
// deserialize call. Accounts handed to CPI builder constructors are dropped,
// those reads belong to the invoked program.
func accountsWithDataAccess(a *mir.Analyzer) map[string]bool {
	accessed := make(map[string]bool)
	cpiPrograms := make(map[string]bool)

	for bi := range a.Body.Blocks {
		term := &a.Body.Blocks[bi].Terminator
		if term.Kind != ir.TermCall {
			continue
		}
		fn := &term.Func
		if isDerefFn(fn) || cpi.IsToAccountInfoFn(fn) || cpi.IsKeyFn(fn) {
			continue
		}
		if cpi.IsCpiBuilderConstructor(fn) {
			for _, arg := range term.Args {
				if local, ok := arg.Operand.AsLocal(); ok {
					if ref := a.AccountName(local, true); ref != nil {
						cpiPrograms[ref.Name] = true
					}
				}
			}
			continue
		}
		if cpi.IsDeserializeFn(fn) {
			if name, ok := accountFromArgs(a, term.Args); ok {
				accessed[name] = true
			}
			continue
		}
		if cpi.IsBorrowFn(fn) {
			if name, ok := accountFromReceiver(a, term.Args); ok {
				accessed[name] = true
			}
		}
	}

	for name := range cpiPrograms {
		delete(accessed, name)
	}
	return accessed
}

func isDerefFn(fn *ir.FuncRef) bool {
	return fn.Name == "deref" || fn.Name == "deref_mut"
}

func accountFromReceiver(a *mir.Analyzer, args []ir.Arg) (string, bool) {
	if len(args) == 0 {
		return "", false
	}
	local, ok := args[0].Operand.AsLocal()
	if !ok {
		return "", false
	}
	if ref := a.AccountName(local, true); ref != nil {
		return ref.Name, true
	}
	return "", false
}

func accountFromArgs(a *mir.Analyzer, args []ir.Arg) (string, bool) {
	for _, arg := range args {
		local, ok := arg.Operand.AsLocal()
		if !ok {
			continue
		}
		if ref := a.AccountName(local, true); ref != nil {
			return ref.Name, true
		}
	}
	return "", false
}
