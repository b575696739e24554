package fieldinit

import (
	"github.com/otter-sec/anchor-lints-sub000/analysis/anchor"
	"github.com/otter-sec/anchor-lints-sub000/analysis/ir"
	"github.com/otter-sec/anchor-lints-sub000/analysis/mir"
	"github.com/otter-sec/anchor-lints-sub000/analysis/nested"
	"github.com/otter-sec/anchor-lints-sub000/analysis/source"
)

// passedInitAccount finds an init account forwarded to a helper call by
// matching argument types against the init accounts' inner structs.
func passedInitAccount(a *mir.Analyzer, args []ir.Arg, initAccounts map[string]*initAccount) *initAccount {
	for _, arg := range args {
		local, ok := arg.Operand.PlaceLocal()
		if !ok {
			continue
		}
		ty := a.Body.LocalType(local)
		if ty == nil {
			continue
		}
		if inner := anchor.InnerAccountType(anchor.PeelBox(ty)); inner != nil {
			ty = inner
		}
		for _, acc := range initAccounts {
			if acc.inner.Same(ty) {
				return acc
			}
		}
	}
	return nil
}

// analyzeNestedInit runs the assignment collection inside a same-crate
// helper the handler delegates initialization to.
func analyzeNestedInit(prog *ir.Program, body *ir.Body, src *source.Map,
	parentInit map[string]*initAccount, passed *initAccount,
	state *nested.State, parentSpan ir.Span) map[string]map[string]bool {

	if !state.Enter(body.DefPath) {
		return nil
	}
	defer state.Leave(body.DefPath)

	a := mir.NewAnalyzer(prog, body, src)

	initAccounts := make(map[string]*initAccount)
	if a.Context != nil {
		initAccounts = extractInitAccounts(prog, a.Context)
	}
	if len(initAccounts) == 0 {
		switch {
		case passed != nil:
			initAccounts[passed.name] = passed
		default:
			// Methods on the account struct itself initialize self.
			if acc := selfInitAccount(a, parentInit); acc != nil {
				initAccounts[acc.name] = acc
			}
		}
	}
	if len(initAccounts) == 0 {
		return nil
	}
	return collectFieldAssignments(prog, a, src, initAccounts, state, parentSpan)
}

// selfInitAccount matches a helper's receiver type against the parent's init
// accounts.
func selfInitAccount(a *mir.Analyzer, parentInit map[string]*initAccount) *initAccount {
	if a.Body.ArgCount == 0 {
		return nil
	}
	ty := a.Body.LocalType(ir.Local(1))
	if ty == nil {
		return nil
	}
	for _, acc := range parentInit {
		if acc.inner.Same(ty) {
			return acc
		}
	}
	return nil
}
