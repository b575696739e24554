// Package dupmutable flags accounts structs in which two mutable fields of
// the same account type may alias.
package dupmutable

import (
	"fmt"

	"github.com/otter-sec/anchor-lints-sub000/analysis/anchor"
	"github.com/otter-sec/anchor-lints-sub000/analysis/diag"
	"github.com/otter-sec/anchor-lints-sub000/analysis/ir"
	"github.com/otter-sec/anchor-lints-sub000/analysis/mir"
	"github.com/otter-sec/anchor-lints-sub000/analysis/source"
	"github.com/otter-sec/anchor-lints-sub000/internal/funcutil"
)

const Name = "duplicate_mutable_accounts"

func Run(prog *ir.Program, src *source.Map, rep *diag.Reporter) {
	for _, body := range prog.Functions {
		if body.Span.FromExpansion || body.UnsatisfiablePreds {
			continue
		}
		checkFn(prog, body, src, rep)
	}
}

// accountDetails is one mutable field of the accounts struct.
type accountDetails struct {
	name  string
	span  ir.Span
	seeds []string
	attrs []string
}

func checkFn(prog *ir.Program, body *ir.Body, src *source.Map, rep *diag.Reporter) {
	a := mir.NewAnalyzer(prog, body, src)
	if a.Context == nil || a.Context.Struct == nil {
		return
	}

	// comparisons is a set of `a:b` pairs witnessed distinct, from key
	// inequality constraints and from runtime pubkey comparisons.
	comparisons := make(map[string]bool)
	var hasOneTargets []string

	byType := make(map[string][]accountDetails)
	for i := range a.Context.Accounts {
		field := &a.Context.Accounts[i]
		cons := field.Constraints

		for _, pair := range cons.KeyInequalities() {
			comparisons[pair] = true
		}
		hasOneTargets = append(hasOneTargets, cons.HasOne...)

		inner := anchor.PeelBox(field.Type)
		if !isMutableAccount(inner, cons) {
			continue
		}
		key := inner.String()
		byType[key] = append(byType[key], accountDetails{
			name:  field.Name,
			span:  field.Span,
			seeds: cons.SeedAccounts,
			attrs: cons.Raw,
		})
	}

	collectRuntimeComparisons(a, comparisons)

	structSpan := a.Context.Struct.Span
	reported := make(map[string]bool)
	for _, key := range funcutil.SortedKeys(byType) {
		accounts := byType[key]
		for i := 0; i < len(accounts); i++ {
			for j := i + 1; j < len(accounts); j++ {
				first, second := &accounts[i], &accounts[j]
				if !shouldReport(first, second, reported, comparisons, hasOneTargets) {
					continue
				}
				help := fmt.Sprintf(
					"`%s` and `%s` may refer to the same account. Consider adding a constraint like `#[account(constraint = %s.key() != %s.key())]`.",
					first.name, second.name, first.name, second.name)
				d := diag.Diagnostic{
					Lint:     Name,
					Span:     structSpan,
					Message:  "duplicate mutable account found",
					Note:     help,
					NoteSpan: first.span,
				}
				if structSpan.FromExpansion || structSpan.IsZero() {
					d.Span = first.span
					d.NoteSpan = ir.Span{}
				}
				rep.Report(d)
			}
		}
	}
}

// isMutableAccount reports whether the field is a mutable account wrapper.
func isMutableAccount(ty *ir.Type, cons anchor.Constraints) bool {
	if !cons.Mutable {
		return false
	}
	return anchor.IsAccount(ty) || anchor.IsAccountLoader(ty) ||
		anchor.IsInterfaceAccount(ty) || anchor.IsUncheckedAccount(ty) ||
		anchor.IsAccountInfo(ty) || anchor.IsSystemAccount(ty)
}

// collectRuntimeComparisons records account pairs compared through pubkey
// eq/ne calls in the function body.
func collectRuntimeComparisons(a *mir.Analyzer, out map[string]bool) {
	for bi := range a.Body.Blocks {
		term := &a.Body.Blocks[bi].Terminator
		if term.Kind != ir.TermCall {
			continue
		}
		if term.Func.Name != "eq" && term.Func.Name != "ne" {
			continue
		}
		lhs, rhs, ok := a.ArgsAsPubkeyLocals(term.Args)
		if !ok {
			continue
		}
		left := a.AccountName(lhs, true)
		right := a.AccountName(rhs, true)
		if left == nil || right == nil {
			continue
		}
		out[left.Name+":"+right.Name] = true
		out[right.Name+":"+left.Name] = true
	}
}

func shouldReport(first, second *accountDetails, reported, comparisons map[string]bool, hasOneTargets []string) bool {
	pair := first.name + ":" + second.name
	if reported[pair] || reported[second.name+":"+first.name] {
		return false
	}
	if comparisons[pair] {
		return false
	}
	// Distinct seeds derive distinct addresses.
	if !sameStrings(first.seeds, second.seeds) {
		return false
	}
	if !sameStrings(first.attrs, second.attrs) {
		return false
	}
	// Two accounts pinned by separate has_one targets cannot alias.
	if funcutil.Contains(hasOneTargets, first.name) && funcutil.Contains(hasOneTargets, second.name) {
		return false
	}
	reported[pair] = true
	return true
}

func sameStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := funcutil.Sorted(a)
	bs := funcutil.Sorted(b)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}
