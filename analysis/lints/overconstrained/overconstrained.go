// Package overconstrained flags seed-only accounts typed as SystemAccount in
// non-init instructions. SystemAccount enforces owner == system_program, so if
// the seed account's ownership ever changes the PDA derivation still succeeds
// but the constraint fails, permanently bricking the instruction.
package overconstrained

import (
	"strings"

	"github.com/otter-sec/anchor-lints-sub000/analysis/anchor"
	"github.com/otter-sec/anchor-lints-sub000/analysis/diag"
	"github.com/otter-sec/anchor-lints-sub000/analysis/ir"
	"github.com/otter-sec/anchor-lints-sub000/analysis/mir"
	"github.com/otter-sec/anchor-lints-sub000/analysis/source"
)

const Name = "overconstrained_seed_account"

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
	if a.Context == nil || a.Context.Struct == nil {
		return
	}
	if isInitInstruction(a.Context) {
		return
	}

	seedAccounts := make(map[string]bool)
	for _, field := range a.Context.Accounts {
		if field.Constraints.HasSeeds {
			for _, name := range field.Constraints.SeedAccounts {
				seedAccounts[name] = true
			}
		}
	}

	for _, field := range a.Context.Accounts {
		inner := anchor.PeelBox(field.Type)
		if !anchor.IsSystemAccount(inner) {
			continue
		}
		if !seedAccounts[field.Name] {
			continue
		}
		if accountRequired(a, src, &field) {
			continue
		}
		rep.Reportf(Name, field.Span,
			"seed-only account `%s` is overconstrained as `SystemAccount`. If this account's ownership changes, PDA validation will fail and funds may be permanently locked. Consider using `UncheckedAccount` for PDA seeds in non-init instructions",
			field.Name)
	}
}

// isInitInstruction reports whether the context creates accounts. Seed
// accounts in init instructions legitimately need the system-program owner
// guarantee, so they are out of scope.
func isInitInstruction(ctx *anchor.Context) bool {
	for _, field := range ctx.Accounts {
		cons := &field.Constraints
		if cons.Init || cons.InitIfNeeded || cons.HasPayer || cons.HasSpace {
			return true
		}
	}
	for _, field := range ctx.Accounts {
		if isSystemProgramType(field.Type) {
			return true
		}
	}
	return false
}

func isSystemProgramType(t *ir.Type) bool {
	t = t.Peel()
	if t == nil || !t.IsAdt() {
		return false
	}
	if anchor.IsSystemProgram(t) || t.PathContains("SystemProgram") {
		return true
	}
	// Program<'info, System> carries the marker in its type argument.
	for _, arg := range t.Args {
		if isSystemProgramType(arg) {
			return true
		}
	}
	return false
}

func accountRequired(a *mir.Analyzer, src *source.Map, field *anchor.AccountField) bool {
	cons := &field.Constraints
	if cons.HasPayer || cons.Signer || cons.Mutable {
		return true
	}
	if isCloseTarget(a.Context, field.Name) {
		return true
	}
	if lamportsAccessed(a, src, field.Name) {
		return true
	}
	return referencedInBody(a, src, field.Name)
}

func isCloseTarget(ctx *anchor.Context, name string) bool {
	for _, field := range ctx.Accounts {
		if field.Constraints.CloseTarget == name {
			return true
		}
	}
	return false
}

func lamportsAccessed(a *mir.Analyzer, src *source.Map, name string) bool {
	return anySpanSnippet(a, src, func(snippet string) bool {
		return strings.Contains(snippet, name) && strings.Contains(snippet, "lamports")
	})
}

// referencedInBody checks whether the account is used for anything beyond
// seed material. Pure `.key()` / `.as_ref()` uses inside seeds do not count.
func referencedInBody(a *mir.Analyzer, src *source.Map, name string) bool {
	return anySpanSnippet(a, src, func(snippet string) bool {
		if !strings.Contains(snippet, name) {
			return false
		}
		if !strings.Contains(snippet, ".key()") &&
			!strings.Contains(snippet, ".as_ref()") &&
			!strings.Contains(snippet, "seeds") {
			return true
		}
		return strings.Contains(snippet, name+".") ||
			strings.Contains(snippet, name+" ") ||
			strings.Contains(snippet, name+",")
	})
}

func anySpanSnippet(a *mir.Analyzer, src *source.Map, match func(string) bool) bool {
	for bi := range a.Body.Blocks {
		block := &a.Body.Blocks[bi]
		for si := range block.Statements {
			span := block.Statements[si].Span
			if !span.IsZero() && match(src.Snippet(span)) {
				return true
			}
		}
		span := block.Terminator.Span
		if !span.IsZero() && match(src.Snippet(span)) {
			return true
		}
	}
	return false
}
