// Package atainit flags associated token accounts created with `init`. An
// ATA address is deterministic, so anyone can create it ahead of the
// instruction and make `init` fail forever. `init_if_needed` keeps the
// instruction idempotent.
package atainit

import (
	"github.com/otter-sec/anchor-lints-sub000/analysis/anchor"
	"github.com/otter-sec/anchor-lints-sub000/analysis/diag"
	"github.com/otter-sec/anchor-lints-sub000/analysis/ir"
	"github.com/otter-sec/anchor-lints-sub000/analysis/mir"
	"github.com/otter-sec/anchor-lints-sub000/analysis/source"
)

const Name = "ata_should_use_init_if_needed"

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

	for _, field := range a.Context.Accounts {
		cons := &field.Constraints
		if !cons.Init || cons.InitIfNeeded || !cons.AssociatedToken {
			continue
		}
		if !isTokenAccountWrapper(field.Type) {
			continue
		}
		rep.Reportf(Name, field.Span,
			"Associated Token Account `%s` uses `init` constraint. Consider using `init_if_needed` instead to make the instruction idempotent",
			field.Name)
	}
}

func isTokenAccountWrapper(t *ir.Type) bool {
	t = anchor.PeelBox(t)
	if !anchor.IsAccount(t) && !anchor.IsAccountLoader(t) && !anchor.IsInterfaceAccount(t) {
		return false
	}
	return anchor.IsTokenAccount(t.Arg(0))
}
