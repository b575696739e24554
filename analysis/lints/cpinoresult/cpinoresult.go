// Package cpinoresult flags CPI calls whose Result is dropped. A failed CPI
// that goes unnoticed leaves the handler running against state it believes
// was updated.
package cpinoresult

import (
	"strings"

	"github.com/otter-sec/anchor-lints-sub000/analysis/anchor"
	"github.com/otter-sec/anchor-lints-sub000/analysis/cpi"
	"github.com/otter-sec/anchor-lints-sub000/analysis/diag"
	"github.com/otter-sec/anchor-lints-sub000/analysis/ir"
	"github.com/otter-sec/anchor-lints-sub000/analysis/mir"
	"github.com/otter-sec/anchor-lints-sub000/analysis/source"
)

const Name = "cpi_no_result"

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

	for bi := range body.Blocks {
		term := &body.Blocks[bi].Terminator
		if term.Kind != ir.TermCall || !isCpiCall(a, term) {
			continue
		}

		dest, destIsLocal := term.Destination.AsLocal()

		// Returned directly: the caller handles it.
		if destIsLocal && dest == 0 {
			continue
		}
		// Discarded with `let _ = ...`: an explicit decision.
		if destIsLocal && localNeverRead(body, dest) {
			continue
		}
		if term.Target != nil && resultHandled(a, *term.Target, dest, destIsLocal) {
			continue
		}

		rep.Report(diag.Diagnostic{
			Lint:    Name,
			Span:    term.Span,
			Message: "CPI call result is not handled. Consider using `?` operator or explicit error handling",
		})
	}
}

func isCpiCall(a *mir.Analyzer, term *ir.Terminator) bool {
	if cpi.IsInvokeFn(&term.Func) {
		return true
	}
	if !a.TakesCpiContext(term.Args) {
		return false
	}
	// A CpiContext-returning callee is a builder like with_signer, not the
	// invocation itself.
	if anchor.IsCpiContext(term.Func.Return) {
		return false
	}
	if len(term.Args) > 0 {
		if local, ok := term.Args[0].Operand.AsLocal(); ok {
			return anchor.IsCpiContext(a.Body.LocalType(local))
		}
	}
	return false
}

func resultHandled(a *mir.Analyzer, target ir.BlockID, dest ir.Local, destIsLocal bool) bool {
	if isTryBranch(a.Body, target) || isUnwrapOrExpect(a, target) {
		return true
	}
	return destIsLocal && isSwitchOnResult(a.Body, target, dest)
}

// isTryBranch matches the Try::branch call the `?` operator lowers to.
func isTryBranch(body *ir.Body, bb ir.BlockID) bool {
	term := &body.Blocks[bb].Terminator
	return term.Kind == ir.TermCall &&
		term.Func.Name == "branch" &&
		strings.Contains(term.Func.Path, "Try")
}

// isUnwrapOrExpect matches Result combinators consuming the value: unwrap,
// expect and is_err terminate the question outright; ok only counts when the
// option is then switched on; any other Result method followed by a try
// branch (e.g. map_err before `?`) also handles the result.
func isUnwrapOrExpect(a *mir.Analyzer, bb ir.BlockID) bool {
	term := &a.Body.Blocks[bb].Terminator
	if term.Kind != ir.TermCall || !strings.Contains(term.Func.Path, "Result") {
		return false
	}
	switch term.Func.Name {
	case "unwrap", "expect", "is_err":
		return true
	case "ok":
		if term.Target != nil {
			if dest, ok := term.Destination.AsLocal(); ok {
				return isSwitchOnResult(a.Body, *term.Target, dest)
			}
		}
		return false
	}
	return term.Target != nil && isTryBranch(a.Body, *term.Target)
}

// isSwitchOnResult matches a discriminant read of the result local feeding
// a switch with an Ok or Err arm.
func isSwitchOnResult(body *ir.Body, bb ir.BlockID, result ir.Local) bool {
	block := &body.Blocks[bb]
	term := &block.Terminator
	if term.Kind != ir.TermSwitchInt || term.Discr == nil {
		return false
	}
	discrLocal, ok := term.Discr.AsLocal()
	if !ok {
		return false
	}
	for si := range block.Statements {
		stmt := &block.Statements[si]
		if stmt.Kind != ir.StAssign || stmt.Rvalue == nil ||
			stmt.Rvalue.Kind != ir.RvDiscriminant || stmt.Rvalue.Place == nil {
			continue
		}
		src, ok := stmt.Rvalue.Place.AsLocal()
		if !ok || src != result {
			continue
		}
		if dest, ok := stmt.Place.AsLocal(); !ok || dest != discrLocal {
			continue
		}
		for _, tgt := range term.Targets {
			if tgt.Value == 0 || tgt.Value == 1 {
				return true
			}
		}
	}
	return false
}

func localNeverRead(body *ir.Body, local ir.Local) bool {
	for bi := range body.Blocks {
		block := &body.Blocks[bi]
		for si := range block.Statements {
			stmt := &block.Statements[si]
			if stmt.Kind == ir.StAssign && stmt.Rvalue != nil && rvalueUsesLocal(stmt.Rvalue, local) {
				return false
			}
		}
		if terminatorUsesLocal(&block.Terminator, local) {
			return false
		}
	}
	return true
}

func rvalueUsesLocal(rv *ir.Rvalue, local ir.Local) bool {
	placeIs := func(p *ir.Place) bool {
		if p == nil {
			return false
		}
		l, ok := p.AsLocal()
		return ok && l == local
	}
	switch rv.Kind {
	case ir.RvUse:
		return !rv.Operand.IsConstant() && placeIs(&rv.Operand.Place)
	case ir.RvRef:
		return placeIs(rv.Place)
	case ir.RvAggregate:
		for i := range rv.Operands {
			op := &rv.Operands[i]
			if !op.IsConstant() && placeIs(&op.Place) {
				return true
			}
		}
	}
	return false
}

func terminatorUsesLocal(term *ir.Terminator, local ir.Local) bool {
	switch term.Kind {
	case ir.TermCall:
		for _, arg := range term.Args {
			if l, ok := arg.Operand.AsLocal(); ok && l == local {
				return true
			}
		}
	case ir.TermSwitchInt:
		if term.Discr != nil {
			if l, ok := term.Discr.AsLocal(); ok && l == local {
				return true
			}
		}
	}
	return false
}
