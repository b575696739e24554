// Package arbitrarycpi flags cross-program invocations whose target program
// id may be user-controlled.
package arbitrarycpi

import (
	"github.com/otter-sec/anchor-lints-sub000/analysis/anchor"
	"github.com/otter-sec/anchor-lints-sub000/analysis/cpi"
	"github.com/otter-sec/anchor-lints-sub000/analysis/diag"
	"github.com/otter-sec/anchor-lints-sub000/analysis/ir"
	"github.com/otter-sec/anchor-lints-sub000/analysis/mir"
	"github.com/otter-sec/anchor-lints-sub000/analysis/source"
	"github.com/otter-sec/anchor-lints-sub000/internal/funcutil"
)

const Name = "arbitrary_cpi_call"

// cpiCall is a call terminator consuming a CpiContext or Instruction.
type cpiCall struct {
	span  ir.Span
	local ir.Local
}

// cpiContext is a CpiContext (or Instruction) construction whose program id
// came from outside the program.
type cpiContext struct {
	ctxLocal ir.Local
	pidLocal ir.Local
}

// cmp is a pubkey comparison call and the local holding its result.
type cmp struct {
	lhs, rhs ir.Local
	ret      ir.Local
	isEq     bool
}

// ifThen is a boolean switch; a truthy discriminant jumps to then.
type ifThen struct {
	discr     ir.Local
	then, els ir.BlockID
}

// Run analyzes every function in the program.
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

	cpiCalls := make(map[ir.BlockID]cpiCall)
	cpiContexts := make(map[ir.BlockID]cpiContext)
	var switches []ifThen
	var cmps []cmp

	// Instruction aggregates seen so far: instruction local to the block
	// that filled in its program id.
	instrProgramID := make(map[ir.Local]ir.BlockID)

	for bi := range body.Blocks {
		bb := ir.BlockID(bi)
		block := &body.Blocks[bi]

		for si := range block.Statements {
			recordInstructionCreation(a, bb, &block.Statements[si], instrProgramID)
		}

		term := &block.Terminator
		switch term.Kind {
		case ir.TermCall:
			classifyCall(a, bb, term, cpiCalls, cpiContexts, &cmps, instrProgramID)
		case ir.TermSwitchInt:
			if term.Discr == nil {
				continue
			}
			discr, ok := term.Discr.AsLocal()
			if !ok {
				continue
			}
			ty := body.LocalType(discr)
			if ty == nil || !ty.IsBool() {
				continue
			}
			if val, then, els, ok := term.AsStaticIf(); ok {
				if val != 1 {
					then, els = els, then
				}
				switches = append(switches, ifThen{discr: discr, then: then, els: els})
			}
		}
	}

	for _, bb := range funcutil.SortedKeys(cpiContexts) {
		ctxInfo := cpiContexts[bb]
		callBB, found := reachableCpiCall(body, bb, cpiCalls)
		if !found {
			continue
		}
		call := cpiCalls[callBB]
		if !a.SameValue(ctxInfo.ctxLocal, call.local) && ctxInfo.ctxLocal != call.local {
			continue
		}
		if pubkeyCheckEscapesDomination(a, callBB, ctxInfo.pidLocal, cmps, switches) ||
			!programIDCompared(a, ctxInfo.ctxLocal, cmps) {
			rep.Reportf(Name, call.span,
				"arbitrary CPI detected, target program id may be user-controlled")
		}
	}
}

func classifyCall(
	a *mir.Analyzer,
	bb ir.BlockID,
	term *ir.Terminator,
	cpiCalls map[ir.BlockID]cpiCall,
	cpiContexts map[ir.BlockID]cpiContext,
	cmps *[]cmp,
	instrProgramID map[ir.Local]ir.BlockID,
) {
	args := term.Args
	dest, hasDest := term.Destination.AsLocal()

	switch {
	case a.TakesCpiContext(args) && len(args) > 0:
		if local, ok := args[0].Operand.AsLocal(); ok &&
			anchor.IsCpiContext(a.Body.LocalType(local)) {
			cpiCalls[bb] = cpiCall{span: term.Span, local: local}
		}

	case anchor.IsCpiContext(term.Func.Return):
		if len(args) == 0 || !hasDest {
			return
		}
		pid, ok := args[0].Operand.AsLocal()
		if !ok || !a.IsPubkeyLocal(pid) {
			return
		}
		if origin := a.OriginOf(args[0].Operand); origin != mir.OriginConstant {
			cpiContexts[bb] = cpiContext{ctxLocal: dest, pidLocal: pid}
		}

	case term.Func.Name == "eq":
		if lhs, rhs, ok := a.ArgsAsPubkeyLocals(args); ok && hasDest {
			*cmps = append(*cmps, cmp{lhs: lhs, rhs: rhs, ret: dest, isEq: true})
		}

	case term.Func.Name == "ne":
		if lhs, rhs, ok := a.ArgsAsPubkeyLocals(args); ok && hasDest {
			*cmps = append(*cmps, cmp{lhs: lhs, rhs: rhs, ret: dest, isEq: false})
		}

	case term.Func.Name == "contains" && len(args) == 2:
		pk, ok := a.PubkeyOperandLocal(args[1].Operand)
		if !ok || !hasDest {
			return
		}
		if ret := term.Func.Return; ret == nil || !ret.IsBool() {
			return
		}
		// An allowlist membership test pins the pubkey as effectively as an
		// equality; model it as a comparison against itself.
		*cmps = append(*cmps, cmp{lhs: pk, rhs: pk, ret: dest, isEq: true})

	case cpi.IsInvokeFn(&term.Func) && len(args) > 0:
		if instr, ok := args[0].Operand.AsLocal(); ok {
			trackInstructionCall(a, instr, term.Span, bb, cpiCalls, cpiContexts, instrProgramID)
		}
	}
}

// recordInstructionCreation notes Instruction aggregates whose first field
// (the program id) is a pubkey local.
func recordInstructionCreation(a *mir.Analyzer, bb ir.BlockID, stmt *ir.Statement, instrProgramID map[ir.Local]ir.BlockID) {
	if stmt.Kind != ir.StAssign || stmt.Rvalue == nil || stmt.Rvalue.Kind != ir.RvAggregate {
		return
	}
	dest, ok := stmt.Place.AsLocal()
	if !ok || !anchor.IsInstruction(a.Body.LocalType(dest)) {
		return
	}
	if len(stmt.Rvalue.Operands) == 0 {
		return
	}
	pid, ok := stmt.Rvalue.Operands[0].AsLocal()
	if !ok || !a.IsPubkeyLocal(pid) {
		return
	}
	instrProgramID[dest] = bb
}

// trackInstructionCall resolves a raw invoke's instruction argument back to
// the aggregate that built it, then records the pair when the program id is
// not a constant.
func trackInstructionCall(
	a *mir.Analyzer,
	instrLocal ir.Local,
	span ir.Span,
	bb ir.BlockID,
	cpiCalls map[ir.BlockID]cpiCall,
	cpiContexts map[ir.BlockID]cpiContext,
	instrProgramID map[ir.Local]ir.BlockID,
) {
	if !anchor.IsInstruction(a.Body.LocalType(instrLocal)) {
		return
	}

	pidBB, found := instrProgramID[instrLocal]
	if !found {
		toCheck := []ir.Local{instrLocal}
		visited := make(map[ir.Local]bool)
		for len(toCheck) > 0 {
			cur := toCheck[len(toCheck)-1]
			toCheck = toCheck[:len(toCheck)-1]
			if visited[cur] {
				continue
			}
			visited[cur] = true

			if pb, ok := instrProgramID[cur]; ok {
				pidBB, found = pb, true
				break
			}
			for _, src := range funcutil.SortedKeys(a.TransitiveReverse) {
				dests := a.TransitiveReverse[src]
				if funcutil.Contains(dests, cur) {
					toCheck = append(toCheck, src)
				} else if src == cur {
					toCheck = append(toCheck, dests...)
				}
			}
			if assign, ok := a.Assignment[cur]; ok && assign.Kind == mir.AssignFromPlace {
				if srcLocal, ok := assign.Place.AsLocal(); ok {
					toCheck = append(toCheck, srcLocal)
				}
			}
		}
	}
	if !found {
		return
	}

	op := ir.Operand{Kind: ir.OpCopy, Place: ir.Place{Local: instrLocal}}
	if a.OriginOf(op) == mir.OriginConstant {
		return
	}
	cpiCalls[bb] = cpiCall{span: span, local: instrLocal}
	cpiContexts[pidBB] = cpiContext{ctxLocal: instrLocal, pidLocal: instrLocal}
}

// reachableCpiCall finds the first CPI call block reachable from the
// context-construction block.
func reachableCpiCall(body *ir.Body, from ir.BlockID, calls map[ir.BlockID]cpiCall) (ir.BlockID, bool) {
	visited := map[ir.BlockID]bool{from: true}
	queue := []ir.BlockID{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, succ := range body.Blocks[cur].Terminator.Successors() {
			if visited[succ] {
				continue
			}
			if _, ok := calls[succ]; ok {
				return succ, true
			}
			visited[succ] = true
			queue = append(queue, succ)
		}
	}
	return 0, false
}

// knownPubkeyBlocks returns the truthy branch blocks of switches that test a
// comparison involving pk.
func knownPubkeyBlocks(a *mir.Analyzer, pk ir.Local, cmps []cmp, switches []ifThen) []ir.BlockID {
	isSame := func(lhs, rhs ir.Local) bool {
		if lhs == rhs {
			return true
		}
		for _, dests := range a.TransitiveReverse {
			if funcutil.Contains(dests, lhs) && funcutil.Contains(dests, rhs) {
				return true
			}
		}
		return false
	}

	var blocks []ir.BlockID
	for _, c := range cmps {
		if !isSame(c.lhs, pk) && !isSame(c.rhs, pk) {
			continue
		}
		for _, sw := range switches {
			if sw.discr != c.ret {
				continue
			}
			if c.isEq {
				blocks = append(blocks, sw.then)
			} else {
				blocks = append(blocks, sw.els)
			}
		}
	}
	return blocks
}

// pubkeyCheckEscapesDomination reports whether some branch known to pin the
// pubkey fails to dominate the call block, i.e. the call is reachable
// without passing the check.
func pubkeyCheckEscapesDomination(a *mir.Analyzer, block ir.BlockID, pk ir.Local, cmps []cmp, switches []ifThen) bool {
	for _, bb := range knownPubkeyBlocks(a, pk, cmps, switches) {
		if !a.Dominates(bb, block) {
			return true
		}
	}
	return false
}

// programIDCompared reports whether any pubkey comparison touches the CPI
// context's value chain or the same context account.
func programIDCompared(a *mir.Analyzer, ctxLocal ir.Local, cmps []cmp) bool {
	refs := map[ir.Local]bool{ctxLocal: true}
	for src, dests := range a.TransitiveReverse {
		if src == ctxLocal || funcutil.Contains(dests, ctxLocal) {
			refs[src] = true
			for _, d := range dests {
				refs[d] = true
			}
		}
	}
	for _, c := range cmps {
		if refs[c.lhs] || refs[c.rhs] ||
			a.SameAccount(c.lhs, ctxLocal) || a.SameAccount(c.rhs, ctxLocal) {
			return true
		}
	}
	return false
}
