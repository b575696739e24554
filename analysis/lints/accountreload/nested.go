package accountreload

import (
	"github.com/otter-sec/anchor-lints-sub000/analysis/anchor"
	"github.com/otter-sec/anchor-lints-sub000/analysis/cpi"
	"github.com/otter-sec/anchor-lints-sub000/analysis/ir"
	"github.com/otter-sec/anchor-lints-sub000/analysis/mir"
	"github.com/otter-sec/anchor-lints-sub000/analysis/nested"
	"github.com/otter-sec/anchor-lints-sub000/analysis/source"
)

type nestedOpKind int

const (
	nestedReload nestedOpKind = iota
	nestedAccess
)

// nestedOp is one reload or data access found inside a callee, keyed by the
// callee-side account identity so the caller can map it back to its own
// context fields.
type nestedOp struct {
	kind  nestedOpKind
	name  string
	ty    *ir.Type
	local ir.Local
	span  ir.Span
	block ir.BlockID
	// stale marks an access not preceded by a reload inside the callee.
	stale bool
	// unused marks a reload with no CPI before it inside the callee.
	unused bool
}

type nestedCreation struct {
	name  string
	local ir.Local
	block ir.BlockID
}

type nestedOps struct {
	ops       []nestedOp
	cpiBlocks []ir.BlockID
	cpiSpans  []ir.Span
	creations []nestedCreation
}

// propagateNested descends into a same-crate callee that receives the
// handler's context, accounts struct, or individual accounts, and folds its
// reloads, accesses, and CPIs into the caller's block bb.
func propagateNested(prog *ir.Program, a *mir.Analyzer, src *source.Map, state *nested.State,
	term *ir.Terminator, bb ir.BlockID,
	cpiCalls map[ir.BlockID]ir.Span,
	accountAccesses map[string][]access,
	accountReloads map[string][]ir.BlockID,
	cpiAccounts map[string]ir.BlockID) {

	callee := prog.Function(term.Func.Path)
	if callee == nil || callee.TraitMethod || a.Context == nil {
		return
	}
	arg := nested.ClassifyArgs(a, term.Args, a.Context)
	if arg == nil {
		return
	}
	ops := analyzeNestedFn(prog, callee, src, a.Context, state)

	prefix := a.Context.Name + ".accounts."
	for _, op := range ops.ops {
		name, ok := callerAccountName(arg, op.name, op.ty, op.local)
		if !ok {
			continue
		}
		full := prefix + name
		switch op.kind {
		case nestedReload:
			if op.unused {
				continue
			}
			accountReloads[full] = append(accountReloads[full], bb)
		case nestedAccess:
			if !op.stale {
				continue
			}
			accountAccesses[full] = append(accountAccesses[full], access{bb, op.span})
		}
	}

	for _, cr := range ops.creations {
		name, ok := callerAccountName(arg, cr.name, nil, cr.local)
		if !ok {
			continue
		}
		cpiAccounts[prefix+name] = bb
	}

	if len(ops.cpiBlocks) > 0 {
		cpiCalls[bb] = ops.cpiSpans[0]
	}
}

// callerAccountName maps a callee-side account back to the caller's field
// name. For forwarded individual accounts the match is by parameter local
// and type; otherwise the callee already used the context field name.
func callerAccountName(arg *nested.Argument, name string, ty *ir.Type, local ir.Local) (string, bool) {
	if arg.Kind != nested.Account {
		return name, true
	}
	for callerName, acc := range arg.Accounts {
		if acc.Local != local {
			continue
		}
		if ty != nil && acc.Type != nil && !acc.Type.Same(ty) {
			continue
		}
		return callerName, true
	}
	return "", false
}

// analyzeNestedFn collects the reload, access, CPI, and CpiContext creation
// sites of one callee, recursing into its own nested calls.
func analyzeNestedFn(prog *ir.Program, body *ir.Body, src *source.Map,
	parent *anchor.Context, state *nested.State) nestedOps {

	var out nestedOps
	if !state.Enter(body.DefPath) {
		return out
	}
	defer state.Leave(body.DefPath)

	a := mir.NewAnalyzer(prog, body, src)
	for bi := range body.Blocks {
		bb := ir.BlockID(bi)
		term := &body.Blocks[bi].Terminator
		if term.Kind != ir.TermCall {
			continue
		}
		fn := &term.Func

		switch {
		case cpi.IsReloadFn(fn):
			if op, ok := nestedReceiverOp(a, term, bb, nestedReload); ok {
				out.ops = append(out.ops, op)
			}

		case cpi.IsInvokeFn(fn) || a.TakesCpiContext(term.Args):
			out.cpiBlocks = append(out.cpiBlocks, bb)
			out.cpiSpans = append(out.cpiSpans, term.Span)
			out.creations = append(out.creations, invokeAccountCreations(a, body, term, bb)...)

		case isDerefFn(fn):
			out.ops = append(out.ops, nestedAccessOps(a, term, bb)...)

		case isCpiContextCtor(fn):
			out.creations = append(out.creations, contextCtorCreations(a, term, bb)...)

		default:
			callee := prog.Function(fn.Path)
			if callee == nil || callee.TraitMethod {
				continue
			}
			arg := nested.ClassifyArgs(a, term.Args, parent)
			if arg == nil {
				continue
			}
			sub := analyzeNestedFn(prog, callee, src, parent, state)
			out.merge(sub, arg, bb, term.Span)
		}
	}

	markUnusedReloads(a, &out)
	markStaleAccesses(a, &out)
	return out
}

// holdsDeserializedData reports whether the wrapper keeps a deserialized
// copy of the account data that a CPI can invalidate.
func holdsDeserializedData(ty *ir.Type) bool {
	if ty == nil {
		return false
	}
	inner := anchor.PeelBox(ty)
	return anchor.IsAccount(inner) || anchor.IsAccountLoader(inner) || anchor.IsInterfaceAccount(inner)
}

func nestedReceiverOp(a *mir.Analyzer, term *ir.Terminator, bb ir.BlockID, kind nestedOpKind) (nestedOp, bool) {
	if len(term.Args) == 0 {
		return nestedOp{}, false
	}
	local, ok := term.Args[0].Operand.AsLocal()
	if !ok {
		return nestedOp{}, false
	}
	refs := a.AccountFromLocal(local, true)
	if len(refs) == 0 {
		return nestedOp{}, false
	}
	return nestedOp{
		kind:  kind,
		name:  refs[0].Name,
		ty:    a.Body.LocalType(local),
		local: a.ResolveToOriginal(refs[0].Local),
		span:  term.Span,
		block: bb,
	}, true
}

func nestedAccessOps(a *mir.Analyzer, term *ir.Terminator, bb ir.BlockID) []nestedOp {
	var ops []nestedOp
	for _, arg := range term.Args {
		local, ok := arg.Operand.AsLocal()
		if !ok {
			continue
		}
		ty := a.Body.LocalType(local)
		if !holdsDeserializedData(ty) {
			continue
		}
		for _, ref := range a.AccountFromLocal(local, true) {
			ops = append(ops, nestedOp{
				kind:  nestedAccess,
				name:  ref.Name,
				ty:    ty,
				local: a.ResolveToOriginal(ref.Local),
				span:  term.Span,
				block: bb,
			})
		}
	}
	return ops
}

func invokeAccountCreations(a *mir.Analyzer, body *ir.Body, term *ir.Terminator, bb ir.BlockID) []nestedCreation {
	if len(term.Args) < 2 {
		return nil
	}
	var out []nestedCreation
	for _, ref := range a.CollectAccountsFromAccountInfos(term.Args[1], true) {
		local := a.ResolveToOriginal(ref.Local)
		// A forwarded account arrives as a parameter; map back to it by name.
		for i, p := range body.Params {
			if p.Name == ref.Name {
				local = ir.Local(i + 1)
				break
			}
		}
		out = append(out, nestedCreation{name: ref.Name, local: local, block: bb})
	}
	return out
}

func contextCtorCreations(a *mir.Analyzer, term *ir.Terminator, bb ir.BlockID) []nestedCreation {
	if len(term.Args) < 2 {
		return nil
	}
	accountsLocal, ok := term.Args[1].Operand.AsLocal()
	if !ok {
		return nil
	}
	var out []nestedCreation
	for _, accountLocal := range a.FindCpiAccountsStruct(accountsLocal) {
		refs := a.AccountFromLocal(accountLocal, true)
		if len(refs) == 0 {
			continue
		}
		out = append(out, nestedCreation{
			name:  refs[0].Name,
			local: a.ResolveToOriginal(refs[0].Local),
			block: bb,
		})
	}
	return out
}

// merge folds a deeper callee's results into this one, remapping forwarded
// account names and collapsing deeper blocks onto the call-site block.
func (o *nestedOps) merge(sub nestedOps, arg *nested.Argument, bb ir.BlockID, callSpan ir.Span) {
	for _, op := range sub.ops {
		name, ok := callerAccountName(arg, op.name, op.ty, op.local)
		if !ok {
			continue
		}
		op.name = name
		op.block = bb
		o.ops = append(o.ops, op)
	}
	for _, cr := range sub.creations {
		name, ok := callerAccountName(arg, cr.name, nil, cr.local)
		if !ok {
			continue
		}
		cr.name = name
		cr.block = bb
		o.creations = append(o.creations, cr)
	}
	if len(sub.cpiBlocks) > 0 {
		o.cpiBlocks = append(o.cpiBlocks, bb)
		o.cpiSpans = append(o.cpiSpans, callSpan)
	}
}

// markUnusedReloads drops reloads nothing can make stale: no CPI in the
// callee reaches them.
func markUnusedReloads(a *mir.Analyzer, ops *nestedOps) {
	for i := range ops.ops {
		op := &ops.ops[i]
		if op.kind != nestedReload {
			continue
		}
		op.unused = true
		for _, cpiBlock := range ops.cpiBlocks {
			if a.Reachable(cpiBlock, op.block) {
				op.unused = false
				break
			}
		}
	}
}

// markStaleAccesses keeps only accesses no same-account reload precedes.
func markStaleAccesses(a *mir.Analyzer, ops *nestedOps) {
	for i := range ops.ops {
		op := &ops.ops[i]
		if op.kind != nestedAccess {
			continue
		}
		op.stale = true
		for _, other := range ops.ops {
			if other.kind != nestedReload || other.name != op.name || other.block == op.block {
				continue
			}
			if other.ty != nil && op.ty != nil && !other.ty.Same(op.ty) {
				continue
			}
			if a.Reachable(other.block, op.block) {
				op.stale = false
				break
			}
		}
	}
}
