// Package mir implements the per-function dataflow engine the lints run on:
// provenance maps over a body's assignments, account identification against
// the function's Anchor context, and control-flow queries over its blocks.
package mir

import (
	"github.com/otter-sec/anchor-lints-sub000/analysis/anchor"
	"github.com/otter-sec/anchor-lints-sub000/analysis/ir"
	"github.com/otter-sec/anchor-lints-sub000/analysis/source"
	"github.com/otter-sec/anchor-lints-sub000/internal/funcutil"
	"github.com/otter-sec/anchor-lints-sub000/internal/graphutil"
)

// Origin classifies where a value ultimately comes from.
type Origin int

const (
	OriginUnknown Origin = iota
	OriginConstant
	OriginParameter
)

func (o Origin) String() string {
	switch o {
	case OriginConstant:
		return "constant"
	case OriginParameter:
		return "parameter"
	}
	return "unknown"
}

// Analyzer bundles one function body with its provenance maps, CFG indexes
// and Anchor context. Lints construct one per handler and share its queries.
type Analyzer struct {
	Prog *ir.Program
	Body *ir.Body
	Src  *source.Map

	Maps
	CFG graphutil.BlockGraph
	Dom graphutil.Dominators

	// Context is the handler's Anchor context, nil when the function takes
	// none.
	Context *anchor.Context
	// Params are the function's direct Anchor-wrapper parameters, for
	// helpers called outside a Context.
	Params []anchor.ParamInfo

	// revSources caches the sorted source locals of TransitiveReverse.
	revSources []ir.Local
}

// NewAnalyzer builds the provenance maps and CFG indexes for body.
func NewAnalyzer(prog *ir.Program, body *ir.Body, src *source.Map) *Analyzer {
	a := &Analyzer{
		Prog: prog,
		Body: body,
		Src:  src,
		Maps: BuildMaps(body),
		CFG:  graphutil.NewBlockGraph(body),
		Dom:  graphutil.NewDominators(body),
	}
	a.Context = anchor.ExtractContext(prog, body, src)
	if a.Context == nil {
		a.Context = anchor.ExtractBareContext(prog, body, src)
	}
	a.Params = anchor.ExtractParams(body, src)
	a.revSources = funcutil.SortedKeys(a.TransitiveReverse)
	return a
}

// ResolveToOriginal walks the assignment chain backwards from local to the
// local it was originally copied or borrowed from. Cycles resolve to the
// first local revisited.
func (a *Analyzer) ResolveToOriginal(local ir.Local) ir.Local {
	return a.resolveOriginal(local, make(map[ir.Local]bool))
}

func (a *Analyzer) resolveOriginal(from ir.Local, visited map[ir.Local]bool) ir.Local {
	if visited[from] {
		return from
	}
	visited[from] = true
	for _, src := range a.revSources {
		if funcutil.Contains(a.TransitiveReverse[src], from) {
			return a.resolveOriginal(src, visited)
		}
	}
	return from
}

// OriginOf classifies an operand as constant, parameter-derived or unknown.
func (a *Analyzer) OriginOf(op ir.Operand) Origin {
	if op.IsConstant() {
		return OriginConstant
	}
	if local, ok := op.AsLocal(); ok {
		return a.localOrigin(local, make(map[ir.Local]bool))
	}
	return OriginUnknown
}

func (a *Analyzer) localOrigin(local ir.Local, visited map[ir.Local]bool) Origin {
	if visited[local] {
		return OriginUnknown
	}
	visited[local] = true
	if a.Body.IsParam(local) {
		return OriginParameter
	}
	if assign, ok := a.Assignment[local]; ok {
		switch assign.Kind {
		case AssignConst:
			return OriginConstant
		case AssignFromPlace, AssignRefTo:
			if src, ok := assign.Place.AsLocal(); ok {
				return a.localOrigin(src, visited)
			}
		}
	}
	return OriginUnknown
}

// TypeOf returns the peeled type of an operand, nil when unknown.
func (a *Analyzer) TypeOf(op ir.Operand) *ir.Type {
	if op.IsConstant() {
		if op.Const != nil && op.Const.Type != nil {
			return op.Const.Type.Peel()
		}
		return nil
	}
	if local, ok := op.AsLocal(); ok {
		return a.Body.LocalType(local)
	}
	return nil
}

// IsPubkeyLocal reports whether a local holds a Pubkey.
func (a *Analyzer) IsPubkeyLocal(local ir.Local) bool {
	return anchor.IsPubkey(a.Body.LocalType(local))
}

// PubkeyOperandLocal returns the operand's local when it refers to a Pubkey.
func (a *Analyzer) PubkeyOperandLocal(op ir.Operand) (ir.Local, bool) {
	local, ok := op.AsLocal()
	if !ok || !a.IsPubkeyLocal(local) {
		return -1, false
	}
	return local, true
}

// ArgsAsPubkeyLocals returns the locals of the first two call arguments when
// both are Pubkeys.
func (a *Analyzer) ArgsAsPubkeyLocals(args []ir.Arg) (ir.Local, ir.Local, bool) {
	if len(args) < 2 {
		return -1, -1, false
	}
	l1, ok1 := a.PubkeyOperandLocal(args[0].Operand)
	l2, ok2 := a.PubkeyOperandLocal(args[1].Operand)
	if !ok1 || !ok2 {
		return -1, -1, false
	}
	return l1, l2, true
}

// SameValue reports whether from's value flows into to through the
// assignment chain, in either role.
func (a *Analyzer) SameValue(from, to ir.Local) bool {
	return a.sameValue(from, to, make(map[ir.Local]bool))
}

func (a *Analyzer) sameValue(from, to ir.Local, visited map[ir.Local]bool) bool {
	if visited[from] {
		return false
	}
	visited[from] = true
	if from == to {
		return true
	}
	for _, next := range a.TransitiveReverse[from] {
		if a.sameValue(next, to, visited) {
			return true
		}
	}
	return false
}

// SameResolved reports whether two locals resolve to the same original.
func (a *Analyzer) SameResolved(from, to ir.Local) bool {
	return a.ResolveToOriginal(from) == a.ResolveToOriginal(to)
}

// TakesCpiContext reports whether any call argument is a CpiContext.
func (a *Analyzer) TakesCpiContext(args []ir.Arg) bool {
	for _, arg := range args {
		if local, ok := arg.Operand.AsLocal(); ok {
			if anchor.IsCpiContext(a.Body.LocalType(local)) {
				return true
			}
		}
	}
	return false
}

// Reachable reports whether to is reachable from from in the CFG.
func (a *Analyzer) Reachable(from, to ir.BlockID) bool {
	return a.CFG.Reachable(from, to)
}

// Dominates reports whether block a dominates block b.
func (a *Analyzer) Dominates(x, y ir.BlockID) bool {
	return a.Dom.Dominates(x, y)
}

// TraceWithoutPassing maps each target block to the source block it is
// reachable from along a path avoiding every forbidden block. Targets no
// source reaches are absent from the result.
func (a *Analyzer) TraceWithoutPassing(sources, targets, forbidden []ir.BlockID) map[ir.BlockID]ir.BlockID {
	banned := make(map[ir.BlockID]bool, len(forbidden))
	for _, b := range forbidden {
		banned[b] = true
	}

	origin := make(map[ir.BlockID]ir.BlockID)
	visited := make(map[ir.BlockID]bool)
	var queue []ir.BlockID
	for _, src := range sources {
		origin[src] = src
		visited[src] = true
		queue = append(queue, src)
	}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if banned[cur] {
			continue
		}
		for _, next := range a.Body.Blocks[cur].Terminator.Successors() {
			if visited[next] || banned[next] {
				continue
			}
			origin[next] = origin[cur]
			visited[next] = true
			queue = append(queue, next)
		}
	}

	out := make(map[ir.BlockID]ir.BlockID)
	for _, t := range targets {
		if src, ok := origin[t]; ok {
			out[t] = src
		}
	}
	return out
}

// ReachableWithoutPassing reports whether any target is reachable from any
// source along a path avoiding every forbidden block.
func (a *Analyzer) ReachableWithoutPassing(sources, targets, forbidden []ir.BlockID) bool {
	banned := make(map[ir.BlockID]bool, len(forbidden))
	for _, b := range forbidden {
		banned[b] = true
	}
	want := make(map[ir.BlockID]bool, len(targets))
	for _, t := range targets {
		want[t] = true
	}

	for _, src := range sources {
		if banned[src] {
			continue
		}
		visited := map[ir.BlockID]bool{src: true}
		queue := []ir.BlockID{src}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			if want[cur] {
				return true
			}
			for _, next := range a.Body.Blocks[cur].Terminator.Successors() {
				if visited[next] || banned[next] {
					continue
				}
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}
	return false
}
