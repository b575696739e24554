package graphutil

import (
	"sort"

	"github.com/yourbasic/graph"

	"github.com/otter-sec/anchor-lints-sub000/analysis/ir"
)

// LocalGraph is a directed graph over MIR locals, used for the provenance
// (reverse-assignment) relation. It implements graph.Iterator.
type LocalGraph struct {
	order int
	edges map[ir.Local][]ir.Local
}

// NewLocalGraph wraps an adjacency map over locals 0..order-1.
func NewLocalGraph(order int, edges map[ir.Local][]ir.Local) LocalGraph {
	return LocalGraph{order: order, edges: edges}
}

// Order implements graph.Iterator.
func (g LocalGraph) Order() int { return g.order }

// Visit implements graph.Iterator.
func (g LocalGraph) Visit(v int, do func(w int, c int64) bool) bool {
	for _, w := range g.edges[ir.Local(v)] {
		if do(int(w), 1) {
			return true
		}
	}
	return false
}

// CycleMembers returns, for every local that participates in a provenance
// cycle, the smallest local of its strongly connected component. Resolution
// queries use this to pick a canonical representative regardless of
// traversal order.
func (g LocalGraph) CycleMembers() map[ir.Local]ir.Local {
	members := map[ir.Local]ir.Local{}
	for _, comp := range graph.StrongComponents(g) {
		if len(comp) < 2 {
			continue
		}
		sort.Ints(comp)
		rep := ir.Local(comp[0])
		for _, v := range comp {
			members[ir.Local(v)] = rep
		}
	}
	return members
}
