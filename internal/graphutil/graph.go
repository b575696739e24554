// Package graphutil adapts the analysis graphs (control-flow graphs over
// basic blocks, provenance graphs over locals) to the graph libraries used
// across the repository.
package graphutil

import (
	"sort"

	"github.com/yourbasic/graph"
	"gonum.org/v1/gonum/graph/flow"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/otter-sec/anchor-lints-sub000/analysis/ir"
)

// BlockGraph is the control-flow graph of one function body. It implements
// graph.Iterator so the yourbasic/graph traversals apply directly.
type BlockGraph struct {
	body *ir.Body
}

// NewBlockGraph wraps the CFG of body.
func NewBlockGraph(body *ir.Body) BlockGraph {
	return BlockGraph{body: body}
}

// Order implements graph.Iterator.
func (g BlockGraph) Order() int { return len(g.body.Blocks) }

// Visit implements graph.Iterator.
func (g BlockGraph) Visit(v int, do func(w int, c int64) bool) bool {
	if v < 0 || v >= len(g.body.Blocks) {
		return false
	}
	for _, succ := range g.body.Blocks[v].Terminator.Successors() {
		if do(int(succ), 1) {
			return true
		}
	}
	return false
}

// Reachable reports whether block to is reachable from block from.
func (g BlockGraph) Reachable(from, to ir.BlockID) bool {
	if from == to {
		return true
	}
	found := false
	graph.BFS(g, int(from), func(_, w int, _ int64) {
		if ir.BlockID(w) == to {
			found = true
		}
	})
	return found
}

// ReachableSet returns all blocks reachable from the given block, the block
// itself included, in ascending order.
func (g BlockGraph) ReachableSet(from ir.BlockID) []ir.BlockID {
	seen := map[ir.BlockID]bool{from: true}
	graph.BFS(g, int(from), func(_, w int, _ int64) {
		seen[ir.BlockID(w)] = true
	})
	out := make([]ir.BlockID, 0, len(seen))
	for b := range seen {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Dominators is the dominator tree of a CFG rooted at block 0.
type Dominators struct {
	tree flow.DominatorTree
	n    int
}

// NewDominators builds the dominator tree for body.
func NewDominators(body *ir.Body) Dominators {
	if len(body.Blocks) == 0 {
		return Dominators{n: 0}
	}
	g := simple.NewDirectedGraph()
	for i := range body.Blocks {
		g.AddNode(simple.Node(i))
	}
	for i := range body.Blocks {
		for _, succ := range body.Blocks[i].Terminator.Successors() {
			// A self-edge never affects dominance and simple graphs
			// reject it.
			if int(succ) == i {
				continue
			}
			g.SetEdge(g.NewEdge(simple.Node(i), simple.Node(int(succ))))
		}
	}
	return Dominators{tree: flow.Dominators(simple.Node(0), g), n: len(body.Blocks)}
}

// Dominates reports whether block a dominates block b.
func (d Dominators) Dominates(a, b ir.BlockID) bool {
	if a == b {
		return true
	}
	if int(a) >= d.n || int(b) >= d.n {
		return false
	}
	for n := d.tree.DominatorOf(int64(b)); n != nil; n = d.tree.DominatorOf(n.ID()) {
		if n.ID() == int64(a) {
			return true
		}
		if n.ID() == 0 {
			break
		}
	}
	return false
}
