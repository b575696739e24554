package mir

import (
	"github.com/otter-sec/anchor-lints-sub000/analysis/ir"
	"github.com/otter-sec/anchor-lints-sub000/internal/funcutil"
	"github.com/otter-sec/anchor-lints-sub000/internal/graphutil"
)

// AssignKind classifies how a local was last assigned.
type AssignKind int

const (
	// AssignConst marks an assignment from a literal or promoted constant.
	AssignConst AssignKind = iota
	// AssignFromPlace marks a plain copy or move out of another place.
	AssignFromPlace
	// AssignRefTo marks taking a reference to another place.
	AssignRefTo
	// AssignOther covers everything else (casts, aggregates, operators).
	AssignOther
)

func (k AssignKind) String() string {
	switch k {
	case AssignConst:
		return "const"
	case AssignFromPlace:
		return "from-place"
	case AssignRefTo:
		return "ref-to"
	}
	return "other"
}

// Assignment records the provenance of one local's value.
type Assignment struct {
	Kind AssignKind
	// Place is the source place for FromPlace and RefTo assignments.
	Place ir.Place
}

// Maps holds the per-body provenance indexes every query runs over.
type Maps struct {
	// Assignment maps each assigned local to how it was assigned. A local
	// assigned more than once keeps the classification of the last
	// assignment in block order.
	Assignment map[ir.Local]Assignment
	// Reverse maps a source local to the locals its value flows into
	// through one assignment.
	Reverse map[ir.Local][]ir.Local
	// TransitiveReverse is the closure of Reverse points-to edges; each
	// slice is sorted.
	TransitiveReverse map[ir.Local][]ir.Local
	// AggregateFields maps a struct-aggregate destination to the locals
	// used as its fields, in declaration order. This is how CPI accounts
	// structs are taken apart.
	AggregateFields map[ir.Local][]ir.Local
	// MethodReceiver maps a call destination to the receiver local of the
	// call, for receiver chains like `ctx.accounts.pool.to_account_info()`.
	MethodReceiver map[ir.Local]ir.Local
}

// BuildMaps indexes a body's assignments.
func BuildMaps(body *ir.Body) Maps {
	m := Maps{
		Assignment:      make(map[ir.Local]Assignment),
		Reverse:         make(map[ir.Local][]ir.Local),
		AggregateFields: make(map[ir.Local][]ir.Local),
		MethodReceiver:  make(map[ir.Local]ir.Local),
	}

	record := func(src ir.Place, dest ir.Local) {
		m.Reverse[src.Local] = append(m.Reverse[src.Local], dest)
	}

	for bi := range body.Blocks {
		block := &body.Blocks[bi]
		for si := range block.Statements {
			stmt := &block.Statements[si]
			if stmt.Kind != ir.StAssign || stmt.Rvalue == nil {
				continue
			}
			dest, ok := stmt.Place.AsLocal()
			if !ok {
				continue
			}
			rv := stmt.Rvalue

			switch rv.Kind {
			case ir.RvUse:
				if rv.Operand.IsConstant() {
					m.Assignment[dest] = Assignment{Kind: AssignConst}
				} else {
					m.Assignment[dest] = Assignment{Kind: AssignFromPlace, Place: rv.Operand.Place}
					record(rv.Operand.Place, dest)
				}
			case ir.RvRef:
				m.Assignment[dest] = Assignment{Kind: AssignRefTo, Place: *rv.Place}
				record(*rv.Place, dest)
			case ir.RvCast:
				m.Assignment[dest] = Assignment{Kind: AssignOther}
				if !rv.Operand.IsConstant() {
					record(rv.Operand.Place, dest)
				}
			case ir.RvCopyForDeref, ir.RvDiscriminant:
				m.Assignment[dest] = Assignment{Kind: AssignOther}
				record(*rv.Place, dest)
			case ir.RvAggregate:
				m.Assignment[dest] = Assignment{Kind: AssignOther}
				for _, op := range rv.Operands {
					if op.IsConstant() {
						continue
					}
					record(op.Place, dest)
					if field, ok := op.AsLocal(); ok {
						m.AggregateFields[dest] = append(m.AggregateFields[dest], field)
					}
				}
			default:
				m.Assignment[dest] = Assignment{Kind: AssignOther}
			}
		}

		term := &block.Terminator
		if term.Kind != ir.TermCall || len(term.Args) == 0 {
			continue
		}
		recv, ok := term.Args[0].Operand.AsLocal()
		if !ok {
			continue
		}
		if dest, ok := term.Destination.AsLocal(); ok {
			m.MethodReceiver[dest] = recv
		}
	}

	m.TransitiveReverse = transitiveClosure(m.Reverse)
	return m
}

// transitiveClosure expands the direct reverse map into its reachability
// closure, BFS order, each slice sorted for determinism.
func transitiveClosure(direct map[ir.Local][]ir.Local) map[ir.Local][]ir.Local {
	closure := make(map[ir.Local][]ir.Local, len(direct))
	for src, dests := range direct {
		visited := make(map[ir.Local]bool)
		queue := append([]ir.Local(nil), dests...)
		for len(queue) > 0 {
			next := queue[0]
			queue = queue[1:]
			if visited[next] {
				continue
			}
			visited[next] = true
			closure[src] = append(closure[src], next)
			queue = append(queue, direct[next]...)
		}
	}
	for src := range closure {
		closure[src] = funcutil.Sorted(closure[src])
	}
	return closure
}

// flowGraph builds the local-to-local flow graph over the direct reverse
// map, sized to the body's local count.
func (m Maps) flowGraph(body *ir.Body) graphutil.LocalGraph {
	return graphutil.NewLocalGraph(len(body.Locals), m.Reverse)
}
