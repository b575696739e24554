// Package pythprice flags Pyth PriceUpdateV2 accounts consumed through
// get_price_no_older_than or raw field access without either a canonical
// feed-address check or monotonic publish-time enforcement. feed_id and
// max_age alone do not pin the price source, so an attacker can supply a
// stale or lagging update account.
package pythprice

import (
	"strings"

	"github.com/otter-sec/anchor-lints-sub000/analysis/anchor"
	"github.com/otter-sec/anchor-lints-sub000/analysis/cpi"
	"github.com/otter-sec/anchor-lints-sub000/analysis/diag"
	"github.com/otter-sec/anchor-lints-sub000/analysis/ir"
	"github.com/otter-sec/anchor-lints-sub000/analysis/mir"
	"github.com/otter-sec/anchor-lints-sub000/analysis/source"
	"github.com/otter-sec/anchor-lints-sub000/internal/funcutil"
)

const Name = "unsafe_pyth_price_account"

type priceAccount struct {
	name string
	span ir.Span
}

type priceUsage struct {
	accountSpan  ir.Span
	getPrice     bool
	fieldAccess  bool
	getPriceSpan ir.Span
}

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

	var accounts []priceAccount
	for _, field := range a.Context.Accounts {
		if !isPriceUpdateV2Account(field.Type) {
			continue
		}
		// A PDA price account already pins the source through derivation.
		if field.Constraints.IsPDA() {
			continue
		}
		accounts = append(accounts, priceAccount{name: field.Name, span: field.Span})
	}
	if len(accounts) == 0 {
		return
	}

	usage := make(map[string]*priceUsage)
	track := func(local ir.Local) *priceUsage {
		ref := a.AccountName(local, false)
		if ref == nil {
			return nil
		}
		for _, acc := range accounts {
			if ref.Name == acc.name || strings.HasSuffix(ref.Name, "."+acc.name) {
				u, ok := usage[acc.name]
				if !ok {
					u = &priceUsage{accountSpan: acc.span}
					usage[acc.name] = u
				}
				return u
			}
		}
		return nil
	}

	for bi := range body.Blocks {
		term := &body.Blocks[bi].Terminator
		if term.Kind != ir.TermCall || len(term.Args) == 0 {
			continue
		}
		recv, ok := term.Args[0].Operand.AsLocal()
		if !ok {
			continue
		}
		switch {
		case cpi.IsPythGetPriceNoOlderThan(&term.Func):
			if u := track(recv); u != nil {
				u.getPrice = true
				u.getPriceSpan = term.Span
			}
		case term.Func.Name == "deref" || term.Func.Name == "deref_mut":
			if u := track(recv); u != nil {
				u.fieldAccess = true
			}
		}
	}

	for _, name := range funcutil.SortedKeys(usage) {
		u := usage[name]
		if !u.getPrice && !u.fieldAccess {
			continue
		}
		if hasPubkeyCheck(a, name) || hasMonotonicPublishTime(a, name) {
			continue
		}
		span := u.getPriceSpan
		if span.IsZero() {
			span = u.accountSpan
		}
		rep.Reportf(Name, span,
			"Pyth PriceUpdateV2 account `%s` is used without canonical source validation or monotonic publish time enforcement. Consider comparing the account's pubkey against a known canonical feed address, or storing and enforcing monotonicity on publish_time",
			name)
	}
}

func isPriceUpdateV2Account(t *ir.Type) bool {
	t = anchor.PeelBox(t)
	if !anchor.IsAccount(t) {
		return false
	}
	return anchor.IsPriceUpdateV2(t.Arg(0))
}

// hasPubkeyCheck looks for an eq or ne call with the price account on either
// side, the shape require_keys_eq! lowers to.
func hasPubkeyCheck(a *mir.Analyzer, account string) bool {
	for bi := range a.Body.Blocks {
		term := &a.Body.Blocks[bi].Terminator
		if term.Kind != ir.TermCall {
			continue
		}
		if term.Func.Name != "eq" && term.Func.Name != "ne" {
			continue
		}
		for _, arg := range term.Args {
			local, ok := arg.Operand.AsLocal()
			if !ok {
				continue
			}
			ref := a.AccountName(local, true)
			if ref != nil && (ref.Name == account || strings.HasPrefix(ref.Name, account+".")) {
				return true
			}
		}
	}
	return false
}

// fieldPath collects the field projections of a place, ignoring derefs and
// stopping at anything else.
func fieldPath(place *ir.Place) []ir.Projection {
	var path []ir.Projection
	for _, proj := range place.Projections {
		switch proj.Kind {
		case ir.ProjDeref:
		case ir.ProjField:
			path = append(path, proj)
		default:
			return path
		}
	}
	return path
}

func pathMatches(path []ir.Projection, names []string, indices []int) bool {
	if len(path) != len(names) {
		return false
	}
	for i, proj := range path {
		if proj.Name != "" {
			if proj.Name != names[i] {
				return false
			}
		} else if proj.Field != indices[i] {
			return false
		}
	}
	return true
}

// isPricePublishTime recognizes `<account>.price_message.publish_time`.
func isPricePublishTime(a *mir.Analyzer, place *ir.Place, account string) bool {
	if !pathMatches(fieldPath(place), []string{"price_message", "publish_time"}, []int{2, 4}) {
		return false
	}
	ref := a.AccountName(place.Local, true)
	if ref == nil || (ref.Name != account && !strings.HasPrefix(ref.Name, account+".")) {
		return false
	}
	return anchor.IsPriceUpdateV2(a.Body.LocalType(place.Local))
}

// isStateLastPublishTime recognizes a field store on a state account held by
// the context, the slot a program would persist the last seen publish time
// into.
func isStateLastPublishTime(a *mir.Analyzer, place *ir.Place) bool {
	path := fieldPath(place)
	if len(path) != 1 {
		return false
	}
	if path[0].Name != "" && path[0].Name != "last_publish_time" && path[0].Field != 0 {
		return false
	}
	base := a.Body.LocalType(place.Local)
	if base == nil || !base.IsAdt() {
		return false
	}
	for _, field := range a.Context.Accounts {
		inner := anchor.PeelBox(field.Type).Arg(0)
		if inner != nil && base.Same(inner.Peel()) {
			return true
		}
	}
	return false
}

func isTracked(a *mir.Analyzer, local ir.Local, tracked map[ir.Local]bool) bool {
	if tracked[local] {
		return true
	}
	for src := range tracked {
		if funcutil.Contains(a.TransitiveReverse[src], local) {
			return true
		}
	}
	return false
}

func isComparisonOp(op string) bool {
	switch op {
	case "Gt", "Lt", "Ge", "Le":
		return true
	}
	return false
}

// hasMonotonicPublishTime requires both a comparison between publish_time
// and a stored state field, and a store of publish_time back into that
// field. One without the other does not prevent replays of an old update.
func hasMonotonicPublishTime(a *mir.Analyzer, account string) bool {
	publishTimeLocals := make(map[ir.Local]bool)
	lastPublishLocals := make(map[ir.Local]bool)
	hasComparison := false
	hasStore := false

	classify := func(op *ir.Operand) (bool, bool) {
		if op.Kind != ir.OpCopy && op.Kind != ir.OpMove {
			return false, false
		}
		if local, ok := op.Place.AsLocal(); ok {
			return isTracked(a, local, publishTimeLocals), isTracked(a, local, lastPublishLocals)
		}
		return isPricePublishTime(a, &op.Place, account), isStateLastPublishTime(a, &op.Place)
	}

	for bi := range a.Body.Blocks {
		for si := range a.Body.Blocks[bi].Statements {
			stmt := &a.Body.Blocks[bi].Statements[si]
			if stmt.Kind != ir.StAssign || stmt.Rvalue == nil {
				continue
			}
			rv := stmt.Rvalue

			if rv.Kind == ir.RvUse && !rv.Operand.IsConstant() {
				src := &rv.Operand.Place
				if dest, ok := stmt.Place.AsLocal(); ok {
					if isPricePublishTime(a, src, account) {
						publishTimeLocals[dest] = true
					}
					if isStateLastPublishTime(a, src) {
						lastPublishLocals[dest] = true
					}
					if srcLocal, ok := src.AsLocal(); ok {
						if isTracked(a, srcLocal, publishTimeLocals) {
							publishTimeLocals[dest] = true
						}
						if isTracked(a, srcLocal, lastPublishLocals) {
							lastPublishLocals[dest] = true
						}
					}
				}
				if srcLocal, ok := src.AsLocal(); ok {
					if isStateLastPublishTime(a, &stmt.Place) && isTracked(a, srcLocal, publishTimeLocals) {
						hasStore = true
					}
				}
			}

			if rv.Kind == ir.RvBinaryOp && isComparisonOp(rv.Op) && rv.Left != nil && rv.Right != nil {
				lPub, lLast := classify(rv.Left)
				rPub, rLast := classify(rv.Right)
				if (lPub && rLast) || (rPub && lLast) {
					hasComparison = true
				}
			}
		}
	}

	return hasComparison && hasStore
}
