// Package fieldinit flags #[account(init)] handlers that leave fields of the
// freshly created account unassigned. Zeroed leftovers in an authority or
// limit field are a frequent source of logic bugs.
package fieldinit

import (
	"sort"
	"strings"

	"github.com/otter-sec/anchor-lints-sub000/analysis/anchor"
	"github.com/otter-sec/anchor-lints-sub000/analysis/diag"
	"github.com/otter-sec/anchor-lints-sub000/analysis/ir"
	"github.com/otter-sec/anchor-lints-sub000/analysis/mir"
	"github.com/otter-sec/anchor-lints-sub000/analysis/nested"
	"github.com/otter-sec/anchor-lints-sub000/analysis/source"
	"github.com/otter-sec/anchor-lints-sub000/internal/funcutil"
)

const Name = "missing_account_field_init"

// initAccount is one #[account(init)] context field together with the
// account struct it creates.
type initAccount struct {
	name     string
	span     ir.Span
	inner    *ir.Type
	def      *ir.StructDef
	isLoader bool
}

func Run(prog *ir.Program, src *source.Map, rep *diag.Reporter) {
	warned := make(map[string]bool)
	for _, body := range prog.Functions {
		if body.Span.FromExpansion || body.UnsatisfiablePreds {
			continue
		}
		checkFn(prog, body, src, rep, warned)
	}
}

func checkFn(prog *ir.Program, body *ir.Body, src *source.Map, rep *diag.Reporter, warned map[string]bool) {
	a := mir.NewAnalyzer(prog, body, src)
	if a.Context == nil {
		return
	}

	initAccounts := extractInitAccounts(prog, a.Context)
	if len(initAccounts) == 0 {
		return
	}

	state := nested.NewState()
	state.Enter(body.DefPath)
	assigned := collectFieldAssignments(prog, a, src, initAccounts, state, body.Span)

	for _, name := range funcutil.SortedKeys(initAccounts) {
		acc := initAccounts[name]
		if acc.def == nil {
			continue
		}
		if warned[acc.span.String()] {
			continue
		}
		// Fields set through a trait method on a loader are invisible here.
		if acc.isLoader && state.SawTraitMethodAt(body.Span) {
			continue
		}

		var missing []string
		for i := range acc.def.Fields {
			f := &acc.def.Fields[i]
			if shouldIgnoreField(prog, f) {
				continue
			}
			if !assigned[name][f.Name] {
				missing = append(missing, f.Name)
			}
		}
		if len(missing) == 0 {
			continue
		}
		sort.Strings(missing)
		warned[acc.span.String()] = true
		rep.Report(diag.Diagnostic{
			Lint:     Name,
			Span:     acc.span,
			Message:  "account `" + name + "` is initialized but the following fields are never assigned: " + strings.Join(missing, ", "),
			Note:     "In this function",
			NoteSpan: body.Span,
		})
	}
}

// extractInitAccounts finds the #[account(init)] fields of the context and
// resolves each one's inner account struct.
func extractInitAccounts(prog *ir.Program, ctx *anchor.Context) map[string]*initAccount {
	out := make(map[string]*initAccount)
	for i := range ctx.Accounts {
		field := &ctx.Accounts[i]
		if !field.Constraints.Init {
			continue
		}
		wrapper := anchor.PeelBox(field.Type)
		inner := anchor.InnerAccountType(wrapper)
		if inner == nil {
			continue
		}
		// SPL token accounts and mints are laid out by the token program.
		if anchor.IsTokenAccount(inner) || anchor.IsMint(inner) {
			continue
		}
		out[field.Name] = &initAccount{
			name:     field.Name,
			span:     field.Span,
			inner:    inner,
			def:      prog.Struct(inner.AdtPath()),
			isLoader: anchor.IsAccountLoader(wrapper),
		}
	}
	return out
}

// shouldIgnoreField skips fields whose zero value is acceptable: padding and
// reserved slots, and plain numeric state a handler legitimately starts at
// zero. Pubkey-valued fields always count.
func shouldIgnoreField(prog *ir.Program, f *ir.FieldDef) bool {
	n := f.Name
	if strings.HasPrefix(n, "padding") || strings.HasPrefix(n, "reserved") ||
		strings.HasPrefix(n, "_") || n == "0" {
		return true
	}
	return isPrimitive(prog, f.Type, make(map[string]bool))
}

func isPrimitive(prog *ir.Program, ty *ir.Type, seen map[string]bool) bool {
	if ty == nil {
		return false
	}
	ty = ty.Peel()
	switch ty.Kind {
	case ir.KindInt, ir.KindUint, ir.KindBool:
		return true
	case ir.KindArray:
		return isPrimitive(prog, ty.Elem, seen)
	case ir.KindAdt:
		if ty.PathEndsWith("Pubkey") || ty.PathEndsWith("Signer") {
			return false
		}
		path := ty.AdtPath()
		if seen[path] {
			return true
		}
		seen[path] = true
		def := prog.Struct(path)
		if def == nil {
			return false
		}
		for i := range def.Fields {
			if !isPrimitive(prog, def.Fields[i].Type, seen) {
				return false
			}
		}
		return len(def.Fields) > 0
	}
	return false
}
