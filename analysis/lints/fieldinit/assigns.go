package fieldinit

import (
	"strings"

	"github.com/otter-sec/anchor-lints-sub000/analysis/anchor"
	"github.com/otter-sec/anchor-lints-sub000/analysis/cpi"
	"github.com/otter-sec/anchor-lints-sub000/analysis/ir"
	"github.com/otter-sec/anchor-lints-sub000/analysis/mir"
	"github.com/otter-sec/anchor-lints-sub000/analysis/nested"
	"github.com/otter-sec/anchor-lints-sub000/analysis/source"
)

// collectFieldAssignments gathers, per init account, every field the
// function body assigns, directly or through set_inner, a full struct
// write, or a same-crate helper call.
func collectFieldAssignments(prog *ir.Program, a *mir.Analyzer, src *source.Map,
	initAccounts map[string]*initAccount, state *nested.State, parentSpan ir.Span) map[string]map[string]bool {

	result := make(map[string]map[string]bool)
	mark := func(account, field string) {
		if result[account] == nil {
			result[account] = make(map[string]bool)
		}
		result[account][field] = true
	}
	markAll := func(acc *initAccount) {
		if acc.def == nil {
			return
		}
		for i := range acc.def.Fields {
			f := &acc.def.Fields[i]
			if !shouldIgnoreField(prog, f) {
				mark(acc.name, f.Name)
			}
		}
	}

	aliases := buildAliasMap(a, initAccounts)
	for _, name := range structLiteralFullAssignments(prog, a, initAccounts) {
		markAll(initAccounts[name])
	}

	for bi := range a.Body.Blocks {
		block := &a.Body.Blocks[bi]
		for si := range block.Statements {
			stmt := &block.Statements[si]
			if stmt.Kind != ir.StAssign || stmt.Rvalue == nil {
				continue
			}

			// *account = Struct { .. } or *account = Struct::new(..)
			if name, ok := fullStructAssignment(a, stmt, aliases, initAccounts); ok {
				markAll(initAccounts[name])
				continue
			}

			baseLocal, fieldName, ok := fieldWrite(prog, a, stmt)
			if !ok {
				continue
			}
			name, ok := resolveBaseName(a, src, baseLocal, aliases, initAccounts, nil)
			if !ok {
				continue
			}
			if _, isInit := initAccounts[name]; isInit {
				mark(name, fieldName)
			}
		}

		term := &block.Terminator
		if term.Kind != ir.TermCall {
			continue
		}
		fn := &term.Func

		if cpi.IsSetInnerFn(fn) {
			if acc := setInnerAccount(a, term.Args, initAccounts); acc != nil {
				markAll(acc)
			}
			continue
		}

		callee := prog.Function(fn.Path)
		if callee == nil {
			continue
		}
		if callee.TraitMethod {
			state.NoteTraitMethod(parentSpan)
			continue
		}
		passed := passedInitAccount(a, term.Args, initAccounts)
		for name, fields := range analyzeNestedInit(prog, callee, src, initAccounts, passed, state, parentSpan) {
			if _, isInit := initAccounts[name]; !isInit {
				continue
			}
			for field := range fields {
				mark(name, field)
			}
		}
	}

	return result
}

// buildAliasMap tracks locals bound to ctx.accounts.<name> through field
// projections of the context parameter.
func buildAliasMap(a *mir.Analyzer, initAccounts map[string]*initAccount) map[ir.Local]string {
	aliases := make(map[ir.Local]string)
	if a.Context == nil || a.Context.Struct == nil {
		return aliases
	}
	fieldNames := make(map[int]string, len(a.Context.Struct.Fields))
	for i := range a.Context.Struct.Fields {
		fieldNames[i] = a.Context.Struct.Fields[i].Name
	}

	for bi := range a.Body.Blocks {
		for si := range a.Body.Blocks[bi].Statements {
			stmt := &a.Body.Blocks[bi].Statements[si]
			if stmt.Kind != ir.StAssign || stmt.Rvalue == nil {
				continue
			}
			lhs, ok := stmt.Place.AsLocal()
			if !ok {
				continue
			}
			var rhs *ir.Place
			switch stmt.Rvalue.Kind {
			case ir.RvUse:
				if stmt.Rvalue.Operand != nil && !stmt.Rvalue.Operand.IsConstant() {
					rhs = &stmt.Rvalue.Operand.Place
				}
			case ir.RvRef:
				rhs = stmt.Rvalue.Place
			}
			if rhs == nil {
				continue
			}
			for _, proj := range rhs.Projections {
				if proj.Kind != ir.ProjField {
					continue
				}
				name := proj.Name
				if name == "" {
					name = fieldNames[proj.Field]
				}
				if _, isInit := initAccounts[name]; isInit {
					aliases[lhs] = name
					break
				}
			}
		}
	}
	return aliases
}

// fieldWrite recognizes `<base>.<field> = ...` places: only derefs before a
// single trailing field projection.
func fieldWrite(prog *ir.Program, a *mir.Analyzer, stmt *ir.Statement) (ir.Local, string, bool) {
	var field *ir.Projection
	for i := range stmt.Place.Projections {
		proj := &stmt.Place.Projections[i]
		switch proj.Kind {
		case ir.ProjDeref:
		case ir.ProjField:
			field = proj
		default:
			return 0, "", false
		}
	}
	if field == nil {
		return 0, "", false
	}
	if field.Name != "" {
		return stmt.Place.Local, field.Name, true
	}
	baseTy := a.Body.LocalType(stmt.Place.Local)
	if baseTy == nil {
		return 0, "", false
	}
	if inner := anchor.InnerAccountType(anchor.PeelBox(baseTy)); inner != nil {
		baseTy = inner
	}
	def := prog.Struct(baseTy.AdtPath())
	if def == nil || field.Field >= len(def.Fields) {
		return 0, "", false
	}
	return stmt.Place.Local, def.Fields[field.Field].Name, true
}

// fullStructAssignment recognizes `*account = ...` writes of a whole struct
// value, either a literal or a constructor result.
func fullStructAssignment(a *mir.Analyzer, stmt *ir.Statement,
	aliases map[ir.Local]string, initAccounts map[string]*initAccount) (string, bool) {

	hasDeref := false
	for _, proj := range stmt.Place.Projections {
		switch proj.Kind {
		case ir.ProjDeref:
			hasDeref = true
		case ir.ProjField:
			return "", false
		}
	}
	if !hasDeref {
		return "", false
	}

	wholeStruct := false
	switch stmt.Rvalue.Kind {
	case ir.RvAggregate:
		wholeStruct = true
	case ir.RvUse:
		if local, ok := stmt.Rvalue.Operand.AsLocal(); ok {
			wholeStruct = fromConstructorCall(a, local)
		}
	}
	if !wholeStruct {
		return "", false
	}

	name, ok := resolveBaseName(a, nil, stmt.Place.Local, aliases, initAccounts, nil)
	if !ok {
		return "", false
	}
	_, isInit := initAccounts[name]
	return name, isInit
}

func fromConstructorCall(a *mir.Analyzer, local ir.Local) bool {
	for bi := range a.Body.Blocks {
		term := &a.Body.Blocks[bi].Terminator
		if term.Kind != ir.TermCall {
			continue
		}
		if dest, ok := term.Destination.AsLocal(); ok && dest == local {
			if cpi.IsConstructorLike(&term.Func) {
				return true
			}
		}
	}
	return false
}

// structLiteralFullAssignments finds aggregate literals of an init account's
// inner type that cover every checked field and are subsequently consumed.
func structLiteralFullAssignments(prog *ir.Program, a *mir.Analyzer, initAccounts map[string]*initAccount) []string {
	type literal struct {
		local  ir.Local
		ty     *ir.Type
		fields int
	}
	var literals []literal
	for bi := range a.Body.Blocks {
		for si := range a.Body.Blocks[bi].Statements {
			stmt := &a.Body.Blocks[bi].Statements[si]
			if stmt.Kind != ir.StAssign || stmt.Rvalue == nil || stmt.Rvalue.Kind != ir.RvAggregate {
				continue
			}
			lhs, ok := stmt.Place.AsLocal()
			if !ok || stmt.Rvalue.Adt == "" {
				continue
			}
			literals = append(literals, literal{
				local:  lhs,
				ty:     a.Body.LocalType(lhs),
				fields: len(stmt.Rvalue.Operands),
			})
		}
	}
	if len(literals) == 0 {
		return nil
	}

	var full []string
	for name, acc := range initAccounts {
		if acc.def == nil {
			continue
		}
		for _, lit := range literals {
			if lit.ty == nil || !lit.ty.Same(acc.inner) {
				continue
			}
			if !literalCoversFields(prog, acc, lit.fields) {
				continue
			}
			if literalConsumed(a, lit.local) {
				full = append(full, name)
				break
			}
		}
	}
	return full
}

func literalCoversFields(prog *ir.Program, acc *initAccount, present int) bool {
	for i := range acc.def.Fields {
		f := &acc.def.Fields[i]
		if shouldIgnoreField(prog, f) {
			continue
		}
		if i >= present {
			return false
		}
	}
	return true
}

func literalConsumed(a *mir.Analyzer, local ir.Local) bool {
	for bi := range a.Body.Blocks {
		for si := range a.Body.Blocks[bi].Statements {
			stmt := &a.Body.Blocks[bi].Statements[si]
			if stmt.Kind != ir.StAssign || stmt.Rvalue == nil || stmt.Rvalue.Kind != ir.RvUse {
				continue
			}
			if src, ok := stmt.Rvalue.Operand.PlaceLocal(); ok && src == local {
				return true
			}
		}
	}
	return false
}

func setInnerAccount(a *mir.Analyzer, args []ir.Arg, initAccounts map[string]*initAccount) *initAccount {
	if len(args) == 0 {
		return nil
	}
	local, ok := args[0].Operand.AsLocal()
	if !ok {
		return nil
	}
	refs := a.AccountFromLocal(local, true)
	if len(refs) == 0 {
		return nil
	}
	name, _, _ := strings.Cut(refs[0].Name, ".")
	return initAccounts[name]
}

// resolveBaseName maps the base local of a field write back to the context
// account it aliases.
func resolveBaseName(a *mir.Analyzer, src *source.Map, local ir.Local,
	aliases map[ir.Local]string, initAccounts map[string]*initAccount,
	visited map[ir.Local]bool) (string, bool) {

	if visited == nil {
		visited = make(map[ir.Local]bool)
	}
	if visited[local] {
		return "", false
	}
	visited[local] = true

	if name, ok := aliases[local]; ok {
		return name, true
	}
	if recv, ok := a.MethodReceiver[local]; ok {
		if name, ok := aliases[recv]; ok {
			return name, true
		}
	}
	if src != nil && a.Context != nil {
		if name, ok := snippetAccountName(a, src, local, initAccounts); ok {
			return name, true
		}
	}

	// Chase the defining assignment of a deref temporary.
	if asg, ok := a.Assignment[local]; ok {
		switch asg.Kind {
		case mir.AssignFromPlace, mir.AssignRefTo:
			if name, ok := resolveBaseName(a, src, asg.Place.Local, aliases, initAccounts, visited); ok {
				return name, true
			}
		}
	}
	if recv, ok := a.MethodReceiver[local]; ok {
		if name, ok := resolveBaseName(a, src, recv, aliases, initAccounts, visited); ok {
			return name, true
		}
	}

	// Last resort: a unique init account of the local's inner type.
	ty := a.Body.LocalType(local)
	if ty == nil {
		return "", false
	}
	if inner := anchor.InnerAccountType(anchor.PeelBox(ty)); inner != nil {
		ty = inner
	}
	var match string
	for name, acc := range initAccounts {
		if acc.inner.Same(ty) {
			if match != "" {
				return "", false
			}
			match = name
		}
	}
	return match, match != ""
}

func snippetAccountName(a *mir.Analyzer, src *source.Map, local ir.Local,
	initAccounts map[string]*initAccount) (string, bool) {

	decl := a.Body.LocalDecl(local)
	if decl == nil {
		return "", false
	}
	snippet := source.RemoveComments(src.Snippet(decl.Span))
	snippet = strings.TrimPrefix(snippet, "&mut ")
	snippet = strings.TrimPrefix(snippet, "& ")
	parts := strings.Split(snippet, ".")
	if len(parts) >= 3 && parts[0] == a.Context.Name && parts[1] == "accounts" {
		name := identPrefix(parts[2])
		if _, ok := initAccounts[name]; ok {
			return name, true
		}
	}
	if len(parts) == 2 && parts[0] == a.Context.Name {
		if name := identPrefix(parts[1]); name != "" {
			if _, ok := initAccounts[name]; ok {
				return name, true
			}
		}
	}
	return "", false
}

func identPrefix(s string) string {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' {
			continue
		}
		return s[:i]
	}
	return s
}
