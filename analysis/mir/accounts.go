package mir

import (
	"strings"

	"github.com/otter-sec/anchor-lints-sub000/analysis/anchor"
	"github.com/otter-sec/anchor-lints-sub000/analysis/ir"
	"github.com/otter-sec/anchor-lints-sub000/analysis/source"
)

// AccountRef names a context account together with the local it was
// identified through.
type AccountRef struct {
	Name  string
	Local ir.Local
}

// SetContext overrides the analyzer's Anchor context, for nested analysis
// where the callee inherits the caller's context.
func (a *Analyzer) SetContext(ctx *anchor.Context) {
	if ctx != nil {
		a.Context = ctx
	}
}

// IsFromCpiContext identifies which context account a local refers to.
// parent, when non-nil, supplies the context of the calling handler so that
// `self.<field>` references inside helper methods resolve against it.
//
// Identification is type-first: when exactly one context account has the
// local's type, that account wins. Otherwise the declaration snippet is
// consulted for a `.accounts.<name>` or `ctx.<name>` mention. AccountInfo
// locals skip the type match entirely since to_account_info erases the
// wrapper type.
func (a *Analyzer) IsFromCpiContext(raw ir.Local, parent *anchor.Context) *AccountRef {
	ctx := parent
	if ctx == nil {
		ctx = a.Context
	}
	if ctx == nil {
		return nil
	}

	local := a.ResolveToOriginal(raw)
	localTy := a.Body.LocalType(local)
	if localTy == nil {
		return nil
	}
	span := a.Body.LocalSpan(local)

	var matching []*anchor.AccountField
	if anchor.IsAccountInfo(localTy) {
		for i := range ctx.Accounts {
			matching = append(matching, &ctx.Accounts[i])
		}
	} else {
		for i := range ctx.Accounts {
			if localTy.Same(ctx.Accounts[i].Type) {
				matching = append(matching, &ctx.Accounts[i])
			}
		}
	}

	if len(matching) == 1 {
		return &AccountRef{Name: matching[0].Name, Local: ctx.ArgLocal}
	}
	if len(matching) == 0 {
		for i := range ctx.Accounts {
			matching = append(matching, &ctx.Accounts[i])
		}
	}

	snippet := source.RemoveComments(a.Src.Snippet(span))
	if snippet == "" {
		return nil
	}
	find := func(name string) *AccountRef {
		for _, f := range matching {
			if f.Name == name {
				return &AccountRef{Name: f.Name, Local: ctx.ArgLocal}
			}
		}
		return nil
	}

	if _, after, found := strings.Cut(snippet, ".accounts."); found {
		name, _, _ := strings.Cut(after, ".")
		return find(strings.TrimSpace(name))
	}
	if strings.HasPrefix(snippet, ctx.Name) {
		rest := strings.TrimPrefix(snippet, ctx.Name)
		parts := strings.Split(rest, ".")
		if len(parts) > 1 {
			return find(strings.TrimSpace(parts[1]))
		}
		return nil
	}
	if parent != nil && (strings.HasPrefix(snippet, "self") || strings.HasPrefix(snippet, "&self")) {
		rest := strings.TrimPrefix(strings.TrimPrefix(snippet, "&"), "self")
		rest = strings.TrimLeft(rest, ". \t\n")
		name := strings.FieldsFunc(rest, func(r rune) bool {
			return r == '.' || r == '\n' || r == ' ' || r == '\t'
		})
		if len(name) > 0 {
			return find(strings.TrimSpace(name[0]))
		}
	}
	return nil
}

// AccountName returns the first context-account reference recovered for a
// local, or nil.
func (a *Analyzer) AccountName(local ir.Local, onlyName bool) *AccountRef {
	refs := a.AccountFromLocal(local, onlyName)
	if len(refs) == 0 {
		return nil
	}
	return &refs[0]
}

// Related reports whether one local derives from the other through the
// direct assignment edges, in either direction.
func (a *Analyzer) Related(l1, l2 ir.Local) bool {
	if l1 == l2 {
		return true
	}
	return a.derives(l1, l2) || a.derives(l2, l1)
}

func (a *Analyzer) derives(from, to ir.Local) bool {
	visited := make(map[ir.Local]bool)
	stack := []ir.Local{from}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[cur] {
			continue
		}
		visited[cur] = true
		if cur == to {
			return true
		}
		stack = append(stack, a.Reverse[cur]...)
	}
	return false
}

// SameAccount reports whether two locals refer to the same context account.
func (a *Analyzer) SameAccount(l1, l2 ir.Local) bool {
	a1 := a.IsFromCpiContext(l1, nil)
	a2 := a.IsFromCpiContext(l2, nil)
	return a1 != nil && a2 != nil && a1.Name == a2.Name
}

// FindCpiAccountsStruct walks backwards from a CpiContext constructor
// argument to the aggregate that built its accounts struct, returning the
// field locals in declaration order.
func (a *Analyzer) FindCpiAccountsStruct(local ir.Local) []ir.Local {
	return a.findAccountsStruct(local, make(map[ir.Local]bool))
}

func (a *Analyzer) findAccountsStruct(local ir.Local, visited map[ir.Local]bool) []ir.Local {
	if fields, ok := a.AggregateFields[local]; ok {
		return fields
	}
	if visited[local] {
		return nil
	}
	visited[local] = true
	for _, src := range a.revSources {
		if !contains(a.Reverse[src], local) {
			continue
		}
		if fields := a.findAccountsStruct(src, visited); fields != nil {
			return fields
		}
	}
	return nil
}

func contains(locals []ir.Local, x ir.Local) bool {
	for _, l := range locals {
		if l == x {
			return true
		}
	}
	return false
}

// CollectAccountsFromAccountInfos resolves an `account_infos` argument of a
// raw invoke call into the context accounts its vec mentions.
func (a *Analyzer) CollectAccountsFromAccountInfos(arg ir.Arg, onlyName bool) []AccountRef {
	local, ok := arg.Operand.AsLocal()
	if !ok {
		return nil
	}
	ty := a.Body.LocalType(local)
	if ty == nil {
		return nil
	}
	if !ty.PathEndsWith("Vec") && ty.Kind != ir.KindSlice && ty.Kind != ir.KindArray {
		return nil
	}
	return a.VecElements(local, make(map[ir.Local]bool), onlyName)
}

// VecElements recovers the elements of a vec! literal bound to local,
// chasing method receivers and the assignment chain when the local's own
// span does not carry the literal.
func (a *Analyzer) VecElements(local ir.Local, visited map[ir.Local]bool, onlyName bool) []AccountRef {
	span := a.Body.LocalSpan(local)
	if span.IsZero() {
		return nil
	}
	if visited[local] {
		if recv, ok := a.MethodReceiver[local]; ok {
			return a.VecElements(recv, visited, onlyName)
		}
		return nil
	}
	visited[local] = true

	snippet := a.Src.ExpandBracketed(span)
	if snippet == "" {
		snippet = a.Src.Snippet(span)
	}
	snippet = source.RemoveComments(snippet)

	var elements []AccountRef
	for _, element := range source.ExtractVecElements(snippet) {
		if name := source.ExtractContextAccount(element, onlyName); name != "" {
			elements = append(elements, AccountRef{Name: name, Local: local})
		}
	}
	if len(elements) > 0 {
		return elements
	}
	resolved := a.ResolveToOriginal(local)
	return a.VecElements(resolved, visited, onlyName)
}

// AccountFromLocal recovers the context-account reference a local denotes,
// trying the local's own declaration snippet, its whole source line, the
// method-receiver chain and finally the assignment chain. A name seen
// without an `accounts.` qualifier is kept as a weak candidate and used only
// when nothing stronger turns up.
func (a *Analyzer) AccountFromLocal(local ir.Local, onlyName bool) []AccountRef {
	var maybe string
	return a.accountFromLocal(local, make(map[ir.Local]bool), onlyName, &maybe)
}

func (a *Analyzer) accountFromLocal(local ir.Local, visited map[ir.Local]bool, onlyName bool, maybe *string) []AccountRef {
	span := a.Body.LocalSpan(local)
	var results []AccountRef

	if snippet := source.RemoveComments(a.Src.Snippet(span)); snippet != "" {
		if strings.Contains(strings.TrimLeft(snippet, " \t"), "vec!") {
			for _, element := range source.ExtractVecElements(snippet) {
				if name := source.ExtractContextAccount(element, onlyName); name != "" {
					results = append(results, AccountRef{Name: name, Local: local})
				}
			}
			return results
		}
		if name := source.ExtractContextAccount(snippet, onlyName); name != "" {
			if strings.Contains(snippet, "accounts.") {
				return []AccountRef{{Name: name, Local: local}}
			}
			*maybe = name
		}
		if line := source.RemoveComments(a.Src.Line(span)); line != "" {
			if name := source.ExtractContextAccount(line, onlyName); name != "" {
				if strings.Contains(line, "accounts.") {
					return []AccountRef{{Name: name, Local: local}}
				}
				*maybe = name
			}
		}
	}

	weak := func() []AccountRef {
		if *maybe != "" && onlyName {
			return []AccountRef{{Name: *maybe, Local: local}}
		}
		return results
	}

	if visited[local] {
		return weak()
	}
	visited[local] = true

	if recv, ok := a.MethodReceiver[local]; ok {
		if found := a.accountFromLocal(recv, visited, onlyName, maybe); len(found) > 0 {
			return found
		}
	}
	for _, src := range a.revSources {
		if !contains(a.TransitiveReverse[src], local) {
			continue
		}
		if found := a.accountFromLocal(src, visited, onlyName, maybe); len(found) > 0 {
			return found
		}
	}
	return weak()
}
