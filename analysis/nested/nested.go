// Package nested propagates lint analysis into helper functions that a
// handler forwards its context or accounts to.
package nested

import (
	"github.com/otter-sec/anchor-lints-sub000/analysis/anchor"
	"github.com/otter-sec/anchor-lints-sub000/analysis/ir"
	"github.com/otter-sec/anchor-lints-sub000/analysis/mir"
	"github.com/otter-sec/anchor-lints-sub000/analysis/source"
)

// ArgKind says what part of the Anchor context a nested call receives.
type ArgKind int

const (
	// Ctx means the whole Context<T> is forwarded.
	Ctx ArgKind = iota
	// Accounts means the accounts struct is forwarded.
	Accounts
	// Account means individual accounts are forwarded.
	Account
)

// NestedAccount records one forwarded account: its type and the callee-side
// local (parameter) it arrives in.
type NestedAccount struct {
	Type *ir.Type
	// Local is the callee parameter local the account binds to.
	Local ir.Local
}

// Argument is the classification of one nested call's argument list.
type Argument struct {
	Kind ArgKind
	// Accounts maps caller-side account names to callee-side bindings, for
	// Kind == Account.
	Accounts map[string]NestedAccount
}

func operandLocalAndType(a *mir.Analyzer, arg ir.Arg) (ir.Local, *ir.Type, bool) {
	local, ok := arg.Operand.AsLocal()
	if !ok {
		return -1, nil, false
	}
	ty := a.Body.LocalType(local)
	if ty == nil {
		return -1, nil, false
	}
	return local, ty, true
}

func argAccountName(a *mir.Analyzer, arg ir.Arg, fallback string) string {
	snippet := source.RemoveComments(a.Src.Snippet(arg.Span))
	if snippet != "" {
		if name := source.ExtractAccountName(snippet); name != "" {
			return name
		}
	}
	return fallback
}

// ClassifyArgs inspects a call's arguments for the handler's context, its
// accounts struct, or individual context accounts. parent supplies the
// calling handler's context during recursive descent. Returns nil when no
// argument relates to the context.
func ClassifyArgs(a *mir.Analyzer, args []ir.Arg, parent *anchor.Context) *Argument {
	ctx := parent
	if ctx == nil {
		ctx = a.Context
	}
	if ctx == nil {
		return nil
	}

	result := &Argument{Kind: Ctx, Accounts: make(map[string]NestedAccount)}
	found := false

	for i, arg := range args {
		_, ty, ok := operandLocalAndType(a, arg)
		if !ok {
			continue
		}

		if ty.Same(ctx.Type) {
			result.Kind = Ctx
			return result
		}
		if ctx.Struct != nil && ty.PathEndsWith(ctx.Struct.Name) {
			result.Kind = Accounts
			return result
		}
		for fi := range ctx.Accounts {
			field := &ctx.Accounts[fi]
			if !ty.Same(field.Type) && !anchor.IsAccountInfo(ty) {
				continue
			}
			name := argAccountName(a, arg, field.Name)
			if name != "" {
				result.Accounts[name] = NestedAccount{Type: ty, Local: ir.Local(i + 1)}
			}
			result.Kind = Account
			found = true
			break
		}
	}

	if !found {
		return nil
	}
	return result
}

// ClassifyParamArgs inspects a call's arguments for AccountInfo values that
// trace back to the calling function's own parameters, for helpers invoked
// outside any context.
func ClassifyParamArgs(a *mir.Analyzer, args []ir.Arg) *Argument {
	result := &Argument{Kind: Account, Accounts: make(map[string]NestedAccount)}
	found := false

	for i, arg := range args {
		local, ty, ok := operandLocalAndType(a, arg)
		if !ok {
			continue
		}
		if !anchor.IsAccountInfo(ty) {
			continue
		}
		if param := a.CheckLocalIsParam(local); param != nil {
			result.Accounts[param.Name] = NestedAccount{Type: ty, Local: ir.Local(i + 1)}
			found = true
		}
	}

	if !found {
		return nil
	}
	return result
}
