package anchor

import (
	"fmt"
	"strings"

	"github.com/otter-sec/anchor-lints-sub000/analysis/ir"
	"github.com/otter-sec/anchor-lints-sub000/analysis/source"
)

// AccountField is one field of a #[derive(Accounts)] struct, with its
// attribute payloads decoded.
type AccountField struct {
	Name        string
	Type        *ir.Type
	Span        ir.Span
	Constraints Constraints
}

// Context describes an instruction handler's Context<T> parameter and the
// accounts struct T it carries.
type Context struct {
	// Name is the parameter's identifier in the handler signature.
	Name string
	// ArgLocal is the MIR local holding the context argument.
	ArgLocal ir.Local
	// Type is the parameter type as written (Context<T> or T itself for
	// helper functions that take the accounts struct directly).
	Type *ir.Type
	// Struct is the accounts struct definition, nil when the program does
	// not contain it.
	Struct   *ir.StructDef
	Accounts []AccountField
}

// Account returns the field with the given name, or nil.
func (c *Context) Account(name string) *AccountField {
	for i := range c.Accounts {
		if c.Accounts[i].Name == name {
			return &c.Accounts[i]
		}
	}
	return nil
}

// AccountNames returns the field names in declaration order.
func (c *Context) AccountNames() []string {
	names := make([]string, len(c.Accounts))
	for i := range c.Accounts {
		names[i] = c.Accounts[i].Name
	}
	return names
}

// accountsTypeOf returns T for a Context<T> type. Lifetime parameters are
// not represented, so the accounts struct is the last type argument.
func accountsTypeOf(t *ir.Type) *ir.Type {
	t = t.Peel()
	if len(t.Args) == 0 {
		return nil
	}
	return t.Args[len(t.Args)-1]
}

// ExtractContext finds the handler's Context<T> parameter and resolves T's
// field list. Returns nil when the function takes no context.
func ExtractContext(prog *ir.Program, body *ir.Body, src *source.Map) *Context {
	for i := 1; i <= body.ArgCount; i++ {
		local := ir.Local(i)
		ty := body.LocalType(local)
		if ty == nil || !IsContextType(ty) {
			continue
		}
		ctx := &Context{
			Name:     paramName(body, src, i-1, local),
			ArgLocal: local,
			Type:     ty,
		}
		if accTy := accountsTypeOf(ty); accTy != nil {
			ctx.Struct = prog.Struct(accTy.AdtPath())
		}
		ctx.Accounts = structAccounts(ctx.Struct)
		return ctx
	}
	return nil
}

// ExtractBareContext handles helper functions that receive the accounts
// struct itself (or a reference to it) instead of a Context.
func ExtractBareContext(prog *ir.Program, body *ir.Body, src *source.Map) *Context {
	for i := 1; i <= body.ArgCount; i++ {
		local := ir.Local(i)
		ty := body.LocalType(local)
		if ty == nil {
			continue
		}
		def := prog.Struct(ty.Peel().AdtPath())
		if def == nil || !def.DeriveAccounts {
			continue
		}
		return &Context{
			Name:     paramName(body, src, i-1, local),
			ArgLocal: local,
			Type:     ty,
			Struct:   def,
			Accounts: structAccounts(def),
		}
	}
	return nil
}

func structAccounts(def *ir.StructDef) []AccountField {
	if def == nil {
		return nil
	}
	fields := make([]AccountField, 0, len(def.Fields))
	for _, f := range def.Fields {
		fields = append(fields, AccountField{
			Name:        f.Name,
			Type:        f.Type,
			Span:        f.Span,
			Constraints: ParseConstraints(f.AccountAttrs),
		})
	}
	return fields
}

// paramName recovers the parameter identifier, falling back to the source
// text and finally to a positional name.
func paramName(body *ir.Body, src *source.Map, index int, local ir.Local) string {
	if index < len(body.Params) && body.Params[index].Name != "" {
		return body.Params[index].Name
	}
	if src != nil {
		snippet := src.Snippet(body.LocalSpan(local))
		if name, _, found := strings.Cut(snippet, ":"); found {
			name = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(name), "mut "))
			if name != "" {
				return name
			}
		}
	}
	return fmt.Sprintf("param_%d", index)
}

// ParamInfo describes a helper-function parameter that is an Anchor account
// wrapper passed outside of a Context.
type ParamInfo struct {
	Index int
	Name  string
	Local ir.Local
	Type  *ir.Type
}

// ExtractParams returns the parameters whose type is a single Anchor account
// wrapper, for analyzing helpers that take accounts directly.
func ExtractParams(body *ir.Body, src *source.Map) []ParamInfo {
	var params []ParamInfo
	for i := 1; i <= body.ArgCount; i++ {
		local := ir.Local(i)
		ty := body.LocalType(local)
		if ty == nil {
			continue
		}
		if !IsAnchorWrapper(ty) && !IsAccountInfo(ty) {
			continue
		}
		params = append(params, ParamInfo{
			Index: i - 1,
			Name:  paramName(body, src, i-1, local),
			Local: local,
			Type:  ty,
		})
	}
	return params
}
