package mir

import (
	"strings"

	"github.com/otter-sec/anchor-lints-sub000/analysis/anchor"
	"github.com/otter-sec/anchor-lints-sub000/analysis/ir"
	"github.com/otter-sec/anchor-lints-sub000/analysis/source"
)

// CheckLocalIsParam resolves a local back to a direct function parameter,
// matching first by local identity and then by the parameter name appearing
// at the head of the local's declaration snippet.
func (a *Analyzer) CheckLocalIsParam(local ir.Local) *anchor.ParamInfo {
	resolved := a.ResolveToOriginal(local)
	for i := range a.Params {
		if a.Params[i].Local == resolved {
			return &a.Params[i]
		}
	}

	snippet := source.RemoveComments(a.Src.Snippet(a.Body.LocalSpan(resolved)))
	if snippet == "" {
		return nil
	}
	head, _, _ := strings.Cut(snippet, ".")
	head = strings.TrimSpace(head)
	head = strings.TrimPrefix(head, "&mut ")
	head = strings.TrimPrefix(head, "& ")
	if head == "" {
		return nil
	}
	for i := range a.Params {
		if a.Params[i].Name == head {
			return &a.Params[i]
		}
	}
	return nil
}

// UnsafeAccount is a mutable UncheckedAccount field of the context's
// accounts struct.
type UnsafeAccount struct {
	Name       string
	Span       ir.Span
	Mutable    bool
	IsOption   bool
	HasAddress bool
	// Constraints holds the raw `constraint = ...` expressions on the field.
	Constraints []string
}

// PdaSigner is a context account derived from seeds or pinned to an
// address, i.e. one the program itself can sign for.
type PdaSigner struct {
	Name     string
	Span     ir.Span
	HasSeeds bool
	// Seeds lists the account identifiers referenced by the seeds expression.
	Seeds []string
}

// ExtractUnsafeAccountsAndPDAs scans the context's accounts struct for
// mutable unchecked accounts and for PDA accounts.
func (a *Analyzer) ExtractUnsafeAccountsAndPDAs() ([]UnsafeAccount, []PdaSigner) {
	var unsafeAccounts []UnsafeAccount
	var pdaSigners []PdaSigner
	if a.Context == nil {
		return nil, nil
	}
	for i := range a.Context.Accounts {
		field := &a.Context.Accounts[i]
		cons := field.Constraints

		isOption := anchor.IsOptionUncheckedAccount(field.Type)
		if (anchor.IsUncheckedAccount(field.Type) || isOption) && cons.Mutable {
			unsafeAccounts = append(unsafeAccounts, UnsafeAccount{
				Name:        field.Name,
				Span:        field.Span,
				Mutable:     cons.Mutable,
				IsOption:    isOption,
				HasAddress:  cons.HasAddress,
				Constraints: cons.Raw,
			})
		}

		if cons.IsPDA() {
			pdaSigners = append(pdaSigners, PdaSigner{
				Name:     field.Name,
				Span:     field.Span,
				HasSeeds: cons.HasSeeds,
				Seeds:    cons.SeedAccounts,
			})
		}
	}
	return unsafeAccounts, pdaSigners
}
