package anchor

import (
	"testing"

	"github.com/otter-sec/anchor-lints-sub000/analysis/ir"
)

func accountsProgram() *ir.Program {
	return &ir.Program{
		Crate: "my_program",
		Structs: []*ir.StructDef{{
			Path:           "my_program::Transfer",
			Name:           "Transfer",
			DeriveAccounts: true,
			Fields: []ir.FieldDef{
				{
					Name:         "authority",
					Type:         adt(PathSigner),
					AccountAttrs: []string{"mut"},
				},
				{
					Name:         "vault",
					Type:         adt(PathAccountPrelude, adt("my_program::Vault")),
					AccountAttrs: []string{`mut, seeds = [b"vault", authority.key().as_ref()], bump`},
				},
			},
		}},
	}
}

func handlerBody(paramType *ir.Type) *ir.Body {
	return &ir.Body{
		DefPath:  "my_program::transfer",
		Name:     "transfer",
		ArgCount: 1,
		Locals: []ir.LocalDecl{
			{Type: &ir.Type{Kind: ir.KindUnit}},
			{Type: paramType},
		},
		Params: []ir.Param{{Name: "ctx"}},
	}
}

func TestExtractContext(t *testing.T) {
	prog := accountsProgram()
	body := handlerBody(adt(PathContext, adt("my_program::Transfer")))
	ctx := ExtractContext(prog, body, nil)
	if ctx == nil {
		t.Fatalf("context not extracted")
	}
	if ctx.Name != "ctx" || ctx.ArgLocal != 1 {
		t.Errorf("context head: %+v", ctx)
	}
	if ctx.Struct == nil || ctx.Struct.Name != "Transfer" {
		t.Fatalf("accounts struct not resolved")
	}
	if len(ctx.Accounts) != 2 {
		t.Fatalf("accounts: got %v", ctx.AccountNames())
	}
	vault := ctx.Account("vault")
	if vault == nil || !vault.Constraints.HasSeeds || !vault.Constraints.Mutable {
		t.Errorf("vault constraints not decoded: %+v", vault)
	}
	if ctx.Account("missing") != nil {
		t.Errorf("unknown account should be nil")
	}
}

func TestExtractContextNoContextParam(t *testing.T) {
	prog := accountsProgram()
	body := handlerBody(adt("my_program::Config"))
	if ctx := ExtractContext(prog, body, nil); ctx != nil {
		t.Errorf("plain struct parameter should not extract as a context, got %+v", ctx)
	}
}

func TestExtractBareContext(t *testing.T) {
	prog := accountsProgram()
	body := handlerBody(ref(adt("my_program::Transfer")))
	ctx := ExtractBareContext(prog, body, nil)
	if ctx == nil {
		t.Fatalf("bare accounts struct parameter not extracted")
	}
	if len(ctx.Accounts) != 2 || ctx.Accounts[0].Name != "authority" {
		t.Errorf("accounts: got %v", ctx.AccountNames())
	}
}

func TestExtractParams(t *testing.T) {
	body := &ir.Body{
		DefPath:  "my_program::helper",
		ArgCount: 2,
		Locals: []ir.LocalDecl{
			{Type: &ir.Type{Kind: ir.KindUnit}},
			{Type: ref(adt(PathSigner))},
			{Type: adt("my_program::Config")},
		},
		Params: []ir.Param{{Name: "authority"}, {Name: "config"}},
	}
	params := ExtractParams(body, nil)
	if len(params) != 1 {
		t.Fatalf("params: got %+v", params)
	}
	if params[0].Name != "authority" || params[0].Local != 1 {
		t.Errorf("param head: %+v", params[0])
	}
}
