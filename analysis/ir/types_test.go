package ir

import "testing"

func adt(path string, args ...*Type) *Type {
	return &Type{Kind: KindAdt, Path: path, Args: args}
}

func ref(t *Type) *Type {
	return &Type{Kind: KindRef, Elem: t}
}

func TestPeel(t *testing.T) {
	inner := adt("anchor_lang::prelude::Signer")
	if got := ref(ref(inner)).Peel(); got != inner {
		t.Errorf("Peel should strip nested references")
	}
	var nilType *Type
	if nilType.Peel() != nil {
		t.Errorf("Peel on nil should stay nil")
	}
}

func TestTypeQueries(t *testing.T) {
	acc := ref(adt("anchor_lang::prelude::Account", adt("my_program::Pool")))
	if !acc.IsAdt() {
		t.Errorf("peeled ADT should report IsAdt")
	}
	if got := acc.AdtPath(); got != "anchor_lang::prelude::Account" {
		t.Errorf("AdtPath: got %q", got)
	}
	if arg := acc.Arg(0); arg == nil || arg.Path != "my_program::Pool" {
		t.Errorf("Arg(0): got %v", arg)
	}
	if acc.Arg(3) != nil {
		t.Errorf("out-of-range Arg should be nil")
	}
	if !acc.PathEndsWith("prelude::Account") || !acc.PathEndsWith("Account") {
		t.Errorf("PathEndsWith should match on :: boundaries")
	}
	if acc.PathEndsWith("ccount") {
		t.Errorf("PathEndsWith should not match inside a segment")
	}
	if !acc.PathContains("::prelude::") {
		t.Errorf("PathContains failed")
	}
}

func TestTypeSame(t *testing.T) {
	a := adt("anchor_lang::prelude::Account", adt("my_program::Pool"))
	b := ref(adt("anchor_lang::prelude::Account", adt("my_program::Vault")))
	if !a.Same(b) {
		t.Errorf("ADTs with the same path should be the same type")
	}
	if a.Same(adt("anchor_lang::prelude::Signer")) {
		t.Errorf("distinct ADT paths should differ")
	}
	s1 := &Type{Kind: KindSlice, Elem: adt("solana_program::account_info::AccountInfo")}
	s2 := &Type{Kind: KindSlice, Elem: adt("solana_program::account_info::AccountInfo")}
	if !s1.Same(s2) {
		t.Errorf("slices compare by element type")
	}
}

func TestTypeString(t *testing.T) {
	acc := adt("Account", adt("Pool"))
	if got := acc.String(); got != "Account<Pool>" {
		t.Errorf("String: got %q", got)
	}
	sl := &Type{Kind: KindSlice, Elem: adt("AccountInfo")}
	if got := sl.String(); got != "[AccountInfo]" {
		t.Errorf("slice String: got %q", got)
	}
}
