package cpi

import (
	"testing"

	"github.com/otter-sec/anchor-lints-sub000/analysis/ir"
)

func fn(path, name string) *ir.FuncRef {
	return &ir.FuncRef{Path: path, Name: name}
}

func TestIsInvokeFn(t *testing.T) {
	yes := []*ir.FuncRef{
		fn("anchor_lang::solana_program::program::invoke", "invoke"),
		fn("solana_invoke::invoke_signed", "invoke_signed"),
		fn("anchor_lang::solana_program::program::invoke_unchecked", "invoke_unchecked"),
	}
	for _, f := range yes {
		if !IsInvokeFn(f) {
			t.Errorf("IsInvokeFn should accept %s", f.Path)
		}
	}
	if IsInvokeFn(fn("my_program::invoke", "invoke")) {
		t.Errorf("a user function named invoke should not match")
	}
}

func TestCpiContextConstructors(t *testing.T) {
	newFn := fn("anchor_lang::context::CpiContext::new", "new")
	signerFn := fn("anchor_lang::context::CpiContext::new_with_signer", "new_with_signer")
	remFn := fn("anchor_lang::context::CpiContext::with_remaining_accounts", "with_remaining_accounts")
	if !IsCpiContextNew(newFn) || IsCpiContextNew(signerFn) {
		t.Errorf("IsCpiContextNew misclassified")
	}
	if !IsNewWithSigner(signerFn) || IsNewWithSigner(newFn) {
		t.Errorf("IsNewWithSigner misclassified")
	}
	if !IsWithRemainingAccountsFn(remFn) {
		t.Errorf("with_remaining_accounts not recognized")
	}
	if IsNewWithSigner(fn("my_program::Thing::new_with_signer", "new_with_signer")) {
		t.Errorf("non-CpiContext new_with_signer should not match")
	}
}

func TestAccessorPredicates(t *testing.T) {
	if !IsReloadFn(fn("anchor_lang::accounts::account::Account::reload", "reload")) {
		t.Errorf("Account::reload not recognized")
	}
	if !IsToAccountInfoFn(fn("anchor_lang::prelude::ToAccountInfo::to_account_info", "to_account_info")) {
		t.Errorf("to_account_info not recognized")
	}
	if !IsKeyFn(fn("anchor_lang::Key::key", "key")) {
		t.Errorf("key accessor not recognized")
	}
	if !IsBorrowFn(fn("core::cell::RefCell::borrow_mut", "borrow_mut")) {
		t.Errorf("borrow_mut not recognized")
	}
	if !IsDeserializeFn(fn("anchor_lang::AccountDeserialize::try_deserialize", "try_deserialize")) {
		t.Errorf("deserialize entry point not recognized")
	}
}

func TestSystemAndTokenHelpers(t *testing.T) {
	if !IsSystemLamportCPI(fn("anchor_lang::system_program::transfer", "transfer")) {
		t.Errorf("system transfer not recognized")
	}
	if IsSystemLamportCPI(fn("anchor_spl::token::transfer", "transfer")) {
		t.Errorf("spl transfer is not a system lamport CPI")
	}
	if !IsSafeTokenInterfaceCPI(fn("anchor_spl::token_interface::get_account_data_size", "get_account_data_size")) {
		t.Errorf("read-only token query not recognized")
	}
	if !IsPythGetPriceNoOlderThan(fn("pyth_solana_receiver_sdk::price_update::PriceUpdateV2::get_price_no_older_than", "get_price_no_older_than")) {
		t.Errorf("pyth getter not recognized")
	}
}

func TestDetect(t *testing.T) {
	cases := []struct {
		path string
		kind Kind
	}{
		{"anchor_spl::token::transfer", Transfer},
		{"anchor_spl::token::Transfer", TransferStruct},
		{"anchor_lang::system_program::transfer", SystemTransfer},
		{"anchor_spl::token::set_authority", SetAuthority},
		{"anchor_spl::token_2022::spl_token_2022::instruction::transfer_checked", Token2022TransferChecked},
		{"my_program::transfer", Unknown},
	}
	for _, c := range cases {
		if got := Detect(c.path); got != c.kind {
			t.Errorf("Detect(%s): got %v, want %v", c.path, got, c.kind)
		}
	}
}

func TestStructKind(t *testing.T) {
	if Transfer.StructKind() != TransferStruct {
		t.Errorf("Transfer struct kind wrong")
	}
	if SystemTransfer.StructKind() != SystemTransferStruct {
		t.Errorf("SystemTransfer struct kind wrong")
	}
}

func TestSignerRule(t *testing.T) {
	r := SignerRule(SystemTransfer)
	if r == nil || r.Source != ContextSigner || r.Field != "from" {
		t.Errorf("system transfer signer rule: %+v", r)
	}
	r = SignerRule(Token2022TransferChecked)
	if r == nil || r.Source != ArgIndex || r.Arg != 4 {
		t.Errorf("token-2022 transfer_checked signer rule: %+v", r)
	}
	if SignerRule(Unknown) != nil {
		t.Errorf("unknown kind should have no rule")
	}
}
