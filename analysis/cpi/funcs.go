package cpi

import (
	"strings"

	"github.com/otter-sec/anchor-lints-sub000/analysis/ir"
)

func pathIsAny(path string, candidates ...string) bool {
	for _, c := range candidates {
		if path == c || strings.HasSuffix(path, "::"+c) {
			return true
		}
	}
	return false
}

// IsInvokeFn reports whether the call target is one of the raw Solana
// invoke entry points.
func IsInvokeFn(f *ir.FuncRef) bool {
	return pathIsAny(f.Path,
		"anchor_lang::solana_program::program::invoke",
		"solana_invoke::invoke",
		"anchor_lang::solana_program::program::invoke_unchecked",
		"solana_invoke::invoke_unchecked",
		"anchor_lang::solana_program::program::invoke_signed",
		"solana_invoke::invoke_signed",
		"anchor_lang::solana_program::program::invoke_signed_unchecked",
		"solana_invoke::invoke_signed_unchecked",
	)
}

// IsSystemLamportCPI reports whether the call target is a system-program
// helper that only moves or assigns lamports.
func IsSystemLamportCPI(f *ir.FuncRef) bool {
	return pathIsAny(f.Path,
		"anchor_lang::system_program::transfer",
		"anchor_lang::system_program::assign",
		"anchor_lang::system_program::allocate",
		"anchor_lang::system_program::create_account",
	)
}

// IsSafeTokenInterfaceCPI reports whether the call target is a read-only
// token-interface query that cannot mutate account state.
func IsSafeTokenInterfaceCPI(f *ir.FuncRef) bool {
	return pathIsAny(f.Path,
		"anchor_spl::token_2022::get_account_data_size",
		"anchor_spl::token_interface::get_account_data_size",
		"anchor_spl::token_interface::get_extension_data",
		"anchor_spl::token_interface::get_account_len",
		"anchor_spl::token_interface::get_mint_len",
	)
}

// IsNewWithSigner reports whether the call constructs a CpiContext with PDA
// signer seeds.
func IsNewWithSigner(f *ir.FuncRef) bool {
	return f.Name == "new_with_signer" && strings.Contains(f.Path, "CpiContext")
}

// IsCpiContextNew reports whether the call constructs a plain CpiContext.
func IsCpiContextNew(f *ir.FuncRef) bool {
	return f.Name == "new" && strings.Contains(f.Path, "CpiContext")
}

// IsWithRemainingAccountsFn matches CpiContext::with_remaining_accounts.
func IsWithRemainingAccountsFn(f *ir.FuncRef) bool {
	return pathIsAny(f.Path,
		"anchor_lang::context::CpiContext::with_remaining_accounts",
		"anchor_lang::prelude::CpiContext::with_remaining_accounts",
	)
}

// IsReloadFn matches Account::reload.
func IsReloadFn(f *ir.FuncRef) bool {
	return pathIsAny(f.Path, "anchor_lang::accounts::account::Account::reload") ||
		(f.Name == "reload" && strings.Contains(f.Path, "Account"))
}

// IsSetInnerFn matches Account::set_inner.
func IsSetInnerFn(f *ir.FuncRef) bool {
	return pathIsAny(f.Path,
		"anchor_lang::prelude::Account::set_inner",
		"anchor_lang::accounts::account::Account::set_inner",
	)
}

// IsToAccountInfoFn matches ToAccountInfo::to_account_info.
func IsToAccountInfoFn(f *ir.FuncRef) bool {
	return pathIsAny(f.Path,
		"anchor_lang::ToAccountInfo::to_account_info",
		"anchor_lang::prelude::ToAccountInfo::to_account_info",
	) || f.Name == "to_account_info"
}

// IsKeyFn matches the Key::key accessor.
func IsKeyFn(f *ir.FuncRef) bool {
	return pathIsAny(f.Path,
		"anchor_lang::prelude::Key::key",
		"anchor_lang::Key::key",
	) || f.Name == "key"
}

// IsBorrowFn matches RefCell-style borrow accessors.
func IsBorrowFn(f *ir.FuncRef) bool {
	return f.Name == "borrow" || f.Name == "borrow_mut"
}

// IsDeserializeFn matches any deserialization entry point.
func IsDeserializeFn(f *ir.FuncRef) bool {
	return strings.Contains(f.Name, "deserialize")
}

// IsConstructorLike matches functions named new*.
func IsConstructorLike(f *ir.FuncRef) bool {
	return strings.HasPrefix(f.Name, "new")
}

// IsCpiBuilderConstructor matches generated CPI builder entry points, such
// as those produced by Metaplex client crates.
func IsCpiBuilderConstructor(f *ir.FuncRef) bool {
	for _, marker := range []string{
		"CpiBuilder", "DelegateStaking", "LockV1", "UnlockV1", "RevokeStaking",
	} {
		if strings.Contains(f.Path, marker) {
			return true
		}
	}
	return false
}

// IsPythGetPriceNoOlderThan matches the Pyth staleness-checked price getter.
func IsPythGetPriceNoOlderThan(f *ir.FuncRef) bool {
	return pathIsAny(f.Path,
		"pyth_solana_receiver_sdk::price_update::PriceUpdateV2::get_price_no_older_than")
}
