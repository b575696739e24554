// Package anchor recognizes the Anchor, SPL and Pyth types and attributes a
// program declares: account wrapper types by canonical path, #[account(...)]
// constraint payloads, and the Context<T> accounts struct of an instruction.
package anchor

import (
	"strings"

	"github.com/otter-sec/anchor-lints-sub000/analysis/ir"
)

// Canonical paths of the framework types the analyses match on. Diagnostic
// items are not available outside the compiler, so path identity is the only
// route; the driver exports def paths verbatim.
const (
	PathContext          = "anchor_lang::context::Context"
	PathContextPrelude   = "anchor_lang::prelude::Context"
	PathCpiContext       = "anchor_lang::context::CpiContext"
	PathAccount          = "anchor_lang::accounts::account::Account"
	PathAccountPrelude   = "anchor_lang::prelude::Account"
	PathAccountLoader    = "anchor_lang::prelude::AccountLoader"
	PathInterfaceAccount = "anchor_lang::prelude::InterfaceAccount"
	PathSigner           = "anchor_lang::prelude::Signer"
	PathSystemAccount    = "anchor_lang::prelude::SystemAccount"
	PathUncheckedAccount = "anchor_lang::prelude::UncheckedAccount"
	PathAccountInfo      = "solana_program::account_info::AccountInfo"
	PathPubkey           = "solana_program::pubkey::Pubkey"
	PathInstruction      = "solana_program::instruction::Instruction"
	PathTokenAccount     = "anchor_spl::token::TokenAccount"
	PathMint             = "anchor_spl::token::Mint"
	PathPriceUpdateV2    = "pyth_solana_receiver_sdk::price_update::PriceUpdateV2"
	PathOption           = "core::option::Option"
	PathOptionStd        = "std::option::Option"
	PathBox              = "alloc::boxed::Box"
	PathBoxStd           = "std::boxed::Box"
)

// PeelBox removes references and Box wrappers, recursively.
func PeelBox(t *ir.Type) *ir.Type {
	t = t.Peel()
	for t != nil && (t.AdtPath() == PathBox || t.AdtPath() == PathBoxStd) {
		t = t.Arg(0).Peel()
	}
	return t
}

// IsBox reports whether the peeled type is a Box.
func IsBox(t *ir.Type) bool {
	p := t.AdtPath()
	return p == PathBox || p == PathBoxStd
}

// IsContextType reports whether the type is the Anchor Context<T> wrapper.
func IsContextType(t *ir.Type) bool {
	return t.PathEndsWith(PathContext) || t.PathEndsWith(PathContextPrelude)
}

// IsCpiContext reports whether the type is anchor_lang::context::CpiContext.
func IsCpiContext(t *ir.Type) bool {
	return PeelBox(t).PathEndsWith("CpiContext")
}

// IsAccount reports whether the type is Account<T>.
func IsAccount(t *ir.Type) bool {
	t = PeelBox(t)
	return t.PathEndsWith(PathAccount) || t.PathEndsWith(PathAccountPrelude)
}

// InnerAccountType returns the T of Account<T>, or nil.
func InnerAccountType(t *ir.Type) *ir.Type {
	if !IsAccount(t) {
		return nil
	}
	return PeelBox(t).Arg(0)
}

// IsAccountLoader reports whether the type is AccountLoader<T>.
func IsAccountLoader(t *ir.Type) bool {
	return PeelBox(t).PathEndsWith("AccountLoader")
}

// InnerLoaderType returns the T of AccountLoader<T>, or nil.
func InnerLoaderType(t *ir.Type) *ir.Type {
	if !IsAccountLoader(t) {
		return nil
	}
	return PeelBox(t).Arg(0)
}

// IsInterfaceAccount reports whether the type is InterfaceAccount<T>.
func IsInterfaceAccount(t *ir.Type) bool {
	return PeelBox(t).PathEndsWith("InterfaceAccount")
}

// IsSigner reports whether the type is Signer<'info>.
func IsSigner(t *ir.Type) bool {
	return PeelBox(t).AdtPath() == PathSigner
}

// IsSystemAccount reports whether the type is SystemAccount<'info>.
func IsSystemAccount(t *ir.Type) bool {
	return PeelBox(t).AdtPath() == PathSystemAccount
}

// IsUncheckedAccount reports whether the type is UncheckedAccount<'info>.
func IsUncheckedAccount(t *ir.Type) bool {
	return PeelBox(t).AdtPath() == PathUncheckedAccount
}

// IsOptionUncheckedAccount reports whether the type is
// Option<UncheckedAccount>.
func IsOptionUncheckedAccount(t *ir.Type) bool {
	t = t.Peel()
	p := t.AdtPath()
	if p != PathOption && p != PathOptionStd {
		return false
	}
	return IsUncheckedAccount(t.Arg(0))
}

// IsAccountInfo reports whether the type is the raw AccountInfo, via either
// its solana_program path or an anchor_lang re-export.
func IsAccountInfo(t *ir.Type) bool {
	t = PeelBox(t)
	return t.AdtPath() == PathAccountInfo || t.PathEndsWith("AccountInfo")
}

// IsAnchorWrapper reports whether the type is any of the single-account
// Anchor wrapper types (as opposed to a user accounts struct).
func IsAnchorWrapper(t *ir.Type) bool {
	t = PeelBox(t)
	return strings.HasPrefix(t.AdtPath(), "anchor_lang::prelude::") ||
		strings.HasPrefix(t.AdtPath(), "anchor_lang::accounts::") ||
		t.AdtPath() == PathAccountInfo
}

// IsPubkey reports whether the type's path names Pubkey.
func IsPubkey(t *ir.Type) bool {
	return t.PathContains("Pubkey")
}

// IsInstruction reports whether the type is a Solana Instruction.
func IsInstruction(t *ir.Type) bool {
	t = t.Peel()
	return t.AdtPath() == PathInstruction || t.PathContains("instruction::Instruction")
}

// IsTokenAccount reports whether the type is an SPL token account, through
// either the anchor_spl::token or token_interface module.
func IsTokenAccount(t *ir.Type) bool {
	t = PeelBox(t)
	return t.AdtPath() == PathTokenAccount ||
		t.PathEndsWith("token_interface::TokenAccount") ||
		t.PathEndsWith("spl_token::state::Account")
}

// IsMint reports whether the type is an SPL mint.
func IsMint(t *ir.Type) bool {
	t = PeelBox(t)
	return t.AdtPath() == PathMint ||
		t.PathEndsWith("token_interface::Mint") ||
		t.PathEndsWith("spl_token::state::Mint")
}

// IsPriceUpdateV2 reports whether the type is Pyth's PriceUpdateV2.
func IsPriceUpdateV2(t *ir.Type) bool {
	return PeelBox(t).PathEndsWith("price_update::PriceUpdateV2")
}

// IsSystemProgram reports whether the type belongs to a system_program
// module.
func IsSystemProgram(t *ir.Type) bool {
	return t.PathContains("::system_program::")
}
