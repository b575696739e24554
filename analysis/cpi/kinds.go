// Package cpi classifies cross-program invocations made through the Anchor
// and SPL helper crates, and records which argument must sign each one.
package cpi

// Kind identifies one kind of cross-program invocation helper. Function
// kinds (Transfer, Burn, ...) name the wrapper functions that take a
// CpiContext; the *Struct kinds name the accounts structs those wrappers
// consume.
type Kind int

const (
	Unknown Kind = iota
	SetAuthority
	SetAuthorityStruct
	Burn
	BurnStruct
	MintTo
	MintToStruct
	CreateAta
	CreateAtaStruct
	Transfer
	TransferStruct
	SystemTransfer
	SystemTransferStruct
	Token2022Transfer
	Token2022TransferChecked
	CloseAccount
	CloseAccountStruct
	FreezeAccount
	FreezeAccountStruct
	ThawAccount
	ThawAccountStruct
	Approve
	ApproveStruct
	Revoke
	RevokeStruct
	SyncNative
	SyncNativeStruct
	Token2022MintToChecked
	Token2022BurnChecked
)

var kindNames = map[Kind]string{
	SetAuthority:             "set_authority",
	SetAuthorityStruct:       "SetAuthority",
	Burn:                     "burn",
	BurnStruct:               "Burn",
	MintTo:                   "mint_to",
	MintToStruct:             "MintTo",
	CreateAta:                "create",
	CreateAtaStruct:          "Create",
	Transfer:                 "transfer",
	TransferStruct:           "Transfer",
	SystemTransfer:           "system_program::transfer",
	SystemTransferStruct:     "system_program::Transfer",
	Token2022Transfer:        "spl_token_2022 transfer",
	Token2022TransferChecked: "spl_token_2022 transfer_checked",
	CloseAccount:             "close_account",
	CloseAccountStruct:       "CloseAccount",
	FreezeAccount:            "freeze_account",
	FreezeAccountStruct:      "FreezeAccount",
	ThawAccount:              "thaw_account",
	ThawAccountStruct:        "ThawAccount",
	Approve:                  "approve",
	ApproveStruct:            "Approve",
	Revoke:                   "revoke",
	RevokeStruct:             "Revoke",
	SyncNative:               "sync_native",
	SyncNativeStruct:         "SyncNative",
	Token2022MintToChecked:   "spl_token_2022 mint_to_checked",
	Token2022BurnChecked:     "spl_token_2022 burn_checked",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// kindPaths maps each kind to the full paths it may be invoked at.
var kindPaths = map[Kind][]string{
	SetAuthority:         {"anchor_spl::token::set_authority"},
	SetAuthorityStruct:   {"anchor_spl::token::SetAuthority"},
	Burn:                 {"anchor_spl::token::burn"},
	BurnStruct:           {"anchor_spl::token::Burn"},
	MintTo:               {"anchor_spl::token::mint_to"},
	MintToStruct:         {"anchor_spl::token::MintTo"},
	CreateAta:            {"anchor_spl::associated_token::create"},
	CreateAtaStruct:      {"anchor_spl::associated_token::Create"},
	Transfer:             {"anchor_spl::token::transfer"},
	TransferStruct:       {"anchor_spl::token::Transfer"},
	SystemTransfer:       {"anchor_lang::system_program::transfer"},
	SystemTransferStruct: {"anchor_lang::system_program::Transfer"},
	Token2022Transfer: {
		"anchor_spl::token_2022::spl_token_2022::instruction::transfer",
	},
	Token2022TransferChecked: {
		"anchor_spl::token_2022::spl_token_2022::instruction::transfer_checked",
	},
	CloseAccount:        {"anchor_spl::token::close_account"},
	CloseAccountStruct:  {"anchor_spl::token::CloseAccount"},
	FreezeAccount:       {"anchor_spl::token::freeze_account"},
	FreezeAccountStruct: {"anchor_spl::token::FreezeAccount"},
	ThawAccount:         {"anchor_spl::token::thaw_account"},
	ThawAccountStruct:   {"anchor_spl::token::ThawAccount"},
	Approve:             {"anchor_spl::token::approve"},
	ApproveStruct:       {"anchor_spl::token::Approve"},
	Revoke:              {"anchor_spl::token::revoke"},
	RevokeStruct:        {"anchor_spl::token::Revoke"},
	SyncNative:          {"anchor_spl::token::sync_native"},
	SyncNativeStruct:    {"anchor_spl::token::SyncNative"},
	Token2022MintToChecked: {
		"anchor_spl::token_2022::spl_token_2022::instruction::mint_to_checked",
	},
	Token2022BurnChecked: {
		"anchor_spl::token_2022::spl_token_2022::instruction::burn_checked",
	},
}

// pathToKind is the inverted registry, built once at init.
var pathToKind = func() map[string]Kind {
	m := make(map[string]Kind)
	for kind, paths := range kindPaths {
		for _, p := range paths {
			m[p] = kind
		}
	}
	return m
}()

// Detect classifies a call target path. Returns Unknown when the path does
// not name a recognized CPI helper.
func Detect(path string) Kind {
	return pathToKind[path]
}

// Matches reports whether path invokes the given kind.
func Matches(path string, k Kind) bool {
	return Detect(path) == k
}

// StructKind maps a function kind to its accounts-struct counterpart.
func (k Kind) StructKind() Kind {
	switch k {
	case SetAuthority:
		return SetAuthorityStruct
	case Burn:
		return BurnStruct
	case MintTo:
		return MintToStruct
	case CreateAta:
		return CreateAtaStruct
	case Transfer:
		return TransferStruct
	case SystemTransfer:
		return SystemTransferStruct
	case CloseAccount:
		return CloseAccountStruct
	case FreezeAccount:
		return FreezeAccountStruct
	case ThawAccount:
		return ThawAccountStruct
	case Approve:
		return ApproveStruct
	case Revoke:
		return RevokeStruct
	case SyncNative:
		return SyncNativeStruct
	}
	return Unknown
}
