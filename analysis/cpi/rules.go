package cpi

// SignerSource says where a CPI helper expects its signing account.
type SignerSource int

const (
	// ContextSigner means the signer sits inside the CPI accounts struct.
	ContextSigner SignerSource = iota
	// ArgIndex means the signer is passed directly as a call argument.
	ArgIndex
)

// Rule names the account that must sign a given CPI kind.
type Rule struct {
	Kind   Kind
	Source SignerSource
	// Field is the signer's field name in the accounts struct.
	Field string
	// Arg is the signer's argument position when Source is ArgIndex.
	Arg int
}

var signerRules = []Rule{
	{Kind: SystemTransfer, Source: ContextSigner, Field: "from"},
	{Kind: Transfer, Source: ContextSigner, Field: "authority"},
	{Kind: MintTo, Source: ContextSigner, Field: "authority"},
	{Kind: Burn, Source: ContextSigner, Field: "authority"},
	{Kind: Token2022Transfer, Source: ArgIndex, Field: "authority", Arg: 3},
	{Kind: Token2022TransferChecked, Source: ArgIndex, Field: "authority", Arg: 4},
	{Kind: CreateAta, Source: ContextSigner, Field: "authority"},
	{Kind: SetAuthority, Source: ContextSigner, Field: "current_authority"},
	{Kind: CloseAccount, Source: ContextSigner, Field: "authority"},
	{Kind: FreezeAccount, Source: ContextSigner, Field: "authority"},
	{Kind: ThawAccount, Source: ContextSigner, Field: "authority"},
	{Kind: Approve, Source: ContextSigner, Field: "authority"},
	{Kind: Revoke, Source: ContextSigner, Field: "authority"},
	{Kind: Token2022MintToChecked, Source: ArgIndex, Field: "mint_authority", Arg: 3},
	{Kind: Token2022BurnChecked, Source: ArgIndex, Field: "authority", Arg: 3},
	{Kind: SyncNative, Source: ContextSigner, Field: "account"},
}

// SignerRule returns the signer requirement for a CPI kind, or nil when the
// kind has no rule.
func SignerRule(k Kind) *Rule {
	for i := range signerRules {
		if signerRules[i].Kind == k {
			return &signerRules[i]
		}
	}
	return nil
}
