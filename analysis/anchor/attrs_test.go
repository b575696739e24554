package anchor

import (
	"testing"

	"github.com/otter-sec/anchor-lints-sub000/internal/funcutil"
)

func TestParseFlags(t *testing.T) {
	c := ParseConstraints([]string{"mut, signer"})
	if !c.Mutable || !c.Signer {
		t.Errorf("flags not decoded: %+v", c)
	}
	if c.Init || c.HasSeeds {
		t.Errorf("unset flags should stay false: %+v", c)
	}
}

func TestParseInit(t *testing.T) {
	c := ParseConstraints([]string{"init, payer = user, space = 8 + Pool::LEN"})
	if !c.Init || !c.HasPayer || !c.HasSpace {
		t.Errorf("init payload not decoded: %+v", c)
	}
	c = ParseConstraints([]string{"init_if_needed, payer = user"})
	if !c.InitIfNeeded || c.Init {
		t.Errorf("init_if_needed should not imply init: %+v", c)
	}
}

func TestParseSeeds(t *testing.T) {
	c := ParseConstraints([]string{`mut, seeds = [b"vault", authority.key().as_ref(), mint.key().as_ref()], bump`})
	if !c.HasSeeds || !c.HasBump {
		t.Errorf("seeds payload not decoded: %+v", c)
	}
	if !c.IsPDA() {
		t.Errorf("seeds should mark the account as a PDA")
	}
	for _, want := range []string{"authority", "mint"} {
		if !funcutil.Contains(c.SeedAccounts, want) {
			t.Errorf("seed account %q not recovered from %v", want, c.SeedAccounts)
		}
	}
	for _, reject := range []string{"key", "as_ref", "b", "bump", "vault"} {
		if funcutil.Contains(c.SeedAccounts, reject) {
			t.Errorf("%q should not be treated as a seed account", reject)
		}
	}
}

func TestParseCloseAndHasOne(t *testing.T) {
	c := ParseConstraints([]string{"mut, close = receiver, has_one = authority, has_one = mint"})
	if c.CloseTarget != "receiver" {
		t.Errorf("close target: got %q", c.CloseTarget)
	}
	if len(c.HasOne) != 2 || c.HasOne[0] != "authority" || c.HasOne[1] != "mint" {
		t.Errorf("has_one targets: got %v", c.HasOne)
	}
}

func TestParseConstraintExpr(t *testing.T) {
	c := ParseConstraints([]string{"constraint = user_a.key() != user_b.key(), mut"})
	if len(c.Raw) != 1 {
		t.Fatalf("raw constraints: got %v", c.Raw)
	}
	// The captured expression keeps idents and the operators ., !=, =, @, ::.
	if c.Raw[0] != "user_a.key!=user_b.key" {
		t.Errorf("raw constraint: got %q", c.Raw[0])
	}
	if !c.Mutable {
		t.Errorf("flags after a constraint expression should still parse")
	}
	pairs := c.KeyInequalities()
	if !funcutil.Contains(pairs, "user_a:user_b") || !funcutil.Contains(pairs, "user_b:user_a") {
		t.Errorf("KeyInequalities should hold both orders: %v", pairs)
	}
}

func TestParseAssociatedToken(t *testing.T) {
	c := ParseConstraints([]string{
		"init, payer = payer, associated_token::mint = mint, associated_token::authority = owner",
	})
	if !c.AssociatedToken {
		t.Errorf("associated_token payload not decoded: %+v", c)
	}
}

func TestParseTokenAndMintAttrs(t *testing.T) {
	c := ParseConstraints([]string{"token::mint = mint, token::authority = authority"})
	if !c.HasTokenAttr {
		t.Errorf("token:: attr not decoded: %+v", c)
	}
	c = ParseConstraints([]string{"mint::decimals = 6, mint::authority = authority"})
	if !c.HasMintAttr {
		t.Errorf("mint:: attr not decoded: %+v", c)
	}
}

func TestParseAddressIsPDA(t *testing.T) {
	c := ParseConstraints([]string{"address = crate::ID"})
	if !c.HasAddress || !c.IsPDA() {
		t.Errorf("address constraint should pin the account: %+v", c)
	}
}

func TestParseMultiplePayloads(t *testing.T) {
	c := ParseConstraints([]string{"mut", `seeds = [b"pool"], bump`})
	if !c.Mutable || !c.HasSeeds {
		t.Errorf("payloads should accumulate: %+v", c)
	}
}
