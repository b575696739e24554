package anchor

import (
	"strings"

	"github.com/otter-sec/anchor-lints-sub000/internal/funcutil"
)

// Constraints is the decoded payload of a field's #[account(...)] attributes.
type Constraints struct {
	Mutable         bool
	Signer          bool
	Init            bool
	InitIfNeeded    bool
	HasPayer        bool
	HasSpace        bool
	HasBump         bool
	HasAddress      bool
	HasOwner        bool
	HasSeeds        bool
	AssociatedToken bool
	HasTokenAttr    bool
	HasMintAttr     bool

	// CloseTarget is the account named in `close = <ident>`, or "".
	CloseTarget string
	// SeedAccounts lists the account identifiers participating in the
	// `seeds = [...]` expression.
	SeedAccounts []string
	// HasOne lists the targets of `has_one = <ident>` constraints.
	HasOne []string
	// Raw lists the captured `constraint = ...` expressions, with the
	// operators `.`, `!=`, `=`, `@` and `::` preserved.
	Raw []string
}

// IsPDA reports whether the account is program-derived: it carries seeds or
// a fixed address.
func (c Constraints) IsPDA() bool { return c.HasSeeds || c.HasAddress }

// KeyInequalities returns the `a:b` pairs asserted distinct by
// `constraint = a.key() != b.key()` expressions, in both orders.
func (c Constraints) KeyInequalities() []string {
	var pairs []string
	for _, raw := range c.Raw {
		lhs, rhs, found := strings.Cut(raw, "!=")
		if !found {
			continue
		}
		a := firstIdent(lhs)
		b := firstIdent(rhs)
		if a == "" || b == "" {
			continue
		}
		pairs = append(pairs, a+":"+b, b+":"+a)
	}
	return pairs
}

func firstIdent(s string) string {
	start := -1
	for i := 0; i < len(s); i++ {
		if isIdentByte(s[i]) {
			start = i
			break
		}
	}
	if start < 0 {
		return ""
	}
	end := start
	for end < len(s) && isIdentByte(s[end]) {
		end++
	}
	return s[start:end]
}

func isIdentByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// seed expressions are method chains over accounts; these idents never name
// an account.
var seedMethodNames = map[string]bool{
	"key":         true,
	"as_ref":      true,
	"b":           true,
	"bump":        true,
	"to_le_bytes": true,
	"as_bytes":    true,
	"seed":        true,
}

type attrToken struct {
	kind string // "ident", "punct", "lit"
	text string
}

func lexAttr(payload string) []attrToken {
	var toks []attrToken
	i := 0
	for i < len(payload) {
		c := payload[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case isIdentByte(c):
			j := i
			for j < len(payload) && isIdentByte(payload[j]) {
				j++
			}
			toks = append(toks, attrToken{"ident", payload[i:j]})
			i = j
		case c == '"':
			j := i + 1
			for j < len(payload) && payload[j] != '"' {
				if payload[j] == '\\' {
					j++
				}
				j++
			}
			if j < len(payload) {
				j++
			}
			toks = append(toks, attrToken{"lit", payload[i:j]})
			i = j
		case c == '!' && i+1 < len(payload) && payload[i+1] == '=':
			toks = append(toks, attrToken{"punct", "!="})
			i += 2
		case c == ':' && i+1 < len(payload) && payload[i+1] == ':':
			toks = append(toks, attrToken{"punct", "::"})
			i += 2
		default:
			toks = append(toks, attrToken{"punct", string(c)})
			i++
		}
	}
	return toks
}

// ParseConstraints decodes the payloads of every #[account(...)] attribute
// on one field.
func ParseConstraints(payloads []string) Constraints {
	var c Constraints
	for _, payload := range payloads {
		c.parse(lexAttr(payload))
	}
	return c
}

func (c *Constraints) parse(toks []attrToken) {
	depth := 0
	// Constraint expressions accumulate until the next top-level comma.
	inConstraint := false
	var constraint strings.Builder
	flushConstraint := func() {
		if inConstraint && constraint.Len() > 0 {
			c.Raw = append(c.Raw, constraint.String())
		}
		inConstraint = false
		constraint.Reset()
	}

	for i := 0; i < len(toks); i++ {
		tok := toks[i]
		if tok.kind == "punct" {
			switch tok.text {
			case "[", "(", "{":
				depth++
			case "]", ")", "}":
				depth--
			case ",":
				if depth == 0 {
					flushConstraint()
					continue
				}
			}
			if inConstraint {
				switch tok.text {
				case ".", "!=", "=", "@", "::":
					constraint.WriteString(tok.text)
				}
			}
			continue
		}
		if tok.kind == "lit" {
			continue
		}
		if inConstraint {
			constraint.WriteString(tok.text)
			continue
		}
		if depth != 0 {
			continue
		}

		next := func() string {
			if i+1 < len(toks) {
				return toks[i+1].text
			}
			return ""
		}
		switch tok.text {
		case "mut":
			c.Mutable = true
		case "signer":
			c.Signer = true
		case "init":
			c.Init = true
		case "init_if_needed":
			c.InitIfNeeded = true
		case "payer":
			c.HasPayer = true
		case "space":
			c.HasSpace = true
		case "bump":
			c.HasBump = true
		case "address":
			c.HasAddress = true
		case "owner":
			c.HasOwner = true
		case "zero":
			// zero-discriminator init; no payload
		case "associated_token":
			c.AssociatedToken = true
		case "token":
			if next() == "::" {
				c.HasTokenAttr = true
			}
		case "mint":
			if next() == "::" {
				c.HasMintAttr = true
			}
		case "close":
			if next() == "=" && i+2 < len(toks) && toks[i+2].kind == "ident" {
				c.CloseTarget = toks[i+2].text
				i += 2
			}
		case "has_one":
			if next() == "=" && i+2 < len(toks) && toks[i+2].kind == "ident" {
				c.HasOne = append(c.HasOne, toks[i+2].text)
				i += 2
			}
		case "seeds":
			if next() != "=" {
				continue
			}
			c.HasSeeds = true
			i = c.parseSeeds(toks, i+2)
		case "constraint":
			if next() == "=" {
				inConstraint = true
				i++
			}
		}
	}
	flushConstraint()
}

// parseSeeds consumes a bracketed seeds expression starting at toks[start]
// and records the account identifiers it mentions. It returns the index of
// the closing bracket.
func (c *Constraints) parseSeeds(toks []attrToken, start int) int {
	depth := 0
	i := start
	for ; i < len(toks); i++ {
		tok := toks[i]
		if tok.kind == "punct" {
			switch tok.text {
			case "[", "(", "{":
				depth++
			case "]", ")", "}":
				depth--
				if depth <= 0 {
					return i
				}
			}
			continue
		}
		if tok.kind == "ident" && !seedMethodNames[tok.text] {
			if !funcutil.Contains(c.SeedAccounts, tok.text) {
				c.SeedAccounts = append(c.SeedAccounts, tok.text)
			}
		}
	}
	return i
}
