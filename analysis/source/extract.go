package source

import "strings"

func isIdentChar(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func takeIdent(s string) string {
	i := 0
	for i < len(s) && isIdentChar(s[i]) {
		i++
	}
	return s[:i]
}

func stripRefPrefix(s string) string {
	s = strings.TrimPrefix(s, "&mut ")
	s = strings.TrimPrefix(s, "& ")
	return s
}

// ExtractAccountName recovers an account identifier from a snippet matching
// `<prefix>.accounts.<name>`, `accounts.<name>` or a standalone
// `<name>.<method>` chain. Falls back to the snippet itself when no pattern
// matches, so callers can still compare it against declared names.
func ExtractAccountName(s string) string {
	s = stripRefPrefix(s)

	if _, after, found := strings.Cut(s, ".accounts."); found {
		if name := takeIdent(after); name != "" {
			return name
		}
	}

	if pos := strings.Index(s, "accounts."); pos == 0 ||
		(pos > 0 && strings.HasSuffix(s[:pos], ".")) {
		if name := takeIdent(s[pos+len("accounts."):]); name != "" {
			return name
		}
	}

	// `user.key()` names the account before the dot; `a.b.key()` names the
	// trailing method's receiver field.
	switch strings.Count(s, ".") {
	case 1:
		dot := strings.IndexByte(s, '.')
		if name := takeIdent(s[:dot]); name != "" {
			return name
		}
	case 2:
		dot := strings.LastIndexByte(s, '.')
		if name := takeIdent(s[dot+1:]); name != "" {
			return name
		}
	}

	return s
}

// ExtractContextAccount recovers either the bare account name or the full
// `<ctx>.accounts.<name>` path from a source line.
func ExtractContextAccount(line string, onlyName bool) string {
	snippet := stripRefPrefix(RemoveComments(line))

	start := strings.Index(snippet, ".accounts.")
	if start < 0 {
		return ExtractAccountName(snippet)
	}

	prefixStart := 0
	for i := start - 1; i >= 0; i-- {
		if !isIdentChar(snippet[i]) {
			prefixStart = i + 1
			break
		}
	}
	prefix := snippet[prefixStart:start]
	account := takeIdent(snippet[start+len(".accounts."):])

	if onlyName {
		return account
	}
	return prefix + ".accounts." + account
}

// ExtractVecElements splits a `vec![...]` or `vec!(...)` literal into its
// top-level comma-separated elements, tracking bracket depth so nested calls
// stay intact. Returns nil when the snippet contains no vec! literal.
func ExtractVecElements(snippet string) []string {
	trimmed := strings.TrimSpace(snippet)
	trimmed = strings.TrimPrefix(trimmed, "&")
	trimmed = strings.TrimSpace(strings.TrimPrefix(trimmed, "mut "))

	var open string
	var closer rune
	pos := strings.Index(trimmed, "vec![")
	if pos >= 0 {
		open, closer = "vec![", ']'
	} else if pos = strings.Index(trimmed, "vec!("); pos >= 0 {
		open, closer = "vec!(", ')'
	} else {
		return nil
	}
	afterOpen := trimmed[pos+len(open):]

	// Find the matching closing bracket for this vec! literal.
	depth := 1
	closePos := -1
	for i, ch := range afterOpen {
		switch ch {
		case '[', '(', '{':
			depth++
		case ']', ')', '}':
			depth--
			if depth == 0 && ch == closer {
				closePos = i
			}
		}
		if closePos >= 0 {
			break
		}
	}

	inner := afterOpen
	if closePos >= 0 {
		inner = afterOpen[:closePos]
	} else {
		inner = strings.TrimSpace(strings.TrimSuffix(strings.TrimSuffix(inner, ";"), string(closer)))
	}

	var elements []string
	var current strings.Builder
	depth = 0
	for _, ch := range inner {
		switch ch {
		case '[', '(', '{':
			depth++
			current.WriteRune(ch)
		case ']', ')', '}':
			depth--
			current.WriteRune(ch)
		case ',':
			if depth == 0 {
				if e := strings.TrimSpace(current.String()); e != "" {
					elements = append(elements, e)
				}
				current.Reset()
				continue
			}
			current.WriteRune(ch)
		default:
			current.WriteRune(ch)
		}
	}
	if e := strings.TrimSpace(current.String()); e != "" {
		elements = append(elements, e)
	}
	return elements
}
