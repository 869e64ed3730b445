package domain

import (
	"strconv"
	"strings"
)

// TokenKind says how a report token may be matched.
type TokenKind int

const (
	// TokenCode tokens can only match a report's display code.
	TokenCode TokenKind = iota
	// TokenNumeric tokens are all digits: they may be a display code or a
	// surrogate id, and the display code wins when both exist.
	TokenNumeric
)

// ReportToken is a caller-supplied report reference, parsed once at the
// boundary. Code always holds the raw (trimmed) token; ID is only meaningful
// when Kind is TokenNumeric.
type ReportToken struct {
	Kind TokenKind
	Code string
	ID   uint
}

// ParseReportToken classifies s. Tokens like "EO4475" or "#1027" are codes;
// "1027" is numeric and may refer to either kind of key.
func ParseReportToken(s string) ReportToken {
	s = strings.TrimSpace(s)
	if s != "" && s[0] != '+' && s[0] != '-' {
		if n, err := strconv.ParseUint(s, 10, 64); err == nil && n > 0 && uint64(uint(n)) == n {
			return ReportToken{Kind: TokenNumeric, Code: s, ID: uint(n)}
		}
	}
	return ReportToken{Kind: TokenCode, Code: s}
}

// String returns the raw token.
func (t ReportToken) String() string { return t.Code }
