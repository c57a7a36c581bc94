// Package sanitize provides shared sanitization for full-text queries and
// identifiers.
//
// FTS5 treats characters like ", *, ^, :, ( and ) and the bare words
// AND/OR/NOT/NEAR as query syntax. User-supplied search strings are plain
// text, so operator metacharacters are stripped and each remaining term is
// double-quoted before the string reaches the index.
package sanitize

import (
	"strings"
)

const (
	// MaxQueryLength bounds query input to keep the index fast and to
	// prevent pathological match expressions.
	MaxQueryLength = 1024

	// DefaultIdentifier is used when identifier sanitization produces an
	// empty result.
	DefaultIdentifier = "default"
)

// ftsOperators are FTS5 keywords that must not survive as bare terms.
var ftsOperators = map[string]bool{
	"AND":  true,
	"OR":   true,
	"NOT":  true,
	"NEAR": true,
}

// Query sanitizes a raw search string for use in an FTS5 MATCH expression.
//
// Rules applied:
//   - Truncates to MaxQueryLength
//   - Strips FTS operator metacharacters (" * ^ : ( ) { } - + ~)
//   - Drops bare AND/OR/NOT/NEAR terms
//   - Double-quotes each surviving term
//
// Returns "" when nothing searchable survives; callers fall back to an
// unfiltered recency listing in that case.
func Query(raw string) string {
	if len(raw) > MaxQueryLength {
		raw = raw[:MaxQueryLength]
	}

	var cleaned strings.Builder
	cleaned.Grow(len(raw))
	for _, r := range raw {
		switch r {
		case '"', '*', '^', ':', '(', ')', '{', '}', '-', '+', '~', '\'':
			cleaned.WriteRune(' ')
		default:
			cleaned.WriteRune(r)
		}
	}

	terms := strings.Fields(cleaned.String())
	quoted := make([]string, 0, len(terms))
	for _, term := range terms {
		if ftsOperators[term] {
			continue
		}
		quoted = append(quoted, `"`+term+`"`)
	}

	return strings.Join(quoted, " ")
}

// Identifier sanitizes a string for use as a lowercase identifier
// (tool names, parameter names).
//
// Rules applied:
//   - Converts to lowercase
//   - Replaces invalid characters with underscores
//   - Collapses multiple underscores and trims
//   - Returns DefaultIdentifier if result would be empty
func Identifier(s string) string {
	if s == "" {
		return DefaultIdentifier
	}

	s = strings.ToLower(s)

	var result strings.Builder
	result.Grow(len(s))
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			result.WriteRune(r)
		} else {
			result.WriteRune('_')
		}
	}

	sanitized := result.String()
	for strings.Contains(sanitized, "__") {
		sanitized = strings.ReplaceAll(sanitized, "__", "_")
	}
	sanitized = strings.Trim(sanitized, "_")

	if sanitized == "" {
		return DefaultIdentifier
	}
	return sanitized
}
