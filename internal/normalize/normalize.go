// Package normalize canonicalizes free-text names so they can be compared
// and used as cache keys.
package normalize

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Name folds s to NFKC, lowercases it, collapses runs of whitespace to a
// single space and trims both ends. Name(Name(s)) == Name(s).
func Name(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ToLower(norm.NFKC.String(s))
	return strings.Join(strings.Fields(s), " ")
}

// Acronym trims s and uppercases it.
func Acronym(s string) string {
	return strings.ToUpper(strings.TrimSpace(norm.NFKC.String(s)))
}

// PersonKey is the natural key for a person without a stable external ID.
func PersonKey(first, last string) string {
	return Name(first) + "|" + Name(last)
}
