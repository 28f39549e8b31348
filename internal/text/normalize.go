// Package text implements Haitian Creole text normalization: whitespace
// cleanup, leading punctuation removal, lowercasing and number spelling.
package text

import (
	"errors"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// ErrEmptyText is returned by Prepare when the input normalizes to nothing.
var ErrEmptyText = errors.New("text is empty")

// Normalize rewrites raw input into the canonical form consumed by the
// grapheme-to-phoneme stage. Applying it twice yields the same result.
//
// Steps, in order: whitespace collapsing (any Unicode space), removal of
// the leading punctuation run, lowercasing, digit-run spelling and NFC
// composition. Composition runs last so a combining mark left behind a
// spelled digit joins the final letter of the word.
func Normalize(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	s = stripLeadingPunct(s)
	s = strings.ToLower(s)
	s = ExpandNumbers(s)

	return norm.NFC.String(s)
}

// Prepare normalizes s and rejects input that is empty afterwards.
func Prepare(s string) (string, error) {
	out := Normalize(s)
	if out == "" {
		return "", ErrEmptyText
	}

	return out, nil
}

// stripLeadingPunct drops the punctuation run at the start of s together
// with any whitespace it exposes.
func stripLeadingPunct(s string) string {
	return strings.TrimLeftFunc(s, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSymbol(r) || unicode.IsSpace(r)
	})
}
