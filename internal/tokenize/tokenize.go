// Package tokenize implements the deterministic log-like tokenizer shared by
// the Drain miner and the record store.
package tokenize

import (
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// delimiters are split out of literal runs and kept as their own tokens.
const delimiters = "/?&=:"

// Space is the normalized token used for any run of whitespace.
const Space = " "

func isDelimiter(r rune) bool {
	return strings.ContainsRune(delimiters, r)
}

// Tokenize splits s on whitespace and on any of /, ?, &, =, : while
// preserving the delimiters as their own tokens, and collapsing any run of
// whitespace to a single Space token. Join(Tokenize(s)) reproduces s modulo
// collapsed whitespace.
func Tokenize(s string) []string {
	if s == "" {
		return nil
	}

	var tokens []string
	var literal strings.Builder

	flushLiteral := func() {
		if literal.Len() > 0 {
			tokens = append(tokens, literal.String())
			literal.Reset()
		}
	}

	runes := []rune(s)
	i := 0
	for i < len(runes) {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			flushLiteral()
			j := i
			for j < len(runes) && unicode.IsSpace(runes[j]) {
				j++
			}
			tokens = append(tokens, Space)
			i = j
		case isDelimiter(r):
			flushLiteral()
			tokens = append(tokens, string(r))
			i++
		default:
			literal.WriteRune(r)
			i++
		}
	}
	flushLiteral()

	return tokens
}

// Join reassembles tokens produced by Tokenize back into a string.
func Join(tokens []string) string {
	var b strings.Builder
	for _, t := range tokens {
		b.WriteString(t)
	}
	return b.String()
}

// IsVariableShaped reports whether a token "looks like a variable": three or
// more digits, or a canonical 36-character UUID shape.
func IsVariableShaped(token string) bool {
	if len(token) == 36 {
		if _, err := uuid.Parse(token); err == nil {
			return true
		}
	}
	digits := 0
	for _, r := range token {
		if unicode.IsDigit(r) {
			digits++
			if digits >= 3 {
				return true
			}
		}
	}
	return false
}
