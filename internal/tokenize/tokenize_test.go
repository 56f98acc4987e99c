package tokenize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenizeJoinRoundTripSingleSpaces(t *testing.T) {
	msgs := []string{
		"GET /api/orders?id=100&status=200",
		"user=alice login ok",
		"",
		"no-delimiters-here",
	}
	for _, m := range msgs {
		assert.Equal(t, m, Join(Tokenize(m)))
	}
}

func TestTokenizeCollapsesWhitespaceRuns(t *testing.T) {
	toks := Tokenize("a   b")
	require.Equal(t, []string{"a", Space, "b"}, toks)
}

func TestTokenizeSplitsDelimitersAsOwnTokens(t *testing.T) {
	toks := Tokenize("a/b=c")
	require.Equal(t, []string{"a", "/", "b", "=", "c"}, toks)
}

func TestTokenizeEmpty(t *testing.T) {
	assert.Nil(t, Tokenize(""))
}

func TestIsVariableShapedDigits(t *testing.T) {
	cases := map[string]bool{
		"12":                                    false,
		"123":                                   true,
		"abc123def456":                          true,
		"service":                               false,
		"550e8400-e29b-41d4-a716-446655440000":  true,
		"payments-gateway":                      false,
	}
	for tok, want := range cases {
		assert.Equalf(t, want, IsVariableShaped(tok), "IsVariableShaped(%q)", tok)
	}
}
