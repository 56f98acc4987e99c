package trigram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashesShortStringUsesSentinel(t *testing.T) {
	for _, s := range []string{"", "a", "ab", "!!", "1"} {
		hashes := Hashes(s)
		require.Lenf(t, hashes, 1, "Hashes(%q)", s)
		assert.Containsf(t, hashes, ShortStringHash, "Hashes(%q)", s)
	}
}

func TestHashesNormalizesCaseAndPunctuation(t *testing.T) {
	a := Hashes("Hello, World!")
	b := Hashes("helloworld")
	require.Len(t, a, len(b))
	for h := range a {
		assert.Contains(t, b, h)
	}
}

func TestHashesWindowCount(t *testing.T) {
	// "abcd" normalizes to 4 chars -> 2 overlapping trigrams: abc, bcd.
	assert.Len(t, Hashes("abcd"), 2)
}

func TestHashesMultiUnion(t *testing.T) {
	single := Hashes("abcd")
	multi := HashesMulti([]string{"abcd"})
	assert.Len(t, multi, len(single))

	union := HashesMulti([]string{"abcd", "xyz"})
	assert.Greater(t, len(union), len(single))
}
