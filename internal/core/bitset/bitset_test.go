package bitset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetGet(t *testing.T) {
	r := NewRow()
	r.Set(0)
	r.Set(63)
	r.Set(64)
	r.Set(200)

	for _, pos := range []int{0, 63, 64, 200} {
		assert.Truef(t, r.Get(pos), "Get(%d)", pos)
	}
	for _, pos := range []int{1, 62, 65, 199, 1000} {
		assert.Falsef(t, r.Get(pos), "Get(%d)", pos)
	}
}

func TestPadTo(t *testing.T) {
	r := NewRow()
	r.Set(0)
	r.PadTo(4)
	require.Equal(t, 4, r.Len())
	r.PadTo(2) // must never truncate
	assert.Equal(t, 4, r.Len())
}

func TestHalveOrsHalves(t *testing.T) {
	r := NewRow()
	r.Set(0)   // word 0
	r.Set(128) // word 2, same low bit as word 0 after halving length-4 row
	r.PadTo(4)
	r.Halve()
	require.Equal(t, 1, r.Rank)
	require.Equal(t, 2, r.Len())
	assert.True(t, r.Get(0), "expected bit 0 set after halving (OR of word0 and word2)")
}

func TestDoubleAlignsRank(t *testing.T) {
	r := NewRow()
	r.Set(0)
	r.PadTo(2)
	r.Halve() // rank 1, len 1
	d := r.Double()
	assert.Equal(t, 0, d.Rank)
	assert.Equal(t, 2, d.Len())
}

func TestAndAlignsRanksBeforeCombining(t *testing.T) {
	a := NewRow()
	a.Set(0)
	a.Set(1)

	b := NewRow()
	b.Set(1)
	b.PadTo(2)
	b.Halve() // rank 1

	got := And(a, b)
	assert.True(t, got.Get(1), "And result missing bit 1")
	assert.False(t, got.Get(0), "And result has unexpected bit 0")
}

func TestOrUnion(t *testing.T) {
	a := NewRow()
	a.Set(3)
	b := NewRow()
	b.Set(9)

	got := Or(a, b)
	assert.True(t, got.Get(3) && got.Get(9), "Or result missing expected bits: %v", got.SetPositions())
}

func TestSetPositions(t *testing.T) {
	r := NewRow()
	r.Set(5)
	r.Set(70)
	assert.Equal(t, []int{5, 70}, r.SetPositions())
}

func TestExpandedPositionsRankZeroIsIdentity(t *testing.T) {
	r := NewRow()
	r.Set(7)
	assert.Equal(t, []int{7}, r.ExpandedPositions())
}

func TestExpandedPositionsRankOneDoubles(t *testing.T) {
	r := NewRow()
	r.Set(0)
	r.PadTo(2)
	r.Halve() // rank 1, 1 word = 64-bit block width
	got := r.ExpandedPositions()
	require.Len(t, got, 2)
	assert.ElementsMatch(t, []int{0, 64}, got)
}

func TestDensity(t *testing.T) {
	r := NewRow()
	r.PadTo(1)
	assert.Zero(t, r.Density())
	r.Set(0)
	assert.Greater(t, r.Density(), 0.0)
}
