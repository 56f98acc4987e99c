package t64

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeDecode(t *testing.T, vals []int64) *Decoder {
	t.Helper()
	enc := NewEncoder()
	for _, v := range vals {
		enc.Add(v)
	}
	data := enc.Encode()
	dec, err := NewDecoder(data)
	require.NoError(t, err)
	return dec
}

func TestRoundTripMonotoneSequence(t *testing.T) {
	vals := make([]int64, 500)
	for i := range vals {
		vals[i] = int64(i) * 3
	}
	dec := encodeDecode(t, vals)
	require.Equal(t, len(vals), dec.Count())
	for i, want := range vals {
		got, err := dec.Get(i)
		require.NoError(t, err)
		assert.Equalf(t, want, got, "Get(%d)", i)
	}
}

func TestRoundTripNegativeAndDescendingDeltas(t *testing.T) {
	vals := []int64{100, 90, 95, -5, -1000, 0, 1, 1, 1, 2}
	dec := encodeDecode(t, vals)
	for i, want := range vals {
		got, err := dec.Get(i)
		require.NoError(t, err)
		assert.Equalf(t, want, got, "Get(%d)", i)
	}
}

func TestRoundTripAcrossMultipleBlocks(t *testing.T) {
	const n = 64*3 + 7 // spans 4 blocks, last one partial
	vals := make([]int64, n)
	var v int64
	for i := range vals {
		v += int64(i%7) - 3
		vals[i] = v
	}
	dec := encodeDecode(t, vals)
	require.Equal(t, n, dec.Count())
	for i, want := range vals {
		got, err := dec.Get(i)
		require.NoError(t, err)
		assert.Equalf(t, want, got, "Get(%d)", i)
	}
}

func TestGetOutOfRange(t *testing.T) {
	dec := encodeDecode(t, []int64{1, 2, 3})
	_, err := dec.Get(-1)
	assert.ErrorIs(t, err, ErrOutOfRange)
	_, err = dec.Get(3)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestEmptyStream(t *testing.T) {
	dec := encodeDecode(t, nil)
	assert.Zero(t, dec.Count())
	_, err := dec.Get(0)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestDecoderWithSmallCacheStillDecodesCorrectly(t *testing.T) {
	vals := make([]int64, 64*10)
	for i := range vals {
		vals[i] = int64(i)
	}
	enc := NewEncoder()
	for _, v := range vals {
		enc.Add(v)
	}
	data := enc.Encode()

	dec, err := NewDecoderWithCacheSize(data, 2)
	require.NoError(t, err)
	// Access blocks out of order to exercise cache eviction.
	for _, i := range []int{600, 0, 601, 64, 1, 639} {
		got, err := dec.Get(i)
		require.NoErrorf(t, err, "Get(%d)", i)
		assert.Equalf(t, vals[i], got, "Get(%d)", i)
	}
}
