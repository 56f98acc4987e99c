// Package shard implements one Bloom-width class of the trigram inverted
// index: a fixed power-of-two filter width, its rows, and the rank
// compaction ("higher-rank conversion") that trades row density for
// search speed.
package shard

import (
	"errors"
	"math"

	"github.com/fenilsonani/logdb/internal/core/bitset"
)

// ErrAlreadySealed is returned by Add and ConvertToHigherRank once a shard
// has been compacted.
var ErrAlreadySealed = errors.New("shard: already sealed")

const (
	// DefaultFalsePositiveRate is the target Bloom false-positive rate used
	// to size a shard for a given trigram count.
	DefaultFalsePositiveRate = 0.0001
	// DefaultTargetDensity is the density threshold under which a row
	// keeps halving during rank compaction.
	DefaultTargetDensity = 0.30
	// DefaultDenseThreshold triggers an immediate full collapse to L=1.
	DefaultDenseThreshold = 0.80
)

// Shard is a single Bloom-width class of the inverted index.
type Shard struct {
	m            int
	values       []int64
	rows         []*bitset.Row
	isHigherRank bool
	baseWords    int
}

// New creates an empty shard with Bloom width m (must be a power of two).
func New(m int) *Shard {
	rows := make([]*bitset.Row, m)
	for i := range rows {
		rows[i] = bitset.NewRow()
	}
	return &Shard{m: m, rows: rows}
}

// TargetWidth computes the Bloom filter width m for n trigrams at false
// positive rate p: m = round_up_to_pow2(ceil(n*ln(p) / ln(1/2^ln2))).
func TargetWidth(n int, p float64) int {
	if n <= 0 {
		n = 1
	}
	if p <= 0 || p >= 1 {
		p = DefaultFalsePositiveRate
	}
	denom := math.Log(1.0 / math.Pow(2, math.Ln2))
	raw := math.Ceil(float64(n) * math.Log(p) / denom)
	m := int(raw)
	if m < 1 {
		m = 1
	}
	return roundUpPow2(m)
}

func roundUpPow2(n int) int {
	if n <= 1 {
		return 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// M returns the shard's Bloom width.
func (s *Shard) M() int { return s.m }

// Len returns the number of values inserted into this shard.
func (s *Shard) Len() int { return len(s.values) }

// IsHigherRank reports whether the shard has been compacted.
func (s *Shard) IsHigherRank() bool { return s.isHigherRank }

// ValueAt returns the caller id stored at position pos.
func (s *Shard) ValueAt(pos int) (int64, bool) {
	if pos < 0 || pos >= len(s.values) {
		return 0, false
	}
	return s.values[pos], true
}

// Values returns the full insertion-ordered id list (read-only use).
func (s *Shard) Values() []int64 { return s.values }

// Row returns the row for Bloom bit k.
func (s *Shard) Row(k int) *bitset.Row { return s.rows[k] }

// BitPositions returns the distinct Bloom bit positions a trigram hash set
// touches in this shard.
func (s *Shard) BitPositions(hashes map[uint32]struct{}) []int {
	seen := make(map[int]struct{}, len(hashes))
	out := make([]int, 0, len(hashes))
	for h := range hashes {
		k := int(h % uint32(s.m))
		if _, ok := seen[k]; !ok {
			seen[k] = struct{}{}
			out = append(out, k)
		}
	}
	return out
}

// Add ingests record id with the set of trigram hashes its string
// produced. The position used for the bit is the 0-based index the id
// lands at within this shard's values list (see design notes: rows
// reference values positionally).
func (s *Shard) Add(id int64, hashes map[uint32]struct{}) error {
	if s.isHigherRank {
		return ErrAlreadySealed
	}
	pos := len(s.values)
	for _, k := range s.BitPositions(hashes) {
		s.rows[k].Set(pos)
	}
	s.values = append(s.values, id)
	return nil
}

// ConvertToHigherRank compacts every row: pads all rows to a common
// power-of-two word count W, then halves rows whose density warrants it.
func (s *Shard) ConvertToHigherRank() error {
	if s.isHigherRank {
		return ErrAlreadySealed
	}

	maxLen := 1
	for _, r := range s.rows {
		if r.Len() > maxLen {
			maxLen = r.Len()
		}
	}
	w := roundUpPow2(maxLen)

	for _, r := range s.rows {
		r.PadTo(w)
		if r.Density() > DefaultDenseThreshold {
			for r.Len() > 1 {
				r.Halve()
			}
			continue
		}
		for r.Len() > 1 && r.Density() <= DefaultTargetDensity {
			r.Halve()
		}
	}

	s.baseWords = w
	s.isHigherRank = true
	return nil
}

// BaseWords returns W, the common pre-compaction word count (0 before the
// first compaction).
func (s *Shard) BaseWords() int { return s.baseWords }
