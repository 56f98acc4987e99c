// Package index implements the trigram bit-sliced substring index: a
// collection of Bloom-width shards searched under an AND-of-OR substring
// predicate, with a one-way rank-compaction step ("higher-rank conversion")
// that trades row density for search speed.
//
// Adapted from the teacher's internal/core/index package, which held a Git
// staging-area index (DIRC format). The directory and package name are kept;
// everything else — the Entry/Index types, the on-disk format — is replaced
// with the spec's bit-sliced trigram structure.
package index

import (
	"errors"
	"math/bits"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/fenilsonani/logdb/internal/core/bitset"
	"github.com/fenilsonani/logdb/internal/core/shard"
	"github.com/fenilsonani/logdb/internal/core/trigram"
	"github.com/fenilsonani/logdb/internal/merge"
)

// ErrAlreadySealed is returned by Add and Seal once the index is compacted.
var ErrAlreadySealed = errors.New("index: already sealed")

// Filter is an optional caller-supplied post-filter applied to candidate
// ids after trigram matching (e.g. to discard Bloom/compaction false
// positives).
type Filter func(id int64) bool

// Index is a collection of shards keyed by log2(m), created lazily as
// records land in a given Bloom-width class.
type Index struct {
	mu           sync.Mutex
	shards       [32]*shard.Shard
	fpRate       float64
	isHigherRank bool
}

// New creates an empty index targeting the given Bloom false-positive
// rate (0 selects the default).
func New(fpRate float64) *Index {
	if fpRate <= 0 {
		fpRate = shard.DefaultFalsePositiveRate
	}
	return &Index{fpRate: fpRate}
}

// Add indexes string s under id. Adding an empty or whitespace-only string
// is a no-op. ids must be monotonically increasing within whichever shard
// they land in (the caller's responsibility, per the single-writer model).
func (idx *Index) Add(id int64, s string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.isHigherRank {
		return ErrAlreadySealed
	}

	if isBlank(s) {
		return nil
	}
	hashes := trigram.Hashes(s)

	n := len(hashes)
	m := shard.TargetWidth(n, idx.fpRate)
	class := bits.TrailingZeros(uint(m))
	sh := idx.shards[class]
	if sh == nil {
		sh = shard.New(m)
		idx.shards[class] = sh
	}
	return sh.Add(id, hashes)
}

func isBlank(s string) bool {
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return false
		}
	}
	return true
}

// Seal is an alias for ConvertToHigherRank (§6: "index.seal() /
// convert_to_higher_rank()"); a second call returns ErrAlreadySealed.
func (idx *Index) Seal() error { return idx.ConvertToHigherRank() }

// ConvertToHigherRank compacts every shard's rows. The first call
// compacts; a second call returns ErrAlreadySealed.
func (idx *Index) ConvertToHigherRank() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.isHigherRank {
		return ErrAlreadySealed
	}
	for _, sh := range idx.shards {
		if sh == nil {
			continue
		}
		if err := sh.ConvertToHigherRank(); err != nil && !errors.Is(err, shard.ErrAlreadySealed) {
			return err
		}
	}
	idx.isHigherRank = true
	return nil
}

// Search evaluates predicate (outer AND of inner OR-groups of substrings)
// and returns a lazy descending id stream. An empty predicate returns the
// entire value set of every shard in reverse insertion order. Search never
// fails; it performs bounded work per Next() call on the returned stream.
func (idx *Index) Search(predicate [][]string, filter Filter) merge.Source {
	idx.mu.Lock()
	shards := make([]*shard.Shard, 0, len(idx.shards))
	for _, sh := range idx.shards {
		if sh != nil {
			shards = append(shards, sh)
		}
	}
	idx.mu.Unlock()

	// Each shard's Bloom-row evaluation is independent; fan them out the way
	// the teacher's internal/pack/hyperpack.go parallelizes per-chunk work.
	perShardIDs := make([][]int64, len(shards))
	var eg errgroup.Group
	for i, sh := range shards {
		i, sh := i, sh
		eg.Go(func() error {
			positions := evalPredicate(sh, predicate)
			ids := make([]int64, 0, len(positions))
			for _, p := range positions {
				id, ok := sh.ValueAt(p)
				if !ok {
					continue
				}
				if filter != nil && !filter(id) {
					continue
				}
				ids = append(ids, id)
			}
			perShardIDs[i] = ids
			return nil
		})
	}
	_ = eg.Wait() // evalPredicate/ValueAt never return an error

	sources := make([]merge.Source, 0, len(perShardIDs))
	for _, ids := range perShardIDs {
		sources = append(sources, merge.NewSliceSource(ids))
	}
	return merge.New(merge.Descending, sources...)
}

// evalSubstring returns the AND of the rows touched by sub's trigrams: a
// candidate for sub must carry every one of its trigrams.
func evalSubstring(sh *shard.Shard, sub string) *bitset.Row {
	hashes := trigram.Hashes(sub)
	positions := sh.BitPositions(hashes)
	var result *bitset.Row
	for _, k := range positions {
		row := sh.Row(k)
		if result == nil {
			result = row
		} else {
			result = bitset.And(result, row)
		}
	}
	if result == nil {
		result = bitset.NewRow()
	}
	return result
}

// evalGroup ORs the per-substring AND-rows of one inner OR-group together.
func evalGroup(sh *shard.Shard, group []string) *bitset.Row {
	var result *bitset.Row
	for _, sub := range group {
		row := evalSubstring(sh, sub)
		if result == nil {
			result = row
		} else {
			result = bitset.Or(result, row)
		}
	}
	if result == nil {
		result = bitset.NewRow()
	}
	return result
}

func rowIsZero(r *bitset.Row) bool {
	for _, w := range r.Words {
		if w != 0 {
			return false
		}
	}
	return true
}

// evalPredicate ANDs every inner OR-group's row together (outer AND,
// short-circuiting on an empty intermediate result), then translates the
// surviving bit positions to candidate value-list positions, discarding
// anything the compaction/Bloom step manufactured beyond the shard's real
// size.
func evalPredicate(sh *shard.Shard, predicate [][]string) []int {
	if len(predicate) == 0 {
		out := make([]int, sh.Len())
		for i := range out {
			out[i] = sh.Len() - 1 - i
		}
		return out
	}

	var acc *bitset.Row
	for _, group := range predicate {
		row := evalGroup(sh, group)
		if acc == nil {
			acc = row
		} else {
			acc = bitset.And(acc, row)
		}
		if rowIsZero(acc) {
			return nil
		}
	}

	seen := make(map[int]struct{})
	out := make([]int, 0)
	for _, p := range acc.ExpandedPositions() {
		if p < 0 || p >= sh.Len() {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(out)))
	return out
}
