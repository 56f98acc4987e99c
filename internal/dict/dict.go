// Package dict implements the append-only string and UUID dictionaries:
// lookup-or-insert under a shared reference while OPEN, then a one-way
// freeze into a flat array indexed by id. Lookup takes the dictionary
// mutex briefly in both states.
//
// Adapted from duynguyendang-gca's pkg/meb dict.ShardedEncoder (sharded
// lookup-or-create over a persistent backing store, with an LRU front
// cache) generalized from its Badger-backed, disk-persisted form to a pure
// in-memory dictionary with freeze-on-seal instead of a persisted id
// counter, and FNV sharding swapped for xxhash per the teacher's own
// internal/turbo/database.go shard routing.
package dict

import (
	"errors"
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
)

// ErrFrozen is returned by GetOrCreate once the dictionary has been frozen.
var ErrFrozen = errors.New("dict: frozen")

const numShards = 256

type stringShard struct {
	mu       sync.Mutex
	toID     map[string]uint64
	fromID   map[uint64]string
}

// StringDict is a sharded, append-only string interner. Ids start at 0 and
// are assigned in allocation order, shared across all shards via an
// atomic-free mutex-guarded counter (contention is already reduced by
// sharding the lookup path).
type StringDict struct {
	shards [numShards]*stringShard
	mu     sync.Mutex
	nextID uint64

	frozen bool
	values []string // index = id, populated on Freeze
}

// NewStringDict creates an empty, writable string dictionary.
func NewStringDict() *StringDict {
	d := &StringDict{}
	for i := range d.shards {
		d.shards[i] = &stringShard{toID: make(map[string]uint64), fromID: make(map[uint64]string)}
	}
	return d
}

func shardIndex(s string) int {
	return int(xxhash.Sum64String(s) % numShards)
}

// GetOrCreate returns s's dictionary id, allocating a new one on first
// sight.
func (d *StringDict) GetOrCreate(s string) (uint64, error) {
	sh := d.shards[shardIndex(s)]

	sh.mu.Lock()
	if id, ok := sh.toID[s]; ok {
		sh.mu.Unlock()
		return id, nil
	}
	sh.mu.Unlock()

	d.mu.Lock()
	if d.frozen {
		d.mu.Unlock()
		return 0, fmt.Errorf("dict: get-or-create %q: %w", s, ErrFrozen)
	}
	sh.mu.Lock()
	if id, ok := sh.toID[s]; ok {
		sh.mu.Unlock()
		d.mu.Unlock()
		return id, nil
	}
	id := d.nextID
	d.nextID++
	sh.toID[s] = id
	sh.fromID[id] = s
	sh.mu.Unlock()
	d.mu.Unlock()
	return id, nil
}

// Lookup returns the string for id without mutating the dictionary, valid
// in both OPEN and frozen states.
func (d *StringDict) Lookup(id uint64) (string, bool) {
	d.mu.Lock()
	frozen := d.frozen
	values := d.values
	d.mu.Unlock()

	if frozen {
		if id >= uint64(len(values)) {
			return "", false
		}
		return values[id], true
	}
	for _, sh := range d.shards {
		sh.mu.Lock()
		s, ok := sh.fromID[id]
		sh.mu.Unlock()
		if ok {
			return s, true
		}
	}
	return "", false
}

// Freeze snapshots the dictionary into a flat array indexed by id and
// discards the lookup maps. Idempotent.
func (d *StringDict) Freeze() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.frozen {
		return
	}
	values := make([]string, d.nextID)
	for _, sh := range d.shards {
		sh.mu.Lock()
		for id, s := range sh.fromID {
			values[id] = s
		}
		sh.fromID = nil
		sh.toID = nil
		sh.mu.Unlock()
	}
	d.values = values
	d.frozen = true
}

// Len returns the number of distinct strings interned so far.
func (d *StringDict) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int(d.nextID)
}

// Values returns the frozen value array (nil before Freeze).
func (d *StringDict) Values() []string { return d.values }

type uuidShard struct {
	mu     sync.Mutex
	toID   map[uuid.UUID]uint64
	fromID map[uint64]uuid.UUID
}

// UUIDDict mirrors StringDict but interns parsed, packed 16-byte UUID
// values, per §4.3 step 4 ("intern UUID-shaped strings into the UUID
// dictionary (packed 16-byte form)").
type UUIDDict struct {
	shards [numShards]*uuidShard
	mu     sync.Mutex
	nextID uint64

	frozen bool
	values []uuid.UUID
}

// NewUUIDDict creates an empty, writable UUID dictionary.
func NewUUIDDict() *UUIDDict {
	d := &UUIDDict{}
	for i := range d.shards {
		d.shards[i] = &uuidShard{toID: make(map[uuid.UUID]uint64), fromID: make(map[uint64]uuid.UUID)}
	}
	return d
}

func uuidShardIndex(u uuid.UUID) int {
	return int(xxhash.Sum64(u[:]) % numShards)
}

// GetOrCreate parses s as a canonical UUID and returns its dictionary id,
// allocating a new one on first sight.
func (d *UUIDDict) GetOrCreate(s string) (uint64, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return 0, fmt.Errorf("dict: parsing uuid %q: %w", s, err)
	}
	sh := d.shards[uuidShardIndex(u)]

	sh.mu.Lock()
	if id, ok := sh.toID[u]; ok {
		sh.mu.Unlock()
		return id, nil
	}
	sh.mu.Unlock()

	d.mu.Lock()
	if d.frozen {
		d.mu.Unlock()
		return 0, fmt.Errorf("dict: get-or-create %q: %w", s, ErrFrozen)
	}
	sh.mu.Lock()
	if id, ok := sh.toID[u]; ok {
		sh.mu.Unlock()
		d.mu.Unlock()
		return id, nil
	}
	id := d.nextID
	d.nextID++
	sh.toID[u] = id
	sh.fromID[id] = u
	sh.mu.Unlock()
	d.mu.Unlock()
	return id, nil
}

// Lookup returns the canonical string form of the UUID stored at id.
func (d *UUIDDict) Lookup(id uint64) (string, bool) {
	d.mu.Lock()
	frozen := d.frozen
	values := d.values
	d.mu.Unlock()

	if frozen {
		if id >= uint64(len(values)) {
			return "", false
		}
		return values[id].String(), true
	}
	for _, sh := range d.shards {
		sh.mu.Lock()
		u, ok := sh.fromID[id]
		sh.mu.Unlock()
		if ok {
			return u.String(), true
		}
	}
	return "", false
}

// Freeze snapshots the UUID dictionary into a flat array and discards the
// lookup maps. Idempotent.
func (d *UUIDDict) Freeze() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.frozen {
		return
	}
	values := make([]uuid.UUID, d.nextID)
	for _, sh := range d.shards {
		sh.mu.Lock()
		for id, u := range sh.fromID {
			values[id] = u
		}
		sh.fromID = nil
		sh.toID = nil
		sh.mu.Unlock()
	}
	d.values = values
	d.frozen = true
}

// Len returns the number of distinct UUIDs interned so far.
func (d *UUIDDict) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int(d.nextID)
}
