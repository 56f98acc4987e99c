// Package engine is the facade over the trigram index, Drain miner, and
// compressed record store: put/search/get/seal/cluster_summary, the only
// interface the external collaborators (UI, broker wiring, pod watcher,
// config loader) are meant to see.
//
// Modeled on the teacher's pkg/vcs.Repository facade over
// internal/core/objects.Storage: a thin wrapper owning construction and
// wiring, with each operation a short method that delegates to the
// underlying package and wraps its error.
package engine

import (
	"fmt"

	"github.com/fenilsonani/logdb/internal/drain"
	"github.com/fenilsonani/logdb/internal/merge"
	"github.com/fenilsonani/logdb/internal/record"
	"github.com/fenilsonani/logdb/internal/store"
)

// Config tunes the engine's Bloom false-positive rate, Drain tree shape,
// and store resource bounds. Zero value resolves to DefaultConfig.
type Config struct {
	FalsePositiveRate float64
	Drain             drain.Config
	CheckpointStride  int
	WriterQueueDepth  int
}

// DefaultConfig returns the spec-pinned defaults.
func DefaultConfig() Config {
	sc := store.DefaultConfig()
	return Config{
		FalsePositiveRate: sc.FalsePositiveRate,
		Drain:             sc.Drain,
		CheckpointStride:  sc.CheckpointStride,
		WriterQueueDepth:  sc.WriterQueueDepth,
	}
}

// Engine wires together the core subsystems behind the five public
// operations.
type Engine struct {
	st *store.Store
}

// New creates an Engine ready to accept Put calls.
func New(cfg Config) *Engine {
	return &Engine{st: store.New(store.Config{
		FalsePositiveRate: cfg.FalsePositiveRate,
		Drain:             cfg.Drain,
		CheckpointStride:  cfg.CheckpointStride,
		WriterQueueDepth:  cfg.WriterQueueDepth,
	})}
}

// Put stores rec and returns its assigned id.
func (e *Engine) Put(rec *record.Record) (int64, error) {
	id, err := e.st.Put(rec)
	if err != nil {
		return 0, fmt.Errorf("engine: put: %w", err)
	}
	return id, nil
}

// Search evaluates predicate (outer AND of inner OR-groups of substrings)
// and returns a lazy descending id stream. filter may be nil.
func (e *Engine) Search(predicate [][]string, filter func(id int64) bool) merge.Source {
	return e.st.Search(predicate, filter)
}

// Get returns the record stored under id, if present.
func (e *Engine) Get(id int64) (*record.Record, bool) {
	return e.st.Get(id)
}

// Seal transitions the engine to its immutable, compacted state. Calling
// Seal again is a no-op.
func (e *Engine) Seal() error {
	if err := e.st.Seal(); err != nil {
		return fmt.Errorf("engine: seal: %w", err)
	}
	return nil
}

// ClusterSummary reports the engine's learned templates.
func (e *Engine) ClusterSummary() []store.ClusterInfo {
	return e.st.Clusters()
}
