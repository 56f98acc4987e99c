// Package store implements the compressed record store: a single-writer
// OPEN map of encoded records that transitions, once and irreversibly, to
// an immutable SEALED packed segment with a checkpointed id index.
//
// The writer-goroutine-over-a-bounded-channel shape and the completion
// handle on each request mirror the teacher's internal/turbo/database.go
// background worker, and the seal pass's parallel re-decode fans out with
// golang.org/x/sync/errgroup the way internal/pack/hyperpack.go parallelizes
// its chunk compression (zstd itself is dropped — see DESIGN.md).
package store

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/fenilsonani/logdb/internal/core/index"
	"github.com/fenilsonani/logdb/internal/dict"
	"github.com/fenilsonani/logdb/internal/drain"
	"github.com/fenilsonani/logdb/internal/merge"
	"github.com/fenilsonani/logdb/internal/record"
	"github.com/fenilsonani/logdb/internal/tokenize"
	"github.com/fenilsonani/logdb/internal/wire"
)

// ErrSealed is returned by Put once the store has been sealed.
var ErrSealed = errors.New("store: sealed")

const (
	DefaultCheckpointStride  = 128
	DefaultWriterQueueDepth  = 1024
	domainTagLog             = 1
	domainTagMsg             = 2
	extraKindLog             = 1
	extraKindMsg             = 2
	varTagLong               = 1
	varTagUUID               = 2
	varTagString             = 3
)

// Config tunes the store's Drain miner, Bloom false-positive rate, and
// write-path resource bounds.
type Config struct {
	FalsePositiveRate float64
	Drain             drain.Config
	CheckpointStride  int
	WriterQueueDepth  int
}

// DefaultConfig returns the spec's pinned defaults.
func DefaultConfig() Config {
	return Config{
		FalsePositiveRate: 0,
		Drain:             drain.DefaultConfig(),
		CheckpointStride:  DefaultCheckpointStride,
		WriterQueueDepth:  DefaultWriterQueueDepth,
	}
}

// ClusterInfo describes one learned template for cluster_summary.
type ClusterInfo struct {
	Count        int64
	Level        record.Level
	TemplateText string
	SourceTag    string
}

type openRecord struct {
	bytes      []byte
	templateID int64
}

type putRequest struct {
	rec  *record.Record
	resp chan putResult
}

type putResult struct {
	id  int64
	err error
}

// Store is the compressed record store facade: OPEN while accepting
// writes, SEALED once seal() completes.
type Store struct {
	cfg Config

	strDict  *dict.StringDict
	uuidDict *dict.UUIDDict
	idx      *index.Index

	templateCounter int64 // shared id allocator, OPEN miner and seal miner both draw from it

	miner *drain.Miner

	// nextSeq is mutated only inside ingest, which runs exclusively on the
	// writer goroutine; no lock is needed for it.
	nextSeq   int64
	hasBaseTS bool
	baseTS    atomic.Int64

	openRecords   sync.Map // seq(int64) -> *openRecord
	templatesByID sync.Map // templateID(int64) -> *drain.Template

	reqCh      chan putRequest
	writerDone chan struct{}

	sealed  atomic.Bool
	segment atomic.Pointer[Segment]
}

// New starts a Store's writer goroutine and returns it ready to accept
// puts.
func New(cfg Config) *Store {
	if cfg.CheckpointStride <= 0 {
		cfg.CheckpointStride = DefaultCheckpointStride
	}
	if cfg.WriterQueueDepth <= 0 {
		cfg.WriterQueueDepth = DefaultWriterQueueDepth
	}
	s := &Store{
		cfg:      cfg,
		strDict:  dict.NewStringDict(),
		uuidDict: dict.NewUUIDDict(),
		idx:      index.New(cfg.FalsePositiveRate),
		reqCh:    make(chan putRequest, cfg.WriterQueueDepth),
		writerDone: make(chan struct{}),
	}
	s.miner = drain.New(cfg.Drain, s.allocTemplateID)
	go s.writerLoop()
	return s
}

func (s *Store) allocTemplateID() int64 {
	return atomic.AddInt64(&s.templateCounter, 1) - 1
}

// Put enqueues rec for the writer and blocks until it is durably in the
// OPEN map (or the store is sealed).
func (s *Store) Put(rec *record.Record) (int64, error) {
	if s.sealed.Load() {
		return 0, fmt.Errorf("store: put: %w", ErrSealed)
	}
	resp := make(chan putResult, 1)
	s.reqCh <- putRequest{rec: rec, resp: resp}
	res := <-resp
	if res.err != nil {
		return 0, res.err
	}
	return res.id, nil
}

func (s *Store) writerLoop() {
	defer close(s.writerDone)
	for req := range s.reqCh {
		id, err := s.ingest(req.rec)
		req.resp <- putResult{id: id, err: err}
	}
}

// ingest runs entirely on the writer goroutine; no locking is needed for
// nextSeq/baseTS/miner/dict mutation beyond what dict and index already
// provide for concurrent readers.
func (s *Store) ingest(rec *record.Record) (int64, error) {
	seq := s.nextSeq
	s.nextSeq++
	rec.Seq = seq

	if !s.hasBaseTS {
		s.hasBaseTS = true
		s.baseTS.Store(rec.Timestamp)
	}
	deltaTS := rec.Timestamp - s.baseTS.Load()
	if deltaTS < 0 {
		deltaTS = 0
	}

	tokens := tokenize.Tokenize(rec.Message)
	cluster := s.miner.Learn(rec.Message)
	s.templatesByID.Store(cluster.Template.ID, cluster.Template)

	positions := cluster.Template.WildcardPositions()
	values := make([]string, len(positions))
	for i, p := range positions {
		if p < len(tokens) {
			values[i] = tokens[p]
		}
	}

	if err := s.idx.Add(seq, rec.Message); err != nil {
		return 0, fmt.Errorf("store: indexing record %d: %w", seq, err)
	}

	indexID, err := s.strDict.GetOrCreate(rec.IndexIdentifier)
	if err != nil {
		return 0, fmt.Errorf("store: interning index identifier: %w", err)
	}

	encoded, err := s.encodeRecord(rec, uint64(deltaTS), cluster.Template.ID, positions, values, indexID)
	if err != nil {
		return 0, fmt.Errorf("store: encoding record %d: %w", seq, err)
	}

	s.openRecords.Store(seq, &openRecord{bytes: encoded, templateID: cluster.Template.ID})
	return seq, nil
}

func domainTagOf(rec *record.Record) int {
	if rec.Msg != nil {
		return domainTagMsg
	}
	return domainTagLog
}

// encodeRecord writes the OPEN-state record format of §4.3 step 6, keyed by
// a pre-resolved index-identifier dictionary id. Every record carries its
// own domain tag, level, and index-identifier id inline.
func (s *Store) encodeRecord(rec *record.Record, deltaTS uint64, templateID int64, positions []int, values []string, indexID uint64) ([]byte, error) {
	w := wire.NewWriter()

	w.PutUvarint(uint64(domainTagOf(rec)))
	w.PutUvarint(deltaTS)
	w.PutUvarint(uint64(templateID))
	w.PutUvarint(uint64(len(positions)))
	prev := 0
	for _, p := range positions {
		w.PutUvarint(uint64(p - prev))
		prev = p
	}
	w.PutUvarint(uint64(rec.Level))
	w.PutUvarint(indexID)

	if err := s.encodeRecordBody(w, rec, values); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// encodeFrozenRecord writes the sealed/frozen record format of §6: the
// domain tag, level, and index-identifier id are dropped from the per-record
// bytes because a sealed segment carries them once per record in its own
// header arrays instead (spec.md:132: seal step 5 "drop[s] domain tag and
// level/identifier (they are pulled from a segment header)").
func (s *Store) encodeFrozenRecord(rec *record.Record, deltaTS uint64, templateID int64, positions []int, values []string) ([]byte, error) {
	w := wire.NewWriter()

	w.PutUvarint(deltaTS)
	w.PutUvarint(uint64(templateID))
	w.PutUvarint(uint64(len(positions)))
	prev := 0
	for _, p := range positions {
		w.PutUvarint(uint64(p - prev))
		prev = p
	}

	if err := s.encodeRecordBody(w, rec, values); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// encodeRecordBody writes the extra block and variable values shared by
// both the OPEN and frozen record formats. A record with neither Log nor
// Msg is written with extra_tag 0 (absent).
func (s *Store) encodeRecordBody(w *wire.Writer, rec *record.Record, values []string) error {
	if rec.Log != nil {
		w.PutUvarint(1) // extra_tag: present
		w.PutUvarint(extraKindLog)
		if err := s.encodeLogExtra(w, rec.Log); err != nil {
			return err
		}
	} else if rec.Msg != nil {
		w.PutUvarint(1) // extra_tag: present
		w.PutUvarint(extraKindMsg)
		if err := s.encodeMsgExtra(w, rec.Msg); err != nil {
			return err
		}
	} else {
		w.PutUvarint(0) // extra_tag: absent
	}

	for _, v := range values {
		if err := s.encodeVarValue(w, v); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) encodeOptionalString(w *wire.Writer, v string) error {
	if v == "" {
		w.PutNullRef()
		return nil
	}
	id, err := s.strDict.GetOrCreate(v)
	if err != nil {
		return err
	}
	w.PutStringRef(id)
	return nil
}

func (s *Store) encodeLogExtra(w *wire.Writer, e *record.LogExtra) error {
	for _, v := range []string{e.Thread, e.Service, e.ServiceVersion, e.Logger} {
		id, err := s.strDict.GetOrCreate(v)
		if err != nil {
			return err
		}
		w.PutUvarint(id)
	}
	for _, v := range []string{e.CorrelationID, e.RequestID, e.ErrorMessage, e.StackTrace} {
		if err := s.encodeOptionalString(w, v); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) encodeMsgExtra(w *wire.Writer, e *record.MessageExtra) error {
	topicID, err := s.strDict.GetOrCreate(e.Topic)
	if err != nil {
		return err
	}
	w.PutUvarint(topicID)
	if err := s.encodeOptionalString(w, e.Key); err != nil {
		return err
	}
	w.PutVarlong(e.Offset)
	w.PutUvarint(uint64(uint32(e.Partition)))
	headersID, err := s.strDict.GetOrCreate(e.Headers)
	if err != nil {
		return err
	}
	w.PutUvarint(headersID)
	if err := s.encodeOptionalString(w, e.CorrelationID); err != nil {
		return err
	}
	if err := s.encodeOptionalString(w, e.RequestID); err != nil {
		return err
	}
	eventID, err := s.strDict.GetOrCreate(e.EventID)
	if err != nil {
		return err
	}
	w.PutUvarint(eventID)
	return nil
}

// encodeVarValue classifies and writes a single variable token: canonical
// (lowercase, 36-char) UUID shape wins first, then an integer whose decimal
// form reproduces the token exactly, else a raw dictionary string, so that
// decoding always yields the original token.
func (s *Store) encodeVarValue(w *wire.Writer, token string) error {
	if u, err := uuid.Parse(token); err == nil && u.String() == token {
		id, err := s.uuidDict.GetOrCreate(token)
		if err != nil {
			return err
		}
		w.PutUvarint(varTagUUID)
		w.PutUvarint(id)
		return nil
	}
	if n, ok := parseInt64(token); ok && formatInt64(n) == token {
		w.PutUvarint(varTagLong)
		w.PutVarlong(n)
		return nil
	}
	id, err := s.strDict.GetOrCreate(token)
	if err != nil {
		return err
	}
	w.PutUvarint(varTagString)
	w.PutUvarint(id)
	return nil
}

func parseInt64(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	neg := false
	i := 0
	if s[0] == '-' || s[0] == '+' {
		neg = s[0] == '-'
		i = 1
	}
	if i >= len(s) {
		return 0, false
	}
	var n int64
	for ; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int64(c-'0')
	}
	if neg {
		n = -n
	}
	return n, true
}

// stringLookup resolves dictionary ids during decode, switching between
// the OPEN dictionaries and the frozen arrays depending on store state.
type stringLookup interface {
	LookupString(id uint64) (string, bool)
	LookupUUID(id uint64) (string, bool)
}

type openLookup struct{ s *Store }

func (l openLookup) LookupString(id uint64) (string, bool) { return l.s.strDict.Lookup(id) }
func (l openLookup) LookupUUID(id uint64) (string, bool)   { return l.s.uuidDict.Lookup(id) }

type frozenLookup struct{ seg *Segment }

func (l frozenLookup) LookupString(id uint64) (string, bool) {
	if id >= uint64(len(l.seg.StringDict)) {
		return "", false
	}
	return l.seg.StringDict[id], true
}

func (l frozenLookup) LookupUUID(id uint64) (string, bool) {
	if id >= uint64(len(l.seg.UUIDDict)) {
		return "", false
	}
	return l.seg.UUIDDict[id], true
}

func decodeOptionalString(r *wire.Reader, lk stringLookup) (string, error) {
	kind, id, err := r.NullableRef()
	if err != nil {
		return "", err
	}
	switch kind {
	case wire.RefNull:
		return "", nil
	case wire.RefString:
		s, ok := lk.LookupString(id)
		if !ok {
			return "", fmt.Errorf("store: decode: %w", wire.ErrCorrupt)
		}
		return s, nil
	default:
		return "", fmt.Errorf("store: decode: unexpected ref kind: %w", wire.ErrCorrupt)
	}
}

func decodeVarValue(r *wire.Reader, lk stringLookup) (string, error) {
	tag, err := r.Uvarint()
	if err != nil {
		return "", err
	}
	switch tag {
	case varTagLong:
		n, err := r.Varlong()
		if err != nil {
			return "", err
		}
		return formatInt64(n), nil
	case varTagUUID:
		id, err := r.Uvarint()
		if err != nil {
			return "", err
		}
		s, ok := lk.LookupUUID(id)
		if !ok {
			return "", fmt.Errorf("store: decode: unknown uuid id %d: %w", id, wire.ErrCorrupt)
		}
		return s, nil
	case varTagString:
		id, err := r.Uvarint()
		if err != nil {
			return "", err
		}
		s, ok := lk.LookupString(id)
		if !ok {
			return "", fmt.Errorf("store: decode: unknown string id %d: %w", id, wire.ErrCorrupt)
		}
		return s, nil
	default:
		return "", fmt.Errorf("store: decode: unknown var tag %d: %w", tag, wire.ErrCorrupt)
	}
}

func formatInt64(n int64) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	u := uint64(n)
	if neg {
		u = uint64(-n)
	}
	var buf [20]byte
	i := len(buf)
	for u > 0 {
		i--
		buf[i] = byte('0' + u%10)
		u /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// decodePositions reads the var_count/pos_deltas pair shared by both record
// formats and reconstructs the absolute wildcard positions.
func decodePositions(r *wire.Reader) ([]int, error) {
	varCount, err := r.Uvarint()
	if err != nil {
		return nil, err
	}
	positions := make([]int, varCount)
	prev := 0
	for i := range positions {
		d, err := r.Uvarint()
		if err != nil {
			return nil, err
		}
		prev += int(d)
		positions[i] = prev
	}
	return positions, nil
}

// decodeRecordTail reads the extra block and the var_count variable values —
// the suffix both the OPEN and frozen record formats share — and
// reconstructs rec.Message from originTokens.
func decodeRecordTail(r *wire.Reader, rec *record.Record, positions []int, originTokens []string, lk stringLookup) error {
	extraTag, err := r.Uvarint()
	if err != nil {
		return err
	}
	if extraTag == 1 {
		kind, err := r.Uvarint()
		if err != nil {
			return err
		}
		switch kind {
		case extraKindLog:
			log, err := decodeLogExtra(r, lk)
			if err != nil {
				return err
			}
			rec.Log = log
		case extraKindMsg:
			msg, err := decodeMsgExtra(r, lk)
			if err != nil {
				return err
			}
			rec.Msg = msg
		default:
			return fmt.Errorf("store: decode: unknown extra kind %d: %w", kind, wire.ErrCorrupt)
		}
	}

	tokens := append([]string(nil), originTokens...)
	for _, p := range positions {
		val, err := decodeVarValue(r, lk)
		if err != nil {
			return err
		}
		if p < len(tokens) {
			tokens[p] = val
		}
	}
	rec.Message = tokenize.Join(tokens)
	return nil
}

// decodeRecord reverses encodeRecord against the cluster's frozen origin
// tokens (see drain.Template.OriginTokens) and a dictionary lookup. baseTS
// is added back to the stored delta. Used only for OPEN-state records, which
// carry their own domain tag, level, and index-identifier id inline.
func decodeRecord(data []byte, originTokens []string, lk stringLookup, baseTS int64) (*record.Record, error) {
	r := wire.NewReader(data)

	if _, err := r.Uvarint(); err != nil { // domain tag: redundant with extra_kind, not needed to decode
		return nil, err
	}
	deltaTS, err := r.Uvarint()
	if err != nil {
		return nil, err
	}
	if _, err := r.Uvarint(); err != nil { // template id: the caller already resolved originTokens from it
		return nil, err
	}
	positions, err := decodePositions(r)
	if err != nil {
		return nil, err
	}
	levelU, err := r.Uvarint()
	if err != nil {
		return nil, err
	}
	indexID, err := r.Uvarint()
	if err != nil {
		return nil, err
	}
	indexIdentifier, ok := lk.LookupString(indexID)
	if !ok {
		return nil, fmt.Errorf("store: decode: unknown index identifier id %d: %w", indexID, wire.ErrCorrupt)
	}

	rec := &record.Record{
		Timestamp:       baseTS + int64(deltaTS),
		Level:           record.Level(levelU),
		IndexIdentifier: indexIdentifier,
	}
	if err := decodeRecordTail(r, rec, positions, originTokens, lk); err != nil {
		return nil, err
	}
	return rec, nil
}

// decodeFrozenRecord reverses encodeFrozenRecord. level and indexIdentifier
// are not present in data; they come from the sealed segment's per-record
// header arrays instead (spec.md §6 "Segment layout": header { domain_kind,
// level, index_identifier_id }).
func decodeFrozenRecord(data []byte, level record.Level, indexIdentifier string, originTokens []string, lk stringLookup, baseTS int64) (*record.Record, error) {
	r := wire.NewReader(data)

	deltaTS, err := r.Uvarint()
	if err != nil {
		return nil, err
	}
	if _, err := r.Uvarint(); err != nil { // template id: the caller already resolved originTokens from it
		return nil, err
	}
	positions, err := decodePositions(r)
	if err != nil {
		return nil, err
	}

	rec := &record.Record{
		Timestamp:       baseTS + int64(deltaTS),
		Level:           level,
		IndexIdentifier: indexIdentifier,
	}
	if err := decodeRecordTail(r, rec, positions, originTokens, lk); err != nil {
		return nil, err
	}
	return rec, nil
}

func decodeLogExtra(r *wire.Reader, lk stringLookup) (*record.LogExtra, error) {
	var ids [4]uint64
	for i := range ids {
		id, err := r.Uvarint()
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}
	var strs [4]string
	for i, id := range ids {
		s, ok := lk.LookupString(id)
		if !ok {
			return nil, fmt.Errorf("store: decode log extra: %w", wire.ErrCorrupt)
		}
		strs[i] = s
	}
	corr, err := decodeOptionalString(r, lk)
	if err != nil {
		return nil, err
	}
	req, err := decodeOptionalString(r, lk)
	if err != nil {
		return nil, err
	}
	errMsg, err := decodeOptionalString(r, lk)
	if err != nil {
		return nil, err
	}
	stack, err := decodeOptionalString(r, lk)
	if err != nil {
		return nil, err
	}
	return &record.LogExtra{
		Thread:         strs[0],
		Service:        strs[1],
		ServiceVersion: strs[2],
		Logger:         strs[3],
		CorrelationID:  corr,
		RequestID:      req,
		ErrorMessage:   errMsg,
		StackTrace:     stack,
	}, nil
}

func decodeMsgExtra(r *wire.Reader, lk stringLookup) (*record.MessageExtra, error) {
	topicID, err := r.Uvarint()
	if err != nil {
		return nil, err
	}
	topic, ok := lk.LookupString(topicID)
	if !ok {
		return nil, fmt.Errorf("store: decode msg extra: %w", wire.ErrCorrupt)
	}
	key, err := decodeOptionalString(r, lk)
	if err != nil {
		return nil, err
	}
	offset, err := r.Varlong()
	if err != nil {
		return nil, err
	}
	partitionU, err := r.Uvarint()
	if err != nil {
		return nil, err
	}
	headersID, err := r.Uvarint()
	if err != nil {
		return nil, err
	}
	headers, ok := lk.LookupString(headersID)
	if !ok {
		return nil, fmt.Errorf("store: decode msg extra: %w", wire.ErrCorrupt)
	}
	corr, err := decodeOptionalString(r, lk)
	if err != nil {
		return nil, err
	}
	req, err := decodeOptionalString(r, lk)
	if err != nil {
		return nil, err
	}
	eventID, err := r.Uvarint()
	if err != nil {
		return nil, err
	}
	event, ok := lk.LookupString(eventID)
	if !ok {
		return nil, fmt.Errorf("store: decode msg extra: %w", wire.ErrCorrupt)
	}
	return &record.MessageExtra{
		Topic:         topic,
		Key:           key,
		Offset:        offset,
		Partition:     int32(uint32(partitionU)),
		Headers:       headers,
		CorrelationID: corr,
		RequestID:     req,
		EventID:       event,
	}, nil
}

// Get returns the record stored at id, if present.
func (s *Store) Get(id int64) (*record.Record, bool) {
	if seg := s.segment.Load(); seg != nil {
		return seg.Get(id)
	}
	v, ok := s.openRecords.Load(id)
	if !ok {
		return nil, false
	}
	or := v.(*openRecord)
	tv, ok := s.templatesByID.Load(or.templateID)
	if !ok {
		return nil, false
	}
	tmpl := tv.(*drain.Template)
	rec, err := decodeRecord(or.bytes, tmpl.OriginTokens, openLookup{s}, s.baseTS.Load())
	if err != nil {
		return nil, false
	}
	rec.Seq = id
	return rec, true
}

// Search evaluates predicate against the full-text trigram index and
// returns a lazy descending id stream. The same index serves both states;
// Seal compacts it in place.
func (s *Store) Search(predicate [][]string, filter func(int64) bool) merge.Source {
	return s.idx.Search(predicate, index.Filter(filter))
}

// Clusters reports the store's current (or, once sealed, final) learned
// templates.
func (s *Store) Clusters() []ClusterInfo {
	if seg := s.segment.Load(); seg != nil {
		return seg.Clusters
	}
	var out []ClusterInfo
	for _, c := range s.miner.Clusters() {
		out = append(out, ClusterInfo{
			Count:        c.Seen,
			TemplateText: tokenize.Join(c.Template.Tokens),
			SourceTag:    "open",
		})
	}
	return out
}

// Seal drains the writer, re-mines a final template set, and installs an
// immutable packed segment. Calling Seal again is a no-op.
func (s *Store) Seal() error {
	if !s.sealed.CompareAndSwap(false, true) {
		return nil
	}
	close(s.reqCh)
	<-s.writerDone

	type item struct {
		seq int64
		or  *openRecord
	}
	var items []item
	s.openRecords.Range(func(k, v any) bool {
		items = append(items, item{seq: k.(int64), or: v.(*openRecord)})
		return true
	})
	sort.Slice(items, func(i, j int) bool { return items[i].seq < items[j].seq })

	decoded := make([]*record.Record, len(items))
	var eg errgroup.Group
	for i := range items {
		i := i
		eg.Go(func() error {
			tv, ok := s.templatesByID.Load(items[i].or.templateID)
			if !ok {
				return nil // dropped per §7: internal decode errors drop the record, seal still succeeds
			}
			tmpl := tv.(*drain.Template)
			rec, err := decodeRecord(items[i].or.bytes, tmpl.OriginTokens, openLookup{s}, s.baseTS.Load())
			if err != nil {
				return nil
			}
			rec.Seq = items[i].seq
			decoded[i] = rec
			return nil
		})
	}
	_ = eg.Wait()

	freshMiner := drain.New(s.cfg.Drain, s.allocTemplateID)
	type finalRec struct {
		seq   int64
		bytes []byte
	}
	final := make([]finalRec, 0, len(decoded))
	freshTemplatesByID := make(map[int64]*drain.Template)

	// Per-record domain_kind/level/index_identifier_id, aligned by position
	// with final/offsets/ids: the segment header that the frozen record
	// bytes themselves no longer carry.
	headerDomainKind := make([]byte, 0, len(decoded))
	headerLevel := make([]record.Level, 0, len(decoded))
	headerIndexIdentifierID := make([]uint64, 0, len(decoded))

	for i, rec := range decoded {
		if rec == nil {
			continue
		}
		tokens := tokenize.Tokenize(rec.Message)
		cluster := freshMiner.Learn(rec.Message)
		freshTemplatesByID[cluster.Template.ID] = cluster.Template

		positions := cluster.Template.WildcardPositions()
		values := make([]string, len(positions))
		for j, p := range positions {
			if p < len(tokens) {
				values[j] = tokens[p]
			}
		}
		indexID, err := s.strDict.GetOrCreate(rec.IndexIdentifier)
		if err != nil {
			continue
		}
		encoded, err := s.encodeFrozenRecord(rec, uint64(rec.Timestamp-s.baseTS.Load()), cluster.Template.ID, positions, values)
		if err != nil {
			continue
		}
		final = append(final, finalRec{seq: items[i].seq, bytes: encoded})
		headerDomainKind = append(headerDomainKind, byte(domainTagOf(rec)))
		headerLevel = append(headerLevel, rec.Level)
		headerIndexIdentifierID = append(headerIndexIdentifierID, indexID)
	}

	s.strDict.Freeze()
	s.uuidDict.Freeze()
	if err := s.idx.Seal(); err != nil && !errors.Is(err, index.ErrAlreadySealed) {
		return fmt.Errorf("store: sealing index: %w", err)
	}

	w := wire.NewWriter()
	offsets := make([]int64, 0, len(final)+1)
	ids := make([]int64, 0, len(final))
	offsets = append(offsets, 0)
	for _, f := range final {
		w.PutBytes(f.bytes)
		offsets = append(offsets, int64(w.Len()))
		ids = append(ids, f.seq)
	}

	stride := s.cfg.CheckpointStride
	var checkpointIDs []int64
	var checkpointDeltaOffsets []int64
	dw := wire.NewWriter()
	for i, id := range ids {
		if i > 0 {
			dw.PutVarlong(id - ids[i-1])
		}
		// The offset points just past this record's own delta, so indexOf's
		// forward walk from a checkpoint starts with the next record's delta.
		if i%stride == 0 {
			checkpointIDs = append(checkpointIDs, id)
			checkpointDeltaOffsets = append(checkpointDeltaOffsets, int64(dw.Len()))
		}
	}

	templatesByID := make(map[int64]*drain.Template, len(freshTemplatesByID))
	for id, t := range freshTemplatesByID {
		templatesByID[id] = t
	}

	var clusters []ClusterInfo
	for _, c := range freshMiner.Clusters() {
		clusters = append(clusters, ClusterInfo{
			Count:        c.Seen,
			TemplateText: tokenize.Join(c.Template.Tokens),
			SourceTag:    "sealed",
		})
	}

	seg := &Segment{
		blob:                    w.Bytes(),
		offsets:                 offsets,
		ids:                     ids,
		checkpointIDs:           checkpointIDs,
		checkpointDeltaOffsets:  checkpointDeltaOffsets,
		deltaStream:             dw.Bytes(),
		stride:                  stride,
		templatesByID:           templatesByID,
		StringDict:              s.strDict.Values(),
		UUIDDict:                uuidDictValues(s.uuidDict),
		baseTS:                  s.baseTS.Load(),
		headerDomainKind:        headerDomainKind,
		headerLevel:             headerLevel,
		headerIndexIdentifierID: headerIndexIdentifierID,
		Clusters:                clusters,
	}
	s.segment.Store(seg)
	return nil
}

func uuidDictValues(d *dict.UUIDDict) []string {
	n := d.Len()
	out := make([]string, n)
	for i := 0; i < n; i++ {
		s, ok := d.Lookup(uint64(i))
		if !ok {
			continue
		}
		out[i] = s
	}
	return out
}

// Segment is the immutable packed representation installed at Seal.
type Segment struct {
	blob    []byte
	offsets []int64
	ids     []int64

	checkpointIDs          []int64
	checkpointDeltaOffsets []int64
	deltaStream            []byte
	stride                 int

	templatesByID map[int64]*drain.Template
	StringDict    []string
	UUIDDict      []string
	baseTS        int64

	// header holds the per-record domain_kind/level/index_identifier_id
	// that the frozen record format drops from its own bytes (spec.md §6
	// "Segment layout": header { domain_kind, level, index_identifier_id }),
	// aligned by position with ids/offsets.
	headerDomainKind        []byte
	headerLevel             []record.Level
	headerIndexIdentifierID []uint64

	Clusters []ClusterInfo
}

// indexOf implements the §4.3 random-access algorithm: checkpoint binary
// search then a forward delta-stream walk.
func (seg *Segment) indexOf(id int64) (int, bool) {
	if len(seg.checkpointIDs) == 0 {
		return -1, false
	}
	cp := sort.Search(len(seg.checkpointIDs), func(i int) bool { return seg.checkpointIDs[i] > id }) - 1
	if cp < 0 {
		return -1, false
	}

	idx := cp * seg.stride
	curID := seg.checkpointIDs[cp]
	if curID == id {
		return idx, true
	}

	r := wire.NewReader(seg.deltaStream[seg.checkpointDeltaOffsets[cp]:])
	for idx+1 < len(seg.ids) {
		delta, err := r.Varlong()
		if err != nil {
			return -1, false
		}
		curID += delta
		idx++
		if curID == id {
			return idx, true
		}
		if curID > id {
			return -1, false
		}
	}
	return -1, false
}

// Get decodes the record stored under id from the packed blob, pulling its
// domain kind, level, and index identifier from the segment header rather
// than the (frozen-format) record bytes.
func (seg *Segment) Get(id int64) (*record.Record, bool) {
	idx, ok := seg.indexOf(id)
	if !ok {
		return nil, false
	}
	data := seg.blob[seg.offsets[idx]:seg.offsets[idx+1]]

	r := wire.NewReader(data)
	templateID, err := peekFrozenTemplateID(r)
	if err != nil {
		return nil, false
	}
	tmpl, ok := seg.templatesByID[templateID]
	if !ok {
		return nil, false
	}

	lk := frozenLookup{seg}
	indexIdentifier, ok := lk.LookupString(seg.headerIndexIdentifierID[idx])
	if !ok {
		return nil, false
	}
	rec, err := decodeFrozenRecord(data, seg.headerLevel[idx], indexIdentifier, tmpl.OriginTokens, lk, seg.baseTS)
	if err != nil {
		return nil, false
	}
	rec.Seq = id
	return rec, true
}

// peekFrozenTemplateID reads just far enough into a frozen record (delta_ts,
// then template_id) to learn its template id, without disturbing the
// caller's own reader.
func peekFrozenTemplateID(r *wire.Reader) (int64, error) {
	cp := *r
	if _, err := cp.Uvarint(); err != nil { // delta ts
		return 0, err
	}
	id, err := cp.Uvarint()
	if err != nil {
		return 0, err
	}
	return int64(id), nil
}
