package store

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fenilsonani/logdb/internal/record"
)

func newTestStore() *Store {
	return New(DefaultConfig())
}

func logRecord(ts int64, level record.Level, message string) *record.Record {
	return &record.Record{
		Timestamp:       ts,
		Level:           level,
		IndexIdentifier: "svc-a",
		Message:         message,
		Log:             &record.LogExtra{Service: "svc-a", Thread: "main"},
	}
}

func TestPutGetExactRoundTrip(t *testing.T) {
	s := newTestStore()
	rec := logRecord(1000, record.LevelInfo, "GET /api/orders id=100 status=200")

	id, err := s.Put(rec)
	require.NoError(t, err)

	got, ok := s.Get(id)
	require.True(t, ok)
	assert.Equal(t, rec.Message, got.Message)
	assert.Equal(t, rec.Timestamp, got.Timestamp)
	assert.Equal(t, rec.Level, got.Level)
	assert.Equal(t, rec.IndexIdentifier, got.IndexIdentifier)
	require.NotNil(t, got.Log)
	assert.Equal(t, "svc-a", got.Log.Service)
}

func TestPutAssignsMonotonicSeq(t *testing.T) {
	s := newTestStore()
	var ids []int64
	for i := 0; i < 5; i++ {
		id, err := s.Put(logRecord(int64(i), record.LevelInfo, "tick"))
		require.NoError(t, err)
		ids = append(ids, id)
	}
	for i, id := range ids {
		assert.Equal(t, int64(i), id)
	}
}

func TestSearchFindsSubstringPreSeal(t *testing.T) {
	s := newTestStore()
	id, err := s.Put(logRecord(1, record.LevelInfo, "payment succeeded for user alice"))
	require.NoError(t, err)
	_, err = s.Put(logRecord(2, record.LevelInfo, "shipment dispatched for order 42"))
	require.NoError(t, err)

	src := s.Search([][]string{{"payment"}}, nil)
	got, ok := src.Next()
	require.True(t, ok)
	assert.Equal(t, id, got)
	_, ok = src.Next()
	assert.False(t, ok, "expected exactly one match")
}

func TestMessageReconstructionAfterGeneralization(t *testing.T) {
	s := newTestStore()
	id1, err := s.Put(logRecord(1, record.LevelInfo, "connect to host alpha succeeded"))
	require.NoError(t, err)
	id2, err := s.Put(logRecord(2, record.LevelInfo, "connect to host beta succeeded"))
	require.NoError(t, err)

	for _, tc := range []struct {
		id  int64
		msg string
	}{{id1, "connect to host alpha succeeded"}, {id2, "connect to host beta succeeded"}} {
		got, ok := s.Get(tc.id)
		require.True(t, ok)
		assert.Equal(t, tc.msg, got.Message)
	}
}

func TestSealIsIdempotentAndPreservesRecords(t *testing.T) {
	s := newTestStore()
	id, err := s.Put(logRecord(5, record.LevelError, "disk full on node seven"))
	require.NoError(t, err)

	require.NoError(t, s.Seal())
	require.NoError(t, s.Seal())

	_, err = s.Put(logRecord(6, record.LevelInfo, "too late"))
	assert.Error(t, err, "Put after seal should fail")

	got, ok := s.Get(id)
	require.True(t, ok)
	assert.Equal(t, "disk full on node seven", got.Message)
}

func TestSealPreservesLevelAndIndexIdentifierViaSegmentHeader(t *testing.T) {
	s := newTestStore()
	rec := &record.Record{
		Timestamp:       1,
		Level:           record.LevelError,
		IndexIdentifier: "svc-error",
		Message:         "disk full on node seven",
		Log:             &record.LogExtra{Service: "svc-error", Thread: "main"},
	}
	id, err := s.Put(rec)
	require.NoError(t, err)

	require.NoError(t, s.Seal())

	got, ok := s.Get(id)
	require.True(t, ok)
	assert.Equal(t, record.LevelError, got.Level, "level should be resolved from the sealed segment's header, not the frozen record bytes")
	assert.Equal(t, "svc-error", got.IndexIdentifier, "index identifier should be resolved from the sealed segment's header")
}

func TestSealPreservesDistinctLevelsAndIndexIdentifiersPerRecord(t *testing.T) {
	s := newTestStore()
	id1, err := s.Put(&record.Record{Timestamp: 1, Level: record.LevelInfo, IndexIdentifier: "svc-a", Message: "heartbeat from node alpha", Log: &record.LogExtra{Service: "svc-a"}})
	require.NoError(t, err)
	id2, err := s.Put(&record.Record{Timestamp: 2, Level: record.LevelWarn, IndexIdentifier: "svc-b", Message: "heartbeat from node beta", Log: &record.LogExtra{Service: "svc-b"}})
	require.NoError(t, err)

	require.NoError(t, s.Seal())

	got1, ok := s.Get(id1)
	require.True(t, ok)
	assert.Equal(t, record.LevelInfo, got1.Level)
	assert.Equal(t, "svc-a", got1.IndexIdentifier)

	got2, ok := s.Get(id2)
	require.True(t, ok)
	assert.Equal(t, record.LevelWarn, got2.Level)
	assert.Equal(t, "svc-b", got2.IndexIdentifier)
}

func TestSearchWorksAfterSeal(t *testing.T) {
	s := newTestStore()
	id, err := s.Put(logRecord(1, record.LevelWarn, "retry budget exhausted for job batch-9"))
	require.NoError(t, err)
	_, err = s.Put(logRecord(2, record.LevelInfo, "unrelated informational message"))
	require.NoError(t, err)

	require.NoError(t, s.Seal())

	src := s.Search([][]string{{"batch"}}, nil)
	got, ok := src.Next()
	require.True(t, ok)
	assert.Equal(t, id, got)
}

func TestClustersGroupsRepeatedShapes(t *testing.T) {
	s := newTestStore()
	for i := 0; i < 3; i++ {
		_, err := s.Put(logRecord(int64(i), record.LevelInfo, "heartbeat from node alpha"))
		require.NoError(t, err)
	}
	_, err := s.Put(logRecord(3, record.LevelError, "fatal kernel panic detected"))
	require.NoError(t, err)

	clusters := s.Clusters()
	var heartbeatCount int64
	for _, c := range clusters {
		if c.Count > heartbeatCount {
			heartbeatCount = c.Count
		}
	}
	assert.EqualValues(t, 3, heartbeatCount, "expected a cluster with Count=3 for the repeated heartbeat message")
}

func TestMessageRecordVariant(t *testing.T) {
	s := newTestStore()
	rec := &record.Record{
		Timestamp:       42,
		Level:           record.LevelMessage,
		IndexIdentifier: "topic-a",
		Message:         "order created for customer 9001",
		Msg: &record.MessageExtra{
			Topic:     "orders",
			Key:       "cust-9001",
			Offset:    123,
			Partition: 2,
			EventID:   "evt-1",
		},
	}
	id, err := s.Put(rec)
	require.NoError(t, err)
	got, ok := s.Get(id)
	require.True(t, ok)
	require.NotNil(t, got.Msg)
	assert.Equal(t, "orders", got.Msg.Topic)
	assert.EqualValues(t, 123, got.Msg.Offset)
	assert.EqualValues(t, 2, got.Msg.Partition)
	assert.Equal(t, "cust-9001", got.Msg.Key)
	assert.Equal(t, "evt-1", got.Msg.EventID)
}

func TestTemplateConvergenceAfterSeal(t *testing.T) {
	s := newTestStore()
	const n = 1000
	ids := make([]int64, n)
	msgs := make([]string, n)
	for i := 0; i < n; i++ {
		msgs[i] = fmt.Sprintf("GET /api/orders id=%d status=200", i)
		id, err := s.Put(logRecord(int64(i), record.LevelInfo, msgs[i]))
		require.NoErrorf(t, err, "Put(%d)", i)
		ids[i] = id
	}

	require.NoError(t, s.Seal())

	clusters := s.Clusters()
	require.Len(t, clusters, 1)
	assert.EqualValues(t, n, clusters[0].Count)

	for i, id := range ids {
		got, ok := s.Get(id)
		require.Truef(t, ok, "Get(%d)", id)
		assert.Equalf(t, msgs[i], got.Message, "Get(%d)", id)
	}
}

func TestGetUnknownIDReturnsFalse(t *testing.T) {
	s := newTestStore()
	_, ok := s.Get(999)
	assert.False(t, ok, "Get of unknown id should return false")
}
