package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRecordsFile(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "records.ndjson")
	content := strings.Join(lines, "\n") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadRecordsParsesNDJSONAndSkipsBlankLines(t *testing.T) {
	path := writeRecordsFile(t,
		`{"timestamp":1,"level":"INFO","index_identifier":"svc","message":"hello"}`,
		``,
		`{"timestamp":2,"level":"ERROR","index_identifier":"svc","message":"world"}`,
	)

	recs, err := readRecords(path)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "hello", recs[0].Message)
	assert.Equal(t, "world", recs[1].Message)
}

func TestReadRecordsRejectsMalformedLine(t *testing.T) {
	path := writeRecordsFile(t, `not json`)
	_, err := readRecords(path)
	assert.Error(t, err)
}

func TestBuildEngineAssignsIDsAndSealsOnRequest(t *testing.T) {
	path := writeRecordsFile(t,
		`{"timestamp":1,"level":"INFO","index_identifier":"svc","message":"connect to host alpha"}`,
		`{"timestamp":2,"level":"INFO","index_identifier":"svc","message":"connect to host beta"}`,
	)

	e, ids, err := buildEngine(path, true)
	require.NoError(t, err)
	require.Len(t, ids, 2)

	got, ok := e.Get(ids[0])
	require.True(t, ok)
	assert.Equal(t, "connect to host alpha", got.Message)
}
