package record

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelStringKnownValues(t *testing.T) {
	cases := map[Level]string{
		LevelInfo:    "INFO",
		LevelWarn:    "WARN",
		LevelDebug:   "DEBUG",
		LevelError:   "ERROR",
		LevelUnknown: "UNKNOWN",
		LevelMessage: "MESSAGE",
	}
	for l, want := range cases {
		assert.Equal(t, want, l.String())
	}
}

func TestParseLevelRoundTrip(t *testing.T) {
	for _, name := range []string{"INFO", "WARN", "DEBUG", "ERROR", "UNKNOWN", "MESSAGE"} {
		l, err := ParseLevel(name)
		require.NoErrorf(t, err, "ParseLevel(%q)", name)
		assert.Equal(t, name, l.String())
	}
	_, err := ParseLevel("NOPE")
	assert.Error(t, err)
}

func TestLevelJSONRoundTrip(t *testing.T) {
	rec := &Record{Level: LevelError, Message: "boom"}
	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var got Record
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, LevelError, got.Level)
}

func TestLevelUnmarshalAcceptsRawInteger(t *testing.T) {
	var l Level
	require.NoError(t, json.Unmarshal([]byte("1"), &l))
	assert.Equal(t, LevelWarn, l)
}

func TestIsLogIsMsg(t *testing.T) {
	logRec := &Record{Log: &LogExtra{Service: "api"}}
	assert.True(t, logRec.IsLog())
	assert.False(t, logRec.IsMsg())

	msgRec := &Record{Msg: &MessageExtra{Topic: "orders"}}
	assert.False(t, msgRec.IsLog())
	assert.True(t, msgRec.IsMsg())
}
