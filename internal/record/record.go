// Package record defines the domain data model: the tagged Record variant
// (LogExtra or MessageExtra) carried end to end from put through storage and
// back out of get.
//
// Adapted from the teacher's internal/core/objects type shape (plain
// exported structs, small closed enums, no inheritance) per
// internal/core/objects/types.go.
package record

import (
	"encoding/json"
	"fmt"
)

// Level is the closed set of record severities.
type Level uint8

const (
	LevelInfo Level = iota
	LevelWarn
	LevelDebug
	LevelError
	LevelUnknown
	LevelMessage
)

// String renders the level the way cluster_summary and the CLI report it.
func (l Level) String() string {
	switch l {
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelDebug:
		return "DEBUG"
	case LevelError:
		return "ERROR"
	case LevelUnknown:
		return "UNKNOWN"
	case LevelMessage:
		return "MESSAGE"
	default:
		return fmt.Sprintf("LEVEL(%d)", uint8(l))
	}
}

// levelNames is the canonical string form used by MarshalJSON/UnmarshalJSON
// so NDJSON input and cluster_summary output can use "INFO" rather than a
// raw uint8.
var levelNames = map[Level]string{
	LevelInfo:    "INFO",
	LevelWarn:    "WARN",
	LevelDebug:   "DEBUG",
	LevelError:   "ERROR",
	LevelUnknown: "UNKNOWN",
	LevelMessage: "MESSAGE",
}

// ParseLevel resolves a level name (case-insensitive not supported; exact
// match only, matching the closed enum) to its Level value.
func ParseLevel(s string) (Level, error) {
	for l, name := range levelNames {
		if name == s {
			return l, nil
		}
	}
	return 0, fmt.Errorf("record: unknown level %q", s)
}

// MarshalJSON renders the level as its canonical name.
func (l Level) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

// UnmarshalJSON accepts either the canonical name or a raw integer.
func (l *Level) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		parsed, err := ParseLevel(name)
		if err != nil {
			return err
		}
		*l = parsed
		return nil
	}
	var n uint8
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("record: decoding level: %w", err)
	}
	*l = Level(n)
	return nil
}

// LogExtra carries the application-log-specific fields. Optional string
// fields use "" to mean absent.
type LogExtra struct {
	Thread         string `json:"thread,omitempty"`
	Service        string `json:"service,omitempty"`
	ServiceVersion string `json:"service_version,omitempty"`
	Logger         string `json:"logger,omitempty"`
	CorrelationID  string `json:"correlation_id,omitempty"`
	RequestID      string `json:"request_id,omitempty"`
	ErrorMessage   string `json:"error_message,omitempty"`
	StackTrace     string `json:"stack_trace,omitempty"`
}

// MessageExtra carries the broker-message-specific fields.
type MessageExtra struct {
	Topic         string `json:"topic,omitempty"`
	Key           string `json:"key,omitempty"`
	Offset        int64  `json:"offset,omitempty"`
	Partition     int32  `json:"partition,omitempty"`
	Headers       string `json:"headers,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
	RequestID     string `json:"request_id,omitempty"`
	EventID       string `json:"event_id,omitempty"`
}

// Record is the tagged variant put/get move around. At most one of Log/Msg
// is non-nil; a record with neither is stored without an extra block.
type Record struct {
	Seq             int64        `json:"seq,omitempty"`
	Timestamp       int64        `json:"timestamp"`
	Level           Level        `json:"level"`
	IndexIdentifier string       `json:"index_identifier,omitempty"`
	Message         string       `json:"message"`
	Log             *LogExtra    `json:"log,omitempty"`
	Msg             *MessageExtra `json:"msg,omitempty"`
}

// IsLog reports whether r carries the LogExtra variant.
func (r *Record) IsLog() bool { return r.Log != nil }

// IsMsg reports whether r carries the MessageExtra variant.
func (r *Record) IsMsg() bool { return r.Msg != nil }
