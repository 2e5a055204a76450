package singer

import (
	"io"
	"sync/atomic"
	"time"

	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/errors"
	jsonpool "github.com/ajitpratap0/nebula-tiktok-ads/pkg/json"
	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/timeutil"
)

// MessageType identifies a message on the output stream
type MessageType string

const (
	MessageTypeSchema MessageType = "SCHEMA"
	MessageTypeRecord MessageType = "RECORD"
	MessageTypeState  MessageType = "STATE"
)

// SchemaMessage declares a stream's schema before its first record
type SchemaMessage struct {
	Type               MessageType `json:"type"`
	Stream             string      `json:"stream"`
	Schema             *Schema     `json:"schema"`
	KeyProperties      []string    `json:"key_properties"`
	BookmarkProperties []string    `json:"bookmark_properties,omitempty"`
}

// RecordMessage carries one record
type RecordMessage struct {
	Type          MessageType            `json:"type"`
	Stream        string                 `json:"stream"`
	Record        map[string]interface{} `json:"record"`
	TimeExtracted string                 `json:"time_extracted,omitempty"`
}

// StateMessage carries the full state object
type StateMessage struct {
	Type  MessageType `json:"type"`
	Value interface{} `json:"value"`
}

// Writer writes messages as JSON lines. It is safe for concurrent use;
// each message is written as one complete line.
type Writer struct {
	lw *jsonpool.LineWriter

	schemas int64
	records int64
	states  int64
}

// NewWriter creates a Writer on w
func NewWriter(w io.Writer) *Writer {
	return &Writer{lw: jsonpool.NewLineWriter(w)}
}

// WriteSchema writes a SCHEMA message
func (w *Writer) WriteSchema(stream string, schema *Schema, keyProperties, bookmarkProperties []string) error {
	if keyProperties == nil {
		keyProperties = []string{}
	}
	msg := SchemaMessage{
		Type:               MessageTypeSchema,
		Stream:             stream,
		Schema:             schema,
		KeyProperties:      keyProperties,
		BookmarkProperties: bookmarkProperties,
	}
	if err := w.lw.Write(msg); err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "failed to write schema message").WithDetail("stream", stream)
	}
	atomic.AddInt64(&w.schemas, 1)
	return nil
}

// WriteRecord writes a RECORD message. A zero extracted time is omitted.
func (w *Writer) WriteRecord(stream string, record map[string]interface{}, extracted time.Time) error {
	msg := RecordMessage{
		Type:   MessageTypeRecord,
		Stream: stream,
		Record: record,
	}
	if !extracted.IsZero() {
		msg.TimeExtracted = timeutil.Format(extracted)
	}
	if err := w.lw.Write(msg); err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "failed to write record message").WithDetail("stream", stream)
	}
	atomic.AddInt64(&w.records, 1)
	return nil
}

// WriteState writes a STATE message and flushes the sink, so the
// checkpoint and every record before it are readable once it returns
func (w *Writer) WriteState(value interface{}) error {
	if err := w.lw.Write(StateMessage{Type: MessageTypeState, Value: value}); err != nil {
		return errors.Wrap(err, errors.ErrorTypeState, "failed to write state message")
	}
	if err := w.lw.Flush(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeState, "failed to flush state message")
	}
	atomic.AddInt64(&w.states, 1)
	return nil
}

// Counts returns the number of schema, record and state messages written
func (w *Writer) Counts() (schemas, records, states int64) {
	return atomic.LoadInt64(&w.schemas), atomic.LoadInt64(&w.records), atomic.LoadInt64(&w.states)
}
