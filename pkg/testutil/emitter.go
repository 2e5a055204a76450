package testutil

import (
	"sync"
	"time"

	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/errors"
	jsonpool "github.com/ajitpratap0/nebula-tiktok-ads/pkg/json"
	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/singer"
)

// CapturedRecord is a RECORD message seen by CapturingEmitter
type CapturedRecord struct {
	Stream    string
	Record    map[string]interface{}
	Extracted time.Time
}

// CapturedSchema is a SCHEMA message seen by CapturingEmitter
type CapturedSchema struct {
	Stream             string
	Schema             *singer.Schema
	KeyProperties      []string
	BookmarkProperties []string
}

// CapturingEmitter records every message in memory. States are stored as
// their JSON rendering decoded back into generic maps, as a reader of the
// message stream would see them.
type CapturingEmitter struct {
	mu      sync.Mutex
	order   []string
	schemas []CapturedSchema
	records []CapturedRecord
	states  []map[string]interface{}

	// FailStateAfter makes WriteState fail once this many states were written
	FailStateAfter int
}

// NewCapturingEmitter creates an empty emitter
func NewCapturingEmitter() *CapturingEmitter {
	return &CapturingEmitter{FailStateAfter: -1}
}

// WriteSchema records a SCHEMA message
func (e *CapturingEmitter) WriteSchema(stream string, schema *singer.Schema, keyProperties, bookmarkProperties []string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.order = append(e.order, "SCHEMA:"+stream)
	e.schemas = append(e.schemas, CapturedSchema{stream, schema, keyProperties, bookmarkProperties})
	return nil
}

// WriteRecord records a RECORD message
func (e *CapturingEmitter) WriteRecord(stream string, record map[string]interface{}, extracted time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.order = append(e.order, "RECORD:"+stream)
	e.records = append(e.records, CapturedRecord{stream, record, extracted})
	return nil
}

// WriteState records a STATE message
func (e *CapturingEmitter) WriteState(value interface{}) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.FailStateAfter >= 0 && len(e.states) >= e.FailStateAfter {
		return errors.New(errors.ErrorTypeState, "state rejected")
	}
	data, err := jsonpool.Marshal(value)
	if err != nil {
		return err
	}
	var m map[string]interface{}
	if err := jsonpool.Unmarshal(data, &m); err != nil {
		return err
	}
	e.order = append(e.order, "STATE")
	e.states = append(e.states, m)
	return nil
}

// Order returns message kinds in emission order, e.g. "RECORD:ads"
func (e *CapturingEmitter) Order() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.order...)
}

// Schemas returns all SCHEMA messages
func (e *CapturingEmitter) Schemas() []CapturedSchema {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]CapturedSchema(nil), e.schemas...)
}

// Records returns the RECORD messages of stream, or all when stream is empty
func (e *CapturingEmitter) Records(stream string) []CapturedRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []CapturedRecord
	for _, r := range e.records {
		if stream == "" || r.Stream == stream {
			out = append(out, r)
		}
	}
	return out
}

// States returns all STATE values
func (e *CapturingEmitter) States() []map[string]interface{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]map[string]interface{}(nil), e.states...)
}

// LastState returns the most recent STATE value, or nil
func (e *CapturingEmitter) LastState() map[string]interface{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.states) == 0 {
		return nil
	}
	return e.states[len(e.states)-1]
}
