// Package state holds the sync state of a run: the currently syncing
// stream and the per-stream bookmarks. The Store flushes the state to the
// message stream whenever it changes and mirrors it to an optional durable
// Backend.
package state

import (
	"bytes"
	"io"
	"os"

	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/compression"
	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/errors"
	jsonpool "github.com/ajitpratap0/nebula-tiktok-ads/pkg/json"
)

// State is the checkpoint of a run
type State struct {
	CurrentlySyncing string                 `json:"currently_syncing,omitempty"`
	Bookmarks        map[string]interface{} `json:"bookmarks"`
}

// New returns an empty state
func New() *State {
	return &State{Bookmarks: make(map[string]interface{})}
}

// Clone returns a deep copy of s
func (s *State) Clone() *State {
	if s == nil {
		return New()
	}
	out := &State{
		CurrentlySyncing: s.CurrentlySyncing,
		Bookmarks:        make(map[string]interface{}, len(s.Bookmarks)),
	}
	for k, v := range s.Bookmarks {
		out.Bookmarks[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		m := make(map[string]interface{}, len(t))
		for k, vv := range t {
			m[k] = cloneValue(vv)
		}
		return m
	case map[string]string:
		m := make(map[string]interface{}, len(t))
		for k, vv := range t {
			m[k] = vv
		}
		return m
	case []interface{}:
		l := make([]interface{}, len(t))
		for i, vv := range t {
			l[i] = cloneValue(vv)
		}
		return l
	}
	return v
}

// LoadStateFile reads a state file. See ParseState for the accepted shapes.
// A file named with a compression suffix, such as the compressed output of
// an earlier run, is decompressed first; a stream cut short by a crash
// yields its last complete STATE message.
func LoadStateFile(path string) (*State, error) {
	f, err := os.Open(path) //nolint:gosec // G304: state path is provided by the operator
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to read state file").WithDetail("path", path)
	}
	defer f.Close()

	algo := compression.ForPath(path)
	r, err := compression.NewReader(f, algo)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to open state file").WithDetail("path", path)
	}
	defer r.Close()

	// A truncated compressed stream still yields the blocks before the cut
	data, err := io.ReadAll(r)
	if err != nil && (algo == compression.None || len(data) == 0) {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to read state file").WithDetail("path", path)
	}
	return ParseState(data)
}

// ParseState decodes a state document. The bare state object, a STATE
// message carrying it under "value", and a message stream whose last STATE
// message wins are accepted; an empty document is an empty state.
func ParseState(data []byte) (*State, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return New(), nil
	}

	var raw map[string]interface{}
	if err := jsonpool.UnmarshalNumber(data, &raw); err != nil {
		line := lastStateMessage(data)
		if line == nil {
			return nil, errors.Wrap(err, errors.ErrorTypeState, "failed to parse state")
		}
		raw = nil
		if err := jsonpool.UnmarshalNumber(line, &raw); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeState, "failed to parse state")
		}
	}
	if _, ok := raw["bookmarks"]; !ok {
		if value, ok := raw["value"].(map[string]interface{}); ok {
			raw = value
		}
	}

	st := New()
	if cs, ok := raw["currently_syncing"].(string); ok {
		st.CurrentlySyncing = cs
	}
	if bookmarks, ok := raw["bookmarks"].(map[string]interface{}); ok {
		st.Bookmarks = bookmarks
	}
	return st, nil
}

// lastStateMessage returns the last complete STATE line of a message
// stream, or nil when there is none
func lastStateMessage(data []byte) []byte {
	lines := bytes.Split(data, []byte("\n"))
	for i := len(lines) - 1; i >= 0; i-- {
		line := bytes.TrimSpace(lines[i])
		if len(line) == 0 {
			continue
		}
		var msg struct {
			Type string `json:"type"`
		}
		if err := jsonpool.Unmarshal(line, &msg); err != nil || msg.Type != "STATE" {
			continue
		}
		return line
	}
	return nil
}

// Encode renders s as JSON
func Encode(s *State) ([]byte, error) {
	data, err := jsonpool.Marshal(s)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeState, "failed to encode state")
	}
	return data, nil
}
