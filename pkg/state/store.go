package state

import (
	"context"
	"reflect"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/errors"
	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/logger"
	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/metrics"
)

// StateWriter receives every flushed state. The message writer of the run
// implements it.
type StateWriter interface {
	WriteState(value interface{}) error
}

// Store owns the state of a run. Every mutation that changes the state
// flushes it synchronously; writes that leave it unchanged are dropped.
type Store struct {
	mu      sync.Mutex
	state   *State
	writer  StateWriter
	backend Backend
	logger  *zap.Logger

	flushes int64
}

// NewStore creates a store seeded with initial. backend may be nil.
func NewStore(initial *State, writer StateWriter, backend Backend, log *zap.Logger) *Store {
	if log == nil {
		log = logger.Get()
	}
	st := initial.Clone()
	if st.Bookmarks == nil {
		st.Bookmarks = make(map[string]interface{})
	}
	return &Store{
		state:   st,
		writer:  writer,
		backend: backend,
		logger:  log.With(zap.String("component", "state_store")),
	}
}

// GetBookmark returns the stored bookmark of a stream, or an empty map
func (s *Store) GetBookmark(streamID string) interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.state.Bookmarks[streamID]
	if !ok || v == nil {
		return map[string]interface{}{}
	}
	return cloneValue(v)
}

// WriteBookmark replaces the bookmark of a stream
func (s *Store) WriteBookmark(ctx context.Context, streamID string, value interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if current, ok := s.state.Bookmarks[streamID]; ok && reflect.DeepEqual(current, value) {
		return nil
	}
	s.state.Bookmarks[streamID] = cloneValue(value)
	return s.flushLocked(ctx)
}

// GetCursorForAccount returns the cursor of one account within a stream
func (s *Store) GetCursorForAccount(streamID, accountID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	accounts, ok := s.state.Bookmarks[streamID].(map[string]interface{})
	if !ok {
		return "", false
	}
	switch v := accounts[accountID].(type) {
	case string:
		return v, v != ""
	case interface{ String() string }:
		return v.String(), true
	}
	return "", false
}

// SetAccountCursor sets one account's cursor and writes the stream bookmark
func (s *Store) SetAccountCursor(ctx context.Context, streamID, accountID, cursor string) error {
	s.mu.Lock()
	accounts := make(map[string]interface{})
	if current, ok := s.state.Bookmarks[streamID].(map[string]interface{}); ok {
		for k, v := range current {
			accounts[k] = v
		}
	}
	s.mu.Unlock()

	accounts[accountID] = cursor
	return s.WriteBookmark(ctx, streamID, accounts)
}

// SetCurrentlySyncing records the stream in flight; an empty ID clears it
func (s *Store) SetCurrentlySyncing(ctx context.Context, streamID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.CurrentlySyncing == streamID {
		return nil
	}
	s.state.CurrentlySyncing = streamID
	return s.flushLocked(ctx)
}

// CurrentlySyncing returns the stream in flight, if any
func (s *Store) CurrentlySyncing() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.CurrentlySyncing
}

// Snapshot returns a deep copy of the state
func (s *Store) Snapshot() *State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Flush writes the current state regardless of changes
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked(ctx)
}

// Flushes returns the number of completed flushes
func (s *Store) Flushes() int64 {
	return atomic.LoadInt64(&s.flushes)
}

func (s *Store) flushLocked(ctx context.Context) error {
	snapshot := s.state.Clone()

	if s.writer != nil {
		if err := s.writer.WriteState(snapshot); err != nil {
			metrics.StateFlushes.WithLabelValues("message", "failure").Inc()
			return errors.Wrap(err, errors.ErrorTypeState, "failed to emit state")
		}
		metrics.StateFlushes.WithLabelValues("message", "success").Inc()
	}

	if s.backend != nil {
		if err := s.backend.Save(ctx, snapshot); err != nil {
			metrics.StateFlushes.WithLabelValues(s.backend.Name(), "failure").Inc()
			return errors.Wrap(err, errors.ErrorTypeState, "failed to checkpoint state").
				WithDetail("backend", s.backend.Name())
		}
		metrics.StateFlushes.WithLabelValues(s.backend.Name(), "success").Inc()
	}

	atomic.AddInt64(&s.flushes, 1)
	s.logger.Debug("state flushed",
		zap.String("currently_syncing", snapshot.CurrentlySyncing),
		zap.Int("streams", len(snapshot.Bookmarks)))
	return nil
}
