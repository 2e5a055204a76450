package testutil

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	jsonpool "github.com/ajitpratap0/nebula-tiktok-ads/pkg/json"
)

// CannedResponse is one scripted reply of an APIServer
type CannedResponse struct {
	Status int
	Body   interface{}
}

// RecordedRequest is a request received by an APIServer
type RecordedRequest struct {
	Path   string
	Query  url.Values
	Header http.Header
}

// APIServer is an httptest server that replays scripted Business API
// responses per path. The last response of a path repeats once the queue
// is drained; unknown paths get a 404.
type APIServer struct {
	*httptest.Server

	mu        sync.Mutex
	responses map[string][]CannedResponse
	requests  []RecordedRequest
}

// NewAPIServer starts a server that is closed when the test completes
func NewAPIServer(t *testing.T) *APIServer {
	s := &APIServer{responses: make(map[string][]CannedResponse)}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

// Enqueue appends a response for path
func (s *APIServer) Enqueue(path string, status int, body interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	path = strings.Trim(path, "/")
	s.responses[path] = append(s.responses[path], CannedResponse{Status: status, Body: body})
}

// OK enqueues a successful envelope wrapping data
func (s *APIServer) OK(path string, data interface{}) {
	s.Enqueue(path, http.StatusOK, map[string]interface{}{
		"code":       0,
		"message":    "OK",
		"request_id": "test-request",
		"data":       data,
	})
}

// Fail enqueues an envelope with a non-zero code
func (s *APIServer) Fail(path string, code int, message string) {
	s.Enqueue(path, http.StatusOK, map[string]interface{}{
		"code":       code,
		"message":    message,
		"request_id": "test-request",
	})
}

// Requests returns the requests received for path, or all when path is empty
func (s *APIServer) Requests(path string) []RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	path = strings.Trim(path, "/")

	var out []RecordedRequest
	for _, r := range s.requests {
		if path == "" || r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

func (s *APIServer) handle(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(r.URL.Path, "/")

	s.mu.Lock()
	s.requests = append(s.requests, RecordedRequest{
		Path:   path,
		Query:  r.URL.Query(),
		Header: r.Header.Clone(),
	})
	queue := s.responses[path]
	var resp *CannedResponse
	if len(queue) > 0 {
		resp = &queue[0]
		if len(queue) > 1 {
			s.responses[path] = queue[1:]
		}
	}
	s.mu.Unlock()

	if resp == nil {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.Status)
	if raw, ok := resp.Body.(string); ok {
		_, _ = w.Write([]byte(raw))
		return
	}
	_ = jsonpool.MarshalToWriter(w, resp.Body)
}
