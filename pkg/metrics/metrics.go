// Package metrics provides Prometheus instrumentation for the TikTok Ads
// connector: API traffic, records emitted per stream, and state checkpoints.
//
// # Basic Usage
//
//	collector := metrics.NewCollector("tiktok_ads")
//	collector.RecordEmitted("campaigns", 1)
//
//	timer := metrics.NewTimer("campaigns")
//	syncStream()
//	collector.ObserveStream("campaigns", timer.Stop())
//
// Metrics are registered on the default Prometheus registry at package
// initialization and served by Handler.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tiktok_ads"

var (
	// APIRequests counts Business API requests.
	// Labels: endpoint (API path), status (ok, api_error, http_error, transport_error)
	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "Total number of Business API requests",
		},
		[]string{"endpoint", "status"},
	)

	// APIRequestDuration tracks request latency in seconds
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_request_duration_seconds",
			Help:      "Business API request latency in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"endpoint"},
	)

	// APIRetries counts retries of transient API failures.
	// Labels: endpoint, code (platform error code or "transport")
	APIRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_retries_total",
			Help:      "Total number of retried Business API requests",
		},
		[]string{"endpoint", "code"},
	)

	// PagesFetched counts pages read by the paginator
	PagesFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_fetched_total",
			Help:      "Total number of result pages fetched",
		},
		[]string{"stream"},
	)

	// RecordsEmitted counts RECORD messages written
	RecordsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_emitted_total",
			Help:      "Total number of records emitted",
		},
		[]string{"stream"},
	)

	// RecordsFiltered counts records dropped by the transformer
	RecordsFiltered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_filtered_total",
			Help:      "Total number of records dropped before emission",
		},
		[]string{"stream"},
	)

	// StreamDuration tracks how long each stream takes to sync
	StreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stream_sync_duration_seconds",
			Help:      "Stream sync duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
		},
		[]string{"stream"},
	)

	// StateFlushes counts state checkpoints.
	// Labels: backend (message, file, s3, gcs, postgres), status (success/failure)
	StateFlushes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_flushes_total",
			Help:      "Total number of state checkpoints written",
		},
		[]string{"backend", "status"},
	)

	// WindowsPlanned counts insight date windows requested
	WindowsPlanned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "date_windows_total",
			Help:      "Total number of insight date windows requested",
		},
		[]string{"stream"},
	)
)

// Collector records sync engine metrics for one connector and keeps
// in-process totals for logging at the end of a run.
type Collector struct {
	name      string
	startTime time.Time

	mu       sync.RWMutex
	emitted  map[string]int64
	filtered map[string]int64
	pages    map[string]int64
}

// NewCollector creates a new metrics collector for a component
func NewCollector(name string) *Collector {
	return &Collector{
		name:      name,
		startTime: time.Now(),
		emitted:   make(map[string]int64),
		filtered:  make(map[string]int64),
		pages:     make(map[string]int64),
	}
}

// RecordEmitted counts n records written for stream
func (c *Collector) RecordEmitted(stream string, n int) {
	RecordsEmitted.WithLabelValues(stream).Add(float64(n))
	c.mu.Lock()
	c.emitted[stream] += int64(n)
	c.mu.Unlock()
}

// RecordFiltered counts n records dropped for stream
func (c *Collector) RecordFiltered(stream string, n int) {
	if n <= 0 {
		return
	}
	RecordsFiltered.WithLabelValues(stream).Add(float64(n))
	c.mu.Lock()
	c.filtered[stream] += int64(n)
	c.mu.Unlock()
}

// RecordPage counts one fetched page for stream
func (c *Collector) RecordPage(stream string) {
	PagesFetched.WithLabelValues(stream).Inc()
	c.mu.Lock()
	c.pages[stream]++
	c.mu.Unlock()
}

// RecordWindows counts planned insight windows for stream
func (c *Collector) RecordWindows(stream string, n int) {
	WindowsPlanned.WithLabelValues(stream).Add(float64(n))
}

// ObserveStream records a stream's sync duration
func (c *Collector) ObserveStream(stream string, d time.Duration) {
	StreamDuration.WithLabelValues(stream).Observe(d.Seconds())
}

// Emitted returns the number of records emitted for stream
func (c *Collector) Emitted(stream string) int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.emitted[stream]
}

// GetAll returns all current metric values
func (c *Collector) GetAll() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return map[string]interface{}{
		"component":        c.name,
		"start_time":       c.startTime,
		"uptime":           time.Since(c.startTime).Seconds(),
		"records_emitted":  copyCounts(c.emitted),
		"records_filtered": copyCounts(c.filtered),
		"pages_fetched":    copyCounts(c.pages),
	}
}

func copyCounts(m map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Timer provides a simple timing mechanism for measuring operation durations.
type Timer struct {
	start time.Time
	name  string
}

// NewTimer creates a new timer and starts timing immediately.
func NewTimer(name string) *Timer {
	return &Timer{
		start: time.Now(),
		name:  name,
	}
}

// Stop returns the elapsed duration since creation. It may be called
// more than once.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}

// Handler returns the HTTP handler exposing the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve exposes /metrics on addr until ctx is cancelled
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
