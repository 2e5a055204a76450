// Package clients provides HTTP metrics tracking
package clients

import (
	"sync/atomic"
	"time"

	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/metrics"
)

// Request outcomes used as the status label
const (
	StatusOK             = "ok"
	StatusAPIError       = "api_error"
	StatusHTTPError      = "http_error"
	StatusTransportError = "transport_error"
)

// HTTPMetrics records request counts and latencies to Prometheus and keeps
// in-process totals for the client's own stats.
type HTTPMetrics struct {
	totalRequests  int64
	failedRequests int64
	retries        int64
	totalLatency   int64
}

// HTTPStats is a snapshot of HTTPMetrics
type HTTPStats struct {
	TotalRequests  int64         `json:"total_requests"`
	FailedRequests int64         `json:"failed_requests"`
	Retries        int64         `json:"retries"`
	AverageLatency time.Duration `json:"average_latency"`
}

// NewHTTPMetrics creates a new HTTP metrics tracker
func NewHTTPMetrics() *HTTPMetrics {
	return &HTTPMetrics{}
}

// RecordRequest records one completed request for endpoint
func (hm *HTTPMetrics) RecordRequest(endpoint, status string, latency time.Duration) {
	atomic.AddInt64(&hm.totalRequests, 1)
	atomic.AddInt64(&hm.totalLatency, int64(latency))
	if status != StatusOK {
		atomic.AddInt64(&hm.failedRequests, 1)
	}

	metrics.APIRequests.WithLabelValues(endpoint, status).Inc()
	metrics.APIRequestDuration.WithLabelValues(endpoint).Observe(latency.Seconds())
}

// RecordRetry records a retry of endpoint caused by code
func (hm *HTTPMetrics) RecordRetry(endpoint, code string) {
	atomic.AddInt64(&hm.retries, 1)
	metrics.APIRetries.WithLabelValues(endpoint, code).Inc()
}

// GetStats returns a snapshot of the totals
func (hm *HTTPMetrics) GetStats() HTTPStats {
	total := atomic.LoadInt64(&hm.totalRequests)
	var avg time.Duration
	if total > 0 {
		avg = time.Duration(atomic.LoadInt64(&hm.totalLatency) / total)
	}
	return HTTPStats{
		TotalRequests:  total,
		FailedRequests: atomic.LoadInt64(&hm.failedRequests),
		Retries:        atomic.LoadInt64(&hm.retries),
		AverageLatency: avg,
	}
}
