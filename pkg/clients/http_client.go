// Package clients provides the HTTP transport for the TikTok Business API
package clients

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/http2"

	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/config"
)

// HTTPConfig configures the HTTP client
type HTTPConfig struct {
	// Connection settings
	MaxIdleConns        int           `json:"max_idle_conns"`
	MaxIdleConnsPerHost int           `json:"max_idle_conns_per_host"`
	IdleConnTimeout     time.Duration `json:"idle_conn_timeout"`

	// HTTP/2 settings
	EnableHTTP2 bool `json:"enable_http2"`

	// Timeouts
	DialTimeout         time.Duration `json:"dial_timeout"`
	TLSHandshakeTimeout time.Duration `json:"tls_handshake_timeout"`
	RequestTimeout      time.Duration `json:"request_timeout"`
	KeepAlive           time.Duration `json:"keep_alive"`

	// Rate limiting (0 = unlimited)
	RateLimit float64 `json:"rate_limit"`
	RateBurst int     `json:"rate_burst"`

	// Transport replaces the default transport, mostly for tests
	Transport http.RoundTripper `json:"-"`
}

// DefaultHTTPConfig returns the default client configuration
func DefaultHTTPConfig() *HTTPConfig {
	return &HTTPConfig{
		MaxIdleConns:        16,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
		EnableHTTP2:         true,
		DialTimeout:         10 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		RequestTimeout:      config.DefaultRequestTimeout,
		KeepAlive:           30 * time.Second,
		RateLimit:           10,
		RateBurst:           1,
	}
}

// HTTPConfigFromSource derives the transport settings from a source configuration
func HTTPConfigFromSource(cfg *config.TikTokAdsSourceConfig) *HTTPConfig {
	hc := DefaultHTTPConfig()
	if cfg.Timeouts.Connection > 0 {
		hc.DialTimeout = cfg.Timeouts.Connection
	}
	if cfg.Timeouts.Idle > 0 {
		hc.IdleConnTimeout = cfg.Timeouts.Idle
	}
	if cfg.Timeouts.KeepAlive > 0 {
		hc.KeepAlive = cfg.Timeouts.KeepAlive
	}
	if cfg.RequestTimeout > 0 {
		hc.RequestTimeout = cfg.RequestTimeout
	}
	hc.RateLimit = cfg.Reliability.RateLimitPerSec
	if cfg.Reliability.RateLimitBurst > 0 {
		hc.RateBurst = cfg.Reliability.RateLimitBurst
	}
	return hc
}

// HTTPClient wraps http.Client with rate limiting and request metrics
type HTTPClient struct {
	config      *HTTPConfig
	logger      *zap.Logger
	httpClient  *http.Client
	transport   *http.Transport
	rateLimiter RateLimiter
	metrics     *HTTPMetrics
}

// NewHTTPClient creates a new HTTP client
func NewHTTPClient(cfg *HTTPConfig, logger *zap.Logger) *HTTPClient {
	if cfg == nil {
		cfg = DefaultHTTPConfig()
	}

	client := &HTTPClient{
		config:      cfg,
		logger:      logger.With(zap.String("component", "http_client")),
		metrics:     NewHTTPMetrics(),
		rateLimiter: NewRateLimiter(cfg.RateLimit, cfg.RateBurst),
	}

	roundTripper := cfg.Transport
	if roundTripper == nil {
		client.transport = &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   cfg.DialTimeout,
				KeepAlive: cfg.KeepAlive,
			}).DialContext,
			MaxIdleConns:          cfg.MaxIdleConns,
			MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
			IdleConnTimeout:       cfg.IdleConnTimeout,
			TLSHandshakeTimeout:   cfg.TLSHandshakeTimeout,
			ExpectContinueTimeout: 1 * time.Second,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		}

		if cfg.EnableHTTP2 {
			if err := http2.ConfigureTransport(client.transport); err != nil {
				client.logger.Warn("failed to configure HTTP/2", zap.Error(err))
			}
		}
		roundTripper = client.transport
	}

	client.httpClient = &http.Client{
		Transport: roundTripper,
		Timeout:   cfg.RequestTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}

	return client
}

// Do waits for the rate limiter and executes req
func (c *HTTPClient) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	return c.httpClient.Do(req.WithContext(ctx))
}

// Metrics returns the client's request metrics
func (c *HTTPClient) Metrics() *HTTPMetrics {
	return c.metrics
}

// RateLimiter returns the client's rate limiter
func (c *HTTPClient) RateLimiter() RateLimiter {
	return c.rateLimiter
}

// Close releases idle connections
func (c *HTTPClient) Close() error {
	if c.transport != nil {
		c.transport.CloseIdleConnections()
	}
	return nil
}
