package clients

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/config"
	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/connector/core"
	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/errors"
	jsonpool "github.com/ajitpratap0/nebula-tiktok-ads/pkg/json"
	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/logger"
	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/observability"
)

const (
	// APIVersion is the Business API version prefix of every path
	APIVersion = "v1.3"
	// ProductionBaseURL serves live advertiser accounts
	ProductionBaseURL = "https://business-api.tiktok.com/open_api/" + APIVersion
	// SandboxBaseURL serves sandbox advertiser accounts
	SandboxBaseURL = "https://sandbox-ads.tiktok.com/open_api/" + APIVersion

	// CodeRateLimited is returned when the app exceeds its QPS quota
	CodeRateLimited = 40100
	// CodeServiceError is returned when the token cannot read the advertiser accounts
	CodeServiceError = 51008

	errAccountAccess = "Error encountered accessing the accounts with the given account ids. Kindly check your account ids."
	errUnknown       = "Unknown Error occurred."
)

// transientCodes are response codes the platform documents as retryable
var transientCodes = map[int]struct{}{
	40200: {}, // task error
	40201: {}, // task not ready
	40202: {}, // write or update entity conflict
	40700: {}, // internal service validation error
	50000: {}, // system error
	50002: {}, // error processing request on TikTok side
}

// IsTransientCode reports whether code is retried by the client
func IsTransientCode(code int) bool {
	_, ok := transientCodes[code]
	return ok
}

// BaseURL returns the API root for the sandbox or production environment
func BaseURL(sandbox bool) string {
	if sandbox {
		return SandboxBaseURL
	}
	return ProductionBaseURL
}

// TikTokClientConfig configures a TikTokClient
type TikTokClientConfig struct {
	AccessToken string
	UserAgent   string
	Accounts    []string
	// BaseURL overrides the sandbox/production selection when set
	BaseURL string
	Sandbox bool

	HTTP  *HTTPConfig
	Retry *RetryPolicy
}

// TikTokClientConfigFromSource builds the client configuration of a source
func TikTokClientConfigFromSource(cfg *config.TikTokAdsSourceConfig) *TikTokClientConfig {
	return &TikTokClientConfig{
		AccessToken: cfg.AccessToken,
		UserAgent:   cfg.UserAgent,
		Accounts:    cfg.Accounts,
		BaseURL:     cfg.BaseURL,
		Sandbox:     cfg.Sandbox,
		HTTP:        HTTPConfigFromSource(cfg),
		Retry:       RetryPolicyFromConfig(cfg.Reliability),
	}
}

// TikTokClient performs authenticated requests against the Business API
// and maps the response envelope to structured errors.
type TikTokClient struct {
	config  *TikTokClientConfig
	baseURL string
	http    *HTTPClient
	retry   *RetryPolicy
	logger  *zap.Logger
}

var _ core.APIClient = (*TikTokClient)(nil)

// NewTikTokClient creates a new client
func NewTikTokClient(cfg *TikTokClientConfig, log *zap.Logger) (*TikTokClient, error) {
	if cfg == nil || strings.TrimSpace(cfg.AccessToken) == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "Error: Missing access_token.")
	}
	if log == nil {
		log = logger.Get()
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = BaseURL(cfg.Sandbox)
	}

	retry := cfg.Retry
	if retry == nil {
		retry = DefaultRetryPolicy()
	}

	return &TikTokClient{
		config:  cfg,
		baseURL: baseURL,
		http:    NewHTTPClient(cfg.HTTP, log),
		retry:   retry,
		logger:  log.With(zap.String("component", "tiktok_client")),
	}, nil
}

// BaseURL returns the API root requests are sent to
func (c *TikTokClient) BaseURL() string {
	return c.baseURL
}

// Stats returns request totals
func (c *TikTokClient) Stats() HTTPStats {
	return c.http.Metrics().GetStats()
}

// Get requests path with params, retrying transient failures
func (c *TikTokClient) Get(ctx context.Context, path string, params url.Values) (*core.APIResponse, error) {
	ctx, span := observability.StartSpan(ctx, "tiktok.api.get", attribute.String("endpoint", path))

	var resp *core.APIResponse
	attempt := 0

	policy := c.retry.Clone()
	policy.OnRetry = func(n int, err error, delay time.Duration) {
		code := "transport"
		if v, ok := APICode(err); ok {
			code = strconv.Itoa(v)
		}
		c.http.Metrics().RecordRetry(path, code)
		logger.WithContext(ctx).Warn("retrying request",
			zap.String("endpoint", path),
			zap.Int("attempt", n),
			zap.String("code", code),
			zap.Duration("delay", delay),
			zap.Error(err))
	}

	err := policy.ExecuteWithCondition(ctx, func() error {
		attempt++
		r, err := c.do(ctx, path, params)
		if err != nil {
			return err
		}
		resp = r
		return nil
	}, errors.IsRetryable)

	span.SetAttribute("attempts", attempt)
	span.End(err)
	return resp, err
}

// do performs a single request and decodes the envelope
func (c *TikTokClient) do(ctx context.Context, path string, params url.Values) (*core.APIResponse, error) {
	endpoint := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to create request")
	}
	req.Header.Set("Access-Token", c.config.AccessToken)
	req.Header.Set("Accept", "application/json")
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	start := time.Now()
	httpResp, err := c.http.Do(ctx, req)
	if err != nil {
		c.http.Metrics().RecordRequest(path, StatusTransportError, time.Since(start))
		return nil, classifyTransportError(ctx, err, path)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	latency := time.Since(start)
	if err != nil {
		c.http.Metrics().RecordRequest(path, StatusTransportError, latency)
		return nil, classifyTransportError(ctx, err, path)
	}

	if httpResp.StatusCode != http.StatusOK {
		c.http.Metrics().RecordRequest(path, StatusHTTPError, latency)
		errType := errors.ErrorTypeUpstream
		if httpResp.StatusCode >= http.StatusInternalServerError {
			errType = errors.ErrorTypeConnection
		}
		return nil, errors.Newf(errType, "Error code: %d", httpResp.StatusCode).
			WithDetail("status_code", httpResp.StatusCode).
			WithDetail("endpoint", path)
	}

	resp := &core.APIResponse{}
	if err := jsonpool.UnmarshalNumber(body, resp); err != nil {
		// An undecodable body has no code, which is never success
		c.http.Metrics().RecordRequest(path, StatusAPIError, latency)
		return nil, errors.Wrap(err, errors.ErrorTypeUpstream, errUnknown).
			WithDetail("endpoint", path)
	}

	if resp.Code != 0 {
		c.http.Metrics().RecordRequest(path, StatusAPIError, latency)
		return nil, newAPIError(resp, path)
	}

	c.http.Metrics().RecordRequest(path, StatusOK, latency)
	logger.WithContext(ctx).Debug("request completed",
		zap.String("endpoint", path),
		zap.String("request_id", resp.RequestID),
		zap.Duration("latency", latency))
	return resp, nil
}

// newAPIError maps a non-zero envelope code to a structured error that
// carries the platform message verbatim.
func newAPIError(resp *core.APIResponse, path string) *errors.Error {
	message := resp.Message
	if message == "" {
		message = errUnknown
	}

	errType := errors.ErrorTypeUpstream
	switch {
	case IsTransientCode(resp.Code):
		errType = errors.ErrorTypeTransient
	case resp.Code == CodeRateLimited:
		errType = errors.ErrorTypeRateLimit
	}

	return errors.New(errType, message).
		WithDetail("code", resp.Code).
		WithDetail("api_message", message).
		WithDetail("request_id", resp.RequestID).
		WithDetail("endpoint", path)
}

func classifyTransportError(ctx context.Context, err error, path string) error {
	if ctx.Err() != nil {
		return errors.Wrap(ctx.Err(), errors.ErrorTypeInternal, "request cancelled").
			WithDetail("endpoint", path)
	}
	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return errors.Wrap(err, errors.ErrorTypeTimeout, fmt.Sprintf("request to %s timed out", path)).
			WithDetail("endpoint", path)
	}
	return errors.Wrap(err, errors.ErrorTypeConnection, fmt.Sprintf("request to %s failed", path)).
		WithDetail("endpoint", path)
}

// APICode returns the platform response code carried by err
func APICode(err error) (int, bool) {
	v, ok := errors.Detail(err, "code")
	if !ok {
		return 0, false
	}
	code, ok := v.(int)
	return code, ok
}

// APIMessage returns the platform message carried by err
func APIMessage(err error) (string, bool) {
	v, ok := errors.Detail(err, "api_message")
	if !ok {
		return "", false
	}
	msg, ok := v.(string)
	return msg, ok
}

// CheckAccessToken verifies the token with user/info/ and then checks the
// configured advertiser accounts are readable.
func (c *TikTokClient) CheckAccessToken(ctx context.Context) error {
	resp, err := c.Get(ctx, "user/info/", nil)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeAuthentication, "access token check failed")
	}
	if !resp.OK() {
		return errors.New(errors.ErrorTypeAuthentication, resp.Message)
	}

	ids, err := jsonpool.Marshal(c.config.Accounts)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "failed to encode advertiser ids")
	}
	params := url.Values{}
	params.Set("advertiser_ids", string(ids))

	if _, err := c.Get(ctx, "advertiser/info/", params); err != nil {
		if code, ok := APICode(err); ok {
			message, _ := APIMessage(err)
			if code == CodeServiceError {
				message = errAccountAccess
			}
			return errors.Wrap(err, errors.ErrorTypeAuthentication, message).
				WithDetail("code", code)
		}
		return err
	}

	c.logger.Info("access token verified", zap.Int("accounts", len(c.config.Accounts)))
	return nil
}

// Close releases idle connections
func (c *TikTokClient) Close() error {
	return c.http.Close()
}
