// Package client provides the core Strava API client: request dispatch,
// OAuth2 token exchange and refresh, typed error classification, and
// webhook subscription management.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fitwire/strava-client/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for Strava client operations.
var (
	stravaRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "strava_requests_total",
		Help: "Total Strava API requests by endpoint and status",
	}, []string{"endpoint", "status"})

	stravaRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "strava_request_duration_seconds",
		Help:    "Strava API request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	stravaErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "strava_errors_total",
		Help: "Total Strava API errors by kind",
	}, []string{"kind"})
)

// Default endpoints of the Strava v3 API.
const (
	DefaultBaseURL        = "https://www.strava.com"
	DefaultWebhookBaseURL = "https://api.strava.com"
	DefaultAPIPath        = "api/v3"
)

// RequestContext is the transient view of an outgoing request handed to
// before-request hooks. It is not retained after dispatch.
type RequestContext struct {
	Method  string
	URL     string
	Params  url.Values
	Body    any
	Webhook bool
}

// BeforeRequestHook observes a request about to be sent. Hooks are
// best-effort observers; a panicking hook aborts the dispatch.
type BeforeRequestHook func(*RequestContext)

// AfterRequestHook observes the raw HTTP response before classification.
type AfterRequestHook func(*http.Response)

// Config holds the client configuration.
type Config struct {
	// BaseURL is the API domain (default: https://www.strava.com).
	BaseURL string

	// WebhookBaseURL is the domain for push subscription endpoints
	// (default: https://api.strava.com).
	WebhookBaseURL string

	// APIPath is the fixed base path joined into every URL (REQUIRED).
	APIPath string

	// AccessToken is attached as a Bearer header when present. Its absence
	// is not an error at this layer; the remote service rejects the call.
	AccessToken string

	// UserAgent header sent with every request.
	UserAgent string

	// HTTPClient performs the round trips. Connect/read timeouts belong to
	// the caller; a 30s default applies when nil.
	HTTPClient *http.Client

	// Logger for request logging. Defaults to the global logger.
	Logger *zerolog.Logger
}

// DefaultConfig returns a configuration targeting the public Strava v3 API.
func DefaultConfig() Config {
	return Config{
		BaseURL:        DefaultBaseURL,
		WebhookBaseURL: DefaultWebhookBaseURL,
		APIPath:        DefaultAPIPath,
		UserAgent:      "strava-client/0.1.0",
	}
}

// Client is the Strava API client. It is not safe for concurrent use: the
// access token and hook lists are mutated without synchronization, matching
// the single-threaded blocking call model of the library.
type Client struct {
	config      Config
	httpClient  *http.Client
	rateLimits  *ratelimit.Tracker
	logger      zerolog.Logger
	accessToken string

	// Hook lists are always present, empty by default, and run in
	// registration order.
	beforeHooks []BeforeRequestHook
	afterHooks  []AfterRequestHook
}

// New creates a new Strava client. A missing APIPath is a configuration
// error and is reported immediately, never retried.
func New(cfg Config) (*Client, error) {
	if cfg.APIPath == "" {
		return nil, fmt.Errorf("%w: missing the api path setting for the strava client", ErrImproperlyConfigured)
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.WebhookBaseURL == "" {
		cfg.WebhookBaseURL = DefaultWebhookBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	logger := log.With().Str("component", "strava-client").Logger()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	return &Client{
		config:      cfg,
		httpClient:  httpClient,
		rateLimits:  ratelimit.NewTracker(logger),
		logger:      logger,
		accessToken: cfg.AccessToken,
		beforeHooks: []BeforeRequestHook{},
		afterHooks:  []AfterRequestHook{},
	}, nil
}

// SetAccessToken replaces the token attached to outgoing requests.
func (c *Client) SetAccessToken(token string) {
	c.accessToken = token
}

// AccessToken returns the token currently attached to outgoing requests.
func (c *Client) AccessToken() string {
	return c.accessToken
}

// RateLimits returns the tracker recording the most recent rate-limit
// headers seen on any response.
func (c *Client) RateLimits() *ratelimit.Tracker {
	return c.rateLimits
}

// OnBeforeRequest registers a hook invoked before every dispatch, in
// registration order.
func (c *Client) OnBeforeRequest(fn BeforeRequestHook) {
	c.beforeHooks = append(c.beforeHooks, fn)
}

// OnAfterRequest registers a hook invoked with the raw response after every
// round trip, in registration order.
func (c *Client) OnAfterRequest(fn AfterRequestHook) {
	c.afterHooks = append(c.afterHooks, fn)
}

// requestOptions carries the optional parts of a dispatch.
type requestOptions struct {
	params  url.Values
	body    any
	files   map[string]io.Reader
	webhook bool
}

// buildURL joins the API domain, the API base path, and the relative path.
// Trailing slashes are normalized to always be present so that repeated
// dispatch of the same path is idempotent in form.
func (c *Client) buildURL(path string, webhook bool) (string, error) {
	domain := c.config.BaseURL
	if webhook {
		domain = c.config.WebhookBaseURL
	}
	if !strings.HasPrefix(domain, "http") {
		domain = "https://" + domain
	}

	base, err := url.Parse(domain)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}

	joined := strings.Trim(c.config.APIPath, "/") + "/" + strings.TrimLeft(path, "/")
	if !strings.HasSuffix(joined, "/") {
		joined += "/"
	}
	base.Path = "/" + joined

	return base.String(), nil
}

// dispatch performs one HTTP round trip against the API: it builds the URL,
// runs the before hooks, attaches the auth header, executes the call,
// records rate-limit headers, runs the after hooks, classifies the status,
// and decodes the JSON payload. Non-JSON success bodies (e.g. empty 204
// responses) yield a nil payload, not an error.
func (c *Client) dispatch(ctx context.Context, method, path string, opts requestOptions) (json.RawMessage, error) {
	rawURL, err := c.buildURL(path, opts.webhook)
	if err != nil {
		return nil, err
	}

	reqCtx := &RequestContext{
		Method:  strings.ToUpper(method),
		URL:     rawURL,
		Params:  opts.params,
		Body:    opts.body,
		Webhook: opts.webhook,
	}
	for _, fn := range c.beforeHooks {
		fn(reqCtx)
	}

	var body io.Reader
	contentType := ""
	switch {
	case len(opts.files) > 0:
		buf := &bytes.Buffer{}
		writer := multipart.NewWriter(buf)
		for name, reader := range opts.files {
			part, err := writer.CreateFormFile(name, name)
			if err != nil {
				return nil, fmt.Errorf("create multipart field %q: %w", name, err)
			}
			if _, err := io.Copy(part, reader); err != nil {
				return nil, fmt.Errorf("write multipart field %q: %w", name, err)
			}
		}
		if err := writer.Close(); err != nil {
			return nil, fmt.Errorf("close multipart writer: %w", err)
		}
		body = buf
		contentType = writer.FormDataContentType()
	case opts.body != nil:
		encoded, err := json.Marshal(opts.body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(encoded)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, reqCtx.Method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if len(opts.params) > 0 {
		req.URL.RawQuery = opts.params.Encode()
	}
	req.Header.Set("Accept", "application/json")
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}

	endpoint := req.URL.Path
	startTime := time.Now()
	defer func() {
		stravaRequestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		stravaRequestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		c.logger.Error().Err(err).Str("endpoint", endpoint).Msg("HTTP request failed")
		return nil, fmt.Errorf("%s %s: %w", reqCtx.Method, rawURL, err)
	}
	defer resp.Body.Close()

	c.rateLimits.UpdateFromHeaders(resp.Header)

	for _, fn := range c.afterHooks {
		fn(resp)
	}

	c.logger.Info().
		Str("method", reqCtx.Method).
		Str("url", req.URL.String()).
		Int("status", resp.StatusCode).
		Msg("Strava request")

	stravaRequestsTotal.WithLabelValues(endpoint, fmt.Sprintf("%d", resp.StatusCode)).Inc()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if kind := classifyStatus(resp.StatusCode); kind != "" {
		stravaErrorsTotal.WithLabelValues(string(kind)).Inc()
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Kind:       kind,
			Body:       payload,
			Header:     resp.Header.Clone(),
		}
	}

	if !json.Valid(payload) || len(payload) == 0 {
		// Non-JSON success bodies are valid (204 No Content and friends).
		return nil, nil
	}
	return json.RawMessage(payload), nil
}
