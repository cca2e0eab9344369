package overpass

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/wienmaps/buildingsmcp/pkg/geo"
	"github.com/wienmaps/buildingsmcp/pkg/monitoring"
	"github.com/wienmaps/buildingsmcp/pkg/tracing"
)

const (
	// DefaultBaseURL is the public Overpass API endpoint.
	DefaultBaseURL = "https://overpass-api.de/api/interpreter"

	// DefaultUserAgent identifies this client to the upstream service.
	DefaultUserAgent = "buildingsmcp/0.1.0"

	// DefaultServerTimeout is the server-side timeout passed in the query,
	// in seconds.
	DefaultServerTimeout = 25

	// deadlineSlack is added to the server-side timeout to form the
	// client-side context deadline. The upstream protocol only carries a
	// server timeout; the client deadline closes that gap.
	deadlineSlack = 5 * time.Second
)

// RetryOptions configures retry behavior for upstream requests.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultRetryOptions provides sensible defaults for retries.
var DefaultRetryOptions = RetryOptions{
	MaxAttempts:  3,
	InitialDelay: 500 * time.Millisecond,
	MaxDelay:     10 * time.Second,
	Multiplier:   2.0,
}

// Options configures a Client.
type Options struct {
	BaseURL       string
	UserAgent     string
	ServerTimeout int // seconds, sent as the query timeout parameter
	RPS           float64
	Burst         int
	HTTPClient    *http.Client
	Retry         RetryOptions
	Logger        *slog.Logger
}

// DefaultOptions returns the default client configuration.
func DefaultOptions() Options {
	return Options{
		BaseURL:       DefaultBaseURL,
		UserAgent:     DefaultUserAgent,
		ServerTimeout: DefaultServerTimeout,
		RPS:           1.0,
		Burst:         1,
		Retry:         DefaultRetryOptions,
	}
}

// Client is a rate-limited Overpass API client. Identical concurrent
// queries collapse to a single upstream request.
type Client struct {
	baseURL       string
	userAgent     string
	serverTimeout int
	httpClient    *http.Client
	limiter       *rate.Limiter
	group         singleflight.Group
	retry         RetryOptions
	logger        *slog.Logger
}

// NewClient creates a Client from options, filling in defaults for any
// zero-valued field.
func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.ServerTimeout <= 0 {
		opts.ServerTimeout = DefaultServerTimeout
	}
	if opts.RPS <= 0 {
		opts.RPS = 1.0
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	if opts.Retry.MaxAttempts <= 0 {
		opts.Retry = DefaultRetryOptions
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
			Timeout: time.Duration(opts.ServerTimeout)*time.Second + deadlineSlack,
		}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Client{
		baseURL:       opts.BaseURL,
		userAgent:     opts.UserAgent,
		serverTimeout: opts.ServerTimeout,
		httpClient:    opts.HTTPClient,
		limiter:       rate.NewLimiter(rate.Limit(opts.RPS), opts.Burst),
		retry:         opts.Retry,
		logger:        opts.Logger.With("service", "overpass"),
	}
}

// QueryBuildings fetches all structural ways and relations within the
// bounds, with full geometry.
func (c *Client) QueryBuildings(ctx context.Context, bounds geo.Bounds) ([]Element, error) {
	query := NewQueryBuilder().
		WithTimeout(c.serverTimeout).
		WithBounds(bounds).
		Build()
	return c.Execute(ctx, query)
}

// Execute runs a raw Overpass query and returns the response elements.
// Concurrent calls with an identical query string share one upstream
// request and its result.
func (c *Client) Execute(ctx context.Context, query string) ([]Element, error) {
	v, err, shared := c.group.Do(query, func() (any, error) {
		return c.fetch(ctx, query)
	})
	if shared {
		c.logger.Debug("query joined in-flight request")
	}
	if err != nil {
		return nil, err
	}
	return v.([]Element), nil
}

// fetch performs the rate-limited, retried HTTP exchange for one query.
func (c *Client) fetch(ctx context.Context, query string) ([]Element, error) {
	ctx, span := tracing.StartSpan(ctx, "overpass.fetch",
		trace.WithAttributes(
			attribute.String(tracing.AttrServiceName, tracing.ServiceOverpass),
			attribute.String(tracing.AttrServiceURL, c.baseURL),
			attribute.Int("overpass.query_length", len(query)),
		),
	)
	defer span.End()

	// Client-side deadline: server timeout plus slack.
	ctx, cancel := context.WithTimeout(ctx, time.Duration(c.serverTimeout)*time.Second+deadlineSlack)
	defer cancel()

	if err := c.waitForRateLimit(ctx); err != nil {
		span.SetStatus(codes.Error, "rate limit wait cancelled")
		return nil, NewError(ErrRateLimit, "rate limit wait cancelled").
			WithGuidance("The request was cancelled while waiting for the rate limiter.")
	}

	factory := func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(
			ctx,
			http.MethodPost,
			c.baseURL,
			strings.NewReader("data="+url.QueryEscape(query)),
		)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("User-Agent", c.userAgent)
		return req, nil
	}

	start := time.Now()
	resp, err := c.doWithRetry(ctx, factory)
	monitoring.RecordUpstreamRequest("overpass", "query", time.Since(start), err == nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upstream request failed")
		return nil, err
	}
	defer resp.Body.Close()

	var parsed Response
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "parse failure")
		return nil, NewError(ErrParseError, "failed to parse Overpass response").
			WithGuidance("The upstream service returned malformed data. Please try again.")
	}

	span.SetAttributes(attribute.Int("overpass.element_count", len(parsed.Elements)))
	span.SetStatus(codes.Ok, "")
	c.logger.Debug("query successful", "elements", len(parsed.Elements))

	return parsed.Elements, nil
}

// waitForRateLimit blocks until the limiter admits a request or the
// context ends.
func (c *Client) waitForRateLimit(ctx context.Context) error {
	if c.limiter.Allow() {
		return nil
	}

	start := time.Now()
	tracing.AddEvent(ctx, "rate_limit_wait",
		trace.WithAttributes(
			attribute.String(tracing.AttrRateLimitService, tracing.ServiceOverpass),
		),
	)
	err := c.limiter.Wait(ctx)
	monitoring.RecordRateLimitWait("overpass", time.Since(start))
	return err
}

// doWithRetry performs requests created by the factory with exponential
// backoff until one succeeds or attempts run out.
func (c *Client) doWithRetry(ctx context.Context, factory func() (*http.Request, error)) (*http.Response, error) {
	var lastErr error
	delay := c.retry.InitialDelay

	for attempt := 0; attempt < c.retry.MaxAttempts; attempt++ {
		if attempt > 0 {
			c.logger.Info("retrying request",
				"attempt", attempt+1,
				"max_attempts", c.retry.MaxAttempts,
				"delay", delay,
				"last_error", lastErr,
			)

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}

			delay = time.Duration(float64(delay) * c.retry.Multiplier)
			if delay > c.retry.MaxDelay {
				delay = c.retry.MaxDelay
			}
		}

		req, err := factory()
		if err != nil {
			lastErr = NewError(ErrInternalError, "failed to create request")
			c.logger.Error("request creation failed", "error", err, "attempt", attempt+1)
			continue
		}

		resp, err := c.httpClient.Do(req)
		if err == nil && resp.StatusCode == http.StatusOK {
			return resp, nil
		}

		if err != nil {
			lastErr = err
			c.logger.Error("request failed", "error", err, "attempt", attempt+1)
		} else {
			lastErr = ServiceError("Overpass", resp.StatusCode, fmt.Sprintf("HTTP status %d", resp.StatusCode))
			c.logger.Error("request returned error status",
				"status", resp.StatusCode,
				"attempt", attempt+1,
			)
			if err := resp.Body.Close(); err != nil {
				c.logger.Warn("failed to close response body", "error", err)
			}
		}
	}

	if opErr, ok := lastErr.(*Error); ok {
		return nil, opErr.WithGuidance("Maximum retry attempts reached. " + opErr.Guidance)
	}
	return nil, NewError(ErrNetworkError, "max retries reached").
		WithGuidance("The request failed after multiple attempts. Please try again later.")
}

// CheckHealth checks whether the Overpass API is responsive.
func (c *Client) CheckHealth() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create overpass health check request: %w", err)
	}
	req.URL.RawQuery = "data=" + url.QueryEscape("[out:json];out meta;")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("overpass health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("overpass health check returned status %d", resp.StatusCode)
	}
	return nil
}
