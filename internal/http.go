package internal

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	pkgerrs "github.com/jamesprial/rofi-reddit/pkg/errors"
	"github.com/jamesprial/rofi-reddit/pkg/types"
)

// Client issues authenticated listing requests against the Reddit OAuth API.
// It never judges a response; every status is handed back to the caller.
type Client struct {
	client    *http.Client
	baseURL   *url.URL
	UserAgent string
	logger    *slog.Logger

	limiter        *rate.Limiter
	mu             sync.Mutex
	forceWaitUntil time.Time
}

// RateLimitConfig controls how requests are throttled before reaching Reddit.
type RateLimitConfig struct {
	// RequestsPerMinute caps steady-state throughput. Defaults to 60 if zero.
	RequestsPerMinute float64
	// Burst allows short spikes above the steady-state rate. Defaults to 10 if zero.
	Burst int
}

const (
	DefaultRequestsPerMinute = 60
	DefaultRateLimitBurst    = 10
	SecondsPerMinute         = 60.0
	ParseFloatBitSize        = 64

	// DefaultHotLimit is the fixed page size of a hot listings request.
	DefaultHotLimit = 15
	// MaxResponseBytes bounds how much of a listings body is read into memory.
	MaxResponseBytes = 4 << 20
)

// NewClient returns a new Reddit API client.
// If a nil httpClient is provided, http.DefaultClient will be used.
func NewClient(httpClient *http.Client, baseURL string, userAgent string, rateCfg *RateLimitConfig, logger *slog.Logger) (*Client, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, &pkgerrs.ConfigError{Field: "BaseURL", Message: "failed to parse base URL", Err: err}
	}
	if !strings.HasSuffix(parsedURL.Path, "/") {
		parsedURL.Path += "/"
	}

	if rateCfg == nil {
		rateCfg = &RateLimitConfig{}
	}

	return &Client{
		client:    httpClient,
		baseURL:   parsedURL,
		UserAgent: userAgent,
		logger:    logger,
		limiter:   buildLimiter(*rateCfg),
	}, nil
}

// NewHotRequest builds the GET request for a subreddit's hot feed.
// The subreddit must already be normalized by the caller.
func (c *Client) NewHotRequest(ctx context.Context, token types.AccessToken, subreddit string, limit int) (*http.Request, error) {
	if limit <= 0 {
		limit = DefaultHotLimit
	}

	u, err := c.baseURL.Parse("r/" + url.PathEscape(subreddit) + "/hot/")
	if err != nil {
		return nil, &pkgerrs.TransportError{Operation: "fetch hot listings", Err: err}
	}
	u.RawQuery = "limit=" + strconv.Itoa(limit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &pkgerrs.TransportError{Operation: "fetch hot listings", URL: u.String(), Err: err}
	}

	token.OAuth2().SetAuthHeader(req)
	req.Header.Set("User-Agent", c.UserAgent)

	return req, nil
}

// FetchHot requests one page of a subreddit's hot feed and returns the raw
// status and body, whatever the status. Only a failure to obtain a response
// at all is returned as an error.
func (c *Client) FetchHot(ctx context.Context, token types.AccessToken, subreddit string, limit int) (*types.APIResponse, error) {
	req, err := c.NewHotRequest(ctx, token, subreddit, limit)
	if err != nil {
		return nil, err
	}
	return c.Do(req)
}

// Do sends a request after waiting for the rate limiter and reads the body.
func (c *Client) Do(req *http.Request) (*types.APIResponse, error) {
	if err := c.waitForRateLimit(req.Context()); err != nil {
		return nil, &pkgerrs.TransportError{Operation: "wait for rate limit", URL: req.URL.String(), Err: err}
	}

	c.logger.Debug("sending request", "method", req.Method, "url", req.URL.String())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &pkgerrs.TransportError{Operation: "fetch hot listings", URL: req.URL.String(), Err: err}
	}
	defer resp.Body.Close()

	c.applyRateHeaders(resp)

	// One extra byte tells a body of exactly MaxResponseBytes from a longer one.
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseBytes+1))
	if err != nil {
		return nil, &pkgerrs.TransportError{Operation: "read hot listings", URL: req.URL.String(), Err: err}
	}
	if len(body) > MaxResponseBytes {
		return nil, &pkgerrs.TransportError{
			Operation: "read hot listings",
			URL:       req.URL.String(),
			Err:       fmt.Errorf("%w (limit %d bytes)", pkgerrs.ErrResponseTooLarge, MaxResponseBytes),
		}
	}

	c.logger.Debug("received response", "url", req.URL.String(), "status", resp.StatusCode, "bytes", len(body))

	return &types.APIResponse{StatusCode: resp.StatusCode, Body: body}, nil
}

func buildLimiter(cfg RateLimitConfig) *rate.Limiter {
	requestsPerMinute := cfg.RequestsPerMinute
	if requestsPerMinute <= 0 {
		requestsPerMinute = DefaultRequestsPerMinute
	}

	burst := cfg.Burst
	if burst <= 0 {
		burst = DefaultRateLimitBurst
	}

	limitPerSecond := rate.Limit(requestsPerMinute / SecondsPerMinute)
	if limitPerSecond <= 0 {
		limitPerSecond = rate.Limit(1)
	}

	return rate.NewLimiter(limitPerSecond, burst)
}

func (c *Client) waitForRateLimit(ctx context.Context) error {
	if err := c.waitForForcedDelay(ctx); err != nil {
		return err
	}

	if c.limiter == nil {
		return nil
	}

	return c.limiter.Wait(ctx)
}

func (c *Client) waitForForcedDelay(ctx context.Context) error {
	for {
		c.mu.Lock()
		waitUntil := c.forceWaitUntil
		c.mu.Unlock()

		if waitUntil.IsZero() {
			return nil
		}

		now := time.Now()
		if !now.Before(waitUntil) {
			c.clearForcedDelay(waitUntil)
			return nil
		}

		timer := time.NewTimer(waitUntil.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			c.clearForcedDelay(waitUntil)
		}
	}
}

func (c *Client) clearForcedDelay(previous time.Time) {
	c.mu.Lock()
	if previous.Equal(c.forceWaitUntil) {
		c.forceWaitUntil = time.Time{}
	}
	c.mu.Unlock()
}

// applyRateHeaders defers the next request when Reddit signals exhaustion.
// It never retries the current one.
func (c *Client) applyRateHeaders(resp *http.Response) {
	if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
		if seconds, err := strconv.ParseFloat(retryAfter, ParseFloatBitSize); err == nil && seconds > 0 {
			c.deferRequests(time.Duration(seconds * float64(time.Second)))
		}
	}

	remainingHeader := resp.Header.Get("X-Ratelimit-Remaining")
	resetHeader := resp.Header.Get("X-Ratelimit-Reset")
	if remainingHeader == "" || resetHeader == "" {
		return
	}

	remaining, errRemaining := strconv.ParseFloat(remainingHeader, ParseFloatBitSize)
	resetSeconds, errReset := strconv.ParseFloat(resetHeader, ParseFloatBitSize)
	if errRemaining != nil || errReset != nil || resetSeconds <= 0 {
		return
	}

	if remaining <= 1 {
		c.logger.Warn("reddit rate limit nearly exhausted, delaying next request", "reset_seconds", resetSeconds)
		c.deferRequests(time.Duration(resetSeconds * float64(time.Second)))
	}
}

func (c *Client) deferRequests(d time.Duration) {
	if d <= 0 {
		return
	}

	until := time.Now().Add(d)

	c.mu.Lock()
	if until.After(c.forceWaitUntil) {
		c.forceWaitUntil = until
	}
	c.mu.Unlock()
}
