// Package client provides the YouTube Data and Analytics API client with
// quota tracking, caching, and error handling.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/yt-metrics-client/pkg/cache"
	"github.com/Sternrassler/yt-metrics-client/pkg/logging"
	"github.com/Sternrassler/yt-metrics-client/pkg/quota"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

// Prometheus metrics for API client operations.
var (
	ytRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "yt_requests_total",
		Help: "Total YouTube API requests by endpoint and status",
	}, []string{"endpoint", "status"})

	ytRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "yt_request_duration_seconds",
		Help:    "YouTube API request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	ytErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "yt_errors_total",
		Help: "Total YouTube API errors by class",
	}, []string{"class"})
)

// Default API hosts.
const (
	DefaultBaseURL          = "https://www.googleapis.com"
	DefaultAnalyticsBaseURL = "https://youtubeanalytics.googleapis.com"
)

// defaultPrincipal scopes cached responses of OAuth callers when
// Config.Principal is empty.
const defaultPrincipal = "oauth"

// Client is the YouTube API client.
type Client struct {
	httpClient *http.Client
	redis      *redis.Client
	quota      *quota.Tracker
	cache      *cache.Manager
	tokens     oauth2.TokenSource
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// Redis client for caching and quota state
	Redis *redis.Client

	// User-Agent header
	// Format: "AppName/Version (contact@example.com)"
	UserAgent string

	// Credentials. TokenSource wins when both are set; the API key alone
	// only reaches public data (no mine=true, no Analytics).
	APIKey      string
	TokenSource oauth2.TokenSource

	// Principal names the authorized account in cache keys so responses
	// of different accounts never mix. Defaults to "oauth".
	Principal string

	// API hosts, overridable for tests
	BaseURL          string
	AnalyticsBaseURL string

	// Quota
	DailyQuota     int64 // Units per day of the Cloud project
	QuotaThreshold int64 // Block requests when fewer units remain

	// Caching
	CacheTTL         time.Duration // Freshness of responses without caching headers
	CacheStaleWindow time.Duration // How long stale entries with an ETag are kept for revalidation

	// Retry
	MaxRetries     int
	InitialBackoff time.Duration

	RequestTimeout time.Duration
}

// DefaultConfig returns a safe default configuration.
// Credentials must still be set.
func DefaultConfig(redis *redis.Client, userAgent string) Config {
	return Config{
		Redis:            redis,
		UserAgent:        userAgent,
		BaseURL:          DefaultBaseURL,
		AnalyticsBaseURL: DefaultAnalyticsBaseURL,
		DailyQuota:       quota.DefaultDailyLimit,
		QuotaThreshold:   50,
		CacheTTL:         cache.DefaultTTL,
		CacheStaleWindow: cache.DefaultStaleWindow,
		MaxRetries:       3,
		InitialBackoff:   1 * time.Second,
		RequestTimeout:   30 * time.Second,
	}
}

// New creates a new YouTube API client.
func New(cfg Config) (*Client, error) {
	if cfg.Redis == nil {
		return nil, fmt.Errorf("redis client is required")
	}

	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if cfg.APIKey == "" && cfg.TokenSource == nil {
		return nil, ErrMissingCredentials
	}

	if cfg.QuotaThreshold < 1 {
		return nil, fmt.Errorf("quota_threshold must be >= 1 (got %d)", cfg.QuotaThreshold)
	}

	if cfg.DailyQuota <= cfg.QuotaThreshold {
		return nil, fmt.Errorf("daily_quota must exceed quota_threshold (got %d <= %d)", cfg.DailyQuota, cfg.QuotaThreshold)
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.AnalyticsBaseURL == "" {
		cfg.AnalyticsBaseURL = DefaultAnalyticsBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	cfg.AnalyticsBaseURL = strings.TrimRight(cfg.AnalyticsBaseURL, "/")

	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	logger := logging.NewLogger("yt-client")

	cacheManager := cache.NewManager(cfg.Redis)
	if cfg.CacheStaleWindow > 0 {
		cacheManager.WithStaleWindow(cfg.CacheStaleWindow)
	}

	var tokens oauth2.TokenSource
	if cfg.TokenSource != nil {
		tokens = oauth2.ReuseTokenSource(nil, cfg.TokenSource)
		if cfg.Principal == "" {
			cfg.Principal = defaultPrincipal
		}
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		redis:  cfg.Redis,
		quota:  quota.NewTracker(cfg.Redis, cfg.DailyQuota, cfg.QuotaThreshold, logger),
		cache:  cacheManager,
		tokens: tokens,
		config: cfg,
		logger: logger,
	}, nil
}

// Do performs a GET request with quota gating, caching, and retries.
//
// A fresh cached response is served without a request and without quota
// cost. Otherwise the quota tracker is consulted, a stale cached response
// is revalidated with If-None-Match, and the request is sent with retries.
// Responses other than 2xx and 304 are returned as *APIError.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	endpoint := req.URL.Path

	startTime := time.Now()
	defer func() {
		ytRequestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	// Step 1: Check Cache
	cacheKey := cache.Key{
		Endpoint:  endpoint,
		Query:     req.URL.Query(),
		Principal: c.config.Principal,
	}

	cachedEntry, err := c.cache.Get(ctx, cacheKey)
	if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
		c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Cache get error")
	}

	if cachedEntry != nil && !cachedEntry.IsExpired() {
		ytRequestsTotal.WithLabelValues(endpoint, "cache_hit").Inc()
		c.logger.Debug().Str("endpoint", endpoint).Dur("ttl", cachedEntry.TTL()).Msg("Serving fresh cache entry")
		return cache.EntryToResponse(cachedEntry, req), nil
	}

	// Step 2: Check Quota
	cost := quota.Cost(endpoint)
	if cost > 0 {
		allowed, err := c.quota.ShouldAllowRequest(ctx, cost)
		if err != nil {
			c.logger.Error().Err(err).Msg("Quota check failed")
			return nil, fmt.Errorf("quota check: %w", err)
		}
		if !allowed {
			c.logger.Warn().
				Str("endpoint", endpoint).
				Int64("cost", cost).
				Msg("Request blocked by quota tracker")
			ytRequestsTotal.WithLabelValues(endpoint, "quota_blocked").Inc()
			return nil, ErrQuotaBlocked
		}
	}

	// Step 3: Conditional request for stale entries
	if cachedEntry.CanRevalidate() {
		cache.AddConditionalHeaders(req, cachedEntry)
		cache.ConditionalRequestsSent.Inc()
		c.logger.Debug().
			Str("endpoint", endpoint).
			Str("etag", cachedEntry.ETag).
			Msg("Making conditional request")
	}

	// Step 4: Headers and credentials
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")
	if err := c.authorize(req); err != nil {
		ytErrorsTotal.WithLabelValues(string(ErrorClassAuth)).Inc()
		return nil, err
	}

	// Step 5: Execute with retries
	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("method", req.Method).
		Msg("Executing API request")

	var resp *http.Response
	retryErr := retryWithBackoff(ctx, func() error {
		r, reqErr := c.httpClient.Do(req)
		if reqErr != nil {
			c.logger.Error().Err(reqErr).Str("endpoint", endpoint).Msg("HTTP request failed")
			ytErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			ytRequestsTotal.WithLabelValues(endpoint, "network_error").Inc()
			return reqErr
		}

		// Every answered request is billed, errors included.
		c.consume(ctx, cost)

		ytRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(r.StatusCode)).Inc()
		if r.StatusCode < 400 {
			resp = r
			return nil
		}

		body, _ := io.ReadAll(r.Body)
		r.Body.Close()
		apiErr := parseAPIError(r.StatusCode, body)
		ytErrorsTotal.WithLabelValues(string(apiErr.ErrorClass)).Inc()

		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("status", r.StatusCode).
			Str("reason", apiErr.Reason).
			Str("error_class", string(apiErr.ErrorClass)).
			Msg("YouTube API request error")

		if apiErr.ErrorClass == ErrorClassQuota {
			if err := c.quota.MarkExhausted(ctx); err != nil {
				c.logger.Warn().Err(err).Msg("Failed to record quota exhaustion")
			}
		}
		return apiErr
	}, classifyErr, c.retryConfig)

	if retryErr != nil {
		return nil, retryErr
	}

	// Step 6: 304 Not Modified
	if resp.StatusCode == http.StatusNotModified && cachedEntry != nil {
		resp.Body.Close()
		cache.NotModifiedResponses.Inc()
		c.logger.Debug().Str("endpoint", endpoint).Msg("304 Not Modified - using cache")

		expires := cache.FreshUntil(resp.Header, time.Now(), c.config.CacheTTL)
		refreshed, err := c.cache.Refresh(ctx, cacheKey, expires)
		if err != nil {
			c.logger.Warn().Err(err).Msg("Failed to refresh cache entry")
			refreshed = cachedEntry
		}
		return cache.EntryToResponse(refreshed, req), nil
	}

	// Step 7: Update Cache on success
	if resp.StatusCode == http.StatusOK {
		entry, err := cache.ResponseToEntry(resp, c.config.CacheTTL)
		if err != nil {
			resp.Body.Close()
			return nil, fmt.Errorf("read response: %w", err)
		}
		if err := c.cache.Set(ctx, cacheKey, entry); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to cache response")
		} else {
			c.logger.Debug().
				Str("endpoint", endpoint).
				Dur("ttl", entry.TTL()).
				Msg("Cached response")
		}
	}

	return resp, nil
}

// authorize sets the bearer token, or the API key when no token source
// is configured.
func (c *Client) authorize(req *http.Request) error {
	if c.tokens != nil {
		token, err := c.tokens.Token()
		if err != nil {
			return &APIError{
				StatusCode: http.StatusUnauthorized,
				ErrorClass: ErrorClassAuth,
				Message:    "obtain access token",
				Err:        err,
			}
		}
		token.SetAuthHeader(req)
		return nil
	}

	q := req.URL.Query()
	q.Set("key", c.config.APIKey)
	req.URL.RawQuery = q.Encode()
	return nil
}

func (c *Client) consume(ctx context.Context, cost int64) {
	if cost <= 0 {
		return
	}
	if _, err := c.quota.Consume(ctx, cost); err != nil {
		c.logger.Warn().Err(err).Int64("cost", cost).Msg("Failed to record quota usage")
	}
}

// retryConfig applies Config.MaxRetries and Config.InitialBackoff to the
// per-class retry policy.
func (c *Client) retryConfig(class ErrorClass) RetryConfig {
	rc := RetryConfigForErrorClass(class)
	if c.config.MaxRetries > 0 {
		rc.MaxAttempts = c.config.MaxRetries
	}
	if c.config.InitialBackoff > 0 {
		rc = rc.scaled(float64(c.config.InitialBackoff) / float64(DefaultRetryConfig().InitialBackoff))
	}
	return rc
}

// Get performs a GET request against baseURL+path.
func (c *Client) Get(ctx context.Context, baseURL, path string, query url.Values) (*http.Response, error) {
	u := baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	return c.Do(req)
}

// Quota returns the current quota state.
func (c *Client) Quota(ctx context.Context) (*quota.State, error) {
	return c.quota.State(ctx)
}

// Ping checks the Redis connection used for cache and quota state.
func (c *Client) Ping(ctx context.Context) error {
	return c.redis.Ping(ctx).Err()
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// Cache returns the cache manager.
func (c *Client) Cache() *cache.Manager {
	return c.cache
}

// readBody drains and closes resp.Body.
func readBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return body, nil
}
