// Package platform is a REST client for the grant-management platform that
// publishes scored applications.
//
// Requests are paced by a fixed inter-request delay. Responses with status
// 429 or 5xx are retried with exponential backoff and jitter; a Retry-After
// header, when present, overrides the computed delay.
package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/okian/reviewrank/internal/domain/model"
	"github.com/okian/reviewrank/pkg/logger"
	"github.com/okian/reviewrank/pkg/metrics"
)

const (
	defaultPageSize     = 100
	defaultRequestDelay = 250 * time.Millisecond
	defaultMaxRetries   = 3
	defaultBaseDelay    = 500 * time.Millisecond
	defaultMaxDelay     = 30 * time.Second
	defaultTimeout      = 30 * time.Second
	maxPages            = 10000
	maxErrorBody        = 512
)

// Page is one page of a score set's applications.
type Page struct {
	Entries []model.PlatformEntry `json:"data"`
	// Next is empty on the last page.
	Next string `json:"next"`
}

// Client fetches scored applications from the platform.
type Client struct {
	baseURL      *url.URL
	apiKey       string
	pageSize     int
	requestDelay time.Duration
	maxRetries   int
	baseDelay    time.Duration
	maxDelay     time.Duration

	http    *http.Client
	limiter *rate.Limiter
	logger  logger.Logger
}

// New creates a client for the API rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, baseURL)
	}
	c := &Client{
		baseURL:      u,
		pageSize:     defaultPageSize,
		requestDelay: defaultRequestDelay,
		maxRetries:   defaultMaxRetries,
		baseDelay:    defaultBaseDelay,
		maxDelay:     defaultMaxDelay,
		http:         &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logger.Get().Named("platform")
	}
	limit := rate.Inf
	if c.requestDelay > 0 {
		limit = rate.Every(c.requestDelay)
	}
	c.limiter = rate.NewLimiter(limit, 1)
	return c, nil
}

// ListEntries fetches one page (1-based) of a score set's applications.
func (c *Client) ListEntries(ctx context.Context, scoreSetSlug string, page int) (Page, error) {
	u := *c.baseURL
	u.Path = path.Join(u.Path, "score-sets", url.PathEscape(scoreSetSlug), "applications")
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(c.pageSize))
	u.RawQuery = q.Encode()

	body, err := c.get(ctx, u.String())
	if err != nil {
		return Page{}, err
	}
	defer body.Close()

	var p Page
	if err := json.NewDecoder(body).Decode(&p); err != nil {
		return Page{}, fmt.Errorf("decode page %d of %q: %w", page, scoreSetSlug, err)
	}
	metrics.RecordPlatformPage()
	return p, nil
}

// FetchAll walks every page of a score set until a page has no next link.
func (c *Client) FetchAll(ctx context.Context, scoreSetSlug string) ([]model.PlatformEntry, error) {
	var out []model.PlatformEntry
	for page := 1; page <= maxPages; page++ {
		p, err := c.ListEntries(ctx, scoreSetSlug, page)
		if err != nil {
			return nil, err
		}
		out = append(out, p.Entries...)
		if p.Next == "" || len(p.Entries) == 0 {
			c.logger.Debug(ctx, "fetched score set",
				logger.String("score_set", scoreSetSlug),
				logger.Int("pages", page),
				logger.Int("entries", len(out)),
			)
			return out, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrTooManyPages, scoreSetSlug)
}

// get performs a paced GET with retries and returns the response body.
func (c *Client) get(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("request pacing: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.http.Do(req)
		var wait time.Duration
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = fmt.Errorf("get %s: %w", rawURL, err)
		case resp.StatusCode == http.StatusOK:
			return resp.Body, nil
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
			wait = retryAfter(resp.Header.Get("Retry-After"), time.Now())
			lastErr = statusError(resp)
		default:
			return nil, statusError(resp)
		}

		if attempt == c.maxRetries {
			break
		}
		if wait <= 0 {
			wait = c.backoff(attempt)
		}
		if wait > c.maxDelay {
			wait = c.maxDelay
		}
		metrics.RecordPlatformRetry()
		c.logger.Warn(ctx, "retrying platform request",
			logger.Int("attempt", attempt+1),
			logger.Duration("wait", wait),
			logger.Error(lastErr),
		)

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
	return nil, fmt.Errorf("request failed after %d attempts: %w", c.maxRetries+1, lastErr)
}

// backoff is base * 2^attempt with +/-25% jitter, capped at maxDelay.
func (c *Client) backoff(attempt int) time.Duration {
	if attempt > 30 {
		attempt = 30
	}
	delay := c.baseDelay * time.Duration(1<<uint(attempt))         //nolint:gosec // attempt is bounded
	jitter := time.Duration(rand.Float64() * float64(delay) * 0.5) //nolint:gosec // jitter does not need a CSPRNG
	delay = delay + jitter - delay/4
	if delay > c.maxDelay {
		delay = c.maxDelay
	}
	return delay
}

// retryAfter parses a Retry-After header given in seconds or as an HTTP date.
func retryAfter(v string, now time.Time) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

func statusError(resp *http.Response) error {
	defer resp.Body.Close()
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	kind := ErrUnexpectedStatus
	if resp.StatusCode == http.StatusTooManyRequests {
		kind = ErrRateLimited
	}
	return fmt.Errorf("%w: %d %s", kind, resp.StatusCode, string(snippet))
}
