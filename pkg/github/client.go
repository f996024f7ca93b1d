// Package github is the single point of contact with the hosting platform's
// REST API. The client owns authentication, local quota tracking, pacing,
// retry with exponential backoff, and the circuit breaker; no other package
// issues upstream requests directly.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	apierrors "github.com/pluginatlas/pluginatlas/pkg/errors"
	"github.com/pluginatlas/pluginatlas/pkg/logging"
	"github.com/pluginatlas/pluginatlas/pkg/ratelimit"
)

const (
	defaultBaseURL   = "https://api.github.com"
	defaultUserAgent = "pluginatlas/1.0"
	apiVersion       = "2022-11-28"

	// maxBodySize bounds response reads; no payload the pipeline consumes
	// is legitimately larger.
	maxBodySize = 10 << 20
)

// Options configures a Client. Zero values fall back to defaults.
type Options struct {
	BaseURL           string
	Token             string
	Timeout           time.Duration
	RequestsPerSecond float64
	Retry             RetryConfig
	Breaker           CircuitBreakerConfig
	Limiter           *ratelimit.Limiter
	Logger            *logging.Logger
}

// Client is the rate-limited API client.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *ratelimit.Limiter
	pacer      *rate.Limiter
	breaker    *circuitBreaker
	retry      RetryConfig
	logger     *logging.Logger
}

// NewClient creates a client. The limiter is constructor-injected so callers
// needing isolation (tests, parallel scans) can supply their own.
func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 2
	}
	if opts.Retry.MaxDelay == 0 {
		opts.Retry = DefaultRetryConfig()
	}
	if opts.Limiter == nil {
		opts.Limiter = ratelimit.NewLimiter(nil, ratelimit.DefaultConfig())
	}
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}

	return &Client{
		baseURL: opts.BaseURL,
		token:   opts.Token,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     30 * time.Second,
			},
		},
		limiter: opts.Limiter,
		pacer:   rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1),
		breaker: newCircuitBreaker(opts.Breaker),
		retry:   opts.Retry,
		logger:  opts.Logger,
	}
}

// Limiter exposes the shared quota tracker for back-pressure decisions by
// dependent components.
func (c *Client) Limiter() *ratelimit.Limiter {
	return c.limiter
}

// SearchRepositories issues one page of a repository search.
func (c *Client) SearchRepositories(ctx context.Context, query string, page, perPage int) (*RepoSearchResult, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(perPage))
	q.Set("sort", "stars")
	q.Set("order", "desc")

	var result RepoSearchResult
	if err := c.getJSON(ctx, ratelimit.BucketSearch, "/search/repositories", q, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetRepository fetches a single repository's metadata.
func (c *Client) GetRepository(ctx context.Context, owner, repo string) (*Repository, error) {
	var result Repository
	path := fmt.Sprintf("/repos/%s/%s", owner, repo)
	if err := c.getJSON(ctx, ratelimit.BucketCore, path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetContents fetches a file by path. When the path resolves to a directory
// the result has Type == "dir" and no content; callers treat that as a valid
// negative, not a fault.
func (c *Client) GetContents(ctx context.Context, owner, repo, path, ref string) (*ContentFile, error) {
	q := url.Values{}
	if ref != "" {
		q.Set("ref", ref)
	}

	apiPath := fmt.Sprintf("/repos/%s/%s/contents/%s", owner, repo, path)
	body, _, err := c.execute(ctx, ratelimit.BucketCore, http.MethodGet, apiPath, q)
	if err != nil {
		return nil, err
	}

	// A directory listing arrives as a JSON array.
	if len(bytes.TrimSpace(body)) > 0 && bytes.TrimSpace(body)[0] == '[' {
		return &ContentFile{Type: "dir", Path: path}, nil
	}

	var file ContentFile
	if err := json.Unmarshal(body, &file); err != nil {
		return nil, apierrors.NewValidationError(fmt.Sprintf("malformed content payload for %s: %v", apiPath, err))
	}
	return &file, nil
}

// ListLanguages fetches the language byte breakdown of a repository.
func (c *Client) ListLanguages(ctx context.Context, owner, repo string) (map[string]int, error) {
	var result map[string]int
	path := fmt.Sprintf("/repos/%s/%s/languages", owner, repo)
	if err := c.getJSON(ctx, ratelimit.BucketCore, path, nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// ListContributors fetches up to max contributors, most active first.
func (c *Client) ListContributors(ctx context.Context, owner, repo string, max int) ([]Contributor, error) {
	q := url.Values{}
	q.Set("per_page", strconv.Itoa(max))

	var result []Contributor
	path := fmt.Sprintf("/repos/%s/%s/contributors", owner, repo)
	if err := c.getJSON(ctx, ratelimit.BucketCore, path, q, &result); err != nil {
		return nil, err
	}
	if len(result) > max {
		result = result[:max]
	}
	return result, nil
}

// ListCommits fetches up to max recent commits, newest first.
func (c *Client) ListCommits(ctx context.Context, owner, repo string, max int) ([]Commit, error) {
	q := url.Values{}
	q.Set("per_page", strconv.Itoa(max))

	var result []Commit
	path := fmt.Sprintf("/repos/%s/%s/commits", owner, repo)
	if err := c.getJSON(ctx, ratelimit.BucketCore, path, q, &result); err != nil {
		return nil, err
	}
	if len(result) > max {
		result = result[:max]
	}
	return result, nil
}

// GetRateLimit introspects the server-side quota and refreshes the shared
// rate-limit state for both buckets.
func (c *Client) GetRateLimit(ctx context.Context) (*RateLimitInfo, error) {
	var info RateLimitInfo
	if err := c.getJSON(ctx, ratelimit.BucketCore, "/rate_limit", nil, &info); err != nil {
		return nil, err
	}

	core := info.Resources.Core
	c.limiter.UpdateState(ratelimit.BucketCore, core.Limit, core.Remaining, time.Unix(core.Reset, 0), core.Used)
	search := info.Resources.Search
	c.limiter.UpdateState(ratelimit.BucketSearch, search.Limit, search.Remaining, time.Unix(search.Reset, 0), search.Used)

	return &info, nil
}

// getJSON executes a GET and decodes the payload into v. A decode failure is
// a validation error at this boundary.
func (c *Client) getJSON(ctx context.Context, bucket ratelimit.Bucket, path string, query url.Values, v any) error {
	body, _, err := c.execute(ctx, bucket, http.MethodGet, path, query)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return apierrors.NewValidationError(fmt.Sprintf("malformed payload for %s: %v", path, err))
	}
	return nil
}

// execute wraps every outbound call: local window admission, pacing, the
// circuit breaker, retry with backoff, error classification, and rate-limit
// header bookkeeping.
func (c *Client) execute(ctx context.Context, bucket ratelimit.Bucket, method, path string, query url.Values) ([]byte, http.Header, error) {
	if err := c.admit(ctx, bucket); err != nil {
		return nil, nil, err
	}

	var lastErr error
	for attempt := 0; attempt <= c.retry.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, nil, apierrors.ToAppError(err)
		}

		if err := c.breaker.allow(); err != nil {
			return nil, nil, apierrors.NewNetworkError("upstream temporarily unavailable", err)
		}

		if err := c.pacer.Wait(ctx); err != nil {
			return nil, nil, apierrors.ToAppError(err)
		}

		body, header, appErr := c.dispatch(ctx, method, path, query, attempt)
		if appErr == nil {
			c.breaker.recordSuccess()
			c.updateStateFromHeaders(bucket, header)
			return body, header, nil
		}

		if header != nil {
			c.updateStateFromHeaders(bucket, header)
		}

		switch appErr.Category {
		case apierrors.CategoryAbuseLimit:
			// Server-dictated mandatory wait; escalated logging, never
			// retried automatically.
			c.breaker.recordFailure()
			c.logger.Error("abuse limit triggered",
				"path", path,
				"retry_after", appErr.RetryAfter.String(),
			)
			return nil, header, appErr

		case apierrors.CategoryNetwork:
			c.breaker.recordFailure()
		case apierrors.CategoryRateLimit:
			// Quota exhaustion is not an upstream health problem.
		default:
			// Fatal for this call: not found, validation, unknown.
			return nil, header, appErr
		}

		lastErr = appErr
		if attempt == c.retry.MaxRetries {
			break
		}

		delay := jitteredBackoff(c.retry, attempt)
		if hint := apierrors.RetryAfterHint(appErr); hint > delay {
			delay = hint
		}
		c.logger.Warn("retrying upstream call",
			"path", path,
			"attempt", attempt+1,
			"delay_ms", delay.Milliseconds(),
			"error", appErr.Error(),
		)
		if err := sleepCtx(ctx, delay); err != nil {
			return nil, nil, apierrors.ToAppError(err)
		}
	}

	return nil, nil, lastErr
}

// dispatch performs one HTTP round trip and classifies the outcome.
func (c *Client) dispatch(ctx context.Context, method, path string, query url.Values, attempt int) ([]byte, http.Header, *apierrors.AppError) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return nil, nil, apierrors.NewValidationError(fmt.Sprintf("malformed request for %s: %v", path, err))
	}

	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", defaultUserAgent)
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, apierrors.ToAppError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, resp.Header, apierrors.NewNetworkError("failed reading response body", err)
	}

	c.logger.ExternalAPICall(method, path, resp.StatusCode, time.Since(start), attempt)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return body, resp.Header, nil
	}
	return nil, resp.Header, apierrors.ClassifyHTTP(resp.StatusCode, resp.Header, string(body))
}

// admit consults the local sliding window. On exhaustion it sleeps until the
// window should admit again and re-checks exactly once; a second exhaustion
// fails fast rather than looping.
func (c *Client) admit(ctx context.Context, bucket ratelimit.Bucket) error {
	res, err := c.limiter.Allow(ctx, bucket)
	if err != nil {
		return apierrors.NewUnknownError("rate limiter failure", err)
	}
	if res.Allowed {
		return nil
	}

	wait := res.RetryAfter
	if next := c.limiter.TimeUntilNext(bucket); next > wait {
		wait = next
	}
	c.logger.Warn("local rate window exhausted, waiting",
		"bucket", string(bucket),
		"wait_ms", wait.Milliseconds(),
	)
	if err := sleepCtx(ctx, wait); err != nil {
		return apierrors.ToAppError(err)
	}

	res, err = c.limiter.Allow(ctx, bucket)
	if err != nil {
		return apierrors.NewUnknownError("rate limiter failure", err)
	}
	if !res.Allowed {
		return apierrors.NewRateLimitError(
			fmt.Sprintf("rate window for bucket %q still exhausted after waiting", bucket),
			res.RetryAfter,
		)
	}
	return nil
}

// updateStateFromHeaders pushes the server-reported quota headers into the
// shared limiter state after every call that produced headers.
func (c *Client) updateStateFromHeaders(bucket ratelimit.Bucket, header http.Header) {
	if header == nil || header.Get("X-RateLimit-Limit") == "" {
		return
	}

	limit, _ := strconv.Atoi(header.Get("X-RateLimit-Limit"))
	remaining, _ := strconv.Atoi(header.Get("X-RateLimit-Remaining"))
	used, _ := strconv.Atoi(header.Get("X-RateLimit-Used"))

	var resetAt time.Time
	if epoch, err := strconv.ParseInt(header.Get("X-RateLimit-Reset"), 10, 64); err == nil {
		resetAt = time.Unix(epoch, 0)
	}

	c.limiter.UpdateState(bucket, limit, remaining, resetAt, used)
}

// sleepCtx waits for d or until the context is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
