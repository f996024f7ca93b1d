package github

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "github.com/pluginatlas/pluginatlas/pkg/errors"
	"github.com/pluginatlas/pluginatlas/pkg/ratelimit"
)

func testClient(t *testing.T, serverURL string) *Client {
	t.Helper()
	return NewClient(Options{
		BaseURL:           serverURL,
		Token:             "test-token",
		Timeout:           2 * time.Second,
		RequestsPerSecond: 1000,
		Retry: RetryConfig{
			MaxRetries: 2,
			BaseDelay:  time.Millisecond,
			MaxDelay:   5 * time.Millisecond,
		},
		Limiter: ratelimit.NewLimiter(nil, ratelimit.Config{
			Buckets: map[ratelimit.Bucket]ratelimit.Rate{
				ratelimit.BucketCore:   {Limit: 1000, Period: time.Minute},
				ratelimit.BucketSearch: {Limit: 1000, Period: time.Minute},
			},
		}),
	})
}

func TestGetRepository(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/octocat/hello", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		w.Header().Set("X-RateLimit-Limit", "5000")
		w.Header().Set("X-RateLimit-Remaining", "4999")
		w.Header().Set("X-RateLimit-Used", "1")
		w.Write([]byte(`{
			"id": 1,
			"name": "hello",
			"full_name": "octocat/hello",
			"owner": {"login": "octocat", "type": "User"},
			"stargazers_count": 42,
			"forks_count": 7,
			"topics": ["claude-plugin"]
		}`))
	}))
	defer server.Close()

	client := testClient(t, server.URL)

	repo, err := client.GetRepository(context.Background(), "octocat", "hello")
	require.NoError(t, err)
	assert.Equal(t, "octocat/hello", repo.FullName)
	assert.Equal(t, 42, repo.Stars)
	assert.Equal(t, "User", repo.Owner.Type)

	// Rate-limit headers must feed the shared state.
	state, ok := client.Limiter().ServerState(ratelimit.BucketCore)
	require.True(t, ok)
	assert.Equal(t, 5000, state.Limit)
	assert.Equal(t, 4999, state.Remaining)
	assert.Equal(t, 1, state.Used)
}

func TestRetryOnServerError(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"id": 1, "name": "hello", "full_name": "octocat/hello"}`))
	}))
	defer server.Close()

	client := testClient(t, server.URL)

	repo, err := client.GetRepository(context.Background(), "octocat", "hello")
	require.NoError(t, err)
	assert.Equal(t, 3, calls, "two 502s then a success")
	assert.Equal(t, "octocat/hello", repo.FullName)
}

func TestNotFoundIsFatalNotRetried(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message": "Not Found"}`))
	}))
	defer server.Close()

	client := testClient(t, server.URL)

	_, err := client.GetRepository(context.Background(), "octocat", "gone")
	require.Error(t, err)
	assert.Equal(t, apierrors.CategoryNotFound, apierrors.ToAppError(err).Category)
	assert.Equal(t, 1, calls, "a 404 must not be retried")
}

func TestAbuseLimitNotRetried(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Retry-After", "120")
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"message": "You have exceeded a secondary rate limit"}`))
	}))
	defer server.Close()

	client := testClient(t, server.URL)

	_, err := client.GetRepository(context.Background(), "octocat", "hello")
	require.Error(t, err)

	appErr := apierrors.ToAppError(err)
	assert.Equal(t, apierrors.CategoryAbuseLimit, appErr.Category)
	assert.Equal(t, 120*time.Second, appErr.RetryAfter)
	assert.Equal(t, 1, calls, "abuse limits carry a mandatory wait and are never auto-retried")
}

func TestRetryBudgetExhaustion(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := testClient(t, server.URL)

	_, err := client.GetRepository(context.Background(), "octocat", "flaky")
	require.Error(t, err)
	assert.Equal(t, apierrors.CategoryNetwork, apierrors.ToAppError(err).Category)
	assert.Equal(t, 3, calls, "initial attempt plus two retries")
}

func TestGetContentsDirectory(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"type": "file", "name": "a.json"}, {"type": "file", "name": "b.json"}]`))
	}))
	defer server.Close()

	client := testClient(t, server.URL)

	file, err := client.GetContents(context.Background(), "octocat", "hello", ".claude-plugin", "")
	require.NoError(t, err)
	assert.Equal(t, "dir", file.Type, "array payloads collapse to a directory marker")
	assert.Empty(t, file.Content)
}

func TestMalformedPayloadIsValidationError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"stargazers_count": "not-a-number"}`))
	}))
	defer server.Close()

	client := testClient(t, server.URL)

	_, err := client.GetRepository(context.Background(), "octocat", "hello")
	require.Error(t, err)
	assert.Equal(t, apierrors.CategoryValidation, apierrors.ToAppError(err).Category)
}

func TestSearchRepositoriesUsesSearchBucket(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search/repositories", r.URL.Path)
		assert.Contains(t, r.URL.Query().Get("q"), "marketplace")
		w.Header().Set("X-RateLimit-Limit", "30")
		w.Header().Set("X-RateLimit-Remaining", "29")
		w.Write([]byte(`{"total_count": 1, "items": [{"id": 1, "name": "mp", "full_name": "o/mp"}]}`))
	}))
	defer server.Close()

	client := testClient(t, server.URL)

	result, err := client.SearchRepositories(context.Background(), "marketplace in:path", 1, 30)
	require.NoError(t, err)
	assert.Equal(t, 1, result.TotalCount)
	require.Len(t, result.Items, 1)

	state, ok := client.Limiter().ServerState(ratelimit.BucketSearch)
	require.True(t, ok)
	assert.Equal(t, 30, state.Limit)
}

func TestLocalWindowFailsFastAfterOneRecheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id": 1, "name": "x", "full_name": "o/x"}`))
	}))
	defer server.Close()

	client := NewClient(Options{
		BaseURL:           server.URL,
		RequestsPerSecond: 1000,
		Retry:             RetryConfig{MaxRetries: 0, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
		Limiter: ratelimit.NewLimiter(nil, ratelimit.Config{
			Buckets: map[ratelimit.Bucket]ratelimit.Rate{
				ratelimit.BucketCore:   {Limit: 1, Period: 10 * time.Second},
				ratelimit.BucketSearch: {Limit: 1, Period: 10 * time.Second},
			},
		}),
	})

	_, err := client.GetRepository(context.Background(), "o", "x")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err = client.GetRepository(ctx, "o", "x")
	require.Error(t, err, "second call inside the window must not succeed")
}
