package github

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchReadme_ReturnsBodyVerbatim(t *testing.T) {
	const readme = "# Hello-World\n\nMy first repository on GitHub!\n"

	var gotPath, gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAccept = r.Header.Get("Accept")
		assert.Equal(t, http.MethodGet, r.Method)
		_, _ = w.Write([]byte(readme))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	body, err := c.FetchReadme(context.Background(), "https://github.com/octocat/Hello-World")
	require.NoError(t, err)

	assert.Equal(t, readme, body)
	assert.Equal(t, "/repos/octocat/Hello-World/readme", gotPath)
	assert.Equal(t, "application/vnd.github.raw+json", gotAccept)
}

func TestFetchReadme_NonSuccessStatus(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusForbidden, http.StatusInternalServerError} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))

		_, err := NewClient(srv.URL).FetchReadme(context.Background(), "https://github.com/octocat/missing")
		assert.ErrorIs(t, err, ErrFetchFailed, "status %d", status)

		srv.Close()
	}
}

func TestFetchReadme_InvalidURLMakesNoRequest(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).FetchReadme(context.Background(), "https://example.com/nope")
	assert.ErrorIs(t, err, ErrInvalidURL)
	assert.NotErrorIs(t, err, ErrFetchFailed)
	assert.Equal(t, int32(0), calls.Load())
}

func TestFetchReadme_NoRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).FetchReadme(context.Background(), "https://github.com/a/b")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetchReadme_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := srv.URL
	srv.Close()

	_, err := NewClient(base).FetchReadme(context.Background(), "https://github.com/a/b")
	assert.ErrorIs(t, err, ErrFetchFailed)
}

func TestFetchReadme_RateLimitedWaitHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithRateLimit(0.001, 1))

	_, err := c.FetchReadme(context.Background(), "https://github.com/a/b")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.FetchReadme(ctx, "https://github.com/a/b")
	assert.ErrorIs(t, err, ErrFetchFailed)
}

func TestNewClient_DefaultBaseURL(t *testing.T) {
	c := NewClient("")
	assert.Equal(t, DefaultBaseURL, c.baseURL)
	assert.Nil(t, c.limiter)

	c = NewClient("http://localhost:9999/", WithRateLimit(0, 5))
	assert.Equal(t, "http://localhost:9999", c.baseURL)
	assert.Nil(t, c.limiter)
}
