package github

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/dani-ai/dani/internal/metrics"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://api.github.com"

	acceptRaw = "application/vnd.github.raw+json"
)

var ErrFetchFailed = errors.New("failed to fetch README")

// ReadmeFetcher is what the playground needs from GitHub.
type ReadmeFetcher interface {
	FetchReadme(ctx context.Context, rawURL string) (string, error)
}

// Client talks to the GitHub REST API. Requests are sent once: no retry, no
// client-side timeout beyond what ctx carries.
type Client struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithRateLimit paces outbound calls; rps <= 0 leaves them unpaced.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func NewClient(baseURL string, opts ...Option) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

var _ ReadmeFetcher = (*Client)(nil)

// FetchReadme returns the raw README of the repository referenced by rawURL.
func (c *Client) FetchReadme(ctx context.Context, rawURL string) (string, error) {
	info, err := ParseRepoURL(rawURL)
	if err != nil {
		metrics.ReadmeFetchTotal.WithLabelValues("invalid_url").Inc()
		return "", err
	}

	body, err := c.get(ctx, readmePath(info))
	if err != nil {
		metrics.ReadmeFetchTotal.WithLabelValues("failed").Inc()
		return "", err
	}

	metrics.ReadmeFetchTotal.WithLabelValues("ok").Inc()
	return body, nil
}

func readmePath(info RepoInfo) string {
	return "/repos/" + url.PathEscape(info.Owner) + "/" + url.PathEscape(info.Repo) + "/readme"
}

func (c *Client) get(ctx context.Context, path string) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("%w: %v", ErrFetchFailed, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}

	req.Header.Set("Accept", acceptRaw)

	res, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}

	defer res.Body.Close()

	if res.StatusCode/100 != 2 {
		return "", fmt.Errorf("%w: path=%s status=%d", ErrFetchFailed, path, res.StatusCode)
	}

	b, err := io.ReadAll(res.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read body: %v", ErrFetchFailed, err)
	}

	return string(b), nil
}
