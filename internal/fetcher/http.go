// Package fetcher provides the shared rate-limited HTTP client used for all
// outbound calls (geocoding search, lot-index boundaries, basemap tiles).
package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Options configures the HTTP client.
type Options struct {
	UserAgent    string
	Timeout      time.Duration
	MaxBodyBytes int64
	// PerHostRate limits request throughput per upstream host.
	PerHostRate  rate.Limit
	PerHostBurst int
}

// Client is a thin wrapper over net/http with per-host rate limiting, a
// fixed User-Agent, and bounded body reads. One fixed connect/read timeout
// applies to every call; context deadlines propagate through requests.
type Client struct {
	http *http.Client
	opts Options

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// New creates a Client with the given options.
func New(opts Options) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.MaxBodyBytes == 0 {
		opts.MaxBodyBytes = 32 << 20
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "siteatlas/1.0"
	}
	if opts.PerHostRate == 0 {
		opts.PerHostRate = 10
	}
	if opts.PerHostBurst == 0 {
		opts.PerHostBurst = 10
	}
	transport := &http.Transport{
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     20,
		IdleConnTimeout:     90 * time.Second,
	}
	return &Client{
		http: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		opts:     opts,
		limiters: make(map[string]*rate.Limiter),
	}
}

// limiterFor returns (creating if needed) the rate limiter for the URL's host.
func (c *Client) limiterFor(rawURL string) *rate.Limiter {
	host := ""
	if u, err := url.Parse(rawURL); err == nil {
		host = u.Host
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	lim, ok := c.limiters[host]
	if !ok {
		lim = rate.NewLimiter(c.opts.PerHostRate, c.opts.PerHostBurst)
		c.limiters[host] = lim
	}
	return lim
}

// Get issues a GET request and returns the response body and status code.
// A non-2xx status is not an error here; callers decide what a given status
// means for their contract.
func (c *Client) Get(ctx context.Context, rawURL string) ([]byte, int, error) {
	if err := c.limiterFor(rawURL).Wait(ctx); err != nil {
		return nil, 0, eris.Wrap(err, "fetcher: rate limiter wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, eris.Wrap(err, "fetcher: build request")
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, eris.Wrapf(err, "fetcher: get %s", rawURL)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.opts.MaxBodyBytes))
	if err != nil {
		return nil, resp.StatusCode, eris.Wrap(err, "fetcher: read body")
	}

	zap.L().Debug("fetcher: GET",
		zap.String("url", rawURL),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(body)),
	)
	return body, resp.StatusCode, nil
}
