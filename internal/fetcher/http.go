package fetcher

import (
	"context"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Options configures Client.
type Options struct {
	UserAgent string
	Timeout   time.Duration
	Attempts  int
	Rate      rate.Limit // requests per second per host
	Burst     int
	Backoff   time.Duration // first retry delay, doubled per attempt
}

func (o Options) withDefaults() Options {
	if o.UserAgent == "" {
		o.UserAgent = "geomarketing-cli/1.0"
	}
	if o.Timeout <= 0 {
		o.Timeout = 60 * time.Second
	}
	if o.Attempts <= 0 {
		o.Attempts = 3
	}
	if o.Rate <= 0 {
		o.Rate = 2
	}
	if o.Burst <= 0 {
		o.Burst = 1
	}
	if o.Backoff <= 0 {
		o.Backoff = time.Second
	}
	return o
}

// throttle is a per-host limiter that backs off on 429 and recovers on
// success, staying within [base/4, base*2].
type throttle struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	floor   rate.Limit
	ceil    rate.Limit
	current rate.Limit
}

func newThrottle(base rate.Limit, burst int) *throttle {
	return &throttle{
		limiter: rate.NewLimiter(base, burst),
		floor:   base / 4,
		ceil:    base * 2,
		current: base,
	}
}

func (t *throttle) wait(ctx context.Context) error {
	return t.limiter.Wait(ctx)
}

func (t *throttle) scale(factor float64) rate.Limit {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current = max(min(t.current*rate.Limit(factor), t.ceil), t.floor)
	t.limiter.SetLimit(t.current)
	return t.current
}

func (t *throttle) limit() rate.Limit {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// Client is an HTTP Fetcher with retries and per-host throttling.
type Client struct {
	http *http.Client
	opts Options

	mu    sync.Mutex
	hosts map[string]*throttle
}

// NewClient creates a Client, filling unset options with defaults.
func NewClient(opts Options) *Client {
	opts = opts.withDefaults()
	return &Client{
		http: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		opts:  opts,
		hosts: make(map[string]*throttle),
	}
}

func (c *Client) throttleFor(host string) *throttle {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.hosts[host]
	if !ok {
		t = newThrottle(c.opts.Rate, c.opts.Burst)
		c.hosts[host] = t
	}
	return t
}

// Mirror implements Fetcher. An existing file at path is offered to the
// server through If-Modified-Since; the file's mtime follows the
// response's Last-Modified header so later calls can revalidate.
func (c *Client) Mirror(ctx context.Context, rawURL, path string) (Mirrored, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Mirrored{}, eris.Wrapf(err, "fetcher: build request for %s", rawURL)
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)

	existing, statErr := os.Stat(path)
	if statErr == nil {
		req.Header.Set("If-Modified-Since", existing.ModTime().UTC().Format(http.TimeFormat))
	}

	resp, err := c.do(ctx, req)
	if err != nil {
		return Mirrored{}, eris.Wrapf(err, "fetcher: get %s", rawURL)
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusNotModified && statErr == nil:
		return Mirrored{Path: path, Bytes: existing.Size(), Unchanged: true}, nil
	case resp.StatusCode != http.StatusOK:
		return Mirrored{}, eris.Errorf("fetcher: %s returned status %d", rawURL, resp.StatusCode)
	}

	n, err := writeAtomic(path, resp.Body)
	if err != nil {
		return Mirrored{}, err
	}
	if lm, err := http.ParseTime(resp.Header.Get("Last-Modified")); err == nil {
		_ = os.Chtimes(path, lm, lm)
	}
	return Mirrored{Path: path, Bytes: n}, nil
}

// do sends req until it gets a non-retryable answer or runs out of
// attempts. Transport errors, 429, and 5xx are retried.
func (c *Client) do(ctx context.Context, req *http.Request) (*http.Response, error) {
	t := c.throttleFor(req.URL.Host)

	var lastErr error
	for attempt := 0; attempt < c.opts.Attempts; attempt++ {
		if attempt > 0 {
			if err := c.sleep(ctx, attempt); err != nil {
				return nil, eris.Wrap(err, "fetcher: wait for retry")
			}
		}
		if err := t.wait(ctx); err != nil {
			return nil, eris.Wrap(err, "fetcher: wait for rate limit")
		}

		resp, err := c.http.Do(req.Clone(ctx))
		switch {
		case err != nil:
			lastErr = err
		case resp.StatusCode == http.StatusTooManyRequests:
			_ = resp.Body.Close()
			lastErr = eris.Errorf("status %d", resp.StatusCode)
			zap.L().Warn("fetcher: throttled by host",
				zap.String("host", req.URL.Host),
				zap.Float64("rate", float64(t.scale(0.5))),
			)
		case resp.StatusCode >= http.StatusInternalServerError:
			_ = resp.Body.Close()
			lastErr = eris.Errorf("status %d", resp.StatusCode)
		default:
			t.scale(1.2)
			return resp, nil
		}

		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "fetcher: request cancelled")
		}
		zap.L().Warn("fetcher: attempt failed",
			zap.String("url", redact(req.URL)),
			zap.Int("attempt", attempt+1),
			zap.Error(lastErr),
		)
	}
	return nil, eris.Wrapf(lastErr, "fetcher: gave up after %d attempts", c.opts.Attempts)
}

// sleep waits Backoff*2^(attempt-1) plus up to 50% jitter, capped at 30
// times Backoff.
func (c *Client) sleep(ctx context.Context, attempt int) error {
	d := c.opts.Backoff << (attempt - 1)
	if limit := 30 * c.opts.Backoff; d > limit || d <= 0 {
		d = limit
	}
	if half := int64(d) / 2; half > 0 {
		d += time.Duration(rand.Int64N(half))
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

// writeAtomic streams r into a sibling temp file and renames it over path.
func writeAtomic(path string, r io.Reader) (int64, error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".partial-*")
	if err != nil {
		return 0, eris.Wrapf(err, "fetcher: create temp file in %s", dir)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	n, err := io.Copy(tmp, r)
	if err != nil {
		_ = tmp.Close()
		return n, eris.Wrapf(err, "fetcher: write %s", path)
	}
	if err := tmp.Close(); err != nil {
		return n, eris.Wrapf(err, "fetcher: close %s", tmp.Name())
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return n, eris.Wrapf(err, "fetcher: move into %s", path)
	}
	return n, nil
}

// redact drops the query string, which may carry API keys.
func redact(u *url.URL) string {
	c := *u
	c.RawQuery = ""
	c.User = nil
	return c.String()
}
