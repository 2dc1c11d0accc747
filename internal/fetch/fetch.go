// Package fetch downloads product pages politely: bounded retries, a
// per-host request rate, a global concurrency cap, robots.txt checks and
// conditional revalidation against the on-disk page cache.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/hyperifyio/goprice/internal/cache"
	"github.com/hyperifyio/goprice/internal/robots"
)

// DefaultMaxBody caps how much of a page is read.
const DefaultMaxBody = 8 << 20

// StatusError is a non-2xx, non-304 response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string { return fmt.Sprintf("unexpected status: %d", e.Code) }

// ErrUnsupported is returned for non-HTTP URLs and non-HTML responses.
var ErrUnsupported = errors.New("fetch: unsupported")

// Page is a fetched document body.
type Page struct {
	URL         string
	ContentType string
	Body        []byte
	FromCache   bool
}

// Client is safe for concurrent use once configured.
type Client struct {
	HTTPClient *http.Client
	UserAgent  string
	// MaxAttempts includes the first try. Minimum 1.
	MaxAttempts int
	// Timeout bounds each attempt.
	Timeout time.Duration
	// Cache enables conditional revalidation and serving fresh entries.
	Cache *cache.Store
	// BypassCache skips cache reads but still stores responses.
	BypassCache bool
	// MaxRedirects caps redirect hops. Zero means 5.
	MaxRedirects int
	// MaxConcurrent caps in-flight requests across all hosts. Zero means unlimited.
	MaxConcurrent int
	// RatePerHost is the sustained requests per second allowed per host.
	// Zero means unlimited unless robots.txt asks for a crawl delay.
	RatePerHost float64
	// Robots, when set, is consulted before every network fetch.
	Robots *robots.Checker
	// MaxBody caps the body size. Zero means DefaultMaxBody.
	MaxBody int64

	initOnce sync.Once
	sem      *semaphore.Weighted
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func (c *Client) init() {
	c.initOnce.Do(func() {
		if c.MaxConcurrent > 0 {
			c.sem = semaphore.NewWeighted(int64(c.MaxConcurrent))
		}
		c.limiters = make(map[string]*rate.Limiter)
	})
}

// Get fetches rawURL, serving or revalidating from the cache when possible.
func (c *Client) Get(ctx context.Context, rawURL string) (*Page, error) {
	c.init()
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("fetch: parse url: %w", err)
	}
	if !isHTTPScheme(u) {
		return nil, fmt.Errorf("%w: scheme %q", ErrUnsupported, u.Scheme)
	}

	var cached *cache.Entry
	var cachedBody []byte
	if c.Cache != nil && !c.BypassCache {
		if e, body, err := c.Cache.Load(ctx, rawURL); err == nil {
			cached, cachedBody = e, body
			if c.Cache.Fresh(e) {
				log.Debug().Str("url", rawURL).Msg("serving fresh cache entry")
				return &Page{URL: rawURL, ContentType: e.ContentType, Body: body, FromCache: true}, nil
			}
		}
	}

	if err := c.checkRobots(ctx, u, rawURL); err != nil {
		return nil, err
	}

	attempts := c.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(i) * 200 * time.Millisecond):
			}
		}
		page, status, err := c.attempt(ctx, u, cached)
		if err == nil {
			if status == http.StatusNotModified {
				_ = c.Cache.Touch(ctx, rawURL)
				return &Page{URL: rawURL, ContentType: cached.ContentType, Body: cachedBody, FromCache: true}, nil
			}
			if c.Cache != nil {
				if err := c.Cache.Save(ctx, cache.Entry{
					URL:          rawURL,
					ContentType:  page.ContentType,
					ETag:         page.etag,
					LastModified: page.lastModified,
				}, page.Body); err != nil {
					log.Warn().Err(err).Str("url", rawURL).Msg("cache save failed")
				}
			}
			return &page.Page, nil
		}
		lastErr = err
		if !isTransient(err) {
			break
		}
		log.Debug().Err(err).Str("url", rawURL).Int("attempt", i+1).Msg("transient fetch error")
	}
	return nil, lastErr
}

// Admit applies the same robots.txt policy and per-host pacing as Get
// without making the request. Callers that load pages some other way, such
// as a browser, call it before each navigation.
func (c *Client) Admit(ctx context.Context, rawURL string) error {
	c.init()
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("fetch: parse url: %w", err)
	}
	if !isHTTPScheme(u) {
		return fmt.Errorf("%w: scheme %q", ErrUnsupported, u.Scheme)
	}
	if err := c.checkRobots(ctx, u, rawURL); err != nil {
		return err
	}
	return c.limiter(u.Host).Wait(ctx)
}

func (c *Client) checkRobots(ctx context.Context, u *url.URL, rawURL string) error {
	if c.Robots == nil {
		return nil
	}
	delay, err := c.Robots.Check(ctx, rawURL)
	if err != nil {
		return err
	}
	c.respectDelay(u.Host, delay)
	return nil
}

type response struct {
	Page
	etag         string
	lastModified string
}

func (c *Client) attempt(ctx context.Context, u *url.URL, cached *cache.Entry) (response, int, error) {
	if err := c.limiter(u.Host).Wait(ctx); err != nil {
		return response{}, 0, err
	}
	if c.sem != nil {
		if err := c.sem.Acquire(ctx, 1); err != nil {
			return response{}, 0, err
		}
		defer c.sem.Release(1)
	}
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return response{}, 0, fmt.Errorf("fetch: new request: %w", err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.1")
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	if cached != nil {
		if cached.ETag != "" {
			req.Header.Set("If-None-Match", cached.ETag)
		}
		if cached.LastModified != "" {
			req.Header.Set("If-Modified-Since", cached.LastModified)
		}
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return response{}, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified && cached != nil {
		return response{}, resp.StatusCode, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return response{}, resp.StatusCode, &StatusError{Code: resp.StatusCode}
	}
	ct := resp.Header.Get("Content-Type")
	if !isHTML(ct) {
		return response{}, resp.StatusCode, fmt.Errorf("%w: content type %q", ErrUnsupported, ct)
	}
	limit := c.MaxBody
	if limit <= 0 {
		limit = DefaultMaxBody
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return response{}, resp.StatusCode, fmt.Errorf("fetch: read body: %w", err)
	}
	return response{
		Page:         Page{URL: u.String(), ContentType: ct, Body: body},
		etag:         resp.Header.Get("ETag"),
		lastModified: resp.Header.Get("Last-Modified"),
	}, resp.StatusCode, nil
}

func (c *Client) limiter(host string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.limiters[host]
	if !ok {
		limit := rate.Inf
		if c.RatePerHost > 0 {
			limit = rate.Limit(c.RatePerHost)
		}
		l = rate.NewLimiter(limit, 1)
		c.limiters[host] = l
	}
	return l
}

// respectDelay slows a host's limiter to at most one request per delay.
func (c *Client) respectDelay(host string, delay time.Duration) {
	if delay <= 0 {
		return
	}
	l := c.limiter(host)
	if want := rate.Every(delay); want < l.Limit() {
		l.SetLimit(want)
	}
}

func (c *Client) httpClient() *http.Client {
	max := c.MaxRedirects
	if max <= 0 {
		max = 5
	}
	base := http.Client{}
	if c.HTTPClient != nil {
		base = *c.HTTPClient
	}
	base.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= max {
			return errors.New("too many redirects")
		}
		if !isHTTPScheme(req.URL) {
			return errors.New("redirect to unsupported scheme")
		}
		return nil
	}
	return &base
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= 500 || se.Code == http.StatusTooManyRequests
	}
	return false
}

func isHTTPScheme(u *url.URL) bool {
	if u == nil {
		return false
	}
	s := strings.ToLower(u.Scheme)
	return s == "http" || s == "https"
}

func isHTML(ct string) bool {
	ct = strings.ToLower(strings.TrimSpace(ct))
	return strings.HasPrefix(ct, "text/html") || strings.HasPrefix(ct, "application/xhtml+xml")
}
