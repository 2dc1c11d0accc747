package robots

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/hyperifyio/goprice/internal/cache"
)

// Source says where a ruleset came from.
type Source int

const (
	SourceNetwork Source = iota
	SourceMemory
	SourceRevalidated
)

// ErrDisallowed is returned by Checker.Check when robots.txt forbids a URL.
var ErrDisallowed = errors.New("robots: disallowed")

// Checker fetches and remembers robots.txt per origin.
//
// A missing robots.txt (404 and other 4xx) allows everything. 401, 403, 5xx
// and network failures disallow the whole origin until the entry expires.
type Checker struct {
	HTTPClient *http.Client
	Cache      *cache.Store
	UserAgent  string
	// TTL is how long a ruleset is kept in memory. Default: 30m.
	TTL time.Duration
	// Timeout bounds a single robots.txt request. Default: 10s.
	Timeout time.Duration
	// AllowPrivateHosts permits loopback and private addresses.
	AllowPrivateHosts bool

	mu       sync.Mutex
	mem      map[string]memEntry
	inflight singleflight.Group
	now      func() time.Time
}

type fetched struct {
	rules Rules
	src   Source
}

type memEntry struct {
	rules   Rules
	expires time.Time
}

func (c *Checker) clock() time.Time {
	if c.now != nil {
		return c.now()
	}
	return time.Now()
}

// Check returns nil when pageURL may be fetched, ErrDisallowed when it may
// not, and the crawl delay the origin asks for.
func (c *Checker) Check(ctx context.Context, pageURL string) (time.Duration, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return 0, fmt.Errorf("robots: parse url: %w", err)
	}
	robotsURL := (&url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/robots.txt"}).String()
	rules, _, err := c.Rules(ctx, robotsURL)
	if err != nil {
		return 0, err
	}
	delay := rules.CrawlDelay(c.UserAgent)
	if !rules.Allowed(c.UserAgent, u.RequestURI()) {
		return delay, fmt.Errorf("%w: %s", ErrDisallowed, pageURL)
	}
	return delay, nil
}

// Rules returns the parsed robots.txt at robotsURL, from memory when fresh.
func (c *Checker) Rules(ctx context.Context, robotsURL string) (Rules, Source, error) {
	u, err := url.Parse(robotsURL)
	if err != nil {
		return Rules{}, SourceNetwork, fmt.Errorf("robots: parse url: %w", err)
	}
	if s := strings.ToLower(u.Scheme); s != "http" && s != "https" {
		return Rules{}, SourceNetwork, fmt.Errorf("robots: unsupported scheme %q", u.Scheme)
	}
	if !c.AllowPrivateHosts && isPrivateHost(u.Hostname()) {
		return Rules{}, SourceNetwork, fmt.Errorf("robots: private host not allowed: %s", u.Hostname())
	}

	if rules, ok := c.remembered(robotsURL); ok {
		return rules, SourceMemory, nil
	}

	// Concurrent callers for one origin share a single request.
	v, _, _ := c.inflight.Do(robotsURL, func() (any, error) {
		if rules, ok := c.remembered(robotsURL); ok {
			return fetched{rules, SourceMemory}, nil
		}
		rules, src := c.fetch(ctx, robotsURL)
		c.remember(robotsURL, rules)
		return fetched{rules, src}, nil
	})
	f := v.(fetched)
	return f.rules, f.src, nil
}

func (c *Checker) fetch(ctx context.Context, robotsURL string) (Rules, Source) {
	cached, body, _ := c.Cache.Load(ctx, robotsURL)

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return disallowAll, SourceNetwork
	}
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
	client := c.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		log.Debug().Err(err).Str("url", robotsURL).Msg("robots fetch failed; disallowing origin")
		return disallowAll, SourceNetwork
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified && cached != nil:
		_ = c.Cache.Touch(ctx, robotsURL)
		return Parse(string(body)), SourceRevalidated
	case resp.StatusCode >= 200 && resp.StatusCode <= 299:
		data, err := io.ReadAll(io.LimitReader(resp.Body, 512<<10))
		if err != nil {
			return disallowAll, SourceNetwork
		}
		if c.Cache != nil {
			_ = c.Cache.Save(ctx, cache.Entry{
				URL:          robotsURL,
				ContentType:  resp.Header.Get("Content-Type"),
				ETag:         resp.Header.Get("ETag"),
				LastModified: resp.Header.Get("Last-Modified"),
			}, data)
		}
		return Parse(string(data)), SourceNetwork
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden || resp.StatusCode >= 500:
		log.Debug().Int("status", resp.StatusCode).Str("url", robotsURL).Msg("robots unavailable; disallowing origin")
		return disallowAll, SourceNetwork
	default:
		return Rules{}, SourceNetwork
	}
}

func (c *Checker) remembered(key string) (Rules, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.mem[key]
	if !ok || !c.clock().Before(e.expires) {
		return Rules{}, false
	}
	return e.rules, true
}

func (c *Checker) remember(key string, rules Rules) {
	ttl := c.TTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mem == nil {
		c.mem = make(map[string]memEntry)
	}
	c.mem[key] = memEntry{rules: rules, expires: c.clock().Add(ttl)}
}

func isPrivateHost(host string) bool {
	h := strings.ToLower(strings.Trim(host, "[]"))
	if h == "localhost" || strings.HasSuffix(h, ".localhost") {
		return true
	}
	ip := net.ParseIP(h)
	return ip != nil && (ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsUnspecified())
}
