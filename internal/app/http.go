package app

import (
	"net"
	"net/http"
	"time"
)

// newHTTPClient returns the client shared by page and robots.txt requests.
// The idle pool matches the number of targets processed at once, and the
// client timeout caps a whole request, redirects included, at cfg.Timeout.
func newHTTPClient(cfg Config) *http.Client {
	idle := cfg.MaxConcurrent
	if idle <= 0 {
		idle = 4
	}
	dialTimeout := 5 * time.Second
	if cfg.Timeout > 0 && cfg.Timeout < dialTimeout {
		dialTimeout = cfg.Timeout
	}
	return &http.Client{
		Timeout: cfg.Timeout,
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           (&net.Dialer{Timeout: dialTimeout, KeepAlive: 30 * time.Second}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          4 * idle,
			MaxIdleConnsPerHost:   idle,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   dialTimeout,
			ResponseHeaderTimeout: cfg.Timeout,
		},
	}
}
