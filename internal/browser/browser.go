// Package browser renders pages in headless Chrome through Rod and captures
// what the extraction engine needs as a document.Snapshot.
package browser

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/goprice/internal/document"
)

//go:embed capture.js
var captureScript string

// Config configures the browser manager.
type Config struct {
	// RemoteURL is the DevTools WebSocket URL of a running Chrome.
	// Empty launches a local headless Chrome.
	RemoteURL string
	// Viewport is the emulated window size. Zero means document.DefaultViewport.
	Viewport document.Viewport
	// UserAgent overrides the browser's user agent when non-empty.
	UserAgent string
	// NavTimeout bounds navigation plus load. Default: 30s.
	NavTimeout time.Duration
	// Selectors are the queries captured into each snapshot.
	Selectors []string
	// MaxNodes caps nodes captured per selector. Default: 80.
	MaxNodes int
	// MaxText caps captured page text in characters. Default: 65536.
	MaxText int
}

func (c *Config) defaults() {
	if c.Viewport.Width <= 0 || c.Viewport.Height <= 0 {
		c.Viewport = document.DefaultViewport
	}
	if c.NavTimeout <= 0 {
		c.NavTimeout = 30 * time.Second
	}
	if c.MaxNodes <= 0 {
		c.MaxNodes = 80
	}
	if c.MaxText <= 0 {
		c.MaxText = 1 << 16
	}
}

// ErrClosed is returned after Close.
var ErrClosed = errors.New("browser: manager is closed")

// Manager owns one Chrome process (or remote connection) shared by all
// captures. It is safe for concurrent use; each capture gets its own tab.
type Manager struct {
	cfg     Config
	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	closed  bool
}

// NewManager returns a Manager. Chrome is started lazily on first capture.
func NewManager(cfg Config) *Manager {
	cfg.defaults()
	return &Manager{cfg: cfg}
}

func (m *Manager) connect() (*rod.Browser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	if m.browser != nil {
		return m.browser, nil
	}

	wsURL := m.cfg.RemoteURL
	if wsURL == "" {
		l := launcher.New().Headless(true).Set("disable-blink-features", "AutomationControlled")
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("browser: launch: %w", err)
		}
		wsURL = u
		m.lnch = l
		log.Debug().Str("url", wsURL).Msg("launched local chrome")
	} else {
		log.Debug().Str("url", wsURL).Msg("connecting to remote chrome")
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		if m.lnch != nil {
			m.lnch.Cleanup()
			m.lnch = nil
		}
		return nil, fmt.Errorf("browser: connect: %w", err)
	}
	m.browser = b
	return b, nil
}

// Capture opens pageURL in a fresh stealth tab, waits for load and returns
// the rendered page as a snapshot.
func (m *Manager) Capture(ctx context.Context, pageURL string) (*document.Snapshot, error) {
	b, err := m.connect()
	if err != nil {
		return nil, err
	}
	page, err := stealth.Page(b)
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}
	defer func() { _ = page.Close() }()

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             int(m.cfg.Viewport.Width),
		Height:            int(m.cfg.Viewport.Height),
		DeviceScaleFactor: 1,
	}); err != nil {
		return nil, fmt.Errorf("browser: viewport: %w", err)
	}
	if m.cfg.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: m.cfg.UserAgent}); err != nil {
			return nil, fmt.Errorf("browser: user agent: %w", err)
		}
	}

	navCtx, cancel := context.WithTimeout(ctx, m.cfg.NavTimeout)
	defer cancel()
	p := page.Context(navCtx)
	if err := p.Navigate(pageURL); err != nil {
		return nil, fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}
	if err := p.WaitLoad(); err != nil {
		log.Warn().Str("url", pageURL).Err(err).Msg("wait load failed; capturing anyway")
	}

	selectors := m.cfg.Selectors
	if selectors == nil {
		selectors = []string{}
	}
	res, err := page.Context(ctx).Eval(captureScript, selectors, m.cfg.MaxNodes, m.cfg.MaxText)
	if err != nil {
		return nil, fmt.Errorf("browser: capture %s: %w", pageURL, err)
	}
	raw, err := res.Value.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("browser: capture %s: %w", pageURL, err)
	}
	snap, err := document.DecodeSnapshot(raw)
	if err != nil {
		return nil, fmt.Errorf("browser: %w", err)
	}
	log.Debug().Str("url", pageURL).Int("ld", len(snap.LD)).Int("meta", len(snap.Metas)).Msg("captured page")
	return snap, nil
}

// Close shuts down the browser connection and any locally launched Chrome.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	var err error
	if m.browser != nil {
		err = m.browser.Close()
		m.browser = nil
	}
	if m.lnch != nil {
		m.lnch.Cleanup()
		m.lnch = nil
	}
	return err
}
