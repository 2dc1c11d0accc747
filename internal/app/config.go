package app

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/hyperifyio/goprice/internal/document"
)

// DefaultUserAgent identifies goprice to shops and robots.txt.
const DefaultUserAgent = "goprice/1.0 (+https://github.com/hyperifyio/goprice)"

// Config holds runtime configuration for the application.
type Config struct {
	// Targets are URLs or local HTML paths given on the command line.
	Targets []string
	// InputPath is an optional file listing more targets, one per line.
	InputPath string

	// Report outputs; empty disables each.
	OutputPath string
	JSONPath   string
	PDFPath    string
	XLSXPath   string

	// Rendering
	Render     bool
	BrowserURL string
	Viewport   document.Viewport

	// Acquisition
	UserAgent        string
	Timeout          time.Duration
	CacheDir         string
	CacheMaxAge      time.Duration
	CacheClear       bool
	CacheStrictPerms bool
	MaxConcurrent    int
	RatePerHost      float64
	RobotsIgnore     bool

	Verbose bool

	// Stdout receives the target<TAB>price lines. Nil means os.Stdout.
	Stdout io.Writer
}

// DefaultConfig returns the values used when neither flags, env nor a
// config file say otherwise.
func DefaultConfig() Config {
	return Config{
		OutputPath:    "prices.md",
		Viewport:      document.DefaultViewport,
		UserAgent:     DefaultUserAgent,
		Timeout:       30 * time.Second,
		CacheDir:      ".goprice-cache",
		MaxConcurrent: 4,
		RatePerHost:   1,
	}
}

// ErrNoTargets is a configuration error: nothing to do.
var ErrNoTargets = errors.New("config: no targets given (pass URLs/paths or -input)")

// ValidateConfig rejects configurations that cannot run.
func ValidateConfig(cfg Config) error {
	if len(cfg.Targets) == 0 && strings.TrimSpace(cfg.InputPath) == "" {
		return ErrNoTargets
	}
	if cfg.MaxConcurrent < 0 || cfg.RatePerHost < 0 || cfg.CacheMaxAge < 0 || cfg.Timeout < 0 {
		return errors.New("config: negative limits are not allowed")
	}
	if cfg.Viewport.Width <= 0 || cfg.Viewport.Height <= 0 {
		return fmt.Errorf("config: invalid viewport %vx%v", cfg.Viewport.Width, cfg.Viewport.Height)
	}
	return nil
}

// ParseViewport parses "WIDTHxHEIGHT", e.g. "1280x800".
func ParseViewport(s string) (document.Viewport, error) {
	w, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return document.Viewport{}, fmt.Errorf("viewport %q: want WIDTHxHEIGHT", s)
	}
	width, err := strconv.Atoi(w)
	if err != nil || width <= 0 {
		return document.Viewport{}, fmt.Errorf("viewport %q: bad width", s)
	}
	height, err := strconv.Atoi(h)
	if err != nil || height <= 0 {
		return document.Viewport{}, fmt.Errorf("viewport %q: bad height", s)
	}
	return document.Viewport{Width: float64(width), Height: float64(height)}, nil
}
