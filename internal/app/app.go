// Package app wires configuration, page loading, price extraction and
// report writing into one batch run.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/hyperifyio/goprice/internal/browser"
	"github.com/hyperifyio/goprice/internal/cache"
	"github.com/hyperifyio/goprice/internal/document"
	"github.com/hyperifyio/goprice/internal/extract"
	"github.com/hyperifyio/goprice/internal/fetch"
	"github.com/hyperifyio/goprice/internal/report"
	"github.com/hyperifyio/goprice/internal/robots"
	"github.com/hyperifyio/goprice/internal/signal"
)

// ErrNoUsableTargets is returned when not a single target could be loaded.
// The CLI maps it to exit code 2.
var ErrNoUsableTargets = errors.New("no usable targets")

// renderer loads a page in a browser and returns what the engine reads.
type renderer interface {
	Capture(ctx context.Context, url string) (*document.Snapshot, error)
	Close() error
}

// App runs price extraction over a set of targets.
type App struct {
	cfg       Config
	fetcher   *fetch.Client
	renderer  renderer
	extractor extract.Extractor
	now       func() time.Time
}

// New prepares the cache, HTTP client and (when rendering) the browser.
func New(ctx context.Context, cfg Config) (*App, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	a := &App{cfg: cfg, extractor: extract.Default(), now: time.Now}

	var store *cache.Store
	if cfg.CacheDir != "" {
		if cfg.CacheClear {
			if err := cache.Clear(cfg.CacheDir); err != nil {
				log.Warn().Err(err).Str("dir", cfg.CacheDir).Msg("cache clear failed")
			}
		}
		if cfg.CacheMaxAge > 0 {
			if n, err := cache.PurgeOlderThan(cfg.CacheDir, cfg.CacheMaxAge); err != nil {
				log.Warn().Err(err).Msg("cache purge failed")
			} else if n > 0 {
				log.Debug().Int("removed", n).Msg("purged stale cache entries")
			}
		}
		store = &cache.Store{Dir: cfg.CacheDir, MaxAge: cfg.CacheMaxAge, StrictPerms: cfg.CacheStrictPerms}
	}

	httpClient := newHTTPClient(cfg)
	a.fetcher = &fetch.Client{
		HTTPClient:    httpClient,
		UserAgent:     cfg.UserAgent,
		MaxAttempts:   3,
		Timeout:       cfg.Timeout,
		Cache:         store,
		MaxConcurrent: cfg.MaxConcurrent,
		RatePerHost:   cfg.RatePerHost,
	}
	if !cfg.RobotsIgnore {
		a.fetcher.Robots = &robots.Checker{
			HTTPClient:        httpClient,
			Cache:             store,
			UserAgent:         cfg.UserAgent,
			Timeout:           cfg.Timeout,
			AllowPrivateHosts: true,
		}
	}

	if cfg.Render {
		a.renderer = browser.NewManager(browser.Config{
			RemoteURL:  cfg.BrowserURL,
			Viewport:   cfg.Viewport,
			UserAgent:  cfg.UserAgent,
			NavTimeout: cfg.Timeout,
			Selectors:  signal.PriceSelectors,
			MaxNodes:   signal.DefaultScanBudget,
		})
	}
	return a, nil
}

// Close releases the browser, if one was started.
func (a *App) Close() {
	if a.renderer != nil {
		if err := a.renderer.Close(); err != nil {
			log.Debug().Err(err).Msg("browser close")
		}
	}
}

// Run processes every target and writes the configured reports. Target
// failures are recorded in the report; the run only fails when no target
// could be loaded or a report could not be written.
func (a *App) Run(ctx context.Context) (*report.Run, error) {
	targets := append([]string{}, a.cfg.Targets...)
	if a.cfg.InputPath != "" {
		more, err := ReadTargets(a.cfg.InputPath)
		if err != nil {
			return nil, err
		}
		targets = append(targets, more...)
	}
	targets = dedupe(targets)
	if len(targets) == 0 {
		return nil, ErrNoTargets
	}

	run := report.NewRun(BuildVersion, a.now())
	entries := make([]report.Entry, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	if a.cfg.MaxConcurrent > 0 {
		g.SetLimit(a.cfg.MaxConcurrent)
	}
	for i, t := range targets {
		i, t := i, t
		g.Go(func() error {
			entries[i] = a.process(gctx, t)
			return nil
		})
	}
	_ = g.Wait()
	run.Entries = entries
	run.Sort()

	out := a.cfg.Stdout
	if out == nil {
		out = os.Stdout
	}
	for _, e := range run.Entries {
		fmt.Fprintf(out, "%s\t%s\n", e.Target, e.Price)
	}
	if err := a.writeReports(run); err != nil {
		return run, err
	}

	found, missing, failed := run.Counts()
	log.Info().Int("priced", found).Int("without_price", missing).Int("failed", failed).Msg("run complete")
	if found+missing == 0 {
		return run, ErrNoUsableTargets
	}
	return run, ctx.Err()
}

func (a *App) process(ctx context.Context, target string) report.Entry {
	doc, body, rendered, err := a.load(ctx, target)
	if err != nil {
		log.Warn().Str("target", target).Err(err).Msg("target failed")
		return report.FailedEntry(target, err, a.now())
	}
	res, ok := a.extractor.Extract(doc)
	title := ""
	if t, isTitled := doc.(document.Titled); isTitled {
		title = t.Title()
	}
	e := report.NewEntry(target, title, body, res, ok, a.now())
	e.Rendered = rendered
	if ok {
		log.Info().Str("target", target).Str("price", e.Price).Str("source", e.Source).Msg("price found")
	} else {
		log.Info().Str("target", target).Msg("no price found")
	}
	return e
}

// load returns a document for target: rendered in the browser when enabled,
// otherwise parsed from fetched or local HTML.
func (a *App) load(ctx context.Context, target string) (document.Document, []byte, bool, error) {
	remote := isRemote(target)
	if a.renderer != nil {
		u := target
		if !remote {
			var err error
			if u, err = fileURL(target); err != nil {
				return nil, nil, false, err
			}
		} else if err := a.fetcher.Admit(ctx, target); err != nil {
			return nil, nil, false, err
		}
		snap, err := a.renderer.Capture(ctx, u)
		if err != nil {
			return nil, nil, false, err
		}
		return snap, nil, true, nil
	}

	var body []byte
	if remote {
		page, err := a.fetcher.Get(ctx, target)
		if err != nil {
			return nil, nil, false, err
		}
		body = page.Body
	} else {
		b, err := os.ReadFile(target)
		if err != nil {
			return nil, nil, false, fmt.Errorf("read %s: %w", target, err)
		}
		body = b
	}
	return document.FromHTML(body, document.WithViewport(a.cfg.Viewport)), body, false, nil
}

func (a *App) writeReports(run *report.Run) error {
	if a.cfg.OutputPath != "" {
		if err := os.WriteFile(a.cfg.OutputPath, []byte(report.Markdown(run)), 0o644); err != nil {
			return fmt.Errorf("write markdown: %w", err)
		}
	}
	if a.cfg.JSONPath != "" {
		if err := writeWith(a.cfg.JSONPath, func(w io.Writer) error { return report.WriteJSON(w, run) }); err != nil {
			return fmt.Errorf("write json: %w", err)
		}
	}
	if a.cfg.PDFPath != "" {
		if err := report.WritePDF(run, a.cfg.PDFPath); err != nil {
			return fmt.Errorf("write pdf: %w", err)
		}
	}
	if a.cfg.XLSXPath != "" {
		data, err := report.XLSX(run)
		if err != nil {
			return err
		}
		if err := os.WriteFile(a.cfg.XLSXPath, data, 0o644); err != nil {
			return fmt.Errorf("write xlsx: %w", err)
		}
	}
	return nil
}

func writeWith(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
