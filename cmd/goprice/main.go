package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/goprice/internal/app"
)

// errConfig marks failures that happen before any target is processed.
var errConfig = errors.New("config")

func main() {
	// Logging setup
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := loadConfig(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		log.Error().Err(err).Msg("invalid configuration")
		os.Exit(1)
	}

	if cfg.Verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	code := exitCode(run(ctx, cfg))
	stop()
	os.Exit(code)
}

// loadConfig layers defaults, the config file, the environment and finally
// the flags that were set explicitly.
func loadConfig(args []string, stderr io.Writer) (app.Config, error) {
	fs := flag.NewFlagSet("goprice", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "usage: goprice [flags] [target ...]")
		fs.PrintDefaults()
	}

	def := app.DefaultConfig()
	var (
		inputPath   string
		outputPath  string
		jsonPath    string
		pdfPath     string
		xlsxPath    string
		render      bool
		browserURL  string
		viewport    string
		userAgent   string
		timeout     time.Duration
		cacheDir    string
		cacheMaxAge time.Duration
		cacheClear  bool
		cacheStrict bool
		maxConc     int
		ratePerHost float64
		robotsOff   bool
		configPath  string
		envFiles    string
		verbose     bool
	)

	fs.StringVar(&inputPath, "input", "", "File listing targets, one per line ('#' starts a comment)")
	fs.StringVar(&outputPath, "output", def.OutputPath, "Path to write the Markdown report (empty disables)")
	fs.StringVar(&jsonPath, "json", "", "Optional path for a JSON report")
	fs.StringVar(&pdfPath, "pdf", "", "Optional path for a PDF report")
	fs.StringVar(&xlsxPath, "xlsx", "", "Optional path for an XLSX report")
	fs.BoolVar(&render, "render", false, "Render pages in headless Chromium before extraction")
	fs.StringVar(&browserURL, "browser.url", "", "DevTools websocket URL of a running browser (default: launch one)")
	fs.StringVar(&viewport, "viewport", "1280x800", "Viewport used for visibility checks, WIDTHxHEIGHT")
	fs.StringVar(&userAgent, "ua", def.UserAgent, "User-Agent for page and robots.txt requests")
	fs.DurationVar(&timeout, "timeout", def.Timeout, "Per-request and navigation timeout")
	fs.StringVar(&cacheDir, "cache.dir", def.CacheDir, "Cache directory path (empty disables caching)")
	fs.DurationVar(&cacheMaxAge, "cache.maxAge", 0, "Serve cached pages younger than this and purge older ones; 0 always revalidates")
	fs.BoolVar(&cacheClear, "cache.clear", false, "Clear cache directory before run")
	fs.BoolVar(&cacheStrict, "cache.strictPerms", false, "Restrict cache permissions (0700 dirs, 0600 files)")
	fs.IntVar(&maxConc, "max.concurrent", def.MaxConcurrent, "Targets processed in parallel")
	fs.Float64Var(&ratePerHost, "rate.perHost", def.RatePerHost, "Requests per second per host (0 disables limiting)")
	fs.BoolVar(&robotsOff, "robots.ignore", false, "Do not consult robots.txt")
	fs.StringVar(&configPath, "config", "", "YAML or JSON config file")
	fs.StringVar(&envFiles, "env", ".env", "Comma-separated dotenv files; later files win")
	fs.BoolVar(&verbose, "v", false, "Verbose logging")
	if err := fs.Parse(args); err != nil {
		return app.Config{}, err
	}

	cfg := def
	if err := app.LoadEnvFiles(strings.Split(envFiles, ",")...); err != nil {
		return cfg, fmt.Errorf("%w: env: %v", errConfig, err)
	}
	if configPath != "" {
		fc, err := app.LoadConfigFile(configPath)
		if err != nil {
			return cfg, fmt.Errorf("%w: %v", errConfig, err)
		}
		if err := app.ApplyFileConfig(&cfg, fc); err != nil {
			return cfg, fmt.Errorf("%w: %v", errConfig, err)
		}
	}
	app.ApplyEnvOverrides(&cfg)

	var visitErr error
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "input":
			cfg.InputPath = inputPath
		case "output":
			cfg.OutputPath = outputPath
		case "json":
			cfg.JSONPath = jsonPath
		case "pdf":
			cfg.PDFPath = pdfPath
		case "xlsx":
			cfg.XLSXPath = xlsxPath
		case "render":
			cfg.Render = render
		case "browser.url":
			cfg.BrowserURL = browserURL
		case "viewport":
			vp, err := app.ParseViewport(viewport)
			if err != nil {
				visitErr = err
				return
			}
			cfg.Viewport = vp
		case "ua":
			cfg.UserAgent = userAgent
		case "timeout":
			cfg.Timeout = timeout
		case "cache.dir":
			cfg.CacheDir = cacheDir
		case "cache.maxAge":
			cfg.CacheMaxAge = cacheMaxAge
		case "cache.clear":
			cfg.CacheClear = cacheClear
		case "cache.strictPerms":
			cfg.CacheStrictPerms = cacheStrict
		case "max.concurrent":
			cfg.MaxConcurrent = maxConc
		case "rate.perHost":
			cfg.RatePerHost = ratePerHost
		case "robots.ignore":
			cfg.RobotsIgnore = robotsOff
		case "v":
			cfg.Verbose = verbose
		}
	})
	if visitErr != nil {
		return cfg, fmt.Errorf("%w: %v", errConfig, visitErr)
	}
	if targets := fs.Args(); len(targets) > 0 {
		cfg.Targets = targets
	}
	if err := app.ValidateConfig(cfg); err != nil {
		return cfg, fmt.Errorf("%w: %v", errConfig, err)
	}
	return cfg, nil
}

func run(ctx context.Context, cfg app.Config) error {
	a, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("%w: init app: %v", errConfig, err)
	}
	defer a.Close()

	_, err = a.Run(ctx)
	return err
}

// exitCode maps run errors to the process exit status: 2 when no target
// could be loaded, 1 for configuration and report failures, 0 otherwise.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, app.ErrNoUsableTargets):
		log.Error().Err(err).Msg("run failed")
		return 2
	case errors.Is(err, context.Canceled):
		log.Warn().Msg("interrupted")
		return 0
	default:
		log.Error().Err(err).Msg("run failed")
		return 1
	}
}
