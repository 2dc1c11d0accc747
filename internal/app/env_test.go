package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadEnvFiles_OverrideOrderAndMissing(t *testing.T) {
	t.Setenv("GOPRICE_K", "")
	dir := t.TempDir()
	a := filepath.Join(dir, ".env.a")
	b := filepath.Join(dir, ".env.b")
	if err := os.WriteFile(a, []byte("# first\nGOPRICE_K=first\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(b, []byte("GOPRICE_K=\"second\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := LoadEnvFiles(a, filepath.Join(dir, "missing.env"), b); err != nil {
		t.Fatalf("LoadEnvFiles: %v", err)
	}
	if got := os.Getenv("GOPRICE_K"); got != "second" {
		t.Fatalf("GOPRICE_K=%q, want second", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("CACHE_DIR", "/tmp/goprice-env")
	t.Setenv("USER_AGENT", "pricebot/2")
	t.Setenv("BROWSER_URL", "ws://127.0.0.1:9222/devtools/browser/x")
	t.Setenv("CACHE_MAX_AGE", "90m")
	t.Setenv("MAX_CONCURRENT", "12")
	t.Setenv("RATE_PER_HOST", "not-a-number")
	t.Setenv("RENDER", "yes")
	t.Setenv("ROBOTS_IGNORE", "off")
	t.Setenv("VERBOSE", "")

	cfg := DefaultConfig()
	cfg.RobotsIgnore = true
	ApplyEnvOverrides(&cfg)

	if cfg.CacheDir != "/tmp/goprice-env" || cfg.UserAgent != "pricebot/2" || cfg.BrowserURL == "" {
		t.Fatalf("strings not applied: %+v", cfg)
	}
	if cfg.CacheMaxAge != 90*time.Minute || cfg.MaxConcurrent != 12 {
		t.Fatalf("numbers not applied: %+v", cfg)
	}
	if cfg.RatePerHost != 1 {
		t.Fatalf("malformed RATE_PER_HOST should be ignored, got %v", cfg.RatePerHost)
	}
	if !cfg.Render || cfg.RobotsIgnore || cfg.Verbose {
		t.Fatalf("booleans not applied: %+v", cfg)
	}
}
