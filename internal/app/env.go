package app

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LoadEnvFiles loads dotenv files into the process environment. Later
// files override earlier ones; missing files are skipped.
func LoadEnvFiles(paths ...string) error {
	for _, p := range paths {
		if strings.TrimSpace(p) == "" {
			continue
		}
		if err := godotenv.Overload(p); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return err
		}
	}
	return nil
}

// ApplyEnvOverrides overrides cfg fields whose environment variables are
// set. Malformed numbers and durations are ignored.
func ApplyEnvOverrides(cfg *Config) {
	if cfg == nil {
		return
	}
	if v := os.Getenv("CACHE_DIR"); v != "" {
		cfg.CacheDir = v
	}
	if v := os.Getenv("USER_AGENT"); v != "" {
		cfg.UserAgent = v
	}
	if v := os.Getenv("BROWSER_URL"); v != "" {
		cfg.BrowserURL = v
	}
	if s := os.Getenv("CACHE_MAX_AGE"); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			cfg.CacheMaxAge = d
		}
	}
	if s := os.Getenv("MAX_CONCURRENT"); s != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil && n > 0 {
			cfg.MaxConcurrent = n
		}
	}
	if s := os.Getenv("RATE_PER_HOST"); s != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil && f >= 0 {
			cfg.RatePerHost = f
		}
	}

	setBool := func(dst *bool, key string) {
		switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
		case "1", "true", "yes", "on":
			*dst = true
		case "0", "false", "no", "off":
			*dst = false
		}
	}
	setBool(&cfg.Render, "RENDER")
	setBool(&cfg.Verbose, "VERBOSE")
	setBool(&cfg.RobotsIgnore, "ROBOTS_IGNORE")
	setBool(&cfg.CacheClear, "CACHE_CLEAR")
	setBool(&cfg.CacheStrictPerms, "CACHE_STRICT_PERMS")
}
