package cache

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	metaSuffix = ".meta.json"
	bodySuffix = ".body"
	tmpSuffix  = ".tmp"
)

// Clear removes dir and recreates it empty.
func Clear(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return errors.New("cache: empty dir")
	}
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	return os.MkdirAll(dir, 0o755)
}

// PurgeOlderThan drops page entries saved more than maxAge ago, bodies whose
// metadata is gone and metadata left half-written by an interrupted Save.
// It returns how many entries were dropped. Metadata that cannot be decoded
// is kept, since Load already reports it as an error.
func PurgeOlderThan(dir string, maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		return 0, nil
	}
	files, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	present := make(map[string]bool, len(files))
	for _, f := range files {
		present[f.Name()] = true
	}
	cutoff := time.Now().UTC().Add(-maxAge)
	removed := 0
	drop := func(names ...string) {
		for _, n := range names {
			_ = os.Remove(filepath.Join(dir, n))
		}
		removed++
	}

	for _, f := range files {
		name := f.Name()
		if f.IsDir() {
			continue
		}
		switch {
		case strings.HasSuffix(name, metaSuffix+tmpSuffix):
			drop(name)
		case strings.HasSuffix(name, bodySuffix):
			if !present[strings.TrimSuffix(name, bodySuffix)+metaSuffix] {
				drop(name)
			}
		case strings.HasSuffix(name, metaSuffix):
			if savedBefore(filepath.Join(dir, name), cutoff) {
				drop(name, strings.TrimSuffix(name, metaSuffix)+bodySuffix)
			}
		}
	}
	return removed, nil
}

func savedBefore(metaPath string, cutoff time.Time) bool {
	raw, err := os.ReadFile(metaPath)
	if err != nil {
		return false
	}
	var e Entry
	if json.Unmarshal(raw, &e) != nil {
		return false
	}
	return e.SavedAt.Before(cutoff)
}
