// Package cache keeps fetched pages on disk so repeated price checks can
// revalidate with ETag/Last-Modified instead of downloading again.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Entry is the metadata stored next to a cached body.
type Entry struct {
	URL          string    `json:"url"`
	ContentType  string    `json:"content_type"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	SavedAt      time.Time `json:"saved_at"`
}

// ErrMiss is returned by Load when nothing is cached for a URL.
var ErrMiss = errors.New("cache: miss")

// Store writes <sha256(url)>.meta.json and <sha256(url)>.body under Dir.
type Store struct {
	Dir string
	// MaxAge makes entries younger than it fresh enough to serve without
	// revalidation. Zero means always revalidate.
	MaxAge time.Duration
	// StrictPerms creates the directory 0700 and files 0600.
	StrictPerms bool

	now func() time.Time
}

func (s *Store) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

func (s *Store) modes() (os.FileMode, os.FileMode) {
	if s.StrictPerms {
		return 0o700, 0o600
	}
	return 0o755, 0o644
}

func (s *Store) ensureDir() error {
	if s == nil || s.Dir == "" {
		return errors.New("cache: dir not configured")
	}
	dirMode, _ := s.modes()
	if err := os.MkdirAll(s.Dir, dirMode); err != nil {
		return err
	}
	if s.StrictPerms {
		return os.Chmod(s.Dir, dirMode)
	}
	return nil
}

// Key returns the file stem used for url.
func Key(url string) string {
	h := sha256.Sum256([]byte(url))
	return hex.EncodeToString(h[:])
}

func (s *Store) metaPath(url string) string { return filepath.Join(s.Dir, Key(url)+".meta.json") }

func (s *Store) bodyPath(url string) string { return filepath.Join(s.Dir, Key(url)+".body") }

// Load returns the entry and body cached for url, or ErrMiss.
func (s *Store) Load(_ context.Context, url string) (*Entry, []byte, error) {
	if s == nil || s.Dir == "" {
		return nil, nil, ErrMiss
	}
	raw, err := os.ReadFile(s.metaPath(url))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil, ErrMiss
	}
	if err != nil {
		return nil, nil, err
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, nil, fmt.Errorf("cache: decode meta: %w", err)
	}
	body, err := os.ReadFile(s.bodyPath(url))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil, ErrMiss
	}
	if err != nil {
		return nil, nil, err
	}
	return &e, body, nil
}

// Fresh reports whether e can be served without contacting the origin.
func (s *Store) Fresh(e *Entry) bool {
	if e == nil || s.MaxAge <= 0 {
		return false
	}
	return s.clock().Sub(e.SavedAt) < s.MaxAge
}

// Save writes body then metadata; the metadata rename makes the entry visible.
func (s *Store) Save(_ context.Context, e Entry, body []byte) error {
	if err := s.ensureDir(); err != nil {
		return err
	}
	_, fileMode := s.modes()
	if err := writeFile(s.bodyPath(e.URL), body, fileMode); err != nil {
		return fmt.Errorf("cache: write body: %w", err)
	}
	e.SavedAt = s.clock().UTC()
	meta, err := json.Marshal(&e)
	if err != nil {
		return fmt.Errorf("cache: encode meta: %w", err)
	}
	tmp := s.metaPath(e.URL) + ".tmp"
	if err := writeFile(tmp, meta, fileMode); err != nil {
		return fmt.Errorf("cache: write meta: %w", err)
	}
	return os.Rename(tmp, s.metaPath(e.URL))
}

// Touch bumps SavedAt after a 304 so the entry counts as fresh again.
func (s *Store) Touch(ctx context.Context, url string) error {
	e, body, err := s.Load(ctx, url)
	if err != nil {
		return err
	}
	return s.Save(ctx, *e, body)
}

func writeFile(path string, data []byte, mode os.FileMode) error {
	if err := os.WriteFile(path, data, mode); err != nil {
		return err
	}
	return os.Chmod(path, mode)
}
