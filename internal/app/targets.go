package app

import (
	"bufio"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// ReadTargets reads one target per line. Blank lines and lines starting
// with '#' are skipped.
func ReadTargets(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read targets: %w", err)
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read targets: %w", err)
	}
	return out, nil
}

// trackingParams are dropped from remote targets so that links shared from
// campaigns or shopping ads collapse onto the product page they point at.
var trackingParams = []string{
	"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content", "utm_id",
	"gclid", "fbclid", "msclkid", "srsltid",
}

// canonicalTarget lowercases the host, drops the fragment and strips
// tracking parameters from remote targets. Local paths are returned as is.
func canonicalTarget(target string) string {
	target = strings.TrimSpace(target)
	if !isRemote(target) {
		return target
	}
	u, err := url.Parse(target)
	if err != nil {
		return target
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawQuery = stripTracking(u.RawQuery)
	return u.String()
}

// stripTracking removes tracking parameters from a raw query and leaves
// everything else, including order and encoding, untouched.
func stripTracking(rawQuery string) string {
	if rawQuery == "" {
		return rawQuery
	}
	parts := strings.Split(rawQuery, "&")
	kept := parts[:0:0]
	for _, part := range parts {
		key, _, _ := strings.Cut(part, "=")
		if k, err := url.QueryUnescape(key); err == nil && slices.Contains(trackingParams, k) {
			continue
		}
		kept = append(kept, part)
	}
	if len(kept) == len(parts) {
		return rawQuery
	}
	return strings.Join(kept, "&")
}

// dedupe canonicalizes targets and keeps the first occurrence of each.
func dedupe(targets []string) []string {
	seen := make(map[string]struct{}, len(targets))
	out := targets[:0:0]
	for _, t := range targets {
		t = canonicalTarget(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func isRemote(target string) bool {
	u, err := url.Parse(target)
	if err != nil {
		return false
	}
	s := strings.ToLower(u.Scheme)
	return (s == "http" || s == "https") && u.Host != ""
}

// fileURL turns a local path into a file:// URL the browser can open.
func fileURL(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String(), nil
}
