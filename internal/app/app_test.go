package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hyperifyio/goprice/internal/document"
)

const metaPage = `<html><head><title>Kettle</title>
<meta property="product:price:amount" content="19.99">
<meta property="product:price:currency" content="USD">
</head><body><p>Free shipping over 50</p></body></html>`

const ldPage = `<html><head><title>Local kettle</title>
<script type="application/ld+json">
{"@context":"https://schema.org","@type":"Product",
 "offers":{"@type":"Offer","price":"5,00","priceCurrency":"EUR"}}
</script></head><body></body></html>`

func shopServer(t *testing.T) (*httptest.Server, *int32) {
	t.Helper()
	var robotsHits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/robots.txt":
			atomic.AddInt32(&robotsHits, 1)
			_, _ = w.Write([]byte("User-agent: *\nDisallow: /private\n"))
		case "/kettle", "/private/kettle":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte(metaPage))
		case "/about":
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<html><body><p>We sell kettles.</p></body></html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &robotsHits
}

func testConfig(t *testing.T) Config {
	t.Helper()
	cfg := DefaultConfig()
	dir := t.TempDir()
	cfg.CacheDir = filepath.Join(dir, "cache")
	cfg.OutputPath = filepath.Join(dir, "prices.md")
	cfg.JSONPath = filepath.Join(dir, "prices.json")
	cfg.XLSXPath = filepath.Join(dir, "prices.xlsx")
	cfg.RatePerHost = 0
	return cfg
}

func TestRun_MixedTargets(t *testing.T) {
	srv, robotsHits := shopServer(t)
	cfg := testConfig(t)

	local := filepath.Join(t.TempDir(), "local.html")
	if err := os.WriteFile(local, []byte(ldPage), 0o644); err != nil {
		t.Fatal(err)
	}
	list := filepath.Join(t.TempDir(), "targets.txt")
	if err := os.WriteFile(list, []byte("# more\n"+srv.URL+"/about\n"+srv.URL+"/kettle\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg.Targets = []string{srv.URL + "/kettle", local, srv.URL + "/missing", srv.URL + "/private/kettle"}
	cfg.InputPath = list
	var stdout bytes.Buffer
	cfg.Stdout = &stdout

	a, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer a.Close()
	run, err := a.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(run.Entries) != 5 {
		t.Fatalf("expected 5 deduplicated entries, got %d", len(run.Entries))
	}
	found, missing, failed := run.Counts()
	if found != 2 || missing != 1 || failed != 2 {
		t.Fatalf("counts = %d/%d/%d", found, missing, failed)
	}
	if atomic.LoadInt32(robotsHits) != 1 {
		t.Fatalf("robots.txt should be fetched once per host, got %d", *robotsHits)
	}

	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	want := []string{
		local + "\tEUR 5.00",
		srv.URL + "/about\t",
		srv.URL + "/kettle\tUSD 19.99",
		srv.URL + "/missing\t",
		srv.URL + "/private/kettle\t",
	}
	if len(lines) != len(want) {
		t.Fatalf("stdout lines = %q", lines)
	}
	for i := range want {
		if strings.TrimRight(lines[i], "\t") != strings.TrimRight(want[i], "\t") {
			t.Fatalf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}

	md, err := os.ReadFile(cfg.OutputPath)
	if err != nil {
		t.Fatalf("markdown not written: %v", err)
	}
	if !strings.Contains(string(md), "USD 19.99") || !strings.Contains(string(md), "Local kettle") {
		t.Fatalf("markdown missing rows:\n%s", md)
	}

	raw, err := os.ReadFile(cfg.JSONPath)
	if err != nil {
		t.Fatalf("json not written: %v", err)
	}
	var decoded struct {
		Entries []struct {
			Target string `json:"link"`
			Source string `json:"source"`
		} `json:"entries"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if decoded.Entries[0].Source != "structured-data" || decoded.Entries[2].Source != "meta" {
		t.Fatalf("unexpected sources %+v", decoded.Entries)
	}
	if info, err := os.Stat(cfg.XLSXPath); err != nil || info.Size() == 0 {
		t.Fatalf("xlsx not written: %v", err)
	}
}

func TestRun_RobotsIgnore(t *testing.T) {
	srv, robotsHits := shopServer(t)
	cfg := testConfig(t)
	cfg.RobotsIgnore = true
	cfg.Targets = []string{srv.URL + "/private/kettle"}
	var stdout bytes.Buffer
	cfg.Stdout = &stdout

	a, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := a.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(stdout.String(), "USD 19.99") {
		t.Fatalf("expected price with robots ignored, got %q", stdout.String())
	}
	if atomic.LoadInt32(robotsHits) != 0 {
		t.Fatalf("robots.txt should not be requested")
	}
}

func TestRun_NoUsableTargets(t *testing.T) {
	srv, _ := shopServer(t)
	cfg := testConfig(t)
	cfg.Targets = []string{srv.URL + "/gone", filepath.Join(t.TempDir(), "absent.html")}
	cfg.Stdout = &bytes.Buffer{}

	a, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	run, err := a.Run(context.Background())
	if !errors.Is(err, ErrNoUsableTargets) {
		t.Fatalf("expected ErrNoUsableTargets, got %v", err)
	}
	if run == nil || len(run.Entries) != 2 {
		t.Fatalf("failed targets should still be reported: %+v", run)
	}
	if _, err := os.Stat(cfg.OutputPath); err != nil {
		t.Fatalf("report should be written even when every target fails: %v", err)
	}
}

func TestNew_RejectsEmptyConfig(t *testing.T) {
	if _, err := New(context.Background(), DefaultConfig()); !errors.Is(err, ErrNoTargets) {
		t.Fatalf("expected ErrNoTargets, got %v", err)
	}
}

func TestNew_CacheClear(t *testing.T) {
	cfg := testConfig(t)
	cfg.Targets = []string{"page.html"}
	if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
		t.Fatal(err)
	}
	stale := filepath.Join(cfg.CacheDir, "stale.body")
	if err := os.WriteFile(stale, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg.CacheClear = true
	if _, err := New(context.Background(), cfg); err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatalf("expected cache to be cleared")
	}
}

func TestRun_StalledRobotsBoundedByTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			select {
			case <-r.Context().Done():
			case <-release:
			}
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(metaPage))
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	cfg := testConfig(t)
	cfg.Timeout = 200 * time.Millisecond
	cfg.Targets = []string{srv.URL + "/kettle"}
	cfg.Stdout = &bytes.Buffer{}

	a, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	start := time.Now()
	_, err = a.Run(ctx)
	if !errors.Is(err, ErrNoUsableTargets) {
		t.Fatalf("expected the target to fail on robots.txt, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("run not bounded by the configured timeout, took %v", elapsed)
	}
}

type stubRenderer struct {
	mu       sync.Mutex
	captured []string
}

func (r *stubRenderer) Capture(ctx context.Context, url string) (*document.Snapshot, error) {
	r.mu.Lock()
	r.captured = append(r.captured, url)
	r.mu.Unlock()
	return &document.Snapshot{
		PageTitle: "Rendered",
		View:      document.DefaultViewport,
		Metas: []document.SnapshotMeta{
			{Attr: "property", Key: "product:price:amount", Content: "7.50"},
			{Attr: "property", Key: "product:price:currency", Content: "GBP"},
		},
	}, nil
}

func (r *stubRenderer) Close() error { return nil }

func TestRun_RenderedTargetsArePacedAndChecked(t *testing.T) {
	srv, _ := shopServer(t)
	cfg := testConfig(t)
	cfg.RatePerHost = 10
	cfg.Targets = []string{srv.URL + "/a", srv.URL + "/b", srv.URL + "/c", srv.URL + "/private/d"}
	var stdout bytes.Buffer
	cfg.Stdout = &stdout

	a, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	stub := &stubRenderer{}
	a.renderer = stub

	start := time.Now()
	run, err := a.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 150*time.Millisecond {
		t.Fatalf("rendered navigations should share the per-host limiter, took %v", elapsed)
	}
	if len(stub.captured) != 3 {
		t.Fatalf("expected 3 captures, robots.txt should block /private, got %v", stub.captured)
	}
	for _, u := range stub.captured {
		if strings.Contains(u, "/private/") {
			t.Fatalf("disallowed page was rendered: %s", u)
		}
	}
	found, _, failed := run.Counts()
	if found != 3 || failed != 1 {
		t.Fatalf("counts = %d found, %d failed", found, failed)
	}
	if !strings.Contains(stdout.String(), "GBP 7.50") {
		t.Fatalf("expected rendered price in output, got %q", stdout.String())
	}
	for _, e := range run.Entries {
		if e.Found() && !e.Rendered {
			t.Fatalf("entry %s should be marked rendered", e.Target)
		}
	}
}
