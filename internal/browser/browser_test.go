package browser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/hyperifyio/goprice/internal/document"
	"github.com/hyperifyio/goprice/internal/extract"
	"github.com/hyperifyio/goprice/internal/signal"
)

func TestConfigDefaults(t *testing.T) {
	m := NewManager(Config{})
	if m.cfg.Viewport != document.DefaultViewport {
		t.Fatalf("expected default viewport, got %+v", m.cfg.Viewport)
	}
	if m.cfg.NavTimeout != 30*time.Second || m.cfg.MaxNodes != 80 || m.cfg.MaxText != 1<<16 {
		t.Fatalf("unexpected defaults: %+v", m.cfg)
	}
}

func TestCaptureScriptShape(t *testing.T) {
	for _, key := range []string{"title:", "viewport:", "meta:", "structuredData:", "queries", "text:"} {
		if !strings.Contains(captureScript, key) {
			t.Fatalf("capture script missing %q", key)
		}
	}
}

func TestCaptureAfterClose(t *testing.T) {
	m := NewManager(Config{})
	if err := m.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := m.Capture(context.Background(), "http://example.invalid"); err != ErrClosed {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

// TestCapture_Live runs only when a DevTools endpoint is provided.
func TestCapture_Live(t *testing.T) {
	wsURL := os.Getenv("BROWSER_URL")
	if wsURL == "" {
		t.Skip("BROWSER_URL not set")
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body>
<span class="price" style="display:none">$50.00</span>
<span class="price" style="display:inline-block;width:120px;height:30px">$45.00</span>
</body></html>`))
	}))
	defer srv.Close()

	m := NewManager(Config{RemoteURL: wsURL, Selectors: signal.PriceSelectors})
	defer m.Close()

	snap, err := m.Capture(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if got := extract.ExtractPrice(snap); got != "$ 45.00" {
		t.Fatalf("expected rendered visible price, got %q", got)
	}
}
