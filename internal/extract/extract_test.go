package extract

import (
	"errors"
	"testing"

	"github.com/hyperifyio/goprice/internal/document"
	"github.com/hyperifyio/goprice/internal/signal"
)

func TestExtractPrice_MetadataBeatsMarkup(t *testing.T) {
	page := `<!doctype html>
    <html>
      <head>
        <meta property="og:price:amount" content="1299.99">
        <meta property="og:price:currency" content="USD">
      </head>
      <body>
        <div class="product-price" style="width:100px;height:30px">$999.00</div>
      </body>
    </html>`

	got := ExtractPrice(document.FromHTML([]byte(page)))
	if got != "USD 1299.99" {
		t.Fatalf("expected metadata price, got %q", got)
	}
}

func TestExtractPrice_FallsThroughOnParseFailure(t *testing.T) {
	page := `<html><head>
      <meta name="price" content="call for price">
      <script type="application/ld+json">
        {"@context":"https://schema.org","@type":"Product",
         "offers":{"@type":"Offer","price":"1.299,99","priceCurrency":"EUR"}}
      </script>
    </head><body></body></html>`

	res, attempts, ok := Default().Trace(document.FromHTML([]byte(page)))
	if !ok {
		t.Fatalf("expected a price")
	}
	if res.Source != signal.StructuredData {
		t.Fatalf("expected structured data source, got %s", res.Source)
	}
	if res.Candidate.Display != "EUR 1299.99" {
		t.Fatalf("unexpected display %q", res.Candidate.Display)
	}
	if len(attempts) != 2 || !errors.Is(attempts[0].Err, ErrParseFailure) {
		t.Fatalf("expected metadata parse failure then success, got %+v", attempts)
	}
}

func TestExtractPrice_VisibleMarkupSkipsDecoys(t *testing.T) {
	page := `<html><body>
      <span class="price price--old" style="display:none">$49.99</span>
      <span class="price" style="width:1px;height:1px">$39.99</span>
      <span class="price" style="width:90px;height:24px">$29.99</span>
    </body></html>`

	got := ExtractPrice(document.FromHTML([]byte(page)))
	if got != "$ 29.99" {
		t.Fatalf("expected visible price, got %q", got)
	}
}

func TestExtractPrice_FallbackSkipsLeadingQuantities(t *testing.T) {
	cases := map[string]string{
		"<p>Running shoe, size 10 $59.99</p>": "$ 59.99",
		"<p>Pack of 3 €12,50</p>":             "€ 12.50",
		"<p>Model 2024 $1,299.00</p>":         "$ 1299.00",
	}
	for page, want := range cases {
		if got := ExtractPrice(document.FromHTML([]byte(page))); got != want {
			t.Errorf("ExtractPrice(%q) = %q, want %q", page, got, want)
		}
	}
}

func TestExtractPrice_FallbackText(t *testing.T) {
	page := `<html><body><p>Special offer: now 1.299,99 € incl. VAT</p></body></html>`
	got := ExtractPrice(document.FromHTML([]byte(page)))
	if got != "€ 1299.99" {
		t.Fatalf("expected fallback price, got %q", got)
	}
}

func TestExtractPrice_NoSignalIsEmpty(t *testing.T) {
	page := `<html><head><title>About us</title></head><body><p>We sell 3 kinds of tea.</p></body></html>`
	if got := ExtractPrice(document.FromHTML([]byte(page))); got != "" {
		t.Fatalf("expected empty result, got %q", got)
	}
	if got := ExtractPrice(document.FromHTML(nil)); got != "" {
		t.Fatalf("expected empty result for empty input, got %q", got)
	}
}

type stubReader struct {
	kind signal.SourceKind
	text string
	err  error
	hits *int
}

func (s stubReader) Kind() signal.SourceKind { return s.kind }

func (s stubReader) Read(document.Document) (signal.RawSignal, error) {
	*s.hits++
	return signal.RawSignal{Text: s.text, Kind: s.kind}, s.err
}

func TestCascade_ShortCircuits(t *testing.T) {
	var first, second int
	c := Cascade{Readers: []signal.Reader{
		stubReader{kind: signal.Meta, text: "£12", hits: &first},
		stubReader{kind: signal.FallbackText, text: "£99", hits: &second},
	}}
	res, ok := c.Extract(document.FromHTML(nil))
	if !ok || res.Candidate.Display != "£ 12" {
		t.Fatalf("unexpected result %+v ok=%v", res, ok)
	}
	if first != 1 || second != 0 {
		t.Fatalf("expected only the first reader to run, got %d/%d", first, second)
	}
}

func TestCascade_ReaderErrorsAreRecovered(t *testing.T) {
	var hits int
	c := Cascade{Readers: []signal.Reader{
		stubReader{kind: signal.StructuredData, err: signal.ErrSourceUnavailable, hits: &hits},
		stubReader{kind: signal.VisibleMarkup, err: signal.ErrBudgetExceeded, hits: &hits},
		stubReader{kind: signal.FallbackText, text: "CHF 5.-", hits: &hits},
	}}
	res, ok := c.Extract(document.FromHTML(nil))
	if !ok {
		t.Fatalf("expected fallback to win")
	}
	if res.Source != signal.FallbackText || res.Candidate.Display != "CHF 5" {
		t.Fatalf("unexpected result %+v", res)
	}
	if hits != 3 {
		t.Fatalf("expected all readers consulted, got %d", hits)
	}
}
