package signal

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperifyio/goprice/internal/document"
)

// fakeDoc is a synthetic document; every method is driven by its fields.
type fakeDoc struct {
	metas map[string]string
	ld    []string
	nodes map[string][]document.Node
	text  string
}

func (d *fakeDoc) Meta(attr, key string) string { return d.metas[attr+"="+key] }

func (d *fakeDoc) StructuredData() []string { return d.ld }

func (d *fakeDoc) VisibleText() string { return d.text }

func (d *fakeDoc) Viewport() document.Viewport { return document.DefaultViewport }

func (d *fakeDoc) Query(sel string) []document.Node {
	return d.nodes[sel]
}

type fakeNode struct {
	attrs   map[string]string
	text    string
	rect    document.Rect
	style   document.Style
	touched *int
}

func (n *fakeNode) Attr(name string) (string, bool) {
	if n.touched != nil {
		*n.touched++
	}
	v, ok := n.attrs[name]
	return v, ok
}

func (n *fakeNode) Text() string { return n.text }

func (n *fakeNode) Rect() document.Rect { return n.rect }

func (n *fakeNode) Style() document.Style { return n.style }

func shown(text string) *fakeNode {
	return &fakeNode{
		text:  text,
		rect:  document.Rect{Top: 100, Width: 120, Height: 24},
		style: document.Style{Display: "block", Visibility: "visible", Opacity: "1"},
	}
}

func TestMetaReader_ProbeOrder(t *testing.T) {
	doc := &fakeDoc{metas: map[string]string{
		"name=price":                      "5.00",
		"property=og:price:amount":        "19.99",
		"property=product:price:currency": "EUR",
		"name=currency":                   "USD",
	}}
	sig, err := MetaReader{}.Read(doc)
	require.NoError(t, err)
	assert.Equal(t, "EUR 19.99", sig.Text)
	assert.Equal(t, Meta, sig.Kind)
}

func TestMetaReader_AmountWithoutCurrency(t *testing.T) {
	doc := &fakeDoc{metas: map[string]string{"itemprop=price": " 42 "}}
	sig, err := MetaReader{}.Read(doc)
	require.NoError(t, err)
	assert.Equal(t, "42", sig.Text)
}

func TestMetaReader_CurrencyAloneIsNotASignal(t *testing.T) {
	doc := &fakeDoc{metas: map[string]string{"property=og:price:currency": "USD"}}
	_, err := MetaReader{}.Read(doc)
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestStructuredDataReader_SkipsMalformedBlocks(t *testing.T) {
	doc := &fakeDoc{ld: []string{
		`{"@type": "Product", "offers": `,
		`{"@type": "Organization", "name": "Shop"}`,
		`{"@type": "Product", "offers": [{"@type": "Offer", "price": "129.00", "priceCurrency": "GBP"}]}`,
	}}
	sig, err := StructuredDataReader{}.Read(doc)
	require.NoError(t, err)
	assert.Equal(t, "GBP 129.00", sig.Text)
	assert.Equal(t, StructuredData, sig.Kind)
}

func TestStructuredDataReader_Errors(t *testing.T) {
	_, err := StructuredDataReader{}.Read(&fakeDoc{})
	assert.ErrorIs(t, err, ErrSourceUnavailable)

	_, err = StructuredDataReader{}.Read(&fakeDoc{ld: []string{"not json"}})
	assert.ErrorIs(t, err, ErrSourceUnavailable)

	_, err = StructuredDataReader{}.Read(&fakeDoc{ld: []string{`{"@type":"WebPage"}`}})
	assert.ErrorIs(t, err, ErrNoSignal)
}

func TestMarkupReader_SelectorPriority(t *testing.T) {
	doc := &fakeDoc{nodes: map[string][]document.Node{
		"[class*=price]":   {shown("$10.00")},
		"[itemprop=price]": {shown("$25.50")},
	}}
	sig, err := MarkupReader{}.Read(doc)
	require.NoError(t, err)
	assert.Equal(t, "$25.50", sig.Text)
	assert.Equal(t, VisibleMarkup, sig.Kind)
}

func TestMarkupReader_SkipsInvisibleEvenWhenOnlyMatch(t *testing.T) {
	collapsed := shown("$99.00")
	collapsed.rect = document.Rect{}
	hidden := shown("$98.00")
	hidden.style.Display = "none"

	doc := &fakeDoc{nodes: map[string][]document.Node{
		"[class*=price]": {collapsed, hidden},
	}}
	_, err := MarkupReader{}.Read(doc)
	assert.ErrorIs(t, err, ErrNoSignal)
}

func TestMarkupReader_PrefersContentAttribute(t *testing.T) {
	n := shown("Now only nineteen dollars")
	n.attrs = map[string]string{"content": "USD 19.00"}
	doc := &fakeDoc{nodes: map[string][]document.Node{"[itemprop=price]": {n}}}
	sig, err := MarkupReader{}.Read(doc)
	require.NoError(t, err)
	assert.Equal(t, "USD 19.00", sig.Text)
}

func TestMarkupReader_SkipsUnparseableAndDuplicates(t *testing.T) {
	label := shown("Price")
	dup := shown("Price")
	good := shown("€ 7,50")
	doc := &fakeDoc{nodes: map[string][]document.Node{
		"[class*=price]": {label, dup},
		"[id*=price]":    {good},
	}}
	sig, err := MarkupReader{}.Read(doc)
	require.NoError(t, err)
	assert.Equal(t, "€ 7,50", sig.Text)
}

func TestMarkupReader_BoundedCost(t *testing.T) {
	inspected := 0
	nodes := make([]document.Node, 10000)
	for i := range nodes {
		n := shown("Sold out")
		n.touched = &inspected
		nodes[i] = n
	}
	doc := &fakeDoc{nodes: map[string][]document.Node{"[class*=price]": nodes}}

	_, err := MarkupReader{}.Read(doc)
	assert.True(t, errors.Is(err, ErrBudgetExceeded))
	assert.LessOrEqual(t, inspected, DefaultScanBudget)
}

func TestMarkupReader_CustomBudget(t *testing.T) {
	doc := &fakeDoc{nodes: map[string][]document.Node{
		"[itemprop=price]": {shown("n/a"), shown("call us"), shown("$5")},
	}}
	_, err := MarkupReader{Budget: 2}.Read(doc)
	assert.ErrorIs(t, err, ErrBudgetExceeded)

	sig, err := MarkupReader{Budget: 3}.Read(doc)
	require.NoError(t, err)
	assert.Equal(t, "$5", sig.Text)
}

func TestFallbackReader(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
		err  error
	}{
		{"symbol before", "Deal of the day: only $1,299.99 today", "$1,299.99", nil},
		{"symbol after", "Jetzt 1.299,99 € statt 1.499,00 €", "1.299,99 €", nil},
		{"code before", "Ships for USD 12.50 worldwide", "USD 12.50", nil},
		{"code after", "Total 450 SEK incl. VAT", "450 SEK", nil},
		{"skips unknown code", "Model ABC 123 costs 15 EUR", "15 EUR", nil},
		{"size before price", "Running shoe, size 10 $59.99", "$59.99", nil},
		{"quantity before price", "Pack of 3 €12,50", "€12,50", nil},
		{"year before price", "Model 2024 $1,299.00", "$1,299.00", nil},
		{"prefixed wins over earlier suffixed", "Was 20 € now $15", "$15", nil},
		{"stock count not glued", "$10 100 left", "$10", nil},
		{"suffixed space grouping", "Prix 1 299,99 € TTC", "1 299,99 €", nil},
		{"no currency", "Buy 3 get 1 free", "", ErrNoSignal},
		{"empty", "", "", ErrSourceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig, err := FallbackReader{}.Read(&fakeDoc{text: tt.text})
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, sig.Text)
			assert.Equal(t, FallbackText, sig.Kind)
		})
	}
}

func TestFallbackReader_OnlyLooksAtPrefix(t *testing.T) {
	text := strings.Repeat("x", DefaultFallbackChars) + " $10"
	_, err := FallbackReader{}.Read(&fakeDoc{text: text})
	assert.ErrorIs(t, err, ErrNoSignal)

	sig, err := FallbackReader{Chars: DefaultFallbackChars + 10}.Read(&fakeDoc{text: text})
	require.NoError(t, err)
	assert.Equal(t, "$10", sig.Text)
}

func TestReaders_OnParsedHTML(t *testing.T) {
	page := []byte(`<html><head>
<meta property="product:price:amount" content="59.90">
<meta property="product:price:currency" content="EUR">
<script type="application/ld+json">{"offers":{"price":"61.00","priceCurrency":"EUR"}}</script>
</head><body>
<span class="price" style="width:80px;height:20px">€ 62,00</span>
</body></html>`)
	doc := document.FromHTML(page)

	want := map[SourceKind]string{
		Meta:           "EUR 59.90",
		StructuredData: "EUR 61.00",
		VisibleMarkup:  "€ 62,00",
		FallbackText:   "€ 62,00",
	}
	for _, r := range DefaultReaders() {
		sig, err := r.Read(doc)
		require.NoError(t, err, r.Kind().String())
		assert.Equal(t, want[r.Kind()], sig.Text, r.Kind().String())
	}
}

func TestSourceKindString(t *testing.T) {
	assert.Equal(t, "meta", Meta.String())
	assert.Equal(t, "fallback-text", FallbackText.String())
	assert.Equal(t, "unknown", SourceKind(42).String())
}
