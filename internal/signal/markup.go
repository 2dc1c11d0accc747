package signal

import (
	"strings"

	"github.com/hyperifyio/goprice/internal/document"
	"github.com/hyperifyio/goprice/internal/price"
	"github.com/hyperifyio/goprice/internal/visibility"
)

// DefaultScanBudget caps how many nodes MarkupReader inspects per document.
const DefaultScanBudget = 80

// PriceSelectors lists markup hooks in priority order: microdata, test
// hooks, class/id substrings, then class families that do not contain the
// lowercase word "price".
var PriceSelectors = []string{
	"[itemprop=price]",
	"[data-test*=price]",
	"[data-testid*=price]",
	"[class*=price]",
	"[id*=price]",
	"[class*=Price]",
	".money",
	".amount",
	".cost",
}

// MarkupReader scans elements matched by price-like selectors and returns
// the text of the first visible one that parses as a price.
type MarkupReader struct {
	// Selectors overrides PriceSelectors when non-empty.
	Selectors []string
	// Budget overrides DefaultScanBudget when positive.
	Budget int
}

func (MarkupReader) Kind() SourceKind { return VisibleMarkup }

func (r MarkupReader) Read(doc document.Document) (RawSignal, error) {
	selectors := r.Selectors
	if len(selectors) == 0 {
		selectors = PriceSelectors
	}
	budget := r.Budget
	if budget <= 0 {
		budget = DefaultScanBudget
	}
	vp := doc.Viewport()
	seen := map[string]struct{}{}
	inspected := 0

	for _, sel := range selectors {
		for _, n := range doc.Query(sel) {
			if inspected >= budget {
				return RawSignal{}, ErrBudgetExceeded
			}
			inspected++
			if !visibility.IsVisible(n, vp) {
				continue
			}
			text := nodeText(n)
			if text == "" {
				continue
			}
			if _, dup := seen[text]; dup {
				continue
			}
			seen[text] = struct{}{}
			if _, ok := price.Normalize(text); ok {
				return RawSignal{Text: text, Kind: VisibleMarkup}, nil
			}
		}
	}
	return RawSignal{}, ErrNoSignal
}

// nodeText prefers a non-empty content attribute over rendered text.
func nodeText(n document.Node) string {
	if v, ok := n.Attr("content"); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return strings.TrimSpace(n.Text())
}
