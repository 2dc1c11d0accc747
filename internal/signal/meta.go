package signal

import (
	"strings"

	"github.com/hyperifyio/goprice/internal/document"
)

// MetaKey addresses a <meta> element by attribute and value.
type MetaKey struct {
	Attr string
	Key  string
}

// Metadata keys in probe order.
var (
	AmountKeys = []MetaKey{
		{"property", "product:price:amount"},
		{"property", "og:price:amount"},
		{"name", "price"},
		{"itemprop", "price"},
	}
	CurrencyKeys = []MetaKey{
		{"property", "product:price:currency"},
		{"property", "og:price:currency"},
		{"name", "currency"},
		{"itemprop", "priceCurrency"},
	}
)

// MetaReader reads price metadata (Open Graph product tags, name="price",
// microdata meta). Amount and currency are probed independently.
type MetaReader struct{}

func (MetaReader) Kind() SourceKind { return Meta }

func (MetaReader) Read(doc document.Document) (RawSignal, error) {
	amount := firstMeta(doc, AmountKeys)
	if amount == "" {
		return RawSignal{}, ErrSourceUnavailable
	}
	cur := firstMeta(doc, CurrencyKeys)
	return RawSignal{Text: strings.TrimSpace(cur + " " + amount), Kind: Meta}, nil
}

func firstMeta(doc document.Document, keys []MetaKey) string {
	for _, k := range keys {
		if v := strings.TrimSpace(doc.Meta(k.Attr, k.Key)); v != "" {
			return v
		}
	}
	return ""
}
