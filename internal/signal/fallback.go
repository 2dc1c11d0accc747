package signal

import (
	"regexp"

	"github.com/hyperifyio/goprice/internal/document"
	"github.com/hyperifyio/goprice/internal/price"
)

// DefaultFallbackChars is how much of the page text the fallback reader looks at.
const DefaultFallbackChars = 8000

// prefixedRe matches a currency written before its number. Space-grouped
// digits are not joined here, so "$10 100 left" reads as "$10".
var prefixedRe = regexp.MustCompile(`(?:[` + price.Symbols + `]|\b[A-Z]{3}) ?\d+(?:[.,'’]\d+)*`)

// suffixedRe matches a number followed by its currency ("1 299,99 €").
var suffixedRe = regexp.MustCompile(price.NumberPattern + ` ?(?:[` + price.Symbols + `]|[A-Z]{3}\b)`)

// FallbackReader scans the start of the page text for a number written next
// to a currency symbol or code. Prefixed amounts win over suffixed ones
// anywhere in the window, so a quantity before "$59.99" is never taken for
// the price. It is the lowest-confidence source.
type FallbackReader struct {
	// Chars overrides DefaultFallbackChars when positive.
	Chars int
}

func (FallbackReader) Kind() SourceKind { return FallbackText }

func (r FallbackReader) Read(doc document.Document) (RawSignal, error) {
	limit := r.Chars
	if limit <= 0 {
		limit = DefaultFallbackChars
	}
	text := doc.VisibleText()
	if text == "" {
		return RawSignal{}, ErrSourceUnavailable
	}
	text = prefixRunes(text, limit)

	for _, re := range []*regexp.Regexp{prefixedRe, suffixedRe} {
		for _, m := range re.FindAllString(text, -1) {
			if price.DetectCurrency(m) != "" {
				return RawSignal{Text: m, Kind: FallbackText}, nil
			}
		}
	}
	return RawSignal{}, ErrNoSignal
}

func prefixRunes(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
