package extract

import (
	"github.com/hyperifyio/goprice/internal/document"
	"github.com/hyperifyio/goprice/internal/signal"
)

// Extractor finds the best price on a document. Implementations must be
// deterministic and keep no state between calls.
type Extractor interface {
	Extract(doc document.Document) (Result, bool)
}

// Default returns the standard cascade: metadata, structured data,
// visible markup, then fallback text.
func Default() Cascade {
	return Cascade{Readers: signal.DefaultReaders()}
}
