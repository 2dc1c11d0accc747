// Package signal holds the readers that pull raw price text out of a
// document, one reader per source kind.
package signal

import (
	"errors"

	"github.com/hyperifyio/goprice/internal/document"
)

// SourceKind identifies where a raw signal came from.
type SourceKind int

const (
	Meta SourceKind = iota
	StructuredData
	VisibleMarkup
	FallbackText
)

func (k SourceKind) String() string {
	switch k {
	case Meta:
		return "meta"
	case StructuredData:
		return "structured-data"
	case VisibleMarkup:
		return "visible-markup"
	case FallbackText:
		return "fallback-text"
	}
	return "unknown"
}

// RawSignal is one unnormalized text fragment.
type RawSignal struct {
	Text string
	Kind SourceKind
}

var (
	// ErrNoSignal means the source was readable but held nothing usable.
	ErrNoSignal = errors.New("signal: no candidate text")
	// ErrSourceUnavailable means the source was absent or malformed.
	ErrSourceUnavailable = errors.New("signal: source unavailable")
	// ErrBudgetExceeded means the markup scan hit its node cap.
	ErrBudgetExceeded = errors.New("signal: scan budget exceeded")
)

// Reader produces at most one raw signal from a document. Implementations
// must not retain the document.
type Reader interface {
	Kind() SourceKind
	Read(doc document.Document) (RawSignal, error)
}

// DefaultReaders returns the four readers in precedence order.
func DefaultReaders() []Reader {
	return []Reader{
		MetaReader{},
		StructuredDataReader{},
		MarkupReader{},
		FallbackReader{},
	}
}
