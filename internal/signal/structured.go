package signal

import (
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/goprice/internal/document"
	"github.com/hyperifyio/goprice/internal/jsonld"
)

// StructuredDataReader searches JSON-LD blocks, in document order, for the
// first offer with a price. Malformed blocks are skipped.
type StructuredDataReader struct {
	// Limits bounds the walk over each block; zero means jsonld.DefaultLimits.
	Limits jsonld.Limits
}

func (StructuredDataReader) Kind() SourceKind { return StructuredData }

func (r StructuredDataReader) Read(doc document.Document) (RawSignal, error) {
	blocks := doc.StructuredData()
	parsed := 0
	for i, block := range blocks {
		v, err := jsonld.Parse(block)
		if err != nil {
			log.Debug().Err(err).Int("block", i).Msg("skipping malformed ld+json block")
			continue
		}
		parsed++
		if o, ok := jsonld.FindOffer(v, r.Limits); ok {
			return RawSignal{Text: o.Raw(), Kind: StructuredData}, nil
		}
	}
	if parsed == 0 {
		return RawSignal{}, ErrSourceUnavailable
	}
	return RawSignal{}, ErrNoSignal
}
