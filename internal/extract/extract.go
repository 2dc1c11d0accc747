// Package extract runs the signal readers in precedence order and keeps the
// first raw signal that normalizes into a price.
package extract

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/goprice/internal/document"
	"github.com/hyperifyio/goprice/internal/price"
	"github.com/hyperifyio/goprice/internal/signal"
)

// ErrParseFailure marks a raw signal the normalizer rejected.
var ErrParseFailure = errors.New("extract: price text did not normalize")

// Result is the winning candidate and where it came from.
type Result struct {
	Candidate price.Candidate
	Source    signal.SourceKind
	Raw       string
}

// Attempt records the outcome of one reader during a cascade run.
type Attempt struct {
	Source signal.SourceKind
	Raw    string
	Err    error
}

// Cascade tries each reader in order and short-circuits on the first
// signal that normalizes.
type Cascade struct {
	Readers []signal.Reader
}

// Extract returns the winning result, or false when every reader fails.
func (c Cascade) Extract(doc document.Document) (Result, bool) {
	res, _, ok := c.Trace(doc)
	return res, ok
}

// Trace is Extract that also reports every attempt made before the winner.
// Failures are recovered by moving to the next reader.
func (c Cascade) Trace(doc document.Document) (Result, []Attempt, bool) {
	var attempts []Attempt
	for _, r := range c.Readers {
		sig, err := r.Read(doc)
		if err != nil {
			attempts = append(attempts, Attempt{Source: r.Kind(), Err: err})
			log.Debug().Str("source", r.Kind().String()).Err(err).Msg("reader yielded nothing")
			continue
		}
		cand, ok := price.Normalize(sig.Text)
		if !ok {
			err := fmt.Errorf("%w: %q", ErrParseFailure, sig.Text)
			attempts = append(attempts, Attempt{Source: r.Kind(), Raw: sig.Text, Err: err})
			log.Debug().Str("source", r.Kind().String()).Str("raw", sig.Text).Msg("normalize rejected signal")
			continue
		}
		attempts = append(attempts, Attempt{Source: r.Kind(), Raw: sig.Text})
		log.Debug().Str("source", r.Kind().String()).Str("price", cand.Display).Msg("price found")
		return Result{Candidate: cand, Source: sig.Kind, Raw: sig.Text}, attempts, true
	}
	return Result{}, attempts, false
}

// ExtractPrice returns the display string of the best price on doc, or ""
// when none is found. It never fails.
func ExtractPrice(doc document.Document) string {
	res, ok := Default().Extract(doc)
	if !ok {
		return ""
	}
	return res.Candidate.Display
}
