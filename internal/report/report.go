// Package report renders the outcome of a price run as Markdown, JSON, PDF
// and XLSX.
package report

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/hyperifyio/goprice/internal/extract"
)

// Entry is one target's result. Price is empty when nothing was found or
// the target failed; Error is set only for failures.
type Entry struct {
	ID          string    `json:"id"`
	Target      string    `json:"link"`
	Title       string    `json:"name,omitempty"`
	Price       string    `json:"price"`
	Currency    string    `json:"currency,omitempty"`
	Amount      string    `json:"amount,omitempty"`
	Source      string    `json:"source,omitempty"`
	Raw         string    `json:"raw,omitempty"`
	Rendered    bool      `json:"rendered,omitempty"`
	SHA256      string    `json:"sha256,omitempty"`
	Error       string    `json:"error,omitempty"`
	ExtractedAt time.Time `json:"createdAt"`
}

// Found reports whether the entry carries a price.
func (e Entry) Found() bool { return e.Price != "" }

// Run is a batch of entries.
type Run struct {
	ID          string    `json:"id"`
	Version     string    `json:"version"`
	GeneratedAt time.Time `json:"generatedAt"`
	Entries     []Entry   `json:"entries"`
}

// NewRun starts an empty run stamped with now.
func NewRun(version string, now time.Time) *Run {
	return &Run{ID: uuid.NewString(), Version: version, GeneratedAt: now.UTC()}
}

// NewEntry builds an entry from an extraction result. ok=false yields an
// entry with an empty price.
func NewEntry(target, title string, body []byte, res extract.Result, ok bool, now time.Time) Entry {
	e := Entry{
		ID:          uuid.NewString(),
		Target:      target,
		Title:       title,
		ExtractedAt: now.UTC(),
	}
	if len(body) > 0 {
		e.SHA256 = digest(body)
	}
	if ok {
		e.Price = res.Candidate.Display
		e.Currency = res.Candidate.Currency
		e.Amount = res.Candidate.Amount.String()
		e.Source = res.Source.String()
		e.Raw = res.Raw
	}
	return e
}

// FailedEntry records a target that could not be loaded.
func FailedEntry(target string, err error, now time.Time) Entry {
	return Entry{ID: uuid.NewString(), Target: target, Error: err.Error(), ExtractedAt: now.UTC()}
}

// Sort orders entries by target so output is stable across concurrent runs.
func (r *Run) Sort() {
	sort.SliceStable(r.Entries, func(i, j int) bool { return r.Entries[i].Target < r.Entries[j].Target })
}

// Counts returns how many entries found a price, found none, and failed.
func (r *Run) Counts() (found, missing, failed int) {
	for _, e := range r.Entries {
		switch {
		case e.Error != "":
			failed++
		case e.Found():
			found++
		default:
			missing++
		}
	}
	return found, missing, failed
}

func digest(b []byte) string {
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:])
}
