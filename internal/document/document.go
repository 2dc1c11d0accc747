// Package document defines the read-only page handle the extraction engine
// works against, and the two adapters that produce it: a static parse of
// HTML bytes and a snapshot captured from a rendered browser tab.
package document

// Document is a read-only view of one page.
type Document interface {
	// Meta returns the content of the first <meta> element whose attr
	// ("property", "name" or "itemprop") equals key, or "".
	Meta(attr, key string) string
	// StructuredData returns the text of each embedded JSON-LD block in
	// document order.
	StructuredData() []string
	// Query returns the elements matching selector in document order.
	Query(selector string) []Node
	// VisibleText returns the page's rendered text, whitespace-normalized.
	VisibleText() string
	// Viewport returns the size of the visible area.
	Viewport() Viewport
}

// Node is a single element returned by Document.Query.
type Node interface {
	Attr(name string) (string, bool)
	Text() string
	Rect() Rect
	Style() Style
}

// Titled is implemented by documents that know their page title.
type Titled interface {
	Title() string
}

// Rect is an element's bounding box in viewport coordinates.
type Rect struct {
	Top    float64 `json:"top"`
	Left   float64 `json:"left"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Bottom is Top+Height.
func (r Rect) Bottom() float64 { return r.Top + r.Height }

// Style carries the computed style properties relevant to visibility.
type Style struct {
	Display    string `json:"display"`
	Visibility string `json:"visibility"`
	Opacity    string `json:"opacity"`
}

// Viewport is the visible area in CSS pixels.
type Viewport struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// DefaultViewport is used when no explicit size is configured.
var DefaultViewport = Viewport{Width: 1280, Height: 800}
