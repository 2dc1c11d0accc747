package document

import (
	"bytes"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// HTML is a Document over statically parsed markup. There is no layout
// engine behind it: computed style is cascaded from inline styles and the
// hidden attribute, and geometry comes from inline px sizes with defaults
// that place every element inside the viewport.
type HTML struct {
	root     *html.Node
	title    string
	viewport Viewport
	metas    []*html.Node
	ld       []string
	text     string
	layout   map[*html.Node]box
}

// box is the precomputed style and geometry of one element.
type box struct {
	style Style
	rect  Rect
}

// Option configures FromHTML.
type Option func(*HTML)

// WithViewport overrides DefaultViewport.
func WithViewport(vp Viewport) Option {
	return func(h *HTML) {
		if vp.Width > 0 && vp.Height > 0 {
			h.viewport = vp
		}
	}
}

const defaultLineHeight = 24

// Tags never rendered by a browser.
var nonRendered = map[string]bool{
	"head": true, "script": true, "style": true, "template": true,
	"noscript": true, "meta": true, "link": true, "title": true,
}

// Utility classes that shrink content to a 1x1 box for screen readers.
var screenReaderOnly = []string{"sr-only", "visually-hidden", "visuallyhidden", "a-offscreen", "screen-reader-text"}

// FromHTML parses input. Malformed markup never fails; an unparsable input
// yields an empty document.
func FromHTML(input []byte, opts ...Option) *HTML {
	h := &HTML{viewport: DefaultViewport, layout: map[*html.Node]box{}}
	for _, o := range opts {
		o(h)
	}
	node, err := html.Parse(bytes.NewReader(input))
	if err != nil || node == nil {
		return h
	}
	h.root = node
	h.computeLayout(node, box{style: Style{Display: "block", Visibility: "visible", Opacity: "1"}}, 1)
	h.scan(node)

	var b strings.Builder
	if body := findFirst(node, "body"); body != nil {
		h.collectText(&b, body)
	} else {
		h.collectText(&b, node)
	}
	h.text = normalizeWhitespace(b.String())
	return h
}

// Title returns the <title> text.
func (h *HTML) Title() string { return h.title }

func (h *HTML) Viewport() Viewport { return h.viewport }

func (h *HTML) VisibleText() string { return h.text }

func (h *HTML) StructuredData() []string {
	out := make([]string, len(h.ld))
	copy(out, h.ld)
	return out
}

func (h *HTML) Meta(attr, key string) string {
	for _, m := range h.metas {
		v, ok := getAttr(m, attr)
		if !ok || !strings.EqualFold(strings.TrimSpace(v), key) {
			continue
		}
		if content, _ := getAttr(m, "content"); strings.TrimSpace(content) != "" {
			return strings.TrimSpace(content)
		}
	}
	return ""
}

func (h *HTML) Query(sel string) []Node {
	if h.root == nil {
		return nil
	}
	parsed := parseSelector(sel)
	if len(parsed) == 0 {
		return nil
	}
	var out []Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if parsed.matches(n) {
			out = append(out, &htmlNode{n: n, doc: h})
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(h.root)
	return out
}

// scan collects title, meta elements and JSON-LD blocks in document order.
func (h *HTML) scan(n *html.Node) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "title":
			if h.title == "" {
				h.title = strings.TrimSpace(textContent(n))
			}
		case "meta":
			h.metas = append(h.metas, n)
		case "script":
			if t, _ := getAttr(n, "type"); isLDJSON(t) {
				h.ld = append(h.ld, textContent(n))
			}
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		h.scan(c)
	}
}

func isLDJSON(t string) bool {
	t = strings.ToLower(strings.TrimSpace(t))
	if i := strings.IndexByte(t, ';'); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	return t == "application/ld+json"
}

// computeLayout walks the tree once, cascading display, visibility and
// opacity from ancestors and accumulating vertical offsets.
func (h *HTML) computeLayout(n *html.Node, parent box, opacity float64) {
	cur := parent
	if n.Type == html.ElementNode {
		decl := parseInlineStyle(n)
		st := Style{Display: "block", Visibility: parent.style.Visibility}
		if v, ok := decl["display"]; ok {
			st.Display = v
		} else if _, hidden := getAttr(n, "hidden"); hidden || nonRendered[n.Data] {
			st.Display = "none"
		}
		if parent.style.Display == "none" {
			st.Display = "none"
		}
		if v, ok := decl["visibility"]; ok {
			st.Visibility = v
		}
		if v, ok := decl["opacity"]; ok {
			if f, ok := parseOpacity(v); ok {
				opacity *= f
			}
		}
		st.Opacity = strconv.FormatFloat(opacity, 'f', -1, 64)

		r := Rect{Top: parent.rect.Top, Width: h.viewport.Width, Height: defaultLineHeight}
		if hasAnyClass(n, screenReaderOnly) {
			r.Width, r.Height = 1, 1
		}
		if v, ok := pxValue(decl["width"]); ok {
			r.Width = v
		}
		if v, ok := pxValue(decl["height"]); ok {
			r.Height = v
		}
		if v, ok := pxValue(decl["top"]); ok {
			r.Top += v
		}
		if v, ok := pxValue(decl["left"]); ok {
			r.Left = parent.rect.Left + v
		}
		cur = box{style: st, rect: r}
		h.layout[n] = cur
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		h.computeLayout(c, cur, opacity)
	}
}

func (h *HTML) hidden(n *html.Node) bool {
	b, ok := h.layout[n]
	if !ok {
		return false
	}
	return b.style.Display == "none" || b.style.Visibility == "hidden"
}

// collectText gathers rendered text with block-level line breaks.
func (h *HTML) collectText(b *strings.Builder, n *html.Node) {
	if n.Type == html.ElementNode {
		if h.hidden(n) {
			return
		}
		switch n.Data {
		case "br", "hr", "p", "div", "li", "tr", "h1", "h2", "h3", "h4", "h5", "h6", "ul", "ol", "section", "article":
			b.WriteString("\n")
		case "td", "th":
			b.WriteString(" ")
		}
	}
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		h.collectText(b, c)
	}
	if n.Type == html.ElementNode {
		switch n.Data {
		case "p", "div", "li", "h1", "h2", "h3", "h4", "h5", "h6":
			b.WriteString("\n")
		}
	}
}

type htmlNode struct {
	n   *html.Node
	doc *HTML
}

func (e *htmlNode) Attr(name string) (string, bool) { return getAttr(e.n, name) }

// Text returns the element's rendered text on one line.
func (e *htmlNode) Text() string {
	var b strings.Builder
	e.doc.collectText(&b, e.n)
	return collapseSpaces(strings.TrimSpace(b.String()))
}

func (e *htmlNode) Rect() Rect { return e.doc.layout[e.n].rect }

func (e *htmlNode) Style() Style { return e.doc.layout[e.n].style }

func parseInlineStyle(n *html.Node) map[string]string {
	raw, ok := getAttr(n, "style")
	if !ok {
		return nil
	}
	out := map[string]string{}
	for _, decl := range strings.Split(raw, ";") {
		colon := strings.IndexByte(decl, ':')
		if colon <= 0 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(decl[:colon]))
		val := strings.ToLower(strings.TrimSpace(decl[colon+1:]))
		val = strings.TrimSpace(strings.TrimSuffix(val, "!important"))
		out[key] = val
	}
	return out
}

// pxValue parses "12px", "12" or "0". Other units are ignored.
func pxValue(v string) (float64, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	v = strings.TrimSuffix(v, "px")
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func parseOpacity(v string) (float64, bool) {
	pct := strings.HasSuffix(v, "%")
	f, err := strconv.ParseFloat(strings.TrimSuffix(v, "%"), 64)
	if err != nil {
		return 0, false
	}
	if pct {
		f /= 100
	}
	if f < 0 {
		f = 0
	}
	if f > 1 {
		f = 1
	}
	return f, true
}

func hasAnyClass(n *html.Node, classes []string) bool {
	v, ok := getAttr(n, "class")
	if !ok {
		return false
	}
	for _, c := range strings.Fields(v) {
		if containsString(classes, c) {
			return true
		}
	}
	return false
}

func findFirst(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, tag); found != nil {
			return found
		}
	}
	return nil
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(cur *html.Node) {
		if cur.Type == html.TextNode {
			b.WriteString(cur.Data)
		}
		for c := cur.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func normalizeWhitespace(s string) string {
	// Collapse multiple spaces and blank lines
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		out = append(out, collapseSpaces(trimmed))
	}
	return strings.Join(out, "\n")
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
