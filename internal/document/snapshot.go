package document

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Snapshot is a Document captured from a rendered page. Geometry and style
// are whatever the browser reported at capture time; queries are answered
// only for the selectors that were captured.
type Snapshot struct {
	PageTitle string                    `json:"title"`
	View      Viewport                  `json:"viewport"`
	Metas     []SnapshotMeta            `json:"meta"`
	LD        []string                  `json:"structuredData"`
	Queries   map[string][]SnapshotNode `json:"queries"`
	Text      string                    `json:"text"`
}

// SnapshotMeta is one attribute/content pair of a <meta> element.
type SnapshotMeta struct {
	Attr    string `json:"attr"`
	Key     string `json:"key"`
	Content string `json:"content"`
}

// SnapshotNode is one element captured for a selector.
type SnapshotNode struct {
	Attrs    map[string]string `json:"attrs"`
	NodeText string            `json:"text"`
	Box      Rect              `json:"rect"`
	Computed Style             `json:"style"`
}

// DecodeSnapshot parses the JSON produced by the browser capture script.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if s.View.Width <= 0 || s.View.Height <= 0 {
		s.View = DefaultViewport
	}
	s.Text = normalizeWhitespace(s.Text)
	return &s, nil
}

func (s *Snapshot) Title() string { return strings.TrimSpace(s.PageTitle) }

func (s *Snapshot) Viewport() Viewport { return s.View }

func (s *Snapshot) VisibleText() string { return s.Text }

func (s *Snapshot) StructuredData() []string {
	out := make([]string, len(s.LD))
	copy(out, s.LD)
	return out
}

func (s *Snapshot) Meta(attr, key string) string {
	for _, m := range s.Metas {
		if m.Attr != attr || !strings.EqualFold(strings.TrimSpace(m.Key), key) {
			continue
		}
		if c := strings.TrimSpace(m.Content); c != "" {
			return c
		}
	}
	return ""
}

func (s *Snapshot) Query(sel string) []Node {
	nodes := s.Queries[sel]
	out := make([]Node, 0, len(nodes))
	for i := range nodes {
		out = append(out, &nodes[i])
	}
	return out
}

func (n *SnapshotNode) Attr(name string) (string, bool) {
	v, ok := n.Attrs[name]
	return v, ok
}

func (n *SnapshotNode) Text() string { return collapseSpaces(n.NodeText) }

func (n *SnapshotNode) Rect() Rect { return n.Box }

func (n *SnapshotNode) Style() Style { return n.Computed }
