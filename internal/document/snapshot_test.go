package document

import "testing"

func TestDecodeSnapshot(t *testing.T) {
	raw := []byte(`{
	  "title": " Lamp ",
	  "viewport": {"width": 390, "height": 844},
	  "meta": [
	    {"attr": "property", "key": "product:price:amount", "content": " 49.95 "},
	    {"attr": "itemprop", "key": "priceCurrency", "content": "USD"}
	  ],
	  "structuredData": ["{\"offers\":[]}"],
	  "queries": {
	    "[itemprop=price]": [
	      {"attrs": {"itemprop": "price", "content": "49.95"}, "text": "  $49.95\n",
	       "rect": {"top": 120, "left": 16, "width": 80, "height": 22},
	       "style": {"display": "inline", "visibility": "visible", "opacity": "1"}}
	    ]
	  },
	  "text": "Lamp\n\n  $49.95   today"
	}`)
	s, err := DecodeSnapshot(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if s.Title() != "Lamp" {
		t.Fatalf("title=%q", s.Title())
	}
	if s.Viewport().Height != 844 {
		t.Fatalf("viewport=%+v", s.Viewport())
	}
	if got := s.Meta("property", "product:price:amount"); got != "49.95" {
		t.Fatalf("meta amount=%q", got)
	}
	if got := s.Meta("property", "priceCurrency"); got != "" {
		t.Fatalf("meta lookups are scoped by attribute, got %q", got)
	}
	nodes := s.Query("[itemprop=price]")
	if len(nodes) != 1 {
		t.Fatalf("nodes=%d", len(nodes))
	}
	if v, _ := nodes[0].Attr("content"); v != "49.95" {
		t.Fatalf("content attr=%q", v)
	}
	if nodes[0].Text() != "$49.95" || nodes[0].Rect().Bottom() != 142 {
		t.Fatalf("node text=%q rect=%+v", nodes[0].Text(), nodes[0].Rect())
	}
	if len(s.Query(".not-captured")) != 0 {
		t.Fatalf("uncaptured selectors should be empty")
	}
	if s.VisibleText() != "Lamp\n$49.95 today" {
		t.Fatalf("text=%q", s.VisibleText())
	}
}

func TestDecodeSnapshot_DefaultsViewportAndRejectsGarbage(t *testing.T) {
	s, err := DecodeSnapshot([]byte(`{"text":"x"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if s.Viewport() != DefaultViewport {
		t.Fatalf("viewport=%+v", s.Viewport())
	}
	if _, err := DecodeSnapshot([]byte(`not json`)); err == nil {
		t.Fatalf("expected decode error")
	}
}
