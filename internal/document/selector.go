package document

import (
	"strings"

	"golang.org/x/net/html"
)

// selector is a parsed selector list. Supported per compound:
//   - tag: "span"
//   - #id: "#price"
//   - .class, repeatable: ".price.current"
//   - [attr], [attr=val], [attr*=val], [attr^=val], [attr$=val], [attr~=val]
//
// Compounds are joined with ",". Combinators are not supported.
type selector []compound

type compound struct {
	tag     string
	id      string
	classes []string
	attrs   []attrMatch
}

type attrMatch struct {
	key string
	op  string // "", "=", "*=", "^=", "$=", "~="
	val string
}

func parseSelector(s string) selector {
	var out selector
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" || hasCombinator(part) {
			continue
		}
		out = append(out, parseCompound(part))
	}
	return out
}

// hasCombinator reports a descendant/child/sibling combinator outside of
// attribute brackets.
func hasCombinator(s string) bool {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '[':
			depth++
		case ']':
			depth--
		case ' ', '>', '+', '~':
			if depth == 0 {
				return true
			}
		}
	}
	return false
}

func parseCompound(s string) compound {
	var c compound
	i := 0
	readIdent := func() string {
		start := i
		for i < len(s) && s[i] != '.' && s[i] != '#' && s[i] != '[' {
			i++
		}
		return s[start:i]
	}
	c.tag = strings.ToLower(readIdent())
	for i < len(s) {
		switch s[i] {
		case '.':
			i++
			c.classes = append(c.classes, readIdent())
		case '#':
			i++
			c.id = readIdent()
		case '[':
			end := strings.IndexByte(s[i:], ']')
			if end < 0 {
				c.attrs = append(c.attrs, parseAttr(s[i+1:]))
				i = len(s)
				continue
			}
			c.attrs = append(c.attrs, parseAttr(s[i+1:i+end]))
			i += end + 1
		default:
			i++
		}
	}
	return c
}

func parseAttr(s string) attrMatch {
	for _, op := range []string{"*=", "^=", "$=", "~=", "="} {
		if idx := strings.Index(s, op); idx >= 0 {
			return attrMatch{
				key: strings.ToLower(strings.TrimSpace(s[:idx])),
				op:  op,
				val: strings.Trim(strings.TrimSpace(s[idx+len(op):]), `"'`),
			}
		}
	}
	return attrMatch{key: strings.ToLower(strings.TrimSpace(s))}
}

func (sel selector) matches(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	for _, c := range sel {
		if c.matches(n) {
			return true
		}
	}
	return false
}

func (c compound) matches(n *html.Node) bool {
	if c.tag != "" && c.tag != "*" && n.Data != c.tag {
		return false
	}
	if c.id != "" {
		if v, _ := getAttr(n, "id"); v != c.id {
			return false
		}
	}
	if len(c.classes) > 0 {
		v, _ := getAttr(n, "class")
		have := strings.Fields(v)
		for _, want := range c.classes {
			if !containsString(have, want) {
				return false
			}
		}
	}
	for _, a := range c.attrs {
		v, ok := getAttr(n, a.key)
		if !ok || !a.test(v) {
			return false
		}
	}
	return true
}

// test compares case-sensitively, as CSS does for attribute values.
func (a attrMatch) test(v string) bool {
	switch a.op {
	case "":
		return true
	case "=":
		return v == a.val
	case "*=":
		return a.val != "" && strings.Contains(v, a.val)
	case "^=":
		return a.val != "" && strings.HasPrefix(v, a.val)
	case "$=":
		return a.val != "" && strings.HasSuffix(v, a.val)
	case "~=":
		return containsString(strings.Fields(v), a.val)
	}
	return false
}

func getAttr(n *html.Node, key string) (string, bool) {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val, true
		}
	}
	return "", false
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
