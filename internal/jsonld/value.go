// Package jsonld parses embedded JSON-LD blocks into an ordered tagged
// union and searches them for schema.org offers without recursion.
package jsonld

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Kind tags a Value.
type Kind int

const (
	Scalar Kind = iota
	Object
	List
)

// Field is one key/value pair of an Object, kept in source order.
type Field struct {
	Key   string
	Value *Value
}

// Value is a JSON value. Scalars keep their literal text: numbers are not
// rounded, null is "".
type Value struct {
	Kind   Kind
	Text   string
	Fields []Field
	Items  []*Value
}

// Get returns the first field named key, or nil.
func (v *Value) Get(key string) *Value {
	if v == nil || v.Kind != Object {
		return nil
	}
	for _, f := range v.Fields {
		if f.Key == key {
			return f.Value
		}
	}
	return nil
}

// String returns the scalar text, or "" for objects and lists.
func (v *Value) String() string {
	if v == nil || v.Kind != Scalar {
		return ""
	}
	return strings.TrimSpace(v.Text)
}

var errTrailing = errors.New("jsonld: trailing data after value")

// Parse decodes one JSON document. Wrappers that sites put around block
// text (HTML comments, CDATA markers) are removed first.
func Parse(text string) (*Value, error) {
	dec := json.NewDecoder(strings.NewReader(unwrap(text)))
	dec.UseNumber()

	var (
		root  *Value
		stack []*Value
		key   *string
	)
	attach := func(v *Value) {
		if len(stack) == 0 {
			root = v
			return
		}
		parent := stack[len(stack)-1]
		if parent.Kind == List {
			parent.Items = append(parent.Items, v)
			return
		}
		parent.Fields = append(parent.Fields, Field{Key: *key, Value: v})
		key = nil
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("jsonld: %w", err)
		}
		if root != nil && len(stack) == 0 {
			return nil, errTrailing
		}
		switch t := tok.(type) {
		case json.Delim:
			switch t {
			case '{', '[':
				v := &Value{Kind: Object}
				if t == '[' {
					v.Kind = List
				}
				attach(v)
				stack = append(stack, v)
			case '}', ']':
				stack = stack[:len(stack)-1]
			}
		case string:
			top := len(stack) - 1
			if top >= 0 && stack[top].Kind == Object && key == nil {
				k := t
				key = &k
				continue
			}
			attach(&Value{Kind: Scalar, Text: t})
		case json.Number:
			attach(&Value{Kind: Scalar, Text: t.String()})
		case bool:
			attach(&Value{Kind: Scalar, Text: fmt.Sprint(t)})
		case nil:
			attach(&Value{Kind: Scalar})
		}
	}
	if root == nil {
		return nil, errors.New("jsonld: empty block")
	}
	if len(stack) > 0 {
		return nil, fmt.Errorf("jsonld: %w", io.ErrUnexpectedEOF)
	}
	return root, nil
}

func unwrap(text string) string {
	s := strings.TrimSpace(text)
	for _, p := range []string{"<!--", "//<![CDATA[", "<![CDATA["} {
		s = strings.TrimSpace(strings.TrimPrefix(s, p))
	}
	for _, p := range []string{"-->", "//]]>", "]]>"} {
		s = strings.TrimSpace(strings.TrimSuffix(s, p))
	}
	return s
}
