package jsonld

import "strings"

// Limits bound the offer search. A zero field falls back to its default.
type Limits struct {
	MaxDepth int
	MaxNodes int
}

// DefaultLimits are generous for real pages and cheap for hostile ones.
var DefaultLimits = Limits{MaxDepth: 32, MaxNodes: 4096}

// Offer is the price and currency text carried by an offer object.
type Offer struct {
	Price    string
	Currency string
}

// Raw joins currency and price the way the other signal sources do.
func (o Offer) Raw() string {
	return strings.TrimSpace(o.Currency + " " + o.Price)
}

type frame struct {
	v     *Value
	depth int
}

// FindOffer searches root depth-first, in document order, for the first
// offer carrying a price. At each object the "offers" member (an object or
// a list of objects) is checked before the object itself is considered as
// an Offer/AggregateOffer; otherwise the walk descends into children.
func FindOffer(root *Value, lim Limits) (Offer, bool) {
	if lim.MaxDepth <= 0 {
		lim.MaxDepth = DefaultLimits.MaxDepth
	}
	if lim.MaxNodes <= 0 {
		lim.MaxNodes = DefaultLimits.MaxNodes
	}
	if root == nil {
		return Offer{}, false
	}

	stack := []frame{{v: root}}
	visited := 0
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		visited++
		if visited > lim.MaxNodes {
			return Offer{}, false
		}

		switch f.v.Kind {
		case Object:
			if o, ok := offerIn(f.v.Get("offers")); ok {
				return o, true
			}
			if isOfferType(f.v) {
				if o, ok := offerFrom(f.v); ok {
					return o, true
				}
			}
			if f.depth >= lim.MaxDepth {
				continue
			}
			for i := len(f.v.Fields) - 1; i >= 0; i-- {
				if child := f.v.Fields[i].Value; child.Kind != Scalar {
					stack = append(stack, frame{v: child, depth: f.depth + 1})
				}
			}
		case List:
			if f.depth >= lim.MaxDepth {
				continue
			}
			for i := len(f.v.Items) - 1; i >= 0; i-- {
				if child := f.v.Items[i]; child.Kind != Scalar {
					stack = append(stack, frame{v: child, depth: f.depth + 1})
				}
			}
		}
	}
	return Offer{}, false
}

// offerIn checks an "offers" member directly, without descending further.
func offerIn(v *Value) (Offer, bool) {
	if v == nil {
		return Offer{}, false
	}
	switch v.Kind {
	case Object:
		return offerFrom(v)
	case List:
		for _, item := range v.Items {
			if item.Kind != Object {
				continue
			}
			if o, ok := offerFrom(item); ok {
				return o, true
			}
		}
	}
	return Offer{}, false
}

func offerFrom(v *Value) (Offer, bool) {
	o := Offer{
		Price:    v.Get("price").String(),
		Currency: v.Get("priceCurrency").String(),
	}
	if spec := first(v.Get("priceSpecification")); spec != nil {
		if o.Price == "" {
			o.Price = spec.Get("price").String()
		}
		if o.Currency == "" {
			o.Currency = spec.Get("priceCurrency").String()
		}
	}
	if o.Price == "" {
		o.Price = v.Get("lowPrice").String()
	}
	return o, o.Price != ""
}

func isOfferType(v *Value) bool {
	t := v.Get("@type")
	if t == nil {
		return false
	}
	names := []*Value{t}
	if t.Kind == List {
		names = t.Items
	}
	for _, n := range names {
		switch strings.TrimPrefix(n.String(), "schema:") {
		case "Offer", "AggregateOffer":
			return true
		}
	}
	return false
}

func first(v *Value) *Value {
	if v == nil {
		return nil
	}
	if v.Kind == List {
		for _, item := range v.Items {
			if item.Kind == Object {
				return item
			}
		}
		return nil
	}
	if v.Kind == Object {
		return v
	}
	return nil
}
