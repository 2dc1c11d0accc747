// Package visibility decides whether a matched element is something a
// shopper could actually see: struck-through list prices hidden by CSS,
// template placeholders and off-screen duplicate layouts all fail it.
package visibility

import (
	"strconv"
	"strings"

	"github.com/hyperifyio/goprice/internal/document"
)

const (
	MinWidth  = 20
	MinHeight = 10
)

// IsVisible reports whether n is large enough, vertically inside vp, and
// not hidden by display, visibility or opacity.
func IsVisible(n document.Node, vp document.Viewport) bool {
	r := n.Rect()
	if r.Width < MinWidth || r.Height < MinHeight {
		return false
	}
	if r.Bottom() < 0 || r.Top > vp.Height {
		return false
	}
	s := n.Style()
	if strings.EqualFold(strings.TrimSpace(s.Visibility), "hidden") {
		return false
	}
	if strings.EqualFold(strings.TrimSpace(s.Display), "none") {
		return false
	}
	return !transparent(s.Opacity)
}

func transparent(opacity string) bool {
	v := strings.TrimSpace(opacity)
	if v == "" {
		return false
	}
	f, err := strconv.ParseFloat(strings.TrimSuffix(v, "%"), 64)
	if err != nil {
		return false
	}
	return f == 0
}
