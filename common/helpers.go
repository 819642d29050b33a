package common

import (
	"strings"

	cdpdom "github.com/chromedp/cdproto/dom"
)

// quadsCenter returns the centre of the first quad with a non-zero area.
// Quads are four points, clockwise, as x1, y1, ... x4, y4.
func quadsCenter(quads []cdpdom.Quad) (x, y float64, ok bool) {
	for _, q := range quads {
		if len(q) != 8 || quadArea(q) < 1 {
			continue
		}
		for i := 0; i < 8; i += 2 {
			x += q[i]
			y += q[i+1]
		}
		return x / 4, y / 4, true
	}
	return 0, 0, false
}

// quadArea uses the shoelace formula.
func quadArea(q cdpdom.Quad) float64 {
	var area float64
	for i := 0; i < 4; i++ {
		j := (i + 1) % 4
		area += q[i*2]*q[j*2+1] - q[j*2]*q[i*2+1]
	}
	if area < 0 {
		area = -area
	}
	return area / 2
}

// navigationErrors are CDP error messages seen when a command lands while
// the document it targets is being replaced.
var navigationErrors = []string{
	"Execution context was destroyed",
	"Cannot find context with specified id",
	"Cannot find default execution context",
	"Inspected target navigated or closed",
	"Could not find object with given id",
	"Node is detached from document",
}

func isNavigationError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, m := range navigationErrors {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
