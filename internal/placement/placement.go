// Package placement positions tooltip popups relative to their anchor so the
// popup body stays inside the visible viewport.
package placement

import (
	"math"

	"github.com/patrickwarner/surfacekit/internal/models"
)

// Alignment says which side of the anchor the popup sits on.
type Alignment int

const (
	// Auto lets Compute pick the side with room. Never returned.
	Auto Alignment = iota
	// Bottom places the popup below the anchor with the arrow pointing up.
	Bottom
	// Top places the popup above the anchor with the arrow pointing down.
	Top
)

func (a Alignment) String() string {
	switch a {
	case Bottom:
		return "bottom"
	case Top:
		return "top"
	default:
		return "auto"
	}
}

// MarshalText renders the alignment as its lowercase name.
func (a Alignment) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText accepts "top", "bottom" and anything else as Auto.
func (a *Alignment) UnmarshalText(text []byte) error {
	switch string(text) {
	case "top", "TOP", "Top":
		*a = Top
	case "bottom", "BOTTOM", "Bottom":
		*a = Bottom
	default:
		*a = Auto
	}
	return nil
}

// Input describes one placement request. Anchor and Viewport are window space.
type Input struct {
	Anchor    models.Rect `json:"anchor"`
	Viewport  models.Rect `json:"viewport"`
	Popup     models.Size `json:"popup"`
	Arrow     models.Size `json:"arrow"`
	Preferred Alignment   `json:"preferred"`
	// Padding is the minimum horizontal distance between popup and viewport edge.
	Padding float64 `json:"padding"`
	// Gap separates the anchor edge from the arrow tip.
	Gap float64 `json:"gap"`
}

// Placement is the computed popup position.
type Placement struct {
	Alignment Alignment `json:"alignment"`
	// Offset is the popup's top-left corner in window space.
	Offset models.Point `json:"offset"`
	// ArrowCenterX is the arrow's horizontal center relative to the popup's left edge.
	ArrowCenterX float64 `json:"arrow_center_x"`
	// ArrowOffset is the arrow's top-left corner in window space.
	ArrowOffset models.Point `json:"arrow_offset"`
}

// Bounds returns the popup box for a popup of the given size.
func (p Placement) Bounds(popup models.Size) models.Rect {
	return models.RectFromOrigin(p.Offset, popup)
}

// Compute returns where to draw the popup and its arrow. It never fails: an
// anchor outside the viewport or a popup larger than the viewport still gets a
// best-effort placement.
func Compute(in Input) Placement {
	vp := in.Viewport
	anchor := in.Anchor
	popupW, popupH := nonNegative(in.Popup.Width), nonNegative(in.Popup.Height)
	arrowW, arrowH := nonNegative(in.Arrow.Width), nonNegative(in.Arrow.Height)
	pad := nonNegative(in.Padding)
	gap := nonNegative(in.Gap)

	spaceAbove := anchor.Top - vp.Top
	spaceBelow := vp.Bottom - anchor.Bottom
	align := chooseSide(spaceAbove, spaceBelow, popupH+arrowH+gap, in.Preferred)

	// horizontal: center on the anchor, pinned inside the padded viewport
	minX := vp.Left + pad
	maxX := vp.Right - pad - popupW
	var x float64
	if popupW > vp.Width()-2*pad {
		x = vp.Left + (vp.Width()-popupW)/2
	} else {
		x = clamp(anchor.CenterX()-popupW/2, minX, maxX)
	}

	// vertical: arrow tip at anchor edge plus gap, popup flush against the arrow
	var y float64
	if align == Bottom {
		y = anchor.Bottom + gap + arrowH
	} else {
		y = anchor.Top - gap - arrowH - popupH
	}
	if popupH <= vp.Height() {
		y = clamp(y, vp.Top, vp.Bottom-popupH)
	}

	arrowCenter := anchor.CenterX() - x
	half := arrowW / 2
	if popupW >= arrowW {
		arrowCenter = clamp(arrowCenter, half, popupW-half)
	} else {
		arrowCenter = popupW / 2
	}

	arrowY := y - arrowH
	if align == Top {
		arrowY = y + popupH
	}

	return Placement{
		Alignment:    align,
		Offset:       models.Point{X: x, Y: y},
		ArrowCenterX: arrowCenter,
		ArrowOffset:  models.Point{X: x + arrowCenter - half, Y: arrowY},
	}
}

func chooseSide(spaceAbove, spaceBelow, need float64, preferred Alignment) Alignment {
	if preferred == Top && spaceAbove >= need {
		return Top
	}
	if spaceBelow >= need || spaceBelow > spaceAbove {
		return Bottom
	}
	return Top
}

func clamp(v, lo, hi float64) float64 {
	if hi < lo {
		return lo
	}
	return math.Max(lo, math.Min(v, hi))
}

func nonNegative(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	return v
}
