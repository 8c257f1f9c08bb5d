package models

// Point is a position in pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Size is a width/height pair in pixels.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Rect is an axis-aligned rectangle given by its edges. All engine geometry is
// expressed in window space unless a method says otherwise.
type Rect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
}

// RectFromOrigin builds a Rect from its top-left corner and size.
func RectFromOrigin(origin Point, size Size) Rect {
	return Rect{
		Left:   origin.X,
		Top:    origin.Y,
		Right:  origin.X + size.Width,
		Bottom: origin.Y + size.Height,
	}
}

func (r Rect) Width() float64   { return r.Right - r.Left }
func (r Rect) Height() float64  { return r.Bottom - r.Top }
func (r Rect) CenterX() float64 { return (r.Left + r.Right) / 2 }
func (r Rect) CenterY() float64 { return (r.Top + r.Bottom) / 2 }

// Contains reports whether other lies entirely inside r. Edges are inclusive.
func (r Rect) Contains(other Rect) bool {
	return other.Left >= r.Left && other.Right <= r.Right &&
		other.Top >= r.Top && other.Bottom <= r.Bottom
}

// LayoutRect is what the host reports for an element after a layout pass: its
// size and the position of its top-left corner in each coordinate space.
type LayoutRect struct {
	Size             Size  `json:"size"`
	PositionInParent Point `json:"position_in_parent"`
	PositionInRoot   Point `json:"position_in_root"`
	PositionInWindow Point `json:"position_in_window"`
}

// BoundsInParent returns the element bounds relative to its parent.
func (l LayoutRect) BoundsInParent() Rect { return RectFromOrigin(l.PositionInParent, l.Size) }

// BoundsInRoot returns the element bounds relative to the root view.
func (l LayoutRect) BoundsInRoot() Rect { return RectFromOrigin(l.PositionInRoot, l.Size) }

// BoundsInWindow returns the element bounds relative to the window. Placement
// is always computed from these.
func (l LayoutRect) BoundsInWindow() Rect { return RectFromOrigin(l.PositionInWindow, l.Size) }
