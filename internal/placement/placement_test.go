package placement

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"

	"github.com/patrickwarner/surfacekit/internal/models"
)

var phone = models.Rect{Left: 0, Top: 0, Right: 400, Bottom: 800}

func TestCompute_SideChoice(t *testing.T) {
	tests := []struct {
		name   string
		anchor models.Rect
		pref   Alignment
		want   Alignment
	}{
		{"more room below", models.Rect{Left: 100, Top: 100, Right: 200, Bottom: 300}, Auto, Bottom},
		{"more room above", models.Rect{Left: 100, Top: 500, Right: 200, Bottom: 750}, Auto, Top},
		{"preferred top honoured", models.Rect{Left: 100, Top: 300, Right: 200, Bottom: 320}, Top, Top},
		{"preferred top without room", models.Rect{Left: 100, Top: 50, Right: 200, Bottom: 70}, Top, Bottom},
		{"neither fits picks larger", models.Rect{Left: 100, Top: 150, Right: 200, Bottom: 700}, Auto, Top},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Compute(Input{
				Anchor:    tt.anchor,
				Viewport:  phone,
				Popup:     models.Size{Width: 200, Height: 200},
				Arrow:     models.Size{Width: 16, Height: 8},
				Preferred: tt.pref,
				Padding:   8,
				Gap:       4,
			})
			assert.Equal(t, tt.want, p.Alignment)
		})
	}
}

// The room a side needs is popup plus arrow plus gap, inclusive.
func TestCompute_SideThresholdCountsGap(t *testing.T) {
	tests := []struct {
		name   string
		anchor models.Rect
		pref   Alignment
		want   Alignment
	}{
		{"below exactly popup+arrow+gap", models.Rect{Left: 100, Top: 500, Right: 200, Bottom: 588}, Auto, Bottom},
		{"below fits popup+arrow but not gap", models.Rect{Left: 100, Top: 500, Right: 200, Bottom: 592}, Auto, Top},
		{"preferred top exactly popup+arrow+gap", models.Rect{Left: 100, Top: 212, Right: 200, Bottom: 240}, Top, Top},
		{"preferred top short by the gap", models.Rect{Left: 100, Top: 208, Right: 200, Bottom: 240}, Top, Bottom},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Compute(Input{
				Anchor:    tt.anchor,
				Viewport:  phone,
				Popup:     models.Size{Width: 200, Height: 200},
				Arrow:     models.Size{Width: 16, Height: 8},
				Preferred: tt.pref,
				Padding:   8,
				Gap:       4,
			})
			assert.Equal(t, tt.want, p.Alignment)
		})
	}
}

func TestCompute_VerticalGap(t *testing.T) {
	anchor := models.Rect{Left: 150, Top: 100, Right: 250, Bottom: 140}
	p := Compute(Input{
		Anchor:   anchor,
		Viewport: phone,
		Popup:    models.Size{Width: 120, Height: 80},
		Arrow:    models.Size{Width: 16, Height: 8},
		Padding:  8,
		Gap:      4,
	})

	assert.Equal(t, Bottom, p.Alignment)
	assert.Equal(t, 144.0, p.ArrowOffset.Y, "arrow tip sits one gap below the anchor")
	assert.Equal(t, 152.0, p.Offset.Y, "popup body is flush with the arrow")
	assert.Equal(t, 140.0, p.Offset.X)
	assert.Equal(t, 60.0, p.ArrowCenterX)
}

func TestCompute_TopMirrorsBottom(t *testing.T) {
	anchor := models.Rect{Left: 150, Top: 700, Right: 250, Bottom: 740}
	p := Compute(Input{
		Anchor:   anchor,
		Viewport: phone,
		Popup:    models.Size{Width: 120, Height: 80},
		Arrow:    models.Size{Width: 16, Height: 8},
		Gap:      4,
	})

	assert.Equal(t, Top, p.Alignment)
	assert.Equal(t, 608.0, p.Offset.Y)
	assert.Equal(t, 688.0, p.ArrowOffset.Y)
}

func TestCompute_EdgePinnedArrowStillPointsAtAnchor(t *testing.T) {
	anchor := models.Rect{Left: 20, Top: 100, Right: 60, Bottom: 120}
	p := Compute(Input{
		Anchor:   anchor,
		Viewport: phone,
		Popup:    models.Size{Width: 200, Height: 80},
		Arrow:    models.Size{Width: 16, Height: 8},
		Padding:  8,
	})

	assert.Equal(t, 8.0, p.Offset.X, "popup pinned to the padded left edge")
	assert.Equal(t, 32.0, p.ArrowCenterX)
	assert.Equal(t, anchor.CenterX(), p.Offset.X+p.ArrowCenterX)
}

func TestCompute_WidePopupCentredInViewport(t *testing.T) {
	p := Compute(Input{
		Anchor:   models.Rect{Left: 350, Top: 100, Right: 390, Bottom: 120},
		Viewport: phone,
		Popup:    models.Size{Width: 500, Height: 80},
		Arrow:    models.Size{Width: 16, Height: 8},
		Padding:  8,
	})
	assert.Equal(t, -50.0, p.Offset.X)
	assert.Equal(t, 420.0, p.ArrowCenterX)
}

func TestCompute_AnchorOffscreenStillPlaced(t *testing.T) {
	p := Compute(Input{
		Anchor:   models.Rect{Left: -300, Top: 1200, Right: -250, Bottom: 1240},
		Viewport: phone,
		Popup:    models.Size{Width: 100, Height: 100},
		Arrow:    models.Size{Width: 10, Height: 6},
		Padding:  8,
	})
	assert.Equal(t, Top, p.Alignment)
	assert.True(t, phone.Contains(p.Bounds(models.Size{Width: 100, Height: 100})))
}

func TestAlignmentText(t *testing.T) {
	var a Alignment
	assert.NoError(t, a.UnmarshalText([]byte("top")))
	assert.Equal(t, Top, a)
	b, _ := Bottom.MarshalText()
	assert.Equal(t, "bottom", string(b))
}

const epsilon = 1e-6

func TestCompute_ContainmentProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	const pad = 8.0

	properties.Property("popups that fit stay inside the viewport", prop.ForAll(
		func(ax, ay, aw, ah, pw, ph float64) bool {
			p := Compute(Input{
				Anchor:   models.RectFromOrigin(models.Point{X: ax, Y: ay}, models.Size{Width: aw, Height: ah}),
				Viewport: phone,
				Popup:    models.Size{Width: pw, Height: ph},
				Arrow:    models.Size{Width: 16, Height: 8},
				Padding:  pad,
				Gap:      4,
			})
			box := p.Bounds(models.Size{Width: pw, Height: ph})
			return box.Left >= phone.Left+pad-epsilon &&
				box.Right <= phone.Right-pad+epsilon &&
				box.Top >= phone.Top-epsilon &&
				box.Bottom <= phone.Bottom+epsilon
		},
		gen.Float64Range(-200, 600),
		gen.Float64Range(-200, 1000),
		gen.Float64Range(0, 300),
		gen.Float64Range(0, 300),
		gen.Float64Range(0, phone.Width()-2*pad),
		gen.Float64Range(0, phone.Height()),
	))

	properties.Property("wide popups are centred, not clamped past both edges", prop.ForAll(
		func(ax, pw float64) bool {
			p := Compute(Input{
				Anchor:   models.Rect{Left: ax, Top: 200, Right: ax + 40, Bottom: 240},
				Viewport: phone,
				Popup:    models.Size{Width: pw, Height: 100},
				Arrow:    models.Size{Width: 16, Height: 8},
				Padding:  pad,
			})
			overhangLeft := phone.Left - p.Offset.X
			overhangRight := p.Offset.X + pw - phone.Right
			return math.Abs(overhangLeft-overhangRight) < epsilon
		},
		gen.Float64Range(-100, 500),
		gen.Float64Range(phone.Width()-2*pad+1, 2000),
	))

	properties.Property("arrow stays on the popup body", prop.ForAll(
		func(ax, pw float64) bool {
			p := Compute(Input{
				Anchor:   models.Rect{Left: ax, Top: 200, Right: ax + 40, Bottom: 240},
				Viewport: phone,
				Popup:    models.Size{Width: pw, Height: 100},
				Arrow:    models.Size{Width: 16, Height: 8},
				Padding:  pad,
			})
			return p.ArrowCenterX >= 8-epsilon && p.ArrowCenterX <= pw-8+epsilon
		},
		gen.Float64Range(-100, 500),
		gen.Float64Range(16, 384),
	))

	properties.TestingRun(t)
}
