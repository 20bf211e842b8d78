package geometry

import (
	"math"
	"testing"
)

const eps = 1e-9

func TestPixelToPlaneRoundTrip(t *testing.T) {
	viewports := []Viewport{
		{Center: Complex{Re: 0, Im: 0}, Zoom: 200, Width: 800, Height: 600},
		{Center: Complex{Re: -0.745, Im: 0.131}, Zoom: 1e6, Width: 1024, Height: 768},
		{Center: Complex{Re: 2.5, Im: -1.25}, Zoom: 33.3, Width: 333, Height: 777},
	}
	pixels := [][2]float64{{0, 0}, {400, 300}, {799, 599}, {13.5, 271.25}}

	for _, v := range viewports {
		for _, p := range pixels {
			pt := PixelToPlane(v, p[0], p[1])
			x, y := PlaneToPixel(v, pt)
			if math.Abs(x-p[0]) > eps || math.Abs(y-p[1]) > eps {
				t.Errorf("round trip for %v at (%v,%v): got (%v,%v)", v, p[0], p[1], x, y)
			}
		}
	}
}

func TestPixelToPlaneOrientation(t *testing.T) {
	v := Viewport{Center: Complex{}, Zoom: 100, Width: 200, Height: 200}

	// Canvas center maps to the viewport center.
	c := PixelToPlane(v, 100, 100)
	if math.Abs(c.Re) > eps || math.Abs(c.Im) > eps {
		t.Fatalf("center pixel mapped to %v, want origin", c)
	}

	// Moving down the canvas moves down the imaginary axis.
	below := PixelToPlane(v, 100, 150)
	if below.Im >= 0 {
		t.Errorf("pixel below center has Im=%v, want negative", below.Im)
	}
}

func TestZoomAboutAnchorsCursor(t *testing.T) {
	v := Viewport{Center: Complex{Re: -0.5, Im: 0.25}, Zoom: 300, Width: 800, Height: 600}

	for _, tc := range []struct {
		name   string
		mx, my float64
		factor float64
	}{
		{"zoomInCorner", 10, 590, WheelStep},
		{"zoomInCenter", 400, 300, WheelStep},
		{"zoomOut", 700, 40, 1 / WheelStep},
		{"repeatedZoomIn", 123, 456, WheelStep * WheelStep * WheelStep},
	} {
		t.Run(tc.name, func(t *testing.T) {
			before := PixelToPlane(v, tc.mx, tc.my)
			next := ZoomAbout(v, tc.mx, tc.my, tc.factor)
			after := PixelToPlane(next, tc.mx, tc.my)

			if math.Abs(before.Re-after.Re) > eps || math.Abs(before.Im-after.Im) > eps {
				t.Errorf("anchor drifted: before=%v after=%v", before, after)
			}
		})
	}
}

func TestZoomAboutClampsMinZoom(t *testing.T) {
	v := Viewport{Center: Complex{}, Zoom: MinZoom, Width: 100, Height: 100}
	next := ZoomAbout(v, 50, 50, 0.001)
	if next.Zoom < MinZoom {
		t.Errorf("zoom %v fell below minimum %v", next.Zoom, MinZoom)
	}
}

func TestClampedRepairsDegenerateViewport(t *testing.T) {
	fallback := Complex{Re: -0.5, Im: 0}
	v := Viewport{
		Center: Complex{Re: math.NaN(), Im: math.Inf(1)},
		Zoom:   math.Inf(1),
		Width:  100,
		Height: 100,
	}
	got := v.Clamped(fallback)
	if got.Center != fallback {
		t.Errorf("center = %v, want fallback %v", got.Center, fallback)
	}
	if got.Zoom != MinZoom {
		t.Errorf("zoom = %v, want %v", got.Zoom, MinZoom)
	}
}

func TestTranslateDirection(t *testing.T) {
	v := Viewport{Center: Complex{}, Zoom: 100, Width: 400, Height: 400}

	// Dragging content right reveals the plane to the left of the center.
	right := Translate(v, 50, 0)
	if right.Center.Re >= 0 {
		t.Errorf("drag right moved center.Re to %v, want negative", right.Center.Re)
	}

	// Dragging content down reveals the plane above the center.
	down := Translate(v, 0, 50)
	if down.Center.Im <= 0 {
		t.Errorf("drag down moved center.Im to %v, want positive", down.Center.Im)
	}
}
