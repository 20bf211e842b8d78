// Package geometry provides the coordinate math between canvas pixels and
// points in the complex plane. All functions are pure; viewport mutation
// helpers return new values and never touch shared state.
package geometry

import "math"

// MinZoom is the smallest allowed pixels-per-unit scale. Zooming out past
// this would collapse the whole plane into a handful of pixels and makes
// tile addressing degenerate.
const MinZoom = 16.0

// Complex is a point in the plane. Immutable value type.
type Complex struct {
	Re float64 `json:"real"`
	Im float64 `json:"imag"`
}

// IsFinite reports whether both components are finite numbers.
func (c Complex) IsFinite() bool {
	return !math.IsNaN(c.Re) && !math.IsInf(c.Re, 0) &&
		!math.IsNaN(c.Im) && !math.IsInf(c.Im, 0)
}

// Viewport is the user-visible window into the plane: a center point, a
// zoom scale in pixels per plane unit, and the canvas size in pixels.
// Exactly one live viewport exists per session (owned by session.State).
type Viewport struct {
	Center Complex `json:"center"`
	Zoom   float64 `json:"zoom"` // pixels per plane unit
	Width  int     `json:"width"`
	Height int     `json:"height"`
}

// Clamped returns the viewport with zoom raised to MinZoom if needed and a
// non-finite center replaced by fallback. Degenerate viewports are repaired
// at the point of mutation, never propagated as errors.
func (v Viewport) Clamped(fallback Complex) Viewport {
	if v.Zoom < MinZoom || math.IsNaN(v.Zoom) || math.IsInf(v.Zoom, 0) {
		v.Zoom = MinZoom
	}
	if !v.Center.IsFinite() {
		v.Center = fallback
	}
	return v
}

// PixelToPlane converts a canvas pixel position to the plane point under it.
// Pixel y grows downward; imaginary axis grows upward.
func PixelToPlane(v Viewport, px, py float64) Complex {
	return Complex{
		Re: v.Center.Re + (px-float64(v.Width)/2)/v.Zoom,
		Im: v.Center.Im - (py-float64(v.Height)/2)/v.Zoom,
	}
}

// PlaneToPixel converts a plane point to its canvas pixel position.
// Inverse of PixelToPlane up to floating-point tolerance.
func PlaneToPixel(v Viewport, p Complex) (float64, float64) {
	x := (p.Re-v.Center.Re)*v.Zoom + float64(v.Width)/2
	y := (v.Center.Im-p.Im)*v.Zoom + float64(v.Height)/2
	return x, y
}

// WheelStep is the zoom ratio applied per discrete scroll step.
const WheelStep = 1.1

// ZoomAbout applies a zoom factor anchored at the canvas position (mx, my):
// the plane point under the cursor before the zoom is still under the cursor
// after it. factor > 1 zooms in.
func ZoomAbout(v Viewport, mx, my, factor float64) Viewport {
	anchor := PixelToPlane(v, mx, my)

	next := v
	next.Zoom = v.Zoom * factor
	if next.Zoom < MinZoom {
		next.Zoom = MinZoom
	}

	// Solve for the center that keeps anchor under (mx, my) at the new zoom.
	next.Center = Complex{
		Re: anchor.Re - (mx-float64(v.Width)/2)/next.Zoom,
		Im: anchor.Im + (my-float64(v.Height)/2)/next.Zoom,
	}
	return next.Clamped(v.Center)
}

// Translate shifts the viewport center by a pixel delta. A positive dx drags
// the content rightward, which moves the center left in the plane.
func Translate(v Viewport, dx, dy float64) Viewport {
	v.Center.Re -= dx / v.Zoom
	v.Center.Im += dy / v.Zoom
	return v
}
