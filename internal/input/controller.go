// Package input translates raw pointer and wheel events into session
// mutations and schedules tile requests for the resulting viewport.
package input

import (
	"math"

	"fractal-desktop/internal/geometry"
	"fractal-desktop/internal/session"
)

// Requester receives viewport changes once input translates them.
// Satisfied by scheduler.Scheduler.
type Requester interface {
	ViewportChanged(v geometry.Viewport)
}

// Controller tracks one pointer drag at a time and feeds the session.
// Not safe for concurrent use; UI event delivery is single-threaded.
type Controller struct {
	state     *session.State
	requests  Requester
	dragging  bool
	lastX     float64
	lastY     float64
	dragTotal float64
}

// NewController wires the controller to session state and a request sink.
func NewController(state *session.State, requests Requester) *Controller {
	return &Controller{state: state, requests: requests}
}

// PointerDown starts a drag at the given canvas position.
func (c *Controller) PointerDown(x, y float64) {
	c.dragging = true
	c.lastX, c.lastY = x, y
	c.dragTotal = 0
}

// PointerMove pans the viewport by the delta since the last event. Events
// arriving without a preceding PointerDown are ignored.
func (c *Controller) PointerMove(x, y float64) {
	if !c.dragging {
		return
	}
	dx, dy := x-c.lastX, y-c.lastY
	c.lastX, c.lastY = x, y
	c.dragTotal += math.Abs(dx) + math.Abs(dy)
	c.state.Pan(dx, dy)
}

// PointerUp ends the drag, folds the residual offset into the viewport, and
// schedules a request for the settled position. A click with no movement
// schedules nothing.
func (c *Controller) PointerUp(x, y float64) {
	if !c.dragging {
		return
	}
	c.PointerMove(x, y)
	c.dragging = false

	c.state.EndPan()
	if c.dragTotal > 0 {
		c.requests.ViewportChanged(c.state.Viewport())
	}
}

// Wheel zooms about the cursor position. steps is positive to zoom in, and
// may be fractional for high-resolution wheels.
func (c *Controller) Wheel(x, y, steps float64) {
	if steps == 0 {
		return
	}
	factor := math.Pow(geometry.WheelStep, steps)
	c.state.ZoomAbout(x, y, factor)
	c.requests.ViewportChanged(c.state.Viewport())
}

// Dragging reports whether a pointer drag is in progress.
func (c *Controller) Dragging() bool {
	return c.dragging
}
