// Package session owns the single live viewport and parameter set. Every
// mutation goes through it, replacing the scattered mutable refs a UI event
// loop tends to accumulate, and any change schedules at most one coalesced
// redraw for the next frame tick.
package session

import (
	"sync"

	"fractal-desktop/internal/fractal"
	"fractal-desktop/internal/geometry"
	"fractal-desktop/internal/tiles"
)

// State holds the viewport, fractal parameters, and the transient sub-tile
// pan offset. Exactly one State exists per session.
type State struct {
	mu       sync.Mutex
	viewport geometry.Viewport
	params   fractal.Parameters
	panX     float64
	panY     float64
	tileSize int
	dirty    bool
}

// New creates session state for the given canvas size.
func New(width, height int, tileSize int) *State {
	if tileSize <= 0 {
		tileSize = tiles.DefaultTileSize
	}
	return &State{
		viewport: geometry.Viewport{
			Center: geometry.Complex{},
			Zoom:   geometry.MinZoom * 8,
			Width:  width,
			Height: height,
		},
		params:   fractal.DefaultParameters(),
		tileSize: tileSize,
		dirty:    true,
	}
}

// Viewport returns the current viewport.
func (s *State) Viewport() geometry.Viewport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewport
}

// Params returns the current fractal parameters.
func (s *State) Params() fractal.Parameters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params
}

// PanOffset returns the transient sub-tile drag offset.
func (s *State) PanOffset() (float64, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.panX, s.panY
}

// SetViewport replaces the viewport, clamping degenerate values.
func (s *State) SetViewport(v geometry.Viewport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.viewport = v.Clamped(s.viewport.Center)
	s.dirty = true
}

// SetParams replaces the fractal parameters if they validate.
func (s *State) SetParams(p fractal.Parameters) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params = p
	s.dirty = true
	return nil
}

// Pan accumulates a drag delta. Whole-tile crossings are folded into the
// viewport center immediately so the offset never exceeds one tile; the
// sub-tile remainder stays as the draw offset.
func (s *State) Pan(dx, dy float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.panX += dx
	s.panY += dy

	tx, ty, remX, remY := tiles.Crossed(s.panX, s.panY, s.tileSize)
	if tx != 0 || ty != 0 {
		shifted := geometry.Translate(s.viewport,
			float64(tx*s.tileSize), float64(ty*s.tileSize))
		s.viewport = shifted.Clamped(s.viewport.Center)
	}
	s.panX = remX
	s.panY = remY
	s.dirty = true
}

// EndPan folds any remaining offset into the center; called when a drag
// settles so requests use the final viewport.
func (s *State) EndPan() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.panX != 0 || s.panY != 0 {
		shifted := geometry.Translate(s.viewport, s.panX, s.panY)
		s.viewport = shifted.Clamped(s.viewport.Center)
		s.panX, s.panY = 0, 0
	}
	s.dirty = true
}

// ZoomAbout applies a zoom factor anchored at the cursor position.
func (s *State) ZoomAbout(mx, my, factor float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.viewport = geometry.ZoomAbout(s.viewport, mx, my, factor)
	s.dirty = true
}

// ConsumeDirty reports whether a redraw is due and resets the flag. The
// frame loop calls this once per tick, collapsing any number of changes
// since the last frame into a single redraw.
func (s *State) ConsumeDirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.dirty
	s.dirty = false
	return d
}

// MarkDirty schedules a redraw without changing state; used when the cache
// contents change.
func (s *State) MarkDirty() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirty = true
}
