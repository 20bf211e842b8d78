// Package tiles maps viewports onto the discrete tile grid. Tiles are
// fixed-size square regions addressed by grid coordinates plus a level of
// detail; grid indices live in world-pixel space (plane coordinates scaled
// by the current zoom), so panning only changes which indices are visible.
package tiles

import (
	"fmt"
	"math"

	"fractal-desktop/internal/geometry"
)

// DefaultTileSize is the square tile edge in pixels.
const DefaultTileSize = 128

// Key identifies one tile: grid coordinates in units of the tile size, and
// a LOD tier where 1 is full detail and larger numbers are coarser.
type Key struct {
	X   int `json:"x"`
	Y   int `json:"y"`
	LOD int `json:"lod"`
}

// String renders the key in the wire format used for request tile lists.
func (k Key) String() string {
	return fmt.Sprintf("%d,%d", k.X, k.Y)
}

// Bounds is the min/max column and row extent of a tile set.
type Bounds struct {
	MinCol int
	MaxCol int
	MinRow int
	MaxRow int
}

// Cols returns the number of columns in the bounds.
func (b Bounds) Cols() int {
	return b.MaxCol - b.MinCol + 1
}

// Rows returns the number of rows in the bounds.
func (b Bounds) Rows() int {
	return b.MaxRow - b.MinRow + 1
}

// VisibleBounds computes the tile index extent covering the canvas,
// including a one-tile margin on each edge so sub-tile panning never
// exposes a seam.
func VisibleBounds(v geometry.Viewport, tileSize int) Bounds {
	// World-pixel position of the canvas's top-left corner.
	originX := v.Center.Re*v.Zoom - float64(v.Width)/2
	originY := -v.Center.Im*v.Zoom - float64(v.Height)/2

	return Bounds{
		MinCol: int(math.Floor(originX/float64(tileSize))) - 1,
		MaxCol: int(math.Floor((originX+float64(v.Width))/float64(tileSize))) + 1,
		MinRow: int(math.Floor(originY/float64(tileSize))) - 1,
		MaxRow: int(math.Floor((originY+float64(v.Height))/float64(tileSize))) + 1,
	}
}

// Visible returns the minimal covering set of tile keys overlapping the
// canvas at the given LOD, margin included.
func Visible(v geometry.Viewport, tileSize, lod int) []Key {
	b := VisibleBounds(v, tileSize)
	keys := make([]Key, 0, b.Cols()*b.Rows())
	for y := b.MinRow; y <= b.MaxRow; y++ {
		for x := b.MinCol; x <= b.MaxCol; x++ {
			keys = append(keys, Key{X: x, Y: y, LOD: lod})
		}
	}
	return keys
}

// ScreenPosition returns the canvas pixel position of a tile's top-left
// corner for the given viewport and transient pan offset.
func ScreenPosition(k Key, v geometry.Viewport, tileSize int, panX, panY float64) (float64, float64) {
	originX := v.Center.Re*v.Zoom - float64(v.Width)/2
	originY := -v.Center.Im*v.Zoom - float64(v.Height)/2
	return float64(k.X*tileSize) - originX + panX, float64(k.Y*tileSize) - originY + panY
}

// Crossed converts an accumulated drag offset into whole-tile crossings and
// the remaining sub-tile offset. Division truncates toward zero: an offset
// of -50 with a 128px tile has crossed no tiles and keeps its full
// remainder. The caller folds the crossings into the viewport center so the
// offset never grows past one tile in magnitude.
func Crossed(panX, panY float64, tileSize int) (tilesX, tilesY int, remX, remY float64) {
	ts := float64(tileSize)
	tilesX = int(panX / ts)
	tilesY = int(panY / ts)
	remX = panX - float64(tilesX)*ts
	remY = panY - float64(tilesY)*ts
	return tilesX, tilesY, remX, remY
}
