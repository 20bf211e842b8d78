// Package render composes cached tiles into the visible frame. It only
// consumes the cache, never mutates it, and is cheap enough to run once per
// animation frame while dragging.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/fogleman/gg"
	xdraw "golang.org/x/image/draw"

	"fractal-desktop/internal/cache"
	"fractal-desktop/internal/geometry"
	"fractal-desktop/internal/tiles"
)

// background fills pixels no tile has covered yet.
var background = color.RGBA{R: 26, G: 27, B: 38, A: 255}

// Compositor draws tiles onto an RGBA canvas in LOD-priority order.
type Compositor struct {
	tileSize   int
	showGrid   bool
	showCoords bool
}

// New creates a compositor for the given tile size.
func New(tileSize int) *Compositor {
	if tileSize <= 0 {
		tileSize = tiles.DefaultTileSize
	}
	return &Compositor{tileSize: tileSize}
}

// SetOverlay toggles the tile-grid and coordinate debug overlays.
func (c *Compositor) SetOverlay(grid, coords bool) {
	c.showGrid = grid
	c.showCoords = coords
}

// Frame renders the viewport from the given tiles, which must already be
// ordered coarsest-first (cache.OrderedByLOD) so finer tiles paint over
// coarser placeholders. Tiles requested at an earlier zoom keep the canvas
// populated after a zoom change but are drawn first, so anything already
// delivered for the current zoom paints over them. panX/panY is the
// transient sub-tile drag offset.
func (c *Compositor) Frame(v geometry.Viewport, ordered []*cache.Tile, panX, panY float64) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, v.Width, v.Height))
	draw.Draw(out, out.Bounds(), image.NewUniform(background), image.Point{}, draw.Src)

	for _, stale := range []bool{true, false} {
		for _, t := range ordered {
			if t.Image == nil || (t.Zoom != v.Zoom) != stale {
				continue
			}
			c.drawTile(out, v, t, panX, panY)
		}
	}

	if c.showGrid || c.showCoords {
		c.drawOverlay(out, v, panX, panY)
	}
	return out
}

// drawTile paints one tile at its screen position, upscaling coarse
// payloads to full tile extent.
func (c *Compositor) drawTile(out *image.RGBA, v geometry.Viewport, t *cache.Tile, panX, panY float64) {
	sx, sy := tiles.ScreenPosition(t.Key, v, c.tileSize, panX, panY)
	dst := image.Rect(
		int(math.Round(sx)),
		int(math.Round(sy)),
		int(math.Round(sx))+c.tileSize,
		int(math.Round(sy))+c.tileSize,
	)
	if !dst.Overlaps(out.Bounds()) {
		return
	}

	src := t.Image.Bounds()
	if src.Dx() == c.tileSize && src.Dy() == c.tileSize {
		draw.Draw(out, dst, t.Image, src.Min, draw.Src)
	} else {
		// Coarse tiles arrive at tileSize/lod pixels.
		xdraw.NearestNeighbor.Scale(out, dst, t.Image, src, xdraw.Src, nil)
	}
}

// FullFrame renders the single-buffer variant: the delivered frame already
// covers the whole canvas, so compositing degenerates to a blit.
func (c *Compositor) FullFrame(v geometry.Viewport, frame *image.RGBA) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, v.Width, v.Height))
	draw.Draw(out, out.Bounds(), image.NewUniform(background), image.Point{}, draw.Src)
	if frame != nil {
		draw.Draw(out, frame.Bounds(), frame, frame.Bounds().Min, draw.Src)
	}
	return out
}

// drawOverlay paints tile boundaries and grid coordinates for debugging.
func (c *Compositor) drawOverlay(out *image.RGBA, v geometry.Viewport, panX, panY float64) {
	dc := gg.NewContextForRGBA(out)
	dc.SetLineWidth(1)

	b := tiles.VisibleBounds(v, c.tileSize)
	for row := b.MinRow; row <= b.MaxRow; row++ {
		for col := b.MinCol; col <= b.MaxCol; col++ {
			k := tiles.Key{X: col, Y: row}
			sx, sy := tiles.ScreenPosition(k, v, c.tileSize, panX, panY)

			if c.showGrid {
				dc.SetRGBA(1, 1, 1, 0.25)
				dc.DrawRectangle(sx, sy, float64(c.tileSize), float64(c.tileSize))
				dc.Stroke()
			}
			if c.showCoords {
				dc.SetRGBA(1, 1, 1, 0.6)
				dc.DrawString(fmt.Sprintf("%d,%d", col, row), sx+4, sy+14)
			}
		}
	}
}
