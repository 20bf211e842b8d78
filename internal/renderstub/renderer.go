// Package renderstub is a local development renderer. It speaks the same
// wire protocol as the production render farm but computes tiles in-process,
// so the client can be developed and tested without remote infrastructure.
package renderstub

import (
	"image"
	"image/color"
	"math"
	"math/cmplx"

	"fractal-desktop/internal/fractal"
	"fractal-desktop/internal/protocol"
	"fractal-desktop/internal/tiles"
)

// Coloring schemes understood by the stub.
const (
	ColoringSmooth = iota
	ColoringBands
	ColoringOrbitTrap
)

// Renderer computes Julia set tiles on the local CPU.
type Renderer struct {
	tileSize int
}

// NewRenderer creates a renderer for the given full-detail tile edge.
func NewRenderer(tileSize int) *Renderer {
	if tileSize <= 0 {
		tileSize = tiles.DefaultTileSize
	}
	return &Renderer{tileSize: tileSize}
}

// Tile computes one tile at the LOD implied by the key. A tile at LOD n
// samples every n-th world pixel and returns a (tileSize/n)-pixel image.
func (r *Renderer) Tile(key tiles.Key, req protocol.Request) *image.RGBA {
	lod := key.LOD
	if lod < fractal.FineLOD {
		lod = fractal.FineLOD
	}
	edge := r.tileSize / lod
	img := image.NewRGBA(image.Rect(0, 0, edge, edge))

	zoom := req.Viewport.Zoom
	p := req.Params.Parameters
	c := complex(p.C.Re, p.C.Im)

	for j := 0; j < edge; j++ {
		wy := float64(key.Y*r.tileSize) + (float64(j)+0.5)*float64(lod)
		for i := 0; i < edge; i++ {
			wx := float64(key.X*r.tileSize) + (float64(i)+0.5)*float64(lod)
			z := complex(wx/zoom, -wy/zoom)
			img.SetRGBA(i, j, colorAt(z, c, p.MaxIterations, p.Coloring))
		}
	}
	return img
}

// Frame computes a full canvas image for a tile-less request.
func (r *Renderer) Frame(req protocol.Request) *image.RGBA {
	w, h := req.Params.Width, req.Params.Height
	img := image.NewRGBA(image.Rect(0, 0, w, h))

	v := req.Viewport
	p := req.Params.Parameters
	c := complex(p.C.Re, p.C.Im)
	originX := v.Center.Re*v.Zoom - float64(w)/2
	originY := -v.Center.Im*v.Zoom - float64(h)/2

	for py := 0; py < h; py++ {
		wy := originY + float64(py) + 0.5
		for px := 0; px < w; px++ {
			wx := originX + float64(px) + 0.5
			z := complex(wx/v.Zoom, -wy/v.Zoom)
			img.SetRGBA(px, py, colorAt(z, c, p.MaxIterations, p.Coloring))
		}
	}
	return img
}

// colorAt iterates z = z*z + c and maps the escape behavior to a color.
func colorAt(z, c complex128, maxIter, scheme int) color.RGBA {
	switch scheme {
	case ColoringOrbitTrap:
		mu, trap := juliaOrbit(z, c, maxIter)
		if mu >= float64(maxIter) {
			return color.RGBA{A: 255}
		}
		tnorm := math.Exp(-5 * trap)
		hue := math.Mod(mu*0.02+tnorm*0.3, 1.0)
		return hsv(hue, 1, 1)

	case ColoringBands:
		mu := juliaSmooth(z, c, maxIter)
		if mu >= float64(maxIter) {
			return color.RGBA{A: 255}
		}
		v := uint8(int(mu*8) % 256)
		return color.RGBA{R: v, G: v, B: v, A: 255}

	default:
		mu := juliaSmooth(z, c, maxIter)
		if mu >= float64(maxIter) {
			return color.RGBA{A: 255}
		}
		return hsv(math.Mod(mu*0.02, 1.0), 1, 1)
	}
}

// juliaSmooth returns the smooth iteration count for the Julia iteration
// starting at z with constant c, or maxIter for points inside the set.
func juliaSmooth(z, c complex128, maxIter int) float64 {
	for i := 0; i < maxIter; i++ {
		z = z*z + c
		if real(z)*real(z)+imag(z)*imag(z) > 4 {
			return float64(i) + 1 - math.Log(math.Log(cmplx.Abs(z)))/math.Log(2)
		}
	}
	return float64(maxIter)
}

// juliaOrbit is juliaSmooth plus a distance-to-axis orbit trap.
func juliaOrbit(z, c complex128, maxIter int) (smooth float64, trap float64) {
	minTrap := math.MaxFloat64
	for i := 0; i < maxIter; i++ {
		z = z*z + c

		d := math.Abs(real(z))
		if d < minTrap {
			minTrap = d
		}

		if real(z)*real(z)+imag(z)*imag(z) > 4 {
			smooth = float64(i) + 1 - math.Log(math.Log(cmplx.Abs(z)))/math.Log(2)
			return smooth, minTrap
		}
	}
	return float64(maxIter), minTrap
}

func hsv(h, s, v float64) color.RGBA {
	h = math.Mod(h, 1)
	i := int(h * 6)
	f := h*6 - float64(i)
	p := v * (1 - s)
	q := v * (1 - f*s)
	t := v * (1 - (1-f)*s)

	var r, g, b float64
	switch i % 6 {
	case 0:
		r, g, b = v, t, p
	case 1:
		r, g, b = q, v, p
	case 2:
		r, g, b = p, v, t
	case 3:
		r, g, b = p, q, v
	case 4:
		r, g, b = t, p, v
	case 5:
		r, g, b = v, p, q
	}
	return color.RGBA{uint8(r * 255), uint8(g * 255), uint8(b * 255), 255}
}
