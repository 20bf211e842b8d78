package renderstub

import (
	"image/color"
	"testing"

	"fractal-desktop/internal/fractal"
	"fractal-desktop/internal/geometry"
	"fractal-desktop/internal/protocol"
	"fractal-desktop/internal/tiles"
)

func stubRequest(zoom float64, c geometry.Complex) protocol.Request {
	p := fractal.DefaultParameters()
	p.C = c
	return protocol.Request{
		Params:   protocol.RequestParams{Parameters: p, Width: 256, Height: 256},
		Viewport: protocol.ViewportRef{Zoom: zoom},
	}
}

func TestTileEdgeFollowsLOD(t *testing.T) {
	r := NewRenderer(128)
	req := stubRequest(256, geometry.Complex{})

	cases := []struct {
		lod  int
		edge int
	}{
		{1, 128},
		{2, 64},
		{4, 32},
		{8, 16},
	}
	for _, tc := range cases {
		img := r.Tile(tiles.Key{X: 0, Y: 0, LOD: tc.lod}, req)
		if got := img.Bounds().Dx(); got != tc.edge {
			t.Errorf("lod %d: edge = %d, want %d", tc.lod, got, tc.edge)
		}
	}
}

func TestInteriorAndExteriorColoring(t *testing.T) {
	// With c = 0 the Julia iteration is z -> z^2: the open unit disk never
	// escapes, everything outside does.
	r := NewRenderer(128)
	req := stubRequest(256, geometry.Complex{})

	// Tile (0,0) covers world pixels [0,128)x[0,128): plane [0,0.5)x(-0.5,0],
	// well inside the unit disk.
	inside := r.Tile(tiles.Key{X: 0, Y: 0, LOD: 1}, req)
	if got := inside.RGBAAt(5, 5); got != (color.RGBA{A: 255}) {
		t.Errorf("interior pixel = %v, want opaque black", got)
	}

	// Tile (8,8) starts at world pixel 1024: plane Re = 4, far outside.
	outside := r.Tile(tiles.Key{X: 8, Y: 8, LOD: 1}, req)
	got := outside.RGBAAt(5, 5)
	if got.R == 0 && got.G == 0 && got.B == 0 {
		t.Errorf("exterior pixel = %v, want a non-black escape color", got)
	}
}

func TestColoringSchemesDiffer(t *testing.T) {
	r := NewRenderer(128)
	key := tiles.Key{X: 3, Y: 3, LOD: 1}

	req := stubRequest(256, geometry.Complex{Re: -0.7269, Im: 0.1889})
	smooth := r.Tile(key, req)

	req.Params.Coloring = ColoringBands
	bands := r.Tile(key, req)

	differs := false
	for i := range smooth.Pix {
		if smooth.Pix[i] != bands.Pix[i] {
			differs = true
			break
		}
	}
	if !differs {
		t.Error("coloring schemes produced identical tiles")
	}
}

func TestTileIsDeterministic(t *testing.T) {
	r := NewRenderer(128)
	req := stubRequest(512, geometry.Complex{Re: -0.7269, Im: 0.1889})
	key := tiles.Key{X: -2, Y: 1, LOD: 2}

	a := r.Tile(key, req)
	b := r.Tile(key, req)
	for i := range a.Pix {
		if a.Pix[i] != b.Pix[i] {
			t.Fatal("identical requests produced different tiles")
		}
	}
}

func TestFrameDimensions(t *testing.T) {
	r := NewRenderer(128)
	req := stubRequest(256, geometry.Complex{})
	req.Params.Width = 320
	req.Params.Height = 200

	img := r.Frame(req)
	if img.Bounds().Dx() != 320 || img.Bounds().Dy() != 200 {
		t.Errorf("frame = %v, want 320x200", img.Bounds())
	}
}
