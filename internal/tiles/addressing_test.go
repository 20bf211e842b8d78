package tiles

import (
	"math"
	"testing"

	"fractal-desktop/internal/geometry"
)

func TestVisibleCoversCanvasWithMargin(t *testing.T) {
	v := geometry.Viewport{
		Center: geometry.Complex{Re: 0.3, Im: -0.1},
		Zoom:   400,
		Width:  800,
		Height: 600,
	}

	b := VisibleBounds(v, DefaultTileSize)

	// 800px / 128px = 6.25 tiles -> 7 or 8 to cover, plus 2 margin columns.
	if b.Cols() < 8 || b.Cols() > 10 {
		t.Errorf("cols = %d, want 8..10", b.Cols())
	}
	if b.Rows() < 6 || b.Rows() > 8 {
		t.Errorf("rows = %d, want 6..8", b.Rows())
	}

	keys := Visible(v, DefaultTileSize, 4)
	if len(keys) != b.Cols()*b.Rows() {
		t.Fatalf("len(keys) = %d, want %d", len(keys), b.Cols()*b.Rows())
	}
	for _, k := range keys {
		if k.LOD != 4 {
			t.Fatalf("key %v has wrong LOD", k)
		}
	}

	// Every canvas corner must land inside the covered extent.
	minX := float64(b.MinCol * DefaultTileSize)
	maxX := float64((b.MaxCol + 1) * DefaultTileSize)
	originX := v.Center.Re*v.Zoom - float64(v.Width)/2
	if originX < minX || originX+float64(v.Width) > maxX {
		t.Errorf("canvas x extent [%v, %v] not covered by [%v, %v]",
			originX, originX+float64(v.Width), minX, maxX)
	}
}

func TestVisibleShiftsUnderPan(t *testing.T) {
	v := geometry.Viewport{Zoom: 256, Width: 512, Height: 512}
	before := VisibleBounds(v, DefaultTileSize)

	// Shift the center by exactly four tiles worth of plane distance.
	shifted := v
	shifted.Center.Re += 4 * DefaultTileSize / v.Zoom
	after := VisibleBounds(shifted, DefaultTileSize)

	if after.MinCol != before.MinCol+4 || after.MaxCol != before.MaxCol+4 {
		t.Errorf("cols shifted %d..%d -> %d..%d, want +4",
			before.MinCol, before.MaxCol, after.MinCol, after.MaxCol)
	}
	if after.MinRow != before.MinRow || after.MaxRow != before.MaxRow {
		t.Errorf("rows changed under horizontal pan")
	}
}

func TestCrossed(t *testing.T) {
	for _, tc := range []struct {
		name           string
		panX, panY     float64
		wantTX, wantTY int
		wantRX, wantRY float64
	}{
		{"specExample", 300, -50, 2, 0, 44, -50},
		{"subTile", 100, 120, 0, 0, 100, 120},
		{"negativeWhole", -256, -300, -2, -2, 0, -44},
		{"zero", 0, 0, 0, 0, 0, 0},
	} {
		t.Run(tc.name, func(t *testing.T) {
			tx, ty, rx, ry := Crossed(tc.panX, tc.panY, 128)
			if tx != tc.wantTX || ty != tc.wantTY {
				t.Errorf("tiles = (%d,%d), want (%d,%d)", tx, ty, tc.wantTX, tc.wantTY)
			}
			if math.Abs(rx-tc.wantRX) > 1e-9 || math.Abs(ry-tc.wantRY) > 1e-9 {
				t.Errorf("remainder = (%v,%v), want (%v,%v)", rx, ry, tc.wantRX, tc.wantRY)
			}
		})
	}
}

func TestCrossedRemainderReconstructs(t *testing.T) {
	for _, pan := range [][2]float64{{300, -50}, {-513, 1024.5}, {127.9, -127.9}} {
		tx, ty, rx, ry := Crossed(pan[0], pan[1], 128)
		if got := float64(tx)*128 + rx; math.Abs(got-pan[0]) > 1e-9 {
			t.Errorf("x: %v*128 + %v != %v", tx, rx, pan[0])
		}
		if got := float64(ty)*128 + ry; math.Abs(got-pan[1]) > 1e-9 {
			t.Errorf("y: %v*128 + %v != %v", ty, ry, pan[1])
		}
	}
}

func TestScreenPositionFollowsPan(t *testing.T) {
	v := geometry.Viewport{Zoom: 256, Width: 512, Height: 512}
	k := Key{X: 0, Y: 0, LOD: 1}

	x0, y0 := ScreenPosition(k, v, DefaultTileSize, 0, 0)
	x1, y1 := ScreenPosition(k, v, DefaultTileSize, 33, -12)

	if x1-x0 != 33 || y1-y0 != -12 {
		t.Errorf("pan offset moved tile by (%v,%v), want (33,-12)", x1-x0, y1-y0)
	}
}

func TestKeyString(t *testing.T) {
	k := Key{X: -3, Y: 7, LOD: 4}
	if k.String() != "-3,7" {
		t.Errorf("String() = %q, want %q", k.String(), "-3,7")
	}
}
