package fractal

import (
	"math"
	"testing"

	"fractal-desktop/internal/geometry"
)

func TestValidate(t *testing.T) {
	cases := map[string]struct {
		mutate func(*Parameters)
		ok     bool
	}{
		"defaults":          {func(p *Parameters) {}, true},
		"minIterations":     {func(p *Parameters) { p.MaxIterations = MinIterations }, true},
		"tooFewIterations":  {func(p *Parameters) { p.MaxIterations = MinIterations - 1 }, false},
		"tooManyIterations": {func(p *Parameters) { p.MaxIterations = MaxIterations + 1 }, false},
		"nanConstant":       {func(p *Parameters) { p.C.Re = math.NaN() }, false},
		"infConstant":       {func(p *Parameters) { p.C.Im = math.Inf(1) }, false},
		"coarsestLOD":       {func(p *Parameters) { p.LOD = MaxLOD }, true},
		"zeroLOD":           {func(p *Parameters) { p.LOD = 0 }, false},
		"negativeColoring":  {func(p *Parameters) { p.Coloring = -1 }, false},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			p := DefaultParameters()
			tc.mutate(&p)
			err := p.Validate()
			if tc.ok && err != nil {
				t.Errorf("Validate: %v", err)
			}
			if !tc.ok && err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestEqualIgnoresLOD(t *testing.T) {
	a := DefaultParameters()
	b := a
	b.LOD = 8
	if !a.Equal(b) {
		t.Error("parameters differing only in LOD must compare equal")
	}

	b = a
	b.C = geometry.Complex{Re: 0.3, Im: 0.5}
	if a.Equal(b) {
		t.Error("different constants must not compare equal")
	}

	b = a
	b.MaxIterations++
	if a.Equal(b) {
		t.Error("different iteration budgets must not compare equal")
	}
}
