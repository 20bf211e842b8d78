// Package fractal holds the parameters governing what the remote renderer
// computes. These are orthogonal to the viewport: changing any field changes
// pixel content and therefore invalidates every cached tile.
package fractal

import (
	"fmt"

	"fractal-desktop/internal/geometry"
)

// Limits for remotely computed parameters. The renderer enforces its own
// bounds as well; these keep obviously broken values off the wire.
const (
	MinIterations = 16
	MaxIterations = 100000

	// FineLOD is full detail; coarser tiers carry larger numbers.
	FineLOD          = 1
	DefaultCoarseLOD = 4
	MaxLOD           = 16
)

// Parameters describes the fractal the remote renderer computes.
type Parameters struct {
	C             geometry.Complex `json:"c"`
	MaxIterations int              `json:"maxIterations"`
	Coloring      int              `json:"coloring"`
	LOD           int              `json:"lod"`
}

// DefaultParameters returns the initial Julia constant and iteration budget.
func DefaultParameters() Parameters {
	return Parameters{
		C:             geometry.Complex{Re: -0.7269, Im: 0.1889},
		MaxIterations: 300,
		Coloring:      0,
		LOD:           FineLOD,
	}
}

// Validate checks the parameters against the accepted ranges.
func (p Parameters) Validate() error {
	if !p.C.IsFinite() {
		return fmt.Errorf("constant c is not finite: %+v", p.C)
	}
	if p.MaxIterations < MinIterations || p.MaxIterations > MaxIterations {
		return fmt.Errorf("maxIterations %d out of range [%d, %d]", p.MaxIterations, MinIterations, MaxIterations)
	}
	if p.LOD < FineLOD || p.LOD > MaxLOD {
		return fmt.Errorf("lod %d out of range [%d, %d]", p.LOD, FineLOD, MaxLOD)
	}
	if p.Coloring < 0 {
		return fmt.Errorf("coloring scheme %d is negative", p.Coloring)
	}
	return nil
}

// Equal reports whether two parameter sets produce identical pixel content.
// LOD is excluded: it selects a resolution tier, not different content.
func (p Parameters) Equal(other Parameters) bool {
	return p.C == other.C &&
		p.MaxIterations == other.MaxIterations &&
		p.Coloring == other.Coloring
}
