// Package trace walks camera rays through a compiled scene and shades
// the hits with an importance-sampled microfacet BRDF.
package trace

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/luxmarch/luxmarch/rt/sdf"
)

const (
	// MaxMarchSteps bounds the sphere-tracing loop.
	MaxMarchSteps = 1000
	// HitEpsilon is the convergence threshold.
	HitEpsilon = 1e-4
	// EscapeDistance is the divergence threshold; past it the ray is
	// considered to have left the scene.
	EscapeDistance = 1e4
)

// HitResult is the outcome of marching one ray. Prev is the position one
// step before the hit; the next bounce starts there so it cannot begin
// inside the surface.
type HitResult struct {
	Hit  bool
	Pos  mgl64.Vec3
	Prev mgl64.Vec3
}

// March sphere-traces a ray against the scene. Exhausting the step
// budget counts as a miss.
func March(eval *sdf.Evaluator, origin, dir mgl64.Vec3) HitResult {
	pos := origin
	prev := origin
	for i := 0; i < MaxMarchSteps; i++ {
		d := eval.Distance(pos)
		if d < HitEpsilon {
			return HitResult{Hit: true, Pos: pos, Prev: prev}
		}
		if d > EscapeDistance {
			return HitResult{}
		}
		prev = pos
		pos = pos.Add(dir.Mul(d))
	}
	return HitResult{}
}
