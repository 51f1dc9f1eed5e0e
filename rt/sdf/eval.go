// Package sdf evaluates the signed distance field of a compiled scene.
// The same flat record buffer drives the WGSL shaders; this is the f64
// CPU counterpart.
package sdf

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/luxmarch/luxmarch/rt/compile"
)

// NormalEpsilon is the central-difference step for gradient estimation.
const NormalEpsilon = 0.005

// Sample is the surface material at the nearest point, with the blended
// shading channels and the dominant material's buffer index (used for
// portal lookups).
type Sample struct {
	Color     mgl64.Vec3
	Emitance  mgl64.Vec3
	Metalness float64
	Roughness float64
	Material  int
}

type result struct {
	dist   float64
	sample Sample
}

// Evaluator resolves distances against a compiled program. It keeps a
// scratch slot per record, so an Evaluator must not be shared between
// goroutines; each worker builds its own.
type Evaluator struct {
	prog  *compile.Program
	slots []result
}

func NewEvaluator(prog *compile.Program) *Evaluator {
	return &Evaluator{
		prog:  prog,
		slots: make([]result, len(prog.Objects)),
	}
}

// Eval returns the scene distance at p and the material of the nearest
// surface. Rendered records union implicitly; an empty scene is all sky
// (+inf).
func (e *Evaluator) Eval(p mgl64.Vec3) (float64, Sample) {
	best := result{dist: math.Inf(1)}

	for i := range e.prog.Objects {
		rec := &e.prog.Objects[i]
		r := e.evalRecord(rec, p)
		e.slots[i] = r
		if rec.Flags&compile.FlagRendered != 0 && r.dist < best.dist {
			best = r
		}
	}
	return best.dist, best.sample
}

// Distance returns only the scene distance at p.
func (e *Evaluator) Distance(p mgl64.Vec3) float64 {
	d, _ := e.Eval(p)
	return d
}

// Normal estimates the surface normal at p by central finite differences.
// The fixed epsilon trades exactness for working uniformly through every
// CSG operator.
func (e *Evaluator) Normal(p mgl64.Vec3) mgl64.Vec3 {
	const h = NormalEpsilon
	g := mgl64.Vec3{
		e.Distance(mgl64.Vec3{p[0] + h, p[1], p[2]}) - e.Distance(mgl64.Vec3{p[0] - h, p[1], p[2]}),
		e.Distance(mgl64.Vec3{p[0], p[1] + h, p[2]}) - e.Distance(mgl64.Vec3{p[0], p[1] - h, p[2]}),
		e.Distance(mgl64.Vec3{p[0], p[1], p[2] + h}) - e.Distance(mgl64.Vec3{p[0], p[1], p[2] - h}),
	}
	if g.Len() < 1e-18 {
		return mgl64.Vec3{0, 1, 0}
	}
	return g.Normalize()
}

// Material returns the resolved material record for a sample.
func (e *Evaluator) Material(s Sample) *compile.MaterialRecord {
	return &e.prog.Materials[s.Material]
}

func (e *Evaluator) evalRecord(rec *compile.ObjectRecord, p mgl64.Vec3) result {
	switch rec.Kind {
	case compile.OpSphere, compile.OpBox, compile.OpCylinder, compile.OpTorus:
		q := p
		if rec.Flags&compile.FlagRepeat != 0 {
			q = posMod(p, leafPeriod(rec))
		}
		return result{
			dist:   leafDistance(rec, q),
			sample: e.materialSample(int(rec.Material)),
		}

	case compile.OpInv:
		child := e.slots[int(rec.Args1[0])]
		child.dist = -child.dist
		return child

	case compile.OpMin:
		a := e.slots[int(rec.Args1[0])]
		b := e.slots[int(rec.Args1[1])]
		// ties go to a
		if b.dist < a.dist {
			return b
		}
		return a

	case compile.OpMax:
		a := e.slots[int(rec.Args1[0])]
		b := e.slots[int(rec.Args1[1])]
		// ties go to a
		if b.dist > a.dist {
			return b
		}
		return a

	case compile.OpSmooth:
		return e.evalSmooth(rec)
	}

	return result{dist: math.Inf(1)}
}

// evalSmooth blends children by log-sum-exp weighting. Positive alpha
// tends toward the minimum, negative toward the maximum; the exponents
// are shifted by their maximum so large alphas cannot overflow.
func (e *Evaluator) evalSmooth(rec *compile.ObjectRecord) result {
	alpha := float64(rec.Args2[0])
	n := int(rec.Args2[1])

	maxExp := math.Inf(-1)
	for i := 0; i < n; i++ {
		exp := -alpha * e.slots[int(rec.Args1[i])].dist
		if exp > maxExp {
			maxExp = exp
		}
	}

	var wSum, dSum float64
	var color, emitance mgl64.Vec3
	var metal, rough float64
	bestW := -1.0
	bestMat := 0

	for i := 0; i < n; i++ {
		child := e.slots[int(rec.Args1[i])]
		w := math.Exp(-alpha*child.dist - maxExp)
		wSum += w
		dSum += w * child.dist
		color = color.Add(child.sample.Color.Mul(w))
		emitance = emitance.Add(child.sample.Emitance.Mul(w))
		metal += w * child.sample.Metalness
		rough += w * child.sample.Roughness
		if w > bestW {
			bestW = w
			bestMat = child.sample.Material
		}
	}

	inv := 1.0 / wSum
	return result{
		dist: dSum * inv,
		sample: Sample{
			Color:     color.Mul(inv),
			Emitance:  emitance.Mul(inv),
			Metalness: clamp01(metal * inv),
			Roughness: clamp01(rough * inv),
			Material:  bestMat,
		},
	}
}

func (e *Evaluator) materialSample(idx int) Sample {
	m := &e.prog.Materials[idx]
	return Sample{
		Color:     mgl64.Vec3{float64(m.Color[0]), float64(m.Color[1]), float64(m.Color[2])},
		Emitance:  mgl64.Vec3{float64(m.Emitance[0]), float64(m.Emitance[1]), float64(m.Emitance[2])},
		Metalness: float64(m.Params[0]),
		Roughness: float64(m.Params[1]),
		Material:  idx,
	}
}

func leafPeriod(rec *compile.ObjectRecord) float64 {
	switch rec.Kind {
	case compile.OpSphere:
		return float64(rec.Args2[0])
	case compile.OpBox:
		return float64(rec.Args1[3])
	case compile.OpCylinder, compile.OpTorus:
		return float64(rec.Args2[1])
	}
	return 0
}

func leafDistance(rec *compile.ObjectRecord, p mgl64.Vec3) float64 {
	switch rec.Kind {
	case compile.OpSphere:
		c := mgl64.Vec3{float64(rec.Args1[0]), float64(rec.Args1[1]), float64(rec.Args1[2])}
		return p.Sub(c).Len() - float64(rec.Args1[3])

	case compile.OpBox:
		lower := mgl64.Vec3{float64(rec.Args1[0]), float64(rec.Args1[1]), float64(rec.Args1[2])}
		upper := mgl64.Vec3{float64(rec.Args2[0]), float64(rec.Args2[1]), float64(rec.Args2[2])}
		center := lower.Add(upper).Mul(0.5)
		half := upper.Sub(lower).Mul(0.5)
		off := mgl64.Vec3{
			math.Abs(p[0]-center[0]) - half[0],
			math.Abs(p[1]-center[1]) - half[1],
			math.Abs(p[2]-center[2]) - half[2],
		}
		outside := mgl64.Vec3{math.Max(off[0], 0), math.Max(off[1], 0), math.Max(off[2], 0)}
		inside := math.Min(math.Max(off[0], math.Max(off[1], off[2])), 0)
		return outside.Len() + inside

	case compile.OpCylinder:
		c := mgl64.Vec3{float64(rec.Args1[0]), float64(rec.Args1[1]), float64(rec.Args1[2])}
		radius := float64(rec.Args1[3])
		halfHeight := float64(rec.Args2[0]) / 2
		radial := math.Hypot(p[0]-c[0], p[2]-c[2])
		axial := math.Abs(p[1] - c[1])
		dx := radial - radius
		dy := axial - halfHeight
		inside := math.Min(math.Max(dx, dy), 0)
		ox := math.Max(dx, 0)
		oy := math.Max(dy, 0)
		return inside + math.Hypot(ox, oy)

	case compile.OpTorus:
		c := mgl64.Vec3{float64(rec.Args1[0]), float64(rec.Args1[1]), float64(rec.Args1[2])}
		major := float64(rec.Args1[3])
		minor := float64(rec.Args2[0])
		radial := math.Hypot(p[0]-c[0], p[2]-c[2]) - major
		return math.Hypot(radial, p[1]-c[1]) - minor
	}
	return math.Inf(1)
}

// posMod wraps each coordinate into [0, period).
func posMod(p mgl64.Vec3, period float64) mgl64.Vec3 {
	if period <= 0 {
		return p
	}
	return mgl64.Vec3{
		math.Mod(math.Mod(p[0], period)+period, period),
		math.Mod(math.Mod(p[1], period)+period, period),
		math.Mod(math.Mod(p[2], period)+period, period),
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
