package trace

import (
	"math"
	"math/rand"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/luxmarch/luxmarch/rt/compile"
	"github.com/luxmarch/luxmarch/rt/sdf"
)

const (
	// specularEpsilon guards the Cook-Torrance denominator.
	specularEpsilon = 1e-6
	// dielectricF0 is the normal-incidence reflectance of the dielectric
	// baseline that metalness interpolates away from.
	dielectricF0 = 0.04
	// radianceScale matches the renderer's exposure convention. Not a
	// physical normalization.
	radianceScale = 2.0
)

// Shader produces outgoing radiance for rays against one compiled scene.
// A Shader owns its evaluator scratch space, so use one per goroutine.
type Shader struct {
	prog *compile.Program
	eval *sdf.Evaluator
	sky  mgl64.Vec3
}

func NewShader(prog *compile.Program) *Shader {
	return &Shader{
		prog: prog,
		eval: NewSceneEvaluator(prog),
		sky:  mgl64.Vec3{prog.SkyColor[0], prog.SkyColor[1], prog.SkyColor[2]},
	}
}

// NewSceneEvaluator builds a fresh evaluator for a program.
func NewSceneEvaluator(prog *compile.Program) *sdf.Evaluator {
	return sdf.NewEvaluator(prog)
}

// Evaluator exposes the shader's evaluator for callers that also need
// raw distances.
func (s *Shader) Evaluator() *sdf.Evaluator { return s.eval }

// Radiance traces a ray and returns its incoming radiance. depth counts
// bounces so far; once it reaches the world's max ray depth the path is
// truncated at the surface emitance.
func (s *Shader) Radiance(origin, dir mgl64.Vec3, depth int, rng *rand.Rand) mgl64.Vec3 {
	hit := March(s.eval, origin, dir)
	if !hit.Hit {
		return s.sky
	}

	_, sample := s.eval.Eval(hit.Pos)

	mat := s.eval.Material(sample)
	if mat.Params[2] != 0 {
		// Portal surface: re-map the ray instead of bouncing. The remap
		// still consumes a depth level so loops terminate.
		if depth >= s.prog.MaxRayDepth {
			return sample.Emitance
		}
		newOrigin, newDir := portalRemap(mat, hit.Pos, dir)
		return s.Radiance(newOrigin.Add(newDir.Mul(4*HitEpsilon)), newDir, depth+1, rng)
	}

	if depth >= s.prog.MaxRayDepth {
		return sample.Emitance
	}

	normal := s.eval.Normal(hit.Pos)
	if normal.Dot(dir) > 0 {
		normal = normal.Mul(-1)
	}

	// Branch selection: metalness biases toward the specular lobe.
	var bounce mgl64.Vec3
	if rng.Float64() < sample.Metalness {
		half := SampleGGXHalfVector(normal, sample.Roughness, rng)
		bounce = Reflect(dir, half)
		if bounce.Dot(normal) <= 0 {
			bounce = HemisphereAround(normal, rng)
		}
	} else {
		bounce = HemisphereAround(normal, rng)
	}

	incoming := s.Radiance(hit.Prev, bounce, depth+1, rng)

	return s.combine(sample, normal, dir, bounce, incoming)
}

// combine folds the bounced radiance through the Cook-Torrance
// reflectance model.
func (s *Shader) combine(sample sdf.Sample, normal, dir, bounce, incoming mgl64.Vec3) mgl64.Vec3 {
	v := dir.Mul(-1)
	l := bounce
	h := v.Add(l)
	if h.Len() < 1e-12 {
		h = normal
	} else {
		h = h.Normalize()
	}

	nv := math.Max(normal.Dot(v), 0)
	nl := math.Max(normal.Dot(l), 0)
	nh := math.Max(normal.Dot(h), 0)
	vh := math.Max(v.Dot(h), 0)

	d := ggxDistribution(nh, sample.Roughness)
	g := smithGeometry(nv, nl, sample.Roughness)
	f := schlickFresnel(vh, sample)

	denom := 4*nv*nl + specularEpsilon
	specular := f.Mul(d * g / denom)

	kd := mgl64.Vec3{1 - f[0], 1 - f[1], 1 - f[2]}.Mul(1 - sample.Metalness)
	diffuse := mulVec(kd, sample.Color).Mul(1 / math.Pi)

	reflected := mulVec(diffuse.Add(specular), incoming).Mul(nl * radianceScale)
	return reflected.Add(sample.Emitance)
}

// ggxDistribution is the GGX/Trowbridge-Reitz normal distribution term.
func ggxDistribution(nh, roughness float64) float64 {
	a := roughness * roughness
	a2 := a * a
	denom := nh*nh*(a2-1) + 1
	return a2 / (math.Pi*denom*denom + specularEpsilon)
}

// smithGeometry is the Smith joint masking-shadowing term with the
// Schlick-GGX approximation per direction.
func smithGeometry(nv, nl, roughness float64) float64 {
	k := (roughness + 1) * (roughness + 1) / 8
	gv := nv / (nv*(1-k) + k + specularEpsilon)
	gl := nl / (nl*(1-k) + k + specularEpsilon)
	return gv * gl
}

// schlickFresnel interpolates F0 between the dielectric baseline and the
// surface color by metalness.
func schlickFresnel(vh float64, sample sdf.Sample) mgl64.Vec3 {
	f0 := mgl64.Vec3{
		dielectricF0 + (sample.Color[0]-dielectricF0)*sample.Metalness,
		dielectricF0 + (sample.Color[1]-dielectricF0)*sample.Metalness,
		dielectricF0 + (sample.Color[2]-dielectricF0)*sample.Metalness,
	}
	m := math.Pow(1-vh, 5)
	return mgl64.Vec3{
		f0[0] + (1-f0[0])*m,
		f0[1] + (1-f0[1])*m,
		f0[2] + (1-f0[2])*m,
	}
}

func portalRemap(m *compile.MaterialRecord, p, d mgl64.Vec3) (mgl64.Vec3, mgl64.Vec3) {
	q := mgl64.Quat{
		W: float64(m.RotQuat[3]),
		V: mgl64.Vec3{float64(m.RotQuat[0]), float64(m.RotQuat[1]), float64(m.RotQuat[2])},
	}
	around := mgl64.Vec3{float64(m.RotateAround[0]), float64(m.RotateAround[1]), float64(m.RotateAround[2])}
	translation := mgl64.Vec3{float64(m.Translation[0]), float64(m.Translation[1]), float64(m.Translation[2])}

	origin := q.Rotate(p.Sub(around)).Add(around).Add(translation)
	dir := q.Rotate(d)
	return origin, dir
}

func mulVec(a, b mgl64.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{a[0] * b[0], a[1] * b[1], a[2] * b[2]}
}
