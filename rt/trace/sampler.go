package trace

import (
	"math"
	"math/rand"

	"github.com/go-gl/mathgl/mgl64"
)

// UniformSphere samples a direction uniformly on the unit sphere.
func UniformSphere(rng *rand.Rand) mgl64.Vec3 {
	z := 2*rng.Float64() - 1
	phi := 2 * math.Pi * rng.Float64()
	r := math.Sqrt(math.Max(0, 1-z*z))
	return mgl64.Vec3{r * math.Cos(phi), r * math.Sin(phi), z}
}

// HemisphereAround samples the upper hemisphere of a normal by folding a
// uniform sphere sample across the surface plane.
func HemisphereAround(normal mgl64.Vec3, rng *rand.Rand) mgl64.Vec3 {
	d := UniformSphere(rng)
	if d.Dot(normal) < 0 {
		d = d.Mul(-1)
	}
	return d
}

// orthonormalBasis builds tangent and bitangent vectors for a unit normal.
func orthonormalBasis(n mgl64.Vec3) (t, b mgl64.Vec3) {
	if math.Abs(n[0]) > 0.9 {
		t = mgl64.Vec3{0, 1, 0}
	} else {
		t = mgl64.Vec3{1, 0, 0}
	}
	t = t.Sub(n.Mul(t.Dot(n))).Normalize()
	b = n.Cross(t)
	return t, b
}

// SampleGGXHalfVector importance-samples a microfacet half-vector around
// the normal from the GGX distribution via inverse-CDF sampling. The
// degenerate ends of the roughness range are explicit limits: a perfect
// mirror aligns the half-vector with the normal, full roughness falls
// back to a uniform hemisphere.
func SampleGGXHalfVector(normal mgl64.Vec3, roughness float64, rng *rand.Rand) mgl64.Vec3 {
	if roughness <= 0 {
		return normal
	}
	if roughness >= 1 {
		return HemisphereAround(normal, rng)
	}

	a := roughness * roughness
	r1 := rng.Float64()
	r2 := rng.Float64()

	theta := math.Atan(a * math.Sqrt(r1/(1-r1)))
	phi := 2 * math.Pi * r2

	sinT := math.Sin(theta)
	local := mgl64.Vec3{
		sinT * math.Cos(phi),
		sinT * math.Sin(phi),
		math.Cos(theta),
	}

	t, b := orthonormalBasis(normal)
	return t.Mul(local[0]).Add(b.Mul(local[1])).Add(normal.Mul(local[2])).Normalize()
}

// Reflect mirrors d about the unit vector n.
func Reflect(d, n mgl64.Vec3) mgl64.Vec3 {
	return d.Sub(n.Mul(2 * d.Dot(n)))
}
