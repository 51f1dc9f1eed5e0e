package trace

import (
	"math"
	"math/rand"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/luxmarch/luxmarch/rt/compile"
	"github.com/luxmarch/luxmarch/rt/core"
)

func compileWorld(t *testing.T, w *core.World) *compile.Program {
	t.Helper()
	prog, err := compile.Compile(w)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	return prog
}

func TestMarchHitsSphere(t *testing.T) {
	w := core.NewWorld()
	w.Materials["m"] = core.NewMaterial(mgl64.Vec3{1, 1, 1}, mgl64.Vec3{})
	w.AddRoot(w.Tree.Sphere(mgl64.Vec3{0, 0, 5}, 1, "m"))
	prog := compileWorld(t, w)
	eval := NewSceneEvaluator(prog)

	hit := March(eval, mgl64.Vec3{0, 0, 0}, mgl64.Vec3{0, 0, 1})
	if !hit.Hit {
		t.Fatal("expected hit")
	}
	// Surface is at z=4
	if math.Abs(hit.Pos[2]-4) > 1e-3 {
		t.Errorf("hit z = %v, want ~4", hit.Pos[2])
	}
	if hit.Prev[2] >= hit.Pos[2] {
		t.Errorf("prev position %v not before hit %v", hit.Prev[2], hit.Pos[2])
	}
}

func TestMarchMissesEscapes(t *testing.T) {
	w := core.NewWorld()
	w.Materials["m"] = core.NewMaterial(mgl64.Vec3{1, 1, 1}, mgl64.Vec3{})
	w.AddRoot(w.Tree.Sphere(mgl64.Vec3{0, 0, 5}, 1, "m"))
	prog := compileWorld(t, w)
	eval := NewSceneEvaluator(prog)

	hit := March(eval, mgl64.Vec3{0, 0, 0}, mgl64.Vec3{0, 0, -1})
	if hit.Hit {
		t.Fatal("expected miss")
	}
}

func TestMarchEmptySceneMisses(t *testing.T) {
	prog := compileWorld(t, core.NewWorld())
	eval := NewSceneEvaluator(prog)
	if hit := March(eval, mgl64.Vec3{}, mgl64.Vec3{0, 0, 1}); hit.Hit {
		t.Fatal("expected miss in empty scene")
	}
}

// An emissive sphere with depth 0 must return its emitance exactly; any
// ray that misses must return the sky color exactly. No stochastic terms
// are involved at depth 0.
func TestEmissiveSphereDepthZero(t *testing.T) {
	w := core.NewWorld()
	w.MaxRayDepth = 0
	w.SkyColor = mgl64.Vec3{0, 0, 0}
	w.Materials["light"] = core.Material{
		Emitance: mgl64.Vec3{5, 5, 5},
		Rotation: core.IdentityRotation(),
	}
	w.AddRoot(w.Tree.Sphere(mgl64.Vec3{0, 0, 2}, 0.5, "light"))

	shader := NewShader(compileWorld(t, w))
	rng := rand.New(rand.NewSource(1))

	got := shader.Radiance(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{0, 0, 1}, 0, rng)
	if got != (mgl64.Vec3{5, 5, 5}) {
		t.Errorf("center ray = %v, want (5,5,5)", got)
	}

	missDir := mgl64.Vec3{0, 1, 0}
	if got := shader.Radiance(mgl64.Vec3{0, 0, 0}, missDir, 0, rng); got != (mgl64.Vec3{0, 0, 0}) {
		t.Errorf("miss ray = %v, want black", got)
	}
}

func TestEmptyWorldReturnsSky(t *testing.T) {
	w := core.NewWorld()
	w.MaxRayDepth = 3
	w.SkyColor = mgl64.Vec3{0.2, 0.4, 0.6}
	shader := NewShader(compileWorld(t, w))
	rng := rand.New(rand.NewSource(1))

	for _, dir := range []mgl64.Vec3{{0, 0, 1}, {1, 0, 0}, {0, -1, 0}} {
		if got := shader.Radiance(mgl64.Vec3{}, dir, 0, rng); got != w.SkyColor {
			t.Errorf("dir %v = %v, want sky %v", dir, got, w.SkyColor)
		}
	}
}

func TestRadianceDeterministicForSeed(t *testing.T) {
	w := core.DefaultWorld()
	prog := compileWorld(t, w)

	render := func() mgl64.Vec3 {
		shader := NewShader(prog)
		rng := rand.New(rand.NewSource(99))
		return shader.Radiance(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{0, 0, 1}, 0, rng)
	}

	a := render()
	b := render()
	if a != b {
		t.Errorf("same seed produced different radiance: %v vs %v", a, b)
	}
}

func TestRadianceNeverNaN(t *testing.T) {
	w := core.NewWorld()
	w.MaxRayDepth = 3
	w.SkyColor = mgl64.Vec3{1, 1, 1}
	// Degenerate roughness ends on purpose
	w.Materials["mirror"] = core.Material{
		Color: mgl64.Vec3{1, 1, 1}, Metalness: 1, Roughness: 0,
		Rotation: core.IdentityRotation(),
	}
	w.Materials["chalk"] = core.Material{
		Color: mgl64.Vec3{0.8, 0.8, 0.8}, Roughness: 1,
		Rotation: core.IdentityRotation(),
	}
	w.AddRoot(w.Tree.Sphere(mgl64.Vec3{0, 0, 3}, 1, "mirror"))
	w.AddRoot(w.Tree.Sphere(mgl64.Vec3{0, 2.5, 3}, 1, "chalk"))

	shader := NewShader(compileWorld(t, w))
	rng := rand.New(rand.NewSource(5))

	for i := 0; i < 200; i++ {
		dir := UniformSphere(rng)
		dir[2] = math.Abs(dir[2]) + 0.1
		dir = dir.Normalize()
		c := shader.Radiance(mgl64.Vec3{0, 0, 0}, dir, 0, rng)
		for ch := 0; ch < 3; ch++ {
			if math.IsNaN(c[ch]) || math.IsInf(c[ch], 0) {
				t.Fatalf("sample %d: non-finite radiance %v for dir %v", i, c, dir)
			}
			if c[ch] < 0 {
				t.Fatalf("sample %d: negative radiance %v", i, c)
			}
		}
	}
}

func TestPortalRemapsRay(t *testing.T) {
	w := core.NewWorld()
	// Depth 1: the portal remap consumes the only bounce, so the path
	// terminates at the teleported light's emitance exactly.
	w.MaxRayDepth = 1
	w.SkyColor = mgl64.Vec3{0, 0, 0}
	// A portal slab that teleports rays +10 in X, and a light only
	// reachable through the teleport.
	w.Materials["portal"] = core.Material{
		IsPortal:    true,
		Translation: mgl64.Vec3{10, 0, 0},
		Rotation:    core.IdentityRotation(),
	}
	w.Materials["light"] = core.Material{
		Emitance: mgl64.Vec3{7, 7, 7},
		Rotation: core.IdentityRotation(),
	}
	w.AddRoot(w.Tree.Box(mgl64.Vec3{-1, -1, 2}, mgl64.Vec3{1, 1, 2.1}, "portal"))
	w.AddRoot(w.Tree.Sphere(mgl64.Vec3{10, 0, 4}, 1, "light"))

	shader := NewShader(compileWorld(t, w))
	rng := rand.New(rand.NewSource(3))

	got := shader.Radiance(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{0, 0, 1}, 0, rng)
	if got != (mgl64.Vec3{7, 7, 7}) {
		t.Errorf("portal ray = %v, want (7,7,7)", got)
	}
}

func TestGGXHalfVectorLimits(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	n := mgl64.Vec3{0, 0, 1}

	if h := SampleGGXHalfVector(n, 0, rng); h != n {
		t.Errorf("roughness 0 half-vector = %v, want the normal", h)
	}

	for i := 0; i < 100; i++ {
		h := SampleGGXHalfVector(n, 0.5, rng)
		if h.Dot(n) < 0 {
			t.Fatalf("half-vector %v below the surface", h)
		}
		if math.Abs(h.Len()-1) > 1e-9 {
			t.Fatalf("half-vector %v not unit length", h)
		}
	}

	for i := 0; i < 100; i++ {
		h := SampleGGXHalfVector(n, 1, rng)
		if h.Dot(n) < 0 {
			t.Fatalf("roughness 1 half-vector %v below the surface", h)
		}
	}
}

func TestHemisphereAroundStaysAbove(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	n := mgl64.Vec3{0, 1, 0}
	for i := 0; i < 500; i++ {
		d := HemisphereAround(n, rng)
		if d.Dot(n) < 0 {
			t.Fatalf("sample %v below hemisphere", d)
		}
	}
}
