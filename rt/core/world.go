package core

import (
	"github.com/go-gl/mathgl/mgl64"
)

// World is a complete static scene: the CSG arena, the subset of nodes
// that are rendered as top-level objects (union is implicit across the
// list), the named material set and global render parameters.
type World struct {
	MaxRayDepth int
	SkyColor    mgl64.Vec3
	Tree        Tree
	Roots       []NodeID
	Materials   map[string]Material
	Camera      *Camera
}

func NewWorld() *World {
	return &World{
		SkyColor:  mgl64.Vec3{0, 0, 0},
		Materials: map[string]Material{},
	}
}

func (w *World) AddRoot(id NodeID) {
	w.Roots = append(w.Roots, id)
}

// MaterialOrBlack resolves a material name, falling back to the black
// material for names that were never defined.
func (w *World) MaterialOrBlack(name string) Material {
	if m, ok := w.Materials[name]; ok {
		return m
	}
	return BlackMaterial()
}

// DefaultWorld is the built-in demo scene used when no scene file is
// given: a rough yellow sphere, a green back wall, a mirror strip and a
// small bright light.
func DefaultWorld() *World {
	w := NewWorld()
	w.MaxRayDepth = 4
	w.SkyColor = mgl64.Vec3{0.529, 0.808, 0.98}

	w.Materials["yellow"] = Material{
		Color:     mgl64.Vec3{1, 1, 0},
		Roughness: 0.1,
		Rotation:  IdentityRotation(),
	}
	w.Materials["wall"] = Material{
		Color:     mgl64.Vec3{0, 1, 0},
		Roughness: 0.7,
		Rotation:  IdentityRotation(),
	}
	w.Materials["mirror"] = Material{
		Color:     mgl64.Vec3{1, 1, 1},
		Metalness: 1.0,
		Roughness: 0.02,
		Rotation:  IdentityRotation(),
	}
	w.Materials["lamp"] = Material{
		Emitance: mgl64.Vec3{100, 100, 100},
		Rotation: IdentityRotation(),
	}

	w.AddRoot(w.Tree.Sphere(mgl64.Vec3{0, 0, 2}, 0.5, "yellow"))
	w.AddRoot(w.Tree.Box(mgl64.Vec3{-5, -5, 5}, mgl64.Vec3{5, 5, 5.5}, "wall"))
	w.AddRoot(w.Tree.Box(mgl64.Vec3{-5, 0.5, 0}, mgl64.Vec3{5, 1.5, 5.5}, "mirror"))
	w.AddRoot(w.Tree.Sphere(mgl64.Vec3{0.5, 0, 1}, 0.25, "lamp"))

	return w
}
