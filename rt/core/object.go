package core

import (
	"github.com/go-gl/mathgl/mgl64"
)

// NodeKind tags a node in the CSG arena.
type NodeKind uint32

const (
	KindSphere NodeKind = iota
	KindBox
	KindCylinder
	KindTorus
	KindInv
	KindMin
	KindMax
	KindSmooth
	KindPosModulo
)

func (k NodeKind) String() string {
	switch k {
	case KindSphere:
		return "Sphere"
	case KindBox:
		return "Box"
	case KindCylinder:
		return "Cylinder"
	case KindTorus:
		return "Torus"
	case KindInv:
		return "Inv"
	case KindMin:
		return "Min"
	case KindMax:
		return "Max"
	case KindSmooth:
		return "Smooth"
	case KindPosModulo:
		return "PosModulo"
	}
	return "Unknown"
}

// NodeID indexes into a Tree's node arena.
type NodeID int32

// Node is one record of the CSG arena. Leaf primitives carry a material
// name; combinators reference earlier-built nodes by id. Which fields are
// meaningful depends on Kind.
type Node struct {
	Kind     NodeKind
	Material string

	Center mgl64.Vec3 // Sphere, Cylinder, Torus
	Radius float64    // Sphere, Cylinder

	Lower mgl64.Vec3 // Box
	Upper mgl64.Vec3 // Box

	Height float64 // Cylinder

	MajorRadius float64 // Torus
	MinorRadius float64 // Torus

	Left  NodeID // Inv, Min, Max, PosModulo child
	Right NodeID // Min, Max

	Alpha    float64  // Smooth
	Children []NodeID // Smooth

	Period float64 // PosModulo
}

// Tree is the arena the world's CSG objects live in. Children are always
// built before their parents, so every reference points at a lower id.
type Tree struct {
	Nodes []Node
}

func (t *Tree) add(n Node) NodeID {
	t.Nodes = append(t.Nodes, n)
	return NodeID(len(t.Nodes) - 1)
}

func (t *Tree) Node(id NodeID) *Node {
	return &t.Nodes[id]
}

func (t *Tree) Sphere(center mgl64.Vec3, radius float64, material string) NodeID {
	return t.add(Node{Kind: KindSphere, Center: center, Radius: radius, Material: material})
}

func (t *Tree) Box(lower, upper mgl64.Vec3, material string) NodeID {
	return t.add(Node{Kind: KindBox, Lower: lower, Upper: upper, Material: material})
}

func (t *Tree) Cylinder(center mgl64.Vec3, height, radius float64, material string) NodeID {
	return t.add(Node{Kind: KindCylinder, Center: center, Height: height, Radius: radius, Material: material})
}

func (t *Tree) Torus(majorRadius, minorRadius float64, center mgl64.Vec3, material string) NodeID {
	return t.add(Node{Kind: KindTorus, MajorRadius: majorRadius, MinorRadius: minorRadius, Center: center, Material: material})
}

func (t *Tree) Inv(child NodeID) NodeID {
	return t.add(Node{Kind: KindInv, Left: child})
}

func (t *Tree) Min(left, right NodeID) NodeID {
	return t.add(Node{Kind: KindMin, Left: left, Right: right})
}

func (t *Tree) Max(left, right NodeID) NodeID {
	return t.add(Node{Kind: KindMax, Left: left, Right: right})
}

func (t *Tree) Smooth(alpha float64, children ...NodeID) NodeID {
	return t.add(Node{Kind: KindSmooth, Alpha: alpha, Children: children})
}

func (t *Tree) PosModulo(child NodeID, period float64) NodeID {
	return t.add(Node{Kind: KindPosModulo, Left: child, Period: period})
}

// IsLeaf reports whether the node is a primitive (carries geometry and a
// material of its own).
func (n *Node) IsLeaf() bool {
	switch n.Kind {
	case KindSphere, KindBox, KindCylinder, KindTorus:
		return true
	}
	return false
}
