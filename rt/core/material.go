package core

import (
	"github.com/go-gl/mathgl/mgl64"
)

// Rotation is an axis-pair rotation: the rigid rotation taking From to To.
type Rotation struct {
	From mgl64.Vec3
	To   mgl64.Vec3
}

// IdentityRotation maps (1,0,0) onto itself.
func IdentityRotation() Rotation {
	return Rotation{
		From: mgl64.Vec3{1, 0, 0},
		To:   mgl64.Vec3{1, 0, 0},
	}
}

// Quat returns the rotation as a quaternion. Degenerate pairs (zero or
// anti-parallel vectors) collapse to the identity.
func (r Rotation) Quat() mgl64.Quat {
	from := r.From
	to := r.To
	if from.Len() < 1e-12 || to.Len() < 1e-12 {
		return mgl64.QuatIdent()
	}
	from = from.Normalize()
	to = to.Normalize()
	if from.Sub(to).Len() < 1e-9 {
		return mgl64.QuatIdent()
	}
	if from.Add(to).Len() < 1e-9 {
		// 180 degrees, axis is ambiguous; pick any perpendicular
		axis := from.Cross(mgl64.Vec3{0, 1, 0})
		if axis.Len() < 1e-9 {
			axis = from.Cross(mgl64.Vec3{1, 0, 0})
		}
		return mgl64.QuatRotate(mgl64.DegToRad(180), axis.Normalize())
	}
	return mgl64.QuatBetweenVectors(from, to)
}

type Material struct {
	Color     mgl64.Vec3
	Emitance  mgl64.Vec3
	Metalness float64
	Roughness float64

	// Portal surfaces re-map the continuing ray by the rigid transform
	// below instead of bouncing it.
	IsPortal     bool
	Translation  mgl64.Vec3
	RotateAround mgl64.Vec3
	Rotation     Rotation
}

func NewMaterial(color, emitance mgl64.Vec3) Material {
	return Material{
		Color:    color,
		Emitance: emitance,
		Rotation: IdentityRotation(),
	}
}

// BlackMaterial is the fallback for unresolved material names: no
// reflectance, no emission, fully rough.
func BlackMaterial() Material {
	return Material{
		Roughness: 1.0,
		Rotation:  IdentityRotation(),
	}
}

// ApplyPortal maps a point through the material's rigid transform.
func (m *Material) ApplyPortal(p mgl64.Vec3) mgl64.Vec3 {
	q := m.Rotation.Quat()
	rotated := q.Rotate(p.Sub(m.RotateAround)).Add(m.RotateAround)
	return rotated.Add(m.Translation)
}

// ApplyPortalDir rotates a direction through the material transform.
func (m *Material) ApplyPortalDir(d mgl64.Vec3) mgl64.Vec3 {
	return m.Rotation.Quat().Rotate(d)
}
