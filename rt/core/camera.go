package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Camera holds the viewpoint parameters of a world. The up direction
// points toward the top row of the image in world space; with the
// default (0,-1,0) the world +Y axis runs down the screen.
type Camera struct {
	Position      mgl64.Vec3
	LookDirection mgl64.Vec3
	UpDirection   mgl64.Vec3
	FovY          float64 // degrees
	FovX          float64 // degrees
}

func DefaultCamera() *Camera {
	return &Camera{
		Position:      mgl64.Vec3{0, 0, 0},
		LookDirection: mgl64.Vec3{0, 0, 1},
		UpDirection:   mgl64.Vec3{0, -1, 0},
		FovY:          90,
		FovX:          90,
	}
}

// Basis returns the orthonormal (right, up, forward) frame of the camera.
func (c *Camera) Basis() (right, up, forward mgl64.Vec3) {
	forward = c.LookDirection.Normalize()
	up = c.UpDirection
	// Remove the forward component so a sloppy up vector still yields an
	// orthonormal frame.
	up = up.Sub(forward.Mul(up.Dot(forward)))
	if up.Len() < 1e-12 {
		up = mgl64.Vec3{0, -1, 0}
		up = up.Sub(forward.Mul(up.Dot(forward)))
	}
	up = up.Normalize()
	right = forward.Cross(up)
	return right, up, forward
}

// PrimaryRay returns origin and direction of the camera ray through
// pixel (x, y) of a width x height image. Jitter in [0,1) offsets the
// sample point inside the pixel.
func (c *Camera) PrimaryRay(x, y, width, height int, jx, jy float64) (origin, dir mgl64.Vec3) {
	right, up, forward := c.Basis()

	u := 2*(float64(x)+jx)/float64(width) - 1
	v := 1 - 2*(float64(y)+jy)/float64(height)

	tx := math.Tan(mgl64.DegToRad(c.FovX) / 2)
	ty := math.Tan(mgl64.DegToRad(c.FovY) / 2)

	dir = forward.
		Add(right.Mul(u * tx)).
		Add(up.Mul(v * ty)).
		Normalize()
	return c.Position, dir
}
