// Package camera provides camera implementations for 3D rendering.
package camera

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// OrbitCamera orbits around a center point.
type OrbitCamera struct {
	Center mgl32.Vec3

	// Spherical coordinates
	Distance  float32 // Distance from center
	RotationX float32 // Pitch (vertical angle, radians)
	RotationY float32 // Yaw (horizontal angle, radians)

	// Constraints
	MinDistance float32
	MaxDistance float32
	MinPitch    float32
	MaxPitch    float32

	// FovY is the vertical field of view in radians.
	FovY float32

	// Sensitivity
	DragSensitivity float32
	ZoomSensitivity float32

	// radius of the fitted bounding sphere, used for clip planes
	radius float32
}

// NewOrbitCamera creates a new orbit camera with default settings.
func NewOrbitCamera() *OrbitCamera {
	return &OrbitCamera{
		Distance:        3.0,
		RotationX:       0.3,
		RotationY:       0.0,
		MinDistance:     0.01,
		MaxDistance:     1e6,
		MinPitch:        -1.5,
		MaxPitch:        1.5,
		FovY:            mgl32.DegToRad(45),
		DragSensitivity: 0.005,
		ZoomSensitivity: 0.1,
		radius:          1,
	}
}

// Position returns the camera position in world space.
func (c *OrbitCamera) Position() mgl32.Vec3 {
	pitch, yaw := float64(c.RotationX), float64(c.RotationY)
	offset := mgl32.Vec3{
		float32(math.Cos(pitch) * math.Sin(yaw)),
		float32(math.Sin(pitch)),
		float32(math.Cos(pitch) * math.Cos(yaw)),
	}
	return c.Center.Add(offset.Mul(c.Distance))
}

// ViewMatrix returns the view matrix for this camera.
func (c *OrbitCamera) ViewMatrix() mgl32.Mat4 {
	return mgl32.LookAtV(c.Position(), c.Center, mgl32.Vec3{0, 1, 0})
}

// ProjectionMatrix returns a perspective projection whose clip planes
// enclose the fitted bounding sphere.
func (c *OrbitCamera) ProjectionMatrix(aspect float32) mgl32.Mat4 {
	near := max(c.Distance-c.radius*2, c.radius*0.01)
	far := c.Distance + c.radius*2
	return mgl32.Perspective(c.FovY, aspect, near, far)
}

// ViewProjection returns projection * view.
func (c *OrbitCamera) ViewProjection(aspect float32) mgl32.Mat4 {
	return c.ProjectionMatrix(aspect).Mul4(c.ViewMatrix())
}

// HandleDrag updates rotation based on mouse drag delta.
func (c *OrbitCamera) HandleDrag(deltaX, deltaY float32) {
	c.RotationY -= deltaX * c.DragSensitivity
	c.RotationX = mgl32.Clamp(c.RotationX+deltaY*c.DragSensitivity, c.MinPitch, c.MaxPitch)
}

// HandleZoom updates distance based on scroll wheel delta.
func (c *OrbitCamera) HandleZoom(delta float32) {
	c.Distance = mgl32.Clamp(c.Distance-delta*c.Distance*c.ZoomSensitivity, c.MinDistance, c.MaxDistance)
}

// FitToBounds centers the camera on the box and backs off until the
// enclosing sphere fills the vertical field of view with a small margin.
func (c *OrbitCamera) FitToBounds(lo, hi mgl32.Vec3) {
	size := hi.Sub(lo)
	c.Center = lo.Add(size.Mul(0.5))
	c.radius = size.Len() * 0.5
	if c.radius < 1e-4 {
		c.radius = 1e-4
	}

	c.Distance = c.radius / float32(math.Sin(float64(c.FovY)/2)) * 1.1
	c.MinDistance = c.radius * 0.1
	c.MaxDistance = c.Distance * 20
	c.RotationX = 0.3
	c.RotationY = 0
}
