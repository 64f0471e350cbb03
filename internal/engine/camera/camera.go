// Package camera provides the orbit camera used to inspect a planet.
package camera

import (
	gomath "math"

	"github.com/Faultbox/midgard-planet/pkg/math"
)

// OrbitCamera orbits around a planet center. Its position doubles as the LOD
// viewer, so zooming in refines the terrain under the camera.
type OrbitCamera struct {
	// Center point to orbit around
	Center math.Vec3

	// Spherical coordinates
	Distance  float32 // Distance from center
	RotationX float32 // Pitch (vertical angle, radians)
	RotationY float32 // Yaw (horizontal angle, radians)

	// Constraints
	MinDistance float32
	MaxDistance float32
	MinPitch    float32
	MaxPitch    float32

	// Sensitivity
	DragSensitivity float32
	ZoomSensitivity float32

	FovY float32 // Vertical field of view, radians
}

// NewOrbitCamera creates a camera for a planet of the given radius, starting
// far enough away to see the whole sphere.
func NewOrbitCamera(radius float32) *OrbitCamera {
	return &OrbitCamera{
		Distance:        radius * 4,
		RotationX:       0.3,
		MinDistance:     radius * 1.02,
		MaxDistance:     radius * 20,
		MinPitch:        -1.5,
		MaxPitch:        1.5,
		DragSensitivity: 0.005,
		ZoomSensitivity: 0.1,
		FovY:            gomath.Pi / 4,
	}
}

// Position returns the camera position in world space.
func (c *OrbitCamera) Position() math.Vec3 {
	x := c.Distance * float32(gomath.Cos(float64(c.RotationX))*gomath.Sin(float64(c.RotationY)))
	y := c.Distance * float32(gomath.Sin(float64(c.RotationX)))
	z := c.Distance * float32(gomath.Cos(float64(c.RotationX))*gomath.Cos(float64(c.RotationY)))
	return c.Center.Add(math.Vec3{X: x, Y: y, Z: z})
}

// ViewMatrix returns the view matrix for this camera.
func (c *OrbitCamera) ViewMatrix() math.Mat4 {
	return math.LookAt(c.Position(), c.Center, math.Up)
}

// ProjectionMatrix returns a perspective projection whose clip planes follow
// the altitude, keeping depth precision usable close to the surface.
func (c *OrbitCamera) ProjectionMatrix(aspect float32) math.Mat4 {
	altitude := max(c.Distance-c.MinDistance/1.02, c.MinDistance*0.001)
	near := max(altitude*0.1, 0.01)
	far := c.Distance * 2
	return math.Perspective(c.FovY, aspect, near, far)
}

// ViewProjection returns projection * view.
func (c *OrbitCamera) ViewProjection(aspect float32) math.Mat4 {
	return c.ProjectionMatrix(aspect).Mul(c.ViewMatrix())
}

// HandleDrag updates rotation based on mouse drag delta. Rotation slows
// down near the surface so the ground does not fly past.
func (c *OrbitCamera) HandleDrag(deltaX, deltaY float32) {
	scale := c.DragSensitivity * min(1, (c.Distance-c.MinDistance/1.02)/c.MinDistance+0.02)
	c.RotationY -= deltaX * scale
	c.RotationX += deltaY * scale
	c.RotationX = min(max(c.RotationX, c.MinPitch), c.MaxPitch)
}

// HandleZoom updates distance based on scroll wheel delta. The step is
// proportional to the altitude above the surface.
func (c *OrbitCamera) HandleZoom(delta float32) {
	surface := c.MinDistance / 1.02
	altitude := c.Distance - surface
	c.Distance = surface + altitude*(1-delta*c.ZoomSensitivity)
	c.Distance = min(max(c.Distance, c.MinDistance), c.MaxDistance)
}
