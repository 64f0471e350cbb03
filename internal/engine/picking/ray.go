// Package picking casts rays from the screen onto the planet.
package picking

import (
	gomath "math"

	"github.com/Faultbox/midgard-planet/internal/cubesphere"
	"github.com/Faultbox/midgard-planet/pkg/math"
)

// Ray represents a ray in 3D space with origin and direction.
type Ray struct {
	Origin    math.Vec3
	Direction math.Vec3 // Normalized direction
}

// Lens describes a perspective camera by its frame rather than its matrices.
type Lens struct {
	Eye    math.Vec3
	Target math.Vec3
	Up     math.Vec3
	FovY   float32 // radians
}

// ScreenToRay converts pixel coordinates to a world-space ray leaving the eye.
func ScreenToRay(screenX, screenY, viewportW, viewportH float32, lens Lens) Ray {
	// Convert screen coords to normalized device coords (-1 to 1)
	ndcX := 2*screenX/viewportW - 1
	ndcY := 1 - 2*screenY/viewportH // Flip Y

	forward := lens.Target.Sub(lens.Eye).Normalize()
	right := forward.Cross(lens.Up).Normalize()
	up := right.Cross(forward)

	tanHalf := float32(gomath.Tan(float64(lens.FovY) / 2))
	aspect := viewportW / viewportH

	dir := forward.
		Add(right.Scale(ndcX * tanHalf * aspect)).
		Add(up.Scale(ndcY * tanHalf))
	return Ray{Origin: lens.Eye, Direction: dir.Normalize()}
}

// At returns the point at distance t along the ray.
func (r Ray) At(t float32) math.Vec3 {
	return r.Origin.Add(r.Direction.Scale(t))
}

// IntersectSphere returns the distance to the first hit in front of the
// origin. A ray starting inside the sphere hits on the way out.
func (r Ray) IntersectSphere(center math.Vec3, radius float32) (t float32, hit bool) {
	oc := r.Origin.Sub(center)
	b := oc.Dot(r.Direction)
	c := oc.Dot(oc) - radius*radius
	disc := b*b - c
	if disc < 0 {
		return 0, false
	}
	sq := float32(gomath.Sqrt(float64(disc)))
	if t = -b - sq; t >= 0 {
		return t, true
	}
	if t = -b + sq; t >= 0 {
		return t, true
	}
	return 0, false
}

// IntersectBounds tests the ray against a chunk's bounding box with the slab
// method. If the ray starts inside the box, returns the exit distance.
func (r Ray) IntersectBounds(box cubesphere.Bounds) (t float32, hit bool) {
	tmin := float32(-gomath.MaxFloat32)
	tmax := float32(gomath.MaxFloat32)

	origin, dir := r.Origin.Array(), r.Direction.Array()
	lo, hi := box.Min.Array(), box.Max.Array()
	for axis := range 3 {
		if dir[axis] == 0 {
			if origin[axis] < lo[axis] || origin[axis] > hi[axis] {
				return 0, false
			}
			continue
		}
		t1 := (lo[axis] - origin[axis]) / dir[axis]
		t2 := (hi[axis] - origin[axis]) / dir[axis]
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tmin = max(tmin, t1)
		tmax = min(tmax, t2)
	}

	if tmax < 0 || tmin > tmax {
		return 0, false
	}
	if tmin < 0 {
		return tmax, true
	}
	return tmin, true
}
