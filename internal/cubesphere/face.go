// Package cubesphere builds sphere surface patches from deformed cube faces.
//
// A planet is six cube faces, each split into a grid of chunks. Every chunk is
// sampled on a regular grid in face space, projected onto the unit sphere and
// pushed out to the radius reported by a ShapeOracle.
package cubesphere

import (
	"fmt"
	"strings"

	"github.com/Faultbox/midgard-planet/pkg/math"
)

// Face identifies one of the six cube faces.
type Face int

const (
	FaceUp Face = iota
	FaceDown
	FaceLeft
	FaceRight
	FaceForward
	FaceBack
)

// Faces lists all cube faces in build order.
var Faces = [6]Face{FaceUp, FaceDown, FaceLeft, FaceRight, FaceForward, FaceBack}

var faceNames = [6]string{"top", "bottom", "left", "right", "front", "back"}

// Direction returns the outward unit normal of the face.
func (f Face) Direction() math.Vec3 {
	switch f {
	case FaceUp:
		return math.Up
	case FaceDown:
		return math.Down
	case FaceLeft:
		return math.Left
	case FaceRight:
		return math.Right
	case FaceForward:
		return math.Forward
	case FaceBack:
		return math.Back
	}
	return math.Vec3{}
}

// Valid reports whether f is one of the six faces.
func (f Face) Valid() bool {
	return f >= FaceUp && f <= FaceBack
}

func (f Face) String() string {
	if !f.Valid() {
		return fmt.Sprintf("Face(%d)", int(f))
	}
	return faceNames[f]
}

// ParseFace converts a face name ("top", "bottom", "left", "right", "front",
// "back") to a Face.
func ParseFace(name string) (Face, error) {
	for i, n := range faceNames {
		if strings.EqualFold(n, name) {
			return Face(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown face %q", ErrInvalidConfiguration, name)
}

// Basis holds a face direction and the two tangent axes spanning the face.
type Basis struct {
	Up    math.Vec3
	AxisA math.Vec3
	AxisB math.Vec3
}

// NewBasis derives the tangent axes of a face from its direction. The rule is a
// cyclic permutation of the direction's components, so AxisA x AxisB == up for
// every axis-aligned direction.
func NewBasis(up math.Vec3) Basis {
	axisA := math.Vec3{X: up.Y, Y: up.Z, Z: up.X}
	return Basis{
		Up:    up,
		AxisA: axisA,
		AxisB: up.Cross(axisA),
	}
}

// PointOnCube maps face percentages in [0,1] to a point on the unit cube.
func (b Basis) PointOnCube(px, py float32) math.Vec3 {
	return b.Up.
		Add(b.AxisA.Scale((px - 0.5) * 2)).
		Add(b.AxisB.Scale((py - 0.5) * 2))
}

// PointOnUnitSphere maps face percentages onto the unit sphere.
func (b Basis) PointOnUnitSphere(px, py float32) math.Vec3 {
	return b.PointOnCube(px, py).Normalize()
}
