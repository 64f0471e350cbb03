package lod

import (
	"github.com/Faultbox/midgard-planet/internal/cubesphere"
	"github.com/Faultbox/midgard-planet/pkg/math"
)

// MaterialFailed is assigned to chunks whose mesh could not be built, so the
// failure is visible in the scene instead of leaving a hole.
const MaterialFailed = "failed"

// MeshResource is a renderable mesh owned by exactly one chunk node.
// All methods are called from the tick goroutine.
type MeshResource interface {
	SetActive(active bool)
	ApplyMesh(mesh *cubesphere.MeshData) error
	UpdateUV(uv []math.Vec2)
	SetMaterial(material string)
	Release()
}

// ResourceFactory creates mesh resources in the host scene. Resources start
// inactive.
type ResourceFactory interface {
	CreateMeshResource(face cubesphere.Face, coord cubesphere.Coord) MeshResource
}

// Viewer reports the world-space point LOD is computed against.
type Viewer interface {
	Position() math.Vec3
}

// ViewerFunc adapts a function to the Viewer interface.
type ViewerFunc func() math.Vec3

// Position calls f.
func (f ViewerFunc) Position() math.Vec3 {
	return f()
}

// FixedViewer is a Viewer that never moves.
type FixedViewer math.Vec3

// Position returns the fixed point.
func (v FixedViewer) Position() math.Vec3 {
	return math.Vec3(v)
}
