package cubesphere

import (
	"fmt"

	"github.com/Faultbox/midgard-planet/pkg/math"
)

// MeshData is the geometry of one chunk, ready to hand to a render resource.
// UV.Y holds the unscaled elevation, UV.X the biome percentage once the UV pass
// has run.
type MeshData struct {
	Vertices  []math.Vec3
	Triangles []uint32
	UV        []math.Vec2
	Normals   []math.Vec3
	Bounds    Bounds
}

// Bounds is the axis-aligned bounding box of a mesh.
type Bounds struct {
	Min math.Vec3
	Max math.Vec3
}

// VertexCount returns the number of vertices.
func (m *MeshData) VertexCount() int {
	return len(m.Vertices)
}

// TriangleCount returns the number of triangles.
func (m *MeshData) TriangleCount() int {
	return len(m.Triangles) / 3
}

// Validate checks that the mesh is internally consistent and free of NaN or
// infinite values. A mesh that fails validation must never reach the scene.
func (m *MeshData) Validate() error {
	if m == nil {
		return fmt.Errorf("%w: nil mesh", ErrOracleFailure)
	}
	n := len(m.Vertices)
	if len(m.Normals) != n || len(m.UV) != n {
		return fmt.Errorf("mesh attribute mismatch: %d vertices, %d normals, %d uvs",
			n, len(m.Normals), len(m.UV))
	}
	if len(m.Triangles)%3 != 0 {
		return fmt.Errorf("triangle index count %d is not a multiple of 3", len(m.Triangles))
	}
	for _, idx := range m.Triangles {
		if int(idx) >= n {
			return fmt.Errorf("triangle index %d out of range (%d vertices)", idx, n)
		}
	}
	for i := range m.Vertices {
		if !m.Vertices[i].IsFinite() || !m.Normals[i].IsFinite() || !m.UV[i].IsFinite() {
			return fmt.Errorf("%w: non-finite data at vertex %d", ErrOracleFailure, i)
		}
	}
	return nil
}

func boundsOf(points []math.Vec3) Bounds {
	if len(points) == 0 {
		return Bounds{}
	}
	b := Bounds{Min: points[0], Max: points[0]}
	for _, p := range points[1:] {
		b.Min = b.Min.Min(p)
		b.Max = b.Max.Max(p)
	}
	return b
}
