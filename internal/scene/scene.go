// Package scene is an in-memory host scene for planet chunks. It is what the
// headless generator renders into and what tests inspect.
package scene

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/Faultbox/midgard-planet/internal/cubesphere"
	"github.com/Faultbox/midgard-planet/internal/lod"
	"github.com/Faultbox/midgard-planet/pkg/math"
)

// ErrReleased is returned when a mesh is applied to a released chunk.
var ErrReleased = errors.New("chunk resource released")

// Scene stores one Chunk per created mesh resource. It is safe for
// concurrent use; the LOD tick writes while exporters and metrics read.
type Scene struct {
	mu     sync.RWMutex
	chunks map[chunkKey]*Chunk
}

type chunkKey struct {
	face  cubesphere.Face
	coord cubesphere.Coord
}

// New creates an empty scene.
func New() *Scene {
	return &Scene{chunks: make(map[chunkKey]*Chunk)}
}

// CreateMeshResource implements lod.ResourceFactory.
func (s *Scene) CreateMeshResource(face cubesphere.Face, coord cubesphere.Coord) lod.MeshResource {
	c := &Chunk{scene: s, face: face, coord: coord}
	s.mu.Lock()
	s.chunks[chunkKey{face, coord}] = c
	s.mu.Unlock()
	return c
}

// Chunk returns the chunk created for face and coord, if any.
func (s *Scene) Chunk(face cubesphere.Face, coord cubesphere.Coord) (*Chunk, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.chunks[chunkKey{face, coord}]
	return c, ok
}

// Chunks returns every live chunk ordered by face, level, row and column.
func (s *Scene) Chunks() []*Chunk {
	s.mu.RLock()
	out := make([]*Chunk, 0, len(s.chunks))
	for _, c := range s.chunks {
		out = append(out, c)
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b *Chunk) int {
		return cmp.Or(
			cmp.Compare(a.face, b.face),
			cmp.Compare(a.coord.Level, b.coord.Level),
			cmp.Compare(a.coord.Y, b.coord.Y),
			cmp.Compare(a.coord.X, b.coord.X),
		)
	})
	return out
}

// ActiveChunks returns the visible chunks in Chunks order.
func (s *Scene) ActiveChunks() []*Chunk {
	var out []*Chunk
	for _, c := range s.Chunks() {
		if c.Active() {
			out = append(out, c)
		}
	}
	return out
}

// Stats summarizes the scene.
type Stats struct {
	Chunks    int
	Active    int
	Vertices  int
	Triangles int
	// Materials counts active chunks per material.
	Materials map[string]int
	Bounds    cubesphere.Bounds
}

// Stats counts chunks and the geometry that is currently visible.
func (s *Scene) Stats() Stats {
	st := Stats{Materials: make(map[string]int)}
	first := true
	for _, c := range s.Chunks() {
		st.Chunks++
		active, mesh, material := c.snapshot()
		if !active {
			continue
		}
		st.Active++
		st.Materials[material]++
		if mesh == nil {
			continue
		}
		st.Vertices += mesh.VertexCount()
		st.Triangles += mesh.TriangleCount()
		if first {
			st.Bounds = mesh.Bounds
			first = false
		} else {
			st.Bounds.Min = st.Bounds.Min.Min(mesh.Bounds.Min)
			st.Bounds.Max = st.Bounds.Max.Max(mesh.Bounds.Max)
		}
	}
	return st
}

func (s *Scene) remove(c *Chunk) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := chunkKey{c.face, c.coord}
	if s.chunks[key] == c {
		delete(s.chunks, key)
	}
}

// Chunk is a mesh resource living in a Scene.
type Chunk struct {
	scene *Scene
	face  cubesphere.Face
	coord cubesphere.Coord

	mu       sync.RWMutex
	active   bool
	mesh     *cubesphere.MeshData
	material string
	released bool
}

// Face returns the cube face of the chunk.
func (c *Chunk) Face() cubesphere.Face { return c.face }

// Coord returns the chunk coordinate.
func (c *Chunk) Coord() cubesphere.Coord { return c.coord }

// Name is a stable identifier like "top_2_1_3" (face, level, x, y).
func (c *Chunk) Name() string {
	return fmt.Sprintf("%s_%d_%d_%d", c.face, c.coord.Level, c.coord.X, c.coord.Y)
}

// Active reports whether the chunk is visible.
func (c *Chunk) Active() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.active
}

// Mesh returns the applied mesh, or nil.
func (c *Chunk) Mesh() *cubesphere.MeshData {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mesh
}

// Material returns the assigned material name.
func (c *Chunk) Material() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.material
}

func (c *Chunk) snapshot() (bool, *cubesphere.MeshData, string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.active, c.mesh, c.material
}

// SetActive shows or hides the chunk.
func (c *Chunk) SetActive(active bool) {
	c.mu.Lock()
	c.active = active
	c.mu.Unlock()
}

// ApplyMesh stores a copy of the mesh header; the slices are shared, which
// is fine because the producer never touches them again.
func (c *Chunk) ApplyMesh(mesh *cubesphere.MeshData) error {
	if mesh == nil {
		return fmt.Errorf("%w: nil mesh for %s", cubesphere.ErrOracleFailure, c.Name())
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.released {
		return fmt.Errorf("%s: %w", c.Name(), ErrReleased)
	}
	m := *mesh
	c.mesh = &m
	return nil
}

// UpdateUV replaces the mesh UVs.
func (c *Chunk) UpdateUV(uv []math.Vec2) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mesh == nil {
		return
	}
	m := *c.mesh
	m.UV = uv
	c.mesh = &m
}

// SetMaterial assigns a material by name.
func (c *Chunk) SetMaterial(material string) {
	c.mu.Lock()
	c.material = material
	c.mu.Unlock()
}

// Release removes the chunk from its scene.
func (c *Chunk) Release() {
	c.mu.Lock()
	c.released = true
	c.active = false
	c.mesh = nil
	c.mu.Unlock()
	c.scene.remove(c)
}
