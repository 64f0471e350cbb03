package renderer

import (
	"unsafe"

	"github.com/go-gl/gl/v4.1-core/gl"

	"github.com/Faultbox/midgard-planet/internal/cubesphere"
	"github.com/Faultbox/midgard-planet/internal/lod"
	"github.com/Faultbox/midgard-planet/pkg/math"
)

// position(3) + normal(3) + uv(2)
const vertexStride = 8

// ChunkFactory wraps a host factory so every chunk it creates is also
// uploaded to the GPU. The wrapped resources keep receiving every call.
type ChunkFactory struct {
	r    *Renderer
	host lod.ResourceFactory
}

// Factory returns a lod.ResourceFactory that mirrors host into GPU buffers.
func (r *Renderer) Factory(host lod.ResourceFactory) *ChunkFactory {
	return &ChunkFactory{r: r, host: host}
}

// CreateMeshResource implements lod.ResourceFactory.
func (f *ChunkFactory) CreateMeshResource(face cubesphere.Face, coord cubesphere.Coord) lod.MeshResource {
	c := &glChunk{r: f.r, host: f.host.CreateMeshResource(face, coord)}
	f.r.chunks[c] = struct{}{}
	return c
}

// glChunk owns the vertex array of one chunk. All calls arrive on the tick
// goroutine, which is the GL thread in the viewer.
type glChunk struct {
	r    *Renderer
	host lod.MeshResource

	vao, vbo, ebo uint32
	indexCount    int32
	vertices      []float32
	active        bool
	failed        bool
}

func (c *glChunk) SetActive(active bool) {
	c.active = active
	c.host.SetActive(active)
}

func (c *glChunk) ApplyMesh(mesh *cubesphere.MeshData) error {
	if err := c.host.ApplyMesh(mesh); err != nil {
		return err
	}
	c.vertices = interleave(mesh)
	c.upload(mesh.Triangles)
	return nil
}

func (c *glChunk) UpdateUV(uv []math.Vec2) {
	c.host.UpdateUV(uv)
	if writeUV(c.vertices, uv) && c.vbo != 0 {
		gl.BindBuffer(gl.ARRAY_BUFFER, c.vbo)
		gl.BufferSubData(gl.ARRAY_BUFFER, 0, len(c.vertices)*4, unsafe.Pointer(&c.vertices[0]))
		gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	}
}

func (c *glChunk) SetMaterial(material string) {
	c.failed = material == lod.MaterialFailed
	c.host.SetMaterial(material)
}

func (c *glChunk) Release() {
	c.free()
	delete(c.r.chunks, c)
	c.host.Release()
}

func (c *glChunk) drawable() bool {
	return c.active && c.vao != 0 && c.indexCount > 0
}

func (c *glChunk) upload(indices []uint32) {
	if len(c.vertices) == 0 || len(indices) == 0 {
		return
	}
	if c.vao == 0 {
		gl.GenVertexArrays(1, &c.vao)
		gl.GenBuffers(1, &c.vbo)
		gl.GenBuffers(1, &c.ebo)
	}
	gl.BindVertexArray(c.vao)

	gl.BindBuffer(gl.ARRAY_BUFFER, c.vbo)
	gl.BufferData(gl.ARRAY_BUFFER, len(c.vertices)*4, unsafe.Pointer(&c.vertices[0]), gl.DYNAMIC_DRAW)

	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, c.ebo)
	gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, len(indices)*4, unsafe.Pointer(&indices[0]), gl.STATIC_DRAW)

	// Position attribute (location = 0)
	gl.VertexAttribPointerWithOffset(0, 3, gl.FLOAT, false, vertexStride*4, 0)
	gl.EnableVertexAttribArray(0)
	// Normal attribute (location = 1)
	gl.VertexAttribPointerWithOffset(1, 3, gl.FLOAT, false, vertexStride*4, 3*4)
	gl.EnableVertexAttribArray(1)
	// UV attribute (location = 2)
	gl.VertexAttribPointerWithOffset(2, 2, gl.FLOAT, false, vertexStride*4, 6*4)
	gl.EnableVertexAttribArray(2)

	gl.BindVertexArray(0)
	c.indexCount = int32(len(indices))
}

func (c *glChunk) free() {
	if c.vao != 0 {
		gl.DeleteVertexArrays(1, &c.vao)
		gl.DeleteBuffers(1, &c.vbo)
		gl.DeleteBuffers(1, &c.ebo)
		c.vao, c.vbo, c.ebo = 0, 0, 0
	}
	c.indexCount = 0
}

// interleave packs a mesh into the vertex layout the chunk shader expects.
func interleave(mesh *cubesphere.MeshData) []float32 {
	out := make([]float32, 0, len(mesh.Vertices)*vertexStride)
	for i, v := range mesh.Vertices {
		n := mesh.Normals[i]
		uv := mesh.UV[i]
		out = append(out, v.X, v.Y, v.Z, n.X, n.Y, n.Z, uv.X, uv.Y)
	}
	return out
}

// writeUV overwrites the uv slots of an interleaved buffer. It reports false
// when the counts disagree and nothing was written.
func writeUV(vertices []float32, uv []math.Vec2) bool {
	if len(uv) == 0 || len(vertices) != len(uv)*vertexStride {
		return false
	}
	for i, t := range uv {
		vertices[i*vertexStride+6] = t.X
		vertices[i*vertexStride+7] = t.Y
	}
	return true
}
