package cubesphere

import (
	"context"
	"fmt"

	"github.com/Faultbox/midgard-planet/pkg/math"
)

// ChunkSpec describes one chunk to mesh.
type ChunkSpec struct {
	Resolution       int // vertices per chunk side, >= 2
	ChunkPerFaceLine int // chunks per face side at level 0, >= 1
	Coord            Coord
	Basis            Basis
}

// Validate rejects specs that cannot be meshed.
func (s ChunkSpec) Validate() error {
	if s.Resolution < 2 || s.Resolution > MaxResolution {
		return fmt.Errorf("%w: resolution %d, want 2..%d", ErrInvalidConfiguration, s.Resolution, MaxResolution)
	}
	if s.ChunkPerFaceLine < 1 || s.ChunkPerFaceLine > MaxChunkPerFaceLine {
		return fmt.Errorf("%w: chunkPerFaceLine %d, want 1..%d", ErrInvalidConfiguration, s.ChunkPerFaceLine, MaxChunkPerFaceLine)
	}
	if !s.Coord.InRange(s.ChunkPerFaceLine) {
		return fmt.Errorf("%w: chunk %s outside face grid", ErrInvalidConfiguration, s.Coord)
	}
	return nil
}

// percent maps a bordered-grid sample to face percentages. Grid sample
// (1,1) is the chunk's first visible vertex, so border samples fall just
// outside [0,1] at the face edges.
func (s ChunkSpec) percent(gx, gy float32) (float32, float32) {
	step := float32(s.Resolution - 1)
	lines := float32(ChunksPerLine(s.ChunkPerFaceLine, s.Coord.Level))
	px := (gx - 1 + float32(s.Coord.X)*step) / step / lines
	py := (gy - 1 + float32(s.Coord.Y)*step) / step / lines
	return px, py
}

// Direction returns the unit-sphere direction of bordered-grid sample (gx,gy).
func (s ChunkSpec) Direction(gx, gy int) math.Vec3 {
	return s.Basis.PointOnUnitSphere(s.percent(float32(gx), float32(gy)))
}

// CenterDirection returns the unit-sphere direction of the chunk midpoint.
func (s ChunkSpec) CenterDirection() math.Vec3 {
	mid := 1 + float32(s.Resolution-1)/2
	return s.Basis.PointOnUnitSphere(s.percent(mid, mid))
}

// BuildChunk meshes one chunk.
//
// The chunk is sampled on a (R+2)x(R+2) grid: the extra ring lies in the
// neighbouring chunks and only feeds normal accumulation, which keeps normals
// continuous across chunk edges at the same level. Interior samples get
// indices 0..R*R-1, ring samples get -1, -2, ... into a separate buffer.
//
// BuildChunk is a pure function of its inputs and may run on any goroutine.
// ctx is checked once per grid row.
func BuildChunk(ctx context.Context, spec ChunkSpec, shape ShapeOracle) (*MeshData, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	res := spec.Resolution
	bordered := res + 2

	vertices := make([]math.Vec3, res*res)
	borderVertices := make([]math.Vec3, res*4+4)
	uv := make([]math.Vec2, len(vertices))

	tris := triangleBuffers{
		interior: make([]uint32, (res-1)*(res-1)*6),
		border:   make([]int, 6*4*res),
	}

	indexMap := make([]int, bordered*bordered)
	meshIndex, borderIndex := 0, -1
	for y := range bordered {
		for x := range bordered {
			if y == 0 || y == bordered-1 || x == 0 || x == bordered-1 {
				indexMap[y*bordered+x] = borderIndex
				borderIndex--
			} else {
				indexMap[y*bordered+x] = meshIndex
				meshIndex++
			}
		}
	}

	for y := range bordered {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for x := range bordered {
			idx := indexMap[y*bordered+x]

			dir := spec.Direction(x, y)
			elevation := shape.UnscaledElevation(dir)
			radius := shape.ScaledElevation(elevation)
			if !math.IsFinite(elevation) || !math.IsFinite(radius) {
				return nil, fmt.Errorf("%w: elevation %v radius %v at sample (%d,%d) of chunk %s",
					ErrOracleFailure, elevation, radius, x, y, spec.Coord)
			}

			pos := dir.Scale(radius)
			if idx < 0 {
				borderVertices[-idx-1] = pos
			} else {
				vertices[idx] = pos
				uv[idx].Y = elevation
			}

			if x < bordered-1 && y < bordered-1 {
				a := idx
				b := indexMap[y*bordered+x+1]
				c := indexMap[(y+1)*bordered+x]
				d := indexMap[(y+1)*bordered+x+1]
				tris.add(a, d, c)
				tris.add(a, b, d)
			}
		}
	}

	return &MeshData{
		Vertices:  vertices,
		Triangles: tris.interior[:tris.interiorLen],
		UV:        uv,
		Normals:   computeNormals(vertices, borderVertices, &tris),
		Bounds:    boundsOf(vertices),
	}, nil
}

// triangleBuffers collects triangles into preallocated buffers. A triangle
// touching any border sample goes to the border list and is only used for
// normals.
type triangleBuffers struct {
	interior    []uint32
	interiorLen int
	border      []int
	borderLen   int
}

func (t *triangleBuffers) add(a, b, c int) {
	if a < 0 || b < 0 || c < 0 {
		t.border[t.borderLen] = a
		t.border[t.borderLen+1] = b
		t.border[t.borderLen+2] = c
		t.borderLen += 3
		return
	}
	t.interior[t.interiorLen] = uint32(a)
	t.interior[t.interiorLen+1] = uint32(b)
	t.interior[t.interiorLen+2] = uint32(c)
	t.interiorLen += 3
}

// computeNormals accumulates unit face normals of every triangle, interior and
// border, onto the interior vertices and normalizes the sums.
func computeNormals(vertices, borderVertices []math.Vec3, tris *triangleBuffers) []math.Vec3 {
	normals := make([]math.Vec3, len(vertices))
	point := func(i int) math.Vec3 {
		if i < 0 {
			return borderVertices[-i-1]
		}
		return vertices[i]
	}
	accumulate := func(a, b, c int) {
		pa, pb, pc := point(a), point(b), point(c)
		n := pb.Sub(pa).Cross(pc.Sub(pa)).Normalize()
		for _, i := range [3]int{a, b, c} {
			if i >= 0 {
				normals[i] = normals[i].Add(n)
			}
		}
	}

	for i := 0; i < tris.interiorLen; i += 3 {
		accumulate(int(tris.interior[i]), int(tris.interior[i+1]), int(tris.interior[i+2]))
	}
	for i := 0; i < tris.borderLen; i += 3 {
		accumulate(tris.border[i], tris.border[i+1], tris.border[i+2])
	}

	for i := range normals {
		normals[i] = normals[i].Normalize()
	}
	return normals
}

// BiomeUV returns a copy of uv with X set to the biome percentage of every
// visible vertex. Visible vertex (vx,vy) is bordered-grid sample (vx+1,vy+1)
// and has mesh index vx+vy*R.
func (s ChunkSpec) BiomeUV(uv []math.Vec2, biome BiomeOracle) ([]math.Vec2, error) {
	res := s.Resolution
	if len(uv) != res*res {
		return nil, fmt.Errorf("uv length %d does not match resolution %d", len(uv), res)
	}
	out := make([]math.Vec2, len(uv))
	copy(out, uv)
	for vy := range res {
		for vx := range res {
			p := biome.BiomePercent(s.Direction(vx+1, vy+1))
			if !math.IsFinite(p) {
				return nil, fmt.Errorf("%w: biome %v at vertex (%d,%d) of chunk %s",
					ErrOracleFailure, p, vx, vy, s.Coord)
			}
			out[vx+vy*res].X = p
		}
	}
	return out, nil
}
