package lod

import (
	"errors"
	gomath "math"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Faultbox/midgard-planet/internal/cubesphere"
	"github.com/Faultbox/midgard-planet/internal/metrics"
	"github.com/Faultbox/midgard-planet/pkg/math"
)

const testRadius = 100

type flatShape struct{ radius float32 }

func (f flatShape) UnscaledElevation(math.Vec3) float32 { return 0 }
func (f flatShape) ScaledElevation(e float32) float32   { return f.radius * (1 + e) }
func (f flatShape) PlanetRadius() float32               { return f.radius }

type nanShape struct{ flatShape }

func (nanShape) UnscaledElevation(math.Vec3) float32 { return float32(gomath.NaN()) }

type panicShape struct{ flatShape }

func (panicShape) UnscaledElevation(math.Vec3) float32 { panic("noise table not loaded") }

// gateShape blocks elevation lookups while armed until release is closed.
// entered receives a value when the first lookup blocks.
type gateShape struct {
	flatShape
	armed   atomic.Bool
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGateShape() *gateShape {
	return &gateShape{
		flatShape: flatShape{testRadius},
		entered:   make(chan struct{}, 1),
		release:   make(chan struct{}),
	}
}

func (g *gateShape) UnscaledElevation(math.Vec3) float32 {
	if g.armed.Load() {
		select {
		case g.entered <- struct{}{}:
		default:
		}
		<-g.release
	}
	return 0
}

func (g *gateShape) open() {
	g.once.Do(func() { close(g.release) })
}

type countingBiome struct{ calls atomic.Int64 }

func (c *countingBiome) BiomePercent(d math.Vec3) float32 {
	c.calls.Add(1)
	return (d.Y + 1) / 2
}

type nanBiome struct{}

func (nanBiome) BiomePercent(math.Vec3) float32 { return float32(gomath.NaN()) }

type panicBiome struct{}

func (panicBiome) BiomePercent(math.Vec3) float32 { panic("gradient not baked") }

type fakeResource struct {
	face     cubesphere.Face
	coord    cubesphere.Coord
	active   bool
	mesh     *cubesphere.MeshData
	uv       []math.Vec2
	material string
	released bool
	applyErr error
}

func (r *fakeResource) SetActive(active bool)       { r.active = active }
func (r *fakeResource) UpdateUV(uv []math.Vec2)     { r.uv = uv }
func (r *fakeResource) SetMaterial(material string) { r.material = material }
func (r *fakeResource) Release()                    { r.released = true }

func (r *fakeResource) ApplyMesh(mesh *cubesphere.MeshData) error {
	if r.applyErr != nil {
		return r.applyErr
	}
	r.mesh = mesh
	return nil
}

type fakeFactory struct {
	mu        sync.Mutex
	resources map[cubesphere.Coord]*fakeResource
	applyErr  error
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{resources: make(map[cubesphere.Coord]*fakeResource)}
}

func (f *fakeFactory) CreateMeshResource(face cubesphere.Face, coord cubesphere.Coord) MeshResource {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := &fakeResource{face: face, coord: coord, applyErr: f.applyErr}
	f.resources[coord] = r
	return r
}

func (f *fakeFactory) get(c cubesphere.Coord) *fakeResource {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resources[c]
}

// movableViewer lets a test relocate the viewer between ticks.
type movableViewer struct{ pos math.Vec3 }

func (v *movableViewer) Position() math.Vec3 { return v.pos }

type harness struct {
	tree    *Quadtree
	factory *fakeFactory
	biome   *countingBiome
	viewer  *movableViewer
	metrics *metrics.Metrics
}

type harnessOption func(*Config, *Deps)

func withLevels(fractions ...float32) harnessOption {
	return func(c *Config, _ *Deps) {
		d, err := NewDetailLevels(fractions...)
		if err != nil {
			panic(err)
		}
		c.DetailLevels = d
	}
}

func withShape(s cubesphere.ShapeOracle) harnessOption {
	return func(_ *Config, d *Deps) { d.Shape = s }
}

func withBiome(b cubesphere.BiomeOracle) harnessOption {
	return func(_ *Config, d *Deps) { d.Biome = b }
}

func withRetries(n int) harnessOption {
	return func(c *Config, _ *Deps) { c.MaxBuildRetries = n }
}

func newHarness(t *testing.T, face cubesphere.Face, res, perLine int, viewer math.Vec3, opts ...harnessOption) *harness {
	t.Helper()
	h := &harness{
		factory: newFakeFactory(),
		biome:   &countingBiome{},
		viewer:  &movableViewer{pos: viewer},
		metrics: metrics.New(),
	}
	cfg := Config{
		Face:             face,
		Resolution:       res,
		ChunkPerFaceLine: perLine,
		DetailLevels:     DefaultDetailLevels(),
	}
	deps := Deps{
		Shape:   flatShape{testRadius},
		Biome:   h.biome,
		Factory: h.factory,
		Viewer:  h.viewer,
		Metrics: h.metrics,
	}
	for _, o := range opts {
		o(&cfg, &deps)
	}
	tree, err := New(cfg, deps)
	require.NoError(t, err)
	t.Cleanup(tree.Close)
	h.tree = tree
	return h
}

// settle ticks until the tree has nothing left to build for the current
// viewer.
func (h *harness) settle(t *testing.T) {
	t.Helper()
	for range 64 {
		require.NoError(t, h.tree.Tick())
		if h.tree.Settled() {
			return
		}
		h.tree.pipeline.Wait()
	}
	t.Fatalf("tree did not settle: %+v", h.tree.Stats())
}

// rendered returns the rendered leaves.
func (h *harness) rendered() []*Node {
	var out []*Node
	h.tree.Walk(func(n *Node) bool {
		if n.Rendered() {
			out = append(out, n)
		}
		return true
	})
	return out
}

var errApply = errors.New("gpu upload failed")
