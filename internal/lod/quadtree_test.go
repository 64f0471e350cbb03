package lod

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/midgard-planet/internal/cubesphere"
	"github.com/Faultbox/midgard-planet/pkg/math"
)

// above returns the point height radii from the planet center along the
// surface direction at face percentages (px,py).
func above(face cubesphere.Face, px, py, height float32) math.Vec3 {
	return cubesphere.NewBasis(face.Direction()).PointOnUnitSphere(px, py).Scale(height * testRadius)
}

func TestNewValidation(t *testing.T) {
	valid := func() (Config, Deps) {
		return Config{
				Face:             cubesphere.FaceUp,
				Resolution:       4,
				ChunkPerFaceLine: 1,
				DetailLevels:     DefaultDetailLevels(),
			}, Deps{
				Shape:   flatShape{testRadius},
				Biome:   &countingBiome{},
				Factory: newFakeFactory(),
				Viewer:  FixedViewer{},
			}
	}

	tests := []struct {
		name   string
		mutate func(*Config, *Deps)
	}{
		{"bad face", func(c *Config, _ *Deps) { c.Face = cubesphere.Face(9) }},
		{"resolution 1", func(c *Config, _ *Deps) { c.Resolution = 1 }},
		{"no chunks per line", func(c *Config, _ *Deps) { c.ChunkPerFaceLine = 0 }},
		{"empty detail table", func(c *Config, _ *Deps) { c.DetailLevels = DetailLevels{} }},
		{"resolution too large", func(c *Config, _ *Deps) { c.Resolution = cubesphere.MaxResolution + 1 }},
		{"chunks per line too large", func(c *Config, _ *Deps) { c.ChunkPerFaceLine = cubesphere.MaxChunkPerFaceLine + 1 }},
		{"too many detail levels", func(c *Config, _ *Deps) {
			c.DetailLevels = DetailLevels{fractions: make([]float32, MaxDetailLevels+1)}
		}},
		{"negative retries", func(c *Config, _ *Deps) { c.MaxBuildRetries = -1 }},
		{"no shape", func(_ *Config, d *Deps) { d.Shape = nil }},
		{"no biome", func(_ *Config, d *Deps) { d.Biome = nil }},
		{"no factory", func(_ *Config, d *Deps) { d.Factory = nil }},
		{"no viewer", func(_ *Config, d *Deps) { d.Viewer = nil }},
		{"zero radius", func(_ *Config, d *Deps) { d.Shape = flatShape{0} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, deps := valid()
			tt.mutate(&cfg, &deps)
			_, err := New(cfg, deps)
			require.ErrorIs(t, err, cubesphere.ErrInvalidConfiguration)
		})
	}

	cfg, deps := valid()
	cfg.ChunkPerFaceLine = 3
	q, err := New(cfg, deps)
	require.NoError(t, err)
	defer q.Close()
	assert.Len(t, q.Roots(), 9)
	assert.Equal(t, cubesphere.FaceUp, q.Face())
}

func TestQuadtreeFarViewerRendersRoot(t *testing.T) {
	h := newHarness(t, cubesphere.FaceUp, 4, 1, above(cubesphere.FaceUp, 0.5, 0.5, 11))
	h.settle(t)

	stats := h.tree.Stats()
	assert.Equal(t, 1, stats.Nodes)
	assert.Equal(t, 1, stats.Rendered)
	assert.Equal(t, map[uint32]int{0: 1}, stats.RenderedByLevel)

	root := h.tree.Roots()[0]
	assert.True(t, root.Rendered())
	assert.True(t, root.Active())
	assert.Empty(t, root.Children())
	require.NotNil(t, root.Mesh())
	assert.Len(t, root.Mesh().Vertices, 16)
	assert.Len(t, root.Mesh().Triangles, 54)

	res := h.factory.get(root.Coord())
	require.NotNil(t, res)
	assert.True(t, res.active)
	assert.Equal(t, DefaultMaterial, res.material)
	assert.Same(t, root.Mesh(), res.mesh)
	assert.Len(t, res.uv, 16)

	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.BuildsScheduled))
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.BuildsApplied))
}

func TestQuadtreeNearViewerSubdividesToMaxLevel(t *testing.T) {
	viewer := above(cubesphere.FaceUp, 0.5, 0.5, 1.05)
	h := newHarness(t, cubesphere.FaceUp, 4, 1, viewer)
	h.settle(t)

	stats := h.tree.Stats()
	assert.Equal(t, uint32(6), stats.DeepestLevel)
	assert.Positive(t, stats.RenderedByLevel[6])

	level, ok := h.tree.NearestRenderedLevel(viewer)
	require.True(t, ok)
	assert.Equal(t, uint32(6), level)

	for _, n := range h.rendered() {
		assert.True(t, n.Active(), "rendered leaf %s must be visible", n.Coord())
		assert.True(t, n.MeshGenerated())
		assert.True(t, n.UVGenerated())
	}
}

func TestQuadtreeRenderedLeavesPartitionFace(t *testing.T) {
	const perLine = 2
	h := newHarness(t, cubesphere.FaceLeft, 5, perLine, above(cubesphere.FaceLeft, 0.3, 0.4, 1.1))
	h.settle(t)

	var covered float64
	for _, n := range h.rendered() {
		covered += 1 / float64(uint64(1)<<(2*n.Coord().Level))
	}
	assert.Equal(t, float64(perLine*perLine), covered)

	// No rendered leaf may sit under another rendered node, and only
	// rendered leaves stay visible once settled.
	var check func(n *Node, underRendered bool)
	check = func(n *Node, underRendered bool) {
		if n.Rendered() {
			assert.False(t, underRendered, "%s is rendered below a rendered ancestor", n.Coord())
		}
		assert.Equal(t, n.Rendered(), n.Active(), "%s", n.Coord())
		for _, c := range n.Children() {
			check(c, underRendered || n.Rendered())
		}
	}
	for _, r := range h.tree.Roots() {
		check(r, false)
	}
}

func TestQuadtreeDetailFollowsViewer(t *testing.T) {
	face := cubesphere.FaceForward
	h := newHarness(t, face, 4, 1, above(face, 0.3, 0.4, 11))
	heights := []float32{11, 3, 2, 1.6, 1.3, 1.15, 1.08, 1.04, 1.01}

	var last uint32
	for _, height := range heights {
		h.viewer.pos = above(face, 0.3, 0.4, height)
		h.settle(t)
		deepest := h.tree.Stats().DeepestLevel
		assert.GreaterOrEqual(t, deepest, last, "approaching at %.2fr", height)
		last = deepest
	}
	assert.Equal(t, uint32(6), last)
	scheduled := testutil.ToFloat64(h.metrics.BuildsScheduled)

	for i := len(heights) - 1; i >= 0; i-- {
		h.viewer.pos = above(face, 0.3, 0.4, heights[i])
		h.settle(t)
		deepest := h.tree.Stats().DeepestLevel
		assert.LessOrEqual(t, deepest, last, "retreating at %.2fr", heights[i])
		last = deepest
	}
	assert.Zero(t, last)
	assert.Equal(t, scheduled, testutil.ToFloat64(h.metrics.BuildsScheduled),
		"retreating must reuse meshes built on the way in")

	root := h.tree.Roots()[0]
	assert.True(t, root.Active())
	assert.NotEmpty(t, root.Children(), "collapsed children are kept")
	h.tree.Walk(func(n *Node) bool {
		if n != root {
			assert.False(t, n.Active(), "%s", n.Coord())
			assert.False(t, h.factory.get(n.Coord()).active, "%s", n.Coord())
		}
		return true
	})

	// Coming back needs no new builds either.
	h.viewer.pos = above(face, 0.3, 0.4, 1.01)
	h.settle(t)
	assert.Equal(t, uint32(6), h.tree.Stats().DeepestLevel)
	assert.Equal(t, scheduled, testutil.ToFloat64(h.metrics.BuildsScheduled))
}

func TestQuadtreeBiomeUVsWrittenOnce(t *testing.T) {
	h := newHarness(t, cubesphere.FaceRight, 4, 1, above(cubesphere.FaceRight, 0.5, 0.5, 11))
	h.settle(t)
	assert.Equal(t, int64(16), h.biome.calls.Load())

	root := h.tree.Roots()[0]
	mesh := root.Mesh()
	for i, v := range mesh.Vertices {
		dir := v.Normalize()
		assert.InDelta(t, (dir.Y+1)/2, mesh.UV[i].X, 1e-5)
		assert.Zero(t, mesh.UV[i].Y)
	}

	for range 3 {
		require.NoError(t, h.tree.Tick())
	}
	assert.Equal(t, int64(16), h.biome.calls.Load())
	assert.True(t, root.UVGenerated())
}

func TestQuadtreePassesOutOfOrder(t *testing.T) {
	t.Run("children missing", func(t *testing.T) {
		// The viewer position is unset before the first UpdateTree, which
		// puts it at the planet center, inside every split distance.
		h := newHarness(t, cubesphere.FaceUp, 4, 1, above(cubesphere.FaceUp, 0.5, 0.5, 11))
		require.ErrorIs(t, h.tree.ConstructPendingMeshes(), ErrInconsistentTree)
		require.ErrorIs(t, h.tree.UpdateUVs(), ErrInconsistentTree)
	})

	t.Run("leaf not rendered", func(t *testing.T) {
		h := newHarness(t, cubesphere.FaceUp, 4, 1, above(cubesphere.FaceUp, 0.5, 0.5, 11), withLevels(0.5, 0.25))
		require.ErrorIs(t, h.tree.ConstructPendingMeshes(), ErrInconsistentTree)
	})
}

func TestQuadtreeBuildFailureRetriesThenMarksFailed(t *testing.T) {
	h := newHarness(t, cubesphere.FaceDown, 4, 1, above(cubesphere.FaceDown, 0.5, 0.5, 11),
		withShape(nanShape{flatShape{testRadius}}), withRetries(2))
	h.settle(t)

	root := h.tree.Roots()[0]
	require.ErrorIs(t, root.Failure(), cubesphere.ErrOracleFailure)
	assert.False(t, root.MeshGenerated())
	assert.True(t, root.Active())
	assert.Equal(t, MaterialFailed, h.factory.get(root.Coord()).material)

	assert.Equal(t, float64(3), testutil.ToFloat64(h.metrics.BuildsScheduled))
	assert.Equal(t, float64(3), testutil.ToFloat64(h.metrics.BuildsFailed))
	assert.Equal(t, 1, h.tree.Stats().Failed)

	require.NoError(t, h.tree.Tick())
	assert.Equal(t, float64(3), testutil.ToFloat64(h.metrics.BuildsScheduled), "failed chunks are not rebuilt")
}

func TestQuadtreeBiomeFailureRetriesThenMarksFailed(t *testing.T) {
	for name, biome := range map[string]cubesphere.BiomeOracle{
		"nan":   nanBiome{},
		"panic": panicBiome{},
	} {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t, cubesphere.FaceUp, 4, 1, above(cubesphere.FaceUp, 0.5, 0.5, 11),
				withBiome(biome), withRetries(2))
			require.NotPanics(t, func() { h.settle(t) })

			root := h.tree.Roots()[0]
			require.ErrorIs(t, root.Failure(), cubesphere.ErrOracleFailure)
			assert.True(t, root.MeshGenerated())
			assert.False(t, root.UVGenerated())
			assert.Equal(t, MaterialFailed, h.factory.get(root.Coord()).material)
			assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.BuildsScheduled), "uv retries reuse the mesh")
			assert.Equal(t, float64(3), testutil.ToFloat64(h.metrics.BuildsFailed))
			assert.Equal(t, 1, h.tree.Stats().Failed)

			for range 5 {
				require.NoError(t, h.tree.Tick())
			}
			assert.Equal(t, float64(3), testutil.ToFloat64(h.metrics.BuildsFailed), "failed chunks are not recoloured")
		})
	}
}

func TestQuadtreeCenterPanicFallsBackToRadius(t *testing.T) {
	h := newHarness(t, cubesphere.FaceUp, 4, 1, above(cubesphere.FaceUp, 0.5, 0.5, 11),
		withShape(panicShape{flatShape{testRadius}}), withRetries(0))
	require.NotPanics(t, func() { h.settle(t) })

	root := h.tree.Roots()[0]
	want := root.spec.CenterDirection().Scale(testRadius)
	assert.InDelta(t, 0, h.tree.worldCenter(root).Sub(want).Length(), 1e-4)
}

func TestQuadtreeApplyFailure(t *testing.T) {
	h := newHarness(t, cubesphere.FaceUp, 4, 1, above(cubesphere.FaceUp, 0.5, 0.5, 11))
	h.factory.applyErr = errApply
	h.settle(t)

	root := h.tree.Roots()[0]
	require.ErrorIs(t, root.Failure(), errApply)
	assert.Nil(t, root.Mesh())
	assert.Zero(t, h.biome.calls.Load())
}

func TestQuadtreeCollapseCancelsRunningBuilds(t *testing.T) {
	gate := newGateShape()
	h := newHarness(t, cubesphere.FaceUp, 4, 1, above(cubesphere.FaceUp, 0.5, 0.5, 1.05),
		withShape(gate), withLevels(1.0, 0.5))
	t.Cleanup(gate.open)

	h.tree.UpdateTree()
	root := h.tree.Roots()[0]
	require.Len(t, root.Children(), 4)

	gate.armed.Store(true)
	require.NoError(t, h.tree.ConstructPendingMeshes())
	for _, c := range root.Children() {
		assert.True(t, c.MeshGenerating())
	}

	h.viewer.pos = above(cubesphere.FaceUp, 0.5, 0.5, 11)
	require.NoError(t, h.tree.Tick())
	for _, c := range root.Children() {
		assert.False(t, c.Active())
		assert.False(t, c.MeshGenerating())
		assert.Equal(t, uint64(1), c.Generation())
	}
	assert.Equal(t, float64(4), testutil.ToFloat64(h.metrics.BuildsCanceled))
	assert.True(t, root.Active())

	gate.open()
	h.settle(t)
	assert.True(t, root.MeshGenerated())
	for _, c := range root.Children() {
		assert.Nil(t, c.Mesh())
	}
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.BuildsApplied))
	assert.Zero(t, testutil.ToFloat64(h.metrics.BuildsStale))
}

func TestQuadtreeClose(t *testing.T) {
	h := newHarness(t, cubesphere.FaceBack, 4, 1, above(cubesphere.FaceBack, 0.5, 0.5, 1.5))
	h.settle(t)
	h.tree.Close()

	h.tree.Walk(func(n *Node) bool {
		if r := h.factory.get(n.Coord()); r != nil {
			assert.True(t, r.released, "%s", n.Coord())
		}
		assert.False(t, n.Active())
		return true
	})
}

func TestStatsAdd(t *testing.T) {
	var total Stats
	total.Add(Stats{Nodes: 5, Rendered: 4, RenderedByLevel: map[uint32]int{1: 4}, DeepestLevel: 1})
	total.Add(Stats{Nodes: 1, Rendered: 1, Failed: 1, RenderedByLevel: map[uint32]int{0: 1}})
	assert.Equal(t, 6, total.Nodes)
	assert.Equal(t, 5, total.Rendered)
	assert.Equal(t, 1, total.Failed)
	assert.Equal(t, map[uint32]int{0: 1, 1: 4}, total.RenderedByLevel)
	assert.Equal(t, uint32(1), total.DeepestLevel)
}

func TestQuadtreeDiscardsStaleResult(t *testing.T) {
	h := newHarness(t, cubesphere.FaceUp, 4, 1, above(cubesphere.FaceUp, 0.5, 0.5, 11))
	h.tree.UpdateTree()
	root := h.tree.Roots()[0]
	require.True(t, root.Rendered())

	mesh, err := cubesphere.BuildChunk(context.Background(), root.spec, flatShape{testRadius})
	require.NoError(t, err)

	h.tree.applyResult(root, Result{Mesh: mesh, Generation: root.Generation() + 1})
	assert.False(t, root.MeshGenerated())
	assert.Nil(t, h.factory.get(root.Coord()).mesh)
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.BuildsStale))

	h.tree.applyResult(root, Result{Mesh: mesh, Generation: root.Generation()})
	assert.True(t, root.MeshGenerated())
	assert.Same(t, mesh, h.factory.get(root.Coord()).mesh)
}
