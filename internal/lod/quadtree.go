// Package lod keeps a cube-sphere face tessellated according to viewer
// distance.
//
// Each face is a quadtree of chunks. Every tick runs three passes in order:
// UpdateTree decides which nodes are rendered, ConstructPendingMeshes
// schedules and applies mesh builds for rendered leaves, and UpdateUVs writes
// biome data into freshly applied meshes.
package lod

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/midgard-planet/internal/cubesphere"
	"github.com/Faultbox/midgard-planet/internal/metrics"
	"github.com/Faultbox/midgard-planet/pkg/math"
)

// ErrInconsistentTree means the passes ran out of order or the tree state is
// corrupt, e.g. a node that should have children has none.
var ErrInconsistentTree = errors.New("internal consistency violation")

// DefaultMaterial is assigned to chunk resources when Config.Material is empty.
const DefaultMaterial = "planet"

// Config is the static configuration of one face quadtree.
type Config struct {
	Face             cubesphere.Face
	Resolution       int
	ChunkPerFaceLine int
	DetailLevels     DetailLevels
	Material         string
	// MaxBuildRetries is how many times a failed build is retried before the
	// chunk is marked failed.
	MaxBuildRetries int
	// Center is the planet origin in world space.
	Center math.Vec3
}

// Deps are the collaborators of a quadtree.
type Deps struct {
	Shape   cubesphere.ShapeOracle
	Biome   cubesphere.BiomeOracle
	Factory ResourceFactory
	Viewer  Viewer

	// Pipeline is optional; a private one is created (and closed by Close)
	// when nil.
	Pipeline *Pipeline
	Metrics  *metrics.Metrics
	Log      *zap.Logger
}

// Quadtree is the LOD tree of one cube face.
type Quadtree struct {
	cfg      Config
	basis    cubesphere.Basis
	radius   float32
	material string

	shape    cubesphere.ShapeOracle
	biome    cubesphere.BiomeOracle
	factory  ResourceFactory
	viewer   Viewer
	pipeline *Pipeline
	ownsPipe bool
	metrics  *metrics.Metrics
	log      *zap.Logger

	roots     []*Node
	viewerPos math.Vec3
}

// New validates the configuration and creates the level-0 nodes of a face.
func New(cfg Config, deps Deps) (*Quadtree, error) {
	if !cfg.Face.Valid() {
		return nil, fmt.Errorf("%w: face %d", cubesphere.ErrInvalidConfiguration, cfg.Face)
	}
	if cfg.Resolution < 2 || cfg.Resolution > cubesphere.MaxResolution {
		return nil, fmt.Errorf("%w: resolution %d, want 2..%d",
			cubesphere.ErrInvalidConfiguration, cfg.Resolution, cubesphere.MaxResolution)
	}
	if cfg.ChunkPerFaceLine < 1 || cfg.ChunkPerFaceLine > cubesphere.MaxChunkPerFaceLine {
		return nil, fmt.Errorf("%w: chunkPerFaceLine %d, want 1..%d",
			cubesphere.ErrInvalidConfiguration, cfg.ChunkPerFaceLine, cubesphere.MaxChunkPerFaceLine)
	}
	if n := cfg.DetailLevels.Len(); n == 0 || n > MaxDetailLevels {
		return nil, fmt.Errorf("%w: %d detail levels, want 1..%d", cubesphere.ErrInvalidConfiguration, n, MaxDetailLevels)
	}
	if cfg.MaxBuildRetries < 0 {
		return nil, fmt.Errorf("%w: max build retries %d", cubesphere.ErrInvalidConfiguration, cfg.MaxBuildRetries)
	}
	if deps.Shape == nil || deps.Biome == nil || deps.Factory == nil || deps.Viewer == nil {
		return nil, fmt.Errorf("%w: shape, biome, factory and viewer are required", cubesphere.ErrInvalidConfiguration)
	}
	radius := deps.Shape.PlanetRadius()
	if !math.IsFinite(radius) || radius <= 0 {
		return nil, fmt.Errorf("%w: planet radius %v", cubesphere.ErrInvalidConfiguration, radius)
	}

	q := &Quadtree{
		cfg:      cfg,
		basis:    cubesphere.NewBasis(cfg.Face.Direction()),
		radius:   radius,
		material: cfg.Material,
		shape:    deps.Shape,
		biome:    deps.Biome,
		factory:  deps.Factory,
		viewer:   deps.Viewer,
		pipeline: deps.Pipeline,
		metrics:  deps.Metrics,
		log:      deps.Log,
	}
	if q.material == "" {
		q.material = DefaultMaterial
	}
	if q.metrics == nil {
		q.metrics = metrics.New()
	}
	if q.log == nil {
		q.log = zap.NewNop()
	}
	q.log = q.log.With(zap.Stringer("face", cfg.Face))
	if q.pipeline == nil {
		q.pipeline = NewPipeline(PipelineOptions{Metrics: q.metrics, Log: q.log})
		q.ownsPipe = true
	}

	for y := range cfg.ChunkPerFaceLine {
		for x := range cfg.ChunkPerFaceLine {
			q.roots = append(q.roots, newNode(q.spec(cubesphere.Coord{X: uint32(x), Y: uint32(y)})))
		}
	}

	q.log.Debug("face quadtree initialized",
		zap.Int("resolution", cfg.Resolution),
		zap.Int("chunkPerFaceLine", cfg.ChunkPerFaceLine),
		zap.Uint32("maxLevel", cfg.DetailLevels.MaxLevel()),
	)
	return q, nil
}

func (q *Quadtree) spec(c cubesphere.Coord) cubesphere.ChunkSpec {
	return cubesphere.ChunkSpec{
		Resolution:       q.cfg.Resolution,
		ChunkPerFaceLine: q.cfg.ChunkPerFaceLine,
		Coord:            c,
		Basis:            q.basis,
	}
}

// Face returns the face this tree covers.
func (q *Quadtree) Face() cubesphere.Face {
	return q.cfg.Face
}

// Roots returns the level-0 nodes.
func (q *Quadtree) Roots() []*Node {
	return append([]*Node(nil), q.roots...)
}

// Tick runs the three passes in order.
func (q *Quadtree) Tick() error {
	q.UpdateTree()
	return errors.Join(q.ConstructPendingMeshes(), q.UpdateUVs())
}

// UpdateTree samples the viewer and decides, for every node, whether it is a
// rendered leaf or splits into children. The viewer position is kept for the
// remaining passes of the tick.
func (q *Quadtree) UpdateTree() {
	q.viewerPos = q.viewer.Position()
	for _, n := range q.roots {
		q.updateNode(n)
	}
}

func (q *Quadtree) updateNode(n *Node) {
	if q.needsChildren(n) {
		n.rendered = false
		q.suspendBuild(n)

		if n.children == nil {
			for _, c := range n.spec.Coord.Children() {
				n.children = append(n.children, newNode(q.spec(c)))
			}
			for _, c := range n.children {
				q.updateNode(c)
			}
			return
		}

		for _, c := range n.children {
			q.updateNode(c)
		}
		// Keep the coarse mesh visible until every finer leaf has one.
		if n.active && subtreeReady(n) {
			q.hide(n)
		}
		return
	}

	if !n.rendered {
		n.rendered = true
		q.deactivateChildren(n)
		q.show(n)
		return
	}
	q.deactivateChildren(n)
}

// needsChildren reports whether the viewer is close enough for n to split.
func (q *Quadtree) needsChildren(n *Node) bool {
	level := n.spec.Coord.Level
	if level >= q.cfg.DetailLevels.MaxLevel() {
		return false
	}
	dist := q.viewerPos.Distance(q.worldCenter(n))
	return dist <= q.cfg.DetailLevels.Fraction(level)*q.radius
}

// worldCenter returns the surface point above the chunk midpoint. Elevation is
// immutable, so it is sampled once per node.
func (q *Quadtree) worldCenter(n *Node) math.Vec3 {
	if !n.centerKnown {
		dir := n.spec.CenterDirection()
		r, err := q.centerElevation(n, dir)
		if err == nil && !math.IsFinite(r) {
			err = fmt.Errorf("%w: center elevation %v", cubesphere.ErrOracleFailure, r)
		}
		if err != nil {
			q.log.Warn("chunk center falls back to planet radius",
				zap.Stringer("chunk", n.spec.Coord),
				zap.Error(err),
			)
			r = q.radius
		}
		n.center = q.cfg.Center.Add(dir.Scale(r))
		n.centerKnown = true
	}
	return n.center
}

func (q *Quadtree) centerElevation(n *Node, dir math.Vec3) (r float32, err error) {
	defer recoverOracle(&err, "centering", n.spec.Coord)
	return q.shape.ScaledElevation(q.shape.UnscaledElevation(dir)), nil
}

// subtreeReady reports whether every rendered leaf below n has its mesh or
// has permanently failed.
func subtreeReady(n *Node) bool {
	for _, c := range n.children {
		switch {
		case c.rendered:
			if !c.meshGenerated && c.failure == nil {
				return false
			}
		case c.children != nil:
			if !subtreeReady(c) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func (q *Quadtree) deactivateChildren(n *Node) {
	for _, c := range n.children {
		c.rendered = false
		q.deactivateChildren(c)
		q.hide(c)
	}
}

func (q *Quadtree) show(n *Node) {
	if n.resource == nil {
		n.resource = q.factory.CreateMeshResource(q.cfg.Face, n.spec.Coord)
	}
	if n.failure != nil {
		n.resource.SetMaterial(MaterialFailed)
	} else {
		n.resource.SetMaterial(q.material)
	}
	n.resource.SetActive(true)
	n.active = true
}

func (q *Quadtree) hide(n *Node) {
	if n.active {
		n.resource.SetActive(false)
		n.active = false
	}
	q.suspendBuild(n)
}

// suspendBuild is called when n stops being a rendered leaf. A finished
// result is kept for later; a running build is canceled and the node's
// generation bumped so anything it still produces is ignored.
func (q *Quadtree) suspendBuild(n *Node) {
	if n.build == nil {
		return
	}
	if r, ok := n.build.TryDrain(); ok {
		n.pending = &r
		n.build = nil
		return
	}
	n.build.Cancel()
	n.build = nil
	n.meshGenerating = false
	n.generation++
	q.metrics.BuildsCanceled.Inc()
}

// ConstructPendingMeshes schedules builds for rendered leaves without a mesh
// and applies finished ones. Must run after UpdateTree in the same tick.
func (q *Quadtree) ConstructPendingMeshes() error {
	var errs []error
	for _, n := range q.roots {
		errs = append(errs, q.constructNode(n))
	}
	return errors.Join(errs...)
}

func (q *Quadtree) constructNode(n *Node) error {
	if q.needsChildren(n) {
		if n.children == nil {
			return q.inconsistent(n, "mesh pass reached a node that needs children but has none")
		}
		var errs []error
		for _, c := range n.children {
			errs = append(errs, q.constructNode(c))
		}
		return errors.Join(errs...)
	}

	if !n.rendered {
		return q.inconsistent(n, "mesh pass reached a leaf that is not rendered")
	}
	if n.meshGenerated || n.failure != nil {
		return nil
	}
	if !n.meshGenerating {
		q.schedule(n)
		return nil
	}
	if !n.active {
		return nil
	}
	if r, ok := n.takeResult(); ok {
		q.applyResult(n, r)
	}
	return nil
}

func (q *Quadtree) schedule(n *Node) {
	n.meshGenerating = true
	n.build = q.pipeline.Schedule(Job{
		Spec:       n.spec,
		Shape:      q.shape,
		Generation: n.generation,
	})
	q.metrics.BuildsScheduled.Inc()
}

func (q *Quadtree) applyResult(n *Node, r Result) {
	n.meshGenerating = false

	if r.Generation != n.generation {
		q.metrics.BuildsStale.Inc()
		q.log.Debug("discarding stale chunk mesh",
			zap.Stringer("chunk", n.spec.Coord),
			zap.Uint64("generation", r.Generation),
			zap.Uint64("current", n.generation),
		)
		return
	}
	if errors.Is(r.Err, context.Canceled) {
		q.metrics.BuildsCanceled.Inc()
		return
	}

	err := r.Err
	if err == nil {
		err = r.Mesh.Validate()
	}
	if err == nil {
		err = n.resource.ApplyMesh(r.Mesh)
	}
	if err != nil {
		q.buildFailed(n, err)
		return
	}

	n.mesh = r.Mesh
	n.meshGenerated = true
	q.metrics.BuildsApplied.Inc()
}

func (q *Quadtree) buildFailed(n *Node, err error) {
	n.attempts++
	q.metrics.BuildsFailed.Inc()
	if n.attempts <= q.cfg.MaxBuildRetries {
		q.log.Warn("chunk build failed, retrying",
			zap.Stringer("chunk", n.spec.Coord),
			zap.Int("attempt", n.attempts),
			zap.Error(err),
		)
		return
	}
	n.failure = err
	n.resource.SetMaterial(MaterialFailed)
	q.log.Error("chunk build failed permanently",
		zap.Stringer("chunk", n.spec.Coord),
		zap.Int("attempts", n.attempts),
		zap.Error(err),
	)
}

// UpdateUVs writes biome percentages into rendered leaves whose mesh was
// applied but not yet coloured. Must run after ConstructPendingMeshes.
func (q *Quadtree) UpdateUVs() error {
	var errs []error
	for _, n := range q.roots {
		errs = append(errs, q.uvNode(n))
	}
	return errors.Join(errs...)
}

func (q *Quadtree) uvNode(n *Node) error {
	if q.needsChildren(n) {
		if n.children == nil {
			return q.inconsistent(n, "uv pass reached a node that needs children but has none")
		}
		var errs []error
		for _, c := range n.children {
			errs = append(errs, q.uvNode(c))
		}
		return errors.Join(errs...)
	}

	if !n.meshGenerated || n.uvGenerated || n.failure != nil {
		return nil
	}
	uv, err := q.biomeUV(n)
	if err != nil {
		// Counted against the same retry budget as the mesh build; the
		// chunk keeps its uncoloured mesh until it succeeds or is marked failed.
		q.buildFailed(n, err)
		return nil
	}
	n.mesh.UV = uv
	n.resource.UpdateUV(uv)
	n.uvGenerated = true
	return nil
}

func (q *Quadtree) biomeUV(n *Node) (uv []math.Vec2, err error) {
	defer recoverOracle(&err, "colouring", n.spec.Coord)
	return n.spec.BiomeUV(n.mesh.UV, q.biome)
}

func (q *Quadtree) inconsistent(n *Node, what string) error {
	err := fmt.Errorf("%w: face %s chunk %s: %s", ErrInconsistentTree, q.cfg.Face, n.spec.Coord, what)
	q.log.Error("quadtree invariant violated", zap.Error(err))
	return err
}

// Close cancels outstanding builds and releases every render resource. The
// tree must not be used afterwards.
func (q *Quadtree) Close() {
	q.Walk(func(n *Node) bool {
		if n.build != nil {
			n.build.Cancel()
			n.build = nil
		}
		if n.resource != nil {
			n.resource.Release()
			n.resource = nil
		}
		n.active = false
		return true
	})
	if q.ownsPipe {
		q.pipeline.Close()
	}
}
