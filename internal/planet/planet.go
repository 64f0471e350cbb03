// Package planet ties six face quadtrees into one planet sharing a build
// pipeline, oracles and a render scene.
package planet

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Faultbox/midgard-planet/internal/cubesphere"
	"github.com/Faultbox/midgard-planet/internal/lod"
	"github.com/Faultbox/midgard-planet/internal/metrics"
	"github.com/Faultbox/midgard-planet/pkg/math"
)

// Config is the static configuration of a planet. Changing it requires
// Reconfigure, which rebuilds every face.
type Config struct {
	Resolution          int
	ChunkPerFaceLine    int
	DetailLevels        lod.DetailLevels
	Faces               FaceMask
	Material            string
	MaxBuildRetries     int
	MaxConcurrentBuilds int
	Center              math.Vec3
}

// Validate checks the configuration without building anything.
func (c Config) Validate() error {
	if c.Resolution < 2 || c.Resolution > cubesphere.MaxResolution {
		return fmt.Errorf("%w: resolution %d, want 2..%d",
			cubesphere.ErrInvalidConfiguration, c.Resolution, cubesphere.MaxResolution)
	}
	if c.ChunkPerFaceLine < 1 || c.ChunkPerFaceLine > cubesphere.MaxChunkPerFaceLine {
		return fmt.Errorf("%w: chunkPerFaceLine %d, want 1..%d",
			cubesphere.ErrInvalidConfiguration, c.ChunkPerFaceLine, cubesphere.MaxChunkPerFaceLine)
	}
	if n := c.DetailLevels.Len(); n == 0 || n > lod.MaxDetailLevels {
		return fmt.Errorf("%w: %d detail levels, want 1..%d", cubesphere.ErrInvalidConfiguration, n, lod.MaxDetailLevels)
	}
	if c.MaxConcurrentBuilds < 0 {
		return fmt.Errorf("%w: max concurrent builds %d", cubesphere.ErrInvalidConfiguration, c.MaxConcurrentBuilds)
	}
	if c.Faces.single && !c.Faces.face.Valid() {
		return fmt.Errorf("%w: face mask %d", cubesphere.ErrInvalidConfiguration, c.Faces.face)
	}
	return nil
}

// Deps are the planet's collaborators, shared by every face.
type Deps struct {
	Shape   cubesphere.ShapeOracle
	Biome   cubesphere.BiomeOracle
	Factory lod.ResourceFactory
	Viewer  lod.Viewer
	Metrics *metrics.Metrics
	Log     *zap.Logger
}

// Planet owns one quadtree per selected face.
type Planet struct {
	cfg     Config
	deps    Deps
	metrics *metrics.Metrics
	log     *zap.Logger

	id       uuid.UUID
	pipeline *lod.Pipeline
	trees    []*lod.Quadtree
}

// New validates cfg and generates the planet.
func New(cfg Config, deps Deps) (*Planet, error) {
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	p := &Planet{deps: deps, metrics: deps.Metrics, log: deps.Log}
	if err := p.Reconfigure(cfg); err != nil {
		return nil, err
	}
	return p, nil
}

// ID identifies the current generation of the planet.
func (p *Planet) ID() uuid.UUID {
	return p.id
}

// Config returns the active configuration.
func (p *Planet) Config() Config {
	return p.cfg
}

// Reconfigure replaces the static configuration and regenerates. On error
// the planet keeps its previous configuration and trees.
func (p *Planet) Reconfigure(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	old := p.cfg
	p.cfg = cfg
	if err := p.Generate(); err != nil {
		p.cfg = old
		return err
	}
	return nil
}

// Generate tears down every face and builds fresh quadtrees. Render
// resources of the old trees are released.
func (p *Planet) Generate() error {
	pipeline := lod.NewPipeline(lod.PipelineOptions{
		MaxConcurrent: p.cfg.MaxConcurrentBuilds,
		Metrics:       p.metrics,
		Log:           p.log,
	})
	id := uuid.New()
	log := p.log.With(zap.Stringer("planet", id))

	var trees []*lod.Quadtree
	for _, face := range p.cfg.Faces.Faces() {
		tree, err := lod.New(lod.Config{
			Face:             face,
			Resolution:       p.cfg.Resolution,
			ChunkPerFaceLine: p.cfg.ChunkPerFaceLine,
			DetailLevels:     p.cfg.DetailLevels,
			Material:         p.cfg.Material,
			MaxBuildRetries:  p.cfg.MaxBuildRetries,
			Center:           p.cfg.Center,
		}, lod.Deps{
			Shape:    p.deps.Shape,
			Biome:    p.deps.Biome,
			Factory:  p.deps.Factory,
			Viewer:   p.deps.Viewer,
			Pipeline: pipeline,
			Metrics:  p.metrics,
			Log:      log,
		})
		if err != nil {
			for _, t := range trees {
				t.Close()
			}
			pipeline.Close()
			return fmt.Errorf("face %s: %w", face, err)
		}
		trees = append(trees, tree)
	}

	p.teardown()
	p.id, p.pipeline, p.trees = id, pipeline, trees
	p.metrics.Generations.Inc()

	log.Info("planet generated",
		zap.Int("resolution", p.cfg.Resolution),
		zap.Int("chunkPerFaceLine", p.cfg.ChunkPerFaceLine),
		zap.Stringer("faces", p.cfg.Faces),
		zap.Int("detailLevels", p.cfg.DetailLevels.Len()),
	)
	return nil
}

func (p *Planet) teardown() {
	for _, t := range p.trees {
		t.Close()
	}
	if p.pipeline != nil {
		p.pipeline.Close()
	}
	p.trees, p.pipeline = nil, nil
	p.metrics.RenderedChunks.Reset()
	p.metrics.FailedChunks.Reset()
	p.metrics.TreeNodes.Reset()
}

// Tick runs the three LOD passes on every face and refreshes the tree
// gauges. A failing face does not stop the others; errors are joined.
func (p *Planet) Tick() error {
	start := time.Now()
	var errs []error
	for _, t := range p.trees {
		if err := t.Tick(); err != nil {
			errs = append(errs, fmt.Errorf("face %s: %w", t.Face(), err))
		}
	}
	p.updateGauges()
	p.metrics.TickDuration.Observe(time.Since(start).Seconds())

	err := errors.Join(errs...)
	if err != nil {
		p.log.Error("planet tick failed", zap.Error(err))
	}
	return err
}

func (p *Planet) updateGauges() {
	p.metrics.RenderedChunks.Reset()
	for _, t := range p.trees {
		face := t.Face().String()
		st := t.Stats()
		for level, n := range st.RenderedByLevel {
			p.metrics.RenderedChunks.WithLabelValues(face, strconv.FormatUint(uint64(level), 10)).Set(float64(n))
		}
		p.metrics.FailedChunks.WithLabelValues(face).Set(float64(st.Failed))
		p.metrics.TreeNodes.WithLabelValues(face).Set(float64(st.Nodes))
	}
}

// Faces returns the faces being built.
func (p *Planet) Faces() []cubesphere.Face {
	out := make([]cubesphere.Face, len(p.trees))
	for i, t := range p.trees {
		out[i] = t.Face()
	}
	return out
}

// Tree returns the quadtree of face f, if f is selected.
func (p *Planet) Tree(f cubesphere.Face) (*lod.Quadtree, bool) {
	for _, t := range p.trees {
		if t.Face() == f {
			return t, true
		}
	}
	return nil, false
}

// Stats sums the stats of every face.
func (p *Planet) Stats() lod.Stats {
	var total lod.Stats
	for _, t := range p.trees {
		total.Add(t.Stats())
	}
	return total
}

// Settled reports whether every face is settled.
func (p *Planet) Settled() bool {
	for _, t := range p.trees {
		if !t.Settled() {
			return false
		}
	}
	return true
}

// NearestRenderedLevel returns the detail level rendered closest to pt on
// the face pt lies over. ok is false when that face is not built.
func (p *Planet) NearestRenderedLevel(pt math.Vec3) (level uint32, ok bool) {
	t, found := p.Tree(faceUnder(pt.Sub(p.cfg.Center)))
	if !found {
		return 0, false
	}
	return t.NearestRenderedLevel(pt)
}

// faceUnder returns the cube face whose direction is closest to d.
func faceUnder(d math.Vec3) cubesphere.Face {
	best := cubesphere.FaceUp
	bestDot := float32(-2)
	n := d.Normalize()
	for _, f := range cubesphere.Faces {
		if dot := n.Dot(f.Direction()); dot > bestDot {
			best, bestDot = f, dot
		}
	}
	return best
}

// WaitBuilds blocks until every scheduled mesh build has delivered its
// result. Must be called from the tick goroutine.
func (p *Planet) WaitBuilds() {
	if p.pipeline != nil {
		p.pipeline.Wait()
	}
}

// InFlight returns the number of mesh builds still running.
func (p *Planet) InFlight() int64 {
	if p.pipeline == nil {
		return 0
	}
	return p.pipeline.InFlight()
}

// Close cancels outstanding builds and releases all render resources.
func (p *Planet) Close() {
	p.teardown()
	p.log.Info("planet closed", zap.Stringer("planet", p.id))
}
