package lod

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/Faultbox/midgard-planet/internal/cubesphere"
	"github.com/Faultbox/midgard-planet/internal/metrics"
)

// Job is one chunk mesh to build.
type Job struct {
	Spec       cubesphere.ChunkSpec
	Shape      cubesphere.ShapeOracle
	Generation uint64
}

// Result is the outcome of a build. Exactly one Result is delivered per Build.
type Result struct {
	Mesh       *cubesphere.MeshData
	Err        error
	Generation uint64
	Duration   time.Duration
}

// Build is a handle on a scheduled mesh build. The worker goroutine is the
// only producer and the tick goroutine the only consumer of its result slot.
type Build struct {
	generation uint64
	done       chan Result
	cancel     context.CancelFunc
}

// Generation returns the generation the build was scheduled under.
func (b *Build) Generation() uint64 {
	return b.generation
}

// TryDrain returns the result if the build has finished. It never blocks.
func (b *Build) TryDrain() (Result, bool) {
	select {
	case r := <-b.done:
		return r, true
	default:
		return Result{}, false
	}
}

// Wait blocks until the build finishes or ctx is done.
func (b *Build) Wait(ctx context.Context) (Result, error) {
	select {
	case r := <-b.done:
		return r, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Cancel asks the worker to stop. A canceled build still delivers a Result,
// carrying context.Canceled unless it had already finished.
func (b *Build) Cancel() {
	b.cancel()
}

// PipelineOptions configures a Pipeline.
type PipelineOptions struct {
	// MaxConcurrent caps builds running at once; 0 means one goroutine per
	// build with no cap.
	MaxConcurrent int
	Metrics       *metrics.Metrics
	Log           *zap.Logger
}

// Pipeline runs chunk mesh builds off the tick goroutine.
type Pipeline struct {
	ctx     context.Context
	cancel  context.CancelFunc
	sem     *semaphore.Weighted
	wg      sync.WaitGroup
	active  atomic.Int64
	metrics *metrics.Metrics
	log     *zap.Logger
}

// NewPipeline creates a pipeline. Close it to stop outstanding builds.
func NewPipeline(opts PipelineOptions) *Pipeline {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pipeline{
		ctx:     ctx,
		cancel:  cancel,
		metrics: opts.Metrics,
		log:     opts.Log,
	}
	if opts.MaxConcurrent > 0 {
		p.sem = semaphore.NewWeighted(int64(opts.MaxConcurrent))
	}
	if p.metrics == nil {
		p.metrics = metrics.New()
	}
	if p.log == nil {
		p.log = zap.NewNop()
	}
	return p
}

// Schedule starts a build and returns immediately.
func (p *Pipeline) Schedule(job Job) *Build {
	ctx, cancel := context.WithCancel(p.ctx)
	b := &Build{
		generation: job.Generation,
		done:       make(chan Result, 1),
		cancel:     cancel,
	}

	p.wg.Add(1)
	p.active.Add(1)
	p.metrics.BuildsInFlight.Inc()
	go p.run(ctx, job, b)
	return b
}

func (p *Pipeline) run(ctx context.Context, job Job, b *Build) {
	defer p.wg.Done()
	defer func() {
		p.active.Add(-1)
		p.metrics.BuildsInFlight.Dec()
		b.cancel()
	}()

	res := Result{Generation: job.Generation}
	if p.sem != nil {
		if err := p.sem.Acquire(ctx, 1); err != nil {
			res.Err = err
			b.done <- res
			return
		}
		defer p.sem.Release(1)
	}

	start := time.Now()
	res.Mesh, res.Err = buildChunk(ctx, job)
	res.Duration = time.Since(start)
	if res.Err == nil {
		p.metrics.BuildDuration.Observe(res.Duration.Seconds())
		p.log.Debug("chunk mesh built",
			zap.Stringer("chunk", job.Spec.Coord),
			zap.Duration("took", res.Duration),
		)
	}
	b.done <- res
}

// buildChunk runs the mesher. A broken oracle fails one chunk instead of the
// process.
func buildChunk(ctx context.Context, job Job) (mesh *cubesphere.MeshData, err error) {
	defer recoverOracle(&err, "meshing", job.Spec.Coord)
	return cubesphere.BuildChunk(ctx, job.Spec, job.Shape)
}

// recoverOracle turns a panic raised inside an oracle into ErrOracleFailure.
// It must be deferred directly.
func recoverOracle(err *error, stage string, c cubesphere.Coord) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%w: panic while %s chunk %s: %v", cubesphere.ErrOracleFailure, stage, c, r)
	}
}

// InFlight returns the number of builds not yet finished.
func (p *Pipeline) InFlight() int64 {
	return p.active.Load()
}

// Wait blocks until every scheduled build has delivered its result.
// Must not race with Schedule.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

// Close cancels all builds and waits for the workers to exit.
func (p *Pipeline) Close() {
	p.cancel()
	p.wg.Wait()
}
