// Package metrics exposes Prometheus instrumentation for mesh builds and LOD
// trees.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const namespace = "planet"

// Metrics holds all collectors on a private registry, so several planets (or
// tests) can coexist in one process.
type Metrics struct {
	registry *prometheus.Registry

	BuildsScheduled prometheus.Counter
	BuildsApplied   prometheus.Counter
	BuildsFailed    prometheus.Counter
	BuildsCanceled  prometheus.Counter
	BuildsStale     prometheus.Counter
	BuildsInFlight  prometheus.Gauge
	BuildDuration   prometheus.Histogram

	TickDuration   prometheus.Histogram
	RenderedChunks *prometheus.GaugeVec
	FailedChunks   *prometheus.GaugeVec
	TreeNodes      *prometheus.GaugeVec
	Generations    prometheus.Counter
}

// New creates and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		BuildsScheduled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mesh",
			Name:      "builds_scheduled_total",
			Help:      "Chunk mesh builds started.",
		}),
		BuildsApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mesh",
			Name:      "builds_applied_total",
			Help:      "Chunk meshes applied to a render resource.",
		}),
		BuildsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mesh",
			Name:      "builds_failed_total",
			Help:      "Chunk mesh builds that returned an error or an invalid mesh.",
		}),
		BuildsCanceled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mesh",
			Name:      "builds_canceled_total",
			Help:      "Chunk mesh builds abandoned because the chunk stopped rendering.",
		}),
		BuildsStale: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mesh",
			Name:      "builds_stale_total",
			Help:      "Build results discarded because their generation was superseded.",
		}),
		BuildsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "mesh",
			Name:      "builds_in_flight",
			Help:      "Chunk mesh builds currently running or waiting for a slot.",
		}),
		BuildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "mesh",
			Name:      "build_duration_seconds",
			Help:      "Time spent meshing one chunk.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14),
		}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "lod",
			Name:      "tick_duration_seconds",
			Help:      "Time spent in one LOD tick across all faces.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14),
		}),
		RenderedChunks: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "lod",
			Name:      "rendered_chunks",
			Help:      "Chunks currently chosen as rendered leaves.",
		}, []string{"face", "level"}),
		FailedChunks: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "lod",
			Name:      "failed_chunks",
			Help:      "Chunks whose mesh permanently failed to build.",
		}, []string{"face"}),
		TreeNodes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "lod",
			Name:      "tree_nodes",
			Help:      "Quadtree nodes allocated per face.",
		}, []string{"face"}),
		Generations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generations_total",
			Help:      "Full planet (re)generations.",
		}),
	}

	m.registry.MustRegister(
		m.BuildsScheduled, m.BuildsApplied, m.BuildsFailed, m.BuildsCanceled,
		m.BuildsStale, m.BuildsInFlight, m.BuildDuration,
		m.TickDuration, m.RenderedChunks, m.FailedChunks, m.TreeNodes, m.Generations,
	)
	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler serving the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve runs a /metrics endpoint on addr until ctx is canceled.
func (m *Metrics) Serve(ctx context.Context, addr string, log *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("metrics endpoint listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
