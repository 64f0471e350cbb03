// Package main generates a planet headlessly: a viewer flies toward one face,
// the LOD quadtrees follow it, and the result is logged and optionally
// exported as OBJ.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"go.uber.org/zap"

	"github.com/Faultbox/midgard-planet/internal/config"
	"github.com/Faultbox/midgard-planet/internal/cubesphere"
	"github.com/Faultbox/midgard-planet/internal/logger"
	"github.com/Faultbox/midgard-planet/internal/metrics"
	"github.com/Faultbox/midgard-planet/internal/planet"
	"github.com/Faultbox/midgard-planet/internal/scene"
	"github.com/Faultbox/midgard-planet/internal/shape"
	"github.com/Faultbox/midgard-planet/internal/sim"
)

func main() {
	config.ParseFlags()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("=== Midgard Planet Generator ===")
	logger.Sugar.Debugf("Config: %+v", cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.Error("generation failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	planetCfg, err := cfg.PlanetSettings()
	if err != nil {
		return err
	}
	gen, err := shape.NewGenerator(cfg.Shape)
	if err != nil {
		return err
	}
	biomes, err := shape.NewBiomes(cfg.Biome)
	if err != nil {
		return err
	}
	approach, err := cubesphere.ParseFace(cfg.Simulation.ApproachFace)
	if err != nil {
		return err
	}

	m := metrics.New()
	if cfg.Metrics.Enabled {
		go func() {
			if err := m.Serve(ctx, cfg.Metrics.Addr, logger.Named("metrics")); err != nil {
				logger.Error("metrics server", zap.Error(err))
			}
		}()
	}

	fly := &sim.FlyIn{
		Center:    planetCfg.Center,
		Direction: approach.Direction(),
		Radius:    gen.PlanetRadius(),
		Start:     cfg.Simulation.StartDistance,
		End:       cfg.Simulation.EndDistance,
		Ticks:     cfg.Simulation.Ticks,
	}

	sc := scene.New()
	p, err := planet.New(planetCfg, planet.Deps{
		Shape:   gen,
		Biome:   biomes,
		Factory: sc,
		Viewer:  fly,
		Metrics: m,
		Log:     logger.Named("planet"),
	})
	if err != nil {
		return err
	}
	defer p.Close()

	rep, err := sim.Run(ctx, p, fly, cfg.Simulation.TickInterval, logger.Named("sim"))
	if err != nil {
		// Failed chunks stay in the scene; report and carry on with the export.
		logger.Warn("flight finished with errors", zap.Error(err))
	}

	st := sc.Stats()
	fields := []zap.Field{
		zap.Stringer("planet", p.ID()),
		zap.Int("ticks", rep.Ticks),
		zap.Int("settle_ticks", rep.SettleTicks),
		zap.Bool("settled", rep.Settled),
		zap.Duration("elapsed", rep.Elapsed),
		zap.Int("nodes", rep.Stats.Nodes),
		zap.Int("rendered", rep.Stats.Rendered),
		zap.Int("failed", rep.Stats.Failed),
		zap.Uint32("deepest_level", rep.Stats.DeepestLevel),
		zap.Int("vertices", st.Vertices),
		zap.Int("triangles", st.Triangles),
	}
	if lo, hi, ok := gen.ElevationRange(); ok {
		fields = append(fields, zap.Float32("elevation_min", lo), zap.Float32("elevation_max", hi))
	}
	logger.Info("planet generated", fields...)

	if path := cfg.Simulation.ExportOBJ; path != "" {
		if err := exportOBJ(sc, path); err != nil {
			return err
		}
		logger.Info("exported OBJ", zap.String("path", path), zap.Int("chunks", st.Active))
	}
	return nil
}

func exportOBJ(sc *scene.Scene, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := sc.ExportOBJ(f); err != nil {
		f.Close()
		return fmt.Errorf("export %s: %w", path, err)
	}
	return f.Close()
}
