package config

import (
	"errors"
	"fmt"

	"github.com/Faultbox/midgard-planet/internal/cubesphere"
	"github.com/Faultbox/midgard-planet/internal/lod"
	"github.com/Faultbox/midgard-planet/internal/planet"
)

// Validate checks every section and reports all problems at once.
func (c *Config) Validate() error {
	var errs []error
	if _, err := c.PlanetSettings(); err != nil {
		errs = append(errs, fmt.Errorf("planet: %w", err))
	}
	if err := c.Shape.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("shape: %w", err))
	}
	if err := c.Biome.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("biome: %w", err))
	}

	sim := c.Simulation
	if sim.Ticks < 1 {
		errs = append(errs, invalid("simulation: ticks %d, need at least 1", sim.Ticks))
	}
	if sim.EndDistance <= 1 || sim.StartDistance < sim.EndDistance {
		errs = append(errs, invalid("simulation: distances must satisfy start >= end > 1, got %v and %v",
			sim.StartDistance, sim.EndDistance))
	}
	if _, err := cubesphere.ParseFace(sim.ApproachFace); err != nil {
		errs = append(errs, fmt.Errorf("simulation: approach face: %w", err))
	}
	if sim.TickInterval < 0 {
		errs = append(errs, invalid("simulation: negative tick interval %v", sim.TickInterval))
	}

	if c.Graphics.Width <= 0 || c.Graphics.Height <= 0 {
		errs = append(errs, invalid("graphics: window size %dx%d", c.Graphics.Width, c.Graphics.Height))
	}
	if c.Graphics.MSAA < 0 || c.Graphics.MSAA > 16 {
		errs = append(errs, invalid("graphics: msaa %d, want 0..16", c.Graphics.MSAA))
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		errs = append(errs, invalid("metrics: enabled without an address"))
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error", "":
	default:
		errs = append(errs, invalid("logging: unknown level %q", c.Logging.Level))
	}
	return errors.Join(errs...)
}

// PlanetSettings converts the planet section into planet.Config.
func (c *Config) PlanetSettings() (planet.Config, error) {
	p := c.Planet
	levels, err := lod.NewDetailLevels(p.DetailLevels...)
	if err != nil {
		return planet.Config{}, err
	}
	mask, err := planet.ParseFaceMask(p.FaceMask)
	if err != nil {
		return planet.Config{}, err
	}
	if p.MaxBuildRetries < 0 {
		return planet.Config{}, invalid("max build retries %d", p.MaxBuildRetries)
	}
	cfg := planet.Config{
		Resolution:          p.Resolution,
		ChunkPerFaceLine:    p.ChunkPerFaceLine,
		DetailLevels:        levels,
		Faces:               mask,
		Material:            p.Material,
		MaxBuildRetries:     p.MaxBuildRetries,
		MaxConcurrentBuilds: p.MaxConcurrentBuilds,
	}
	return cfg, cfg.Validate()
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", cubesphere.ErrInvalidConfiguration, fmt.Sprintf(format, args...))
}
