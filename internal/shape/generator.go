package shape

import (
	"fmt"

	"github.com/Faultbox/midgard-planet/internal/cubesphere"
	"github.com/Faultbox/midgard-planet/pkg/math"
)

// NoiseLayer is one contribution to the terrain.
type NoiseLayer struct {
	Enabled bool `yaml:"enabled"`
	// UseFirstLayerAsMask limits the layer to where the first layer raised
	// the terrain, so mountains only grow on continents.
	UseFirstLayerAsMask bool          `yaml:"use_first_layer_as_mask"`
	Noise               NoiseSettings `yaml:"noise"`
}

// Settings describe the planet's shape.
type Settings struct {
	Radius float32      `yaml:"radius"`
	Seed   int64        `yaml:"seed"`
	Layers []NoiseLayer `yaml:"layers"`
}

// DefaultSettings returns a continent layer and a masked mountain layer.
func DefaultSettings() Settings {
	return Settings{
		Radius: 100,
		Seed:   1,
		Layers: []NoiseLayer{
			{
				Enabled: true,
				Noise: NoiseSettings{
					Strength:      0.12,
					Octaves:       4,
					BaseRoughness: 1,
					Roughness:     2,
					Persistence:   0.5,
					MinValue:      0.95,
				},
			},
			{
				Enabled:             true,
				UseFirstLayerAsMask: true,
				Noise: NoiseSettings{
					Strength:      0.4,
					Octaves:       5,
					BaseRoughness: 1.5,
					Roughness:     2.3,
					Persistence:   0.45,
					MinValue:      1.1,
				},
			},
		},
	}
}

// Validate checks the settings.
func (s Settings) Validate() error {
	if !math.IsFinite(s.Radius) || s.Radius <= 0 {
		return fmt.Errorf("%w: planet radius %v", cubesphere.ErrInvalidConfiguration, s.Radius)
	}
	for i, l := range s.Layers {
		if err := l.Noise.Validate(); err != nil {
			return fmt.Errorf("noise layer %d: %w", i, err)
		}
	}
	return nil
}

// Generator computes planet elevation from layered noise. It implements
// cubesphere.ShapeOracle and is safe for concurrent use.
type Generator struct {
	radius  float32
	layers  []NoiseLayer
	filters []*noiseFilter
	minMax  *MinMax
}

// NewGenerator validates s and builds the noise filters. Each layer gets its
// own seed derived from s.Seed.
func NewGenerator(s Settings) (*Generator, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	g := &Generator{
		radius: s.Radius,
		layers: append([]NoiseLayer(nil), s.Layers...),
		minMax: NewMinMax(),
	}
	for i, l := range g.layers {
		g.filters = append(g.filters, newNoiseFilter(s.Seed+int64(i), l.Noise))
	}
	return g, nil
}

// UnscaledElevation returns the elevation at a unit-sphere direction as a
// fraction of the radius.
func (g *Generator) UnscaledElevation(dir math.Vec3) float32 {
	var first, elevation float32
	if len(g.filters) > 0 {
		first = g.filters[0].evaluate(dir)
		if g.layers[0].Enabled {
			elevation = first
		}
	}
	for i := 1; i < len(g.filters); i++ {
		if !g.layers[i].Enabled {
			continue
		}
		mask := float32(1)
		if g.layers[i].UseFirstLayerAsMask {
			mask = first
		}
		elevation += g.filters[i].evaluate(dir) * mask
	}
	g.minMax.Add(elevation)
	return elevation
}

// ScaledElevation converts an unscaled elevation into a distance from the
// planet center.
func (g *Generator) ScaledElevation(unscaled float32) float32 {
	return g.radius * (1 + unscaled)
}

// PlanetRadius returns the base radius.
func (g *Generator) PlanetRadius() float32 {
	return g.radius
}

// ElevationRange returns the unscaled elevation range sampled so far.
func (g *Generator) ElevationRange() (lo, hi float32, ok bool) {
	return g.minMax.Range()
}
