// Package shape provides noise-driven elevation and biome oracles for the
// cube-sphere mesher.
package shape

import (
	"fmt"

	"github.com/aquilax/go-perlin"

	"github.com/Faultbox/midgard-planet/internal/cubesphere"
	"github.com/Faultbox/midgard-planet/pkg/math"
)

const (
	perlinAlpha = 2.0
	perlinBeta  = 2.0
)

// NoiseSettings shape one layered noise filter.
type NoiseSettings struct {
	Strength      float32   `yaml:"strength"`
	Octaves       int       `yaml:"octaves"`
	BaseRoughness float32   `yaml:"base_roughness"`
	Roughness     float32   `yaml:"roughness"`
	Persistence   float32   `yaml:"persistence"`
	MinValue      float32   `yaml:"min_value"`
	Center        math.Vec3 `yaml:"center"`
}

// Validate checks the filter parameters.
func (s NoiseSettings) Validate() error {
	if s.Octaves < 1 {
		return fmt.Errorf("%w: noise octaves %d, need at least 1", cubesphere.ErrInvalidConfiguration, s.Octaves)
	}
	for name, v := range map[string]float32{
		"strength":       s.Strength,
		"base_roughness": s.BaseRoughness,
		"roughness":      s.Roughness,
		"persistence":    s.Persistence,
		"min_value":      s.MinValue,
	} {
		if !math.IsFinite(v) {
			return fmt.Errorf("%w: noise %s is %v", cubesphere.ErrInvalidConfiguration, name, v)
		}
	}
	if !s.Center.IsFinite() {
		return fmt.Errorf("%w: noise center %v", cubesphere.ErrInvalidConfiguration, s.Center)
	}
	return nil
}

// noiseFilter sums octaves of 3D Perlin noise. The underlying tables are
// only read after construction, so a filter is safe for concurrent use.
type noiseFilter struct {
	noise    *perlin.Perlin
	settings NoiseSettings
}

func newNoiseFilter(seed int64, s NoiseSettings) *noiseFilter {
	return &noiseFilter{
		noise:    perlin.NewPerlin(perlinAlpha, perlinBeta, 1, seed),
		settings: s,
	}
}

// evaluate returns a non-negative value for a point on the unit sphere.
func (f *noiseFilter) evaluate(p math.Vec3) float32 {
	s := f.settings
	var value float32
	frequency := s.BaseRoughness
	amplitude := float32(1)
	for range s.Octaves {
		q := p.Scale(frequency).Add(s.Center)
		v := float32(f.noise.Noise3D(float64(q.X), float64(q.Y), float64(q.Z)))
		value += (v + 1) * 0.5 * amplitude
		frequency *= s.Roughness
		amplitude *= s.Persistence
	}
	value = max(0, value-s.MinValue)
	return value * s.Strength
}
