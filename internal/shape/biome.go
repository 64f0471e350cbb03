package shape

import (
	"fmt"

	"github.com/Faultbox/midgard-planet/internal/cubesphere"
	"github.com/Faultbox/midgard-planet/pkg/math"
)

// Biome is a latitude band starting at StartHeight (0 south pole, 1 north
// pole).
type Biome struct {
	Name        string  `yaml:"name"`
	StartHeight float32 `yaml:"start_height"`
}

// BiomeSettings describe how directions map to biome bands.
type BiomeSettings struct {
	Biomes        []Biome       `yaml:"biomes"`
	BlendAmount   float32       `yaml:"blend_amount"`
	NoiseOffset   float32       `yaml:"noise_offset"`
	NoiseStrength float32       `yaml:"noise_strength"`
	Noise         NoiseSettings `yaml:"noise"`
	Seed          int64         `yaml:"seed"`
}

// DefaultBiomeSettings returns polar, temperate and equatorial bands with
// noisy borders.
func DefaultBiomeSettings() BiomeSettings {
	return BiomeSettings{
		Biomes: []Biome{
			{Name: "polar", StartHeight: 0},
			{Name: "temperate", StartHeight: 0.2},
			{Name: "tropic", StartHeight: 0.4},
			{Name: "temperate", StartHeight: 0.6},
			{Name: "polar", StartHeight: 0.8},
		},
		BlendAmount:   0.1,
		NoiseOffset:   0.5,
		NoiseStrength: 0.15,
		Noise: NoiseSettings{
			Strength:      1,
			Octaves:       3,
			BaseRoughness: 2,
			Roughness:     2,
			Persistence:   0.5,
		},
		Seed: 7,
	}
}

// Validate checks the settings.
func (s BiomeSettings) Validate() error {
	if len(s.Biomes) == 0 {
		return fmt.Errorf("%w: no biomes", cubesphere.ErrInvalidConfiguration)
	}
	prev := float32(-1)
	for i, b := range s.Biomes {
		if !math.IsFinite(b.StartHeight) || b.StartHeight < prev {
			return fmt.Errorf("%w: biome %d start height %v must be finite and not decrease",
				cubesphere.ErrInvalidConfiguration, i, b.StartHeight)
		}
		prev = b.StartHeight
	}
	if !math.IsFinite(s.BlendAmount) || s.BlendAmount < 0 {
		return fmt.Errorf("%w: biome blend amount %v", cubesphere.ErrInvalidConfiguration, s.BlendAmount)
	}
	if !math.IsFinite(s.NoiseOffset) || !math.IsFinite(s.NoiseStrength) {
		return fmt.Errorf("%w: biome noise offset/strength not finite", cubesphere.ErrInvalidConfiguration)
	}
	if s.NoiseStrength != 0 {
		if err := s.Noise.Validate(); err != nil {
			return fmt.Errorf("biome noise: %w", err)
		}
	}
	return nil
}

// Biomes maps unit-sphere directions to a blended biome index in [0,1].
// It implements cubesphere.BiomeOracle and is safe for concurrent use.
type Biomes struct {
	settings BiomeSettings
	noise    *noiseFilter
}

// NewBiomes validates s and builds the biome oracle.
func NewBiomes(s BiomeSettings) (*Biomes, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	s.Biomes = append([]Biome(nil), s.Biomes...)
	return &Biomes{settings: s, noise: newNoiseFilter(s.Seed, s.Noise)}, nil
}

// BiomePercent returns the biome index of dir, blended across band borders
// and normalized to [0,1].
func (b *Biomes) BiomePercent(dir math.Vec3) float32 {
	s := b.settings
	height := (dir.Y + 1) / 2
	if s.NoiseStrength != 0 {
		height += (b.noise.evaluate(dir) - s.NoiseOffset) * s.NoiseStrength
	}

	blendRange := s.BlendAmount/2 + 0.001
	var index float32
	for i, biome := range s.Biomes {
		w := inverseLerp(-blendRange, blendRange, height-biome.StartHeight)
		index = index*(1-w) + float32(i)*w
	}
	return index / float32(max(1, len(s.Biomes)-1))
}

func inverseLerp(a, b, v float32) float32 {
	return min(1, max(0, (v-a)/(b-a)))
}
