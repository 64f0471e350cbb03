package lod

import (
	"fmt"
	"slices"

	"github.com/Faultbox/midgard-planet/internal/cubesphere"
	"github.com/Faultbox/midgard-planet/pkg/math"
)

// DefaultFractions are the subdivision distances per level, as fractions of
// the planet radius.
var DefaultFractions = []float32{1.0, 0.75, 0.6, 0.4, 0.2, 0.125, 0.075}

// MaxDetailLevels bounds the table so coordinates at the deepest level fit
// in uint32 for any allowed chunkPerFaceLine.
const MaxDetailLevels = 24

// DetailLevels maps a quadtree level to the viewer distance (as a fraction of
// the planet radius) under which a chunk at that level splits. The deepest
// level never splits. DetailLevels is immutable once built.
type DetailLevels struct {
	fractions []float32
}

// DefaultDetailLevels returns the stock seven-level table.
func DefaultDetailLevels() DetailLevels {
	return DetailLevels{fractions: slices.Clone(DefaultFractions)}
}

// NewDetailLevels builds a table from per-level fractions.
func NewDetailLevels(fractions ...float32) (DetailLevels, error) {
	if len(fractions) == 0 {
		return DetailLevels{}, fmt.Errorf("%w: detail level table is empty", cubesphere.ErrInvalidConfiguration)
	}
	if len(fractions) > MaxDetailLevels {
		return DetailLevels{}, fmt.Errorf("%w: %d detail levels, at most %d supported",
			cubesphere.ErrInvalidConfiguration, len(fractions), MaxDetailLevels)
	}
	for level, f := range fractions {
		if !math.IsFinite(f) || f <= 0 {
			return DetailLevels{}, fmt.Errorf("%w: detail level %d has fraction %v", cubesphere.ErrInvalidConfiguration, level, f)
		}
	}
	return DetailLevels{fractions: slices.Clone(fractions)}, nil
}

// Len returns the number of levels.
func (d DetailLevels) Len() int {
	return len(d.fractions)
}

// MaxLevel returns the deepest level.
func (d DetailLevels) MaxLevel() uint32 {
	if len(d.fractions) == 0 {
		return 0
	}
	return uint32(len(d.fractions) - 1)
}

// Fraction returns the split distance fraction for level, or 0 past the table.
func (d DetailLevels) Fraction(level uint32) float32 {
	if int(level) >= len(d.fractions) {
		return 0
	}
	return d.fractions[level]
}

// Fractions returns a copy of the table.
func (d DetailLevels) Fractions() []float32 {
	return slices.Clone(d.fractions)
}
