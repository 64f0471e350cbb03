package cubesphere

import (
	"errors"

	"github.com/Faultbox/midgard-planet/pkg/math"
)

var (
	// ErrInvalidConfiguration is returned for parameters that can never
	// produce a mesh, such as a resolution below 2.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrOracleFailure is returned when a shape or biome oracle panics or
	// yields a non-finite value.
	ErrOracleFailure = errors.New("oracle failure")
)

// ShapeOracle supplies elevation for points on the unit sphere.
// Implementations must be safe for concurrent use: builds call them from
// several goroutines at once.
type ShapeOracle interface {
	// UnscaledElevation returns the raw elevation at a unit direction.
	UnscaledElevation(dir math.Vec3) float32
	// ScaledElevation converts a raw elevation to a distance from the center.
	ScaledElevation(unscaled float32) float32
	// PlanetRadius returns the nominal planet radius.
	PlanetRadius() float32
}

// BiomeOracle supplies the biome percentage for points on the unit sphere.
type BiomeOracle interface {
	BiomePercent(dir math.Vec3) float32
}
