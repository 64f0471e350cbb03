// Package lighting provides the directional light the planet is shaded with.
package lighting

import (
	gomath "math"

	"github.com/Faultbox/midgard-planet/pkg/math"
)

// Sun is a directional light given by longitude (rotation around Y, degrees)
// and latitude (elevation above the XZ plane, degrees).
type Sun struct {
	Longitude float32
	Latitude  float32
	// DegreesPerSecond spins the sun around the planet. Zero keeps it fixed.
	DegreesPerSecond float32
}

// DefaultSun lights the planet from above and slightly to the side.
func DefaultSun() Sun {
	return Sun{Longitude: 30, Latitude: 55}
}

// Direction returns the unit vector pointing towards the sun.
func (s Sun) Direction() math.Vec3 {
	lon := float64(s.Longitude) * gomath.Pi / 180
	lat := float64(s.Latitude) * gomath.Pi / 180
	return math.Vec3{
		X: float32(gomath.Cos(lat) * gomath.Sin(lon)),
		Y: float32(gomath.Sin(lat)),
		Z: float32(gomath.Cos(lat) * gomath.Cos(lon)),
	}
}

// Advance rotates the sun by dt seconds, keeping longitude in [0, 360).
func (s *Sun) Advance(dt float32) {
	if s.DegreesPerSecond == 0 {
		return
	}
	lon := gomath.Mod(float64(s.Longitude+s.DegreesPerSecond*dt), 360)
	if lon < 0 {
		lon += 360
	}
	s.Longitude = float32(lon)
}
