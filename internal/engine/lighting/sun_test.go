package lighting

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSunDirection(t *testing.T) {
	up := Sun{Latitude: 90}.Direction()
	assert.InDelta(t, 1, up.Y, 1e-6)
	assert.InDelta(t, 0, up.X, 1e-6)

	south := Sun{}.Direction()
	assert.InDelta(t, 1, south.Z, 1e-6)

	east := Sun{Longitude: 90}.Direction()
	assert.InDelta(t, 1, east.X, 1e-6)

	assert.InDelta(t, 1, DefaultSun().Direction().Length(), 1e-6)
}

func TestSunAdvance(t *testing.T) {
	s := Sun{Longitude: 350, DegreesPerSecond: 20}
	s.Advance(1)
	assert.InDelta(t, 10, s.Longitude, 1e-4)

	s.DegreesPerSecond = -30
	s.Advance(1)
	assert.InDelta(t, 340, s.Longitude, 1e-4)

	fixed := Sun{Longitude: 45}
	fixed.Advance(100)
	assert.Equal(t, float32(45), fixed.Longitude)
}
