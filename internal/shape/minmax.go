package shape

import (
	gomath "math"
	"sync/atomic"
)

// MinMax tracks the elevation range seen by concurrent mesh builds.
// Create it with NewMinMax.
type MinMax struct {
	min  atomic.Uint32
	max  atomic.Uint32
	seen atomic.Bool
}

// NewMinMax returns an empty tracker.
func NewMinMax() *MinMax {
	m := &MinMax{}
	m.Reset()
	return m
}

// Reset forgets every value seen so far. It must not race with Add.
func (m *MinMax) Reset() {
	m.seen.Store(false)
	m.min.Store(gomath.Float32bits(float32(gomath.Inf(1))))
	m.max.Store(gomath.Float32bits(float32(gomath.Inf(-1))))
}

// Add records v. NaN and infinities are ignored.
func (m *MinMax) Add(v float32) {
	if gomath.IsNaN(float64(v)) || gomath.IsInf(float64(v), 0) {
		return
	}
	for {
		old := m.min.Load()
		if v >= gomath.Float32frombits(old) || m.min.CompareAndSwap(old, gomath.Float32bits(v)) {
			break
		}
	}
	for {
		old := m.max.Load()
		if v <= gomath.Float32frombits(old) || m.max.CompareAndSwap(old, gomath.Float32bits(v)) {
			break
		}
	}
	m.seen.Store(true)
}

// Range returns the smallest and largest values recorded. ok is false if
// nothing has been recorded.
func (m *MinMax) Range() (lo, hi float32, ok bool) {
	if !m.seen.Load() {
		return 0, 0, false
	}
	return gomath.Float32frombits(m.min.Load()), gomath.Float32frombits(m.max.Load()), true
}
