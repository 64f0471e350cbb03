// Package sim drives a planet without a window: a viewer flies from far away
// down toward one face while the LOD ticks run.
package sim

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/midgard-planet/internal/lod"
	"github.com/Faultbox/midgard-planet/pkg/math"
)

// maxSettleTicks bounds the ticks spent converging after the flight ends.
const maxSettleTicks = 64

// Planet is what a flight needs from the planet orchestrator.
type Planet interface {
	Tick() error
	Settled() bool
	WaitBuilds()
	Stats() lod.Stats
}

// FlyIn is a lod.Viewer moving linearly between two altitudes along a fixed
// direction. Distances are in planet radii from the center.
type FlyIn struct {
	Center    math.Vec3
	Direction math.Vec3
	Radius    float32
	Start     float32
	End       float32
	Ticks     int

	step int
}

// SetStep moves the viewer to the given tick of the flight.
func (f *FlyIn) SetStep(step int) {
	f.step = max(0, min(step, f.Ticks-1))
}

// Distance returns the current distance from the center in world units.
func (f *FlyIn) Distance() float32 {
	t := float32(1)
	if f.Ticks > 1 {
		t = float32(f.step) / float32(f.Ticks-1)
	}
	return (f.Start + (f.End-f.Start)*t) * f.Radius
}

// Position implements lod.Viewer.
func (f *FlyIn) Position() math.Vec3 {
	return f.Center.Add(f.Direction.Normalize().Scale(f.Distance()))
}

// Report summarizes a finished run.
type Report struct {
	Ticks       int
	SettleTicks int
	Settled     bool
	Stats       lod.Stats
	Elapsed     time.Duration
}

// Run ticks p once per flight step, pausing interval between ticks when it is
// positive, then keeps ticking until p settles. Tick errors are collected and
// the run continues; a canceled context stops it early.
func Run(ctx context.Context, p Planet, fly *FlyIn, interval time.Duration, log *zap.Logger) (Report, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if fly.Ticks < 1 {
		return Report{}, fmt.Errorf("flight needs at least one tick, got %d", fly.Ticks)
	}

	start := time.Now()
	var rep Report
	var errs []error

	var tick <-chan time.Time
	if interval > 0 {
		t := time.NewTicker(interval)
		defer t.Stop()
		tick = t.C
	}

	for i := range fly.Ticks {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		fly.SetStep(i)
		if err := p.Tick(); err != nil {
			errs = append(errs, fmt.Errorf("tick %d: %w", i, err))
		}
		rep.Ticks++

		if i%10 == 0 {
			st := p.Stats()
			log.Debug("flight progress",
				zap.Int("tick", i),
				zap.Float32("distance", fly.Distance()),
				zap.Int("rendered", st.Rendered),
				zap.Uint32("deepest", st.DeepestLevel),
			)
		}

		if tick != nil {
			select {
			case <-ctx.Done():
			case <-tick:
			}
		}
	}

	if ctx.Err() == nil {
		for !p.Settled() && rep.SettleTicks < maxSettleTicks {
			p.WaitBuilds()
			if err := p.Tick(); err != nil {
				errs = append(errs, fmt.Errorf("settle tick %d: %w", rep.SettleTicks, err))
			}
			rep.SettleTicks++
		}
	}

	rep.Settled = p.Settled()
	rep.Stats = p.Stats()
	rep.Elapsed = time.Since(start)
	if !rep.Settled {
		log.Warn("planet did not settle", zap.Int("settle_ticks", rep.SettleTicks))
	}
	return rep, errors.Join(errs...)
}
