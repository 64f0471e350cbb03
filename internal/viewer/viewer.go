// Package viewer implements the interactive planet viewer loop.
package viewer

import (
	"fmt"
	"time"

	"github.com/veandco/go-sdl2/sdl"
	"go.uber.org/zap"

	"github.com/Faultbox/midgard-planet/internal/config"
	"github.com/Faultbox/midgard-planet/internal/engine/camera"
	"github.com/Faultbox/midgard-planet/internal/engine/input"
	"github.com/Faultbox/midgard-planet/internal/engine/lighting"
	"github.com/Faultbox/midgard-planet/internal/engine/picking"
	"github.com/Faultbox/midgard-planet/internal/engine/renderer"
	"github.com/Faultbox/midgard-planet/internal/engine/screenshot"
	"github.com/Faultbox/midgard-planet/internal/engine/window"
	"github.com/Faultbox/midgard-planet/internal/logger"
	"github.com/Faultbox/midgard-planet/internal/metrics"
	"github.com/Faultbox/midgard-planet/internal/planet"
	"github.com/Faultbox/midgard-planet/internal/scene"
	"github.com/Faultbox/midgard-planet/internal/shape"
	"github.com/Faultbox/midgard-planet/pkg/math"
)

// Viewer is the main viewer instance.
type Viewer struct {
	cfg     *config.Config
	running bool
	log     *zap.Logger

	window   *window.Window
	renderer *renderer.Renderer
	input    *input.Input
	camera   *camera.OrbitCamera
	shots    *screenshot.Capture

	shape  *shape.Generator
	scene  *scene.Scene
	planet *planet.Planet
}

// New creates the window, GL renderer and planet. m may be nil.
func New(cfg *config.Config, m *metrics.Metrics) (*Viewer, error) {
	v := &Viewer{cfg: cfg, log: logger.Named("viewer")}
	v.log.Info("initializing viewer",
		zap.Int("width", cfg.Graphics.Width),
		zap.Int("height", cfg.Graphics.Height),
	)

	planetCfg, err := cfg.PlanetSettings()
	if err != nil {
		return nil, err
	}
	v.shape, err = shape.NewGenerator(cfg.Shape)
	if err != nil {
		return nil, err
	}
	biomes, err := shape.NewBiomes(cfg.Biome)
	if err != nil {
		return nil, err
	}

	// Create window (this also creates OpenGL context)
	v.window, err = window.New(window.Config{
		Title:      "Midgard Planet",
		Width:      cfg.Graphics.Width,
		Height:     cfg.Graphics.Height,
		Fullscreen: cfg.Graphics.Fullscreen,
		VSync:      cfg.Graphics.VSync,
		Samples:    cfg.Graphics.MSAA,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create window: %w", err)
	}

	// Create renderer (AFTER window, since OpenGL context must exist)
	v.renderer, err = renderer.New(renderer.Config{
		Width:     cfg.Graphics.Width,
		Height:    cfg.Graphics.Height,
		Wireframe: cfg.Graphics.Wireframe,
		Sun: lighting.Sun{
			Longitude:        cfg.Graphics.SunLongitude,
			Latitude:         cfg.Graphics.SunLatitude,
			DegreesPerSecond: cfg.Graphics.SunSpeed,
		},
	})
	if err != nil {
		v.window.Close()
		return nil, fmt.Errorf("failed to create renderer: %w", err)
	}

	v.renderer.Resize(v.window.DrawableSize())
	v.input = input.New()
	v.shots = screenshot.New(cfg.Graphics.ScreenshotDir, "planet")
	v.camera = camera.NewOrbitCamera(v.shape.PlanetRadius())
	v.scene = scene.New()

	v.planet, err = planet.New(planetCfg, planet.Deps{
		Shape:   v.shape,
		Biome:   biomes,
		Factory: v.renderer.Factory(v.scene),
		Viewer:  v.camera,
		Metrics: m,
		Log:     logger.Named("planet"),
	})
	if err != nil {
		v.renderer.Close()
		v.window.Close()
		return nil, fmt.Errorf("failed to create planet: %w", err)
	}

	v.log.Info("viewer initialized", zap.Stringer("planet", v.planet.ID()))
	return v, nil
}

// Run starts the main loop.
func (v *Viewer) Run() error {
	v.running = true

	lastTime := time.Now()
	frameCount := 0
	fpsTimer := time.Now()

	var frameBudget time.Duration
	if v.cfg.Graphics.FPSLimit > 0 {
		frameBudget = time.Second / time.Duration(v.cfg.Graphics.FPSLimit)
	}

	v.log.Info("starting viewer loop")

	for v.running {
		now := time.Now()
		dt := now.Sub(lastTime).Seconds()
		lastTime = now

		// 1. Process input
		if v.input.Update() {
			v.running = false
			break
		}
		if err := v.handleEvents(); err != nil {
			return err
		}

		// 2. Advance LOD against the camera
		if err := v.planet.Tick(); err != nil {
			// Chunk failures are already visible in the scene; keep running.
			v.log.Warn("planet tick", zap.Error(err))
		}

		// 3. Render
		v.renderer.AdvanceSun(float32(dt))
		v.render()
		if v.input.IsKeyPressed(sdl.SCANCODE_P) {
			v.screenshot()
		}

		// 4. Present (swap buffers)
		v.window.SwapBuffers()

		frameCount++
		if time.Since(fpsTimer) >= time.Second {
			st := v.planet.Stats()
			v.log.Debug("fps",
				zap.Int("count", frameCount),
				zap.String("dt", fmt.Sprintf("%.2fms", dt*1000)),
				zap.Int("rendered", st.Rendered),
				zap.Int64("in_flight", v.planet.InFlight()),
			)
			v.window.SetTitle(fmt.Sprintf("Midgard Planet - %d fps, %d chunks", frameCount, st.Rendered))
			frameCount = 0
			fpsTimer = time.Now()
		}

		if frameBudget > 0 {
			if spent := time.Since(now); spent < frameBudget {
				time.Sleep(frameBudget - spent)
			}
		}
	}

	return nil
}

func (v *Viewer) handleEvents() error {
	for _, event := range v.input.Events() {
		switch event.Type {
		case input.EventWindowResize:
			v.renderer.Resize(v.window.DrawableSize())
		case input.EventMouseDown:
			if event.Button == sdl.BUTTON_RIGHT {
				v.pick(float32(event.MouseX), float32(event.MouseY))
			}
		case input.EventKeyDown:
			switch event.Key {
			case sdl.SCANCODE_ESCAPE:
				v.running = false
			case sdl.SCANCODE_F:
				v.renderer.ToggleWireframe()
			case sdl.SCANCODE_R:
				if err := v.planet.Generate(); err != nil {
					return fmt.Errorf("regenerate planet: %w", err)
				}
			}
		}
	}

	v.camera.HandleDrag(v.input.Drag(sdl.BUTTON_LEFT))
	if wheel := v.input.Wheel(); wheel != 0 {
		v.camera.HandleZoom(wheel)
	}
	return nil
}

func (v *Viewer) render() {
	if lo, hi, ok := v.shape.ElevationRange(); ok {
		v.renderer.SetElevationRange(lo, hi)
	}
	v.renderer.Begin()
	v.renderer.Draw(v.camera.ViewProjection(v.window.Aspect()))
	v.renderer.End()
}

// pick logs the chunk under the cursor and the detail level rendered there.
func (v *Viewer) pick(x, y float32) {
	w, h := v.window.GetSize()
	ray := picking.ScreenToRay(x, y, float32(w), float32(h), picking.Lens{
		Eye:    v.camera.Position(),
		Target: v.camera.Center,
		Up:     math.Up,
		FovY:   v.camera.FovY,
	})

	var nearest *scene.Chunk
	best := float32(-1)
	for _, c := range v.scene.ActiveChunks() {
		mesh := c.Mesh()
		if mesh == nil {
			continue
		}
		if t, hit := ray.IntersectBounds(mesh.Bounds); hit && (best < 0 || t < best) {
			nearest, best = c, t
		}
	}
	if nearest == nil {
		v.log.Info("pick missed the planet")
		return
	}

	// Bounds are loose around a curved chunk; settle on the sphere when it
	// is hit to report the point on the surface.
	if t, hit := ray.IntersectSphere(v.camera.Center, v.shape.PlanetRadius()); hit {
		best = t
	}
	point := ray.At(best)
	level, _ := v.planet.NearestRenderedLevel(point)
	v.log.Info("picked chunk",
		zap.String("chunk", nearest.Name()),
		zap.String("material", nearest.Material()),
		zap.Uint32("level_under_point", level),
		zap.Float32("x", point.X),
		zap.Float32("y", point.Y),
		zap.Float32("z", point.Z),
	)
}

// screenshot saves the frame just rendered, before the buffers swap.
func (v *Viewer) screenshot() {
	pixels, w, h := v.renderer.ReadPixels()
	path, err := v.shots.FromPixels(pixels, w, h)
	if err != nil {
		v.log.Warn("screenshot failed", zap.Error(err))
		return
	}
	v.log.Info("screenshot saved", zap.String("path", path))
}

// Close tears down the planet before the GL context goes away.
func (v *Viewer) Close() {
	v.log.Info("closing viewer")

	if v.planet != nil {
		v.planet.Close()
	}
	if v.renderer != nil {
		v.renderer.Close()
	}
	if v.window != nil {
		v.window.Close()
	}
}
