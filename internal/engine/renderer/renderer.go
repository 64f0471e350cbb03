// Package renderer draws planet chunks with OpenGL.
package renderer

import (
	"fmt"

	"github.com/go-gl/gl/v4.1-core/gl"
	"go.uber.org/zap"

	"github.com/Faultbox/midgard-planet/internal/engine/lighting"
	"github.com/Faultbox/midgard-planet/internal/engine/shader"
	"github.com/Faultbox/midgard-planet/internal/logger"
	"github.com/Faultbox/midgard-planet/pkg/math"
)

// Config holds renderer configuration.
type Config struct {
	Width     int
	Height    int
	Wireframe bool
	// Palette colors biome bands from first to last. Empty uses DefaultPalette.
	Palette []math.Vec3
	Sun     lighting.Sun
}

// DefaultPalette matches the default biome bands from pole to equator.
var DefaultPalette = []math.Vec3{
	{X: 0.92, Y: 0.94, Z: 0.96},
	{X: 0.42, Y: 0.48, Z: 0.40},
	{X: 0.26, Y: 0.52, Z: 0.22},
	{X: 0.58, Y: 0.62, Z: 0.28},
	{X: 0.86, Y: 0.76, Z: 0.48},
}

// failedColor marks chunks whose mesh could not be built.
var failedColor = math.Vec3{X: 0.9, Y: 0.1, Z: 0.1}

const maxPalette = 8

// Renderer handles all OpenGL rendering.
type Renderer struct {
	config Config
	log    *zap.Logger

	program *shader.Program

	chunks map[*glChunk]struct{}
	minE   float32
	maxE   float32
}

// New creates a new renderer.
// IMPORTANT: Must be called AFTER OpenGL context is created!
func New(cfg Config) (*Renderer, error) {
	if len(cfg.Palette) == 0 {
		cfg.Palette = DefaultPalette
	}
	if len(cfg.Palette) > maxPalette {
		return nil, fmt.Errorf("palette has %d colors, at most %d supported", len(cfg.Palette), maxPalette)
	}
	r := &Renderer{
		config: cfg,
		log:    logger.Named("renderer"),
		chunks: make(map[*glChunk]struct{}),
		maxE:   1,
	}

	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize OpenGL: %w", err)
	}

	r.log.Info("OpenGL initialized",
		zap.String("version", gl.GoStr(gl.GetString(gl.VERSION))),
		zap.String("renderer", gl.GoStr(gl.GetString(gl.RENDERER))),
	)

	gl.Enable(gl.DEPTH_TEST)
	gl.DepthFunc(gl.LESS)
	gl.Enable(gl.CULL_FACE)
	gl.ClearColor(0.02, 0.02, 0.05, 1.0)

	var err error
	r.program, err = shader.NewProgram(chunkVertexShader, chunkFragmentShader,
		"uViewProj", "uPalette", "uPaletteSize", "uElevation", "uFailed", "uFailedColor", "uLightDir")
	if err != nil {
		return nil, fmt.Errorf("failed to create chunk shader: %w", err)
	}
	if missing := r.program.Missing(); len(missing) > 0 {
		r.log.Warn("chunk shader uniforms inactive", zap.Strings("uniforms", missing))
	}

	r.log.Debug("chunk shader created", zap.Uint32("program", r.program.ID))
	return r, nil
}

// Close cleans up renderer resources. Chunks still alive are freed too.
func (r *Renderer) Close() {
	r.log.Info("closing renderer", zap.Int("chunks", len(r.chunks)))
	for c := range r.chunks {
		c.free()
	}
	clear(r.chunks)
	if r.program != nil {
		r.program.Delete()
	}
}

// Resize handles window resize.
func (r *Renderer) Resize(width, height int) {
	r.config.Width = width
	r.config.Height = height
	gl.Viewport(0, 0, int32(width), int32(height))
	r.log.Debug("renderer resized",
		zap.Int("width", width),
		zap.Int("height", height),
	)
}

// SetElevationRange sets the unscaled elevation range used to shade terrain.
func (r *Renderer) SetElevationRange(minE, maxE float32) {
	if maxE <= minE {
		maxE = minE + 1
	}
	r.minE, r.maxE = minE, maxE
}

// ToggleWireframe flips between filled and line rendering.
func (r *Renderer) ToggleWireframe() {
	r.config.Wireframe = !r.config.Wireframe
}

// AdvanceSun moves the light by dt seconds.
func (r *Renderer) AdvanceSun(dt float32) {
	r.config.Sun.Advance(dt)
}

// ReadPixels reads the back buffer as bottom-up RGBA rows.
func (r *Renderer) ReadPixels() ([]byte, int, int) {
	w, h := r.config.Width, r.config.Height
	pixels := make([]byte, w*h*4)
	if len(pixels) == 0 {
		return pixels, w, h
	}
	gl.PixelStorei(gl.PACK_ALIGNMENT, 1)
	gl.ReadPixels(0, 0, int32(w), int32(h), gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(pixels))
	return pixels, w, h
}

// Begin starts a new frame.
func (r *Renderer) Begin() {
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)
}

// Draw renders every active chunk with the given view-projection matrix.
// It returns the number of chunks drawn.
func (r *Renderer) Draw(viewProj math.Mat4) int {
	p := r.program
	p.Use()
	gl.UniformMatrix4fv(p.Uniform("uViewProj"), 1, false, viewProj.Ptr())

	flat := flattenPalette(r.config.Palette)
	gl.Uniform3fv(p.Uniform("uPalette"), int32(len(r.config.Palette)), &flat[0])
	gl.Uniform1i(p.Uniform("uPaletteSize"), int32(len(r.config.Palette)))
	gl.Uniform2f(p.Uniform("uElevation"), r.minE, r.maxE)
	gl.Uniform3f(p.Uniform("uFailedColor"), failedColor.X, failedColor.Y, failedColor.Z)
	light := r.config.Sun.Direction()
	gl.Uniform3f(p.Uniform("uLightDir"), light.X, light.Y, light.Z)

	if r.config.Wireframe {
		gl.PolygonMode(gl.FRONT_AND_BACK, gl.LINE)
		defer gl.PolygonMode(gl.FRONT_AND_BACK, gl.FILL)
	}

	drawn := 0
	for c := range r.chunks {
		if !c.drawable() {
			continue
		}
		var failed int32
		if c.failed {
			failed = 1
		}
		gl.Uniform1i(p.Uniform("uFailed"), failed)
		gl.BindVertexArray(c.vao)
		gl.DrawElements(gl.TRIANGLES, c.indexCount, gl.UNSIGNED_INT, nil)
		drawn++
	}
	gl.BindVertexArray(0)
	return drawn
}

// End finishes the current frame.
func (r *Renderer) End() {
	gl.UseProgram(0)
}

func flattenPalette(p []math.Vec3) []float32 {
	out := make([]float32, 0, len(p)*3)
	for _, c := range p {
		out = append(out, c.X, c.Y, c.Z)
	}
	return out
}
