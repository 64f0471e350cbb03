// Package config handles planet configuration loading and management.
package config

import (
	"time"

	"github.com/Faultbox/midgard-planet/internal/lod"
	"github.com/Faultbox/midgard-planet/internal/shape"
)

// Config holds all planet settings.
type Config struct {
	Planet     PlanetConfig        `yaml:"planet"`
	Shape      shape.Settings      `yaml:"shape"`
	Biome      shape.BiomeSettings `yaml:"biome"`
	Simulation SimulationConfig    `yaml:"simulation"`
	Graphics   GraphicsConfig      `yaml:"graphics"`
	Metrics    MetricsConfig       `yaml:"metrics"`
	Logging    LoggingConfig       `yaml:"logging"`
}

// PlanetConfig holds the static tessellation settings. Changing any of them
// regenerates the planet.
type PlanetConfig struct {
	Resolution          int       `yaml:"resolution"`
	ChunkPerFaceLine    int       `yaml:"chunk_per_face_line"`
	FaceMask            string    `yaml:"face_mask"` // all, top, bottom, left, right, front, back
	DetailLevels        []float32 `yaml:"detail_levels"`
	Material            string    `yaml:"material"`
	MaxBuildRetries     int       `yaml:"max_build_retries"`
	MaxConcurrentBuilds int       `yaml:"max_concurrent_builds"` // 0 = unbounded
}

// SimulationConfig drives the headless fly-in.
type SimulationConfig struct {
	Ticks         int           `yaml:"ticks"`
	StartDistance float32       `yaml:"start_distance"` // in planet radii from the center
	EndDistance   float32       `yaml:"end_distance"`
	ApproachFace  string        `yaml:"approach_face"`
	TickInterval  time.Duration `yaml:"tick_interval"`
	ExportOBJ     string        `yaml:"export_obj"`
}

// GraphicsConfig holds display and rendering settings.
type GraphicsConfig struct {
	Width      int  `yaml:"width"`
	Height     int  `yaml:"height"`
	Fullscreen bool `yaml:"fullscreen"`
	VSync      bool `yaml:"vsync"`
	FPSLimit   int  `yaml:"fps_limit"`
	Wireframe  bool `yaml:"wireframe"`
	MSAA       int  `yaml:"msaa"` // samples, 0 or 1 disables

	SunLongitude  float32 `yaml:"sun_longitude"` // degrees
	SunLatitude   float32 `yaml:"sun_latitude"`
	SunSpeed      float32 `yaml:"sun_speed"` // degrees per second, 0 = fixed
	ScreenshotDir string  `yaml:"screenshot_dir"`
}

// MetricsConfig holds the Prometheus endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Planet: PlanetConfig{
			Resolution:       10,
			ChunkPerFaceLine: 4,
			FaceMask:         "all",
			DetailLevels:     append([]float32(nil), lod.DefaultFractions...),
			Material:         lod.DefaultMaterial,
			MaxBuildRetries:  2,
		},
		Shape: shape.DefaultSettings(),
		Biome: shape.DefaultBiomeSettings(),
		Simulation: SimulationConfig{
			Ticks:         120,
			StartDistance: 10,
			EndDistance:   1.05,
			ApproachFace:  "top",
		},
		Graphics: GraphicsConfig{
			Width:         1280,
			Height:        720,
			VSync:         true,
			MSAA:          4,
			SunLongitude:  30,
			SunLatitude:   55,
			ScreenshotDir: "screenshots",
		},
		Metrics: MetricsConfig{
			Addr: "127.0.0.1:9464",
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}
