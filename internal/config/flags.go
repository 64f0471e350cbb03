package config

import "flag"

var (
	flagConfig     = flag.String("config", "", "Path to config file")
	flagDebug      = flag.Bool("debug", false, "Enable debug logging")
	flagResolution = flag.Int("resolution", 0, "Vertices per chunk edge")
	flagChunks     = flag.Int("chunks", 0, "Chunks per face line at level 0")
	flagFace       = flag.String("face", "", "Face mask: all, top, bottom, left, right, front, back")
	flagTicks      = flag.Int("ticks", 0, "Ticks to simulate (headless)")
	flagOBJ        = flag.String("obj", "", "Export the final chunks as OBJ to this path")
	flagMetrics    = flag.String("metrics", "", "Serve Prometheus metrics on this address")
	flagWindowed   = flag.Bool("windowed", false, "Run in windowed mode")
	flagFullscreen = flag.Bool("fullscreen", false, "Run in fullscreen mode")
	flagWidth      = flag.Int("width", 0, "Window width")
	flagHeight     = flag.Int("height", 0, "Window height")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagResolution > 0 {
		cfg.Planet.Resolution = *flagResolution
	}
	if *flagChunks > 0 {
		cfg.Planet.ChunkPerFaceLine = *flagChunks
	}
	if *flagFace != "" {
		cfg.Planet.FaceMask = *flagFace
	}
	if *flagTicks > 0 {
		cfg.Simulation.Ticks = *flagTicks
	}
	if *flagOBJ != "" {
		cfg.Simulation.ExportOBJ = *flagOBJ
	}
	if *flagMetrics != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Addr = *flagMetrics
	}
	if *flagWindowed {
		cfg.Graphics.Fullscreen = false
	}
	if *flagFullscreen {
		cfg.Graphics.Fullscreen = true
	}
	if *flagWidth > 0 {
		cfg.Graphics.Width = *flagWidth
	}
	if *flagHeight > 0 {
		cfg.Graphics.Height = *flagHeight
	}
}
