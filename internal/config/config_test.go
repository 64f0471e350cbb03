package config

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/Faultbox/midgard-planet/internal/cubesphere"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	// Planet defaults
	if cfg.Planet.Resolution != 10 {
		t.Errorf("expected resolution 10, got %d", cfg.Planet.Resolution)
	}
	if cfg.Planet.ChunkPerFaceLine != 4 {
		t.Errorf("expected 4 chunks per face line, got %d", cfg.Planet.ChunkPerFaceLine)
	}
	if cfg.Planet.FaceMask != "all" {
		t.Errorf("expected face mask 'all', got %s", cfg.Planet.FaceMask)
	}
	if len(cfg.Planet.DetailLevels) != 7 {
		t.Errorf("expected 7 detail levels, got %d", len(cfg.Planet.DetailLevels))
	}

	// Shape defaults
	if cfg.Shape.Radius != 100 {
		t.Errorf("expected radius 100, got %f", cfg.Shape.Radius)
	}
	if len(cfg.Shape.Layers) != 2 {
		t.Errorf("expected 2 noise layers, got %d", len(cfg.Shape.Layers))
	}

	// Graphics defaults
	if cfg.Graphics.Width != 1280 || cfg.Graphics.Height != 720 {
		t.Errorf("expected 1280x720, got %dx%d", cfg.Graphics.Width, cfg.Graphics.Height)
	}
	if !cfg.Graphics.VSync {
		t.Error("expected vsync to be true by default")
	}

	// Metrics and logging defaults
	if cfg.Metrics.Enabled {
		t.Error("expected metrics to be disabled by default")
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected log level 'info', got %s", cfg.Logging.Level)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config must be valid: %v", err)
	}
}

func TestDefaultDoesNotShareDetailLevels(t *testing.T) {
	a := Default()
	a.Planet.DetailLevels[0] = 9
	if b := Default(); b.Planet.DetailLevels[0] != 1 {
		t.Errorf("defaults share the detail level slice, got %f", b.Planet.DetailLevels[0])
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
planet:
  resolution: 16
  chunk_per_face_line: 2
  face_mask: front
  detail_levels: [1.0, 0.5, 0.25]
  max_concurrent_builds: 8

shape:
  radius: 250
  seed: 42
  layers:
    - enabled: true
      noise:
        strength: 0.2
        octaves: 3
        base_roughness: 1
        roughness: 2
        persistence: 0.5
        min_value: 0.9
        center: {x: 1, y: 2, z: 3}

simulation:
  ticks: 30
  start_distance: 4
  end_distance: 1.2
  approach_face: front
  tick_interval: 16ms

metrics:
  enabled: true
  addr: ":9000"

logging:
  level: "debug"
  log_file: "planet.log"
`

	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg := Default()
	if err := loadFromFile(cfg, configPath); err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Planet.Resolution != 16 {
		t.Errorf("expected resolution 16, got %d", cfg.Planet.Resolution)
	}
	if cfg.Planet.FaceMask != "front" {
		t.Errorf("expected face mask 'front', got %s", cfg.Planet.FaceMask)
	}
	if len(cfg.Planet.DetailLevels) != 3 {
		t.Errorf("expected 3 detail levels, got %v", cfg.Planet.DetailLevels)
	}
	if cfg.Planet.MaxBuildRetries != 2 {
		t.Errorf("expected retries to keep default 2, got %d", cfg.Planet.MaxBuildRetries)
	}

	if cfg.Shape.Radius != 250 || cfg.Shape.Seed != 42 {
		t.Errorf("expected radius 250 seed 42, got %f %d", cfg.Shape.Radius, cfg.Shape.Seed)
	}
	if len(cfg.Shape.Layers) != 1 {
		t.Fatalf("expected file layers to replace defaults, got %d", len(cfg.Shape.Layers))
	}
	if c := cfg.Shape.Layers[0].Noise.Center; c.X != 1 || c.Y != 2 || c.Z != 3 {
		t.Errorf("expected noise center (1,2,3), got %+v", c)
	}

	if cfg.Simulation.TickInterval.Milliseconds() != 16 {
		t.Errorf("expected 16ms tick interval, got %v", cfg.Simulation.TickInterval)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Addr != ":9000" {
		t.Errorf("expected metrics on :9000, got %+v", cfg.Metrics)
	}
	if cfg.Logging.LogFile != "planet.log" {
		t.Errorf("expected log file 'planet.log', got %s", cfg.Logging.LogFile)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("loaded config must be valid: %v", err)
	}
	pc, err := cfg.PlanetSettings()
	if err != nil {
		t.Fatalf("planet settings: %v", err)
	}
	if pc.DetailLevels.MaxLevel() != 2 {
		t.Errorf("expected max level 2, got %d", pc.DetailLevels.MaxLevel())
	}
	if pc.Faces.String() != "front" {
		t.Errorf("expected front face mask, got %s", pc.Faces)
	}
}

func TestLoadFromFileInvalid(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")

	invalidYAML := `
planet:
  resolution: not a number
  invalid syntax here
`

	if err := os.WriteFile(configPath, []byte(invalidYAML), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg := Default()
	if err := loadFromFile(cfg, configPath); err == nil {
		t.Error("expected error loading invalid YAML, got nil")
	}
}

func TestLoadFromFileUnknownKey(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "typo.yaml")
	if err := os.WriteFile(configPath, []byte("planet:\n  resolutoin: 12\n"), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	if err := loadFromFile(Default(), configPath); err == nil {
		t.Error("expected error for unknown key, got nil")
	}
}

func TestLoadFromFileEmpty(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "empty.yaml")
	if err := os.WriteFile(configPath, nil, 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg := Default()
	if err := loadFromFile(cfg, configPath); err != nil {
		t.Fatalf("empty file should keep defaults: %v", err)
	}
	if cfg.Planet.Resolution != 10 {
		t.Errorf("expected default resolution, got %d", cfg.Planet.Resolution)
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	cfg := Default()
	err := loadFromFile(cfg, "/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("expected error loading missing file, got nil")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"resolution", func(c *Config) { c.Planet.Resolution = 1 }},
		{"chunks", func(c *Config) { c.Planet.ChunkPerFaceLine = 0 }},
		{"resolution too large", func(c *Config) { c.Planet.Resolution = 256 }},
		{"chunks too large", func(c *Config) { c.Planet.ChunkPerFaceLine = 256 }},
		{"too many detail levels", func(c *Config) { c.Planet.DetailLevels = slices.Repeat([]float32{0.5}, 25) }},
		{"face mask", func(c *Config) { c.Planet.FaceMask = "inside" }},
		{"detail levels", func(c *Config) { c.Planet.DetailLevels = nil }},
		{"retries", func(c *Config) { c.Planet.MaxBuildRetries = -1 }},
		{"radius", func(c *Config) { c.Shape.Radius = -5 }},
		{"biomes", func(c *Config) { c.Biome.Biomes = nil }},
		{"ticks", func(c *Config) { c.Simulation.Ticks = 0 }},
		{"distances", func(c *Config) { c.Simulation.EndDistance = 0.5 }},
		{"approach face", func(c *Config) { c.Simulation.ApproachFace = "up" }},
		{"window", func(c *Config) { c.Graphics.Width = 0 }},
		{"msaa", func(c *Config) { c.Graphics.MSAA = -2 }},
		{"metrics addr", func(c *Config) { c.Metrics = MetricsConfig{Enabled: true} }},
		{"log level", func(c *Config) { c.Logging.Level = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, cubesphere.ErrInvalidConfiguration) {
				t.Errorf("expected invalid configuration, got %v", err)
			}
		})
	}
}

func TestConfigDir(t *testing.T) {
	dir := ConfigDir()

	// Actual path depends on OS
	if dir == "" {
		t.Error("ConfigDir returned empty string")
	}
	if !filepath.IsAbs(dir) {
		t.Errorf("ConfigDir should return absolute path, got %s", dir)
	}
}

func TestFindConfigFile(t *testing.T) {
	origDir, _ := os.Getwd()
	defer os.Chdir(origDir)

	tmpDir := t.TempDir()
	os.Chdir(tmpDir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmpDir, "xdg"))
	t.Setenv("HOME", tmpDir)

	// No config file exists - should return empty
	path := findConfigFile()
	if path != "" {
		t.Errorf("expected empty path when no config exists, got %s", path)
	}

	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("planet:\n  resolution: 8\n"), 0644); err != nil {
		t.Fatalf("failed to create test config: %v", err)
	}

	path = findConfigFile()
	if path == "" {
		t.Error("expected to find config.yaml in current directory")
	}
}

func TestSaveToRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := Default()
	cfg.Planet.Resolution = 24
	cfg.Planet.FaceMask = "back"
	cfg.Shape.Seed = 1234
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}

	loaded := Default()
	if err := loadFromFile(loaded, path); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if loaded.Planet.Resolution != 24 || loaded.Planet.FaceMask != "back" || loaded.Shape.Seed != 1234 {
		t.Errorf("round trip lost values: %+v %+v", loaded.Planet, loaded.Shape)
	}
}

func TestApplyFlags(t *testing.T) {
	tests := []struct {
		name     string
		setup    func()
		verify   func(*testing.T, *Config)
		teardown func()
	}{
		{
			name:  "debug flag",
			setup: func() { *flagDebug = true },
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Logging.Level != "debug" {
					t.Errorf("expected log level 'debug', got %s", cfg.Logging.Level)
				}
			},
			teardown: func() { *flagDebug = false },
		},
		{
			name: "tessellation flags",
			setup: func() {
				*flagResolution = 32
				*flagChunks = 8
				*flagFace = "left"
			},
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Planet.Resolution != 32 {
					t.Errorf("expected resolution 32, got %d", cfg.Planet.Resolution)
				}
				if cfg.Planet.ChunkPerFaceLine != 8 {
					t.Errorf("expected 8 chunks per line, got %d", cfg.Planet.ChunkPerFaceLine)
				}
				if cfg.Planet.FaceMask != "left" {
					t.Errorf("expected face mask 'left', got %s", cfg.Planet.FaceMask)
				}
			},
			teardown: func() {
				*flagResolution = 0
				*flagChunks = 0
				*flagFace = ""
			},
		},
		{
			name: "simulation flags",
			setup: func() {
				*flagTicks = 5
				*flagOBJ = "out.obj"
			},
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Simulation.Ticks != 5 {
					t.Errorf("expected 5 ticks, got %d", cfg.Simulation.Ticks)
				}
				if cfg.Simulation.ExportOBJ != "out.obj" {
					t.Errorf("expected obj path, got %q", cfg.Simulation.ExportOBJ)
				}
			},
			teardown: func() {
				*flagTicks = 0
				*flagOBJ = ""
			},
		},
		{
			name:  "metrics flag",
			setup: func() { *flagMetrics = ":9100" },
			verify: func(t *testing.T, cfg *Config) {
				if !cfg.Metrics.Enabled || cfg.Metrics.Addr != ":9100" {
					t.Errorf("expected metrics on :9100, got %+v", cfg.Metrics)
				}
			},
			teardown: func() { *flagMetrics = "" },
		},
		{
			name:  "fullscreen flag",
			setup: func() { *flagFullscreen = true },
			verify: func(t *testing.T, cfg *Config) {
				if !cfg.Graphics.Fullscreen {
					t.Error("expected fullscreen to be true with fullscreen flag")
				}
			},
			teardown: func() { *flagFullscreen = false },
		},
		{
			name: "width and height flags",
			setup: func() {
				*flagWidth = 2560
				*flagHeight = 1440
			},
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Graphics.Width != 2560 || cfg.Graphics.Height != 1440 {
					t.Errorf("expected 2560x1440, got %dx%d", cfg.Graphics.Width, cfg.Graphics.Height)
				}
			},
			teardown: func() {
				*flagWidth = 0
				*flagHeight = 0
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup()
			defer tt.teardown()

			cfg := Default()
			applyFlags(cfg)
			tt.verify(t, cfg)
		})
	}
}

func TestLoadPriority(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
planet:
  resolution: 12
  chunk_per_face_line: 3
`

	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	// Flag overrides the file
	*flagConfig = configPath
	*flagResolution = 20
	defer func() {
		*flagConfig = ""
		*flagResolution = 0
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Planet.Resolution != 20 {
		t.Errorf("expected resolution 20 from flag, got %d", cfg.Planet.Resolution)
	}
	if cfg.Planet.ChunkPerFaceLine != 3 {
		t.Errorf("expected 3 chunks per line from file, got %d", cfg.Planet.ChunkPerFaceLine)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("planet:\n  resolution: 1\n"), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	*flagConfig = configPath
	defer func() { *flagConfig = "" }()

	if _, err := Load(); !errors.Is(err, cubesphere.ErrInvalidConfiguration) {
		t.Errorf("expected invalid configuration, got %v", err)
	}
}
