package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Faultbox/modelkit/internal/engine/importer"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Shaders.Vertex != "./assets/shaders/main.vs" {
		t.Errorf("expected default vertex shader, got %s", cfg.Shaders.Vertex)
	}
	if cfg.Shaders.Fragment != "./assets/shaders/main.fs" {
		t.Errorf("expected default fragment shader, got %s", cfg.Shaders.Fragment)
	}

	if !cfg.Import.Normalize {
		t.Error("expected normalize to be enabled by default")
	}
	if cfg.Import.PathEncoding != "utf-8" {
		t.Errorf("expected path encoding utf-8, got %s", cfg.Import.PathEncoding)
	}

	if cfg.Textures.MaxSize != 4096 {
		t.Errorf("expected max texture size 4096, got %d", cfg.Textures.MaxSize)
	}
	if cfg.Textures.MagentaKey {
		t.Error("expected magenta key to be disabled by default")
	}

	if cfg.Window.Width != 1280 || cfg.Window.Height != 720 {
		t.Errorf("expected 1280x720, got %dx%d", cfg.Window.Width, cfg.Window.Height)
	}
	if !cfg.Window.VSync {
		t.Error("expected vsync to be true by default")
	}

	if cfg.Logging.Level != "info" {
		t.Errorf("expected log level 'info', got %s", cfg.Logging.Level)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config does not validate: %v", err)
	}
}

func TestImportFlags(t *testing.T) {
	cfg := Default()
	want := importer.DefaultFlags | importer.NormalizeScale
	if got := cfg.ImportFlags(); got != want {
		t.Errorf("default import flags = %s, want %s", got, want)
	}

	cfg.Import.Normalize = false
	cfg.Import.PreTransform = false
	if got := cfg.ImportFlags(); got.Has(importer.NormalizeScale) || got.Has(importer.PreTransformVertices) {
		t.Errorf("disabled steps still set: %s", got)
	}
}

func TestModelOptions(t *testing.T) {
	cfg := Default()
	cfg.Shaders.Vertex = "a.vs"
	cfg.Textures.MaxSize = 512
	cfg.Textures.MagentaKey = true
	cfg.Import.PathEncoding = "euc-kr"

	opts, err := cfg.ModelOptions()
	if err != nil {
		t.Fatalf("ModelOptions: %v", err)
	}
	if opts.VertexShader != "a.vs" || opts.FragmentShader != cfg.Shaders.Fragment {
		t.Errorf("shaders = %q, %q", opts.VertexShader, opts.FragmentShader)
	}
	if opts.Textures.MaxSize != 512 || !opts.Textures.MagentaKey || !opts.Textures.Mipmaps {
		t.Errorf("texture options = %+v", opts.Textures)
	}
	if len(opts.Import) != 2 {
		t.Errorf("import options = %d, want flags and obj backend", len(opts.Import))
	}
	if got := importer.New(opts.Import...).Flags(); got != cfg.ImportFlags() {
		t.Errorf("importer flags = %s, want %s", got, cfg.ImportFlags())
	}

	cfg.Import.PathEncoding = "klingon"
	if _, err := cfg.ModelOptions(); err == nil {
		t.Error("expected error for unknown path encoding")
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Shaders.Vertex = ""
	cfg.Import.PathEncoding = "klingon"
	cfg.Textures.MaxSize = -1
	cfg.Window.Width = 0
	cfg.Logging.Level = "verbose"

	err := cfg.Validate()
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
	for _, want := range []string{"shaders.vertex", "path_encoding", "max_size", "window size", "logging.level"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}

	cfg = Default()
	cfg.Import.Triangulate = false
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "triangulate") {
		t.Errorf("expected triangulate error, got %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
shaders:
  vertex: "shaders/phong.vs"
  fragment: "shaders/phong.fs"

import:
  normalize: false
  path_encoding: "cp949"

textures:
  max_size: 1024
  mipmaps: false
  magenta_key: true

window:
  width: 1920
  height: 1080
  fullscreen: true
  vsync: false

logging:
  level: "debug"
  log_file: "modelview.log"
`

	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg := Default()
	if err := loadFromFile(cfg, configPath); err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Shaders.Vertex != "shaders/phong.vs" || cfg.Shaders.Fragment != "shaders/phong.fs" {
		t.Errorf("unexpected shaders %+v", cfg.Shaders)
	}
	if cfg.Import.Normalize {
		t.Error("expected normalize to be false")
	}
	// Keys absent from the file keep their defaults
	if !cfg.Import.Triangulate {
		t.Error("expected triangulate to keep its default")
	}
	if cfg.Import.PathEncoding != "cp949" {
		t.Errorf("expected path encoding cp949, got %s", cfg.Import.PathEncoding)
	}
	if cfg.Textures.MaxSize != 1024 || cfg.Textures.Mipmaps || !cfg.Textures.MagentaKey {
		t.Errorf("unexpected textures %+v", cfg.Textures)
	}
	if cfg.Window.Width != 1920 || cfg.Window.Height != 1080 {
		t.Errorf("expected 1920x1080, got %dx%d", cfg.Window.Width, cfg.Window.Height)
	}
	if !cfg.Window.Fullscreen || cfg.Window.VSync {
		t.Errorf("unexpected window %+v", cfg.Window)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.LogFile != "modelview.log" {
		t.Errorf("unexpected logging %+v", cfg.Logging)
	}
}

func TestLoadFromFileInvalid(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")

	invalidYAML := `
window:
  width: not a number
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

func TestLoadFromFileMissing(t *testing.T) {
	cfg := Default()
	if err := loadFromFile(cfg, "/nonexistent/path/config.yaml"); err == nil {
		t.Error("expected error loading missing file, got nil")
	}
}

func TestConfigDir(t *testing.T) {
	dir := ConfigDir()
	if dir == "" {
		t.Error("ConfigDir returned empty string")
	}
	if !filepath.IsAbs(dir) {
		t.Errorf("ConfigDir should return absolute path, got %s", dir)
	}
	if filepath.Dir(Path()) != dir {
		t.Errorf("Path %s is not inside %s", Path(), dir)
	}
}

func TestFindConfigFile(t *testing.T) {
	origDir, _ := os.Getwd()
	defer os.Chdir(origDir)

	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmpDir, "xdg"))
	t.Setenv("HOME", filepath.Join(tmpDir, "home"))
	os.Chdir(tmpDir)

	if path := findConfigFile(); path != "" {
		t.Errorf("expected empty path when no config exists, got %s", path)
	}

	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("window:\n  width: 800\n"), 0644); err != nil {
		t.Fatalf("failed to create test config: %v", err)
	}

	if path := findConfigFile(); path == "" {
		t.Error("expected to find config.yaml in current directory")
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
			name:  "fullscreen flag",
			setup: func() { *flagFullscreen = true },
			verify: func(t *testing.T, cfg *Config) {
				if !cfg.Window.Fullscreen {
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
				if cfg.Window.Width != 2560 || cfg.Window.Height != 1440 {
					t.Errorf("expected 2560x1440, got %dx%d", cfg.Window.Width, cfg.Window.Height)
				}
			},
			teardown: func() {
				*flagWidth = 0
				*flagHeight = 0
			},
		},
		{
			name: "shader flags",
			setup: func() {
				*flagVertex = "custom.vs"
				*flagFragment = "custom.fs"
			},
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Shaders.Vertex != "custom.vs" || cfg.Shaders.Fragment != "custom.fs" {
					t.Errorf("unexpected shaders %+v", cfg.Shaders)
				}
			},
			teardown: func() {
				*flagVertex = ""
				*flagFragment = ""
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
window:
  width: 1600
  height: 900
`

	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	*flagConfig = configPath
	*flagWidth = 1920
	defer func() {
		*flagConfig = ""
		*flagWidth = 0
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	// Width from flag, height from file
	if cfg.Window.Width != 1920 {
		t.Errorf("expected width 1920 from flag, got %d", cfg.Window.Width)
	}
	if cfg.Window.Height != 900 {
		t.Errorf("expected height 900 from file, got %d", cfg.Window.Height)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("logging:\n  level: loud\n"), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	*flagConfig = configPath
	defer func() { *flagConfig = "" }()

	if _, err := Load(); !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid, got %v", err)
	}
}

func TestSaveTo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := Default()
	cfg.Window.Width = 800
	cfg.Import.PathEncoding = "euc-kr"
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}

	loaded := Default()
	if err := loadFromFile(loaded, path); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if loaded.Window.Width != 800 || loaded.Import.PathEncoding != "euc-kr" {
		t.Errorf("reloaded config = %+v", loaded)
	}

	cfg.Window.Height = -1
	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := cfg.SaveTo(bad); !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid saving invalid config, got %v", err)
	}
	if _, err := os.Stat(bad); !os.IsNotExist(err) {
		t.Error("invalid config was written")
	}
}
