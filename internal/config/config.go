// Package config handles viewer configuration loading and management.
package config

import (
	"github.com/Faultbox/modelkit/internal/engine/importer"
	"github.com/Faultbox/modelkit/internal/engine/model"
	"github.com/Faultbox/modelkit/internal/engine/texture"
	"github.com/Faultbox/modelkit/pkg/encoding"
)

// Config holds all settings.
type Config struct {
	Shaders  ShadersConfig  `yaml:"shaders"`
	Import   ImportConfig   `yaml:"import"`
	Textures TexturesConfig `yaml:"textures"`
	Window   WindowConfig   `yaml:"window"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ShadersConfig holds the GLSL source paths models are drawn with.
type ShadersConfig struct {
	Vertex   string `yaml:"vertex"`
	Fragment string `yaml:"fragment"`
}

// ImportConfig selects scene post-processing steps.
type ImportConfig struct {
	Triangulate   bool `yaml:"triangulate"`
	SmoothNormals bool `yaml:"smooth_normals"`
	JoinVertices  bool `yaml:"join_vertices"`
	PreTransform  bool `yaml:"pre_transform"`
	Normalize     bool `yaml:"normalize"`
	// PathEncoding names the charset of texture paths in material libraries.
	PathEncoding string `yaml:"path_encoding"`
}

// TexturesConfig holds texture upload settings.
type TexturesConfig struct {
	MaxSize    int  `yaml:"max_size"` // 0 = unlimited
	Mipmaps    bool `yaml:"mipmaps"`
	MagentaKey bool `yaml:"magenta_key"`
}

// WindowConfig holds display settings.
type WindowConfig struct {
	Width      int  `yaml:"width"`
	Height     int  `yaml:"height"`
	Fullscreen bool `yaml:"fullscreen"`
	VSync      bool `yaml:"vsync"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Shaders: ShadersConfig{
			Vertex:   "./assets/shaders/main.vs",
			Fragment: "./assets/shaders/main.fs",
		},
		Import: ImportConfig{
			Triangulate:   true,
			SmoothNormals: true,
			JoinVertices:  true,
			PreTransform:  true,
			Normalize:     true,
			PathEncoding:  "utf-8",
		},
		Textures: TexturesConfig{
			MaxSize: 4096,
			Mipmaps: true,
		},
		Window: WindowConfig{
			Width:      1280,
			Height:     720,
			Fullscreen: false,
			VSync:      true,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// ImportFlags converts the import section into importer flags.
func (c *Config) ImportFlags() importer.Flags {
	var f importer.Flags
	set := func(on bool, flag importer.Flags) {
		if on {
			f |= flag
		}
	}
	set(c.Import.Triangulate, importer.Triangulate)
	set(c.Import.SmoothNormals, importer.GenSmoothNormals)
	set(c.Import.JoinVertices, importer.JoinIdenticalVertices)
	set(c.Import.PreTransform, importer.PreTransformVertices)
	set(c.Import.Normalize, importer.NormalizeScale)
	return f
}

// ModelOptions builds loader options from the config. The path encoding must
// already have passed Validate.
func (c *Config) ModelOptions() (model.Options, error) {
	enc, err := encoding.Lookup(c.Import.PathEncoding)
	if err != nil {
		return model.Options{}, err
	}
	return model.Options{
		VertexShader:   c.Shaders.Vertex,
		FragmentShader: c.Shaders.Fragment,
		Import: []importer.Option{
			importer.WithFlags(c.ImportFlags()),
			importer.WithBackend(importer.NewOBJ(importer.OBJOptions{PathEncoding: enc})),
		},
		Textures: texture.Options{
			MaxSize:    c.Textures.MaxSize,
			Mipmaps:    c.Textures.Mipmaps,
			MagentaKey: c.Textures.MagentaKey,
		},
	}, nil
}
