package model

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/modelkit/internal/engine/gpu"
	"github.com/Faultbox/modelkit/internal/engine/importer"
	"github.com/Faultbox/modelkit/internal/engine/shader"
	"github.com/Faultbox/modelkit/internal/engine/texture"
	"github.com/Faultbox/modelkit/internal/logger"
)

// Options configures a Loader.
type Options struct {
	// VertexShader and FragmentShader are GLSL source files.
	VertexShader   string
	FragmentShader string
	// Import configures the scene importer.
	Import []importer.Option
	// Shininess derives the specular exponent; nil means NoShininess.
	Shininess ShininessFunc
	// Textures configures the default texture loader.
	Textures texture.Options
	// TextureLoader replaces the default texture loader.
	TextureLoader TextureLoader
}

// DefaultOptions returns options using the bundled shaders.
func DefaultOptions() Options {
	return Options{
		VertexShader:   "./assets/shaders/main.vs",
		FragmentShader: "./assets/shaders/main.fs",
	}
}

// Loader imports scene files and builds them into Models.
type Loader struct {
	ctx       gpu.Context
	opts      Options
	importer  *importer.Importer
	shaders   *shader.Manager
	geometry  *GeometryBuilder
	materials *MaterialLoader
	log       *zap.Logger
}

// NewLoader returns a loader allocating from ctx.
func NewLoader(ctx gpu.Context, opts Options) *Loader {
	textures := opts.TextureLoader
	if textures == nil {
		textures = texture.NewLoader(ctx, opts.Textures)
	}
	return &Loader{
		ctx:       ctx,
		opts:      opts,
		importer:  importer.New(opts.Import...),
		shaders:   shader.NewManager(ctx),
		geometry:  NewGeometryBuilder(ctx),
		materials: NewMaterialLoader(textures, opts.Shininess),
		log:       logger.Named("model"),
	}
}

// Import reads and post-processes the scene at path. It does not touch the
// graphics context and may be called from any goroutine; the returned scene
// is then passed to Build on the context thread.
func (l *Loader) Import(path string) (*importer.Scene, error) {
	return l.importer.Import(path)
}

// Build turns an imported scene into a ready Model. On failure every GPU
// object created so far is released and no Model is returned.
func (l *Loader) Build(scene *importer.Scene) (*Model, error) {
	for i := range scene.Meshes {
		idx := scene.Meshes[i].MaterialIndex
		if idx != importer.NoMaterial && (idx < 0 || idx >= len(scene.Materials)) {
			return nil, fmt.Errorf("%w: mesh %d references material %d of %d",
				importer.ErrParse, i, idx, len(scene.Materials))
		}
	}

	// Bounds first so degenerate input fails before any allocation
	bounds, err := ComputeBounds(scene.Meshes)
	if err != nil {
		return nil, err
	}

	m := &Model{ctx: l.ctx, path: scene.Path, bounds: bounds, state: StateBuilding}
	built := false
	defer func() {
		if !built {
			m.release()
		}
	}()

	if m.program, err = l.shaders.LoadProgram(l.opts.VertexShader, l.opts.FragmentShader); err != nil {
		return nil, err
	}

	for i := range scene.Meshes {
		mesh, err := l.geometry.Build(&scene.Meshes[i])
		if err != nil {
			return nil, fmt.Errorf("mesh %d (%q): %w", i, scene.Meshes[i].Name, err)
		}
		m.meshes = append(m.meshes, mesh)
	}

	for i := range scene.Materials {
		mat, err := l.materials.Load(&scene.Materials[i], scene.Dir, scene.Textures)
		if err != nil {
			return nil, err
		}
		m.materials = append(m.materials, mat)
	}

	built = true
	m.state = StateReady

	size := bounds.Size()
	l.log.Info("model ready",
		zap.String("path", scene.Path),
		zap.Int("meshes", len(m.meshes)),
		zap.Int("materials", len(m.materials)),
		zap.Float32s("bounds_size", size[:]))
	return m, nil
}

// LoadModel imports and builds the scene at path on the calling thread.
func (l *Loader) LoadModel(path string) (*Model, error) {
	scene, err := l.Import(path)
	if err != nil {
		return nil, err
	}
	return l.Build(scene)
}

// LoadModel imports path and builds it with a one-off Loader.
func LoadModel(ctx gpu.Context, path string, opts Options) (*Model, error) {
	return NewLoader(ctx, opts).LoadModel(path)
}
