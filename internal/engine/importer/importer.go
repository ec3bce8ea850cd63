package importer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/modelkit/internal/logger"
)

var (
	// ErrFileNotFound is returned when the scene path is not a readable file.
	ErrFileNotFound = errors.New("scene file not found")
	// ErrParse is returned when a backend rejects the file contents.
	ErrParse = errors.New("scene parse failed")
	// ErrEmptyScene is returned when a scene contains no meshes.
	ErrEmptyScene = errors.New("scene contains no meshes")
)

// Flags selects post-processing steps.
type Flags uint32

const (
	// Triangulate splits polygons with more than three corners into a triangle fan.
	Triangulate Flags = 1 << iota
	// GenSmoothNormals generates normals for meshes that have none.
	GenSmoothNormals
	// JoinIdenticalVertices merges vertices with identical attributes.
	JoinIdenticalVertices
	// PreTransformVertices bakes the node hierarchy into vertex positions.
	PreTransformVertices
	// NormalizeScale fits the baked scene into the [-1,1] cube.
	NormalizeScale
)

// DefaultFlags is the processing a renderer-ready scene needs.
const DefaultFlags = Triangulate | GenSmoothNormals | JoinIdenticalVertices | PreTransformVertices

// Has reports whether all bits of x are set.
func (f Flags) Has(x Flags) bool {
	return f&x == x
}

func (f Flags) String() string {
	names := []struct {
		flag Flags
		name string
	}{
		{Triangulate, "triangulate"},
		{GenSmoothNormals, "smooth-normals"},
		{JoinIdenticalVertices, "join-vertices"},
		{PreTransformVertices, "pre-transform"},
		{NormalizeScale, "normalize"},
	}
	var parts []string
	for _, n := range names {
		if f.Has(n.flag) {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// Backend decodes one family of file formats.
type Backend interface {
	// Name is a short format name used in diagnostics.
	Name() string
	// Extensions lists lower-case file extensions including the dot.
	Extensions() []string
	// Decode reads the file at path.
	Decode(path string) (*Document, error)
}

// Option configures an Importer.
type Option func(*Importer)

// WithFlags replaces the post-processing flags.
func WithFlags(f Flags) Option {
	return func(im *Importer) { im.flags = f }
}

// WithBackend registers b for its extensions, replacing earlier registrations.
func WithBackend(b Backend) Option {
	return func(im *Importer) { im.register(b) }
}

// Importer turns scene files into Scenes. It never touches the GPU and may
// be used from any goroutine; it holds no mutable state after construction.
type Importer struct {
	flags    Flags
	backends map[string]Backend
	log      *zap.Logger
}

// New returns an importer with the glTF and OBJ backends and DefaultFlags.
func New(opts ...Option) *Importer {
	im := &Importer{
		flags:    DefaultFlags,
		backends: make(map[string]Backend),
		log:      logger.Named("importer"),
	}
	im.register(NewGLTF())
	im.register(NewOBJ(OBJOptions{}))
	for _, opt := range opts {
		opt(im)
	}
	return im
}

func (im *Importer) register(b Backend) {
	for _, ext := range b.Extensions() {
		im.backends[strings.ToLower(ext)] = b
	}
}

// Flags returns the active post-processing flags.
func (im *Importer) Flags() Flags {
	return im.flags
}

// Extensions returns every supported file extension, sorted.
func (im *Importer) Extensions() []string {
	exts := make([]string, 0, len(im.backends))
	for ext := range im.backends {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Supports reports whether a backend is registered for path's extension.
func (im *Importer) Supports(path string) bool {
	_, ok := im.backends[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Import reads, validates and post-processes the scene at path.
func (im *Importer) Import(path string) (*Scene, error) {
	if err := checkReadable(path); err != nil {
		return nil, err
	}

	ext := strings.ToLower(filepath.Ext(path))
	backend, ok := im.backends[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %s: unsupported format %q", ErrParse, path, ext)
	}

	doc, err := backend.Decode(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrParse, path, err)
	}

	meshes := doc.Meshes
	if im.flags.Has(PreTransformVertices) {
		if meshes, err = bakeHierarchy(doc); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrParse, path, err)
		}
	}
	if len(meshes) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyScene, path)
	}

	if err := validate(meshes, doc.Materials, len(doc.Textures)); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrParse, path, err)
	}

	for i := range meshes {
		m := &meshes[i]
		if im.flags.Has(Triangulate) {
			triangulate(m)
		}
		if im.flags.Has(GenSmoothNormals) && !m.HasNormals() {
			generateSmoothNormals(m)
		}
		if im.flags.Has(JoinIdenticalVertices) {
			joinIdenticalVertices(m)
		}
	}
	if im.flags.Has(NormalizeScale) {
		normalizeScale(meshes)
	}

	scene := &Scene{
		Path:      path,
		Dir:       filepath.Dir(path),
		Meshes:    meshes,
		Materials: doc.Materials,
		Textures:  doc.Textures,
	}

	im.log.Info("imported scene",
		zap.String("path", path),
		zap.String("format", backend.Name()),
		zap.Stringer("flags", im.flags),
		zap.Int("meshes", len(scene.Meshes)),
		zap.Int("materials", len(scene.Materials)),
		zap.Int("embedded_textures", len(scene.Textures)),
		zap.Int("vertices", scene.VertexCount()),
		zap.Int("faces", scene.FaceCount()),
	)
	return scene, nil
}

// checkReadable verifies path names a regular file the process can open.
func checkReadable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrFileNotFound, path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrFileNotFound, path)
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrFileNotFound, path, err)
	}
	return f.Close()
}

// validate reports every mesh whose material reference is out of range.
func validate(meshes []Mesh, materials []Material, embedded int) error {
	var err error
	for i := range meshes {
		idx := meshes[i].MaterialIndex
		if idx != NoMaterial && (idx < 0 || idx >= len(materials)) {
			err = multierr.Append(err, fmt.Errorf("mesh %d (%q): material index %d out of range [0,%d)",
				i, meshes[i].Name, idx, len(materials)))
		}
		if len(meshes[i].UVs) > 0 && len(meshes[i].UVs) != len(meshes[i].Positions) {
			err = multierr.Append(err, fmt.Errorf("mesh %d (%q): %d texture coordinates for %d vertices",
				i, meshes[i].Name, len(meshes[i].UVs), len(meshes[i].Positions)))
		}
	}
	for i := range materials {
		for t, paths := range materials[i].Textures {
			for _, p := range paths {
				if idx, ok := ParseEmbeddedTexturePath(p); ok && idx >= embedded {
					err = multierr.Append(err, fmt.Errorf("material %d (%q) %s texture: embedded texture %d out of range [0,%d)",
						i, materials[i].Name, TextureType(t), idx, embedded))
				}
			}
		}
	}
	return err
}
