package model

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/Faultbox/modelkit/internal/engine/importer"
	"github.com/Faultbox/modelkit/internal/engine/texture"
	"github.com/Faultbox/modelkit/internal/logger"
)

// Slot is a material texture slot.
type Slot = importer.TextureType

// Texture slots, in texture unit order.
const (
	SlotDiffuse  = importer.TextureDiffuse
	SlotAmbient  = importer.TextureAmbient
	SlotSpecular = importer.TextureSpecular
	SlotEmissive = importer.TextureEmissive

	NumSlots = importer.NumTextureTypes
)

// Material holds the shading inputs of a mesh. Each slot owns at most one
// texture; a nil slot has no texture.
type Material struct {
	Name      string
	Diffuse   mgl32.Vec3
	Ambient   mgl32.Vec3
	Specular  mgl32.Vec3
	Emissive  mgl32.Vec3
	Shininess float32
	Textures  [NumSlots]*texture.Texture
}

// Texture returns the texture in slot, or nil.
func (m *Material) Texture(slot Slot) *texture.Texture {
	return m.Textures[slot]
}

// Release deletes every texture the material owns.
func (m *Material) Release() {
	for i, t := range m.Textures {
		t.Release()
		m.Textures[i] = nil
	}
}

// TextureLoader loads a texture from an already resolved path or from an
// encoded image embedded in the scene file.
type TextureLoader interface {
	Load(path string) (*texture.Texture, error)
	LoadData(name string, data []byte) (*texture.Texture, error)
}

// ShininessFunc derives the specular exponent of a material.
type ShininessFunc func(*importer.Material) float32

// NoShininess always yields 0. It is the default.
func NoShininess(*importer.Material) float32 {
	return 0
}

// SpecularExponentShininess uses the source material's shininess property
// (OBJ Ns) as is, or 0 when the property is absent.
func SpecularExponentShininess(m *importer.Material) float32 {
	v, _ := m.Scalar(importer.PropShininess)
	return v
}

// MaterialLoader converts raw materials and loads their textures.
type MaterialLoader struct {
	textures  TextureLoader
	shininess ShininessFunc
	log       *zap.Logger
}

// NewMaterialLoader returns a loader using textures for image files.
// A nil shininess function selects NoShininess.
func NewMaterialLoader(textures TextureLoader, shininess ShininessFunc) *MaterialLoader {
	if shininess == nil {
		shininess = NoShininess
	}
	return &MaterialLoader{textures: textures, shininess: shininess, log: logger.Named("material")}
}

var slotColors = [NumSlots]string{
	SlotDiffuse:  importer.ColorDiffuse,
	SlotAmbient:  importer.ColorAmbient,
	SlotSpecular: importer.ColorSpecular,
	SlotEmissive: importer.ColorEmissive,
}

// Load converts src. Texture paths are resolved against dir, and embedded
// texture paths index embedded. If any texture fails to load, textures
// already loaded for this material are released.
func (l *MaterialLoader) Load(src *importer.Material, dir string, embedded []importer.EmbeddedTexture) (*Material, error) {
	m := &Material{
		Name:      src.Name,
		Shininess: l.shininess(src),
	}
	colors := [NumSlots]*mgl32.Vec3{&m.Diffuse, &m.Ambient, &m.Specular, &m.Emissive}
	for slot, key := range slotColors {
		// Absent colors stay black
		if c, ok := src.Color(key); ok {
			*colors[slot] = c
		}
	}

	for slot := Slot(0); slot < NumSlots; slot++ {
		n := src.TextureCount(slot)
		if n == 0 {
			continue
		}
		if n > 1 {
			l.log.Warn("material has more than one texture for slot, using the first",
				zap.String("material", src.Name),
				zap.Stringer("slot", slot),
				zap.Int("count", n))
		}

		path := src.TexturePath(slot, 0)
		tex, err := l.loadTexture(path, dir, embedded)
		if err != nil {
			m.Release()
			if !errors.Is(err, texture.ErrLoad) {
				err = fmt.Errorf("%w: %w", texture.ErrLoad, err)
			}
			return nil, fmt.Errorf("material %q %s texture: %w", src.Name, slot, err)
		}
		m.Textures[slot] = tex
		l.log.Debug("bound texture", zap.String("material", src.Name), zap.Stringer("slot", slot), zap.String("path", path))
	}
	return m, nil
}

func (l *MaterialLoader) loadTexture(path, dir string, embedded []importer.EmbeddedTexture) (*texture.Texture, error) {
	idx, ok := importer.ParseEmbeddedTexturePath(path)
	if !ok {
		return l.textures.Load(resolve(dir, path))
	}
	if idx >= len(embedded) {
		return nil, fmt.Errorf("%w: embedded texture %d of %d", texture.ErrLoad, idx, len(embedded))
	}
	e := embedded[idx]
	name := path
	if e.Name != "" {
		name = e.Name
	}
	return l.textures.LoadData(name, e.Data)
}

// resolve interprets a material texture path relative to the scene directory.
func resolve(dir, path string) string {
	path = filepath.FromSlash(path)
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}
