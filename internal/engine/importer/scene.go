// Package importer reads scene files into flattened, triangulated scenes.
//
// Format backends decode a file into a Document that may still carry a node
// hierarchy and arbitrary polygons. The Importer then post-processes the
// document (transform baking, triangulation, normal generation, vertex
// joining) into a Scene whose meshes share a single coordinate space.
package importer

import (
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
)

// TextureType is one of the fixed material texture slots.
type TextureType int

const (
	TextureDiffuse TextureType = iota
	TextureAmbient
	TextureSpecular
	TextureEmissive

	// NumTextureTypes is the number of texture slots per material.
	NumTextureTypes
)

func (t TextureType) String() string {
	switch t {
	case TextureDiffuse:
		return "diffuse"
	case TextureAmbient:
		return "ambient"
	case TextureSpecular:
		return "specular"
	case TextureEmissive:
		return "emissive"
	default:
		return "unknown"
	}
}

// Material color property names.
const (
	ColorDiffuse  = "diffuse"
	ColorAmbient  = "ambient"
	ColorSpecular = "specular"
	ColorEmissive = "emissive"
)

// Scalar material property names.
const (
	PropShininess = "shininess"
	PropOpacity   = "opacity"
	PropMetallic  = "metallic"
	PropRoughness = "roughness"
)

// NoMaterial marks a mesh without a material reference.
const NoMaterial = -1

// Mesh is raw geometry as produced by a backend.
type Mesh struct {
	Name      string
	Positions [][3]float32
	// Normals is either empty or has one entry per position.
	Normals [][3]float32
	// UVs is texture channel 0; nil when the mesh has no texture coordinates.
	// The origin is the top-left corner of the image.
	UVs [][2]float32
	// Faces lists vertex indices per face. After triangulation every
	// polygon has exactly 3 indices; points and lines keep 1 or 2.
	Faces         [][]uint32
	MaterialIndex int
}

// HasUVs reports whether the mesh has texture channel 0.
func (m *Mesh) HasUVs() bool {
	return len(m.UVs) > 0
}

// HasNormals reports whether every vertex has a normal.
func (m *Mesh) HasNormals() bool {
	return len(m.Normals) > 0 && len(m.Normals) == len(m.Positions)
}

// IndexCount returns the total number of face indices.
func (m *Mesh) IndexCount() int {
	n := 0
	for _, f := range m.Faces {
		n += len(f)
	}
	return n
}

// Material holds named material properties and texture references.
// Texture paths are as written in the source file, not yet resolved.
type Material struct {
	Name     string
	Colors   map[string][3]float32
	Scalars  map[string]float32
	Textures [NumTextureTypes][]string
}

// NewMaterial returns an empty material with initialized property maps.
func NewMaterial(name string) Material {
	return Material{
		Name:    name,
		Colors:  make(map[string][3]float32),
		Scalars: make(map[string]float32),
	}
}

// Color returns a named color and whether it was present.
func (m *Material) Color(key string) ([3]float32, bool) {
	c, ok := m.Colors[key]
	return c, ok
}

// Scalar returns a named scalar property and whether it was present.
func (m *Material) Scalar(key string) (float32, bool) {
	v, ok := m.Scalars[key]
	return v, ok
}

// TextureCount returns how many textures the material references for t.
func (m *Material) TextureCount(t TextureType) int {
	return len(m.Textures[t])
}

// TexturePath returns the i-th texture path for t.
func (m *Material) TexturePath(t TextureType, i int) string {
	return m.Textures[t][i]
}

// EmbeddedTexture is an encoded image stored inside the scene file.
// Materials reference it with EmbeddedTexturePath.
type EmbeddedTexture struct {
	Name     string
	MimeType string
	Data     []byte
}

const embeddedPrefix = "*"

// EmbeddedTexturePath returns the material texture path naming the i-th
// embedded texture.
func EmbeddedTexturePath(i int) string {
	return embeddedPrefix + strconv.Itoa(i)
}

// ParseEmbeddedTexturePath reports the embedded texture index behind path,
// if path names one.
func ParseEmbeddedTexturePath(path string) (int, bool) {
	if !strings.HasPrefix(path, embeddedPrefix) {
		return 0, false
	}
	i, err := strconv.Atoi(path[len(embeddedPrefix):])
	if err != nil || i < 0 {
		return 0, false
	}
	return i, true
}

// Node is one element of a backend's scene hierarchy.
type Node struct {
	Name      string
	Transform mgl32.Mat4
	// Meshes are indices into Document.Meshes.
	Meshes   []int
	Children []*Node
}

// Document is the unprocessed output of a backend.
type Document struct {
	Meshes    []Mesh
	Materials []Material
	Textures  []EmbeddedTexture
	// Root is nil when the format has no hierarchy; every mesh is then
	// placed once with the identity transform.
	Root *Node
}

// Scene is a flattened, post-processed scene ready for GPU upload.
type Scene struct {
	// Path is the file the scene was imported from.
	Path string
	// Dir is the directory texture paths are resolved against.
	Dir       string
	Meshes    []Mesh
	Materials []Material
	// Textures holds images embedded in the scene file.
	Textures []EmbeddedTexture
}

// VertexCount returns the number of vertices over all meshes.
func (s *Scene) VertexCount() int {
	n := 0
	for i := range s.Meshes {
		n += len(s.Meshes[i].Positions)
	}
	return n
}

// FaceCount returns the number of faces over all meshes.
func (s *Scene) FaceCount() int {
	n := 0
	for i := range s.Meshes {
		n += len(s.Meshes[i].Faces)
	}
	return n
}
