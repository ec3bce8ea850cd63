package importer

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"go.uber.org/zap"

	"github.com/Faultbox/modelkit/internal/logger"
)

// GLTF decodes glTF 2.0 files, both .gltf with external or embedded buffers
// and binary .glb containers.
type GLTF struct {
	log *zap.Logger
}

// NewGLTF returns the glTF backend.
func NewGLTF() *GLTF {
	return &GLTF{log: logger.Named("gltf")}
}

func (g *GLTF) Name() string { return "gltf" }

func (g *GLTF) Extensions() []string { return []string{".gltf", ".glb"} }

// Decode reads every primitive of every mesh as a separate raw mesh and
// rebuilds the node tree of the default scene.
func (g *GLTF) Decode(path string) (*Document, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, err
	}

	out := &Document{}
	images := &gltfImages{doc: doc, out: out, paths: make(map[int]string)}
	for _, m := range doc.Materials {
		out.Materials = append(out.Materials, g.material(images, m))
	}

	// Each glTF mesh expands into one raw mesh per primitive
	primitives := make([][]int, len(doc.Meshes))
	for mi, m := range doc.Meshes {
		for pi, prim := range m.Primitives {
			mesh, err := g.primitive(doc, prim)
			if err != nil {
				return nil, fmt.Errorf("mesh %d (%q) primitive %d: %w", mi, m.Name, pi, err)
			}
			mesh.Name = m.Name
			if len(m.Primitives) > 1 {
				mesh.Name = fmt.Sprintf("%s#%d", m.Name, pi)
			}
			primitives[mi] = append(primitives[mi], len(out.Meshes))
			out.Meshes = append(out.Meshes, mesh)
		}
	}

	root, err := g.hierarchy(doc, primitives)
	if err != nil {
		return nil, err
	}
	out.Root = root
	return out, nil
}

func (g *GLTF) primitive(doc *gltf.Document, prim *gltf.Primitive) (Mesh, error) {
	mesh := Mesh{MaterialIndex: NoMaterial}
	if prim.Material != nil {
		mesh.MaterialIndex = *prim.Material
	}

	posIdx, ok := prim.Attributes[gltf.POSITION]
	if !ok {
		return mesh, fmt.Errorf("missing %s attribute", gltf.POSITION)
	}
	acc, err := accessor(doc, posIdx)
	if err != nil {
		return mesh, err
	}
	if mesh.Positions, err = modeler.ReadPosition(doc, acc, nil); err != nil {
		return mesh, fmt.Errorf("reading positions: %w", err)
	}

	if idx, ok := prim.Attributes[gltf.NORMAL]; ok {
		acc, err := accessor(doc, idx)
		if err != nil {
			return mesh, err
		}
		if mesh.Normals, err = modeler.ReadNormal(doc, acc, nil); err != nil {
			return mesh, fmt.Errorf("reading normals: %w", err)
		}
	}

	if idx, ok := prim.Attributes[gltf.TEXCOORD_0]; ok {
		acc, err := accessor(doc, idx)
		if err != nil {
			return mesh, err
		}
		if mesh.UVs, err = modeler.ReadTextureCoord(doc, acc, nil); err != nil {
			return mesh, fmt.Errorf("reading texture coordinates: %w", err)
		}
	}

	var indices []uint32
	if prim.Indices != nil {
		acc, err := accessor(doc, *prim.Indices)
		if err != nil {
			return mesh, err
		}
		if indices, err = modeler.ReadIndices(doc, acc, nil); err != nil {
			return mesh, fmt.Errorf("reading indices: %w", err)
		}
	} else {
		indices = make([]uint32, len(mesh.Positions))
		for i := range indices {
			indices[i] = uint32(i)
		}
	}

	mesh.Faces = assemble(prim.Mode, indices)
	return mesh, nil
}

func accessor(doc *gltf.Document, idx int) (*gltf.Accessor, error) {
	if idx < 0 || idx >= len(doc.Accessors) {
		return nil, fmt.Errorf("accessor %d out of range [0,%d)", idx, len(doc.Accessors))
	}
	return doc.Accessors[idx], nil
}

// assemble groups an index stream into faces according to the primitive mode.
// Strips and fans become independent triangles.
func assemble(mode gltf.PrimitiveMode, idx []uint32) [][]uint32 {
	var faces [][]uint32
	switch mode {
	case gltf.PrimitivePoints:
		for _, i := range idx {
			faces = append(faces, []uint32{i})
		}
	case gltf.PrimitiveLines:
		for i := 0; i+1 < len(idx); i += 2 {
			faces = append(faces, []uint32{idx[i], idx[i+1]})
		}
	case gltf.PrimitiveLineStrip, gltf.PrimitiveLineLoop:
		for i := 0; i+1 < len(idx); i++ {
			faces = append(faces, []uint32{idx[i], idx[i+1]})
		}
		if mode == gltf.PrimitiveLineLoop && len(idx) > 2 {
			faces = append(faces, []uint32{idx[len(idx)-1], idx[0]})
		}
	case gltf.PrimitiveTriangleStrip:
		for i := 0; i+2 < len(idx); i++ {
			// Every odd triangle is flipped to keep a consistent winding
			if i%2 == 0 {
				faces = append(faces, []uint32{idx[i], idx[i+1], idx[i+2]})
			} else {
				faces = append(faces, []uint32{idx[i+1], idx[i], idx[i+2]})
			}
		}
	case gltf.PrimitiveTriangleFan:
		for i := 1; i+1 < len(idx); i++ {
			faces = append(faces, []uint32{idx[0], idx[i], idx[i+1]})
		}
	default:
		for i := 0; i+2 < len(idx); i += 3 {
			faces = append(faces, []uint32{idx[i], idx[i+1], idx[i+2]})
		}
	}
	return faces
}

// material maps the metallic-roughness model onto the fixed texture slots:
// base color to diffuse, metallic-roughness to specular, emissive to emissive.
func (g *GLTF) material(images *gltfImages, m *gltf.Material) Material {
	mat := NewMaterial(m.Name)
	mat.Colors[ColorDiffuse] = [3]float32{1, 1, 1}
	mat.Scalars[PropOpacity] = 1

	if pbr := m.PBRMetallicRoughness; pbr != nil {
		if f := pbr.BaseColorFactor; f != nil {
			mat.Colors[ColorDiffuse] = [3]float32{float32(f[0]), float32(f[1]), float32(f[2])}
			mat.Scalars[PropOpacity] = float32(f[3])
		}
		if pbr.MetallicFactor != nil {
			mat.Scalars[PropMetallic] = float32(*pbr.MetallicFactor)
		}
		if pbr.RoughnessFactor != nil {
			mat.Scalars[PropRoughness] = float32(*pbr.RoughnessFactor)
		}
		if pbr.BaseColorTexture != nil {
			g.addTexture(images, &mat, TextureDiffuse, pbr.BaseColorTexture.Index)
		}
		if pbr.MetallicRoughnessTexture != nil {
			g.addTexture(images, &mat, TextureSpecular, pbr.MetallicRoughnessTexture.Index)
		}
	}

	e := m.EmissiveFactor
	if e[0] != 0 || e[1] != 0 || e[2] != 0 {
		mat.Colors[ColorEmissive] = [3]float32{float32(e[0]), float32(e[1]), float32(e[2])}
	}
	if m.EmissiveTexture != nil {
		g.addTexture(images, &mat, TextureEmissive, m.EmissiveTexture.Index)
	}
	return mat
}

// addTexture records the image behind a texture reference. Images stored
// inside the file are collected as embedded textures.
func (g *GLTF) addTexture(images *gltfImages, mat *Material, slot TextureType, texIdx int) {
	doc := images.doc
	if texIdx < 0 || texIdx >= len(doc.Textures) {
		g.log.Warn("texture reference out of range", zap.String("material", mat.Name), zap.Int("texture", texIdx))
		return
	}
	tex := doc.Textures[texIdx]
	if tex.Source == nil || *tex.Source < 0 || *tex.Source >= len(doc.Images) {
		g.log.Warn("texture has no image source", zap.String("material", mat.Name), zap.Int("texture", texIdx))
		return
	}

	path, err := images.path(*tex.Source)
	if err != nil {
		g.log.Warn("texture image skipped",
			zap.String("material", mat.Name),
			zap.Stringer("slot", slot),
			zap.Int("image", *tex.Source),
			zap.Error(err))
		return
	}
	mat.Textures[slot] = append(mat.Textures[slot], path)
}

// gltfImages resolves image indices to material texture paths, extracting
// each embedded image once.
type gltfImages struct {
	doc   *gltf.Document
	out   *Document
	paths map[int]string
}

func (im *gltfImages) path(idx int) (string, error) {
	if p, ok := im.paths[idx]; ok {
		return p, nil
	}
	img := im.doc.Images[idx]

	var (
		data []byte
		err  error
	)
	switch {
	case img.BufferView != nil:
		if *img.BufferView < 0 || *img.BufferView >= len(im.doc.BufferViews) {
			return "", fmt.Errorf("buffer view %d out of range [0,%d)", *img.BufferView, len(im.doc.BufferViews))
		}
		data, err = modeler.ReadBufferView(im.doc, im.doc.BufferViews[*img.BufferView])
	case strings.HasPrefix(img.URI, "data:"):
		data, err = decodeDataURI(img.URI)
	case img.URI == "":
		return "", fmt.Errorf("image has neither a uri nor a buffer view")
	default:
		uri := img.URI
		if p, err := url.PathUnescape(uri); err == nil {
			uri = p
		}
		im.paths[idx] = uri
		return uri, nil
	}
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", fmt.Errorf("image data is empty")
	}

	p := EmbeddedTexturePath(len(im.out.Textures))
	im.out.Textures = append(im.out.Textures, EmbeddedTexture{
		Name:     img.Name,
		MimeType: img.MimeType,
		// Buffer views alias the document buffer
		Data: bytes.Clone(data),
	})
	im.paths[idx] = p
	return p, nil
}

// decodeDataURI returns the payload of a base64 data URI.
func decodeDataURI(uri string) ([]byte, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(uri, "data:"), ",")
	if !ok {
		return nil, fmt.Errorf("malformed data uri")
	}
	if !strings.HasSuffix(meta, ";base64") {
		return nil, fmt.Errorf("data uri is not base64 encoded")
	}
	return base64.StdEncoding.DecodeString(payload)
}

// hierarchy builds the node tree of the default scene, or of the first scene
// when no default is set. Files without scenes place every mesh at identity.
func (g *GLTF) hierarchy(doc *gltf.Document, primitives [][]int) (*Node, error) {
	if len(doc.Scenes) == 0 {
		return nil, nil
	}
	sceneIdx := 0
	if doc.Scene != nil {
		sceneIdx = *doc.Scene
	}
	if sceneIdx < 0 || sceneIdx >= len(doc.Scenes) {
		return nil, fmt.Errorf("default scene %d out of range [0,%d)", sceneIdx, len(doc.Scenes))
	}
	scene := doc.Scenes[sceneIdx]

	root := &Node{Name: scene.Name, Transform: mgl32.Ident4()}
	visited := make(map[int]bool)

	var build func(idx int) (*Node, error)
	build = func(idx int) (*Node, error) {
		if idx < 0 || idx >= len(doc.Nodes) {
			return nil, fmt.Errorf("node %d out of range [0,%d)", idx, len(doc.Nodes))
		}
		if visited[idx] {
			return nil, fmt.Errorf("node %d appears more than once in scene %d", idx, sceneIdx)
		}
		visited[idx] = true

		n := doc.Nodes[idx]
		node := &Node{Name: n.Name, Transform: nodeTransform(n)}
		if n.Mesh != nil {
			if *n.Mesh < 0 || *n.Mesh >= len(primitives) {
				return nil, fmt.Errorf("node %d references mesh %d of %d", idx, *n.Mesh, len(primitives))
			}
			node.Meshes = append(node.Meshes, primitives[*n.Mesh]...)
		}
		for _, c := range n.Children {
			child, err := build(c)
			if err != nil {
				return nil, err
			}
			node.Children = append(node.Children, child)
		}
		return node, nil
	}

	for _, idx := range scene.Nodes {
		child, err := build(idx)
		if err != nil {
			return nil, err
		}
		root.Children = append(root.Children, child)
	}
	return root, nil
}

// nodeTransform returns the local transform of n, preferring an explicit
// matrix over translation, rotation and scale.
func nodeTransform(n *gltf.Node) mgl32.Mat4 {
	m := n.MatrixOrDefault()
	var out mgl32.Mat4
	for i := range m {
		out[i] = float32(m[i])
	}
	if out != mgl32.Ident4() {
		return out
	}

	t := n.TranslationOrDefault()
	r := n.RotationOrDefault()
	s := n.ScaleOrDefault()
	rot := mgl32.Quat{
		W: float32(r[3]),
		V: mgl32.Vec3{float32(r[0]), float32(r[1]), float32(r[2])},
	}
	return mgl32.Translate3D(float32(t[0]), float32(t[1]), float32(t[2])).
		Mul4(rot.Normalize().Mat4()).
		Mul4(mgl32.Scale3D(float32(s[0]), float32(s[1]), float32(s[2])))
}
