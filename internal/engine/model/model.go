package model

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/modelkit/internal/engine/gpu"
	"github.com/Faultbox/modelkit/internal/engine/importer"
	"github.com/Faultbox/modelkit/internal/engine/shader"
)

// ErrNotReady is returned by Render on a model that is not in StateReady.
var ErrNotReady = errors.New("model not ready")

// State is the lifecycle state of a Model.
type State int

const (
	StateBuilding State = iota
	StateReady
	StateReleased
)

func (s State) String() string {
	switch s {
	case StateBuilding:
		return "building"
	case StateReady:
		return "ready"
	case StateReleased:
		return "released"
	default:
		return "unknown"
	}
}

// Uniform names set by Render.
const (
	UniformMVP       = "uMVP"
	UniformDiffuse   = "uDiffuse"
	UniformAmbient   = "uAmbient"
	UniformSpecular  = "uSpecular"
	UniformEmissive  = "uEmissive"
	UniformShininess = "uShininess"
)

// Per-slot sampler and presence uniforms, indexed by slot.
var (
	samplerUniforms = [NumSlots]string{
		SlotDiffuse:  "uDiffuseTexture",
		SlotAmbient:  "uAmbientTexture",
		SlotSpecular: "uSpecularTexture",
		SlotEmissive: "uEmissiveTexture",
	}
	hasTextureUniforms = [NumSlots]string{
		SlotDiffuse:  "uHasDiffuseTexture",
		SlotAmbient:  "uHasAmbientTexture",
		SlotSpecular: "uHasSpecularTexture",
		SlotEmissive: "uHasEmissiveTexture",
	}
)

// defaultMaterial shades meshes without a material reference.
var defaultMaterial = Material{
	Name:    "default",
	Diffuse: mgl32.Vec3{1, 1, 1},
}

// Model is the root of the ownership tree of one loaded scene.
type Model struct {
	ctx       gpu.Context
	path      string
	program   *shader.Program
	meshes    []*Mesh
	materials []*Material
	bounds    BoundingBox
	state     State
}

// Path returns the scene file the model was loaded from.
func (m *Model) Path() string { return m.path }

// State returns the lifecycle state.
func (m *Model) State() State { return m.state }

// Bounds returns the bounding box of all vertices.
func (m *Model) Bounds() BoundingBox { return m.bounds }

// Meshes returns the meshes in scene order.
func (m *Model) Meshes() []*Mesh { return m.meshes }

// Materials returns the materials in scene order.
func (m *Model) Materials() []*Material { return m.materials }

// Program returns the linked program the model draws with.
func (m *Model) Program() *shader.Program { return m.program }

// MaterialFor returns the material of mesh, or a plain white material when
// the mesh has none.
func (m *Model) MaterialFor(mesh *Mesh) *Material {
	idx := mesh.MaterialIndex()
	if idx == importer.NoMaterial || idx < 0 || idx >= len(m.materials) {
		return &defaultMaterial
	}
	return m.materials[idx]
}

// Render draws every mesh with transform as the model-view-projection
// matrix. Every binding made here is undone before Render returns.
func (m *Model) Render(transform mgl32.Mat4) error {
	if m.state != StateReady {
		return fmt.Errorf("%w: %s", ErrNotReady, m.state)
	}

	m.program.Use()
	defer m.unbind()

	if err := m.program.SetUniform(UniformMVP, transform); err != nil {
		return err
	}
	for slot := Slot(0); slot < NumSlots; slot++ {
		if err := m.program.SetUniform(samplerUniforms[slot], int32(slot)); err != nil {
			return err
		}
	}

	for _, mesh := range m.meshes {
		if mesh.IndexCount() == 0 {
			continue
		}
		if err := m.bindMaterial(m.MaterialFor(mesh), mesh.Textured()); err != nil {
			return err
		}
		m.ctx.BindVertexArray(mesh.VertexArray().ID())
		m.ctx.DrawIndexed(gpu.Triangles, mesh.IndexCount())
	}
	return nil
}

func (m *Model) bindMaterial(mat *Material, textured bool) error {
	values := []struct {
		name  string
		value any
	}{
		{UniformDiffuse, mat.Diffuse},
		{UniformAmbient, mat.Ambient},
		{UniformSpecular, mat.Specular},
		{UniformEmissive, mat.Emissive},
		{UniformShininess, mat.Shininess},
	}
	for _, v := range values {
		if err := m.program.SetUniform(v.name, v.value); err != nil {
			return err
		}
	}

	for slot := Slot(0); slot < NumSlots; slot++ {
		tex := mat.Textures[slot]
		// Without texture coordinates every fragment would sample one texel
		use := tex != nil && textured
		if err := m.program.SetUniform(hasTextureUniforms[slot], use); err != nil {
			return err
		}
		if use {
			m.ctx.BindTexture(uint32(slot), tex.ID())
		} else {
			m.ctx.BindTexture(uint32(slot), 0)
		}
	}
	return nil
}

func (m *Model) unbind() {
	m.ctx.BindVertexArray(0)
	for slot := Slot(0); slot < NumSlots; slot++ {
		m.ctx.BindTexture(uint32(slot), 0)
	}
	m.program.Unuse()
}

// Destroy releases every GPU object the model owns. Further calls are no-ops.
func (m *Model) Destroy() {
	if m.state == StateReleased {
		return
	}
	m.release()
	m.state = StateReleased
}

// release tears down the ownership tree in reverse build order.
func (m *Model) release() {
	for i := len(m.materials) - 1; i >= 0; i-- {
		m.materials[i].Release()
	}
	for i := len(m.meshes) - 1; i >= 0; i-- {
		m.meshes[i].Release()
	}
	if m.program != nil {
		m.program.Release()
	}
	m.materials = nil
	m.meshes = nil
}
