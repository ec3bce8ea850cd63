package model

import (
	"encoding/binary"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/modelkit/internal/engine/gpu"
	"github.com/Faultbox/modelkit/internal/engine/importer"
	"github.com/Faultbox/modelkit/internal/logger"
)

var (
	// ErrUnsupportedTopology is returned for faces that are not triangles.
	ErrUnsupportedTopology = errors.New("unsupported face topology")
	// ErrIndexOutOfRange is returned for face indices past the vertex count.
	ErrIndexOutOfRange = errors.New("vertex index out of range")
)

// Mesh is one drawable unit: vertex buffer, index buffer and the vertex
// array describing them, plus the index of the material it is drawn with.
type Mesh struct {
	name          string
	vbo           *gpu.Handle
	ibo           *gpu.Handle
	vao           *gpu.Handle
	vertexCount   int
	indexCount    int32
	textured      bool
	materialIndex int
}

// Name returns the source mesh name.
func (m *Mesh) Name() string { return m.name }

// VertexCount returns the number of vertex records in the vertex buffer.
func (m *Mesh) VertexCount() int { return m.vertexCount }

// IndexCount returns the number of indices drawn, three per triangle.
func (m *Mesh) IndexCount() int32 { return m.indexCount }

// Textured reports whether the source mesh had texture coordinates.
func (m *Mesh) Textured() bool { return m.textured }

// MaterialIndex returns the material index, or importer.NoMaterial.
func (m *Mesh) MaterialIndex() int { return m.materialIndex }

// VertexBuffer returns the vertex buffer handle.
func (m *Mesh) VertexBuffer() *gpu.Handle { return m.vbo }

// IndexBuffer returns the index buffer handle.
func (m *Mesh) IndexBuffer() *gpu.Handle { return m.ibo }

// VertexArray returns the vertex array handle.
func (m *Mesh) VertexArray() *gpu.Handle { return m.vao }

// Release deletes the vertex array and both buffers.
func (m *Mesh) Release() {
	m.vao.Release()
	m.ibo.Release()
	m.vbo.Release()
}

// GeometryBuilder uploads raw meshes into GPU buffers.
type GeometryBuilder struct {
	ctx gpu.Context
	log *zap.Logger
}

// NewGeometryBuilder returns a builder allocating from ctx.
func NewGeometryBuilder(ctx gpu.Context) *GeometryBuilder {
	return &GeometryBuilder{ctx: ctx, log: logger.Named("geometry")}
}

// Build uploads src. Either a complete Mesh is returned or every object
// created along the way has been released.
func (b *GeometryBuilder) Build(src *importer.Mesh) (*Mesh, error) {
	indices, err := triangleIndices(src)
	if err != nil {
		return nil, err
	}
	vertices := vertexData(src)

	scope := gpu.NewScope()
	defer scope.Close()

	vbo, err := b.upload(gpu.ArrayBuffer, vertices)
	if err != nil {
		return nil, fmt.Errorf("vertex buffer: %w", err)
	}
	scope.Track(vbo)

	ibo, err := b.upload(gpu.ElementArrayBuffer, indices)
	if err != nil {
		return nil, fmt.Errorf("index buffer: %w", err)
	}
	scope.Track(ibo)

	vao, err := gpu.Create(b.ctx, gpu.KindVertexArray)
	if err != nil {
		return nil, fmt.Errorf("vertex array: %w", err)
	}
	scope.Track(vao)

	b.ctx.BindVertexArray(vao.ID())
	b.ctx.BindBuffer(gpu.ArrayBuffer, vbo.ID())
	b.ctx.VertexAttrib(AttribPosition, 3, VertexStride, PositionOffset)
	b.ctx.VertexAttrib(AttribNormal, 3, VertexStride, NormalOffset)
	b.ctx.VertexAttrib(AttribTexCoord, 2, VertexStride, TexCoordOffset)
	// The element binding is vertex array state
	b.ctx.BindBuffer(gpu.ElementArrayBuffer, ibo.ID())
	b.ctx.BindVertexArray(0)
	b.ctx.BindBuffer(gpu.ArrayBuffer, 0)
	b.ctx.BindBuffer(gpu.ElementArrayBuffer, 0)

	scope.Commit()

	mesh := &Mesh{
		name:          src.Name,
		vbo:           vbo,
		ibo:           ibo,
		vao:           vao,
		vertexCount:   len(src.Positions),
		indexCount:    int32(len(indices) / 4),
		textured:      src.HasUVs(),
		materialIndex: src.MaterialIndex,
	}
	b.log.Debug("built mesh",
		zap.String("mesh", mesh.name),
		zap.Int("vertices", mesh.vertexCount),
		zap.Int32("indices", mesh.indexCount),
		zap.Bool("textured", mesh.textured))
	return mesh, nil
}

// upload creates a buffer on target and fills it through a write mapping.
// The buffer is released if any step fails.
func (b *GeometryBuilder) upload(target gpu.BufferTarget, data []byte) (*gpu.Handle, error) {
	h, err := gpu.Create(b.ctx, gpu.KindBuffer)
	if err != nil {
		return nil, err
	}

	b.ctx.BindBuffer(target, h.ID())
	defer b.ctx.BindBuffer(target, 0)

	b.ctx.AllocateBuffer(target, len(data))
	if len(data) == 0 {
		return h, nil
	}

	dst, err := b.ctx.MapBuffer(target, len(data))
	if err != nil {
		h.Release()
		return nil, err
	}
	copy(dst, data)
	if err := b.ctx.UnmapBuffer(target); err != nil {
		h.Release()
		return nil, err
	}
	return h, nil
}

// vertexData encodes one fixed-layout record per source vertex. Missing
// normals and texture coordinates are written as zeros.
func vertexData(src *importer.Mesh) []byte {
	hasNormals := src.HasNormals()
	hasUVs := len(src.UVs) == len(src.Positions)

	data := make([]byte, len(src.Positions)*VertexStride)
	for i, p := range src.Positions {
		v := Vertex{Position: p}
		if hasNormals {
			v.Normal = src.Normals[i]
		}
		if hasUVs {
			v.TexCoord = src.UVs[i]
		}
		v.Put(data[i*VertexStride:])
	}
	return data
}

// triangleIndices flattens the faces of src into 32-bit indices.
func triangleIndices(src *importer.Mesh) ([]byte, error) {
	data := make([]byte, 0, len(src.Faces)*3*4)
	for i, f := range src.Faces {
		if len(f) != 3 {
			return nil, fmt.Errorf("%w: mesh %q face %d has %d indices", ErrUnsupportedTopology, src.Name, i, len(f))
		}
		for _, idx := range f {
			if int(idx) >= len(src.Positions) {
				return nil, fmt.Errorf("%w: mesh %q face %d index %d, %d vertices",
					ErrIndexOutOfRange, src.Name, i, idx, len(src.Positions))
			}
			data = binary.NativeEndian.AppendUint32(data, idx)
		}
	}
	return data, nil
}
