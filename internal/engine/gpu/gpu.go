// Package gpu abstracts the graphics context the model loader allocates from.
//
// Every method of Context must be called on the thread that owns the active
// graphics context. Nothing in this package synchronizes.
package gpu

import (
	"errors"
	"image"
)

var (
	// ErrResourceCreation is returned when the context fails to create a native object.
	ErrResourceCreation = errors.New("gpu resource creation failed")
	// ErrResourceMap is returned when a buffer region cannot be mapped or unmapped.
	ErrResourceMap = errors.New("gpu buffer map failed")
)

// Kind identifies the type of native object a Handle owns.
type Kind uint8

const (
	KindBuffer Kind = iota
	KindVertexArray
	KindShader
	KindProgram
	KindTexture
)

func (k Kind) String() string {
	switch k {
	case KindBuffer:
		return "buffer"
	case KindVertexArray:
		return "vertex-array"
	case KindShader:
		return "shader"
	case KindProgram:
		return "program"
	case KindTexture:
		return "texture"
	default:
		return "unknown"
	}
}

// BufferTarget selects the binding point for buffer operations.
type BufferTarget uint8

const (
	ArrayBuffer BufferTarget = iota
	ElementArrayBuffer
)

func (t BufferTarget) String() string {
	if t == ElementArrayBuffer {
		return "index"
	}
	return "vertex"
}

// ShaderStage is a programmable pipeline stage.
type ShaderStage uint8

const (
	StageVertex ShaderStage = iota
	StageFragment
)

func (s ShaderStage) String() string {
	if s == StageFragment {
		return "fragment"
	}
	return "vertex"
}

// Primitive is the primitive kind of an indexed draw. Geometry is always
// uploaded as triangle lists.
type Primitive uint8

const Triangles Primitive = 0

// Context is the capability set the loader needs from a graphics API.
// Object IDs are never zero for live objects; zero means "unbind".
type Context interface {
	CreateBuffer() (uint32, error)
	DeleteBuffer(id uint32)
	BindBuffer(target BufferTarget, id uint32)
	// AllocateBuffer reserves size bytes of storage for the buffer bound to target.
	AllocateBuffer(target BufferTarget, size int)
	// MapBuffer maps the whole storage of the buffer bound to target for writing.
	// The returned slice is only valid until UnmapBuffer.
	MapBuffer(target BufferTarget, size int) ([]byte, error)
	UnmapBuffer(target BufferTarget) error

	CreateVertexArray() (uint32, error)
	DeleteVertexArray(id uint32)
	BindVertexArray(id uint32)
	// VertexAttrib describes a float attribute of the currently bound vertex array
	// sourced from the currently bound array buffer, and enables it.
	VertexAttrib(index uint32, components int32, stride int32, offset int)

	CreateShader(stage ShaderStage) (uint32, error)
	DeleteShader(id uint32)
	// CompileShader compiles source into the shader and returns the compiler log.
	CompileShader(id uint32, source string) (log string, ok bool)

	CreateProgram() (uint32, error)
	DeleteProgram(id uint32)
	// LinkProgram attaches the shaders, links and returns the linker log.
	LinkProgram(id uint32, shaders ...uint32) (log string, ok bool)
	UseProgram(id uint32)
	UniformLocation(program uint32, name string) int32
	UniformMatrix4(location int32, m *[16]float32)
	Uniform3(location int32, v [3]float32)
	Uniform1f(location int32, v float32)
	Uniform1i(location int32, v int32)

	// CreateTexture uploads img as a 2D texture and returns its ID.
	CreateTexture(img *image.RGBA, mipmaps bool) (uint32, error)
	DeleteTexture(id uint32)
	// BindTexture binds the 2D texture to a texture unit; id 0 unbinds the unit.
	BindTexture(unit uint32, id uint32)

	DrawIndexed(mode Primitive, count int32)
}
