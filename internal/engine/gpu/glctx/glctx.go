// Package glctx implements gpu.Context with OpenGL 4.1 core.
package glctx

import (
	"fmt"
	"image"
	"strings"
	"unsafe"

	"github.com/go-gl/gl/v4.1-core/gl"

	"github.com/Faultbox/modelkit/internal/engine/gpu"
)

// GL implements gpu.Context on top of an OpenGL 4.1 core profile context.
// The context must be current on the calling thread.
type GL struct{}

var _ gpu.Context = (*GL)(nil)

// New loads the OpenGL function pointers for the current context.
func New() (*GL, error) {
	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("initializing OpenGL: %w", err)
	}
	return &GL{}, nil
}

// Version returns the GL and GLSL version strings of the current context.
func (c *GL) Version() (glVersion, glslVersion string) {
	return gl.GoStr(gl.GetString(gl.VERSION)), gl.GoStr(gl.GetString(gl.SHADING_LANGUAGE_VERSION))
}

func glTarget(t gpu.BufferTarget) uint32 {
	if t == gpu.ElementArrayBuffer {
		return gl.ELEMENT_ARRAY_BUFFER
	}
	return gl.ARRAY_BUFFER
}

func glStage(s gpu.ShaderStage) uint32 {
	if s == gpu.StageFragment {
		return gl.FRAGMENT_SHADER
	}
	return gl.VERTEX_SHADER
}

// checkCreate converts a zero ID or a pending GL error into gpu.ErrResourceCreation.
func checkCreate(what string, id uint32) (uint32, error) {
	if code := gl.GetError(); code != gl.NO_ERROR {
		return 0, fmt.Errorf("%w: %s (gl error 0x%x)", gpu.ErrResourceCreation, what, code)
	}
	if id == 0 {
		return 0, fmt.Errorf("%w: %s returned 0", gpu.ErrResourceCreation, what)
	}
	return id, nil
}

func (c *GL) CreateBuffer() (uint32, error) {
	var id uint32
	gl.GenBuffers(1, &id)
	return checkCreate("glGenBuffers", id)
}

func (c *GL) DeleteBuffer(id uint32) {
	gl.DeleteBuffers(1, &id)
}

func (c *GL) BindBuffer(target gpu.BufferTarget, id uint32) {
	gl.BindBuffer(glTarget(target), id)
}

func (c *GL) AllocateBuffer(target gpu.BufferTarget, size int) {
	gl.BufferData(glTarget(target), size, nil, gl.STATIC_DRAW)
}

func (c *GL) MapBuffer(target gpu.BufferTarget, size int) ([]byte, error) {
	ptr := gl.MapBufferRange(glTarget(target), 0, size, gl.MAP_WRITE_BIT|gl.MAP_INVALIDATE_BUFFER_BIT)
	if ptr == nil {
		return nil, fmt.Errorf("%w: %s buffer (gl error 0x%x)", gpu.ErrResourceMap, target, gl.GetError())
	}
	return unsafe.Slice((*byte)(ptr), size), nil
}

func (c *GL) UnmapBuffer(target gpu.BufferTarget) error {
	// GL_FALSE means the data store was corrupted while mapped.
	if !gl.UnmapBuffer(glTarget(target)) {
		return fmt.Errorf("%w: %s buffer contents lost on unmap", gpu.ErrResourceMap, target)
	}
	return nil
}

func (c *GL) CreateVertexArray() (uint32, error) {
	var id uint32
	gl.GenVertexArrays(1, &id)
	return checkCreate("glGenVertexArrays", id)
}

func (c *GL) DeleteVertexArray(id uint32) {
	gl.DeleteVertexArrays(1, &id)
}

func (c *GL) BindVertexArray(id uint32) {
	gl.BindVertexArray(id)
}

func (c *GL) VertexAttrib(index uint32, components int32, stride int32, offset int) {
	gl.VertexAttribPointerWithOffset(index, components, gl.FLOAT, false, stride, uintptr(offset))
	gl.EnableVertexAttribArray(index)
}

func (c *GL) CreateShader(stage gpu.ShaderStage) (uint32, error) {
	return checkCreate("glCreateShader", gl.CreateShader(glStage(stage)))
}

func (c *GL) DeleteShader(id uint32) {
	gl.DeleteShader(id)
}

func (c *GL) CompileShader(id uint32, source string) (string, bool) {
	csource, free := gl.Strs(source + "\x00")
	gl.ShaderSource(id, 1, csource, nil)
	free()
	gl.CompileShader(id)

	var status int32
	gl.GetShaderiv(id, gl.COMPILE_STATUS, &status)

	var logLen int32
	gl.GetShaderiv(id, gl.INFO_LOG_LENGTH, &logLen)
	log := ""
	if logLen > 0 {
		buf := make([]byte, logLen)
		gl.GetShaderInfoLog(id, logLen, nil, &buf[0])
		log = strings.TrimRight(string(buf), "\x00")
	}
	return log, status != gl.FALSE
}

func (c *GL) CreateProgram() (uint32, error) {
	return checkCreate("glCreateProgram", gl.CreateProgram())
}

func (c *GL) DeleteProgram(id uint32) {
	gl.DeleteProgram(id)
}

func (c *GL) LinkProgram(id uint32, shaders ...uint32) (string, bool) {
	for _, s := range shaders {
		gl.AttachShader(id, s)
	}
	gl.LinkProgram(id)
	for _, s := range shaders {
		gl.DetachShader(id, s)
	}

	var status int32
	gl.GetProgramiv(id, gl.LINK_STATUS, &status)

	var logLen int32
	gl.GetProgramiv(id, gl.INFO_LOG_LENGTH, &logLen)
	log := ""
	if logLen > 0 {
		buf := make([]byte, logLen)
		gl.GetProgramInfoLog(id, logLen, nil, &buf[0])
		log = strings.TrimRight(string(buf), "\x00")
	}
	return log, status != gl.FALSE
}

func (c *GL) UseProgram(id uint32) {
	gl.UseProgram(id)
}

func (c *GL) UniformLocation(program uint32, name string) int32 {
	return gl.GetUniformLocation(program, gl.Str(name+"\x00"))
}

func (c *GL) UniformMatrix4(location int32, m *[16]float32) {
	gl.UniformMatrix4fv(location, 1, false, &m[0])
}

func (c *GL) Uniform3(location int32, v [3]float32) {
	gl.Uniform3f(location, v[0], v[1], v[2])
}

func (c *GL) Uniform1f(location int32, v float32) {
	gl.Uniform1f(location, v)
}

func (c *GL) Uniform1i(location int32, v int32) {
	gl.Uniform1i(location, v)
}

func (c *GL) CreateTexture(img *image.RGBA, mipmaps bool) (uint32, error) {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	if w == 0 || h == 0 || len(img.Pix) == 0 {
		return 0, fmt.Errorf("%w: empty texture image", gpu.ErrResourceCreation)
	}

	var id uint32
	gl.GenTextures(1, &id)
	if _, err := checkCreate("glGenTextures", id); err != nil {
		return 0, err
	}

	gl.BindTexture(gl.TEXTURE_2D, id)
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8, int32(w), int32(h), 0, gl.RGBA, gl.UNSIGNED_BYTE, unsafe.Pointer(&img.Pix[0]))
	if code := gl.GetError(); code != gl.NO_ERROR {
		gl.BindTexture(gl.TEXTURE_2D, 0)
		gl.DeleteTextures(1, &id)
		return 0, fmt.Errorf("%w: glTexImage2D %dx%d (gl error 0x%x)", gpu.ErrResourceCreation, w, h, code)
	}

	minFilter := int32(gl.LINEAR)
	if mipmaps {
		gl.GenerateMipmap(gl.TEXTURE_2D)
		minFilter = gl.LINEAR_MIPMAP_LINEAR
	}
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, minFilter)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.REPEAT)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.REPEAT)
	gl.BindTexture(gl.TEXTURE_2D, 0)

	return id, nil
}

func (c *GL) DeleteTexture(id uint32) {
	gl.DeleteTextures(1, &id)
}

func (c *GL) BindTexture(unit uint32, id uint32) {
	gl.ActiveTexture(gl.TEXTURE0 + unit)
	gl.BindTexture(gl.TEXTURE_2D, id)
}

func (c *GL) DrawIndexed(_ gpu.Primitive, count int32) {
	gl.DrawElementsWithOffset(gl.TRIANGLES, count, gl.UNSIGNED_INT, 0)
}

// BeginFrame sets the viewport and clears color and depth with depth testing on.
func (c *GL) BeginFrame(width, height int32, clear [3]float32) {
	gl.Viewport(0, 0, width, height)
	gl.ClearColor(clear[0], clear[1], clear[2], 1)
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)
	gl.Enable(gl.DEPTH_TEST)
}
