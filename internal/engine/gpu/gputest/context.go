// Package gputest provides a resource-counting gpu.Context for tests.
package gputest

import (
	"fmt"
	"image"
	"strings"

	"github.com/Faultbox/modelkit/internal/engine/gpu"
)

// Op names an operation that can be made to fail.
type Op string

const (
	OpCreateBuffer      Op = "CreateBuffer"
	OpCreateVertexArray Op = "CreateVertexArray"
	OpCreateShader      Op = "CreateShader"
	OpCreateProgram     Op = "CreateProgram"
	OpCreateTexture     Op = "CreateTexture"
	OpMapBuffer         Op = "MapBuffer"
	OpUnmapBuffer       Op = "UnmapBuffer"
	OpLinkProgram       Op = "LinkProgram"
)

// Draw records one DrawIndexed call together with the state it was issued under.
type Draw struct {
	Mode        gpu.Primitive
	Count       int32
	Program     uint32
	VertexArray uint32
	Textures    map[uint32]uint32
}

// Attrib records one VertexAttrib call.
type Attrib struct {
	VertexArray uint32
	Buffer      uint32
	Index       uint32
	Components  int32
	Stride      int32
	Offset      int
}

type object struct {
	kind  gpu.Kind
	stage gpu.ShaderStage
	data  []byte
}

// Context is an in-memory gpu.Context. It tracks every live object, the
// current bindings and the contents written through mapped buffers.
type Context struct {
	nextID  uint32
	objects map[uint32]*object

	created map[gpu.Kind]int
	deleted map[gpu.Kind]int

	failAt map[Op]int
	calls  map[Op]int

	boundBuffer  map[gpu.BufferTarget]uint32
	mapped       map[gpu.BufferTarget]bool
	boundVAO     uint32
	boundProgram uint32
	boundTex     map[uint32]uint32

	uniformNames map[int32]string
	Uniforms     map[string]any
	Attribs      []Attrib
	Draws        []Draw
}

var _ gpu.Context = (*Context)(nil)

// New returns an empty context.
func New() *Context {
	return &Context{
		objects:      make(map[uint32]*object),
		created:      make(map[gpu.Kind]int),
		deleted:      make(map[gpu.Kind]int),
		failAt:       make(map[Op]int),
		calls:        make(map[Op]int),
		boundBuffer:  make(map[gpu.BufferTarget]uint32),
		mapped:       make(map[gpu.BufferTarget]bool),
		boundTex:     make(map[uint32]uint32),
		uniformNames: make(map[int32]string),
		Uniforms:     make(map[string]any),
	}
}

// FailOn makes the nth (1-based) call of op fail.
func (c *Context) FailOn(op Op, nth int) {
	c.failAt[op] = nth
}

func (c *Context) shouldFail(op Op) bool {
	c.calls[op]++
	n, ok := c.failAt[op]
	return ok && c.calls[op] == n
}

// Live returns the number of live objects of kind.
func (c *Context) Live(kind gpu.Kind) int {
	n := 0
	for _, o := range c.objects {
		if o.kind == kind {
			n++
		}
	}
	return n
}

// LiveTotal returns the number of live objects of any kind.
func (c *Context) LiveTotal() int {
	return len(c.objects)
}

// Created returns how many objects of kind were ever created.
func (c *Context) Created(kind gpu.Kind) int {
	return c.created[kind]
}

// IsLive reports whether id names a live object.
func (c *Context) IsLive(id uint32) bool {
	_, ok := c.objects[id]
	return ok
}

// BufferData returns the bytes written into buffer id.
func (c *Context) BufferData(id uint32) []byte {
	if o, ok := c.objects[id]; ok {
		return o.data
	}
	return nil
}

// Bound reports whether any program, vertex array, buffer or texture is still bound.
func (c *Context) Bound() []string {
	var bound []string
	if c.boundProgram != 0 {
		bound = append(bound, fmt.Sprintf("program %d", c.boundProgram))
	}
	if c.boundVAO != 0 {
		bound = append(bound, fmt.Sprintf("vertex array %d", c.boundVAO))
	}
	for target, id := range c.boundBuffer {
		if id != 0 {
			bound = append(bound, fmt.Sprintf("%s buffer %d", target, id))
		}
	}
	for unit, id := range c.boundTex {
		if id != 0 {
			bound = append(bound, fmt.Sprintf("texture unit %d: %d", unit, id))
		}
	}
	return bound
}

func (c *Context) create(op Op, kind gpu.Kind) (uint32, error) {
	if c.shouldFail(op) {
		return 0, fmt.Errorf("%w: injected %s failure", gpu.ErrResourceCreation, op)
	}
	c.nextID++
	c.objects[c.nextID] = &object{kind: kind}
	c.created[kind]++
	return c.nextID, nil
}

func (c *Context) remove(kind gpu.Kind, id uint32) {
	o, ok := c.objects[id]
	if !ok {
		panic(fmt.Sprintf("gputest: delete of unknown %s %d", kind, id))
	}
	if o.kind != kind {
		panic(fmt.Sprintf("gputest: delete of %s %d as %s", o.kind, id, kind))
	}
	delete(c.objects, id)
	c.deleted[kind]++
}

func (c *Context) CreateBuffer() (uint32, error) {
	return c.create(OpCreateBuffer, gpu.KindBuffer)
}

func (c *Context) DeleteBuffer(id uint32) {
	c.remove(gpu.KindBuffer, id)
	for target, bound := range c.boundBuffer {
		if bound == id {
			c.boundBuffer[target] = 0
		}
	}
}

func (c *Context) BindBuffer(target gpu.BufferTarget, id uint32) {
	c.boundBuffer[target] = id
}

func (c *Context) AllocateBuffer(target gpu.BufferTarget, size int) {
	if o, ok := c.objects[c.boundBuffer[target]]; ok {
		o.data = make([]byte, size)
	}
}

func (c *Context) MapBuffer(target gpu.BufferTarget, size int) ([]byte, error) {
	if c.shouldFail(OpMapBuffer) {
		return nil, fmt.Errorf("%w: injected map failure", gpu.ErrResourceMap)
	}
	o, ok := c.objects[c.boundBuffer[target]]
	if !ok || len(o.data) < size {
		return nil, fmt.Errorf("%w: no storage bound to %s target", gpu.ErrResourceMap, target)
	}
	c.mapped[target] = true
	return o.data[:size], nil
}

func (c *Context) UnmapBuffer(target gpu.BufferTarget) error {
	if !c.mapped[target] {
		return fmt.Errorf("%w: %s buffer not mapped", gpu.ErrResourceMap, target)
	}
	c.mapped[target] = false
	if c.shouldFail(OpUnmapBuffer) {
		return fmt.Errorf("%w: injected unmap failure", gpu.ErrResourceMap)
	}
	return nil
}

// Mapped reports whether a buffer is currently mapped on target.
func (c *Context) Mapped(target gpu.BufferTarget) bool {
	return c.mapped[target]
}

func (c *Context) CreateVertexArray() (uint32, error) {
	return c.create(OpCreateVertexArray, gpu.KindVertexArray)
}

func (c *Context) DeleteVertexArray(id uint32) {
	c.remove(gpu.KindVertexArray, id)
	if c.boundVAO == id {
		c.boundVAO = 0
	}
}

func (c *Context) BindVertexArray(id uint32) {
	c.boundVAO = id
}

func (c *Context) VertexAttrib(index uint32, components int32, stride int32, offset int) {
	c.Attribs = append(c.Attribs, Attrib{
		VertexArray: c.boundVAO,
		Buffer:      c.boundBuffer[gpu.ArrayBuffer],
		Index:       index,
		Components:  components,
		Stride:      stride,
		Offset:      offset,
	})
}

func (c *Context) CreateShader(stage gpu.ShaderStage) (uint32, error) {
	id, err := c.create(OpCreateShader, gpu.KindShader)
	if err == nil {
		c.objects[id].stage = stage
	}
	return id, err
}

func (c *Context) DeleteShader(id uint32) {
	c.remove(gpu.KindShader, id)
}

// CompileShader accepts any source that declares main and has balanced braces,
// mimicking the shape of a GLSL compiler log on failure.
func (c *Context) CompileShader(id uint32, source string) (string, bool) {
	if !strings.Contains(source, "void main") {
		return "0:1(1): error: function `main' is not defined", false
	}
	depth := 0
	for i, line := range strings.Split(source, "\n") {
		depth += strings.Count(line, "{") - strings.Count(line, "}")
		if depth < 0 {
			return fmt.Sprintf("0:%d(1): error: syntax error, unexpected '}'", i+1), false
		}
	}
	if depth != 0 {
		return "0:0(0): error: syntax error, unexpected end of file", false
	}
	return "", true
}

func (c *Context) CreateProgram() (uint32, error) {
	return c.create(OpCreateProgram, gpu.KindProgram)
}

func (c *Context) DeleteProgram(id uint32) {
	c.remove(gpu.KindProgram, id)
	if c.boundProgram == id {
		c.boundProgram = 0
	}
}

func (c *Context) LinkProgram(id uint32, shaders ...uint32) (string, bool) {
	if c.shouldFail(OpLinkProgram) {
		return "error: injected link failure", false
	}
	var haveVS, haveFS bool
	for _, s := range shaders {
		o, ok := c.objects[s]
		if !ok || o.kind != gpu.KindShader {
			return fmt.Sprintf("error: %d is not a shader object", s), false
		}
		switch o.stage {
		case gpu.StageVertex:
			haveVS = true
		case gpu.StageFragment:
			haveFS = true
		}
	}
	if !haveVS || !haveFS {
		return "error: program needs a vertex and a fragment shader", false
	}
	return "", true
}

func (c *Context) UseProgram(id uint32) {
	c.boundProgram = id
}

// UniformLocation hands out a stable location per (program, name) pair.
func (c *Context) UniformLocation(program uint32, name string) int32 {
	key := fmt.Sprintf("%d/%s", program, name)
	for loc, n := range c.uniformNames {
		if n == key {
			return loc
		}
	}
	loc := int32(len(c.uniformNames))
	c.uniformNames[loc] = key
	return loc
}

func (c *Context) setUniform(location int32, v any) {
	if location < 0 {
		return
	}
	key := c.uniformNames[location]
	if i := strings.IndexByte(key, '/'); i >= 0 {
		key = key[i+1:]
	}
	c.Uniforms[key] = v
}

func (c *Context) UniformMatrix4(location int32, m *[16]float32) {
	c.setUniform(location, *m)
}

func (c *Context) Uniform3(location int32, v [3]float32) {
	c.setUniform(location, v)
}

func (c *Context) Uniform1f(location int32, v float32) {
	c.setUniform(location, v)
}

func (c *Context) Uniform1i(location int32, v int32) {
	c.setUniform(location, v)
}

func (c *Context) CreateTexture(img *image.RGBA, mipmaps bool) (uint32, error) {
	if img == nil || img.Bounds().Empty() {
		return 0, fmt.Errorf("%w: empty texture image", gpu.ErrResourceCreation)
	}
	return c.create(OpCreateTexture, gpu.KindTexture)
}

func (c *Context) DeleteTexture(id uint32) {
	c.remove(gpu.KindTexture, id)
	for unit, bound := range c.boundTex {
		if bound == id {
			c.boundTex[unit] = 0
		}
	}
}

func (c *Context) BindTexture(unit uint32, id uint32) {
	c.boundTex[unit] = id
}

func (c *Context) DrawIndexed(mode gpu.Primitive, count int32) {
	textures := make(map[uint32]uint32)
	for unit, id := range c.boundTex {
		if id != 0 {
			textures[unit] = id
		}
	}
	c.Draws = append(c.Draws, Draw{
		Mode:        mode,
		Count:       count,
		Program:     c.boundProgram,
		VertexArray: c.boundVAO,
		Textures:    textures,
	})
}
