// Package shader compiles shader stages and links them into programs.
package shader

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/Faultbox/modelkit/internal/engine/gpu"
	"github.com/Faultbox/modelkit/internal/logger"
)

// ErrSourceRead is returned when a shader source file cannot be read.
var ErrSourceRead = errors.New("shader source read failed")

// CompileError carries the compiler diagnostics of a failed stage.
type CompileError struct {
	Stage gpu.ShaderStage
	Path  string
	Log   string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("%s shader %s: compile failed: %s", e.Stage, e.Path, e.Log)
}

// LinkError carries the linker diagnostics of a failed program.
type LinkError struct {
	Log string
}

func (e *LinkError) Error() string {
	return "program link failed: " + e.Log
}

// Shader is a compiled shader object.
type Shader struct {
	handle *gpu.Handle
	stage  gpu.ShaderStage
	path   string
}

// Stage returns the pipeline stage of the shader.
func (s *Shader) Stage() gpu.ShaderStage { return s.stage }

// Release deletes the shader object.
func (s *Shader) Release() { s.handle.Release() }

// Manager compiles and links shaders on one graphics context.
type Manager struct {
	ctx gpu.Context
	log *zap.Logger
}

// NewManager creates a manager bound to ctx.
func NewManager(ctx gpu.Context) *Manager {
	return &Manager{ctx: ctx, log: logger.Named("shader")}
}

// Compile reads a shader source file and compiles it for stage.
func (m *Manager) Compile(stage gpu.ShaderStage, path string) (*Shader, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceRead, path, err)
	}
	return m.CompileSource(stage, path, string(src))
}

// CompileSource compiles source text. name is only used in diagnostics.
func (m *Manager) CompileSource(stage gpu.ShaderStage, name, source string) (*Shader, error) {
	h, err := gpu.CreateShader(m.ctx, stage)
	if err != nil {
		return nil, err
	}

	log, ok := m.ctx.CompileShader(h.ID(), source)
	if !ok {
		h.Release()
		if log == "" {
			log = "compiler returned no diagnostics"
		}
		return nil, &CompileError{Stage: stage, Path: name, Log: log}
	}

	m.log.Debug("compiled shader", zap.Stringer("stage", stage), zap.String("path", name))
	return &Shader{handle: h, stage: stage, path: name}, nil
}

// Link links a vertex and a fragment shader into a program. The shaders stay
// owned by the caller and may be released as soon as Link returns.
func (m *Manager) Link(vs, fs *Shader) (*Program, error) {
	if vs == nil || fs == nil {
		return nil, &LinkError{Log: "missing shader stage"}
	}

	h, err := gpu.Create(m.ctx, gpu.KindProgram)
	if err != nil {
		return nil, err
	}

	log, ok := m.ctx.LinkProgram(h.ID(), vs.handle.ID(), fs.handle.ID())
	if !ok {
		h.Release()
		if log == "" {
			log = "linker returned no diagnostics"
		}
		return nil, &LinkError{Log: log}
	}
	if log != "" {
		m.log.Warn("program linked with diagnostics", zap.String("log", log))
	}

	return &Program{ctx: m.ctx, handle: h, uniforms: make(map[string]int32)}, nil
}

// LoadProgram compiles both stages from files and links them. The shader
// objects are deleted right after linking; the program keeps only the link result.
func (m *Manager) LoadProgram(vertexPath, fragmentPath string) (*Program, error) {
	vs, err := m.Compile(gpu.StageVertex, vertexPath)
	if err != nil {
		return nil, err
	}
	defer vs.Release()

	fs, err := m.Compile(gpu.StageFragment, fragmentPath)
	if err != nil {
		return nil, err
	}
	defer fs.Release()

	p, err := m.Link(vs, fs)
	if err != nil {
		return nil, err
	}

	m.log.Info("program ready", zap.String("vertex", vertexPath), zap.String("fragment", fragmentPath))
	return p, nil
}

// Program is a linked shader program.
type Program struct {
	ctx      gpu.Context
	handle   *gpu.Handle
	uniforms map[string]int32
}

// ID returns the native program ID, or 0 once released.
func (p *Program) ID() uint32 { return p.handle.ID() }

// Handle exposes the owned program handle.
func (p *Program) Handle() *gpu.Handle { return p.handle }

// Use binds the program for subsequent draws.
func (p *Program) Use() {
	p.ctx.UseProgram(p.handle.ID())
}

// Unuse unbinds whatever program is current.
func (p *Program) Unuse() {
	p.ctx.UseProgram(0)
}

// Uniform returns the cached location of a uniform, -1 if it is inactive.
func (p *Program) Uniform(name string) int32 {
	if loc, ok := p.uniforms[name]; ok {
		return loc
	}
	loc := p.ctx.UniformLocation(p.handle.ID(), name)
	p.uniforms[name] = loc
	return loc
}

// SetUniform sets a uniform by name. Inactive uniforms are silently skipped,
// matching GL semantics for location -1.
func (p *Program) SetUniform(name string, value any) error {
	if err := p.SetUniformAt(p.Uniform(name), value); err != nil {
		return fmt.Errorf("uniform %q: %w", name, err)
	}
	return nil
}

// SetUniformAt sets a uniform by location. The program must be in use.
func (p *Program) SetUniformAt(location int32, value any) error {
	if location < 0 {
		return nil
	}
	switch v := value.(type) {
	case float32:
		p.ctx.Uniform1f(location, v)
	case float64:
		p.ctx.Uniform1f(location, float32(v))
	case int32:
		p.ctx.Uniform1i(location, v)
	case int:
		p.ctx.Uniform1i(location, int32(v))
	case bool:
		var i int32
		if v {
			i = 1
		}
		p.ctx.Uniform1i(location, i)
	case mgl32.Vec3:
		p.ctx.Uniform3(location, v)
	case [3]float32:
		p.ctx.Uniform3(location, v)
	case mgl32.Mat4:
		m := [16]float32(v)
		p.ctx.UniformMatrix4(location, &m)
	default:
		return fmt.Errorf("unsupported uniform type %T", value)
	}
	return nil
}

// Release deletes the program.
func (p *Program) Release() {
	p.handle.Release()
}
