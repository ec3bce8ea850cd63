package gpu

import "fmt"

// Handle owns exactly one native GPU object and releases it exactly once.
// A Handle has a single owner; it is never shared or reference counted.
type Handle struct {
	ctx      Context
	kind     Kind
	id       uint32
	released bool
}

// NewHandle takes ownership of an already created native object.
func NewHandle(ctx Context, kind Kind, id uint32) *Handle {
	return &Handle{ctx: ctx, kind: kind, id: id}
}

// ID returns the native object ID, or 0 once released.
func (h *Handle) ID() uint32 {
	if h == nil || h.released {
		return 0
	}
	return h.id
}

// Kind returns the type of the owned object.
func (h *Handle) Kind() Kind {
	return h.kind
}

// Live reports whether the handle still owns its object.
func (h *Handle) Live() bool {
	return h != nil && !h.released
}

// Release deletes the native object. Further calls are no-ops.
func (h *Handle) Release() {
	if h == nil || h.released {
		return
	}
	h.released = true

	switch h.kind {
	case KindBuffer:
		h.ctx.DeleteBuffer(h.id)
	case KindVertexArray:
		h.ctx.DeleteVertexArray(h.id)
	case KindShader:
		h.ctx.DeleteShader(h.id)
	case KindProgram:
		h.ctx.DeleteProgram(h.id)
	case KindTexture:
		h.ctx.DeleteTexture(h.id)
	}
}

func (h *Handle) String() string {
	return fmt.Sprintf("%s#%d", h.kind, h.id)
}

// Create allocates a native object of the given kind and wraps it.
// Shaders must be created with CreateShader because they need a stage.
func Create(ctx Context, kind Kind) (*Handle, error) {
	var (
		id  uint32
		err error
	)
	switch kind {
	case KindBuffer:
		id, err = ctx.CreateBuffer()
	case KindVertexArray:
		id, err = ctx.CreateVertexArray()
	case KindProgram:
		id, err = ctx.CreateProgram()
	default:
		return nil, fmt.Errorf("%w: cannot create %s without parameters", ErrResourceCreation, kind)
	}
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", kind, err)
	}
	return NewHandle(ctx, kind, id), nil
}

// CreateShader allocates a shader object for the given stage.
func CreateShader(ctx Context, stage ShaderStage) (*Handle, error) {
	id, err := ctx.CreateShader(stage)
	if err != nil {
		return nil, fmt.Errorf("creating %s shader: %w", stage, err)
	}
	return NewHandle(ctx, KindShader, id), nil
}

// Scope collects handles acquired during a multi-step build and releases
// them in reverse order unless the build commits.
//
//	scope := gpu.NewScope()
//	defer scope.Close()
//	vbo := scope.Track(...)
//	...
//	scope.Commit()
type Scope struct {
	handles   []*Handle
	committed bool
}

// NewScope returns an empty scope.
func NewScope() *Scope {
	return &Scope{}
}

// Track registers h for release on Close and returns it. Nil handles are ignored.
func (s *Scope) Track(h *Handle) *Handle {
	if h != nil {
		s.handles = append(s.handles, h)
	}
	return h
}

// Commit hands ownership of every tracked handle to the caller.
func (s *Scope) Commit() {
	s.committed = true
}

// Close releases tracked handles in reverse acquisition order unless committed.
func (s *Scope) Close() {
	if s.committed {
		return
	}
	for i := len(s.handles) - 1; i >= 0; i-- {
		s.handles[i].Release()
	}
	s.handles = nil
}
