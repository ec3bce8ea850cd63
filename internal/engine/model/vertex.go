// Package model turns imported scenes into GPU-resident models.
//
// A Model owns everything it draws with: one linked program, the vertex,
// index and vertex-array objects of every mesh, and the textures of every
// material. Nothing is shared between models, so destroying one model never
// affects another. All building and rendering must happen on the thread
// that owns the graphics context; only Loader.Import may run elsewhere.
package model

import (
	"encoding/binary"
	"math"
)

// Vertex is the fixed per-vertex record shared by every mesh.
type Vertex struct {
	Position [3]float32
	Normal   [3]float32
	TexCoord [2]float32
}

// Vertex layout in the vertex buffer.
const (
	VertexStride   = 32
	PositionOffset = 0
	NormalOffset   = 12
	TexCoordOffset = 24
)

// Attribute locations bound by the vertex array.
const (
	AttribPosition = 0
	AttribNormal   = 1
	AttribTexCoord = 2
)

func (v *Vertex) floats() [8]float32 {
	return [8]float32{
		v.Position[0], v.Position[1], v.Position[2],
		v.Normal[0], v.Normal[1], v.Normal[2],
		v.TexCoord[0], v.TexCoord[1],
	}
}

// Put encodes v into the first VertexStride bytes of dst in native byte order.
func (v *Vertex) Put(dst []byte) {
	for i, f := range v.floats() {
		binary.NativeEndian.PutUint32(dst[i*4:], math.Float32bits(f))
	}
}

// ReadVertex decodes one vertex record written by Put.
func ReadVertex(src []byte) Vertex {
	var f [8]float32
	for i := range f {
		f[i] = math.Float32frombits(binary.NativeEndian.Uint32(src[i*4:]))
	}
	return Vertex{
		Position: [3]float32{f[0], f[1], f[2]},
		Normal:   [3]float32{f[3], f[4], f[5]},
		TexCoord: [2]float32{f[6], f[7]},
	}
}
