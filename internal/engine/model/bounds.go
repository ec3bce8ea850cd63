package model

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/modelkit/internal/engine/importer"
)

// ErrDegenerateGeometry is returned when bounds are requested for no vertices.
var ErrDegenerateGeometry = errors.New("degenerate geometry")

// BoundingBox is an axis-aligned box in model space.
type BoundingBox struct {
	Min mgl32.Vec3
	Max mgl32.Vec3
}

// Size returns the extent along each axis.
func (b BoundingBox) Size() mgl32.Vec3 {
	return b.Max.Sub(b.Min)
}

// Center returns the midpoint of the box.
func (b BoundingBox) Center() mgl32.Vec3 {
	return b.Min.Add(b.Size().Mul(0.5))
}

// Radius returns half the diagonal, the radius of the enclosing sphere
// centered at Center.
func (b BoundingBox) Radius() float32 {
	return b.Size().Len() * 0.5
}

// ComputeBounds accumulates the bounds of every vertex of every mesh.
func ComputeBounds(meshes []importer.Mesh) (BoundingBox, error) {
	b := BoundingBox{
		Min: mgl32.Vec3{math.MaxFloat32, math.MaxFloat32, math.MaxFloat32},
		Max: mgl32.Vec3{-math.MaxFloat32, -math.MaxFloat32, -math.MaxFloat32},
	}

	n := 0
	for i := range meshes {
		for _, p := range meshes[i].Positions {
			b.extend(p)
			n++
		}
	}
	if n == 0 {
		return BoundingBox{}, fmt.Errorf("%w: no vertices in %d meshes", ErrDegenerateGeometry, len(meshes))
	}
	return b, nil
}

func (b *BoundingBox) extend(p [3]float32) {
	for k := 0; k < 3; k++ {
		if p[k] < b.Min[k] {
			b.Min[k] = p[k]
		}
		if p[k] > b.Max[k] {
			b.Max[k] = p[k]
		}
	}
}
