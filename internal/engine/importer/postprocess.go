package importer

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// bakeHierarchy flattens the node tree of doc into one mesh per node/mesh
// reference with the accumulated node transform applied to every vertex.
// A mesh referenced by several nodes is duplicated; unreferenced meshes are
// dropped. Documents without a hierarchy are returned unchanged.
func bakeHierarchy(doc *Document) ([]Mesh, error) {
	if doc.Root == nil {
		return doc.Meshes, nil
	}

	var out []Mesh
	visited := make(map[*Node]bool)

	var walk func(n *Node, parent mgl32.Mat4) error
	walk = func(n *Node, parent mgl32.Mat4) error {
		if n == nil {
			return nil
		}
		// Guard against cycles in malformed hierarchies
		if visited[n] {
			return fmt.Errorf("node %q is reachable twice in the hierarchy", n.Name)
		}
		visited[n] = true

		world := parent.Mul4(n.Transform)
		for _, idx := range n.Meshes {
			if idx < 0 || idx >= len(doc.Meshes) {
				return fmt.Errorf("node %q references mesh %d of %d", n.Name, idx, len(doc.Meshes))
			}
			out = append(out, transformMesh(&doc.Meshes[idx], world))
		}
		for _, child := range n.Children {
			if err := walk(child, world); err != nil {
				return err
			}
		}
		return nil
	}

	if err := walk(doc.Root, mgl32.Ident4()); err != nil {
		return nil, err
	}
	return out, nil
}

// transformMesh returns a copy of m with positions and normals moved by world.
func transformMesh(m *Mesh, world mgl32.Mat4) Mesh {
	out := Mesh{
		Name:          m.Name,
		Positions:     make([][3]float32, len(m.Positions)),
		UVs:           m.UVs,
		Faces:         m.Faces,
		MaterialIndex: m.MaterialIndex,
	}

	identity := world == mgl32.Ident4()
	for i, p := range m.Positions {
		if identity {
			out.Positions[i] = p
			continue
		}
		out.Positions[i] = mgl32.TransformCoordinate(mgl32.Vec3(p), world)
	}

	if len(m.Normals) > 0 {
		out.Normals = make([][3]float32, len(m.Normals))
		nm := world.Mat3()
		if nm.Det() != 0 {
			nm = nm.Inv().Transpose()
		}
		for i, n := range m.Normals {
			if identity {
				out.Normals[i] = n
				continue
			}
			out.Normals[i] = normalize(nm.Mul3x1(mgl32.Vec3(n)))
		}
	}
	return out
}

// triangulate splits every polygon with more than three corners into a
// triangle fan around its first corner. Points and lines are left alone.
func triangulate(m *Mesh) {
	needed := false
	for _, f := range m.Faces {
		if len(f) > 3 {
			needed = true
			break
		}
	}
	if !needed {
		return
	}

	faces := make([][]uint32, 0, len(m.Faces))
	for _, f := range m.Faces {
		if len(f) <= 3 {
			faces = append(faces, f)
			continue
		}
		for i := 1; i+1 < len(f); i++ {
			faces = append(faces, []uint32{f[0], f[i], f[i+1]})
		}
	}
	m.Faces = faces
}

// weldTolerance is the fraction of the mesh extent within which positions
// count as shared when averaging normals.
const weldTolerance = 1e-5

// generateSmoothNormals computes area-weighted face normals, accumulates
// them per vertex and averages vertices that share a position.
func generateSmoothNormals(m *Mesh) {
	normals := make([][3]float32, len(m.Positions))
	for _, f := range m.Faces {
		if len(f) < 3 {
			continue
		}
		if !inRange(f, len(m.Positions)) {
			continue
		}
		a := mgl32.Vec3(m.Positions[f[0]])
		for i := 1; i+1 < len(f); i++ {
			b := mgl32.Vec3(m.Positions[f[i]])
			c := mgl32.Vec3(m.Positions[f[i+1]])
			// Unnormalized cross product weights by triangle area
			n := b.Sub(a).Cross(c.Sub(a))
			for _, idx := range []uint32{f[0], f[i], f[i+1]} {
				normals[idx][0] += n[0]
				normals[idx][1] += n[1]
				normals[idx][2] += n[2]
			}
		}
	}

	// Group vertices by position quantized relative to the mesh extent
	cell := weldCell(m.Positions)
	posMap := make(map[[3]int64][]int)
	for i, p := range m.Positions {
		key := weldKey(p, cell)
		posMap[key] = append(posMap[key], i)
	}

	out := make([][3]float32, len(m.Positions))
	for _, idxs := range posMap {
		var sum mgl32.Vec3
		for _, idx := range idxs {
			sum = sum.Add(mgl32.Vec3(normals[idx]))
		}
		avg := normalize(sum)
		for _, idx := range idxs {
			out[idx] = avg
		}
	}
	m.Normals = out
}

// weldCell returns the quantization step for positions, or 0 when the
// positions span no volume and must match exactly.
func weldCell(positions [][3]float32) float64 {
	if len(positions) == 0 {
		return 0
	}
	lo, hi := positions[0], positions[0]
	for _, p := range positions[1:] {
		for k := 0; k < 3; k++ {
			lo[k] = min(lo[k], p[k])
			hi[k] = max(hi[k], p[k])
		}
	}
	var extent float64
	for k := 0; k < 3; k++ {
		extent = math.Max(extent, float64(hi[k])-float64(lo[k]))
	}
	return extent * weldTolerance
}

func weldKey(p [3]float32, cell float64) [3]int64 {
	var key [3]int64
	for k := 0; k < 3; k++ {
		if cell == 0 {
			key[k] = int64(math.Float32bits(p[k]))
			continue
		}
		key[k] = int64(math.Round(float64(p[k]) / cell))
	}
	return key
}

type vertexKey struct {
	pos    [3]float32
	normal [3]float32
	uv     [2]float32
}

// joinIdenticalVertices merges vertices whose position, normal and texture
// coordinate are bit-identical and rewrites the faces to the merged indices.
func joinIdenticalVertices(m *Mesh) {
	if len(m.Positions) == 0 {
		return
	}
	hasNormals := m.HasNormals()
	hasUVs := m.HasUVs()

	remap := make([]uint32, len(m.Positions))
	seen := make(map[vertexKey]uint32, len(m.Positions))

	var (
		positions [][3]float32
		normals   [][3]float32
		uvs       [][2]float32
	)
	for i, p := range m.Positions {
		key := vertexKey{pos: p}
		if hasNormals {
			key.normal = m.Normals[i]
		}
		if hasUVs {
			key.uv = m.UVs[i]
		}
		if idx, ok := seen[key]; ok {
			remap[i] = idx
			continue
		}
		idx := uint32(len(positions))
		seen[key] = idx
		remap[i] = idx
		positions = append(positions, p)
		if hasNormals {
			normals = append(normals, m.Normals[i])
		}
		if hasUVs {
			uvs = append(uvs, m.UVs[i])
		}
	}
	if len(positions) == len(m.Positions) {
		return
	}

	faces := make([][]uint32, len(m.Faces))
	for i, f := range m.Faces {
		nf := make([]uint32, len(f))
		for j, idx := range f {
			// Out-of-range indices pass through so later validation sees them
			if int(idx) < len(remap) {
				nf[j] = remap[idx]
			} else {
				nf[j] = uint32(len(positions)) + (idx - uint32(len(remap)))
			}
		}
		faces[i] = nf
	}

	m.Positions = positions
	m.Normals = normals
	m.UVs = uvs
	m.Faces = faces
}

// normalizeScale translates and uniformly scales all meshes so the scene
// bounds are centered on the origin with the longest half-extent equal to 1.
func normalizeScale(meshes []Mesh) {
	lo := mgl32.Vec3{math.MaxFloat32, math.MaxFloat32, math.MaxFloat32}
	hi := mgl32.Vec3{-math.MaxFloat32, -math.MaxFloat32, -math.MaxFloat32}
	count := 0
	for i := range meshes {
		for _, p := range meshes[i].Positions {
			for k := 0; k < 3; k++ {
				if p[k] < lo[k] {
					lo[k] = p[k]
				}
				if p[k] > hi[k] {
					hi[k] = p[k]
				}
			}
			count++
		}
	}
	if count == 0 {
		return
	}

	center := lo.Add(hi).Mul(0.5)
	half := hi.Sub(lo).Mul(0.5)
	extent := half[0]
	if half[1] > extent {
		extent = half[1]
	}
	if half[2] > extent {
		extent = half[2]
	}
	if extent == 0 {
		return
	}

	for i := range meshes {
		for j, p := range meshes[i].Positions {
			meshes[i].Positions[j] = mgl32.Vec3(p).Sub(center).Mul(1 / extent)
		}
	}
}

func inRange(face []uint32, n int) bool {
	for _, idx := range face {
		if int(idx) >= n {
			return false
		}
	}
	return true
}

func normalize(v mgl32.Vec3) [3]float32 {
	l := v.Len()
	if l == 0 {
		return [3]float32{}
	}
	return v.Mul(1 / l)
}
