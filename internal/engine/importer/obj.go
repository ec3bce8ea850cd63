package importer

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	xenc "golang.org/x/text/encoding"
	"go.uber.org/zap"

	"github.com/Faultbox/modelkit/internal/logger"
	"github.com/Faultbox/modelkit/pkg/encoding"
)

// OBJOptions configures the Wavefront backend.
type OBJOptions struct {
	// PathEncoding decodes material library and texture file names.
	// Nil means the names are already UTF-8.
	PathEncoding xenc.Encoding
}

// OBJ decodes Wavefront .obj files and their .mtl material libraries.
type OBJ struct {
	opts OBJOptions
	log  *zap.Logger
}

// NewOBJ returns the Wavefront backend.
func NewOBJ(opts OBJOptions) *OBJ {
	return &OBJ{opts: opts, log: logger.Named("obj")}
}

func (o *OBJ) Name() string { return "obj" }

func (o *OBJ) Extensions() []string { return []string{".obj"} }

// Decode parses the file at path. A new mesh starts at every object, group
// or material change; meshes without faces are dropped.
func (o *OBJ) Decode(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := &objDecoder{
		backend:   o,
		dir:       filepath.Dir(path),
		materials: make(map[string]int),
		material:  NoMaterial,
	}
	if err := scanLines(f, dec.parseLine); err != nil {
		return nil, err
	}
	dec.flush()

	return &Document{Meshes: dec.meshes, Materials: dec.mats}, nil
}

// scanLines calls parse for every line of r with its 1-based line number.
func scanLines(r io.Reader, parse func(n int, fields []string) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	n := 0
	for sc.Scan() {
		n++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		if err := parse(n, fields); err != nil {
			return fmt.Errorf("line %d: %w", n, err)
		}
	}
	return sc.Err()
}

type objVertex struct {
	v, vt, vn int
}

type objGroup struct {
	name     string
	material int
	vertices map[objVertex]uint32
	mesh     Mesh
	missUV   bool
	missNorm bool
}

type objDecoder struct {
	backend *OBJ
	dir     string

	positions [][3]float32
	uvs       [][2]float32
	normals   [][3]float32

	mats      []Material
	materials map[string]int

	name     string
	material int
	group    *objGroup
	meshes   []Mesh
}

func (d *objDecoder) parseLine(_ int, fields []string) error {
	switch fields[0] {
	case "v":
		p, err := parseFloats(fields[1:], 3, 3)
		if err != nil {
			return fmt.Errorf("vertex: %w", err)
		}
		d.positions = append(d.positions, [3]float32{p[0], p[1], p[2]})
	case "vt":
		p, err := parseFloats(fields[1:], 1, 2)
		if err != nil {
			return fmt.Errorf("texture coordinate: %w", err)
		}
		// Flip to a top-left image origin
		d.uvs = append(d.uvs, [2]float32{p[0], 1 - p[1]})
	case "vn":
		p, err := parseFloats(fields[1:], 3, 3)
		if err != nil {
			return fmt.Errorf("normal: %w", err)
		}
		d.normals = append(d.normals, [3]float32{p[0], p[1], p[2]})
	case "f":
		if len(fields) < 4 {
			return fmt.Errorf("face with %d vertices", len(fields)-1)
		}
		return d.face(fields[1:])
	case "l":
		if len(fields) < 3 {
			return fmt.Errorf("line with %d vertices", len(fields)-1)
		}
		for i := 1; i+1 < len(fields); i++ {
			if err := d.face(fields[i : i+2]); err != nil {
				return err
			}
		}
	case "o", "g":
		d.flush()
		d.name = strings.Join(fields[1:], " ")
	case "usemtl":
		if len(fields) < 2 {
			return fmt.Errorf("usemtl without a name")
		}
		d.flush()
		name := strings.Join(fields[1:], " ")
		idx, ok := d.materials[name]
		if !ok {
			d.backend.log.Warn("unknown material", zap.String("material", name))
			idx = NoMaterial
		}
		d.material = idx
	case "mtllib":
		for _, name := range fields[1:] {
			d.loadLibrary(name)
		}
	default:
		// s, vp, cstype and friends carry nothing a static mesh needs
	}
	return nil
}

// face resolves one face statement into the current group.
func (d *objDecoder) face(refs []string) error {
	g := d.current()
	face := make([]uint32, 0, len(refs))
	for _, ref := range refs {
		key, err := d.resolve(ref)
		if err != nil {
			return err
		}
		idx, ok := g.vertices[key]
		if !ok {
			idx = uint32(len(g.mesh.Positions))
			g.vertices[key] = idx
			g.mesh.Positions = append(g.mesh.Positions, d.positions[key.v])

			var uv [2]float32
			if key.vt >= 0 {
				uv = d.uvs[key.vt]
			} else {
				g.missUV = true
			}
			g.mesh.UVs = append(g.mesh.UVs, uv)

			var n [3]float32
			if key.vn >= 0 {
				n = d.normals[key.vn]
			} else {
				g.missNorm = true
			}
			g.mesh.Normals = append(g.mesh.Normals, n)
		}
		face = append(face, idx)
	}
	g.mesh.Faces = append(g.mesh.Faces, face)
	return nil
}

// resolve parses a v[/vt][/vn] reference. Negative indices count back from
// the most recent element.
func (d *objDecoder) resolve(ref string) (objVertex, error) {
	parts := strings.Split(ref, "/")
	key := objVertex{vt: -1, vn: -1}

	var err error
	if key.v, err = objIndex(parts[0], len(d.positions)); err != nil {
		return key, fmt.Errorf("vertex reference %q: %w", ref, err)
	}
	if len(parts) > 1 && parts[1] != "" {
		if key.vt, err = objIndex(parts[1], len(d.uvs)); err != nil {
			return key, fmt.Errorf("texture reference %q: %w", ref, err)
		}
	}
	if len(parts) > 2 && parts[2] != "" {
		if key.vn, err = objIndex(parts[2], len(d.normals)); err != nil {
			return key, fmt.Errorf("normal reference %q: %w", ref, err)
		}
	}
	return key, nil
}

func objIndex(s string, count int) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	idx := v - 1
	if v < 0 {
		idx = count + v
	}
	if v == 0 || idx < 0 || idx >= count {
		return 0, fmt.Errorf("index %d out of range (%d defined)", v, count)
	}
	return idx, nil
}

func (d *objDecoder) current() *objGroup {
	if d.group == nil {
		d.group = &objGroup{
			name:     d.name,
			material: d.material,
			vertices: make(map[objVertex]uint32),
		}
	}
	return d.group
}

// flush closes the current group.
func (d *objDecoder) flush() {
	g := d.group
	d.group = nil
	if g == nil || len(g.mesh.Faces) == 0 {
		return
	}
	m := g.mesh
	m.Name = g.name
	m.MaterialIndex = g.material
	if g.missUV {
		m.UVs = nil
	}
	if g.missNorm {
		m.Normals = nil
	}
	d.meshes = append(d.meshes, m)
}

// loadLibrary reads a material library relative to the model directory.
// A missing library is not fatal; meshes referencing it get no material.
func (d *objDecoder) loadLibrary(name string) {
	name = encoding.NormalizePath(encoding.DecodeString(d.backend.opts.PathEncoding, name))
	path := filepath.Join(d.dir, filepath.FromSlash(name))

	f, err := os.Open(path)
	if err != nil {
		d.backend.log.Warn("material library not found", zap.String("path", path), zap.Error(err))
		return
	}
	defer f.Close()

	// Unsupported statements are skipped so later materials still load
	var cur *Material
	err = scanLines(f, func(n int, fields []string) error {
		if fields[0] == "newmtl" {
			cur = nil
			if len(fields) < 2 {
				d.backend.log.Warn("newmtl without a name", zap.String("path", path), zap.Int("line", n))
				return nil
			}
			name := strings.Join(fields[1:], " ")
			d.materials[name] = len(d.mats)
			d.mats = append(d.mats, NewMaterial(name))
			cur = &d.mats[len(d.mats)-1]
			return nil
		}
		if cur == nil {
			return nil
		}
		if err := d.materialLine(cur, fields); err != nil {
			d.backend.log.Warn("material statement skipped",
				zap.String("path", path), zap.Int("line", n), zap.Error(err))
		}
		return nil
	})
	if err != nil {
		d.backend.log.Warn("material library read failed", zap.String("path", path), zap.Error(err))
	}
}

var mtlColors = map[string]string{
	"Ka": ColorAmbient,
	"Kd": ColorDiffuse,
	"Ks": ColorSpecular,
	"Ke": ColorEmissive,
}

var mtlMaps = map[string]TextureType{
	"map_Ka": TextureAmbient,
	"map_Kd": TextureDiffuse,
	"map_Ks": TextureSpecular,
	"map_Ke": TextureEmissive,
}

func (d *objDecoder) materialLine(m *Material, fields []string) error {
	key := fields[0]
	if c, ok := mtlColors[key]; ok {
		p, err := parseFloats(fields[1:], 1, 3)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		// A single component is a gray level
		if len(fields) == 2 {
			p[1], p[2] = p[0], p[0]
		}
		m.Colors[c] = [3]float32{p[0], p[1], p[2]}
		return nil
	}
	if t, ok := mtlMaps[key]; ok {
		if len(fields) < 2 {
			return fmt.Errorf("%s without a file name", key)
		}
		// Options such as -s or -bm precede the file name
		raw := fields[len(fields)-1]
		path := encoding.NormalizePath(encoding.DecodeString(d.backend.opts.PathEncoding, raw))
		m.Textures[t] = append(m.Textures[t], path)
		return nil
	}

	switch key {
	case "Ns":
		p, err := parseFloats(fields[1:], 1, 1)
		if err != nil {
			return fmt.Errorf("Ns: %w", err)
		}
		m.Scalars[PropShininess] = p[0]
	case "d":
		p, err := parseFloats(fields[len(fields)-1:], 1, 1)
		if err != nil {
			return fmt.Errorf("d: %w", err)
		}
		m.Scalars[PropOpacity] = p[0]
	case "Tr":
		p, err := parseFloats(fields[1:], 1, 1)
		if err != nil {
			return fmt.Errorf("Tr: %w", err)
		}
		m.Scalars[PropOpacity] = 1 - p[0]
	}
	return nil
}

// parseFloats parses at least least and at most most leading fields.
// Missing trailing values are zero.
func parseFloats(fields []string, least, most int) ([3]float32, error) {
	var out [3]float32
	if len(fields) < least {
		return out, fmt.Errorf("expected %d values, got %d", least, len(fields))
	}
	for i := 0; i < most && i < len(fields); i++ {
		v, err := strconv.ParseFloat(fields[i], 32)
		if err != nil {
			return out, err
		}
		out[i] = float32(v)
	}
	return out, nil
}
