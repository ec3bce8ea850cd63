package model

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/modelkit/internal/engine/gpu"
	"github.com/Faultbox/modelkit/internal/engine/gpu/gputest"
	"github.com/Faultbox/modelkit/internal/engine/importer"
	"github.com/Faultbox/modelkit/internal/engine/texture"
)

const testVS = `#version 410 core
layout(location = 0) in vec3 aPosition;
uniform mat4 uMVP;
void main() {
    gl_Position = uMVP * vec4(aPosition, 1.0);
}
`

const testFS = `#version 410 core
out vec4 fragColor;
uniform vec3 uDiffuse;
void main() {
    fragColor = vec4(uDiffuse, 1.0);
}
`

const cubeOBJ = `# unit cube
v -1 -1 -1
v  1 -1 -1
v  1  1 -1
v -1  1 -1
v -1 -1  1
v  1 -1  1
v  1  1  1
v -1  1  1
f 1 2 3 4
f 5 8 7 6
f 1 5 6 2
f 2 6 7 3
f 3 7 8 4
f 5 1 4 8
`

const quadOBJ = `mtllib quad.mtl
v -1 -1 0
v  1 -1 0
v  1  1 0
v -1  1 0
vt 0 0
vt 1 0
vt 1 1
vt 0 1
vn 0 0 1
usemtl paint
f 1/1/1 2/2/1 3/3/1 4/4/1
`

const quadMTL = `newmtl paint
Kd 0.8 0.2 0.1
Ka 0.1 0.1 0.1
Ns 16
map_Kd wood.png
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func writePNG(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 16), G: uint8(y * 16), B: 200, A: 255})
		}
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", name, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode %s: %v", name, err)
	}
	return path
}

// testOptions writes the shader pair into dir.
func testOptions(t *testing.T, dir string) Options {
	t.Helper()
	return Options{
		VertexShader:   writeFile(t, dir, "main.vs", testVS),
		FragmentShader: writeFile(t, dir, "main.fs", testFS),
	}
}

// quadScene writes the textured quad with its library and texture.
func quadScene(t *testing.T) (string, Options) {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "quad.mtl", quadMTL)
	writePNG(t, dir, "wood.png", 8, 8)
	return writeFile(t, dir, "quad.obj", quadOBJ), testOptions(t, dir)
}

func approx(a, b float32) bool {
	return math.Abs(float64(a-b)) < 1e-5
}

func TestLoadModelCube(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "cube.obj", cubeOBJ)
	ctx := gputest.New()

	m, err := LoadModel(ctx, path, testOptions(t, dir))
	if err != nil {
		t.Fatalf("LoadModel: %v", err)
	}
	defer m.Destroy()

	if m.State() != StateReady {
		t.Errorf("state = %s, want ready", m.State())
	}
	if m.Path() != path {
		t.Errorf("path = %q, want %q", m.Path(), path)
	}
	if len(m.Meshes()) != 1 {
		t.Fatalf("meshes = %d, want 1", len(m.Meshes()))
	}
	mesh := m.Meshes()[0]
	if mesh.IndexCount() != 36 {
		t.Errorf("index count = %d, want 36", mesh.IndexCount())
	}
	if mesh.Textured() {
		t.Error("cube without texture coordinates reported as textured")
	}
	if mesh.MaterialIndex() != importer.NoMaterial {
		t.Errorf("material index = %d, want NoMaterial", mesh.MaterialIndex())
	}
	if got := m.MaterialFor(mesh).Diffuse; got != (mgl32.Vec3{1, 1, 1}) {
		t.Errorf("default diffuse = %v, want white", got)
	}

	b := m.Bounds()
	if !b.Center().ApproxEqual(mgl32.Vec3{}) {
		t.Errorf("center = %v, want origin", b.Center())
	}
	if !b.Size().ApproxEqual(mgl32.Vec3{2, 2, 2}) {
		t.Errorf("size = %v, want (2,2,2)", b.Size())
	}

	// program + vbo + ibo + vao
	if got := ctx.LiveTotal(); got != 4 {
		t.Errorf("live objects = %d, want 4", got)
	}
	if got := ctx.Live(gpu.KindShader); got != 0 {
		t.Errorf("live shaders after link = %d, want 0", got)
	}
}

func TestVertexRecordsMatchScene(t *testing.T) {
	path, opts := quadScene(t)
	ctx := gputest.New()
	loader := NewLoader(ctx, opts)

	scene, err := loader.Import(path)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	m, err := loader.Build(scene)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer m.Destroy()

	src := scene.Meshes[0]
	mesh := m.Meshes()[0]
	if !mesh.Textured() {
		t.Fatal("quad with texture coordinates not reported as textured")
	}
	if mesh.VertexCount() != len(src.Positions) {
		t.Fatalf("vertex count = %d, want %d", mesh.VertexCount(), len(src.Positions))
	}

	data := ctx.BufferData(mesh.VertexBuffer().ID())
	if len(data) != len(src.Positions)*VertexStride {
		t.Fatalf("vertex buffer = %d bytes, want %d", len(data), len(src.Positions)*VertexStride)
	}
	for i := range src.Positions {
		v := ReadVertex(data[i*VertexStride:])
		for k := 0; k < 3; k++ {
			if !approx(v.Position[k], src.Positions[i][k]) || !approx(v.Normal[k], src.Normals[i][k]) {
				t.Errorf("vertex %d = %+v, want position %v normal %v", i, v, src.Positions[i], src.Normals[i])
			}
		}
		for k := 0; k < 2; k++ {
			if !approx(v.TexCoord[k], src.UVs[i][k]) {
				t.Errorf("vertex %d uv = %v, want %v", i, v.TexCoord, src.UVs[i])
			}
		}
	}

	indices := ctx.BufferData(mesh.IndexBuffer().ID())
	if len(indices) != int(mesh.IndexCount())*4 {
		t.Errorf("index buffer = %d bytes, want %d", len(indices), mesh.IndexCount()*4)
	}
}

func TestVertexPutRead(t *testing.T) {
	v := Vertex{
		Position: [3]float32{1.5, -2, 3.25},
		Normal:   [3]float32{0, 1, 0},
		TexCoord: [2]float32{0.25, 0.75},
	}
	buf := make([]byte, VertexStride)
	v.Put(buf)
	if got := ReadVertex(buf); got != v {
		t.Errorf("ReadVertex = %+v, want %+v", got, v)
	}
}

func TestLoadModelMissingFile(t *testing.T) {
	dir := t.TempDir()
	ctx := gputest.New()

	_, err := LoadModel(ctx, filepath.Join(dir, "nope.obj"), testOptions(t, dir))
	if !errors.Is(err, importer.ErrFileNotFound) {
		t.Fatalf("err = %v, want ErrFileNotFound", err)
	}
	for _, k := range []gpu.Kind{gpu.KindBuffer, gpu.KindVertexArray, gpu.KindShader, gpu.KindProgram, gpu.KindTexture} {
		if n := ctx.Created(k); n != 0 {
			t.Errorf("created %d %s objects, want 0", n, k)
		}
	}
}

func TestLoadModelEmptyScene(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "empty.obj", "# nothing here\n")
	ctx := gputest.New()

	_, err := LoadModel(ctx, path, testOptions(t, dir))
	if !errors.Is(err, importer.ErrEmptyScene) {
		t.Fatalf("err = %v, want ErrEmptyScene", err)
	}
	if ctx.LiveTotal() != 0 {
		t.Errorf("live objects = %d, want 0", ctx.LiveTotal())
	}
}

func TestLoadModelShaderMissing(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "cube.obj", cubeOBJ)
	ctx := gputest.New()

	opts := testOptions(t, dir)
	opts.FragmentShader = filepath.Join(dir, "missing.fs")
	if _, err := LoadModel(ctx, path, opts); err == nil {
		t.Fatal("expected error for missing fragment shader")
	}
	if ctx.LiveTotal() != 0 {
		t.Errorf("live objects = %d, want 0", ctx.LiveTotal())
	}
}

func triangle() importer.Mesh {
	return importer.Mesh{
		Name:          "tri",
		Positions:     [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
		Faces:         [][]uint32{{0, 1, 2}},
		MaterialIndex: importer.NoMaterial,
	}
}

func TestGeometryBuilderRejectsPolygons(t *testing.T) {
	ctx := gputest.New()
	src := triangle()
	src.Positions = append(src.Positions, [3]float32{1, 1, 0})
	src.Faces = [][]uint32{{0, 1, 3, 2}}

	_, err := NewGeometryBuilder(ctx).Build(&src)
	if !errors.Is(err, ErrUnsupportedTopology) {
		t.Fatalf("err = %v, want ErrUnsupportedTopology", err)
	}
	if ctx.LiveTotal() != 0 {
		t.Errorf("live objects = %d, want 0", ctx.LiveTotal())
	}
}

func TestGeometryBuilderIndexOutOfRange(t *testing.T) {
	ctx := gputest.New()
	src := triangle()
	src.Faces = [][]uint32{{0, 1, 3}}

	_, err := NewGeometryBuilder(ctx).Build(&src)
	if !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("err = %v, want ErrIndexOutOfRange", err)
	}
	if ctx.LiveTotal() != 0 {
		t.Errorf("live objects = %d, want 0", ctx.LiveTotal())
	}
}

func TestGeometryBuilderAttributes(t *testing.T) {
	ctx := gputest.New()
	src := triangle()

	mesh, err := NewGeometryBuilder(ctx).Build(&src)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer mesh.Release()

	if len(ctx.Attribs) != 3 {
		t.Fatalf("attribs = %d, want 3", len(ctx.Attribs))
	}
	want := []struct {
		index      uint32
		components int32
		offset     int
	}{
		{AttribPosition, 3, PositionOffset},
		{AttribNormal, 3, NormalOffset},
		{AttribTexCoord, 2, TexCoordOffset},
	}
	for i, w := range want {
		a := ctx.Attribs[i]
		if a.Index != w.index || a.Components != w.components || a.Offset != w.offset || a.Stride != VertexStride {
			t.Errorf("attrib %d = %+v, want %+v", i, a, w)
		}
		if a.VertexArray != mesh.VertexArray().ID() || a.Buffer != mesh.VertexBuffer().ID() {
			t.Errorf("attrib %d recorded on vao %d buffer %d", i, a.VertexArray, a.Buffer)
		}
	}
	if b := ctx.Bound(); len(b) != 0 {
		t.Errorf("bindings left after build: %v", b)
	}

	mesh.Release()
	mesh.Release()
	if ctx.LiveTotal() != 0 {
		t.Errorf("live objects after release = %d, want 0", ctx.LiveTotal())
	}
}

func TestGeometryBuilderFailures(t *testing.T) {
	tests := []struct {
		op   gputest.Op
		nth  int
		want error
	}{
		{gputest.OpCreateBuffer, 1, gpu.ErrResourceCreation},
		{gputest.OpCreateBuffer, 2, gpu.ErrResourceCreation},
		{gputest.OpCreateVertexArray, 1, gpu.ErrResourceCreation},
		{gputest.OpMapBuffer, 1, gpu.ErrResourceMap},
		{gputest.OpMapBuffer, 2, gpu.ErrResourceMap},
		{gputest.OpUnmapBuffer, 1, gpu.ErrResourceMap},
		{gputest.OpUnmapBuffer, 2, gpu.ErrResourceMap},
	}
	for _, tt := range tests {
		t.Run(string(tt.op), func(t *testing.T) {
			ctx := gputest.New()
			ctx.FailOn(tt.op, tt.nth)
			src := triangle()

			_, err := NewGeometryBuilder(ctx).Build(&src)
			if !errors.Is(err, tt.want) {
				t.Fatalf("%s #%d: err = %v, want %v", tt.op, tt.nth, err, tt.want)
			}
			if n := ctx.Live(gpu.KindBuffer); n != 0 {
				t.Errorf("%s #%d: %d buffers leaked", tt.op, tt.nth, n)
			}
			if n := ctx.LiveTotal(); n != 0 {
				t.Errorf("%s #%d: %d objects leaked", tt.op, tt.nth, n)
			}
		})
	}
}

func TestComputeBounds(t *testing.T) {
	meshes := []importer.Mesh{
		{Positions: [][3]float32{{-1, 0, 2}, {3, -4, 0}}},
		{Positions: [][3]float32{{0, 5, -2}}},
	}
	b, err := ComputeBounds(meshes)
	if err != nil {
		t.Fatalf("ComputeBounds: %v", err)
	}
	if b.Min != (mgl32.Vec3{-1, -4, -2}) || b.Max != (mgl32.Vec3{3, 5, 2}) {
		t.Errorf("bounds = %+v", b)
	}
	if !b.Center().ApproxEqual(mgl32.Vec3{1, 0.5, 0}) {
		t.Errorf("center = %v", b.Center())
	}
	if !approx(b.Radius(), mgl32.Vec3{4, 9, 4}.Len()/2) {
		t.Errorf("radius = %v", b.Radius())
	}

	single, err := ComputeBounds([]importer.Mesh{{Positions: [][3]float32{{1, 2, 3}}}})
	if err != nil {
		t.Fatalf("ComputeBounds: %v", err)
	}
	if single.Size() != (mgl32.Vec3{}) {
		t.Errorf("single point size = %v, want zero", single.Size())
	}
}

func TestComputeBoundsDegenerate(t *testing.T) {
	for _, meshes := range [][]importer.Mesh{nil, {{Name: "empty"}}} {
		if _, err := ComputeBounds(meshes); !errors.Is(err, ErrDegenerateGeometry) {
			t.Errorf("ComputeBounds(%d meshes) err = %v, want ErrDegenerateGeometry", len(meshes), err)
		}
	}
}

func TestBuildDegenerateScene(t *testing.T) {
	dir := t.TempDir()
	ctx := gputest.New()
	scene := &importer.Scene{
		Path:   "nothing.obj",
		Dir:    dir,
		Meshes: []importer.Mesh{{Name: "empty", MaterialIndex: importer.NoMaterial}},
	}
	_, err := NewLoader(ctx, testOptions(t, dir)).Build(scene)
	if !errors.Is(err, ErrDegenerateGeometry) {
		t.Fatalf("err = %v, want ErrDegenerateGeometry", err)
	}
	if ctx.LiveTotal() != 0 {
		t.Errorf("live objects = %d, want 0", ctx.LiveTotal())
	}
}

func TestBuildBadMaterialIndex(t *testing.T) {
	dir := t.TempDir()
	ctx := gputest.New()
	mesh := triangle()
	mesh.MaterialIndex = 2
	scene := &importer.Scene{Path: "bad.obj", Dir: dir, Meshes: []importer.Mesh{mesh}}

	_, err := NewLoader(ctx, testOptions(t, dir)).Build(scene)
	if !errors.Is(err, importer.ErrParse) {
		t.Fatalf("err = %v, want ErrParse", err)
	}
	if ctx.Created(gpu.KindProgram) != 0 {
		t.Error("program created for an invalid scene")
	}
}

func TestMaterialLoader(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, dir, "a.png", 4, 4)
	writePNG(t, dir, "b.png", 2, 2)
	ctx := gputest.New()

	src := importer.NewMaterial("mix")
	src.Colors[importer.ColorDiffuse] = [3]float32{0.5, 0.25, 1}
	src.Scalars[importer.PropShininess] = 32
	src.Textures[importer.TextureDiffuse] = []string{"a.png", "b.png"}
	src.Textures[importer.TextureEmissive] = []string{filepath.Join(dir, "b.png")}

	textures := texture.NewLoader(ctx, texture.Options{})
	m, err := NewMaterialLoader(textures, nil).Load(&src, dir, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	defer m.Release()

	if m.Diffuse != (mgl32.Vec3{0.5, 0.25, 1}) {
		t.Errorf("diffuse = %v", m.Diffuse)
	}
	if m.Ambient != (mgl32.Vec3{}) {
		t.Errorf("absent ambient = %v, want black", m.Ambient)
	}
	if m.Shininess != 0 {
		t.Errorf("default shininess = %v, want 0", m.Shininess)
	}

	diffuse := m.Texture(SlotDiffuse)
	if diffuse == nil || diffuse.Path != filepath.Join(dir, "a.png") || diffuse.Width != 4 {
		t.Errorf("diffuse texture = %+v, want first path a.png", diffuse)
	}
	if m.Texture(SlotAmbient) != nil || m.Texture(SlotSpecular) != nil {
		t.Error("slots without textures are not nil")
	}
	if em := m.Texture(SlotEmissive); em == nil || em.Width != 2 {
		t.Errorf("absolute emissive path not loaded: %+v", em)
	}
	if got := ctx.Live(gpu.KindTexture); got != 2 {
		t.Errorf("live textures = %d, want 2", got)
	}

	withNs, err := NewMaterialLoader(textures, SpecularExponentShininess).Load(&src, dir, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	defer withNs.Release()
	if withNs.Shininess != 32 {
		t.Errorf("specular exponent shininess = %v, want 32", withNs.Shininess)
	}
}

func TestMaterialLoaderTextureFailure(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, dir, "ok.png", 2, 2)
	ctx := gputest.New()

	src := importer.NewMaterial("broken")
	src.Textures[importer.TextureDiffuse] = []string{"ok.png"}
	src.Textures[importer.TextureSpecular] = []string{"missing.png"}

	_, err := NewMaterialLoader(texture.NewLoader(ctx, texture.Options{}), nil).Load(&src, dir, nil)
	if !errors.Is(err, texture.ErrLoad) {
		t.Fatalf("err = %v, want ErrLoad", err)
	}
	if ctx.Created(gpu.KindTexture) != 1 || ctx.Live(gpu.KindTexture) != 0 {
		t.Errorf("created %d live %d textures, want 1 and 0",
			ctx.Created(gpu.KindTexture), ctx.Live(gpu.KindTexture))
	}
}

func TestMaterialLoaderEmbeddedTexture(t *testing.T) {
	dir := t.TempDir()
	data, err := os.ReadFile(writePNG(t, dir, "embedded.png", 4, 2))
	if err != nil {
		t.Fatal(err)
	}
	ctx := gputest.New()
	embedded := []importer.EmbeddedTexture{{Name: "baseColor", MimeType: "image/png", Data: data}}

	src := importer.NewMaterial("packed")
	src.Textures[importer.TextureDiffuse] = []string{importer.EmbeddedTexturePath(0)}
	ml := NewMaterialLoader(texture.NewLoader(ctx, texture.Options{}), nil)

	m, err := ml.Load(&src, t.TempDir(), embedded)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	defer m.Release()
	if tex := m.Texture(SlotDiffuse); tex == nil || tex.Width != 4 || tex.Path != "baseColor" {
		t.Errorf("embedded diffuse texture = %+v", tex)
	}

	src.Textures[importer.TextureEmissive] = []string{importer.EmbeddedTexturePath(3)}
	if _, err := ml.Load(&src, dir, embedded); !errors.Is(err, texture.ErrLoad) {
		t.Fatalf("err = %v, want ErrLoad", err)
	}
	if got := ctx.Live(gpu.KindTexture); got != 1 {
		t.Errorf("live textures = %d, want only the first material's", got)
	}
}

func TestLoadModelTextureFailureReleasesEverything(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "quad.mtl", quadMTL)
	path := writeFile(t, dir, "quad.obj", quadOBJ)
	ctx := gputest.New()

	_, err := LoadModel(ctx, path, testOptions(t, dir))
	if !errors.Is(err, texture.ErrLoad) {
		t.Fatalf("err = %v, want ErrLoad", err)
	}
	if ctx.Created(gpu.KindBuffer) == 0 {
		t.Fatal("geometry was never built")
	}
	if ctx.LiveTotal() != 0 {
		t.Errorf("live objects = %d, want 0", ctx.LiveTotal())
	}
}

func TestLoadModelFailureInjection(t *testing.T) {
	ops := []gputest.Op{
		gputest.OpCreateBuffer,
		gputest.OpCreateVertexArray,
		gputest.OpCreateShader,
		gputest.OpCreateProgram,
		gputest.OpCreateTexture,
		gputest.OpMapBuffer,
		gputest.OpUnmapBuffer,
		gputest.OpLinkProgram,
	}
	path, opts := quadScene(t)

	for _, op := range ops {
		for nth := 1; nth <= 3; nth++ {
			ctx := gputest.New()
			ctx.FailOn(op, nth)

			m, err := LoadModel(ctx, path, opts)
			if err == nil {
				if nth == 1 {
					t.Errorf("%s #1: load succeeded despite failure", op)
				}
				m.Destroy()
			}
			if n := ctx.LiveTotal(); n != 0 {
				t.Errorf("%s #%d: %d objects leaked (err %v)", op, nth, n, err)
			}
		}
	}
}

func TestRender(t *testing.T) {
	path, opts := quadScene(t)
	opts.Shininess = SpecularExponentShininess
	ctx := gputest.New()

	m, err := LoadModel(ctx, path, opts)
	if err != nil {
		t.Fatalf("LoadModel: %v", err)
	}
	defer m.Destroy()

	mvp := mgl32.Perspective(mgl32.DegToRad(45), 1, 0.1, 100).Mul4(mgl32.Translate3D(0, 0, -5))
	if err := m.Render(mvp); err != nil {
		t.Fatalf("Render: %v", err)
	}

	if len(ctx.Draws) != 1 {
		t.Fatalf("draws = %d, want 1", len(ctx.Draws))
	}
	d := ctx.Draws[0]
	mesh := m.Meshes()[0]
	if d.Mode != gpu.Triangles || d.Count != 6 {
		t.Errorf("draw = %+v, want 6 triangle indices", d)
	}
	if d.Program != m.Program().ID() || d.VertexArray != mesh.VertexArray().ID() {
		t.Errorf("draw bound program %d vao %d", d.Program, d.VertexArray)
	}
	diffuse := m.Materials()[0].Texture(SlotDiffuse)
	if d.Textures[uint32(SlotDiffuse)] != diffuse.ID() || len(d.Textures) != 1 {
		t.Errorf("draw textures = %v, want unit 0 = %d", d.Textures, diffuse.ID())
	}

	checks := map[string]any{
		UniformMVP:            [16]float32(mvp),
		UniformDiffuse:        [3]float32{0.8, 0.2, 0.1},
		UniformAmbient:        [3]float32{0.1, 0.1, 0.1},
		UniformShininess:      float32(16),
		"uHasDiffuseTexture":  int32(1),
		"uHasSpecularTexture": int32(0),
		"uDiffuseTexture":     int32(SlotDiffuse),
		"uEmissiveTexture":    int32(SlotEmissive),
	}
	for name, want := range checks {
		if got := ctx.Uniforms[name]; got != want {
			t.Errorf("uniform %s = %v, want %v", name, got, want)
		}
	}

	if b := ctx.Bound(); len(b) != 0 {
		t.Errorf("bindings left after render: %v", b)
	}
}

func TestRenderUntexturedMeshIgnoresTextures(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, dir, "wood.png", 2, 2)
	writeFile(t, dir, "quad.mtl", quadMTL)
	path := writeFile(t, dir, "flat.obj", `mtllib quad.mtl
v 0 0 0
v 1 0 0
v 0 1 0
usemtl paint
f 1 2 3
`)
	ctx := gputest.New()

	m, err := LoadModel(ctx, path, testOptions(t, dir))
	if err != nil {
		t.Fatalf("LoadModel: %v", err)
	}
	defer m.Destroy()

	if err := m.Render(mgl32.Ident4()); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got := ctx.Uniforms["uHasDiffuseTexture"]; got != int32(0) {
		t.Errorf("uHasDiffuseTexture = %v, want 0 for a mesh without uvs", got)
	}
	if len(ctx.Draws) != 1 || len(ctx.Draws[0].Textures) != 0 {
		t.Errorf("draws = %+v, want one draw without textures", ctx.Draws)
	}
}

func TestModelsAreIndependent(t *testing.T) {
	path, opts := quadScene(t)
	ctx := gputest.New()
	loader := NewLoader(ctx, opts)

	a, err := loader.LoadModel(path)
	if err != nil {
		t.Fatalf("load a: %v", err)
	}
	b, err := loader.LoadModel(path)
	if err != nil {
		t.Fatalf("load b: %v", err)
	}
	defer b.Destroy()

	ids := func(m *Model) []uint32 {
		out := []uint32{m.Program().ID()}
		for _, mesh := range m.Meshes() {
			out = append(out, mesh.VertexBuffer().ID(), mesh.IndexBuffer().ID(), mesh.VertexArray().ID())
		}
		for _, mat := range m.Materials() {
			for _, tex := range mat.Textures {
				if tex != nil {
					out = append(out, tex.ID())
				}
			}
		}
		return out
	}
	seen := make(map[uint32]bool)
	for _, id := range ids(a) {
		seen[id] = true
	}
	bIDs := ids(b)
	for _, id := range bIDs {
		if seen[id] {
			t.Errorf("object %d shared between models", id)
		}
	}

	a.Destroy()
	for _, id := range bIDs {
		if !ctx.IsLive(id) {
			t.Errorf("object %d of b released with a", id)
		}
	}
	if err := b.Render(mgl32.Ident4()); err != nil {
		t.Errorf("render b after destroying a: %v", err)
	}
	if got := ctx.LiveTotal(); got != len(bIDs) {
		t.Errorf("live objects = %d, want %d", got, len(bIDs))
	}
}

func TestDestroy(t *testing.T) {
	path, opts := quadScene(t)
	ctx := gputest.New()

	m, err := LoadModel(ctx, path, opts)
	if err != nil {
		t.Fatalf("LoadModel: %v", err)
	}
	m.Destroy()
	m.Destroy()

	if m.State() != StateReleased {
		t.Errorf("state = %s, want released", m.State())
	}
	if ctx.LiveTotal() != 0 {
		t.Errorf("live objects = %d, want 0", ctx.LiveTotal())
	}
	if err := m.Render(mgl32.Ident4()); !errors.Is(err, ErrNotReady) {
		t.Errorf("Render after Destroy err = %v, want ErrNotReady", err)
	}
	if len(ctx.Draws) != 0 {
		t.Errorf("draws after destroy = %d", len(ctx.Draws))
	}
}

func TestStateString(t *testing.T) {
	for s, want := range map[State]string{
		StateBuilding: "building",
		StateReady:    "ready",
		StateReleased: "released",
		State(9):      "unknown",
	} {
		if s.String() != want {
			t.Errorf("State(%d) = %q, want %q", s, s.String(), want)
		}
	}
}
