// modelinfo prints mesh, material and bounds statistics of a scene file
// without creating a graphics context.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/Faultbox/modelkit/internal/engine/importer"
	"github.com/Faultbox/modelkit/internal/engine/model"
	"github.com/Faultbox/modelkit/pkg/encoding"
)

func main() {
	var (
		raw       = flag.Bool("raw", false, "Skip post-processing except triangulation")
		normalize = flag.Bool("normalize", false, "Scale the scene into the unit cube")
		charset   = flag.String("encoding", "", "Charset of texture paths in material libraries")
	)
	flag.Usage = printUsage
	flag.Parse()

	if flag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}

	enc, err := encoding.Lookup(*charset)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	flags := importer.DefaultFlags
	if *raw {
		flags = importer.Triangulate
	}
	if *normalize {
		flags |= importer.NormalizeScale
	}
	im := importer.New(
		importer.WithFlags(flags),
		importer.WithBackend(importer.NewOBJ(importer.OBJOptions{PathEncoding: enc})),
	)

	status := 0
	for _, path := range flag.Args() {
		if err := describe(os.Stdout, im, path); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s: %v\n", path, err)
			status = 1
		}
	}
	os.Exit(status)
}

func printUsage() {
	fmt.Println(`modelinfo - scene file statistics

Usage:
  modelinfo [options] <scene> [scene...]

Options:
  -raw               Skip post-processing except triangulation
  -normalize         Scale the scene into the unit cube
  -encoding <name>   Charset of texture paths (euc-kr, cp1252, sjis, gbk)

Examples:
  modelinfo teapot.obj
  modelinfo -encoding euc-kr data/model/house.obj
  modelinfo scene.glb`)
}

func describe(w io.Writer, im *importer.Importer, path string) error {
	scene, err := im.Import(path)
	if err != nil {
		return err
	}
	bounds, err := model.ComputeBounds(scene.Meshes)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "%s\n", scene.Path)
	fmt.Fprintf(w, "  Flags:     %s\n", im.Flags())
	fmt.Fprintf(w, "  Meshes:    %d\n", len(scene.Meshes))
	fmt.Fprintf(w, "  Materials: %d\n", len(scene.Materials))
	fmt.Fprintf(w, "  Embedded:  %d\n", len(scene.Textures))
	fmt.Fprintf(w, "  Vertices:  %d\n", scene.VertexCount())
	fmt.Fprintf(w, "  Faces:     %d\n", scene.FaceCount())
	size := bounds.Size()
	fmt.Fprintf(w, "  Bounds:    min %.3f max %.3f size %.3f\n", bounds.Min, bounds.Max, size)
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "  MESH\tVERTICES\tFACES\tUVS\tMATERIAL")
	for i := range scene.Meshes {
		m := &scene.Meshes[i]
		mat := "-"
		if m.MaterialIndex != importer.NoMaterial {
			mat = scene.Materials[m.MaterialIndex].Name
		}
		fmt.Fprintf(tw, "  %s\t%d\t%d\t%t\t%s\n", m.Name, len(m.Positions), len(m.Faces), m.HasUVs(), mat)
	}
	tw.Flush()

	if len(scene.Materials) == 0 {
		return nil
	}
	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "  MATERIAL\tSLOT\tTEXTURE")
	for i := range scene.Materials {
		mat := &scene.Materials[i]
		rows := 0
		for slot := importer.TextureType(0); slot < importer.NumTextureTypes; slot++ {
			for j := 0; j < mat.TextureCount(slot); j++ {
				fmt.Fprintf(tw, "  %s\t%s\t%s\n", mat.Name, slot, mat.TexturePath(slot, j))
				rows++
			}
		}
		if rows == 0 {
			fmt.Fprintf(tw, "  %s\t-\t%s\n", mat.Name, colorSummary(mat))
		}
	}
	return tw.Flush()
}

func colorSummary(mat *importer.Material) string {
	keys := make([]string, 0, len(mat.Colors))
	for k := range mat.Colors {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	s := ""
	for _, k := range keys {
		s += fmt.Sprintf("%s=%.2f ", k, mat.Colors[k])
	}
	return s
}
