package scene

import (
	"bufio"
	"fmt"
	"io"
)

// ExportOBJ writes every active, meshed chunk as a Wavefront OBJ object.
// Texture coordinates carry the biome percent in u and the elevation in v.
func (s *Scene) ExportOBJ(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "# midgard-planet chunk export")

	offset := 1
	for _, c := range s.ActiveChunks() {
		mesh := c.Mesh()
		if mesh == nil {
			continue
		}
		fmt.Fprintf(bw, "o %s\n", c.Name())
		if m := c.Material(); m != "" {
			fmt.Fprintf(bw, "usemtl %s\n", m)
		}
		for _, v := range mesh.Vertices {
			fmt.Fprintf(bw, "v %g %g %g\n", v.X, v.Y, v.Z)
		}
		for _, uv := range mesh.UV {
			fmt.Fprintf(bw, "vt %g %g\n", uv.X, uv.Y)
		}
		for _, n := range mesh.Normals {
			fmt.Fprintf(bw, "vn %g %g %g\n", n.X, n.Y, n.Z)
		}
		for i := 0; i+2 < len(mesh.Triangles); i += 3 {
			a := int(mesh.Triangles[i]) + offset
			b := int(mesh.Triangles[i+1]) + offset
			d := int(mesh.Triangles[i+2]) + offset
			fmt.Fprintf(bw, "f %d/%d/%d %d/%d/%d %d/%d/%d\n", a, a, a, b, b, b, d, d, d)
		}
		offset += len(mesh.Vertices)
	}
	return bw.Flush()
}
