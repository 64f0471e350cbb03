package planet

import (
	"fmt"
	"strings"

	"github.com/Faultbox/midgard-planet/internal/cubesphere"
)

// FaceMask selects which cube faces are built. The zero value selects all.
type FaceMask struct {
	single bool
	face   cubesphere.Face
}

// AllFaces selects every face.
var AllFaces = FaceMask{}

// OnlyFace selects a single face.
func OnlyFace(f cubesphere.Face) FaceMask {
	return FaceMask{single: true, face: f}
}

// ParseFaceMask accepts "all" or a face name.
func ParseFaceMask(s string) (FaceMask, error) {
	if s == "" || strings.EqualFold(s, "all") {
		return AllFaces, nil
	}
	f, err := cubesphere.ParseFace(s)
	if err != nil {
		return FaceMask{}, fmt.Errorf("face mask: %w", err)
	}
	return OnlyFace(f), nil
}

// Includes reports whether f is selected.
func (m FaceMask) Includes(f cubesphere.Face) bool {
	return !m.single || m.face == f
}

// Faces returns the selected faces in build order.
func (m FaceMask) Faces() []cubesphere.Face {
	var out []cubesphere.Face
	for _, f := range cubesphere.Faces {
		if m.Includes(f) {
			out = append(out, f)
		}
	}
	return out
}

func (m FaceMask) String() string {
	if !m.single {
		return "all"
	}
	return m.face.String()
}
