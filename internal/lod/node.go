package lod

import (
	"github.com/Faultbox/midgard-planet/internal/cubesphere"
	"github.com/Faultbox/midgard-planet/pkg/math"
)

// Node is one chunk of a face quadtree. Nodes are created on first need and
// live as long as their tree; collapsing only hides them, so re-expanding is
// free once meshes exist.
type Node struct {
	spec     cubesphere.ChunkSpec
	children []*Node

	resource MeshResource
	active   bool

	rendered       bool
	meshGenerating bool
	meshGenerated  bool
	uvGenerated    bool

	build      *Build
	pending    *Result
	generation uint64
	attempts   int
	failure    error
	mesh       *cubesphere.MeshData

	center      math.Vec3
	centerKnown bool
}

func newNode(spec cubesphere.ChunkSpec) *Node {
	return &Node{spec: spec}
}

// Coord returns the chunk coordinate.
func (n *Node) Coord() cubesphere.Coord { return n.spec.Coord }

// Rendered reports whether the LOD policy picked this node as a leaf.
func (n *Node) Rendered() bool { return n.rendered }

// Active reports whether the node's render resource is visible.
func (n *Node) Active() bool { return n.active }

// MeshGenerated reports whether a mesh has been applied.
func (n *Node) MeshGenerated() bool { return n.meshGenerated }

// MeshGenerating reports whether a build is outstanding or its result is
// waiting to be applied.
func (n *Node) MeshGenerating() bool { return n.meshGenerating }

// UVGenerated reports whether biome UVs have been written.
func (n *Node) UVGenerated() bool { return n.uvGenerated }

// Generation returns the build generation. It increases every time the node
// abandons a build.
func (n *Node) Generation() uint64 { return n.generation }

// Failure returns the error that permanently failed the node's mesh, if any.
func (n *Node) Failure() error { return n.failure }

// Mesh returns the applied mesh, or nil.
func (n *Node) Mesh() *cubesphere.MeshData { return n.mesh }

// Children returns the node's children; empty until first subdivision.
func (n *Node) Children() []*Node {
	return append([]*Node(nil), n.children...)
}

// takeResult returns a queued or finished build result, if any.
func (n *Node) takeResult() (Result, bool) {
	if n.pending != nil {
		r := *n.pending
		n.pending = nil
		return r, true
	}
	if n.build == nil {
		return Result{}, false
	}
	r, ok := n.build.TryDrain()
	if ok {
		n.build = nil
	}
	return r, ok
}
