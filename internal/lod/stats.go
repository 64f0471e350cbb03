package lod

import (
	gomath "math"

	"github.com/Faultbox/midgard-planet/pkg/math"
)

// Stats is a snapshot of a quadtree.
type Stats struct {
	Nodes      int
	Rendered   int
	Active     int
	Generating int
	Failed     int
	// RenderedByLevel counts rendered leaves per detail level.
	RenderedByLevel map[uint32]int
	DeepestLevel    uint32
}

// Add accumulates other into s.
func (s *Stats) Add(other Stats) {
	s.Nodes += other.Nodes
	s.Rendered += other.Rendered
	s.Active += other.Active
	s.Generating += other.Generating
	s.Failed += other.Failed
	if s.RenderedByLevel == nil {
		s.RenderedByLevel = make(map[uint32]int, len(other.RenderedByLevel))
	}
	for level, n := range other.RenderedByLevel {
		s.RenderedByLevel[level] += n
	}
	s.DeepestLevel = max(s.DeepestLevel, other.DeepestLevel)
}

// Walk visits nodes depth first, parents before children. Returning false
// from fn skips the node's subtree.
func (q *Quadtree) Walk(fn func(n *Node) bool) {
	for _, n := range q.roots {
		walk(n, fn)
	}
}

func walk(n *Node, fn func(n *Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.children {
		walk(c, fn)
	}
}

// Stats counts the tree's nodes by state.
func (q *Quadtree) Stats() Stats {
	s := Stats{RenderedByLevel: make(map[uint32]int)}
	q.Walk(func(n *Node) bool {
		s.Nodes++
		if n.active {
			s.Active++
		}
		if n.meshGenerating {
			s.Generating++
		}
		if n.failure != nil {
			s.Failed++
		}
		if n.rendered {
			s.Rendered++
			s.RenderedByLevel[n.spec.Coord.Level]++
			s.DeepestLevel = max(s.DeepestLevel, n.spec.Coord.Level)
		}
		return true
	})
	return s
}

// Settled reports whether the tree has nothing left to do for the current
// viewer: every rendered leaf is meshed (or failed) with biome UVs, and no
// transitional parent is still visible.
func (q *Quadtree) Settled() bool {
	settled := true
	q.Walk(func(n *Node) bool {
		switch {
		case n.rendered:
			if n.failure == nil && (!n.meshGenerated || !n.uvGenerated) {
				settled = false
			}
		case n.active:
			settled = false
		}
		return settled
	})
	return settled
}

// NearestRenderedLevel returns the level of the rendered leaf whose surface
// center is closest to p. ok is false when nothing is rendered.
func (q *Quadtree) NearestRenderedLevel(p math.Vec3) (level uint32, ok bool) {
	best := float32(gomath.MaxFloat32)
	q.Walk(func(n *Node) bool {
		if n.rendered {
			if d := p.Distance(q.worldCenter(n)); d < best {
				best, level, ok = d, n.spec.Coord.Level, true
			}
		}
		return true
	})
	return level, ok
}
