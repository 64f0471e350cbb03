package cubesphere

import "fmt"

// Size limits for a face. Coordinates double per level in uint32, so with
// MaxChunkPerFaceLine roots a face stays addressable down to level 23.
const (
	MaxResolution       = 255
	MaxChunkPerFaceLine = 255
)

// Coord addresses a chunk on a face: its detail level and grid position.
// At level L a face is split into chunkPerFaceLine<<L chunks per side.
type Coord struct {
	Level uint32
	X     uint32
	Y     uint32
}

// Children returns the four coords covering c at the next level, in the order
// (2x,2y), (2x+1,2y), (2x,2y+1), (2x+1,2y+1).
func (c Coord) Children() [4]Coord {
	l := c.Level + 1
	x, y := c.X*2, c.Y*2
	return [4]Coord{
		{Level: l, X: x, Y: y},
		{Level: l, X: x + 1, Y: y},
		{Level: l, X: x, Y: y + 1},
		{Level: l, X: x + 1, Y: y + 1},
	}
}

// ChunksPerLine returns how many chunks span one face side at level.
func ChunksPerLine(chunkPerFaceLine int, level uint32) int {
	return chunkPerFaceLine << level
}

// InRange reports whether c is a valid chunk for the given root line count.
func (c Coord) InRange(chunkPerFaceLine int) bool {
	n := uint64(ChunksPerLine(chunkPerFaceLine, c.Level))
	return uint64(c.X) < n && uint64(c.Y) < n
}

func (c Coord) String() string {
	return fmt.Sprintf("[%d,%d LOD:%d]", c.X, c.Y, c.Level)
}
