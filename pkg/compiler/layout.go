package compiler

// Grid geometry for emitted nodes. Matches the canvas spacing the
// flowchart UI expects.
const (
	layoutOriginX  = 250
	layoutOriginY  = 300
	layoutSpacingX = 260
	layoutSpacingY = 180
	layoutPerRow   = 6
)

// PositionOf returns the canvas position of the node at nodeIndex. The
// position is a pure function of the index so recompiling the same step
// list yields identical positions. totalNodes is part of the contract
// for callers that lay out progressively; the grid does not depend on it.
func PositionOf(nodeIndex, totalNodes int) [2]int {
	_ = totalNodes

	row := nodeIndex / layoutPerRow
	col := nodeIndex % layoutPerRow

	return [2]int{
		layoutOriginX + col*layoutSpacingX,
		layoutOriginY + row*layoutSpacingY,
	}
}
