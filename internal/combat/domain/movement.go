package domain

// GridPosition locates an entity on the encounter grid.
type GridPosition struct {
	EntityID string `json:"entityId"`
	Row      int    `json:"row"`
	Col      int    `json:"col"`
}

// minSquaresPerAP floors the derived movement rate so weak entities still move.
const minSquaresPerAP = 3

// ManhattanDistance is the grid distance between two cells.
func ManhattanDistance(fromRow, fromCol, toRow, toCol int) int {
	dRow := fromRow - toRow
	if dRow < 0 {
		dRow = -dRow
	}
	dCol := fromCol - toCol
	if dCol < 0 {
		dCol = -dCol
	}
	return dRow + dCol
}

// SquaresPerAP derives the movement rate from a physical attribute.
func SquaresPerAP(physicalAttribute int) int {
	return max(physicalAttribute, minSquaresPerAP)
}

// MovementAPCost is the AP charged for moving distance squares at the given
// rate. Zero distance is free.
func MovementAPCost(distance, squaresPerAP int) int {
	if distance <= 0 {
		return 0
	}
	if squaresPerAP < 1 {
		squaresPerAP = 1
	}
	return (distance + squaresPerAP - 1) / squaresPerAP
}
