package engine

// FirstTurn returns the index (0 or 1) of the side that opens the battle.
// Higher speed goes first; ties go to player one.
func FirstTurn(p1, p2 Stats) int {
	if p1.Speed >= p2.Speed {
		return 0
	}
	return 1
}
