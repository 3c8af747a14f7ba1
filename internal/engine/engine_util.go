package engine

import "fmt"

// Deps are the collaborators a battle consults while resolving turns.
type Deps struct {
	Lookup MoveLookup
	Roller Roller // nil seeds from the clock
}

// NewBattle snapshots both combatants and decides who moves first.
func NewBattle(roomID string, p1, p2 Player, c1, c2 Combatant, deps Deps) *Battle {
	first, second := c1.Clone(), c2.Clone()
	first.prepare()
	second.prepare()

	roller := deps.Roller
	if roller == nil {
		roller = NewRoller(0)
	}

	b := &Battle{
		RoomID:     roomID,
		Players:    [2]Player{p1, p2},
		Combatants: [2]*Combatant{&first, &second},
		Status:     StatusAwaitingMove,
		lookup:     deps.Lookup,
		roller:     roller,
	}
	opener := b.Players[FirstTurn(first.OriginalStats, second.OriginalStats)]
	b.CurrentTurn = opener.ID
	b.Log = []string{fmt.Sprintf("%s's %s vs %s's %s! %s moves first.",
		p1.Name, DisplayName(first.Name), p2.Name, DisplayName(second.Name), opener.Name)}
	return b
}
