package engine

import (
	"context"
	"errors"
	"fmt"
)

var ErrNotYourTurn = errors.New("not your turn")
var ErrInvalidMove = errors.New("invalid move selection")
var ErrNotInBattle = errors.New("not in a battle")

type Status string

const (
	StatusAwaitingMove Status = "awaiting_move"
	StatusFinished     Status = "finished"
)

type Player struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// MoveLookup resolves a move's lookup key into its attack details.
type MoveLookup func(ctx context.Context, key string) (MoveDetail, error)

// Battle is one match's mutable state. It is not safe for concurrent use;
// the owning room goroutine is its only writer.
type Battle struct {
	RoomID      string
	Players     [2]Player
	Combatants  [2]*Combatant
	CurrentTurn string
	Log         []string
	Status      Status
	Winner      string
	Turns       int

	lookup MoveLookup
	roller Roller
}

// TurnResult is the state broadcast to both participants after every move.
// Pokemon1 always belongs to Player1.
type TurnResult struct {
	RoomID      string    `json:"roomId"`
	Player1     string    `json:"player1"`
	Player2     string    `json:"player2"`
	Pokemon1    Combatant `json:"pokemon1"`
	Pokemon2    Combatant `json:"pokemon2"`
	CurrentTurn string    `json:"currentTurn"`
	BattleLog   []string  `json:"battleLog"`
	GameOver    bool      `json:"gameOver"`
	Winner      string    `json:"winner,omitempty"`
}

// ProcessMove is the single entry point that mutates a battle.
//
//	AwaitingMove(owner) -> resolve -> AwaitingMove(other) | Finished(owner)
//
// Rejected submissions leave hp, turn and log untouched.
func (b *Battle) ProcessMove(ctx context.Context, playerID string, moveIndex int) (TurnResult, error) {
	if b.Status == StatusFinished || b.side(playerID) < 0 {
		return TurnResult{}, ErrNotInBattle
	}
	if playerID != b.CurrentTurn {
		return TurnResult{}, ErrNotYourTurn
	}

	atkSide := b.side(playerID)
	defSide := 1 - atkSide
	attacker, defender := b.Combatants[atkSide], b.Combatants[defSide]
	if moveIndex < 0 || moveIndex >= len(attacker.Moves) {
		return TurnResult{}, ErrInvalidMove
	}

	detail := b.moveDetail(ctx, &attacker.Moves[moveIndex])
	// The room may have been torn down while the lookup was in flight.
	if err := ctx.Err(); err != nil {
		return TurnResult{}, err
	}

	b.Turns++
	atkName := DisplayName(attacker.Name)
	moveName := DisplayName(attacker.Moves[moveIndex].Name)
	defOwner := b.Players[defSide]

	if !Hits(RollAccuracy(b.roller), detail.Accuracy) {
		b.Log = append(b.Log, fmt.Sprintf("%s's %s missed!", atkName, moveName))
		b.CurrentTurn = defOwner.ID
		return b.result(), nil
	}

	hit := ResolveDamage(attacker, defender, detail, RollDamage(b.roller))
	b.Log = append(b.Log, fmt.Sprintf("%s used %s!", atkName, moveName))
	b.Log = append(b.Log, hit.Messages...)
	b.Log = append(b.Log, fmt.Sprintf("It dealt %d damage to %s.", hit.Damage, DisplayName(defender.Name)))
	defender.ApplyDamage(hit.Damage)

	if defender.Fainted() {
		b.Log = append(b.Log, fmt.Sprintf("%s fainted! %s wins the battle!",
			DisplayName(defender.Name), b.Players[atkSide].Name))
		b.Status = StatusFinished
		b.Winner = playerID
		return b.result(), nil
	}

	b.CurrentTurn = defOwner.ID
	b.Log = append(b.Log, fmt.Sprintf("Now it's %s's turn.", defOwner.Name))
	return b.result(), nil
}

// moveDetail returns the cached detail or performs one best-effort lookup.
// Failed lookups fall back and are not cached, so a later use may retry.
func (b *Battle) moveDetail(ctx context.Context, m *Move) MoveDetail {
	if m.Detail != nil {
		return *m.Detail
	}
	if b.lookup == nil {
		return FallbackMoveDetail
	}
	d, err := b.lookup(ctx, m.URL)
	if err != nil {
		return FallbackMoveDetail
	}
	d = d.Normalized()
	m.Detail = &d
	return d
}

func (b *Battle) side(playerID string) int {
	for i, p := range b.Players {
		if p.ID == playerID {
			return i
		}
	}
	return -1
}

// Opponent returns the other participant, or "" when playerID is not in the battle.
func (b *Battle) Opponent(playerID string) string {
	i := b.side(playerID)
	if i < 0 {
		return ""
	}
	return b.Players[1-i].ID
}

// Snapshot reports the current state without mutating anything.
func (b *Battle) Snapshot() TurnResult { return b.result() }

func (b *Battle) result() TurnResult {
	return TurnResult{
		RoomID:      b.RoomID,
		Player1:     b.Players[0].ID,
		Player2:     b.Players[1].ID,
		Pokemon1:    b.Combatants[0].Clone(),
		Pokemon2:    b.Combatants[1].Clone(),
		CurrentTurn: b.CurrentTurn,
		BattleLog:   append([]string(nil), b.Log...),
		GameOver:    b.Status == StatusFinished,
		Winner:      b.Winner,
	}
}
