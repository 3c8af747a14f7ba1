package types

import (
	"github.com/DoyleJ11/poke-battle-backend/internal/engine"
	wire "github.com/DoyleJ11/poke-battle-backend/pkg/types"
)

type ClientMessage struct {
	Type      string            `json:"type"`
	Name      string            `json:"name,omitempty"`
	Action    string            `json:"action,omitempty"`
	PokemonID int               `json:"pokemonId,omitempty"`
	Pokemon   *engine.Combatant `json:"pokemon,omitempty"`
	MoveIndex int               `json:"moveIndex"`
}

// ChosenID accepts either the bare id or a full combatant echoed back.
func (m ClientMessage) ChosenID() int {
	if m.PokemonID != 0 {
		return m.PokemonID
	}
	if m.Pokemon != nil {
		return m.Pokemon.ID
	}
	return 0
}

type ServerMessage struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

type MatchStatus struct {
	Status   string `json:"status"`
	Opponent string `json:"opponent,omitempty"`
}

type SelectionOffer struct {
	Options []engine.Combatant `json:"options"`
	Message string             `json:"message"`
}

type BattleStart struct {
	RoomID          string           `json:"roomId"`
	YourPokemon     engine.Combatant `json:"yourPokemon"`
	OpponentPokemon engine.Combatant `json:"opponentPokemon"`
	CurrentTurn     bool             `json:"currentTurn"`
	OpponentName    string           `json:"opponentName"`
}

type ErrorPayload struct {
	Message     string `json:"message"`
	CurrentTurn string `json:"currentTurn,omitempty"`
}

func Notice(kind string) ServerMessage { return ServerMessage{Type: kind} }

func Error(msg string) ServerMessage {
	return ServerMessage{Type: wire.Error, Data: ErrorPayload{Message: msg}}
}

func Update(res engine.TurnResult) ServerMessage {
	return ServerMessage{Type: wire.GameUpdate, Data: res}
}
