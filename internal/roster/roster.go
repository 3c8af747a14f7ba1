// Package roster supplies combatants and move details to the battle core.
package roster

import (
	"context"
	"errors"

	"github.com/DoyleJ11/poke-battle-backend/internal/engine"
)

var ErrNotFound = errors.New("roster: not found")

// Provider is the external combatant/move data source.
type Provider interface {
	// FetchOptions returns count combatants with distinct ids.
	FetchOptions(ctx context.Context, count int) ([]engine.Combatant, error)
	// FetchMoveDetail resolves a move lookup key. Callers fall back on error.
	FetchMoveDetail(ctx context.Context, key string) (engine.MoveDetail, error)
}
