package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jwebster45206/papal-schism/pkg/state"
)

// ErrUnavailable is returned when the backing store cannot be reached.
var ErrUnavailable = errors.New("storage unavailable")

// Storage persists one game state document per save slot.
type Storage interface {
	// Health and lifecycle
	Ping(ctx context.Context) error
	Close() error

	// SaveGameState overwrites the slot with gs.
	SaveGameState(ctx context.Context, id uuid.UUID, gs *state.GameState) error
	// LoadGameState returns nil, nil when the slot is empty.
	LoadGameState(ctx context.Context, id uuid.UUID) (*state.GameState, error)
	// DeleteGameState empties the slot. Deleting an empty slot is not an error.
	DeleteGameState(ctx context.Context, id uuid.UUID) error
}
