package service

import (
	"context"
	"time"

	"github.com/avvvet/bluff-services/internal/gamesvc/models"
	"github.com/avvvet/bluff-services/internal/gamesvc/store"
	"github.com/avvvet/bluff-services/internal/hands"
	"github.com/avvvet/bluff-services/internal/table"
)

// GameRepository loads a game and persists the mutations of one action.
// Apply calls publish after the writes and before they become visible; a
// publish error discards the writes.
type GameRepository interface {
	LoadGame(ctx context.Context, id int64) (table.Game, error)
	Apply(ctx context.Context, gameID, version int64, muts []table.Mutation, publish func() error) error
}

// GameReader answers the derived-state queries. Every call is a fresh read.
type GameReader interface {
	LoadHeader(ctx context.Context, id int64) (table.Game, error)
	CountSeated(ctx context.Context, gameID int64) (int, error)
	ListSeated(ctx context.Context, gameID int64) ([]table.Seat, error)
	CountUndealt(ctx context.Context, gameID int64) (int, error)
	CountHand(ctx context.Context, gameID, playerID int64) (int, error)
	ListHand(ctx context.Context, gameID, playerID int64) ([]hands.Card, error)
}

type WaitingLister interface {
	WaitingGames(ctx context.Context, minSeats int, idle time.Duration) ([]store.WaitingGame, error)
}

type UserRepository interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
	CreateUser(ctx context.Context, user models.User) (int64, error)
}

type MessageRepository interface {
	Append(ctx context.Context, m models.Message) error
	Recent(ctx context.Context, gameID int64, limit int) ([]models.Message, error)
}

// Broadcaster fans an event out to every socket in the game's room.
type Broadcaster interface {
	Broadcast(e table.Event) error
}
