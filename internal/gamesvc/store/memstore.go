package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/avvvet/bluff-services/internal/gamesvc/models"
	"github.com/avvvet/bluff-services/internal/hands"
	"github.com/avvvet/bluff-services/internal/table"
)

type memGame struct {
	game    table.Game
	touched time.Time
}

// MemoryStore keeps games, users and messages in process. It honours the
// same version check as GameStore and is used by tests and local runs
// without Postgres or Mongo.
type MemoryStore struct {
	mu       sync.RWMutex
	games    map[int64]memGame
	users    map[int64]models.User
	messages []models.Message

	Now func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		games: map[int64]memGame{},
		users: map[int64]models.User{},
		Now:   time.Now,
	}
}

func (m *MemoryStore) LoadGame(_ context.Context, id int64) (table.Game, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mg, ok := m.games[id]
	if !ok {
		return table.NewGame(id), nil
	}
	return mg.game.Clone(), nil
}

func (m *MemoryStore) LoadHeader(ctx context.Context, id int64) (table.Game, error) {
	g, err := m.LoadGame(ctx, id)
	if err != nil {
		return table.Game{}, err
	}
	if !g.Exists() {
		return table.Game{}, fmt.Errorf("%w: %d", table.ErrUnknownGame, id)
	}
	g.Seats, g.Cards = nil, nil
	return g, nil
}

func (m *MemoryStore) Apply(_ context.Context, gameID, version int64, muts []table.Mutation, publish func() error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.games[gameID]
	if !ok {
		cur = memGame{game: table.NewGame(gameID)}
	}
	if cur.game.Version != version {
		return fmt.Errorf("%w: game %d is past version %d", table.ErrVersionConflict, gameID, version)
	}
	for _, mut := range muts {
		if as, ok := mut.(table.AddSeat); ok {
			if _, known := m.users[as.Seat.PlayerID]; !known {
				return fmt.Errorf("%w: %d", table.ErrUnknownPlayer, as.Seat.PlayerID)
			}
		}
	}
	next := table.Replay(cur.game, muts)
	if publish != nil {
		if err := publish(); err != nil {
			return fmt.Errorf("publish: %w", err)
		}
	}
	m.games[gameID] = memGame{game: next, touched: m.Now()}
	return nil
}

func (m *MemoryStore) CountSeated(ctx context.Context, gameID int64) (int, error) {
	seats, err := m.ListSeated(ctx, gameID)
	return len(seats), err
}

func (m *MemoryStore) ListSeated(_ context.Context, gameID int64) ([]table.Seat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]table.Seat(nil), m.games[gameID].game.Seats...), nil
}

func (m *MemoryStore) CountUndealt(_ context.Context, gameID int64) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.games[gameID].game.Undealt()), nil
}

func (m *MemoryStore) CountHand(ctx context.Context, gameID, playerID int64) (int, error) {
	cards, err := m.ListHand(ctx, gameID, playerID)
	return len(cards), err
}

func (m *MemoryStore) ListHand(_ context.Context, gameID, playerID int64) ([]hands.Card, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cards := m.games[gameID].game.Hand(playerID)
	sort.Slice(cards, func(i, j int) bool { return cards[i].ID < cards[j].ID })
	return cards, nil
}

func (m *MemoryStore) WaitingGames(_ context.Context, minSeats int, idle time.Duration) ([]WaitingGame, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cutoff := m.Now().Add(-idle)
	var out []WaitingGame
	for id, mg := range m.games {
		g := mg.game
		if g.Status != table.StatusWaiting || len(g.Seats) < minSeats || len(g.Seats) == 0 || !mg.touched.Before(cutoff) {
			continue
		}
		out = append(out, WaitingGame{ID: id, FirstPlayerID: g.Seats[0].PlayerID, Seated: len(g.Seats)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) CreateUser(_ context.Context, user models.User) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.UserId]; ok {
		return 0, fmt.Errorf("could not create user: %d exists", user.UserId)
	}
	now := m.Now()
	user.CreatedAt, user.UpdatedAt = now, now
	m.users[user.UserId] = user
	return user.UserId, nil
}

func (m *MemoryStore) GetByID(_ context.Context, id int64) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", table.ErrUnknownPlayer, id)
	}
	return &u, nil
}

func (m *MemoryStore) Append(_ context.Context, msg models.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	return nil
}

func (m *MemoryStore) Recent(_ context.Context, gameID int64, limit int) ([]models.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Message
	for _, msg := range m.messages {
		if msg.GameID == gameID {
			out = append(out, msg)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}
