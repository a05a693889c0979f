package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/avvvet/bluff-services/internal/gamesvc/models"
	"github.com/avvvet/bluff-services/internal/gamesvc/store"
	"github.com/avvvet/bluff-services/internal/hands"
	"github.com/avvvet/bluff-services/internal/table"
)

func startedTable(t *testing.T) (*store.MemoryStore, *GameService) {
	t.Helper()
	ctx := context.Background()
	s, m := newGameService(t, &recorder{})
	for _, id := range []int64{1, 2} {
		_, err := s.Join(ctx, 7, id)
		require.NoError(t, err)
	}
	_, err := s.Start(ctx, 7, 1)
	require.NoError(t, err)
	return m, s
}

func TestQueryService(t *testing.T) {
	ctx := context.Background()
	m, s := startedTable(t)
	q := NewQueryService(m, hands.Default())

	st, err := q.Status(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInfo{GameID: 7, Status: table.StatusInProgress, Phase: table.PhaseTurnActive, Round: 1}, st)

	n, err := q.PlayerCount(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	deck, err := q.DeckSize(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 48-10, deck)

	roster, err := q.Roster(ctx, 7)
	require.NoError(t, err)
	require.Len(t, roster, 2)
	assert.Equal(t, int64(1), roster[0].PlayerID)

	turn, err := q.TurnInfo(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(1), turn.TurnPlayerID)

	_, err = s.Claim(ctx, 7, 1, 13)
	require.NoError(t, err)
	last, err := q.LastClaimInfo(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, models.LastClaimInfo{GameID: 7, CombinationID: 13, Description: "two 4", ClaimantID: 1}, last)

	hand, err := q.HandInfo(ctx, 7, 2)
	require.NoError(t, err)
	assert.Len(t, hand, 5)
	_, err = q.HandInfo(ctx, 7, 3)
	assert.ErrorIs(t, err, table.ErrUnknownPlayer)

	snap, err := q.Snapshot(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(2), snap.TurnID)
	assert.Equal(t, "two 4", snap.Description)
	require.Len(t, snap.Players, 2)
	assert.Equal(t, 0, snap.Players[0].HandCount, "the claimant's hand is in the pool")
	assert.Equal(t, 5, snap.Players[1].HandCount)

	_, err = q.Status(ctx, 99)
	assert.ErrorIs(t, err, table.ErrUnknownGame)
	_, err = q.DeckSize(ctx, 99)
	assert.ErrorIs(t, err, table.ErrUnknownGame)

	assert.Len(t, q.Catalog(), 172)
}

func TestMessageService(t *testing.T) {
	ctx := context.Background()
	m, _ := startedTable(t)
	b := &MockBroadcaster{}
	b.On("Broadcast", mock.MatchedBy(func(e table.Event) bool {
		return e.Kind == table.EventMessagePosted && e.GameID == 7
	})).Return(nil).Once()

	ms := NewMessageService(m, m, b, time.Hour)
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	ms.now = func() time.Time { return now }

	msg, err := ms.Post(ctx, 7, 2, "  nice bluff  ")
	require.NoError(t, err)
	assert.Equal(t, "nice bluff", msg.Text)
	assert.Equal(t, now.Add(time.Hour), msg.ExpiresAt)
	b.AssertExpectations(t)

	history, err := ms.History(ctx, 7, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, int64(2), history[0].PlayerID)

	_, err = ms.Post(ctx, 7, 2, "   ")
	assert.ErrorIs(t, err, ErrInvalidMessage)
	_, err = ms.Post(ctx, 7, 2, strings.Repeat("x", maxMessageLen+1))
	assert.ErrorIs(t, err, ErrInvalidMessage)
	_, err = ms.Post(ctx, 7, 3, "hi")
	assert.ErrorIs(t, err, table.ErrUnknownPlayer)
	_, err = ms.Post(ctx, 99, 2, "hi")
	assert.ErrorIs(t, err, table.ErrUnknownGame)
}

func TestUserService(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemoryStore()
	us := NewUserService(m)

	u, err := us.GetOrCreateUser(ctx, models.User{UserId: 5, Name: "eve"})
	require.NoError(t, err)
	assert.Equal(t, "ACTIVE", u.Status)

	again, err := us.GetOrCreateUser(ctx, models.User{UserId: 5, Name: "renamed"})
	require.NoError(t, err)
	assert.Equal(t, "eve", again.Name)

	_, err = us.GetOrCreateUser(ctx, models.User{})
	assert.ErrorIs(t, err, table.ErrUnknownPlayer)
}

func TestAutoStart(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemoryStore()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m.Now = func() time.Time { return now }
	newUsers(t, m, 1, 2)
	s := NewGameService(m, m, &recorder{}, GameOptions{})
	for _, id := range []int64{1, 2} {
		_, err := s.Join(ctx, 3, id)
		require.NoError(t, err)
	}

	var (
		mu        sync.Mutex
		requested [][2]int64
	)
	a := &AutoStart{
		Games:      m,
		MinPlayers: 2,
		After:      30 * time.Second,
		Publish: func(gameID, playerID int64) error {
			mu.Lock()
			defer mu.Unlock()
			requested = append(requested, [2]int64{gameID, playerID})
			return nil
		},
	}

	n, err := a.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	now = now.Add(time.Minute)
	n, err = a.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, [][2]int64{{3, 1}}, requested)

	a.Publish = func(int64, int64) error { return errors.New("nats down") }
	n, err = a.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	disabled := &AutoStart{Games: m}
	n, err = disabled.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
