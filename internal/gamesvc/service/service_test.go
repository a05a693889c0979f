package service

import (
	"context"
	"errors"
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

type MockBroadcaster struct {
	mock.Mock
}

func (m *MockBroadcaster) Broadcast(e table.Event) error {
	args := m.Called(e)
	return args.Error(0)
}

// recorder keeps every broadcast event.
type recorder struct {
	mu     sync.Mutex
	events []table.Event
}

func (r *recorder) Broadcast(e table.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) kinds() []table.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]table.EventKind, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Kind)
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

type failingRepo struct {
	*store.MemoryStore
	err error
}

func (f *failingRepo) Apply(context.Context, int64, int64, []table.Mutation, func() error) error {
	return f.err
}

func newUsers(t *testing.T, m *store.MemoryStore, ids ...int64) {
	t.Helper()
	for _, id := range ids {
		_, err := m.CreateUser(context.Background(), models.User{UserId: id, Name: "player"})
		require.NoError(t, err)
	}
}

func newGameService(t *testing.T, b Broadcaster) (*GameService, *store.MemoryStore) {
	t.Helper()
	m := store.NewMemoryStore()
	newUsers(t, m, 1, 2, 3)
	s := NewGameService(m, m, b, GameOptions{WildCards: 4, Seed: 1})
	return s, m
}

func TestGameServiceRound(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	s, _ := newGameService(t, rec)

	_, err := s.Join(ctx, 7, 1)
	require.NoError(t, err)
	_, err = s.Join(ctx, 7, 2)
	require.NoError(t, err)
	assert.Equal(t, []table.EventKind{table.EventRosterChanged, table.EventRosterChanged}, rec.kinds())

	rec.reset()
	out, err := s.Start(ctx, 7, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), out.Game.Turn)
	assert.Equal(t, []table.EventKind{table.EventRoundStarted}, rec.kinds())

	rec.reset()
	out, err = s.ClaimByDescription(ctx, 7, 1, "One 4")
	require.NoError(t, err)
	assert.Equal(t, 2, out.Game.LastClaim)
	assert.Equal(t, []table.EventKind{table.EventTurnAdvanced}, rec.kinds())

	rec.reset()
	out, err = s.Challenge(ctx, 7, 2)
	require.NoError(t, err)
	require.NotNil(t, out.Resolution)
	assert.Equal(t, []table.EventKind{table.EventRoundResolved, table.EventRoundStarted}, rec.kinds())
	assert.Equal(t, out.Resolution.LoserPlayerID, out.Game.Turn)
}

func TestGameServiceRejectionIsNotBroadcast(t *testing.T) {
	ctx := context.Background()
	b := &MockBroadcaster{}
	b.On("Broadcast", mock.Anything).Return(nil)
	s, m := newGameService(t, b)

	_, err := s.Join(ctx, 7, 1)
	require.NoError(t, err)
	_, err = s.Join(ctx, 7, 2)
	require.NoError(t, err)
	_, err = s.Start(ctx, 7, 1)
	require.NoError(t, err)
	_, err = s.Claim(ctx, 7, 1, 5)
	require.NoError(t, err)
	calls := len(b.Calls)

	before, err := m.LoadGame(ctx, 7)
	require.NoError(t, err)

	_, err = s.Claim(ctx, 7, 2, 3)
	rej, ok := table.AsRejection(err)
	require.True(t, ok)
	assert.Equal(t, table.ReasonTooLow, rej.Reason)
	assert.Len(t, b.Calls, calls)

	after, err := m.LoadGame(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, before.Version, after.Version)
}

func TestGameServiceInvalidInput(t *testing.T) {
	ctx := context.Background()
	s, _ := newGameService(t, &recorder{})

	_, err := s.Join(ctx, 7, 99)
	assert.ErrorIs(t, err, table.ErrUnknownPlayer)

	_, err = s.Claim(ctx, 8, 1, 5)
	assert.ErrorIs(t, err, table.ErrUnknownGame)

	_, err = s.Join(ctx, 0, 1)
	assert.ErrorIs(t, err, table.ErrUnknownGame)

	_, err = s.ClaimByDescription(ctx, 7, 1, "six jokers")
	assert.ErrorIs(t, err, hands.ErrInvalidClaim)
}

func TestGameServiceCollaboratorFailure(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemoryStore()
	newUsers(t, m, 1)
	b := &MockBroadcaster{}
	boom := errors.New("storage unavailable")
	s := NewGameService(&failingRepo{MemoryStore: m, err: boom}, m, b, GameOptions{})

	_, err := s.Join(ctx, 7, 1)
	assert.ErrorIs(t, err, boom)
	b.AssertNotCalled(t, "Broadcast", mock.Anything)

	g, err := m.LoadGame(ctx, 7)
	require.NoError(t, err)
	assert.False(t, g.Exists())
}

func TestGameServiceBroadcastFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	b := &MockBroadcaster{}
	down := errors.New("nats down")
	b.On("Broadcast", mock.Anything).Return(down)
	s, m := newGameService(t, b)

	_, err := s.Join(ctx, 7, 1)
	assert.ErrorIs(t, err, down)
	b.AssertNumberOfCalls(t, "Broadcast", 1)

	g, err := m.LoadGame(ctx, 7)
	require.NoError(t, err)
	assert.False(t, g.Exists())
	n, err := m.CountSeated(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestGameServiceSerializesClaims(t *testing.T) {
	ctx := context.Background()
	s, m := newGameService(t, &recorder{})
	for _, id := range []int64{1, 2} {
		_, err := s.Join(ctx, 7, id)
		require.NoError(t, err)
	}
	_, err := s.Start(ctx, 7, 1)
	require.NoError(t, err)

	const n = 20
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
		rejected int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Claim(ctx, 7, 1, 5)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				accepted++
			} else if _, ok := table.AsRejection(err); ok {
				rejected++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, accepted)
	assert.Equal(t, n-1, rejected)

	g, err := m.LoadGame(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 5, g.LastClaim)
	assert.Equal(t, int64(2), g.Turn)
}

func TestGameServiceGamesRunIndependently(t *testing.T) {
	ctx := context.Background()
	s, m := newGameService(t, &recorder{})

	var wg sync.WaitGroup
	for gameID := int64(1); gameID <= 10; gameID++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_, err := s.Join(ctx, id, 1)
			assert.NoError(t, err)
		}(gameID)
	}
	wg.Wait()

	for gameID := int64(1); gameID <= 10; gameID++ {
		n, err := m.CountSeated(ctx, gameID)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	}
}

func TestGameServiceDestroy(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	s, _ := newGameService(t, rec)

	_, err := s.Join(ctx, 7, 1)
	require.NoError(t, err)
	out, err := s.Leave(ctx, 7, 1)
	require.NoError(t, err)
	assert.True(t, out.Destroyed)

	assert.Eventually(t, func() bool { return s.ActiveGames() == 0 }, time.Second, 10*time.Millisecond)

	_, err = s.Join(ctx, 7, 2)
	assert.ErrorIs(t, err, table.ErrUnknownGame)
}

func TestGameServiceIdleActorRetires(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemoryStore()
	newUsers(t, m, 1)
	s := NewGameService(m, m, &recorder{}, GameOptions{IdleAfter: 20 * time.Millisecond})

	_, err := s.Join(ctx, 7, 1)
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return s.ActiveGames() == 0 }, time.Second, 10*time.Millisecond)

	n, err := m.CountSeated(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "state outlives the actor")
}

func TestGameServiceSubmitOrderSurvivesRetirement(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemoryStore()
	newUsers(t, m, 1, 2)
	// actors retire as soon as they run dry
	s := NewGameService(m, m, &recorder{}, GameOptions{WildCards: 4, Seed: 1, IdleAfter: time.Microsecond})

	const games = 200
	var pending []*Pending
	for gameID := int64(1); gameID <= games; gameID++ {
		for _, a := range []table.Action{
			{Kind: table.ActionJoin, PlayerID: 1},
			{Kind: table.ActionJoin, PlayerID: 2},
			{Kind: table.ActionStart, PlayerID: 1},
		} {
			p, err := s.Submit(ctx, gameID, a)
			require.NoError(t, err)
			pending = append(pending, p)
		}
	}

	for _, p := range pending {
		_, err := p.Wait(ctx)
		require.NoError(t, err)
	}
	for gameID := int64(1); gameID <= games; gameID++ {
		g, err := m.LoadGame(ctx, gameID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), g.Turn)
	}
}

func TestGameServiceWithinSeesQueuedActions(t *testing.T) {
	ctx := context.Background()
	s, m := newGameService(t, &recorder{})

	_, err := s.Submit(ctx, 7, table.Action{Kind: table.ActionJoin, PlayerID: 1})
	require.NoError(t, err)
	p, err := s.Within(ctx, 7, func(ctx context.Context) (any, error) {
		return m.CountSeated(ctx, 7)
	})
	require.NoError(t, err)

	v, err := p.Value(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	_, err = s.Within(ctx, 0, func(context.Context) (any, error) { return nil, nil })
	assert.ErrorIs(t, err, table.ErrUnknownGame)
}
