package table

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avvvet/bluff-services/internal/hands"
)

const (
	alice int64 = 1
	bob   int64 = 2
	carol int64 = 3
)

// lowDeck holds only fours, fives and sixes, so no queen can ever be shown.
func lowDeck() []hands.Card {
	var deck []hands.Card
	id := 1
	for _, v := range []hands.Value{hands.ValueFour, 5, 6} {
		for _, s := range hands.Suits {
			deck = append(deck, hands.Card{ID: id, Value: v, Suit: s})
			id++
		}
	}
	return deck
}

func mustApply(t *testing.T, g Game, a Action, r Rules) Outcome {
	t.Helper()
	out, err := Apply(g, a, r)
	require.NoError(t, err)
	if diff := cmp.Diff(out.Game, Replay(g, out.Mutations)); diff != "" {
		t.Fatalf("replayed mutations diverge from outcome (-want +got):\n%s", diff)
	}
	return out
}

func seatedGame(t *testing.T, r Rules, deck []hands.Card, players ...int64) Game {
	t.Helper()
	g := NewGame(42)
	for _, id := range players {
		g = mustApply(t, g, Action{Kind: ActionJoin, PlayerID: id, Deck: deck}, r).Game
	}
	return g
}

func startedGame(t *testing.T, r Rules, deck []hands.Card, players ...int64) Game {
	t.Helper()
	g := seatedGame(t, r, deck, players...)
	return mustApply(t, g, Action{Kind: ActionStart, PlayerID: players[0], Seed: 3}, r).Game
}

func requireRejected(t *testing.T, err error, reason string) {
	t.Helper()
	rej, ok := AsRejection(err)
	require.True(t, ok, "expected a rejection, got %v", err)
	assert.Equal(t, reason, rej.Reason)
}

func TestJoinCreatesGame(t *testing.T) {
	r := DefaultRules()
	out := mustApply(t, NewGame(7), Action{Kind: ActionJoin, PlayerID: alice, Name: "alice", Deck: hands.NewDeck(4)}, r)

	g := out.Game
	assert.Equal(t, StatusWaiting, g.Status)
	assert.Equal(t, PhaseWaiting, g.Phase)
	assert.Equal(t, int64(1), g.Version)
	assert.Equal(t, r.Catalog.Blank().ID, g.LastClaim)
	assert.Len(t, g.Cards, 48)
	require.Len(t, g.Seats, 1)
	assert.Equal(t, Seat{PlayerID: alice, Name: "alice", Position: 0, Allowance: 5}, g.Seats[0])

	require.Len(t, out.Events, 1)
	assert.Equal(t, EventRosterChanged, out.Events[0].Kind)
	assert.Equal(t, int64(7), out.Events[0].GameID)
}

func TestJoinRejections(t *testing.T) {
	r := DefaultRules()
	r.MaxSeats = 2
	g := seatedGame(t, r, lowDeck(), alice, bob)

	_, err := Apply(g, Action{Kind: ActionJoin, PlayerID: alice}, r)
	requireRejected(t, err, ReasonAlreadySeated)

	_, err = Apply(g, Action{Kind: ActionJoin, PlayerID: carol}, r)
	requireRejected(t, err, ReasonTableFull)

	_, err = Apply(g, Action{Kind: ActionJoin, PlayerID: 0}, r)
	assert.ErrorIs(t, err, ErrUnknownPlayer)
}

func TestUnknownGameAndAction(t *testing.T) {
	r := DefaultRules()
	_, err := Apply(NewGame(9), Action{Kind: ActionClaim, PlayerID: alice, RankID: 2}, r)
	assert.ErrorIs(t, err, ErrUnknownGame)

	g := seatedGame(t, r, lowDeck(), alice)
	_, err = Apply(g, Action{Kind: "fold", PlayerID: alice}, r)
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestStart(t *testing.T) {
	r := DefaultRules()
	g := seatedGame(t, r, lowDeck(), alice)

	_, err := Apply(g, Action{Kind: ActionStart, PlayerID: alice}, r)
	requireRejected(t, err, ReasonNotEnoughPlayers)

	g = mustApply(t, g, Action{Kind: ActionJoin, PlayerID: bob, Deck: lowDeck()}, r).Game
	_, err = Apply(g, Action{Kind: ActionStart, PlayerID: carol}, r)
	assert.ErrorIs(t, err, ErrUnknownPlayer)

	out := mustApply(t, g, Action{Kind: ActionStart, PlayerID: bob, Seed: 1}, r)
	g = out.Game
	assert.Equal(t, StatusInProgress, g.Status)
	assert.Equal(t, PhaseTurnActive, g.Phase)
	assert.Equal(t, alice, g.Turn)
	assert.Equal(t, 1, g.Round)
	assert.Len(t, g.Hand(alice), 5)
	assert.Len(t, g.Hand(bob), 5)
	assert.Len(t, g.Undealt(), 2)
	assert.Empty(t, g.Pool())

	require.NotEmpty(t, out.Events)
	last := out.Events[len(out.Events)-1]
	assert.Equal(t, EventRoundStarted, last.Kind)
	assert.Equal(t, RoundStarted{Round: 1, TurnPlayerID: alice}, last.Payload)

	_, err = Apply(g, Action{Kind: ActionStart, PlayerID: alice}, r)
	requireRejected(t, err, ReasonWrongPhase)
}

func TestClaimAdvancesTurn(t *testing.T) {
	r := DefaultRules()
	g := startedGame(t, r, hands.NewDeck(0), alice, bob, carol)
	hand := g.Hand(alice)

	out := mustApply(t, g, Action{Kind: ActionClaim, PlayerID: alice, RankID: 5}, r)
	g = out.Game
	assert.Equal(t, 5, g.LastClaim)
	assert.Equal(t, alice, g.Claimant)
	assert.Equal(t, bob, g.Turn)
	assert.Empty(t, g.Hand(alice))
	assert.ElementsMatch(t, hand, g.Pool())

	require.Len(t, out.Events, 1)
	assert.Equal(t, TurnAdvanced{
		ClaimerID:     alice,
		CombinationID: 5,
		Description:   "one 7",
		NextPlayerID:  bob,
	}, out.Events[0].Payload)

	g = mustApply(t, g, Action{Kind: ActionClaim, PlayerID: bob, RankID: 6}, r).Game
	g = mustApply(t, g, Action{Kind: ActionClaim, PlayerID: carol, RankID: 7}, r).Game
	assert.Equal(t, alice, g.Turn, "turn wraps around to the first seat")
}

func TestClaimTooLowLeavesStateUnchanged(t *testing.T) {
	r := DefaultRules()
	g := startedGame(t, r, lowDeck(), alice, bob)
	g = mustApply(t, g, Action{Kind: ActionClaim, PlayerID: alice, RankID: 5}, r).Game
	before := g.Clone()

	out, err := Apply(g, Action{Kind: ActionClaim, PlayerID: bob, RankID: 3}, r)
	requireRejected(t, err, ReasonTooLow)
	assert.Empty(t, out.Mutations)
	assert.Empty(t, cmp.Diff(before, g))

	_, err = Apply(g, Action{Kind: ActionClaim, PlayerID: bob, RankID: 5}, r)
	requireRejected(t, err, ReasonTooLow)
}

func TestClaimRejections(t *testing.T) {
	r := DefaultRules()
	waiting := seatedGame(t, r, lowDeck(), alice, bob)
	_, err := Apply(waiting, Action{Kind: ActionClaim, PlayerID: alice, RankID: 5}, r)
	requireRejected(t, err, ReasonWrongPhase)

	g := startedGame(t, r, lowDeck(), alice, bob)
	_, err = Apply(g, Action{Kind: ActionClaim, PlayerID: bob, RankID: 5}, r)
	requireRejected(t, err, ReasonNotYourTurn)

	_, err = Apply(g, Action{Kind: ActionClaim, PlayerID: alice, RankID: 999}, r)
	assert.ErrorIs(t, err, hands.ErrInvalidClaim)

	_, err = Apply(g, Action{Kind: ActionClaim, PlayerID: carol, RankID: 5}, r)
	assert.ErrorIs(t, err, ErrUnknownPlayer)
}

func TestChallengeRejections(t *testing.T) {
	r := DefaultRules()
	g := startedGame(t, r, lowDeck(), alice, bob)

	_, err := Apply(g, Action{Kind: ActionChallenge, PlayerID: bob}, r)
	requireRejected(t, err, ReasonNothingToChallenge)

	g = mustApply(t, g, Action{Kind: ActionClaim, PlayerID: alice, RankID: 5}, r).Game
	_, err = Apply(g, Action{Kind: ActionChallenge, PlayerID: alice}, r)
	requireRejected(t, err, ReasonOwnClaim)
}

func TestChallengeBluffMissing(t *testing.T) {
	r := DefaultRules()
	g := startedGame(t, r, lowDeck(), alice, bob)
	cheapest := hands.ValueAce
	for _, c := range g.Hand(alice) {
		if c.Value < cheapest {
			cheapest = c.Value
		}
	}
	g = mustApply(t, g, Action{Kind: ActionClaim, PlayerID: alice, RankID: 10}, r).Game

	out := mustApply(t, g, Action{Kind: ActionChallenge, PlayerID: bob, Seed: 11}, r)
	require.NotNil(t, out.Resolution)
	res := out.Resolution
	assert.False(t, res.BluffExisted)
	assert.Equal(t, alice, res.LoserPlayerID)
	assert.Equal(t, alice, res.NextPlayerID)
	assert.Len(t, res.Revealed, 10)
	require.NotNil(t, res.Forfeited)
	assert.Equal(t, cheapest, res.Forfeited.Value, "the cheapest card goes")

	g = out.Game
	assert.Equal(t, r.Catalog.Blank().ID, g.LastClaim)
	assert.Zero(t, g.Claimant)
	assert.Empty(t, g.Pool())
	assert.Equal(t, PhaseTurnActive, g.Phase)
	assert.Equal(t, 2, g.Round)
	assert.Equal(t, alice, g.Turn)
	assert.Len(t, g.Hand(alice), 4)
	assert.Len(t, g.Hand(bob), 5)

	seat, _ := g.Seat(alice)
	assert.Equal(t, 4, seat.Allowance)

	kinds := make([]EventKind, 0, len(out.Events))
	for _, e := range out.Events {
		kinds = append(kinds, e.Kind)
	}
	assert.Equal(t, []EventKind{EventRoundResolved, EventRoundStarted}, kinds)
}

func TestChallengeBluffPresent(t *testing.T) {
	r := DefaultRules()
	g := startedGame(t, r, lowDeck(), alice, bob)
	shown := g.Hand(alice)[0].Value
	rank, err := r.Catalog.Lookup("one " + shown.String())
	require.NoError(t, err)

	g = mustApply(t, g, Action{Kind: ActionClaim, PlayerID: alice, RankID: rank.ID}, r).Game
	out := mustApply(t, g, Action{Kind: ActionChallenge, PlayerID: bob, Seed: 5}, r)

	assert.True(t, out.Resolution.BluffExisted)
	assert.Equal(t, bob, out.Resolution.LoserPlayerID)
	assert.Equal(t, bob, out.Game.Turn)
	seat, _ := out.Game.Seat(bob)
	assert.Equal(t, 4, seat.Allowance)
}

func TestResolveDoesNotTouchInput(t *testing.T) {
	r := DefaultRules()
	g := startedGame(t, r, lowDeck(), alice, bob)
	g = mustApply(t, g, Action{Kind: ActionClaim, PlayerID: alice, RankID: 10}, r).Game
	before := g.Clone()

	res, muts, err := Resolve(g, bob, 1, r)
	require.NoError(t, err)
	assert.False(t, res.BluffExisted)
	assert.NotEmpty(t, muts)
	assert.Empty(t, cmp.Diff(before, g))

	// a challenge settles through the same verdict
	out := mustApply(t, g, Action{Kind: ActionChallenge, PlayerID: bob, Seed: 1}, r)
	require.NotNil(t, out.Resolution)
	assert.Equal(t, res, *out.Resolution)
}

func TestForfeitPrefersNaturalCards(t *testing.T) {
	g := Game{Cards: []Card{
		{Card: hands.Card{ID: 1, Wild: true}, Location: InPool, Owner: alice},
		{Card: hands.Card{ID: 2, Value: hands.ValueAce, Suit: hands.SuitSpades}, Location: InPool, Owner: alice},
		{Card: hands.Card{ID: 3, Value: hands.ValueFour, Suit: hands.SuitClubs}, Location: InPool, Owner: bob},
	}}
	c, ok := forfeitable(g, alice)
	require.True(t, ok)
	assert.Equal(t, 2, c.ID)

	_, ok = forfeitable(g, carol)
	assert.False(t, ok)
}

func TestLeave(t *testing.T) {
	r := DefaultRules()

	t.Run("turn holder passes the turn on", func(t *testing.T) {
		g := startedGame(t, r, hands.NewDeck(0), alice, bob, carol)
		out := mustApply(t, g, Action{Kind: ActionLeave, PlayerID: alice}, r)
		assert.Equal(t, bob, out.Game.Turn)
		assert.False(t, out.Game.Seated(alice))
		assert.Len(t, out.Game.Undealt(), 44-15+5)
		assert.False(t, out.Destroyed)
	})

	t.Run("claimant leaving restarts the round", func(t *testing.T) {
		g := startedGame(t, r, hands.NewDeck(0), alice, bob, carol)
		g = mustApply(t, g, Action{Kind: ActionClaim, PlayerID: alice, RankID: 5}, r).Game
		out := mustApply(t, g, Action{Kind: ActionLeave, PlayerID: alice, Seed: 9}, r)
		g = out.Game
		assert.Equal(t, r.Catalog.Blank().ID, g.LastClaim)
		assert.Empty(t, g.Pool())
		assert.Equal(t, 2, g.Round)
		assert.Equal(t, bob, g.Turn)
		assert.Len(t, g.Hand(bob), 5)
		assert.Len(t, g.Hand(carol), 5)
	})

	t.Run("last player out destroys the game", func(t *testing.T) {
		g := seatedGame(t, r, lowDeck(), alice, bob)
		g = mustApply(t, g, Action{Kind: ActionLeave, PlayerID: alice}, r).Game
		out := mustApply(t, g, Action{Kind: ActionLeave, PlayerID: bob}, r)
		assert.True(t, out.Destroyed)
		assert.Equal(t, PhaseFinished, out.Game.Phase)
		require.Len(t, out.Events, 1)
		assert.Equal(t, EventGameFinished, out.Events[0].Kind)

		_, err := Apply(out.Game, Action{Kind: ActionJoin, PlayerID: carol, Deck: lowDeck()}, r)
		assert.ErrorIs(t, err, ErrUnknownGame)
		_, err = Apply(out.Game, Action{Kind: ActionClaim, PlayerID: bob, RankID: 5}, r)
		assert.ErrorIs(t, err, ErrUnknownGame)
	})

	t.Run("stranger", func(t *testing.T) {
		g := seatedGame(t, r, lowDeck(), alice)
		_, err := Apply(g, Action{Kind: ActionLeave, PlayerID: bob}, r)
		assert.ErrorIs(t, err, ErrUnknownPlayer)
	})
}

func TestLateJoinerIsDealtNextRound(t *testing.T) {
	r := DefaultRules()
	g := startedGame(t, r, hands.NewDeck(0), alice, bob)
	g = mustApply(t, g, Action{Kind: ActionJoin, PlayerID: carol}, r).Game
	assert.Empty(t, g.Hand(carol))

	g = mustApply(t, g, Action{Kind: ActionClaim, PlayerID: alice, RankID: 2}, r).Game
	g = mustApply(t, g, Action{Kind: ActionChallenge, PlayerID: bob}, r).Game
	assert.Len(t, g.Hand(carol), 5)
}

func TestRejectionEvent(t *testing.T) {
	e := RejectionEvent(3, &Rejection{Action: ActionClaim, Reason: ReasonTooLow})
	assert.Equal(t, EventClaimRejected, e.Kind)

	e = RejectionEvent(3, &Rejection{Action: ActionStart, Reason: ReasonWrongPhase})
	assert.Equal(t, EventActionRejected, e.Kind)
	assert.Equal(t, Rejected{Action: ActionStart, Reason: ReasonWrongPhase}, e.Payload)
}
