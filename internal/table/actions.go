package table

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"

	"github.com/avvvet/bluff-services/internal/hands"
)

type ActionKind string

const (
	ActionJoin      ActionKind = "join"
	ActionLeave     ActionKind = "leave"
	ActionStart     ActionKind = "start"
	ActionClaim     ActionKind = "claim"
	ActionChallenge ActionKind = "challenge"
)

// Action is one inbound player request. Deck and Seed carry the only
// randomness a transition needs, so transitions stay deterministic.
type Action struct {
	Kind     ActionKind
	PlayerID int64
	Name     string
	RankID   int
	Deck     []hands.Card
	Seed     int64
}

type Rules struct {
	Catalog  *hands.Catalog
	HandSize int
	MinSeats int
	MaxSeats int
}

func DefaultRules() Rules {
	return Rules{
		Catalog:  hands.Default(),
		HandSize: 5,
		MinSeats: 2,
		MaxSeats: 8,
	}
}

func (r Rules) blank() int {
	return r.Catalog.Blank().ID
}

// Outcome is the result of an accepted action.
type Outcome struct {
	Game       Game
	Mutations  []Mutation
	Events     []Event
	Resolution *Resolution
	Destroyed  bool
}

// plan accumulates mutations while keeping a working copy of the game in
// step with them.
type plan struct {
	g          Game
	muts       []Mutation
	events     []Event
	resolution *Resolution
	destroyed  bool
}

func (p *plan) do(ms ...Mutation) {
	for _, m := range ms {
		m.apply(&p.g)
		p.muts = append(p.muts, m)
	}
}

func (p *plan) emit(kind EventKind, payload any) {
	p.events = append(p.events, Event{Kind: kind, GameID: p.g.ID, Payload: payload})
}

type transition func(p *plan, a Action, r Rules) error

var transitions = map[ActionKind]transition{
	ActionJoin:      join,
	ActionLeave:     leave,
	ActionStart:     start,
	ActionClaim:     claim,
	ActionChallenge: challenge,
}

// Apply runs a against g. A *Rejection or an invalid-input error leaves g
// untouched and yields no mutations.
func Apply(g Game, a Action, r Rules) (Outcome, error) {
	t, ok := transitions[a.Kind]
	if !ok {
		return Outcome{}, fmt.Errorf("%w: %q", ErrUnknownAction, a.Kind)
	}
	if g.Phase == PhaseFinished || (!g.Exists() && a.Kind != ActionJoin) {
		return Outcome{}, fmt.Errorf("%w: %d", ErrUnknownGame, g.ID)
	}
	p := &plan{g: g.Clone()}
	if err := t(p, a, r); err != nil {
		return Outcome{}, err
	}
	p.g.Version = g.Version + 1
	return Outcome{
		Game:       p.g,
		Mutations:  p.muts,
		Events:     p.events,
		Resolution: p.resolution,
		Destroyed:  p.destroyed,
	}, nil
}

func (p *plan) seated(a Action) error {
	if !p.g.Seated(a.PlayerID) {
		return fmt.Errorf("%w: %d is not seated at game %d", ErrUnknownPlayer, a.PlayerID, p.g.ID)
	}
	return nil
}

func (p *plan) roster(joined, left int64) {
	p.emit(EventRosterChanged, RosterChanged{
		Players:  append([]Seat(nil), p.g.Seats...),
		JoinedID: joined,
		LeftID:   left,
		TurnID:   p.g.Turn,
	})
}

func join(p *plan, a Action, r Rules) error {
	if a.PlayerID <= 0 {
		return fmt.Errorf("%w: %d", ErrUnknownPlayer, a.PlayerID)
	}
	if !p.g.Exists() {
		if len(a.Deck) == 0 {
			return errors.New("join: a new game needs a deck")
		}
		p.do(CreateGame{Deck: a.Deck}, SetLastClaim{RankID: r.blank()})
	}
	if p.g.Phase != PhaseWaiting && p.g.Phase != PhaseTurnActive {
		return reject(a.Kind, ReasonWrongPhase)
	}
	if p.g.Seated(a.PlayerID) {
		return reject(a.Kind, ReasonAlreadySeated)
	}
	if r.MaxSeats > 0 && len(p.g.Seats) >= r.MaxSeats {
		return reject(a.Kind, ReasonTableFull)
	}
	p.do(AddSeat{Seat: Seat{
		PlayerID:  a.PlayerID,
		Name:      a.Name,
		Position:  p.g.nextPosition(),
		Allowance: r.HandSize,
	}})
	p.roster(a.PlayerID, 0)
	return nil
}

func leave(p *plan, a Action, r Rules) error {
	if err := p.seated(a); err != nil {
		return err
	}
	next := p.g.NextAfter(a.PlayerID)
	wasClaimant := p.g.Claimant == a.PlayerID
	hadTurn := p.g.Turn == a.PlayerID

	p.do(ReturnHand{PlayerID: a.PlayerID}, RemoveSeat{PlayerID: a.PlayerID})

	if len(p.g.Seats) == 0 {
		p.do(DeleteGame{})
		p.destroyed = true
		p.emit(EventGameFinished, GameFinished{LastPlayerID: a.PlayerID})
		return nil
	}
	if hadTurn {
		p.do(SetTurn{PlayerID: next})
	}
	p.roster(0, a.PlayerID)

	// A claim nobody can be penalized for cannot stand.
	if wasClaimant && p.g.Phase == PhaseTurnActive {
		newRound(p, r, a.Seed, p.g.Turn)
	}
	return nil
}

func start(p *plan, a Action, r Rules) error {
	if err := p.seated(a); err != nil {
		return err
	}
	if p.g.Phase != PhaseWaiting {
		return reject(a.Kind, ReasonWrongPhase)
	}
	if len(p.g.Seats) < r.MinSeats {
		return reject(a.Kind, ReasonNotEnoughPlayers)
	}
	p.do(SetStatus{Status: StatusInProgress})
	newRound(p, r, a.Seed, p.g.Seats[0].PlayerID)
	return nil
}

func claim(p *plan, a Action, r Rules) error {
	if err := p.seated(a); err != nil {
		return err
	}
	if p.g.Phase != PhaseTurnActive {
		return reject(a.Kind, ReasonWrongPhase)
	}
	if p.g.Turn != a.PlayerID {
		return reject(a.Kind, ReasonNotYourTurn)
	}
	rank, err := r.Catalog.Describe(a.RankID)
	if err != nil {
		return err
	}
	order, err := r.Catalog.Compare(rank.ID, p.g.LastClaim)
	if err != nil {
		return err
	}
	if order <= 0 {
		return reject(a.Kind, ReasonTooLow)
	}

	next := p.g.NextAfter(a.PlayerID)
	p.do(
		CommitHand{PlayerID: a.PlayerID},
		SetLastClaim{RankID: rank.ID, Claimant: a.PlayerID},
		SetTurn{PlayerID: next},
	)
	p.emit(EventTurnAdvanced, TurnAdvanced{
		ClaimerID:     a.PlayerID,
		CombinationID: rank.ID,
		Description:   rank.Description,
		NextPlayerID:  next,
	})
	return nil
}

func challenge(p *plan, a Action, r Rules) error {
	if err := p.seated(a); err != nil {
		return err
	}
	if p.g.Phase != PhaseTurnActive {
		return reject(a.Kind, ReasonWrongPhase)
	}
	if p.g.LastClaim == r.blank() {
		return reject(a.Kind, ReasonNothingToChallenge)
	}
	if p.g.Claimant == a.PlayerID {
		return reject(a.Kind, ReasonOwnClaim)
	}

	rank, err := r.Catalog.Describe(p.g.LastClaim)
	if err != nil {
		return err
	}
	claimant := p.g.Claimant

	p.do(SetPhase{Phase: PhaseResolving})
	res, muts, err := Resolve(p.g, a.PlayerID, a.Seed, r)
	if err != nil {
		return err
	}
	p.do(muts...)
	p.resolution = &res
	p.emit(EventRoundResolved, RoundResolved{
		BluffExisted:  res.BluffExisted,
		LoserPlayerID: res.LoserPlayerID,
		NextPlayerID:  res.NextPlayerID,
		ClaimerID:     claimant,
		ChallengerID:  a.PlayerID,
		CombinationID: rank.ID,
		Description:   rank.Description,
		Revealed:      res.Revealed,
		Forfeited:     res.Forfeited,
		Round:         p.g.Round,
	})
	deal(p, r, res.NextPlayerID)
	return nil
}

// newRound clears the table and deals the next round.
func newRound(p *plan, r Rules, seed int64, turn int64) {
	resetRound(p, r, seed)
	deal(p, r, turn)
}

func resetRound(p *plan, r Rules, seed int64) {
	p.do(
		ResetPool{Order: restack(p.g, seed)},
		SetLastClaim{RankID: r.blank()},
	)
}

// deal gives every seat its allowance from the top of the deck and hands
// the turn to turn.
func deal(p *plan, r Rules, turn int64) {
	p.do(SetPhase{Phase: PhaseDealing})
	undealt := p.g.Undealt()
	for _, s := range p.g.Seats {
		n := s.Allowance
		if n > len(undealt) {
			n = len(undealt)
		}
		if n == 0 {
			continue
		}
		ids := make([]int, 0, n)
		for _, c := range undealt[:n] {
			ids = append(ids, c.ID)
		}
		undealt = undealt[n:]
		p.do(DealCards{PlayerID: s.PlayerID, CardIDs: ids})
	}
	if !p.g.Seated(turn) && len(p.g.Seats) > 0 {
		turn = p.g.Seats[0].PlayerID
	}
	p.do(
		SetRound{Round: p.g.Round + 1},
		SetTurn{PlayerID: turn},
		SetPhase{Phase: PhaseTurnActive},
	)
	p.emit(EventRoundStarted, RoundStarted{Round: p.g.Round, TurnPlayerID: turn})
}

// restack shuffles every card still in play into a new deck order.
func restack(g Game, seed int64) []int {
	ids := make([]int, 0, len(g.Cards))
	for _, c := range g.Cards {
		if c.Location != Forfeited {
			ids = append(ids, c.ID)
		}
	}
	sort.Ints(ids)
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
	return ids
}
