// Package table holds the authoritative per-game state machine: seating,
// turn order, strictly escalating claims and challenge resolution.
//
// Every action is a pure function of a Game value. It returns the mutations
// a repository must persist and the events the room must see; nothing in
// this package performs I/O.
package table

import (
	"sort"

	"github.com/avvvet/bluff-services/internal/hands"
)

type Status string

const (
	StatusWaiting    Status = "waiting"
	StatusInProgress Status = "in-progress"
	StatusFinished   Status = "finished"
)

type Phase string

const (
	PhaseWaiting    Phase = "waiting"
	PhaseDealing    Phase = "dealing"
	PhaseTurnActive Phase = "turn-active"
	PhaseResolving  Phase = "resolving"
	PhaseFinished   Phase = "finished"
)

// Location is where a card sits. A card is in exactly one location.
type Location string

const (
	InDeck    Location = "deck"
	InHand    Location = "hand"
	InPool    Location = "pool"
	Forfeited Location = "out"
)

type Card struct {
	hands.Card
	Location Location `json:"location"`
	Owner    int64    `json:"owner"`
	Position int      `json:"position"`
}

type Seat struct {
	PlayerID  int64  `json:"player_id"`
	Name      string `json:"name"`
	Position  int    `json:"position"`
	Allowance int    `json:"allowance"`
}

type Game struct {
	ID        int64
	Status    Status
	Phase     Phase
	Seats     []Seat
	Turn      int64
	LastClaim int
	Claimant  int64
	Round     int
	Version   int64
	Cards     []Card
}

// NewGame is the zero state of a game id nobody has joined yet.
func NewGame(id int64) Game {
	return Game{ID: id}
}

// Exists is false for a game that was never created.
func (g Game) Exists() bool {
	return g.Status != ""
}

func (g Game) Clone() Game {
	c := g
	c.Seats = append([]Seat(nil), g.Seats...)
	c.Cards = append([]Card(nil), g.Cards...)
	return c
}

func (g Game) Seat(playerID int64) (Seat, bool) {
	for _, s := range g.Seats {
		if s.PlayerID == playerID {
			return s, true
		}
	}
	return Seat{}, false
}

func (g Game) Seated(playerID int64) bool {
	_, ok := g.Seat(playerID)
	return ok
}

func (g Game) seatIndex(playerID int64) int {
	for i, s := range g.Seats {
		if s.PlayerID == playerID {
			return i
		}
	}
	return -1
}

// NextAfter returns the player seated after playerID, wrapping around.
func (g Game) NextAfter(playerID int64) int64 {
	if len(g.Seats) == 0 {
		return 0
	}
	i := g.seatIndex(playerID)
	if i < 0 {
		return g.Seats[0].PlayerID
	}
	return g.Seats[(i+1)%len(g.Seats)].PlayerID
}

func (g Game) nextPosition() int {
	pos := 0
	for _, s := range g.Seats {
		if s.Position >= pos {
			pos = s.Position + 1
		}
	}
	return pos
}

func (g Game) cardsAt(loc Location, owner int64) []Card {
	var out []Card
	for _, c := range g.Cards {
		if c.Location == loc && (owner == 0 || c.Owner == owner) {
			out = append(out, c)
		}
	}
	return out
}

// Undealt lists deck cards in dealing order.
func (g Game) Undealt() []Card {
	out := g.cardsAt(InDeck, 0)
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

func (g Game) Hand(playerID int64) []hands.Card {
	return faces(g.cardsAt(InHand, playerID))
}

func (g Game) Pool() []hands.Card {
	return faces(g.cardsAt(InPool, 0))
}

func faces(cards []Card) []hands.Card {
	out := make([]hands.Card, 0, len(cards))
	for _, c := range cards {
		out = append(out, c.Card)
	}
	return out
}

func (g Game) sortSeats() {
	sort.Slice(g.Seats, func(i, j int) bool { return g.Seats[i].Position < g.Seats[j].Position })
}
