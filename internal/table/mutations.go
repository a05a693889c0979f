package table

import (
	"sort"

	"github.com/avvvet/bluff-services/internal/hands"
)

// Mutation is one repository write. Repositories persist them in order,
// all or nothing, guarded by the game version they were computed from.
type Mutation interface {
	apply(g *Game)
}

type CreateGame struct {
	Deck []hands.Card
}

type AddSeat struct {
	Seat Seat
}

type RemoveSeat struct {
	PlayerID int64
}

// DeleteGame drops seats and cards and leaves a finished tombstone.
type DeleteGame struct{}

type SetStatus struct {
	Status Status
}

type SetPhase struct {
	Phase Phase
}

type SetTurn struct {
	PlayerID int64
}

type SetLastClaim struct {
	RankID   int
	Claimant int64
}

type SetRound struct {
	Round int
}

// DealCards moves deck cards into a player's hand.
type DealCards struct {
	PlayerID int64
	CardIDs  []int
}

// CommitHand moves a player's hand into the in-play pool.
type CommitHand struct {
	PlayerID int64
}

// ReturnHand puts a player's hand back at the bottom of the deck.
type ReturnHand struct {
	PlayerID int64
}

// ForfeitCard removes a card from play for good and lowers the owner's
// allowance by one.
type ForfeitCard struct {
	PlayerID int64
	CardID   int
}

// ResetPool sends pool and hand cards back to the deck and restacks the
// whole deck in Order.
type ResetPool struct {
	Order []int
}

func (m CreateGame) apply(g *Game) {
	g.Status = StatusWaiting
	g.Phase = PhaseWaiting
	g.Cards = make([]Card, 0, len(m.Deck))
	for i, c := range m.Deck {
		g.Cards = append(g.Cards, Card{Card: c, Location: InDeck, Position: i})
	}
}

func (m AddSeat) apply(g *Game) {
	g.Seats = append(g.Seats, m.Seat)
	g.sortSeats()
}

func (m RemoveSeat) apply(g *Game) {
	if i := g.seatIndex(m.PlayerID); i >= 0 {
		g.Seats = append(g.Seats[:i:i], g.Seats[i+1:]...)
	}
}

func (m DeleteGame) apply(g *Game) {
	g.Status = StatusFinished
	g.Phase = PhaseFinished
	g.Seats = nil
	g.Cards = nil
	g.Turn = 0
	g.Claimant = 0
}

func (m SetStatus) apply(g *Game) { g.Status = m.Status }

func (m SetPhase) apply(g *Game) { g.Phase = m.Phase }

func (m SetTurn) apply(g *Game) { g.Turn = m.PlayerID }

func (m SetLastClaim) apply(g *Game) {
	g.LastClaim = m.RankID
	g.Claimant = m.Claimant
}

func (m SetRound) apply(g *Game) { g.Round = m.Round }

func (m DealCards) apply(g *Game) {
	ids := make(map[int]bool, len(m.CardIDs))
	for _, id := range m.CardIDs {
		ids[id] = true
	}
	for i := range g.Cards {
		c := &g.Cards[i]
		if ids[c.ID] && c.Location == InDeck {
			c.Location = InHand
			c.Owner = m.PlayerID
		}
	}
}

func (m CommitHand) apply(g *Game) {
	for i := range g.Cards {
		c := &g.Cards[i]
		if c.Location == InHand && c.Owner == m.PlayerID {
			c.Location = InPool
		}
	}
}

func (m ReturnHand) apply(g *Game) {
	bottom := 0
	for _, c := range g.Cards {
		if c.Location == InDeck && c.Position >= bottom {
			bottom = c.Position + 1
		}
	}
	var held []int
	for i, c := range g.Cards {
		if c.Location == InHand && c.Owner == m.PlayerID {
			held = append(held, i)
		}
	}
	sort.Slice(held, func(a, b int) bool { return g.Cards[held[a]].ID < g.Cards[held[b]].ID })
	for _, i := range held {
		c := &g.Cards[i]
		c.Location = InDeck
		c.Owner = 0
		c.Position = bottom
		bottom++
	}
}

func (m ForfeitCard) apply(g *Game) {
	for i := range g.Cards {
		if g.Cards[i].ID == m.CardID {
			g.Cards[i].Location = Forfeited
		}
	}
	if i := g.seatIndex(m.PlayerID); i >= 0 && g.Seats[i].Allowance > 0 {
		g.Seats[i].Allowance--
	}
}

func (m ResetPool) apply(g *Game) {
	order := make(map[int]int, len(m.Order))
	for i, id := range m.Order {
		order[id] = i
	}
	for i := range g.Cards {
		c := &g.Cards[i]
		if c.Location == Forfeited {
			continue
		}
		c.Location = InDeck
		c.Owner = 0
		c.Position = order[c.ID]
	}
}

// Replay applies mutations to a copy of g and bumps its version.
func Replay(g Game, muts []Mutation) Game {
	next := g.Clone()
	for _, m := range muts {
		m.apply(&next)
	}
	next.Version = g.Version + 1
	return next
}
