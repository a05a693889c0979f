package hands

import (
	"errors"
	"fmt"
	"math/rand"
)

var ErrInvalidCard = errors.New("invalid card")

// Value is a card face value. The eleven playable values run from four to ace.
type Value int

const (
	ValueNone  Value = 0
	ValueFour  Value = 4
	ValueTen   Value = 10
	ValueJack  Value = 11
	ValueQueen Value = 12
	ValueKing  Value = 13
	ValueAce   Value = 14

	MinValue = ValueFour
	MaxValue = ValueAce
)

var valueNames = map[Value]string{
	ValueJack:  "J",
	ValueQueen: "Q",
	ValueKing:  "K",
	ValueAce:   "A",
}

func (v Value) Valid() bool {
	return v >= MinValue && v <= MaxValue
}

func (v Value) String() string {
	if name, ok := valueNames[v]; ok {
		return name
	}
	if !v.Valid() {
		return "?"
	}
	return fmt.Sprintf("%d", int(v))
}

// Values returns every playable value, low to high.
func Values() []Value {
	out := make([]Value, 0, int(MaxValue-MinValue)+1)
	for v := MinValue; v <= MaxValue; v++ {
		out = append(out, v)
	}
	return out
}

type Suit string

const (
	SuitNone     Suit = ""
	SuitDiamonds Suit = "D"
	SuitClubs    Suit = "C"
	SuitHearts   Suit = "H"
	SuitSpades   Suit = "S"
)

// Suits is the catalog order used for flush rows.
var Suits = []Suit{SuitDiamonds, SuitClubs, SuitHearts, SuitSpades}

func (s Suit) Valid() bool {
	switch s {
	case SuitDiamonds, SuitClubs, SuitHearts, SuitSpades:
		return true
	}
	return false
}

// Card is immutable once dealt. Wild cards carry no value or suit.
type Card struct {
	ID    int   `json:"id"`
	Value Value `json:"value"`
	Suit  Suit  `json:"suit"`
	Wild  bool  `json:"wild"`
}

func (c Card) Validate() error {
	if c.Wild {
		return nil
	}
	if !c.Value.Valid() {
		return fmt.Errorf("%w: card %d has value %d", ErrInvalidCard, c.ID, c.Value)
	}
	if !c.Suit.Valid() {
		return fmt.Errorf("%w: card %d has suit %q", ErrInvalidCard, c.ID, c.Suit)
	}
	return nil
}

func (c Card) String() string {
	if c.Wild {
		return "W"
	}
	return c.Value.String() + string(c.Suit)
}

// NewDeck builds the natural cards (every value in every suit) followed by
// the given number of wild cards. Ids start at 1.
func NewDeck(wilds int) []Card {
	deck := make([]Card, 0, len(Suits)*len(Values())+wilds)
	id := 1
	for _, s := range Suits {
		for _, v := range Values() {
			deck = append(deck, Card{ID: id, Value: v, Suit: s})
			id++
		}
	}
	for i := 0; i < wilds; i++ {
		deck = append(deck, Card{ID: id, Wild: true})
		id++
	}
	return deck
}

// Shuffle permutes cards in place.
func Shuffle(cards []Card, rng *rand.Rand) {
	rng.Shuffle(len(cards), func(i, j int) {
		cards[i], cards[j] = cards[j], cards[i]
	})
}
