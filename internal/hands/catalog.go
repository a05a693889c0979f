package hands

import (
	"cmp"
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidClaim = errors.New("invalid claim")

// Kind is the structural category of a claimable hand.
type Kind int

const (
	KindBlank Kind = iota
	KindOfAKind
	KindStraight
	KindFlush
	KindFullHouse
	KindStraightFlush
)

var kindNames = map[Kind]string{
	KindBlank:         "blank",
	KindOfAKind:       "of-a-kind",
	KindStraight:      "straight",
	KindFlush:         "flush",
	KindFullHouse:     "full-house",
	KindStraightFlush: "straight-flush",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// HandRank is one row of the catalog. Id order is strength order.
type HandRank struct {
	ID          int    `json:"id"`
	Description string `json:"description"`
	Kind        Kind   `json:"kind"`
	Value       Value  `json:"value,omitempty"`
	Suit        Suit   `json:"suit,omitempty"`
	Count       int    `json:"count,omitempty"`
}

// tier expands into one catalog row, or one row per value or suit.
type tier struct {
	kind    Kind
	count   int
	label   string
	byValue bool
	bySuit  bool
}

var countWords = []string{"", "one", "two", "three", "four", "five", "six", "seven",
	"eight", "nine", "ten", "eleven", "twelve", "thirteen", "fourteen"}

func ofAKind(n int) tier {
	return tier{kind: KindOfAKind, count: n, label: countWords[n], byValue: true}
}

// defaultTiers lists the claimable hands weakest first.
var defaultTiers = []tier{
	{kind: KindBlank, label: "blank"},
	ofAKind(1),
	ofAKind(2),
	ofAKind(3),
	{kind: KindStraight, count: 5, label: "straight"},
	{kind: KindFlush, count: 5, label: "flush", bySuit: true},
	{kind: KindFullHouse, count: 5, label: "full house", byValue: true},
	ofAKind(4),
	{kind: KindStraightFlush, count: 5, label: "straight flush"},
	ofAKind(5),
	ofAKind(6),
	ofAKind(7),
	ofAKind(8),
	ofAKind(9),
	ofAKind(10),
	ofAKind(11),
	ofAKind(12),
	ofAKind(13),
	ofAKind(14),
}

func expand(tiers []tier) []HandRank {
	var rows []HandRank
	add := func(r HandRank) {
		r.ID = len(rows) + 1
		rows = append(rows, r)
	}
	for _, t := range tiers {
		switch {
		case t.byValue:
			for _, v := range Values() {
				add(HandRank{Description: t.label + " " + v.String(), Kind: t.kind, Value: v, Count: t.count})
			}
		case t.bySuit:
			for _, s := range Suits {
				add(HandRank{Description: t.label + " " + string(s), Kind: t.kind, Suit: s, Count: t.count})
			}
		default:
			add(HandRank{Description: t.label, Kind: t.kind, Count: t.count})
		}
	}
	return rows
}

// Catalog is the fixed, totally ordered set of claimable hands.
type Catalog struct {
	rows   []HandRank
	byDesc map[string]int
}

// NewCatalog validates rows: ids must run 1..n in order, id 1 must be the
// only blank row and descriptions must be unique.
func NewCatalog(rows []HandRank) (*Catalog, error) {
	if len(rows) == 0 {
		return nil, errors.New("catalog: no rows")
	}
	c := &Catalog{
		rows:   make([]HandRank, len(rows)),
		byDesc: make(map[string]int, len(rows)),
	}
	copy(c.rows, rows)
	for i, r := range c.rows {
		if r.ID != i+1 {
			return nil, fmt.Errorf("catalog: row %d has id %d", i, r.ID)
		}
		if (r.Kind == KindBlank) != (i == 0) {
			return nil, fmt.Errorf("catalog: blank must be exactly row 1, found kind %s at id %d", r.Kind, r.ID)
		}
		key := normalize(r.Description)
		if _, dup := c.byDesc[key]; dup {
			return nil, fmt.Errorf("catalog: duplicate description %q", r.Description)
		}
		c.byDesc[key] = r.ID
	}
	return c, nil
}

var defaultCatalog = mustCatalog(expand(defaultTiers))

func mustCatalog(rows []HandRank) *Catalog {
	c, err := NewCatalog(rows)
	if err != nil {
		panic(err)
	}
	return c
}

// Default returns the standard catalog.
func Default() *Catalog {
	return defaultCatalog
}

func (c *Catalog) Len() int {
	return len(c.rows)
}

// Blank is the "no claim yet" rank.
func (c *Catalog) Blank() HandRank {
	return c.rows[0]
}

func (c *Catalog) Ranks() []HandRank {
	out := make([]HandRank, len(c.rows))
	copy(out, c.rows)
	return out
}

func (c *Catalog) Describe(id int) (HandRank, error) {
	if id < 1 || id > len(c.rows) {
		return HandRank{}, fmt.Errorf("%w: unknown combination id %d", ErrInvalidClaim, id)
	}
	return c.rows[id-1], nil
}

func (c *Catalog) Lookup(description string) (HandRank, error) {
	id, ok := c.byDesc[normalize(description)]
	if !ok {
		return HandRank{}, fmt.Errorf("%w: unknown combination %q", ErrInvalidClaim, description)
	}
	return c.rows[id-1], nil
}

// Compare orders two ranks by strength: -1 if a is weaker than b, 0 if
// equal, +1 if stronger.
func (c *Catalog) Compare(a, b int) (int, error) {
	if _, err := c.Describe(a); err != nil {
		return 0, err
	}
	if _, err := c.Describe(b); err != nil {
		return 0, err
	}
	return cmp.Compare(a, b), nil
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
