package hands

import "fmt"

const runLength = 5

// tally counts the natural cards in play by value and by suit, and the wilds.
type tally struct {
	byValue     map[Value]int
	bySuit      map[Suit]int
	bySuitValue map[Suit]map[Value]bool
	wild        int
}

func newTally(cards []Card) (tally, error) {
	t := tally{
		byValue:     make(map[Value]int),
		bySuit:      make(map[Suit]int),
		bySuitValue: make(map[Suit]map[Value]bool),
	}
	for _, c := range cards {
		if err := c.Validate(); err != nil {
			return tally{}, err
		}
		if c.Wild {
			t.wild++
			continue
		}
		t.byValue[c.Value]++
		t.bySuit[c.Suit]++
		if t.bySuitValue[c.Suit] == nil {
			t.bySuitValue[c.Suit] = make(map[Value]bool)
		}
		t.bySuitValue[c.Suit][c.Value] = true
	}
	return t, nil
}

func shortfall(have, want int) int {
	if have >= want {
		return 0
	}
	return want - have
}

// detector reports whether rank r can be assembled from t.
type detector func(t tally, r HandRank) bool

var detectors = map[Kind]detector{
	KindBlank:         func(tally, HandRank) bool { return true },
	KindOfAKind:       detectOfAKind,
	KindStraight:      detectStraight,
	KindFlush:         detectFlush,
	KindFullHouse:     detectFullHouse,
	KindStraightFlush: detectStraightFlush,
}

func detectOfAKind(t tally, r HandRank) bool {
	return t.byValue[r.Value]+t.wild >= r.Count
}

func detectFlush(t tally, r HandRank) bool {
	return t.bySuit[r.Suit]+t.wild >= r.Count
}

// detectRun slides a window of runLength values and asks present how many
// of them are covered.
func detectRun(wild int, present func(Value) bool) bool {
	for low := MinValue; low+runLength-1 <= MaxValue; low++ {
		gaps := 0
		for v := low; v < low+runLength; v++ {
			if !present(v) {
				gaps++
			}
		}
		if gaps <= wild {
			return true
		}
	}
	return false
}

func detectStraight(t tally, _ HandRank) bool {
	return detectRun(t.wild, func(v Value) bool { return t.byValue[v] > 0 })
}

func detectStraightFlush(t tally, _ HandRank) bool {
	for _, s := range Suits {
		held := t.bySuitValue[s]
		if detectRun(t.wild, func(v Value) bool { return held[v] }) {
			return true
		}
	}
	return false
}

// detectFullHouse needs three of the target value and a pair of any other.
func detectFullHouse(t tally, r HandRank) bool {
	trips := shortfall(t.byValue[r.Value], 3)
	for _, v := range Values() {
		if v == r.Value {
			continue
		}
		if trips+shortfall(t.byValue[v], 2) <= t.wild {
			return true
		}
	}
	return false
}

// Evaluator decides whether a claimed hand is present among face-up cards.
type Evaluator struct {
	catalog *Catalog
}

func NewEvaluator(c *Catalog) *Evaluator {
	return &Evaluator{catalog: c}
}

// Exists reports whether the hand with the given id can be assembled from
// cards, with wild cards standing in for any value or suit. The blank hand
// is vacuously present.
func (e *Evaluator) Exists(cards []Card, claimedID int) (bool, error) {
	rank, err := e.catalog.Describe(claimedID)
	if err != nil {
		return false, err
	}
	detect, ok := detectors[rank.Kind]
	if !ok {
		return false, fmt.Errorf("%w: no detector for kind %s", ErrInvalidClaim, rank.Kind)
	}
	t, err := newTally(cards)
	if err != nil {
		return false, err
	}
	return detect(t, rank), nil
}
