package table

import (
	"sort"

	"github.com/avvvet/bluff-services/internal/hands"
)

// Resolution is the verdict on a challenged claim.
type Resolution struct {
	// BluffExisted is true when the called hand was present in the pool,
	// in which case the challenger loses.
	BluffExisted  bool
	LoserPlayerID int64
	NextPlayerID  int64
	Revealed      []hands.Card
	Forfeited     *hands.Card
}

// Resolve settles a challenge by challengerID against g's standing claim.
// It returns the verdict and the writes that reveal, penalize and clear
// the round. g is not modified.
func Resolve(g Game, challengerID int64, seed int64, r Rules) (Resolution, []Mutation, error) {
	p := &plan{g: g.Clone()}
	res, err := resolve(p, challengerID, seed, r)
	if err != nil {
		return Resolution{}, nil, err
	}
	return res, p.muts, nil
}

func resolve(p *plan, challengerID int64, seed int64, r Rules) (Resolution, error) {
	for _, s := range p.g.Seats {
		if len(p.g.Hand(s.PlayerID)) > 0 {
			p.do(CommitHand{PlayerID: s.PlayerID})
		}
	}
	pool := p.g.Pool()
	exists, err := hands.NewEvaluator(r.Catalog).Exists(pool, p.g.LastClaim)
	if err != nil {
		return Resolution{}, err
	}

	loser := p.g.Claimant
	if exists {
		loser = challengerID
	}
	res := Resolution{
		BluffExisted:  exists,
		LoserPlayerID: loser,
		NextPlayerID:  loser,
		Revealed:      pool,
	}
	if c, ok := forfeitable(p.g, loser); ok {
		p.do(ForfeitCard{PlayerID: loser, CardID: c.ID})
		res.Forfeited = &c
	}
	resetRound(p, r, seed)
	return res, nil
}

// forfeitable picks the loser's cheapest pool card: natural cards before
// wild ones, then lowest value, then lowest id.
func forfeitable(g Game, playerID int64) (hands.Card, bool) {
	own := faces(g.cardsAt(InPool, playerID))
	if len(own) == 0 {
		return hands.Card{}, false
	}
	sort.Slice(own, func(i, j int) bool {
		a, b := own[i], own[j]
		if a.Wild != b.Wild {
			return !a.Wild
		}
		if a.Value != b.Value {
			return a.Value < b.Value
		}
		return a.ID < b.ID
	})
	return own[0], true
}
