package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/avvvet/bluff-services/internal/hands"
	"github.com/avvvet/bluff-services/internal/table"
)

var ErrBusy = errors.New("game is busy, try again")

const (
	inboxSize       = 64
	defaultIdleTime = 10 * time.Minute
)

// request is either an action for the state machine or a read that must
// observe every action queued before it.
type request struct {
	ctx    context.Context
	action table.Action
	read   func(ctx context.Context) (any, error)
	reply  chan result
}

type result struct {
	outcome table.Outcome
	value   any
	err     error
}

// Pending is a queued request. Its place in the game's order is fixed when
// it is returned; waiting only collects the answer.
type Pending struct {
	reply <-chan result
}

func (p *Pending) await(ctx context.Context) (result, error) {
	select {
	case res := <-p.reply:
		return res, nil
	case <-ctx.Done():
		return result{}, ctx.Err()
	}
}

// Wait returns the outcome of a submitted action.
func (p *Pending) Wait(ctx context.Context) (table.Outcome, error) {
	res, err := p.await(ctx)
	if err != nil {
		return table.Outcome{}, err
	}
	return res.outcome, res.err
}

// Value returns the answer of a read queued with Within.
func (p *Pending) Value(ctx context.Context) (any, error) {
	res, err := p.await(ctx)
	if err != nil {
		return nil, err
	}
	return res.value, res.err
}

// actor owns one game id and applies its actions strictly in arrival order.
type actor struct {
	gameID int64
	inbox  chan request
}

// GameService runs player actions. Actions on the same game are serialized
// through that game's actor; different games never wait on each other.
type GameService struct {
	repo      GameRepository
	users     UserRepository
	broadcast Broadcaster
	rules     table.Rules
	wilds     int
	idleAfter time.Duration

	rngMu sync.Mutex
	rng   *rand.Rand

	mu     sync.Mutex
	actors map[int64]*actor
}

type GameOptions struct {
	Rules     table.Rules
	WildCards int
	IdleAfter time.Duration
	Seed      int64
}

func NewGameService(repo GameRepository, users UserRepository, b Broadcaster, opts GameOptions) *GameService {
	if opts.Rules.Catalog == nil {
		opts.Rules = table.DefaultRules()
	}
	if opts.IdleAfter <= 0 {
		opts.IdleAfter = defaultIdleTime
	}
	if opts.Seed == 0 {
		opts.Seed = time.Now().UnixNano()
	}
	return &GameService{
		repo:      repo,
		users:     users,
		broadcast: b,
		rules:     opts.Rules,
		wilds:     opts.WildCards,
		idleAfter: opts.IdleAfter,
		rng:       rand.New(rand.NewSource(opts.Seed)),
		actors:    map[int64]*actor{},
	}
}

func (s *GameService) Rules() table.Rules {
	return s.rules
}

func (s *GameService) Join(ctx context.Context, gameID, playerID int64) (table.Outcome, error) {
	return s.Do(ctx, gameID, table.Action{Kind: table.ActionJoin, PlayerID: playerID})
}

func (s *GameService) Leave(ctx context.Context, gameID, playerID int64) (table.Outcome, error) {
	return s.Do(ctx, gameID, table.Action{Kind: table.ActionLeave, PlayerID: playerID})
}

func (s *GameService) Start(ctx context.Context, gameID, playerID int64) (table.Outcome, error) {
	return s.Do(ctx, gameID, table.Action{Kind: table.ActionStart, PlayerID: playerID})
}

func (s *GameService) Claim(ctx context.Context, gameID, playerID int64, rankID int) (table.Outcome, error) {
	return s.Do(ctx, gameID, table.Action{Kind: table.ActionClaim, PlayerID: playerID, RankID: rankID})
}

// ClaimByDescription resolves a description such as "two J" first.
func (s *GameService) ClaimByDescription(ctx context.Context, gameID, playerID int64, desc string) (table.Outcome, error) {
	rank, err := s.rules.Catalog.Lookup(desc)
	if err != nil {
		return table.Outcome{}, err
	}
	return s.Claim(ctx, gameID, playerID, rank.ID)
}

func (s *GameService) Challenge(ctx context.Context, gameID, playerID int64) (table.Outcome, error) {
	return s.Do(ctx, gameID, table.Action{Kind: table.ActionChallenge, PlayerID: playerID})
}

// Do runs a on gameID and returns once it is persisted and broadcast, or
// rejected. A *table.Rejection means nothing changed.
func (s *GameService) Do(ctx context.Context, gameID int64, a table.Action) (table.Outcome, error) {
	p, err := s.Submit(ctx, gameID, a)
	if err != nil {
		return table.Outcome{}, err
	}
	return p.Wait(ctx)
}

// Submit queues a on gameID without waiting for it. Actions submitted one
// after another on the same game run in that order.
func (s *GameService) Submit(ctx context.Context, gameID int64, a table.Action) (*Pending, error) {
	if gameID <= 0 {
		return nil, fmt.Errorf("%w: %d", table.ErrUnknownGame, gameID)
	}
	if a.Kind == table.ActionJoin {
		a.Deck = s.deck()
	}
	a.Seed = s.seed()

	req := request{ctx: ctx, action: a, reply: make(chan result, 1)}
	if err := s.enqueue(gameID, req, true); err != nil {
		return nil, err
	}
	return &Pending{reply: req.reply}, nil
}

// Within queues read behind every action already submitted on gameID. With
// nothing queued for the game it runs straight away.
func (s *GameService) Within(ctx context.Context, gameID int64, read func(ctx context.Context) (any, error)) (*Pending, error) {
	if gameID <= 0 {
		return nil, fmt.Errorf("%w: %d", table.ErrUnknownGame, gameID)
	}
	req := request{ctx: ctx, read: read, reply: make(chan result, 1)}
	if err := s.enqueue(gameID, req, false); err != nil {
		return nil, err
	}
	return &Pending{reply: req.reply}, nil
}

// enqueue hands req to the game's actor. Without a running actor, an action
// starts one and a read runs on its own goroutine.
func (s *GameService) enqueue(gameID int64, req request, spawn bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.actors[gameID]
	if !ok {
		if !spawn {
			go func() { req.reply <- s.handle(gameID, req) }()
			return nil
		}
		a = &actor{gameID: gameID, inbox: make(chan request, inboxSize)}
		s.actors[gameID] = a
		go s.run(a)
	}

	select {
	case a.inbox <- req:
		return nil
	default:
		return ErrBusy
	}
}

func (s *GameService) run(a *actor) {
	idle := time.NewTimer(s.idleAfter)
	defer idle.Stop()

	finished := false
	for {
		select {
		case req := <-a.inbox:
			res := s.handle(a.gameID, req)
			req.reply <- res
			if res.outcome.Destroyed {
				finished = true
			}
			if finished && s.retire(a) {
				return
			}
			idle.Reset(s.idleAfter)
		case <-idle.C:
			if s.retire(a) {
				return
			}
			idle.Reset(s.idleAfter)
		}
	}
}

// retire unregisters a only when nothing is left in its inbox. Sends only
// happen under s.mu, so an empty inbox stays empty once a is gone.
func (s *GameService) retire(a *actor) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(a.inbox) > 0 {
		return false
	}
	if s.actors[a.gameID] == a {
		delete(s.actors, a.gameID)
	}
	return true
}

func (s *GameService) handle(gameID int64, req request) result {
	ctx := req.ctx
	if err := ctx.Err(); err != nil {
		return result{err: err}
	}
	if req.read != nil {
		v, err := req.read(ctx)
		return result{value: v, err: err}
	}

	a := req.action
	if a.Kind == table.ActionJoin {
		u, err := s.users.GetByID(ctx, a.PlayerID)
		if err != nil {
			return result{err: err}
		}
		if a.Name == "" {
			a.Name = u.Name
		}
	}

	g, err := s.repo.LoadGame(ctx, gameID)
	if err != nil {
		log.Errorf("Error [GameService.LoadGame] %s", err)
		return result{err: err}
	}

	out, err := table.Apply(g, a, s.rules)
	if err != nil {
		return result{err: err}
	}

	// the room hears about the action before it is committed; if it cannot,
	// the action is dropped
	publish := func() error {
		for _, e := range out.Events {
			if err := s.broadcast.Broadcast(e); err != nil {
				return fmt.Errorf("broadcast %s: %w", e.Kind, err)
			}
		}
		return nil
	}
	if err := s.repo.Apply(ctx, gameID, g.Version, out.Mutations, publish); err != nil {
		log.Errorf("Error [GameService.Apply] game %d %s: %s", gameID, a.Kind, err)
		return result{err: err}
	}
	return result{outcome: out}
}

func (s *GameService) deck() []hands.Card {
	deck := hands.NewDeck(s.wilds)
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	hands.Shuffle(deck, s.rng)
	return deck
}

func (s *GameService) seed() int64 {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.rng.Int63()
}

// ActiveGames reports how many game actors are running.
func (s *GameService) ActiveGames() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.actors)
}
