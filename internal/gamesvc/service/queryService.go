package service

import (
	"context"
	"fmt"

	"github.com/avvvet/bluff-services/internal/gamesvc/models"
	"github.com/avvvet/bluff-services/internal/hands"
	"github.com/avvvet/bluff-services/internal/table"
)

// QueryService answers read-only questions about a game. Nothing is cached;
// each call reads the repository again.
type QueryService struct {
	games   GameReader
	catalog *hands.Catalog
}

func NewQueryService(games GameReader, catalog *hands.Catalog) *QueryService {
	return &QueryService{games: games, catalog: catalog}
}

func (s *QueryService) Catalog() []hands.HandRank {
	return s.catalog.Ranks()
}

func (s *QueryService) Status(ctx context.Context, gameID int64) (models.StatusInfo, error) {
	g, err := s.games.LoadHeader(ctx, gameID)
	if err != nil {
		return models.StatusInfo{}, err
	}
	return models.StatusInfo{GameID: gameID, Status: g.Status, Phase: g.Phase, Round: g.Round}, nil
}

func (s *QueryService) PlayerCount(ctx context.Context, gameID int64) (int, error) {
	if _, err := s.games.LoadHeader(ctx, gameID); err != nil {
		return 0, err
	}
	return s.games.CountSeated(ctx, gameID)
}

func (s *QueryService) DeckSize(ctx context.Context, gameID int64) (int, error) {
	if _, err := s.games.LoadHeader(ctx, gameID); err != nil {
		return 0, err
	}
	return s.games.CountUndealt(ctx, gameID)
}

func (s *QueryService) Roster(ctx context.Context, gameID int64) ([]table.Seat, error) {
	if _, err := s.games.LoadHeader(ctx, gameID); err != nil {
		return nil, err
	}
	return s.games.ListSeated(ctx, gameID)
}

func (s *QueryService) TurnInfo(ctx context.Context, gameID int64) (models.TurnInfo, error) {
	g, err := s.games.LoadHeader(ctx, gameID)
	if err != nil {
		return models.TurnInfo{}, err
	}
	return models.TurnInfo{GameID: gameID, TurnPlayerID: g.Turn, Round: g.Round}, nil
}

func (s *QueryService) LastClaimInfo(ctx context.Context, gameID int64) (models.LastClaimInfo, error) {
	g, err := s.games.LoadHeader(ctx, gameID)
	if err != nil {
		return models.LastClaimInfo{}, err
	}
	info := models.LastClaimInfo{GameID: gameID, CombinationID: g.LastClaim, ClaimantID: g.Claimant}
	if rank, err := s.catalog.Describe(g.LastClaim); err == nil {
		info.Description = rank.Description
	}
	return info, nil
}

// HandInfo returns a seated player's private hand.
func (s *QueryService) HandInfo(ctx context.Context, gameID, playerID int64) ([]hands.Card, error) {
	if err := s.requireSeated(ctx, gameID, playerID); err != nil {
		return nil, err
	}
	return s.games.ListHand(ctx, gameID, playerID)
}

func (s *QueryService) Snapshot(ctx context.Context, gameID int64) (models.GameSnapshot, error) {
	g, err := s.games.LoadHeader(ctx, gameID)
	if err != nil {
		return models.GameSnapshot{}, err
	}
	seats, err := s.games.ListSeated(ctx, gameID)
	if err != nil {
		return models.GameSnapshot{}, err
	}
	deck, err := s.games.CountUndealt(ctx, gameID)
	if err != nil {
		return models.GameSnapshot{}, err
	}

	snap := models.GameSnapshot{
		ID:         gameID,
		Status:     g.Status,
		Phase:      g.Phase,
		Round:      g.Round,
		TurnID:     g.Turn,
		LastClaim:  g.LastClaim,
		ClaimantID: g.Claimant,
		DeckSize:   deck,
		Players:    make([]models.PlayerStatus, 0, len(seats)),
	}
	if rank, err := s.catalog.Describe(g.LastClaim); err == nil {
		snap.Description = rank.Description
	}
	for _, st := range seats {
		n, err := s.games.CountHand(ctx, gameID, st.PlayerID)
		if err != nil {
			return models.GameSnapshot{}, err
		}
		snap.Players = append(snap.Players, models.PlayerStatus{
			PlayerID:  st.PlayerID,
			Name:      st.Name,
			Position:  st.Position,
			Allowance: st.Allowance,
			HandCount: n,
		})
	}
	return snap, nil
}

func (s *QueryService) requireSeated(ctx context.Context, gameID, playerID int64) error {
	seats, err := s.Roster(ctx, gameID)
	if err != nil {
		return err
	}
	for _, st := range seats {
		if st.PlayerID == playerID {
			return nil
		}
	}
	return fmt.Errorf("%w: %d is not seated at game %d", table.ErrUnknownPlayer, playerID, gameID)
}
