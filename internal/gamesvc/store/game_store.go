package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/avvvet/bluff-services/internal/table"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// GameStore persists games. Writes go through Apply only, which runs one
// action's mutations in a single transaction guarded by games.version.
type GameStore struct {
	db *pgxpool.Pool
	*GamePlayerStore
	*CardStore
}

func NewGameStore(db *pgxpool.Pool) *GameStore {
	return &GameStore{
		db:              db,
		GamePlayerStore: NewGamePlayerStore(db),
		CardStore:       NewCardStore(db),
	}
}

// WaitingGame is a table the auto-start policy may start on behalf of
// FirstPlayerID.
type WaitingGame struct {
	ID            int64
	FirstPlayerID int64
	Seated        int
}

// LoadHeader reads a game row without its roster and cards.
func (s *GameStore) LoadHeader(ctx context.Context, id int64) (table.Game, error) {
	g, found, err := loadHeader(ctx, s.db, id)
	if err != nil {
		return table.Game{}, err
	}
	if !found {
		return table.Game{}, fmt.Errorf("%w: %d", table.ErrUnknownGame, id)
	}
	return g, nil
}

// LoadGame reads the full game. An id nobody created yet yields
// table.NewGame(id) at version 0.
func (s *GameStore) LoadGame(ctx context.Context, id int64) (table.Game, error) {
	g, found, err := loadHeader(ctx, s.db, id)
	if err != nil || !found {
		return g, err
	}

	if g.Seats, err = s.ListSeated(ctx, id); err != nil {
		return table.Game{}, err
	}
	if g.Cards, err = s.listGameCards(ctx, id); err != nil {
		return table.Game{}, fmt.Errorf("load cards of game %d: %w", id, err)
	}
	return g, nil
}

func loadHeader(ctx context.Context, q querier, id int64) (table.Game, bool, error) {
	g := table.NewGame(id)
	var status, phase string
	err := q.QueryRow(ctx, `
		SELECT status, phase, turn_id, last_claim, claimant, round, version
		FROM games
		WHERE id = $1
	`, id).Scan(&status, &phase, &g.Turn, &g.LastClaim, &g.Claimant, &g.Round, &g.Version)
	if errors.Is(err, pgx.ErrNoRows) {
		return g, false, nil
	}
	if err != nil {
		return table.Game{}, false, fmt.Errorf("load game %d: %w", id, err)
	}
	g.Status = table.Status(status)
	g.Phase = table.Phase(phase)
	return g, true, nil
}

// Apply persists muts, all or nothing, provided the stored game is still at
// version. It fails with table.ErrVersionConflict otherwise. publish runs
// inside the transaction; its error rolls everything back.
func (s *GameStore) Apply(ctx context.Context, gameID, version int64, muts []table.Mutation, publish func() error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := bumpVersion(ctx, tx, gameID, version); err != nil {
		return err
	}
	for _, m := range muts {
		if err := write(ctx, tx, gameID, m); err != nil {
			return err
		}
	}
	if publish != nil {
		if err := publish(); err != nil {
			return fmt.Errorf("publish: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func bumpVersion(ctx context.Context, tx pgx.Tx, gameID, version int64) error {
	var (
		tag pgconn.CommandTag
		err error
	)
	if version == 0 {
		tag, err = tx.Exec(ctx, `
			INSERT INTO games (id, status, phase, version)
			VALUES ($1, 'waiting', 'waiting', 1)
			ON CONFLICT (id) DO NOTHING
		`, gameID)
	} else {
		tag, err = tx.Exec(ctx, `
			UPDATE games SET version = version + 1, updated_at = now()
			WHERE id = $1 AND version = $2
		`, gameID, version)
	}
	if err != nil {
		return fmt.Errorf("lock game %d: %w", gameID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: game %d is past version %d", table.ErrVersionConflict, gameID, version)
	}
	return nil
}

func write(ctx context.Context, tx pgx.Tx, gameID int64, m table.Mutation) error {
	switch m := m.(type) {
	case table.CreateGame:
		return insertDeck(ctx, tx, gameID, m.Deck)
	case table.AddSeat:
		return addSeat(ctx, tx, gameID, m.Seat)
	case table.RemoveSeat:
		return removeSeat(ctx, tx, gameID, m.PlayerID)
	case table.DeleteGame:
		return deleteGame(ctx, tx, gameID)
	case table.SetStatus:
		return setGame(ctx, tx, gameID, "status = $2", string(m.Status))
	case table.SetPhase:
		return setGame(ctx, tx, gameID, "phase = $2", string(m.Phase))
	case table.SetTurn:
		return setGame(ctx, tx, gameID, "turn_id = $2", m.PlayerID)
	case table.SetLastClaim:
		return setGame(ctx, tx, gameID, "last_claim = $2, claimant = $3", m.RankID, m.Claimant)
	case table.SetRound:
		return setGame(ctx, tx, gameID, "round = $2", m.Round)
	case table.DealCards:
		return dealCards(ctx, tx, gameID, m)
	case table.CommitHand:
		return commitHand(ctx, tx, gameID, m.PlayerID)
	case table.ReturnHand:
		return returnHand(ctx, tx, gameID, m.PlayerID)
	case table.ForfeitCard:
		if err := forfeitCard(ctx, tx, gameID, m.CardID); err != nil {
			return err
		}
		return lowerAllowance(ctx, tx, gameID, m.PlayerID)
	case table.ResetPool:
		return resetPool(ctx, tx, gameID, m.Order)
	default:
		return fmt.Errorf("unsupported mutation %T", m)
	}
}

func setGame(ctx context.Context, tx pgx.Tx, gameID int64, set string, args ...any) error {
	if _, err := tx.Exec(ctx, "UPDATE games SET "+set+" WHERE id = $1", append([]any{gameID}, args...)...); err != nil {
		return fmt.Errorf("update game %d (%s): %w", gameID, set, err)
	}
	return nil
}

// deleteGame drops roster and cards but keeps the row as a finished
// tombstone so the id cannot be reused.
func deleteGame(ctx context.Context, tx pgx.Tx, gameID int64) error {
	if _, err := tx.Exec(ctx, `DELETE FROM game_cards WHERE game_id = $1`, gameID); err != nil {
		return fmt.Errorf("delete cards of game %d: %w", gameID, err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM game_players WHERE game_id = $1`, gameID); err != nil {
		return fmt.Errorf("delete players of game %d: %w", gameID, err)
	}
	return setGame(ctx, tx, gameID, "status = 'finished', phase = 'finished', turn_id = 0, claimant = 0")
}

// WaitingGames lists tables with at least minSeats players that nobody has
// touched for idle.
func (s *GameStore) WaitingGames(ctx context.Context, minSeats int, idle time.Duration) ([]WaitingGame, error) {
	rows, err := s.db.Query(ctx, `
		SELECT g.id, (ARRAY_AGG(p.user_id ORDER BY p.position))[1], COUNT(*)
		FROM games g
		JOIN game_players p ON p.game_id = g.id
		WHERE g.status = 'waiting'
		  AND g.updated_at < now() - make_interval(secs => $2)
		GROUP BY g.id
		HAVING COUNT(*) >= $1
		ORDER BY g.id
	`, minSeats, idle.Seconds())
	if err != nil {
		return nil, fmt.Errorf("select waiting games: %w", err)
	}
	defer rows.Close()

	var out []WaitingGame
	for rows.Next() {
		var w WaitingGame
		if err := rows.Scan(&w.ID, &w.FirstPlayerID, &w.Seated); err != nil {
			return nil, fmt.Errorf("scan waiting game: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}
