package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/avvvet/bluff-services/internal/table"
)

type GamePlayerStore struct {
	db *pgxpool.Pool
}

func NewGamePlayerStore(db *pgxpool.Pool) *GamePlayerStore {
	return &GamePlayerStore{db: db}
}

func (s *GamePlayerStore) CountSeated(ctx context.Context, gameID int64) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM game_players WHERE game_id = $1`, gameID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count players of game %d: %w", gameID, err)
	}
	return n, nil
}

// ListSeated returns the roster in turn order.
func (s *GamePlayerStore) ListSeated(ctx context.Context, gameID int64) ([]table.Seat, error) {
	rows, err := s.db.Query(ctx, `
		SELECT user_id, name, position, allowance
		FROM game_players
		WHERE game_id = $1
		ORDER BY position
	`, gameID)
	if err != nil {
		return nil, fmt.Errorf("list players of game %d: %w", gameID, err)
	}
	defer rows.Close()

	var seats []table.Seat
	for rows.Next() {
		var st table.Seat
		if err := rows.Scan(&st.PlayerID, &st.Name, &st.Position, &st.Allowance); err != nil {
			return nil, err
		}
		seats = append(seats, st)
	}
	return seats, rows.Err()
}

func addSeat(ctx context.Context, tx pgx.Tx, gameID int64, st table.Seat) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO game_players (game_id, user_id, name, position, allowance)
		VALUES ($1, $2, $3, $4, $5)
	`, gameID, st.PlayerID, st.Name, st.Position, st.Allowance)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23503": // foreign_key_violation
				return fmt.Errorf("%w: %d", table.ErrUnknownPlayer, st.PlayerID)
			case "23505": // unique_violation
				return fmt.Errorf("%w: %d already seated", table.ErrVersionConflict, st.PlayerID)
			}
		}
		return fmt.Errorf("seat player %d: %w", st.PlayerID, err)
	}
	return nil
}

func removeSeat(ctx context.Context, tx pgx.Tx, gameID, playerID int64) error {
	_, err := tx.Exec(ctx, `DELETE FROM game_players WHERE game_id = $1 AND user_id = $2`, gameID, playerID)
	if err != nil {
		return fmt.Errorf("remove player %d: %w", playerID, err)
	}
	return nil
}

func lowerAllowance(ctx context.Context, tx pgx.Tx, gameID, playerID int64) error {
	_, err := tx.Exec(ctx, `
		UPDATE game_players SET allowance = GREATEST(allowance - 1, 0)
		WHERE game_id = $1 AND user_id = $2
	`, gameID, playerID)
	if err != nil {
		return fmt.Errorf("lower allowance of player %d: %w", playerID, err)
	}
	return nil
}
