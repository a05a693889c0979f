package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/avvvet/bluff-services/internal/gamesvc/models"
	"github.com/avvvet/bluff-services/internal/table"
)

type UserStore struct {
	db *pgxpool.Pool
}

func NewUserStore(db *pgxpool.Pool) *UserStore {
	return &UserStore{db: db}
}

func (r *UserStore) CreateUser(ctx context.Context, user models.User) (int64, error) {
	var userId int64

	query := `
        INSERT INTO users (user_id, name, avatar, status)
        VALUES ($1, $2, $3, $4)
        RETURNING user_id;
    `

	err := r.db.QueryRow(ctx, query, user.UserId, user.Name, user.Avatar, user.Status).Scan(&userId)
	if err != nil {
		return 0, fmt.Errorf("could not create user: %w", err)
	}

	return userId, nil
}

// GetByID fails with table.ErrUnknownPlayer when no such user exists.
func (r *UserStore) GetByID(ctx context.Context, id int64) (*models.User, error) {
	row := r.db.QueryRow(ctx, `
        SELECT user_id, name, avatar, status, created_at, updated_at
        FROM users
        WHERE user_id = $1
    `, id)

	u := &models.User{}
	err := row.Scan(
		&u.UserId,
		&u.Name,
		&u.Avatar,
		&u.Status,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", table.ErrUnknownPlayer, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}

	return u, nil
}
