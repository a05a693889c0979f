package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/avvvet/bluff-services/internal/hands"
	"github.com/avvvet/bluff-services/internal/table"
)

// CardStore reads and moves the cards of a game. Every card row has exactly
// one location: deck, hand, pool or out.
type CardStore struct {
	db *pgxpool.Pool
}

func NewCardStore(db *pgxpool.Pool) *CardStore {
	return &CardStore{db: db}
}

func (s *CardStore) CountUndealt(ctx context.Context, gameID int64) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM game_cards
		WHERE game_id = $1 AND location = 'deck'
	`, gameID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count undealt cards of game %d: %w", gameID, err)
	}
	return n, nil
}

func (s *CardStore) CountHand(ctx context.Context, gameID, playerID int64) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM game_cards
		WHERE game_id = $1 AND location = 'hand' AND owner_id = $2
	`, gameID, playerID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count hand of player %d: %w", playerID, err)
	}
	return n, nil
}

func (s *CardStore) ListHand(ctx context.Context, gameID, playerID int64) ([]hands.Card, error) {
	cards, err := listCards(ctx, s.db, `
		SELECT card_id, value, suit, wild, location, owner_id, position
		FROM game_cards
		WHERE game_id = $1 AND location = 'hand' AND owner_id = $2
		ORDER BY card_id
	`, gameID, playerID)
	if err != nil {
		return nil, fmt.Errorf("list hand of player %d: %w", playerID, err)
	}
	out := make([]hands.Card, 0, len(cards))
	for _, c := range cards {
		out = append(out, c.Card)
	}
	return out, nil
}

func (s *CardStore) listGameCards(ctx context.Context, gameID int64) ([]table.Card, error) {
	return listCards(ctx, s.db, `
		SELECT card_id, value, suit, wild, location, owner_id, position
		FROM game_cards
		WHERE game_id = $1
		ORDER BY card_id
	`, gameID)
}

func listCards(ctx context.Context, q querier, sql string, args ...any) ([]table.Card, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cards []table.Card
	for rows.Next() {
		var (
			c        table.Card
			value    int
			suit     string
			location string
		)
		if err := rows.Scan(&c.ID, &value, &suit, &c.Wild, &location, &c.Owner, &c.Position); err != nil {
			return nil, err
		}
		c.Value = hands.Value(value)
		c.Suit = hands.Suit(suit)
		c.Location = table.Location(location)
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

func insertDeck(ctx context.Context, tx pgx.Tx, gameID int64, deck []hands.Card) error {
	cols := []string{"game_id", "card_id", "value", "suit", "wild", "location", "owner_id", "position"}
	_, err := tx.CopyFrom(ctx, pgx.Identifier{"game_cards"}, cols,
		pgx.CopyFromSlice(len(deck), func(i int) ([]any, error) {
			c := deck[i]
			return []any{gameID, c.ID, int(c.Value), string(c.Suit), c.Wild, string(table.InDeck), int64(0), i}, nil
		}))
	if err != nil {
		return fmt.Errorf("insert deck of game %d: %w", gameID, err)
	}
	return nil
}

func dealCards(ctx context.Context, tx pgx.Tx, gameID int64, m table.DealCards) error {
	tag, err := tx.Exec(ctx, `
		UPDATE game_cards SET location = 'hand', owner_id = $3
		WHERE game_id = $1 AND card_id = ANY($2) AND location = 'deck'
	`, gameID, m.CardIDs, m.PlayerID)
	if err != nil {
		return fmt.Errorf("deal to player %d: %w", m.PlayerID, err)
	}
	if int(tag.RowsAffected()) != len(m.CardIDs) {
		return fmt.Errorf("%w: dealt %d of %d cards", table.ErrVersionConflict, tag.RowsAffected(), len(m.CardIDs))
	}
	return nil
}

func commitHand(ctx context.Context, tx pgx.Tx, gameID, playerID int64) error {
	_, err := tx.Exec(ctx, `
		UPDATE game_cards SET location = 'pool'
		WHERE game_id = $1 AND location = 'hand' AND owner_id = $2
	`, gameID, playerID)
	if err != nil {
		return fmt.Errorf("commit hand of player %d: %w", playerID, err)
	}
	return nil
}

// returnHand puts the hand under the deck in card id order.
func returnHand(ctx context.Context, tx pgx.Tx, gameID, playerID int64) error {
	_, err := tx.Exec(ctx, `
		WITH bottom AS (
			SELECT COALESCE(MAX(position) + 1, 0) AS p
			FROM game_cards
			WHERE game_id = $1 AND location = 'deck'
		), held AS (
			SELECT card_id, ROW_NUMBER() OVER (ORDER BY card_id) - 1 AS n
			FROM game_cards
			WHERE game_id = $1 AND location = 'hand' AND owner_id = $2
		)
		UPDATE game_cards c
		SET location = 'deck', owner_id = 0, position = bottom.p + held.n
		FROM bottom, held
		WHERE c.game_id = $1 AND c.card_id = held.card_id
	`, gameID, playerID)
	if err != nil {
		return fmt.Errorf("return hand of player %d: %w", playerID, err)
	}
	return nil
}

func forfeitCard(ctx context.Context, tx pgx.Tx, gameID int64, cardID int) error {
	tag, err := tx.Exec(ctx, `
		UPDATE game_cards SET location = 'out'
		WHERE game_id = $1 AND card_id = $2 AND location <> 'out'
	`, gameID, cardID)
	if err != nil {
		return fmt.Errorf("forfeit card %d: %w", cardID, err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("%w: card %d already out", table.ErrVersionConflict, cardID)
	}
	return nil
}

// resetPool restacks every card still in play in the given order.
func resetPool(ctx context.Context, tx pgx.Tx, gameID int64, order []int) error {
	_, err := tx.Exec(ctx, `
		UPDATE game_cards c
		SET location = 'deck', owner_id = 0, position = o.pos - 1
		FROM unnest($2::int[]) WITH ORDINALITY AS o(card_id, pos)
		WHERE c.game_id = $1 AND c.card_id = o.card_id AND c.location <> 'out'
	`, gameID, order)
	if err != nil {
		return fmt.Errorf("reset pool of game %d: %w", gameID, err)
	}
	return nil
}
