package store

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/avvvet/bluff-services/internal/gamesvc/models"
)

const MessagesCollection = "messages"

// MessageStore archives chat in mongo. Documents expire through the TTL
// index on expires_at.
type MessageStore struct {
	coll *mongo.Collection
}

func NewMessageStore(db *mongo.Database) *MessageStore {
	return &MessageStore{coll: db.Collection(MessagesCollection)}
}

func (s *MessageStore) Append(ctx context.Context, m models.Message) error {
	if _, err := s.coll.InsertOne(ctx, m); err != nil {
		return fmt.Errorf("append message to game %d: %w", m.GameID, err)
	}
	return nil
}

// Recent returns up to limit messages of a game, oldest first.
func (s *MessageStore) Recent(ctx context.Context, gameID int64, limit int) ([]models.Message, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "sent_at", Value: -1}}).
		SetLimit(int64(limit))

	cur, err := s.coll.Find(ctx, bson.M{"game_id": gameID}, opts)
	if err != nil {
		return nil, fmt.Errorf("find messages of game %d: %w", gameID, err)
	}
	defer cur.Close(ctx)

	var out []models.Message
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode messages of game %d: %w", gameID, err)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
