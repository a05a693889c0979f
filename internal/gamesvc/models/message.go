package models

import "time"

// Message is a chat line kept in the messages collection until ExpiresAt.
type Message struct {
	GameID    int64     `json:"game_id" bson:"game_id"`
	PlayerID  int64     `json:"player_id" bson:"player_id"`
	Name      string    `json:"name" bson:"name"`
	Text      string    `json:"text" bson:"text"`
	SentAt    time.Time `json:"sent_at" bson:"sent_at"`
	ExpiresAt time.Time `json:"-" bson:"expires_at"`
}
