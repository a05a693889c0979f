package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"

	"github.com/avvvet/bluff-services/internal/gamesvc/models"
	"github.com/avvvet/bluff-services/internal/table"
)

const maxMessageLen = 500

var ErrInvalidMessage = errors.New("invalid message")

type MessageService struct {
	messages  MessageRepository
	games     GameReader
	broadcast Broadcaster
	ttl       time.Duration
	now       func() time.Time
}

func NewMessageService(messages MessageRepository, games GameReader, b Broadcaster, ttl time.Duration) *MessageService {
	return &MessageService{messages: messages, games: games, broadcast: b, ttl: ttl, now: time.Now}
}

// Post stores a chat line from a seated player, then shows it to the room.
func (s *MessageService) Post(ctx context.Context, gameID, playerID int64, text string) (models.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" || utf8.RuneCountInString(text) > maxMessageLen {
		return models.Message{}, fmt.Errorf("%w: length must be 1..%d", ErrInvalidMessage, maxMessageLen)
	}

	if _, err := s.games.LoadHeader(ctx, gameID); err != nil {
		return models.Message{}, err
	}
	seats, err := s.games.ListSeated(ctx, gameID)
	if err != nil {
		return models.Message{}, err
	}
	var name string
	seated := false
	for _, st := range seats {
		if st.PlayerID == playerID {
			name, seated = st.Name, true
			break
		}
	}
	if !seated {
		return models.Message{}, fmt.Errorf("%w: %d is not seated at game %d", table.ErrUnknownPlayer, playerID, gameID)
	}

	now := s.now().UTC()
	msg := models.Message{
		GameID:    gameID,
		PlayerID:  playerID,
		Name:      name,
		Text:      text,
		SentAt:    now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.messages.Append(ctx, msg); err != nil {
		log.Errorf("Error [MessageService.Append] %s", err)
		return models.Message{}, err
	}

	err = s.broadcast.Broadcast(table.Event{
		Kind:   table.EventMessagePosted,
		GameID: gameID,
		Payload: table.MessagePosted{
			PlayerID: playerID,
			Name:     name,
			Text:     text,
			SentAt:   now.UnixMilli(),
		},
	})
	if err != nil {
		log.Errorf("Error [MessageService.Broadcast] %s", err)
	}
	return msg, nil
}

func (s *MessageService) History(ctx context.Context, gameID int64, limit int) ([]models.Message, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.messages.Recent(ctx, gameID, limit)
}
