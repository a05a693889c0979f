package table

import "github.com/avvvet/bluff-services/internal/hands"

type EventKind string

const (
	EventRosterChanged  EventKind = "roster-changed"
	EventRoundStarted   EventKind = "round-started"
	EventTurnAdvanced   EventKind = "turn-advanced"
	EventRoundResolved  EventKind = "round-resolved"
	EventGameFinished   EventKind = "game-finished"
	EventMessagePosted  EventKind = "message-posted"
	EventClaimRejected  EventKind = "claim-rejected"
	EventActionRejected EventKind = "action-rejected"
)

// Event is emitted to every socket in the game's room.
type Event struct {
	Kind    EventKind
	GameID  int64
	Payload any
}

type RosterChanged struct {
	Players  []Seat `json:"players"`
	JoinedID int64  `json:"joined_id,omitempty"`
	LeftID   int64  `json:"left_id,omitempty"`
	TurnID   int64  `json:"turn_id"`
}

type RoundStarted struct {
	Round        int   `json:"round"`
	TurnPlayerID int64 `json:"turn_player_id"`
}

type TurnAdvanced struct {
	ClaimerID     int64  `json:"claimer_id"`
	CombinationID int    `json:"combination_id"`
	Description   string `json:"description"`
	NextPlayerID  int64  `json:"next_player_id"`
}

type RoundResolved struct {
	// BluffExisted reports whether the called hand was present in the pool.
	BluffExisted  bool         `json:"bluff_existed"`
	LoserPlayerID int64        `json:"loser_player_id"`
	NextPlayerID  int64        `json:"next_player_id"`
	ClaimerID     int64        `json:"claimer_id"`
	ChallengerID  int64        `json:"challenger_id"`
	CombinationID int          `json:"combination_id"`
	Description   string       `json:"description"`
	Revealed      []hands.Card `json:"revealed"`
	Forfeited     *hands.Card  `json:"forfeited,omitempty"`
	Round         int          `json:"round"`
}

type GameFinished struct {
	LastPlayerID int64 `json:"last_player_id"`
}

type MessagePosted struct {
	PlayerID int64  `json:"player_id"`
	Name     string `json:"name"`
	Text     string `json:"text"`
	SentAt   int64  `json:"sent_at"`
}

// Rejected is the reply payload for a Rejection.
type Rejected struct {
	Action ActionKind `json:"action"`
	Reason string     `json:"reason"`
}

// RejectionEvent maps a rejection to the reply sent to the acting player.
func RejectionEvent(gameID int64, r *Rejection) Event {
	kind := EventActionRejected
	if r.Action == ActionClaim {
		kind = EventClaimRejected
	}
	return Event{Kind: kind, GameID: gameID, Payload: Rejected{Action: r.Action, Reason: r.Reason}}
}
