package comm

import (
	"encoding/json"
	"strconv"

	"github.com/avvvet/bluff-services/internal/table"
)

// WSMessage is the envelope on the websocket and on NATS. SocketId addresses
// a reply to one connection, RoomId fans an event out to a game's room.
// UserId is filled in by the socket service from the socket's init, never
// trusted from the client.
type WSMessage struct {
	Type     string          `json:"type"` // e.g. "init", "claim"
	Data     json.RawMessage `json:"data"`
	SocketId string          `json:"socketid,omitempty"`
	RoomId   string          `json:"roomid,omitempty"`
	UserId   int64           `json:"userid,omitempty"`
}

// Inbound message types, client to game service.
const (
	TypeInit      = "init"
	TypeJoin      = "join"
	TypeLeave     = "leave"
	TypeStart     = "start"
	TypeClaim     = "claim"
	TypeChallenge = "challenge"
	TypeMessage   = "message"

	TypeStatus        = "status"
	TypePlayerCount   = "player-count"
	TypeDeckSize      = "deck-size"
	TypeRoster        = "roster"
	TypeTurnInfo      = "turn-info"
	TypeLastClaimInfo = "last-claim-info"
	TypeHandInfo      = "hand-info"
)

// Direct replies, game service to one socket.
const (
	TypeInitResponse  = "init-response"
	TypeJoinResponse  = "join-response"
	TypeLeaveResponse = "leave-response"
	TypeActionOK      = "action-ok"
	TypeError         = "error"
)

func RoomOf(gameID int64) string {
	return "game:" + strconv.FormatInt(gameID, 10)
}

type InitRequest struct {
	UserId int64  `json:"user_id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

type PlayerData struct {
	Name   string `json:"name"`
	UserId int64  `json:"user_id"`
}

// GameRequest carries the fields any game action may need. CombinationId
// wins over Description when both are set.
type GameRequest struct {
	GameId        int64  `json:"game_id"`
	CombinationId int    `json:"combination_id,omitempty"`
	Description   string `json:"description,omitempty"`
	Text          string `json:"text,omitempty"`
}

// RoomJoined tells the socket service to add (join) or drop (leave) the
// socket from a room.
type RoomJoined struct {
	GameId  int64        `json:"game_id"`
	RoomId  string       `json:"roomid"`
	Players []table.Seat `json:"players,omitempty"`
}

type ActionOK struct {
	GameId int64  `json:"game_id"`
	Action string `json:"action"`
}

type ErrorReply struct {
	Error string `json:"error"`
}

type QueryReply struct {
	GameId int64 `json:"game_id"`
	Value  any   `json:"value"`
}
