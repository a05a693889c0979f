package models

import "github.com/avvvet/bluff-services/internal/table"

// GameSnapshot is the public view of a game. Private hands are reduced to
// a count.
type GameSnapshot struct {
	ID          int64          `json:"id"`
	Status      table.Status   `json:"status"`
	Phase       table.Phase    `json:"phase"`
	Round       int            `json:"round"`
	TurnID      int64          `json:"turn_id"`
	LastClaim   int            `json:"last_claim"`
	Description string         `json:"description"`
	ClaimantID  int64          `json:"claimant_id"`
	DeckSize    int            `json:"deck_size"`
	Players     []PlayerStatus `json:"players"`
}

type PlayerStatus struct {
	PlayerID  int64  `json:"player_id"`
	Name      string `json:"name"`
	Position  int    `json:"position"`
	Allowance int    `json:"allowance"`
	HandCount int    `json:"hand_count"`
}

type StatusInfo struct {
	GameID int64        `json:"game_id"`
	Status table.Status `json:"status"`
	Phase  table.Phase  `json:"phase"`
	Round  int          `json:"round"`
}

type TurnInfo struct {
	GameID       int64 `json:"game_id"`
	TurnPlayerID int64 `json:"turn_player_id"`
	Round        int   `json:"round"`
}

type LastClaimInfo struct {
	GameID        int64  `json:"game_id"`
	CombinationID int    `json:"combination_id"`
	Description   string `json:"description"`
	ClaimantID    int64  `json:"claimant_id"`
}
