package table

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownGame     = errors.New("unknown game")
	ErrUnknownPlayer   = errors.New("unknown player")
	ErrUnknownAction   = errors.New("unknown action")
	ErrVersionConflict = errors.New("game was modified concurrently")
)

// Rejection reasons reported to the acting player only.
const (
	ReasonTooLow             = "too-low"
	ReasonNotYourTurn        = "not-your-turn"
	ReasonWrongPhase         = "wrong-phase"
	ReasonNothingToChallenge = "nothing-to-challenge"
	ReasonOwnClaim           = "own-claim"
	ReasonAlreadySeated      = "already-seated"
	ReasonTableFull          = "table-full"
	ReasonNotEnoughPlayers   = "not-enough-players"
)

// Rejection is a legal but disallowed action. It never mutates state and is
// never broadcast.
type Rejection struct {
	Action ActionKind
	Reason string
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("%s rejected: %s", r.Action, r.Reason)
}

func reject(kind ActionKind, reason string) error {
	return &Rejection{Action: kind, Reason: reason}
}

// AsRejection unwraps err into a Rejection.
func AsRejection(err error) (*Rejection, bool) {
	var r *Rejection
	if errors.As(err, &r) {
		return r, true
	}
	return nil, false
}
