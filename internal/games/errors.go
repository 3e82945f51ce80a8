package games

import (
	"errors"
	"fmt"

	"github.com/vntrieu/voidthreat/internal/roles"
)

var (
	ErrInvalidPlayerCount = errors.New("invalid player count")
	ErrInvalidTransition  = errors.New("invalid phase transition")
	ErrUnknownRole        = roles.ErrUnknownRole
	ErrDayImmune          = errors.New("target cannot be eliminated today")
	ErrGameFinished       = errors.New("game already finished")
	ErrNotModerator       = errors.New("only the moderator can do that")
	ErrNotInGame          = errors.New("player not in game")
	ErrNotStarted         = errors.New("game not started")
	ErrInvalidMove        = errors.New("invalid move")
)

// ActionValidationError is recorded for a single rejected night action.
// It never aborts resolution of the remaining actions.
type ActionValidationError struct {
	ActorID string           `json:"actor_id"`
	Kind    roles.ActionKind `json:"kind"`
	Reason  string           `json:"reason"`
}

func (e *ActionValidationError) Error() string {
	return fmt.Sprintf("action %s by %s: %s", e.Kind, e.ActorID, e.Reason)
}

func invalid(a NightAction, format string, args ...interface{}) *ActionValidationError {
	return &ActionValidationError{ActorID: a.ActorID, Kind: a.Kind, Reason: fmt.Sprintf(format, args...)}
}
