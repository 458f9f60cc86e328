package duel

import (
	"errors"

	"github.com/peterkuimelis/sanctum/internal/engine"
)

var (
	ErrNoSession       = errors.New("no session in progress")
	ErrGameOver        = errors.New("game is over")
	ErrSessionFatal    = errors.New("session halted by a fatal error; start a new session")
	ErrBusy            = errors.New("another exchange is in flight")
	ErrNotYourTurn     = errors.New("not your turn")
	ErrWrongPhase      = errors.New("wrong phase")
	ErrChoicePending   = errors.New("a choice is pending")
	ErrNoPendingChoice = errors.New("nothing to choose")
	ErrInvalidTarget   = errors.New("invalid target")
	ErrCleanupPending  = errors.New("discard or destroy obligations must be resolved first")

	// Fatal conditions.
	ErrDoubleInterrupt = errors.New("second interrupt on a resubmitted action")
	ErrNoProgress      = errors.New("cleanup counter did not decrease")
	ErrIterationCap    = errors.New("opponent loop hit its iteration cap")
)

// IsFatal reports whether err ends the session.
func IsFatal(err error) bool {
	return engine.IsProtocol(err) ||
		errors.Is(err, ErrDoubleInterrupt) ||
		errors.Is(err, ErrNoProgress) ||
		errors.Is(err, ErrIterationCap)
}

// IsRejection reports whether err is a recoverable refusal: the engine's or
// a local one. The session state is unchanged after a rejection.
func IsRejection(err error) bool {
	if engine.IsRejected(err) {
		return true
	}
	for _, e := range []error{ErrNotYourTurn, ErrWrongPhase, ErrChoicePending, ErrNoPendingChoice, ErrInvalidTarget, ErrCleanupPending, ErrBusy} {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}
