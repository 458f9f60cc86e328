package engine

import (
	"errors"
	"fmt"
	"strings"
)

// ErrStale is returned when the engine reports that the trap being answered
// was already removed or resolved. Callers treat it as a no-op.
var ErrStale = errors.New("pending trap already resolved")

// RejectedError is a structured refusal from the engine: wrong phase, not
// your turn, invalid target, not enough energy. The session is unaffected.
type RejectedError struct {
	Op     string
	Reason string
	Status int
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%s rejected: %s", e.Op, e.Reason)
}

// ProtocolError means the engine answered with something the orchestrator
// cannot continue from, such as a success body without a state.
type ProtocolError struct {
	Op     string
	Detail string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: protocol violation: %s", e.Op, e.Detail)
}

// IsRejected reports whether err is a RejectedError.
func IsRejected(err error) bool {
	var re *RejectedError
	return errors.As(err, &re)
}

// IsProtocol reports whether err is a ProtocolError.
func IsProtocol(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}

func protocolf(op, format string, args ...any) *ProtocolError {
	return &ProtocolError{Op: op, Detail: fmt.Sprintf(format, args...)}
}

// refusal classifies an engine error string.
func refusal(op, reason string, status int) error {
	if op == opActivateTrap {
		lower := strings.ToLower(reason)
		if strings.Contains(lower, "no trap in that slot") || strings.Contains(lower, "already resolved") || strings.Contains(lower, "already removed") {
			return fmt.Errorf("%s: %w", op, ErrStale)
		}
	}
	return &RejectedError{Op: op, Reason: reason, Status: status}
}
