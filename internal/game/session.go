package game

import (
	"errors"
	"sync/atomic"
)

var ErrNilState = errors.New("nil turn state")

// Session pairs an engine session id with its latest snapshot.
type Session struct {
	ID    string
	state atomic.Pointer[TurnState]
}

// NewSession creates a session from the engine's initial snapshot.
func NewSession(id string, initial *TurnState) *Session {
	s := &Session{ID: id}
	s.state.Store(initial)
	return s
}

// Snapshot returns the latest published state.
func (s *Session) Snapshot() *TurnState {
	return s.state.Load()
}

// Replace publishes a new snapshot wholesale and returns the previous one.
func (s *Session) Replace(next *TurnState) (*TurnState, error) {
	if next == nil {
		return nil, ErrNilState
	}
	return s.state.Swap(next), nil
}
