// internal/game/errors.go
package game

import "errors"

var (
	// ErrSessionNotFound is returned when an operation references a game id
	// that is not (or no longer) in the registry.
	ErrSessionNotFound = errors.New("game session not found")

	// ErrInvalidState is returned when an operation is attempted against a
	// session in the wrong lifecycle state.
	ErrInvalidState = errors.New("invalid session state for operation")

	// ErrNotParticipant is returned when a user acts on a session they are
	// not part of.
	ErrNotParticipant = errors.New("user is not a participant of this session")
)
