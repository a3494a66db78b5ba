// internal/models/gamer.go
package models

import "github.com/google/uuid"

// BotID is the reserved participant id for the built-in AI opponent.
// The bot never opens a connection and never sends readiness signals.
const BotID int64 = 0

// UserType distinguishes active participants from read-only observers.
type UserType string

const (
	UserTypePlayer UserType = "player"
	UserTypeViewer UserType = "viewer"
)

// Gamer is a participant or observer record attached to a game session.
// ConnectionID is transient: it identifies the live websocket connection
// and changes on every reconnect.
type Gamer struct {
	UserID       int64     `json:"userId"`
	Username     string    `json:"username"`
	ConnectionID uuid.UUID `json:"-"`
	Avatar       string    `json:"avatar,omitempty"`
	IsHost       bool      `json:"isHost"`
}

// NewBotGamer returns the reserved AI participant record.
func NewBotGamer() Gamer {
	return Gamer{UserID: BotID, Username: "bot"}
}
