// internal/handlers/game.go
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"pongd/internal/game"
	"pongd/internal/models"
	"pongd/internal/notify"
)

type startGameRequest struct {
	AgainstBot    bool        `json:"againstBot"`
	OpponentID    *int64      `json:"opponentId,omitempty"`
	CompetitionID *int64      `json:"competitionId,omitempty"`
	Username      string      `json:"username"`
	Avatar        string      `json:"avatar"`
	Rules         *game.Rules `json:"rules,omitempty"`
}

type gameResponse struct {
	GameID string            `json:"gameId"`
	Type   game.SessionType  `json:"type"`
	State  game.SessionState `json:"state"`
	Rules  game.Rules        `json:"rules"`
}

func sessionResponse(s *game.GameSession) gameResponse {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	return gameResponse{
		GameID: s.ID.String(),
		Type:   s.Type,
		State:  s.State,
		Rules:  s.Rules,
	}
}

// StartGameHandler creates a new session from the caller's intent: a bot
// match, a direct challenge against a named opponent, or a queue entry.
func (gs *GameServer) StartGameHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, err := authenticateRequest(r)
	if err != nil {
		http.Error(w, "Authentication failed", http.StatusUnauthorized)
		return
	}

	var req startGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	host := models.Gamer{UserID: userID, Username: req.Username, Avatar: req.Avatar, IsHost: true}
	intent := game.StartIntent{
		AgainstBot:    req.AgainstBot,
		OpponentID:    req.OpponentID,
		CompetitionID: req.CompetitionID,
		Rules:         req.Rules,
	}

	s, err := gs.Registry.StartSession(intent, host)
	if err != nil {
		gs.Logger.Warnf("start session failed for user %d: %v", userID, err)
		http.Error(w, "Could not start game", http.StatusInternalServerError)
		return
	}
	gs.trackSession(s)

	if req.OpponentID != nil && !req.AgainstBot {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		gs.Notifier.Notify(ctx, *req.OpponentID, notify.KindChallengeSent, s.ID.String(),
			fmt.Sprintf("%s challenged you to a game", req.Username))
	}

	writeJSON(w, http.StatusCreated, sessionResponse(s))
}

// JoinQueueHandler enters the caller into match-making. When the queue
// already holds a waiting opponent both players are notified of the match.
func (gs *GameServer) JoinQueueHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, err := authenticateRequest(r)
	if err != nil {
		http.Error(w, "Authentication failed", http.StatusUnauthorized)
		return
	}

	var req startGameRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	s, err := gs.Registry.JoinQueue(models.Gamer{UserID: userID, Username: req.Username, Avatar: req.Avatar})
	if err != nil {
		gs.Logger.Warnf("join queue failed for user %d: %v", userID, err)
		http.Error(w, "Could not join queue", http.StatusInternalServerError)
		return
	}
	gs.trackSession(s)

	if ids := s.ParticipantIDs(); len(ids) >= 2 {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		for _, pid := range ids {
			gs.Notifier.Notify(ctx, pid, notify.KindMatchFound, s.ID.String(), "An opponent was found for your game")
		}
	}

	writeJSON(w, http.StatusOK, sessionResponse(s))
}

// AcceptInvitationHandler joins the caller into a session they were
// challenged to.
func (gs *GameServer) AcceptInvitationHandler(w http.ResponseWriter, r *http.Request) {
	gs.respondToInvitation(w, r, true)
}

// RefuseInvitationHandler declines a challenge, dissolving the session
// when only the challenger remains.
func (gs *GameServer) RefuseInvitationHandler(w http.ResponseWriter, r *http.Request) {
	gs.respondToInvitation(w, r, false)
}

type invitationRequest struct {
	GameID   string `json:"gameId"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

func (gs *GameServer) respondToInvitation(w http.ResponseWriter, r *http.Request, accept bool) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, err := authenticateRequest(r)
	if err != nil {
		http.Error(w, "Authentication failed", http.StatusUnauthorized)
		return
	}

	var req invitationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	gameID, err := uuid.Parse(req.GameID)
	if err != nil {
		http.Error(w, "Invalid gameId format", http.StatusBadRequest)
		return
	}

	if accept {
		s, err := gs.Registry.AcceptInvitation(gameID, models.Gamer{UserID: userID, Username: req.Username, Avatar: req.Avatar})
		if err != nil {
			gs.Logger.Warnf("accept invitation failed for user %d on game %s: %v", userID, gameID, err)
			http.Error(w, "Could not accept invitation", http.StatusNotFound)
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		gs.Notifier.Notify(ctx, s.HostID, notify.KindChallengeAccepted, s.ID.String(), "Your challenge was accepted")
		writeJSON(w, http.StatusOK, sessionResponse(s))
		return
	}

	s, ok := gs.Registry.GetSession(gameID)
	if err := gs.Registry.RefuseInvitation(gameID, userID); err != nil {
		gs.Logger.Warnf("refuse invitation failed for user %d on game %s: %v", userID, gameID, err)
		http.Error(w, "Could not refuse invitation", http.StatusNotFound)
		return
	}
	if ok {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		gs.Notifier.Notify(ctx, s.HostID, notify.KindChallengeRejected, gameID.String(), "Your challenge was declined")
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "refused"})
}

// QuitHandler removes the caller from a session they participate in.
func (gs *GameServer) QuitHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, err := authenticateRequest(r)
	if err != nil {
		http.Error(w, "Authentication failed", http.StatusUnauthorized)
		return
	}

	var req invitationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	gameID, err := uuid.Parse(req.GameID)
	if err != nil {
		http.Error(w, "Invalid gameId format", http.StatusBadRequest)
		return
	}

	switch err := gs.quitSession(gameID, userID); err {
	case nil:
		writeJSON(w, http.StatusOK, map[string]string{"status": "quit"})
	case game.ErrSessionNotFound:
		http.Error(w, "Game not found", http.StatusNotFound)
	case game.ErrNotParticipant:
		http.Error(w, "Not a participant of this game", http.StatusForbidden)
	default:
		http.Error(w, "Could not quit game", http.StatusNotFound)
	}
}

// QueueDepthHandler reports how many players currently wait in the queue.
func (gs *GameServer) QueueDepthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"depth": gs.Registry.QueueDepth()})
}
