// internal/handlers/game_server.go
package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"pongd/internal/database"
	"pongd/internal/game"
	"pongd/internal/models"
	"pongd/internal/notify"
)

// GameServer ties the session registry, the per-session rooms and the
// simulation engines together. It owns engine lifecycle: engines come
// into existence when a session's monitors sync to PlayingSceneLoaded and
// are stopped exactly once on the Finished transition.
type GameServer struct {
	Registry *game.Registry
	Rooms    *RoomStore
	Notifier *notify.Notifier
	Logger   *logrus.Logger

	mu      sync.Mutex
	engines map[uuid.UUID]*game.Engine
	tracked map[uuid.UUID]bool
}

// NewGameServer wires a server around a fresh registry.
func NewGameServer(logger *logrus.Logger, notifier *notify.Notifier) *GameServer {
	if logger == nil {
		logger = logrus.New()
	}
	return &GameServer{
		Registry: game.NewRegistry(logger),
		Rooms:    NewRoomStore(logger),
		Notifier: notifier,
		Logger:   logger,
		engines:  make(map[uuid.UUID]*game.Engine),
		tracked:  make(map[uuid.UUID]bool),
	}
}

// trackSession hooks server-side lifecycle onto a session the first time
// it is seen: engine instantiation on the Playing transition and the
// fire-and-forget persistence of the new game row.
func (gs *GameServer) trackSession(s *game.GameSession) {
	gs.mu.Lock()
	if gs.tracked[s.ID] {
		gs.mu.Unlock()
		return
	}
	gs.tracked[s.ID] = true
	gs.mu.Unlock()

	s.Mu.Lock()
	s.OnPlaying = gs.startEngine
	competitionID := s.CompetitionID
	s.Mu.Unlock()

	participants := s.ParticipantsSnapshot()
	observers := s.ObserversSnapshot()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := database.CreateGame(ctx, s.ID, participants, observers, competitionID); err != nil {
			gs.Logger.Warnf("failed to persist game %s: %v", s.ID, err)
		}
	}()
}

// startEngine is the OnPlaying hook: builds the engine for a session
// that just reached its playing state, wires its callbacks and starts
// the tick loop.
func (gs *GameServer) startEngine(s *game.GameSession) {
	e := game.NewEngine(s.ID, s.ParticipantsSnapshot(), gs.Logger)
	e.ScoresFn = s.ScoreSnapshot
	e.OnScore = func(winnerID int64) { gs.handleScore(s, winnerID) }
	e.EmitFn = func(delta map[string]interface{}) {
		s.QueueEvent(game.EventGameStateChanged, delta)
		gs.Flush(s)
	}

	gs.mu.Lock()
	gs.engines[s.ID] = e
	gs.mu.Unlock()

	e.Activate()
	gs.Flush(s)
}

// EngineFor returns the live engine bound to a session, or nil.
func (gs *GameServer) EngineFor(gameID uuid.UUID) *game.Engine {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	return gs.engines[gameID]
}

// handleScore runs on every scoring event: apply the point, then hand
// the score map to the rule evaluator, which may terminate the session.
func (gs *GameServer) handleScore(s *game.GameSession, winnerID int64) {
	if _, ok := s.AddPoint(winnerID); !ok {
		// Late score against a finished session; tolerated as a no-op.
		gs.Logger.Debugf("ignored score for user %d on session %s", winnerID, s.ID)
		return
	}
	verdict := game.EvaluateRules(s.ScoreSnapshot(), s.ParticipantIDs(), s.Rules)
	if verdict.Stop {
		w := verdict.WinnerID
		gs.FinishSession(s, &w, "max_score_reached")
		return
	}
	gs.Flush(s)
}

// FinishSession moves a session to Finished exactly once, stops its
// engine, and writes win/loss history for every non-bot participant via
// the persistence collaborator. History failures are logged, never
// propagated into the simulation path.
func (gs *GameServer) FinishSession(s *game.GameSession, winnerID *int64, reason string) {
	if !s.Finish(winnerID, reason) {
		return
	}

	gs.mu.Lock()
	e := gs.engines[s.ID]
	delete(gs.engines, s.ID)
	gs.mu.Unlock()
	if e != nil {
		e.Stop()
	}

	participants := s.ParticipantsSnapshot()
	gameID := s.ID
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		for _, p := range participants {
			if p.UserID == models.BotID {
				continue
			}
			event := "Game terminated"
			if winnerID != nil {
				if p.UserID == *winnerID {
					event = "Game won"
				} else {
					event = "Game lost"
				}
			}
			if err := database.AddHistoryEntry(ctx, event, p.UserID, gameID); err != nil {
				gs.Logger.Warnf("failed to write history for user %d on game %s: %v", p.UserID, gameID, err)
			}
		}
		if err := database.UpdateGameWinner(ctx, gameID, winnerID); err != nil {
			gs.Logger.Warnf("failed to record winner for game %s: %v", gameID, err)
		}
	}()

	gs.Flush(s)
	gs.Logger.WithFields(logrus.Fields{"gameId": s.ID, "reason": reason}).Info("session finished")
}

// Flush drains the session's pending event queue and emits each entry to
// the session's room in FIFO order. Called once per inbound client
// message handled and once per simulation tick; the session's dispatch
// lock keeps concurrent flushers from reordering drained batches.
func (gs *GameServer) Flush(s *game.GameSession) {
	s.DispatchPending(func(ev game.Event) {
		gs.Rooms.Room(s.ID).Emit(ev.Kind, ev.Payload)
	})
}

// HandleDisconnect processes a dropped connection. An observer drop only
// frees its room slot. For a participant, before the playing state the
// readiness cycle is aborted and the slot freed; during play the session
// ends with a termination event, not a crash.
func (gs *GameServer) HandleDisconnect(connID uuid.UUID) {
	s := gs.Registry.GetSessionByConnectionID(connID)
	if s == nil {
		return
	}
	gs.Rooms.Room(s.ID).Leave(connID)

	p, isParticipant := s.ParticipantByConnection(connID)
	if !isParticipant {
		// Read-only spectator: leaving never touches simulation state.
		s.RemoveObserverByConnection(connID)
		return
	}

	if s.IsFinished() {
		return
	}
	if s.IsPlaying() {
		gs.FinishSession(s, nil, "player_disconnected")
		return
	}

	// Still in the readiness cycle: drop the participant and abort.
	s.AbortReadiness()
	s.RemoveParticipant(p.UserID)
	if gs.deleteIfNoHumans(s, "session deleted after last player disconnected") {
		return
	}
	gs.Flush(s)
}

// quitSession removes a user from a session. Only a participant may quit:
// during play their quit terminates the match, before play it just frees
// the slot and dissolves the session once no human remains.
func (gs *GameServer) quitSession(gameID uuid.UUID, userID int64) error {
	s, ok := gs.Registry.GetSession(gameID)
	if !ok {
		return game.ErrSessionNotFound
	}
	if !s.HasParticipant(userID) {
		return game.ErrNotParticipant
	}
	if s.IsPlaying() {
		gs.FinishSession(s, nil, "player_quit")
		return nil
	}
	if err := gs.Registry.Quit(gameID, userID); err != nil {
		return err
	}
	if gs.deleteIfNoHumans(s, "session deleted after last player quit") {
		return nil
	}
	gs.Flush(s)
	return nil
}

// deleteIfNoHumans drops a non-finished session that no human occupies
// anymore. A bot alone cannot carry a session.
func (gs *GameServer) deleteIfNoHumans(s *game.GameSession, logMsg string) bool {
	for _, id := range s.ParticipantIDs() {
		if id != models.BotID {
			return false
		}
	}
	gs.Registry.Delete(s.ID)
	gs.Rooms.Delete(s.ID)
	gs.Logger.WithField("gameId", s.ID).Info(logMsg)
	return true
}

// SweepFinished runs the registry purge and tears down the rooms of the
// removed sessions. Driven by the periodic scheduler in main.
func (gs *GameServer) SweepFinished() {
	gs.mu.Lock()
	stale := make([]uuid.UUID, 0)
	for id, e := range gs.engines {
		if e.Stopped() {
			stale = append(stale, id)
		}
	}
	for _, id := range stale {
		delete(gs.engines, id)
	}
	gs.mu.Unlock()

	removed := gs.Registry.CleanFinished()
	for _, id := range removed {
		gs.Rooms.Delete(id)
	}
	if len(removed) > 0 {
		gs.Logger.Infof("swept %d finished session(s)", len(removed))
	}
}
