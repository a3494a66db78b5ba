// internal/game/registry.go
package game

import (
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"pongd/internal/models"
)

// StartIntent describes how a caller wants a session to come into being.
// Exactly one branch applies: bot opponent, a directly challenged
// opponent, or anonymous queue matchmaking.
type StartIntent struct {
	AgainstBot    bool
	OpponentID    *int64
	CompetitionID *int64
	Rules         *Rules
}

// Registry is the single source of truth mapping gameId -> *GameSession.
// It owns session lifecycle; nothing else creates or deletes sessions.
// Constructed explicitly at process start so tests can run independent
// registries side by side.
type Registry struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*GameSession
	log      *logrus.Logger
}

// NewRegistry returns an empty registry.
func NewRegistry(log *logrus.Logger) *Registry {
	if log == nil {
		log = logrus.New()
	}
	return &Registry{
		sessions: make(map[uuid.UUID]*GameSession),
		log:      log,
	}
}

// StartSession resolves a start intent into a session. Bot and invite
// intents always create; queue intent reuses an open queue session when
// one exists.
func (r *Registry) StartSession(intent StartIntent, host models.Gamer) (*GameSession, error) {
	rules := DefaultRules()
	if intent.Rules != nil {
		rules = *intent.Rules
	}

	switch {
	case intent.AgainstBot:
		s := NewGameSession(TypeBot, host, rules)
		s.AddParticipant(models.NewBotGamer())
		r.add(s)
		r.log.WithFields(logrus.Fields{"gameId": s.ID, "hostId": host.UserID}).Info("bot session created")
		return s, nil

	case intent.OpponentID != nil:
		t := TypePrivateInvite
		if intent.CompetitionID != nil {
			t = TypeCompetition
		}
		s := NewGameSession(t, host, rules)
		s.CompetitionID = intent.CompetitionID
		r.add(s)
		r.log.WithFields(logrus.Fields{
			"gameId":     s.ID,
			"hostId":     host.UserID,
			"opponentId": *intent.OpponentID,
		}).Info("invite session created")
		return s, nil

	default:
		return r.JoinQueue(host)
	}
}

// JoinQueue matches the user against the first open queue session, or
// creates a fresh Waiting session with them as sole participant. No
// priority ordering is applied; first found wins. The whole find-and-add
// runs under the registry lock: two concurrent joins can never both
// observe the same open slot, so a queue session holds at most two
// participants.
func (r *Registry) JoinQueue(user models.Gamer) (*GameSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		s.Mu.Lock()
		open := s.Type == TypeQueueMatch && s.State == StateWaiting &&
			len(s.Participants) == 1 && s.participantIndexLocked(user.UserID) < 0
		if open {
			user.IsHost = false
			s.addParticipantLocked(user)
			s.Mu.Unlock()
			r.log.WithFields(logrus.Fields{"gameId": s.ID, "userId": user.UserID}).Info("queue session matched")
			return s, nil
		}
		s.Mu.Unlock()
	}
	s := NewGameSession(TypeQueueMatch, user, DefaultRules())
	r.sessions[s.ID] = s
	r.log.WithFields(logrus.Fields{"gameId": s.ID, "userId": user.UserID}).Info("queue session opened")
	return s, nil
}

// AcceptInvitation adds the user to an invite session. Idempotent: an
// already-joined user is left untouched.
func (r *Registry) AcceptInvitation(gameID uuid.UUID, user models.Gamer) (*GameSession, error) {
	s, ok := r.GetSession(gameID)
	if !ok {
		return nil, ErrSessionNotFound
	}
	user.IsHost = false
	s.AddParticipant(user)
	return s, nil
}

// RefuseInvitation removes the user; if exactly one participant remains
// afterward the session is deleted, since an invitation with no
// acceptance cannot proceed.
func (r *Registry) RefuseInvitation(gameID uuid.UUID, userID int64) error {
	s, ok := r.GetSession(gameID)
	if !ok {
		return ErrSessionNotFound
	}
	s.RemoveParticipant(userID)

	s.Mu.Lock()
	remaining := len(s.Participants)
	s.Mu.Unlock()
	if remaining <= 1 {
		r.Delete(gameID)
		r.log.WithField("gameId", gameID).Info("session deleted after refused invitation")
	}
	return nil
}

// Quit removes a participant without the refuse-time auto-delete.
func (r *Registry) Quit(gameID uuid.UUID, userID int64) error {
	s, ok := r.GetSession(gameID)
	if !ok {
		return ErrSessionNotFound
	}
	if !s.RemoveParticipant(userID) {
		return ErrNotParticipant
	}
	return nil
}

// GetSession looks a session up by game id.
func (r *Registry) GetSession(gameID uuid.UUID) (*GameSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[gameID]
	return s, ok
}

// GetSessionByConnectionID resolves the session holding a live
// connection id, or nil.
func (r *Registry) GetSessionByConnectionID(connID uuid.UUID) *GameSession {
	for _, s := range r.snapshot() {
		if s.HasConnection(connID) {
			return s
		}
	}
	return nil
}

// FindSessionsForUser returns every session the user participates in.
func (r *Registry) FindSessionsForUser(userID int64) []*GameSession {
	var out []*GameSession
	for _, s := range r.snapshot() {
		if s.HasParticipant(userID) {
			out = append(out, s)
		}
	}
	return out
}

// FindAvailableQueueSession returns the first queue session still waiting
// on a second participant, or nil.
func (r *Registry) FindAvailableQueueSession() *GameSession {
	for _, s := range r.snapshot() {
		s.Mu.Lock()
		open := s.Type == TypeQueueMatch && s.State == StateWaiting && len(s.Participants) == 1
		s.Mu.Unlock()
		if open {
			return s
		}
	}
	return nil
}

// QueueDepth counts queue sessions awaiting a match.
func (r *Registry) QueueDepth() int {
	depth := 0
	for _, s := range r.snapshot() {
		s.Mu.Lock()
		if s.Type == TypeQueueMatch && s.State == StateWaiting && len(s.Participants) == 1 {
			depth++
		}
		s.Mu.Unlock()
	}
	return depth
}

// CleanFinished purges all Finished sessions and returns the ids that
// were removed. Driven by the server's periodic sweeper, never by the
// registry itself.
func (r *Registry) CleanFinished() []uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	var removed []uuid.UUID
	for id, s := range r.sessions {
		if s.IsFinished() {
			delete(r.sessions, id)
			removed = append(removed, id)
		}
	}
	if len(removed) > 0 {
		r.log.WithField("removed", len(removed)).Debug("purged finished sessions")
	}
	return removed
}

// Delete removes a session outright. Used by the refuse/abort paths.
func (r *Registry) Delete(gameID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, gameID)
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *Registry) add(s *GameSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = s
}

// snapshot copies the session pointers so scans do not hold the map lock
// while taking per-session locks.
func (r *Registry) snapshot() []*GameSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*GameSession, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}
