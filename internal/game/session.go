// internal/game/session.go
package game

import (
	"sync"

	"github.com/google/uuid"

	"pongd/internal/models"
)

// SessionType determines matchmaking behavior and rule defaults.
type SessionType string

const (
	TypeBot           SessionType = "bot"
	TypeQueueMatch    SessionType = "queue"
	TypeCompetition   SessionType = "competition"
	TypePrivateInvite SessionType = "invite"
)

// SessionState is the session-wide lifecycle state.
type SessionState string

const (
	StateWaiting        SessionState = "waiting"
	StatePlaying        SessionState = "playing"
	StatePlayingWithBot SessionState = "playing_with_bot"
	StateFinished       SessionState = "finished"
)

// MonitorState tracks one participant's readiness handshake.
type MonitorState string

const (
	MonitorWaiting            MonitorState = "waiting"
	MonitorReady              MonitorState = "ready"
	MonitorInitGame           MonitorState = "init_game"
	MonitorPlayingSceneLoaded MonitorState = "playing_scene_loaded"
	MonitorEnded              MonitorState = "ended"
)

// Wire event names. These cross the transport boundary and must be kept
// byte-for-byte compatible with existing clients.
const (
	EventPlayersRetrieved   = "players-retrieved"
	EventViewersRetrieved   = "viewers-retrieved"
	EventPlayerAdded        = "player-added"
	EventViewerAdded        = "viewer-added"
	EventPadMoved           = "padMoved"
	EventBallServed         = "ballServed"
	EventGameStateChanged   = "gameStateChanged"
	EventGameMonitorChanged = "gameMonitorStateChanged"
	EventHostChanged        = "hostChanged"
	EventScoreChanged       = "scoreChanged"
	EventJoinGame           = "joinGame"
)

// Event is one queued (kind, payload) pair awaiting a dispatch flush.
type Event struct {
	Kind    string      `json:"eventName"`
	Payload interface{} `json:"payload"`
}

// GameSession holds the entire state for one match in memory.
// All mutation goes through methods holding Mu; the registry hands out
// pointers but never mutates a session without its lock.
type GameSession struct {
	ID     uuid.UUID
	HostID int64
	Type   SessionType

	// CompetitionID links tournament matches to their bracket, nil otherwise.
	CompetitionID *int64

	// Participants is ordered: index 0 maps to the left paddle, index 1 to
	// the right. Monitors runs parallel to Participants at all times.
	Participants []models.Gamer
	Observers    []models.Gamer
	Monitors     []MonitorState

	Score map[int64]int
	State SessionState
	Rules Rules

	// pendingEvents accumulates state changes between dispatch flushes.
	pendingEvents []Event

	// dispatchMu serializes drain-and-emit cycles. Held across the whole
	// flush so two concurrent flushers (the tick goroutine and a read
	// loop) cannot invert the delivery order of drained batches.
	dispatchMu sync.Mutex

	// OnPlaying fires once when all monitors reach PlayingSceneLoaded and
	// the session transitions into its playing state. Wired by the server
	// to instantiate the simulation engine.
	OnPlaying func(s *GameSession) `json:"-"`

	Mu sync.Mutex
}

// NewGameSession builds a Waiting session with the host as sole participant.
func NewGameSession(t SessionType, host models.Gamer, rules Rules) *GameSession {
	id, _ := uuid.NewRandom()
	host.IsHost = true
	s := &GameSession{
		ID:           id,
		HostID:       host.UserID,
		Type:         t,
		Participants: []models.Gamer{host},
		Observers:    []models.Gamer{},
		Monitors:     []MonitorState{MonitorWaiting},
		Score:        map[int64]int{host.UserID: 0},
		State:        StateWaiting,
		Rules:        rules,
	}
	return s
}

// AddParticipant appends a gamer, keeping Monitors and Score in lockstep.
// Idempotent: re-adding an existing participant only refreshes their
// transient connection id. Returns true if the gamer was newly added.
func (s *GameSession) AddParticipant(g models.Gamer) bool {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	return s.addParticipantLocked(g)
}

func (s *GameSession) addParticipantLocked(g models.Gamer) bool {
	for i := range s.Participants {
		if s.Participants[i].UserID == g.UserID {
			if g.ConnectionID != uuid.Nil {
				s.Participants[i].ConnectionID = g.ConnectionID
			}
			return false
		}
	}
	s.Participants = append(s.Participants, g)
	s.Monitors = append(s.Monitors, MonitorWaiting)
	if _, ok := s.Score[g.UserID]; !ok {
		s.Score[g.UserID] = 0
	}
	s.queueEventLocked(EventPlayerAdded, g)
	return true
}

// RemoveParticipant drops a gamer and their monitor slot. If the host
// leaves and another participant remains, host authority moves to the
// first remaining human and a hostChanged event is queued.
func (s *GameSession) RemoveParticipant(userID int64) bool {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	idx := -1
	for i := range s.Participants {
		if s.Participants[i].UserID == userID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}
	wasHost := s.Participants[idx].IsHost
	s.Participants = append(s.Participants[:idx], s.Participants[idx+1:]...)
	s.Monitors = append(s.Monitors[:idx], s.Monitors[idx+1:]...)
	delete(s.Score, userID)
	if wasHost {
		for i := range s.Participants {
			if s.Participants[i].UserID != models.BotID {
				s.Participants[i].IsHost = true
				s.HostID = s.Participants[i].UserID
				s.queueEventLocked(EventHostChanged, s.Participants[i])
				break
			}
		}
	}
	return true
}

// AddObserver registers a read-only spectator. Observers never affect
// simulation state.
func (s *GameSession) AddObserver(g models.Gamer) bool {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	for i := range s.Observers {
		if s.Observers[i].UserID == g.UserID {
			if g.ConnectionID != uuid.Nil {
				s.Observers[i].ConnectionID = g.ConnectionID
			}
			return false
		}
	}
	s.Observers = append(s.Observers, g)
	s.queueEventLocked(EventViewerAdded, g)
	return true
}

// RemoveObserverByConnection drops a spectator identified by their
// transient connection id. Never touches simulation state.
func (s *GameSession) RemoveObserverByConnection(connID uuid.UUID) bool {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	for i := range s.Observers {
		if s.Observers[i].ConnectionID == connID {
			s.Observers = append(s.Observers[:i], s.Observers[i+1:]...)
			return true
		}
	}
	return false
}

// HasParticipant reports whether userID is an active participant.
func (s *GameSession) HasParticipant(userID int64) bool {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	return s.participantIndexLocked(userID) >= 0
}

func (s *GameSession) participantIndexLocked(userID int64) int {
	for i := range s.Participants {
		if s.Participants[i].UserID == userID {
			return i
		}
	}
	return -1
}

// HasConnection reports whether a participant or observer holds the given
// transient connection id.
func (s *GameSession) HasConnection(connID uuid.UUID) bool {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	for i := range s.Participants {
		if s.Participants[i].ConnectionID == connID {
			return true
		}
	}
	for i := range s.Observers {
		if s.Observers[i].ConnectionID == connID {
			return true
		}
	}
	return false
}

// HasBot reports whether the reserved AI participant is in this session.
func (s *GameSession) HasBot() bool {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	return s.hasBotLocked()
}

func (s *GameSession) hasBotLocked() bool {
	return s.participantIndexLocked(models.BotID) >= 0
}

// IsPlaying reports whether the simulation is (or should be) live.
func (s *GameSession) IsPlaying() bool {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	return s.State == StatePlaying || s.State == StatePlayingWithBot
}

// IsFinished reports whether the session has terminated.
func (s *GameSession) IsFinished() bool {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	return s.State == StateFinished
}

// QueueEvent appends an event to the pending queue. Events are never sent
// inline; they wait for the next dispatch flush.
func (s *GameSession) QueueEvent(kind string, payload interface{}) {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	s.queueEventLocked(kind, payload)
}

func (s *GameSession) queueEventLocked(kind string, payload interface{}) {
	s.pendingEvents = append(s.pendingEvents, Event{Kind: kind, Payload: payload})
}

// DrainEvents atomically takes and clears the pending queue, preserving
// append order. The caller emits the drained events; no event is ever
// emitted twice or dropped between append and drain.
func (s *GameSession) DrainEvents() []Event {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	if len(s.pendingEvents) == 0 {
		return nil
	}
	drained := s.pendingEvents
	s.pendingEvents = nil
	return drained
}

// DispatchPending drains the pending queue and hands each event to emit
// in FIFO order, under the dispatch lock. Emit runs without the session
// lock held, so it may call back into session methods.
func (s *GameSession) DispatchPending(emit func(Event)) {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()
	for _, ev := range s.DrainEvents() {
		emit(ev)
	}
}

// PendingEventCount is used by tests and diagnostics.
func (s *GameSession) PendingEventCount() int {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	return len(s.pendingEvents)
}

// ParticipantsSnapshot returns a copy of the ordered participant list.
func (s *GameSession) ParticipantsSnapshot() []models.Gamer {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	out := make([]models.Gamer, len(s.Participants))
	copy(out, s.Participants)
	return out
}

// ObserversSnapshot returns a copy of the observer list.
func (s *GameSession) ObserversSnapshot() []models.Gamer {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	out := make([]models.Gamer, len(s.Observers))
	copy(out, s.Observers)
	return out
}

// ParticipantByConnection resolves a participant by transient connection
// id.
func (s *GameSession) ParticipantByConnection(connID uuid.UUID) (models.Gamer, bool) {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	for i := range s.Participants {
		if s.Participants[i].ConnectionID == connID {
			return s.Participants[i], true
		}
	}
	return models.Gamer{}, false
}

// ParticipantIDs returns the participant ids in paddle order.
func (s *GameSession) ParticipantIDs() []int64 {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	ids := make([]int64, len(s.Participants))
	for i := range s.Participants {
		ids[i] = s.Participants[i].UserID
	}
	return ids
}

// ScoreSnapshot returns a copy of the score map.
func (s *GameSession) ScoreSnapshot() map[int64]int {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	snap := make(map[int64]int, len(s.Score))
	for k, v := range s.Score {
		snap[k] = v
	}
	return snap
}

// AddPoint increments a participant's score and queues a scoreChanged
// event. Scoring against a finished session is a logged no-op upstream;
// here it is simply rejected so late ticks cannot mutate final results.
func (s *GameSession) AddPoint(userID int64) (int, bool) {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	if s.State == StateFinished {
		return 0, false
	}
	if _, ok := s.Score[userID]; !ok {
		return 0, false
	}
	s.Score[userID]++
	total := s.Score[userID]
	s.queueEventLocked(EventScoreChanged, map[string]interface{}{
		"userId": userID,
		"score":  total,
	})
	return total, true
}

// Finish moves the session to Finished exactly once and queues the
// termination event. Returns false if the session had already finished.
func (s *GameSession) Finish(winnerID *int64, reason string) bool {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	if s.State == StateFinished {
		return false
	}
	s.State = StateFinished
	for i := range s.Monitors {
		s.Monitors[i] = MonitorEnded
	}
	payload := map[string]interface{}{
		"state":  string(StateFinished),
		"reason": reason,
	}
	if winnerID != nil {
		payload["winnerId"] = *winnerID
	}
	s.queueEventLocked(EventGameStateChanged, payload)
	return true
}
