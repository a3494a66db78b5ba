// internal/game/monitor.go
package game

import "pongd/internal/models"

// The readiness handshake synchronizes remote clients into a lockstep
// simulation start. Each participant walks
// Waiting -> Ready -> InitGame -> PlayingSceneLoaded -> Ended; session-wide
// transitions react to the aggregate of all monitor slots.

// MarkReady moves a participant's monitor to Ready. Called when the
// client joins the session room.
func (s *GameSession) MarkReady(userID int64) error {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	if s.State == StateFinished {
		return ErrInvalidState
	}
	return s.setMonitorLocked(userID, MonitorReady)
}

// AckWaitingDone records that a participant's client finished the
// waiting phase. When every monitor reaches InitGame the session emits a
// gameMonitorStateChanged event and, for bot games, seeds the bot's score
// entry.
func (s *GameSession) AckWaitingDone(userID int64) error {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	if s.State == StateFinished {
		// Late ack after termination, tolerated as a no-op.
		return nil
	}
	if err := s.setMonitorLocked(userID, MonitorInitGame); err != nil {
		return err
	}
	s.syncBotLocked(MonitorInitGame)
	if s.allMonitorsLocked(MonitorInitGame) {
		if s.hasBotLocked() {
			if _, ok := s.Score[models.BotID]; !ok {
				s.Score[models.BotID] = 0
			}
		}
		s.queueEventLocked(EventGameMonitorChanged, map[string]interface{}{
			"state": string(MonitorInitGame),
		})
	}
	return nil
}

// AckSceneLoaded records that a participant's client has loaded the
// playing scene. When every monitor reaches PlayingSceneLoaded the
// session transitions into its playing state; that transition is the
// trigger point for simulation engine instantiation via OnPlaying.
func (s *GameSession) AckSceneLoaded(userID int64) error {
	s.Mu.Lock()
	if s.State == StateFinished {
		s.Mu.Unlock()
		return nil
	}
	if err := s.setMonitorLocked(userID, MonitorPlayingSceneLoaded); err != nil {
		s.Mu.Unlock()
		return err
	}
	s.syncBotLocked(MonitorPlayingSceneLoaded)
	promote := s.allMonitorsLocked(MonitorPlayingSceneLoaded) && s.State == StateWaiting
	var onPlaying func(*GameSession)
	if promote {
		if s.hasBotLocked() {
			s.State = StatePlayingWithBot
		} else {
			s.State = StatePlaying
		}
		s.queueEventLocked(EventGameStateChanged, map[string]interface{}{
			"state": string(s.State),
		})
		onPlaying = s.OnPlaying
	}
	s.Mu.Unlock()

	// The callback runs outside the session lock: it creates and activates
	// the engine, which takes the lock on its own schedule.
	if promote && onPlaying != nil {
		onPlaying(s)
	}
	return nil
}

// AbortReadiness tears down the handshake when a participant disconnects
// before the session reaches its playing state.
func (s *GameSession) AbortReadiness() {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	if s.State != StateWaiting {
		return
	}
	for i := range s.Monitors {
		s.Monitors[i] = MonitorEnded
	}
}

// MonitorFor returns the monitor state for one participant.
func (s *GameSession) MonitorFor(userID int64) (MonitorState, bool) {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	idx := s.participantIndexLocked(userID)
	if idx < 0 {
		return "", false
	}
	return s.Monitors[idx], true
}

func (s *GameSession) setMonitorLocked(userID int64, state MonitorState) error {
	idx := s.participantIndexLocked(userID)
	if idx < 0 {
		return ErrNotParticipant
	}
	s.Monitors[idx] = state
	return nil
}

// syncBotLocked advances the reserved bot monitor alongside whichever
// human triggered a transition; the bot never signals on its own.
func (s *GameSession) syncBotLocked(state MonitorState) {
	idx := s.participantIndexLocked(models.BotID)
	if idx >= 0 {
		s.Monitors[idx] = state
	}
}

func (s *GameSession) allMonitorsLocked(state MonitorState) bool {
	if len(s.Monitors) == 0 {
		return false
	}
	for _, m := range s.Monitors {
		if m != state {
			return false
		}
	}
	return true
}
