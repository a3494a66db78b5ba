// internal/game/monitor_test.go
package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pongd/internal/models"
)

func newBotSession(t *testing.T) *GameSession {
	t.Helper()
	host := models.Gamer{UserID: 7, Username: "host"}
	s := NewGameSession(TypeBot, host, DefaultRules())
	require.True(t, s.AddParticipant(models.NewBotGamer()))
	s.DrainEvents() // discard setup events
	return s
}

func TestBotSessionReadinessFlow(t *testing.T) {
	s := newBotSession(t)

	var started *GameSession
	s.OnPlaying = func(gs *GameSession) { started = gs }

	require.NoError(t, s.MarkReady(7))
	state, ok := s.MonitorFor(7)
	require.True(t, ok)
	assert.Equal(t, MonitorReady, state)

	// The bot never signals on its own; it must still be Waiting until a
	// human transition drags it along.
	botState, ok := s.MonitorFor(models.BotID)
	require.True(t, ok)
	assert.Equal(t, MonitorWaiting, botState)

	require.NoError(t, s.AckWaitingDone(7))
	botState, _ = s.MonitorFor(models.BotID)
	assert.Equal(t, MonitorInitGame, botState)

	// All monitors at InitGame: the aggregate event is queued and the bot's
	// score entry exists.
	events := s.DrainEvents()
	require.Len(t, events, 1)
	assert.Equal(t, EventGameMonitorChanged, events[0].Kind)
	assert.Contains(t, s.ScoreSnapshot(), models.BotID)

	require.NoError(t, s.AckSceneLoaded(7))
	assert.True(t, s.IsPlaying())
	assert.Equal(t, StatePlayingWithBot, s.State)
	require.NotNil(t, started)
	assert.Equal(t, s.ID, started.ID)

	events = s.DrainEvents()
	require.Len(t, events, 1)
	assert.Equal(t, EventGameStateChanged, events[0].Kind)
}

func TestTwoPlayerReadinessRequiresBoth(t *testing.T) {
	s := NewGameSession(TypeQueueMatch, models.Gamer{UserID: 1}, DefaultRules())
	s.AddParticipant(models.Gamer{UserID: 2})
	s.DrainEvents()

	fired := false
	s.OnPlaying = func(*GameSession) { fired = true }

	require.NoError(t, s.AckWaitingDone(1))
	assert.Empty(t, s.DrainEvents(), "aggregate event must wait for the second player")

	require.NoError(t, s.AckWaitingDone(2))
	events := s.DrainEvents()
	require.Len(t, events, 1)
	assert.Equal(t, EventGameMonitorChanged, events[0].Kind)

	require.NoError(t, s.AckSceneLoaded(1))
	assert.False(t, s.IsPlaying())
	assert.False(t, fired)

	require.NoError(t, s.AckSceneLoaded(2))
	assert.True(t, s.IsPlaying())
	assert.Equal(t, StatePlaying, s.State)
	assert.True(t, fired)
}

func TestLateAcksAfterFinishAreNoOps(t *testing.T) {
	s := newBotSession(t)
	require.True(t, s.Finish(nil, "player_disconnected"))
	s.DrainEvents()

	assert.NoError(t, s.AckWaitingDone(7))
	assert.NoError(t, s.AckSceneLoaded(7))
	assert.Empty(t, s.DrainEvents())
	assert.True(t, s.IsFinished())
	assert.ErrorIs(t, s.MarkReady(7), ErrInvalidState)
}

func TestAckFromNonParticipantRejected(t *testing.T) {
	s := newBotSession(t)
	assert.ErrorIs(t, s.AckWaitingDone(999), ErrNotParticipant)
	assert.ErrorIs(t, s.AckSceneLoaded(999), ErrNotParticipant)
}

func TestAbortReadinessOnlyWhileWaiting(t *testing.T) {
	s := newBotSession(t)
	s.AbortReadiness()
	m, _ := s.MonitorFor(7)
	assert.Equal(t, MonitorEnded, m)

	// A session that reached its playing state is not affected.
	s2 := newBotSession(t)
	require.NoError(t, s2.AckSceneLoaded(7))
	require.True(t, s2.IsPlaying())
	s2.AbortReadiness()
	m, _ = s2.MonitorFor(7)
	assert.Equal(t, MonitorPlayingSceneLoaded, m)
}
