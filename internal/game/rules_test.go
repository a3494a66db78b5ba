// internal/game/rules_test.go
package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pongd/internal/models"
)

func TestEvaluateRulesBelowMax(t *testing.T) {
	v := EvaluateRules(map[int64]int{1: 1, 2: 0}, []int64{1, 2}, DefaultRules())
	assert.False(t, v.Stop)
}

func TestEvaluateRulesMaxScoreReached(t *testing.T) {
	v := EvaluateRules(map[int64]int{1: 2, 2: 1}, []int64{1, 2}, DefaultRules())
	require.True(t, v.Stop)
	assert.Equal(t, int64(1), v.WinnerID)
}

func TestEvaluateRulesTieGoesToFirstParticipant(t *testing.T) {
	score := map[int64]int{1: 2, 2: 2}
	v := EvaluateRules(score, []int64{1, 2}, DefaultRules())
	require.True(t, v.Stop)
	assert.Equal(t, int64(1), v.WinnerID)

	// Participant order decides the tie, not the score map.
	v = EvaluateRules(score, []int64{2, 1}, DefaultRules())
	assert.Equal(t, int64(2), v.WinnerID)
}

func TestEvaluateRulesZeroMaxDisablesTermination(t *testing.T) {
	v := EvaluateRules(map[int64]int{1: 50, 2: 0}, []int64{1, 2}, Rules{MaxScore: 0})
	assert.False(t, v.Stop)
}

func TestScoringFlowTerminatesAtMaxScore(t *testing.T) {
	s := NewGameSession(TypeQueueMatch, models.Gamer{UserID: 1}, DefaultRules())
	s.AddParticipant(models.Gamer{UserID: 2})
	s.DrainEvents()

	total, ok := s.AddPoint(1)
	require.True(t, ok)
	assert.Equal(t, 1, total)
	v := EvaluateRules(s.ScoreSnapshot(), s.ParticipantIDs(), s.Rules)
	assert.False(t, v.Stop)

	total, ok = s.AddPoint(1)
	require.True(t, ok)
	assert.Equal(t, 2, total)
	v = EvaluateRules(s.ScoreSnapshot(), s.ParticipantIDs(), s.Rules)
	require.True(t, v.Stop)
	assert.Equal(t, int64(1), v.WinnerID)

	require.True(t, s.Finish(&v.WinnerID, "max_score_reached"))
	assert.True(t, s.IsFinished())

	events := s.DrainEvents()
	require.Len(t, events, 3)
	assert.Equal(t, EventScoreChanged, events[0].Kind)
	assert.Equal(t, EventScoreChanged, events[1].Kind)
	assert.Equal(t, EventGameStateChanged, events[2].Kind)

	payload, ok := events[2].Payload.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "max_score_reached", payload["reason"])
	assert.Equal(t, int64(1), payload["winnerId"])
}

func TestAddPointRejectedAfterFinish(t *testing.T) {
	s := NewGameSession(TypeQueueMatch, models.Gamer{UserID: 1}, DefaultRules())
	s.AddParticipant(models.Gamer{UserID: 2})
	require.True(t, s.Finish(nil, "player_disconnected"))
	s.DrainEvents()

	_, ok := s.AddPoint(1)
	assert.False(t, ok, "final results must not change after termination")
	assert.Empty(t, s.DrainEvents())

	assert.False(t, s.Finish(nil, "again"), "finish is exactly-once")
}

func TestAddPointUnknownParticipant(t *testing.T) {
	s := NewGameSession(TypeQueueMatch, models.Gamer{UserID: 1}, DefaultRules())
	_, ok := s.AddPoint(999)
	assert.False(t, ok)
}
