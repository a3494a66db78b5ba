// internal/game/registry_test.go
package game

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pongd/internal/models"
)

func TestQueueMatchesTwoPlayersIntoOneSession(t *testing.T) {
	r := NewRegistry(nil)

	s1, err := r.JoinQueue(models.Gamer{UserID: 1, Username: "alice"})
	require.NoError(t, err)
	assert.Equal(t, 1, r.QueueDepth())

	s2, err := r.JoinQueue(models.Gamer{UserID: 2, Username: "bob"})
	require.NoError(t, err)

	assert.Equal(t, s1.ID, s2.ID, "second queue entrant must land in the open session")
	assert.Equal(t, 1, r.Len())
	assert.Equal(t, 0, r.QueueDepth(), "a full session no longer counts as queued")
	assert.Equal(t, []int64{1, 2}, s1.ParticipantIDs())

	// Monitors stay in lockstep with participants.
	s1.Mu.Lock()
	assert.Equal(t, len(s1.Participants), len(s1.Monitors))
	s1.Mu.Unlock()
}

func TestJoinQueueIgnoresOwnOpenSession(t *testing.T) {
	r := NewRegistry(nil)
	s1, err := r.JoinQueue(models.Gamer{UserID: 1})
	require.NoError(t, err)
	s2, err := r.JoinQueue(models.Gamer{UserID: 1})
	require.NoError(t, err)
	assert.NotEqual(t, s1.ID, s2.ID, "a player cannot be matched against themselves")
}

func TestStartSessionAgainstBot(t *testing.T) {
	r := NewRegistry(nil)
	s, err := r.StartSession(StartIntent{AgainstBot: true}, models.Gamer{UserID: 5})
	require.NoError(t, err)

	assert.Equal(t, TypeBot, s.Type)
	assert.True(t, s.HasBot())
	assert.Equal(t, []int64{5, models.BotID}, s.ParticipantIDs())
	assert.Equal(t, 0, r.QueueDepth(), "bot sessions never enter the queue")
}

func TestStartSessionInviteAndCompetition(t *testing.T) {
	r := NewRegistry(nil)
	opp := int64(9)

	s, err := r.StartSession(StartIntent{OpponentID: &opp}, models.Gamer{UserID: 5})
	require.NoError(t, err)
	assert.Equal(t, TypePrivateInvite, s.Type)

	comp := int64(42)
	s2, err := r.StartSession(StartIntent{OpponentID: &opp, CompetitionID: &comp}, models.Gamer{UserID: 6})
	require.NoError(t, err)
	assert.Equal(t, TypeCompetition, s2.Type)
	require.NotNil(t, s2.CompetitionID)
	assert.Equal(t, comp, *s2.CompetitionID)
}

func TestAcceptInvitationIdempotent(t *testing.T) {
	r := NewRegistry(nil)
	opp := int64(9)
	s, err := r.StartSession(StartIntent{OpponentID: &opp}, models.Gamer{UserID: 5})
	require.NoError(t, err)

	_, err = r.AcceptInvitation(s.ID, models.Gamer{UserID: 9})
	require.NoError(t, err)
	_, err = r.AcceptInvitation(s.ID, models.Gamer{UserID: 9})
	require.NoError(t, err)
	assert.Equal(t, []int64{5, 9}, s.ParticipantIDs())

	_, err = r.AcceptInvitation(uuid.New(), models.Gamer{UserID: 9})
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRefuseInvitationDissolvesSession(t *testing.T) {
	r := NewRegistry(nil)
	opp := int64(9)
	s, err := r.StartSession(StartIntent{OpponentID: &opp}, models.Gamer{UserID: 5})
	require.NoError(t, err)

	require.NoError(t, r.RefuseInvitation(s.ID, 9))
	_, ok := r.GetSession(s.ID)
	assert.False(t, ok, "refused invitation with a lone host left must dissolve")
}

func TestQuitReassignsHost(t *testing.T) {
	r := NewRegistry(nil)
	s, err := r.JoinQueue(models.Gamer{UserID: 1})
	require.NoError(t, err)
	_, err = r.JoinQueue(models.Gamer{UserID: 2})
	require.NoError(t, err)
	s.DrainEvents()

	require.NoError(t, r.Quit(s.ID, 1))
	assert.Equal(t, int64(2), s.HostID)

	events := s.DrainEvents()
	require.Len(t, events, 1)
	assert.Equal(t, EventHostChanged, events[0].Kind)

	assert.ErrorIs(t, r.Quit(s.ID, 1), ErrNotParticipant)
}

func TestCleanFinishedReturnsRemovedIDs(t *testing.T) {
	r := NewRegistry(nil)
	s1, _ := r.JoinQueue(models.Gamer{UserID: 1})
	s2, _ := r.StartSession(StartIntent{AgainstBot: true}, models.Gamer{UserID: 2})

	s2.Finish(nil, "max_score_reached")
	removed := r.CleanFinished()

	require.Len(t, removed, 1)
	assert.Equal(t, s2.ID, removed[0])
	_, ok := r.GetSession(s1.ID)
	assert.True(t, ok)
	assert.Equal(t, 1, r.Len())
}

func TestGetSessionByConnectionID(t *testing.T) {
	r := NewRegistry(nil)
	connID := uuid.New()
	s, _ := r.JoinQueue(models.Gamer{UserID: 1, ConnectionID: connID})

	found := r.GetSessionByConnectionID(connID)
	require.NotNil(t, found)
	assert.Equal(t, s.ID, found.ID)
	assert.Nil(t, r.GetSessionByConnectionID(uuid.New()))
}

func TestConcurrentQueueJoinsNeverOverfillSession(t *testing.T) {
	for iter := 0; iter < 100; iter++ {
		r := NewRegistry(nil)
		const joiners = 8

		var wg sync.WaitGroup
		for i := 0; i < joiners; i++ {
			wg.Add(1)
			go func(id int64) {
				defer wg.Done()
				_, err := r.JoinQueue(models.Gamer{UserID: id})
				assert.NoError(t, err)
			}(int64(i + 1))
		}
		wg.Wait()

		total := 0
		for _, s := range r.snapshot() {
			n := len(s.ParticipantsSnapshot())
			require.LessOrEqual(t, n, 2, "a queue session never holds more than two participants")
			total += n
		}
		assert.Equal(t, joiners, total, "every joiner lands in exactly one session")
	}
}
