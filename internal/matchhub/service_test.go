package matchhub_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pairgogo/backend/internal/matchhub"
	"pairgogo/backend/internal/models"
	"pairgogo/backend/internal/storage"
)

func newServiceFixture(t *testing.T, requeue bool) (*matchhub.Service, *MockStorage) {
	t.Helper()
	storageMock := new(MockStorage)
	// Events for users without a local session go to the fanout channel.
	storageMock.On("PublishEvent", mock.AnythingOfType("models.EventEnvelope")).Return(nil).Maybe()
	svc := matchhub.NewService(storageMock, testMatchConfig(requeue), zap.NewNop())
	return svc, storageMock
}

func connect(svc *matchhub.Service, userID string) *MockSession {
	sess := newMockSession(userID)
	svc.HandleConnect(sess)
	return sess
}

func TestServiceFullFlowConfirmed(t *testing.T) {
	svc, storageMock := newServiceFixture(t, false)
	storageMock.On("IsUserBanned", mock.AnythingOfType("string")).Return(false, nil)
	storageMock.On("SaveRoom", mock.AnythingOfType("*models.ChatRoom")).Return(nil).Once()

	sessA := connect(svc, "user_A")
	sessB := connect(svc, "user_B")

	require.NoError(t, svc.StartSearch("user_A", criteria("music", "travel")))
	require.NoError(t, svc.StartSearch("user_B", criteria("travel", "art")))

	require.Equal(t, 1, svc.Scheduler.Sweep(), `"travel" is shared, the sweep must pair them`)

	foundA := sessA.receivedOf(models.EventMatchFound)
	require.Len(t, foundA, 1)
	foundB := sessB.receivedOf(models.EventMatchFound)
	require.Len(t, foundB, 1)
	proposalID := foundA[0].ProposalID
	require.Equal(t, proposalID, foundB[0].ProposalID)

	// Mutual-exclusion invariant: paired users are out of the pool while
	// the proposal is live.
	assert.Equal(t, 0, svc.Pool.Len())
	assert.True(t, svc.Proposals.HasLive("user_A"))

	require.NoError(t, svc.SubmitDecision(proposalID, "user_A", true))
	require.NoError(t, svc.SubmitDecision(proposalID, "user_B", true))

	confirmedA := sessA.receivedOf(models.EventMatchConfirmed)
	require.Len(t, confirmedA, 1)
	assert.NotEmpty(t, confirmedA[0].RoomID)
	require.Len(t, sessB.receivedOf(models.EventMatchConfirmed), 1)

	storageMock.AssertExpectations(t)
}

func TestServiceFullFlowRejected(t *testing.T) {
	svc, storageMock := newServiceFixture(t, true)
	storageMock.On("IsUserBanned", mock.AnythingOfType("string")).Return(false, nil)

	sessA := connect(svc, "user_A")
	connect(svc, "user_B")

	require.NoError(t, svc.StartSearch("user_A", criteria("music", "travel")))
	require.NoError(t, svc.StartSearch("user_B", criteria("travel", "art")))
	require.Equal(t, 1, svc.Scheduler.Sweep())

	found := sessA.receivedOf(models.EventMatchFound)
	require.Len(t, found, 1)

	require.NoError(t, svc.SubmitDecision(found[0].ProposalID, "user_B", false))

	require.Len(t, sessA.receivedOf(models.EventMatchRejected), 1)

	// user_A is auto-requeued with the original criteria, user_B is not.
	require.Equal(t, 1, svc.Pool.Len())
	entry := svc.Pool.Snapshot(1)[0]
	assert.Equal(t, "user_A", entry.UserID)
	assert.Equal(t, []string{"music", "travel"}, entry.Criteria.Interests)
}

func TestServiceStartSearchGuards(t *testing.T) {
	svc, storageMock := newServiceFixture(t, false)
	storageMock.On("IsUserBanned", "user_banned").Return(true, nil)
	storageMock.On("IsUserBanned", mock.AnythingOfType("string")).Return(false, nil)

	assert.ErrorIs(t, svc.StartSearch("user_banned", criteria("music")), matchhub.ErrUserBanned)
	assert.ErrorIs(t, svc.StartSearch("user_A", models.SearchCriteria{}), matchhub.ErrInvalidCriteria)

	require.NoError(t, svc.StartSearch("user_A", criteria("music")))
	assert.ErrorIs(t, svc.StartSearch("user_A", criteria("music")), matchhub.ErrAlreadyQueued)
}

func TestServiceStartSearchBlockedByLiveProposal(t *testing.T) {
	svc, storageMock := newServiceFixture(t, false)
	storageMock.On("IsUserBanned", mock.AnythingOfType("string")).Return(false, nil)

	connect(svc, "user_A")
	connect(svc, "user_B")
	require.NoError(t, svc.StartSearch("user_A", criteria("travel")))
	require.NoError(t, svc.StartSearch("user_B", criteria("travel")))
	require.Equal(t, 1, svc.Scheduler.Sweep())

	err := svc.StartSearch("user_A", criteria("travel"))
	assert.ErrorIs(t, err, matchhub.ErrAlreadyQueued,
		"a user with a live proposal cannot re-enter the pool")
}

func TestServiceCancelSearch(t *testing.T) {
	svc, storageMock := newServiceFixture(t, false)
	storageMock.On("IsUserBanned", mock.AnythingOfType("string")).Return(false, nil)

	require.NoError(t, svc.StartSearch("user_A", criteria("music")))

	assert.True(t, svc.CancelSearch("user_A"))
	assert.False(t, svc.CancelSearch("user_A"))
	assert.Equal(t, 0, svc.Pool.Len())
}

func TestServiceDisconnectCancelsSearch(t *testing.T) {
	svc, storageMock := newServiceFixture(t, false)
	storageMock.On("IsUserBanned", mock.AnythingOfType("string")).Return(false, nil)
	storageMock.On("GetActiveRoomIDForUser", "user_A").Return("", nil)

	sessA := connect(svc, "user_A")
	require.NoError(t, svc.StartSearch("user_A", criteria("music")))

	svc.HandleDisconnect(sessA)

	assert.Equal(t, 0, svc.Pool.Len())
	assert.False(t, svc.Presence.IsOnline("user_A"))
}

func TestServiceDisconnectRejectsLiveProposal(t *testing.T) {
	svc, storageMock := newServiceFixture(t, false)
	storageMock.On("IsUserBanned", mock.AnythingOfType("string")).Return(false, nil)
	storageMock.On("GetActiveRoomIDForUser", "user_A").Return("", nil)

	sessA := connect(svc, "user_A")
	sessB := connect(svc, "user_B")

	require.NoError(t, svc.StartSearch("user_A", criteria("travel")))
	require.NoError(t, svc.StartSearch("user_B", criteria("travel")))
	require.Equal(t, 1, svc.Scheduler.Sweep())

	found := sessB.receivedOf(models.EventMatchFound)
	require.Len(t, found, 1)

	svc.HandleDisconnect(sessA)

	rejected := sessB.receivedOf(models.EventMatchRejected)
	require.Len(t, rejected, 1, "the remaining participant is notified exactly once")
	assert.Equal(t, found[0].ProposalID, rejected[0].ProposalID)
	assert.False(t, svc.Proposals.HasLive("user_B"))
}

func TestServiceDisconnectClosesActiveRoom(t *testing.T) {
	svc, storageMock := newServiceFixture(t, false)
	storageMock.On("GetActiveRoomIDForUser", "user_A").Return("room-1", nil)
	storageMock.On("CloseRoom", "room-1").Return(nil).Once()

	sessA := connect(svc, "user_A")
	svc.HandleDisconnect(sessA)

	storageMock.AssertExpectations(t)
}

func TestServiceRoomLookup(t *testing.T) {
	svc, storageMock := newServiceFixture(t, false)
	room := &models.ChatRoom{RoomID: "room-1", User1ID: "user_A", User2ID: "user_B", IsActive: true}
	storageMock.On("GetRoomByID", "room-1").Return(room, nil)
	storageMock.On("GetRoomByID", "room-missing").Return(nil, storage.ErrRoomNotFound)

	got, err := svc.Room("room-1")
	require.NoError(t, err)
	assert.Equal(t, room, got)

	_, err = svc.Room("room-missing")
	assert.ErrorIs(t, err, storage.ErrRoomNotFound)
}

func TestServiceStats(t *testing.T) {
	svc, storageMock := newServiceFixture(t, false)
	storageMock.On("IsUserBanned", mock.AnythingOfType("string")).Return(false, nil)

	connect(svc, "user_A")
	connect(svc, "user_B")
	require.NoError(t, svc.StartSearch("user_A", criteria("travel")))
	require.NoError(t, svc.StartSearch("user_B", criteria("art")))

	stats := svc.Stats()
	assert.Equal(t, 2, stats.Online)
	assert.Equal(t, 2, stats.Searching)
	assert.Equal(t, 0, stats.LiveProposals)

	require.True(t, svc.CancelSearch("user_B"))
	require.NoError(t, svc.StartSearch("user_B", criteria("travel")))
	require.Equal(t, 1, svc.Scheduler.Sweep())

	stats = svc.Stats()
	assert.Equal(t, 0, stats.Searching)
	assert.Equal(t, 1, stats.LiveProposals)
}
