// internal/room/auditor_test.go
package room

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m-ostrander/pokerhub/internal/models"
)

func TestValidateConsistencyNoPointer(t *testing.T) {
	env := newTestEnv()

	report, err := env.auditor.ValidateUserRoomConsistency(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.True(t, report.Consistent)
	assert.Empty(t, report.Issues)
}

func TestValidateConsistencyHealthyPointer(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	sess := newTestSession("alice")
	rec := env.seedRoom(sess.UserID, models.DefaultMaxPlayers, nil)
	_, err := env.svc.Join(ctx, sess, rec.ID, "")
	require.NoError(t, err)

	report, err := env.auditor.ValidateUserRoomConsistency(ctx, sess.UserID)
	require.NoError(t, err)
	assert.True(t, report.Consistent)
}

func TestValidateConsistencyPointerToMissingRoom(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	userID := uuid.New()
	require.NoError(t, env.store.SetUserRoom(ctx, userID, uuid.New()))

	report, err := env.auditor.ValidateUserRoomConsistency(ctx, userID)
	require.NoError(t, err)
	assert.False(t, report.Consistent)
	require.Len(t, report.Issues, 1)
	require.Len(t, report.Fixes, 1)

	pointed, _ := env.store.GetUserRoom(ctx, userID)
	assert.Equal(t, uuid.Nil, pointed, "stale pointer must be cleared")
}

func TestValidateConsistencyUserMissingFromRoom(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	owner := newTestSession("owner")
	rec := env.seedRoom(owner.UserID, models.DefaultMaxPlayers, nil)
	_, err := env.svc.Join(ctx, owner, rec.ID, "")
	require.NoError(t, err)

	drifted := uuid.New()
	require.NoError(t, env.store.SetUserRoom(ctx, drifted, rec.ID))

	report, err := env.auditor.ValidateUserRoomConsistency(ctx, drifted)
	require.NoError(t, err)
	assert.False(t, report.Consistent)

	pointed, _ := env.store.GetUserRoom(ctx, drifted)
	assert.Equal(t, uuid.Nil, pointed)
}

func TestCleanupOrphanedUserStates(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	// Healthy pointer.
	sess := newTestSession("alice")
	rec := env.seedRoom(sess.UserID, models.DefaultMaxPlayers, nil)
	_, err := env.svc.Join(ctx, sess, rec.ID, "")
	require.NoError(t, err)

	// Orphaned pointer to a room that no longer exists.
	orphan := uuid.New()
	require.NoError(t, env.store.SetUserRoom(ctx, orphan, uuid.New()))

	report, err := env.auditor.CleanupOrphanedUserStates(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Scanned)
	assert.Equal(t, 1, report.Cleaned)
	assert.Empty(t, report.Errors)

	pointed, _ := env.store.GetUserRoom(ctx, orphan)
	assert.Equal(t, uuid.Nil, pointed)
	pointed, _ = env.store.GetUserRoom(ctx, sess.UserID)
	assert.Equal(t, rec.ID, pointed, "healthy pointer must survive the sweep")
}

func TestCleanupToleratesPerKeyFailures(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	badRoom := uuid.New()
	badUser := uuid.New()
	require.NoError(t, env.store.SetUserRoom(ctx, badUser, badRoom))
	env.store.failExists[badRoom] = errors.New("redis timeout")

	orphan := uuid.New()
	require.NoError(t, env.store.SetUserRoom(ctx, orphan, uuid.New()))

	report, err := env.auditor.CleanupOrphanedUserStates(ctx)
	require.NoError(t, err, "per-key failures must not abort the sweep")
	assert.Equal(t, 2, report.Scanned)
	assert.Equal(t, 1, report.Cleaned)
	require.Len(t, report.Errors, 1)

	pointed, _ := env.store.GetUserRoom(ctx, badUser)
	assert.Equal(t, badRoom, pointed, "failing key is left for the next sweep")
}

func TestRoomOnlineUsersConnectedOnly(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	a := newTestSession("a")
	rec := env.seedRoom(a.UserID, models.DefaultMaxPlayers, nil)
	_, err := env.svc.Join(ctx, a, rec.ID, "")
	require.NoError(t, err)
	b := newTestSession("b")
	_, err = env.svc.Join(ctx, b, rec.ID, "")
	require.NoError(t, err)
	env.svc.MarkDisconnected(ctx, b.UserID)

	online := env.auditor.RoomOnlineUsers(ctx, rec.ID)
	assert.Equal(t, []uuid.UUID{a.UserID}, online)
}

func TestRoomOnlineUsersMissingRoom(t *testing.T) {
	env := newTestEnv()

	online := env.auditor.RoomOnlineUsers(context.Background(), uuid.New())
	assert.NotNil(t, online)
	assert.Empty(t, online, "missing room yields an empty list, never an error")
}

func TestRoomOnlineUsersReadFailure(t *testing.T) {
	env := newTestEnv()
	roomID := uuid.New()
	env.store.failGetState[roomID] = errors.New("corrupt payload")

	online := env.auditor.RoomOnlineUsers(context.Background(), roomID)
	assert.Empty(t, online, "read failure yields an empty list, never an error")
}
