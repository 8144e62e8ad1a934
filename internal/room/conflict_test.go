// internal/room/conflict_test.go
package room

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m-ostrander/pokerhub/internal/models"
)

func TestConflictCheckNoCurrentRoom(t *testing.T) {
	env := newTestEnv()
	sess := newTestSession("alice")

	res, err := env.svc.Resolver.CheckAndHandleRoomConflict(context.Background(), sess, uuid.New())
	require.NoError(t, err)
	assert.True(t, res.NoCurrentRoom)
	assert.Equal(t, uuid.Nil, res.PreviousRoomID)
}

func TestConflictCheckSameRoomIsIdempotent(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	sess := newTestSession("alice")
	rec := env.seedRoom(sess.UserID, models.DefaultMaxPlayers, nil)
	_, err := env.svc.Join(ctx, sess, rec.ID, "")
	require.NoError(t, err)

	res, err := env.svc.Resolver.CheckAndHandleRoomConflict(ctx, sess, rec.ID)
	require.NoError(t, err)
	assert.False(t, res.NoCurrentRoom)
	assert.Equal(t, uuid.Nil, res.PreviousRoomID, "rejoining the current room is not a conflict")

	st, err := env.store.GetRoomState(ctx, rec.ID)
	require.NoError(t, err)
	require.NotNil(t, st.FindPlayer(sess.UserID), "idempotent rejoin must not evict the user")
}

func TestConflictCheckForcesLeaveOfOtherRoom(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	sess := newTestSession("alice")
	roomA := env.seedRoom(sess.UserID, models.DefaultMaxPlayers, nil)
	_, err := env.svc.Join(ctx, sess, roomA.ID, "")
	require.NoError(t, err)

	res, err := env.svc.Resolver.CheckAndHandleRoomConflict(ctx, sess, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, roomA.ID, res.PreviousRoomID)

	pointed, _ := env.store.GetUserRoom(ctx, sess.UserID)
	assert.Equal(t, uuid.Nil, pointed)
}

func TestForceLeaveNoPointerIsNoop(t *testing.T) {
	env := newTestEnv()
	sess := newTestSession("alice")

	err := env.svc.Resolver.ForceLeaveCurrentRoom(context.Background(), sess, "test")
	require.NoError(t, err)
	assert.Empty(t, drainEvents(sess))
}

func TestForceLeaveHealsPointerToMissingRoom(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	sess := newTestSession("alice")
	ghost := uuid.New()
	require.NoError(t, env.store.SetUserRoom(ctx, sess.UserID, ghost))

	err := env.svc.Resolver.ForceLeaveCurrentRoom(ctx, sess, "test")
	require.NoError(t, err, "pointer to missing room is drift, not failure")

	pointed, _ := env.store.GetUserRoom(ctx, sess.UserID)
	assert.Equal(t, uuid.Nil, pointed, "stale pointer must be cleared")
	assert.Empty(t, drainEvents(sess), "self-heal is silent")
}

func TestForceLeaveHealsPlayerMissingFromSnapshot(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	owner := newTestSession("owner")
	rec := env.seedRoom(owner.UserID, models.DefaultMaxPlayers, nil)
	_, err := env.svc.Join(ctx, owner, rec.ID, "")
	require.NoError(t, err)

	// Drifted pointer: alice points at a room she is not seated in.
	sess := newTestSession("alice")
	require.NoError(t, env.store.SetUserRoom(ctx, sess.UserID, rec.ID))

	err = env.svc.Resolver.ForceLeaveCurrentRoom(ctx, sess, "test")
	require.NoError(t, err)

	pointed, _ := env.store.GetUserRoom(ctx, sess.UserID)
	assert.Equal(t, uuid.Nil, pointed)
	st, err := env.store.GetRoomState(ctx, rec.ID)
	require.NoError(t, err)
	require.Len(t, st.Players, 1, "the seated player must be untouched")
}

func TestForceLeaveDeletesEmptiedRoom(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	sess := newTestSession("alice")
	rec := env.seedRoom(sess.UserID, models.DefaultMaxPlayers, nil)
	_, err := env.svc.Join(ctx, sess, rec.ID, "")
	require.NoError(t, err)
	drainEvents(sess)

	err = env.svc.Resolver.ForceLeaveCurrentRoom(ctx, sess, "joined another room")
	require.NoError(t, err)

	st, err := env.store.GetRoomState(ctx, rec.ID)
	require.NoError(t, err)
	assert.Nil(t, st)
	catRec, err := env.catalog.GetRoom(ctx, rec.ID)
	require.NoError(t, err)
	assert.Nil(t, catRec)

	var sawForced bool
	for _, ev := range drainEvents(sess) {
		if fe, ok := ev.(ForcedLeaveEvent); ok {
			sawForced = true
			assert.Equal(t, "joined another room", fe.Message)
		}
	}
	assert.True(t, sawForced, "evicted connection gets a structured reason")
}

func TestForceLeavePromotesNewOwner(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	owner := newTestSession("owner")
	rec := env.seedRoom(owner.UserID, models.DefaultMaxPlayers, nil)
	_, err := env.svc.Join(ctx, owner, rec.ID, "")
	require.NoError(t, err)
	mate := newTestSession("mate")
	_, err = env.svc.Join(ctx, mate, rec.ID, "")
	require.NoError(t, err)
	drainEvents(mate)

	err = env.svc.Resolver.ForceLeaveCurrentRoom(ctx, owner, "test")
	require.NoError(t, err)

	st, err := env.store.GetRoomState(ctx, rec.ID)
	require.NoError(t, err)
	assertRoomInvariants(t, st)
	assert.Equal(t, mate.UserID, st.OwnerID)
	catRec, err := env.catalog.GetRoom(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, mate.UserID, catRec.OwnerID)

	var sawTransfer bool
	for _, ev := range drainEvents(mate) {
		if _, ok := ev.(OwnershipTransferredEvent); ok {
			sawTransfer = true
		}
	}
	assert.True(t, sawTransfer)
}
