// internal/room/conflict.go
package room

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/m-ostrander/pokerhub/internal/models"
	"github.com/m-ostrander/pokerhub/internal/session"
)

// Resolver enforces the one-room-per-user invariant. Before a user enters a
// room it checks the session pointer and, when the user is seated elsewhere,
// forcibly removes them from that room first.
type Resolver struct {
	States   StateStore
	Index    SessionIndex
	Catalog  Catalog
	Channels *session.Registry
	Log      *logrus.Logger
}

// ConflictResult reports the outcome of a conflict check.
type ConflictResult struct {
	// NoCurrentRoom is true when the user had no session pointer at all.
	NoCurrentRoom bool
	// PreviousRoomID is the room the user was force-removed from, or
	// uuid.Nil when no removal happened (no room, or idempotent rejoin of
	// the target itself).
	PreviousRoomID uuid.UUID
}

// CheckAndHandleRoomConflict decides whether userID may enter targetRoomID.
// Rejoining the current room is allowed as-is; any other current room is
// force-left first. A non-nil error means entry is denied.
func (r *Resolver) CheckAndHandleRoomConflict(ctx context.Context, sess *session.Session, targetRoomID uuid.UUID) (ConflictResult, error) {
	current, err := r.Index.GetUserRoom(ctx, sess.UserID)
	if err != nil {
		return ConflictResult{}, infraErr("conflict check: resolve session pointer", err)
	}
	if current == uuid.Nil {
		return ConflictResult{NoCurrentRoom: true}, nil
	}
	if current == targetRoomID {
		return ConflictResult{}, nil
	}

	r.Log.WithFields(logrus.Fields{
		"user":   sess.UserID,
		"from":   current,
		"target": targetRoomID,
	}).Info("Room conflict detected, forcing leave of current room")

	if err := r.ForceLeaveCurrentRoom(ctx, sess, "joined another room"); err != nil {
		return ConflictResult{}, err
	}
	return ConflictResult{PreviousRoomID: current}, nil
}

// ForceLeaveCurrentRoom removes the user from whatever room their session
// pointer references. Missing snapshots and missing players are treated as
// drift and self-healed by clearing the pointer; neither is an error.
// Partial writes on failure are not rolled back; a later self-healing read
// or the auditor reconciles them.
func (r *Resolver) ForceLeaveCurrentRoom(ctx context.Context, sess *session.Session, reason string) error {
	userID := sess.UserID

	current, err := r.Index.GetUserRoom(ctx, userID)
	if err != nil {
		return infraErr("force leave: resolve session pointer", err)
	}
	if current == uuid.Nil {
		return nil
	}

	st, err := r.States.GetRoomState(ctx, current)
	if err != nil {
		return infraErr("force leave: load room state", err)
	}
	if st == nil {
		// Pointer to a dead room. Heal and move on.
		r.Log.WithFields(logrus.Fields{"user": userID, "room": current}).
			Warn("Session pointer references a missing room, clearing")
		if err := r.Index.ClearUserRoom(ctx, userID); err != nil {
			return infraErr("force leave: clear stale pointer", err)
		}
		return nil
	}

	removed, found := st.RemovePlayer(userID)
	if !found {
		r.Log.WithFields(logrus.Fields{"user": userID, "room": current}).
			Warn("User not present in pointed room, clearing pointer")
		if err := r.Index.ClearUserRoom(ctx, userID); err != nil {
			return infraErr("force leave: clear stale pointer", err)
		}
		return nil
	}

	r.Channels.Unbind(current, userID)

	if len(st.Players) == 0 {
		if err := r.States.DeleteRoomState(ctx, current); err != nil {
			return infraErr("force leave: delete empty room state", err)
		}
		if err := r.Catalog.DeleteRoom(ctx, current); err != nil {
			return infraErr("force leave: delete room record", err)
		}
	} else {
		if removed.IsOwner {
			if err := r.promoteOwner(ctx, st); err != nil {
				return err
			}
		}
		if err := r.States.SetRoomState(ctx, st); err != nil {
			return infraErr("force leave: persist room state", err)
		}
	}

	if err := r.Index.ClearUserRoom(ctx, userID); err != nil {
		return infraErr("force leave: clear session pointer", err)
	}

	sess.Write(ForcedLeaveEvent{
		Type:    "room:force_leave",
		Code:    CodeForcedLeave,
		RoomID:  current.String(),
		Message: reason,
	})
	r.Log.WithFields(logrus.Fields{"user": userID, "room": current, "reason": reason}).
		Info("Forced user out of room")
	return nil
}

// promoteOwner hands the room to the player now at position 0 and persists
// the transfer in the catalog before broadcasting it.
func (r *Resolver) promoteOwner(ctx context.Context, st *models.RoomState) error {
	next := &st.Players[0]
	next.IsOwner = true
	st.OwnerID = next.ID
	if err := r.Catalog.UpdateRoomOwner(ctx, st.ID, next.ID); err != nil {
		return infraErr("ownership transfer: persist new owner", err)
	}
	r.Channels.Broadcast(st.ID, ownershipTransferred(*next))
	return nil
}
