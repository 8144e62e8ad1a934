// internal/room/auditor.go
package room

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Auditor detects and heals drift between the session index and the room
// snapshot store. TTL expiry is the passive backstop; the auditor is the
// explicit sweep.
type Auditor struct {
	States StateStore
	Index  SessionIndex
	Log    *logrus.Logger
}

// NewAuditor builds an Auditor over the shared stores.
func NewAuditor(states StateStore, index SessionIndex, log *logrus.Logger) *Auditor {
	return &Auditor{States: states, Index: index, Log: log}
}

// ConsistencyReport describes one user's pointer check: what was wrong and
// what was done about it.
type ConsistencyReport struct {
	Consistent bool     `json:"consistent"`
	Issues     []string `json:"issues,omitempty"`
	Fixes      []string `json:"fixes,omitempty"`
}

// ValidateUserRoomConsistency checks that the user's session pointer, if
// any, references an existing room that actually lists them. Either failure
// clears the pointer and is recorded in the report.
func (a *Auditor) ValidateUserRoomConsistency(ctx context.Context, userID uuid.UUID) (*ConsistencyReport, error) {
	roomID, err := a.Index.GetUserRoom(ctx, userID)
	if err != nil {
		return nil, infraErr("consistency check: resolve session pointer", err)
	}
	if roomID == uuid.Nil {
		return &ConsistencyReport{Consistent: true}, nil
	}

	st, err := a.States.GetRoomState(ctx, roomID)
	if err != nil {
		return nil, infraErr("consistency check: load room state", err)
	}
	if st == nil {
		if err := a.Index.ClearUserRoom(ctx, userID); err != nil {
			return nil, infraErr("consistency check: clear stale pointer", err)
		}
		a.Log.WithFields(logrus.Fields{"user": userID, "room": roomID}).
			Warn("Consistency check: pointer to missing room, cleared")
		return &ConsistencyReport{
			Issues: []string{fmt.Sprintf("session pointer references missing room %s", roomID)},
			Fixes:  []string{"cleared session pointer"},
		}, nil
	}
	if st.FindPlayer(userID) == nil {
		if err := a.Index.ClearUserRoom(ctx, userID); err != nil {
			return nil, infraErr("consistency check: clear stale pointer", err)
		}
		a.Log.WithFields(logrus.Fields{"user": userID, "room": roomID}).
			Warn("Consistency check: user absent from pointed room, cleared")
		return &ConsistencyReport{
			Issues: []string{fmt.Sprintf("user not present in pointed room %s", roomID)},
			Fixes:  []string{"cleared session pointer"},
		}, nil
	}
	return &ConsistencyReport{Consistent: true}, nil
}

// SweepReport summarizes one orphan sweep.
type SweepReport struct {
	Scanned int      `json:"scanned"`
	Cleaned int      `json:"cleaned"`
	Errors  []string `json:"errors,omitempty"`
}

// CleanupOrphanedUserStates sweeps every session pointer and deletes those
// referencing a room snapshot that no longer exists. Only key presence is
// checked, never the full payload. Per-key failures are collected and the
// sweep continues; only the initial SCAN can fail the whole call.
func (a *Auditor) CleanupOrphanedUserStates(ctx context.Context) (*SweepReport, error) {
	keys, err := a.Index.SessionKeys(ctx)
	if err != nil {
		return nil, infraErr("orphan sweep: scan session keys", err)
	}

	report := &SweepReport{Scanned: len(keys)}
	for _, key := range keys {
		ptr, err := a.Index.PointerAt(ctx, key)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", key, err))
			continue
		}
		exists, err := a.States.RoomStateExists(ctx, ptr.RoomID)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", key, err))
			continue
		}
		if exists {
			continue
		}
		if err := a.Index.ClearUserRoom(ctx, ptr.UserID); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", key, err))
			continue
		}
		report.Cleaned++
		a.Log.WithFields(logrus.Fields{"user": ptr.UserID, "room": ptr.RoomID}).
			Info("Orphan sweep: removed pointer to missing room")
	}
	return report, nil
}

// RoomOnlineUsers returns the ids of connected players in a room. It never
// fails: a missing room or a read error yields an empty slice, because
// callers use this for presence display only.
func (a *Auditor) RoomOnlineUsers(ctx context.Context, roomID uuid.UUID) []uuid.UUID {
	st, err := a.States.GetRoomState(ctx, roomID)
	if err != nil {
		a.Log.WithFields(logrus.Fields{"room": roomID, "error": err}).
			Warn("Failed to load room state for online user listing")
		return []uuid.UUID{}
	}
	if st == nil {
		return []uuid.UUID{}
	}
	online := make([]uuid.UUID, 0, len(st.Players))
	for _, p := range st.Players {
		if p.IsConnected {
			online = append(online, p.ID)
		}
	}
	return online
}
