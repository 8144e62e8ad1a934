// internal/room/interfaces.go
package room

import (
	"context"

	"github.com/google/uuid"

	"github.com/m-ostrander/pokerhub/internal/models"
)

// StateStore is the volatile room snapshot store (implemented by
// cache.Store). A missing snapshot is (nil, nil); a corrupt payload is an
// error. Writes refresh the TTL and are last-writer-wins.
type StateStore interface {
	GetRoomState(ctx context.Context, roomID uuid.UUID) (*models.RoomState, error)
	SetRoomState(ctx context.Context, st *models.RoomState) error
	DeleteRoomState(ctx context.Context, roomID uuid.UUID) error
	RoomStateExists(ctx context.Context, roomID uuid.UUID) (bool, error)
}

// SessionIndex is the volatile user -> room pointer store (implemented by
// cache.Store). GetUserRoom returns uuid.Nil when the user has no room.
type SessionIndex interface {
	GetUserRoom(ctx context.Context, userID uuid.UUID) (uuid.UUID, error)
	SetUserRoom(ctx context.Context, userID, roomID uuid.UUID) error
	ClearUserRoom(ctx context.Context, userID uuid.UUID) error
	SessionKeys(ctx context.Context) ([]string, error)
	PointerAt(ctx context.Context, key string) (models.SessionPointer, error)
}

// Catalog is the durable room catalog (implemented by database.Catalog),
// the system of record for room existence and ownership. GetRoom returns
// (nil, nil) when absent.
type Catalog interface {
	CreateRoom(ctx context.Context, rec *models.RoomRecord) error
	GetRoom(ctx context.Context, roomID uuid.UUID) (*models.RoomRecord, error)
	FindJoinableRooms(ctx context.Context, limit int) ([]models.RoomRecord, error)
	UpdateRoomOwner(ctx context.Context, roomID, ownerID uuid.UUID) error
	UpdateRoomStatus(ctx context.Context, roomID uuid.UUID, status string) error
	DeleteRoom(ctx context.Context, roomID uuid.UUID) error
}

// PasswordCompare checks a plaintext password against a stored encoded hash.
// Wired to auth.ComparePasswordAndHash in production.
type PasswordCompare func(password, encodedHash string) (bool, error)

// PasswordHash produces a stored encoded hash for a new room password.
// Wired to auth.HashPassword in production.
type PasswordHash func(password string) (string, error)
