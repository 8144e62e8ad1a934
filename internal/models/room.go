// internal/models/room.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// Room lifecycle statuses shared by the cached snapshot and the durable record.
const (
	RoomStatusWaiting = "WAITING"
	RoomStatusPlaying = "PLAYING"
	RoomStatusEnded   = "ENDED"
)

// Defaults applied when quick-start creates a room (or room:create omits a field).
const (
	DefaultMaxPlayers = 6
	DefaultBigBlind   = 20
	DefaultSmallBlind = 10
	DefaultChipStack  = 1000
)

// RoomState is the cached live snapshot of one room's membership. It is the
// value stored under `room:<id>` and serialized as JSON. It is NOT the system
// of record for room existence or ownership; that is RoomRecord.
type RoomState struct {
	ID                 uuid.UUID `json:"id"`
	OwnerID            uuid.UUID `json:"ownerId"`
	Status             string    `json:"status"`
	MaxPlayers         int       `json:"maxPlayers"`
	CurrentPlayerCount int       `json:"currentPlayerCount"`
	HasPassword        bool      `json:"hasPassword"`
	BigBlind           int       `json:"bigBlind"`
	SmallBlind         int       `json:"smallBlind"`
	Players            []Player  `json:"players"`
	GameStarted        bool      `json:"gameStarted"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// FindPlayer returns a pointer into Players for the given user, or nil.
func (st *RoomState) FindPlayer(userID uuid.UUID) *Player {
	for i := range st.Players {
		if st.Players[i].ID == userID {
			return &st.Players[i]
		}
	}
	return nil
}

// RemovePlayer deletes the given user from Players, decrements the count and
// reassigns seat positions 0..n-1 so the range stays contiguous. Returns the
// removed player and whether it was present.
func (st *RoomState) RemovePlayer(userID uuid.UUID) (Player, bool) {
	for i := range st.Players {
		if st.Players[i].ID != userID {
			continue
		}
		removed := st.Players[i]
		st.Players = append(st.Players[:i], st.Players[i+1:]...)
		st.CurrentPlayerCount = len(st.Players)
		for j := range st.Players {
			st.Players[j].Position = j
		}
		return removed, true
	}
	return Player{}, false
}

// IsFull reports whether the room has no free seats.
func (st *RoomState) IsFull() bool {
	return st.CurrentPlayerCount >= st.MaxPlayers
}

// RoomRecord is a row in the durable rooms catalog. Password holds the argon2
// encoded hash, or nil for open rooms.
type RoomRecord struct {
	ID          uuid.UUID `json:"id"`
	OwnerID     uuid.UUID `json:"ownerId"`
	PlayerLimit int       `json:"playerLimit"`
	Password    *string   `json:"-"`
	BigBlind    int       `json:"bigBlind"`
	SmallBlind  int       `json:"smallBlind"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
}

// SessionPointer is one user -> room mapping from the session index.
type SessionPointer struct {
	UserID uuid.UUID
	RoomID uuid.UUID
}
