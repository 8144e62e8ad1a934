// internal/models/player.go
package models

import "github.com/google/uuid"

// Player seat statuses within a room snapshot.
const (
	PlayerStatusActive  = "ACTIVE"
	PlayerStatusSitting = "SITTING_OUT"
)

// Player is one occupied seat inside a RoomState snapshot. Position is the
// seat index; seats are always a contiguous range starting at 0.
type Player struct {
	ID          uuid.UUID `json:"id"`
	Username    string    `json:"username"`
	Chips       int       `json:"chips"`
	Position    int       `json:"position"`
	IsOwner     bool      `json:"isOwner"`
	IsConnected bool      `json:"isConnected"`
	Status      string    `json:"status"`
}

// NewPlayer seats a user at the given position with the default chip stack.
func NewPlayer(userID uuid.UUID, username string, position int, isOwner bool) Player {
	return Player{
		ID:          userID,
		Username:    username,
		Chips:       DefaultChipStack,
		Position:    position,
		IsOwner:     isOwner,
		IsConnected: true,
		Status:      PlayerStatusActive,
	}
}
