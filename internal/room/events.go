// internal/room/events.go
package room

import "github.com/m-ostrander/pokerhub/internal/models"

// Broadcast events delivered to every connection bound to a room's channel.

// PlayerJoinedEvent announces a new or reconnected occupant. IsConnected on
// the embedded player carries the connection flag for reconnects.
type PlayerJoinedEvent struct {
	Type   string        `json:"type"`
	Player models.Player `json:"player"`
}

func playerJoined(p models.Player) PlayerJoinedEvent {
	return PlayerJoinedEvent{Type: "room:player_joined", Player: p}
}

// PlayerLeftEvent announces a departure and the resulting head count.
type PlayerLeftEvent struct {
	Type        string `json:"type"`
	PlayerID    string `json:"playerId"`
	Username    string `json:"username"`
	PlayerCount int    `json:"playerCount"`
}

func playerLeft(p models.Player, count int) PlayerLeftEvent {
	return PlayerLeftEvent{
		Type:        "room:player_left",
		PlayerID:    p.ID.String(),
		Username:    p.Username,
		PlayerCount: count,
	}
}

// OwnershipTransferredEvent announces owner promotion after the previous
// owner left the room.
type OwnershipTransferredEvent struct {
	Type             string `json:"type"`
	NewOwnerID       string `json:"newOwnerId"`
	NewOwnerUsername string `json:"newOwnerUsername"`
}

func ownershipTransferred(p models.Player) OwnershipTransferredEvent {
	return OwnershipTransferredEvent{
		Type:             "room:ownership_transferred",
		NewOwnerID:       p.ID.String(),
		NewOwnerUsername: p.Username,
	}
}

// ForcedLeaveEvent notifies the evicted connection itself, not the room.
type ForcedLeaveEvent struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	RoomID  string `json:"roomId"`
	Message string `json:"message"`
}
