// internal/handlers/events.go
package handlers

import (
	"encoding/json"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/m-ostrander/pokerhub/internal/models"
	"github.com/m-ostrander/pokerhub/internal/room"
	"github.com/m-ostrander/pokerhub/internal/session"
)

// Inbound event types.
const (
	evJoin        = "room:join"
	evLeave       = "room:leave"
	evQuickStart  = "room:quick_start"
	evCreate      = "room:create"
	evOnlineUsers = "room:online_users"
	evPing        = "ping"
	evReconnect   = "reconnect_attempt"
)

// inboundEvent is the envelope every client message arrives in. Data is
// decoded per event type.
type inboundEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type joinRequest struct {
	RoomID   string `json:"roomId"`
	Password string `json:"password,omitempty"`
}

type leaveRequest struct {
	RoomID string `json:"roomId"`
}

type createRequest struct {
	MaxPlayers int    `json:"maxPlayers,omitempty"`
	BigBlind   int    `json:"bigBlind,omitempty"`
	SmallBlind int    `json:"smallBlind,omitempty"`
	Password   string `json:"password,omitempty"`
}

type reconnectRequest struct {
	RoomID string `json:"roomId,omitempty"`
}

type onlineUsersRequest struct {
	RoomID string `json:"roomId"`
}

// onlineUsersAckData lists the connected players of a room.
type onlineUsersAckData struct {
	UserIDs []string `json:"userIds"`
}

// ack is the acknowledgement envelope for request-style events. Type echoes
// the request event type so clients can correlate replies.
type ack struct {
	Type    string `json:"type"`
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

func okAck(evType string, data any) ack {
	return ack{Type: evType + ":ack", Success: true, Data: data}
}

func failAck(evType, code, message string) ack {
	return ack{Type: evType + ":ack", Success: false, Error: code, Message: message}
}

// joinAckData carries the snapshot back on a successful join.
type joinAckData struct {
	RoomState *models.RoomState `json:"roomState"`
	Rejoined  bool              `json:"rejoined,omitempty"`
}

// quickStartAckData carries the chosen room back on quick start or create.
type quickStartAckData struct {
	RoomID    string            `json:"roomId"`
	RoomState *models.RoomState `json:"roomState"`
	Created   bool              `json:"created,omitempty"`
}

// pongEvent answers a ping with the server's epoch milliseconds.
type pongEvent struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

// reconnectedEvent confirms a reconnect attempt. RoomID is empty when the
// user had nothing to rejoin.
type reconnectedEvent struct {
	Type      string            `json:"type"`
	RoomID    string            `json:"roomId"`
	RoomState *models.RoomState `json:"roomState,omitempty"`
}

// writeAckError maps a service error onto the ack envelope. The taxonomy is
// deliberately coarse at the wire: infrastructure detail stays in the log,
// clients only ever see a generic internal error.
func writeAckError(logger *logrus.Logger, sess *session.Session, evType string, err error) {
	var (
		vErr  *room.ValidationError
		nfErr *room.NotFoundError
		cErr  *room.ConflictError
		azErr *room.AuthzError
		inErr *room.InfraError
	)
	switch {
	case errors.As(err, &vErr):
		sess.Write(failAck(evType, room.CodeValidation, vErr.Error()))
	case errors.As(err, &nfErr):
		sess.Write(failAck(evType, nfErr.Code, nfErr.Message))
	case errors.As(err, &cErr):
		sess.Write(failAck(evType, cErr.Code, cErr.Message))
	case errors.As(err, &azErr):
		sess.Write(failAck(evType, azErr.Code, azErr.Message))
	case errors.As(err, &inErr):
		logger.WithFields(logrus.Fields{
			"user":  sess.UserID,
			"event": evType,
			"op":    inErr.Op,
			"error": inErr.Err,
		}).Error("Infrastructure failure handling event")
		sess.Write(failAck(evType, room.CodeInternal, "Internal server error"))
	default:
		logger.WithFields(logrus.Fields{
			"user":  sess.UserID,
			"event": evType,
			"error": err,
		}).Error("Unclassified failure handling event")
		sess.Write(failAck(evType, room.CodeInternal, "Internal server error"))
	}
}
