// internal/handlers/room_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/m-ostrander/pokerhub/internal/auth"
	"github.com/m-ostrander/pokerhub/internal/middleware"
	"github.com/m-ostrander/pokerhub/internal/room"
	"github.com/m-ostrander/pokerhub/internal/session"
)

// rateLimitCutoff closes the socket after this many throttled events in a
// row; a client that ignores RATE_LIMITED errors is not going to stop.
const rateLimitCutoff = 50

// RoomServer bundles the services a room WebSocket connection needs.
type RoomServer struct {
	Rooms    *room.Service
	Auditor  *room.Auditor
	Registry *session.Registry
}

// NewRoomServer wires the handler-facing server struct.
func NewRoomServer(rooms *room.Service, auditor *room.Auditor, registry *session.Registry) *RoomServer {
	return &RoomServer{Rooms: rooms, Auditor: auditor, Registry: registry}
}

// RoomWSHandler upgrades the connection, authenticates the caller from its
// token, and runs the read/write pumps until disconnect.
func RoomWSHandler(logger *logrus.Logger, rs *RoomServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		remoteAddr := r.RemoteAddr

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{"room"},
			OriginPatterns: []string{"*"}, // Adjust in production
		})
		if err != nil {
			logger.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		if c.Subprotocol() != "room" {
			c.Close(BadSubprotocolError, "client must speak the room subprotocol")
			return
		}

		token := extractCookieToken(r.Header.Get("Cookie"), "auth_token")
		if token == "" {
			token = r.URL.Query().Get("token")
		}
		userIDStr, username, err := auth.AuthenticateJWT(token)
		if err != nil {
			logger.Warnf("User authentication failed (%s): %v", remoteAddr, err)
			c.Close(InvalidAuthTokenError, "Authentication failed.")
			return
		}
		userID, err := uuid.Parse(userIDStr)
		if err != nil {
			c.Close(InvalidUserIDError, "invalid user id in token")
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		sess := session.New(userID, username)
		sess.Cancel = cancel
		rs.Registry.Register(sess)

		middleware.LogWebSocketConnect(logger, remoteAddr, r.URL.Path)
		logger.WithFields(logrus.Fields{"user": userID, "remote": remoteAddr}).Info("Room connection established")

		go writePump(ctx, c, sess, logger)
		readPump(ctx, c, rs, sess, logger)

		// Disconnect path: stop the heartbeat, record the session duration,
		// flip the seat to disconnected. The player is NOT removed from the
		// room; disconnect and leave are distinct.
		cancel()
		rs.Registry.Drop(sess)
		cleanupCtx, cleanupCancel := context.WithTimeout(context.Background(), 5*time.Second)
		rs.Rooms.MarkDisconnected(cleanupCtx, userID)
		cleanupCancel()
		logger.WithFields(logrus.Fields{
			"user":     userID,
			"duration": sess.Duration(),
		}).Info("Room connection closed")
		middleware.LogWebSocketDisconnect(logger, remoteAddr, r.URL.Path, nil)
	}
}

// readPump consumes client events until the connection drops. Each event is
// rate-limited per connection, decoded, and dispatched; no handler error
// ever escapes to the transport.
func readPump(ctx context.Context, c *websocket.Conn, rs *RoomServer, sess *session.Session, logger *logrus.Logger) {
	throttled := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		typ, msg, err := c.Read(ctx)
		if err != nil {
			closeStatus := websocket.CloseStatus(err)
			if closeStatus == websocket.StatusNormalClosure || closeStatus == websocket.StatusGoingAway {
				logger.Infof("WebSocket closed normally for user %v.", sess.UserID)
			} else if !strings.Contains(err.Error(), "context canceled") {
				logger.Warnf("Read error for user %v: %v (CloseStatus: %d)", sess.UserID, err, closeStatus)
			}
			return
		}
		if typ != websocket.MessageText {
			logger.Warnf("Received non-text message type %d from user %v. Ignoring.", typ, sess.UserID)
			continue
		}

		if !sess.Limiter.Allow() {
			throttled++
			if throttled >= rateLimitCutoff {
				logger.Warnf("User %v exceeded rate limit %d times, closing connection.", sess.UserID, throttled)
				c.Close(RateLimitExceeded, "too many events")
				return
			}
			sess.WriteError(room.CodeRateLimited, "slow down")
			continue
		}
		throttled = 0

		var ev inboundEvent
		if err := json.Unmarshal(msg, &ev); err != nil {
			logger.Warnf("Invalid json from user %v: %v", sess.UserID, err)
			sess.WriteError(room.CodeValidation, "Invalid JSON format")
			continue
		}

		dispatch(ctx, rs, sess, ev, logger)
	}
}

// dispatch routes one decoded event to the room service and writes the ack.
func dispatch(ctx context.Context, rs *RoomServer, sess *session.Session, ev inboundEvent, logger *logrus.Logger) {
	switch ev.Type {
	case evPing:
		sess.Write(pongEvent{Type: "pong", Timestamp: time.Now().UnixMilli()})

	case evJoin:
		var req joinRequest
		if err := json.Unmarshal(ev.Data, &req); err != nil {
			sess.Write(failAck(evJoin, room.CodeValidation, "validation failed: malformed join payload"))
			return
		}
		roomID, err := uuid.Parse(req.RoomID)
		if err != nil {
			sess.Write(failAck(evJoin, room.CodeValidation, "validation failed: roomId must be a valid id"))
			return
		}
		res, err := rs.Rooms.Join(ctx, sess, roomID, req.Password)
		if err != nil {
			writeAckError(logger, sess, evJoin, err)
			return
		}
		sess.Write(okAck(evJoin, joinAckData{RoomState: res.State, Rejoined: res.Rejoined}))

	case evLeave:
		var req leaveRequest
		if err := json.Unmarshal(ev.Data, &req); err != nil {
			sess.Write(failAck(evLeave, room.CodeValidation, "validation failed: malformed leave payload"))
			return
		}
		roomID, err := uuid.Parse(req.RoomID)
		if err != nil {
			sess.Write(failAck(evLeave, room.CodeValidation, "validation failed: roomId must be a valid id"))
			return
		}
		res, err := rs.Rooms.Leave(ctx, sess, roomID)
		if err != nil {
			writeAckError(logger, sess, evLeave, err)
			return
		}
		msg := "left room"
		if res.RoomDeleted {
			msg = "left room and room deleted"
		}
		sess.Write(ack{Type: evLeave + ":ack", Success: true, Message: msg})

	case evQuickStart:
		res, err := rs.Rooms.QuickStart(ctx, sess)
		if err != nil {
			writeAckError(logger, sess, evQuickStart, err)
			return
		}
		sess.Write(okAck(evQuickStart, quickStartAckData{
			RoomID:    res.RoomID.String(),
			RoomState: res.State,
			Created:   res.Created,
		}))

	case evCreate:
		var req createRequest
		if err := json.Unmarshal(ev.Data, &req); err != nil {
			sess.Write(failAck(evCreate, room.CodeValidation, "validation failed: malformed create payload"))
			return
		}
		res, err := rs.Rooms.Create(ctx, sess, room.CreateParams{
			MaxPlayers: req.MaxPlayers,
			BigBlind:   req.BigBlind,
			SmallBlind: req.SmallBlind,
			Password:   req.Password,
		})
		if err != nil {
			writeAckError(logger, sess, evCreate, err)
			return
		}
		sess.Write(okAck(evCreate, quickStartAckData{
			RoomID:    res.RoomID.String(),
			RoomState: res.State,
			Created:   true,
		}))

	case evOnlineUsers:
		var req onlineUsersRequest
		if err := json.Unmarshal(ev.Data, &req); err != nil {
			sess.Write(failAck(evOnlineUsers, room.CodeValidation, "validation failed: malformed payload"))
			return
		}
		roomID, err := uuid.Parse(req.RoomID)
		if err != nil {
			sess.Write(failAck(evOnlineUsers, room.CodeValidation, "validation failed: roomId must be a valid id"))
			return
		}
		ids := rs.Auditor.RoomOnlineUsers(ctx, roomID)
		out := make([]string, 0, len(ids))
		for _, id := range ids {
			out = append(out, id.String())
		}
		sess.Write(okAck(evOnlineUsers, onlineUsersAckData{UserIDs: out}))

	case evReconnect:
		handleReconnect(ctx, rs, sess, ev.Data, logger)

	default:
		logger.Warnf("Unknown event type %q from user %v", ev.Type, sess.UserID)
		sess.WriteError(room.CodeValidation, "unknown event type: "+ev.Type)
	}
}

// handleReconnect runs the reconnect flow. Replies are events rather than
// acks: `reconnected` on success, `error` with a specific code otherwise.
// Every failure that is not a missing room or a membership denial collapses
// to RECONNECT_FAILED.
func handleReconnect(ctx context.Context, rs *RoomServer, sess *session.Session, data json.RawMessage, logger *logrus.Logger) {
	var req reconnectRequest
	if len(data) > 0 {
		if err := json.Unmarshal(data, &req); err != nil {
			sess.WriteError(room.CodeReconnectFail, "reconnect failed")
			return
		}
	}

	roomID := uuid.Nil
	if req.RoomID != "" {
		parsed, err := uuid.Parse(req.RoomID)
		if err != nil {
			sess.WriteError(room.CodeReconnectFail, "reconnect failed")
			return
		}
		roomID = parsed
	}

	res, err := rs.Rooms.Reconnect(ctx, sess, roomID)
	if err != nil {
		var nfErr *room.NotFoundError
		var azErr *room.AuthzError
		switch {
		case errors.As(err, &nfErr):
			sess.WriteError(nfErr.Code, nfErr.Message)
		case errors.As(err, &azErr):
			sess.WriteError(azErr.Code, azErr.Message)
		default:
			logger.WithFields(logrus.Fields{"user": sess.UserID, "error": err}).
				Error("Reconnect attempt failed")
			sess.WriteError(room.CodeReconnectFail, "reconnect failed")
		}
		return
	}

	out := reconnectedEvent{Type: "reconnected"}
	if res.RoomID != uuid.Nil {
		out.RoomID = res.RoomID.String()
		out.RoomState = res.State
	}
	sess.Write(out)
}

// writePump drains the session's Out channel onto the socket and drives the
// heartbeat: a ping every 30 seconds, failure of which ends the connection.
func writePump(ctx context.Context, c *websocket.Conn, sess *session.Session, logger *logrus.Logger) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sess.Out:
			if !ok {
				return
			}
			data, err := json.Marshal(msg)
			if err != nil {
				logger.Warnf("Failed to marshal outgoing msg for user %v: %v", sess.UserID, err)
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = c.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				logger.Warnf("Failed to write to websocket for user %v: %v", sess.UserID, err)
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				logger.Warnf("Failed to send ping to user %v: %v. Assuming disconnect.", sess.UserID, err)
				return
			}
		}
	}
}

// extractCookieToken extracts a named cookie value from the "Cookie" header,
// or returns empty if not found.
func extractCookieToken(cookieHeader, cookieName string) string {
	parts := strings.Split(cookieHeader, cookieName+"=")
	if len(parts) < 2 {
		return ""
	}
	token := parts[1]
	if idx := strings.Index(token, ";"); idx != -1 {
		token = token[:idx]
	}
	return token
}
