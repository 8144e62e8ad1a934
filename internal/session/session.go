// internal/session/session.go
package session

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Inbound event rate limit per connection: a burst of 20, refilled at 10/s.
const (
	eventRateLimit = rate.Limit(10)
	eventRateBurst = 20
)

// Session is the explicit per-connection record: the authenticated identity
// plus the outbound channel and heartbeat bookkeeping for one WebSocket.
// Handlers receive it by parameter; nothing is stashed on the raw connection.
type Session struct {
	UserID      uuid.UUID
	Username    string
	ConnectedAt time.Time

	// Cancel stops the connection's pumps (including the heartbeat ticker).
	Cancel context.CancelFunc

	// Out carries JSON-serializable events to the write pump.
	Out chan any

	// Limiter throttles inbound events for this connection.
	Limiter *rate.Limiter
}

// New builds a session for an authenticated user.
func New(userID uuid.UUID, username string) *Session {
	return &Session{
		UserID:      userID,
		Username:    username,
		ConnectedAt: time.Now(),
		Out:         make(chan any, 16),
		Limiter:     rate.NewLimiter(eventRateLimit, eventRateBurst),
	}
}

// Duration reports how long this connection has been up.
func (s *Session) Duration() time.Duration {
	return time.Since(s.ConnectedAt)
}

// Write pushes an event onto the session's Out channel non-blockingly.
// Logs and drops if the channel is closed or full; a slow consumer must not
// stall a room-wide broadcast.
func (s *Session) Write(v any) {
	select {
	case s.Out <- v:
	default:
		log.Printf("Session Write WARNING: Out channel for user %s closed or full. Dropped event %T.", s.UserID, v)
	}
}

// ErrorEvent is the generic error event written to a single session.
type ErrorEvent struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError is a convenience to send a structured error event.
func (s *Session) WriteError(code, message string) {
	s.Write(ErrorEvent{Type: "error", Code: code, Message: message})
}
