// internal/room/errors.go
package room

import "fmt"

// Error codes surfaced to clients in acks and error events.
const (
	CodeValidation    = "VALIDATION_ERROR"
	CodeRoomNotFound  = "ROOM_NOT_FOUND"
	CodeUserNotInRoom = "USER_NOT_IN_ROOM"
	CodeRoomFull      = "ROOM_FULL"
	CodeAlreadyInRoom = "ALREADY_IN_ROOM"
	CodePasswordWrong = "INVALID_PASSWORD"
	CodeAccessDenied  = "ROOM_ACCESS_DENIED"
	CodeInternal      = "INTERNAL_ERROR"
	CodeReconnectFail = "RECONNECT_FAILED"
	CodeForcedLeave   = "FORCED_ROOM_LEAVE"
	CodeRateLimited   = "RATE_LIMITED"
)

// ValidationError rejects malformed or missing input.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

// NotFoundError marks an absent room or a user not present in one.
type NotFoundError struct {
	Code    string
	Message string
}

func (e *NotFoundError) Error() string {
	return e.Message
}

// ConflictError marks a state conflict the user must resolve themselves:
// already seated, room full, wrong password. Retrying unchanged will not help.
type ConflictError struct {
	Code    string
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

// AuthzError marks an operation on a room the user does not belong to.
type AuthzError struct {
	Code    string
	Message string
}

func (e *AuthzError) Error() string {
	return e.Message
}

// InfraError wraps a cache or catalog failure. The full cause is logged
// server-side; clients only ever see a generic message.
type InfraError struct {
	Op  string
	Err error
}

func (e *InfraError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *InfraError) Unwrap() error {
	return e.Err
}

func infraErr(op string, err error) *InfraError {
	return &InfraError{Op: op, Err: err}
}
