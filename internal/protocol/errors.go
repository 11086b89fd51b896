package protocol

import (
	"errors"
	"fmt"
)

// ErrorCode is the stable machine-readable error taxonomy. Clients branch on
// the code; the message is advisory.
type ErrorCode string

const (
	ErrNotAuthorized    ErrorCode = "NOT_AUTHORIZED"
	ErrInvalidPhase     ErrorCode = "INVALID_PHASE"
	ErrInvalidTarget    ErrorCode = "INVALID_TARGET"
	ErrInvalidName      ErrorCode = "INVALID_NAME"
	ErrRoomFull         ErrorCode = "ROOM_FULL"
	ErrRoomNotFound     ErrorCode = "ROOM_NOT_FOUND"
	ErrRoomInGame       ErrorCode = "ROOM_IN_GAME"
	ErrNotEnoughPlayers ErrorCode = "NOT_ENOUGH_PLAYERS"
	ErrTooManyPlayers   ErrorCode = "TOO_MANY_PLAYERS"
	ErrDuplicateAction  ErrorCode = "DUPLICATE_ACTION"
	ErrRateLimited      ErrorCode = "RATE_LIMITED"
	ErrInternal         ErrorCode = "INTERNAL"
)

// Error is a typed game error that crosses the intent boundary.
type Error struct {
	Code    ErrorCode
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewError builds a typed error.
func NewError(code ErrorCode, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the taxonomy code from err, defaulting to INTERNAL for
// anything untyped.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrInternal
}

// Body converts err into the wire shape.
func Body(err error) *ErrorBody {
	var e *Error
	if errors.As(err, &e) {
		return &ErrorBody{Code: e.Code, Message: e.Message}
	}
	return &ErrorBody{Code: ErrInternal, Message: "internal error"}
}
