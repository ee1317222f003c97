package api

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnauthorized is returned after the server rejects the session. The
// token is already cleared and the user routed to login; callers should not
// report it again.
var ErrUnauthorized = errors.New("unauthorized")

// FallbackMessage is shown when a failed response carries no message.
const FallbackMessage = "Something went wrong. Please try again."

// Error is a non-2xx response other than 401.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("api: %d: %s", e.Status, e.Message)
}

func newError(status int, body []byte) *Error {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	_ = json.Unmarshal(body, &payload)
	msg := payload.Message
	if msg == "" {
		msg = payload.Error
	}
	if msg == "" {
		msg = FallbackMessage
	}
	return &Error{Status: status, Message: msg}
}

// Message returns the text to show a user for err: the server's message for
// an *Error, fallback for anything else.
func Message(err error, fallback string) string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return fallback
}

// IsStatus reports whether err is an *Error with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == status
}
