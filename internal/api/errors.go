package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrUnauthorized indicates the access token was missing or rejected.
	// Normally recovered via the refresh protocol before callers see it.
	ErrUnauthorized = errors.New("api: unauthorized")

	// ErrSessionExpired indicates the refresh token is absent or was itself
	// rejected. Not recoverable without a new login.
	ErrSessionExpired = errors.New("api: session expired")

	// ErrConflict indicates a uniqueness violation, e.g. a duplicate email.
	ErrConflict = errors.New("api: conflict")

	// ErrNotFound indicates the referenced resource does not exist.
	ErrNotFound = errors.New("api: not found")

	// ErrValidation indicates the backend rejected the request payload.
	ErrValidation = errors.New("api: validation failed")
)

// Error is a structured non-2xx response from the back office.
type Error struct {
	Status  int
	Code    string
	Message string
	Details map[string]any
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if e.Code != "" {
		return fmt.Sprintf("api: %s (%d): %s", e.Code, e.Status, msg)
	}
	return fmt.Sprintf("api: status %d: %s", e.Status, msg)
}

// Unwrap maps the HTTP status onto the error taxonomy so callers can use
// errors.Is without inspecting status codes.
func (e *Error) Unwrap() error {
	switch e.Status {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return ErrValidation
	default:
		return nil
	}
}

type errorBody struct {
	Status  int            `json:"status"`
	Code    string         `json:"error"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func parseError(status int, raw []byte) *Error {
	apiErr := &Error{Status: status}
	var body errorBody
	if err := json.Unmarshal(raw, &body); err == nil {
		apiErr.Code = strings.TrimSpace(body.Code)
		apiErr.Message = strings.TrimSpace(body.Message)
		apiErr.Details = body.Details
	}
	return apiErr
}
