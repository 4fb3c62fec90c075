package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrSessionExpired is returned when the backend reports no signed-in user
// for the presented session token. The backend answers 200 with a null user
// rather than a 401 in that case.
var ErrSessionExpired = errors.New("session expired")

// Error is a server-reported failure: a non-2xx response with the backend's
// structured body. Transport failures are returned as plain wrapped errors,
// not as *Error.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("server error (%d): %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a server 404.
func IsNotFound(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// IsUnauthorized reports whether err is a server 401.
func IsUnauthorized(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}

// errorBody is the backend's standard error shape. Either field may be absent.
type errorBody struct {
	Detail  string `json:"detail"`
	Message string `json:"message"`
}

// newError builds an *Error from a non-2xx response body, preferring "detail"
// over "message" and falling back to a generic text when neither is present.
func newError(statusCode int, body []byte) *Error {
	var eb errorBody
	msg := ""
	if err := json.Unmarshal(body, &eb); err == nil {
		switch {
		case eb.Detail != "":
			msg = eb.Detail
		case eb.Message != "":
			msg = eb.Message
		}
	}
	if msg == "" {
		msg = "request failed"
	}
	return &Error{StatusCode: statusCode, Message: msg}
}
