package remote

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrSessionExpired means the store answered 401 or no credential is stored.
	// The stored credential has already been invalidated when it is returned.
	ErrSessionExpired = errors.New("session expired")
	// ErrNetworkUnavailable means the request produced no response at all.
	ErrNetworkUnavailable = errors.New("network unavailable")

	errNoCredential = errors.New("no credential")
)

// RemoteRejectedError is any other non-2xx answer of the store.
type RemoteRejectedError struct {
	Status  int
	Message string
	Body    []byte
}

func (e *RemoteRejectedError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("remote rejected (%d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("remote rejected (%d): %s", e.Status, http.StatusText(e.Status))
}

// UserMessage is what a person should read: the server's message or a generic fallback.
func (e *RemoteRejectedError) UserMessage() string {
	if e.Message != "" {
		return e.Message
	}
	return "Something went wrong"
}
