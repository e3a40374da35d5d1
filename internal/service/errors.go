package service

import (
	"context"
	"errors"

	"taskdeck/internal/remote"
)

var (
	ErrTaskNotFound    = errors.New("task not found")
	ErrSubtaskNotFound = errors.New("subtask not found")
	ErrInvalidImport   = errors.New("invalid import file")

	// ErrLoggedOut is returned by work that started before a logout and finished after it.
	ErrLoggedOut = errors.New("session closed")
)

// ValidationError is raised before any network call is made.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// Outcome labels used for metrics.
const (
	statusSuccess        = "success"
	statusInvalid        = "invalid"
	statusSessionExpired = "session_expired"
	statusNetwork        = "network_error"
	statusRejected       = "rejected"
	statusCanceled       = "canceled"
	statusNotFound       = "not_found"
	statusError          = "error"
)

func classify(err error) string {
	var (
		validation *ValidationError
		rejected   *remote.RemoteRejectedError
	)
	switch {
	case err == nil:
		return statusSuccess
	case errors.As(err, &validation):
		return statusInvalid
	case errors.Is(err, remote.ErrSessionExpired):
		return statusSessionExpired
	case errors.Is(err, remote.ErrNetworkUnavailable):
		return statusNetwork
	case errors.As(err, &rejected):
		return statusRejected
	case errors.Is(err, ErrTaskNotFound), errors.Is(err, ErrSubtaskNotFound):
		return statusNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return statusCanceled
	default:
		return statusError
	}
}

// UserMessage turns an engine error into the text shown to a person.
func UserMessage(err error) string {
	var (
		validation *ValidationError
		rejected   *remote.RemoteRejectedError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &validation):
		return validation.Message
	case errors.Is(err, remote.ErrSessionExpired), errors.Is(err, ErrLoggedOut):
		return "Session expired"
	case errors.Is(err, remote.ErrNetworkUnavailable):
		return "Network Error"
	case errors.As(err, &rejected):
		return rejected.UserMessage()
	case errors.Is(err, ErrTaskNotFound):
		return "Task not found"
	case errors.Is(err, ErrSubtaskNotFound):
		return "Subtask not found"
	case errors.Is(err, ErrInvalidImport):
		return "Invalid JSON"
	default:
		return "Something went wrong"
	}
}
