package remote

import (
	"errors"
	"fmt"
)

// Failure categories. The queue treats them all as attempt failures;
// they exist for logs, the attempt log and operator diagnosis.
var (
	// ErrConnection means the request never produced a response.
	ErrConnection = errors.New("remote: connection failed")
	// ErrProtocol means the provider answered with something unexpected.
	ErrProtocol = errors.New("remote: protocol error")
	// ErrRejected means the provider refused the action on business grounds.
	ErrRejected = errors.New("remote: rejected by provider")
	// ErrUnauthorized means the API key was refused.
	ErrUnauthorized = errors.New("remote: unauthorized")
	// ErrRateLimited means the provider asked us to slow down.
	ErrRateLimited = errors.New("remote: rate limited")
	// ErrInvalidRequest means the action data is missing a required field.
	ErrInvalidRequest = errors.New("remote: invalid request")
)

// RejectedError carries the provider's rejection code.
type RejectedError struct {
	Code    string
	Message string
}

func (e *RejectedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("remote: rejected by provider (%s)", e.Code)
	}
	return fmt.Sprintf("remote: rejected by provider (%s): %s", e.Code, e.Message)
}

func (e *RejectedError) Unwrap() error { return ErrRejected }
