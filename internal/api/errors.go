package api

import (
	"errors"
	"fmt"
)

// Kind classifies client-side failures so callers can react without matching
// on message text.
type Kind string

const (
	// KindInvalidToken marks a token whose payload could not be decoded or
	// that lacks the claims a session needs.
	KindInvalidToken Kind = "INVALID_TOKEN"
	// KindAuthorization marks a role mismatch, either caught locally before a
	// call is issued or returned by the server as 401/403.
	KindAuthorization Kind = "AUTHORIZATION"
	// KindNetwork marks transport failures, 5xx responses, and undecodable
	// response bodies.
	KindNetwork Kind = "NETWORK"
	// KindValidation marks requests the server rejected (4xx), e.g. a
	// double-acknowledge.
	KindValidation Kind = "VALIDATION"
)

// Error is the kind-tagged error every api and session operation returns.
type Error struct {
	Kind    Kind
	Status  int // HTTP status when a response was received, else 0
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewInvalidTokenError reports an undecodable or claim-less token.
func NewInvalidTokenError(message string, err error) error {
	return &Error{Kind: KindInvalidToken, Message: message, Err: err}
}

// NewAuthorizationError reports a role mismatch.
func NewAuthorizationError(message string) error {
	return &Error{Kind: KindAuthorization, Message: message}
}

// NewNetworkError reports a transport or server failure.
func NewNetworkError(message string, err error) error {
	return &Error{Kind: KindNetwork, Message: message, Err: err}
}

// NewValidationError reports a request the server rejected.
func NewValidationError(message string, status int) error {
	return &Error{Kind: KindValidation, Status: status, Message: message}
}

// KindOf extracts the kind from err, defaulting to KindNetwork for errors
// that did not originate in this package.
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindNetwork
}
