package pairing

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies handshake failures.
type Kind int

const (
	KindUpstreamFailure Kind = iota
	KindPendingApproval
	KindNoServerFound
	KindNoConnection
	KindMissingPairing
)

func (k Kind) String() string {
	switch k {
	case KindPendingApproval:
		return "pending_approval"
	case KindNoServerFound:
		return "no_server_found"
	case KindNoConnection:
		return "no_connection"
	case KindMissingPairing:
		return "missing_pairing"
	default:
		return "upstream_failure"
	}
}

// AuthError is returned by every failed handshake step.
type AuthError struct {
	Kind Kind
	// Status is the directory's HTTP status for upstream failures, else 0.
	Status int
	Msg    string
	Err    error
}

var (
	ErrPendingApproval = &AuthError{Kind: KindPendingApproval}
	ErrNoServerFound   = &AuthError{Kind: KindNoServerFound}
	ErrNoConnection    = &AuthError{Kind: KindNoConnection}
	ErrUpstreamFailure = &AuthError{Kind: KindUpstreamFailure}
	ErrMissingPairing  = &AuthError{Kind: KindMissingPairing}
)

func (e *AuthError) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Err != nil {
		return "authentication failed: " + msg + ": " + e.Err.Error()
	}
	return "authentication failed: " + msg
}

func (e *AuthError) Unwrap() error { return e.Err }

// Is matches any AuthError of the same kind.
func (e *AuthError) Is(target error) bool {
	var t *AuthError
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// HTTPStatus is the status the login boundary answers with.
func (e *AuthError) HTTPStatus() int {
	if e.Kind == KindMissingPairing {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
