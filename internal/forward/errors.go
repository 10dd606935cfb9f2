package forward

import (
	"fmt"
	"net/http"
)

// ErrorKind classifies proxy failures.
type ErrorKind int

const (
	KindUnauthenticated ErrorKind = iota
	KindUnreachable
	KindUpstream
	KindBadResponse
)

func (k ErrorKind) String() string {
	switch k {
	case KindUnauthenticated:
		return "unauthenticated"
	case KindUnreachable:
		return "unreachable"
	case KindBadResponse:
		return "bad_response"
	default:
		return "upstream"
	}
}

// ProxyError is a sanitized failure safe to show to the client. Upstream
// bodies are logged, never stored here.
type ProxyError struct {
	Kind    ErrorKind
	Status  int
	Message string
	Path    string
	Err     error
}

func (e *ProxyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ProxyError) Unwrap() error { return e.Err }

// HTTPStatus maps the failure to the status returned to the client.
func (e *ProxyError) HTTPStatus() int {
	switch e.Kind {
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindUpstream:
		if e.Status >= 400 {
			return e.Status
		}
		return http.StatusBadGateway
	default:
		return http.StatusBadGateway
	}
}

// AuthRejected reports whether the media server refused the credential.
func (e *ProxyError) AuthRejected() bool {
	return e.Kind == KindUpstream && (e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden)
}

func unauthenticated(msg string) *ProxyError {
	return &ProxyError{Kind: KindUnauthenticated, Status: http.StatusUnauthorized, Message: msg}
}
