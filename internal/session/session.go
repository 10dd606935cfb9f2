// Package session persists the broker's authenticated session: the durable
// credential obtained by pairing plus the resolved server addresses.
package session

import "errors"

// ErrNoSession is returned when no established session exists for a key.
var ErrNoSession = errors.New("session: not established")

// ErrNoPairing is returned when no pairing context is pending.
var ErrNoPairing = errors.New("session: no pairing in progress")

// Session is the credential and connection topology for one browser.
type Session struct {
	// Token is the opaque credential issued by the directory service.
	Token string `json:"token"`

	// RemoteAddress is the internet-reachable HTTPS base URL of the server.
	RemoteAddress string `json:"remote_address"`

	// LocalAddress is the LAN base URL. Equal to RemoteAddress when the
	// directory advertised no local connection.
	LocalAddress string `json:"local_address"`

	// ClientID is the stable client identity sent to the directory and server.
	ClientID string `json:"client_id"`
}

// Established reports whether the session carries a token and both addresses.
func (s *Session) Established() bool {
	return s != nil && s.Token != "" && s.RemoteAddress != "" && s.LocalAddress != ""
}

// PairingRequest is the short-lived context between login start and callback.
type PairingRequest struct {
	PairingID string `json:"pairing_id"`
	ClientID  string `json:"client_id"`
}
