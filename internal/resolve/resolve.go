// Package resolve picks the remote and local base URLs of a server from the
// connection candidates advertised by the directory service.
package resolve

import (
	"errors"
	"net"
	"strconv"
	"strings"
)

// DefaultRelayDomain is the hostname suffix of direct, NAT-traversing connections.
const DefaultRelayDomain = ".plex.direct"

// ErrNoConnection is returned when no candidate yields a usable address.
var ErrNoConnection = errors.New("resolve: no usable connection")

// Endpoint is one advertised way to reach the server.
type Endpoint struct {
	Protocol string
	Address  string
	Port     int
	IsLocal  bool
	URI      string
}

// Addresses is the outcome of selection.
type Addresses struct {
	Remote string
	Local  string
}

// Resolver applies the address selection policy.
type Resolver struct {
	RelayDomain string
}

// New returns a Resolver matching relayDomain (DefaultRelayDomain when empty).
func New(relayDomain string) *Resolver {
	if relayDomain == "" {
		relayDomain = DefaultRelayDomain
	}
	return &Resolver{RelayDomain: relayDomain}
}

// Select picks the remote and local addresses. Remote is always an advertised
// URI; local is synthesized as plain http from address and port. Without any
// local candidate, Local equals Remote.
func (r *Resolver) Select(candidates []Endpoint) (Addresses, error) {
	remote := r.selectRemote(candidates)
	if remote == "" {
		return Addresses{}, ErrNoConnection
	}
	local := selectLocal(candidates)
	if local == "" {
		local = remote
	}
	return Addresses{Remote: remote, Local: local}, nil
}

func (r *Resolver) selectRemote(candidates []Endpoint) string {
	var firstRemoteHTTPS, firstHTTPS, first string
	for _, c := range candidates {
		if c.URI == "" {
			continue
		}
		if first == "" {
			first = c.URI
		}
		if !strings.EqualFold(c.Protocol, "https") {
			continue
		}
		if firstHTTPS == "" {
			firstHTTPS = c.URI
		}
		if c.IsLocal {
			continue
		}
		if r.isRelay(c) {
			return c.URI
		}
		if firstRemoteHTTPS == "" {
			firstRemoteHTTPS = c.URI
		}
	}
	switch {
	case firstRemoteHTTPS != "":
		return firstRemoteHTTPS
	case firstHTTPS != "":
		return firstHTTPS
	default:
		return first
	}
}

func (r *Resolver) isRelay(c Endpoint) bool {
	domain := strings.ToLower(r.RelayDomain)
	return strings.Contains(strings.ToLower(c.URI), domain) ||
		strings.HasSuffix(strings.ToLower(c.Address), domain)
}

func selectLocal(candidates []Endpoint) string {
	var fallback *Endpoint
	for i := range candidates {
		c := &candidates[i]
		if !c.IsLocal || c.Address == "" {
			continue
		}
		if !IsLoopback(c.Address) {
			return plainURL(c)
		}
		if fallback == nil {
			fallback = c
		}
	}
	if fallback == nil {
		return ""
	}
	return plainURL(fallback)
}

// The advertised protocol and URI of local entries are ignored.
func plainURL(c *Endpoint) string {
	if c.Port <= 0 {
		return "http://" + hostLiteral(c.Address)
	}
	return "http://" + net.JoinHostPort(c.Address, strconv.Itoa(c.Port))
}

func hostLiteral(addr string) string {
	if strings.Contains(addr, ":") && !strings.HasPrefix(addr, "[") {
		return "[" + addr + "]"
	}
	return addr
}

// IsLoopback reports whether addr names the server host itself.
func IsLoopback(addr string) bool {
	if strings.EqualFold(addr, "localhost") {
		return true
	}
	if ip := net.ParseIP(strings.Trim(addr, "[]")); ip != nil {
		return ip.IsLoopback()
	}
	return strings.HasPrefix(addr, "127.")
}
