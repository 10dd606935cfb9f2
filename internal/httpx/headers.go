// Package httpx holds the header conventions shared by the directory client
// and the media server forwarder.
package httpx

import (
	"fmt"
	"net/http"
	"strings"
)

const (
	HeaderToken           = "X-Plex-Token"
	HeaderClientID        = "X-Plex-Client-Identifier"
	HeaderProduct         = "X-Plex-Product"
	HeaderVersion         = "X-Plex-Version"
	HeaderPlatform        = "X-Plex-Platform"
	HeaderPlatformVersion = "X-Plex-Platform-Version"
	HeaderDevice          = "X-Plex-Device"
	HeaderDeviceName      = "X-Plex-Device-Name"

	// FallbackClientID is sent when a session has no client identity.
	FallbackClientID = "MediaBrokerProxy"
)

// ClientDescriptor identifies the broker as one stable API client.
type ClientDescriptor struct {
	Product         string
	Version         string
	Platform        string
	PlatformVersion string
	Device          string
	DeviceName      string
}

// DefaultDescriptor is used when configuration leaves fields empty.
var DefaultDescriptor = ClientDescriptor{
	Product:         "MediaBroker",
	Version:         "1.0.0",
	Platform:        "Web",
	PlatformVersion: "1.0.0",
	Device:          "Proxy",
	DeviceName:      "MediaBroker Server Proxy",
}

// WithDefaults fills empty fields from DefaultDescriptor.
func (d ClientDescriptor) WithDefaults() ClientDescriptor {
	def := DefaultDescriptor
	pick := func(v, fallback string) string {
		if strings.TrimSpace(v) == "" {
			return fallback
		}
		return v
	}
	return ClientDescriptor{
		Product:         pick(d.Product, def.Product),
		Version:         pick(d.Version, def.Version),
		Platform:        pick(d.Platform, def.Platform),
		PlatformVersion: pick(d.PlatformVersion, def.PlatformVersion),
		Device:          pick(d.Device, def.Device),
		DeviceName:      pick(d.DeviceName, def.DeviceName),
	}
}

// Apply sets the descriptor headers on h, replacing existing values.
func (d ClientDescriptor) Apply(h http.Header) {
	h.Set(HeaderProduct, d.Product)
	h.Set(HeaderVersion, d.Version)
	h.Set(HeaderPlatform, d.Platform)
	h.Set(HeaderPlatformVersion, d.PlatformVersion)
	h.Set(HeaderDevice, d.Device)
	h.Set(HeaderDeviceName, d.DeviceName)
}

// SetIdentity sets the credential and client identity headers. Empty
// tokens are omitted; an empty client id falls back to FallbackClientID.
func SetIdentity(h http.Header, token, clientID string) {
	if token != "" {
		h.Set(HeaderToken, token)
	}
	if clientID == "" {
		clientID = FallbackClientID
	}
	h.Set(HeaderClientID, clientID)
}

// CacheControl renders the Cache-Control value for a lifetime in seconds.
func CacheControl(seconds int) string {
	if seconds <= 0 {
		return "no-store"
	}
	return fmt.Sprintf("public, max-age=%d, s-maxage=%d", seconds, seconds)
}
