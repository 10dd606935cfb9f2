package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelect(t *testing.T) {
	relay := Endpoint{Protocol: "https", Address: "203.0.113.5", Port: 32400, URI: "https://203-0-113-5.abc.plex.direct:32400"}
	plainRemote := Endpoint{Protocol: "https", Address: "203.0.113.5", Port: 443, URI: "https://media.example.com:443"}
	lan := Endpoint{Protocol: "https", Address: "192.168.1.10", Port: 32400, IsLocal: true, URI: "https://192-168-1-10.abc.plex.direct:32400"}
	loop := Endpoint{Protocol: "http", Address: "127.0.0.1", Port: 32400, IsLocal: true, URI: "http://127.0.0.1:32400"}
	httpRemote := Endpoint{Protocol: "http", Address: "203.0.113.5", Port: 32400, URI: "http://203.0.113.5:32400"}

	tests := []struct {
		name       string
		candidates []Endpoint
		wantRemote string
		wantLocal  string
	}{
		{
			name:       "relay preferred over earlier remote https",
			candidates: []Endpoint{plainRemote, lan, relay},
			wantRemote: relay.URI,
			wantLocal:  "http://192.168.1.10:32400",
		},
		{
			name:       "first remote https without relay",
			candidates: []Endpoint{httpRemote, plainRemote, lan},
			wantRemote: plainRemote.URI,
			wantLocal:  "http://192.168.1.10:32400",
		},
		{
			name:       "no local falls back to remote",
			candidates: []Endpoint{relay},
			wantRemote: relay.URI,
			wantLocal:  relay.URI,
		},
		{
			name:       "non-loopback local beats earlier loopback",
			candidates: []Endpoint{loop, lan, relay},
			wantRemote: relay.URI,
			wantLocal:  "http://192.168.1.10:32400",
		},
		{
			name:       "loopback used when it is the only local",
			candidates: []Endpoint{loop, relay},
			wantRemote: relay.URI,
			wantLocal:  "http://127.0.0.1:32400",
		},
		{
			name:       "local https used as remote when nothing remote",
			candidates: []Endpoint{lan},
			wantRemote: lan.URI,
			wantLocal:  "http://192.168.1.10:32400",
		},
		{
			name:       "first candidate overall when no https",
			candidates: []Endpoint{httpRemote, loop},
			wantRemote: httpRemote.URI,
			wantLocal:  "http://127.0.0.1:32400",
		},
	}
	r := New("")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Select(tt.candidates)
			require.NoError(t, err)
			assert.Equal(t, tt.wantRemote, got.Remote)
			assert.Equal(t, tt.wantLocal, got.Local)
		})
	}
}

func TestSelectEmpty(t *testing.T) {
	_, err := New("").Select(nil)
	assert.ErrorIs(t, err, ErrNoConnection)
}

func TestSelectIPv6Local(t *testing.T) {
	relay := Endpoint{Protocol: "https", URI: "https://x.abc.plex.direct:32400"}
	v6 := Endpoint{Protocol: "http", Address: "fd00::10", Port: 32400, IsLocal: true}
	got, err := New("").Select([]Endpoint{v6, relay})
	require.NoError(t, err)
	assert.Equal(t, "http://[fd00::10]:32400", got.Local)
}

func TestSelectCustomRelayDomain(t *testing.T) {
	a := Endpoint{Protocol: "https", URI: "https://first.example.com"}
	b := Endpoint{Protocol: "https", URI: "https://node.relay.test"}
	got, err := New(".relay.test").Select([]Endpoint{a, b})
	require.NoError(t, err)
	assert.Equal(t, b.URI, got.Remote)
}

func TestIsLoopback(t *testing.T) {
	for addr, want := range map[string]bool{
		"127.0.0.1":    true,
		"127.1.2.3":    true,
		"::1":          true,
		"localhost":    true,
		"192.168.1.10": false,
		"10.0.0.1":     false,
		"nas.lan":      false,
	} {
		assert.Equal(t, want, IsLoopback(addr), addr)
	}
}
