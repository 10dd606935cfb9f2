package httpx

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCacheControl(t *testing.T) {
	assert.Equal(t, "no-store", CacheControl(0))
	assert.Equal(t, "no-store", CacheControl(-5))
	assert.Equal(t, "public, max-age=600, s-maxage=600", CacheControl(600))
}

func TestSetIdentity(t *testing.T) {
	h := http.Header{}
	SetIdentity(h, "tok", "")
	assert.Equal(t, "tok", h.Get(HeaderToken))
	assert.Equal(t, FallbackClientID, h.Get(HeaderClientID))

	h = http.Header{}
	SetIdentity(h, "", "abc")
	assert.Empty(t, h.Get(HeaderToken))
	assert.Equal(t, "abc", h.Get(HeaderClientID))
}

func TestDescriptorDefaults(t *testing.T) {
	d := ClientDescriptor{Product: "Custom"}.WithDefaults()
	assert.Equal(t, "Custom", d.Product)
	assert.Equal(t, DefaultDescriptor.DeviceName, d.DeviceName)

	h := http.Header{}
	d.Apply(h)
	assert.Equal(t, "Custom", h.Get(HeaderProduct))
	assert.Equal(t, "Web", h.Get(HeaderPlatform))
}
