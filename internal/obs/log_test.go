package obs

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestEventLogging(t *testing.T) {
	core, logs := observer.New(level)
	SetLogger(zap.New(core))
	t.Cleanup(func() {
		EnableDebug(false)
		SetLogger(zap.NewNop())
	})

	Info("proxy.forward", Fields{"path": "/library/sections", "variant": "api"})
	Debug("proxy.hidden", Fields{})
	EnableDebug(true)
	Debug("proxy.visible", nil)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "proxy.forward", entries[0].Message)
	ctx := entries[0].ContextMap()
	assert.Equal(t, "/library/sections", ctx["path"])
	assert.Equal(t, "api", ctx["variant"])
	assert.Equal(t, "proxy.visible", entries[1].Message)
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "short", Snippet([]byte("short"), 10))
	long := Snippet([]byte(strings.Repeat("x", 20)), 5)
	assert.Equal(t, "xxxxx...(truncated)", long)
}
