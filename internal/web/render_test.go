package web

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingWriter struct{ writes int }

func (f *failingWriter) Write(p []byte) (int, error) {
	f.writes++
	return 0, errors.New("closed")
}

func TestRenderErrorPage(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, "error", map[string]any{"Status": 400, "Message": "missing pairing", "Retry": "/login"}))
	out := buf.String()
	assert.Contains(t, out, "Sign-in failed (400)")
	assert.Contains(t, out, "missing pairing")
	assert.Contains(t, out, `href="/login"`)
}

func TestRenderUnknownPageFallsBackToBaseOnly(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, "nope", map[string]any{"Title": "Hello"}))
	out := buf.String()
	assert.Equal(t, 1, strings.Count(out, "<!doctype html>"))
	assert.Contains(t, out, "<h1>Hello</h1>")
}

func TestRenderWritesOnce(t *testing.T) {
	w := &failingWriter{}
	assert.Error(t, Render(w, "error", nil))
	assert.Equal(t, 1, w.writes)
}

func TestRenderErrorSetsStatusAndSinglePage(t *testing.T) {
	s := New(Config{}, nil, nil, nil, nil)
	rec := httptest.NewRecorder()
	s.renderError(rec, http.StatusBadGateway, "directory down")

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Equal(t, 1, strings.Count(body, "<!doctype html>"))
	assert.Contains(t, body, "directory down")
}
