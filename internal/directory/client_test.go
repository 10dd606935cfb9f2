package directory

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/matst80/mediabroker/internal/httpx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckPin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/pins/123", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "client-a", r.Header.Get(httpx.HeaderClientID))
		assert.Empty(t, r.Header.Get(httpx.HeaderToken))
		_, _ = w.Write([]byte(`{"id":123,"code":"ABCD","authToken":"secret"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, httpx.ClientDescriptor{}, time.Second)
	pin, err := c.CheckPin(context.Background(), "123", "client-a")
	require.NoError(t, err)
	assert.Equal(t, "secret", pin.AuthToken)
	assert.Equal(t, "123", pin.ID.String())
}

func TestCreatePinSendsDescriptor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "true", r.URL.Query().Get("strong"))
		assert.Equal(t, "MediaBroker", r.Header.Get(httpx.HeaderProduct))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":77,"code":"XYZ"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, httpx.ClientDescriptor{}, time.Second)
	pin, err := c.CreatePin(context.Background(), "client-a")
	require.NoError(t, err)
	assert.Equal(t, "77", pin.ID.String())
	assert.Equal(t, "XYZ", pin.Code)
	assert.Empty(t, pin.AuthToken)
}

func TestResources(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/resources", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("includeHttps"))
		assert.Equal(t, "tok", r.Header.Get(httpx.HeaderToken))
		_, _ = w.Write([]byte(`[
			{"name":"phone","provides":"client,player","connections":[]},
			{"name":"nas","provides":"server","connections":[
				{"protocol":"https","address":"10.0.0.2","port":32400,"uri":"https://10-0-0-2.abc.plex.direct:32400","local":true}
			]}
		]`))
	}))
	defer srv.Close()

	c := New(srv.URL, httpx.ClientDescriptor{}, time.Second)
	res, err := c.Resources(context.Background(), "tok", "client-a")
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.False(t, res[0].ProvidesServer())
	assert.True(t, res[1].ProvidesServer())
	require.Len(t, res[1].Connections, 1)
	assert.True(t, res[1].Connections[0].Local)
	assert.Equal(t, 32400, res[1].Connections[0].Port)
}

func TestStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New(srv.URL, httpx.ClientDescriptor{}, time.Second)
	_, err := c.Resources(context.Background(), "bad", "client-a")
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.Status)
	assert.Contains(t, se.Body, "nope")
}

func TestProvidesServer(t *testing.T) {
	assert.True(t, Resource{Provides: "server"}.ProvidesServer())
	assert.True(t, Resource{Provides: "client, server ,player"}.ProvidesServer())
	assert.False(t, Resource{Provides: "servers"}.ProvidesServer())
	assert.False(t, Resource{}.ProvidesServer())
}

func TestAuthURL(t *testing.T) {
	got := AuthURL("", "cid", "CODE", "http://localhost/auth/callback", "MediaBroker")
	require.True(t, strings.HasPrefix(got, DefaultAuthApp+"#?"))
	q, err := url.ParseQuery(strings.TrimPrefix(got, DefaultAuthApp+"#?"))
	require.NoError(t, err)
	assert.Equal(t, "cid", q.Get("clientID"))
	assert.Equal(t, "CODE", q.Get("code"))
	assert.Equal(t, "http://localhost/auth/callback", q.Get("forwardUrl"))
	assert.Equal(t, "MediaBroker", q.Get("context[device][product]"))
}
