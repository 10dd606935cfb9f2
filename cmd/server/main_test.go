package main

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

func TestEnvHelpers(t *testing.T) {
	t.Setenv("MB_TEST_STR", "  value ")
	t.Setenv("MB_TEST_INT", "42")
	t.Setenv("MB_TEST_BAD_INT", "x")
	t.Setenv("MB_TEST_BOOL", "true")
	t.Setenv("MB_TEST_DUR", "90s")

	assert.Equal(t, "value", envString("MB_TEST_STR", "d"))
	assert.Equal(t, "d", envString("MB_TEST_UNSET", "d"))
	assert.Equal(t, 42, envInt("MB_TEST_INT", 1))
	assert.Equal(t, 1, envInt("MB_TEST_BAD_INT", 1))
	assert.True(t, envBool("MB_TEST_BOOL", false))
	assert.Equal(t, 90*time.Second, envDuration("MB_TEST_DUR", time.Second))
	assert.Equal(t, time.Second, envDuration("MB_TEST_UNSET", time.Second))
}

func TestReadiness(t *testing.T) {
	h := &health{store: stubPinger{}}
	mux := newMetricsMux(h)

	status := func(path string) int {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, status("/healthz"))
	assert.Equal(t, http.StatusServiceUnavailable, status("/readyz"))

	h.ready.Store(true)
	assert.Equal(t, http.StatusOK, status("/readyz"))

	h.store = stubPinger{err: errors.New("down")}
	assert.Equal(t, http.StatusServiceUnavailable, status("/readyz"))

	h.store = stubPinger{}
	h.closing.Store(true)
	assert.Equal(t, http.StatusServiceUnavailable, status("/readyz"))
	assert.Equal(t, http.StatusOK, status("/metrics"))
}

func TestNewStoreDefaultsToMemory(t *testing.T) {
	st, err := newStore(&Config{MemoryEntries: 8})
	require.NoError(t, err)
	defer st.Close()
	require.NoError(t, st.Ping(context.Background()))
}

func TestLoadTLSConfig(t *testing.T) {
	c, err := loadTLSConfig(&Config{})
	require.NoError(t, err)
	assert.Nil(t, c)

	_, err = loadTLSConfig(&Config{TLSCertFile: "cert.pem"})
	assert.Error(t, err)
}

func TestServeDrainsInFlightRequestOnShutdown(t *testing.T) {
	started := make(chan struct{})
	handlerErr := make(chan error, 1)
	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		select {
		case <-time.After(300 * time.Millisecond):
			handlerErr <- nil
			_, _ = w.Write([]byte("done"))
		case <-r.Context().Done():
			handlerErr <- r.Context().Err()
		}
	})}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	hc := &health{store: stubPinger{}}
	served := make(chan struct{})
	go func() {
		serve(ctx, srv, ln, hc, 2*time.Second)
		close(served)
	}()

	type reply struct {
		body string
		err  error
	}
	replies := make(chan reply, 1)
	go func() {
		resp, err := http.Get("http://" + ln.Addr().String() + "/")
		if err != nil {
			replies <- reply{err: err}
			return
		}
		defer resp.Body.Close()
		b, err := io.ReadAll(resp.Body)
		replies <- reply{body: string(b), err: err}
	}()

	<-started
	cancel()

	require.NoError(t, <-handlerErr)
	r := <-replies
	require.NoError(t, r.err)
	assert.Equal(t, "done", r.body)

	select {
	case <-served:
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after shutdown")
	}
	assert.True(t, hc.closing.Load())
}
