package main

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/matst80/mediabroker/internal/obs"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// health tracks process lifecycle for the readiness endpoint.
type health struct {
	ready   atomic.Bool
	closing atomic.Bool
	store   pinger
}

func (h *health) handleReady(w http.ResponseWriter, r *http.Request) {
	if h.closing.Load() || !h.ready.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.store.Ping(ctx); err != nil {
		obs.Warn("readyz.store", obs.Fields{"err": err.Error()})
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func newMetricsMux(h *health) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", h.handleReady)
	return mux
}

// startMetricsServer serves Prometheus metrics and simple health endpoints.
func startMetricsServer(addr string, h *health) {
	if err := http.ListenAndServe(addr, newMetricsMux(h)); err != nil && !errors.Is(err, http.ErrServerClosed) {
		obs.Error("metrics.server", obs.Fields{"err": err.Error(), "addr": addr})
	}
}
