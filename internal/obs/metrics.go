package obs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ProxyRequestsTotal      = promauto.NewCounterVec(prometheus.CounterOpts{Name: "mediabroker_proxy_requests_total", Help: "Proxied requests by variant and outcome"}, []string{"variant", "outcome"})
	UpstreamDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{Name: "mediabroker_upstream_duration_seconds", Help: "Media server round trip seconds", Buckets: prometheus.ExponentialBuckets(0.005, 2, 14)}, []string{"variant"})
	HandshakesTotal         = promauto.NewCounterVec(prometheus.CounterOpts{Name: "mediabroker_handshakes_total", Help: "Pairing handshakes by result"}, []string{"result"})
	PairingRetriesTotal     = promauto.NewCounter(prometheus.CounterOpts{Name: "mediabroker_pairing_retries_total", Help: "Pairing status polls retried because approval was pending"})
	PairingsStartedTotal    = promauto.NewCounter(prometheus.CounterOpts{Name: "mediabroker_pairings_started_total", Help: "Pairing codes requested from the directory"})
	RateLimitedTotal        = promauto.NewCounterVec(prometheus.CounterOpts{Name: "mediabroker_rate_limited_total", Help: "Requests rejected by the rate limiter"}, []string{"route"})
	ErrorsTotal             = promauto.NewCounterVec(prometheus.CounterOpts{Name: "mediabroker_errors_total", Help: "Errors by type"}, []string{"type"})
	RateLimitKeys           = promauto.NewGauge(prometheus.GaugeOpts{Name: "mediabroker_rate_limit_keys", Help: "Client keys tracked by the login rate limiter"})
)
