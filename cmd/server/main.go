package main

import (
	"context"
	"crypto/tls"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/matst80/mediabroker/internal/directory"
	"github.com/matst80/mediabroker/internal/forward"
	"github.com/matst80/mediabroker/internal/httpx"
	"github.com/matst80/mediabroker/internal/obs"
	"github.com/matst80/mediabroker/internal/pairing"
	"github.com/matst80/mediabroker/internal/ratelimit"
	"github.com/matst80/mediabroker/internal/resolve"
	"github.com/matst80/mediabroker/internal/session"
	"github.com/matst80/mediabroker/internal/web"
)

func main() {
	flag.Parse()
	if cfg.Debug {
		obs.EnableDebug(true)
	}
	defer obs.Sync()

	mode, err := forward.ParseMode(cfg.Mode)
	if err != nil {
		obs.Error("config.mode", obs.Fields{"err": err.Error(), "mode": cfg.Mode})
		os.Exit(2)
	}
	obs.Info("server.start", obs.Fields{"listen": cfg.ListenAddr, "metrics": cfg.MetricsAddr, "directory": cfg.DirectoryURL})

	st, err := newStore(&cfg)
	if err != nil {
		obs.Error("store.init", obs.Fields{"err": err.Error()})
		os.Exit(1)
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hc := &health{store: st}
	go startMetricsServer(cfg.MetricsAddr, hc)

	descriptor := httpx.ClientDescriptor{
		Product:    cfg.Product,
		Version:    cfg.Version,
		Platform:   cfg.Platform,
		Device:     cfg.Device,
		DeviceName: cfg.DeviceName,
	}.WithDefaults()

	repo := session.NewRepository(st, cfg.SessionTTL, cfg.PairingTTL)
	handshake := pairing.New(
		directory.New(cfg.DirectoryURL, descriptor, cfg.RequestTimeout),
		repo,
		pairing.WithResolver(resolve.New(cfg.RelayDomain)),
		pairing.WithAuthApp(cfg.AuthAppURL, descriptor.Product),
	)
	relay := forward.New(forward.Config{
		Mode:       mode,
		Timeout:    cfg.RequestTimeout,
		Descriptor: descriptor,
	})

	var limiter *ratelimit.Limiter
	if cfg.LoginRate > 0 || cfg.LoginGlobalRate > 0 {
		limiter = ratelimit.New(cfg.LoginGlobalRate, cfg.LoginRate, cfg.LoginBurst, nil)
		go runSweepLoop(ctx, limiter, cfg.LimiterSweep)
	}

	srv := &http.Server{
		Addr: cfg.ListenAddr,
		Handler: web.New(web.Config{
			CookieName:             cfg.CookieName,
			PublicURL:              cfg.PublicURL,
			CORSOrigin:             cfg.CORSOrigin,
			InvalidateOnAuthReject: cfg.InvalidateOnAuthReject,
			TrustProxy:             cfg.TrustProxy,
		}, handshake, repo, relay, limiter),
		ReadHeaderTimeout: 10 * time.Second,
	}

	tlsConfig, err := loadTLSConfig(&cfg)
	if err != nil {
		obs.Error("tls.config", obs.Fields{"err": err.Error()})
		os.Exit(1)
	}
	ln, err := createListener(cfg.ListenAddr, tlsConfig)
	if err != nil {
		obs.Error("listen.public", obs.Fields{"err": err.Error(), "addr": cfg.ListenAddr})
		os.Exit(1)
	}

	obs.Info("server.ready", obs.Fields{"tls": tlsConfig != nil, "mode": relay.Mode().String()})
	serve(ctx, srv, ln, hc, cfg.RequestTimeout+2*time.Second)
	obs.Info("server.shutdown.complete", obs.Fields{})
}

// serve runs srv on ln until ctx is done, then drains in-flight requests for
// up to grace. Request contexts are not derived from ctx.
func serve(ctx context.Context, srv *http.Server, ln net.Listener, hc *health, grace time.Duration) {
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	hc.ready.Store(true)

	select {
	case <-ctx.Done():
		obs.Info("server.shutdown.signal", obs.Fields{})
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			obs.Error("server.serve", obs.Fields{"err": err.Error()})
		}
	}
	hc.closing.Store(true)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		obs.Error("server.shutdown", obs.Fields{"err": err.Error()})
	}
}

func runSweepLoop(ctx context.Context, l *ratelimit.Limiter, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := l.Sweep(interval); n > 0 {
				obs.Debug("ratelimit.sweep", obs.Fields{"removed": n})
			}
			obs.RateLimitKeys.Set(float64(l.Keys()))
		}
	}
}

// loadTLSConfig returns nil when no certificate is configured.
func loadTLSConfig(c *Config) (*tls.Config, error) {
	if c.TLSCertFile == "" && c.TLSKeyFile == "" {
		return nil, nil
	}
	if c.TLSCertFile == "" || c.TLSKeyFile == "" {
		return nil, errors.New("both -tls-cert and -tls-key are required")
	}
	cert, err := tls.LoadX509KeyPair(c.TLSCertFile, c.TLSKeyFile)
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// createListener creates either a plain TCP or TLS listener based on tlsConfig
func createListener(addr string, tlsConfig *tls.Config) (net.Listener, error) {
	if tlsConfig == nil {
		return net.Listen("tcp", addr)
	}
	return tls.Listen("tcp", addr, tlsConfig)
}
