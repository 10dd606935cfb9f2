package main

import (
	"flag"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration derived from flags. Every flag
// defaults from a MEDIABROKER_* environment variable.
type Config struct {
	ListenAddr  string
	MetricsAddr string
	PublicURL   string
	Debug       bool

	DirectoryURL   string
	AuthAppURL     string
	RelayDomain    string
	Mode           string
	RequestTimeout time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
	MemoryEntries int

	SessionTTL time.Duration
	PairingTTL time.Duration
	CookieName string

	Product    string
	Version    string
	Platform   string
	Device     string
	DeviceName string

	CORSOrigin             string
	InvalidateOnAuthReject bool
	TrustProxy             bool

	LoginRate       int
	LoginBurst      int
	LoginGlobalRate int
	LimiterSweep    time.Duration

	TLSCertFile string
	TLSKeyFile  string
}

var cfg Config

// init registers flags into the global flag set. main() parses and uses cfg.
func init() {
	flag.StringVar(&cfg.ListenAddr, "listen", envString("MEDIABROKER_LISTEN", ":8080"), "HTTP listen address")
	flag.StringVar(&cfg.MetricsAddr, "metrics", envString("MEDIABROKER_METRICS", ":9100"), "metrics and health listen address")
	flag.StringVar(&cfg.PublicURL, "public-url", envString("MEDIABROKER_PUBLIC_URL", ""), "externally visible base URL (derived from the request when empty)")
	flag.BoolVar(&cfg.Debug, "debug", envBool("MEDIABROKER_DEBUG", false), "enable debug logs")

	flag.StringVar(&cfg.DirectoryURL, "directory-url", envString("MEDIABROKER_DIRECTORY_URL", "https://plex.tv/api/v2"), "directory service API base URL")
	flag.StringVar(&cfg.AuthAppURL, "auth-app-url", envString("MEDIABROKER_AUTH_APP_URL", "https://app.plex.tv/auth"), "approval page the user is sent to")
	flag.StringVar(&cfg.RelayDomain, "relay-domain", envString("MEDIABROKER_RELAY_DOMAIN", ".plex.direct"), "domain suffix of relay connections preferred for remote access")
	flag.StringVar(&cfg.Mode, "mode", envString("MEDIABROKER_MODE", "remote"), "deployment mode: remote or local")
	flag.DurationVar(&cfg.RequestTimeout, "request-timeout", envDuration("MEDIABROKER_REQUEST_TIMEOUT", 15*time.Second), "upper bound for a single upstream call")

	flag.StringVar(&cfg.RedisAddr, "redis", envString("MEDIABROKER_REDIS_ADDR", ""), "redis address for the session store (in-memory when empty)")
	flag.StringVar(&cfg.RedisPassword, "redis-password", envString("MEDIABROKER_REDIS_PASSWORD", ""), "redis password")
	flag.IntVar(&cfg.RedisDB, "redis-db", envInt("MEDIABROKER_REDIS_DB", 0), "redis database number")
	flag.StringVar(&cfg.RedisPrefix, "redis-prefix", envString("MEDIABROKER_REDIS_PREFIX", "mediabroker:"), "key prefix in redis")
	flag.IntVar(&cfg.MemoryEntries, "memory-entries", envInt("MEDIABROKER_MEMORY_ENTRIES", 4096), "capacity of the in-memory session store")

	flag.DurationVar(&cfg.SessionTTL, "session-ttl", envDuration("MEDIABROKER_SESSION_TTL", 30*24*time.Hour), "lifetime of an established session")
	flag.DurationVar(&cfg.PairingTTL, "pairing-ttl", envDuration("MEDIABROKER_PAIRING_TTL", 15*time.Minute), "how long an unapproved pairing is kept")
	flag.StringVar(&cfg.CookieName, "cookie", envString("MEDIABROKER_COOKIE", "mediabroker_sid"), "session cookie name")

	flag.StringVar(&cfg.Product, "product", envString("MEDIABROKER_PRODUCT", "MediaBroker"), "product name sent to the directory and media server")
	flag.StringVar(&cfg.Version, "product-version", envString("MEDIABROKER_VERSION", "1.0.0"), "product version")
	flag.StringVar(&cfg.Platform, "platform", envString("MEDIABROKER_PLATFORM", "Web"), "client platform")
	flag.StringVar(&cfg.Device, "device", envString("MEDIABROKER_DEVICE", "Proxy"), "client device")
	flag.StringVar(&cfg.DeviceName, "device-name", envString("MEDIABROKER_DEVICE_NAME", "MediaBroker Server Proxy"), "client device name")

	flag.StringVar(&cfg.CORSOrigin, "cors-origin", envString("MEDIABROKER_CORS_ORIGIN", ""), "Access-Control-Allow-Origin for proxied responses")
	flag.BoolVar(&cfg.InvalidateOnAuthReject, "invalidate-on-auth-reject", envBool("MEDIABROKER_INVALIDATE_ON_AUTH_REJECT", false), "clear the session when the media server answers 401/403")
	flag.BoolVar(&cfg.TrustProxy, "trust-proxy", envBool("MEDIABROKER_TRUST_PROXY", false), "honour X-Forwarded-For and X-Forwarded-Proto")

	flag.IntVar(&cfg.LoginRate, "login-rate", envInt("MEDIABROKER_LOGIN_RATE", 1), "login attempts per second per client IP (0 disables)")
	flag.IntVar(&cfg.LoginBurst, "login-burst", envInt("MEDIABROKER_LOGIN_BURST", 5), "login burst size")
	flag.IntVar(&cfg.LoginGlobalRate, "login-global-rate", envInt("MEDIABROKER_LOGIN_GLOBAL_RATE", 0), "login attempts per second across all clients (0 disables)")
	flag.DurationVar(&cfg.LimiterSweep, "limiter-sweep", envDuration("MEDIABROKER_LIMITER_SWEEP", time.Minute), "interval for dropping idle rate limit buckets")

	flag.StringVar(&cfg.TLSCertFile, "tls-cert", envString("MEDIABROKER_TLS_CERT", ""), "TLS certificate file; serves HTTPS when set with -tls-key")
	flag.StringVar(&cfg.TLSKeyFile, "tls-key", envString("MEDIABROKER_TLS_KEY", ""), "TLS private key file")
}

func envString(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envBool(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
