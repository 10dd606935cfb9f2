// Package forward relays read-only requests to the paired media server,
// choosing the local or remote address and stamping cache headers.
package forward

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/matst80/mediabroker/internal/cachepolicy"
	"github.com/matst80/mediabroker/internal/httpx"
	"github.com/matst80/mediabroker/internal/obs"
	"github.com/matst80/mediabroker/internal/session"
)

// Mode is the deployment mode, fixed for the life of the process.
type Mode int

const (
	// ModeRemote forwards to the internet-reachable address.
	ModeRemote Mode = iota
	// ModeLocal forwards to the LAN address (broker runs next to the server).
	ModeLocal
)

func (m Mode) String() string {
	if m == ModeLocal {
		return "local"
	}
	return "remote"
}

// ParseMode accepts "remote" or "local".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "remote":
		return ModeRemote, nil
	case "local", "dev":
		return ModeLocal, nil
	}
	return ModeRemote, fmt.Errorf("unknown deployment mode %q", s)
}

// Variant selects how a response is relayed.
type Variant int

const (
	// VariantAPI relays JSON API responses.
	VariantAPI Variant = iota
	// VariantImage relays binary artwork.
	VariantImage
)

func (v Variant) String() string {
	if v == VariantImage {
		return "image"
	}
	return "api"
}

const (
	DefaultTimeout   = 30 * time.Second
	defaultImageType = "image/jpeg"
	maxErrorBody     = 4 << 10
)

// Config configures a Forwarder.
type Config struct {
	Mode       Mode
	Timeout    time.Duration
	Descriptor httpx.ClientDescriptor
	// APIPolicy defaults to cachepolicy.Default().
	APIPolicy cachepolicy.Classifier
	// ImagePolicy defaults to cachepolicy.Fixed(cachepolicy.ImageSeconds).
	ImagePolicy cachepolicy.Classifier
	// Transport overrides the HTTP transport (tests).
	Transport http.RoundTripper
}

// Response is a successful relay. The caller must close Body.
type Response struct {
	ContentType  string
	CacheSeconds int
	Body         io.ReadCloser
}

// CacheControl renders the Cache-Control header for the response.
func (r *Response) CacheControl() string { return httpx.CacheControl(r.CacheSeconds) }

// Forwarder relays requests to the media server of a session.
type Forwarder struct {
	mode        Mode
	descriptor  httpx.ClientDescriptor
	apiPolicy   cachepolicy.Classifier
	imagePolicy cachepolicy.Classifier
	client      *http.Client
}

// New creates a Forwarder.
func New(cfg Config) *Forwarder {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.APIPolicy == nil {
		cfg.APIPolicy = cachepolicy.Default()
	}
	if cfg.ImagePolicy == nil {
		cfg.ImagePolicy = cachepolicy.Fixed(cachepolicy.ImageSeconds)
	}
	return &Forwarder{
		mode:        cfg.Mode,
		descriptor:  cfg.Descriptor.WithDefaults(),
		apiPolicy:   cfg.APIPolicy,
		imagePolicy: cfg.ImagePolicy,
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: cfg.Transport,
			CheckRedirect: func(_ *http.Request, _ []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// Mode reports the configured deployment mode.
func (f *Forwarder) Mode() Mode { return f.mode }

// BaseURL picks the address the mode dictates. No failover is attempted.
func (f *Forwarder) BaseURL(s *session.Session) string {
	if f.mode == ModeLocal {
		return s.LocalAddress
	}
	return s.RemoteAddress
}

// Forward sends GET path?rawQuery to the session's server. path must begin
// with "/". It never modifies the session.
func (f *Forwarder) Forward(ctx context.Context, s *session.Session, v Variant, path, rawQuery string) (*Response, error) {
	resp, err := f.forward(ctx, s, v, path, rawQuery)
	outcome := "ok"
	if err != nil {
		var pe *ProxyError
		if errors.As(err, &pe) {
			outcome = pe.Kind.String()
		}
	}
	obs.ProxyRequestsTotal.WithLabelValues(v.String(), outcome).Inc()
	return resp, err
}

func (f *Forwarder) forward(ctx context.Context, s *session.Session, v Variant, path, rawQuery string) (*Response, error) {
	if !s.Established() {
		return nil, unauthenticated("authentication required, please log in again")
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	base := strings.TrimRight(f.BaseURL(s), "/")
	target, err := url.Parse(base + path)
	if err != nil {
		return nil, &ProxyError{Kind: KindUpstream, Status: http.StatusBadRequest, Message: "invalid upstream path", Path: path, Err: err}
	}
	target.RawQuery = rawQuery

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, &ProxyError{Kind: KindUpstream, Status: http.StatusBadRequest, Message: "invalid upstream request", Path: path, Err: err}
	}
	httpx.SetIdentity(req.Header, s.Token, s.ClientID)
	if v == VariantAPI {
		req.Header.Set("Accept", "application/json")
		f.descriptor.Apply(req.Header)
	}

	obs.Debug("proxy.forward", obs.Fields{"variant": v.String(), "path": path, "mode": f.mode.String(), "base": base})
	start := time.Now()
	resp, err := f.client.Do(req)
	obs.UpstreamDurationSeconds.WithLabelValues(v.String()).Observe(time.Since(start).Seconds())
	if err != nil {
		obs.Error("proxy.unreachable", obs.Fields{"variant": v.String(), "path": path, "base": base, "err": err.Error()})
		return nil, &ProxyError{
			Kind:    KindUnreachable,
			Status:  http.StatusBadGateway,
			Message: fmt.Sprintf("failed to contact media server (path: %s)", path),
			Path:    path,
			Err:     err,
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		obs.Error("proxy.upstream_status", obs.Fields{
			"variant": v.String(),
			"path":    path,
			"status":  resp.StatusCode,
			"body":    obs.Snippet(body, 512),
		})
		return nil, &ProxyError{
			Kind:    KindUpstream,
			Status:  resp.StatusCode,
			Message: fmt.Sprintf("media server error: %s (path: %s)", statusText(resp.StatusCode), path),
			Path:    path,
		}
	}

	if v == VariantImage {
		ct := resp.Header.Get("Content-Type")
		if ct == "" {
			ct = defaultImageType
		}
		return &Response{ContentType: ct, CacheSeconds: f.imagePolicy.Classify(path), Body: resp.Body}, nil
	}
	return f.relayJSON(resp, path)
}

// relayJSON decodes and re-encodes the payload so only well-formed JSON reaches clients.
func (f *Forwarder) relayJSON(resp *http.Response, path string) (*Response, error) {
	defer resp.Body.Close()
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	var payload any
	err := dec.Decode(&payload)
	if err == nil {
		// exactly one value; anything after it is a malformed body
		if extra := dec.Decode(new(json.RawMessage)); !errors.Is(extra, io.EOF) {
			err = errors.New("trailing data after JSON value")
		}
	}
	if err != nil {
		obs.Error("proxy.decode", obs.Fields{"path": path, "err": err.Error()})
		return nil, &ProxyError{
			Kind:    KindBadResponse,
			Status:  http.StatusBadGateway,
			Message: fmt.Sprintf("media server returned invalid JSON (path: %s)", path),
			Path:    path,
			Err:     err,
		}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		return nil, &ProxyError{Kind: KindBadResponse, Status: http.StatusBadGateway, Message: "could not encode response", Path: path, Err: err}
	}
	return &Response{
		ContentType:  "application/json",
		CacheSeconds: f.apiPolicy.Classify(path),
		Body:         io.NopCloser(&buf),
	}, nil
}

func statusText(code int) string {
	if t := http.StatusText(code); t != "" {
		return t
	}
	return fmt.Sprintf("status %d", code)
}
