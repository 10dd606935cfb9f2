// Package web is the broker's HTTP surface: login, callback, and logout
// routes plus the authenticated /proxy/api and /proxy/image relays.
package web

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/matst80/mediabroker/internal/forward"
	"github.com/matst80/mediabroker/internal/obs"
	"github.com/matst80/mediabroker/internal/pairing"
	"github.com/matst80/mediabroker/internal/ratelimit"
	"github.com/matst80/mediabroker/internal/session"
	"goji.io"
	"goji.io/pat"
	"goji.io/pattern"
)

// Authenticator runs the pairing flow for a browser session id.
type Authenticator interface {
	Start(ctx context.Context, sid, forwardURL string) (string, error)
	Complete(ctx context.Context, sid string) (*session.Session, error)
	Logout(ctx context.Context, sid string) error
}

// Sessions reads and clears established sessions.
type Sessions interface {
	Load(ctx context.Context, sid string) (*session.Session, error)
	Clear(ctx context.Context, sid string) error
	TTL() time.Duration
}

// Relay forwards a request to the session's media server.
type Relay interface {
	Forward(ctx context.Context, s *session.Session, v forward.Variant, path, rawQuery string) (*forward.Response, error)
}

const DefaultCookieName = "mediabroker_sid"

// Config configures the HTTP surface.
type Config struct {
	CookieName string
	// PublicURL is the externally visible base URL, used for the callback
	// forward URL and to decide on Secure cookies. Derived per request when empty.
	PublicURL     string
	PostLoginPath string
	LoginPath     string
	CORSOrigin    string
	// InvalidateOnAuthReject clears the session when the media server
	// answers 401 or 403.
	InvalidateOnAuthReject bool
	TrustProxy             bool
}

// Server is an http.Handler serving the broker routes.
type Server struct {
	*goji.Mux
	cfg      Config
	auth     Authenticator
	sessions Sessions
	relay    Relay
	limiter  *ratelimit.Limiter
}

// New creates a Server. limiter may be nil to disable login rate limiting.
func New(cfg Config, auth Authenticator, sessions Sessions, relay Relay, limiter *ratelimit.Limiter) *Server {
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultCookieName
	}
	if cfg.PostLoginPath == "" {
		cfg.PostLoginPath = "/"
	}
	if cfg.LoginPath == "" {
		cfg.LoginPath = "/login"
	}
	cfg.PublicURL = strings.TrimRight(cfg.PublicURL, "/")
	s := &Server{
		Mux:      goji.NewMux(),
		cfg:      cfg,
		auth:     auth,
		sessions: sessions,
		relay:    relay,
		limiter:  limiter,
	}
	s.HandleFunc(pat.Get("/auth/login"), s.handleLogin)
	s.HandleFunc(pat.Get("/auth/callback"), s.handleCallback)
	s.HandleFunc(pat.Post("/logout"), s.handleLogout)
	s.HandleFunc(pat.Get("/session"), s.handleSession)
	s.HandleFunc(pat.Get("/proxy/api/*"), s.proxyHandler(forward.VariantAPI))
	s.HandleFunc(pat.Get("/proxy/image/*"), s.proxyHandler(forward.VariantImage))
	return s
}

type apiError struct {
	Error string `json:"error"`
}

type sessionInfo struct {
	Authenticated bool   `json:"authenticated"`
	ServerURL     string `json:"serverUrl,omitempty"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.limiter != nil && !s.limiter.Allow(remoteIP(r, s.cfg.TrustProxy)) {
		obs.RateLimitedTotal.WithLabelValues("login").Inc()
		writeJSON(w, http.StatusTooManyRequests, apiError{Error: "too many login attempts, try again shortly"})
		return
	}
	sid := s.ensureSID(w, r)
	authURL, err := s.auth.Start(r.Context(), sid, s.baseURL(r)+"/auth/callback")
	if err != nil {
		obs.Error("web.login", obs.Fields{"err": err.Error()})
		s.renderError(w, http.StatusBadGateway, "Could not start sign-in with the directory service.")
		return
	}
	http.Redirect(w, r, authURL, http.StatusSeeOther)
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	sid := s.sid(r)
	if _, err := s.auth.Complete(r.Context(), sid); err != nil {
		status := http.StatusInternalServerError
		msg := "Authentication failed."
		var ae *pairing.AuthError
		if errors.As(err, &ae) {
			status = ae.HTTPStatus()
			msg = "Authentication failed: " + ae.Msg
		}
		s.renderError(w, status, msg)
		return
	}
	http.Redirect(w, r, s.cfg.PostLoginPath, http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if sid := s.sid(r); sid != "" {
		if err := s.auth.Logout(r.Context(), sid); err != nil {
			obs.Error("web.logout", obs.Fields{"err": err.Error()})
			writeJSON(w, http.StatusInternalServerError, apiError{Error: "logout failed"})
			return
		}
	}
	http.Redirect(w, r, s.cfg.LoginPath, http.StatusSeeOther)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Load(r.Context(), s.sid(r))
	if err != nil {
		if !errors.Is(err, session.ErrNoSession) {
			obs.Error("web.session", obs.Fields{"err": err.Error()})
		}
		writeJSON(w, http.StatusOK, sessionInfo{})
		return
	}
	writeJSON(w, http.StatusOK, sessionInfo{Authenticated: true, ServerURL: sess.RemoteAddress})
}

func (s *Server) proxyHandler(v forward.Variant) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		path := pattern.Path(ctx)
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		sid := s.sid(r)
		sess, err := s.sessions.Load(ctx, sid)
		if err != nil && !errors.Is(err, session.ErrNoSession) {
			obs.Error("web.proxy.session", obs.Fields{"err": err.Error()})
			obs.ErrorsTotal.WithLabelValues("session_load").Inc()
			writeJSON(w, http.StatusInternalServerError, apiError{Error: "session unavailable"})
			return
		}

		resp, err := s.relay.Forward(ctx, sess, v, path, r.URL.RawQuery)
		if err != nil {
			var pe *forward.ProxyError
			if !errors.As(err, &pe) {
				obs.Error("web.proxy", obs.Fields{"err": err.Error(), "path": path})
				writeJSON(w, http.StatusBadGateway, apiError{Error: "proxy failure"})
				return
			}
			if pe.AuthRejected() && s.cfg.InvalidateOnAuthReject {
				if clearErr := s.sessions.Clear(context.WithoutCancel(ctx), sid); clearErr != nil {
					obs.Error("web.proxy.clear", obs.Fields{"err": clearErr.Error()})
				} else {
					obs.Info("session.invalidated", obs.Fields{"status": pe.Status, "path": path})
				}
			}
			writeJSON(w, pe.HTTPStatus(), apiError{Error: pe.Message})
			return
		}
		defer resp.Body.Close()

		h := w.Header()
		h.Set("Content-Type", resp.ContentType)
		h.Set("Cache-Control", resp.CacheControl())
		if s.cfg.CORSOrigin != "" {
			h.Set("Access-Control-Allow-Origin", s.cfg.CORSOrigin)
		}
		w.WriteHeader(http.StatusOK)
		if _, err := io.Copy(w, resp.Body); err != nil {
			obs.Debug("web.proxy.copy", obs.Fields{"err": err.Error(), "path": path})
		}
	}
}

func (s *Server) sid(r *http.Request) string {
	c, err := r.Cookie(s.cfg.CookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

// ensureSID returns the browser's session id, issuing a cookie when absent.
func (s *Server) ensureSID(w http.ResponseWriter, r *http.Request) string {
	if sid := s.sid(r); sid != "" {
		return sid
	}
	sid := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.CookieName,
		Value:    sid,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure(r),
		// The approval page redirects back cross-site, so Strict would drop it.
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(s.sessions.TTL().Seconds()),
	})
	return sid
}

func (s *Server) secure(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.HasPrefix(s.baseURL(r), "https://")
}

func (s *Server) baseURL(r *http.Request) string {
	if s.cfg.PublicURL != "" {
		return s.cfg.PublicURL
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	} else if s.cfg.TrustProxy && r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

func (s *Server) renderError(w http.ResponseWriter, status int, msg string) {
	var page bytes.Buffer
	if err := Render(&page, "error", map[string]any{
		"Status":  status,
		"Message": msg,
		"Retry":   s.cfg.LoginPath,
	}); err != nil {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(msg))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = page.WriteTo(w)
}

func remoteIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			parts := strings.Split(xff, ",")
			return strings.TrimSpace(parts[0])
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
