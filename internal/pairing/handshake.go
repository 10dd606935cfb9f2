// Package pairing drives the directory pairing protocol: it turns an approved
// pairing code into a durable credential plus resolved server addresses and
// persists them as the browser's session.
package pairing

import (
	"context"
	"errors"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/matst80/mediabroker/internal/directory"
	"github.com/matst80/mediabroker/internal/obs"
	"github.com/matst80/mediabroker/internal/resolve"
	"github.com/matst80/mediabroker/internal/session"
	"go.uber.org/multierr"
	"golang.org/x/sync/singleflight"
)

// Directory is the subset of the directory service the handshake uses.
type Directory interface {
	CreatePin(ctx context.Context, clientID string) (*directory.Pin, error)
	CheckPin(ctx context.Context, pinID, clientID string) (*directory.Pin, error)
	Resources(ctx context.Context, token, clientID string) ([]directory.Resource, error)
}

// Handshake owns login start, completion, and logout for browser sessions.
type Handshake struct {
	dir      Directory
	repo     *session.Repository
	resolver *resolve.Resolver
	retry    RetryPolicy
	clock    clock.Clock
	authApp  string
	product  string
	timeout  time.Duration
	group    singleflight.Group
}

// DefaultCompleteTimeout bounds one shared completion run.
const DefaultCompleteTimeout = 30 * time.Second

// Option configures a Handshake.
type Option func(*Handshake)

// WithRetry overrides DefaultRetry.
func WithRetry(p RetryPolicy) Option { return func(h *Handshake) { h.retry = p } }

func WithClock(c clock.Clock) Option { return func(h *Handshake) { h.clock = c } }

func WithResolver(r *resolve.Resolver) Option { return func(h *Handshake) { h.resolver = r } }

// WithTimeout bounds a completion run independently of any single caller.
func WithTimeout(d time.Duration) Option { return func(h *Handshake) { h.timeout = d } }

// WithAuthApp sets the hosted approval page and the product name shown on it.
func WithAuthApp(url, product string) Option {
	return func(h *Handshake) { h.authApp = url; h.product = product }
}

// New creates a Handshake.
func New(dir Directory, repo *session.Repository, opts ...Option) *Handshake {
	h := &Handshake{
		dir:      dir,
		repo:     repo,
		resolver: resolve.New(""),
		retry:    DefaultRetry,
		clock:    clock.New(),
		authApp:  directory.DefaultAuthApp,
		timeout:  DefaultCompleteTimeout,
	}
	for _, o := range opts {
		o(h)
	}
	if h.timeout <= 0 {
		h.timeout = DefaultCompleteTimeout
	}
	return h
}

// Start requests a pairing code, remembers it for sid, and returns the URL
// where the user approves it.
func (h *Handshake) Start(ctx context.Context, sid, forwardURL string) (string, error) {
	clientID, err := h.repo.ClientID(ctx, sid)
	if err != nil {
		return "", err
	}
	pin, err := h.dir.CreatePin(ctx, clientID)
	if err != nil {
		obs.ErrorsTotal.WithLabelValues("pin_create").Inc()
		return "", upstreamError("could not request pairing code", err)
	}
	if err := h.repo.PutPairing(ctx, sid, session.PairingRequest{PairingID: pin.ID.String(), ClientID: clientID}); err != nil {
		return "", err
	}
	obs.PairingsStartedTotal.Inc()
	obs.Info("pairing.started", obs.Fields{"pin": pin.ID.String(), "client": clientID})
	return directory.AuthURL(h.authApp, clientID, pin.Code, forwardURL, h.product), nil
}

// Complete consumes the pending pairing for sid and establishes its session.
// On any failure the session for sid is cleared. Concurrent calls for the
// same sid share one run; a caller that gives up early gets its own ctx
// error while the run continues for the others.
func (h *Handshake) Complete(ctx context.Context, sid string) (*session.Session, error) {
	ch := h.group.DoChan(sid, func() (any, error) {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.timeout)
		defer cancel()
		return h.complete(runCtx, sid)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*session.Session), nil
	}
}

func (h *Handshake) complete(ctx context.Context, sid string) (*session.Session, error) {
	req, err := h.repo.TakePairing(ctx, sid)
	if err != nil {
		var authErr error = &AuthError{Kind: KindMissingPairing, Msg: "missing pairing data, please log in again"}
		if !errors.Is(err, session.ErrNoPairing) {
			authErr = &AuthError{Kind: KindMissingPairing, Msg: "could not read pairing data", Err: err}
		}
		return nil, h.fail(ctx, sid, authErr)
	}

	sess, err := h.resolve(ctx, req.PairingID, req.ClientID)
	if err != nil {
		return nil, h.fail(ctx, sid, err)
	}
	if err := h.repo.Save(ctx, sid, sess); err != nil {
		return nil, h.fail(ctx, sid, err)
	}
	obs.HandshakesTotal.WithLabelValues("ok").Inc()
	obs.Info("pairing.completed", obs.Fields{"pin": req.PairingID, "remote": sess.RemoteAddress, "local": sess.LocalAddress})
	return sess, nil
}

// fail clears any session for sid so no stale credential survives.
func (h *Handshake) fail(ctx context.Context, sid string, err error) error {
	result := "error"
	var ae *AuthError
	if errors.As(err, &ae) {
		result = ae.Kind.String()
	}
	obs.HandshakesTotal.WithLabelValues(result).Inc()
	obs.Error("pairing.failed", obs.Fields{"err": err.Error()})
	if clearErr := h.repo.Clear(context.WithoutCancel(ctx), sid); clearErr != nil {
		obs.Error("pairing.clear", obs.Fields{"err": clearErr.Error()})
		return multierr.Append(err, clearErr)
	}
	return err
}

// resolve runs the network steps: poll the pin, list servers, select addresses.
func (h *Handshake) resolve(ctx context.Context, pairingID, clientID string) (*session.Session, error) {
	token, err := h.awaitToken(ctx, pairingID, clientID)
	if err != nil {
		return nil, err
	}

	resources, err := h.dir.Resources(ctx, token, clientID)
	if err != nil {
		return nil, upstreamError("failed to fetch server resources", err)
	}
	var server *directory.Resource
	for i := range resources {
		if resources[i].ProvidesServer() {
			server = &resources[i]
			break
		}
	}
	if server == nil {
		return nil, &AuthError{Kind: KindNoServerFound, Msg: "no server found associated with your account"}
	}
	obs.Debug("pairing.connections", obs.Fields{"server": server.Name, "connections": server.Connections})

	candidates := make([]resolve.Endpoint, 0, len(server.Connections))
	for _, c := range server.Connections {
		candidates = append(candidates, resolve.Endpoint{
			Protocol: c.Protocol,
			Address:  c.Address,
			Port:     c.Port,
			IsLocal:  c.Local,
			URI:      c.URI,
		})
	}
	addrs, err := h.resolver.Select(candidates)
	if err != nil {
		return nil, &AuthError{Kind: KindNoConnection, Msg: "could not find suitable connection URLs for your server", Err: err}
	}
	if addrs.Local == addrs.Remote {
		obs.Info("pairing.local_fallback", obs.Fields{"server": server.Name})
	}
	return &session.Session{
		Token:         token,
		RemoteAddress: addrs.Remote,
		LocalAddress:  addrs.Local,
		ClientID:      clientID,
	}, nil
}

func (h *Handshake) awaitToken(ctx context.Context, pairingID, clientID string) (string, error) {
	for attempt := 0; ; attempt++ {
		pin, err := h.dir.CheckPin(ctx, pairingID, clientID)
		if err != nil {
			return "", upstreamError("failed to verify pairing code", err)
		}
		if pin.AuthToken != "" {
			return pin.AuthToken, nil
		}
		if attempt >= h.retry.MaxRetries {
			return "", &AuthError{Kind: KindPendingApproval, Msg: "no credential received, please complete the approval first"}
		}
		obs.PairingRetriesTotal.Inc()
		obs.Warn("pairing.pending", obs.Fields{"pin": pairingID, "attempt": attempt + 1, "backoff": h.retry.Backoff.String()})
		if err := h.retry.wait(ctx, h.clock); err != nil {
			return "", upstreamError("pairing wait interrupted", err)
		}
	}
}

// Logout clears the session for sid.
func (h *Handshake) Logout(ctx context.Context, sid string) error {
	if err := h.repo.Clear(ctx, sid); err != nil {
		return err
	}
	obs.Info("session.logout", obs.Fields{})
	return nil
}

func upstreamError(msg string, err error) *AuthError {
	ae := &AuthError{Kind: KindUpstreamFailure, Msg: msg, Err: err}
	var se *directory.StatusError
	if errors.As(err, &se) {
		ae.Status = se.Status
		obs.Error("directory.status", obs.Fields{"op": se.Op, "status": se.Status, "body": obs.Snippet([]byte(se.Body), 512)})
	}
	return ae
}
