package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/matst80/mediabroker/internal/store"
)

const (
	DefaultTTL        = 30 * 24 * time.Hour
	DefaultPairingTTL = 15 * time.Minute

	sessionPrefix = "session:"
	pairingPrefix = "pairing:"
	clientPrefix  = "client:"
)

// Repository maps browser session ids to Session values in a store.
// Each Session is written as a single value so replacement is atomic.
type Repository struct {
	store      store.Store
	ttl        time.Duration
	pairingTTL time.Duration
}

// NewRepository wraps st. Zero durations select the defaults.
func NewRepository(st store.Store, ttl, pairingTTL time.Duration) *Repository {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if pairingTTL <= 0 {
		pairingTTL = DefaultPairingTTL
	}
	return &Repository{store: st, ttl: ttl, pairingTTL: pairingTTL}
}

// TTL is the lifetime applied to saved sessions.
func (r *Repository) TTL() time.Duration { return r.ttl }

// Load returns the established session for sid or ErrNoSession.
func (r *Repository) Load(ctx context.Context, sid string) (*Session, error) {
	if sid == "" {
		return nil, ErrNoSession
	}
	raw, err := r.store.Get(ctx, sessionPrefix+sid)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, err
	}
	var s Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if !s.Established() {
		return nil, ErrNoSession
	}
	return &s, nil
}

// Save replaces the session for sid. Partially populated sessions are refused.
func (r *Repository) Save(ctx context.Context, sid string, s *Session) error {
	if sid == "" {
		return errors.New("session: empty session id")
	}
	if !s.Established() {
		return errors.New("session: refusing to save incomplete session")
	}
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	return r.store.Set(ctx, sessionPrefix+sid, string(b), r.ttl)
}

// Clear removes the session for sid. The client identity is kept.
func (r *Repository) Clear(ctx context.Context, sid string) error {
	if sid == "" {
		return nil
	}
	return r.store.Delete(ctx, sessionPrefix+sid)
}

// PutPairing records the pending pairing for sid.
func (r *Repository) PutPairing(ctx context.Context, sid string, p PairingRequest) error {
	b, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode pairing: %w", err)
	}
	return r.store.Set(ctx, pairingPrefix+sid, string(b), r.pairingTTL)
}

// TakePairing returns and deletes the pending pairing for sid.
func (r *Repository) TakePairing(ctx context.Context, sid string) (*PairingRequest, error) {
	if sid == "" {
		return nil, ErrNoPairing
	}
	raw, err := r.store.Take(ctx, pairingPrefix+sid)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNoPairing
	}
	if err != nil {
		return nil, err
	}
	var p PairingRequest
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, fmt.Errorf("decode pairing: %w", err)
	}
	if p.PairingID == "" || p.ClientID == "" {
		return nil, ErrNoPairing
	}
	return &p, nil
}

// ClientID returns the stable client identifier for sid, creating one on first use.
func (r *Repository) ClientID(ctx context.Context, sid string) (string, error) {
	id, err := r.store.Get(ctx, clientPrefix+sid)
	if err == nil && id != "" {
		return id, nil
	}
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return "", err
	}
	id = uuid.NewString()
	if err := r.store.Set(ctx, clientPrefix+sid, id, r.ttl); err != nil {
		return "", err
	}
	return id, nil
}
