package session

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/matst80/mediabroker/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) (*Repository, *clock.Mock) {
	t.Helper()
	mock := clock.NewMock()
	st, err := store.NewMemoryStore(64, mock)
	require.NoError(t, err)
	return NewRepository(st, time.Hour, time.Minute), mock
}

func fullSession() *Session {
	return &Session{
		Token:         "tok",
		RemoteAddress: "https://1-2-3-4.abc.plex.direct:32400",
		LocalAddress:  "http://192.168.1.10:32400",
		ClientID:      "client-1",
	}
}

func TestRepository_SaveLoadClear(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)

	require.NoError(t, repo.Save(ctx, "sid", fullSession()))
	got, err := repo.Load(ctx, "sid")
	require.NoError(t, err)
	assert.Equal(t, fullSession(), got)

	require.NoError(t, repo.Clear(ctx, "sid"))
	_, err = repo.Load(ctx, "sid")
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestRepository_SaveRefusesPartial(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)

	for _, s := range []*Session{
		{RemoteAddress: "https://a", LocalAddress: "http://b"},
		{Token: "t", LocalAddress: "http://b"},
		{Token: "t", RemoteAddress: "https://a"},
		nil,
	} {
		assert.Error(t, repo.Save(ctx, "sid", s))
	}
	_, err := repo.Load(ctx, "sid")
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestRepository_SessionExpires(t *testing.T) {
	ctx := context.Background()
	repo, mock := newTestRepo(t)

	require.NoError(t, repo.Save(ctx, "sid", fullSession()))
	mock.Add(time.Hour)
	_, err := repo.Load(ctx, "sid")
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestRepository_PairingConsumedOnce(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)

	require.NoError(t, repo.PutPairing(ctx, "sid", PairingRequest{PairingID: "99", ClientID: "c"}))
	p, err := repo.TakePairing(ctx, "sid")
	require.NoError(t, err)
	assert.Equal(t, "99", p.PairingID)
	assert.Equal(t, "c", p.ClientID)

	_, err = repo.TakePairing(ctx, "sid")
	assert.ErrorIs(t, err, ErrNoPairing)
}

func TestRepository_PairingExpires(t *testing.T) {
	ctx := context.Background()
	repo, mock := newTestRepo(t)

	require.NoError(t, repo.PutPairing(ctx, "sid", PairingRequest{PairingID: "99", ClientID: "c"}))
	mock.Add(2 * time.Minute)
	_, err := repo.TakePairing(ctx, "sid")
	assert.ErrorIs(t, err, ErrNoPairing)
}

func TestRepository_ClientIDStableAcrossLogout(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)

	first, err := repo.ClientID(ctx, "sid")
	require.NoError(t, err)
	require.NotEmpty(t, first)

	require.NoError(t, repo.Save(ctx, "sid", fullSession()))
	require.NoError(t, repo.Clear(ctx, "sid"))

	again, err := repo.ClientID(ctx, "sid")
	require.NoError(t, err)
	assert.Equal(t, first, again)

	other, err := repo.ClientID(ctx, "other")
	require.NoError(t, err)
	assert.NotEqual(t, first, other)
}
