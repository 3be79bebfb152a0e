package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestAppSessionLifecycle(t *testing.T) {
	mr, rdb := newRedis(t)
	store := NewAppSessionStore(rdb, time.Hour)
	ctx := context.Background()

	as, err := store.Create(ctx, "user-1", "10.0.0.1", "go-test")
	require.NoError(t, err)
	require.NotEmpty(t, as.ID)
	assert.Equal(t, as.IssuedAt+3600, as.ExpiresAt)

	got, err := store.Get(ctx, as.ID)
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.UserID)
	assert.Equal(t, "10.0.0.1", got.IP)
	assert.Equal(t, as.ID, got.ID)

	require.NoError(t, store.Delete(ctx, as.ID))
	_, err = store.Get(ctx, as.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, mr.Exists(userSetKey("user-1")))

	// deleting twice is fine
	require.NoError(t, store.Delete(ctx, as.ID))
}

func TestAppSessionExpires(t *testing.T) {
	mr, rdb := newRedis(t)
	store := NewAppSessionStore(rdb, time.Minute)
	ctx := context.Background()

	as, err := store.Create(ctx, "user-1", "", "")
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)

	_, err = store.Get(ctx, as.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRevokeAllForUser(t *testing.T) {
	_, rdb := newRedis(t)
	store := NewAppSessionStore(rdb, time.Hour)
	ctx := context.Background()

	a, err := store.Create(ctx, "user-1", "", "")
	require.NoError(t, err)
	b, err := store.Create(ctx, "user-1", "", "")
	require.NoError(t, err)
	other, err := store.Create(ctx, "user-2", "", "")
	require.NoError(t, err)

	require.NoError(t, store.RevokeAllForUser(ctx, "user-1"))
	for _, id := range []string{a.ID, b.ID} {
		_, err := store.Get(ctx, id)
		assert.ErrorIs(t, err, ErrNotFound)
	}
	_, err = store.Get(ctx, other.ID)
	assert.NoError(t, err)

	// no sessions left is not an error
	require.NoError(t, store.RevokeAllForUser(ctx, "user-1"))
}

func TestShouldTouchSeen(t *testing.T) {
	mr, rdb := newRedis(t)
	store := NewAppSessionStore(rdb, time.Hour)
	ctx := context.Background()

	due, err := store.ShouldTouchSeen(ctx, "user-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, due)

	due, err = store.ShouldTouchSeen(ctx, "user-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, due)

	mr.FastForward(61 * time.Second)
	due, err = store.ShouldTouchSeen(ctx, "user-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, due)
}

func TestCeremonyStoreTakeIsSingleUse(t *testing.T) {
	_, rdb := newRedis(t)
	store := NewStore(rdb, 5*time.Minute)
	ctx := context.Background()

	sd := &webauthn.SessionData{Challenge: "abc123", UserID: []byte("user-1")}
	require.NoError(t, store.Save(ctx, Registration, "user-1", sd))

	got, err := store.Take(ctx, Registration, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "abc123", got.Challenge)
	assert.Equal(t, []byte("user-1"), got.UserID)

	_, err = store.Take(ctx, Registration, "user-1")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.Take(ctx, Login, "user-1")
	assert.ErrorIs(t, err, ErrNotFound)
}
