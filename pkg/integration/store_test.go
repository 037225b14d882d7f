package integration

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func newTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cipher, err := NewCipher(testKey)
	require.NoError(t, err)
	s, err := NewStore(db, cipher, zerolog.Nop())
	require.NoError(t, err)
	return s
}

func TestCipher_RoundTrip(t *testing.T) {
	c, err := NewCipher(testKey)
	require.NoError(t, err)

	sealed, err := c.Seal([]byte("secret payload"))
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "secret")

	plain, err := c.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "secret payload", string(plain))
}

func TestCipher_BadKey(t *testing.T) {
	_, err := NewCipher("not-hex")
	assert.Error(t, err)

	_, err = NewCipher("0011")
	assert.Error(t, err)
}

func TestCipher_TamperedPayload(t *testing.T) {
	c, err := NewCipher(testKey)
	require.NoError(t, err)

	sealed, err := c.Seal([]byte("data"))
	require.NoError(t, err)
	sealed[len(sealed)-1] ^= 0xff

	_, err = c.Open(sealed)
	assert.Error(t, err)
}

func TestStore_PutGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	expiry := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	in := Credentials{
		Enabled:      true,
		AccessToken:  "at-123",
		RefreshToken: "rt-456",
		Expiry:       expiry,
		CalendarID:   "primary",
		Extra:        map[string]string{"scope": "calendar"},
	}
	require.NoError(t, s.Put(ctx, "acme", "google-calendar", in))

	got, err := s.Get(ctx, "acme", "google-calendar")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, in, *got)
}

func TestStore_GetAbsent(t *testing.T) {
	s := newTestStore(t)

	got, err := s.Get(context.Background(), "acme", "google-calendar")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_PutOverwrites(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "acme", "google-calendar", Credentials{AccessToken: "old"}))
	require.NoError(t, s.Put(ctx, "acme", "google-calendar", Credentials{AccessToken: "new"}))

	got, err := s.Get(ctx, "acme", "google-calendar")
	require.NoError(t, err)
	assert.Equal(t, "new", got.AccessToken)
}

func TestStore_Delete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "acme", "google-calendar", Credentials{Enabled: true}))
	require.NoError(t, s.Delete(ctx, "acme", "google-calendar"))

	got, err := s.Get(ctx, "acme", "google-calendar")
	require.NoError(t, err)
	assert.Nil(t, got)

	// Deleting again is a no-op.
	require.NoError(t, s.Delete(ctx, "acme", "google-calendar"))
}

func TestCredentials_Expired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	assert.False(t, Credentials{}.Expired(now))
	assert.False(t, Credentials{Expiry: now.Add(time.Minute)}.Expired(now))
	assert.True(t, Credentials{Expiry: now.Add(-time.Minute)}.Expired(now))
}
