package consent

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStoreService(t *testing.T) *StoreService {
	t.Helper()
	s, err := NewStoreService(filepath.Join(t.TempDir(), "consent.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreService_GrantRevokeCycle(t *testing.T) {
	s := newTestStoreService(t)
	ctx := context.Background()

	ok, err := s.Check(ctx, "u1", "marketing", "contact_preferences")
	require.NoError(t, err)
	assert.False(t, ok, "no grant recorded yet")

	require.NoError(t, s.Grant(ctx, "u1", "marketing"))
	ok, err = s.Check(ctx, "u1", "marketing", "contact_preferences")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.Revoke(ctx, "u1", "marketing"))
	ok, err = s.Check(ctx, "u1", "marketing", "contact_preferences")
	require.NoError(t, err)
	assert.False(t, ok, "revocation must stick")

	// Re-granting revives the revoked row.
	require.NoError(t, s.Grant(ctx, "u1", "marketing"))
	ok, err = s.Check(ctx, "u1", "marketing", "contact_preferences")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStoreService_NecessaryAlwaysGranted(t *testing.T) {
	s := newTestStoreService(t)

	ok, err := s.Check(context.Background(), "unknown-user", "necessary", "order_history")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStoreService_GrantsAreScopedPerUser(t *testing.T) {
	s := newTestStoreService(t)
	ctx := context.Background()

	require.NoError(t, s.Grant(ctx, "u1", "personalization"))

	ok, err := s.Check(ctx, "u2", "personalization", "browsing_history")
	require.NoError(t, err)
	assert.False(t, ok)
}
