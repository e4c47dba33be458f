package identity

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/hushwire/hushwire/internal/database"
	"github.com/stretchr/testify/require"
)

func newTestDirectory(t *testing.T) *SQLDirectory {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSQLDirectory(db.DB)
}

func TestDirectory_CreateAndLookup(t *testing.T) {
	dir := newTestDirectory(t)
	ctx := context.Background()

	created, err := dir.Create(ctx, "alice")
	require.NoError(t, err)
	require.NotZero(t, created.ID)

	found, err := dir.Lookup(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, created, found)
}

func TestDirectory_LookupUnknown(t *testing.T) {
	dir := newTestDirectory(t)

	_, err := dir.Lookup(context.Background(), 12345)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDirectory_DuplicateUsername(t *testing.T) {
	dir := newTestDirectory(t)
	ctx := context.Background()

	_, err := dir.Create(ctx, "alice")
	require.NoError(t, err)

	_, err = dir.Create(ctx, "alice")
	require.Error(t, err)
}
