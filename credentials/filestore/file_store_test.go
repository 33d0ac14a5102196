package filestore_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jrsteele09/go-analytics-client/credentials"
	"github.com/jrsteele09/go-analytics-client/credentials/filestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) (*filestore.FileStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "credentials.yaml")
	return filestore.New(path), path
}

func TestFileStore_SurvivesReload(t *testing.T) {
	ctx := context.Background()
	s, path := newStore(t)
	require.NoError(t, s.Load(ctx))

	id := &credentials.Identity{ID: 3, Username: "alice", Email: "alice@example.com"}
	require.NoError(t, s.Save(ctx, "access-1", "refresh-1", id))
	require.NoError(t, s.SetAccess(ctx, "access-2"))

	reloaded := filestore.New(path)
	require.NoError(t, reloaded.Load(ctx))
	assert.Equal(t, "access-2", reloaded.Access(ctx))
	assert.Equal(t, "refresh-1", reloaded.Refresh(ctx))
	assert.Equal(t, id, reloaded.Identity(ctx))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestFileStore_LoadMissingFile(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	require.NoError(t, s.Load(ctx))
	assert.Empty(t, s.Access(ctx))
	assert.Empty(t, s.Refresh(ctx))
	assert.Nil(t, s.Identity(ctx))
}

func TestFileStore_ClearIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s, path := newStore(t)

	require.NoError(t, s.Save(ctx, "a", "r", nil))
	require.NoError(t, s.Clear(ctx))
	require.NoError(t, s.Clear(ctx))

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	assert.Empty(t, s.Access(ctx))
}

func TestFileStore_SaveOverwritesWholesale(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	require.NoError(t, s.Save(ctx, "a", "r", &credentials.Identity{Username: "bob"}))
	require.NoError(t, s.Save(ctx, "a2", "r2", nil))

	assert.Equal(t, "a2", s.Access(ctx))
	assert.Equal(t, "r2", s.Refresh(ctx))
	assert.Nil(t, s.Identity(ctx))
}

func TestFileStore_IdentityIsCopied(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	require.NoError(t, s.Save(ctx, "a", "r", &credentials.Identity{Username: "bob"}))
	got := s.Identity(ctx)
	got.Username = "mallory"
	assert.Equal(t, "bob", s.Identity(ctx).Username)
}

func TestFileStore_LoadCorruptFile(t *testing.T) {
	ctx := context.Background()
	s, path := newStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o700))
	require.NoError(t, os.WriteFile(path, []byte("access: [unterminated"), 0o600))

	require.Error(t, s.Load(ctx))
}
