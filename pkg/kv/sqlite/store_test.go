package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gregLibert/rfaccess/pkg/kv"
)

func TestStore_GetMissing(t *testing.T) {
	store := NewStore(setupTestDB(t))

	_, err := store.Get(context.Background(), "distributions")
	assert.ErrorIs(t, err, kv.ErrNotFound)
}

func TestStore_PutAndGet(t *testing.T) {
	store := NewStore(setupTestDB(t))
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "emulation", []byte(`{"cardData":"0102","isActive":true}`)))

	got, err := store.Get(ctx, "emulation")
	require.NoError(t, err)
	assert.JSONEq(t, `{"cardData":"0102","isActive":true}`, string(got))
}

func TestStore_PutOverwrites(t *testing.T) {
	store := NewStore(setupTestDB(t))
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "distributions", []byte("[]")))
	require.NoError(t, store.Put(ctx, "distributions", []byte(`[{"id":"a"}]`)))

	got, err := store.Get(ctx, "distributions")
	require.NoError(t, err)
	assert.Equal(t, `[{"id":"a"}]`, string(got))
}

func TestStore_PutEmptyValue(t *testing.T) {
	store := NewStore(setupTestDB(t))
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "empty", nil))

	got, err := store.Get(ctx, "empty")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStore_Delete(t *testing.T) {
	store := NewStore(setupTestDB(t))
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "emulation", []byte("x")))
	require.NoError(t, store.Delete(ctx, "emulation"))

	_, err := store.Get(ctx, "emulation")
	assert.ErrorIs(t, err, kv.ErrNotFound)

	assert.NoError(t, store.Delete(ctx, "emulation"), "deleting a missing key is not an error")
}

func TestOpen_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rfaccess.db")
	ctx := context.Background()

	db, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, NewStore(db).Put(ctx, "distributions", []byte("[]")))
	require.NoError(t, db.Close())

	db, err = Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	assert.Equal(t, path, db.Path())

	got, err := NewStore(db).Get(ctx, "distributions")
	require.NoError(t, err)
	assert.Equal(t, "[]", string(got))
}
