package kvstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]Store {
	t.Helper()

	fileStore, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	sqliteStore, err := NewSQLiteStore(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	redisStore := NewRedisStoreFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test:", 0)

	stores := map[string]Store{
		"memory": NewMemoryStore(),
		"file":   fileStore,
		"sqlite": sqliteStore,
		"redis":  redisStore,
	}
	t.Cleanup(func() {
		for _, s := range stores {
			_ = s.Close()
		}
	})
	return stores
}

func TestStores_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Get(ctx, "slg_v1")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.Put(ctx, "slg_v1", []byte(`{"finished":true}`)))
			got, err := s.Get(ctx, "slg_v1")
			require.NoError(t, err)
			assert.Equal(t, `{"finished":true}`, string(got))

			require.NoError(t, s.Put(ctx, "slg_v1", []byte(`{"finished":false}`)))
			got, err = s.Get(ctx, "slg_v1")
			require.NoError(t, err)
			assert.Equal(t, `{"finished":false}`, string(got))

			require.NoError(t, s.Delete(ctx, "slg_v1"))
			_, err = s.Get(ctx, "slg_v1")
			assert.ErrorIs(t, err, ErrNotFound)

			// Deleting a missing key is fine.
			require.NoError(t, s.Delete(ctx, "slg_v1"))
		})
	}
}

func TestSlot_KeysAreIndependent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	endpoint := NewSlot(store, "slg_api_base_v1")
	snapshot := NewSlot(store, "slg_v1")

	require.NoError(t, endpoint.Save(ctx, []byte("https://a.example/exec")))
	require.NoError(t, snapshot.SaveJSON(ctx, map[string]bool{"finished": true}))

	require.NoError(t, snapshot.Clear(ctx))

	v, ok, err := endpoint.Load(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "https://a.example/exec", string(v))

	var decoded map[string]bool
	ok, err = snapshot.LoadJSON(ctx, &decoded)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSlot_LoadJSONRejectsGarbage(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Put(ctx, "slg_v1", []byte("{not json")))

	var v map[string]any
	_, err := NewSlot(store, "slg_v1").LoadJSON(ctx, &v)
	assert.Error(t, err)
}

func TestMemoryStore_ReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Put(ctx, "k", []byte("v")))
	require.NoError(t, s.Close())

	_, err := s.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrClosed)

	reopened := s.Reopen()
	got, err := reopened.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", string(got))
}

func TestFileStore_RejectsTraversal(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	assert.ErrorIs(t, s.Put(context.Background(), "../escape", []byte("x")), ErrInvalidKey)
}

func TestRedisStore_TTL(t *testing.T) {
	mr := miniredis.RunT(t)
	s := NewRedisStoreFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "", time.Minute)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "slg_v1", []byte("x")))
	assert.True(t, mr.Exists("memquiz:slg_v1"))

	mr.FastForward(2 * time.Minute)
	_, err := s.Get(ctx, "slg_v1")
	assert.ErrorIs(t, err, ErrNotFound)
}
