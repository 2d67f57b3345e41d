package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func notFound(ctx context.Context, name string) (int, bool, error) {
	return 0, false, nil
}

func TestStore_FindOrCreateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	store, err := Open(ctx, "categories", NewFileBackend(fs, "category_ids.json"))
	require.NoError(t, err)

	creates := 0
	create := func(ctx context.Context) (int, error) {
		creates++
		return 17, nil
	}

	id, outcome, err := store.FindOrCreate(ctx, "Handles", notFound, create)
	require.NoError(t, err)
	assert.Equal(t, 17, id)
	assert.Equal(t, OutcomeCreated, outcome)

	id, outcome, err = store.FindOrCreate(ctx, "Handles", notFound, create)
	require.NoError(t, err)
	assert.Equal(t, 17, id)
	assert.Equal(t, OutcomeCached, outcome)
	assert.Equal(t, 1, creates)
}

func TestStore_RemoteMatchSkipsCreate(t *testing.T) {
	ctx := context.Background()
	store, err := Open(ctx, "manufacturers", NewFileBackend(afero.NewMemMapFs(), "m.json"))
	require.NoError(t, err)

	lookup := func(ctx context.Context, name string) (int, bool, error) {
		if name == "Viefe" {
			return 42, true, nil
		}
		return 0, false, nil
	}
	create := func(ctx context.Context) (int, error) {
		t.Fatal("create must not be called")
		return 0, nil
	}

	id, outcome, err := store.FindOrCreate(ctx, "Viefe", lookup, create)
	require.NoError(t, err)
	assert.Equal(t, 42, id)
	assert.Equal(t, OutcomeFound, outcome)

	cached, ok := store.Get("Viefe")
	assert.True(t, ok)
	assert.Equal(t, 42, cached)
}

func TestStore_FailuresAreNotCached(t *testing.T) {
	ctx := context.Background()
	store, err := Open(ctx, "categories", NewFileBackend(afero.NewMemMapFs(), "c.json"))
	require.NoError(t, err)

	_, _, err = store.FindOrCreate(ctx, "A", func(context.Context, string) (int, bool, error) {
		return 0, false, errors.New("listing failed")
	}, nil)
	assert.Error(t, err)

	_, _, err = store.FindOrCreate(ctx, "A", notFound, func(context.Context) (int, error) {
		return 0, errors.New("HTTP 500")
	})
	assert.Error(t, err)

	assert.Equal(t, 0, store.Len())
}

func TestStore_PersistsEachEntryImmediately(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	backend := NewFileBackend(fs, "cache/category_ids.json")

	store, err := Open(ctx, "categories", backend)
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, "Handles", 3))

	reloaded, err := Open(ctx, "categories", NewFileBackend(fs, "cache/category_ids.json"))
	require.NoError(t, err)
	id, ok := reloaded.Get("Handles")
	assert.True(t, ok)
	assert.Equal(t, 3, id)

	require.NoError(t, store.Put(ctx, "Door Handles", 4))
	reloaded, err = Open(ctx, "categories", NewFileBackend(fs, "cache/category_ids.json"))
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"Handles": 3, "Door Handles": 4}, reloaded.Snapshot())

	entries, err := afero.ReadDir(fs, "cache")
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestFileBackend_LoadMissingAndCorrupt(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()

	entries, err := NewFileBackend(fs, "missing.json").Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)

	require.NoError(t, afero.WriteFile(fs, "bad.json", []byte("{not json"), 0o644))
	_, err = NewFileBackend(fs, "bad.json").Load(ctx)
	assert.Error(t, err)
}

func TestFileBackend_FlatObjectFormat(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	require.NoError(t, NewFileBackend(fs, "ids.json").Save(ctx, map[string]int{"Uchwyty łazienkowe": 9}))

	data, err := afero.ReadFile(fs, "ids.json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"Uchwyty łazienkowe": 9}`, string(data))
	assert.Contains(t, string(data), "łazienkowe")
}

func TestRedisBackend(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	backend := NewRedisBackend(rdb, "mirror:cache:", "manufacturers")
	store, err := Open(ctx, "manufacturers", backend)
	require.NoError(t, err)
	assert.Equal(t, 0, store.Len())

	require.NoError(t, store.Put(ctx, "Viefe", 42))
	assert.Equal(t, "42", mr.HGet("mirror:cache:manufacturers", "Viefe"))

	reloaded, err := Open(ctx, "manufacturers", NewRedisBackend(rdb, "mirror:cache:", "manufacturers"))
	require.NoError(t, err)
	id, ok := reloaded.Get("Viefe")
	assert.True(t, ok)
	assert.Equal(t, 42, id)
}

func TestRedisBackend_CorruptValue(t *testing.T) {
	mr := miniredis.RunT(t)
	mr.HSet("mirror:cache:categories", "Handles", "abc")
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	_, err := NewRedisBackend(rdb, "mirror:cache:", "categories").Load(context.Background())
	assert.Error(t, err)
}

func TestStore_ForgetDropsDeletedIDs(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	backend := NewFileBackend(fs, "category_ids.json")
	store, err := Open(ctx, "categories", backend)
	require.NoError(t, err)

	require.NoError(t, store.Put(ctx, "Handles", 3))
	require.NoError(t, store.Put(ctx, "Door Handles", 4))
	require.NoError(t, store.Put(ctx, "Knobs", 5))

	dropped, err := store.Forget(ctx, []int{3, 5, 99})
	require.NoError(t, err)
	assert.Equal(t, 2, dropped)

	persisted, err := backend.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"Door Handles": 4}, persisted)

	dropped, err = store.Forget(ctx, []int{99})
	require.NoError(t, err)
	assert.Zero(t, dropped)
}

func TestRedisBackend_ForgetSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	backend := NewRedisBackend(rdb, "mirror:cache:", "categories")
	store, err := Open(ctx, "categories", backend)
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, "Handles", 10))
	require.NoError(t, store.Put(ctx, "Hooks", 11))
	require.NoError(t, store.Put(ctx, "Knobs", 12))

	dropped, err := store.Forget(ctx, []int{10, 11})
	require.NoError(t, err)
	assert.Equal(t, 2, dropped)

	reloaded, err := Open(ctx, "categories", backend)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"Knobs": 12}, reloaded.Snapshot())

	_, err = reloaded.Forget(ctx, []int{12})
	require.NoError(t, err)
	assert.False(t, mr.Exists("mirror:cache:categories"))

	empty, err := Open(ctx, "categories", backend)
	require.NoError(t, err)
	assert.Zero(t, empty.Len())
}
