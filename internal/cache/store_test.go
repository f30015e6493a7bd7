package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cachedThing struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewStore(rdb), mr
}

func TestStore_AsideFetchesOnceThenHits(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	calls := 0
	fetch := func(dest *cachedThing) func() error {
		return func() error {
			calls++
			*dest = cachedThing{ID: 1, Name: "ada"}
			return nil
		}
	}

	var first cachedThing
	require.NoError(t, store.Aside(ctx, UserKey(1), &first, UserTTL, fetch(&first)))
	var second cachedThing
	require.NoError(t, store.Aside(ctx, UserKey(1), &second, UserTTL, fetch(&second)))

	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)
	assert.True(t, mr.Exists("user:1"))
	assert.InDelta(t, UserTTL.Seconds(), mr.TTL("user:1").Seconds(), 1)
}

func TestStore_AsidePropagatesFetchError(t *testing.T) {
	store, mr := newTestStore(t)

	var dest cachedThing
	err := store.Aside(context.Background(), UserKey(4), &dest, UserTTL, func() error {
		return errors.New("db down")
	})

	assert.EqualError(t, err, "db down")
	assert.False(t, mr.Exists("user:4"))
}

func TestStore_Invalidate(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetJSON(ctx, UserKey(2), cachedThing{ID: 2}, time.Minute))
	store.Invalidate(ctx, UserKey(2))

	assert.False(t, mr.Exists("user:2"))
}

func TestStore_NilClientIsNoop(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()

	found, err := store.GetJSON(ctx, "k", &cachedThing{})
	assert.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, store.SetJSON(ctx, "k", cachedThing{}, time.Minute))

	calls := 0
	require.NoError(t, store.Aside(ctx, "k", &cachedThing{}, time.Minute, func() error {
		calls++
		return nil
	}))
	assert.Equal(t, 1, calls)
	store.Invalidate(ctx, "k")
}

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)

	rdb, err := Connect(context.Background(), mr.Addr())
	require.NoError(t, err)
	defer rdb.Close()

	rdb2, err := Connect(context.Background(), "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	defer rdb2.Close()

	_, err = Connect(context.Background(), "redis://%%bad")
	assert.Error(t, err)
}
