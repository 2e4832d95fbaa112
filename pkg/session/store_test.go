package session

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitwire/strava-client/pkg/client"
)

// setupTestRedis creates a test redis client, skipping when unavailable.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	rc := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // separate DB for tests
	})

	ctx := context.Background()
	if err := rc.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}
	require.NoError(t, rc.FlushDB(ctx).Err())

	t.Cleanup(func() {
		rc.FlushDB(context.Background())
		rc.Close()
	})

	return rc
}

func sampleRecord() *Record {
	return &Record{
		AthleteID:    42,
		AccessToken:  "access",
		RefreshToken: "refresh",
		ExpiresAt:    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Scope:        []client.Scope{client.ScopeRead},
	}
}

// storeConformance exercises the Store contract shared by implementations.
func storeConformance(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("find missing", func(t *testing.T) {
		_, err := store.Find(ctx, 999)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("create and find", func(t *testing.T) {
		require.NoError(t, store.Create(ctx, sampleRecord()))

		rec, err := store.Find(ctx, 42)
		require.NoError(t, err)
		assert.Equal(t, "access", rec.AccessToken)
		assert.Equal(t, "refresh", rec.RefreshToken)
		assert.True(t, rec.ExpiresAt.Equal(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)))
	})

	t.Run("create duplicate", func(t *testing.T) {
		err := store.Create(ctx, sampleRecord())
		assert.ErrorIs(t, err, ErrAlreadyExists, "athlete id must stay unique")
	})

	t.Run("partial update", func(t *testing.T) {
		changes := Changes{
			FieldAccessToken: "access-2",
			FieldExpiresAt:   time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC),
		}
		require.NoError(t, store.Update(ctx, 42, changes))

		rec, err := store.Find(ctx, 42)
		require.NoError(t, err)
		assert.Equal(t, "access-2", rec.AccessToken)
		assert.Equal(t, "refresh", rec.RefreshToken, "untouched fields survive a partial update")
		assert.Equal(t, []client.Scope{client.ScopeRead}, rec.Scope)
	})

	t.Run("update missing", func(t *testing.T) {
		err := store.Update(ctx, 999, Changes{FieldAccessToken: "x"})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestMemoryStore(t *testing.T) {
	storeConformance(t, NewMemoryStore())
}

func TestRedisStore(t *testing.T) {
	rc := setupTestRedis(t)
	storeConformance(t, NewRedisStore(rc))
}

func TestMemoryStore_FindReturnsCopy(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, sampleRecord()))

	rec, err := store.Find(ctx, 42)
	require.NoError(t, err)
	rec.AccessToken = "mutated"

	again, err := store.Find(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "access", again.AccessToken, "callers must not mutate stored state")
}

func TestChanges_ApplyIgnoresUnknownFields(t *testing.T) {
	rec := sampleRecord()
	Changes{"nonsense": 1, FieldAccessToken: "new"}.apply(rec)

	assert.Equal(t, "new", rec.AccessToken)
	assert.Equal(t, "refresh", rec.RefreshToken)
}
