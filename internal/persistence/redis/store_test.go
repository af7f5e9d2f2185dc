package redis_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/named-data/ndn-cpp-sub006/internal/persistence"
	"github.com/named-data/ndn-cpp-sub006/internal/persistence/redis"
	"github.com/named-data/ndn-cpp-sub006/internal/testfixtures"
)

// newStore connects to GEP_REDIS_ADDR when set and to an in-process server
// otherwise. The in-process server is returned so tests can move its clock.
func newStore(t *testing.T, opts ...redis.Option) (*redis.ProducerStore, *miniredis.Miniredis) {
	t.Helper()

	var server *miniredis.Miniredis
	addr := os.Getenv("GEP_REDIS_ADDR")
	if addr == "" {
		server = miniredis.RunT(t)
		addr = server.Addr()
	}
	opts = append([]redis.Option{redis.WithKeyPrefix("gep:test:" + uuid.NewString() + ":")}, opts...)
	store, err := redis.Dial(context.Background(), addr, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, server
}

func TestProducerStore_ContentKeys(t *testing.T) {
	ctx := context.Background()
	store, _ := newStore(t)
	bucket := testfixtures.Iso("20150825T080000")
	t.Cleanup(func() { _ = store.DeleteContentKey(ctx, bucket) })

	found, err := store.HasContentKey(ctx, bucket)
	require.NoError(t, err)
	assert.False(t, found)

	_, err = store.GetContentKey(ctx, bucket)
	assert.ErrorIs(t, err, persistence.ErrNotFound)

	require.NoError(t, store.AddContentKey(ctx, bucket, []byte("first")))
	err = store.AddContentKey(ctx, bucket, []byte("second"))
	assert.ErrorIs(t, err, persistence.ErrDuplicate)
	assert.True(t, persistence.IsIntegrityViolation(err))

	key, err := store.GetContentKey(ctx, bucket)
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), key)

	require.NoError(t, store.DeleteContentKey(ctx, bucket))
	found, err = store.HasContentKey(ctx, bucket)
	require.NoError(t, err)
	assert.False(t, found)
	require.NoError(t, store.DeleteContentKey(ctx, bucket))
}

func TestProducerStore_KeyLayout(t *testing.T) {
	server := miniredis.RunT(t)
	ctx := context.Background()
	shared, err := redis.Dial(ctx, server.Addr(), redis.WithKeyPrefix("gep:location:"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = shared.Close() })
	other, err := redis.Dial(ctx, server.Addr(), redis.WithKeyPrefix("gep:humidity:"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = other.Close() })

	bucket := testfixtures.Iso("20150825T080000")
	require.NoError(t, shared.AddContentKey(ctx, bucket, []byte("location")))
	require.NoError(t, other.AddContentKey(ctx, bucket, []byte("humidity")))

	assert.Equal(t, []string{"gep:humidity:20150825T080000", "gep:location:20150825T080000"}, server.Keys())
	got, err := server.Get("gep:location:20150825T080000")
	require.NoError(t, err)
	assert.Equal(t, "location", got)
}

func TestProducerStore_TTL(t *testing.T) {
	if os.Getenv("GEP_REDIS_ADDR") != "" {
		t.Skip("needs the in-process server clock")
	}
	ctx := context.Background()
	store, server := newStore(t, redis.WithTTL(time.Hour))
	bucket := testfixtures.Iso("20150825T080000")

	require.NoError(t, store.AddContentKey(ctx, bucket, []byte("key")))
	server.FastForward(59 * time.Minute)
	found, err := store.HasContentKey(ctx, bucket)
	require.NoError(t, err)
	assert.True(t, found)

	server.FastForward(time.Minute)
	_, err = store.GetContentKey(ctx, bucket)
	assert.ErrorIs(t, err, persistence.ErrNotFound)
	require.NoError(t, store.AddContentKey(ctx, bucket, []byte("replacement")))
}

func TestProducerStore_ConcurrentAddHasOneWinner(t *testing.T) {
	ctx := context.Background()
	store, _ := newStore(t)
	bucket := testfixtures.Iso("20150825T090000")
	t.Cleanup(func() { _ = store.DeleteContentKey(ctx, bucket) })

	const workers = 8
	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		wins, dups int
	)
	for i := 0; i < workers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.AddContentKey(ctx, bucket, []byte{byte(i)})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case persistence.IsIntegrityViolation(err):
				dups++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, workers-1, dups)
}

func TestProducerStore_ServerErrorsAreNotMisreported(t *testing.T) {
	if os.Getenv("GEP_REDIS_ADDR") != "" {
		t.Skip("needs the in-process server")
	}
	ctx := context.Background()
	store, server := newStore(t)
	bucket := testfixtures.Iso("20150825T080000")
	require.NoError(t, store.AddContentKey(ctx, bucket, []byte("key")))

	server.SetError("ERR injected failure")
	_, err := store.GetContentKey(ctx, bucket)
	require.Error(t, err)
	assert.NotErrorIs(t, err, persistence.ErrNotFound)
	err = store.AddContentKey(ctx, bucket, []byte("other"))
	require.Error(t, err)
	assert.False(t, persistence.IsIntegrityViolation(err))

	server.SetError("")
	key, err := store.GetContentKey(ctx, bucket)
	require.NoError(t, err)
	assert.Equal(t, []byte("key"), key)
}

func TestDial_Unreachable(t *testing.T) {
	server := miniredis.RunT(t)
	addr := server.Addr()
	server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := redis.Dial(ctx, addr)
	assert.Error(t, err)
}
