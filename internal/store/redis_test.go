package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis creates a miniredis server and returns a RedisStore on top of it
func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis, func()) {
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	s := NewRedisStore(client, "food", 30*time.Minute)

	cleanup := func() {
		client.Close()
		mr.Close()
	}

	return s, mr, cleanup
}

func TestDocumentKey_Format(t *testing.T) {
	s, _, cleanup := setupTestRedis(t)
	defer cleanup()

	assert.Equal(t, "food:teamcart:vm:cart-1:v1", s.Key("cart-1"))
}

func TestGet_Success(t *testing.T) {
	s, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	require.NoError(t, mr.Set(s.Key("c1"), `{"id":"c1"}`))

	data, err := s.Get(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, `{"id":"c1"}`, string(data))
}

func TestGet_NotFound(t *testing.T) {
	s, _, cleanup := setupTestRedis(t)
	defer cleanup()

	data, err := s.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Nil(t, data)
}

func TestCreate_SetsTTL(t *testing.T) {
	s, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	ok, err := s.Create(context.Background(), "c1", []byte(`{"version":1}`))
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, 30*time.Minute, mr.TTL(s.Key("c1")))
}

func TestCreate_DoesNotOverwrite(t *testing.T) {
	s, mr, cleanup := setupTestRedis(t)
	defer cleanup()
	ctx := context.Background()

	ok, err := s.Create(ctx, "c1", []byte("first"))
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.Create(ctx, "c1", []byte("second"))
	require.NoError(t, err)
	assert.False(t, ok)

	stored, err := mr.Get(s.Key("c1"))
	require.NoError(t, err)
	assert.Equal(t, "first", stored)
}

func TestCompareAndSwap_Success(t *testing.T) {
	s, mr, cleanup := setupTestRedis(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, mr.Set(s.Key("c1"), "v1"))

	ok, err := s.CompareAndSwap(ctx, "c1", []byte("v1"), []byte("v2"))
	require.NoError(t, err)
	assert.True(t, ok)

	stored, err := mr.Get(s.Key("c1"))
	require.NoError(t, err)
	assert.Equal(t, "v2", stored)
	assert.Equal(t, 30*time.Minute, mr.TTL(s.Key("c1")))
}

func TestCompareAndSwap_StaleExpectation(t *testing.T) {
	s, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	require.NoError(t, mr.Set(s.Key("c1"), "v2"))

	ok, err := s.CompareAndSwap(context.Background(), "c1", []byte("v1"), []byte("v3"))
	require.NoError(t, err)
	assert.False(t, ok)

	stored, err := mr.Get(s.Key("c1"))
	require.NoError(t, err)
	assert.Equal(t, "v2", stored)
}

func TestCompareAndSwap_MissingDocument(t *testing.T) {
	s, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	ok, err := s.CompareAndSwap(context.Background(), "c1", []byte("v1"), []byte("v2"))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, mr.Exists(s.Key("c1")))
}

func TestCompareAndSwap_RedisDown(t *testing.T) {
	s, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	mr.Close()

	ok, err := s.CompareAndSwap(context.Background(), "c1", []byte("v1"), []byte("v2"))
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestRefresh_ExtendsTTL(t *testing.T) {
	s, mr, cleanup := setupTestRedis(t)
	defer cleanup()
	ctx := context.Background()

	_, err := s.Create(ctx, "c1", []byte("doc"))
	require.NoError(t, err)

	mr.FastForward(20 * time.Minute)
	assert.Equal(t, 10*time.Minute, mr.TTL(s.Key("c1")))

	require.NoError(t, s.Refresh(ctx, "c1"))
	assert.Equal(t, 30*time.Minute, mr.TTL(s.Key("c1")))
}

func TestRefresh_Expired(t *testing.T) {
	s, mr, cleanup := setupTestRedis(t)
	defer cleanup()
	ctx := context.Background()

	_, err := s.Create(ctx, "c1", []byte("doc"))
	require.NoError(t, err)

	mr.FastForward(31 * time.Minute)

	assert.ErrorIs(t, s.Refresh(ctx, "c1"), ErrNotFound)
	_, err = s.Get(ctx, "c1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDelete_Success(t *testing.T) {
	s, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	require.NoError(t, mr.Set(s.Key("c1"), "doc"))
	assert.True(t, mr.Exists(s.Key("c1")))

	require.NoError(t, s.Delete(context.Background(), "c1"))
	assert.False(t, mr.Exists(s.Key("c1")))
}

func TestDelete_NonExistentKey(t *testing.T) {
	s, _, cleanup := setupTestRedis(t)
	defer cleanup()

	assert.NoError(t, s.Delete(context.Background(), "nonexistent"))
}

func TestDeleteIfUnchanged_Success(t *testing.T) {
	s, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	require.NoError(t, mr.Set(s.Key("c1"), "v1"))

	ok, err := s.DeleteIfUnchanged(context.Background(), "c1", []byte("v1"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, mr.Exists(s.Key("c1")))
}

func TestDeleteIfUnchanged_DocumentMovedOn(t *testing.T) {
	s, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	require.NoError(t, mr.Set(s.Key("c1"), "v2"))

	ok, err := s.DeleteIfUnchanged(context.Background(), "c1", []byte("v1"))
	require.NoError(t, err)
	assert.False(t, ok)

	stored, err := mr.Get(s.Key("c1"))
	require.NoError(t, err)
	assert.Equal(t, "v2", stored)
}

func TestDeleteIfUnchanged_MissingDocument(t *testing.T) {
	s, _, cleanup := setupTestRedis(t)
	defer cleanup()

	ok, err := s.DeleteIfUnchanged(context.Background(), "c1", []byte("v1"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeleteIfUnchanged_RedisDown(t *testing.T) {
	s, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	mr.Close()

	ok, err := s.DeleteIfUnchanged(context.Background(), "c1", []byte("v1"))
	assert.Error(t, err)
	assert.False(t, ok)
}
