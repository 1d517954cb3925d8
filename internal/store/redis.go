package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const schemaVersion = "v1"

var errConditionFailed = errors.New("stored document changed")

func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

// RedisStore keeps one JSON document per cart. Every write re-arms the key TTL.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func (r *RedisStore) Get(ctx context.Context, cartID string) ([]byte, error) {
	data, err := r.client.Get(ctx, r.Key(cartID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	return data, nil
}

// Create stores data only if no document exists for cartID yet.
func (r *RedisStore) Create(ctx context.Context, cartID string, data []byte) (bool, error) {
	ok, err := r.client.SetNX(ctx, r.Key(cartID), data, r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx failed: %w", err)
	}
	return ok, nil
}

// CompareAndSwap writes next only while the stored bytes still equal expected.
// It reports false, with a nil error, when another writer got there first.
func (r *RedisStore) CompareAndSwap(ctx context.Context, cartID string, expected, next []byte) (bool, error) {
	ok, err := r.whileUnchanged(ctx, cartID, expected, func(pipe redis.Pipeliner, key string) {
		pipe.Set(ctx, key, next, r.ttl)
	})
	if err != nil {
		return false, fmt.Errorf("redis compare-and-swap failed: %w", err)
	}
	return ok, nil
}

// DeleteIfUnchanged removes the document only while the stored bytes still equal expected.
func (r *RedisStore) DeleteIfUnchanged(ctx context.Context, cartID string, expected []byte) (bool, error) {
	ok, err := r.whileUnchanged(ctx, cartID, expected, func(pipe redis.Pipeliner, key string) {
		pipe.Del(ctx, key)
	})
	if err != nil {
		return false, fmt.Errorf("redis conditional delete failed: %w", err)
	}
	return ok, nil
}

// whileUnchanged runs write in a MULTI/EXEC block guarded by WATCH on the key,
// after checking that the stored bytes equal expected.
func (r *RedisStore) whileUnchanged(ctx context.Context, cartID string, expected []byte, write func(pipe redis.Pipeliner, key string)) (bool, error) {
	key := r.Key(cartID)

	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return errConditionFailed
		}
		if err != nil {
			return err
		}
		if !bytes.Equal(current, expected) {
			return errConditionFailed
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			write(pipe, key)
			return nil
		})
		return err
	}, key)

	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, redis.TxFailedErr), errors.Is(err, errConditionFailed):
		return false, nil
	default:
		return false, err
	}
}

// Refresh pushes the document's expiry out by a full TTL.
func (r *RedisStore) Refresh(ctx context.Context, cartID string) error {
	ok, err := r.client.Expire(ctx, r.Key(cartID), r.ttl).Result()
	if err != nil {
		return fmt.Errorf("redis expire failed: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, cartID string) error {
	if err := r.client.Del(ctx, r.Key(cartID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

// Key is {prefix}:teamcart:vm:{cartId}:v1. The trailing segment versions the
// stored format, not the document.
func (r *RedisStore) Key(cartID string) string {
	return fmt.Sprintf("%s:teamcart:vm:%s:%s", r.prefix, cartID, schemaVersion)
}
