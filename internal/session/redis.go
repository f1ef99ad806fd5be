package session

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const keyPrefix = "sitewrap:session:"

// RedisStore keeps sessions in Redis with native key expiry.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a store over the given Redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

var _ Store = (*RedisStore)(nil)

func (s *RedisStore) Put(ctx context.Context, sess Session, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("session ttl must be positive")
	}
	sess.ExpiresAt = time.Now().UTC().Add(ttl)
	data, err := marshalSession(sess)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, keyPrefix+sess.ID, data, ttl).Err()
}

func (s *RedisStore) Get(ctx context.Context, id string) (Session, bool, error) {
	data, err := s.client.Get(ctx, keyPrefix+id).Bytes()
	if err == redis.Nil {
		return Session{}, false, nil
	}
	if err != nil {
		return Session{}, false, err
	}
	sess, err := unmarshalSession(data)
	if err != nil {
		return Session{}, false, err
	}
	if sess.Expired(time.Now().UTC()) {
		_ = s.client.Del(ctx, keyPrefix+id).Err()
		return Session{}, false, nil
	}
	return sess, true, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, keyPrefix+id).Err()
}
