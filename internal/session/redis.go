package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"sociofi/internal/redis"
)

const keyPrefix = "sociofi:session:"

// RedisStore keeps sessions in redis so several gateway replicas share them.
type RedisStore struct {
	client *redis.Client
	cipher *Cipher
	now    func() time.Time
}

func NewRedisStore(client *redis.Client, cipher *Cipher) *RedisStore {
	return &RedisStore{client: client, cipher: cipher, now: time.Now}
}

func (s *RedisStore) Save(ctx context.Context, sess *Session) error {
	ttl := sess.TTL(s.now())
	if ttl <= 0 {
		return ErrSessionNotFound
	}
	rec, err := toRecord(sess, s.cipher)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	return s.client.Set(ctx, keyPrefix+sess.ID, payload, ttl)
}

func (s *RedisStore) Load(ctx context.Context, id string) (*Session, error) {
	raw, err := s.client.Get(ctx, keyPrefix+id)
	if err != nil {
		if errors.Is(err, redis.ErrCacheMiss) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	var rec record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return fromRecord(rec, s.cipher)
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, keyPrefix+id)
}
