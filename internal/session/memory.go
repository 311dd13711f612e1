package session

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
)

// MemoryStore keeps sessions in process.
type MemoryStore struct {
	cache  *cache.Cache
	cipher *Cipher
	now    func() time.Time
}

func NewMemoryStore(cipher *Cipher) *MemoryStore {
	return &MemoryStore{
		cache:  cache.New(time.Hour, 10*time.Minute),
		cipher: cipher,
		now:    time.Now,
	}
}

func (s *MemoryStore) Save(_ context.Context, sess *Session) error {
	ttl := sess.TTL(s.now())
	if ttl <= 0 {
		return ErrSessionNotFound
	}
	rec, err := toRecord(sess, s.cipher)
	if err != nil {
		return err
	}
	s.cache.Set(sess.ID, rec, ttl)
	return nil
}

func (s *MemoryStore) Load(_ context.Context, id string) (*Session, error) {
	val, found := s.cache.Get(id)
	if !found {
		return nil, ErrSessionNotFound
	}
	rec, ok := val.(record)
	if !ok {
		s.cache.Delete(id)
		return nil, ErrSessionNotFound
	}
	return fromRecord(rec, s.cipher)
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.cache.Delete(id)
	return nil
}
