package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"sociofi/internal/models"
)

var ErrSessionNotFound = errors.New("session not found")

// Session is the signed-in identity handed to every collaborator that calls
// the backend on a user's behalf.
type Session struct {
	ID        string      `json:"id"`
	Token     string      `json:"token"`
	User      models.User `json:"user"`
	CreatedAt time.Time   `json:"created_at"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// New starts a session for token and user that lives for ttl, capped by the
// token's own expiry when it carries one.
func New(token string, user models.User, ttl time.Duration, now time.Time) *Session {
	expires := now.Add(ttl)
	if exp, ok := TokenExpiry(token); ok && exp.Before(expires) {
		expires = exp
	}
	return &Session{
		ID:        uuid.NewString(),
		Token:     token,
		User:      user,
		CreatedAt: now,
		ExpiresAt: expires,
	}
}

// TTL returns how long the session has left at now.
func (s *Session) TTL(now time.Time) time.Duration {
	return s.ExpiresAt.Sub(now)
}

// Store caches sessions keyed by id.
type Store interface {
	Save(ctx context.Context, sess *Session) error
	Load(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
}

// record is the stored form; the token may be sealed.
type record struct {
	ID        string      `json:"id"`
	Token     string      `json:"token"`
	User      models.User `json:"user"`
	CreatedAt time.Time   `json:"created_at"`
	ExpiresAt time.Time   `json:"expires_at"`
}

func toRecord(sess *Session, c *Cipher) (record, error) {
	token, err := c.Seal(sess.Token)
	if err != nil {
		return record{}, err
	}
	return record{
		ID:        sess.ID,
		Token:     token,
		User:      sess.User,
		CreatedAt: sess.CreatedAt,
		ExpiresAt: sess.ExpiresAt,
	}, nil
}

func fromRecord(r record, c *Cipher) (*Session, error) {
	token, err := c.Open(r.Token)
	if err != nil {
		return nil, err
	}
	return &Session{
		ID:        r.ID,
		Token:     token,
		User:      r.User,
		CreatedAt: r.CreatedAt,
		ExpiresAt: r.ExpiresAt,
	}, nil
}
