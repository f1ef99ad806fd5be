// Package session provides the TTL-bounded session store backing the OAuth
// variant of the publish flow. Sessions live in an external store so they
// survive restarts and horizontal scaling.
package session

import (
	"context"
	"encoding/json"
	"time"
)

// Session holds one authenticated developer session.
type Session struct {
	ID        string            `json:"id"`
	UserID    string            `json:"user_id"`
	Token     string            `json:"token"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	ExpiresAt time.Time         `json:"expires_at"`
}

// Expired reports whether the session's TTL has elapsed.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// Store persists sessions with expiry checked on every read.
type Store interface {
	Put(ctx context.Context, sess Session, ttl time.Duration) error
	Get(ctx context.Context, id string) (Session, bool, error)
	Delete(ctx context.Context, id string) error
}

func marshalSession(sess Session) ([]byte, error) {
	return json.Marshal(sess)
}

func unmarshalSession(data []byte) (Session, error) {
	var sess Session
	err := json.Unmarshal(data, &sess)
	return sess, err
}
