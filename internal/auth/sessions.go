package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Session is the refresh-token state kept in Redis. The key is the SHA-256
// of the refresh token, so a leaked dump of the store is not replayable.
type Session struct {
	DealerID   string    `json:"dealerId"`
	DealerCode string    `json:"dealerCode"`
	DealerName string    `json:"dealerName"`
	UserAgent  string    `json:"userAgent,omitempty"`
	IP         string    `json:"ip,omitempty"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// ErrSessionNotFound is returned for unknown or expired refresh tokens.
var ErrSessionNotFound = errors.New("auth: session not found")

// SessionStore persists portal sessions in Redis with a TTL matching the
// refresh token lifetime.
type SessionStore struct {
	R *redis.Client
}

func sessionKey(hashedToken string) string {
	return "dealer:auth:session:" + hashedToken
}

func (s *SessionStore) Create(ctx context.Context, hashedToken string, session Session, ttl time.Duration) error {
	if s == nil || s.R == nil {
		return errors.New("auth: session store not configured")
	}
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("auth: encode session: %w", err)
	}
	return s.R.Set(ctx, sessionKey(hashedToken), data, ttl).Err()
}

func (s *SessionStore) Get(ctx context.Context, hashedToken string) (Session, error) {
	if s == nil || s.R == nil {
		return Session{}, errors.New("auth: session store not configured")
	}
	data, err := s.R.Get(ctx, sessionKey(hashedToken)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Session{}, ErrSessionNotFound
		}
		return Session{}, fmt.Errorf("auth: load session: %w", err)
	}
	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return Session{}, fmt.Errorf("auth: decode session: %w", err)
	}
	return session, nil
}

func (s *SessionStore) Delete(ctx context.Context, hashedToken string) error {
	if s == nil || s.R == nil {
		return nil
	}
	return s.R.Del(ctx, sessionKey(hashedToken)).Err()
}
