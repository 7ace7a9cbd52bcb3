package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"ridebot/pkg/apperr"
	"ridebot/pkg/models"
	"ridebot/storage"
)

// SessionTTL bounds how long an abandoned conversation is remembered.
const SessionTTL = 30 * time.Minute

type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionStore(client *redis.Client, ttl time.Duration) storage.ISessionStorage {
	if ttl <= 0 {
		ttl = SessionTTL
	}
	return &SessionStore{client: client, ttl: ttl}
}

func (s *SessionStore) Get(ctx context.Context, userID int64) (*models.Session, error) {
	data, err := s.client.Get(ctx, sessionKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, apperr.Store("get session", err)
	}

	var session models.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, apperr.Store("decode session", err)
	}
	return &session, nil
}

// Save refreshes the TTL on every write.
func (s *SessionStore) Save(ctx context.Context, userID int64, session *models.Session) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return apperr.Store("encode session", err)
	}
	return apperr.Store("save session", s.client.Set(ctx, sessionKey(userID), payload, s.ttl).Err())
}

func (s *SessionStore) Delete(ctx context.Context, userID int64) error {
	return apperr.Store("delete session", s.client.Del(ctx, sessionKey(userID)).Err())
}

func sessionKey(userID int64) string {
	return fmt.Sprintf("session:%d", userID)
}
