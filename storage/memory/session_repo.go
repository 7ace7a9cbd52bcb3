package memory

import (
	"context"
	"sync"

	"ridebot/pkg/models"
	"ridebot/storage"
)

// SessionStore keeps bot sessions in process. Sessions are lost on restart.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[int64]models.Session
}

func NewSessionStore() storage.ISessionStorage {
	return &SessionStore{sessions: map[int64]models.Session{}}
}

func (s *SessionStore) Get(ctx context.Context, userID int64) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[userID]
	if !ok {
		return nil, nil
	}
	return &session, nil
}

func (s *SessionStore) Save(ctx context.Context, userID int64, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[userID] = *session
	return nil
}

func (s *SessionStore) Delete(ctx context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
	return nil
}
