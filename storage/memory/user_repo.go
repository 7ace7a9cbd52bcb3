package memory

import (
	"context"

	"ridebot/pkg/apperr"
	"ridebot/pkg/models"
)

type userRepo struct {
	s *Store
}

func (r userRepo) Upsert(ctx context.Context, user *models.User) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := r.s.now()
	u, ok := r.s.users[user.ID]
	if !ok {
		u = models.User{ID: user.ID, CreatedAt: now}
	}
	u.FullName = user.FullName
	u.Username = user.Username
	u.UpdatedAt = now
	r.s.users[u.ID] = u

	out := u
	return &out, nil
}

func (r userRepo) Get(ctx context.Context, id int64) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, apperr.NotFound("user %d", id)
	}
	return &u, nil
}
