package service

import (
	"context"
	"errors"
	"strings"

	"ridebot/pkg/apperr"
	"ridebot/pkg/logger"
	"ridebot/pkg/models"
	"ridebot/storage"
)

type UserService interface {
	Register(ctx context.Context, teleID int64, username, fullname string) (*models.User, error)
	Get(ctx context.Context, teleID int64) (*models.User, error)
	// EnsureDriver registers an unknown user and otherwise only overwrites the
	// fields that are given.
	EnsureDriver(ctx context.Context, teleID int64, username, fullname string) (*models.User, error)
}

// DefaultDriverName is stored for drivers that arrive without a name.
const DefaultDriverName = "Водитель"

type userService struct {
	stg storage.IUserStorage
	log logger.ILogger
}

func NewUserService(stg storage.IStorage, log logger.ILogger) UserService {
	return &userService{
		stg: stg.User(),
		log: log,
	}
}

// Register creates the user or refreshes the name and handle of a known one.
func (s *userService) Register(ctx context.Context, teleID int64, username, fullname string) (*models.User, error) {
	return s.stg.Upsert(ctx, &models.User{
		ID:       teleID,
		Username: strings.TrimPrefix(strings.TrimSpace(username), "@"),
		FullName: strings.TrimSpace(fullname),
	})
}

func (s *userService) Get(ctx context.Context, teleID int64) (*models.User, error) {
	return s.stg.Get(ctx, teleID)
}

func (s *userService) EnsureDriver(ctx context.Context, teleID int64, username, fullname string) (*models.User, error) {
	username = strings.TrimPrefix(strings.TrimSpace(username), "@")
	fullname = strings.TrimSpace(fullname)

	known, err := s.stg.Get(ctx, teleID)
	if errors.Is(err, apperr.ErrNotFound) {
		if fullname == "" {
			fullname = DefaultDriverName
		}
		return s.stg.Upsert(ctx, &models.User{ID: teleID, Username: username, FullName: fullname})
	}
	if err != nil {
		return nil, err
	}

	if (username == "" || username == known.Username) && (fullname == "" || fullname == known.FullName) {
		return known, nil
	}
	update := *known
	if username != "" {
		update.Username = username
	}
	if fullname != "" {
		update.FullName = fullname
	}
	return s.stg.Upsert(ctx, &update)
}
