package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ridebot/pkg/apperr"
	"ridebot/pkg/logger"
	"ridebot/pkg/models"
	"ridebot/storage"
)

type userRepo struct {
	db  *pgxpool.Pool
	log logger.ILogger
}

func NewUserRepo(db *pgxpool.Pool, log logger.ILogger) storage.IUserStorage {
	return &userRepo{db: db, log: log}
}

func (r *userRepo) Upsert(ctx context.Context, user *models.User) (*models.User, error) {
	var u models.User
	query := `
		INSERT INTO users (id, username, full_name)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET username = EXCLUDED.username,
			full_name = EXCLUDED.full_name,
			updated_at = NOW()
		RETURNING id, username, full_name, created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query, user.ID, user.Username, user.FullName).Scan(
		&u.ID, &u.Username, &u.FullName, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		r.log.Error("failed to upsert user", logger.Int64("id", user.ID), logger.Error(err))
		return nil, apperr.Store("upsert user", err)
	}
	return &u, nil
}

func (r *userRepo) Get(ctx context.Context, id int64) (*models.User, error) {
	var u models.User
	query := `SELECT id, username, full_name, created_at, updated_at FROM users WHERE id = $1`
	err := r.db.QueryRow(ctx, query, id).Scan(&u.ID, &u.Username, &u.FullName, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("user %d", id)
		}
		r.log.Error("failed to get user", logger.Int64("id", id), logger.Error(err))
		return nil, apperr.Store("get user", err)
	}
	return &u, nil
}

func scanUsers(rows pgx.Rows) ([]*models.User, error) {
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Username, &u.FullName, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		users = append(users, &u)
	}
	return users, rows.Err()
}
