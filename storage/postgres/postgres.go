package postgres

import (
	"context"
	"embed"
	"errors"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"ridebot/pkg/logger"
	"ridebot/storage"
)

//go:embed migrations/*.sql
var migrations embed.FS

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	pool *pgxpool.Pool
	log  logger.ILogger
}

// New connects to url, applies pending migrations and returns the store.
func New(ctx context.Context, url string, log logger.ILogger) (storage.IStorage, error) {
	// 🔹 Connection pool
	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		log.Error("error while parsing Postgres config", logger.Error(err))
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		log.Error("failed to connect Postgres", logger.Error(err))
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		log.Error("failed to ping Postgres", logger.Error(err))
		pool.Close()
		return nil, err
	}

	// 🔹 Migrations
	if err := Migrate(url, log); err != nil {
		pool.Close()
		return nil, err
	}

	log.Info("Postgres connected")

	return &Store{
		pool: pool,
		log:  log,
	}, nil
}

// Migrate applies the embedded migrations up to the latest version.
func Migrate(url string, log logger.ILogger) error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		log.Error("migration source error", logger.Error(err))
		return err
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, url)
	if err != nil {
		log.Error("migration init error", logger.Error(err))
		return err
	}
	defer m.Close()

	if err = m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info("no migrations to apply")
			return nil
		}
		log.Error("migration up error", logger.Error(err))
		return err
	}

	version, _, _ := m.Version()
	log.Info("migrations applied", logger.Any("version", version))
	return nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Reset(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "TRUNCATE TABLE bookings, rides, users RESTART IDENTITY CASCADE")
	if err != nil {
		s.log.Error("failed to truncate tables", logger.Error(err))
	}
	return err
}

func (s *Store) User() storage.IUserStorage       { return NewUserRepo(s.pool, s.log) }
func (s *Store) Ride() storage.IRideStorage       { return NewRideRepo(s.pool, s.log) }
func (s *Store) Booking() storage.IBookingStorage { return NewBookingRepo(s.pool, s.log) }
