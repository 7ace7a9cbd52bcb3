package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ridebot/pkg/apperr"
	"ridebot/pkg/logger"
	"ridebot/pkg/models"
	"ridebot/storage"
)

const rideSelect = `
	SELECT r.id, r.driver_id, r.destination, r.departure_time, r.seats, r.seats_taken,
	       r.price, r.comment, r.is_active, r.created_at, r.updated_at,
	       COALESCE(u.full_name, '') AS driver_name,
	       COALESCE(u.username, '') AS driver_username
	FROM rides r
	LEFT JOIN users u ON u.id = r.driver_id
`

// editable maps ride text fields to their columns.
var editable = map[string]string{
	models.FieldTime:        "departure_time",
	models.FieldDestination: "destination",
	models.FieldPrice:       "price",
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

type rideRepo struct {
	db  *pgxpool.Pool
	log logger.ILogger
}

func NewRideRepo(db *pgxpool.Pool, log logger.ILogger) storage.IRideStorage {
	return &rideRepo{db: db, log: log}
}

func (r *rideRepo) Create(ctx context.Context, ride *models.Ride) (*models.Ride, error) {
	query := `
		WITH r AS (
			INSERT INTO rides (driver_id, destination, departure_time, seats, price, comment)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING *
		)
		SELECT r.id, r.driver_id, r.destination, r.departure_time, r.seats, r.seats_taken,
		       r.price, r.comment, r.is_active, r.created_at, r.updated_at,
		       COALESCE(u.full_name, ''), COALESCE(u.username, '')
		FROM r
		LEFT JOIN users u ON u.id = r.driver_id
	`
	created, err := scanRide(r.db.QueryRow(ctx, query,
		ride.DriverID,
		ride.Destination,
		ride.Time,
		ride.Seats,
		ride.Price,
		ride.Comment,
	))
	if err != nil {
		r.log.Error("failed to create ride", logger.Int64("driver_id", ride.DriverID), logger.Error(err))
		return nil, apperr.Store("create ride", err)
	}
	return created, nil
}

func (r *rideRepo) GetByID(ctx context.Context, id int64) (*models.Ride, error) {
	return getRide(ctx, r.db, r.log, id)
}

func (r *rideRepo) UpdateText(ctx context.Context, driverID, rideID int64, field, value string) (*models.RideUpdate, error) {
	column, ok := editable[field]
	if !ok {
		return nil, apperr.Validation("поле %q нельзя изменить", field)
	}

	var upd *models.RideUpdate
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		res, err := tx.Exec(ctx,
			"UPDATE rides SET "+column+" = $3, updated_at = NOW() WHERE id = $1 AND driver_id = $2 AND is_active",
			rideID, driverID, value)
		if err != nil {
			return err
		}
		if res.RowsAffected() == 0 {
			return apperr.NotFound("ride %d", rideID)
		}
		upd, err = loadUpdate(ctx, tx, r.log, rideID)
		return err
	})
	if err != nil {
		return nil, r.fail("update ride", rideID, err)
	}
	return upd, nil
}

func (r *rideRepo) UpdateSeats(ctx context.Context, driverID, rideID int64, seats int) (*models.RideUpdate, error) {
	var upd *models.RideUpdate
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		taken, err := lockOwnedRide(ctx, tx, driverID, rideID)
		if err != nil {
			return err
		}
		if seats < taken {
			return apperr.Validation("уже забронировано мест: %d", taken)
		}
		if _, err := tx.Exec(ctx, "UPDATE rides SET seats = $2, updated_at = NOW() WHERE id = $1", rideID, seats); err != nil {
			return err
		}
		upd, err = loadUpdate(ctx, tx, r.log, rideID)
		return err
	})
	if err != nil {
		return nil, r.fail("update ride seats", rideID, err)
	}
	return upd, nil
}

func (r *rideRepo) Cancel(ctx context.Context, driverID, rideID int64) (*models.RideUpdate, error) {
	var upd *models.RideUpdate
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := lockOwnedRide(ctx, tx, driverID, rideID); err != nil {
			return err
		}
		passengers, err := ridePassengers(ctx, tx, rideID)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, "DELETE FROM bookings WHERE ride_id = $1", rideID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, "UPDATE rides SET is_active = FALSE, seats_taken = 0, updated_at = NOW() WHERE id = $1", rideID); err != nil {
			return err
		}
		ride, err := getRide(ctx, tx, r.log, rideID)
		if err != nil {
			return err
		}
		upd = &models.RideUpdate{Ride: ride, Passengers: passengers}
		return nil
	})
	if err != nil {
		return nil, r.fail("cancel ride", rideID, err)
	}
	return upd, nil
}

func (r *rideRepo) GetDriverRides(ctx context.Context, driverID int64) ([]*models.Ride, error) {
	query := rideSelect + `
		WHERE r.driver_id = $1 AND r.is_active
		ORDER BY r.created_at DESC, r.id DESC
	`
	return r.scanRides(ctx, query, driverID)
}

func (r *rideRepo) GetPassengerRides(ctx context.Context, passengerID int64) ([]*models.Ride, error) {
	query := rideSelect + `
		JOIN bookings b ON b.ride_id = r.id
		WHERE b.passenger_id = $1 AND r.is_active
		ORDER BY r.created_at DESC, r.id DESC
	`
	return r.scanRides(ctx, query, passengerID)
}

func (r *rideRepo) Search(ctx context.Context, query string) ([]*models.Ride, error) {
	pattern := "%" + likeEscaper.Replace(query) + "%"
	sql := rideSelect + `
		WHERE r.is_active AND r.seats_taken < r.seats AND r.destination ILIKE $1
		ORDER BY r.created_at DESC, r.id DESC
	`
	return r.scanRides(ctx, sql, pattern)
}

func (r *rideRepo) GetActive(ctx context.Context) ([]*models.Ride, error) {
	query := rideSelect + `
		WHERE r.is_active
		ORDER BY r.created_at DESC, r.id DESC
	`
	return r.scanRides(ctx, query)
}

func (r *rideRepo) scanRides(ctx context.Context, query string, args ...interface{}) ([]*models.Ride, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.log.Error("failed to list rides", logger.Error(err))
		return nil, apperr.Store("list rides", err)
	}
	defer rows.Close()

	var rides []*models.Ride
	for rows.Next() {
		ride, err := scanRide(rows)
		if err != nil {
			return nil, apperr.Store("scan ride", err)
		}
		rides = append(rides, ride)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Store("list rides", err)
	}
	return rides, nil
}

// fail logs unexpected errors and wraps them; domain errors pass through.
func (r *rideRepo) fail(op string, rideID int64, err error) error {
	var e *apperr.Error
	if !errors.As(err, &e) {
		r.log.Error("failed to "+op, logger.Int64("ride_id", rideID), logger.Error(err))
	}
	return apperr.Store(op, err)
}

func scanRide(row pgx.Row) (*models.Ride, error) {
	var ride models.Ride
	err := row.Scan(
		&ride.ID, &ride.DriverID, &ride.Destination, &ride.Time, &ride.Seats, &ride.SeatsTaken,
		&ride.Price, &ride.Comment, &ride.IsActive, &ride.CreatedAt, &ride.UpdatedAt,
		&ride.DriverName, &ride.DriverUsername,
	)
	if err != nil {
		return nil, err
	}
	return &ride, nil
}

func getRide(ctx context.Context, q querier, log logger.ILogger, id int64) (*models.Ride, error) {
	ride, err := scanRide(q.QueryRow(ctx, rideSelect+" WHERE r.id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("ride %d", id)
		}
		log.Error("failed to get ride", logger.Int64("id", id), logger.Error(err))
		return nil, apperr.Store("get ride", err)
	}
	return ride, nil
}

// lockOwnedRide takes the row lock on an active ride of driverID and returns
// its seats_taken.
func lockOwnedRide(ctx context.Context, tx pgx.Tx, driverID, rideID int64) (int, error) {
	var taken int
	err := tx.QueryRow(ctx,
		"SELECT seats_taken FROM rides WHERE id = $1 AND driver_id = $2 AND is_active FOR UPDATE",
		rideID, driverID).Scan(&taken)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, apperr.NotFound("ride %d", rideID)
	}
	return taken, err
}

func ridePassengers(ctx context.Context, q querier, rideID int64) ([]*models.User, error) {
	rows, err := q.Query(ctx, `
		SELECT u.id, u.username, u.full_name, u.created_at, u.updated_at
		FROM bookings b
		JOIN users u ON u.id = b.passenger_id
		WHERE b.ride_id = $1
		ORDER BY b.id
	`, rideID)
	if err != nil {
		return nil, err
	}
	return scanUsers(rows)
}

func loadUpdate(ctx context.Context, q querier, log logger.ILogger, rideID int64) (*models.RideUpdate, error) {
	ride, err := getRide(ctx, q, log, rideID)
	if err != nil {
		return nil, err
	}
	passengers, err := ridePassengers(ctx, q, rideID)
	if err != nil {
		return nil, err
	}
	return &models.RideUpdate{Ride: ride, Passengers: passengers}, nil
}
