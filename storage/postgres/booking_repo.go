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

const bookingSelect = `
	SELECT b.id, b.ride_id, b.passenger_id, b.notified, b.notify_attempts, b.created_at,
	       r.destination, r.driver_id,
	       COALESCE(u.full_name, '') AS passenger_name,
	       COALESCE(u.username, '') AS passenger_username
	FROM bookings b
	JOIN rides r ON r.id = b.ride_id
	LEFT JOIN users u ON u.id = b.passenger_id
`

type bookingRepo struct {
	db  *pgxpool.Pool
	log logger.ILogger
}

func NewBookingRepo(db *pgxpool.Pool, log logger.ILogger) storage.IBookingStorage {
	return &bookingRepo{db: db, log: log}
}

// Book holds the ride row lock for the whole check-then-write, so two
// passengers racing for the last seat are serialized.
func (r *bookingRepo) Book(ctx context.Context, rideID, passengerID int64) (*models.Booking, error) {
	var booking *models.Booking
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		var id int64
		err := tx.QueryRow(ctx, "SELECT id FROM rides WHERE id = $1 AND is_active FOR UPDATE", rideID).Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.NotFound("ride %d", rideID)
		}
		if err != nil {
			return err
		}

		var bookingID int64
		err = tx.QueryRow(ctx, `
			INSERT INTO bookings (ride_id, passenger_id)
			VALUES ($1, $2)
			ON CONFLICT (ride_id, passenger_id) DO NOTHING
			RETURNING id
		`, rideID, passengerID).Scan(&bookingID)
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.Duplicate("passenger %d already booked ride %d", passengerID, rideID)
		}
		if err != nil {
			return err
		}

		res, err := tx.Exec(ctx, `
			UPDATE rides SET seats_taken = seats_taken + 1, updated_at = NOW()
			WHERE id = $1 AND seats_taken < seats
		`, rideID)
		if err != nil {
			return err
		}
		if res.RowsAffected() == 0 {
			return apperr.Capacity("ride %d has no free seats", rideID)
		}

		booking, err = scanBooking(tx.QueryRow(ctx, bookingSelect+" WHERE b.id = $1", bookingID))
		return err
	})
	if err != nil {
		return nil, r.fail("book seat", rideID, err)
	}
	return booking, nil
}

func (r *bookingRepo) Unbook(ctx context.Context, rideID, passengerID int64) (*models.Booking, error) {
	var booking *models.Booking
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		var id int64
		err := tx.QueryRow(ctx, "SELECT id FROM rides WHERE id = $1 FOR UPDATE", rideID).Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.NotFound("booking for ride %d", rideID)
		}
		if err != nil {
			return err
		}

		booking, err = scanBooking(tx.QueryRow(ctx, bookingSelect+" WHERE b.ride_id = $1 AND b.passenger_id = $2", rideID, passengerID))
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.NotFound("booking for ride %d", rideID)
		}
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, "DELETE FROM bookings WHERE id = $1", booking.ID); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			UPDATE rides SET seats_taken = GREATEST(seats_taken - 1, 0), updated_at = NOW()
			WHERE id = $1
		`, rideID)
		return err
	})
	if err != nil {
		return nil, r.fail("unbook seat", rideID, err)
	}
	return booking, nil
}

func (r *bookingRepo) Get(ctx context.Context, rideID, passengerID int64) (*models.Booking, error) {
	booking, err := scanBooking(r.db.QueryRow(ctx, bookingSelect+" WHERE b.ride_id = $1 AND b.passenger_id = $2", rideID, passengerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("booking for ride %d", rideID)
		}
		return nil, r.fail("get booking", rideID, err)
	}
	return booking, nil
}

func (r *bookingRepo) GetUnnotified(ctx context.Context, limit int) ([]*models.Booking, error) {
	rows, err := r.db.Query(ctx, bookingSelect+" WHERE NOT b.notified ORDER BY b.id LIMIT $1", limit)
	if err != nil {
		r.log.Error("failed to list unnotified bookings", logger.Error(err))
		return nil, apperr.Store("list unnotified bookings", err)
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, apperr.Store("scan booking", err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Store("list unnotified bookings", err)
	}
	return bookings, nil
}

func (r *bookingRepo) MarkNotified(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx, "UPDATE bookings SET notified = TRUE WHERE id = $1", id)
	if err != nil {
		r.log.Error("failed to mark booking notified", logger.Int64("id", id), logger.Error(err))
		return apperr.Store("mark notified", err)
	}
	return nil
}

func (r *bookingRepo) RecordFailedAttempt(ctx context.Context, id int64) (int, error) {
	var attempts int
	err := r.db.QueryRow(ctx,
		"UPDATE bookings SET notify_attempts = notify_attempts + 1 WHERE id = $1 RETURNING notify_attempts",
		id).Scan(&attempts)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		r.log.Error("failed to record notify attempt", logger.Int64("id", id), logger.Error(err))
		return 0, apperr.Store("record notify attempt", err)
	}
	return attempts, nil
}

func (r *bookingRepo) fail(op string, rideID int64, err error) error {
	var e *apperr.Error
	if !errors.As(err, &e) {
		r.log.Error("failed to "+op, logger.Int64("ride_id", rideID), logger.Error(err))
	}
	return apperr.Store(op, err)
}

func scanBooking(row pgx.Row) (*models.Booking, error) {
	var b models.Booking
	err := row.Scan(
		&b.ID, &b.RideID, &b.PassengerID, &b.Notified, &b.NotifyAttempts, &b.CreatedAt,
		&b.Destination, &b.DriverID, &b.PassengerName, &b.PassengerUsername,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}
