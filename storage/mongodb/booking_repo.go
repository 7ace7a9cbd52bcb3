package mongodb

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"ridebot/pkg/apperr"
	"ridebot/pkg/logger"
	"ridebot/pkg/models"
)

type bookingRepo struct {
	s *Store
}

// Book takes a seat with a conditional increment first and inserts the
// booking second, so no booking is ever visible without its seat. A failed
// insert gives the seat back.
func (r *bookingRepo) Book(ctx context.Context, rideID, passengerID int64) (*models.Booking, error) {
	rides := r.s.col(ridesCollection)
	bookings := r.s.col(bookingsCollection)

	res, err := rides.UpdateOne(ctx,
		bson.M{"_id": rideID, "is_active": true, "$expr": hasFreeSeats},
		bson.M{"$inc": bson.M{"seats_taken": 1}, "$set": bson.M{"updated_at": now()}},
	)
	if err != nil {
		return nil, r.s.fail("book seat", err, nil)
	}
	if res.MatchedCount == 0 {
		return nil, r.noSeat(ctx, rideID, passengerID)
	}

	id, err := r.s.nextID(ctx, bookingsCollection)
	if err != nil {
		r.releaseSeat(ctx, rideID)
		return nil, r.s.fail("allocate booking id", err, nil)
	}
	b := &models.Booking{
		ID:          id,
		RideID:      rideID,
		PassengerID: passengerID,
		CreatedAt:   now(),
	}
	if _, err := bookings.InsertOne(ctx, b); err != nil {
		r.releaseSeat(ctx, rideID)
		if mongo.IsDuplicateKeyError(err) {
			return nil, apperr.Duplicate("passenger %d already booked ride %d", passengerID, rideID)
		}
		return nil, r.s.fail("book seat", err, nil)
	}

	// a cancel that ran between the increment and the insert already swept
	// the ride's bookings
	if err := rides.FindOne(ctx, bson.M{"_id": rideID, "is_active": true}).Err(); err != nil {
		if _, delErr := bookings.DeleteOne(ctx, bson.M{"_id": id}); delErr != nil {
			r.s.log.Error("failed to drop booking of cancelled ride", logger.Int64("booking_id", id), logger.Error(delErr))
		}
		return nil, r.s.fail("book seat", err, func() error { return apperr.NotFound("ride %d", rideID) })
	}

	if err := r.s.joinBookings(ctx, []*models.Booking{b}); err != nil {
		return nil, r.s.fail("book seat", err, nil)
	}
	return b, nil
}

// noSeat explains a failed increment: the ride is gone, the passenger is
// already on it, or it is full.
func (r *bookingRepo) noSeat(ctx context.Context, rideID, passengerID int64) error {
	if err := r.s.col(ridesCollection).FindOne(ctx, bson.M{"_id": rideID, "is_active": true}).Err(); err != nil {
		return r.s.fail("book seat", err, func() error { return apperr.NotFound("ride %d", rideID) })
	}
	err := r.s.col(bookingsCollection).FindOne(ctx, bson.M{"ride_id": rideID, "passenger_id": passengerID}).Err()
	if err == nil {
		return apperr.Duplicate("passenger %d already booked ride %d", passengerID, rideID)
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return r.s.fail("book seat", err, nil)
	}
	return apperr.Capacity("ride %d has no free seats", rideID)
}

func (r *bookingRepo) releaseSeat(ctx context.Context, rideID int64) {
	_, err := r.s.col(ridesCollection).UpdateOne(ctx,
		bson.M{"_id": rideID, "seats_taken": bson.M{"$gt": 0}},
		bson.M{"$inc": bson.M{"seats_taken": -1}, "$set": bson.M{"updated_at": now()}},
	)
	if err != nil {
		r.s.log.Error("failed to release seat", logger.Int64("ride_id", rideID), logger.Error(err))
	}
}

func (r *bookingRepo) Unbook(ctx context.Context, rideID, passengerID int64) (*models.Booking, error) {
	var b models.Booking
	err := r.s.col(bookingsCollection).FindOneAndDelete(ctx,
		bson.M{"ride_id": rideID, "passenger_id": passengerID}).Decode(&b)
	if err != nil {
		return nil, r.s.fail("unbook seat", err, func() error { return apperr.NotFound("booking for ride %d", rideID) })
	}

	_, err = r.s.col(ridesCollection).UpdateOne(ctx,
		bson.M{"_id": rideID, "seats_taken": bson.M{"$gt": 0}},
		bson.M{"$inc": bson.M{"seats_taken": -1}, "$set": bson.M{"updated_at": now()}},
	)
	if err != nil {
		return nil, r.s.fail("release seat", err, nil)
	}

	if err := r.s.joinBookings(ctx, []*models.Booking{&b}); err != nil {
		return nil, r.s.fail("unbook seat", err, nil)
	}
	return &b, nil
}

func (r *bookingRepo) Get(ctx context.Context, rideID, passengerID int64) (*models.Booking, error) {
	var b models.Booking
	err := r.s.col(bookingsCollection).FindOne(ctx,
		bson.M{"ride_id": rideID, "passenger_id": passengerID}).Decode(&b)
	if err != nil {
		return nil, r.s.fail("get booking", err, func() error { return apperr.NotFound("booking for ride %d", rideID) })
	}
	if err := r.s.joinBookings(ctx, []*models.Booking{&b}); err != nil {
		return nil, r.s.fail("get booking", err, nil)
	}
	return &b, nil
}

func (r *bookingRepo) GetUnnotified(ctx context.Context, limit int) ([]*models.Booking, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := r.s.col(bookingsCollection).Find(ctx, bson.M{"notified": false}, opts)
	if err != nil {
		return nil, r.s.fail("list unnotified bookings", err, nil)
	}
	var out []*models.Booking
	if err := cur.All(ctx, &out); err != nil {
		return nil, r.s.fail("list unnotified bookings", err, nil)
	}
	if err := r.s.joinBookings(ctx, out); err != nil {
		return nil, r.s.fail("list unnotified bookings", err, nil)
	}
	return out, nil
}

func (r *bookingRepo) MarkNotified(ctx context.Context, id int64) error {
	_, err := r.s.col(bookingsCollection).UpdateOne(ctx,
		bson.M{"_id": id}, bson.M{"$set": bson.M{"notified": true}})
	if err != nil {
		return r.s.fail("mark notified", err, nil)
	}
	return nil
}

func (r *bookingRepo) RecordFailedAttempt(ctx context.Context, id int64) (int, error) {
	var b models.Booking
	err := r.s.col(bookingsCollection).FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$inc": bson.M{"notify_attempts": 1}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&b)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, nil
		}
		return 0, r.s.fail("record notify attempt", err, nil)
	}
	return b.NotifyAttempts, nil
}
