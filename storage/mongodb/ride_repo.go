package mongodb

import (
	"context"
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"ridebot/pkg/apperr"
	"ridebot/pkg/models"
)

// editable maps ride text fields to their document keys.
var editable = map[string]string{
	models.FieldTime:        "time",
	models.FieldDestination: "destination",
	models.FieldPrice:       "price",
}

// hasFreeSeats matches rides whose seats_taken is below seats.
var hasFreeSeats = bson.M{"$lt": bson.A{"$seats_taken", "$seats"}}

type rideRepo struct {
	s *Store
}

func (r *rideRepo) Create(ctx context.Context, ride *models.Ride) (*models.Ride, error) {
	id, err := r.s.nextID(ctx, ridesCollection)
	if err != nil {
		return nil, r.s.fail("allocate ride id", err, nil)
	}

	ts := now()
	stored := *ride
	stored.ID = id
	stored.SeatsTaken = 0
	stored.IsActive = true
	stored.CreatedAt = ts
	stored.UpdatedAt = ts
	if _, err := r.s.col(ridesCollection).InsertOne(ctx, &stored); err != nil {
		return nil, r.s.fail("create ride", err, nil)
	}

	if err := r.s.withDrivers(ctx, []*models.Ride{&stored}); err != nil {
		return nil, r.s.fail("create ride", err, nil)
	}
	return &stored, nil
}

func (r *rideRepo) GetByID(ctx context.Context, id int64) (*models.Ride, error) {
	ride, err := r.s.findRide(ctx, bson.M{"_id": id})
	if err != nil {
		return nil, r.s.fail("get ride", err, func() error { return apperr.NotFound("ride %d", id) })
	}
	return ride, nil
}

func owned(driverID, rideID int64) bson.M {
	return bson.M{"_id": rideID, "driver_id": driverID, "is_active": true}
}

func (r *rideRepo) UpdateText(ctx context.Context, driverID, rideID int64, field, value string) (*models.RideUpdate, error) {
	key, ok := editable[field]
	if !ok {
		return nil, apperr.Validation("поле %q нельзя изменить", field)
	}

	res, err := r.s.col(ridesCollection).UpdateOne(ctx, owned(driverID, rideID),
		bson.M{"$set": bson.M{key: value, "updated_at": now()}})
	if err != nil {
		return nil, r.s.fail("update ride", err, nil)
	}
	if res.MatchedCount == 0 {
		return nil, apperr.NotFound("ride %d", rideID)
	}
	return r.update(ctx, rideID)
}

func (r *rideRepo) UpdateSeats(ctx context.Context, driverID, rideID int64, seats int) (*models.RideUpdate, error) {
	filter := owned(driverID, rideID)
	filter["seats_taken"] = bson.M{"$lte": seats}
	res, err := r.s.col(ridesCollection).UpdateOne(ctx, filter,
		bson.M{"$set": bson.M{"seats": seats, "updated_at": now()}})
	if err != nil {
		return nil, r.s.fail("update ride seats", err, nil)
	}
	if res.MatchedCount == 0 {
		// tell a missing ride apart from one with too many bookings
		ride, err := r.s.findRide(ctx, owned(driverID, rideID))
		if err != nil {
			return nil, r.s.fail("update ride seats", err, func() error { return apperr.NotFound("ride %d", rideID) })
		}
		return nil, apperr.Validation("уже забронировано мест: %d", ride.SeatsTaken)
	}
	return r.update(ctx, rideID)
}

func (r *rideRepo) Cancel(ctx context.Context, driverID, rideID int64) (*models.RideUpdate, error) {
	err := r.s.col(ridesCollection).FindOneAndUpdate(ctx, owned(driverID, rideID),
		bson.M{"$set": bson.M{"is_active": false, "seats_taken": 0, "updated_at": now()}},
	).Err()
	if err != nil {
		return nil, r.s.fail("cancel ride", err, func() error { return apperr.NotFound("ride %d", rideID) })
	}

	upd, err := r.update(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if _, err := r.s.col(bookingsCollection).DeleteMany(ctx, bson.M{"ride_id": rideID}); err != nil {
		return nil, r.s.fail("cancel ride bookings", err, nil)
	}
	return upd, nil
}

func (r *rideRepo) GetDriverRides(ctx context.Context, driverID int64) ([]*models.Ride, error) {
	rides, err := r.s.findRides(ctx, bson.M{"driver_id": driverID, "is_active": true})
	if err != nil {
		return nil, r.s.fail("list driver rides", err, nil)
	}
	return rides, nil
}

func (r *rideRepo) GetPassengerRides(ctx context.Context, passengerID int64) ([]*models.Ride, error) {
	opts := options.Find().SetProjection(bson.M{"ride_id": 1})
	cur, err := r.s.col(bookingsCollection).Find(ctx, bson.M{"passenger_id": passengerID}, opts)
	if err != nil {
		return nil, r.s.fail("list passenger bookings", err, nil)
	}
	var bookings []models.Booking
	if err := cur.All(ctx, &bookings); err != nil {
		return nil, r.s.fail("list passenger bookings", err, nil)
	}
	if len(bookings) == 0 {
		return nil, nil
	}

	ids := make([]int64, 0, len(bookings))
	for _, b := range bookings {
		ids = append(ids, b.RideID)
	}
	rides, err := r.s.findRides(ctx, bson.M{"_id": bson.M{"$in": ids}, "is_active": true})
	if err != nil {
		return nil, r.s.fail("list passenger rides", err, nil)
	}
	return rides, nil
}

func (r *rideRepo) Search(ctx context.Context, query string) ([]*models.Ride, error) {
	filter := bson.M{"is_active": true, "$expr": hasFreeSeats}
	if query != "" {
		filter["destination"] = bson.M{"$regex": regexp.QuoteMeta(query), "$options": "i"}
	}
	rides, err := r.s.findRides(ctx, filter)
	if err != nil {
		return nil, r.s.fail("search rides", err, nil)
	}
	return rides, nil
}

func (r *rideRepo) GetActive(ctx context.Context) ([]*models.Ride, error) {
	rides, err := r.s.findRides(ctx, bson.M{"is_active": true})
	if err != nil {
		return nil, r.s.fail("list active rides", err, nil)
	}
	return rides, nil
}

func (r *rideRepo) update(ctx context.Context, rideID int64) (*models.RideUpdate, error) {
	upd, err := r.s.loadUpdate(ctx, rideID)
	if err != nil {
		return nil, r.s.fail("load ride", err, func() error { return apperr.NotFound("ride %d", rideID) })
	}
	return upd, nil
}
