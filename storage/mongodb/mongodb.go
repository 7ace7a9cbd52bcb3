// Package mongodb implements storage.IStorage on MongoDB for
// STORAGE_BACKEND=mongo.
//
// Documents use int64 ids drawn from a counters collection so that ids look the
// same to the bot whichever backend is configured. Seat accounting relies on
// conditional updates instead of transactions, which keeps the backend usable
// on a standalone mongod.
package mongodb

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"ridebot/pkg/apperr"
	"ridebot/pkg/logger"
	"ridebot/pkg/models"
	"ridebot/storage"
)

const (
	usersCollection    = "users"
	ridesCollection    = "rides"
	bookingsCollection = "bookings"
	countersCollection = "counters"
)

type Store struct {
	client *mongo.Client
	db     *mongo.Database
	log    logger.ILogger
}

// New connects to uri, ensures indexes on database db and returns the store.
func New(ctx context.Context, uri, db string, log logger.ILogger) (storage.IStorage, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		log.Error("failed to connect MongoDB", logger.Error(err))
		return nil, err
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		log.Error("failed to ping MongoDB", logger.Error(err))
		_ = client.Disconnect(ctx)
		return nil, err
	}

	s := &Store{client: client, db: client.Database(db), log: log}
	if err := s.ensureIndexes(ctx); err != nil {
		log.Error("failed to create MongoDB indexes", logger.Error(err))
		_ = client.Disconnect(ctx)
		return nil, err
	}

	log.Info("MongoDB connected", logger.String("database", db))
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.db.Collection(bookingsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "ride_id", Value: 1}, {Key: "passenger_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "passenger_id", Value: 1}}},
		{Keys: bson.D{{Key: "notified", Value: 1}, {Key: "_id", Value: 1}}},
	})
	if err != nil {
		return err
	}
	_, err = s.db.Collection(ridesCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "driver_id", Value: 1}, {Key: "is_active", Value: 1}}},
		{Keys: bson.D{{Key: "is_active", Value: 1}, {Key: "created_at", Value: -1}}},
	})
	return err
}

func (s *Store) User() storage.IUserStorage       { return &userRepo{s: s} }
func (s *Store) Ride() storage.IRideStorage       { return &rideRepo{s: s} }
func (s *Store) Booking() storage.IBookingStorage { return &bookingRepo{s: s} }

func (s *Store) Reset(ctx context.Context) error {
	for _, name := range []string{bookingsCollection, ridesCollection, usersCollection, countersCollection} {
		if _, err := s.db.Collection(name).DeleteMany(ctx, bson.M{}); err != nil {
			s.log.Error("failed to clear collection", logger.String("collection", name), logger.Error(err))
			return err
		}
	}
	return nil
}

func (s *Store) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.client.Disconnect(ctx); err != nil {
		s.log.Warning("failed to disconnect MongoDB", logger.Error(err))
	}
}

func (s *Store) col(name string) *mongo.Collection {
	return s.db.Collection(name)
}

// nextID returns the next value of the named sequence, starting at 1.
func (s *Store) nextID(ctx context.Context, name string) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := s.col(countersCollection).FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"seq": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	return counter.Seq, err
}

// now is truncated to the millisecond precision BSON dates keep.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// users loads the given users keyed by id.
func (s *Store) users(ctx context.Context, ids []int64) (map[int64]models.User, error) {
	out := make(map[int64]models.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	cur, err := s.col(usersCollection).Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	var users []models.User
	if err := cur.All(ctx, &users); err != nil {
		return nil, err
	}
	for _, u := range users {
		out[u.ID] = u
	}
	return out, nil
}

// withDrivers fills the driver columns of rides in place.
func (s *Store) withDrivers(ctx context.Context, rides []*models.Ride) error {
	ids := make([]int64, 0, len(rides))
	for _, r := range rides {
		ids = append(ids, r.DriverID)
	}
	users, err := s.users(ctx, ids)
	if err != nil {
		return err
	}
	for _, r := range rides {
		if u, ok := users[r.DriverID]; ok {
			r.DriverName = u.FullName
			r.DriverUsername = u.Username
		}
	}
	return nil
}

func (s *Store) findRide(ctx context.Context, filter bson.M) (*models.Ride, error) {
	var ride models.Ride
	if err := s.col(ridesCollection).FindOne(ctx, filter).Decode(&ride); err != nil {
		return nil, err
	}
	if err := s.withDrivers(ctx, []*models.Ride{&ride}); err != nil {
		return nil, err
	}
	return &ride, nil
}

func (s *Store) findRides(ctx context.Context, filter bson.M) ([]*models.Ride, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	cur, err := s.col(ridesCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var rides []*models.Ride
	if err := cur.All(ctx, &rides); err != nil {
		return nil, err
	}
	if err := s.withDrivers(ctx, rides); err != nil {
		return nil, err
	}
	return rides, nil
}

// passengers lists the users booked on a ride, oldest booking first.
func (s *Store) passengers(ctx context.Context, rideID int64) ([]*models.User, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	cur, err := s.col(bookingsCollection).Find(ctx, bson.M{"ride_id": rideID}, opts)
	if err != nil {
		return nil, err
	}
	var bookings []models.Booking
	if err := cur.All(ctx, &bookings); err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(bookings))
	for _, b := range bookings {
		ids = append(ids, b.PassengerID)
	}
	users, err := s.users(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]*models.User, 0, len(bookings))
	for _, b := range bookings {
		u, ok := users[b.PassengerID]
		if !ok {
			u = models.User{ID: b.PassengerID}
		}
		out = append(out, &u)
	}
	return out, nil
}

func (s *Store) loadUpdate(ctx context.Context, rideID int64) (*models.RideUpdate, error) {
	ride, err := s.findRide(ctx, bson.M{"_id": rideID})
	if err != nil {
		return nil, err
	}
	passengers, err := s.passengers(ctx, rideID)
	if err != nil {
		return nil, err
	}
	return &models.RideUpdate{Ride: ride, Passengers: passengers}, nil
}

// joinBookings fills the ride and passenger columns of bookings in place.
func (s *Store) joinBookings(ctx context.Context, bookings []*models.Booking) error {
	if len(bookings) == 0 {
		return nil
	}
	rideIDs := make([]int64, 0, len(bookings))
	userIDs := make([]int64, 0, len(bookings))
	for _, b := range bookings {
		rideIDs = append(rideIDs, b.RideID)
		userIDs = append(userIDs, b.PassengerID)
	}

	cur, err := s.col(ridesCollection).Find(ctx, bson.M{"_id": bson.M{"$in": rideIDs}})
	if err != nil {
		return err
	}
	var rides []models.Ride
	if err := cur.All(ctx, &rides); err != nil {
		return err
	}
	byID := make(map[int64]models.Ride, len(rides))
	for _, r := range rides {
		byID[r.ID] = r
	}
	users, err := s.users(ctx, userIDs)
	if err != nil {
		return err
	}

	for _, b := range bookings {
		if r, ok := byID[b.RideID]; ok {
			b.Destination = r.Destination
			b.DriverID = r.DriverID
		}
		if u, ok := users[b.PassengerID]; ok {
			b.PassengerName = u.FullName
			b.PassengerUsername = u.Username
		}
	}
	return nil
}

// fail maps driver errors onto apperr kinds and logs the unexpected ones.
func (s *Store) fail(op string, err error, notFound func() error) error {
	if errors.Is(err, mongo.ErrNoDocuments) && notFound != nil {
		return notFound()
	}
	var e *apperr.Error
	if !errors.As(err, &e) {
		s.log.Error("failed to "+op, logger.Error(err))
	}
	return apperr.Store(op, err)
}
