package mongodb

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"ridebot/pkg/apperr"
	"ridebot/pkg/models"
)

type userRepo struct {
	s *Store
}

func (r *userRepo) Upsert(ctx context.Context, user *models.User) (*models.User, error) {
	ts := now()
	var u models.User
	err := r.s.col(usersCollection).FindOneAndUpdate(ctx,
		bson.M{"_id": user.ID},
		bson.M{
			"$set": bson.M{
				"username":   user.Username,
				"full_name":  user.FullName,
				"updated_at": ts,
			},
			"$setOnInsert": bson.M{"created_at": ts},
		},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&u)
	if err != nil {
		return nil, r.s.fail("upsert user", err, nil)
	}
	return &u, nil
}

func (r *userRepo) Get(ctx context.Context, id int64) (*models.User, error) {
	var u models.User
	err := r.s.col(usersCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&u)
	if err != nil {
		return nil, r.s.fail("get user", err, func() error { return apperr.NotFound("user %d", id) })
	}
	return &u, nil
}
