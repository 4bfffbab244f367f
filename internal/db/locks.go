package db

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// TryAcquireLock takes the named lock when it is free, expired, or already
// ours. Losing the upsert race surfaces as a duplicate key on _id.
func (s *Store) TryAcquireLock(ctx context.Context, name, holder string, ttl time.Duration) (bool, error) {
	now := s.now()
	filter := bson.M{
		"_id": name,
		"$or": []bson.M{
			{"lockedUntil": bson.M{"$exists": false}},
			{"lockedUntil": bson.M{"$lt": now}},
			{"lockedBy": holder},
		},
	}
	update := bson.M{
		"$set": bson.M{
			"lockedUntil": now.Add(ttl),
			"lockedBy":    holder,
			"lockedAt":    now,
		},
	}

	opts := options.FindOneAndUpdate().SetUpsert(true)
	err := s.db.CleanupLocks().FindOneAndUpdate(ctx, filter, update, opts).Err()
	switch {
	case err == nil, err == mongo.ErrNoDocuments:
		// ErrNoDocuments is the upsert path: no previous document to return
		return true, nil
	case mongo.IsDuplicateKeyError(err):
		return false, nil
	default:
		return false, wrapErr("acquire lock "+name, err)
	}
}

func (s *Store) ReleaseLock(ctx context.Context, name, holder string) error {
	_, err := s.db.CleanupLocks().UpdateOne(ctx,
		bson.M{"_id": name, "lockedBy": holder},
		bson.M{"$set": bson.M{"lockedUntil": s.now()}},
	)
	return wrapErr("release lock "+name, err)
}
