package db

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"courtmatch/internal/models"
	"courtmatch/internal/store"
)

func (s *Store) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	return findOne[models.Profile](ctx, s.db.Profiles(), id)
}

func (s *Store) CreateProfile(ctx context.Context, p *models.Profile) error {
	_, err := s.db.Profiles().InsertOne(ctx, p)
	return wrapErr("insert profile", err)
}

// UpdateProfile is guarded on matchesPlayed, which every finalization bumps.
func (s *Store) UpdateProfile(ctx context.Context, id string, expectMatchesPlayed int, patch store.ProfilePatch) error {
	res, err := s.db.Profiles().UpdateOne(ctx,
		bson.M{"_id": id, "matchesPlayed": expectMatchesPlayed},
		bson.M{"$set": bson.M{
			"rating":            patch.Rating,
			"ratingProvisional": patch.RatingProvisional,
			"matchesPlayed":     patch.MatchesPlayed,
			"updatedAt":         patch.UpdatedAt,
		}},
	)
	if err != nil {
		return wrapErr("update profile", err)
	}
	if res.MatchedCount == 0 {
		return missingOrStale(ctx, s.db.Profiles(), id)
	}
	return nil
}

func (s *Store) AppendRatingHistory(ctx context.Context, entry *models.RatingHistoryEntry) error {
	_, err := s.db.RatingHistory().InsertOne(ctx, entry)
	return wrapErr("insert rating history", err)
}

func (s *Store) ListRatingHistory(ctx context.Context, playerID string, limit int) ([]models.RatingHistoryEntry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "recordedAt", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cursor, err := s.db.RatingHistory().Find(ctx, bson.M{"playerId": playerID}, opts)
	if err != nil {
		return nil, wrapErr("find rating history", err)
	}
	defer cursor.Close(ctx)

	var entries []models.RatingHistoryEntry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, wrapErr("decode rating history", err)
	}
	return entries, nil
}
