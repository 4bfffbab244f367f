package db

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"courtmatch/internal/models"
	"courtmatch/internal/store"
)

func (s *Store) GetRequest(ctx context.Context, id string) (*models.MatchRequest, error) {
	return findOne[models.MatchRequest](ctx, s.db.MatchRequests(), id)
}

// InsertRequest relies on the uniq_pending_pair partial index for the
// one-pending-per-pair rule.
func (s *Store) InsertRequest(ctx context.Context, r *models.MatchRequest) error {
	_, err := s.db.MatchRequests().InsertOne(ctx, r)
	return wrapErr("insert request", err)
}

func (s *Store) GetPendingExpiredRequests(ctx context.Context, now time.Time, limit int) ([]models.MatchRequest, error) {
	opts := options.Find().SetSort(bson.D{{Key: "expiresAt", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cursor, err := s.db.MatchRequests().Find(ctx, bson.M{
		"status":    models.RequestStatusPending,
		"expiresAt": bson.M{"$lt": now},
	}, opts)
	if err != nil {
		return nil, wrapErr("find expired requests", err)
	}
	defer cursor.Close(ctx)

	var requests []models.MatchRequest
	if err := cursor.All(ctx, &requests); err != nil {
		return nil, wrapErr("decode requests", err)
	}
	return requests, nil
}

func (s *Store) UpdateRequestStatus(ctx context.Context, id string, from, to models.RequestStatus, patch store.RequestPatch) (*models.MatchRequest, error) {
	set := bson.M{"status": to}
	if patch.MatchID != "" {
		set["matchId"] = patch.MatchID
	}
	if patch.RespondedAt != nil {
		set["respondedAt"] = *patch.RespondedAt
	}
	if !patch.UpdatedAt.IsZero() {
		set["updatedAt"] = patch.UpdatedAt
	}
	return conditionalUpdate[models.MatchRequest](ctx, s.db.MatchRequests(), id, "status", from, bson.M{"$set": set})
}
