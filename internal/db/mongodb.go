package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	collMatches       = "matches"
	collRequests      = "match_requests"
	collProfiles      = "profiles"
	collRatingHistory = "rating_history"
	collBookings      = "bookings"
	collCourtLocks    = "court_locks"
	collCleanupLocks  = "cleanup_locks"
	collMatchEvents   = "match_events"
	collAuditLog      = "audit_log"
)

type MongoDB struct {
	Client   *mongo.Client
	Database *mongo.Database
	logger   zerolog.Logger
}

// NewMongoDB connects and pings. Transactions need a replica set or a
// sharded cluster; a standalone server fails on the first RunInTx.
func NewMongoDB(ctx context.Context, uri, database string, logger zerolog.Logger) (*MongoDB, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(200).
		SetMinPoolSize(5).
		SetMaxConnIdleTime(5 * time.Minute)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return &MongoDB{
		Client:   client,
		Database: client.Database(database),
		logger:   logger.With().Str("component", "mongodb").Logger(),
	}, nil
}

// EnsureIndexes creates all required indexes. The unique indexes carry
// store invariants, so unlike the TTL indexes a failure here is fatal.
func (m *MongoDB) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	indexes := []struct {
		collection string
		models     []mongo.IndexModel
	}{
		{
			collMatches,
			[]mongo.IndexModel{
				{Keys: bson.D{{Key: "player1Id", Value: 1}, {Key: "createdAt", Value: -1}}},
				{Keys: bson.D{{Key: "player2Id", Value: 1}, {Key: "createdAt", Value: -1}}},
				{Keys: bson.D{{Key: "status", Value: 1}, {Key: "updatedAt", Value: -1}}},
			},
		},
		{
			collRequests,
			[]mongo.IndexModel{
				// At most one pending request per ordered pair
				{
					Keys: bson.D{{Key: "requesterId", Value: 1}, {Key: "recipientId", Value: 1}},
					Options: options.Index().
						SetUnique(true).
						SetName("uniq_pending_pair").
						SetPartialFilterExpression(bson.M{"status": "pending"}),
				},
				{Keys: bson.D{{Key: "status", Value: 1}, {Key: "expiresAt", Value: 1}}},
				{Keys: bson.D{{Key: "recipientId", Value: 1}, {Key: "status", Value: 1}}},
			},
		},
		{
			collRatingHistory,
			[]mongo.IndexModel{
				{Keys: bson.D{{Key: "playerId", Value: 1}, {Key: "matchId", Value: 1}}, Options: options.Index().SetUnique(true)},
				{Keys: bson.D{{Key: "playerId", Value: 1}, {Key: "recordedAt", Value: -1}}},
			},
		},
		{
			collProfiles,
			[]mongo.IndexModel{
				{Keys: bson.D{{Key: "rating", Value: -1}}},
			},
		},
		{
			collBookings,
			[]mongo.IndexModel{
				{Keys: bson.D{{Key: "resourceId", Value: 1}, {Key: "status", Value: 1}, {Key: "startsAt", Value: 1}}},
				{Keys: bson.D{{Key: "bookedBy", Value: 1}, {Key: "startsAt", Value: -1}}},
				{Keys: bson.D{{Key: "matchId", Value: 1}}, Options: options.Index().SetSparse(true)},
			},
		},
		{
			collMatchEvents,
			[]mongo.IndexModel{
				{Keys: bson.D{{Key: "createdAt", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(60)},
			},
		},
		{
			collAuditLog,
			[]mongo.IndexModel{
				{Keys: bson.D{{Key: "createdAt", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(365 * 24 * 3600)},
				{Keys: bson.D{{Key: "entityId", Value: 1}, {Key: "createdAt", Value: -1}}},
				{Keys: bson.D{{Key: "actorId", Value: 1}, {Key: "createdAt", Value: -1}}},
			},
		},
	}

	var errs []error
	for _, idx := range indexes {
		coll := m.Database.Collection(idx.collection)
		if _, err := coll.Indexes().CreateMany(ctx, idx.models); err != nil {
			errs = append(errs, fmt.Errorf("indexes on %s: %w", idx.collection, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	m.logger.Info().Msg("Database indexes ensured")
	return nil
}

// Ping checks that the primary is reachable.
func (m *MongoDB) Ping(ctx context.Context) error {
	return m.Client.Ping(ctx, readpref.Primary())
}

func (m *MongoDB) Close(ctx context.Context) error {
	return m.Client.Disconnect(ctx)
}

func (m *MongoDB) Matches() *mongo.Collection {
	return m.Database.Collection(collMatches)
}

func (m *MongoDB) MatchRequests() *mongo.Collection {
	return m.Database.Collection(collRequests)
}

func (m *MongoDB) Profiles() *mongo.Collection {
	return m.Database.Collection(collProfiles)
}

func (m *MongoDB) RatingHistory() *mongo.Collection {
	return m.Database.Collection(collRatingHistory)
}

func (m *MongoDB) Bookings() *mongo.Collection {
	return m.Database.Collection(collBookings)
}

func (m *MongoDB) CourtLocks() *mongo.Collection {
	return m.Database.Collection(collCourtLocks)
}

func (m *MongoDB) CleanupLocks() *mongo.Collection {
	return m.Database.Collection(collCleanupLocks)
}

func (m *MongoDB) MatchEvents() *mongo.Collection {
	return m.Database.Collection(collMatchEvents)
}

func (m *MongoDB) AuditLog() *mongo.Collection {
	return m.Database.Collection(collAuditLog)
}
