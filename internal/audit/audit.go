// Package audit keeps an append-only trail of lifecycle transitions.
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"courtmatch/internal/models"
)

// Entry is one audit_log document.
type Entry struct {
	EventType string    `bson:"eventType"`
	EntityID  string    `bson:"entityId"`
	MatchID   string    `bson:"matchId,omitempty"`
	ActorID   string    `bson:"actorId,omitempty"`
	From      string    `bson:"from,omitempty"`
	To        string    `bson:"to"`
	Details   string    `bson:"details,omitempty"`
	CreatedAt time.Time `bson:"createdAt"`
}

// inserter is the part of *mongo.Collection the log writes through.
type inserter interface {
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
}

// Log writes one entry per lifecycle event, off the request path.
type Log struct {
	coll   inserter
	logger zerolog.Logger
	wg     sync.WaitGroup
}

func NewLog(coll *mongo.Collection, logger zerolog.Logger) *Log {
	return newLog(coll, logger)
}

func newLog(coll inserter, logger zerolog.Logger) *Log {
	return &Log{coll: coll, logger: logger.With().Str("component", "audit").Logger()}
}

// Publish records the event (fire-and-forget).
func (l *Log) Publish(_ context.Context, event models.LifecycleEvent) {
	entry := Entry{
		EventType: string(event.Type),
		EntityID:  event.EntityID,
		MatchID:   event.MatchID,
		ActorID:   event.ActorID,
		From:      event.From,
		To:        event.To,
		Details:   event.Detail,
		CreatedAt: event.OccurredAt,
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := l.coll.InsertOne(ctx, entry); err != nil {
			l.logger.Error().Err(err).
				Str("event_type", entry.EventType).
				Str("entity_id", entry.EntityID).
				Msg("Audit log write failed")
		}
	}()
}

// Flush waits for in-flight writes, for shutdown.
func (l *Log) Flush() {
	l.wg.Wait()
}
