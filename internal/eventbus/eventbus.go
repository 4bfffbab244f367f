package eventbus

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"courtmatch/internal/models"
)

// eventDoc is the document stored in the match_events collection.
type eventDoc struct {
	ID              primitive.ObjectID    `bson:"_id,omitempty"`
	OriginMachineID string                `bson:"originMachineId"`
	Event           models.LifecycleEvent `bson:"event"`
	CreatedAt       time.Time             `bson:"createdAt"`
}

// DeliverFunc hands an event to subscribers on this instance.
type DeliverFunc func(event models.LifecycleEvent)

// EventBus delivers lifecycle events to local subscribers and shares them
// with other instances through a MongoDB change stream.
type EventBus struct {
	machineID  string
	collection *mongo.Collection
	deliver    DeliverFunc
	logger     zerolog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	running    bool
	mu         sync.Mutex
}

// New creates an EventBus. If collection is nil, the EventBus runs in
// local-only mode.
func New(collection *mongo.Collection, deliver DeliverFunc, logger zerolog.Logger) *EventBus {
	if deliver == nil {
		deliver = func(models.LifecycleEvent) {}
	}
	return &EventBus{
		machineID:  uuid.NewString(),
		collection: collection,
		deliver:    deliver,
		logger:     logger.With().Str("component", "eventbus").Logger(),
	}
}

// MachineID returns this instance's unique identifier.
func (eb *EventBus) MachineID() string {
	return eb.machineID
}

// Start begins the change stream watcher in a background goroutine.
func (eb *EventBus) Start() {
	if eb.collection == nil {
		eb.logger.Info().Msg("No collection configured, running in local-only mode")
		return
	}

	eb.mu.Lock()
	defer eb.mu.Unlock()
	if eb.running {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	eb.cancelFunc = cancel
	eb.running = true
	eb.wg.Add(1)

	go eb.watchLoop(ctx)
	eb.logger.Info().Str("machine_id", eb.machineID).Msg("Event bus started")
}

// Stop cancels the watcher and waits for it to exit.
func (eb *EventBus) Stop() {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	if !eb.running {
		return
	}
	eb.running = false
	if eb.cancelFunc != nil {
		eb.cancelFunc()
	}
	eb.wg.Wait()
	eb.logger.Info().Msg("Event bus stopped")
}

// Publish delivers the event locally, then records it for other instances.
// Insert failures are logged, never returned.
func (eb *EventBus) Publish(ctx context.Context, event models.LifecycleEvent) {
	eb.deliver(event)

	if eb.collection == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
	defer cancel()

	doc := eventDoc{
		OriginMachineID: eb.machineID,
		Event:           event,
		CreatedAt:       time.Now(),
	}
	if _, err := eb.collection.InsertOne(ctx, doc); err != nil {
		eb.logger.Warn().Err(err).Str("type", string(event.Type)).Msg("Failed to publish event")
	}
}

// watchLoop runs the change stream in a reconnecting loop.
func (eb *EventBus) watchLoop(ctx context.Context) {
	defer eb.wg.Done()

	for {
		if ctx.Err() != nil {
			return
		}
		err := eb.watch(ctx)
		if ctx.Err() != nil {
			return
		}
		eb.logger.Warn().Err(err).Msg("Change stream error, reconnecting in 2s")
		select {
		case <-ctx.Done():
			return
		case <-time.After(2 * time.Second):
		}
	}
}

func (eb *EventBus) watch(ctx context.Context) error {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{
			{Key: "operationType", Value: "insert"},
			{Key: "fullDocument.originMachineId", Value: bson.D{{Key: "$ne", Value: eb.machineID}}},
		}}},
	}
	opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)

	cs, err := eb.collection.Watch(ctx, pipeline, opts)
	if err != nil {
		return err
	}
	defer cs.Close(context.Background())

	for cs.Next(ctx) {
		var change struct {
			FullDocument eventDoc `bson:"fullDocument"`
		}
		if err := cs.Decode(&change); err != nil {
			eb.logger.Warn().Err(err).Msg("Failed to decode change event")
			continue
		}
		eb.handleRemote(change.FullDocument)
	}

	return cs.Err()
}

// handleRemote delivers an event that originated on another instance.
func (eb *EventBus) handleRemote(doc eventDoc) {
	if doc.OriginMachineID == eb.machineID {
		return
	}
	eb.deliver(doc.Event)
}
