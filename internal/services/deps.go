package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"courtmatch/internal/models"
)

// Publisher receives lifecycle events after the transition has been committed.
type Publisher interface {
	Publish(ctx context.Context, event models.LifecycleEvent)
}

// Metrics receives counters for transitions, races, and conflicts.
type Metrics interface {
	MatchTransition(to models.MatchStatus)
	TransitionRace(op string)
	BookingConflict(stage string)
	RequestsExpired(n int)
	SweepRun(outcome string)
}

// Publishers fans an event out to every publisher in order.
type Publishers []Publisher

func (ps Publishers) Publish(ctx context.Context, event models.LifecycleEvent) {
	for _, p := range ps {
		if p != nil {
			p.Publish(ctx, event)
		}
	}
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, models.LifecycleEvent) {}

type noopMetrics struct{}

func (noopMetrics) MatchTransition(models.MatchStatus) {}
func (noopMetrics) TransitionRace(string)              {}
func (noopMetrics) BookingConflict(string)             {}
func (noopMetrics) RequestsExpired(int)                {}
func (noopMetrics) SweepRun(string)                    {}

// deps holds the collaborators shared by every service.
type deps struct {
	logger    zerolog.Logger
	publisher Publisher
	metrics   Metrics
	now       func() time.Time
}

func defaultDeps() deps {
	return deps{
		logger:    zerolog.Nop(),
		publisher: noopPublisher{},
		metrics:   noopMetrics{},
		now:       time.Now,
	}
}

// Option configures a service.
type Option func(*deps)

func WithLogger(logger zerolog.Logger) Option {
	return func(d *deps) { d.logger = logger }
}

func WithPublisher(p Publisher) Option {
	return func(d *deps) {
		if p != nil {
			d.publisher = p
		}
	}
}

func WithMetrics(m Metrics) Option {
	return func(d *deps) {
		if m != nil {
			d.metrics = m
		}
	}
}

// WithClock overrides time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(d *deps) { d.now = now }
}

func newDeps(opts []Option) deps {
	d := defaultDeps()
	for _, opt := range opts {
		opt(&d)
	}
	return d
}

func (d deps) emit(ctx context.Context, event models.LifecycleEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = d.now()
	}
	d.publisher.Publish(ctx, event)
}
