package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"courtmatch/internal/models"
	"courtmatch/internal/store/memstore"
)

var baseTime = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock { return &testClock{now: baseTime} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.LifecycleEvent
}

func (p *recordingPublisher) Publish(_ context.Context, e models.LifecycleEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) Types() []models.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type countingMetrics struct {
	mu          sync.Mutex
	transitions map[models.MatchStatus]int
	races       map[string]int
	conflicts   map[string]int
	expired     int
	sweeps      map[string]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{
		transitions: map[models.MatchStatus]int{},
		races:       map[string]int{},
		conflicts:   map[string]int{},
		sweeps:      map[string]int{},
	}
}

func (m *countingMetrics) MatchTransition(to models.MatchStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitions[to]++
}

func (m *countingMetrics) TransitionRace(op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.races[op]++
}

func (m *countingMetrics) BookingConflict(stage string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conflicts[stage]++
}

func (m *countingMetrics) RequestsExpired(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expired += n
}

func (m *countingMetrics) SweepRun(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweeps[outcome]++
}

func seedProfile(t *testing.T, st *memstore.Store, id string, rating, played int) {
	t.Helper()
	require.NoError(t, st.CreateProfile(context.Background(), &models.Profile{
		ID:                id,
		DisplayName:       id,
		Rating:            rating,
		RatingProvisional: models.IsProvisional(played),
		MatchesPlayed:     played,
		UpdatedAt:         baseTime,
	}))
}

func seedMatch(t *testing.T, st *memstore.Store, id, p1, p2 string, format models.Format) {
	t.Helper()
	require.NoError(t, st.InsertMatch(context.Background(), &models.Match{
		ID:        id,
		Player1ID: p1,
		Player2ID: p2,
		Status:    models.MatchStatusAccepted,
		Format:    format,
		CreatedAt: baseTime,
		UpdatedAt: baseTime,
	}))
}
