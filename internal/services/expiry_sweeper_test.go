package services

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courtmatch/internal/models"
	"courtmatch/internal/store"
	"courtmatch/internal/store/memstore"
)

func seedRequest(t *testing.T, st *memstore.Store, id, requester, recipient string, status models.RequestStatus, expiresAt time.Time) {
	t.Helper()
	require.NoError(t, st.InsertRequest(context.Background(), &models.MatchRequest{
		ID:             id,
		RequesterID:    requester,
		RecipientID:    recipient,
		Status:         status,
		ProposedFormat: models.FormatBestOf3,
		ExpiresAt:      expiresAt,
		CreatedAt:      baseTime.Add(-72 * time.Hour),
		UpdatedAt:      baseTime.Add(-72 * time.Hour),
	}))
}

func TestExpirySweeper_Sweep(t *testing.T) {
	st := memstore.New()
	past := baseTime.Add(-time.Hour)
	seedRequest(t, st, "stale", alice, bruno, models.RequestStatusPending, past)
	seedRequest(t, st, "answered", bruno, alice, models.RequestStatusAccepted, past)
	seedRequest(t, st, "fresh", alice, carla, models.RequestStatusPending, baseTime.Add(time.Hour))

	met := newCountingMetrics()
	pub := &recordingPublisher{}
	sweeper := NewExpirySweeper(st, SweeperConfig{}, WithMetrics(met), WithPublisher(pub))
	ctx := context.Background()

	n, err := sweeper.Sweep(ctx, baseTime)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stale, err := st.GetRequest(ctx, "stale")
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusExpired, stale.Status)

	answered, err := st.GetRequest(ctx, "answered")
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusAccepted, answered.Status)

	fresh, err := st.GetRequest(ctx, "fresh")
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusPending, fresh.Status)

	again, err := sweeper.Sweep(ctx, baseTime)
	require.NoError(t, err)
	assert.Zero(t, again)

	assert.Equal(t, []models.EventType{models.EventRequestExpired}, pub.Types())
	assert.Equal(t, 1, met.expired)
	assert.Equal(t, 2, met.sweeps["ok"])
}

func TestExpirySweeper_LargeBacklog(t *testing.T) {
	st := memstore.New()
	for i := 0; i < sweeperBatchSize+25; i++ {
		seedRequest(t, st, fmt.Sprintf("r%04d", i), fmt.Sprintf("p%04d", i), bruno, models.RequestStatusPending, baseTime.Add(-time.Minute))
	}

	n, err := NewExpirySweeper(st, SweeperConfig{}).Sweep(context.Background(), baseTime)
	require.NoError(t, err)
	assert.Equal(t, sweeperBatchSize+25, n)
}

// flakyStore fails the first query with a transient error.
type flakyStore struct {
	*memstore.Store
	failures atomic.Int32
	err      error
}

func (s *flakyStore) GetPendingExpiredRequests(ctx context.Context, now time.Time, limit int) ([]models.MatchRequest, error) {
	if s.failures.Add(-1) >= 0 {
		return nil, s.err
	}
	return s.Store.GetPendingExpiredRequests(ctx, now, limit)
}

func TestExpirySweeper_RetriesTransientFailures(t *testing.T) {
	st := &flakyStore{Store: memstore.New(), err: fmt.Errorf("socket closed: %w", store.ErrTransient)}
	st.failures.Store(2)
	seedRequest(t, st.Store, "stale", alice, bruno, models.RequestStatusPending, baseTime.Add(-time.Hour))

	sweeper := NewExpirySweeper(st, SweeperConfig{RetryMaxElapsed: 5 * time.Second})
	n, err := sweeper.Sweep(context.Background(), baseTime)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestExpirySweeper_DoesNotRetryPermanentFailures(t *testing.T) {
	st := &flakyStore{Store: memstore.New(), err: fmt.Errorf("bad filter")}
	st.failures.Store(100)

	met := newCountingMetrics()
	sweeper := NewExpirySweeper(st, SweeperConfig{RetryMaxElapsed: 5 * time.Second}, WithMetrics(met))
	_, err := sweeper.Sweep(context.Background(), baseTime)
	require.Error(t, err)
	assert.Equal(t, int32(99), st.failures.Load(), "permanent errors are attempted once")
	assert.Equal(t, 1, met.sweeps["error"])
}

func TestExpirySweeper_RunLocked(t *testing.T) {
	st := memstore.New()
	seedRequest(t, st, "stale", alice, bruno, models.RequestStatusPending, time.Now().Add(-time.Hour))
	ctx := context.Background()

	ok, err := st.TryAcquireLock(ctx, sweeperLockName, "other-instance", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	met := newCountingMetrics()
	sweeper := NewExpirySweeper(st, SweeperConfig{}, WithMetrics(met))

	n, ran, err := sweeper.RunLocked(ctx)
	require.NoError(t, err)
	assert.False(t, ran)
	assert.Zero(t, n)
	assert.Equal(t, 1, met.sweeps["skipped"])

	require.NoError(t, st.ReleaseLock(ctx, sweeperLockName, "other-instance"))

	n, ran, err = sweeper.RunLocked(ctx)
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, 1, n)

	// Released after the pass
	ok, err = st.TryAcquireLock(ctx, sweeperLockName, "other-instance", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestExpirySweeper_Scheduler(t *testing.T) {
	st := memstore.New()
	seedRequest(t, st, "stale", alice, bruno, models.RequestStatusPending, time.Now().Add(-time.Hour))

	sweeper := NewExpirySweeper(st, SweeperConfig{Interval: time.Hour})
	sched, err := sweeper.StartScheduler(context.Background())
	require.NoError(t, err)
	defer func() { assert.NoError(t, sched.Stop()) }()

	assert.Eventually(t, func() bool {
		r, err := st.GetRequest(context.Background(), "stale")
		return err == nil && r.Status == models.RequestStatusExpired
	}, 5*time.Second, 20*time.Millisecond)
}
