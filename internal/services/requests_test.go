package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courtmatch/internal/models"
	"courtmatch/internal/store/memstore"
)

type requestFixture struct {
	store     *memstore.Store
	svc       *RequestService
	clock     *testClock
	publisher *recordingPublisher
}

func newRequestFixture(t *testing.T) *requestFixture {
	t.Helper()
	st := memstore.New()
	clock := newTestClock()
	pub := &recordingPublisher{}
	return &requestFixture{
		store:     st,
		clock:     clock,
		publisher: pub,
		svc:       NewRequestService(st, 0, WithClock(clock.Now), WithPublisher(pub)),
	}
}

func TestRequestService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("defaults", func(t *testing.T) {
		f := newRequestFixture(t)
		r, err := f.svc.CreateRequest(ctx, alice, bruno, "", time.Time{})
		require.NoError(t, err)
		assert.Equal(t, models.RequestStatusPending, r.Status)
		assert.Equal(t, models.FormatBestOf3, r.ProposedFormat)
		assert.Equal(t, baseTime.Add(models.DefaultRequestTTL), r.ExpiresAt)
	})

	t.Run("expires no later than the proposed time", func(t *testing.T) {
		f := newRequestFixture(t)
		proposed := baseTime.Add(6 * time.Hour)
		r, err := f.svc.CreateRequest(ctx, alice, bruno, models.FormatBestOf5, proposed)
		require.NoError(t, err)
		assert.Equal(t, proposed, r.ExpiresAt)
	})

	t.Run("self challenge", func(t *testing.T) {
		f := newRequestFixture(t)
		_, err := f.svc.CreateRequest(ctx, alice, alice, "", time.Time{})
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("unknown format", func(t *testing.T) {
		f := newRequestFixture(t)
		_, err := f.svc.CreateRequest(ctx, alice, bruno, models.Format("first_to_ten"), time.Time{})
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("one pending per pair", func(t *testing.T) {
		f := newRequestFixture(t)
		_, err := f.svc.CreateRequest(ctx, alice, bruno, "", time.Time{})
		require.NoError(t, err)

		_, err = f.svc.CreateRequest(ctx, alice, bruno, "", time.Time{})
		assert.ErrorIs(t, err, ErrInvalidState)

		_, err = f.svc.CreateRequest(ctx, bruno, alice, "", time.Time{})
		assert.NoError(t, err, "the reverse direction is a different pair")
	})
}

func TestRequestService_Accept(t *testing.T) {
	ctx := context.Background()

	t.Run("creates the match", func(t *testing.T) {
		f := newRequestFixture(t)
		r, err := f.svc.CreateRequest(ctx, alice, bruno, models.FormatBestOf1, time.Time{})
		require.NoError(t, err)

		accepted, match, err := f.svc.AcceptRequest(ctx, r.ID, bruno)
		require.NoError(t, err)
		assert.Equal(t, models.RequestStatusAccepted, accepted.Status)
		assert.Equal(t, match.ID, accepted.MatchID)
		assert.NotNil(t, accepted.RespondedAt)

		stored, err := f.store.GetMatch(ctx, match.ID)
		require.NoError(t, err)
		assert.Equal(t, alice, stored.Player1ID)
		assert.Equal(t, bruno, stored.Player2ID)
		assert.Equal(t, models.MatchStatusAccepted, stored.Status)
		assert.Equal(t, models.FormatBestOf1, stored.Format)
		assert.Equal(t, r.ID, stored.RequestID)

		assert.Equal(t, []models.EventType{
			models.EventRequestCreated,
			models.EventRequestAccepted,
			models.EventMatchCreated,
		}, f.publisher.Types())
	})

	t.Run("only the recipient", func(t *testing.T) {
		f := newRequestFixture(t)
		r, err := f.svc.CreateRequest(ctx, alice, bruno, "", time.Time{})
		require.NoError(t, err)
		_, _, err = f.svc.AcceptRequest(ctx, r.ID, alice)
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("past expiry", func(t *testing.T) {
		f := newRequestFixture(t)
		r, err := f.svc.CreateRequest(ctx, alice, bruno, "", time.Time{})
		require.NoError(t, err)
		f.clock.Advance(models.DefaultRequestTTL + time.Minute)
		_, _, err = f.svc.AcceptRequest(ctx, r.ID, bruno)
		assert.ErrorIs(t, err, ErrInvalidState)
	})

	t.Run("after decline", func(t *testing.T) {
		f := newRequestFixture(t)
		r, err := f.svc.CreateRequest(ctx, alice, bruno, "", time.Time{})
		require.NoError(t, err)
		_, err = f.svc.DeclineRequest(ctx, r.ID, bruno)
		require.NoError(t, err)
		_, _, err = f.svc.AcceptRequest(ctx, r.ID, bruno)
		assert.ErrorIs(t, err, ErrInvalidState)
	})

	t.Run("unknown", func(t *testing.T) {
		f := newRequestFixture(t)
		_, _, err := f.svc.AcceptRequest(ctx, "missing", bruno)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestRequestService_DeclineAndWithdraw(t *testing.T) {
	ctx := context.Background()
	f := newRequestFixture(t)

	r1, err := f.svc.CreateRequest(ctx, alice, bruno, "", time.Time{})
	require.NoError(t, err)

	_, err = f.svc.DeclineRequest(ctx, r1.ID, alice)
	assert.ErrorIs(t, err, ErrForbidden, "requester cannot decline")
	_, err = f.svc.WithdrawRequest(ctx, r1.ID, bruno)
	assert.ErrorIs(t, err, ErrForbidden, "recipient cannot withdraw")

	withdrawn, err := f.svc.WithdrawRequest(ctx, r1.ID, alice)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusWithdrawn, withdrawn.Status)

	// The pair is free again once nothing is pending
	r2, err := f.svc.CreateRequest(ctx, alice, bruno, "", time.Time{})
	require.NoError(t, err)
	declined, err := f.svc.DeclineRequest(ctx, r2.ID, bruno)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusDeclined, declined.Status)

	_, err = f.svc.DeclineRequest(ctx, r2.ID, bruno)
	assert.ErrorIs(t, err, ErrInvalidState)
}
