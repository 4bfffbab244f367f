package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"courtmatch/internal/models"
	"courtmatch/internal/store/memstore"
)

const (
	alice = "player-alice"
	bruno = "player-bruno"
	carla = "player-carla"
)

var straightSets = []models.SetScore{{P1Games: 6, P2Games: 4}, {P1Games: 6, P2Games: 3}}

type coordinatorFixture struct {
	store     *memstore.Store
	coord     *Coordinator
	publisher *recordingPublisher
	metrics   *countingMetrics
}

// Alice (1200, 5 played) against Bruno (1400, 20 played).
func newCoordinatorFixture(t *testing.T) *coordinatorFixture {
	t.Helper()
	st := memstore.New()
	seedProfile(t, st, alice, 1200, 5)
	seedProfile(t, st, bruno, 1400, 20)
	seedProfile(t, st, carla, 1300, 12)
	seedMatch(t, st, "m1", alice, bruno, models.FormatBestOf3)

	clock := newTestClock()
	pub := &recordingPublisher{}
	met := newCountingMetrics()
	return &coordinatorFixture{
		store:     st,
		publisher: pub,
		metrics:   met,
		coord: NewCoordinator(st,
			WithClock(clock.Now),
			WithPublisher(pub),
			WithMetrics(met),
		),
	}
}

func TestCoordinator_SubmitAndConfirm(t *testing.T) {
	f := newCoordinatorFixture(t)
	ctx := context.Background()

	submitted, err := f.coord.SubmitResult(ctx, "m1", alice, straightSets, "")
	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusPendingConfirmation, submitted.Status)
	assert.Equal(t, 2, submitted.Player1Sets)
	assert.Equal(t, 0, submitted.Player2Sets)
	assert.Equal(t, alice, submitted.ResultSubmittedBy)
	assert.NotNil(t, submitted.PlayedAt)
	assert.Nil(t, submitted.Player1Rating, "ratings must not move on submit")

	completed, err := f.coord.ConfirmResult(ctx, "m1", bruno)
	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusCompleted, completed.Status)
	assert.Equal(t, alice, completed.WinnerID)
	assert.Equal(t, bruno, completed.ResultConfirmedBy)
	require.NotNil(t, completed.Player1Rating)
	require.NotNil(t, completed.Player2Rating)
	assert.Equal(t, models.RatingChange{Before: 1200, After: 1230, Delta: 30}, *completed.Player1Rating)
	assert.Equal(t, models.RatingChange{Before: 1400, After: 1382, Delta: -18}, *completed.Player2Rating)

	a, err := f.store.GetProfile(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, 1230, a.Rating)
	assert.Equal(t, 6, a.MatchesPlayed)
	assert.True(t, a.RatingProvisional)

	b, err := f.store.GetProfile(ctx, bruno)
	require.NoError(t, err)
	assert.Equal(t, 1382, b.Rating)
	assert.Equal(t, 21, b.MatchesPlayed)
	assert.False(t, b.RatingProvisional)

	history, err := f.coord.RatingHistory(ctx, alice, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "m1", history[0].MatchID)
	assert.Equal(t, bruno, history[0].OpponentID)
	assert.Equal(t, 30, history[0].Delta)
	assert.Equal(t, models.RatingReasonMatchResult, history[0].Reason)

	assert.Equal(t, []models.EventType{models.EventResultSubmitted, models.EventResultConfirmed}, f.publisher.Types())
	assert.Equal(t, 1, f.metrics.transitions[models.MatchStatusCompleted])
}

func TestCoordinator_ProvisionalFlagClearsAtTenMatches(t *testing.T) {
	st := memstore.New()
	seedProfile(t, st, alice, 1200, 9)
	seedProfile(t, st, bruno, 1200, 9)
	seedMatch(t, st, "m1", alice, bruno, models.FormatBestOf1)
	coord := NewCoordinator(st)
	ctx := context.Background()

	_, err := coord.SubmitResult(ctx, "m1", bruno, []models.SetScore{{P1Games: 7, P2Games: 6}}, "")
	require.NoError(t, err)
	_, err = coord.ConfirmResult(ctx, "m1", alice)
	require.NoError(t, err)

	a, err := st.GetProfile(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, 10, a.MatchesPlayed)
	assert.False(t, a.RatingProvisional)
}

func TestCoordinator_SubmitPreconditions(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown match", func(t *testing.T) {
		f := newCoordinatorFixture(t)
		_, err := f.coord.SubmitResult(ctx, "missing", alice, straightSets, "")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("non participant", func(t *testing.T) {
		f := newCoordinatorFixture(t)
		_, err := f.coord.SubmitResult(ctx, "m1", carla, straightSets, "")
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("undecided score leaves match untouched", func(t *testing.T) {
		f := newCoordinatorFixture(t)
		_, err := f.coord.SubmitResult(ctx, "m1", alice, []models.SetScore{{P1Games: 6, P2Games: 4}, {P1Games: 3, P2Games: 6}}, "")
		assert.ErrorIs(t, err, ErrInvalidScore)

		m, err := f.coord.GetMatch(ctx, "m1")
		require.NoError(t, err)
		assert.Equal(t, models.MatchStatusAccepted, m.Status)
		assert.Empty(t, m.ScoreDetail)
	})

	t.Run("unknown format", func(t *testing.T) {
		f := newCoordinatorFixture(t)
		_, err := f.coord.SubmitResult(ctx, "m1", alice, straightSets, models.Format("best_of_7"))
		assert.ErrorIs(t, err, ErrInvalidScore)
	})

	t.Run("explicit format overrides the arranged one", func(t *testing.T) {
		f := newCoordinatorFixture(t)
		m, err := f.coord.SubmitResult(ctx, "m1", alice, []models.SetScore{{P1Games: 2, P2Games: 6}}, models.FormatBestOf1)
		require.NoError(t, err)
		assert.Equal(t, models.FormatBestOf1, m.Format)
	})

	t.Run("second submission", func(t *testing.T) {
		f := newCoordinatorFixture(t)
		_, err := f.coord.SubmitResult(ctx, "m1", alice, straightSets, "")
		require.NoError(t, err)
		_, err = f.coord.SubmitResult(ctx, "m1", bruno, straightSets, "")
		assert.ErrorIs(t, err, ErrInvalidState)
	})
}

func TestCoordinator_SelfConfirmation(t *testing.T) {
	f := newCoordinatorFixture(t)
	ctx := context.Background()

	_, err := f.coord.SubmitResult(ctx, "m1", alice, straightSets, "")
	require.NoError(t, err)

	_, err = f.coord.ConfirmResult(ctx, "m1", alice)
	assert.ErrorIs(t, err, ErrSelfConfirmation)

	m, err := f.coord.GetMatch(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusPendingConfirmation, m.Status)

	a, err := f.store.GetProfile(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, 1200, a.Rating)
}

func TestCoordinator_ConfirmPreconditions(t *testing.T) {
	ctx := context.Background()

	t.Run("nothing submitted", func(t *testing.T) {
		f := newCoordinatorFixture(t)
		_, err := f.coord.ConfirmResult(ctx, "m1", bruno)
		assert.ErrorIs(t, err, ErrInvalidState)
	})

	t.Run("non participant", func(t *testing.T) {
		f := newCoordinatorFixture(t)
		_, err := f.coord.SubmitResult(ctx, "m1", alice, straightSets, "")
		require.NoError(t, err)
		_, err = f.coord.ConfirmResult(ctx, "m1", carla)
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("missing profile rolls back", func(t *testing.T) {
		st := memstore.New()
		seedProfile(t, st, alice, 1200, 5)
		seedMatch(t, st, "m1", alice, "ghost", models.FormatBestOf3)
		coord := NewCoordinator(st)

		_, err := coord.SubmitResult(ctx, "m1", alice, straightSets, "")
		require.NoError(t, err)
		_, err = coord.ConfirmResult(ctx, "m1", "ghost")
		assert.ErrorIs(t, err, ErrNotFound)

		m, err := st.GetMatch(ctx, "m1")
		require.NoError(t, err)
		assert.Equal(t, models.MatchStatusPendingConfirmation, m.Status)
		a, err := st.GetProfile(ctx, alice)
		require.NoError(t, err)
		assert.Equal(t, 5, a.MatchesPlayed)
	})
}

func TestCoordinator_ConcurrentConfirm(t *testing.T) {
	f := newCoordinatorFixture(t)
	ctx := context.Background()

	_, err := f.coord.SubmitResult(ctx, "m1", alice, straightSets, "")
	require.NoError(t, err)

	const callers = 8
	results := make([]error, callers)
	var g errgroup.Group
	for i := 0; i < callers; i++ {
		i := i
		g.Go(func() error {
			_, results[i] = f.coord.ConfirmResult(ctx, "m1", bruno)
			return nil
		})
	}
	require.NoError(t, g.Wait())

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ErrInvalidState)
	}
	assert.Equal(t, 1, succeeded)

	a, err := f.store.GetProfile(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, 6, a.MatchesPlayed)
	b, err := f.store.GetProfile(ctx, bruno)
	require.NoError(t, err)
	assert.Equal(t, 21, b.MatchesPlayed)

	history, err := f.coord.RatingHistory(ctx, bruno, 0)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestCoordinator_Dispute(t *testing.T) {
	ctx := context.Background()

	t.Run("opponent disputes", func(t *testing.T) {
		f := newCoordinatorFixture(t)
		_, err := f.coord.SubmitResult(ctx, "m1", alice, straightSets, "")
		require.NoError(t, err)

		m, err := f.coord.DisputeResult(ctx, "m1", bruno, "  second set was 6-4 to me  ")
		require.NoError(t, err)
		assert.Equal(t, models.MatchStatusDisputed, m.Status)
		assert.Equal(t, bruno, m.DisputedBy)
		assert.Equal(t, "second set was 6-4 to me", m.DisputeReason)
		assert.Nil(t, m.Player1Rating)

		_, err = f.coord.ConfirmResult(ctx, "m1", bruno)
		assert.ErrorIs(t, err, ErrInvalidState)
	})

	t.Run("submitter cannot dispute", func(t *testing.T) {
		f := newCoordinatorFixture(t)
		_, err := f.coord.SubmitResult(ctx, "m1", alice, straightSets, "")
		require.NoError(t, err)
		_, err = f.coord.DisputeResult(ctx, "m1", alice, "changed my mind")
		assert.ErrorIs(t, err, ErrSelfConfirmation)
	})

	t.Run("reason required", func(t *testing.T) {
		f := newCoordinatorFixture(t)
		_, err := f.coord.DisputeResult(ctx, "m1", bruno, "   ")
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("nothing to dispute", func(t *testing.T) {
		f := newCoordinatorFixture(t)
		_, err := f.coord.DisputeResult(ctx, "m1", bruno, "no result yet")
		assert.ErrorIs(t, err, ErrInvalidState)
	})
}

func TestCoordinator_Cancel(t *testing.T) {
	ctx := context.Background()

	t.Run("accepted match", func(t *testing.T) {
		f := newCoordinatorFixture(t)
		m, err := f.coord.CancelMatch(ctx, "m1", bruno)
		require.NoError(t, err)
		assert.Equal(t, models.MatchStatusCancelled, m.Status)
		assert.Equal(t, bruno, m.CancelledBy)

		_, err = f.coord.SubmitResult(ctx, "m1", alice, straightSets, "")
		assert.ErrorIs(t, err, ErrInvalidState)
	})

	t.Run("closed once a result is submitted", func(t *testing.T) {
		f := newCoordinatorFixture(t)
		_, err := f.coord.SubmitResult(ctx, "m1", alice, straightSets, "")
		require.NoError(t, err)
		_, err = f.coord.CancelMatch(ctx, "m1", bruno)
		assert.ErrorIs(t, err, ErrInvalidState)
	})

	t.Run("non participant", func(t *testing.T) {
		f := newCoordinatorFixture(t)
		_, err := f.coord.CancelMatch(ctx, "m1", carla)
		assert.ErrorIs(t, err, ErrForbidden)
	})
}
