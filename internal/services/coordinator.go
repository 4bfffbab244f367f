package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"courtmatch/internal/elo"
	"courtmatch/internal/models"
	"courtmatch/internal/scoring"
	"courtmatch/internal/store"
)

const maxDisputeReasonLength = 1000

// CoordinatorStore is the slice of the store the coordinator needs.
type CoordinatorStore interface {
	store.Transactor
	store.MatchStore
	store.ProfileStore
}

// Coordinator drives a match from acceptance to a terminal state. Every
// transition is a conditional write on the current status, so two racing
// callers cannot both succeed.
type Coordinator struct {
	deps
	store      CoordinatorStore
	calculator *elo.Calculator
}

func NewCoordinator(st CoordinatorStore, opts ...Option) *Coordinator {
	return &Coordinator{
		deps:       newDeps(opts),
		store:      st,
		calculator: elo.NewCalculator(),
	}
}

// GetMatch returns a match by id.
func (c *Coordinator) GetMatch(ctx context.Context, matchID string) (*models.Match, error) {
	m, err := c.store.GetMatch(ctx, matchID)
	if err != nil {
		return nil, translate(err, "match", matchID)
	}
	return m, nil
}

// SubmitResult records a participant's score and moves the match to
// pending_confirmation. An empty format means the format the match was arranged with.
func (c *Coordinator) SubmitResult(ctx context.Context, matchID, actorID string, sets []models.SetScore, format models.Format) (*models.Match, error) {
	m, err := c.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if _, ok := m.RoleOf(actorID); !ok {
		return nil, fmt.Errorf("%w: %s is not playing match %s", ErrForbidden, actorID, matchID)
	}
	if m.Status != models.MatchStatusAccepted {
		return nil, fmt.Errorf("%w: cannot submit a result for a %s match", ErrInvalidState, m.Status)
	}
	if format == "" {
		format = m.Format
	}
	if !scoring.Validate(sets, format) {
		return nil, fmt.Errorf("%w: %v is not a decisive %s result", ErrInvalidScore, sets, format)
	}

	now := c.now()
	p1Sets, p2Sets := scoring.Tally(sets)
	pending := models.MatchStatusPendingConfirmation
	patch := store.MatchPatch{
		Status:            &pending,
		Format:            &format,
		ScoreDetail:       sets,
		Player1Sets:       &p1Sets,
		Player2Sets:       &p2Sets,
		ResultSubmittedBy: &actorID,
		PlayedAt:          &now,
		UpdatedAt:         now,
	}

	updated, err := c.store.UpdateMatch(ctx, matchID, models.MatchStatusAccepted, patch)
	if err != nil {
		return nil, c.raceOrError("submit_result", matchID, err)
	}

	c.metrics.MatchTransition(updated.Status)
	c.logger.Info().
		Str("match_id", matchID).
		Str("actor_id", actorID).
		Int("player1_sets", p1Sets).
		Int("player2_sets", p2Sets).
		Msg("Match result submitted")
	c.emit(ctx, models.LifecycleEvent{
		Type:     models.EventResultSubmitted,
		EntityID: matchID,
		MatchID:  matchID,
		ActorID:  actorID,
		From:     string(models.MatchStatusAccepted),
		To:       string(updated.Status),
	})
	return updated, nil
}

// ConfirmResult finalizes a submitted result. The confirming player must be
// the other participant. Rating updates for both players, their history
// entries, and the completed status are written in one transaction.
func (c *Coordinator) ConfirmResult(ctx context.Context, matchID, actorID string) (*models.Match, error) {
	m, err := c.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if _, ok := m.RoleOf(actorID); !ok {
		return nil, fmt.Errorf("%w: %s is not playing match %s", ErrForbidden, actorID, matchID)
	}
	if actorID == m.ResultSubmittedBy {
		return nil, fmt.Errorf("%w: match %s", ErrSelfConfirmation, matchID)
	}
	if m.Status != models.MatchStatusPendingConfirmation {
		return nil, fmt.Errorf("%w: cannot confirm a %s match", ErrInvalidState, m.Status)
	}

	winner := scoring.Winner(m.ScoreDetail, m.Format)
	if winner == models.SlotNone {
		// Submission validated the score, so this is a corrupted record
		return nil, fmt.Errorf("%w: match %s has no decisive stored result", ErrInvalidState, matchID)
	}

	var finalized *models.Match
	err = c.store.RunInTx(ctx, func(ctx context.Context) error {
		p1, err := c.store.GetProfile(ctx, m.Player1ID)
		if err != nil {
			return translate(err, "profile", m.Player1ID)
		}
		p2, err := c.store.GetProfile(ctx, m.Player2ID)
		if err != nil {
			return translate(err, "profile", m.Player2ID)
		}

		outcome := c.calculator.ApplyResult(
			elo.Player{Rating: p1.Rating, MatchesPlayed: p1.MatchesPlayed},
			elo.Player{Rating: p2.Rating, MatchesPlayed: p2.MatchesPlayed},
			winner,
		)

		now := c.now()
		completed := models.MatchStatusCompleted
		winnerID := m.PlayerIn(winner)
		r1 := models.RatingChange{Before: p1.Rating, After: outcome.Rating1After, Delta: outcome.Delta1}
		r2 := models.RatingChange{Before: p2.Rating, After: outcome.Rating2After, Delta: outcome.Delta2}

		updated, err := c.store.UpdateMatch(ctx, matchID, models.MatchStatusPendingConfirmation, store.MatchPatch{
			Status:            &completed,
			WinnerID:          &winnerID,
			ResultConfirmedBy: &actorID,
			CompletedAt:       &now,
			Player1Rating:     &r1,
			Player2Rating:     &r2,
			UpdatedAt:         now,
		})
		if err != nil {
			return err
		}

		if err := c.applyRating(ctx, m, p1, r1, now); err != nil {
			return err
		}
		if err := c.applyRating(ctx, m, p2, r2, now); err != nil {
			return err
		}

		finalized = updated
		return nil
	})
	if err != nil {
		return nil, c.raceOrError("confirm_result", matchID, err)
	}

	c.metrics.MatchTransition(finalized.Status)
	c.logger.Info().
		Str("match_id", matchID).
		Str("winner_id", finalized.WinnerID).
		Int("player1_delta", finalized.Player1Rating.Delta).
		Int("player2_delta", finalized.Player2Rating.Delta).
		Msg("Match result confirmed")
	c.emit(ctx, models.LifecycleEvent{
		Type:     models.EventResultConfirmed,
		EntityID: matchID,
		MatchID:  matchID,
		ActorID:  actorID,
		From:     string(models.MatchStatusPendingConfirmation),
		To:       string(finalized.Status),
		Detail:   "winner=" + finalized.WinnerID,
	})
	return finalized, nil
}

// applyRating writes one player's new rating and appends their history entry.
func (c *Coordinator) applyRating(ctx context.Context, m *models.Match, p *models.Profile, rc models.RatingChange, now time.Time) error {
	role, _ := m.RoleOf(p.ID)
	played := p.MatchesPlayed + 1
	provisional := models.IsProvisional(played)

	err := c.store.UpdateProfile(ctx, p.ID, p.MatchesPlayed, store.ProfilePatch{
		Rating:            rc.After,
		RatingProvisional: provisional,
		MatchesPlayed:     played,
		UpdatedAt:         now,
	})
	if err != nil {
		return fmt.Errorf("failed to update profile %s: %w", p.ID, err)
	}

	entry := &models.RatingHistoryEntry{
		ID:           uuid.NewString(),
		PlayerID:     p.ID,
		MatchID:      m.ID,
		OpponentID:   role.OpponentID,
		RatingBefore: rc.Before,
		RatingAfter:  rc.After,
		Delta:        rc.Delta,
		Reason:       models.RatingReasonMatchResult,
		Provisional:  provisional,
		RecordedAt:   now,
	}
	if err := c.store.AppendRatingHistory(ctx, entry); err != nil {
		return fmt.Errorf("failed to append rating history for %s: %w", p.ID, err)
	}
	return nil
}

// DisputeResult lets the opponent reject a submitted result. The match is
// parked in disputed for external review; ratings are not touched.
func (c *Coordinator) DisputeResult(ctx context.Context, matchID, actorID, reason string) (*models.Match, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" || len(reason) > maxDisputeReasonLength {
		return nil, fmt.Errorf("%w: dispute reason must be 1-%d characters", ErrInvalidInput, maxDisputeReasonLength)
	}

	m, err := c.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if _, ok := m.RoleOf(actorID); !ok {
		return nil, fmt.Errorf("%w: %s is not playing match %s", ErrForbidden, actorID, matchID)
	}
	if actorID == m.ResultSubmittedBy {
		return nil, fmt.Errorf("%w: submitter cannot dispute match %s", ErrSelfConfirmation, matchID)
	}
	if m.Status != models.MatchStatusPendingConfirmation {
		return nil, fmt.Errorf("%w: cannot dispute a %s match", ErrInvalidState, m.Status)
	}

	now := c.now()
	disputed := models.MatchStatusDisputed
	updated, err := c.store.UpdateMatch(ctx, matchID, models.MatchStatusPendingConfirmation, store.MatchPatch{
		Status:        &disputed,
		DisputedBy:    &actorID,
		DisputeReason: &reason,
		UpdatedAt:     now,
	})
	if err != nil {
		return nil, c.raceOrError("dispute_result", matchID, err)
	}

	c.metrics.MatchTransition(updated.Status)
	c.logger.Info().Str("match_id", matchID).Str("actor_id", actorID).Msg("Match result disputed")
	c.emit(ctx, models.LifecycleEvent{
		Type:     models.EventResultDisputed,
		EntityID: matchID,
		MatchID:  matchID,
		ActorID:  actorID,
		From:     string(models.MatchStatusPendingConfirmation),
		To:       string(updated.Status),
		Detail:   reason,
	})
	return updated, nil
}

// CancelMatch cancels a match that has no submitted result yet.
func (c *Coordinator) CancelMatch(ctx context.Context, matchID, actorID string) (*models.Match, error) {
	m, err := c.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if _, ok := m.RoleOf(actorID); !ok {
		return nil, fmt.Errorf("%w: %s is not playing match %s", ErrForbidden, actorID, matchID)
	}
	if m.Status != models.MatchStatusAccepted {
		return nil, fmt.Errorf("%w: cannot cancel a %s match", ErrInvalidState, m.Status)
	}

	now := c.now()
	cancelled := models.MatchStatusCancelled
	updated, err := c.store.UpdateMatch(ctx, matchID, models.MatchStatusAccepted, store.MatchPatch{
		Status:      &cancelled,
		CancelledBy: &actorID,
		UpdatedAt:   now,
	})
	if err != nil {
		return nil, c.raceOrError("cancel_match", matchID, err)
	}

	c.metrics.MatchTransition(updated.Status)
	c.logger.Info().Str("match_id", matchID).Str("actor_id", actorID).Msg("Match cancelled")
	c.emit(ctx, models.LifecycleEvent{
		Type:     models.EventMatchCancelled,
		EntityID: matchID,
		MatchID:  matchID,
		ActorID:  actorID,
		From:     string(models.MatchStatusAccepted),
		To:       string(updated.Status),
	})
	return updated, nil
}

// raceOrError translates a failed conditional write. Losing a race is the
// expected outcome of concurrent transitions and is only logged at debug.
func (c *Coordinator) raceOrError(op, matchID string, err error) error {
	switch {
	case errors.Is(err, store.ErrPreconditionFailed):
		c.metrics.TransitionRace(op)
		c.logger.Debug().Str("match_id", matchID).Str("op", op).Msg("Lost transition race")
		return fmt.Errorf("%w: match %s changed concurrently", ErrInvalidState, matchID)
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrInvalidState):
		return err
	default:
		c.logger.Error().Err(err).Str("match_id", matchID).Str("op", op).Msg("Match transition failed")
		return translate(err, "match", matchID)
	}
}

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// RatingHistory returns a player's most recent rating changes, newest first.
func (c *Coordinator) RatingHistory(ctx context.Context, playerID string, limit int) ([]models.RatingHistoryEntry, error) {
	switch {
	case limit <= 0:
		limit = defaultHistoryLimit
	case limit > maxHistoryLimit:
		limit = maxHistoryLimit
	}
	entries, err := c.store.ListRatingHistory(ctx, playerID, limit)
	if err != nil {
		return nil, translate(err, "rating history", playerID)
	}
	return entries, nil
}
