package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"courtmatch/internal/models"
	"courtmatch/internal/store"
)

// RequestStore is the slice of the store the request service needs.
type RequestStore interface {
	store.Transactor
	store.RequestStore
	InsertMatch(ctx context.Context, m *models.Match) error
}

// RequestService handles match challenges between two players. Accepting a
// request creates the match the coordinator then drives.
type RequestService struct {
	deps
	store RequestStore
	ttl   time.Duration
}

// NewRequestService builds the service. A non-positive ttl falls back to
// models.DefaultRequestTTL.
func NewRequestService(st RequestStore, ttl time.Duration, opts ...Option) *RequestService {
	if ttl <= 0 {
		ttl = models.DefaultRequestTTL
	}
	return &RequestService{
		deps:  newDeps(opts),
		store: st,
		ttl:   ttl,
	}
}

// CreateRequest opens a pending challenge from requester to recipient.
func (s *RequestService) CreateRequest(ctx context.Context, requesterID, recipientID string, format models.Format, proposedAt time.Time) (*models.MatchRequest, error) {
	if requesterID == "" || recipientID == "" {
		return nil, fmt.Errorf("%w: requester and recipient are required", ErrInvalidInput)
	}
	if requesterID == recipientID {
		return nil, fmt.Errorf("%w: cannot challenge yourself", ErrInvalidInput)
	}
	if format == "" {
		format = models.FormatBestOf3
	}
	if !format.IsValid() {
		return nil, fmt.Errorf("%w: unknown format %q", ErrInvalidInput, format)
	}

	now := s.now()
	if !proposedAt.IsZero() && !proposedAt.After(now) {
		return nil, fmt.Errorf("%w: proposed time %s is in the past", ErrInvalidInput, proposedAt.Format(time.RFC3339))
	}
	expiresAt := now.Add(s.ttl)
	if !proposedAt.IsZero() && proposedAt.Before(expiresAt) {
		expiresAt = proposedAt
	}

	req := &models.MatchRequest{
		ID:             uuid.NewString(),
		RequesterID:    requesterID,
		RecipientID:    recipientID,
		Status:         models.RequestStatusPending,
		ProposedAt:     proposedAt.UTC(),
		ProposedFormat: format,
		ExpiresAt:      expiresAt,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.InsertRequest(ctx, req); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, fmt.Errorf("%w: a pending request to %s already exists", ErrInvalidState, recipientID)
		}
		return nil, translate(err, "request", req.ID)
	}

	s.logger.Info().
		Str("request_id", req.ID).
		Str("requester_id", requesterID).
		Str("recipient_id", recipientID).
		Str("format", string(format)).
		Time("expires_at", expiresAt).
		Msg("Match request created")
	s.emit(ctx, models.LifecycleEvent{
		Type:     models.EventRequestCreated,
		EntityID: req.ID,
		ActorID:  requesterID,
		To:       string(req.Status),
	})
	return req, nil
}

func (s *RequestService) GetRequest(ctx context.Context, requestID string) (*models.MatchRequest, error) {
	r, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, translate(err, "request", requestID)
	}
	return r, nil
}

// AcceptRequest turns a pending request into an accepted match. The request
// transition and the match insert commit together.
func (s *RequestService) AcceptRequest(ctx context.Context, requestID, actorID string) (*models.MatchRequest, *models.Match, error) {
	r, err := s.GetRequest(ctx, requestID)
	if err != nil {
		return nil, nil, err
	}
	if r.RecipientID != actorID {
		return nil, nil, fmt.Errorf("%w: only the recipient can accept request %s", ErrForbidden, requestID)
	}
	if r.Status != models.RequestStatusPending {
		return nil, nil, fmt.Errorf("%w: request %s is %s", ErrInvalidState, requestID, r.Status)
	}
	now := s.now()
	if r.ExpiresAt.Before(now) {
		return nil, nil, fmt.Errorf("%w: request %s expired at %s", ErrInvalidState, requestID, r.ExpiresAt.Format(time.RFC3339))
	}

	match := &models.Match{
		ID:        uuid.NewString(),
		RequestID: r.ID,
		Player1ID: r.RequesterID,
		Player2ID: r.RecipientID,
		Status:    models.MatchStatusAccepted,
		Format:    r.ProposedFormat,
		CreatedAt: now,
		UpdatedAt: now,
	}

	var accepted *models.MatchRequest
	err = s.store.RunInTx(ctx, func(ctx context.Context) error {
		updated, err := s.store.UpdateRequestStatus(ctx, requestID, models.RequestStatusPending, models.RequestStatusAccepted, store.RequestPatch{
			MatchID:     match.ID,
			RespondedAt: &now,
			UpdatedAt:   now,
		})
		if err != nil {
			return err
		}
		if err := s.store.InsertMatch(ctx, match); err != nil {
			return fmt.Errorf("failed to insert match: %w", err)
		}
		accepted = updated
		return nil
	})
	if err != nil {
		return nil, nil, s.transitionError(requestID, err)
	}

	s.logger.Info().
		Str("request_id", requestID).
		Str("match_id", match.ID).
		Msg("Match request accepted")
	s.emit(ctx, models.LifecycleEvent{
		Type:     models.EventRequestAccepted,
		EntityID: requestID,
		MatchID:  match.ID,
		ActorID:  actorID,
		From:     string(models.RequestStatusPending),
		To:       string(accepted.Status),
	})
	s.metrics.MatchTransition(match.Status)
	s.emit(ctx, models.LifecycleEvent{
		Type:     models.EventMatchCreated,
		EntityID: match.ID,
		MatchID:  match.ID,
		ActorID:  actorID,
		To:       string(match.Status),
	})
	return accepted, match, nil
}

// DeclineRequest is the recipient's refusal.
func (s *RequestService) DeclineRequest(ctx context.Context, requestID, actorID string) (*models.MatchRequest, error) {
	return s.respond(ctx, requestID, actorID, models.RequestStatusDeclined)
}

// WithdrawRequest lets the requester take back a pending request.
func (s *RequestService) WithdrawRequest(ctx context.Context, requestID, actorID string) (*models.MatchRequest, error) {
	return s.respond(ctx, requestID, actorID, models.RequestStatusWithdrawn)
}

func (s *RequestService) respond(ctx context.Context, requestID, actorID string, to models.RequestStatus) (*models.MatchRequest, error) {
	r, err := s.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}

	owner, eventType := r.RecipientID, models.EventRequestDeclined
	if to == models.RequestStatusWithdrawn {
		owner, eventType = r.RequesterID, models.EventRequestWithdrawn
	}
	if owner != actorID {
		return nil, fmt.Errorf("%w: %s cannot %s request %s", ErrForbidden, actorID, verbFor(to), requestID)
	}
	if r.Status != models.RequestStatusPending {
		return nil, fmt.Errorf("%w: request %s is %s", ErrInvalidState, requestID, r.Status)
	}

	now := s.now()
	updated, err := s.store.UpdateRequestStatus(ctx, requestID, models.RequestStatusPending, to, store.RequestPatch{
		RespondedAt: &now,
		UpdatedAt:   now,
	})
	if err != nil {
		return nil, s.transitionError(requestID, err)
	}

	s.logger.Info().Str("request_id", requestID).Str("status", string(to)).Msg("Match request closed")
	s.emit(ctx, models.LifecycleEvent{
		Type:     eventType,
		EntityID: requestID,
		ActorID:  actorID,
		From:     string(models.RequestStatusPending),
		To:       string(updated.Status),
	})
	return updated, nil
}

func (s *RequestService) transitionError(requestID string, err error) error {
	if errors.Is(err, store.ErrPreconditionFailed) {
		s.metrics.TransitionRace("request")
		s.logger.Debug().Str("request_id", requestID).Msg("Lost request transition race")
	}
	return translate(err, "request", requestID)
}

func verbFor(status models.RequestStatus) string {
	if status == models.RequestStatusWithdrawn {
		return "withdraw"
	}
	return "decline"
}
