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

// BookingStore is the slice of the store the booking guard needs.
type BookingStore interface {
	store.Transactor
	store.BookingStore
	GetMatch(ctx context.Context, id string) (*models.Match, error)
}

// BookingGuard books court time and rejects overlapping confirmed bookings.
// HasConflict is a fast pre-check; the store enforces the constraint on insert.
type BookingGuard struct {
	deps
	store BookingStore
}

func NewBookingGuard(st BookingStore, opts ...Option) *BookingGuard {
	return &BookingGuard{deps: newDeps(opts), store: st}
}

// HasConflict reports whether [startsAt, endsAt) overlaps any confirmed
// booking on the resource.
func (g *BookingGuard) HasConflict(ctx context.Context, resourceID string, startsAt, endsAt time.Time) (bool, error) {
	existing, err := g.store.GetBookingsForResource(ctx, resourceID, startsAt, endsAt)
	if err != nil {
		return false, fmt.Errorf("failed to load bookings for %s: %w", resourceID, err)
	}
	for i := range existing {
		if existing[i].Status == models.BookingStatusConfirmed && existing[i].Overlaps(startsAt, endsAt) {
			return true, nil
		}
	}
	return false, nil
}

// BookRequest describes a court booking. MatchID is optional.
type BookRequest struct {
	ResourceID string
	ActorID    string
	StartsAt   time.Time
	EndsAt     time.Time
	MatchID    string
}

// BookCourt creates a confirmed booking when the slot is free.
func (g *BookingGuard) BookCourt(ctx context.Context, req BookRequest) (*models.Booking, error) {
	if req.ResourceID == "" || req.ActorID == "" {
		return nil, fmt.Errorf("%w: resource and actor are required", ErrInvalidInput)
	}
	if !req.EndsAt.After(req.StartsAt) {
		return nil, fmt.Errorf("%w: booking must end after it starts", ErrInvalidInput)
	}
	now := g.now()
	if req.StartsAt.Before(now) {
		return nil, fmt.Errorf("%w: %s", ErrPastBooking, req.StartsAt.Format(time.RFC3339))
	}

	conflict, err := g.HasConflict(ctx, req.ResourceID, req.StartsAt, req.EndsAt)
	if err != nil {
		return nil, err
	}
	if conflict {
		g.metrics.BookingConflict("precheck")
		return nil, fmt.Errorf("%w: %s is taken between %s and %s", ErrSlotConflict,
			req.ResourceID, req.StartsAt.Format(time.RFC3339), req.EndsAt.Format(time.RFC3339))
	}

	booking := &models.Booking{
		ID:         uuid.NewString(),
		ResourceID: req.ResourceID,
		BookedBy:   req.ActorID,
		StartsAt:   req.StartsAt.UTC(),
		EndsAt:     req.EndsAt.UTC(),
		Status:     models.BookingStatusConfirmed,
		MatchID:    req.MatchID,
		CreatedAt:  now,
	}

	err = g.store.RunInTx(ctx, func(ctx context.Context) error {
		if req.MatchID != "" {
			if err := g.checkMatch(ctx, req.MatchID, req.ActorID); err != nil {
				return err
			}
		}
		return g.store.InsertBooking(ctx, booking)
	})
	switch {
	case err == nil:
	case errors.Is(err, store.ErrOverlap):
		g.metrics.BookingConflict("store")
		g.logger.Debug().Str("resource_id", req.ResourceID).Msg("Booking lost insert race")
		return nil, fmt.Errorf("%w: %s is taken", ErrSlotConflict, req.ResourceID)
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrForbidden), errors.Is(err, ErrInvalidState):
		return nil, err
	default:
		g.logger.Error().Err(err).Str("resource_id", req.ResourceID).Msg("Failed to insert booking")
		return nil, translate(err, "booking", booking.ID)
	}

	g.logger.Info().
		Str("booking_id", booking.ID).
		Str("resource_id", booking.ResourceID).
		Str("actor_id", booking.BookedBy).
		Time("starts_at", booking.StartsAt).
		Time("ends_at", booking.EndsAt).
		Msg("Court booked")
	g.emit(ctx, models.LifecycleEvent{
		Type:     models.EventBookingConfirmed,
		EntityID: booking.ID,
		MatchID:  booking.MatchID,
		ActorID:  booking.BookedBy,
		To:       string(booking.Status),
		Detail:   booking.ResourceID,
	})
	return booking, nil
}

func (g *BookingGuard) checkMatch(ctx context.Context, matchID, actorID string) error {
	m, err := g.store.GetMatch(ctx, matchID)
	if err != nil {
		return translate(err, "match", matchID)
	}
	if _, ok := m.RoleOf(actorID); !ok {
		return fmt.Errorf("%w: %s is not playing match %s", ErrForbidden, actorID, matchID)
	}
	if m.Status != models.MatchStatusAccepted && m.Status != models.MatchStatusPendingConfirmation {
		return fmt.Errorf("%w: cannot book a court for a %s match", ErrInvalidState, m.Status)
	}
	return nil
}

// CancelBooking releases a future booking. Only the booker may cancel, and
// the row is kept with status cancelled.
func (g *BookingGuard) CancelBooking(ctx context.Context, bookingID, actorID string) (*models.Booking, error) {
	b, err := g.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.BookedBy != actorID {
		return nil, fmt.Errorf("%w: booking %s belongs to another player", ErrForbidden, bookingID)
	}
	now := g.now()
	if !b.StartsAt.After(now) {
		return nil, fmt.Errorf("%w: booking %s has already started", ErrPastBooking, bookingID)
	}
	if b.Status != models.BookingStatusConfirmed {
		return nil, fmt.Errorf("%w: booking %s is %s", ErrInvalidState, bookingID, b.Status)
	}

	updated, err := g.store.UpdateBookingStatus(ctx, bookingID, models.BookingStatusConfirmed, models.BookingStatusCancelled, now)
	if err != nil {
		return nil, translate(err, "booking", bookingID)
	}

	g.logger.Info().Str("booking_id", bookingID).Str("actor_id", actorID).Msg("Booking cancelled")
	g.emit(ctx, models.LifecycleEvent{
		Type:     models.EventBookingCancelled,
		EntityID: bookingID,
		MatchID:  updated.MatchID,
		ActorID:  actorID,
		From:     string(models.BookingStatusConfirmed),
		To:       string(updated.Status),
		Detail:   updated.ResourceID,
	})
	return updated, nil
}

// ListBookings returns the confirmed bookings overlapping [from, to).
func (g *BookingGuard) ListBookings(ctx context.Context, resourceID string, from, to time.Time) ([]models.Booking, error) {
	if !to.After(from) {
		return nil, fmt.Errorf("%w: window must end after it starts", ErrInvalidInput)
	}
	bookings, err := g.store.GetBookingsForResource(ctx, resourceID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings for %s: %w", resourceID, err)
	}
	return bookings, nil
}

func (g *BookingGuard) GetBooking(ctx context.Context, bookingID string) (*models.Booking, error) {
	b, err := g.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, translate(err, "booking", bookingID)
	}
	return b, nil
}
