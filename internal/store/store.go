// Package store defines the persistence contract the matchmaking core relies on.
// Implementations must provide conditional (compare-and-swap) updates and
// multi-document transactions; the core never performs read-then-write pairs
// without one of the two.
package store

import (
	"context"
	"errors"
	"time"

	"courtmatch/internal/models"
)

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrPreconditionFailed indicates a conditional write matched no record
	// because the record is no longer in the expected state.
	ErrPreconditionFailed = errors.New("store: precondition failed")

	// ErrDuplicate indicates a uniqueness constraint rejected the write.
	ErrDuplicate = errors.New("store: duplicate")

	// ErrOverlap indicates a booking insert would overlap a confirmed booking
	// on the same resource.
	ErrOverlap = errors.New("store: overlapping booking")
)

// Transactor runs fn as a single atomic unit. Every store call made with the
// ctx passed to fn joins the transaction. If fn returns an error nothing it
// wrote is kept. Nested calls join the outer transaction.
type Transactor interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type MatchStore interface {
	GetMatch(ctx context.Context, id string) (*models.Match, error)
	InsertMatch(ctx context.Context, m *models.Match) error
	// UpdateMatch applies patch only if the match is currently in status expect.
	// Returns ErrPreconditionFailed when the status has moved on.
	UpdateMatch(ctx context.Context, id string, expect models.MatchStatus, patch MatchPatch) (*models.Match, error)
}

type ProfileStore interface {
	GetProfile(ctx context.Context, id string) (*models.Profile, error)
	CreateProfile(ctx context.Context, p *models.Profile) error
	// UpdateProfile applies patch only if the profile still has expectMatchesPlayed.
	UpdateProfile(ctx context.Context, id string, expectMatchesPlayed int, patch ProfilePatch) error
	AppendRatingHistory(ctx context.Context, entry *models.RatingHistoryEntry) error
	ListRatingHistory(ctx context.Context, playerID string, limit int) ([]models.RatingHistoryEntry, error)
}

type BookingStore interface {
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	// GetBookingsForResource returns confirmed bookings overlapping [from, to), ordered by start.
	GetBookingsForResource(ctx context.Context, resourceID string, from, to time.Time) ([]models.Booking, error)
	// InsertBooking stores a confirmed booking unless it overlaps another
	// confirmed booking for the same resource, in which case ErrOverlap.
	// Concurrent inserts for one resource are serialized.
	InsertBooking(ctx context.Context, b *models.Booking) error
	UpdateBookingStatus(ctx context.Context, id string, from, to models.BookingStatus, at time.Time) (*models.Booking, error)
}

type RequestStore interface {
	GetRequest(ctx context.Context, id string) (*models.MatchRequest, error)
	// InsertRequest returns ErrDuplicate if a pending request already exists
	// for the same (requester, recipient) pair.
	InsertRequest(ctx context.Context, r *models.MatchRequest) error
	GetPendingExpiredRequests(ctx context.Context, now time.Time, limit int) ([]models.MatchRequest, error)
	// UpdateRequestStatus moves a request from one status to another, failing
	// with ErrPreconditionFailed if it is no longer in from.
	UpdateRequestStatus(ctx context.Context, id string, from, to models.RequestStatus, patch RequestPatch) (*models.MatchRequest, error)
}

// Locker provides named, expiring locks for work that should run on one instance at a time.
type Locker interface {
	TryAcquireLock(ctx context.Context, name, holder string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, name, holder string) error
}

// Store is the full repository contract.
type Store interface {
	Transactor
	MatchStore
	ProfileStore
	BookingStore
	RequestStore
	Locker
}

// ErrTransient marks infrastructure failures (lost connection, timeout) that
// are safe to retry for idempotent operations.
var ErrTransient = errors.New("store: transient failure")
