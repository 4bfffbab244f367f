// Package memstore is an in-process implementation of the store contract.
// A single mutex serializes all access; RunInTx holds it for the whole
// transaction and restores a snapshot when the transaction fails.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"courtmatch/internal/models"
	"courtmatch/internal/store"
)

type lockEntry struct {
	holder      string
	lockedUntil time.Time
}

type state struct {
	matches  map[string]models.Match
	profiles map[string]models.Profile
	history  []models.RatingHistoryEntry
	bookings map[string]models.Booking
	requests map[string]models.MatchRequest
	locks    map[string]lockEntry
}

func newState() state {
	return state{
		matches:  make(map[string]models.Match),
		profiles: make(map[string]models.Profile),
		bookings: make(map[string]models.Booking),
		requests: make(map[string]models.MatchRequest),
		locks:    make(map[string]lockEntry),
	}
}

func (s state) clone() state {
	c := state{
		matches:  make(map[string]models.Match, len(s.matches)),
		profiles: make(map[string]models.Profile, len(s.profiles)),
		history:  append([]models.RatingHistoryEntry(nil), s.history...),
		bookings: make(map[string]models.Booking, len(s.bookings)),
		requests: make(map[string]models.MatchRequest, len(s.requests)),
		locks:    make(map[string]lockEntry, len(s.locks)),
	}
	for k, v := range s.matches {
		c.matches[k] = v
	}
	for k, v := range s.profiles {
		c.profiles[k] = v
	}
	for k, v := range s.bookings {
		c.bookings[k] = v
	}
	for k, v := range s.requests {
		c.requests[k] = v
	}
	for k, v := range s.locks {
		c.locks[k] = v
	}
	return c
}

type txKey struct{}

type Store struct {
	mu  sync.Mutex
	st  state
	now func() time.Time
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{st: newState(), now: time.Now}
}

// SetClock overrides the clock used for lock expiry.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// acquire locks the store unless ctx already belongs to a transaction on it.
func (s *Store) acquire(ctx context.Context) func() {
	if ctx.Value(txKey{}) == s {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) == s {
		return fn(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

// Matches

func cloneMatch(m models.Match) *models.Match {
	m.ScoreDetail = append([]models.SetScore(nil), m.ScoreDetail...)
	if len(m.ScoreDetail) == 0 {
		m.ScoreDetail = nil
	}
	return &m
}

func (s *Store) GetMatch(ctx context.Context, id string) (*models.Match, error) {
	defer s.acquire(ctx)()
	m, ok := s.st.matches[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneMatch(m), nil
}

func (s *Store) InsertMatch(ctx context.Context, m *models.Match) error {
	defer s.acquire(ctx)()
	if _, ok := s.st.matches[m.ID]; ok {
		return store.ErrDuplicate
	}
	s.st.matches[m.ID] = *cloneMatch(*m)
	return nil
}

func (s *Store) UpdateMatch(ctx context.Context, id string, expect models.MatchStatus, patch store.MatchPatch) (*models.Match, error) {
	defer s.acquire(ctx)()
	m, ok := s.st.matches[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if m.Status != expect {
		return nil, store.ErrPreconditionFailed
	}
	updated := cloneMatch(m)
	patch.Apply(updated)
	s.st.matches[id] = *updated
	return cloneMatch(*updated), nil
}

// Profiles and rating history

func (s *Store) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	defer s.acquire(ctx)()
	p, ok := s.st.profiles[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (s *Store) CreateProfile(ctx context.Context, p *models.Profile) error {
	defer s.acquire(ctx)()
	if _, ok := s.st.profiles[p.ID]; ok {
		return store.ErrDuplicate
	}
	s.st.profiles[p.ID] = *p
	return nil
}

func (s *Store) UpdateProfile(ctx context.Context, id string, expectMatchesPlayed int, patch store.ProfilePatch) error {
	defer s.acquire(ctx)()
	p, ok := s.st.profiles[id]
	if !ok {
		return store.ErrNotFound
	}
	if p.MatchesPlayed != expectMatchesPlayed {
		return store.ErrPreconditionFailed
	}
	patch.Apply(&p)
	s.st.profiles[id] = p
	return nil
}

func (s *Store) AppendRatingHistory(ctx context.Context, entry *models.RatingHistoryEntry) error {
	defer s.acquire(ctx)()
	for _, e := range s.st.history {
		if e.ID == entry.ID || (e.PlayerID == entry.PlayerID && e.MatchID == entry.MatchID) {
			return store.ErrDuplicate
		}
	}
	s.st.history = append(s.st.history, *entry)
	return nil
}

func (s *Store) ListRatingHistory(ctx context.Context, playerID string, limit int) ([]models.RatingHistoryEntry, error) {
	defer s.acquire(ctx)()
	var out []models.RatingHistoryEntry
	for i := len(s.st.history) - 1; i >= 0; i-- {
		if s.st.history[i].PlayerID == playerID {
			out = append(out, s.st.history[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RecordedAt.After(out[j].RecordedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Bookings

func (s *Store) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	defer s.acquire(ctx)()
	b, ok := s.st.bookings[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &b, nil
}

func (s *Store) overlapping(resourceID string, from, to time.Time) []models.Booking {
	var out []models.Booking
	for _, b := range s.st.bookings {
		if b.ResourceID != resourceID || b.Status != models.BookingStatusConfirmed {
			continue
		}
		if b.Overlaps(from, to) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartsAt.Before(out[j].StartsAt)
	})
	return out
}

func (s *Store) GetBookingsForResource(ctx context.Context, resourceID string, from, to time.Time) ([]models.Booking, error) {
	defer s.acquire(ctx)()
	return s.overlapping(resourceID, from, to), nil
}

func (s *Store) InsertBooking(ctx context.Context, b *models.Booking) error {
	defer s.acquire(ctx)()
	if _, ok := s.st.bookings[b.ID]; ok {
		return store.ErrDuplicate
	}
	if b.Status == models.BookingStatusConfirmed && len(s.overlapping(b.ResourceID, b.StartsAt, b.EndsAt)) > 0 {
		return store.ErrOverlap
	}
	s.st.bookings[b.ID] = *b
	return nil
}

func (s *Store) UpdateBookingStatus(ctx context.Context, id string, from, to models.BookingStatus, at time.Time) (*models.Booking, error) {
	defer s.acquire(ctx)()
	b, ok := s.st.bookings[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if b.Status != from {
		return nil, store.ErrPreconditionFailed
	}
	b.Status = to
	if to == models.BookingStatusCancelled {
		t := at
		b.CancelledAt = &t
	}
	s.st.bookings[id] = b
	return &b, nil
}

// Match requests

func (s *Store) GetRequest(ctx context.Context, id string) (*models.MatchRequest, error) {
	defer s.acquire(ctx)()
	r, ok := s.st.requests[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &r, nil
}

func (s *Store) InsertRequest(ctx context.Context, r *models.MatchRequest) error {
	defer s.acquire(ctx)()
	if _, ok := s.st.requests[r.ID]; ok {
		return store.ErrDuplicate
	}
	if r.Status == models.RequestStatusPending {
		for _, existing := range s.st.requests {
			if existing.Status == models.RequestStatusPending &&
				existing.RequesterID == r.RequesterID &&
				existing.RecipientID == r.RecipientID {
				return store.ErrDuplicate
			}
		}
	}
	s.st.requests[r.ID] = *r
	return nil
}

func (s *Store) GetPendingExpiredRequests(ctx context.Context, now time.Time, limit int) ([]models.MatchRequest, error) {
	defer s.acquire(ctx)()
	var out []models.MatchRequest
	for _, r := range s.st.requests {
		if r.Status == models.RequestStatusPending && r.ExpiresAt.Before(now) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ExpiresAt.Before(out[j].ExpiresAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) UpdateRequestStatus(ctx context.Context, id string, from, to models.RequestStatus, patch store.RequestPatch) (*models.MatchRequest, error) {
	defer s.acquire(ctx)()
	r, ok := s.st.requests[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if r.Status != from {
		return nil, store.ErrPreconditionFailed
	}
	r.Status = to
	patch.Apply(&r)
	s.st.requests[id] = r
	return &r, nil
}

// Locks

func (s *Store) TryAcquireLock(ctx context.Context, name, holder string, ttl time.Duration) (bool, error) {
	defer s.acquire(ctx)()
	now := s.now()
	if l, ok := s.st.locks[name]; ok && l.lockedUntil.After(now) && l.holder != holder {
		return false, nil
	}
	s.st.locks[name] = lockEntry{holder: holder, lockedUntil: now.Add(ttl)}
	return true, nil
}

func (s *Store) ReleaseLock(ctx context.Context, name, holder string) error {
	defer s.acquire(ctx)()
	if l, ok := s.st.locks[name]; ok && l.holder == holder {
		delete(s.st.locks, name)
	}
	return nil
}
