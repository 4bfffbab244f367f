package models

import "time"

type BookingStatus string

const (
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// Booking reserves a court for the half-open interval [StartsAt, EndsAt).
type Booking struct {
	ID          string        `json:"id" bson:"_id"`
	ResourceID  string        `json:"resourceId" bson:"resourceId"`
	BookedBy    string        `json:"bookedBy" bson:"bookedBy"`
	StartsAt    time.Time     `json:"startsAt" bson:"startsAt"`
	EndsAt      time.Time     `json:"endsAt" bson:"endsAt"`
	Status      BookingStatus `json:"status" bson:"status"`
	MatchID     string        `json:"matchId,omitempty" bson:"matchId,omitempty"`
	CreatedAt   time.Time     `json:"createdAt" bson:"createdAt"`
	CancelledAt *time.Time    `json:"cancelledAt,omitempty" bson:"cancelledAt,omitempty"`
}

// Overlaps reports whether [s1,e1) and [s2,e2) intersect. Touching ends do not overlap.
func Overlaps(s1, e1, s2, e2 time.Time) bool {
	return s1.Before(e2) && s2.Before(e1)
}

// Overlaps reports whether the booking's interval intersects [start, end).
func (b *Booking) Overlaps(start, end time.Time) bool {
	return Overlaps(b.StartsAt, b.EndsAt, start, end)
}
