package models

import "time"

type EventType string

const (
	EventMatchCreated     EventType = "match.created"
	EventResultSubmitted  EventType = "match.result_submitted"
	EventResultConfirmed  EventType = "match.result_confirmed"
	EventResultDisputed   EventType = "match.result_disputed"
	EventMatchCancelled   EventType = "match.cancelled"
	EventRequestCreated   EventType = "request.created"
	EventRequestAccepted  EventType = "request.accepted"
	EventRequestDeclined  EventType = "request.declined"
	EventRequestWithdrawn EventType = "request.withdrawn"
	EventRequestExpired   EventType = "request.expired"
	EventBookingConfirmed EventType = "booking.confirmed"
	EventBookingCancelled EventType = "booking.cancelled"
)

// LifecycleEvent describes one successful state transition.
type LifecycleEvent struct {
	Type       EventType `json:"type" bson:"type"`
	EntityID   string    `json:"entityId" bson:"entityId"`
	MatchID    string    `json:"matchId,omitempty" bson:"matchId,omitempty"`
	ActorID    string    `json:"actorId,omitempty" bson:"actorId,omitempty"`
	From       string    `json:"from,omitempty" bson:"from,omitempty"`
	To         string    `json:"to" bson:"to"`
	Detail     string    `json:"detail,omitempty" bson:"detail,omitempty"`
	OccurredAt time.Time `json:"occurredAt" bson:"occurredAt"`
}
