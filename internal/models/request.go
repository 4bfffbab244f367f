package models

import "time"

type RequestStatus string

const (
	RequestStatusPending   RequestStatus = "pending"
	RequestStatusAccepted  RequestStatus = "accepted"
	RequestStatusDeclined  RequestStatus = "declined"
	RequestStatusExpired   RequestStatus = "expired"
	RequestStatusWithdrawn RequestStatus = "withdrawn"
)

type MatchRequest struct {
	ID             string        `json:"id" bson:"_id"`
	RequesterID    string        `json:"requesterId" bson:"requesterId"`
	RecipientID    string        `json:"recipientId" bson:"recipientId"`
	Status         RequestStatus `json:"status" bson:"status"`
	ProposedAt     time.Time     `json:"proposedAt" bson:"proposedAt"`
	ProposedFormat Format        `json:"proposedFormat" bson:"proposedFormat"`
	ExpiresAt      time.Time     `json:"expiresAt" bson:"expiresAt"`
	MatchID        string        `json:"matchId,omitempty" bson:"matchId,omitempty"` // set once accepted
	RespondedAt    *time.Time    `json:"respondedAt,omitempty" bson:"respondedAt,omitempty"`
	CreatedAt      time.Time     `json:"createdAt" bson:"createdAt"`
	UpdatedAt      time.Time     `json:"updatedAt" bson:"updatedAt"`
}

// Default values
const (
	DefaultRequestTTL = 48 * time.Hour
)
