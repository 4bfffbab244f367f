package models

import (
	"time"
)

// Profile is the rating-bearing slice of a player profile. The rest of the
// profile (display name, avatar, preferences) is owned elsewhere.
type Profile struct {
	ID                string    `json:"id" bson:"_id"`
	DisplayName       string    `json:"displayName,omitempty" bson:"displayName,omitempty"`
	Rating            int       `json:"rating" bson:"rating"`
	RatingProvisional bool      `json:"ratingProvisional" bson:"ratingProvisional"`
	MatchesPlayed     int       `json:"matchesPlayed" bson:"matchesPlayed"`
	UpdatedAt         time.Time `json:"updatedAt" bson:"updatedAt"`
}

const (
	DefaultRating = 1200

	// Ratings computed from fewer matches than this are flagged provisional
	ProvisionalMatchThreshold = 10
)

// IsProvisional reports whether a player with matchesPlayed results has a provisional rating.
func IsProvisional(matchesPlayed int) bool {
	return matchesPlayed < ProvisionalMatchThreshold
}

const RatingReasonMatchResult = "match_result"

// RatingHistoryEntry is an append-only record of one rating movement.
type RatingHistoryEntry struct {
	ID           string    `json:"id" bson:"_id"`
	PlayerID     string    `json:"playerId" bson:"playerId"`
	MatchID      string    `json:"matchId" bson:"matchId"`
	OpponentID   string    `json:"opponentId,omitempty" bson:"opponentId,omitempty"`
	RatingBefore int       `json:"ratingBefore" bson:"ratingBefore"`
	RatingAfter  int       `json:"ratingAfter" bson:"ratingAfter"`
	Delta        int       `json:"delta" bson:"delta"`
	Reason       string    `json:"reason" bson:"reason"`
	Provisional  bool      `json:"provisional" bson:"provisional"`
	RecordedAt   time.Time `json:"recordedAt" bson:"recordedAt"`
}
