package models

import (
	"time"
)

type MatchStatus string

const (
	MatchStatusAccepted            MatchStatus = "accepted"             // Created from an accepted request
	MatchStatusPendingConfirmation MatchStatus = "pending_confirmation" // Result submitted, awaiting opponent
	MatchStatusCompleted           MatchStatus = "completed"            // Result confirmed, ratings applied
	MatchStatusCancelled           MatchStatus = "cancelled"
	MatchStatusDisputed            MatchStatus = "disputed" // Awaiting external review
)

// IsTerminal reports whether no further lifecycle transition is possible.
func (s MatchStatus) IsTerminal() bool {
	switch s {
	case MatchStatusCompleted, MatchStatusCancelled, MatchStatusDisputed:
		return true
	}
	return false
}

type Format string

const (
	FormatBestOf1 Format = "best_of_1"
	FormatBestOf3 Format = "best_of_3"
	FormatBestOf5 Format = "best_of_5"
)

// Rules returns how many sets are needed to win and the most sets that can be played.
func (f Format) Rules() (setsToWin, maxSets int, ok bool) {
	switch f {
	case FormatBestOf1:
		return 1, 1, true
	case FormatBestOf3:
		return 2, 3, true
	case FormatBestOf5:
		return 3, 5, true
	}
	return 0, 0, false
}

func (f Format) IsValid() bool {
	_, _, ok := f.Rules()
	return ok
}

// SetScore holds games won by each side in one set, positional to the match's player slots.
type SetScore struct {
	P1Games int `json:"p1Games" bson:"p1Games"`
	P2Games int `json:"p2Games" bson:"p2Games"`
}

// RatingChange stores one player's rating movement for a finalized match
type RatingChange struct {
	Before int `json:"before" bson:"before"`
	After  int `json:"after" bson:"after"`
	Delta  int `json:"delta" bson:"delta"`
}

type Match struct {
	ID        string      `json:"id" bson:"_id"`
	RequestID string      `json:"requestId,omitempty" bson:"requestId,omitempty"`
	Player1ID string      `json:"player1Id" bson:"player1Id"`
	Player2ID string      `json:"player2Id" bson:"player2Id"`
	Status    MatchStatus `json:"status" bson:"status"`
	Format    Format      `json:"format" bson:"format"`

	// Result fields, empty until a participant submits a score
	ScoreDetail       []SetScore `json:"scoreDetail,omitempty" bson:"scoreDetail,omitempty"`
	Player1Sets       int        `json:"player1Sets" bson:"player1Sets"`
	Player2Sets       int        `json:"player2Sets" bson:"player2Sets"`
	WinnerID          string     `json:"winnerId,omitempty" bson:"winnerId,omitempty"`
	ResultSubmittedBy string     `json:"resultSubmittedBy,omitempty" bson:"resultSubmittedBy,omitempty"`
	ResultConfirmedBy string     `json:"resultConfirmedBy,omitempty" bson:"resultConfirmedBy,omitempty"`
	DisputedBy        string     `json:"disputedBy,omitempty" bson:"disputedBy,omitempty"`
	DisputeReason     string     `json:"disputeReason,omitempty" bson:"disputeReason,omitempty"`
	CancelledBy       string     `json:"cancelledBy,omitempty" bson:"cancelledBy,omitempty"`
	PlayedAt          *time.Time `json:"playedAt,omitempty" bson:"playedAt,omitempty"`
	CompletedAt       *time.Time `json:"completedAt,omitempty" bson:"completedAt,omitempty"`

	// Set together at finalization, never before
	Player1Rating *RatingChange `json:"player1Rating,omitempty" bson:"player1Rating,omitempty"`
	Player2Rating *RatingChange `json:"player2Rating,omitempty" bson:"player2Rating,omitempty"`

	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// Slot identifies which positional player field a participant occupies.
type Slot int

const (
	SlotNone Slot = iota
	SlotPlayer1
	SlotPlayer2
)

// Role resolves a participant against a match: which slot they hold and who they face.
type Role struct {
	Slot       Slot
	SelfID     string
	OpponentID string
}

// RoleOf resolves playerID to its role in the match. ok is false for non-participants.
func (m *Match) RoleOf(playerID string) (Role, bool) {
	if playerID == "" {
		return Role{}, false
	}
	switch playerID {
	case m.Player1ID:
		return Role{Slot: SlotPlayer1, SelfID: m.Player1ID, OpponentID: m.Player2ID}, true
	case m.Player2ID:
		return Role{Slot: SlotPlayer2, SelfID: m.Player2ID, OpponentID: m.Player1ID}, true
	}
	return Role{}, false
}

// PlayerIn returns the id of the player holding slot.
func (m *Match) PlayerIn(slot Slot) string {
	switch slot {
	case SlotPlayer1:
		return m.Player1ID
	case SlotPlayer2:
		return m.Player2ID
	}
	return ""
}

// RatingFor returns the rating change recorded for slot, nil before finalization.
func (m *Match) RatingFor(slot Slot) *RatingChange {
	switch slot {
	case SlotPlayer1:
		return m.Player1Rating
	case SlotPlayer2:
		return m.Player2Rating
	}
	return nil
}
