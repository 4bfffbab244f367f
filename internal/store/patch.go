package store

import (
	"time"

	"courtmatch/internal/models"
)

// MatchPatch lists the match fields a transition sets. Nil fields are left untouched.
type MatchPatch struct {
	Status            *models.MatchStatus
	Format            *models.Format
	ScoreDetail       []models.SetScore
	Player1Sets       *int
	Player2Sets       *int
	WinnerID          *string
	ResultSubmittedBy *string
	ResultConfirmedBy *string
	DisputedBy        *string
	DisputeReason     *string
	CancelledBy       *string
	PlayedAt          *time.Time
	CompletedAt       *time.Time
	Player1Rating     *models.RatingChange
	Player2Rating     *models.RatingChange
	UpdatedAt         time.Time
}

// Apply writes the patch onto m.
func (p MatchPatch) Apply(m *models.Match) {
	if p.Status != nil {
		m.Status = *p.Status
	}
	if p.Format != nil {
		m.Format = *p.Format
	}
	if p.ScoreDetail != nil {
		m.ScoreDetail = append([]models.SetScore(nil), p.ScoreDetail...)
	}
	if p.Player1Sets != nil {
		m.Player1Sets = *p.Player1Sets
	}
	if p.Player2Sets != nil {
		m.Player2Sets = *p.Player2Sets
	}
	if p.WinnerID != nil {
		m.WinnerID = *p.WinnerID
	}
	if p.ResultSubmittedBy != nil {
		m.ResultSubmittedBy = *p.ResultSubmittedBy
	}
	if p.ResultConfirmedBy != nil {
		m.ResultConfirmedBy = *p.ResultConfirmedBy
	}
	if p.DisputedBy != nil {
		m.DisputedBy = *p.DisputedBy
	}
	if p.DisputeReason != nil {
		m.DisputeReason = *p.DisputeReason
	}
	if p.CancelledBy != nil {
		m.CancelledBy = *p.CancelledBy
	}
	if p.PlayedAt != nil {
		t := *p.PlayedAt
		m.PlayedAt = &t
	}
	if p.CompletedAt != nil {
		t := *p.CompletedAt
		m.CompletedAt = &t
	}
	if p.Player1Rating != nil {
		rc := *p.Player1Rating
		m.Player1Rating = &rc
	}
	if p.Player2Rating != nil {
		rc := *p.Player2Rating
		m.Player2Rating = &rc
	}
	if !p.UpdatedAt.IsZero() {
		m.UpdatedAt = p.UpdatedAt
	}
}

// ProfilePatch is the rating state written at match finalization.
type ProfilePatch struct {
	Rating            int
	RatingProvisional bool
	MatchesPlayed     int
	UpdatedAt         time.Time
}

func (p ProfilePatch) Apply(pr *models.Profile) {
	pr.Rating = p.Rating
	pr.RatingProvisional = p.RatingProvisional
	pr.MatchesPlayed = p.MatchesPlayed
	pr.UpdatedAt = p.UpdatedAt
}

// RequestPatch carries the fields set alongside a request status change.
type RequestPatch struct {
	MatchID     string
	RespondedAt *time.Time
	UpdatedAt   time.Time
}

func (p RequestPatch) Apply(r *models.MatchRequest) {
	if p.MatchID != "" {
		r.MatchID = p.MatchID
	}
	if p.RespondedAt != nil {
		t := *p.RespondedAt
		r.RespondedAt = &t
	}
	if !p.UpdatedAt.IsZero() {
		r.UpdatedAt = p.UpdatedAt
	}
}
