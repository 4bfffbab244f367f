package db

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"

	"courtmatch/internal/models"
	"courtmatch/internal/store"
)

func (s *Store) GetMatch(ctx context.Context, id string) (*models.Match, error) {
	return findOne[models.Match](ctx, s.db.Matches(), id)
}

func (s *Store) InsertMatch(ctx context.Context, m *models.Match) error {
	_, err := s.db.Matches().InsertOne(ctx, m)
	return wrapErr("insert match", err)
}

// UpdateMatch applies patch only while the match is still in status expect.
func (s *Store) UpdateMatch(ctx context.Context, id string, expect models.MatchStatus, patch store.MatchPatch) (*models.Match, error) {
	return conditionalUpdate[models.Match](ctx, s.db.Matches(), id, "status", expect, bson.M{"$set": matchPatchSet(patch)})
}

func matchPatchSet(p store.MatchPatch) bson.M {
	set := bson.M{}
	if p.Status != nil {
		set["status"] = *p.Status
	}
	if p.Format != nil {
		set["format"] = *p.Format
	}
	if p.ScoreDetail != nil {
		set["scoreDetail"] = p.ScoreDetail
	}
	if p.Player1Sets != nil {
		set["player1Sets"] = *p.Player1Sets
	}
	if p.Player2Sets != nil {
		set["player2Sets"] = *p.Player2Sets
	}
	if p.WinnerID != nil {
		set["winnerId"] = *p.WinnerID
	}
	if p.ResultSubmittedBy != nil {
		set["resultSubmittedBy"] = *p.ResultSubmittedBy
	}
	if p.ResultConfirmedBy != nil {
		set["resultConfirmedBy"] = *p.ResultConfirmedBy
	}
	if p.DisputedBy != nil {
		set["disputedBy"] = *p.DisputedBy
	}
	if p.DisputeReason != nil {
		set["disputeReason"] = *p.DisputeReason
	}
	if p.CancelledBy != nil {
		set["cancelledBy"] = *p.CancelledBy
	}
	if p.PlayedAt != nil {
		set["playedAt"] = *p.PlayedAt
	}
	if p.CompletedAt != nil {
		set["completedAt"] = *p.CompletedAt
	}
	if p.Player1Rating != nil {
		set["player1Rating"] = *p.Player1Rating
	}
	if p.Player2Rating != nil {
		set["player2Rating"] = *p.Player2Rating
	}
	if !p.UpdatedAt.IsZero() {
		set["updatedAt"] = p.UpdatedAt
	}
	return set
}
