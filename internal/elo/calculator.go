package elo

import (
	"math"

	"courtmatch/internal/models"
)

type GameResult int

const (
	Loss GameResult = 0
	Win  GameResult = 1
)

const (
	// K-factors based on matches played before the match being rated
	KFactorProvisional = 40 // < 10 matches
	KFactorDeveloping  = 32 // < 20 matches
	KFactorEstablished = 24 // everyone else
	KFactorElite       = 16 // >= 30 matches and rating >= 2000

	EliteMatchThreshold  = 30
	EliteRatingThreshold = 2000

	// Rating bounds
	MinRating = 800
	MaxRating = 3000
)

// Player is the rating input for one side of a match.
type Player struct {
	Rating        int
	MatchesPlayed int
}

// Outcome is the result of rating one finalized match.
type Outcome struct {
	Rating1After int
	Rating2After int
	Delta1       int
	Delta2       int
}

type Calculator struct{}

func NewCalculator() *Calculator {
	return &Calculator{}
}

// ApplyResult rates a decided match between player1 and player2. Each player
// moves by their own K-factor, so the deltas are not mirror images.
func (c *Calculator) ApplyResult(player1, player2 Player, winner models.Slot) Outcome {
	result1, result2 := GetGameResultFromWinner(winner)

	after1 := c.CalculateNewRating(player1.Rating, player2.Rating, result1, player1.MatchesPlayed)
	after2 := c.CalculateNewRating(player2.Rating, player1.Rating, result2, player2.MatchesPlayed)

	return Outcome{
		Rating1After: after1,
		Rating2After: after2,
		Delta1:       after1 - player1.Rating,
		Delta2:       after2 - player2.Rating,
	}
}

// CalculateNewRating calculates the new Elo rating for a player
// playerRating: current rating of the player
// opponentRating: current rating of the opponent
// result: GameResult (Win=1, Loss=0)
// matchesPlayed: matches the player had completed before this one (used for K-factor)
func (c *Calculator) CalculateNewRating(playerRating, opponentRating int, result GameResult, matchesPlayed int) int {
	kFactor := c.KFactor(matchesPlayed, playerRating)

	expectedScore := c.ExpectedScore(playerRating, opponentRating)

	var actualScore float64
	if result == Win {
		actualScore = 1.0
	}

	// ΔR = K × (S - E)
	ratingChange := float64(kFactor) * (actualScore - expectedScore)

	newRating := playerRating + int(math.Round(ratingChange))

	if newRating < MinRating {
		newRating = MinRating
	}
	if newRating > MaxRating {
		newRating = MaxRating
	}

	return newRating
}

// CalculateRatingChange returns just the change in rating (positive or negative)
func (c *Calculator) CalculateRatingChange(playerRating, opponentRating int, result GameResult, matchesPlayed int) int {
	newRating := c.CalculateNewRating(playerRating, opponentRating, result, matchesPlayed)
	return newRating - playerRating
}

// ExpectedScore calculates the expected score using the Elo formula
// E = 1 / (1 + 10^((OpponentRating - PlayerRating) / 400))
func (c *Calculator) ExpectedScore(playerRating, opponentRating int) float64 {
	exponent := float64(opponentRating-playerRating) / 400.0
	return 1.0 / (1.0 + math.Pow(10, exponent))
}

// KFactor returns the K-factor for a player from their experience and current rating
func (c *Calculator) KFactor(matchesPlayed, rating int) int {
	switch {
	case matchesPlayed < 10:
		return KFactorProvisional
	case matchesPlayed < 20:
		return KFactorDeveloping
	case matchesPlayed >= EliteMatchThreshold && rating >= EliteRatingThreshold:
		return KFactorElite
	default:
		return KFactorEstablished
	}
}

// GetGameResultFromWinner converts the winning slot to results for both players
// Returns (player1Result, player2Result)
func GetGameResultFromWinner(winner models.Slot) (GameResult, GameResult) {
	if winner == models.SlotPlayer1 {
		return Win, Loss
	}
	return Loss, Win
}
