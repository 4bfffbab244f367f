package scoring

import "courtmatch/internal/models"

const (
	// Games bounds for a single set
	MinGames = 0
	MaxGames = 7
)

// SetWinner returns which slot won a completed set. A side wins with six or more
// games and a two-game margin, or 7-6 after a tiebreak. Anything else is not a
// completed set and yields SlotNone.
func SetWinner(s models.SetScore) models.Slot {
	if s.P1Games < MinGames || s.P1Games > MaxGames || s.P2Games < MinGames || s.P2Games > MaxGames {
		return models.SlotNone
	}
	switch {
	case wonSet(s.P1Games, s.P2Games):
		return models.SlotPlayer1
	case wonSet(s.P2Games, s.P1Games):
		return models.SlotPlayer2
	}
	return models.SlotNone
}

func wonSet(games, opponent int) bool {
	if games >= 6 && games-opponent >= 2 {
		return true
	}
	return games == 7 && opponent == 6
}

// Tally counts sets won per slot. Sets without a winner are not counted.
func Tally(sets []models.SetScore) (p1, p2 int) {
	for _, s := range sets {
		switch SetWinner(s) {
		case models.SlotPlayer1:
			p1++
		case models.SlotPlayer2:
			p2++
		}
	}
	return p1, p2
}

// Validate reports whether sets is a legal, decisive result for format: every
// set is a completed set, exactly one side reaches the sets needed to win, and
// the match stops the moment it is decided.
func Validate(sets []models.SetScore, format models.Format) bool {
	setsToWin, maxSets, ok := format.Rules()
	if !ok {
		return false
	}
	if len(sets) < setsToWin || len(sets) > maxSets {
		return false
	}

	var p1, p2 int
	for i, s := range sets {
		switch SetWinner(s) {
		case models.SlotPlayer1:
			p1++
		case models.SlotPlayer2:
			p2++
		default:
			return false
		}
		// No sets may be played after one side has won
		if (p1 == setsToWin || p2 == setsToWin) && i != len(sets)-1 {
			return false
		}
	}
	return (p1 == setsToWin) != (p2 == setsToWin)
}

// Winner returns the slot that won a validated result, SlotNone if undecided.
func Winner(sets []models.SetScore, format models.Format) models.Slot {
	if !Validate(sets, format) {
		return models.SlotNone
	}
	p1, p2 := Tally(sets)
	if p1 > p2 {
		return models.SlotPlayer1
	}
	return models.SlotPlayer2
}
