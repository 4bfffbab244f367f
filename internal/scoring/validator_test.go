package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"courtmatch/internal/models"
)

func sets(pairs ...[2]int) []models.SetScore {
	out := make([]models.SetScore, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, models.SetScore{P1Games: p[0], P2Games: p[1]})
	}
	return out
}

func TestSetWinner(t *testing.T) {
	tests := []struct {
		name  string
		score [2]int
		want  models.Slot
	}{
		{"straight six", [2]int{6, 0}, models.SlotPlayer1},
		{"six four", [2]int{6, 4}, models.SlotPlayer1},
		{"seven five", [2]int{7, 5}, models.SlotPlayer1},
		{"tiebreak", [2]int{7, 6}, models.SlotPlayer1},
		{"tiebreak other side", [2]int{6, 7}, models.SlotPlayer2},
		{"four six", [2]int{4, 6}, models.SlotPlayer2},
		{"six five unfinished", [2]int{6, 5}, models.SlotNone},
		{"three four", [2]int{3, 4}, models.SlotNone},
		{"six six", [2]int{6, 6}, models.SlotNone},
		{"seven seven", [2]int{7, 7}, models.SlotNone},
		{"eight six out of range", [2]int{8, 6}, models.SlotNone},
		{"negative", [2]int{-1, 6}, models.SlotNone},
		{"zero zero", [2]int{0, 0}, models.SlotNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SetWinner(models.SetScore{P1Games: tt.score[0], P2Games: tt.score[1]})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		format models.Format
		sets   []models.SetScore
		want   bool
	}{
		{"best of 3 straight sets", models.FormatBestOf3, sets([2]int{6, 4}, [2]int{6, 3}), true},
		{"best of 3 one set all", models.FormatBestOf3, sets([2]int{6, 4}, [2]int{3, 6}), false},
		{"best of 1 too many sets", models.FormatBestOf1, sets([2]int{6, 4}, [2]int{6, 3}), false},
		{"best of 3 illegal set score", models.FormatBestOf3, sets([2]int{3, 4}, [2]int{6, 3}), false},
		{"best of 3 decider", models.FormatBestOf3, sets([2]int{6, 4}, [2]int{3, 6}, [2]int{7, 6}), true},
		{"best of 3 player two wins", models.FormatBestOf3, sets([2]int{4, 6}, [2]int{6, 7}), true},
		{"best of 3 too short", models.FormatBestOf3, sets([2]int{6, 4}), false},
		{"best of 3 set after decision", models.FormatBestOf3, sets([2]int{6, 4}, [2]int{6, 3}, [2]int{6, 2}), false},
		{"best of 3 too many sets", models.FormatBestOf3, sets([2]int{6, 4}, [2]int{3, 6}, [2]int{6, 3}, [2]int{6, 3}), false},
		{"best of 1 single set", models.FormatBestOf1, sets([2]int{7, 5}), true},
		{"best of 1 unfinished set", models.FormatBestOf1, sets([2]int{5, 3}), false},
		{"best of 5 in four", models.FormatBestOf5, sets([2]int{6, 4}, [2]int{4, 6}, [2]int{6, 3}, [2]int{7, 6}), true},
		{"best of 5 in five", models.FormatBestOf5, sets([2]int{6, 4}, [2]int{4, 6}, [2]int{6, 3}, [2]int{3, 6}, [2]int{2, 6}), true},
		{"best of 5 two all", models.FormatBestOf5, sets([2]int{6, 4}, [2]int{4, 6}, [2]int{6, 3}, [2]int{3, 6}), false},
		{"best of 5 too short", models.FormatBestOf5, sets([2]int{6, 4}, [2]int{6, 4}), false},
		{"empty", models.FormatBestOf3, nil, false},
		{"unknown format", models.Format("best_of_7"), sets([2]int{6, 4}), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Validate(tt.sets, tt.format))
		})
	}
}

func TestValidate_Deterministic(t *testing.T) {
	in := sets([2]int{6, 4}, [2]int{3, 6}, [2]int{7, 6})
	first := Validate(in, models.FormatBestOf3)
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, Validate(in, models.FormatBestOf3))
	}
	assert.Equal(t, sets([2]int{6, 4}, [2]int{3, 6}, [2]int{7, 6}), in, "input must not be modified")
}

func TestWinner(t *testing.T) {
	assert.Equal(t, models.SlotPlayer1, Winner(sets([2]int{6, 4}, [2]int{6, 3}), models.FormatBestOf3))
	assert.Equal(t, models.SlotPlayer2, Winner(sets([2]int{6, 4}, [2]int{3, 6}, [2]int{6, 7}), models.FormatBestOf3))
	assert.Equal(t, models.SlotNone, Winner(sets([2]int{6, 4}, [2]int{3, 6}), models.FormatBestOf3))
}

func TestTally(t *testing.T) {
	p1, p2 := Tally(sets([2]int{6, 4}, [2]int{3, 6}, [2]int{7, 6}))
	assert.Equal(t, 2, p1)
	assert.Equal(t, 1, p2)
}
