package elo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculate(t *testing.T) {
	testCases := []struct {
		name           string
		winner         int
		loser          int
		expectedWinner int
		expectedLoser  int
	}{
		{
			name:           "Even ratings",
			winner:         1200,
			loser:          1200,
			expectedWinner: 1216,
			expectedLoser:  1184,
		},
		{
			name:           "Favorite wins",
			winner:         1600,
			loser:          1200,
			expectedWinner: 1603,
			expectedLoser:  1197,
		},
		{
			name:           "Underdog wins",
			winner:         1200,
			loser:          1600,
			expectedWinner: 1229,
			expectedLoser:  1571,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			newWinner, newLoser := Calculate(tc.winner, tc.loser)
			assert.Equal(t, tc.expectedWinner, newWinner)
			assert.Equal(t, tc.expectedLoser, newLoser)
		})
	}
}

func TestCalculateZeroSum(t *testing.T) {
	ratings := [][2]int{{1200, 1200}, {1500, 1100}, {1000, 2000}, {1350, 1349}}

	for _, pair := range ratings {
		newWinner, newLoser := Calculate(pair[0], pair[1])

		// Winner never loses points, loser never gains them
		assert.GreaterOrEqual(t, newWinner, pair[0])
		assert.LessOrEqual(t, newLoser, pair[1])

		// Zero-sum modulo rounding
		delta := (newWinner - pair[0]) + (newLoser - pair[1])
		assert.InDelta(t, 0, delta, 1)
	}
}

func TestExpectedSymmetry(t *testing.T) {
	assert.InDelta(t, 0.5, Expected(1200, 1200), 1e-9)
	assert.InDelta(t, 1.0, Expected(1200, 800)+Expected(800, 1200), 1e-9)

	// 400 points of spread should give roughly 10-to-1 odds
	assert.InDelta(t, 10.0/11.0, Expected(1600, 1200), 1e-9)
}
