// Package elo implements the rating math shared by the ladder and the
// bracket bot: a standard logistic expected-score model with a fixed
// K-factor of 32 and a 400-point spread.
package elo

import "math"

const (
	// K is the fixed sensitivity constant applied to every update.
	K = 32

	// Spread is the rating difference at which the stronger player is
	// expected to win ten times as often.
	Spread = 400

	// DefaultRating is assigned to any player with no prior record.
	DefaultRating = 1200
)

// Expected returns the expected score of a player rated a against a player
// rated b, normalized to [0, 1].
func Expected(a, b int) float64 {
	return 1 / (1 + math.Pow(10, float64(b-a)/Spread))
}

// Calculate returns the new ratings for the winner and loser of a match.
// Ratings are rounded to the nearest integer, so the update is zero-sum
// modulo rounding.
func Calculate(winnerRating, loserRating int) (newWinner, newLoser int) {
	expectedWin := Expected(winnerRating, loserRating)
	expectedLose := Expected(loserRating, winnerRating)

	newWinner = int(math.Round(float64(winnerRating) + K*(1-expectedWin)))
	newLoser = int(math.Round(float64(loserRating) + K*(0-expectedLose)))
	return newWinner, newLoser
}
