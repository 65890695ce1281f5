// Package bracket implements the tournament bracket progression engine:
// single- and double-elimination rounds with byes, check-in windows,
// confirmation-gated result logging, and grand finals construction.
package bracket

import (
	"time"

	"github.com/arenakit/arenabot/internal/player"
)

type Format string

const (
	SingleElimination Format = "single"
	DoubleElimination Format = "double"
)

// Result is one entry of a bracket's accumulated results log. A no-contest
// entry records a match skipped because neither participant checked in.
type Result struct {
	Round     int            `json:"round"`
	Kind      Kind           `json:"kind"`
	P1        player.Player  `json:"p1"`
	P2        player.Player  `json:"p2"`
	Winner    *player.Player `json:"winner,omitempty"`
	Loser     *player.Player `json:"loser,omitempty"`
	NoContest bool           `json:"no_contest,omitempty"`
	At        time.Time      `json:"at"`
}

// Bracket is the root aggregate of one channel's tournament. All fields are
// guarded by the engine's mutex.
type Bracket struct {
	ChannelID string
	Format    Format
	Players   []player.Player
	Started   bool

	Round             int
	Matchups          []*Match
	CurrentMatchIndex int

	LosersRound             int
	LosersMatchups          []*Match
	LosersCurrentMatchIndex int

	WinnersBracketWinner *player.Player
	GrandFinals          *Match
	FinalStage           bool

	Results []Result
}

// HasPlayer reports whether the given id is on the roster.
func (b *Bracket) HasPlayer(playerID string) bool {
	for _, p := range b.Players {
		if p.ID == playerID {
			return true
		}
	}
	return false
}

// removePlayer drops the given id from the roster, reporting whether it was
// present.
func (b *Bracket) removePlayer(playerID string) bool {
	for i, p := range b.Players {
		if p.ID == playerID {
			b.Players = append(b.Players[:i], b.Players[i+1:]...)
			return true
		}
	}
	return false
}

// matchKey resolves the round number that scopes a match's key: winners
// matches use the winners round, losers matches the losers round, and the
// grand final is a singleton per channel.
func (b *Bracket) matchKey(m *Match) string {
	switch m.Kind {
	case KindLosers:
		return m.Key(b.ChannelID, b.LosersRound)
	case KindGrandFinals:
		return m.Key(b.ChannelID, 0)
	default:
		return m.Key(b.ChannelID, b.Round)
	}
}

func firstUnresolved(matchups []*Match) *Match {
	for _, m := range matchups {
		if m.Open() {
			return m
		}
	}
	return nil
}

func resolvedWinners(matchups []*Match) []player.Player {
	var winners []player.Player
	for _, m := range matchups {
		if m.Winner != nil {
			winners = append(winners, *m.Winner)
		}
	}
	return winners
}

func resolvedLosers(matchups []*Match) []player.Player {
	var losers []player.Player
	for _, m := range matchups {
		if m.Loser != nil && !m.Loser.IsBye() {
			losers = append(losers, *m.Loser)
		}
	}
	return losers
}
