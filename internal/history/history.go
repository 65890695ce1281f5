// Package history defines the append-only result log the ladder writes
// per game and per completed set. Appends are fire-and-forget: the state
// machine never blocks or fails on them.
package history

import (
	"context"
	"time"

	"github.com/arenakit/arenabot/internal/player"
)

// GameResult records one game of a ranked set.
type GameResult struct {
	GuildID         string
	ChannelID       string
	Game            int
	Winner          player.Player
	Loser           player.Player
	WinnerCharacter string
	LoserCharacter  string
	Stage           string
	WinnerScore     int
	LoserScore      int
	At              time.Time
}

// SetResult records the outcome of a completed set, including the ratings
// after the update.
type SetResult struct {
	GuildID      string
	ChannelID    string
	Winner       player.Player
	Loser        player.Player
	WinnerScore  int
	LoserScore   int
	WinnerRating int
	LoserRating  int
	At           time.Time
}

// Sink is the history log collaborator.
type Sink interface {
	AppendGame(ctx context.Context, r GameResult) error
	AppendSet(ctx context.Context, r SetResult) error
}
