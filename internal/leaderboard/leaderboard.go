// Package leaderboard defines the rating store the ladder reads and
// writes. Entries are keyed by the opaque platform id, not the display
// name, so two members who happen to share a visible name never merge
// ratings.
package leaderboard

import (
	"context"
	"sort"

	"github.com/arenakit/arenabot/internal/elo"
	"github.com/arenakit/arenabot/internal/player"
)

// Entry is one player's rating row.
type Entry struct {
	PlayerID    string `json:"player_id" db:"player_id"`
	DisplayName string `json:"display_name" db:"display_name"`
	Rating      int    `json:"rating" db:"rating"`
}

// Ratings maps player id to rating entry for one guild.
type Ratings map[string]Entry

// Rating returns the player's rating, defaulting to 1200 for a player with
// no prior record.
func (r Ratings) Rating(playerID string) int {
	if e, ok := r[playerID]; ok {
		return e.Rating
	}
	return elo.DefaultRating
}

// Set records a player's rating, carrying the display name along.
func (r Ratings) Set(p player.Player, rating int) {
	r[p.ID] = Entry{PlayerID: p.ID, DisplayName: p.Name, Rating: rating}
}

// Sorted returns the entries ordered by rating, highest first.
func (r Ratings) Sorted() []Entry {
	entries := make([]Entry, 0, len(r))
	for _, e := range r {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Rating != entries[j].Rating {
			return entries[i].Rating > entries[j].Rating
		}
		return entries[i].DisplayName < entries[j].DisplayName
	})
	return entries
}

// Store is the leaderboard collaborator: fetch the whole mapping, mutate,
// save it back.
type Store interface {
	Fetch(ctx context.Context, guildID string) (Ratings, error)
	Save(ctx context.Context, guildID string, ratings Ratings) error
}
