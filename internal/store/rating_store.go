package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/arenakit/arenabot/internal/leaderboard"
)

const (
	getRatingsQuery    = "SELECT player_id, display_name, rating FROM ratings WHERE guild_id = ?"
	deleteRatingsQuery = "DELETE FROM ratings WHERE guild_id = ?"
	insertRatingQuery  = `
		INSERT INTO ratings (guild_id, player_id, display_name, rating)
		VALUES (:guild_id, :player_id, :display_name, :rating)
	`
)

type ratingRow struct {
	GuildID     string `db:"guild_id"`
	PlayerID    string `db:"player_id"`
	DisplayName string `db:"display_name"`
	Rating      int    `db:"rating"`
}

// RatingStore persists per-guild leaderboards in SQLite.
type RatingStore struct {
	db *sqlx.DB
}

func NewRatingStore(db *sqlx.DB) *RatingStore {
	return &RatingStore{db: db}
}

func (s *RatingStore) Fetch(ctx context.Context, guildID string) (leaderboard.Ratings, error) {
	var rows []ratingRow
	if err := s.db.SelectContext(ctx, &rows, getRatingsQuery, guildID); err != nil {
		return nil, fmt.Errorf("select ratings: %w", err)
	}
	ratings := make(leaderboard.Ratings, len(rows))
	for _, row := range rows {
		ratings[row.PlayerID] = leaderboard.Entry{
			PlayerID:    row.PlayerID,
			DisplayName: row.DisplayName,
			Rating:      row.Rating,
		}
	}
	return ratings, nil
}

// Save replaces the guild's whole leaderboard in one transaction, so a
// season reset is just saving an empty mapping.
func (s *RatingStore) Save(ctx context.Context, guildID string, ratings leaderboard.Ratings) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, deleteRatingsQuery, guildID); err != nil {
		return fmt.Errorf("clear ratings: %w", err)
	}
	if len(ratings) > 0 {
		rows := make([]ratingRow, 0, len(ratings))
		for _, e := range ratings {
			rows = append(rows, ratingRow{
				GuildID:     guildID,
				PlayerID:    e.PlayerID,
				DisplayName: e.DisplayName,
				Rating:      e.Rating,
			})
		}
		if _, err := tx.NamedExecContext(ctx, insertRatingQuery, rows); err != nil {
			return fmt.Errorf("insert ratings: %w", err)
		}
	}
	return tx.Commit()
}
