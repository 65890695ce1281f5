package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/arenakit/arenabot/internal/history"
)

const (
	insertGameQuery = `
		INSERT INTO game_results (id, guild_id, channel_id, game, winner_id, winner_name, loser_id, loser_name,
			winner_character, loser_character, stage, winner_score, loser_score, played_at)
		VALUES (:id, :guild_id, :channel_id, :game, :winner_id, :winner_name, :loser_id, :loser_name,
			:winner_character, :loser_character, :stage, :winner_score, :loser_score, :played_at)
	`
	insertSetQuery = `
		INSERT INTO set_results (id, guild_id, channel_id, winner_id, winner_name, loser_id, loser_name,
			winner_score, loser_score, winner_rating, loser_rating, played_at)
		VALUES (:id, :guild_id, :channel_id, :winner_id, :winner_name, :loser_id, :loser_name,
			:winner_score, :loser_score, :winner_rating, :loser_rating, :played_at)
	`
	recentSetsQuery = `
		SELECT id, guild_id, channel_id, winner_id, winner_name, loser_id, loser_name,
			winner_score, loser_score, winner_rating, loser_rating, played_at
		FROM set_results WHERE guild_id = ? ORDER BY played_at DESC LIMIT ?
	`
	recentGamesQuery = `
		SELECT id, guild_id, channel_id, game, winner_id, winner_name, loser_id, loser_name,
			winner_character, loser_character, stage, winner_score, loser_score, played_at
		FROM game_results WHERE guild_id = ? ORDER BY played_at DESC LIMIT ?
	`
)

// GameRecord is a persisted game result row.
type GameRecord struct {
	ID              uuid.UUID `db:"id" json:"id"`
	GuildID         string    `db:"guild_id" json:"guild_id"`
	ChannelID       string    `db:"channel_id" json:"channel_id"`
	Game            int       `db:"game" json:"game"`
	WinnerID        string    `db:"winner_id" json:"winner_id"`
	WinnerName      string    `db:"winner_name" json:"winner_name"`
	LoserID         string    `db:"loser_id" json:"loser_id"`
	LoserName       string    `db:"loser_name" json:"loser_name"`
	WinnerCharacter string    `db:"winner_character" json:"winner_character"`
	LoserCharacter  string    `db:"loser_character" json:"loser_character"`
	Stage           string    `db:"stage" json:"stage"`
	WinnerScore     int       `db:"winner_score" json:"winner_score"`
	LoserScore      int       `db:"loser_score" json:"loser_score"`
	PlayedAt        time.Time `db:"played_at" json:"played_at"`
}

// SetRecord is a persisted set result row.
type SetRecord struct {
	ID           uuid.UUID `db:"id" json:"id"`
	GuildID      string    `db:"guild_id" json:"guild_id"`
	ChannelID    string    `db:"channel_id" json:"channel_id"`
	WinnerID     string    `db:"winner_id" json:"winner_id"`
	WinnerName   string    `db:"winner_name" json:"winner_name"`
	LoserID      string    `db:"loser_id" json:"loser_id"`
	LoserName    string    `db:"loser_name" json:"loser_name"`
	WinnerScore  int       `db:"winner_score" json:"winner_score"`
	LoserScore   int       `db:"loser_score" json:"loser_score"`
	WinnerRating int       `db:"winner_rating" json:"winner_rating"`
	LoserRating  int       `db:"loser_rating" json:"loser_rating"`
	PlayedAt     time.Time `db:"played_at" json:"played_at"`
}

// HistoryStore persists the append-only result log in SQLite.
type HistoryStore struct {
	db *sqlx.DB
}

func NewHistoryStore(db *sqlx.DB) *HistoryStore {
	return &HistoryStore{db: db}
}

func (s *HistoryStore) AppendGame(ctx context.Context, r history.GameResult) error {
	record := GameRecord{
		ID:              uuid.New(),
		GuildID:         r.GuildID,
		ChannelID:       r.ChannelID,
		Game:            r.Game,
		WinnerID:        r.Winner.ID,
		WinnerName:      r.Winner.Name,
		LoserID:         r.Loser.ID,
		LoserName:       r.Loser.Name,
		WinnerCharacter: r.WinnerCharacter,
		LoserCharacter:  r.LoserCharacter,
		Stage:           r.Stage,
		WinnerScore:     r.WinnerScore,
		LoserScore:      r.LoserScore,
		PlayedAt:        r.At,
	}
	if _, err := s.db.NamedExecContext(ctx, insertGameQuery, record); err != nil {
		return fmt.Errorf("insert game result: %w", err)
	}
	return nil
}

func (s *HistoryStore) AppendSet(ctx context.Context, r history.SetResult) error {
	record := SetRecord{
		ID:           uuid.New(),
		GuildID:      r.GuildID,
		ChannelID:    r.ChannelID,
		WinnerID:     r.Winner.ID,
		WinnerName:   r.Winner.Name,
		LoserID:      r.Loser.ID,
		LoserName:    r.Loser.Name,
		WinnerScore:  r.WinnerScore,
		LoserScore:   r.LoserScore,
		WinnerRating: r.WinnerRating,
		LoserRating:  r.LoserRating,
		PlayedAt:     r.At,
	}
	if _, err := s.db.NamedExecContext(ctx, insertSetQuery, record); err != nil {
		return fmt.Errorf("insert set result: %w", err)
	}
	return nil
}

// RecentSets returns the guild's most recent completed sets, newest first.
func (s *HistoryStore) RecentSets(ctx context.Context, guildID string, limit int) ([]SetRecord, error) {
	var records []SetRecord
	if err := s.db.SelectContext(ctx, &records, recentSetsQuery, guildID, limit); err != nil {
		return nil, fmt.Errorf("select set results: %w", err)
	}
	return records, nil
}

// RecentGames returns the guild's most recent games, newest first.
func (s *HistoryStore) RecentGames(ctx context.Context, guildID string, limit int) ([]GameRecord, error) {
	var records []GameRecord
	if err := s.db.SelectContext(ctx, &records, recentGamesQuery, guildID, limit); err != nil {
		return nil, fmt.Errorf("select game results: %w", err)
	}
	return records, nil
}
