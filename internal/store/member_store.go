package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/arenakit/arenabot/internal/identity"
	"github.com/arenakit/arenabot/internal/player"
)

const (
	getMemberQuery    = "SELECT id, display_name FROM members WHERE id = ?"
	upsertMemberQuery = `
		INSERT INTO members (id, display_name)
		VALUES (:id, :display_name)
		ON CONFLICT (id) DO UPDATE SET display_name = excluded.display_name
	`
	listMembersQuery = "SELECT id, display_name FROM members ORDER BY display_name ASC"
)

type memberRow struct {
	ID          string `db:"id"`
	DisplayName string `db:"display_name"`
}

// MemberStore persists known members and resolves ids to display names.
type MemberStore struct {
	db *sqlx.DB
}

func NewMemberStore(db *sqlx.DB) *MemberStore {
	return &MemberStore{db: db}
}

func (s *MemberStore) Resolve(ctx context.Context, id string) (player.Player, error) {
	var row memberRow
	err := s.db.GetContext(ctx, &row, getMemberQuery, id)
	if errors.Is(err, sql.ErrNoRows) {
		return player.Player{}, identity.ErrUnknownMember
	}
	if err != nil {
		return player.Player{}, fmt.Errorf("select member: %w", err)
	}
	return player.Player{ID: row.ID, Name: row.DisplayName}, nil
}

// Upsert registers a member, refreshing the display name on re-register.
func (s *MemberStore) Upsert(ctx context.Context, p player.Player) error {
	row := memberRow{ID: p.ID, DisplayName: p.Name}
	if _, err := s.db.NamedExecContext(ctx, upsertMemberQuery, row); err != nil {
		return fmt.Errorf("upsert member: %w", err)
	}
	return nil
}

// List returns every known member ordered by display name.
func (s *MemberStore) List(ctx context.Context) ([]player.Player, error) {
	var rows []memberRow
	if err := s.db.SelectContext(ctx, &rows, listMembersQuery); err != nil {
		return nil, fmt.Errorf("select members: %w", err)
	}
	players := make([]player.Player, 0, len(rows))
	for _, row := range rows {
		players = append(players, player.Player{ID: row.ID, Name: row.DisplayName})
	}
	return players, nil
}
