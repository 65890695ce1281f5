package store

import (
	"context"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arenakit/arenabot/internal/bracket"
	"github.com/arenakit/arenabot/internal/history"
	"github.com/arenakit/arenabot/internal/identity"
	"github.com/arenakit/arenabot/internal/leaderboard"
	"github.com/arenakit/arenabot/internal/player"
)

// setupTestDB creates an in-memory SQLite database and applies migrations
func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	database, err := sqlx.Connect("sqlite3", "file::memory:")
	require.NoError(t, err, "Failed to connect to in-memory DB")

	_, err = database.Exec("PRAGMA foreign_keys = ON;")
	require.NoError(t, err)

	driver, err := sqlite3.WithInstance(database.DB, &sqlite3.Config{})
	require.NoError(t, err, "Failed to create migrate driver instance")

	m, err := migrate.NewWithDatabaseInstance(
		"file://../../migrations",
		"sqlite3",
		driver,
	)
	require.NoError(t, err, "Failed to create migrate instance")

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		require.NoError(t, err, "Failed to apply migrations")
	}

	return database
}

func TestRatingStoreRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	store := NewRatingStore(db)
	ctx := context.Background()

	ratings, err := store.Fetch(ctx, "guild")
	require.NoError(t, err)
	assert.Empty(t, ratings)

	ratings.Set(player.Player{ID: "1", Name: "Aria"}, 1216)
	ratings.Set(player.Player{ID: "2", Name: "Bo"}, 1184)
	require.NoError(t, store.Save(ctx, "guild", ratings))

	fetched, err := store.Fetch(ctx, "guild")
	require.NoError(t, err)
	require.Len(t, fetched, 2)
	assert.Equal(t, 1216, fetched.Rating("1"))
	assert.Equal(t, "Aria", fetched["1"].DisplayName)
	assert.Equal(t, 1184, fetched.Rating("2"))
}

func TestRatingStoreSaveReplaces(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	store := NewRatingStore(db)
	ctx := context.Background()

	first := leaderboard.Ratings{}
	first.Set(player.Player{ID: "1", Name: "Aria"}, 1300)
	first.Set(player.Player{ID: "2", Name: "Bo"}, 1100)
	require.NoError(t, store.Save(ctx, "guild", first))

	second := leaderboard.Ratings{}
	second.Set(player.Player{ID: "1", Name: "Aria"}, 1316)
	require.NoError(t, store.Save(ctx, "guild", second))

	fetched, err := store.Fetch(ctx, "guild")
	require.NoError(t, err)
	require.Len(t, fetched, 1)
	assert.Equal(t, 1316, fetched.Rating("1"))

	// Saving an empty mapping is a season reset.
	require.NoError(t, store.Save(ctx, "guild", leaderboard.Ratings{}))
	fetched, err = store.Fetch(ctx, "guild")
	require.NoError(t, err)
	assert.Empty(t, fetched)
}

func TestRatingStoreGuildIsolation(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	store := NewRatingStore(db)
	ctx := context.Background()

	a := leaderboard.Ratings{}
	a.Set(player.Player{ID: "1", Name: "Aria"}, 1400)
	require.NoError(t, store.Save(ctx, "guild-a", a))

	b := leaderboard.Ratings{}
	b.Set(player.Player{ID: "1", Name: "Aria"}, 1500)
	require.NoError(t, store.Save(ctx, "guild-b", b))

	fetched, err := store.Fetch(ctx, "guild-a")
	require.NoError(t, err)
	assert.Equal(t, 1400, fetched.Rating("1"))
}

func TestHistoryStore(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	store := NewHistoryStore(db)
	ctx := context.Background()
	aria := player.Player{ID: "1", Name: "Aria"}
	bo := player.Player{ID: "2", Name: "Bo"}
	base := time.Now().UTC().Truncate(time.Second)

	for game := 1; game <= 2; game++ {
		err := store.AppendGame(ctx, history.GameResult{
			GuildID:         "guild",
			ChannelID:       "chan",
			Game:            game,
			Winner:          aria,
			Loser:           bo,
			WinnerCharacter: "Fox",
			LoserCharacter:  "Falco",
			Stage:           "Battlefield",
			WinnerScore:     game,
			LoserScore:      0,
			At:              base.Add(time.Duration(game) * time.Minute),
		})
		require.NoError(t, err)
	}
	err := store.AppendSet(ctx, history.SetResult{
		GuildID:      "guild",
		ChannelID:    "chan",
		Winner:       aria,
		Loser:        bo,
		WinnerScore:  2,
		LoserScore:   0,
		WinnerRating: 1216,
		LoserRating:  1184,
		At:           base.Add(3 * time.Minute),
	})
	require.NoError(t, err)

	games, err := store.RecentGames(ctx, "guild", 10)
	require.NoError(t, err)
	require.Len(t, games, 2)
	// Newest first.
	assert.Equal(t, 2, games[0].Game)
	assert.Equal(t, "Aria", games[0].WinnerName)
	assert.Equal(t, "Fox", games[0].WinnerCharacter)
	assert.Equal(t, "Battlefield", games[0].Stage)

	sets, err := store.RecentSets(ctx, "guild", 10)
	require.NoError(t, err)
	require.Len(t, sets, 1)
	assert.Equal(t, "1", sets[0].WinnerID)
	assert.Equal(t, 1216, sets[0].WinnerRating)
	assert.Equal(t, 2, sets[0].WinnerScore)

	sets, err = store.RecentSets(ctx, "other", 10)
	require.NoError(t, err)
	assert.Empty(t, sets)
}

func TestMemberStore(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	store := NewMemberStore(db)
	ctx := context.Background()

	_, err := store.Resolve(ctx, "1")
	assert.ErrorIs(t, err, identity.ErrUnknownMember)

	require.NoError(t, store.Upsert(ctx, player.Player{ID: "1", Name: "Aria"}))
	p, err := store.Resolve(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "Aria", p.Name)

	// Re-registering refreshes the display name.
	require.NoError(t, store.Upsert(ctx, player.Player{ID: "1", Name: "Aria2"}))
	p, err = store.Resolve(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "Aria2", p.Name)

	require.NoError(t, store.Upsert(ctx, player.Player{ID: "2", Name: "Bo"}))
	members, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "Aria2", members[0].Name)
}

func TestBracketStore(t *testing.T) {
	store := NewBracketStore()

	_, ok := store.Get("chan")
	assert.False(t, ok)

	b := &bracket.Bracket{ChannelID: "chan", Format: bracket.SingleElimination}
	store.Put(b)

	got, ok := store.Get("chan")
	require.True(t, ok)
	assert.Same(t, b, got)
	assert.Equal(t, []string{"chan"}, store.Channels())

	store.Delete("chan")
	_, ok = store.Get("chan")
	assert.False(t, ok)
}

func TestCooldownStore(t *testing.T) {
	store := NewCooldownStore()
	now := time.Now()

	_, ok := store.Last("guild-1")
	assert.False(t, ok)

	store.Set("guild-1", now)
	store.Set("guild-2", now)
	store.Set("other-1", now)

	got, ok := store.Last("guild-1")
	require.True(t, ok)
	assert.Equal(t, now, got)

	store.ClearPrefix("guild-")
	_, ok = store.Last("guild-1")
	assert.False(t, ok)
	_, ok = store.Last("guild-2")
	assert.False(t, ok)
	_, ok = store.Last("other-1")
	assert.True(t, ok)
}
