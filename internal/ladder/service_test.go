package ladder

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arenakit/arenabot/internal/identity"
	"github.com/arenakit/arenabot/internal/leaderboard"
	"github.com/arenakit/arenabot/internal/player"
)

type memCooldowns struct {
	mu   sync.Mutex
	data map[string]time.Time
}

func newMemCooldowns() *memCooldowns {
	return &memCooldowns{data: make(map[string]time.Time)}
}

func (m *memCooldowns) Last(key string) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.data[key]
	return t, ok
}

func (m *memCooldowns) Set(key string, t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = t
}

func (m *memCooldowns) ClearPrefix(prefix string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.data {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			delete(m.data, k)
		}
	}
}

type stubResolver map[string]string

func (r stubResolver) Resolve(_ context.Context, id string) (player.Player, error) {
	name, ok := r[id]
	if !ok {
		return player.Player{}, identity.ErrUnknownMember
	}
	return player.Player{ID: id, Name: name}, nil
}

func newTestService(ratings *memRatings, cooldowns *memCooldowns, now *time.Time) *Service {
	return NewService(ServiceConfig{
		Ratings:   ratings,
		Members:   stubResolver{"1": "Aria", "2": "Bo", "3": "Cy"},
		Cooldowns: cooldowns,
		Cooldown:  10 * time.Minute,
		OwnerID:   "owner",
		Now:       func() time.Time { return *now },
	})
}

func TestRecordWin(t *testing.T) {
	ratings := newMemRatings()
	now := time.Now()
	svc := newTestService(ratings, newMemCooldowns(), &now)

	report, err := svc.RecordWin(context.Background(), "guild", "1", "1", "2")
	require.NoError(t, err)
	assert.Equal(t, 1216, report.Winner.Rating)
	assert.Equal(t, 1184, report.Loser.Rating)
	assert.Equal(t, "Aria", report.Winner.DisplayName)

	saved, err := ratings.Fetch(context.Background(), "guild")
	require.NoError(t, err)
	assert.Equal(t, 1216, saved.Rating("1"))
}

func TestRecordWinCooldown(t *testing.T) {
	ratings := newMemRatings()
	now := time.Now()
	svc := newTestService(ratings, newMemCooldowns(), &now)

	_, err := svc.RecordWin(context.Background(), "guild", "1", "1", "2")
	require.NoError(t, err)

	_, err = svc.RecordWin(context.Background(), "guild", "1", "1", "2")
	assert.ErrorIs(t, err, ErrCooldownActive)

	// A different winner is not throttled by Aria's cooldown.
	_, err = svc.RecordWin(context.Background(), "guild", "2", "2", "3")
	require.NoError(t, err)

	// The same winner in another guild is a separate cooldown.
	_, err = svc.RecordWin(context.Background(), "other", "1", "1", "2")
	require.NoError(t, err)

	now = now.Add(10*time.Minute + time.Second)
	_, err = svc.RecordWin(context.Background(), "guild", "1", "1", "2")
	require.NoError(t, err)
}

func TestRecordWinOwnerBypassesCooldown(t *testing.T) {
	now := time.Now()
	svc := newTestService(newMemRatings(), newMemCooldowns(), &now)

	_, err := svc.RecordWin(context.Background(), "guild", "owner", "1", "2")
	require.NoError(t, err)
	_, err = svc.RecordWin(context.Background(), "guild", "owner", "1", "2")
	require.NoError(t, err)

	// Non-owner reporting the same winner still hits the cooldown.
	_, err = svc.RecordWin(context.Background(), "guild", "2", "1", "2")
	assert.ErrorIs(t, err, ErrCooldownActive)
}

func TestRecordWinValidation(t *testing.T) {
	now := time.Now()
	svc := newTestService(newMemRatings(), newMemCooldowns(), &now)

	_, err := svc.RecordWin(context.Background(), "guild", "1", "1", "1")
	assert.ErrorIs(t, err, ErrSamePlayer)

	_, err = svc.RecordWin(context.Background(), "guild", "1", "missing", "2")
	assert.ErrorIs(t, err, identity.ErrUnknownMember)

	_, err = svc.RecordWin(context.Background(), "guild", "1", "1", "missing")
	assert.ErrorIs(t, err, identity.ErrUnknownMember)
}

func TestPoints(t *testing.T) {
	ratings := newMemRatings()
	now := time.Now()
	svc := newTestService(ratings, newMemCooldowns(), &now)

	entry, err := svc.Points(context.Background(), "guild", "1")
	require.NoError(t, err)
	assert.Equal(t, 1200, entry.Rating)
	assert.Equal(t, "Aria", entry.DisplayName)

	_, err = svc.RecordWin(context.Background(), "guild", "1", "1", "2")
	require.NoError(t, err)

	entry, err = svc.Points(context.Background(), "guild", "1")
	require.NoError(t, err)
	assert.Equal(t, 1216, entry.Rating)

	_, err = svc.Points(context.Background(), "guild", "missing")
	assert.ErrorIs(t, err, identity.ErrUnknownMember)
}

func TestTop(t *testing.T) {
	ratings := newMemRatings()
	require.NoError(t, ratings.Save(context.Background(), "guild", leaderboard.Ratings{
		"1": {PlayerID: "1", DisplayName: "Aria", Rating: 1300},
		"2": {PlayerID: "2", DisplayName: "Bo", Rating: 1500},
		"3": {PlayerID: "3", DisplayName: "Cy", Rating: 1300},
	}))
	now := time.Now()
	svc := newTestService(ratings, newMemCooldowns(), &now)

	top, err := svc.Top(context.Background(), "guild")
	require.NoError(t, err)
	require.Len(t, top, 3)
	assert.Equal(t, "Bo", top[0].DisplayName)
	// Ties order by name so standings render stably.
	assert.Equal(t, "Aria", top[1].DisplayName)
	assert.Equal(t, "Cy", top[2].DisplayName)
}

func TestReset(t *testing.T) {
	ratings := newMemRatings()
	cooldowns := newMemCooldowns()
	now := time.Now()
	svc := newTestService(ratings, cooldowns, &now)

	_, err := svc.RecordWin(context.Background(), "guild", "1", "1", "2")
	require.NoError(t, err)
	_, err = svc.RecordWin(context.Background(), "other", "1", "1", "2")
	require.NoError(t, err)

	require.NoError(t, svc.Reset(context.Background(), "guild"))

	top, err := svc.Top(context.Background(), "guild")
	require.NoError(t, err)
	assert.Empty(t, top)

	// The reset guild's cooldowns are gone; the other guild's survive.
	_, err = svc.RecordWin(context.Background(), "guild", "1", "1", "2")
	require.NoError(t, err)
	_, err = svc.RecordWin(context.Background(), "other", "1", "1", "2")
	assert.ErrorIs(t, err, ErrCooldownActive)
}
