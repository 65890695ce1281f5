package ladder

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arenakit/arenabot/internal/history"
	"github.com/arenakit/arenabot/internal/leaderboard"
	"github.com/arenakit/arenabot/internal/player"
	"github.com/arenakit/arenabot/internal/prompt"
)

type memRatings struct {
	mu   sync.Mutex
	data map[string]leaderboard.Ratings
}

func newMemRatings() *memRatings {
	return &memRatings{data: make(map[string]leaderboard.Ratings)}
}

func (m *memRatings) Fetch(_ context.Context, guildID string) (leaderboard.Ratings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(leaderboard.Ratings, len(m.data[guildID]))
	for k, v := range m.data[guildID] {
		out[k] = v
	}
	return out, nil
}

func (m *memRatings) Save(_ context.Context, guildID string, ratings leaderboard.Ratings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := make(leaderboard.Ratings, len(ratings))
	for k, v := range ratings {
		copied[k] = v
	}
	m.data[guildID] = copied
	return nil
}

type memHistory struct {
	mu    sync.Mutex
	games []history.GameResult
	sets  []history.SetResult
}

func (m *memHistory) AppendGame(_ context.Context, r history.GameResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.games = append(m.games, r)
	return nil
}

func (m *memHistory) AppendSet(_ context.Context, r history.SetResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets = append(m.sets, r)
	return nil
}

func (m *memHistory) counts() (int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.games), len(m.sets)
}

type testFeed struct {
	mu    sync.Mutex
	lines []string
}

func (f *testFeed) Announce(_, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lines = append(f.lines, text)
}

func (f *testFeed) contains(sub string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, line := range f.lines {
		if strings.Contains(line, sub) {
			return true
		}
	}
	return false
}

type scriptPrompter struct {
	answer func(prompt.Request) (prompt.Selection, error)
}

func (p *scriptPrompter) Choose(_ context.Context, req prompt.Request) (prompt.Selection, error) {
	return p.answer(req)
}

// autoplay answers every step: both players check in, everyone takes the
// first option offered, and winnerID wins every game report.
func autoplay(winnerID string) func(prompt.Request) (prompt.Selection, error) {
	return func(req prompt.Request) (prompt.Selection, error) {
		responder := req.Responders[0]
		switch {
		case req.Title == "Set check-in":
			return prompt.Selection{ResponderID: responder, Value: "ready"}, nil
		case strings.Contains(req.Title, "result"):
			return prompt.Selection{ResponderID: winnerID, Value: winnerID}, nil
		default:
			return prompt.Selection{ResponderID: responder, Value: req.Options[0].Value}, nil
		}
	}
}

func newTestSequencer(ratings *memRatings, hist *memHistory, feed *testFeed, answer func(prompt.Request) (prompt.Selection, error)) *Sequencer {
	return NewSequencer(SequencerConfig{
		Ratings:     ratings,
		History:     hist,
		Prompts:     &scriptPrompter{answer: answer},
		Notify:      feed,
		StepTimeout: time.Second,
		PickIndex:   func(int) int { return 0 },
	})
}

func TestRunFullSet(t *testing.T) {
	ratings := newMemRatings()
	hist := &memHistory{}
	feed := &testFeed{}
	seq := newTestSequencer(ratings, hist, feed, autoplay("1"))

	aria := player.Player{ID: "1", Name: "Aria"}
	bo := player.Player{ID: "2", Name: "Bo"}
	err := seq.Run(context.Background(), "guild", "chan", aria, bo)
	require.NoError(t, err)

	assert.True(t, feed.contains("First to 2 wins!"))
	assert.True(t, feed.contains("Game 1 stage: Hollow Bastion"))
	assert.True(t, feed.contains("Game 2 stage: Small Battlefield"))
	assert.True(t, feed.contains("Aria wins the set 2-0!"))

	saved, err := ratings.Fetch(context.Background(), "guild")
	require.NoError(t, err)
	assert.Equal(t, 1216, saved.Rating("1"))
	assert.Equal(t, 1184, saved.Rating("2"))
	assert.Equal(t, "Aria", saved["1"].DisplayName)

	assert.Eventually(t, func() bool {
		games, sets := hist.counts()
		return games == 2 && sets == 1
	}, time.Second, 5*time.Millisecond)

	_, live := seq.Current("chan")
	assert.False(t, live)
}

func TestRunHighRatedSetNeedsThreeWins(t *testing.T) {
	ratings := newMemRatings()
	require.NoError(t, ratings.Save(context.Background(), "guild", leaderboard.Ratings{
		"1": {PlayerID: "1", DisplayName: "Aria", Rating: 1600},
	}))
	hist := &memHistory{}
	feed := &testFeed{}
	seq := newTestSequencer(ratings, hist, feed, autoplay("2"))

	aria := player.Player{ID: "1", Name: "Aria"}
	bo := player.Player{ID: "2", Name: "Bo"}
	require.NoError(t, seq.Run(context.Background(), "guild", "chan", aria, bo))

	assert.True(t, feed.contains("First to 3 wins!"))
	assert.True(t, feed.contains("Bo wins the set 3-0!"))

	// The underdog beat a 1600 player, so the exchange is steep.
	saved, err := ratings.Fetch(context.Background(), "guild")
	require.NoError(t, err)
	assert.Equal(t, 1229, saved.Rating("2"))
	assert.Equal(t, 1571, saved.Rating("1"))

	assert.Eventually(t, func() bool {
		games, _ := hist.counts()
		return games == 3
	}, time.Second, 5*time.Millisecond)
}

func TestRunRatingUsesPreSetSnapshot(t *testing.T) {
	ratings := newMemRatings()
	hist := &memHistory{}
	feed := &testFeed{}

	// Bump the winner's rating mid-set on the first game report. The final
	// exchange must still price the set at the opening ratings.
	base := autoplay("1")
	answer := func(req prompt.Request) (prompt.Selection, error) {
		if strings.Contains(req.Title, "result") {
			cur, _ := ratings.Fetch(context.Background(), "guild")
			cur.Set(player.Player{ID: "1", Name: "Aria"}, 1900)
			_ = ratings.Save(context.Background(), "guild", cur)
		}
		return base(req)
	}
	seq := newTestSequencer(ratings, hist, feed, answer)

	aria := player.Player{ID: "1", Name: "Aria"}
	bo := player.Player{ID: "2", Name: "Bo"}
	require.NoError(t, seq.Run(context.Background(), "guild", "chan", aria, bo))

	saved, err := ratings.Fetch(context.Background(), "guild")
	require.NoError(t, err)
	assert.Equal(t, 1216, saved.Rating("1"))
	assert.Equal(t, 1184, saved.Rating("2"))
}

func TestRunCheckInTimeout(t *testing.T) {
	ratings := newMemRatings()
	feed := &testFeed{}
	seq := newTestSequencer(ratings, &memHistory{}, feed, func(req prompt.Request) (prompt.Selection, error) {
		return prompt.Selection{}, prompt.ErrTimeout
	})

	err := seq.Run(context.Background(), "guild", "chan",
		player.Player{ID: "1", Name: "Aria"}, player.Player{ID: "2", Name: "Bo"})
	require.ErrorIs(t, err, prompt.ErrTimeout)
	assert.True(t, feed.contains("Check-in timed out"))

	saved, err := ratings.Fetch(context.Background(), "guild")
	require.NoError(t, err)
	assert.Empty(t, saved)
}

func TestRunRejectsSamePlayer(t *testing.T) {
	seq := newTestSequencer(newMemRatings(), &memHistory{}, &testFeed{}, autoplay("1"))
	p := player.Player{ID: "1", Name: "Aria"}
	err := seq.Run(context.Background(), "guild", "chan", p, p)
	assert.ErrorIs(t, err, ErrSamePlayer)
}

func TestRunOneSetPerChannel(t *testing.T) {
	release := make(chan struct{})
	seq := newTestSequencer(newMemRatings(), &memHistory{}, &testFeed{}, func(req prompt.Request) (prompt.Selection, error) {
		<-release
		return prompt.Selection{}, prompt.ErrTimeout
	})

	aria := player.Player{ID: "1", Name: "Aria"}
	bo := player.Player{ID: "2", Name: "Bo"}
	done := make(chan error, 1)
	go func() {
		done <- seq.Run(context.Background(), "guild", "chan", aria, bo)
	}()

	require.Eventually(t, func() bool {
		_, live := seq.Current("chan")
		return live
	}, time.Second, 5*time.Millisecond)

	err := seq.Run(context.Background(), "guild", "chan", aria, bo)
	assert.ErrorIs(t, err, ErrSetInProgress)

	// A second channel is unaffected by the first channel's live set.
	set, live := seq.Current("chan")
	require.True(t, live)
	assert.Equal(t, StateCheckIn, set.State)
	_, live = seq.Current("other")
	assert.False(t, live)

	close(release)
	require.ErrorIs(t, <-done, prompt.ErrTimeout)
	_, live = seq.Current("chan")
	assert.False(t, live)
}

func TestBanStarterSingleStagePool(t *testing.T) {
	seq := NewSequencer(SequencerConfig{
		Ratings:   newMemRatings(),
		Prompts:   &scriptPrompter{answer: autoplay("1")},
		Notify:    &testFeed{},
		Starters:  []string{"Battlefield"},
		PickIndex: func(int) int { return 0 },
	})
	set := &Set{
		ChannelID: "chan",
		P1:        player.Player{ID: "1", Name: "Aria"},
		P2:        player.Player{ID: "2", Name: "Bo"},
	}
	stage, err := seq.banStarter(context.Background(), set)
	require.NoError(t, err)
	assert.Equal(t, "Battlefield", stage)
}
