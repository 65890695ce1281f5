package ladder

import (
	"time"

	"github.com/arenakit/arenabot/internal/player"
)

// State tags where a running set currently is. Exactly one step is live at
// a time and each step carries its own deadline.
type State string

const (
	StateCheckIn         State = "check_in"
	StateCharacterSelect State = "character_select"
	StateStageBan        State = "stage_ban"
	StateCounterpick     State = "counterpick"
	StateReport          State = "report"
	StateComplete        State = "complete"
	StateAborted         State = "aborted"
)

// Set is the live state of one ranked set. A channel hosts at most one set
// at a time; the sequencer owns the struct and hands out copies.
type Set struct {
	GuildID      string        `json:"guild_id"`
	ChannelID    string        `json:"channel_id"`
	P1           player.Player `json:"p1"`
	P2           player.Player `json:"p2"`
	RequiredWins int           `json:"required_wins"`
	Game         int           `json:"game"`
	Wins         map[string]int `json:"wins"`
	State        State         `json:"state"`
	Deadline     time.Time     `json:"deadline"`
	StartedAt    time.Time     `json:"started_at"`
}

func (s *Set) participant(id string) (player.Player, bool) {
	switch id {
	case s.P1.ID:
		return s.P1, true
	case s.P2.ID:
		return s.P2, true
	}
	return player.Player{}, false
}

func (s *Set) opponent(id string) player.Player {
	if id == s.P1.ID {
		return s.P2
	}
	return s.P1
}

// Done reports whether the set has reached a terminal state.
func (s *Set) Done() bool {
	return s.State == StateComplete || s.State == StateAborted
}
