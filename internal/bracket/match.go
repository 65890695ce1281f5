package bracket

import (
	"fmt"
	"strings"

	"github.com/arenakit/arenabot/internal/player"
)

// Kind tags which half of the tournament a match belongs to.
type Kind int

const (
	KindWinners Kind = iota
	KindLosers
	KindGrandFinals
)

func (k Kind) String() string {
	switch k {
	case KindLosers:
		return "L"
	case KindGrandFinals:
		return "GF"
	default:
		return "W"
	}
}

// Match is an ordered pair of players, one of which may be the synthetic
// BYE. Winner and Loser are set exactly once on resolution; the nil check
// on Winner is the engine's double-resolution guard.
type Match struct {
	P1   player.Player
	P2   player.Player
	Kind Kind

	Winner *player.Player
	Loser  *player.Player

	// Skipped marks a match abandoned by the no-contest fallback. It
	// counts as advancing with no recorded winner.
	Skipped bool
}

// Resolved reports whether the match already has a winner.
func (m *Match) Resolved() bool {
	return m.Winner != nil
}

// Open reports whether the match still awaits an outcome.
func (m *Match) Open() bool {
	return !m.Resolved() && !m.Skipped
}

// Involves reports whether the given player id participates in this match.
func (m *Match) Involves(playerID string) bool {
	return playerID != "" && (m.P1.ID == playerID || m.P2.ID == playerID)
}

// Participant returns the participant with the given id.
func (m *Match) Participant(playerID string) (player.Player, bool) {
	switch playerID {
	case "":
		return player.Player{}, false
	case m.P1.ID:
		return m.P1, true
	case m.P2.ID:
		return m.P2, true
	}
	return player.Player{}, false
}

// Opponent returns the other participant.
func (m *Match) Opponent(p player.Player) player.Player {
	if m.P1.ID == p.ID {
		return m.P2
	}
	return m.P1
}

// Key builds the stable, unique identifier of this match within a channel
// and round. Check-in records and scheduled timeouts are addressed by it,
// so two concurrently running matches must never collide here. Channel and
// player ids are opaque and may themselves contain the separator, so every
// component is escaped before joining.
func (m *Match) Key(channelID string, round int) string {
	return fmt.Sprintf("%s-%d-%s-%s-%s", keyPart(channelID), round, keyPart(keyID(m.P1)), keyPart(keyID(m.P2)), m.Kind)
}

// keyPart escapes the key separator inside a component.
func keyPart(s string) string {
	s = strings.ReplaceAll(s, "%", "%25")
	return strings.ReplaceAll(s, "-", "%2D")
}

func keyID(p player.Player) string {
	if p.IsBye() {
		return "bye"
	}
	return p.ID
}

// GenerateMatchups pairs consecutive players; an odd player out is paired
// with a synthetic BYE.
func GenerateMatchups(players []player.Player, kind Kind) []*Match {
	matchups := make([]*Match, 0, (len(players)+1)/2)
	for i := 0; i < len(players); i += 2 {
		m := &Match{P1: players[i], P2: player.Bye(), Kind: kind}
		if i+1 < len(players) {
			m.P2 = players[i+1]
		}
		matchups = append(matchups, m)
	}
	return matchups
}
