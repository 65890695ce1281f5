package bracket

import (
	"github.com/arenakit/arenabot/internal/player"
)

// MatchView is the read-only shape of one match.
type MatchView struct {
	P1     string `json:"p1"`
	P2     string `json:"p2"`
	Winner string `json:"winner,omitempty"`
}

// Snapshot is a structured rendering of a channel's bracket, grouped the
// way a bracket graphic would lay it out: winners rounds, losers rounds,
// then the grand final.
type Snapshot struct {
	ChannelID   string     `json:"channel_id"`
	Format      Format     `json:"format"`
	Started     bool       `json:"started"`
	Players     []string   `json:"players"`
	Round       int        `json:"round"`
	Matchups    []MatchView `json:"matchups,omitempty"`
	LosersRound int        `json:"losers_round,omitempty"`
	Losers      []MatchView `json:"losers_matchups,omitempty"`
	GrandFinals *MatchView `json:"grand_finals,omitempty"`
	FinalStage  bool       `json:"final_stage"`
	Results     []Result   `json:"results,omitempty"`
}

// Snapshot returns the read-only view of the channel's bracket.
func (e *Engine) Snapshot(channelID string) (Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	b, ok := e.store.Get(channelID)
	if !ok {
		return Snapshot{}, ErrNotFound
	}

	s := Snapshot{
		ChannelID:   b.ChannelID,
		Format:      b.Format,
		Started:     b.Started,
		Round:       b.Round,
		LosersRound: b.LosersRound,
		FinalStage:  b.FinalStage,
		Matchups:    matchViews(b.Matchups),
		Losers:      matchViews(b.LosersMatchups),
		Results:     append([]Result(nil), b.Results...),
	}
	for _, p := range b.Players {
		s.Players = append(s.Players, p.Name)
	}
	if b.GrandFinals != nil {
		v := matchView(b.GrandFinals)
		s.GrandFinals = &v
	}
	return s, nil
}

func matchViews(matchups []*Match) []MatchView {
	views := make([]MatchView, 0, len(matchups))
	for _, m := range matchups {
		views = append(views, matchView(m))
	}
	return views
}

func matchView(m *Match) MatchView {
	v := MatchView{P1: displayName(m.P1), P2: displayName(m.P2)}
	if m.Winner != nil {
		v.Winner = m.Winner.Name
	}
	return v
}

func displayName(p player.Player) string {
	if p.IsBye() {
		return player.ByeName
	}
	if p.Name == "" {
		return "TBD"
	}
	return p.Name
}
