package bracket

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/arenakit/arenabot/internal/checkin"
	"github.com/arenakit/arenabot/internal/player"
	"github.com/arenakit/arenabot/internal/prompt"
	"github.com/arenakit/arenabot/internal/schedule"
)

var (
	ErrExists           = errors.New("a bracket already exists in this channel")
	ErrNotFound         = errors.New("no active bracket in this channel")
	ErrStarted          = errors.New("the tournament has already started")
	ErrNotStarted       = errors.New("the tournament has not started yet")
	ErrAlreadyJoined    = errors.New("already joined")
	ErrNotJoined        = errors.New("not in the bracket")
	ErrNotEnoughPlayers = errors.New("not enough players to start")
	ErrNoActiveMatch    = errors.New("no active match to log")
	ErrNotInMatch       = errors.New("those players are not in the current match")
	ErrNotCheckedIn     = errors.New("both players must check in before the match can be logged")
	ErrNoOpenCheckIn    = errors.New("no open check-in involves this player")
	ErrReportDeclined   = errors.New("match report was declined")
)

// Store keeps the bracket-by-channel mapping. The engine is the only
// writer; implementations only need to be safe for concurrent reads done
// through the engine.
type Store interface {
	Get(channelID string) (*Bracket, bool)
	Put(b *Bracket)
	Delete(channelID string)
}

// Config carries the engine's tunables.
type Config struct {
	// CheckInWindow is how long both participants of a bracket match have
	// to check in before the timeout fallback runs.
	CheckInWindow time.Duration

	// ConfirmWindow is how long a reported win waits for both players'
	// confirmations.
	ConfirmWindow time.Duration

	// Shuffle randomizes seeding at tournament start. Tests inject a
	// deterministic one.
	Shuffle func([]player.Player)
}

// Engine drives every bracket in the process. A single mutex serializes
// all state transitions; blocking confirmation prompts run outside it.
type Engine struct {
	mu       sync.Mutex
	store    Store
	checkins *checkin.Registry
	prompts  prompt.Prompter
	notify   prompt.Announcer
	sched    *schedule.Scheduler
	cfg      Config
}

func NewEngine(store Store, reg *checkin.Registry, prompts prompt.Prompter, notify prompt.Announcer, sched *schedule.Scheduler, cfg Config) *Engine {
	if cfg.CheckInWindow <= 0 {
		cfg.CheckInWindow = 5 * time.Minute
	}
	if cfg.ConfirmWindow <= 0 {
		cfg.ConfirmWindow = time.Minute
	}
	if cfg.Shuffle == nil {
		cfg.Shuffle = func(players []player.Player) {
			rand.Shuffle(len(players), func(i, j int) {
				players[i], players[j] = players[j], players[i]
			})
		}
	}
	return &Engine{
		store:    store,
		checkins: reg,
		prompts:  prompts,
		notify:   notify,
		sched:    sched,
		cfg:      cfg,
	}
}

// Create opens a new bracket in the channel. At most one bracket may exist
// per channel.
func (e *Engine) Create(channelID string, format Format) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.store.Get(channelID); ok {
		return ErrExists
	}
	e.store.Put(&Bracket{ChannelID: channelID, Format: format})
	e.notify.Announce(channelID, "Bracket created! Players can now join.")
	return nil
}

// Join adds a player to the roster. Rejected once the tournament started.
func (e *Engine) Join(channelID string, p player.Player) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	b, ok := e.store.Get(channelID)
	if !ok {
		return ErrNotFound
	}
	if b.Started {
		return ErrStarted
	}
	if b.HasPlayer(p.ID) {
		return ErrAlreadyJoined
	}
	b.Players = append(b.Players, p)
	e.notify.Announce(channelID, fmt.Sprintf("%s joined the tournament.", p.Name))
	return nil
}

// Leave removes a player from the roster before the tournament starts.
func (e *Engine) Leave(channelID, playerID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	b, ok := e.store.Get(channelID)
	if !ok {
		return ErrNotFound
	}
	if b.Started {
		return ErrStarted
	}
	if !b.removePlayer(playerID) {
		return ErrNotJoined
	}
	e.notify.Announce(channelID, "A player left the tournament.")
	return nil
}

// Start shuffles the roster, generates round 1 and begins play. All
// matches of the round are started concurrently.
func (e *Engine) Start(channelID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	b, ok := e.store.Get(channelID)
	if !ok {
		return ErrNotFound
	}
	if b.Started {
		return ErrStarted
	}
	if len(b.Players) < 2 {
		return ErrNotEnoughPlayers
	}

	b.Started = true
	e.cfg.Shuffle(b.Players)
	b.Matchups = GenerateMatchups(b.Players, KindWinners)
	b.Round = 1
	b.CurrentMatchIndex = 0
	b.LosersMatchups = nil
	b.LosersCurrentMatchIndex = 0
	b.LosersRound = 0
	b.GrandFinals = nil
	b.FinalStage = false
	b.WinnersBracketWinner = nil
	b.Results = nil

	e.notify.Announce(channelID, "Tournament starting!")
	e.runNextMatch(b, false)
	return nil
}

// Stop deletes the channel's bracket along with every check-in record and
// pending timeout that belongs to it.
func (e *Engine) Stop(channelID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.store.Get(channelID); !ok {
		return ErrNotFound
	}
	e.store.Delete(channelID)
	e.checkins.DeleteChannel(channelID)
	e.sched.CancelPrefix(keyPart(channelID) + "-")
	e.notify.Announce(channelID, "The bracket has been stopped and all data for this channel has been cleared.")
	return nil
}

// CheckIn marks the caller's half of their open check-in record.
func (e *Engine) CheckIn(channelID, playerID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.store.Get(channelID); !ok {
		return ErrNotFound
	}
	_, rec, ok := e.checkins.ConfirmAny(channelID, playerID)
	if !ok {
		return ErrNoOpenCheckIn
	}
	if rec.BothReady() {
		e.notify.Announce(channelID, fmt.Sprintf("Both players checked in: %s vs %s. Report the result when done.", rec.P1.Name, rec.P2.Name))
	}
	return nil
}

// ReportWin logs a win for the active match involving the two players.
// Both participants must have checked in, and both must confirm the report
// within the confirm window; a decline or timeout leaves the match
// untouched. Blocks until the confirmation step concludes.
func (e *Engine) ReportWin(ctx context.Context, channelID, winnerID, loserID string) error {
	e.mu.Lock()

	b, ok := e.store.Get(channelID)
	if !ok {
		e.mu.Unlock()
		return ErrNotFound
	}

	m := e.activeMatch(b, winnerID, loserID)
	if m == nil {
		e.mu.Unlock()
		return ErrNoActiveMatch
	}

	winner, okW := m.Participant(winnerID)
	loser, okL := m.Participant(loserID)
	if !okW || !okL || winnerID == loserID {
		e.mu.Unlock()
		return ErrNotInMatch
	}

	rec, ok := e.checkins.Get(b.matchKey(m))
	if !ok || !rec.BothReady() {
		e.mu.Unlock()
		return ErrNotCheckedIn
	}
	e.mu.Unlock()

	e.notify.Announce(channelID, fmt.Sprintf("%s claims a win against %s. Both players must confirm.", winner.Name, loser.Name))

	confirmed, err := e.confirmBoth(ctx, channelID, winner, loser)
	if err != nil {
		if errors.Is(err, prompt.ErrTimeout) {
			e.notify.Announce(channelID, "Match confirmation timed out. Please try again.")
		}
		return err
	}
	if !confirmed {
		e.notify.Announce(channelID, "Match report was declined.")
		return ErrReportDeclined
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// The bracket may have been stopped or replaced, or the match
	// resolved by a timeout fallback, while we waited for confirmations.
	if current, ok := e.store.Get(channelID); !ok || current != b {
		return ErrNotFound
	}
	if m.Resolved() {
		return ErrNoActiveMatch
	}
	e.resolveMatch(b, m, winner)
	return nil
}

// activeMatch locates the match a report refers to: the grand final when
// it is live, else an unresolved match of the current winners round, else
// of the current losers round.
func (e *Engine) activeMatch(b *Bracket, winnerID, loserID string) *Match {
	if b.GrandFinals != nil && !b.FinalStage {
		return b.GrandFinals
	}
	findIn := func(matchups []*Match) *Match {
		for _, m := range matchups {
			if m.Open() && (m.Involves(winnerID) || m.Involves(loserID)) {
				return m
			}
		}
		return nil
	}
	if b.CurrentMatchIndex < len(b.Matchups) {
		if m := findIn(b.Matchups); m != nil {
			return m
		}
	}
	if b.LosersCurrentMatchIndex < len(b.LosersMatchups) {
		if m := findIn(b.LosersMatchups); m != nil {
			return m
		}
	}
	return nil
}

// confirmBoth asks each player for a confirm/decline and reports whether
// both confirmed. The two prompts run concurrently.
func (e *Engine) confirmBoth(ctx context.Context, channelID string, winner, loser player.Player) (bool, error) {
	type outcome struct {
		sel prompt.Selection
		err error
	}
	results := make(chan outcome, 2)

	ask := func(p player.Player) {
		sel, err := e.prompts.Choose(ctx, prompt.Request{
			ChannelID:  channelID,
			Title:      "Confirm match result",
			Body:       fmt.Sprintf("%s, confirm that %s won the match.", p.Name, winner.Name),
			Options:    prompt.Options("confirm", "decline"),
			Responders: []string{p.ID},
			Timeout:    e.cfg.ConfirmWindow,
		})
		results <- outcome{sel, err}
	}
	go ask(winner)
	go ask(loser)

	confirmed := true
	var firstErr error
	for i := 0; i < 2; i++ {
		out := <-results
		switch {
		case out.err != nil:
			confirmed = false
			if firstErr == nil {
				firstErr = out.err
			}
		case out.sel.Value != "confirm":
			confirmed = false
		}
	}
	if firstErr != nil {
		return false, firstErr
	}
	return confirmed, nil
}

// runNextMatch is the tournament advancement step: it (re)issues
// check-ins for all unresolved matches of the current round,
// advances rounds once resolved, merges the two halves into grand finals,
// and terminates. Callers hold the engine mutex.
func (e *Engine) runNextMatch(b *Bracket, losers bool) {
	if b.Format == DoubleElimination && losers {
		e.runLosersRound(b)
		return
	}
	e.runWinnersRound(b)
}

func (e *Engine) runWinnersRound(b *Bracket) {
	if b.CurrentMatchIndex < len(b.Matchups) {
		e.startMatches(b, b.Matchups)
		return
	}

	if m := firstUnresolved(b.Matchups); m != nil {
		e.notify.Announce(b.ChannelID, fmt.Sprintf("Waiting for the match between %s and %s to finish.", m.P1.Name, m.P2.Name))
		e.startMatches(b, b.Matchups)
		return
	}

	winners := resolvedWinners(b.Matchups)
	losers := resolvedLosers(b.Matchups)

	if len(winners) == 0 {
		// Every match of the round was skipped with no contest.
		e.notify.Announce(b.ChannelID, "The tournament ended with no remaining players.")
		return
	}

	if len(winners) == 1 {
		b.WinnersBracketWinner = &winners[0]
		if b.Format != DoubleElimination {
			e.notify.Announce(b.ChannelID, fmt.Sprintf("The tournament is over! Winner: %s", winners[0].Name))
			return
		}
		switch {
		case len(b.LosersMatchups) == 0 && len(losers) > 0:
			// Seed the losers bracket from the final winners round.
			b.LosersMatchups = GenerateMatchups(losers, KindLosers)
			b.LosersCurrentMatchIndex = 0
			b.LosersRound = 1
			e.notify.Announce(b.ChannelID, "Moving to Losers Bracket!")
			e.startMatches(b, b.LosersMatchups)
		case len(b.LosersMatchups) == 1 && b.LosersMatchups[0].Resolved():
			e.startGrandFinals(b, *b.LosersMatchups[0].Winner)
		case len(b.LosersMatchups) == 0:
			// No one ever dropped down; the winners champion takes it.
			e.notify.Announce(b.ChannelID, fmt.Sprintf("The tournament is over! Winner: %s", winners[0].Name))
		default:
			e.notify.Announce(b.ChannelID, "Waiting for Losers Bracket to finish.")
		}
		return
	}

	b.Matchups = GenerateMatchups(winners, KindWinners)
	b.Round++
	b.CurrentMatchIndex = 0
	e.notify.Announce(b.ChannelID, fmt.Sprintf("Starting Winners Round %d!", b.Round))
	e.startMatches(b, b.Matchups)
}

func (e *Engine) runLosersRound(b *Bracket) {
	if b.LosersCurrentMatchIndex < len(b.LosersMatchups) {
		e.startMatches(b, b.LosersMatchups)
		return
	}

	if m := firstUnresolved(b.LosersMatchups); m != nil {
		e.notify.Announce(b.ChannelID, fmt.Sprintf("Waiting for the match between %s and %s to finish in the Losers Bracket.", m.P1.Name, m.P2.Name))
		e.startMatches(b, b.LosersMatchups)
		return
	}

	lWinners := resolvedWinners(b.LosersMatchups)

	if len(lWinners) == 1 && b.WinnersBracketWinner != nil {
		e.startGrandFinals(b, lWinners[0])
		return
	}
	if len(lWinners) == 0 {
		// Every losers match ended with no contest; the winners-bracket
		// champion takes the tournament.
		b.LosersMatchups = nil
		if b.WinnersBracketWinner != nil {
			e.notify.Announce(b.ChannelID, fmt.Sprintf("The tournament is over! Winner: %s", b.WinnersBracketWinner.Name))
		}
		return
	}

	b.LosersMatchups = GenerateMatchups(lWinners, KindLosers)
	b.LosersCurrentMatchIndex = 0
	b.LosersRound++
	e.notify.Announce(b.ChannelID, fmt.Sprintf("Starting Losers Round %d!", b.LosersRound))
	e.startMatches(b, b.LosersMatchups)
}

// startGrandFinals merges the two finalists. Constructed at most once per
// bracket.
func (e *Engine) startGrandFinals(b *Bracket, losersWinner player.Player) {
	if b.GrandFinals != nil {
		return
	}
	b.GrandFinals = &Match{P1: *b.WinnersBracketWinner, P2: losersWinner, Kind: KindGrandFinals}
	b.FinalStage = false
	e.notify.Announce(b.ChannelID, fmt.Sprintf("GRAND FINALS: %s (Winners Bracket) vs %s (Losers Bracket)!", b.GrandFinals.P1.Name, b.GrandFinals.P2.Name))
	e.startCheckIn(b, b.GrandFinals)
}

// startMatches issues check-ins for every unresolved match of a round at
// once; round matches are mutually independent and never serialized.
func (e *Engine) startMatches(b *Bracket, matchups []*Match) {
	for _, m := range matchups {
		if m.Open() {
			e.startCheckIn(b, m)
		}
	}
}

// startCheckIn creates the check-in record for a match and schedules its
// timeout. A BYE opponent auto-resolves with no check-in step.
func (e *Engine) startCheckIn(b *Bracket, m *Match) {
	if m.P1.IsBye() && m.P2.IsBye() {
		return
	}
	if m.P1.IsBye() {
		e.resolveMatch(b, m, m.P2)
		return
	}
	if m.P2.IsBye() {
		e.resolveMatch(b, m, m.P1)
		return
	}

	key := b.matchKey(m)
	if _, exists := e.checkins.Get(key); exists {
		// Check-in already running for this match
		return
	}
	e.checkins.Create(key, b.ChannelID, m.P1, m.P2)
	e.notify.Announce(b.ChannelID, fmt.Sprintf("Match up: %s vs %s. Check in within %s.", m.P1.Name, m.P2.Name, e.cfg.CheckInWindow))

	e.sched.Schedule(key, time.Now().Add(e.cfg.CheckInWindow), func() {
		e.handleCheckInTimeout(b, m, key)
	})
}

// handleCheckInTimeout runs the fallback when a check-in window closes:
// one confirmed participant wins by default, zero confirmations skips the
// match as a no-contest. Firing after the match resolved is a no-op
// because the record is deleted on resolution.
func (e *Engine) handleCheckInTimeout(b *Bracket, m *Match, key string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	rec, ok := e.checkins.Get(key)
	if !ok || m.Resolved() {
		return
	}
	if rec.BothReady() {
		// Both present, waiting on the report; leave the record alone.
		return
	}
	if rec.P1Ready {
		e.resolveMatch(b, m, m.P1)
		return
	}
	if rec.P2Ready {
		e.resolveMatch(b, m, m.P2)
		return
	}

	e.checkins.Delete(key)
	m.Skipped = true
	e.notify.Announce(b.ChannelID, fmt.Sprintf("Match between %s and %s skipped due to no check-in.", m.P1.Name, m.P2.Name))

	b.Results = append(b.Results, Result{
		Round:     e.roundOf(b, m),
		Kind:      m.Kind,
		P1:        m.P1,
		P2:        m.P2,
		NoContest: true,
		At:        time.Now(),
	})

	switch m.Kind {
	case KindGrandFinals:
		b.FinalStage = true
		e.notify.Announce(b.ChannelID, "Grand Finals could not be completed. No winner.")
	case KindLosers:
		b.LosersCurrentMatchIndex++
		e.runNextMatch(b, true)
	default:
		b.CurrentMatchIndex++
		e.runNextMatch(b, false)
	}
}

// resolveMatch records the outcome, clears the check-in state, advances
// the relevant cursor and recurses into the advancement algorithm. Callers
// hold the engine mutex. Resolving an already resolved match is a no-op.
func (e *Engine) resolveMatch(b *Bracket, m *Match, winner player.Player) {
	if m.Resolved() {
		return
	}

	loser := m.Opponent(winner)
	m.Winner = &winner
	m.Loser = &loser

	key := b.matchKey(m)
	e.checkins.Delete(key)
	e.sched.Cancel(key)

	b.Results = append(b.Results, Result{
		Round:  e.roundOf(b, m),
		Kind:   m.Kind,
		P1:     m.P1,
		P2:     m.P2,
		Winner: &winner,
		Loser:  &loser,
		At:     time.Now(),
	})

	if !loser.IsBye() {
		e.notify.Announce(b.ChannelID, fmt.Sprintf("%s wins the match against %s.", winner.Name, loser.Name))
	}

	switch m.Kind {
	case KindGrandFinals:
		b.FinalStage = true
		e.notify.Announce(b.ChannelID, fmt.Sprintf("The tournament is over! Grand Finals Winner: %s", winner.Name))
	case KindLosers:
		b.LosersCurrentMatchIndex++
		e.runNextMatch(b, true)
	default:
		b.CurrentMatchIndex++
		e.runNextMatch(b, false)
	}
}

func (e *Engine) roundOf(b *Bracket, m *Match) int {
	switch m.Kind {
	case KindLosers:
		return b.LosersRound
	case KindGrandFinals:
		return 0
	default:
		return b.Round
	}
}
