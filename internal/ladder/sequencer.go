package ladder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"slices"
	"sync"
	"time"

	"github.com/arenakit/arenabot/internal/elo"
	"github.com/arenakit/arenabot/internal/history"
	"github.com/arenakit/arenabot/internal/leaderboard"
	"github.com/arenakit/arenabot/internal/player"
	"github.com/arenakit/arenabot/internal/prompt"
)

var (
	// ErrSetInProgress is returned when the channel already hosts a live set.
	ErrSetInProgress = errors.New("a set is already in progress in this channel")
	// ErrSamePlayer is returned when both sides of a set are the same player.
	ErrSamePlayer = errors.New("a player cannot face themselves")
)

// bestOfThreeThreshold is the pre-set rating at which sets stretch from
// first-to-two to first-to-three.
const bestOfThreeThreshold = 1600

// SequencerConfig wires a Sequencer's collaborators.
type SequencerConfig struct {
	Ratings      leaderboard.Store
	History      history.Sink
	Prompts      prompt.Prompter
	Notify       prompt.Announcer
	Fighters     []string
	Starters     []string
	Counterpicks []string
	// StepTimeout bounds every interactive step. A step that times out
	// aborts the whole set.
	StepTimeout time.Duration
	// PickIndex selects the random fallback stage when a pool runs dry.
	PickIndex func(n int) int
}

// Sequencer drives ranked sets end to end: check-in, per-game character
// selection, stage striking or counterpicks, and game reports, then a
// single rating update once the set is decided.
type Sequencer struct {
	ratings      leaderboard.Store
	history      history.Sink
	prompts      prompt.Prompter
	notify       prompt.Announcer
	fighters     []string
	starters     []string
	counterpicks []string
	stepTimeout  time.Duration
	pickIndex    func(n int) int

	mu     sync.Mutex
	active map[string]*Set
}

// NewSequencer builds a Sequencer, filling unset config fields with
// defaults.
func NewSequencer(cfg SequencerConfig) *Sequencer {
	if cfg.StepTimeout <= 0 {
		cfg.StepTimeout = 10 * time.Minute
	}
	if len(cfg.Fighters) == 0 {
		cfg.Fighters = DefaultFighters
	}
	if len(cfg.Starters) == 0 {
		cfg.Starters = DefaultStarterStages
	}
	if len(cfg.Counterpicks) == 0 {
		cfg.Counterpicks = DefaultCounterpickStages
	}
	if cfg.PickIndex == nil {
		cfg.PickIndex = rand.Intn
	}
	return &Sequencer{
		ratings:      cfg.Ratings,
		history:      cfg.History,
		prompts:      cfg.Prompts,
		notify:       cfg.Notify,
		fighters:     cfg.Fighters,
		starters:     cfg.Starters,
		counterpicks: cfg.Counterpicks,
		stepTimeout:  cfg.StepTimeout,
		pickIndex:    cfg.PickIndex,
	}
}

// Current returns a snapshot of the channel's live set, if any.
func (s *Sequencer) Current(channelID string) (Set, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.active[channelID]
	if !ok {
		return Set{}, false
	}
	out := *set
	out.Wins = make(map[string]int, len(set.Wins))
	for k, v := range set.Wins {
		out.Wins[k] = v
	}
	return out, true
}

// Run executes one full set between p1 and p2 in the given channel. It
// blocks until the set completes or aborts, so callers run it on its own
// goroutine.
func (s *Sequencer) Run(ctx context.Context, guildID, channelID string, p1, p2 player.Player) error {
	if p1.ID == p2.ID {
		return ErrSamePlayer
	}

	set := &Set{
		GuildID:   guildID,
		ChannelID: channelID,
		P1:        p1,
		P2:        p2,
		Wins:      make(map[string]int, 2),
		State:     StateCheckIn,
		Deadline:  time.Now().Add(s.stepTimeout),
		StartedAt: time.Now(),
	}

	s.mu.Lock()
	if _, ok := s.active[channelID]; ok {
		s.mu.Unlock()
		return ErrSetInProgress
	}
	if s.active == nil {
		s.active = make(map[string]*Set)
	}
	s.active[channelID] = set
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.active, channelID)
		s.mu.Unlock()
	}()

	s.notify.Announce(channelID, fmt.Sprintf("Match found: %s vs %s. Both players must check in.", p1.Name, p2.Name))
	if err := s.checkIn(ctx, set); err != nil {
		return s.abort(set, "Check-in timed out. The set has been cancelled.", err)
	}

	// Ratings are read once up front. The rating threshold and the final
	// Elo exchange both use this pre-set snapshot, so results reported
	// mid-set elsewhere cannot skew this set's stakes.
	preSet, err := s.ratings.Fetch(ctx, guildID)
	if err != nil {
		s.setState(set, StateAborted)
		return fmt.Errorf("fetch ratings: %w", err)
	}
	required := 2
	if preSet.Rating(p1.ID) >= bestOfThreeThreshold || preSet.Rating(p2.ID) >= bestOfThreeThreshold {
		required = 3
	}
	s.mu.Lock()
	set.RequiredWins = required
	s.mu.Unlock()

	s.notify.Announce(channelID, fmt.Sprintf("Set started: %s (%d) vs %s (%d). First to %d wins!",
		p1.Name, preSet.Rating(p1.ID), p2.Name, preSet.Rating(p2.ID), required))

	var prevWinner player.Player
	for game := 1; ; game++ {
		s.advance(set, StateCharacterSelect, game)
		chars, err := s.characterSelect(ctx, set, game)
		if err != nil {
			return s.abort(set, "Character selection timed out. The set has been cancelled.", err)
		}

		var stage string
		if game == 1 {
			s.setState(set, StateStageBan)
			stage, err = s.banStarter(ctx, set)
		} else {
			s.setState(set, StateCounterpick)
			stage, err = s.counterpick(ctx, set, prevWinner)
		}
		if err != nil {
			return s.abort(set, "Stage selection timed out. The set has been cancelled.", err)
		}
		s.notify.Announce(channelID, fmt.Sprintf("Game %d stage: %s", game, stage))

		s.setState(set, StateReport)
		winner, err := s.reportGame(ctx, set, game)
		if err != nil {
			return s.abort(set, "Game report timed out. The set has been cancelled.", err)
		}
		loser := set.opponent(winner.ID)

		s.mu.Lock()
		set.Wins[winner.ID]++
		winnerScore := set.Wins[winner.ID]
		loserScore := set.Wins[loser.ID]
		p1Wins, p2Wins := set.Wins[p1.ID], set.Wins[p2.ID]
		s.mu.Unlock()

		s.notify.Announce(channelID, fmt.Sprintf("Game %d goes to %s! Score: %s %d - %d %s",
			game, winner.Name, p1.Name, p1Wins, p2Wins, p2.Name))
		s.appendGame(ctx, history.GameResult{
			GuildID:         guildID,
			ChannelID:       channelID,
			Game:            game,
			Winner:          winner,
			Loser:           loser,
			WinnerCharacter: chars[winner.ID],
			LoserCharacter:  chars[loser.ID],
			Stage:           stage,
			WinnerScore:     winnerScore,
			LoserScore:      loserScore,
			At:              time.Now(),
		})

		prevWinner = winner
		if winnerScore >= required {
			return s.finish(ctx, set, preSet, winner, loser, winnerScore, loserScore)
		}
	}
}

func (s *Sequencer) checkIn(ctx context.Context, set *Set) error {
	reqs := [2]prompt.Request{
		s.checkInRequest(set, set.P1, set.P2),
		s.checkInRequest(set, set.P2, set.P1),
	}
	_, err := s.bothChoose(ctx, reqs)
	return err
}

func (s *Sequencer) checkInRequest(set *Set, p, opponent player.Player) prompt.Request {
	return prompt.Request{
		ChannelID:  set.ChannelID,
		Title:      "Set check-in",
		Body:       fmt.Sprintf("%s, confirm you are ready to play %s.", p.Name, opponent.Name),
		Options:    prompt.Options("ready"),
		Responders: []string{p.ID},
		Timeout:    s.stepTimeout,
	}
}

func (s *Sequencer) characterSelect(ctx context.Context, set *Set, game int) (map[string]string, error) {
	build := func(p player.Player) prompt.Request {
		return prompt.Request{
			ChannelID:  set.ChannelID,
			Title:      fmt.Sprintf("Game %d character selection", game),
			Body:       fmt.Sprintf("%s, pick your fighter.", p.Name),
			Options:    prompt.Options(s.fighters...),
			Responders: []string{p.ID},
			Timeout:    s.stepTimeout,
		}
	}
	sels, err := s.bothChoose(ctx, [2]prompt.Request{build(set.P1), build(set.P2)})
	if err != nil {
		return nil, err
	}
	return map[string]string{
		set.P1.ID: sels[0].Value,
		set.P2.ID: sels[1].Value,
	}, nil
}

// banStarter runs the game-one striking sequence over the starter pool in
// 1-2-1 order, leaving the surviving stage.
func (s *Sequencer) banStarter(ctx context.Context, set *Set) (string, error) {
	pool := slices.Clone(s.starters)
	order := []player.Player{set.P1, set.P2, set.P2, set.P1}
	for _, banner := range order {
		if len(pool) <= 1 {
			break
		}
		sel, err := s.prompts.Choose(ctx, prompt.Request{
			ChannelID:  set.ChannelID,
			Title:      "Stage striking",
			Body:       fmt.Sprintf("%s, ban a stage.", banner.Name),
			Options:    prompt.Options(pool...),
			Responders: []string{banner.ID},
			Timeout:    s.stepTimeout,
		})
		if err != nil {
			return "", err
		}
		pool = remove(pool, sel.Value)
	}
	if len(pool) == 0 {
		return s.starters[s.pickIndex(len(s.starters))], nil
	}
	return pool[0], nil
}

// counterpick runs the post-game-one procedure: the previous game's winner
// bans two stages from the combined pool, then the loser picks one.
func (s *Sequencer) counterpick(ctx context.Context, set *Set, prevWinner player.Player) (string, error) {
	pool := append(slices.Clone(s.starters), s.counterpicks...)
	prevLoser := set.opponent(prevWinner.ID)

	for i := 0; i < 2; i++ {
		if len(pool) <= 1 {
			break
		}
		sel, err := s.prompts.Choose(ctx, prompt.Request{
			ChannelID:  set.ChannelID,
			Title:      "Counterpick bans",
			Body:       fmt.Sprintf("%s, ban a stage (%d of 2).", prevWinner.Name, i+1),
			Options:    prompt.Options(pool...),
			Responders: []string{prevWinner.ID},
			Timeout:    s.stepTimeout,
		})
		if err != nil {
			return "", err
		}
		pool = remove(pool, sel.Value)
	}

	if len(pool) == 0 {
		full := append(slices.Clone(s.starters), s.counterpicks...)
		return full[s.pickIndex(len(full))], nil
	}
	sel, err := s.prompts.Choose(ctx, prompt.Request{
		ChannelID:  set.ChannelID,
		Title:      "Counterpick",
		Body:       fmt.Sprintf("%s, pick the next stage.", prevLoser.Name),
		Options:    prompt.Options(pool...),
		Responders: []string{prevLoser.ID},
		Timeout:    s.stepTimeout,
	})
	if err != nil {
		return "", err
	}
	return sel.Value, nil
}

func (s *Sequencer) reportGame(ctx context.Context, set *Set, game int) (player.Player, error) {
	sel, err := s.prompts.Choose(ctx, prompt.Request{
		ChannelID: set.ChannelID,
		Title:     fmt.Sprintf("Game %d result", game),
		Body:      "Who won the game?",
		Options: []prompt.Option{
			{Value: set.P1.ID, Label: set.P1.Name},
			{Value: set.P2.ID, Label: set.P2.Name},
		},
		Responders: []string{set.P1.ID, set.P2.ID},
		Timeout:    s.stepTimeout,
	})
	if err != nil {
		return player.Player{}, err
	}
	winner, ok := set.participant(sel.Value)
	if !ok {
		return player.Player{}, prompt.ErrInvalidChoice
	}
	return winner, nil
}

// finish settles the set: one Elo exchange computed from the pre-set
// snapshot, applied on top of the current ratings.
func (s *Sequencer) finish(ctx context.Context, set *Set, preSet leaderboard.Ratings, winner, loser player.Player, winnerScore, loserScore int) error {
	preW := preSet.Rating(winner.ID)
	preL := preSet.Rating(loser.ID)
	newW, newL := elo.Calculate(preW, preL)

	fresh, err := s.ratings.Fetch(ctx, set.GuildID)
	if err != nil {
		s.setState(set, StateAborted)
		return fmt.Errorf("fetch ratings: %w", err)
	}
	fresh.Set(winner, newW)
	fresh.Set(loser, newL)
	if err := s.ratings.Save(ctx, set.GuildID, fresh); err != nil {
		s.setState(set, StateAborted)
		return fmt.Errorf("save ratings: %w", err)
	}

	s.setState(set, StateComplete)
	s.notify.Announce(set.ChannelID, fmt.Sprintf("%s wins the set %d-%d! %s: %d -> %d, %s: %d -> %d",
		winner.Name, winnerScore, loserScore,
		winner.Name, preW, newW, loser.Name, preL, newL))
	s.appendSet(ctx, history.SetResult{
		GuildID:      set.GuildID,
		ChannelID:    set.ChannelID,
		Winner:       winner,
		Loser:        loser,
		WinnerScore:  winnerScore,
		LoserScore:   loserScore,
		WinnerRating: newW,
		LoserRating:  newL,
		At:           time.Now(),
	})
	return nil
}

// bothChoose issues two prompts concurrently and waits for both answers.
func (s *Sequencer) bothChoose(ctx context.Context, reqs [2]prompt.Request) ([2]prompt.Selection, error) {
	var sels [2]prompt.Selection
	errs := make(chan error, len(reqs))
	for i := range reqs {
		go func(i int) {
			sel, err := s.prompts.Choose(ctx, reqs[i])
			sels[i] = sel
			errs <- err
		}(i)
	}
	var first error
	for range reqs {
		if err := <-errs; err != nil && first == nil {
			first = err
		}
	}
	if first != nil {
		return sels, first
	}
	return sels, nil
}

func (s *Sequencer) abort(set *Set, msg string, err error) error {
	s.setState(set, StateAborted)
	s.notify.Announce(set.ChannelID, msg)
	return err
}

func (s *Sequencer) setState(set *Set, state State) {
	s.mu.Lock()
	set.State = state
	set.Deadline = time.Now().Add(s.stepTimeout)
	s.mu.Unlock()
}

func (s *Sequencer) advance(set *Set, state State, game int) {
	s.mu.Lock()
	set.State = state
	set.Game = game
	set.Deadline = time.Now().Add(s.stepTimeout)
	s.mu.Unlock()
}

// History appends are fire-and-forget. A failed append loses the row but
// never the set.
func (s *Sequencer) appendGame(ctx context.Context, r history.GameResult) {
	if s.history == nil {
		return
	}
	go func() {
		if err := s.history.AppendGame(context.WithoutCancel(ctx), r); err != nil {
			slog.Warn("append game result", "channel", r.ChannelID, "error", err)
		}
	}()
}

func (s *Sequencer) appendSet(ctx context.Context, r history.SetResult) {
	if s.history == nil {
		return
	}
	go func() {
		if err := s.history.AppendSet(context.WithoutCancel(ctx), r); err != nil {
			slog.Warn("append set result", "channel", r.ChannelID, "error", err)
		}
	}()
}
