package ladder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arenakit/arenabot/internal/elo"
	"github.com/arenakit/arenabot/internal/identity"
	"github.com/arenakit/arenabot/internal/leaderboard"
)

// ErrCooldownActive is returned when a winner is credited again before
// their cooldown has elapsed.
var ErrCooldownActive = errors.New("win cooldown active")

// CooldownStore tracks the last credited win per guild and winner.
type CooldownStore interface {
	Last(key string) (time.Time, bool)
	Set(key string, t time.Time)
	// ClearPrefix drops every cooldown whose key starts with prefix.
	ClearPrefix(prefix string)
}

// ServiceConfig wires a Service's collaborators.
type ServiceConfig struct {
	Ratings   leaderboard.Store
	Members   identity.Resolver
	Cooldowns CooldownStore
	// Cooldown is the minimum gap between credited wins for one player.
	Cooldown time.Duration
	// OwnerID bypasses the cooldown when reporting.
	OwnerID string
	Now     func() time.Time
}

// Service implements the direct ladder commands: crediting a win outside
// the wizard flow, reading standings, and resetting a guild's season.
type Service struct {
	ratings   leaderboard.Store
	members   identity.Resolver
	cooldowns CooldownStore
	cooldown  time.Duration
	ownerID   string
	now       func() time.Time
}

// NewService builds a Service, defaulting the cooldown to ten minutes.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 10 * time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		ratings:   cfg.Ratings,
		members:   cfg.Members,
		cooldowns: cfg.Cooldowns,
		cooldown:  cfg.Cooldown,
		ownerID:   cfg.OwnerID,
		now:       cfg.Now,
	}
}

// WinReport is the outcome of a credited win.
type WinReport struct {
	Winner leaderboard.Entry `json:"winner"`
	Loser  leaderboard.Entry `json:"loser"`
}

// RecordWin credits a single win to winnerID over loserID and applies one
// Elo exchange. Each winner sits out a cooldown between credited wins; the
// configured owner may report past it.
func (s *Service) RecordWin(ctx context.Context, guildID, actorID, winnerID, loserID string) (WinReport, error) {
	if winnerID == loserID {
		return WinReport{}, ErrSamePlayer
	}
	winner, err := s.members.Resolve(ctx, winnerID)
	if err != nil {
		return WinReport{}, fmt.Errorf("resolve winner: %w", err)
	}
	loser, err := s.members.Resolve(ctx, loserID)
	if err != nil {
		return WinReport{}, fmt.Errorf("resolve loser: %w", err)
	}

	key := cooldownKey(guildID, winnerID)
	if actorID != s.ownerID || s.ownerID == "" {
		if last, ok := s.cooldowns.Last(key); ok {
			if remaining := s.cooldown - s.now().Sub(last); remaining > 0 {
				return WinReport{}, fmt.Errorf("%w: %s remaining", ErrCooldownActive, remaining.Round(time.Second))
			}
		}
	}

	ratings, err := s.ratings.Fetch(ctx, guildID)
	if err != nil {
		return WinReport{}, fmt.Errorf("fetch ratings: %w", err)
	}
	newW, newL := elo.Calculate(ratings.Rating(winnerID), ratings.Rating(loserID))
	ratings.Set(winner, newW)
	ratings.Set(loser, newL)
	if err := s.ratings.Save(ctx, guildID, ratings); err != nil {
		return WinReport{}, fmt.Errorf("save ratings: %w", err)
	}
	s.cooldowns.Set(key, s.now())

	return WinReport{Winner: ratings[winnerID], Loser: ratings[loserID]}, nil
}

// Points returns the player's current rating entry, synthesizing a default
// row for a player with no recorded results.
func (s *Service) Points(ctx context.Context, guildID, playerID string) (leaderboard.Entry, error) {
	p, err := s.members.Resolve(ctx, playerID)
	if err != nil {
		return leaderboard.Entry{}, fmt.Errorf("resolve member: %w", err)
	}
	ratings, err := s.ratings.Fetch(ctx, guildID)
	if err != nil {
		return leaderboard.Entry{}, fmt.Errorf("fetch ratings: %w", err)
	}
	if e, ok := ratings[playerID]; ok {
		return e, nil
	}
	return leaderboard.Entry{PlayerID: p.ID, DisplayName: p.Name, Rating: elo.DefaultRating}, nil
}

// Top returns the guild's standings, highest rating first.
func (s *Service) Top(ctx context.Context, guildID string) ([]leaderboard.Entry, error) {
	ratings, err := s.ratings.Fetch(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("fetch ratings: %w", err)
	}
	return ratings.Sorted(), nil
}

// Reset wipes the guild's ratings and cooldowns for a new season.
func (s *Service) Reset(ctx context.Context, guildID string) error {
	if err := s.ratings.Save(ctx, guildID, leaderboard.Ratings{}); err != nil {
		return fmt.Errorf("save ratings: %w", err)
	}
	s.cooldowns.ClearPrefix(guildID + "-")
	return nil
}

func cooldownKey(guildID, winnerID string) string {
	return guildID + "-" + winnerID
}
