// Package checkin tracks which participants of a pending match have
// confirmed readiness. Records are keyed by the match key, created when a
// check-in prompt goes out and deleted on resolution or timeout, so a
// timeout callback that fires after the match resolved finds nothing.
package checkin

import (
	"sync"
	"time"

	"github.com/arenakit/arenabot/internal/player"
)

// Record is the check-in state of one pending match.
type Record struct {
	ChannelID string
	P1        player.Player
	P2        player.Player
	P1Ready   bool
	P2Ready   bool
	CreatedAt time.Time
}

// BothReady reports whether both participants have confirmed.
func (r *Record) BothReady() bool {
	return r.P1Ready && r.P2Ready
}

// Involves reports whether the given player id is one of the two
// participants.
func (r *Record) Involves(playerID string) bool {
	return r.P1.ID == playerID || r.P2.ID == playerID
}

// Registry is the process-wide check-in map. Safe for concurrent use.
type Registry struct {
	mu      sync.Mutex
	records map[string]*Record
}

func NewRegistry() *Registry {
	return &Registry{records: make(map[string]*Record)}
}

// Create stores a fresh record under key, replacing any stale one.
func (g *Registry) Create(key, channelID string, p1, p2 player.Player) *Record {
	g.mu.Lock()
	defer g.mu.Unlock()

	r := &Record{
		ChannelID: channelID,
		P1:        p1,
		P2:        p2,
		CreatedAt: time.Now(),
	}
	g.records[key] = r
	return r
}

// Get returns a copy of the record under key.
func (g *Registry) Get(key string) (Record, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	r, ok := g.records[key]
	if !ok {
		return Record{}, false
	}
	return *r, true
}

// Confirm marks the side belonging to playerID as ready. It returns the
// updated record and false when no record under key involves the player.
func (g *Registry) Confirm(key, playerID string) (Record, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	r, ok := g.records[key]
	if !ok || !r.Involves(playerID) {
		return Record{}, false
	}
	if r.P1.ID == playerID {
		r.P1Ready = true
	} else {
		r.P2Ready = true
	}
	return *r, true
}

// ConfirmAny marks the player ready in the first open record that involves
// them, returning the key of that record.
func (g *Registry) ConfirmAny(channelID, playerID string) (string, Record, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for key, r := range g.records {
		if r.ChannelID != channelID || !r.Involves(playerID) {
			continue
		}
		if r.P1.ID == playerID {
			r.P1Ready = true
		} else {
			r.P2Ready = true
		}
		return key, *r, true
	}
	return "", Record{}, false
}

// Delete removes the record under key.
func (g *Registry) Delete(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.records, key)
}

// DeleteChannel removes every record created for the channel. Used when a
// bracket is stopped.
func (g *Registry) DeleteChannel(channelID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for key, r := range g.records {
		if r.ChannelID == channelID {
			delete(g.records, key)
		}
	}
}
