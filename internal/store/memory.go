package store

import (
	"sync"
	"time"

	"github.com/arenakit/arenabot/internal/bracket"
)

// BracketStore holds live brackets in memory, keyed by channel. Brackets
// are transient state and do not survive a restart.
type BracketStore struct {
	mu       sync.RWMutex
	brackets map[string]*bracket.Bracket
}

func NewBracketStore() *BracketStore {
	return &BracketStore{brackets: make(map[string]*bracket.Bracket)}
}

func (s *BracketStore) Get(channelID string) (*bracket.Bracket, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.brackets[channelID]
	return b, ok
}

func (s *BracketStore) Put(b *bracket.Bracket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.brackets[b.ChannelID] = b
}

func (s *BracketStore) Delete(channelID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.brackets, channelID)
}

// Channels returns the ids of channels with a live bracket.
func (s *BracketStore) Channels() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	channels := make([]string, 0, len(s.brackets))
	for id := range s.brackets {
		channels = append(channels, id)
	}
	return channels
}

// CooldownStore tracks win cooldowns in memory.
type CooldownStore struct {
	mu   sync.Mutex
	last map[string]time.Time
}

func NewCooldownStore() *CooldownStore {
	return &CooldownStore{last: make(map[string]time.Time)}
}

func (s *CooldownStore) Last(key string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.last[key]
	return t, ok
}

func (s *CooldownStore) Set(key string, t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last[key] = t
}

func (s *CooldownStore) ClearPrefix(prefix string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.last {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			delete(s.last, key)
		}
	}
}
