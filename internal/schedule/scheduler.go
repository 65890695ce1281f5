// Package schedule provides the deadline loop that drives every timed step
// of the engines. Instead of scattering timers through the resolution logic,
// waiting steps register a keyed deadline here and a single ticking
// goroutine fires the callbacks once the deadline passes.
package schedule

import (
	"strings"
	"sync"
	"time"
)

type entry struct {
	at time.Time
	fn func()
}

// Scheduler runs callbacks at wall-clock deadlines. Callbacks fire outside
// the internal lock, at most once, and can be cancelled by key until then.
type Scheduler struct {
	mu      sync.Mutex
	entries map[string]entry
	tick    time.Duration
	done    chan struct{}
	once    sync.Once
}

func New(tick time.Duration) *Scheduler {
	return &Scheduler{
		entries: make(map[string]entry),
		tick:    tick,
		done:    make(chan struct{}),
	}
}

// Start launches the ticking loop.
func (s *Scheduler) Start() {
	go s.loop()
}

// Stop terminates the loop. Pending callbacks are dropped.
func (s *Scheduler) Stop() {
	s.once.Do(func() { close(s.done) })
}

// Schedule registers fn to run once at the given time, replacing any entry
// already registered under key.
func (s *Scheduler) Schedule(key string, at time.Time, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry{at: at, fn: fn}
}

// Cancel drops the entry under key, if any.
func (s *Scheduler) Cancel(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

// CancelPrefix drops every entry whose key starts with prefix. Used when a
// bracket is stopped and all its pending timeouts must die with it.
func (s *Scheduler) CancelPrefix(prefix string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.entries {
		if strings.HasPrefix(key, prefix) {
			delete(s.entries, key)
		}
	}
}

func (s *Scheduler) loop() {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case now := <-ticker.C:
			for _, fn := range s.collectDue(now) {
				fn()
			}
		}
	}
}

func (s *Scheduler) collectDue(now time.Time) []func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []func()
	for key, e := range s.entries {
		if !e.at.After(now) {
			due = append(due, e.fn)
			delete(s.entries, key)
		}
	}
	return due
}
