package prompt

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// feedLimit bounds the per-channel announcement feed.
const feedLimit = 200

// View is the gateway-facing shape of a pending prompt.
type View struct {
	ID         string    `json:"id"`
	ChannelID  string    `json:"channel_id"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	Options    []Option  `json:"options"`
	Responders []string  `json:"responders"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Message is one entry of a channel's announcement feed.
type Message struct {
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

type pending struct {
	view View
	resp chan Selection
}

// Hub is the in-process implementation of Prompter and Announcer. Pending
// prompts are listable per channel and answered by id; announcements
// accumulate in a bounded per-channel feed. It stands in for the chat
// platform's buttons, select menus and channel messages.
type Hub struct {
	mu      sync.Mutex
	prompts map[string]*pending
	feeds   map[string][]Message
}

func NewHub() *Hub {
	return &Hub{
		prompts: make(map[string]*pending),
		feeds:   make(map[string][]Message),
	}
}

// Choose publishes the request as a pending prompt and blocks until a
// qualifying response arrives, the context is cancelled, or the timeout
// elapses.
func (h *Hub) Choose(ctx context.Context, req Request) (Selection, error) {
	id := uuid.NewString()
	p := &pending{
		view: View{
			ID:         id,
			ChannelID:  req.ChannelID,
			Title:      req.Title,
			Body:       req.Body,
			Options:    req.Options,
			Responders: req.Responders,
			ExpiresAt:  time.Now().Add(req.Timeout),
		},
		resp: make(chan Selection, 1),
	}

	h.mu.Lock()
	h.prompts[id] = p
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.prompts, id)
		h.mu.Unlock()
	}()

	timer := time.NewTimer(req.Timeout)
	defer timer.Stop()

	select {
	case sel := <-p.resp:
		return sel, nil
	case <-timer.C:
		return Selection{}, ErrTimeout
	case <-ctx.Done():
		return Selection{}, ctx.Err()
	}
}

// Respond answers the prompt with the given id. A response from a
// non-allowed responder or with an off-menu value is rejected without
// consuming the prompt.
func (h *Hub) Respond(promptID, responderID, value string) error {
	h.mu.Lock()
	p, ok := h.prompts[promptID]
	h.mu.Unlock()
	if !ok {
		return ErrNotFound
	}

	if len(p.view.Responders) > 0 {
		allowed := false
		for _, id := range p.view.Responders {
			if id == responderID {
				allowed = true
				break
			}
		}
		if !allowed {
			return ErrNotAllowed
		}
	}

	if len(p.view.Options) > 0 {
		valid := false
		for _, opt := range p.view.Options {
			if opt.Value == value {
				valid = true
				break
			}
		}
		if !valid {
			return ErrInvalidChoice
		}
	}

	select {
	case p.resp <- Selection{ResponderID: responderID, Value: value}:
		return nil
	default:
		// Someone else got there first
		return ErrNotFound
	}
}

// Pending lists the open prompts of a channel.
func (h *Hub) Pending(channelID string) []View {
	h.mu.Lock()
	defer h.mu.Unlock()

	var views []View
	for _, p := range h.prompts {
		if p.view.ChannelID == channelID {
			views = append(views, p.view)
		}
	}
	return views
}

// Announce appends text to the channel's feed.
func (h *Hub) Announce(channelID, text string) {
	slog.Info("announce", "channel", channelID, "text", text)

	h.mu.Lock()
	defer h.mu.Unlock()

	feed := append(h.feeds[channelID], Message{Text: text, At: time.Now()})
	if len(feed) > feedLimit {
		feed = feed[len(feed)-feedLimit:]
	}
	h.feeds[channelID] = feed
}

// Feed returns the channel's announcement feed, oldest first.
func (h *Hub) Feed(channelID string) []Message {
	h.mu.Lock()
	defer h.mu.Unlock()

	feed := h.feeds[channelID]
	out := make([]Message, len(feed))
	copy(out, feed)
	return out
}
