// Package prompt defines the interactive prompt channel that every waiting
// step of both bots is built on: present a set of options to a restricted
// set of responders, then block until a qualifying response arrives or the
// deadline passes.
package prompt

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrTimeout is returned by Choose when the deadline elapses with no
	// qualifying response.
	ErrTimeout = errors.New("prompt timed out")

	// ErrNotFound is returned when responding to an unknown or already
	// answered prompt.
	ErrNotFound = errors.New("prompt not found")

	// ErrNotAllowed is returned when the responder is not one of the
	// prompt's allowed responders.
	ErrNotAllowed = errors.New("responder not part of this prompt")

	// ErrInvalidChoice is returned when the response value is not one of
	// the prompt's options.
	ErrInvalidChoice = errors.New("invalid choice")
)

// Option is one selectable value of a prompt.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Request describes one waiting step.
type Request struct {
	ChannelID  string
	Title      string
	Body       string
	Options    []Option
	Responders []string // player ids allowed to answer; empty allows anyone
	Timeout    time.Duration
}

// Selection is a qualifying response to a Request.
type Selection struct {
	ResponderID string
	Value       string
}

// Prompter presents a Request and blocks until it is answered, cancelled or
// timed out.
type Prompter interface {
	Choose(ctx context.Context, req Request) (Selection, error)
}

// Announcer delivers best-effort, fire-and-forget channel messages.
type Announcer interface {
	Announce(channelID, text string)
}

// Options builds an option list from plain values, using each value as its
// own label.
func Options(values ...string) []Option {
	opts := make([]Option, 0, len(values))
	for _, v := range values {
		opts = append(opts, Option{Value: v, Label: v})
	}
	return opts
}
