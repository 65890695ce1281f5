// Package identity defines the membership provider that turns an opaque
// platform id into a player with a display name.
package identity

import (
	"context"
	"errors"

	"github.com/arenakit/arenabot/internal/player"
)

// ErrUnknownMember is returned when no member exists under the given id.
var ErrUnknownMember = errors.New("unknown member")

// Resolver looks up a member by platform id at interaction time.
type Resolver interface {
	Resolve(ctx context.Context, id string) (player.Player, error)
}
