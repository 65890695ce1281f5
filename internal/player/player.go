// Package player holds the identity value type used by both engines.
package player

// ByeName is the display name of the synthetic opponent paired with the odd
// player out of a round.
const ByeName = "BYE"

// Player identifies a participant. The ID is the opaque platform id; Name is
// the display name resolved at interaction time.
type Player struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Bye returns the synthetic BYE opponent. It has no id and never enters
// check-in.
func Bye() Player {
	return Player{Name: ByeName}
}

// IsBye reports whether p is the synthetic BYE opponent.
func (p Player) IsBye() bool {
	return p.ID == "" || p.Name == ByeName
}
