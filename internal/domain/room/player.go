package room

import "time"

// Status is a player's liveness inside a room.
type Status string

const (
	StatusAlive      Status = "ALIVE"
	StatusDead       Status = "DEAD"
	StatusSpectating Status = "SPECTATING"
)

// Player is a member of a room. A disconnected player keeps their seat until
// the grace timer evicts them; game logic treats them as alive meanwhile.
type Player struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
	Status   Status `json:"status"`
	IsHost   bool   `json:"isHost"`

	IsConnected       bool       `json:"isConnected"`
	DisconnectedSince *time.Time `json:"disconnectedSince,omitempty"`
	JoinedAt          time.Time  `json:"-"`
}

// PublicView strips fields a fellow player should not see raw.
func (p *Player) PublicView() Player {
	v := *p
	v.DisconnectedSince = nil
	return v
}
