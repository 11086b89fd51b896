// Package room holds the room entity: membership, host election and the
// host-editable settings. All mutation happens on the owning room loop, so
// the entity itself carries no locks.
package room

import (
	"errors"
	"time"
	"unicode"
)

var (
	ErrRoomFull       = errors.New("room is full")
	ErrAlreadyMember  = errors.New("player already in room")
	ErrNotMember      = errors.New("player not in room")
	ErrInvalidName    = errors.New("invalid name")
	ErrGameInProgress = errors.New("game in progress")
)

// CodeLength is the join code size. The allocator may widen it when the
// space is under unexpected pressure.
const CodeLength = 6

// Room is one game lobby and, once started, the container of its game.
type Room struct {
	ID         string
	Code       string
	Name       string
	Visibility Visibility
	HostID     string
	Settings   Settings

	IsGameActive bool
	CreatedAt    time.Time

	// Insertion order is the host-transfer order.
	players []*Player
}

// New seeds a room with the host as its only player.
func New(id, code, name string, visibility Visibility, host Player, s Settings, now time.Time) (*Room, error) {
	if !ValidRoomName(name) {
		return nil, ErrInvalidName
	}
	host.IsHost = true
	host.IsConnected = true
	host.Status = StatusAlive
	host.JoinedAt = now
	return &Room{
		ID:         id,
		Code:       code,
		Name:       name,
		Visibility: visibility,
		HostID:     host.ID,
		Settings:   s,
		CreatedAt:  now,
		players:    []*Player{&host},
	}, nil
}

// ValidRoomName accepts 1 to 30 printable characters after trimming.
func ValidRoomName(name string) bool {
	return validPrintable(name, 30)
}

// ValidUsername accepts 1 to 20 printable characters.
func ValidUsername(name string) bool {
	return validPrintable(name, 20)
}

func validPrintable(s string, max int) bool {
	runes := []rune(s)
	if len(runes) < 1 || len(runes) > max {
		return false
	}
	for _, r := range runes {
		if !unicode.IsPrint(r) {
			return false
		}
	}
	return true
}

// Players returns members in insertion order. Callers must not mutate.
func (r *Room) Players() []*Player { return r.players }

// Player looks up a member by id.
func (r *Room) Player(id string) (*Player, bool) {
	for _, p := range r.players {
		if p.ID == id {
			return p, true
		}
	}
	return nil, false
}

// Len is the current member count.
func (r *Room) Len() int { return len(r.players) }

// IsEmpty reports whether no members remain.
func (r *Room) IsEmpty() bool { return len(r.players) == 0 }

// AddPlayer joins a new member. Rejoining an existing seat goes through
// Reconnect instead.
func (r *Room) AddPlayer(p Player, now time.Time) error {
	if _, ok := r.Player(p.ID); ok {
		return ErrAlreadyMember
	}
	if len(r.players) >= r.Settings.MaxPlayers {
		return ErrRoomFull
	}
	if r.IsGameActive {
		return ErrGameInProgress
	}
	p.Status = StatusAlive
	p.IsConnected = true
	p.JoinedAt = now
	r.players = append(r.players, &p)
	return nil
}

// RemovePlayer drops a member. If they hosted and others remain, the host
// moves to the earliest-joined remaining player, preferring connected seats.
// Returns the new host id when a transfer happened.
func (r *Room) RemovePlayer(id string) (newHost string, err error) {
	idx := -1
	for i, p := range r.players {
		if p.ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		return "", ErrNotMember
	}
	wasHost := r.players[idx].IsHost
	r.players = append(r.players[:idx], r.players[idx+1:]...)

	if wasHost && len(r.players) > 0 {
		next := r.nextHost()
		next.IsHost = true
		r.HostID = next.ID
		return next.ID, nil
	}
	if len(r.players) == 0 {
		r.HostID = ""
	}
	return "", nil
}

func (r *Room) nextHost() *Player {
	for _, p := range r.players {
		if p.IsConnected {
			return p
		}
	}
	return r.players[0]
}

// MarkDisconnected records the drop time. The player keeps their seat until
// the manager's grace timer fires.
func (r *Room) MarkDisconnected(id string, now time.Time) bool {
	p, ok := r.Player(id)
	if !ok {
		return false
	}
	p.IsConnected = false
	t := now
	p.DisconnectedSince = &t
	return true
}

// Reconnect restores a seat within grace.
func (r *Room) Reconnect(id string) bool {
	p, ok := r.Player(id)
	if !ok {
		return false
	}
	p.IsConnected = true
	p.DisconnectedSince = nil
	return true
}

// ConnectedCount is the number of members with a live connection.
func (r *Room) ConnectedCount() int {
	n := 0
	for _, p := range r.players {
		if p.IsConnected {
			n++
		}
	}
	return n
}

// PublicViews snapshots the member list for broadcast.
func (r *Room) PublicViews() []Player {
	out := make([]Player, 0, len(r.players))
	for _, p := range r.players {
		out = append(out, p.PublicView())
	}
	return out
}
