package rooms

import (
	"time"

	"github.com/outfoxed-dev/mafia-server/internal/domain/room"
)

// RoomView is the wire snapshot of a room, safe to hand to any member.
type RoomView struct {
	ID           string        `json:"id"`
	Code         string        `json:"code"`
	Name         string        `json:"name"`
	Visibility   string        `json:"visibility"`
	HostID       string        `json:"hostId"`
	Players      []room.Player `json:"players"`
	Settings     room.Settings `json:"settings"`
	IsGameActive bool          `json:"isGameActive"`
	CreatedAt    time.Time     `json:"createdAt"`
}

func viewOf(r *room.Room) RoomView {
	return RoomView{
		ID:           r.ID,
		Code:         r.Code,
		Name:         r.Name,
		Visibility:   string(r.Visibility),
		HostID:       r.HostID,
		Players:      r.PublicViews(),
		Settings:     r.Settings,
		IsGameActive: r.IsGameActive,
		CreatedAt:    r.CreatedAt,
	}
}

// ListedRoom is one entry of the public room listing.
type ListedRoom struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	Players    int    `json:"players"`
	MaxPlayers int    `json:"maxPlayers"`
}
