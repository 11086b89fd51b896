package room

import (
	"fmt"

	"github.com/outfoxed-dev/mafia-server/internal/config"
	"github.com/outfoxed-dev/mafia-server/internal/domain/role"
)

// TiePolicy decides what happens when the day vote ends in a tie.
type TiePolicy string

const (
	TieNoElimination TiePolicy = "NO_ELIMINATION"
	TieRevote        TiePolicy = "REVOTE"
	TieRandom        TiePolicy = "RANDOM"
)

// Visibility controls whether a room shows up in the public listing.
type Visibility string

const (
	VisibilityPublic  Visibility = "PUBLIC"
	VisibilityPrivate Visibility = "PRIVATE"
)

// Settings are the host-editable game options. They freeze at game start.
type Settings struct {
	MinPlayers int `json:"minPlayers"`
	MaxPlayers int `json:"maxPlayers"`

	Roles role.Options `json:"roles"`

	Timers config.Timers `json:"timers"`

	TiePolicy         TiePolicy `json:"tiePolicy"`
	AllowSpectators   bool      `json:"allowSpectators"`
	RevealRoleOnDeath bool      `json:"revealRoleOnDeath"`
	AllowAbstain      bool      `json:"allowAbstain"`
}

// DefaultSettings returns the stock room configuration.
func DefaultSettings() Settings {
	return Settings{
		MinPlayers:        3,
		MaxPlayers:        20,
		Timers:            config.DefaultTimers(),
		TiePolicy:         TieNoElimination,
		AllowSpectators:   true,
		RevealRoleOnDeath: true,
		AllowAbstain:      true,
	}
}

// Validate checks ranges. The hard capacity ceiling comes from server config.
func (s Settings) Validate(serverMin, serverMax int) error {
	if s.MinPlayers < serverMin {
		return fmt.Errorf("minPlayers %d below server minimum %d", s.MinPlayers, serverMin)
	}
	if s.MaxPlayers > serverMax {
		return fmt.Errorf("maxPlayers %d above server maximum %d", s.MaxPlayers, serverMax)
	}
	if s.MinPlayers > s.MaxPlayers {
		return fmt.Errorf("minPlayers %d exceeds maxPlayers %d", s.MinPlayers, s.MaxPlayers)
	}
	switch s.TiePolicy {
	case TieNoElimination, TieRevote, TieRandom:
	default:
		return fmt.Errorf("unknown tie policy %q", s.TiePolicy)
	}
	return s.Timers.Validate()
}
