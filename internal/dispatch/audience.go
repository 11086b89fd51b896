// Package dispatch fans out game events to connections with role, team and
// liveness scoping. Everything here runs on the owning room's command loop,
// so there is no internal locking; per-room total order falls out of the
// loop's serialization.
package dispatch

import "github.com/outfoxed-dev/mafia-server/internal/domain/role"

// AudienceKind selects the recipient set of an event.
type AudienceKind string

const (
	AudienceAll    AudienceKind = "ALL_IN_ROOM"
	AudienceAlive  AudienceKind = "ALIVE"
	AudienceDead   AudienceKind = "DEAD"
	AudienceMafia  AudienceKind = "MAFIA_TEAM"
	AudienceRole   AudienceKind = "ROLE"
	AudiencePlayer AudienceKind = "PLAYER"
)

// Audience is a fully specified recipient selector.
type Audience struct {
	Kind     AudienceKind
	Role     role.Role
	PlayerID string
}

func ToAll() Audience { return Audience{Kind: AudienceAll} }

func ToAlive() Audience { return Audience{Kind: AudienceAlive} }

func ToDead() Audience { return Audience{Kind: AudienceDead} }

func ToMafia() Audience { return Audience{Kind: AudienceMafia} }

func ToRole(r role.Role) Audience { return Audience{Kind: AudienceRole, Role: r} }

func ToPlayer(id string) Audience { return Audience{Kind: AudiencePlayer, PlayerID: id} }

// Event is one outbound notification before marshalling.
type Event struct {
	Type     string
	Payload  interface{}
	Audience Audience
}

// View answers membership questions for audience resolution. The engine
// provides one while a game runs; the lobby view treats everyone as alive.
type View interface {
	MemberIDs() []string
	IsAlive(id string) bool
	IsMafiaTeam(id string) bool
	RoleOf(id string) (role.Role, bool)
}

// LobbyView is the pre-game audience view: every member is alive, nobody
// has a role or team.
type LobbyView struct {
	IDs []string
}

func (v LobbyView) MemberIDs() []string { return v.IDs }

func (v LobbyView) IsAlive(string) bool { return true }

func (v LobbyView) IsMafiaTeam(string) bool { return false }

func (v LobbyView) RoleOf(string) (role.Role, bool) { return "", false }
