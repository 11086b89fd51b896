// Package role defines the role catalog: the static table mapping each role
// to its team, night action, resolution priority, vote weight and
// investigation appearance. This package is PURE and must not import any
// infrastructure packages.
package role

// Role is a capability bundle assigned to a player for the whole game.
type Role string

const (
	Villager     Role = "VILLAGER"
	Doctor       Role = "DOCTOR"
	Detective    Role = "DETECTIVE"
	Vigilante    Role = "VIGILANTE"
	Bodyguard    Role = "BODYGUARD"
	Jailor       Role = "JAILOR"
	Spy          Role = "SPY"
	Mayor        Role = "MAYOR"
	Mafia        Role = "MAFIA"
	Godfather    Role = "GODFATHER"
	Mafioso      Role = "MAFIOSO"
	Don          Role = "DON"
	MafiaHealer  Role = "MAFIA_HEALER"
	Silencer     Role = "SILENCER"
	SerialKiller Role = "SERIAL_KILLER"
	CultLeader   Role = "CULT_LEADER"
	Arsonist     Role = "ARSONIST"
	Jester       Role = "JESTER"
)

// Team is the winning-coalition label.
type Team string

const (
	TeamTown    Team = "TOWN"
	TeamMafia   Team = "MAFIA"
	TeamNeutral Team = "NEUTRAL"
)

// ActionKind classifies a role's night action.
type ActionKind string

const (
	ActionKill        ActionKind = "KILL"
	ActionInvestigate ActionKind = "INVESTIGATE"
	ActionProtect     ActionKind = "PROTECT"
	ActionJail        ActionKind = "JAIL"
	ActionConvert     ActionKind = "CONVERT"
	ActionDouse       ActionKind = "DOUSE"
	ActionIgnite      ActionKind = "IGNITE"
	ActionSilence     ActionKind = "SILENCE"
)

// Resolution priorities. Lower runs first when the night is resolved; intake
// order during the night is a separate concern owned by the phase pipeline.
const (
	PriorityJail        = 10
	PriorityConvert     = 20
	PrioritySilence     = 30
	PriorityProtect     = 40
	PriorityKill        = 50
	PriorityDouse       = 60
	PriorityInvestigate = 70
)

// Entry is one row of the catalog.
type Entry struct {
	Team               Team
	NightAction        ActionKind // empty when the role has no night action
	ResolutionPriority int
	VoteWeight         int
	// AppearsInnocentTo lists roles whose investigation sees this role as
	// not guilty despite its team.
	AppearsInnocentTo []Role
}

var catalog = map[Role]Entry{
	Villager:  {Team: TeamTown, VoteWeight: 1},
	Mayor:     {Team: TeamTown, VoteWeight: 2},
	Doctor:    {Team: TeamTown, NightAction: ActionProtect, ResolutionPriority: PriorityProtect, VoteWeight: 1},
	Detective: {Team: TeamTown, NightAction: ActionInvestigate, ResolutionPriority: PriorityInvestigate, VoteWeight: 1},
	Vigilante: {Team: TeamTown, NightAction: ActionKill, ResolutionPriority: PriorityKill, VoteWeight: 1},
	Bodyguard: {Team: TeamTown, NightAction: ActionProtect, ResolutionPriority: PriorityProtect, VoteWeight: 1},
	Jailor:    {Team: TeamTown, NightAction: ActionJail, ResolutionPriority: PriorityJail, VoteWeight: 1},
	Spy:       {Team: TeamTown, NightAction: ActionInvestigate, ResolutionPriority: PriorityInvestigate, VoteWeight: 1},

	Mafia:       {Team: TeamMafia, NightAction: ActionKill, ResolutionPriority: PriorityKill, VoteWeight: 1},
	Mafioso:     {Team: TeamMafia, NightAction: ActionKill, ResolutionPriority: PriorityKill, VoteWeight: 1},
	Godfather:   {Team: TeamMafia, NightAction: ActionKill, ResolutionPriority: PriorityKill, VoteWeight: 1, AppearsInnocentTo: []Role{Detective}},
	Don:         {Team: TeamMafia, NightAction: ActionInvestigate, ResolutionPriority: PriorityInvestigate, VoteWeight: 1},
	MafiaHealer: {Team: TeamMafia, NightAction: ActionProtect, ResolutionPriority: PriorityProtect, VoteWeight: 1},
	Silencer:    {Team: TeamMafia, NightAction: ActionSilence, ResolutionPriority: PrioritySilence, VoteWeight: 1},

	SerialKiller: {Team: TeamNeutral, NightAction: ActionKill, ResolutionPriority: PriorityKill, VoteWeight: 1},
	CultLeader:   {Team: TeamNeutral, NightAction: ActionConvert, ResolutionPriority: PriorityConvert, VoteWeight: 1},
	Arsonist:     {Team: TeamNeutral, NightAction: ActionDouse, ResolutionPriority: PriorityDouse, VoteWeight: 1},
	Jester:       {Team: TeamNeutral, VoteWeight: 1},
}

// Lookup returns the catalog entry for r. Unknown roles get a zero entry
// with vote weight 1 so a bad value never silently swallows a vote.
func Lookup(r Role) Entry {
	if e, ok := catalog[r]; ok {
		return e
	}
	return Entry{Team: TeamTown, VoteWeight: 1}
}

// TeamOf returns the role's starting team.
func TeamOf(r Role) Team { return Lookup(r).Team }

// VoteWeight returns the weight of the role's day vote.
func VoteWeight(r Role) int { return Lookup(r).VoteWeight }

// NightAction returns the role's night action kind, if any.
func NightAction(r Role) (ActionKind, bool) {
	e := Lookup(r)
	return e.NightAction, e.NightAction != ""
}

// IsMafiaKiller reports whether the role participates in the collective
// mafia kill vote.
func IsMafiaKiller(r Role) bool {
	return r == Mafia || r == Mafioso || r == Godfather
}

// AppearsInnocentTo reports whether investigations by investigator see r as
// not guilty regardless of team.
func AppearsInnocentTo(r, investigator Role) bool {
	for _, v := range Lookup(r).AppearsInnocentTo {
		if v == investigator {
			return true
		}
	}
	return false
}

// IsHostileNeutral reports whether a living holder of r blocks a town win.
func IsHostileNeutral(r Role) bool {
	return r == SerialKiller || r == Arsonist || r == CultLeader
}

// IsNonMafiaKiller reports whether a living holder of r blocks a mafia win.
// The vigilante only counts while shots remain; the caller checks that.
func IsNonMafiaKiller(r Role) bool {
	return r == SerialKiller || r == Arsonist || r == Vigilante
}
