package engine

import (
	"github.com/outfoxed-dev/mafia-server/internal/config"
	"github.com/outfoxed-dev/mafia-server/internal/domain/role"
)

// Phase is a node of the game's state graph.
type Phase string

const (
	PhaseLobby      Phase = "LOBBY"
	PhaseRoleReveal Phase = "ROLE_REVEAL"

	PhaseMafiaAction        Phase = "MAFIA_ACTION"
	PhaseDonAction          Phase = "DON_ACTION"
	PhaseDetectiveAction    Phase = "DETECTIVE_ACTION"
	PhaseDoctorAction       Phase = "DOCTOR_ACTION"
	PhaseBodyguardAction    Phase = "BODYGUARD_ACTION"
	PhaseJailorAction       Phase = "JAILOR_ACTION"
	PhaseVigilanteAction    Phase = "VIGILANTE_ACTION"
	PhaseSpyAction          Phase = "SPY_ACTION"
	PhaseMafiaHealerAction  Phase = "MAFIA_HEALER_ACTION"
	PhaseSilencerAction     Phase = "SILENCER_ACTION"
	PhaseSerialKillerAction Phase = "SERIAL_KILLER_ACTION"
	PhaseCultLeaderAction   Phase = "CULT_LEADER_ACTION"
	PhaseArsonistAction     Phase = "ARSONIST_ACTION"

	PhaseDayDiscussion Phase = "DAY_DISCUSSION"
	PhaseVoting        Phase = "VOTING"
	PhaseResolution    Phase = "RESOLUTION"
	PhaseGameOver      Phase = "GAME_OVER"
)

// nightStage binds one pipeline phase to the roles that act in it and the
// role-specific timer that governs it.
type nightStage struct {
	phase Phase
	roles []role.Role
	timer func(t config.Timers) int
}

// nightPipeline is the canonical execution order of role phases. A stage is
// skipped when no living player holds any of its roles.
var nightPipeline = []nightStage{
	{PhaseMafiaAction, []role.Role{role.Mafia, role.Mafioso, role.Godfather}, func(t config.Timers) int { return t.MafiaAction }},
	{PhaseDonAction, []role.Role{role.Don}, func(t config.Timers) int { return t.DonAction }},
	{PhaseDetectiveAction, []role.Role{role.Detective}, func(t config.Timers) int { return t.DetectiveAct }},
	{PhaseDoctorAction, []role.Role{role.Doctor}, func(t config.Timers) int { return t.DoctorAction }},
	{PhaseBodyguardAction, []role.Role{role.Bodyguard}, func(t config.Timers) int { return t.OtherAction }},
	{PhaseJailorAction, []role.Role{role.Jailor}, func(t config.Timers) int { return t.OtherAction }},
	{PhaseVigilanteAction, []role.Role{role.Vigilante}, func(t config.Timers) int { return t.VigilanteAct }},
	{PhaseSpyAction, []role.Role{role.Spy}, func(t config.Timers) int { return t.OtherAction }},
	{PhaseMafiaHealerAction, []role.Role{role.MafiaHealer}, func(t config.Timers) int { return t.OtherAction }},
	{PhaseSilencerAction, []role.Role{role.Silencer}, func(t config.Timers) int { return t.OtherAction }},
	{PhaseSerialKillerAction, []role.Role{role.SerialKiller}, func(t config.Timers) int { return t.OtherAction }},
	{PhaseCultLeaderAction, []role.Role{role.CultLeader}, func(t config.Timers) int { return t.OtherAction }},
	{PhaseArsonistAction, []role.Role{role.Arsonist}, func(t config.Timers) int { return t.OtherAction }},
}

// stageIndex maps an action phase back to its pipeline position.
var stageIndex = func() map[Phase]int {
	m := make(map[Phase]int, len(nightPipeline))
	for i, s := range nightPipeline {
		m[s.phase] = i
	}
	return m
}()

// IsNightPhase reports whether p is one of the role-action phases.
func IsNightPhase(p Phase) bool {
	_, ok := stageIndex[p]
	return ok
}

// actingRoles returns the roles allowed to submit during p.
func actingRoles(p Phase) []role.Role {
	if i, ok := stageIndex[p]; ok {
		return nightPipeline[i].roles
	}
	return nil
}
