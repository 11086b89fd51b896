package engine

import (
	"sort"
	"time"

	"github.com/outfoxed-dev/mafia-server/internal/dispatch"
	"github.com/outfoxed-dev/mafia-server/internal/domain/role"
	"github.com/outfoxed-dev/mafia-server/internal/protocol"
)

// nightState is the per-night intake buffer. Submissions are keyed by actor
// and overwrite on recast; everything resets at dawn.
type nightState struct {
	submissions map[Phase]map[string]string
	// firstCast records when each mafia target was first named, for the
	// plurality tie-break.
	firstCast map[string]time.Time
}

func newNightState() *nightState {
	return &nightState{
		submissions: make(map[Phase]map[string]string),
		firstCast:   make(map[string]time.Time),
	}
}

func (n *nightState) submit(p Phase, actor, target string) {
	m, ok := n.submissions[p]
	if !ok {
		m = make(map[string]string)
		n.submissions[p] = m
	}
	m[actor] = target
}

func (n *nightState) submission(p Phase, actor string) (string, bool) {
	t, ok := n.submissions[p][actor]
	return t, ok
}

// enterNight starts a fresh pipeline. Yesterday's silences expire here.
func (g *Game) enterNight() {
	g.night = newNightState()
	g.silenced = make(map[string]struct{})
	g.votes = nil
	g.removalTarget = ""
	g.revoting = false
	g.phaseRemaining = g.settings.Timers.NightTotal

	if i, ok := g.nextEligibleStage(-1); ok {
		g.enterStage(i)
		return
	}
	// Nobody acts at night. Resolve the empty night into a new day.
	g.resolveNight()
}

// nextEligibleStage finds the first pipeline stage after index from with a
// living, able actor.
func (g *Game) nextEligibleStage(from int) (int, bool) {
	for i := from + 1; i < len(nightPipeline); i++ {
		if g.stageEligible(nightPipeline[i]) {
			return i, true
		}
	}
	return 0, false
}

func (g *Game) stageEligible(s nightStage) bool {
	actors := g.livingWithRole(s.roles...)
	if len(actors) == 0 {
		return false
	}
	if s.phase == PhaseVigilanteAction && g.vigShots <= 0 {
		return false
	}
	return true
}

// enterStage switches to a pipeline phase. The night budget keeps counting
// down; only the role timer resets.
func (g *Game) enterStage(i int) {
	s := nightPipeline[i]
	g.phase = s.phase
	g.roleRemaining = s.timer(g.settings.Timers)
	if g.roleRemaining > g.phaseRemaining {
		g.roleRemaining = g.phaseRemaining
	}

	g.deps.Dispatch.Dispatch(dispatch.Event{
		Type: protocol.EventGamePhaseChange,
		Payload: protocol.PhaseChangePayload{
			Phase:     string(s.phase),
			Timer:     g.roleRemaining,
			DayNumber: g.dayNumber,
		},
		Audience: dispatch.ToAll(),
	})
	for _, actor := range g.livingWithRole(s.roles...) {
		g.deps.Dispatch.Dispatch(dispatch.Event{
			Type: protocol.EventNightActionRequired,
			Payload: protocol.ActionRequiredPayload{
				Role:         string(g.roles[actor]),
				Timer:        g.roleRemaining,
				ValidTargets: g.validTargets(actor),
			},
			Audience: dispatch.ToPlayer(actor),
		})
	}
}

func (g *Game) advanceNightStage() {
	cur := stageIndex[g.phase]
	if i, ok := g.nextEligibleStage(cur); ok {
		g.enterStage(i)
		return
	}
	g.resolveNight()
}

// validTargets computes the targetable ids for one actor in the current
// phase. Computed at stage entry and re-checked at intake.
func (g *Game) validTargets(actor string) []string {
	r := g.roles[actor]
	out := []string{}
	for _, id := range g.aliveIDs() {
		if id == actor {
			// The arsonist self-target is the ignite order.
			if r == role.Arsonist {
				out = append(out, id)
			}
			continue
		}
		if role.IsMafiaKiller(r) && g.effectiveTeam(id) == role.TeamMafia {
			continue
		}
		if r == role.Arsonist {
			if _, already := g.doused[id]; already {
				continue
			}
		}
		out = append(out, id)
	}
	if r == role.Vigilante && g.vigShots <= 0 {
		return nil
	}
	return out
}

// HandleNightAction is the intake path for night submissions. Last write
// wins until the stage closes.
func (g *Game) HandleNightAction(actor, target string) error {
	if g.over || !IsNightPhase(g.phase) {
		return protocol.NewError(protocol.ErrInvalidPhase, "no night action accepted in %s", g.phase)
	}
	r, ok := g.roles[actor]
	if !ok || !g.IsAlive(actor) {
		return protocol.NewError(protocol.ErrNotAuthorized, "not a living player")
	}
	if !roleActsIn(r, g.phase) {
		return protocol.NewError(protocol.ErrNotAuthorized, "%s does not act in %s", r, g.phase)
	}
	if !contains(g.validTargets(actor), target) {
		return protocol.NewError(protocol.ErrInvalidTarget, "target %s not selectable", target)
	}

	g.night.submit(g.phase, actor, target)
	if g.phase == PhaseMafiaAction {
		if _, seen := g.night.firstCast[target]; !seen {
			g.night.firstCast[target] = g.deps.Clock.Now()
		}
	}

	kind, _ := role.NightAction(r)
	g.deps.Dispatch.Dispatch(dispatch.Event{
		Type:     protocol.EventNightActionConfirmed,
		Payload:  protocol.ActionConfirmedPayload{ActionType: string(kind)},
		Audience: dispatch.ToPlayer(actor),
	})
	if g.phase == PhaseMafiaAction {
		g.deps.Dispatch.Dispatch(dispatch.Event{
			Type:     protocol.EventMafiaVoteUpdate,
			Payload:  g.night.submissions[PhaseMafiaAction],
			Audience: dispatch.ToMafia(),
		})
	}

	if g.allSubmitted(g.phase) {
		g.advanceNightStage()
	}
	return nil
}

func roleActsIn(r role.Role, p Phase) bool {
	for _, ar := range actingRoles(p) {
		if ar == r {
			return true
		}
	}
	return false
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// allSubmitted reports whether every connected living actor of the phase has
// a submission on file. A disconnected actor cannot submit and does not hold
// the stage open; a submission made before dropping stays in force.
func (g *Game) allSubmitted(p Phase) bool {
	for _, actor := range g.livingWithRole(actingRoles(p)...) {
		if !g.connected(actor) {
			continue
		}
		if _, ok := g.night.submission(p, actor); !ok {
			return false
		}
	}
	return true
}

// resolveNight executes the fixed resolution order, applies deaths and
// transitions into the new day.
func (g *Game) resolveNight() {
	n := g.night
	if n == nil {
		n = newNightState()
	}

	// 1. Jail. The jailed player's own submissions are void.
	jailed := ""
	for _, jailor := range g.livingWithRole(role.Jailor) {
		if t, ok := n.submission(PhaseJailorAction, jailor); ok {
			jailed = t
			break
		}
	}
	nullified := func(actor string) bool { return actor == jailed }

	// 2. Cult conversion. The convert changes allegiance, never kills.
	for _, leader := range g.livingWithRole(role.CultLeader) {
		if t, ok := n.submission(PhaseCultLeaderAction, leader); ok && !nullified(leader) {
			g.cult[t] = struct{}{}
		}
	}

	// 3. Silence, effective for the coming day.
	for _, s := range g.livingWithRole(role.Silencer) {
		if t, ok := n.submission(PhaseSilencerAction, s); ok && !nullified(s) {
			g.silenced[t] = struct{}{}
		}
	}

	// 4. Protection sets.
	saved := make(map[string]struct{})
	for _, doc := range g.livingWithRole(role.Doctor) {
		if t, ok := n.submission(PhaseDoctorAction, doc); ok && !nullified(doc) {
			saved[t] = struct{}{}
		}
	}
	for _, h := range g.livingWithRole(role.MafiaHealer) {
		if t, ok := n.submission(PhaseMafiaHealerAction, h); ok && !nullified(h) {
			saved[t] = struct{}{}
		}
	}
	watched := make(map[string]string) // watch target -> bodyguard
	for _, bg := range g.livingWithRole(role.Bodyguard) {
		if t, ok := n.submission(PhaseBodyguardAction, bg); ok && !nullified(bg) {
			watched[t] = bg
		}
	}

	// 5. Kills, in order: mafia, vigilante, serial killer, ignite.
	pending := make(map[string]Cause)
	anyoneSaved := false
	addKill := func(target string, cause Cause) {
		if _, dying := pending[target]; dying {
			return
		}
		pending[target] = cause
	}
	attack := func(attacker, target string, cause Cause) {
		if _, ok := saved[target]; ok {
			anyoneSaved = true
			return
		}
		if guard, ok := watched[target]; ok && g.IsAlive(guard) {
			// Mutual trade. A doctor on either side voids that side.
			if _, ok := saved[guard]; ok {
				anyoneSaved = true
			} else {
				addKill(guard, CauseBodyguardTrade)
			}
			if attacker != "" {
				if _, ok := saved[attacker]; ok {
					anyoneSaved = true
				} else {
					addKill(attacker, CauseBodyguardTrade)
				}
			}
			return
		}
		addKill(target, cause)
	}

	if target, attacker, ok := g.mafiaTarget(n, nullified); ok {
		attack(attacker, target, CauseMafiaKill)
	}
	for _, vig := range g.livingWithRole(role.Vigilante) {
		if t, ok := n.submission(PhaseVigilanteAction, vig); ok && !nullified(vig) && g.vigShots > 0 {
			g.vigShots--
			attack(vig, t, CauseVigilante)
		}
	}
	for _, sk := range g.livingWithRole(role.SerialKiller) {
		if t, ok := n.submission(PhaseSerialKillerAction, sk); ok && !nullified(sk) {
			attack(sk, t, CauseSerialKiller)
		}
	}
	ignited := false
	for _, ars := range g.livingWithRole(role.Arsonist) {
		t, ok := n.submission(PhaseArsonistAction, ars)
		if !ok || nullified(ars) {
			continue
		}
		if t == ars {
			ignited = true
			for doused := range g.doused {
				if g.IsAlive(doused) {
					attack(ars, doused, CauseArsonist)
				}
			}
		}
	}

	// 6. Douse. A douse night adds fuel; the ignite night burns it.
	if !ignited {
		for _, ars := range g.livingWithRole(role.Arsonist) {
			if t, ok := n.submission(PhaseArsonistAction, ars); ok && !nullified(ars) && t != ars {
				g.doused[t] = struct{}{}
			}
		}
	}

	// 7. Investigations read the final night state. Results are private and
	// only go to investigators who survived the night.
	type privateResult struct {
		to  string
		typ string
		pay interface{}
	}
	var results []privateResult
	for _, det := range g.livingWithRole(role.Detective) {
		t, ok := n.submission(PhaseDetectiveAction, det)
		if !ok || nullified(det) {
			continue
		}
		guilty := g.effectiveTeam(t) == role.TeamMafia && !role.AppearsInnocentTo(g.roles[t], role.Detective)
		results = append(results, privateResult{det, protocol.EventNightDetectiveResult,
			protocol.DetectiveResultPayload{TargetID: t, IsGuilty: guilty}})
	}
	for _, don := range g.livingWithRole(role.Don) {
		t, ok := n.submission(PhaseDonAction, don)
		if !ok || nullified(don) {
			continue
		}
		results = append(results, privateResult{don, protocol.EventNightDonResult,
			protocol.DonResultPayload{TargetID: t, IsDetective: g.roles[t] == role.Detective}})
	}
	for _, spy := range g.livingWithRole(role.Spy) {
		if _, ok := n.submission(PhaseSpyAction, spy); !ok || nullified(spy) {
			continue
		}
		voters := make([]string, 0, len(n.submissions[PhaseMafiaAction]))
		for voter := range n.submissions[PhaseMafiaAction] {
			voters = append(voters, voter)
		}
		sort.Strings(voters)
		results = append(results, privateResult{spy, protocol.EventNightSpyResult,
			protocol.SpyResultPayload{MafiaVoters: voters}})
	}

	// 8. Apply deaths, advance the day and publish only public facts.
	deaths := make([]protocol.DeathNotice, 0, len(pending))
	for _, s := range g.seats {
		cause, ok := pending[s.ID]
		if !ok {
			continue
		}
		g.kill(s.ID, cause)
		notice := protocol.DeathNotice{PlayerID: s.ID, Cause: string(cause)}
		if g.settings.RevealRoleOnDeath {
			notice.Role = string(g.roles[s.ID])
		}
		deaths = append(deaths, notice)
	}
	g.dayNumber++
	g.night = nil

	g.deps.Dispatch.Dispatch(dispatch.Event{
		Type: protocol.EventNightResult,
		Payload: protocol.NightResultPayload{
			Deaths:      deaths,
			AnyoneSaved: anyoneSaved,
			DayNumber:   g.dayNumber,
		},
		Audience: dispatch.ToAll(),
	})
	for _, r := range results {
		if !g.IsAlive(r.to) {
			continue
		}
		g.deps.Dispatch.Dispatch(dispatch.Event{
			Type:     r.typ,
			Payload:  r.pay,
			Audience: dispatch.ToPlayer(r.to),
		})
	}
	for id := range g.silenced {
		if !g.IsAlive(id) {
			continue
		}
		g.deps.Dispatch.Dispatch(dispatch.Event{
			Type:     protocol.EventPlayerSilenced,
			Payload:  protocol.PlayerIDPayload{PlayerID: id},
			Audience: dispatch.ToPlayer(id),
		})
	}

	if winner, winners, over := g.evaluateWin(); over {
		g.endGame(winner, winners)
		return
	}
	g.enterPhase(PhaseDayDiscussion)
}

// mafiaTarget computes the collective kill: plurality of submissions, ties
// broken by earliest first-cast, then the godfather's pick, then RNG.
// The returned attacker is the member blamed for a bodyguard trade.
func (g *Game) mafiaTarget(n *nightState, nullified func(string) bool) (target, attacker string, ok bool) {
	votes := make(map[string]string)
	for actor, t := range n.submissions[PhaseMafiaAction] {
		if g.IsAlive(actor) && !nullified(actor) {
			votes[actor] = t
		}
	}
	if len(votes) == 0 {
		return "", "", false
	}

	counts := make(map[string]int)
	for _, t := range votes {
		counts[t]++
	}
	best := -1
	var tied []string
	for t, c := range counts {
		if c > best {
			best, tied = c, []string{t}
		} else if c == best {
			tied = append(tied, t)
		}
	}

	sort.Strings(tied)
	target = tied[0]
	if len(tied) > 1 {
		chosen := ""
		var earliest time.Time
		ambiguous := false
		for _, t := range tied {
			at, seen := n.firstCast[t]
			if !seen {
				continue
			}
			switch {
			case chosen == "" || at.Before(earliest):
				chosen, earliest, ambiguous = t, at, false
			case at.Equal(earliest):
				ambiguous = true
			}
		}
		if chosen == "" || ambiguous {
			chosen = ""
			for actor, t := range votes {
				if g.roles[actor] == role.Godfather && contains(tied, t) {
					chosen = t
					break
				}
			}
		}
		if chosen == "" {
			chosen = g.deps.RNG.Pick(tied)
		}
		target = chosen
	}

	// Blame the godfather when he voted the chosen target, else any voter.
	for actor, t := range votes {
		if t == target {
			attacker = actor
			if g.roles[actor] == role.Godfather {
				break
			}
		}
	}
	return target, attacker, true
}
