package engine

import "github.com/outfoxed-dev/mafia-server/internal/domain/role"

// evaluateWin checks the terminal conditions in a fixed order. The jester's
// win never appears here; it is applied at the moment of vote elimination.
func (g *Game) evaluateWin() (winner string, winningPlayers []string, over bool) {
	if len(g.alive) == 0 {
		return WinnerDraw, nil, true
	}

	mafiaAlive := 0
	hostileNeutral := false
	nonMafiaKiller := false
	var skAlive []string
	for id := range g.alive {
		r := g.roles[id]
		if g.effectiveTeam(id) == role.TeamMafia {
			mafiaAlive++
		}
		if role.IsHostileNeutral(r) {
			hostileNeutral = true
		}
		if r == role.SerialKiller {
			skAlive = append(skAlive, id)
		}
		if role.IsNonMafiaKiller(r) {
			if r == role.Vigilante && g.vigShots <= 0 {
				continue
			}
			nonMafiaKiller = true
		}
	}

	if len(g.alive) == 1 && len(skAlive) == 1 {
		return WinnerSerialKiller, skAlive, true
	}
	if mafiaAlive == 0 && !hostileNeutral {
		return WinnerTown, g.teamMembers(role.TeamTown), true
	}
	if mafiaAlive >= len(g.alive)-mafiaAlive && !nonMafiaKiller {
		return WinnerMafia, g.teamMembers(role.TeamMafia), true
	}
	return "", nil, false
}

// teamMembers lists every participant whose effective team matches, dead or
// alive. Winning is a team property, not a survival property.
func (g *Game) teamMembers(t role.Team) []string {
	var out []string
	for _, s := range g.seats {
		if g.effectiveTeam(s.ID) == t {
			out = append(out, s.ID)
		}
	}
	return out
}
