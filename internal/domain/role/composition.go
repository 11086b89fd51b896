package role

import "fmt"

// Options are the role toggles a host may set before starting a game.
// Extra roles only appear above their minimum player counts.
type Options struct {
	EnableVigilante    bool
	EnableGodfather    bool
	EnableJester       bool
	EnableMayor        bool
	EnableSerialKiller bool
	EnableJailor       bool
	EnableSpy          bool
	EnableArsonist     bool
	EnableSilencer     bool
	EnableCultLeader   bool
}

// Minimum player counts for the optional roles.
const (
	minForJester       = 8
	minForMayor        = 7
	minForSerialKiller = 8
	minForJailor       = 9
	minForSpy          = 9
	minForArsonist     = 10
	minForSilencer     = 11
	minForCultLeader   = 12
	minForDon          = 8
	minMafiaForHealer  = 3
)

// tableRow holds the fixed composition counts for 3..20 players.
// Vigilante is an extra slot taken from villagers when enabled.
type tableRow struct {
	mafia, doctor, detective, bodyguard int
	vigilanteAllowed                    bool
}

var compositionTable = map[int]tableRow{
	3:  {1, 0, 0, 0, false},
	4:  {1, 1, 0, 0, false},
	5:  {1, 1, 0, 0, false},
	6:  {2, 1, 0, 0, false},
	7:  {2, 1, 1, 0, false},
	8:  {2, 1, 1, 0, false},
	9:  {3, 1, 1, 0, false},
	10: {3, 1, 1, 0, true},
	11: {3, 1, 1, 0, true},
	12: {4, 1, 1, 0, true},
	13: {4, 1, 1, 0, true},
	14: {4, 1, 1, 1, true},
	15: {5, 1, 1, 1, true},
	16: {5, 1, 1, 1, true},
	17: {5, 1, 1, 1, true},
	18: {6, 1, 1, 1, true},
	19: {6, 1, 1, 1, true},
	20: {7, 1, 1, 1, true},
}

// Compose returns the multiset of roles for n players under the given
// options. The result is deterministic; callers shuffle it before assigning.
func Compose(n int, o Options) ([]Role, error) {
	if n < 3 {
		return nil, fmt.Errorf("need at least 3 players, got %d", n)
	}

	row, ok := compositionTable[n]
	if !ok {
		row = tableRow{
			mafia:            ceilDiv(35*n, 100),
			doctor:           ceilDiv(n, 15),
			detective:        ceilDiv(n, 15),
			bodyguard:        1,
			vigilanteAllowed: true,
		}
	}

	roles := make([]Role, 0, n)
	for i := 0; i < row.mafia; i++ {
		roles = append(roles, Mafia)
	}
	for i := 0; i < row.doctor; i++ {
		roles = append(roles, Doctor)
	}
	for i := 0; i < row.detective; i++ {
		roles = append(roles, Detective)
	}
	for i := 0; i < row.bodyguard; i++ {
		roles = append(roles, Bodyguard)
	}
	if o.EnableVigilante && row.vigilanteAllowed {
		roles = append(roles, Vigilante)
	}

	villagers := n - len(roles)
	if villagers < 0 {
		return nil, fmt.Errorf("composition overflow for %d players", n)
	}

	if o.EnableJester && n >= minForJester && villagers > 0 {
		roles = append(roles, Jester)
		villagers--
	}

	// Optional specials each replace a villager, keeping at least one
	// plain villager. Later entries are dropped first when slots run out.
	type gated struct {
		r       Role
		enabled bool
		min     int
	}
	for _, g := range []gated{
		{Mayor, o.EnableMayor, minForMayor},
		{SerialKiller, o.EnableSerialKiller, minForSerialKiller},
		{Jailor, o.EnableJailor, minForJailor},
		{Spy, o.EnableSpy, minForSpy},
		{Arsonist, o.EnableArsonist, minForArsonist},
		{Silencer, o.EnableSilencer, minForSilencer},
		{CultLeader, o.EnableCultLeader, minForCultLeader},
	} {
		if g.enabled && n >= g.min && villagers > 1 {
			roles = append(roles, g.r)
			villagers--
		}
	}

	roles = promoteMafia(roles, n, o)

	for i := 0; i < villagers; i++ {
		roles = append(roles, Villager)
	}
	return roles, nil
}

// promoteMafia upgrades plain Mafia slots to the specialized mafia roles.
// The godfather comes first, then the don, then the mafioso, then the
// healer. The don outranks the mafioso so an 8-player godfather game, with
// only two mafia slots, still fields one.
func promoteMafia(roles []Role, n int, o Options) []Role {
	mafiaTotal := 0
	for _, r := range roles {
		if r == Mafia {
			mafiaTotal++
		}
	}

	promote := func(to Role) bool {
		for i, r := range roles {
			if r == Mafia {
				roles[i] = to
				return true
			}
		}
		return false
	}

	godfather := o.EnableGodfather && promote(Godfather)
	if n >= minForDon {
		promote(Don)
	}
	if godfather && mafiaTotal >= 2 {
		promote(Mafioso)
	}
	if mafiaTotal >= minMafiaForHealer {
		promote(MafiaHealer)
	}
	return roles
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
