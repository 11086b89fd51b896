package role

import "testing"

func countRoles(roles []Role) map[Role]int {
	m := make(map[Role]int)
	for _, r := range roles {
		m[r]++
	}
	return m
}

func mafiaTeamCount(m map[Role]int) int {
	total := 0
	for r, n := range m {
		if TeamOf(r) == TeamMafia {
			total += n
		}
	}
	return total
}

func TestComposeTableContract(t *testing.T) {
	// Expected counts with all options off: mafia / doctor / detective / bodyguard.
	expect := map[int][4]int{
		3:  {1, 0, 0, 0},
		4:  {1, 1, 0, 0},
		5:  {1, 1, 0, 0},
		6:  {2, 1, 0, 0},
		7:  {2, 1, 1, 0},
		8:  {2, 1, 1, 0},
		9:  {3, 1, 1, 0},
		10: {3, 1, 1, 0},
		11: {3, 1, 1, 0},
		12: {4, 1, 1, 0},
		13: {4, 1, 1, 0},
		14: {4, 1, 1, 1},
		15: {5, 1, 1, 1},
		16: {5, 1, 1, 1},
		17: {5, 1, 1, 1},
		18: {6, 1, 1, 1},
		19: {6, 1, 1, 1},
		20: {7, 1, 1, 1},
	}
	for n, want := range expect {
		roles, err := Compose(n, Options{})
		if err != nil {
			t.Fatalf("Compose(%d): %v", n, err)
		}
		if len(roles) != n {
			t.Fatalf("Compose(%d) returned %d roles", n, len(roles))
		}
		got := countRoles(roles)
		if mafiaTeamCount(got) != want[0] {
			t.Errorf("n=%d mafia = %d, want %d", n, mafiaTeamCount(got), want[0])
		}
		if got[Doctor] != want[1] {
			t.Errorf("n=%d doctors = %d, want %d", n, got[Doctor], want[1])
		}
		if got[Detective] != want[2] {
			t.Errorf("n=%d detectives = %d, want %d", n, got[Detective], want[2])
		}
		if got[Bodyguard] != want[3] {
			t.Errorf("n=%d bodyguards = %d, want %d", n, got[Bodyguard], want[3])
		}
		if got[Vigilante] != 0 {
			t.Errorf("n=%d vigilante present without the option", n)
		}
	}
}

func TestComposeVigilanteTakesVillagerSlot(t *testing.T) {
	base, _ := Compose(12, Options{})
	withVig, _ := Compose(12, Options{EnableVigilante: true})
	b, v := countRoles(base), countRoles(withVig)
	if v[Vigilante] != 1 {
		t.Fatalf("vigilantes = %d, want 1", v[Vigilante])
	}
	if v[Villager] != b[Villager]-1 {
		t.Errorf("villagers = %d, want %d", v[Villager], b[Villager]-1)
	}
	// Below 10 players the vigilante slot does not exist.
	small, _ := Compose(9, Options{EnableVigilante: true})
	if countRoles(small)[Vigilante] != 0 {
		t.Error("vigilante appeared below its minimum count")
	}
}

func TestComposeJesterGate(t *testing.T) {
	small, _ := Compose(7, Options{EnableJester: true})
	if countRoles(small)[Jester] != 0 {
		t.Error("jester appeared below 8 players")
	}
	big, _ := Compose(8, Options{EnableJester: true})
	got := countRoles(big)
	if got[Jester] != 1 {
		t.Fatalf("jesters = %d, want 1", got[Jester])
	}
	if got[Villager] != 3 {
		t.Errorf("villagers = %d, want 3 after jester replacement", got[Villager])
	}
}

func TestComposeGodfatherPromotion(t *testing.T) {
	// With only two mafia slots at 8 players the don outranks the mafioso.
	roles, _ := Compose(8, Options{EnableGodfather: true})
	got := countRoles(roles)
	if got[Godfather] != 1 || got[Don] != 1 || got[Mafioso] != 0 || got[Mafia] != 0 {
		t.Errorf("8-player godfather game = %v, want godfather + don", got)
	}
	// A third slot at 9 players brings the mafioso back.
	nine, _ := Compose(9, Options{EnableGodfather: true})
	g9 := countRoles(nine)
	if g9[Godfather] != 1 || g9[Don] != 1 || g9[Mafioso] != 1 {
		t.Errorf("9-player godfather game = %v, want godfather + don + mafioso", g9)
	}
	// Single-mafia games get a lone godfather with no mafioso.
	solo, _ := Compose(5, Options{EnableGodfather: true})
	g := countRoles(solo)
	if g[Godfather] != 1 || g[Mafioso] != 0 {
		t.Errorf("5-player godfather game = %v, want lone godfather", g)
	}
	if mafiaTeamCount(g) != 1 {
		t.Errorf("promotion changed mafia team size: %v", g)
	}
}

func TestComposeDonAndHealer(t *testing.T) {
	roles, _ := Compose(9, Options{})
	got := countRoles(roles)
	if got[Don] != 1 {
		t.Errorf("don = %d at 9 players, want 1", got[Don])
	}
	if got[MafiaHealer] != 1 {
		t.Errorf("healer = %d with 3 mafia, want 1", got[MafiaHealer])
	}
	if got[Mafia] != 1 {
		t.Errorf("plain mafia = %d, want 1", got[Mafia])
	}
	// At 8 players mafia is 2: a don, but no healer yet.
	small, _ := Compose(8, Options{})
	s := countRoles(small)
	if s[Don] != 1 || s[Mafia] != 1 || s[MafiaHealer] != 0 {
		t.Errorf("8-player mafia slots = %v, want don + plain mafia", s)
	}
	// At 7 the don gate is not met.
	seven, _ := Compose(7, Options{})
	if countRoles(seven)[Don] != 0 {
		t.Errorf("7-player game = %v, want no don", countRoles(seven))
	}
}

func TestComposeOptionalSpecialGates(t *testing.T) {
	cases := []struct {
		n    int
		r    Role
		opts Options
		want int
	}{
		{6, Mayor, Options{EnableMayor: true}, 0},
		{7, Mayor, Options{EnableMayor: true}, 1},
		{7, SerialKiller, Options{EnableSerialKiller: true}, 0},
		{8, SerialKiller, Options{EnableSerialKiller: true}, 1},
		{8, Jailor, Options{EnableJailor: true}, 0},
		{9, Jailor, Options{EnableJailor: true}, 1},
		{8, Spy, Options{EnableSpy: true}, 0},
		{9, Spy, Options{EnableSpy: true}, 1},
		{9, Arsonist, Options{EnableArsonist: true}, 0},
		{10, Arsonist, Options{EnableArsonist: true}, 1},
		{10, Silencer, Options{EnableSilencer: true}, 0},
		{11, Silencer, Options{EnableSilencer: true}, 1},
		{11, CultLeader, Options{EnableCultLeader: true}, 0},
		{12, CultLeader, Options{EnableCultLeader: true}, 1},
	}
	for _, c := range cases {
		roles, err := Compose(c.n, c.opts)
		if err != nil {
			t.Fatalf("Compose(%d): %v", c.n, err)
		}
		if got := countRoles(roles)[c.r]; got != c.want {
			t.Errorf("n=%d %s = %d, want %d", c.n, c.r, got, c.want)
		}
	}
}

func TestComposeKeepsOneVillager(t *testing.T) {
	all := Options{
		EnableVigilante:    true,
		EnableGodfather:    true,
		EnableJester:       true,
		EnableMayor:        true,
		EnableSerialKiller: true,
		EnableJailor:       true,
		EnableSpy:          true,
		EnableArsonist:     true,
		EnableSilencer:     true,
		EnableCultLeader:   true,
	}
	for n := 3; n <= 25; n++ {
		roles, err := Compose(n, all)
		if err != nil {
			t.Fatalf("Compose(%d): %v", n, err)
		}
		if len(roles) != n {
			t.Fatalf("Compose(%d) returned %d roles", n, len(roles))
		}
		if n >= 4 && countRoles(roles)[Villager] < 1 {
			t.Errorf("n=%d left no plain villager: %v", n, countRoles(roles))
		}
	}
}

func TestComposeScalingFormula(t *testing.T) {
	roles, err := Compose(30, Options{})
	if err != nil {
		t.Fatal(err)
	}
	got := countRoles(roles)
	if mafiaTeamCount(got) != 11 { // ceil(0.35 * 30)
		t.Errorf("mafia = %d, want 11", mafiaTeamCount(got))
	}
	if got[Doctor] != 2 || got[Detective] != 2 { // ceil(30/15)
		t.Errorf("doctors=%d detectives=%d, want 2 each", got[Doctor], got[Detective])
	}
	if got[Bodyguard] != 1 {
		t.Errorf("bodyguards = %d, want 1", got[Bodyguard])
	}
}

func TestComposeDeterministic(t *testing.T) {
	o := Options{EnableGodfather: true, EnableJester: true, EnableVigilante: true}
	a, _ := Compose(14, o)
	b, _ := Compose(14, o)
	if len(a) != len(b) {
		t.Fatal("lengths differ")
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("slot %d: %s vs %s", i, a[i], b[i])
		}
	}
}

func TestComposeTooFew(t *testing.T) {
	if _, err := Compose(2, Options{}); err == nil {
		t.Error("expected error below 3 players")
	}
}
