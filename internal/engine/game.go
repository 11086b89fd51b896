// Package engine is the authoritative game state machine. One Game exists
// per active room and is driven exclusively from that room's command loop:
// intents arrive as method calls on the loop, timer callbacks re-enter
// through the loop via Deps.Post. The engine itself does no locking and no
// I/O beyond handing events to the dispatcher.
package engine

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/outfoxed-dev/mafia-server/internal/dispatch"
	"github.com/outfoxed-dev/mafia-server/internal/domain/role"
	"github.com/outfoxed-dev/mafia-server/internal/domain/room"
	"github.com/outfoxed-dev/mafia-server/internal/platform/clock"
	"github.com/outfoxed-dev/mafia-server/internal/platform/logger"
	"github.com/outfoxed-dev/mafia-server/internal/platform/metrics"
	"github.com/outfoxed-dev/mafia-server/internal/platform/random"
	"github.com/outfoxed-dev/mafia-server/internal/protocol"
)

// Seat is a participant at game start.
type Seat struct {
	ID       string
	Username string
}

// Death is one entry of the ordered death list.
type Death struct {
	PlayerID string
	Role     role.Role
	Cause    Cause
}

// Cause classifies how a player died.
type Cause string

const (
	CauseVote           Cause = "VOTE"
	CauseMafiaKill      Cause = "MAFIA_KILL"
	CauseVigilante      Cause = "VIGILANTE"
	CauseSerialKiller   Cause = "SERIAL_KILLER"
	CauseArsonist       Cause = "ARSONIST"
	CauseBodyguardTrade Cause = "BODYGUARD_TRADE"
	CauseLeave          Cause = "LEAVE"
)

// Winner labels for game end.
const (
	WinnerMafia        = "MAFIA_WINS"
	WinnerTown         = "TOWN_WINS"
	WinnerJester       = "JESTER_WINS"
	WinnerSerialKiller = "SERIAL_KILLER_WINS"
	WinnerDraw         = "DRAW"
)

// Record is the immutable summary handed to the persistence collaborator on
// game over.
type Record struct {
	GameID         string
	RoomID         string
	RoomCode       string
	Participants   []ParticipantRecord
	Winner         string
	WinningPlayers []string
	DayCount       int
	StartedAt      time.Time
	EndedAt        time.Time
}

type ParticipantRecord struct {
	PlayerID string
	Username string
	Role     role.Role
	Team     role.Team
}

// Recorder persists finished games. Failures are logged, never surfaced.
type Recorder interface {
	RecordGame(ctx context.Context, rec Record) error
}

// Deps are the engine's collaborators, all injected.
type Deps struct {
	Log      *logger.Logger
	Metrics  *metrics.Collector
	Clock    clock.Clock
	RNG      *random.Source
	Dispatch *dispatch.Dispatcher
	// Post enqueues a command on the owning room loop. Timer callbacks use
	// it so every mutation happens on the loop.
	Post     func(func())
	Recorder Recorder
	// OnGameOver runs on the room loop after the end event is dispatched.
	OnGameOver func()
}

// Game is the per-room state machine.
type Game struct {
	deps     Deps
	gameID   string
	roomID   string
	roomCode string
	settings room.Settings
	log      *logger.Logger

	seats []Seat
	roles map[string]role.Role
	teams map[string]role.Team

	alive map[string]struct{}
	dead  []Death

	phase     Phase
	dayNumber int

	// Countdown seconds. nightRemaining spans the whole pipeline while
	// roleRemaining belongs to the current stage.
	phaseRemaining int
	roleRemaining  int
	tick           clock.Timer

	night     *nightState
	doused    map[string]struct{}
	cult      map[string]struct{}
	silenced  map[string]struct{}
	vigShots  int
	deadByID  map[string]struct{}
	connected func(id string) bool

	votes          map[string]string
	voteCandidates []string
	removalTarget  string
	revoting       bool

	startedAt time.Time
	over      bool
}

// New builds a game for one room. Call Start to begin.
func New(roomID, roomCode string, seats []Seat, settings room.Settings, deps Deps, connected func(id string) bool) *Game {
	if connected == nil {
		connected = func(string) bool { return true }
	}
	return &Game{
		deps:      deps,
		roomID:    roomID,
		roomCode:  roomCode,
		settings:  settings,
		log:       deps.Log.With("room", roomCode),
		seats:     seats,
		roles:     make(map[string]role.Role),
		teams:     make(map[string]role.Team),
		alive:     make(map[string]struct{}),
		doused:    make(map[string]struct{}),
		cult:      make(map[string]struct{}),
		silenced:  make(map[string]struct{}),
		deadByID:  make(map[string]struct{}),
		connected: connected,
		phase:     PhaseLobby,
	}
}

// Start validates the player count, assigns roles and enters ROLE_REVEAL.
func (g *Game) Start() error {
	n := len(g.seats)
	if n < g.settings.MinPlayers {
		return protocol.NewError(protocol.ErrNotEnoughPlayers, "%d players, need at least %d", n, g.settings.MinPlayers)
	}
	if n > g.settings.MaxPlayers {
		return protocol.NewError(protocol.ErrTooManyPlayers, "%d players, cap is %d", n, g.settings.MaxPlayers)
	}

	composed, err := role.Compose(n, g.settings.Roles)
	if err != nil {
		return protocol.NewError(protocol.ErrInternal, "composition failed: %v", err)
	}

	// Fisher-Yates over the seat order, then assign by position.
	order := make([]Seat, n)
	copy(order, g.seats)
	g.deps.RNG.Shuffle(n, func(i, j int) { order[i], order[j] = order[j], order[i] })
	for i, seat := range order {
		g.roles[seat.ID] = composed[i]
		g.teams[seat.ID] = role.TeamOf(composed[i])
		g.alive[seat.ID] = struct{}{}
	}
	g.gameID = uuid.NewString()
	g.vigShots = 1
	g.startedAt = g.deps.Clock.Now()
	g.deps.Metrics.GamesActive.Inc()

	g.deps.Dispatch.SetView(g)
	g.deps.Dispatch.Dispatch(dispatch.Event{
		Type:     protocol.EventGameStarted,
		Payload:  g.statePayload(),
		Audience: dispatch.ToAll(),
	})
	for id := range g.roles {
		g.deps.Dispatch.Dispatch(dispatch.Event{
			Type:     protocol.EventGameRoleReveal,
			Payload:  g.roleRevealPayload(id),
			Audience: dispatch.ToPlayer(id),
		})
	}
	g.log.Info("game started", "players", n)

	g.enterPhase(PhaseRoleReveal)
	g.armTick()
	return nil
}

// Stop cancels the tick timer. Called on room destruction.
func (g *Game) Stop() {
	if g.tick != nil {
		g.tick.Stop()
		g.tick = nil
	}
	if !g.over {
		g.over = true
		g.deps.Metrics.GamesActive.Dec()
	}
}

// Over reports whether the game has terminated.
func (g *Game) Over() bool { return g.over }

// Phase returns the current phase.
func (g *Game) Phase() Phase { return g.phase }

// DayNumber returns the current day counter.
func (g *Game) DayNumber() int { return g.dayNumber }

// dispatch.View implementation. The audience of a running game is the
// initial seat set; players who die or disconnect keep receiving their
// audience's events.

func (g *Game) MemberIDs() []string {
	ids := make([]string, 0, len(g.seats))
	for _, s := range g.seats {
		ids = append(ids, s.ID)
	}
	return ids
}

func (g *Game) IsAlive(id string) bool {
	_, ok := g.alive[id]
	return ok
}

func (g *Game) IsMafiaTeam(id string) bool {
	return g.effectiveTeam(id) == role.TeamMafia
}

func (g *Game) RoleOf(id string) (role.Role, bool) {
	r, ok := g.roles[id]
	return r, ok
}

// effectiveTeam accounts for cult conversion. Role assignments stay
// immutable; conversion only moves the win-condition allegiance.
func (g *Game) effectiveTeam(id string) role.Team {
	if _, converted := g.cult[id]; converted {
		return role.TeamNeutral
	}
	return g.teams[id]
}

// IsSilenced reports whether the player lost today's chat and is announced
// as silenced.
func (g *Game) IsSilenced(id string) bool {
	_, ok := g.silenced[id]
	return ok
}

// roleRevealPayload is the private role card. Teammates are included for
// mafia members only.
func (g *Game) roleRevealPayload(id string) protocol.RoleRevealPayload {
	r := g.roles[id]
	p := protocol.RoleRevealPayload{Role: string(r), Team: string(g.teams[id])}
	if g.teams[id] == role.TeamMafia {
		for _, s := range g.seats {
			if s.ID != id && g.teams[s.ID] == role.TeamMafia {
				p.Teammates = append(p.Teammates, s.ID)
			}
		}
	}
	return p
}

// GameStatePayload is the public game view sent on start, reconnect and
// after every structural change.
type GameStatePayload struct {
	Phase      string                 `json:"phase"`
	DayNumber  int                    `json:"dayNumber"`
	PhaseTimer int                    `json:"phaseTimer"`
	RoleTimer  int                    `json:"roleTimer,omitempty"`
	Alive      []string               `json:"alive"`
	Dead       []protocol.DeathNotice `json:"dead"`
	Silenced   []string               `json:"silenced,omitempty"`
}

func (g *Game) statePayload() GameStatePayload {
	p := GameStatePayload{
		Phase:      string(g.phase),
		DayNumber:  g.dayNumber,
		PhaseTimer: g.phaseRemaining,
		RoleTimer:  g.roleRemaining,
		Alive:      g.aliveIDs(),
		Dead:       make([]protocol.DeathNotice, 0, len(g.dead)),
	}
	for _, d := range g.dead {
		n := protocol.DeathNotice{PlayerID: d.PlayerID, Cause: string(d.Cause)}
		if g.settings.RevealRoleOnDeath {
			n.Role = string(d.Role)
		}
		p.Dead = append(p.Dead, n)
	}
	for id := range g.silenced {
		p.Silenced = append(p.Silenced, id)
	}
	return p
}

// SnapshotFor replays the reconnect sequence for one player: private role
// card then the public state. Chat replay is the dispatcher's part.
func (g *Game) SnapshotFor(id string) {
	if _, ok := g.roles[id]; !ok {
		return
	}
	g.deps.Dispatch.SendDirect(id, protocol.Message{
		Type:    protocol.EventGameRoleReveal,
		Payload: protocol.MustMarshal(g.roleRevealPayload(id)),
	})
	g.deps.Dispatch.SendDirect(id, protocol.Message{
		Type:    protocol.EventGameStateUpdate,
		Payload: protocol.MustMarshal(g.statePayload()),
	})
}

func (g *Game) aliveIDs() []string {
	ids := make([]string, 0, len(g.alive))
	for _, s := range g.seats {
		if _, ok := g.alive[s.ID]; ok {
			ids = append(ids, s.ID)
		}
	}
	return ids
}

// livingWithRole returns living holders of any of the given roles.
func (g *Game) livingWithRole(roles ...role.Role) []string {
	var out []string
	for _, s := range g.seats {
		if !g.IsAlive(s.ID) {
			continue
		}
		for _, r := range roles {
			if g.roles[s.ID] == r {
				out = append(out, s.ID)
				break
			}
		}
	}
	return out
}

// armTick schedules the 1 Hz driver. The callback hops onto the room loop.
func (g *Game) armTick() {
	g.tick = g.deps.Clock.AfterFunc(time.Second, func() {
		g.deps.Post(g.onTick)
	})
}

func (g *Game) onTick() {
	if g.over {
		return
	}
	g.phaseRemaining--
	if IsNightPhase(g.phase) {
		g.roleRemaining--
	}
	g.emitTimers()

	switch {
	case IsNightPhase(g.phase) && g.phaseRemaining <= 0:
		// The whole night budget ran out; unsubmitted roles forfeit.
		g.resolveNight()
	case IsNightPhase(g.phase) && g.roleRemaining <= 0:
		g.advanceNightStage()
	case g.phaseRemaining <= 0:
		g.onPhaseExpiry()
	}
	if !g.over {
		g.armTick()
	}
}

func (g *Game) emitTimers() {
	g.deps.Dispatch.Dispatch(dispatch.Event{
		Type:     protocol.EventTimerUpdate,
		Payload:  protocol.TimerUpdatePayload{Remaining: g.phaseRemaining, Phase: string(g.phase)},
		Audience: dispatch.ToAll(),
	})
	if IsNightPhase(g.phase) {
		// The stage countdown is actionable only for the roles on duty.
		for _, r := range actingRoles(g.phase) {
			g.deps.Dispatch.Dispatch(dispatch.Event{
				Type:     protocol.EventTimerRoleSpecific,
				Payload:  protocol.RoleTimerPayload{Remaining: g.roleRemaining, ForRole: string(r)},
				Audience: dispatch.ToRole(r),
			})
		}
	}
}

// onPhaseExpiry advances the non-night phases.
func (g *Game) onPhaseExpiry() {
	switch g.phase {
	case PhaseRoleReveal:
		g.enterNight()
	case PhaseDayDiscussion:
		g.enterVoting(nil)
	case PhaseVoting:
		g.tallyVotes()
	case PhaseResolution:
		g.afterResolution()
	}
}

// enterPhase switches the phase and announces it. Action-required events
// follow the announcement, never precede it.
func (g *Game) enterPhase(p Phase) {
	g.phase = p
	g.phaseRemaining = g.phaseDuration(p)
	g.deps.Dispatch.Dispatch(dispatch.Event{
		Type: protocol.EventGamePhaseChange,
		Payload: protocol.PhaseChangePayload{
			Phase:     string(p),
			Timer:     g.phaseRemaining,
			DayNumber: g.dayNumber,
		},
		Audience: dispatch.ToAll(),
	})
}

func (g *Game) phaseDuration(p Phase) int {
	t := g.settings.Timers
	switch p {
	case PhaseRoleReveal:
		return t.RoleReveal
	case PhaseDayDiscussion:
		return t.DayDiscussion
	case PhaseVoting:
		if g.revoting {
			// A revote runs on half the configured timer.
			return t.Voting / 2
		}
		return t.Voting
	case PhaseResolution:
		return t.Resolution
	default:
		if IsNightPhase(p) {
			return t.NightTotal
		}
		return 0
	}
}

// endGame dispatches the end event, persists the record and tears down.
func (g *Game) endGame(winner string, winningPlayers []string) {
	if g.over {
		return
	}
	g.over = true
	if g.tick != nil {
		g.tick.Stop()
		g.tick = nil
	}
	g.phase = PhaseGameOver

	team := ""
	switch winner {
	case WinnerMafia:
		team = string(role.TeamMafia)
	case WinnerTown:
		team = string(role.TeamTown)
	case WinnerJester, WinnerSerialKiller:
		team = string(role.TeamNeutral)
	}
	g.deps.Dispatch.Dispatch(dispatch.Event{
		Type: protocol.EventGameEnd,
		Payload: protocol.GameEndPayload{
			Winner:         winner,
			WinningTeam:    team,
			WinningPlayers: winningPlayers,
		},
		Audience: dispatch.ToAll(),
	})

	ended := g.deps.Clock.Now()
	g.deps.Metrics.GamesActive.Dec()
	g.deps.Metrics.GamesCompleted.WithLabelValues(winner).Inc()
	g.deps.Metrics.GameDuration.Observe(ended.Sub(g.startedAt).Seconds())
	g.log.Info("game over", "winner", winner, "days", g.dayNumber)

	if g.deps.Recorder != nil {
		rec := Record{
			GameID:         g.gameID,
			RoomID:         g.roomID,
			RoomCode:       g.roomCode,
			Winner:         winner,
			WinningPlayers: winningPlayers,
			DayCount:       g.dayNumber,
			StartedAt:      g.startedAt,
			EndedAt:        ended,
		}
		for _, s := range g.seats {
			rec.Participants = append(rec.Participants, ParticipantRecord{
				PlayerID: s.ID,
				Username: s.Username,
				Role:     g.roles[s.ID],
				Team:     g.teams[s.ID],
			})
		}
		recorder, log := g.deps.Recorder, g.log
		go func() {
			if err := recorder.RecordGame(context.Background(), rec); err != nil {
				log.Error("game record write failed", "err", err)
			}
		}()
	}

	if g.deps.OnGameOver != nil {
		g.deps.OnGameOver()
	}
}

// Abort terminates the game as a draw after an internal failure or a server
// shutdown. The room survives; the game does not.
func (g *Game) Abort(reason string) {
	g.log.Error("aborting game", "reason", reason)
	g.deps.Dispatch.Dispatch(dispatch.Event{
		Type:     protocol.EventRoomError,
		Payload:  protocol.ErrorBody{Code: protocol.ErrInternal, Message: "game aborted: " + reason},
		Audience: dispatch.ToAll(),
	})
	g.endGame(WinnerDraw, nil)
}

// PlayerLeft marks a departing player dead with cause LEAVE and re-checks
// the win conditions.
func (g *Game) PlayerLeft(id string) {
	if g.over || !g.IsAlive(id) {
		return
	}
	g.kill(id, CauseLeave)
	g.deps.Dispatch.Dispatch(dispatch.Event{
		Type:     protocol.EventPlayerEliminated,
		Payload:  g.eliminatedPayload(id, CauseLeave),
		Audience: dispatch.ToAll(),
	})
	if winner, winners, over := g.evaluateWin(); over {
		g.endGame(winner, winners)
	}
}

func (g *Game) eliminatedPayload(id string, cause Cause) protocol.EliminatedPayload {
	p := protocol.EliminatedPayload{PlayerID: id, Reason: string(cause)}
	if g.settings.RevealRoleOnDeath {
		p.Role = string(g.roles[id])
	}
	return p
}

// kill moves a player from alive to the ordered death list.
func (g *Game) kill(id string, cause Cause) {
	if !g.IsAlive(id) {
		return
	}
	delete(g.alive, id)
	g.deadByID[id] = struct{}{}
	if g.votes != nil {
		delete(g.votes, id)
	}
	g.dead = append(g.dead, Death{PlayerID: id, Role: g.roles[id], Cause: cause})
}
