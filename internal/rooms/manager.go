// Package rooms is the room manager: lifecycle, membership, host transfer,
// reconnection grace and the wiring between transport, dispatcher and the
// game engine. Rooms run in parallel; everything inside one room is
// serialized on its command loop.
package rooms

import (
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/outfoxed-dev/mafia-server/internal/config"
	"github.com/outfoxed-dev/mafia-server/internal/dispatch"
	"github.com/outfoxed-dev/mafia-server/internal/domain/room"
	"github.com/outfoxed-dev/mafia-server/internal/engine"
	"github.com/outfoxed-dev/mafia-server/internal/platform/clock"
	"github.com/outfoxed-dev/mafia-server/internal/platform/logger"
	"github.com/outfoxed-dev/mafia-server/internal/platform/metrics"
	"github.com/outfoxed-dev/mafia-server/internal/platform/random"
	"github.com/outfoxed-dev/mafia-server/internal/protocol"
)

// codeAttempts is how many 6-char allocations are tried before widening.
const codeAttempts = 16

// roomState bundles everything owned by one room loop.
type roomState struct {
	room *room.Room
	loop *Loop
	disp *dispatch.Dispatcher
	game *engine.Game

	evictions    map[string]clock.Timer
	destroyTimer clock.Timer
}

// Manager indexes rooms by id and join code and mediates every intent.
type Manager struct {
	cfg      config.Config
	log      *logger.Logger
	metrics  *metrics.Collector
	clk      clock.Clock
	rng      *random.Source
	recorder engine.Recorder

	mu     sync.RWMutex
	byID   map[string]*roomState
	byCode map[string]*roomState
}

// NewManager builds an empty manager.
func NewManager(cfg config.Config, log *logger.Logger, mc *metrics.Collector, clk clock.Clock, rng *random.Source, rec engine.Recorder) *Manager {
	return &Manager{
		cfg:      cfg,
		log:      log,
		metrics:  mc,
		clk:      clk,
		rng:      rng,
		recorder: rec,
		byID:     make(map[string]*roomState),
		byCode:   make(map[string]*roomState),
	}
}

// NormalizeCode uppercases and trims a join code as typed by a user.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (m *Manager) lookup(code string) (*roomState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.byCode[NormalizeCode(code)]
	if !ok {
		return nil, protocol.NewError(protocol.ErrRoomNotFound, "no room with code %s", NormalizeCode(code))
	}
	return st, nil
}

// allocateCode draws join codes until one is free. After codeAttempts
// collisions the code widens by one character.
func (m *Manager) allocateCode() (string, error) {
	for attempt := 0; attempt <= codeAttempts; attempt++ {
		length := room.CodeLength
		if attempt == codeAttempts {
			length++
		}
		code := m.rng.Code(length)
		if _, taken := m.byCode[code]; !taken {
			return code, nil
		}
	}
	return "", protocol.NewError(protocol.ErrInternal, "code space exhausted")
}

// CreateRoom allocates a room with the caller as host.
func (m *Manager) CreateRoom(hostID, hostName, hostAvatar, name string, visibility room.Visibility, settings *room.Settings, conn dispatch.Conn) (RoomView, error) {
	if !room.ValidUsername(hostName) {
		return RoomView{}, protocol.NewError(protocol.ErrInvalidName, "invalid username")
	}
	s := room.DefaultSettings()
	if settings != nil {
		s = *settings
	}
	s.MaxPlayers = clamp(s.MaxPlayers, m.cfg.MinPlayers, m.cfg.MaxPlayers)
	s.MinPlayers = clamp(s.MinPlayers, m.cfg.MinPlayers, s.MaxPlayers)
	if err := s.Validate(m.cfg.MinPlayers, m.cfg.MaxPlayers); err != nil {
		return RoomView{}, protocol.NewError(protocol.ErrInvalidName, "invalid settings: %v", err)
	}

	m.mu.Lock()
	code, err := m.allocateCode()
	if err != nil {
		m.mu.Unlock()
		return RoomView{}, err
	}
	r, err := room.New(uuid.NewString(), code, name, visibility,
		room.Player{ID: hostID, Username: hostName, Avatar: hostAvatar}, s, m.clk.Now())
	if err != nil {
		m.mu.Unlock()
		return RoomView{}, protocol.NewError(protocol.ErrInvalidName, "invalid room name")
	}
	st := &roomState{
		room:      r,
		loop:      NewLoop(m.cfg.SendQueueSize),
		disp:      dispatch.New(code, m.cfg.PublicChatBuffer, m.cfg.MafiaChatBuffer, m.log, m.metrics),
		evictions: make(map[string]clock.Timer),
	}
	m.byID[r.ID] = st
	m.byCode[code] = st
	m.mu.Unlock()

	m.metrics.RoomsActive.Inc()
	m.log.Info("room created", "room", code, "host", hostID)

	var view RoomView
	st.loop.Run(func() {
		st.disp.SetView(dispatch.LobbyView{IDs: []string{hostID}})
		st.disp.SetOverflowHandler(func(playerID string) {
			// Runs on this loop, inside a dispatch.
			m.handleDisconnectLocked(st, playerID)
		})
		if conn != nil {
			st.disp.Attach(hostID, conn)
		}
		view = viewOf(r)
	})
	return view, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// JoinRoom adds a player, or reconnects them when they already hold a seat.
func (m *Manager) JoinRoom(code, userID, username, avatar string, conn dispatch.Conn) (view RoomView, isReconnect bool, err error) {
	st, lerr := m.lookup(code)
	if lerr != nil {
		return RoomView{}, false, lerr
	}
	st.loop.Run(func() {
		r := st.room
		if _, member := r.Player(userID); member {
			isReconnect = true
			m.reconnectLocked(st, userID, conn)
			view = viewOf(r)
			return
		}
		if !room.ValidUsername(username) {
			err = protocol.NewError(protocol.ErrInvalidName, "invalid username")
			return
		}
		if r.IsGameActive {
			err = protocol.NewError(protocol.ErrRoomInGame, "game already running")
			return
		}
		if addErr := r.AddPlayer(room.Player{ID: userID, Username: username, Avatar: avatar}, m.clk.Now()); addErr != nil {
			err = mapRoomErr(addErr)
			return
		}
		m.cancelDestroyLocked(st)
		st.disp.SetView(dispatch.LobbyView{IDs: memberIDs(r)})
		st.disp.Attach(userID, conn)

		p, _ := r.Player(userID)
		st.disp.Dispatch(dispatch.Event{
			Type:     protocol.EventRoomPlayerJoined,
			Payload:  p.PublicView(),
			Audience: dispatch.ToAll(),
		})
		st.disp.Dispatch(dispatch.Event{
			Type:     protocol.EventRoomUpdated,
			Payload:  viewOf(r),
			Audience: dispatch.ToAll(),
		})
		m.systemChatLocked(st, username+" joined the room")
		view = viewOf(r)
	})
	return view, isReconnect, err
}

func mapRoomErr(err error) error {
	switch err {
	case room.ErrRoomFull:
		return protocol.NewError(protocol.ErrRoomFull, "room is full")
	case room.ErrGameInProgress:
		return protocol.NewError(protocol.ErrRoomInGame, "game already running")
	case room.ErrNotMember:
		return protocol.NewError(protocol.ErrRoomNotFound, "not a member")
	default:
		return protocol.NewError(protocol.ErrInternal, "%v", err)
	}
}

func memberIDs(r *room.Room) []string {
	ids := make([]string, 0, r.Len())
	for _, p := range r.Players() {
		ids = append(ids, p.ID)
	}
	return ids
}

// reconnectLocked restores a seat: cancel eviction, attach, snapshot.
func (m *Manager) reconnectLocked(st *roomState, userID string, conn dispatch.Conn) {
	r := st.room
	if t, ok := st.evictions[userID]; ok {
		t.Stop()
		delete(st.evictions, userID)
	}
	r.Reconnect(userID)
	if conn != nil {
		st.disp.Attach(userID, conn)
	}
	st.disp.Dispatch(dispatch.Event{
		Type:     protocol.EventPlayerReconnected,
		Payload:  protocol.PlayerIDPayload{PlayerID: userID},
		Audience: dispatch.ToAll(),
	})

	// Reconnect snapshot: room state, then game state, then chat replay.
	st.disp.SendDirect(userID, protocol.Message{
		Type:    protocol.EventRoomUpdated,
		Payload: protocol.MustMarshal(viewOf(r)),
	})
	if st.game != nil && !st.game.Over() {
		st.game.SnapshotFor(userID)
	}
	st.disp.ReplayChat(userID)
	m.log.Info("player reconnected", "room", r.Code, "player", userID)
}

// LeaveRoom removes a player voluntarily.
func (m *Manager) LeaveRoom(code, userID string) error {
	st, err := m.lookup(code)
	if err != nil {
		return err
	}
	var out error
	st.loop.Run(func() {
		out = m.removePlayerLocked(st, userID, protocol.EventRoomPlayerLeft)
	})
	return out
}

// removePlayerLocked is the shared core of leave, kick and grace eviction.
func (m *Manager) removePlayerLocked(st *roomState, userID string, eventType string) error {
	r := st.room
	p, ok := r.Player(userID)
	if !ok {
		return protocol.NewError(protocol.ErrRoomNotFound, "not a member")
	}
	username := p.Username

	if t, ok := st.evictions[userID]; ok {
		t.Stop()
		delete(st.evictions, userID)
	}
	if st.game != nil && !st.game.Over() {
		st.game.PlayerLeft(userID)
	}

	newHost, err := r.RemovePlayer(userID)
	if err != nil {
		return mapRoomErr(err)
	}
	st.disp.Dispatch(dispatch.Event{
		Type:     protocol.EventRoomPlayerLeft,
		Payload:  protocol.PlayerIDPayload{PlayerID: userID},
		Audience: dispatch.ToAll(),
	})
	if eventType == protocol.EventRoomPlayerKicked {
		st.disp.Dispatch(dispatch.Event{
			Type:     protocol.EventRoomPlayerKicked,
			Payload:  protocol.PlayerIDPayload{PlayerID: userID},
			Audience: dispatch.ToAll(),
		})
	}
	st.disp.Detach(userID, nil)
	if st.game == nil || st.game.Over() {
		st.disp.SetView(dispatch.LobbyView{IDs: memberIDs(r)})
	}

	m.systemChatLocked(st, username+" left the room")
	if newHost != "" {
		m.systemChatLocked(st, "host changed")
	}
	st.disp.Dispatch(dispatch.Event{
		Type:     protocol.EventRoomUpdated,
		Payload:  viewOf(r),
		Audience: dispatch.ToAll(),
	})

	if r.IsEmpty() {
		m.scheduleDestroyLocked(st)
	}
	m.log.Info("player left", "room", r.Code, "player", userID)
	return nil
}

// KickPlayer forcibly removes a target. Host only, lobby only.
func (m *Manager) KickPlayer(code, byID, targetID string) error {
	st, err := m.lookup(code)
	if err != nil {
		return err
	}
	var out error
	st.loop.Run(func() {
		r := st.room
		if r.HostID != byID {
			out = protocol.NewError(protocol.ErrNotAuthorized, "host only")
			return
		}
		if r.IsGameActive {
			out = protocol.NewError(protocol.ErrRoomInGame, "use a removal vote during a game")
			return
		}
		if byID == targetID {
			out = protocol.NewError(protocol.ErrInvalidTarget, "cannot kick yourself")
			return
		}
		out = m.removePlayerLocked(st, targetID, protocol.EventRoomPlayerKicked)
	})
	return out
}

// UpdateSettings applies a host's settings patch before a game.
func (m *Manager) UpdateSettings(code, byID string, s room.Settings) error {
	st, err := m.lookup(code)
	if err != nil {
		return err
	}
	var out error
	st.loop.Run(func() {
		r := st.room
		if r.HostID != byID {
			out = protocol.NewError(protocol.ErrNotAuthorized, "host only")
			return
		}
		if r.IsGameActive {
			out = protocol.NewError(protocol.ErrRoomInGame, "settings are frozen during a game")
			return
		}
		if r.Len() > s.MaxPlayers {
			out = protocol.NewError(protocol.ErrTooManyPlayers, "capacity below current member count")
			return
		}
		if err := s.Validate(m.cfg.MinPlayers, m.cfg.MaxPlayers); err != nil {
			out = protocol.NewError(protocol.ErrInvalidName, "invalid settings: %v", err)
			return
		}
		r.Settings = s
		st.disp.Dispatch(dispatch.Event{
			Type:     protocol.EventRoomUpdated,
			Payload:  viewOf(r),
			Audience: dispatch.ToAll(),
		})
	})
	return out
}

// ListPublicRooms snapshots the joinable public rooms.
func (m *Manager) ListPublicRooms() []ListedRoom {
	m.mu.RLock()
	states := make([]*roomState, 0, len(m.byID))
	for _, st := range m.byID {
		states = append(states, st)
	}
	m.mu.RUnlock()

	out := []ListedRoom{}
	for _, st := range states {
		st.loop.Run(func() {
			r := st.room
			if r.Visibility == room.VisibilityPublic && !r.IsGameActive && !r.IsEmpty() {
				out = append(out, ListedRoom{
					Code:       r.Code,
					Name:       r.Name,
					Players:    r.Len(),
					MaxPlayers: r.Settings.MaxPlayers,
				})
			}
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// StartGame begins the game. Host only.
func (m *Manager) StartGame(code, byID string) error {
	st, err := m.lookup(code)
	if err != nil {
		return err
	}
	var out error
	st.loop.Run(func() {
		r := st.room
		if r.HostID != byID {
			out = protocol.NewError(protocol.ErrNotAuthorized, "host only")
			return
		}
		if r.IsGameActive {
			out = protocol.NewError(protocol.ErrRoomInGame, "game already running")
			return
		}

		seats := make([]engine.Seat, 0, r.Len())
		for _, p := range r.Players() {
			seats = append(seats, engine.Seat{ID: p.ID, Username: p.Username})
		}
		g := engine.New(r.ID, r.Code, seats, r.Settings, engine.Deps{
			Log:      m.log,
			Metrics:  m.metrics,
			Clock:    m.clk,
			RNG:      m.rng,
			Dispatch: st.disp,
			Post: func(f func()) {
				st.loop.Post(f)
			},
			Recorder: m.recorder,
			OnGameOver: func() {
				// Runs on this loop.
				r.IsGameActive = false
				st.disp.SetView(dispatch.LobbyView{IDs: memberIDs(r)})
				st.disp.Dispatch(dispatch.Event{
					Type:     protocol.EventRoomUpdated,
					Payload:  viewOf(r),
					Audience: dispatch.ToAll(),
				})
			},
		}, func(id string) bool { return st.disp.Connected(id) })

		if startErr := g.Start(); startErr != nil {
			out = startErr
			return
		}
		st.game = g
		r.IsGameActive = true
	})
	return out
}

// NightAction forwards a night submission to the room's game.
func (m *Manager) NightAction(code, userID, targetID string) error {
	return m.withGame(code, func(g *engine.Game) error {
		return g.HandleNightAction(userID, targetID)
	})
}

// CastVote forwards a day vote.
func (m *Manager) CastVote(code, userID, targetID string) error {
	return m.withGame(code, func(g *engine.Game) error {
		return g.HandleVote(userID, targetID)
	})
}

// RequestRemoval starts a host removal vote.
func (m *Manager) RequestRemoval(code, byID, targetID string) error {
	st, err := m.lookup(code)
	if err != nil {
		return err
	}
	var out error
	st.loop.Run(func() {
		if st.room.HostID != byID {
			out = protocol.NewError(protocol.ErrNotAuthorized, "host only")
			return
		}
		if st.game == nil || st.game.Over() {
			out = protocol.NewError(protocol.ErrInvalidPhase, "no game running")
			return
		}
		out = st.game.HandleRemovalRequest(targetID)
	})
	return out
}

func (m *Manager) withGame(code string, f func(*engine.Game) error) error {
	st, err := m.lookup(code)
	if err != nil {
		return err
	}
	var out error
	st.loop.Run(func() {
		if st.game == nil || st.game.Over() {
			out = protocol.NewError(protocol.ErrInvalidPhase, "no game running")
			return
		}
		out = f(st.game)
	})
	return out
}

// HandleDisconnect marks a player disconnected and schedules grace
// eviction. The conn argument guards against a stale pump racing a fresh
// connection.
func (m *Manager) HandleDisconnect(code, userID string, conn dispatch.Conn) {
	st, err := m.lookup(code)
	if err != nil {
		return
	}
	st.loop.Run(func() {
		if conn != nil && !st.disp.ConnectedWith(userID, conn) {
			// A stale pump from a replaced connection; ignore.
			return
		}
		st.disp.Detach(userID, conn)
		m.handleDisconnectLocked(st, userID)
	})
}

func (m *Manager) handleDisconnectLocked(st *roomState, userID string) {
	r := st.room
	if _, ok := r.Player(userID); !ok {
		return
	}
	r.MarkDisconnected(userID, m.clk.Now())
	st.disp.Dispatch(dispatch.Event{
		Type:     protocol.EventPlayerDisconnected,
		Payload:  protocol.PlayerIDPayload{PlayerID: userID},
		Audience: dispatch.ToAll(),
	})

	grace := m.cfg.LobbyDisconnectGrace
	if r.IsGameActive {
		grace = m.cfg.InGameDisconnectGrace
	}
	if t, ok := st.evictions[userID]; ok {
		t.Stop()
	}
	st.evictions[userID] = m.clk.AfterFunc(grace, func() {
		st.loop.Post(func() {
			p, ok := st.room.Player(userID)
			if !ok || p.IsConnected {
				return
			}
			delete(st.evictions, userID)
			_ = m.removePlayerLocked(st, userID, protocol.EventRoomPlayerLeft)
		})
	})
	m.log.Info("player disconnected", "room", r.Code, "player", userID, "grace", grace.String())
}

// scheduleDestroyLocked arms the empty-room destruction grace.
func (m *Manager) scheduleDestroyLocked(st *roomState) {
	if st.destroyTimer != nil {
		st.destroyTimer.Stop()
	}
	st.destroyTimer = m.clk.AfterFunc(m.cfg.EmptyRoomGrace, func() {
		m.destroyRoom(st)
	})
}

func (m *Manager) cancelDestroyLocked(st *roomState) {
	if st.destroyTimer != nil {
		st.destroyTimer.Stop()
		st.destroyTimer = nil
	}
}

// destroyRoom tears a room down: cancels timers, stops the game, closes the
// loop and drops the indexes.
func (m *Manager) destroyRoom(st *roomState) {
	kept := false
	st.loop.Run(func() {
		if !st.room.IsEmpty() {
			// A join raced the grace timer; the room lives on.
			kept = true
			return
		}
		if st.game != nil {
			st.game.Stop()
			st.game = nil
		}
		for id, t := range st.evictions {
			t.Stop()
			delete(st.evictions, id)
		}
	})
	if kept {
		return
	}

	m.mu.Lock()
	if _, present := m.byID[st.room.ID]; !present {
		m.mu.Unlock()
		return
	}
	delete(m.byID, st.room.ID)
	delete(m.byCode, st.room.Code)
	m.mu.Unlock()

	st.loop.Close()
	m.metrics.RoomsActive.Dec()
	m.log.Info("room destroyed", "room", st.room.Code)
}

// Shutdown closes every room loop. Used on server exit.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	states := make([]*roomState, 0, len(m.byID))
	for _, st := range m.byID {
		states = append(states, st)
	}
	m.byID = make(map[string]*roomState)
	m.byCode = make(map[string]*roomState)
	m.mu.Unlock()

	for _, st := range states {
		st.loop.Run(func() {
			if st.game != nil && !st.game.Over() {
				st.game.Abort("server shutting down")
			}
		})
		st.loop.Close()
	}
}

// systemChatLocked appends a SYSTEM line to the public ring and broadcasts.
func (m *Manager) systemChatLocked(st *roomState, content string) {
	msg := protocol.ChatMessage{
		ID:          uuid.NewString(),
		RoomID:      st.room.ID,
		Content:     content,
		Kind:        protocol.ChatKindSystem,
		TimestampMs: m.clk.Now().UnixMilli(),
	}
	st.disp.RecordPublicChat(msg)
	st.disp.Dispatch(dispatch.Event{
		Type:     protocol.EventDayChat,
		Payload:  msg,
		Audience: dispatch.ToAll(),
	})
}

// DayChat validates and routes a public chat line. Dead players talk only
// to the dead; silenced players are rejected for the day.
func (m *Manager) DayChat(code, userID, content string) error {
	st, err := m.lookup(code)
	if err != nil {
		return err
	}
	var out error
	st.loop.Run(func() {
		r := st.room
		p, ok := r.Player(userID)
		if !ok {
			out = protocol.NewError(protocol.ErrRoomNotFound, "not a member")
			return
		}
		content = strings.TrimSpace(content)
		if n := utf8.RuneCountInString(content); n < 1 || n > 500 {
			out = protocol.NewError(protocol.ErrInvalidName, "message length out of range")
			return
		}

		audience := dispatch.ToAll()
		if st.game != nil && !st.game.Over() {
			switch {
			case !st.game.IsAlive(userID):
				audience = dispatch.ToDead()
			case st.game.IsSilenced(userID):
				out = protocol.NewError(protocol.ErrInvalidPhase, "you are silenced today")
				return
			case engine.IsNightPhase(st.game.Phase()):
				out = protocol.NewError(protocol.ErrInvalidPhase, "the town sleeps at night")
				return
			}
		}

		msg := protocol.ChatMessage{
			ID:             uuid.NewString(),
			RoomID:         r.ID,
			SenderID:       userID,
			SenderUsername: p.Username,
			Content:        content,
			Kind:           protocol.ChatKindPlayer,
			TimestampMs:    m.clk.Now().UnixMilli(),
		}
		if audience.Kind == dispatch.AudienceAll {
			st.disp.RecordPublicChat(msg)
		}
		st.disp.Dispatch(dispatch.Event{Type: protocol.EventDayChat, Payload: msg, Audience: audience})
	})
	return out
}

// MafiaChat routes a mafia-team message during a game.
func (m *Manager) MafiaChat(code, userID, content string) error {
	st, err := m.lookup(code)
	if err != nil {
		return err
	}
	var out error
	st.loop.Run(func() {
		r := st.room
		p, ok := r.Player(userID)
		if !ok {
			out = protocol.NewError(protocol.ErrRoomNotFound, "not a member")
			return
		}
		if st.game == nil || st.game.Over() || !st.game.IsMafiaTeam(userID) {
			out = protocol.NewError(protocol.ErrNotAuthorized, "mafia chat is team-only")
			return
		}
		content = strings.TrimSpace(content)
		if n := utf8.RuneCountInString(content); n < 1 || n > 500 {
			out = protocol.NewError(protocol.ErrInvalidName, "message length out of range")
			return
		}
		msg := protocol.ChatMessage{
			ID:             uuid.NewString(),
			RoomID:         r.ID,
			SenderID:       userID,
			SenderUsername: p.Username,
			Content:        content,
			Kind:           protocol.ChatKindMafia,
			TimestampMs:    m.clk.Now().UnixMilli(),
		}
		st.disp.RecordMafiaChat(msg)
		st.disp.Dispatch(dispatch.Event{Type: protocol.EventMafiaChat, Payload: msg, Audience: dispatch.ToMafia()})
	})
	return out
}

// RoomCount is the number of live rooms.
func (m *Manager) RoomCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byID)
}
