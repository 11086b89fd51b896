package dispatch

import (
	"github.com/outfoxed-dev/mafia-server/internal/platform/logger"
	"github.com/outfoxed-dev/mafia-server/internal/platform/metrics"
	"github.com/outfoxed-dev/mafia-server/internal/protocol"
)

// Conn is one recipient connection. Send must not block; it reports false
// when the outbound queue is full, which the dispatcher treats as fatal for
// that connection.
type Conn interface {
	Send(msg protocol.Message) bool
}

// Dispatcher routes events to the connections of one room. It is owned by
// the room's command loop and must only be touched from there.
type Dispatcher struct {
	roomCode string
	conns    map[string]Conn
	view     View

	publicChat *ChatRing
	mafiaChat  *ChatRing

	// onOverflow is called after a connection's queue overflowed and the
	// connection was dropped from the routing table.
	onOverflow func(playerID string)

	log     *logger.Logger
	metrics *metrics.Collector
}

// New creates a dispatcher for one room.
func New(roomCode string, publicCap, mafiaCap int, log *logger.Logger, mc *metrics.Collector) *Dispatcher {
	return &Dispatcher{
		roomCode:   roomCode,
		conns:      make(map[string]Conn),
		view:       LobbyView{},
		publicChat: NewChatRing(publicCap),
		mafiaChat:  NewChatRing(mafiaCap),
		log:        log.With("room", roomCode),
		metrics:    mc,
	}
}

// SetView installs the audience view. The engine swaps in its game view at
// start and the lobby view is restored when the game ends.
func (d *Dispatcher) SetView(v View) { d.view = v }

// SetOverflowHandler registers the queue-overflow callback.
func (d *Dispatcher) SetOverflowHandler(f func(playerID string)) { d.onOverflow = f }

// Attach registers a player's connection, replacing any previous one.
func (d *Dispatcher) Attach(playerID string, c Conn) {
	d.conns[playerID] = c
}

// Detach removes a player's connection if it is still the registered one.
// A nil conn detaches unconditionally.
func (d *Dispatcher) Detach(playerID string, c Conn) {
	if c == nil {
		delete(d.conns, playerID)
		return
	}
	if cur, ok := d.conns[playerID]; ok && cur == c {
		delete(d.conns, playerID)
	}
}

// Connected reports whether the player has a registered connection.
func (d *Dispatcher) Connected(playerID string) bool {
	_, ok := d.conns[playerID]
	return ok
}

// ConnectedWith reports whether c is the player's registered connection.
func (d *Dispatcher) ConnectedWith(playerID string, c Conn) bool {
	cur, ok := d.conns[playerID]
	return ok && cur == c
}

// Dispatch routes one event to its audience.
func (d *Dispatcher) Dispatch(ev Event) {
	msg := protocol.Message{Type: ev.Type, Payload: protocol.MustMarshal(ev.Payload)}
	for _, id := range d.recipients(ev.Audience) {
		d.sendTo(id, msg)
	}
}

// SendDirect delivers a prebuilt message to one player, bypassing audience
// resolution. Used for acks and reconnect snapshots.
func (d *Dispatcher) SendDirect(playerID string, msg protocol.Message) {
	d.sendTo(playerID, msg)
}

func (d *Dispatcher) sendTo(id string, msg protocol.Message) {
	c, ok := d.conns[id]
	if !ok {
		return
	}
	if !c.Send(msg) {
		delete(d.conns, id)
		d.metrics.EventsDropped.Inc()
		d.log.Warn("send queue overflow, dropping connection", "player", id, "eventType", msg.Type)
		if d.onOverflow != nil {
			d.onOverflow(id)
		}
		return
	}
	d.metrics.EventsOut.Inc()
}

func (d *Dispatcher) recipients(a Audience) []string {
	members := d.view.MemberIDs()
	switch a.Kind {
	case AudienceAll:
		return members
	case AudienceAlive:
		return filter(members, d.view.IsAlive)
	case AudienceDead:
		return filter(members, func(id string) bool { return !d.view.IsAlive(id) })
	case AudienceMafia:
		return filter(members, d.view.IsMafiaTeam)
	case AudienceRole:
		return filter(members, func(id string) bool {
			r, ok := d.view.RoleOf(id)
			return ok && r == a.Role
		})
	case AudiencePlayer:
		if _, ok := d.conns[a.PlayerID]; ok {
			return []string{a.PlayerID}
		}
		return nil
	}
	return nil
}

func filter(ids []string, keep func(string) bool) []string {
	out := ids[:0:0]
	for _, id := range ids {
		if keep(id) {
			out = append(out, id)
		}
	}
	return out
}

// RecordPublicChat appends to the public ring. Returns false on duplicate id.
func (d *Dispatcher) RecordPublicChat(m protocol.ChatMessage) bool {
	return d.publicChat.Append(m)
}

// RecordMafiaChat appends to the mafia ring. Returns false on duplicate id.
func (d *Dispatcher) RecordMafiaChat(m protocol.ChatMessage) bool {
	return d.mafiaChat.Append(m)
}

// ReplayChat sends the public ring, and the mafia ring when the player is on
// the mafia team, to one player. Part of the reconnect snapshot.
func (d *Dispatcher) ReplayChat(playerID string) {
	for _, m := range d.publicChat.Snapshot() {
		d.sendTo(playerID, protocol.Message{Type: protocol.EventDayChat, Payload: protocol.MustMarshal(m)})
	}
	if d.view.IsMafiaTeam(playerID) {
		for _, m := range d.mafiaChat.Snapshot() {
			d.sendTo(playerID, protocol.Message{Type: protocol.EventMafiaChat, Payload: protocol.MustMarshal(m)})
		}
	}
}
