package ws

import (
	"encoding/json"

	"github.com/outfoxed-dev/mafia-server/internal/domain/room"
	"github.com/outfoxed-dev/mafia-server/internal/protocol"
	"github.com/outfoxed-dev/mafia-server/internal/rooms"
)

// handleIntent routes one client frame. Runs on the read pump goroutine.
func (c *Client) handleIntent(msg protocol.Message) {
	c.metrics.IntentsIn.WithLabelValues(msg.Type).Inc()
	if !c.limiter.Allow() {
		c.metrics.IntentsDropped.Inc()
		c.sendError(msg.CorrelationID, protocol.NewError(protocol.ErrRateLimited, "slow down"))
		return
	}

	switch msg.Type {
	case protocol.IntentRoomCreate:
		c.handleRoomCreate(msg)
	case protocol.IntentRoomJoin:
		c.handleRoomJoin(msg)
	case protocol.IntentReconnect:
		c.handleReconnect(msg)
	case protocol.IntentRoomLeave:
		c.handleRoomLeave(msg)
	case protocol.IntentRoomKick:
		c.handleTargeted(msg, func(code, target string) error {
			return c.manager.KickPlayer(code, c.identity.UserID, target)
		})
	case protocol.IntentRoomSettings:
		c.handleSettings(msg)
	case protocol.IntentGameStart:
		var p protocol.RoomCodePayload
		if !c.decode(msg, &p) {
			return
		}
		c.ack(msg.CorrelationID, nil, c.manager.StartGame(p.Code, c.identity.UserID))
	case protocol.IntentNightAction:
		c.handleTargeted(msg, func(code, target string) error {
			return c.manager.NightAction(code, c.identity.UserID, target)
		})
	case protocol.IntentVoteCast:
		c.handleTargeted(msg, func(code, target string) error {
			return c.manager.CastVote(code, c.identity.UserID, target)
		})
	case protocol.IntentRemovalRequest:
		c.handleTargeted(msg, func(code, target string) error {
			return c.manager.RequestRemoval(code, c.identity.UserID, target)
		})
	case protocol.IntentDayChat:
		c.handleChat(msg, c.manager.DayChat)
	case protocol.IntentMafiaChat:
		c.handleChat(msg, c.manager.MafiaChat)
	default:
		c.sendError(msg.CorrelationID, protocol.NewError(protocol.ErrInternal, "unknown intent %q", msg.Type))
	}
}

func (c *Client) handleRoomCreate(msg protocol.Message) {
	var p protocol.RoomCreatePayload
	if !c.decode(msg, &p) {
		return
	}
	var settings *room.Settings
	if len(p.Settings) > 0 {
		s := room.DefaultSettings()
		if err := json.Unmarshal(p.Settings, &s); err != nil {
			c.ack(msg.CorrelationID, nil, protocol.NewError(protocol.ErrInvalidName, "malformed settings"))
			return
		}
		settings = &s
	}
	visibility := room.VisibilityPublic
	if p.Visibility == string(room.VisibilityPrivate) {
		visibility = room.VisibilityPrivate
	}

	view, err := c.manager.CreateRoom(c.identity.UserID, c.identity.Username, p.Avatar, p.Name, visibility, settings, c)
	if err == nil {
		c.roomCode = view.Code
		c.ack(msg.CorrelationID, view, nil)
		return
	}
	c.ack(msg.CorrelationID, nil, err)
}

func (c *Client) handleRoomJoin(msg protocol.Message) {
	var p protocol.RoomJoinPayload
	if !c.decode(msg, &p) {
		return
	}
	username := c.identity.Username
	if p.Username != "" {
		username = p.Username
	}
	view, _, err := c.manager.JoinRoom(p.Code, c.identity.UserID, username, p.Avatar, c)
	if err == nil {
		c.roomCode = view.Code
		c.ack(msg.CorrelationID, view, nil)
		return
	}
	c.ack(msg.CorrelationID, nil, err)
}

// handleReconnect reclaims an existing seat after a drop. The manager treats
// a join by a current member as a reconnect and replays the snapshot.
func (c *Client) handleReconnect(msg protocol.Message) {
	var p protocol.RoomCodePayload
	if !c.decode(msg, &p) {
		return
	}
	view, _, err := c.manager.JoinRoom(p.Code, c.identity.UserID, c.identity.Username, "", c)
	if err == nil {
		c.roomCode = view.Code
		c.ack(msg.CorrelationID, view, nil)
		return
	}
	c.ack(msg.CorrelationID, nil, err)
}

func (c *Client) handleRoomLeave(msg protocol.Message) {
	var p protocol.RoomCodePayload
	if !c.decode(msg, &p) {
		return
	}
	err := c.manager.LeaveRoom(p.Code, c.identity.UserID)
	if err == nil && rooms.NormalizeCode(p.Code) == c.roomCode {
		c.roomCode = ""
	}
	c.ack(msg.CorrelationID, nil, err)
}

func (c *Client) handleSettings(msg protocol.Message) {
	var p protocol.RoomSettingsPayload
	if !c.decode(msg, &p) {
		return
	}
	s := room.DefaultSettings()
	if err := json.Unmarshal(p.Settings, &s); err != nil {
		c.ack(msg.CorrelationID, nil, protocol.NewError(protocol.ErrInvalidName, "malformed settings"))
		return
	}
	c.ack(msg.CorrelationID, nil, c.manager.UpdateSettings(p.Code, c.identity.UserID, s))
}

func (c *Client) handleTargeted(msg protocol.Message, f func(code, target string) error) {
	var p protocol.RoomTargetPayload
	if !c.decode(msg, &p) {
		return
	}
	c.ack(msg.CorrelationID, nil, f(p.Code, p.TargetID))
}

func (c *Client) handleChat(msg protocol.Message, f func(code, userID, content string) error) {
	var p protocol.ChatPayload
	if !c.decode(msg, &p) {
		return
	}
	c.ack(msg.CorrelationID, nil, f(p.Code, c.identity.UserID, p.Content))
}

func (c *Client) decode(msg protocol.Message, v interface{}) bool {
	if err := json.Unmarshal(msg.Payload, v); err != nil {
		c.sendError(msg.CorrelationID, protocol.NewError(protocol.ErrInternal, "malformed %s payload", msg.Type))
		return false
	}
	return true
}

// ack answers a correlated intent. Intents sent without a correlation id get
// no success reply, only error events.
func (c *Client) ack(correlationID string, roomView interface{}, err error) {
	if err != nil {
		c.sendError(correlationID, err)
		return
	}
	if correlationID == "" {
		return
	}
	c.Send(protocol.Message{
		Type:          protocol.EventAck,
		Payload:       protocol.MustMarshal(protocol.Ack{Success: true, Room: roomView}),
		CorrelationID: correlationID,
	})
}
