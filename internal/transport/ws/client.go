// Package ws is the WebSocket transport. Each connection gets a Client with
// a read pump feeding intents to the room manager and a write pump draining
// a bounded send queue. The Client is the dispatch.Conn the rest of the
// server talks to; a full send queue disconnects the client rather than
// blocking a room loop.
package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/outfoxed-dev/mafia-server/internal/auth"
	"github.com/outfoxed-dev/mafia-server/internal/platform/logger"
	"github.com/outfoxed-dev/mafia-server/internal/platform/metrics"
	"github.com/outfoxed-dev/mafia-server/internal/protocol"
	"github.com/outfoxed-dev/mafia-server/internal/rooms"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from peer.
	maxMessageSize = 4096
)

// Client is one player's connection.
type Client struct {
	conn     *websocket.Conn
	send     chan protocol.Message
	done     chan struct{}
	doneOnce sync.Once

	identity auth.Identity
	limiter  *rate.Limiter

	// roomCode is the room this connection is attached to. Only the read
	// pump goroutine touches it.
	roomCode string

	manager *rooms.Manager
	log     *logger.Logger
	metrics *metrics.Collector
}

// NewClient wraps an upgraded connection.
func NewClient(conn *websocket.Conn, id auth.Identity, mgr *rooms.Manager, queueSize int, intentRate float64, intentBurst int, log *logger.Logger, mc *metrics.Collector) *Client {
	return &Client{
		conn:     conn,
		send:     make(chan protocol.Message, queueSize),
		done:     make(chan struct{}),
		identity: id,
		limiter:  rate.NewLimiter(rate.Limit(intentRate), intentBurst),
		manager:  mgr,
		log:      log.With("player", id.UserID),
		metrics:  mc,
	}
}

// Send enqueues a message without blocking. Reports false when the queue is
// full; the dispatcher then drops this connection.
func (c *Client) Send(msg protocol.Message) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.doneOnce.Do(func() { close(c.done) })
}

// ReadPump pumps intents from the connection into the room manager. It owns
// connection teardown: on exit the player is marked disconnected.
func (c *Client) ReadPump() {
	defer func() {
		if c.roomCode != "" {
			c.manager.HandleDisconnect(c.roomCode, c.identity.UserID, c)
		}
		c.close()
		c.conn.Close()
		c.metrics.ConnectionsActive.Dec()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.log.Warn("read error", "err", err)
			}
			return
		}

		var msg protocol.Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.sendError(msg.CorrelationID, protocol.NewError(protocol.ErrInternal, "malformed message"))
			continue
		}
		c.handleIntent(msg)
	}
}

// WritePump drains the send queue to the connection and keeps the peer alive
// with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) sendError(correlationID string, err error) {
	body := protocol.Body(err)
	c.Send(protocol.Message{
		Type:          protocol.EventError,
		Payload:       protocol.MustMarshal(body),
		CorrelationID: correlationID,
	})
}
