package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"crashd/domain/apperr"
	"crashd/game"
	"crashd/infrastructure/observability"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 15 * time.Second
	maxMessageSize = 1024
	sendBufferSize = 64

	// Inbound message budget per session
	inboundRate  = 10
	inboundBurst = 20

	// A throttled session is warned at most once per interval, not once per
	// rejected message.
	warnInterval = time.Second
)

// sendMode decides what happens to a frame when the session's buffer is full
type sendMode int

const (
	// sendDroppable frames are discarded under buffer pressure
	sendDroppable sendMode = iota
	// sendPreserved frames evict the oldest queued frame to make room; the
	// connection stays open
	sendPreserved
	// sendTerminal frames close a connection that cannot absorb them
	sendTerminal
)

// Client is one connected session: a read pump forwarding actions to the
// engine and a write pump draining the send buffer.
type Client struct {
	hub       *Hub
	engine    GameEngine
	conn      *websocket.Conn
	sessionID string
	session   game.SessionInfo
	limiter   *rate.Limiter
	log       *logrus.Entry

	mu       sync.Mutex
	send     chan []byte
	closed   bool
	dropped  int
	lastWarn time.Time
}

func newClient(hub *Hub, engine GameEngine, conn *websocket.Conn, sessionID string, session game.SessionInfo) *Client {
	return &Client{
		hub:       hub,
		engine:    engine,
		conn:      conn,
		sessionID: sessionID,
		session:   session,
		limiter:   rate.NewLimiter(inboundRate, inboundBurst),
		log:       logrus.WithFields(logrus.Fields{"component": "ws", "session": sessionID}),
		send:      make(chan []byte, sendBufferSize),
	}
}

// trySend queues a frame without blocking. The send channel is only ever
// closed under c.mu with the closed flag set, so a concurrent broadcast can
// never hit a closed channel.
func (c *Client) trySend(frame []byte, mode sendMode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- frame:
		return
	default:
	}

	c.dropped++
	observability.GetMetrics().RecordBroadcastDrop()
	switch mode {
	case sendPreserved:
		// Evict the oldest queued frame; the one being sent carries newer
		// state and must survive.
		select {
		case <-c.send:
		default:
		}
		select {
		case c.send <- frame:
		default:
		}
	case sendTerminal:
		c.closeLocked()
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

// closeLocked requires c.mu to be held
func (c *Client) closeLocked() {
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// shouldWarn reports whether a throttled message warrants a warning frame.
// Only called from the read pump, at most once per warnInterval.
func (c *Client) shouldWarn(now time.Time) bool {
	if now.Sub(c.lastWarn) < warnInterval {
		return false
	}
	c.lastWarn = now
	return true
}

// readPump reads client messages until the connection drops. It runs on the
// connection's own goroutine; every action is forwarded to the engine and
// the reply written back as a frame.
func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.hub.unregister(c)
		c.engine.SessionClosed(c.session)
		c.close()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.WithError(err).Debug("Connection closed unexpectedly")
			}
			return
		}

		if !c.limiter.Allow() {
			if c.shouldWarn(time.Now()) {
				c.trySend(marshalFrame(warningFrame{Type: frameWarning, Message: "slow down"}), sendDroppable)
			}
			continue
		}

		var msg inboundEnvelope
		if err := json.Unmarshal(data, &msg); err != nil {
			c.sendError(apperr.New(apperr.InvalidArgument, "malformed message"))
			continue
		}
		c.handleMessage(ctx, msg)
	}
}

func (c *Client) handleMessage(ctx context.Context, msg inboundEnvelope) {
	switch msg.Type {
	case inboundBet:
		ack, err := c.engine.PlaceBet(ctx, c.session, msg.Amount, msg.AutoCashout)
		if err != nil {
			c.sendError(err)
			return
		}
		c.trySend(marshalFrame(betPlacedFrame{
			Type:     frameBetPlaced,
			Username: c.session.Username,
			Amount:   msg.Amount,
			Balance:  &ack.Balance,
			WagerID:  ack.WagerID,
		}), sendTerminal)

	case inboundCashout:
		ack, err := c.engine.Cashout(ctx, c.session)
		if err != nil {
			c.sendError(err)
			return
		}
		c.trySend(marshalFrame(cashedOutFrame{
			Type:       frameCashedOut,
			Username:   c.session.Username,
			Multiplier: ack.Multiplier,
			Payout:     ack.Payout,
			Balance:    &ack.Balance,
		}), sendTerminal)

	case inboundPing:
		c.trySend(marshalFrame(pongFrame{Type: framePong}), sendDroppable)

	default:
		c.sendError(apperr.Newf(apperr.InvalidArgument, "unknown message type %q", msg.Type))
	}
}

func (c *Client) sendError(err error) {
	c.trySend(marshalFrame(errorFrame{
		Type:    frameError,
		Code:    string(apperr.KindOf(err)),
		Message: apperr.MessageOf(err),
	}), sendTerminal)
}

// writePump drains the send buffer and keeps the connection alive with
// pings. Closing the send channel terminates it.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
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
