// Package ws is the broadcast fabric: it fans engine state out to connected
// sessions and forwards client actions to the engine. The engine never sees
// individual connections.
package ws

import (
	"context"
	"sync"

	"crashd/game"
	"crashd/infrastructure/observability"

	"github.com/sirupsen/logrus"
)

// GameEngine is the hub's view of the round engine
type GameEngine interface {
	PlaceBet(ctx context.Context, session game.SessionInfo, amount, autoCashout int64) (*game.BetAck, error)
	Cashout(ctx context.Context, session game.SessionInfo) (*game.CashoutAck, error)
	Snapshot() game.Snapshot
	SessionClosed(session game.SessionInfo)
}

// Hub tracks connected sessions and implements the engine's Broadcaster.
// Broadcast methods never block: a session that cannot keep up has state
// frames dropped rather than stalling the engine.
type Hub struct {
	log *logrus.Entry

	mu        sync.RWMutex
	sessions  map[string]*Client // by session id
	byKey     map[string]*Client // by arbiter key, one connection per identity
	lastPhase game.Phase
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{
		log:      logrus.WithField("component", "ws"),
		sessions: make(map[string]*Client),
		byKey:    make(map[string]*Client),
	}
}

// register adds a client, replacing any previous connection with the same
// arbiter key. The replaced connection is closed.
func (h *Hub) register(c *Client) {
	h.mu.Lock()
	previous := h.byKey[c.session.Key]
	h.sessions[c.sessionID] = c
	h.byKey[c.session.Key] = c
	h.mu.Unlock()

	if previous != nil && previous != c {
		previous.close()
		h.log.WithField("key", c.session.Key).Debug("Replaced existing session")
	}
	observability.GetMetrics().UpdateWSConnections(1)
}

// unregister drops a client if it is still the registered connection
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	_, present := h.sessions[c.sessionID]
	delete(h.sessions, c.sessionID)
	if h.byKey[c.session.Key] == c {
		delete(h.byKey, c.session.Key)
	}
	h.mu.Unlock()

	if present {
		observability.GetMetrics().UpdateWSConnections(-1)
	}
}

// Len returns the number of connected sessions
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// BroadcastState sends the public state to every session, then a personal
// overlay to each session with a live wager in it. Per-tick frames are
// droppable for lagging sessions; frames that change the phase displace older
// queued state so every session sees each transition.
func (h *Hub) BroadcastState(snapshot game.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()

	snapshot.Players = len(h.sessions)
	mode := sendDroppable
	if snapshot.Phase != h.lastPhase {
		mode = sendPreserved
	}
	h.lastPhase = snapshot.Phase

	public := marshalFrame(gameStateFrame{Type: frameGameState, Snapshot: snapshot})
	for _, c := range h.sessions {
		c.trySend(public, mode)
	}
	for _, w := range snapshot.Wagers {
		if c, ok := h.byKey[w.SessionKey]; ok {
			c.trySend(marshalFrame(playerOverlayFrame{
				Type: framePlayerOverlay,
				Wager: overlayWager{
					Amount:     w.Amount,
					CashedOut:  w.CashedOut,
					Multiplier: w.Multiplier,
					Payout:     w.Payout,
				},
			}), sendDroppable)
		}
	}
}

// BroadcastBetPlaced announces an accepted wager to every session
func (h *Hub) BroadcastBetPlaced(notice game.BetNotice) {
	frame := marshalFrame(betPlacedFrame{Type: frameBetPlaced, Username: notice.Username, Amount: notice.Amount})
	h.broadcast(frame)
}

// BroadcastCashedOut announces a cashout to every session
func (h *Hub) BroadcastCashedOut(notice game.CashoutNotice) {
	frame := marshalFrame(cashedOutFrame{
		Type:       frameCashedOut,
		Username:   notice.Username,
		Multiplier: notice.Multiplier,
		Payout:     notice.Payout,
	})
	h.broadcast(frame)
}

// broadcast sends a terminal frame to every session. Terminal frames queue
// even when the buffer is under pressure.
func (h *Hub) broadcast(frame []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.sessions {
		c.trySend(frame, sendTerminal)
	}
}

// CloseAll disconnects every session, used during shutdown
func (h *Hub) CloseAll() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.sessions))
	for _, c := range h.sessions {
		clients = append(clients, c)
	}
	h.sessions = make(map[string]*Client)
	h.byKey = make(map[string]*Client)
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
}
