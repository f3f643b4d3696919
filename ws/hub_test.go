package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"crashd/auth"
	"crashd/domain/apperr"
	"crashd/domain/entities"
	"crashd/game"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEngine struct {
	snapshot game.Snapshot
	betAck   *game.BetAck
	betErr   error
	cashAck  *game.CashoutAck
	cashErr  error

	mu     sync.Mutex
	closed []game.SessionInfo
}

func (s *stubEngine) PlaceBet(ctx context.Context, session game.SessionInfo, amount, autoCashout int64) (*game.BetAck, error) {
	return s.betAck, s.betErr
}

func (s *stubEngine) Cashout(ctx context.Context, session game.SessionInfo) (*game.CashoutAck, error) {
	return s.cashAck, s.cashErr
}

func (s *stubEngine) Snapshot() game.Snapshot { return s.snapshot }

func (s *stubEngine) SessionClosed(session game.SessionInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = append(s.closed, session)
}

func (s *stubEngine) closedSessions() []game.SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]game.SessionInfo(nil), s.closed...)
}

type stubAuthenticator struct{}

func (stubAuthenticator) Authenticate(token string) (*auth.Identity, error) {
	if token == "good-token" {
		return &auth.Identity{UserID: 7, Username: "alice", Role: entities.RolePlayer}, nil
	}
	return nil, apperr.New(apperr.Unauthenticated, "invalid or expired token")
}

func newTestServer(t *testing.T, engine *stubEngine) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub()
	balance := func(ctx context.Context, userID int64) (int64, error) { return 5000, nil }
	handler := NewHandler(hub, engine, stubAuthenticator{}, balance, 10000, []string{"*"})
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	t.Cleanup(hub.CloseAll)
	return hub, server
}

func dial(t *testing.T, server *httptest.Server, query string, header http.Header) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + query
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame map[string]any
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

// readUntil skips frames until one of the wanted type arrives
func readUntil(t *testing.T, conn *websocket.Conn, frameType string) map[string]any {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		frame := readFrame(t, conn)
		if frame["type"] == frameType {
			return frame
		}
	}
	t.Fatalf("no %q frame received", frameType)
	return nil
}

func TestHandler_GuestHandshake(t *testing.T) {
	engine := &stubEngine{snapshot: game.Snapshot{Phase: game.PhaseBetting, Countdown: 5}}
	hub, server := newTestServer(t, engine)

	conn := dial(t, server, "", nil)

	connected := readFrame(t, conn)
	assert.Equal(t, "connected", connected["type"])
	assert.Equal(t, false, connected["authenticated"])
	assert.Equal(t, float64(10000), connected["balance"])
	assert.NotEmpty(t, connected["sessionId"])

	state := readFrame(t, conn)
	assert.Equal(t, "gameState", state["type"])
	assert.Equal(t, "betting", state["phase"])

	require.Eventually(t, func() bool { return hub.Len() == 1 }, time.Second, 10*time.Millisecond)
}

func TestHandler_TokenHandshake(t *testing.T) {
	engine := &stubEngine{}
	_, server := newTestServer(t, engine)

	t.Run("query parameter", func(t *testing.T) {
		conn := dial(t, server, "?token=good-token", nil)
		connected := readFrame(t, conn)
		assert.Equal(t, true, connected["authenticated"])
		assert.Equal(t, "alice", connected["username"])
		assert.Equal(t, float64(5000), connected["balance"])
	})

	t.Run("invalid token downgrades to guest", func(t *testing.T) {
		conn := dial(t, server, "?token=bad-token", nil)
		connected := readFrame(t, conn)
		assert.Equal(t, false, connected["authenticated"])
	})

	t.Run("subprotocol", func(t *testing.T) {
		header := http.Header{"Sec-WebSocket-Protocol": []string{"bearer.good-token"}}
		conn := dial(t, server, "", header)
		connected := readFrame(t, conn)
		assert.Equal(t, true, connected["authenticated"])
	})
}

func TestClient_Actions(t *testing.T) {
	t.Run("bet is acked with the new balance", func(t *testing.T) {
		engine := &stubEngine{betAck: &game.BetAck{WagerID: 99, Balance: 9000}}
		_, server := newTestServer(t, engine)
		conn := dial(t, server, "?token=good-token", nil)
		readFrame(t, conn) // connected
		readFrame(t, conn) // gameState

		require.NoError(t, conn.WriteJSON(map[string]any{"type": "bet", "amount": 1000}))
		ack := readUntil(t, conn, "betPlaced")
		assert.Equal(t, float64(9000), ack["balance"])
		assert.Equal(t, float64(99), ack["wagerId"])
	})

	t.Run("rejected bet returns an error frame", func(t *testing.T) {
		engine := &stubEngine{betErr: apperr.New(apperr.InsufficientFunds, "insufficient balance")}
		_, server := newTestServer(t, engine)
		conn := dial(t, server, "", nil)
		readFrame(t, conn)
		readFrame(t, conn)

		require.NoError(t, conn.WriteJSON(map[string]any{"type": "bet", "amount": 1000}))
		errFrame := readUntil(t, conn, "error")
		assert.Equal(t, "insufficient_funds", errFrame["code"])
		assert.Equal(t, "insufficient balance", errFrame["message"])
	})

	t.Run("cashout is acked", func(t *testing.T) {
		engine := &stubEngine{cashAck: &game.CashoutAck{Multiplier: 150, Payout: 1500, Balance: 10500}}
		_, server := newTestServer(t, engine)
		conn := dial(t, server, "", nil)
		readFrame(t, conn)
		readFrame(t, conn)

		require.NoError(t, conn.WriteJSON(map[string]any{"type": "cashOut"}))
		ack := readUntil(t, conn, "cashedOut")
		assert.Equal(t, float64(150), ack["multiplier"])
		assert.Equal(t, float64(10500), ack["balance"])
	})

	t.Run("ping pongs", func(t *testing.T) {
		engine := &stubEngine{}
		_, server := newTestServer(t, engine)
		conn := dial(t, server, "", nil)
		readFrame(t, conn)
		readFrame(t, conn)

		require.NoError(t, conn.WriteJSON(map[string]any{"type": "ping"}))
		readUntil(t, conn, "pong")
	})

	t.Run("malformed and unknown messages are rejected", func(t *testing.T) {
		engine := &stubEngine{}
		_, server := newTestServer(t, engine)
		conn := dial(t, server, "", nil)
		readFrame(t, conn)
		readFrame(t, conn)

		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
		errFrame := readUntil(t, conn, "error")
		assert.Equal(t, "invalid_argument", errFrame["code"])

		require.NoError(t, conn.WriteJSON(map[string]any{"type": "teleport"}))
		errFrame = readUntil(t, conn, "error")
		assert.Equal(t, "invalid_argument", errFrame["code"])
	})
}

func TestHub_Broadcasts(t *testing.T) {
	engine := &stubEngine{}
	hub, server := newTestServer(t, engine)

	guest := dial(t, server, "", nil)
	user := dial(t, server, "?token=good-token", nil)
	for _, conn := range []*websocket.Conn{guest, user} {
		readFrame(t, conn)
		readFrame(t, conn)
	}
	require.Eventually(t, func() bool { return hub.Len() == 2 }, time.Second, 10*time.Millisecond)

	t.Run("state reaches every session, overlay only the wager owner", func(t *testing.T) {
		hub.BroadcastState(game.Snapshot{
			Phase:      game.PhaseRunning,
			Multiplier: 150,
			Wagers: []game.LiveWager{
				{SessionKey: "user:7", Username: "alice", Amount: 1000},
			},
		})

		state := readUntil(t, guest, "gameState")
		assert.Equal(t, "gameState", state["type"])
		assert.Equal(t, float64(2), state["players"], "every state frame carries the session count")

		readUntil(t, user, "gameState")
		overlay := readUntil(t, user, "playerOverlay")
		wager := overlay["wager"].(map[string]any)
		assert.Equal(t, float64(1000), wager["amount"])
	})

	t.Run("bet and cashout notices reach every session", func(t *testing.T) {
		hub.BroadcastBetPlaced(game.BetNotice{Username: "alice", Amount: 500})
		assert.Equal(t, "alice", readUntil(t, guest, "betPlaced")["username"])
		assert.Equal(t, "alice", readUntil(t, user, "betPlaced")["username"])

		hub.BroadcastCashedOut(game.CashoutNotice{Username: "alice", Multiplier: 150, Payout: 750})
		assert.Equal(t, float64(750), readUntil(t, guest, "cashedOut")["payout"])
	})
}

func TestHub_ReplacesDuplicateIdentity(t *testing.T) {
	engine := &stubEngine{}
	hub, server := newTestServer(t, engine)

	first := dial(t, server, "?token=good-token", nil)
	readFrame(t, first)
	readFrame(t, first)

	second := dial(t, server, "?token=good-token", nil)
	readFrame(t, second)
	readFrame(t, second)

	// The first connection is closed by the replacement
	first.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := first.ReadMessage(); err != nil {
			break
		}
	}
	require.Eventually(t, func() bool { return hub.Len() == 1 }, 2*time.Second, 10*time.Millisecond)
}

// A session whose buffer fills up gets closed by a terminal frame while it is
// still registered; every later broadcast must treat it as a no-op.
func TestHub_LaggingSessionClosedMidBroadcast(t *testing.T) {
	hub := NewHub()
	lagging := newClient(hub, &stubEngine{}, nil, "lagging", game.SessionInfo{Key: "user:7", UserID: 7, Username: "alice"})
	hub.register(lagging)

	// No write pump is draining, so the buffer fills completely
	filler := marshalFrame(pongFrame{Type: framePong})
	for i := 0; i < sendBufferSize; i++ {
		lagging.trySend(filler, sendDroppable)
	}

	// The terminal frame cannot be queued and closes the session. It stays
	// registered until its read pump unwinds.
	hub.BroadcastBetPlaced(game.BetNotice{Username: "bob", Amount: 100})

	require.NotPanics(t, func() {
		hub.BroadcastState(game.Snapshot{Phase: game.PhaseRunning, Multiplier: 150})
		hub.BroadcastCashedOut(game.CashoutNotice{Username: "bob", Multiplier: 150, Payout: 150})
	})
}

func TestHub_ReplacedSessionSafeToBroadcast(t *testing.T) {
	hub := NewHub()
	engine := &stubEngine{}
	first := newClient(hub, engine, nil, "s1", game.SessionInfo{Key: "user:7", UserID: 7})
	second := newClient(hub, engine, nil, "s2", game.SessionInfo{Key: "user:7", UserID: 7})

	hub.register(first)
	// Replacing closes the first connection while it is still registered
	// under its session id
	hub.register(second)

	require.NotPanics(t, func() {
		hub.BroadcastState(game.Snapshot{Phase: game.PhaseBetting, Countdown: 5})
	})
}

// Tick frames may be dropped for a lagging session, but a frame that changes
// the phase displaces queued state instead, and never closes the connection.
func TestClient_PhaseChangeSurvivesFullBuffer(t *testing.T) {
	hub := NewHub()
	c := newClient(hub, &stubEngine{}, nil, "s1", game.SessionInfo{Key: "guest:x", Guest: true})
	hub.register(c)

	hub.BroadcastState(game.Snapshot{Phase: game.PhaseBetting, Countdown: 5})
	for i := 0; i < sendBufferSize+10; i++ {
		hub.BroadcastState(game.Snapshot{Phase: game.PhaseRunning, Multiplier: int64(100 + i)})
	}
	hub.BroadcastState(game.Snapshot{Phase: game.PhaseCrashed, Multiplier: 250, CrashPoint: 250})

	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	require.False(t, closed, "a phase change must not close a lagging session")

	var sawCrash bool
drain:
	for {
		select {
		case frame := <-c.send:
			var decoded struct {
				Type  string     `json:"type"`
				Phase game.Phase `json:"phase"`
			}
			require.NoError(t, json.Unmarshal(frame, &decoded))
			if decoded.Phase == game.PhaseCrashed {
				sawCrash = true
			}
		default:
			break drain
		}
	}
	assert.True(t, sawCrash, "the crash transition must survive buffer pressure")
}

func TestClient_RateLimitWarningOncePerWindow(t *testing.T) {
	c := newClient(NewHub(), &stubEngine{}, nil, "s1", game.SessionInfo{Key: "guest:x", Guest: true})

	now := time.Now()
	assert.True(t, c.shouldWarn(now))
	assert.False(t, c.shouldWarn(now.Add(200*time.Millisecond)))
	assert.False(t, c.shouldWarn(now.Add(warnInterval-time.Millisecond)))
	assert.True(t, c.shouldWarn(now.Add(warnInterval)))
}

func TestClient_GuestSessionReleasedOnDisconnect(t *testing.T) {
	engine := &stubEngine{}
	_, server := newTestServer(t, engine)

	conn := dial(t, server, "", nil)
	readFrame(t, conn) // connected
	readFrame(t, conn) // gameState
	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool {
		closed := engine.closedSessions()
		return len(closed) == 1 && closed[0].Guest
	}, 2*time.Second, 10*time.Millisecond)
}
