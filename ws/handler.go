package ws

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"crashd/auth"
	"crashd/game"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Authenticator validates access tokens for the handshake
type Authenticator interface {
	Authenticate(accessToken string) (*auth.Identity, error)
}

// BalanceLoader fetches the current balance for an authenticated user so
// the connected frame can carry it.
type BalanceLoader func(ctx context.Context, userID int64) (int64, error)

// Handler upgrades HTTP requests into game sessions. A valid bearer token
// binds the session to its user; anonymous callers get a guest session with
// a virtual balance.
type Handler struct {
	hub           *Hub
	engine        GameEngine
	authenticator Authenticator
	loadBalance   BalanceLoader
	guestBalance  int64
	upgrader      websocket.Upgrader
}

// NewHandler creates a websocket handler. allowedOrigins empty means
// same-origin only.
func NewHandler(hub *Hub, engine GameEngine, authenticator Authenticator, loadBalance BalanceLoader, guestBalance int64, allowedOrigins []string) *Handler {
	h := &Handler{
		hub:           hub,
		engine:        engine,
		authenticator: authenticator,
		loadBalance:   loadBalance,
		guestBalance:  guestBalance,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token, fromSubprotocol := bearerToken(r)

	var responseHeader http.Header
	if fromSubprotocol != "" {
		responseHeader = http.Header{"Sec-WebSocket-Protocol": []string{fromSubprotocol}}
	}
	conn, err := h.upgrader.Upgrade(w, r, responseHeader)
	if err != nil {
		logrus.WithError(err).Debug("Websocket upgrade failed")
		return
	}

	sessionID := uuid.NewString()
	session := game.SessionInfo{
		Key:      "guest:" + sessionID,
		Username: "guest-" + sessionID[:8],
		Guest:    true,
	}
	balance := h.guestBalance

	if token != "" {
		identity, err := h.authenticator.Authenticate(token)
		if err != nil {
			// A bad token downgrades to guest rather than dropping the
			// connection; the client sees it in the connected frame.
			logrus.WithError(err).Debug("Handshake token rejected, continuing as guest")
		} else {
			session = game.SessionInfo{
				Key:      fmt.Sprintf("user:%d", identity.UserID),
				UserID:   identity.UserID,
				Username: identity.Username,
			}
			if h.loadBalance != nil {
				if b, err := h.loadBalance(r.Context(), identity.UserID); err == nil {
					balance = b
				}
			}
		}
	}

	client := newClient(h.hub, h.engine, conn, sessionID, session)
	h.hub.register(client)

	client.trySend(marshalFrame(connectedFrame{
		Type:          frameConnected,
		SessionID:     sessionID,
		Authenticated: !session.Guest,
		Username:      session.Username,
		Balance:       balance,
	}), sendTerminal)

	snapshot := h.engine.Snapshot()
	snapshot.Players = h.hub.Len()
	client.trySend(marshalFrame(gameStateFrame{Type: frameGameState, Snapshot: snapshot}), sendTerminal)

	go client.writePump()
	go client.readPump(context.Background())
}

// bearerToken extracts the handshake token from the query string, the
// Authorization header, or a "bearer.<token>" subprotocol. The second
// return value is the raw subprotocol to echo back during the upgrade.
func bearerToken(r *http.Request) (token, subprotocol string) {
	if t := r.URL.Query().Get("token"); t != "" {
		return t, ""
	}
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer "), ""
	}
	for _, proto := range websocket.Subprotocols(r) {
		if strings.HasPrefix(proto, "bearer.") {
			return strings.TrimPrefix(proto, "bearer."), proto
		}
	}
	return "", ""
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return nil // gorilla's default: same-origin
	}
	allowedSet := make(map[string]struct{}, len(allowed))
	wildcard := false
	for _, origin := range allowed {
		if origin == "*" {
			wildcard = true
		}
		allowedSet[origin] = struct{}{}
	}
	return func(r *http.Request) bool {
		if wildcard {
			return true
		}
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := allowedSet[origin]
		return ok
	}
}
