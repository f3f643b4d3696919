package ws

import (
	"encoding/json"

	"crashd/game"
)

// Inbound message types
const (
	inboundBet     = "bet"
	inboundCashout = "cashOut"
	inboundPing    = "ping"
)

// Outbound frame types
const (
	frameConnected     = "connected"
	frameGameState     = "gameState"
	framePlayerOverlay = "playerOverlay"
	frameBetPlaced     = "betPlaced"
	frameCashedOut     = "cashedOut"
	framePong          = "pong"
	frameError         = "error"
	frameWarning       = "warning"
)

// inboundEnvelope is the schema every client message is validated against
// before any side effect.
type inboundEnvelope struct {
	Type        string `json:"type"`
	Amount      int64  `json:"amount,omitempty"`
	AutoCashout int64  `json:"autoCashout,omitempty"`
}

type connectedFrame struct {
	Type          string `json:"type"`
	SessionID     string `json:"sessionId"`
	Authenticated bool   `json:"authenticated"`
	Username      string `json:"username"`
	Balance       int64  `json:"balance"`
}

type gameStateFrame struct {
	Type string `json:"type"`
	game.Snapshot
}

type overlayWager struct {
	Amount      int64 `json:"amount"`
	AutoCashout int64 `json:"autoCashout,omitempty"`
	CashedOut   bool  `json:"cashedOut"`
	Multiplier  int64 `json:"multiplier,omitempty"`
	Payout      int64 `json:"payout,omitempty"`
}

type playerOverlayFrame struct {
	Type  string       `json:"type"`
	Wager overlayWager `json:"wager"`
}

type betPlacedFrame struct {
	Type     string `json:"type"`
	Username string `json:"username"`
	Amount   int64  `json:"amount"`
	// Balance is set only on the ack to the betting session itself
	Balance *int64 `json:"balance,omitempty"`
	WagerID int64  `json:"wagerId,omitempty"`
}

type cashedOutFrame struct {
	Type       string `json:"type"`
	Username   string `json:"username"`
	Multiplier int64  `json:"multiplier"`
	Payout     int64  `json:"payout"`
	// Balance is set only on the ack to the cashing session itself
	Balance *int64 `json:"balance,omitempty"`
}

type pongFrame struct {
	Type string `json:"type"`
}

type errorFrame struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type warningFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func marshalFrame(frame any) []byte {
	// Frames are built from typed structs; marshalling cannot fail.
	data, _ := json.Marshal(frame)
	return data
}
