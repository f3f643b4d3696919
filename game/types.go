package game

// Phase is the engine's current position in the round state machine. PAUSED
// is entered when the oracle or persistence cannot start a round; no wagers
// are accepted until recovery.
type Phase string

const (
	PhaseBetting Phase = "betting"
	PhaseRunning Phase = "running"
	PhaseCrashed Phase = "crashed"
	PhasePaused  Phase = "paused"
)

// historySize bounds the recent-crash ring carried in every public broadcast
const historySize = 10

// SessionInfo identifies the actor behind an engine request. Guests carry a
// session-scoped virtual balance and never touch persistence.
type SessionInfo struct {
	// Key is the arbiter identity: "user:<id>" for authenticated players,
	// "guest:<uuid>" for guests. At most one live wager exists per key per
	// round.
	Key      string
	UserID   int64
	Username string
	Guest    bool
}

// LiveWager is the public view of one in-flight wager, included in state
// snapshots so the fabric can build personal overlays.
type LiveWager struct {
	SessionKey string `json:"-"`
	Username   string `json:"username"`
	Amount     int64  `json:"amount"`
	CashedOut  bool   `json:"cashedOut"`
	Multiplier int64  `json:"multiplier,omitempty"`
	Payout     int64  `json:"payout,omitempty"`
}

// Snapshot is the authoritative public game state at one instant
type Snapshot struct {
	Phase          Phase       `json:"phase"`
	RoundID        int64       `json:"roundId"`
	RoundNumber    int64       `json:"roundNumber"`
	ServerSeedHash string      `json:"serverSeedHash"`
	Countdown      int         `json:"countdown"`
	Multiplier     int64       `json:"multiplier"`
	Players        int         `json:"players"`
	CrashPoint     int64       `json:"crashPoint,omitempty"`
	History        []int64     `json:"history"`
	Maintenance    bool        `json:"maintenance"`
	Wagers         []LiveWager `json:"wagers"`
}

// BetNotice announces an accepted wager to all sessions
type BetNotice struct {
	Username string `json:"username"`
	Amount   int64  `json:"amount"`
}

// CashoutNotice announces a successful cashout to all sessions
type CashoutNotice struct {
	Username   string `json:"username"`
	Multiplier int64  `json:"multiplier"`
	Payout     int64  `json:"payout"`
}

// Broadcaster is the engine's outbound edge. Implementations must never
// block the caller; the engine invokes these from its state-owning goroutine.
type Broadcaster interface {
	BroadcastState(snapshot Snapshot)
	BroadcastBetPlaced(notice BetNotice)
	BroadcastCashedOut(notice CashoutNotice)
}

// BetAck is the engine's reply to an accepted wager
type BetAck struct {
	WagerID int64 `json:"wagerId"`
	Balance int64 `json:"balance"`
}

// CashoutAck is the engine's reply to a successful cashout
type CashoutAck struct {
	Multiplier int64 `json:"multiplier"`
	Payout     int64 `json:"payout"`
	Balance    int64 `json:"balance"`
}

// liveWager is the engine-private record of one in-flight wager. pending is
// true while the placement transaction is off on the persistence unit.
type liveWager struct {
	session     SessionInfo
	wagerID     int64
	amount      int64
	autoCashout int64
	pending     bool
	cashedOut   bool
	multiplier  int64
	payout      int64
}

// Engine mailbox messages. Request messages originate from transport
// goroutines; confirm/release messages come back from the persistence
// goroutines the loop spawned.

type placeBetMsg struct {
	session     SessionInfo
	amount      int64
	autoCashout int64
	resp        chan betReply
}

type cashoutMsg struct {
	session SessionInfo
	resp    chan cashoutReply
}

type betPersistedMsg struct {
	key        string
	wagerID    int64
	newBalance int64
	err        error
	resp       chan betReply
}

type cashoutPersistedMsg struct {
	key        string
	payout     int64
	newBalance int64
	err        error
	resp       chan cashoutReply
}

type sessionClosedMsg struct {
	key string
}

type betReply struct {
	ack *BetAck
	err error
}

type cashoutReply struct {
	ack *CashoutAck
	err error
}
