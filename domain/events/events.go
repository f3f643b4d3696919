package events

import "crashd/domain/entities"

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeBalanceChange       EventType = "balance_change"
	EventTypeUserCreated         EventType = "user_created"
	EventTypeWagerPlaced         EventType = "wager_placed"
	EventTypeWagerCashedOut      EventType = "wager_cashed_out"
	EventTypeRoundStarted        EventType = "round_started"
	EventTypeRoundRunning        EventType = "round_running"
	EventTypeRoundCrashed        EventType = "round_crashed"
	EventTypeDegradedConsistency EventType = "degraded_consistency"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// BalanceChangeEvent represents a balance change that occurred
type BalanceChangeEvent struct {
	UserID          int64                    `json:"userId"`
	OldBalance      int64                    `json:"oldBalance"`
	NewBalance      int64                    `json:"newBalance"`
	ChangeAmount    int64                    `json:"changeAmount"`
	TransactionType entities.TransactionType `json:"transactionType"`
}

func (e BalanceChangeEvent) Type() EventType { return EventTypeBalanceChange }

// UserCreatedEvent represents a new user registration
type UserCreatedEvent struct {
	UserID         int64  `json:"userId"`
	Username       string `json:"username"`
	InitialBalance int64  `json:"initialBalance"`
}

func (e UserCreatedEvent) Type() EventType { return EventTypeUserCreated }

// WagerPlacedEvent represents a wager accepted into a round
type WagerPlacedEvent struct {
	UserID      int64 `json:"userId"`
	WagerID     int64 `json:"wagerId"`
	RoundID     int64 `json:"roundId"`
	Amount      int64 `json:"amount"`
	AutoCashout int64 `json:"autoCashout"`
}

func (e WagerPlacedEvent) Type() EventType { return EventTypeWagerPlaced }

// WagerCashedOutEvent represents a successful cashout
type WagerCashedOutEvent struct {
	UserID     int64 `json:"userId"`
	WagerID    int64 `json:"wagerId"`
	RoundID    int64 `json:"roundId"`
	Multiplier int64 `json:"multiplier"`
	Payout     int64 `json:"payout"`
}

func (e WagerCashedOutEvent) Type() EventType { return EventTypeWagerCashedOut }

// RoundStartedEvent marks the opening of a betting phase
type RoundStartedEvent struct {
	RoundID        int64  `json:"roundId"`
	RoundNumber    int64  `json:"roundNumber"`
	ServerSeedHash string `json:"serverSeedHash"`
}

func (e RoundStartedEvent) Type() EventType { return EventTypeRoundStarted }

// RoundCrashedEvent marks the end of a round at its crash point
type RoundCrashedEvent struct {
	RoundID     int64 `json:"roundId"`
	RoundNumber int64 `json:"roundNumber"`
	CrashPoint  int64 `json:"crashPoint"`
	WagersLost  int   `json:"wagersLost"`
}

func (e RoundCrashedEvent) Type() EventType { return EventTypeRoundCrashed }

// DegradedConsistencyEvent is an out-of-band alert raised when settlement
// could not be fully persisted; it is never surfaced to a client mid-action.
type DegradedConsistencyEvent struct {
	RoundID int64  `json:"roundId"`
	WagerID int64  `json:"wagerId,omitempty"`
	Detail  string `json:"detail"`
}

func (e DegradedConsistencyEvent) Type() EventType { return EventTypeDegradedConsistency }
