package entities

import (
	"errors"
	"time"
)

// RoundStatus represents the lifecycle phase of a round
type RoundStatus string

const (
	RoundStatusBetting RoundStatus = "betting"
	RoundStatusRunning RoundStatus = "running"
	RoundStatusCrashed RoundStatus = "crashed"
)

// Round represents a single game cycle. The server seed is committed by its
// SHA-256 hash before betting opens and stays private until after the round
// ends. CrashPoint is a multiplier in hundredths (245 = 2.45x).
type Round struct {
	ID             int64       `db:"id"`
	Number         int64       `db:"round_number"`
	ServerSeed     string      `db:"server_seed"`
	ServerSeedHash string      `db:"server_seed_hash"`
	ClientSeed     string      `db:"client_seed"`
	Nonce          int64       `db:"nonce"`
	CrashPoint     int64       `db:"crash_point"`
	Status         RoundStatus `db:"status"`
	CreatedAt      time.Time   `db:"created_at"`
	StartedAt      *time.Time  `db:"started_at"`
	EndedAt        *time.Time  `db:"ended_at"`
}

// IsAcceptingBets checks if wagers may still be placed on this round
func (r *Round) IsAcceptingBets() bool {
	return r.Status == RoundStatusBetting
}

// IsRunning checks if the multiplier is currently climbing
func (r *Round) IsRunning() bool {
	return r.Status == RoundStatusRunning
}

// IsFinished checks if the round reached its terminal state
func (r *Round) IsFinished() bool {
	return r.Status == RoundStatusCrashed
}

// CanTransitionTo validates a forward status transition. Statuses only move
// betting -> running -> crashed.
func (r *Round) CanTransitionTo(next RoundStatus) error {
	valid := (r.Status == RoundStatusBetting && next == RoundStatusRunning) ||
		(r.Status == RoundStatusRunning && next == RoundStatusCrashed) ||
		(r.Status == RoundStatusBetting && next == RoundStatusCrashed)
	if !valid {
		return errors.New("invalid round status transition: " + string(r.Status) + " -> " + string(next))
	}
	return nil
}

// SeedRevealedAfter reports whether the server seed may be revealed at the
// given instant, applying the post-round grace period.
func (r *Round) SeedRevealedAfter(now time.Time, grace time.Duration) bool {
	if r.Status != RoundStatusCrashed || r.EndedAt == nil {
		return false
	}
	return now.Sub(*r.EndedAt) >= grace
}

// FairnessRecord is the public audit view of a finished round. ServerSeed is
// nil for rounds still inside the reveal grace period.
type FairnessRecord struct {
	RoundNumber    int64      `json:"roundNumber"`
	ServerSeed     *string    `json:"serverSeed"`
	ServerSeedHash string     `json:"serverSeedHash"`
	ClientSeed     string     `json:"clientSeed"`
	Nonce          int64      `json:"nonce"`
	CrashPoint     int64      `json:"crashPoint"`
	EndedAt        *time.Time `json:"endedAt"`
}
