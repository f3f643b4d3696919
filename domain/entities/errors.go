package entities

import "errors"

// Sentinel errors raised by entity-level checks. Callers translate these
// into the transport-facing error kinds.
var (
	ErrDailyWagerLimit = errors.New("daily wager limit exceeded")
	ErrDailyLossLimit  = errors.New("daily loss limit exceeded")
	ErrDailyGamesLimit = errors.New("daily games limit exceeded")
)
