package entities

import (
	"errors"
	"time"
)

// WagerStatus represents the lifecycle state of a wager
type WagerStatus string

const (
	WagerStatusActive    WagerStatus = "active"
	WagerStatusCashedOut WagerStatus = "cashed_out"
	WagerStatusLost      WagerStatus = "lost"
	WagerStatusCancelled WagerStatus = "cancelled"
)

// Wager represents a user's stake on one round. Amounts are hundredths;
// multipliers are hundredths (150 = 1.50x). AutoCashout of zero means the
// wager has no auto-cashout threshold.
type Wager struct {
	ID                int64       `db:"id"`
	UserID            int64       `db:"user_id"`
	RoundID           int64       `db:"round_id"`
	Amount            int64       `db:"amount"`
	AutoCashout       int64       `db:"auto_cashout"`
	CashoutMultiplier *int64      `db:"cashout_multiplier"`
	Payout            int64       `db:"payout"`
	Status            WagerStatus `db:"status"`
	PlacedAt          time.Time   `db:"placed_at"`
	CashedOutAt       *time.Time  `db:"cashed_out_at"`
}

// PayoutFor computes the payout for cashing out at the given multiplier,
// in integer hundredths: stake * multiplier / 100.
func PayoutFor(stake, multiplier int64) int64 {
	return stake * multiplier / 100
}

// IsActive checks if the wager is still live
func (w *Wager) IsActive() bool {
	return w.Status == WagerStatusActive
}

// IsTerminal checks if the wager reached a final state
func (w *Wager) IsTerminal() bool {
	return w.Status == WagerStatusCashedOut || w.Status == WagerStatusLost || w.Status == WagerStatusCancelled
}

// NetResult returns the wager's effect on the user's bankroll: payout minus
// stake for a cashed-out wager, minus the stake for a lost one.
func (w *Wager) NetResult() int64 {
	switch w.Status {
	case WagerStatusCashedOut:
		return w.Payout - w.Amount
	case WagerStatusLost:
		return -w.Amount
	default:
		return 0
	}
}

// Validate performs basic validation on the wager
func (w *Wager) Validate() error {
	if w.Amount <= 0 {
		return errors.New("wager amount must be positive")
	}
	if w.AutoCashout != 0 && w.AutoCashout < 101 {
		return errors.New("auto-cashout threshold must exceed 1.00x")
	}
	if w.Status == WagerStatusCashedOut {
		if w.CashoutMultiplier == nil {
			return errors.New("cashed-out wager must record its multiplier")
		}
		if w.Payout != PayoutFor(w.Amount, *w.CashoutMultiplier) {
			return errors.New("payout must equal stake times cashout multiplier")
		}
	}
	return nil
}
