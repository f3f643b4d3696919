package entities

import "time"

// LedgerEntry is an append-only record of a balance change. Amount is always
// positive; the direction is carried by the balance-before/after snapshot.
// Entries of type bet_lost record the settlement of an already-debited stake
// and therefore carry a zero delta.
type LedgerEntry struct {
	ID            int64           `db:"id"`
	UserID        int64           `db:"user_id"`
	WagerID       *int64          `db:"wager_id"`
	Type          TransactionType `db:"entry_type"`
	Amount        int64           `db:"amount"`
	BalanceBefore int64           `db:"balance_before"`
	BalanceAfter  int64           `db:"balance_after"`
	Description   string          `db:"description"`
	CreatedAt     time.Time       `db:"created_at"`
}

// SignedDelta returns the entry's effect on the balance. For every user the
// balance equals the sum of signed deltas since account creation.
func (e *LedgerEntry) SignedDelta() int64 {
	return e.BalanceAfter - e.BalanceBefore
}

// IsPositiveChange returns true if the entry increased the balance
func (e *LedgerEntry) IsPositiveChange() bool {
	return e.SignedDelta() > 0
}

// IsNegativeChange returns true if the entry decreased the balance
func (e *LedgerEntry) IsNegativeChange() bool {
	return e.SignedDelta() < 0
}
