package entities

// TransactionType represents the type of ledger entry
type TransactionType string

// All ledger entry types supported by the system
const (
	TransactionTypeDeposit      TransactionType = "deposit"
	TransactionTypeWithdrawal   TransactionType = "withdrawal"
	TransactionTypeBetPlaced    TransactionType = "bet_placed"
	TransactionTypeBetWon       TransactionType = "bet_won"
	TransactionTypeBetLost      TransactionType = "bet_lost"
	TransactionTypeFarmingClaim TransactionType = "farming_claim"
	TransactionTypeAdjustment   TransactionType = "adjustment"
)

// IsCredit returns true if the transaction type adds funds to the balance
func (tt TransactionType) IsCredit() bool {
	return tt == TransactionTypeDeposit ||
		tt == TransactionTypeBetWon ||
		tt == TransactionTypeFarmingClaim
}

// IsDebit returns true if the transaction type removes funds from the balance
func (tt TransactionType) IsDebit() bool {
	return tt == TransactionTypeWithdrawal ||
		tt == TransactionTypeBetPlaced
}

// IsGamblingRelated returns true for wager-driven entries
func (tt TransactionType) IsGamblingRelated() bool {
	return tt == TransactionTypeBetPlaced ||
		tt == TransactionTypeBetWon ||
		tt == TransactionTypeBetLost
}

// String returns the string representation of the transaction type
func (tt TransactionType) String() string {
	return string(tt)
}
