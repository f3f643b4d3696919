package testutil

import (
	"crashd/domain/entities"
)

// CreateTestUser creates a test user with default values
func CreateTestUser(username string) *entities.User {
	return &entities.User{
		Username: username,
		Role:     entities.RolePlayer,
		Balance:  100000,
		IsActive: true,
	}
}

// CreateTestUserWithBalance creates a test user with a specific balance
func CreateTestUserWithBalance(username string, balance int64) *entities.User {
	user := CreateTestUser(username)
	user.Balance = balance
	return user
}

// CreateTestAdmin creates a test user holding the admin role
func CreateTestAdmin(username string) *entities.User {
	user := CreateTestUser(username)
	user.Role = entities.RoleAdmin
	return user
}

// CreateTestRound creates a round with committed seed material. The
// repository assigns round number and betting status on insert.
func CreateTestRound(nonce int64) *entities.Round {
	return &entities.Round{
		ServerSeed:     "f1e2d3c4b5a69788f1e2d3c4b5a69788f1e2d3c4b5a69788f1e2d3c4b5a69788",
		ServerSeedHash: "8877a6b5c4d3e2f18877a6b5c4d3e2f18877a6b5c4d3e2f18877a6b5c4d3e2f1",
		ClientSeed:     "client-seed",
		Nonce:          nonce,
		CrashPoint:     250,
	}
}

// CreateTestRoundWithCrashPoint creates a round with a specific crash point
func CreateTestRoundWithCrashPoint(nonce, crashPoint int64) *entities.Round {
	round := CreateTestRound(nonce)
	round.CrashPoint = crashPoint
	return round
}

// CreateTestWager creates an active wager for a user on a round
func CreateTestWager(userID, roundID, amount int64) *entities.Wager {
	return &entities.Wager{
		UserID:  userID,
		RoundID: roundID,
		Amount:  amount,
	}
}

// CreateTestLedgerEntry creates a debit ledger entry for a placed bet
func CreateTestLedgerEntry(userID int64, wagerID *int64, amount, before int64) *entities.LedgerEntry {
	return &entities.LedgerEntry{
		UserID:        userID,
		WagerID:       wagerID,
		Type:          entities.TransactionTypeBetPlaced,
		Amount:        amount,
		BalanceBefore: before,
		BalanceAfter:  before - amount,
		Description:   "test bet",
	}
}
