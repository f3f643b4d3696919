package repository

import (
	"context"
	"fmt"

	"crashd/database"
	"crashd/domain/interfaces"

	"github.com/jackc/pgx/v5"
)

// unitOfWork implements the UnitOfWork interface over one pgx transaction
type unitOfWork struct {
	db        *database.DB
	tx        pgx.Tx
	ctx       context.Context
	publisher interfaces.TransactionalEventPublisher

	userRepo       *UserRepository
	roundRepo      *RoundRepository
	wagerRepo      *WagerRepository
	ledgerRepo     *LedgerRepository
	settingsRepo   *SettingsRepository
	dailyLimitRepo *DailyLimitRepository
}

// UnitOfWorkFactory creates units of work bound to the pool and an event
// publisher factory. Each unit of work gets its own transactional publisher
// so events buffer until commit.
type UnitOfWorkFactory struct {
	db           *database.DB
	newPublisher func() interfaces.TransactionalEventPublisher
}

// NewUnitOfWorkFactory creates a new UnitOfWork factory
func NewUnitOfWorkFactory(db *database.DB, newPublisher func() interfaces.TransactionalEventPublisher) *UnitOfWorkFactory {
	return &UnitOfWorkFactory{db: db, newPublisher: newPublisher}
}

// Create creates a new unit of work
func (f *UnitOfWorkFactory) Create() interfaces.UnitOfWork {
	return &unitOfWork{
		db:        f.db,
		publisher: f.newPublisher(),
	}
}

// Begin starts a new transaction
func (u *unitOfWork) Begin(ctx context.Context) error {
	if u.tx != nil {
		return fmt.Errorf("transaction already started")
	}

	tx, err := u.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	u.tx = tx
	u.ctx = ctx

	u.userRepo = newUserRepository(tx)
	u.roundRepo = newRoundRepository(tx)
	u.wagerRepo = newWagerRepository(tx)
	u.ledgerRepo = newLedgerRepository(tx)
	u.settingsRepo = newSettingsRepository(tx)
	u.dailyLimitRepo = newDailyLimitRepository(tx)

	return nil
}

// Commit commits the transaction and flushes buffered events
func (u *unitOfWork) Commit() error {
	if u.tx == nil {
		return fmt.Errorf("no transaction to commit")
	}

	if err := u.tx.Commit(u.ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	u.tx = nil

	if u.publisher != nil {
		u.publisher.Flush(u.ctx)
	}
	return nil
}

// Rollback rolls back the transaction and discards buffered events
func (u *unitOfWork) Rollback() error {
	if u.tx == nil {
		return nil
	}

	err := u.tx.Rollback(u.ctx)
	u.tx = nil
	if u.publisher != nil {
		u.publisher.Discard()
	}
	if err != nil && err != pgx.ErrTxClosed {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}
	return nil
}

func (u *unitOfWork) UserRepository() interfaces.UserRepository {
	return u.userRepo
}

func (u *unitOfWork) RoundRepository() interfaces.RoundRepository {
	return u.roundRepo
}

func (u *unitOfWork) WagerRepository() interfaces.WagerRepository {
	return u.wagerRepo
}

func (u *unitOfWork) LedgerRepository() interfaces.LedgerRepository {
	return u.ledgerRepo
}

func (u *unitOfWork) SettingsRepository() interfaces.SettingsRepository {
	return u.settingsRepo
}

func (u *unitOfWork) DailyLimitRepository() interfaces.DailyLimitRepository {
	return u.dailyLimitRepo
}

func (u *unitOfWork) EventPublisher() interfaces.EventPublisher {
	return u.publisher
}
