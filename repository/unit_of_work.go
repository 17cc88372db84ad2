package repository

import (
	"context"
	"fmt"

	"pumprug/application"
	"pumprug/database"
	"pumprug/domain/events"
	"pumprug/domain/interfaces"

	"github.com/jackc/pgx/v5"
)

// unitOfWork implements the UnitOfWork interface
type unitOfWork struct {
	db                     *database.DB
	tx                     pgx.Tx
	ctx                    context.Context
	transactionalPublisher application.TransactionalEventPublisher
	transactionalCrediter  application.TransactionalBalanceCrediter

	marketRepo     interfaces.MarketRepository
	betRepo        interfaces.BetRepository
	pendingBetRepo interfaces.PendingBetRepository
	matchRepo      interfaces.MatchRepository
}

type unitOfWorkFactory struct {
	db           *database.DB
	newPublisher func() application.TransactionalEventPublisher
	newCrediter  func() application.TransactionalBalanceCrediter
}

// NewUnitOfWorkFactory creates a new UnitOfWork factory. Each unit of work
// gets its own transactional publisher and crediter so buffered events and
// payout credits cannot leak between transactions.
func NewUnitOfWorkFactory(
	db *database.DB,
	newPublisher func() application.TransactionalEventPublisher,
	newCrediter func() application.TransactionalBalanceCrediter,
) application.UnitOfWorkFactory {
	return &unitOfWorkFactory{
		db:           db,
		newPublisher: newPublisher,
		newCrediter:  newCrediter,
	}
}

func (f *unitOfWorkFactory) Create() application.UnitOfWork {
	return &unitOfWork{
		db:                     f.db,
		transactionalPublisher: f.newPublisher(),
		transactionalCrediter:  f.newCrediter(),
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

	u.marketRepo = newMarketRepository(tx)
	u.betRepo = newBetRepository(tx)
	u.pendingBetRepo = newPendingBetRepository(tx)
	u.matchRepo = newMatchRepository(tx)

	return nil
}

// Commit commits the transaction, then flushes buffered payout credits
// and events
func (u *unitOfWork) Commit() error {
	if u.tx == nil {
		return fmt.Errorf("no transaction to commit")
	}

	err := u.tx.Commit(u.ctx)
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	u.tx = nil

	if u.transactionalCrediter != nil {
		u.transactionalCrediter.Flush(u.ctx)
	}
	if u.transactionalPublisher != nil {
		u.transactionalPublisher.Flush(u.ctx)
	}

	return nil
}

// Rollback rolls back the transaction and discards buffered events
func (u *unitOfWork) Rollback() error {
	if u.tx == nil {
		return nil // Nothing to rollback
	}

	err := u.tx.Rollback(u.ctx)
	if err != nil && err != pgx.ErrTxClosed {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}

	u.tx = nil

	if u.transactionalCrediter != nil {
		u.transactionalCrediter.Discard()
	}
	if u.transactionalPublisher != nil {
		u.transactionalPublisher.Discard()
	}

	return nil
}

// MarketRepository returns the market repository for this unit of work
func (u *unitOfWork) MarketRepository() interfaces.MarketRepository {
	if u.marketRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.marketRepo
}

// BetRepository returns the bet repository for this unit of work
func (u *unitOfWork) BetRepository() interfaces.BetRepository {
	if u.betRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.betRepo
}

// PendingBetRepository returns the pending bet repository for this unit of work
func (u *unitOfWork) PendingBetRepository() interfaces.PendingBetRepository {
	if u.pendingBetRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.pendingBetRepo
}

// MatchRepository returns the match repository for this unit of work
func (u *unitOfWork) MatchRepository() interfaces.MatchRepository {
	if u.matchRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.matchRepo
}

// EventPublisher returns the transaction-buffered event publisher
func (u *unitOfWork) EventPublisher() interfaces.EventPublisher {
	return eventPublisherAdapter{u.transactionalPublisher}
}

// BalanceCrediter returns the transaction-buffered payout crediter
func (u *unitOfWork) BalanceCrediter() interfaces.BalanceCrediter {
	return balanceCrediterAdapter{u.transactionalCrediter}
}

type eventPublisherAdapter struct {
	publisher application.TransactionalEventPublisher
}

func (a eventPublisherAdapter) Publish(event events.Event) error {
	if a.publisher == nil {
		return nil
	}
	return a.publisher.Publish(event)
}

type balanceCrediterAdapter struct {
	crediter application.TransactionalBalanceCrediter
}

func (a balanceCrediterAdapter) Credit(ctx context.Context, userID int64, amount int64, reference string) error {
	if a.crediter == nil {
		return nil
	}
	return a.crediter.Credit(ctx, userID, amount, reference)
}
