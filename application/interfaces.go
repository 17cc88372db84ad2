package application

import (
	"context"
	"errors"
	"time"

	"pumprug/domain/entities"
	"pumprug/domain/events"
	"pumprug/domain/interfaces"
)

// UnitOfWork bundles the repositories behind a single database transaction.
// Events published through its publisher are buffered and only flushed
// after a successful commit.
type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	MarketRepository() interfaces.MarketRepository
	BetRepository() interfaces.BetRepository
	PendingBetRepository() interfaces.PendingBetRepository
	MatchRepository() interfaces.MatchRepository
	EventPublisher() interfaces.EventPublisher
	BalanceCrediter() interfaces.BalanceCrediter
}

// UnitOfWorkFactory creates units of work
type UnitOfWorkFactory interface {
	Create() UnitOfWork
}

// TransactionalEventPublisher buffers events during a transaction and
// releases or drops them when the transaction resolves
type TransactionalEventPublisher interface {
	Publish(event events.Event) error
	Flush(ctx context.Context)
	Discard()
}

// TransactionalBalanceCrediter buffers payout credits during a transaction
// and releases or drops them when the transaction resolves. A rolled-back
// settlement must not leave credit instructions behind.
type TransactionalBalanceCrediter interface {
	interfaces.BalanceCrediter
	Flush(ctx context.Context)
	Discard()
}

// DueTransition is a scheduled phase transition whose due time has passed
type DueTransition struct {
	MarketID int64
	Target   entities.MarketPhase
}

// TransitionSource supplies due transitions claimed from the delay queue.
// Claiming removes the entry; a failed handler must reschedule explicitly.
type TransitionSource interface {
	PopDue(ctx context.Context, now time.Time, limit int) ([]DueTransition, error)
}

// ErrLockHeld indicates a leader lock is already held by another party
var ErrLockHeld = errors.New("lock already held")

// LeaderLock provides distributed mutual exclusion for workers that must
// run on a single instance at a time. Acquire returns ErrLockHeld when
// another party holds the lock.
type LeaderLock interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}
