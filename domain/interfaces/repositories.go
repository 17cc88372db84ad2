package interfaces

import (
	"context"

	"pumprug/domain/entities"
	"pumprug/domain/events"
)

// MarketRepository defines the interface for market data access
type MarketRepository interface {
	// Create creates a new market
	Create(ctx context.Context, market *entities.Market) error

	// GetByID retrieves a market by its ID
	GetByID(ctx context.Context, id int64) (*entities.Market, error)

	// GetByIDForUpdate retrieves a market and locks its row for the duration
	// of the surrounding transaction. Serializes matching per market.
	GetByIDForUpdate(ctx context.Context, id int64) (*entities.Market, error)

	// Update persists phase, pools, odds and outcome changes
	Update(ctx context.Context, market *entities.Market) error

	// GetByPhase returns all markets currently in the given phase
	GetByPhase(ctx context.Context, phase entities.MarketPhase) ([]*entities.Market, error)
}

// BetRepository defines the interface for bet data access
type BetRepository interface {
	// Create creates a new bet record
	Create(ctx context.Context, bet *entities.Bet) error

	// GetByID retrieves a bet by its ID
	GetByID(ctx context.Context, id int64) (*entities.Bet, error)

	// GetByMarket returns all bets on a market
	GetByMarket(ctx context.Context, marketID int64) ([]*entities.Bet, error)

	// GetUnmatchedByMarketAndSide returns bets on the given side with
	// remaining unmatched capacity, oldest first (FIFO for deterministic
	// matching)
	GetUnmatchedByMarketAndSide(ctx context.Context, marketID int64, side entities.BetSide) ([]*entities.Bet, error)

	// Update persists matched amount, status, refund and settlement fields
	Update(ctx context.Context, bet *entities.Bet) error

	// GetByUser returns bets for a specific user, newest first
	GetByUser(ctx context.Context, userID int64, limit int) ([]*entities.Bet, error)
}

// PendingBetRepository defines the interface for wager intent data access
type PendingBetRepository interface {
	// Create creates a new pending bet. Returns entities.ErrDuplicateNonce
	// if the nonce is already taken.
	Create(ctx context.Context, pendingBet *entities.PendingBet) error

	// GetByNonce retrieves a pending bet by its nonce
	GetByNonce(ctx context.Context, nonce string) (*entities.PendingBet, error)

	// TransitionStatus atomically moves a pending bet from one status to
	// another, keyed by nonce. Returns false if the row was not in the
	// expected status. This is the idempotency gate against replayed
	// confirmations.
	TransitionStatus(ctx context.Context, nonce string, from, to entities.PendingBetStatus) (bool, error)

	// Update persists ledger reference, signature and error fields
	Update(ctx context.Context, pendingBet *entities.PendingBet) error

	// Delete removes a pending bet entirely (user-rejected transfers,
	// where no funds moved and no record is worth keeping)
	Delete(ctx context.Context, id int64) error
}

// MatchRepository defines the interface for match data access
type MatchRepository interface {
	// Create creates a new match record
	Create(ctx context.Context, match *entities.Match) error

	// GetByMarket returns all matches for a market in creation order
	GetByMarket(ctx context.Context, marketID int64) ([]*entities.Match, error)

	// GetByBet returns all matches referencing a bet on either side
	GetByBet(ctx context.Context, betID int64) ([]*entities.Match, error)
}

// EventPublisher defines the interface for publishing events
type EventPublisher interface {
	Publish(event events.Event) error
}
