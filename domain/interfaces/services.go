package interfaces

import (
	"context"
	"time"

	"pumprug/domain/entities"
)

// MatchingService pairs confirmed wagers against opposing capacity
type MatchingService interface {
	// PlaceBet inserts a confirmed wager into the market, pairing as much
	// of it as possible against opposing unmatched capacity at odds locked
	// now. The remainder stays pending and is consumed by later opposing
	// wagers. Fails with entities.ErrMarketClosed outside the betting
	// window and entities.ErrInvalidArgument for non-positive amounts.
	PlaceBet(ctx context.Context, userID, marketID int64, side entities.BetSide, grossAmount int64) (*entities.MatchResult, error)
}

// PromotionService drives a wager intent from client submission through
// ledger confirmation into a confirmed bet
type PromotionService interface {
	// PlaceIntent records a new wager intent under a client-generated nonce
	PlaceIntent(ctx context.Context, userID, marketID int64, side entities.BetSide, amount int64, walletAddress, nonce string) (*entities.PendingBet, error)

	// MarkSubmitted transitions pending -> processing once a ledger
	// transfer request has been issued for the intent
	MarkSubmitted(ctx context.Context, nonce string, ledgerReference string) error

	// ConfirmTransfer verifies a ledger transaction against the pending bet
	// identified by its memo nonce and, on success, promotes the intent
	// into a matched bet. Re-delivering the same confirmation is a no-op.
	ConfirmTransfer(ctx context.Context, signature string) (*entities.Bet, error)

	// RejectIntent removes an intent whose transfer the user rejected
	// before any funds moved
	RejectIntent(ctx context.Context, nonce string) error
}

// LifecycleService drives markets through their phases
type LifecycleService interface {
	// CreateMarket persists a new market and registers its scheduled
	// phase-transition callbacks
	CreateMarket(ctx context.Context, tokenMint string, startsAt time.Time, durationMinutes int) (*entities.Market, error)

	// HandleTransition is the scheduled-callback entry point. Idempotent:
	// a callback for a market already in or past the target phase is a
	// no-op.
	HandleTransition(ctx context.Context, marketID int64, target entities.MarketPhase) error
}

// SettlementService finalizes every bet on a resolved market
type SettlementService interface {
	// Settle marks all bets WON/LOST/REFUNDED, credits payouts and moves
	// the market to SETTLED. Re-invocation on a settled market is a no-op.
	Settle(ctx context.Context, marketID int64, outcome entities.Outcome, finalPrice float64) (*entities.SettlementResult, error)
}

// External collaborators

// LedgerClient is the submit-and-confirm interface to the external ledger
type LedgerClient interface {
	// GetTransaction returns the transaction for a signature, or
	// entities.ErrTransactionNotFound if it has not landed yet
	GetTransaction(ctx context.Context, signature string) (*entities.LedgerTransaction, error)
}

// PriceOracle returns current price/liquidity/volume for a token
type PriceOracle interface {
	GetSnapshot(ctx context.Context, tokenMint string) (*entities.PriceSnapshot, error)
}

// TransitionScheduler requests "invoke the transition handler for market X
// at time T". Delivery is at-least-once; handler idempotency absorbs
// duplicates.
type TransitionScheduler interface {
	Schedule(ctx context.Context, marketID int64, target entities.MarketPhase, at time.Time) error
}

// BalanceCrediter applies payout and refund credits to user balances
type BalanceCrediter interface {
	Credit(ctx context.Context, userID int64, amount int64, reference string) error
}

// RateLimiter limits how often a key may perform an action
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
