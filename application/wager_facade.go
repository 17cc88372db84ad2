package application

import (
	"context"
	"fmt"

	"pumprug/domain/entities"
	"pumprug/domain/interfaces"
	"pumprug/domain/services"
)

// WagerFacade is the transactional entry point for the wager intent
// lifecycle. Each operation runs inside its own unit of work, so the
// status transitions, bet rows and buffered events commit or roll back
// together.
type WagerFacade struct {
	uowFactory   UnitOfWorkFactory
	ledgerClient interfaces.LedgerClient
	rateLimiter  interfaces.RateLimiter
}

// NewWagerFacade creates a new wager facade
func NewWagerFacade(uowFactory UnitOfWorkFactory, ledgerClient interfaces.LedgerClient, rateLimiter interfaces.RateLimiter) *WagerFacade {
	return &WagerFacade{
		uowFactory:   uowFactory,
		ledgerClient: ledgerClient,
		rateLimiter:  rateLimiter,
	}
}

// PlaceIntent records a new wager intent
func (f *WagerFacade) PlaceIntent(ctx context.Context, userID, marketID int64, side entities.BetSide, amount int64, walletAddress, nonce string) (*entities.PendingBet, error) {
	var pendingBet *entities.PendingBet
	err := f.withUnitOfWork(ctx, func(uow UnitOfWork) error {
		promotion := f.promotionService(uow)
		var err error
		pendingBet, err = promotion.PlaceIntent(ctx, userID, marketID, side, amount, walletAddress, nonce)
		return err
	})
	return pendingBet, err
}

// MarkSubmitted records that a ledger transfer was issued for the intent
func (f *WagerFacade) MarkSubmitted(ctx context.Context, nonce, ledgerReference string) error {
	return f.withUnitOfWork(ctx, func(uow UnitOfWork) error {
		return f.promotionService(uow).MarkSubmitted(ctx, nonce, ledgerReference)
	})
}

// ConfirmTransfer verifies a ledger transaction and promotes the pending
// bet it pays for
func (f *WagerFacade) ConfirmTransfer(ctx context.Context, signature string) (*entities.Bet, error) {
	var bet *entities.Bet
	err := f.withUnitOfWork(ctx, func(uow UnitOfWork) error {
		var err error
		bet, err = f.promotionService(uow).ConfirmTransfer(ctx, signature)
		return err
	})
	return bet, err
}

// RejectIntent drops an intent whose transfer the user declined
func (f *WagerFacade) RejectIntent(ctx context.Context, nonce string) error {
	return f.withUnitOfWork(ctx, func(uow UnitOfWork) error {
		return f.promotionService(uow).RejectIntent(ctx, nonce)
	})
}

func (f *WagerFacade) promotionService(uow UnitOfWork) interfaces.PromotionService {
	matching := services.NewMatchingService(
		uow.MarketRepository(),
		uow.BetRepository(),
		uow.MatchRepository(),
		uow.EventPublisher(),
	)
	return services.NewPromotionService(
		uow.PendingBetRepository(),
		uow.MarketRepository(),
		f.ledgerClient,
		matching,
		f.rateLimiter,
	)
}

func (f *WagerFacade) withUnitOfWork(ctx context.Context, fn func(uow UnitOfWork) error) error {
	uow := f.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if err := fn(uow); err != nil {
		return err
	}
	return uow.Commit()
}
