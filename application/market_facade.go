package application

import (
	"context"
	"fmt"
	"time"

	"pumprug/domain/entities"
	"pumprug/domain/interfaces"
	"pumprug/domain/services"
)

// MarketFacade is the transactional entry point for market administration
type MarketFacade struct {
	uowFactory UnitOfWorkFactory
	oracle     interfaces.PriceOracle
	scheduler  interfaces.TransitionScheduler
}

// NewMarketFacade creates a new market facade
func NewMarketFacade(uowFactory UnitOfWorkFactory, oracle interfaces.PriceOracle, scheduler interfaces.TransitionScheduler) *MarketFacade {
	return &MarketFacade{
		uowFactory: uowFactory,
		oracle:     oracle,
		scheduler:  scheduler,
	}
}

// CreateMarket opens a new market for a token and schedules its phase
// transitions
func (f *MarketFacade) CreateMarket(ctx context.Context, tokenMint string, startsAt time.Time, durationMinutes int) (*entities.Market, error) {
	uow := f.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	settlement := services.NewSettlementService(
		uow.MarketRepository(),
		uow.BetRepository(),
		uow.BalanceCrediter(),
		uow.EventPublisher(),
	)
	lifecycle := services.NewLifecycleService(
		uow.MarketRepository(),
		uow.BetRepository(),
		f.oracle,
		f.scheduler,
		settlement,
		uow.EventPublisher(),
	)

	market, err := lifecycle.CreateMarket(ctx, tokenMint, startsAt, durationMinutes)
	if err != nil {
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, err
	}
	return market, nil
}
