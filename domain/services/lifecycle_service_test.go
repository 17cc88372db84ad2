package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"pumprug/config"
	"pumprug/domain/entities"
	"pumprug/domain/testhelpers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newLifecycleFixture() (*testhelpers.MockMarketRepository, *testhelpers.MockBetRepository, *testhelpers.MockPriceOracle, *testhelpers.MockTransitionScheduler, *testhelpers.MockSettlementService, *testhelpers.MockEventPublisher, *lifecycleService) {
	mockMarketRepo := new(testhelpers.MockMarketRepository)
	mockBetRepo := new(testhelpers.MockBetRepository)
	mockOracle := new(testhelpers.MockPriceOracle)
	mockScheduler := new(testhelpers.MockTransitionScheduler)
	mockSettlement := new(testhelpers.MockSettlementService)
	mockEventPublisher := new(testhelpers.MockEventPublisher)

	service := NewLifecycleService(mockMarketRepo, mockBetRepo, mockOracle, mockScheduler, mockSettlement, mockEventPublisher).(*lifecycleService)
	return mockMarketRepo, mockBetRepo, mockOracle, mockScheduler, mockSettlement, mockEventPublisher, service
}

func snapshot(price, liquidity float64) *entities.PriceSnapshot {
	return &entities.PriceSnapshot{
		TokenMint:    "So11111111111111111111111111111111111111112",
		PriceUSD:     price,
		LiquidityUSD: liquidity,
		ObservedAt:   time.Now(),
	}
}

// resolvingMarket returns a market past its window with a recorded
// oracle baseline
func resolvingMarket(id int64, phase entities.MarketPhase) *entities.Market {
	now := time.Now()
	startPrice := 1.0
	startLiquidity := 100000.0
	return &entities.Market{
		ID:              id,
		TokenMint:       "So11111111111111111111111111111111111111112",
		Phase:           phase,
		StartsAt:        now.Add(-60 * time.Minute),
		EndsAt:          now,
		DurationMinutes: 60,
		StartPrice:      &startPrice,
		StartLiquidity:  &startLiquidity,
	}
}

func TestLifecycleService_CreateMarket(t *testing.T) {
	config.SetTestConfig(config.NewTestConfig())
	defer config.ResetConfig()

	ctx := context.Background()
	mockMarketRepo, _, mockOracle, mockScheduler, _, _, service := newLifecycleFixture()

	startsAt := time.Now().Add(5 * time.Minute).Truncate(time.Second)
	mockOracle.On("GetSnapshot", ctx, "So11111111111111111111111111111111111111112").Return(snapshot(1.5, 250000), nil)

	mockMarketRepo.On("Create", ctx, mock.MatchedBy(func(m *entities.Market) bool {
		return m.Phase == entities.MarketPhaseOpen &&
			m.StartPrice != nil && *m.StartPrice == 1.5 &&
			m.StartLiquidity != nil && *m.StartLiquidity == 250000 &&
			m.EndsAt.Equal(startsAt.Add(60*time.Minute))
	})).Return(nil).Run(func(args mock.Arguments) {
		args.Get(1).(*entities.Market).ID = 1
	})

	mockScheduler.On("Schedule", ctx, int64(1), entities.MarketPhaseBetting, startsAt).Return(nil)
	mockScheduler.On("Schedule", ctx, int64(1), entities.MarketPhaseCutoff, startsAt.Add(30*time.Minute)).Return(nil)
	mockScheduler.On("Schedule", ctx, int64(1), entities.MarketPhaseResolving, startsAt.Add(60*time.Minute)).Return(nil)

	market, err := service.CreateMarket(ctx, "So11111111111111111111111111111111111111112", startsAt, 60)

	require.NoError(t, err)
	require.NotNil(t, market)
	assert.Equal(t, int64(1), market.ID)

	mockScheduler.AssertExpectations(t)
	mockMarketRepo.AssertExpectations(t)
}

func TestLifecycleService_CreateMarket_OracleDown(t *testing.T) {
	config.SetTestConfig(config.NewTestConfig())
	defer config.ResetConfig()

	ctx := context.Background()
	mockMarketRepo, _, mockOracle, _, _, _, service := newLifecycleFixture()

	mockOracle.On("GetSnapshot", ctx, mock.Anything).Return(nil, errors.New("oracle timeout"))

	market, err := service.CreateMarket(ctx, "So11111111111111111111111111111111111111112", time.Now(), 60)

	// No baseline means no market: resolution would have nothing to measure against
	assert.Error(t, err)
	assert.Nil(t, market)
	mockMarketRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestLifecycleService_HandleTransition_OpensBetting(t *testing.T) {
	config.SetTestConfig(config.NewTestConfig())
	defer config.ResetConfig()

	ctx := context.Background()
	mockMarketRepo, _, _, _, _, mockEventPublisher, service := newLifecycleFixture()

	market := resolvingMarket(1, entities.MarketPhaseOpen)
	mockMarketRepo.On("GetByIDForUpdate", ctx, int64(1)).Return(market, nil)
	mockMarketRepo.On("Update", ctx, market).Return(nil)
	mockEventPublisher.On("Publish", mock.AnythingOfType("events.MarketPhaseChangeEvent")).Return(nil)

	err := service.HandleTransition(ctx, 1, entities.MarketPhaseBetting)

	require.NoError(t, err)
	assert.Equal(t, entities.MarketPhaseBetting, market.Phase)
	mockEventPublisher.AssertExpectations(t)
}

func TestLifecycleService_HandleTransition_StaleCallbackIsNoop(t *testing.T) {
	config.SetTestConfig(config.NewTestConfig())
	defer config.ResetConfig()

	ctx := context.Background()
	mockMarketRepo, _, _, _, _, _, service := newLifecycleFixture()

	// The market has already moved past betting
	market := resolvingMarket(1, entities.MarketPhaseCutoff)
	mockMarketRepo.On("GetByIDForUpdate", ctx, int64(1)).Return(market, nil)

	err := service.HandleTransition(ctx, 1, entities.MarketPhaseBetting)

	require.NoError(t, err)
	assert.Equal(t, entities.MarketPhaseCutoff, market.Phase)
	mockMarketRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestLifecycleService_HandleTransition_CutoffFreezesRefunds(t *testing.T) {
	config.SetTestConfig(config.NewTestConfig())
	defer config.ResetConfig()

	ctx := context.Background()
	mockMarketRepo, mockBetRepo, _, _, _, mockEventPublisher, service := newLifecycleFixture()

	market := resolvingMarket(1, entities.MarketPhaseBetting)
	partiallyMatched := &entities.Bet{ID: 10, NetAmount: 9800, MatchedAmount: 6000}
	fullyMatched := &entities.Bet{ID: 11, NetAmount: 4900, MatchedAmount: 4900, RefundAmount: 0}

	mockMarketRepo.On("GetByIDForUpdate", ctx, int64(1)).Return(market, nil)
	mockBetRepo.On("GetByMarket", ctx, int64(1)).Return([]*entities.Bet{partiallyMatched, fullyMatched}, nil)
	mockBetRepo.On("Update", ctx, partiallyMatched).Return(nil)
	mockMarketRepo.On("Update", ctx, market).Return(nil)
	mockEventPublisher.On("Publish", mock.AnythingOfType("events.MarketPhaseChangeEvent")).Return(nil)

	err := service.HandleTransition(ctx, 1, entities.MarketPhaseCutoff)

	require.NoError(t, err)
	assert.Equal(t, entities.MarketPhaseCutoff, market.Phase)
	// The unpaired remainder is frozen for return at settlement
	assert.Equal(t, int64(3800), partiallyMatched.RefundAmount)
	// Fully matched bets have nothing to refund and are not rewritten
	mockBetRepo.AssertNotCalled(t, "Update", ctx, fullyMatched)
}

func TestLifecycleService_HandleTransition_LostCutoffStillFreezesRefunds(t *testing.T) {
	config.SetTestConfig(config.NewTestConfig())
	defer config.ResetConfig()

	ctx := context.Background()
	mockMarketRepo, mockBetRepo, mockOracle, _, mockSettlement, mockEventPublisher, service := newLifecycleFixture()

	// The cutoff callback was lost, so the resolving callback finds the
	// market still in betting
	market := resolvingMarket(1, entities.MarketPhaseBetting)
	partiallyMatched := &entities.Bet{ID: 10, NetAmount: 9800, MatchedAmount: 6000, OddsLocked: 2.0}
	neverMatched := &entities.Bet{ID: 11, NetAmount: 4900}

	mockMarketRepo.On("GetByIDForUpdate", ctx, int64(1)).Return(market, nil)
	mockBetRepo.On("GetByMarket", ctx, int64(1)).Return([]*entities.Bet{partiallyMatched, neverMatched}, nil)
	mockBetRepo.On("Update", ctx, mock.AnythingOfType("*entities.Bet")).Return(nil)
	mockMarketRepo.On("Update", ctx, market).Return(nil)
	mockEventPublisher.On("Publish", mock.AnythingOfType("events.MarketPhaseChangeEvent")).Return(nil)

	mockOracle.On("GetSnapshot", ctx, market.TokenMint).Return(snapshot(1.10, 95000), nil)
	mockSettlement.On("Settle", ctx, int64(1), entities.OutcomePump, 1.10).Return(&entities.SettlementResult{}, nil)

	err := service.HandleTransition(ctx, 1, entities.MarketPhaseResolving)

	require.NoError(t, err)
	assert.Equal(t, entities.MarketPhaseResolving, market.Phase)
	// The unpaired stake is frozen before settlement runs, so the skipped
	// cutoff cannot forfeit anyone's remainder
	assert.Equal(t, int64(3800), partiallyMatched.RefundAmount)
	assert.Equal(t, int64(4900), neverMatched.RefundAmount)
	mockSettlement.AssertExpectations(t)
}

func TestLifecycleService_HandleTransition_ResolvesPump(t *testing.T) {
	config.SetTestConfig(config.NewTestConfig())
	defer config.ResetConfig()

	ctx := context.Background()
	mockMarketRepo, _, mockOracle, _, mockSettlement, mockEventPublisher, service := newLifecycleFixture()

	market := resolvingMarket(1, entities.MarketPhaseCutoff)
	mockMarketRepo.On("GetByIDForUpdate", ctx, int64(1)).Return(market, nil)
	mockMarketRepo.On("Update", ctx, market).Return(nil)
	mockEventPublisher.On("Publish", mock.AnythingOfType("events.MarketPhaseChangeEvent")).Return(nil)

	// +10% price, healthy liquidity: clears the 5% pump threshold
	mockOracle.On("GetSnapshot", ctx, market.TokenMint).Return(snapshot(1.10, 95000), nil)
	mockSettlement.On("Settle", ctx, int64(1), entities.OutcomePump, 1.10).Return(&entities.SettlementResult{}, nil)

	err := service.HandleTransition(ctx, 1, entities.MarketPhaseResolving)

	require.NoError(t, err)
	mockSettlement.AssertExpectations(t)
}

func TestLifecycleService_HandleTransition_ResolvesRugOnFlatPrice(t *testing.T) {
	config.SetTestConfig(config.NewTestConfig())
	defer config.ResetConfig()

	ctx := context.Background()
	mockMarketRepo, _, mockOracle, _, mockSettlement, mockEventPublisher, service := newLifecycleFixture()

	market := resolvingMarket(1, entities.MarketPhaseCutoff)
	mockMarketRepo.On("GetByIDForUpdate", ctx, int64(1)).Return(market, nil)
	mockMarketRepo.On("Update", ctx, market).Return(nil)
	mockEventPublisher.On("Publish", mock.AnythingOfType("events.MarketPhaseChangeEvent")).Return(nil)

	// +2% does not clear the pump threshold: rug by default
	mockOracle.On("GetSnapshot", ctx, market.TokenMint).Return(snapshot(1.02, 95000), nil)
	mockSettlement.On("Settle", ctx, int64(1), entities.OutcomeRug, 1.02).Return(&entities.SettlementResult{}, nil)

	err := service.HandleTransition(ctx, 1, entities.MarketPhaseResolving)

	require.NoError(t, err)
	mockSettlement.AssertExpectations(t)
}

func TestLifecycleService_HandleTransition_LiquidityCollapseIsRug(t *testing.T) {
	config.SetTestConfig(config.NewTestConfig())
	defer config.ResetConfig()

	ctx := context.Background()
	mockMarketRepo, _, mockOracle, _, mockSettlement, mockEventPublisher, service := newLifecycleFixture()

	market := resolvingMarket(1, entities.MarketPhaseCutoff)
	mockMarketRepo.On("GetByIDForUpdate", ctx, int64(1)).Return(market, nil)
	mockMarketRepo.On("Update", ctx, market).Return(nil)
	mockEventPublisher.On("Publish", mock.AnythingOfType("events.MarketPhaseChangeEvent")).Return(nil)

	// Price pumped but liquidity was pulled: classic rug, price is a mirage
	mockOracle.On("GetSnapshot", ctx, market.TokenMint).Return(snapshot(1.50, 30000), nil)
	mockSettlement.On("Settle", ctx, int64(1), entities.OutcomeRug, 1.50).Return(&entities.SettlementResult{}, nil)

	err := service.HandleTransition(ctx, 1, entities.MarketPhaseResolving)

	require.NoError(t, err)
	mockSettlement.AssertExpectations(t)
}

func TestLifecycleService_HandleTransition_OracleFailureSchedulesRetry(t *testing.T) {
	config.SetTestConfig(config.NewTestConfig())
	defer config.ResetConfig()

	ctx := context.Background()
	mockMarketRepo, _, mockOracle, mockScheduler, mockSettlement, mockEventPublisher, service := newLifecycleFixture()

	market := resolvingMarket(1, entities.MarketPhaseCutoff)
	mockMarketRepo.On("GetByIDForUpdate", ctx, int64(1)).Return(market, nil)
	mockMarketRepo.On("Update", ctx, market).Return(nil)
	mockEventPublisher.On("Publish", mock.AnythingOfType("events.MarketPhaseChangeEvent")).Return(nil)

	mockOracle.On("GetSnapshot", ctx, market.TokenMint).Return(nil, errors.New("oracle timeout"))
	mockScheduler.On("Schedule", ctx, int64(1), entities.MarketPhaseResolving, mock.AnythingOfType("time.Time")).Return(nil)

	err := service.HandleTransition(ctx, 1, entities.MarketPhaseResolving)

	require.NoError(t, err)
	assert.Equal(t, 1, market.ResolveAttempts)
	assert.Equal(t, entities.MarketPhaseResolving, market.Phase)
	mockScheduler.AssertExpectations(t)
	mockSettlement.AssertNotCalled(t, "Settle", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestLifecycleService_HandleTransition_RetryDrivesResolution(t *testing.T) {
	config.SetTestConfig(config.NewTestConfig())
	defer config.ResetConfig()

	ctx := context.Background()
	mockMarketRepo, _, mockOracle, _, mockSettlement, _, service := newLifecycleFixture()

	// Already resolving from an earlier failed attempt
	market := resolvingMarket(1, entities.MarketPhaseResolving)
	market.ResolveAttempts = 1
	mockMarketRepo.On("GetByIDForUpdate", ctx, int64(1)).Return(market, nil)

	mockOracle.On("GetSnapshot", ctx, market.TokenMint).Return(snapshot(1.10, 95000), nil)
	mockSettlement.On("Settle", ctx, int64(1), entities.OutcomePump, 1.10).Return(&entities.SettlementResult{}, nil)

	err := service.HandleTransition(ctx, 1, entities.MarketPhaseResolving)

	require.NoError(t, err)
	mockSettlement.AssertExpectations(t)
}

func TestLifecycleService_HandleTransition_OracleExhausted(t *testing.T) {
	config.SetTestConfig(config.NewTestConfig())
	defer config.ResetConfig()

	ctx := context.Background()
	mockMarketRepo, _, mockOracle, mockScheduler, _, _, service := newLifecycleFixture()

	market := resolvingMarket(1, entities.MarketPhaseResolving)
	market.ResolveAttempts = 2 // one attempt left of the configured 3
	mockMarketRepo.On("GetByIDForUpdate", ctx, int64(1)).Return(market, nil)
	mockMarketRepo.On("Update", ctx, market).Return(nil)

	mockOracle.On("GetSnapshot", ctx, market.TokenMint).Return(nil, errors.New("oracle timeout"))

	err := service.HandleTransition(ctx, 1, entities.MarketPhaseResolving)

	// Out of retries: no error, so the attempt count commits and the worker
	// stops requeueing. The market stays resolving for manual intervention.
	require.NoError(t, err)
	assert.Equal(t, 3, market.ResolveAttempts)
	assert.Equal(t, entities.MarketPhaseResolving, market.Phase)
	mockScheduler.AssertNotCalled(t, "Schedule", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
