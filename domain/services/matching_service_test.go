package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"pumprug/config"
	"pumprug/domain/entities"
	"pumprug/domain/testhelpers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// bettingMarket returns a market in the betting phase with plenty of
// window left before cutoff
func bettingMarket(id int64) *entities.Market {
	now := time.Now()
	return &entities.Market{
		ID:              id,
		TokenMint:       "So11111111111111111111111111111111111111112",
		Phase:           entities.MarketPhaseBetting,
		StartsAt:        now.Add(-5 * time.Minute),
		EndsAt:          now.Add(55 * time.Minute),
		DurationMinutes: 60,
	}
}

func newMatchingFixture() (*testhelpers.MockMarketRepository, *testhelpers.MockBetRepository, *testhelpers.MockMatchRepository, *testhelpers.MockEventPublisher, *matchingService) {
	mockMarketRepo := new(testhelpers.MockMarketRepository)
	mockBetRepo := new(testhelpers.MockBetRepository)
	mockMatchRepo := new(testhelpers.MockMatchRepository)
	mockEventPublisher := new(testhelpers.MockEventPublisher)

	service := NewMatchingService(mockMarketRepo, mockBetRepo, mockMatchRepo, mockEventPublisher).(*matchingService)
	return mockMarketRepo, mockBetRepo, mockMatchRepo, mockEventPublisher, service
}

func TestMatchingService_PlaceBet_EmptyMarket(t *testing.T) {
	config.SetTestConfig(config.NewTestConfig())
	defer config.ResetConfig()

	ctx := context.Background()
	mockMarketRepo, mockBetRepo, _, mockEventPublisher, service := newMatchingFixture()

	market := bettingMarket(1)
	mockMarketRepo.On("GetByIDForUpdate", ctx, int64(1)).Return(market, nil)

	mockBetRepo.On("Create", ctx, mock.MatchedBy(func(b *entities.Bet) bool {
		// 2% fee off a 10000 gross stake
		return b.GrossAmount == 10000 && b.NetAmount == 9800 && b.FeeAmount == 200 &&
			b.Side == entities.BetSidePump && b.Status == entities.BetStatusPending
	})).Return(nil).Run(func(args mock.Arguments) {
		args.Get(1).(*entities.Bet).ID = 101
	})

	mockBetRepo.On("GetUnmatchedByMarketAndSide", ctx, int64(1), entities.BetSideRug).Return([]*entities.Bet{}, nil)
	mockMarketRepo.On("Update", ctx, market).Return(nil)
	mockEventPublisher.On("Publish", mock.AnythingOfType("events.OddsUpdateEvent")).Return(nil)
	mockEventPublisher.On("Publish", mock.AnythingOfType("events.BetMatchedEvent")).Return(nil)

	result, err := service.PlaceBet(ctx, 555, 1, entities.BetSidePump, 10000)

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, int64(0), result.MatchedAmount)
	assert.Empty(t, result.Matches)
	// Both pools were empty when the wager arrived: neutral odds
	assert.Equal(t, 2.0, result.OddsLocked)
	assert.Equal(t, int64(9800), market.PumpPool)
	assert.Equal(t, int64(0), market.RugPool)

	mockMarketRepo.AssertExpectations(t)
	mockBetRepo.AssertExpectations(t)
	mockEventPublisher.AssertExpectations(t)
}

func TestMatchingService_PlaceBet_EmptySideGetsCeilingOdds(t *testing.T) {
	config.SetTestConfig(config.NewTestConfig())
	defer config.ResetConfig()

	ctx := context.Background()
	mockMarketRepo, mockBetRepo, mockMatchRepo, mockEventPublisher, service := newMatchingFixture()

	// All existing stake is on the rug side
	market := bettingMarket(1)
	market.RugPool = 9800

	opposing := &entities.Bet{
		ID:        50,
		MarketID:  1,
		UserID:    777,
		Side:      entities.BetSideRug,
		NetAmount: 9800,
		Status:    entities.BetStatusPending,
	}

	mockMarketRepo.On("GetByIDForUpdate", ctx, int64(1)).Return(market, nil)
	mockBetRepo.On("Create", ctx, mock.AnythingOfType("*entities.Bet")).Return(nil).Run(func(args mock.Arguments) {
		args.Get(1).(*entities.Bet).ID = 101
	})
	mockBetRepo.On("GetUnmatchedByMarketAndSide", ctx, int64(1), entities.BetSideRug).Return([]*entities.Bet{opposing}, nil)
	mockMatchRepo.On("Create", ctx, mock.MatchedBy(func(m *entities.Match) bool {
		return m.PumpBetID == 101 && m.RugBetID == 50 && m.Amount == 4900
	})).Return(nil)
	mockBetRepo.On("Update", ctx, opposing).Return(nil)
	mockBetRepo.On("Update", ctx, mock.MatchedBy(func(b *entities.Bet) bool {
		return b.ID == 101
	})).Return(nil)
	mockMarketRepo.On("Update", ctx, market).Return(nil)
	mockEventPublisher.On("Publish", mock.AnythingOfType("events.OddsUpdateEvent")).Return(nil)
	mockEventPublisher.On("Publish", mock.AnythingOfType("events.BetMatchedEvent")).Return(nil)

	result, err := service.PlaceBet(ctx, 555, 1, entities.BetSidePump, 5000)

	require.NoError(t, err)
	// The pump side was empty at arrival, so the pump bettor locks the
	// maximum multiplier even though the pools rebalance right after
	assert.Equal(t, 10.0, result.OddsLocked)
	assert.Equal(t, int64(4900), result.MatchedAmount)
	assert.Len(t, result.Matches, 1)
	assert.Equal(t, entities.BetStatusMatched, result.Bet.Status)
	assert.Equal(t, int64(4900), opposing.MatchedAmount)

	mockMatchRepo.AssertExpectations(t)
	mockBetRepo.AssertExpectations(t)
}

func TestMatchingService_PlaceBet_ConsumesOldestFirst(t *testing.T) {
	config.SetTestConfig(config.NewTestConfig())
	defer config.ResetConfig()

	ctx := context.Background()
	mockMarketRepo, mockBetRepo, mockMatchRepo, mockEventPublisher, service := newMatchingFixture()

	market := bettingMarket(1)
	market.PumpPool = 8000

	oldest := &entities.Bet{ID: 10, MarketID: 1, Side: entities.BetSidePump, NetAmount: 3000}
	newer := &entities.Bet{ID: 11, MarketID: 1, Side: entities.BetSidePump, NetAmount: 5000}

	mockMarketRepo.On("GetByIDForUpdate", ctx, int64(1)).Return(market, nil)
	mockBetRepo.On("Create", ctx, mock.AnythingOfType("*entities.Bet")).Return(nil).Run(func(args mock.Arguments) {
		args.Get(1).(*entities.Bet).ID = 102
	})
	mockBetRepo.On("GetUnmatchedByMarketAndSide", ctx, int64(1), entities.BetSidePump).Return([]*entities.Bet{oldest, newer}, nil)
	mockMatchRepo.On("Create", ctx, mock.MatchedBy(func(m *entities.Match) bool {
		return m.PumpBetID == 10 && m.RugBetID == 102 && m.Amount == 3000
	})).Return(nil)
	mockMatchRepo.On("Create", ctx, mock.MatchedBy(func(m *entities.Match) bool {
		return m.PumpBetID == 11 && m.RugBetID == 102 && m.Amount == 1900
	})).Return(nil)
	mockBetRepo.On("Update", ctx, mock.AnythingOfType("*entities.Bet")).Return(nil)
	mockMarketRepo.On("Update", ctx, market).Return(nil)
	mockEventPublisher.On("Publish", mock.AnythingOfType("events.OddsUpdateEvent")).Return(nil)
	mockEventPublisher.On("Publish", mock.AnythingOfType("events.BetMatchedEvent")).Return(nil)

	// 5000 gross -> 4900 net on the rug side
	result, err := service.PlaceBet(ctx, 555, 1, entities.BetSideRug, 5000)

	require.NoError(t, err)
	assert.Equal(t, int64(4900), result.MatchedAmount)
	assert.Len(t, result.Matches, 2)

	// The oldest opposing bet is fully consumed before the newer one is touched
	assert.Equal(t, int64(3000), oldest.MatchedAmount)
	assert.Equal(t, entities.BetStatusMatched, oldest.Status)
	assert.Equal(t, int64(1900), newer.MatchedAmount)
	assert.Equal(t, int64(3100), newer.UnmatchedAmount())

	mockMatchRepo.AssertExpectations(t)
}

func TestMatchingService_PlaceBet_ConcurrentWagersSerialized(t *testing.T) {
	config.SetTestConfig(config.NewTestConfig())
	defer config.ResetConfig()

	ctx := context.Background()
	mockMarketRepo, mockBetRepo, mockMatchRepo, mockEventPublisher, service := newMatchingFixture()

	// A single opposing bet with 4900 of capacity, contested by two
	// simultaneous pump wagers that could each absorb all of it
	market := bettingMarket(1)
	market.RugPool = 4900
	opposing := &entities.Bet{
		ID:        50,
		MarketID:  1,
		UserID:    777,
		Side:      entities.BetSideRug,
		NetAmount: 4900,
		Status:    entities.BetStatusPending,
	}

	var mu sync.Mutex
	nextID := int64(100)
	var matchedTotal int64

	mockMarketRepo.On("GetByIDForUpdate", ctx, int64(1)).Return(market, nil)
	mockBetRepo.On("Create", ctx, mock.AnythingOfType("*entities.Bet")).Return(nil).Run(func(args mock.Arguments) {
		mu.Lock()
		nextID++
		args.Get(1).(*entities.Bet).ID = nextID
		mu.Unlock()
	})
	mockBetRepo.On("GetUnmatchedByMarketAndSide", ctx, int64(1), entities.BetSideRug).Return([]*entities.Bet{opposing}, nil)
	mockMatchRepo.On("Create", ctx, mock.AnythingOfType("*entities.Match")).Return(nil).Run(func(args mock.Arguments) {
		mu.Lock()
		matchedTotal += args.Get(1).(*entities.Match).Amount
		mu.Unlock()
	})
	mockBetRepo.On("Update", ctx, mock.AnythingOfType("*entities.Bet")).Return(nil)
	mockMarketRepo.On("Update", ctx, market).Return(nil)
	mockEventPublisher.On("Publish", mock.Anything).Return(nil)

	results := make([]*entities.MatchResult, 2)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result, err := service.PlaceBet(ctx, int64(600+i), 1, entities.BetSidePump, 5000)
			assert.NoError(t, err)
			results[i] = result
		}(i)
	}
	wg.Wait()

	// The opposing capacity is consumed exactly once between the two
	// wagers; no double-matching, no lost pool updates
	assert.Equal(t, int64(4900), opposing.MatchedAmount)
	assert.Equal(t, int64(4900), matchedTotal)
	require.NotNil(t, results[0])
	require.NotNil(t, results[1])
	assert.Equal(t, int64(4900), results[0].MatchedAmount+results[1].MatchedAmount)
	assert.Equal(t, int64(9800), market.PumpPool)
	assert.Equal(t, int64(4900), market.RugPool)
}

func TestMatchingService_PlaceBet_MarketNotBetting(t *testing.T) {
	config.SetTestConfig(config.NewTestConfig())
	defer config.ResetConfig()

	ctx := context.Background()
	mockMarketRepo, _, _, _, service := newMatchingFixture()

	market := bettingMarket(1)
	market.Phase = entities.MarketPhaseCutoff
	mockMarketRepo.On("GetByIDForUpdate", ctx, int64(1)).Return(market, nil)

	result, err := service.PlaceBet(ctx, 555, 1, entities.BetSidePump, 10000)

	assert.ErrorIs(t, err, entities.ErrMarketClosed)
	assert.Nil(t, result)

	// The market takes no further wagers, so its mutex entry is dropped
	_, held := marketLocks.Load(int64(1))
	assert.False(t, held)
}

func TestMatchingService_PlaceBet_PastCutoff(t *testing.T) {
	config.SetTestConfig(config.NewTestConfig())
	defer config.ResetConfig()

	ctx := context.Background()
	mockMarketRepo, _, _, _, service := newMatchingFixture()

	// Still flagged betting but the cutoff instant has passed
	now := time.Now()
	market := &entities.Market{
		ID:              1,
		Phase:           entities.MarketPhaseBetting,
		StartsAt:        now.Add(-40 * time.Minute),
		EndsAt:          now.Add(20 * time.Minute),
		DurationMinutes: 60,
	}
	mockMarketRepo.On("GetByIDForUpdate", ctx, int64(1)).Return(market, nil)

	result, err := service.PlaceBet(ctx, 555, 1, entities.BetSidePump, 10000)

	assert.ErrorIs(t, err, entities.ErrMarketClosed)
	assert.Nil(t, result)
}

func TestMatchingService_PlaceBet_InvalidInput(t *testing.T) {
	config.SetTestConfig(config.NewTestConfig())
	defer config.ResetConfig()

	ctx := context.Background()
	_, _, _, _, service := newMatchingFixture()

	_, err := service.PlaceBet(ctx, 555, 1, entities.BetSidePump, 0)
	assert.ErrorIs(t, err, entities.ErrInvalidArgument)

	_, err = service.PlaceBet(ctx, 555, 1, entities.BetSidePump, -100)
	assert.ErrorIs(t, err, entities.ErrInvalidArgument)

	_, err = service.PlaceBet(ctx, 555, 1, entities.BetSide("sideways"), 10000)
	assert.ErrorIs(t, err, entities.ErrInvalidArgument)
}

func TestMatchingService_PlaceBet_MarketNotFound(t *testing.T) {
	config.SetTestConfig(config.NewTestConfig())
	defer config.ResetConfig()

	ctx := context.Background()
	mockMarketRepo, _, _, _, service := newMatchingFixture()

	mockMarketRepo.On("GetByIDForUpdate", ctx, int64(99)).Return(nil, nil)

	result, err := service.PlaceBet(ctx, 555, 99, entities.BetSidePump, 10000)

	assert.ErrorIs(t, err, entities.ErrNotFound)
	assert.Nil(t, result)
}
