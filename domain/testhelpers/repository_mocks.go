package testhelpers

import (
	"context"
	"time"

	"pumprug/domain/entities"
	"pumprug/domain/events"

	"github.com/stretchr/testify/mock"
)

// MockMarketRepository is a mock implementation of MarketRepository
type MockMarketRepository struct {
	mock.Mock
}

func (m *MockMarketRepository) Create(ctx context.Context, market *entities.Market) error {
	args := m.Called(ctx, market)
	return args.Error(0)
}

func (m *MockMarketRepository) GetByID(ctx context.Context, id int64) (*entities.Market, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Market), args.Error(1)
}

func (m *MockMarketRepository) GetByIDForUpdate(ctx context.Context, id int64) (*entities.Market, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Market), args.Error(1)
}

func (m *MockMarketRepository) Update(ctx context.Context, market *entities.Market) error {
	args := m.Called(ctx, market)
	return args.Error(0)
}

func (m *MockMarketRepository) GetByPhase(ctx context.Context, phase entities.MarketPhase) ([]*entities.Market, error) {
	args := m.Called(ctx, phase)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Market), args.Error(1)
}

// MockBetRepository is a mock implementation of BetRepository
type MockBetRepository struct {
	mock.Mock
}

func (m *MockBetRepository) Create(ctx context.Context, bet *entities.Bet) error {
	args := m.Called(ctx, bet)
	return args.Error(0)
}

func (m *MockBetRepository) GetByID(ctx context.Context, id int64) (*entities.Bet, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Bet), args.Error(1)
}

func (m *MockBetRepository) GetByMarket(ctx context.Context, marketID int64) ([]*entities.Bet, error) {
	args := m.Called(ctx, marketID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Bet), args.Error(1)
}

func (m *MockBetRepository) GetUnmatchedByMarketAndSide(ctx context.Context, marketID int64, side entities.BetSide) ([]*entities.Bet, error) {
	args := m.Called(ctx, marketID, side)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Bet), args.Error(1)
}

func (m *MockBetRepository) Update(ctx context.Context, bet *entities.Bet) error {
	args := m.Called(ctx, bet)
	return args.Error(0)
}

func (m *MockBetRepository) GetByUser(ctx context.Context, userID int64, limit int) ([]*entities.Bet, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Bet), args.Error(1)
}

// MockPendingBetRepository is a mock implementation of PendingBetRepository
type MockPendingBetRepository struct {
	mock.Mock
}

func (m *MockPendingBetRepository) Create(ctx context.Context, pendingBet *entities.PendingBet) error {
	args := m.Called(ctx, pendingBet)
	return args.Error(0)
}

func (m *MockPendingBetRepository) GetByNonce(ctx context.Context, nonce string) (*entities.PendingBet, error) {
	args := m.Called(ctx, nonce)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.PendingBet), args.Error(1)
}

func (m *MockPendingBetRepository) TransitionStatus(ctx context.Context, nonce string, from, to entities.PendingBetStatus) (bool, error) {
	args := m.Called(ctx, nonce, from, to)
	return args.Bool(0), args.Error(1)
}

func (m *MockPendingBetRepository) Update(ctx context.Context, pendingBet *entities.PendingBet) error {
	args := m.Called(ctx, pendingBet)
	return args.Error(0)
}

func (m *MockPendingBetRepository) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockMatchRepository is a mock implementation of MatchRepository
type MockMatchRepository struct {
	mock.Mock
}

func (m *MockMatchRepository) Create(ctx context.Context, match *entities.Match) error {
	args := m.Called(ctx, match)
	return args.Error(0)
}

func (m *MockMatchRepository) GetByMarket(ctx context.Context, marketID int64) ([]*entities.Match, error) {
	args := m.Called(ctx, marketID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Match), args.Error(1)
}

func (m *MockMatchRepository) GetByBet(ctx context.Context, betID int64) ([]*entities.Match, error) {
	args := m.Called(ctx, betID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Match), args.Error(1)
}

// MockEventPublisher is a mock implementation of EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(event events.Event) error {
	args := m.Called(event)
	return args.Error(0)
}

// MockLedgerClient is a mock implementation of LedgerClient
type MockLedgerClient struct {
	mock.Mock
}

func (m *MockLedgerClient) GetTransaction(ctx context.Context, signature string) (*entities.LedgerTransaction, error) {
	args := m.Called(ctx, signature)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.LedgerTransaction), args.Error(1)
}

// MockPriceOracle is a mock implementation of PriceOracle
type MockPriceOracle struct {
	mock.Mock
}

func (m *MockPriceOracle) GetSnapshot(ctx context.Context, tokenMint string) (*entities.PriceSnapshot, error) {
	args := m.Called(ctx, tokenMint)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.PriceSnapshot), args.Error(1)
}

// MockTransitionScheduler is a mock implementation of TransitionScheduler
type MockTransitionScheduler struct {
	mock.Mock
}

func (m *MockTransitionScheduler) Schedule(ctx context.Context, marketID int64, target entities.MarketPhase, at time.Time) error {
	args := m.Called(ctx, marketID, target, at)
	return args.Error(0)
}

// MockBalanceCrediter is a mock implementation of BalanceCrediter
type MockBalanceCrediter struct {
	mock.Mock
}

func (m *MockBalanceCrediter) Credit(ctx context.Context, userID int64, amount int64, reference string) error {
	args := m.Called(ctx, userID, amount, reference)
	return args.Error(0)
}

// MockRateLimiter is a mock implementation of RateLimiter
type MockRateLimiter struct {
	mock.Mock
}

func (m *MockRateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, key, limit, window)
	return args.Bool(0), args.Error(1)
}

// MockMatchingService is a mock implementation of MatchingService
type MockMatchingService struct {
	mock.Mock
}

func (m *MockMatchingService) PlaceBet(ctx context.Context, userID, marketID int64, side entities.BetSide, grossAmount int64) (*entities.MatchResult, error) {
	args := m.Called(ctx, userID, marketID, side, grossAmount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.MatchResult), args.Error(1)
}

// MockSettlementService is a mock implementation of SettlementService
type MockSettlementService struct {
	mock.Mock
}

func (m *MockSettlementService) Settle(ctx context.Context, marketID int64, outcome entities.Outcome, finalPrice float64) (*entities.SettlementResult, error) {
	args := m.Called(ctx, marketID, outcome, finalPrice)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.SettlementResult), args.Error(1)
}

// MockLifecycleService is a mock implementation of LifecycleService
type MockLifecycleService struct {
	mock.Mock
}

func (m *MockLifecycleService) CreateMarket(ctx context.Context, tokenMint string, startsAt time.Time, durationMinutes int) (*entities.Market, error) {
	args := m.Called(ctx, tokenMint, startsAt, durationMinutes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Market), args.Error(1)
}

func (m *MockLifecycleService) HandleTransition(ctx context.Context, marketID int64, target entities.MarketPhase) error {
	args := m.Called(ctx, marketID, target)
	return args.Error(0)
}
