package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"pumprug/config"
	"pumprug/domain/entities"
	"pumprug/domain/events"
	"pumprug/domain/interfaces"

	log "github.com/sirupsen/logrus"
)

// marketLocks serializes matching per market within this process. The row
// lock already serializes across processes; holding the in-process mutex
// first keeps local contenders from piling up on database locks. Entries
// are evicted once the market stops taking wagers.
var marketLocks sync.Map

func lockMarket(marketID int64) func() {
	v, _ := marketLocks.LoadOrStore(marketID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// forgetMarketLock drops the mutex entry for a market that takes no
// further wagers. Safe to race with lockMarket: cross-process correctness
// rests on the row lock, the mutex only reduces local lock contention.
func forgetMarketLock(marketID int64) {
	marketLocks.Delete(marketID)
}

type matchingService struct {
	config         *config.Config
	marketRepo     interfaces.MarketRepository
	betRepo        interfaces.BetRepository
	matchRepo      interfaces.MatchRepository
	eventPublisher interfaces.EventPublisher
}

// NewMatchingService creates a new bet matching service
func NewMatchingService(
	marketRepo interfaces.MarketRepository,
	betRepo interfaces.BetRepository,
	matchRepo interfaces.MatchRepository,
	eventPublisher interfaces.EventPublisher,
) interfaces.MatchingService {
	return &matchingService{
		config:         config.Get(),
		marketRepo:     marketRepo,
		betRepo:        betRepo,
		matchRepo:      matchRepo,
		eventPublisher: eventPublisher,
	}
}

func (s *matchingService) oddsParams() OddsParams {
	return OddsParams{
		Floor:     s.config.OddsFloor,
		Ceiling:   s.config.OddsCeiling,
		Smoothing: s.config.OddsSmoothing,
	}
}

// PlaceBet inserts a confirmed wager into the market. The market row is
// locked for the duration of the surrounding transaction, so concurrent
// wagers on the same market cannot consume the same opposing capacity.
func (s *matchingService) PlaceBet(ctx context.Context, userID, marketID int64, side entities.BetSide, grossAmount int64) (*entities.MatchResult, error) {
	if grossAmount <= 0 {
		return nil, fmt.Errorf("%w: wager amount must be positive", entities.ErrInvalidArgument)
	}
	if side != entities.BetSidePump && side != entities.BetSideRug {
		return nil, fmt.Errorf("%w: unknown side %q", entities.ErrInvalidArgument, side)
	}

	unlock := lockMarket(marketID)
	defer unlock()

	// Lock the market row. All matching state for this market is serialized
	// behind this lock.
	market, err := s.marketRepo.GetByIDForUpdate(ctx, marketID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock market: %w", err)
	}
	if market == nil {
		forgetMarketLock(marketID)
		return nil, fmt.Errorf("market %d: %w", marketID, entities.ErrNotFound)
	}

	now := time.Now()
	if !market.IsBetting() || !now.Before(market.CutoffAt()) {
		forgetMarketLock(marketID)
		return nil, fmt.Errorf("market %d (phase %s): %w", marketID, market.Phase, entities.ErrMarketClosed)
	}

	net, fee := entities.ComputeFee(grossAmount, s.config.FeeBps)
	if net <= 0 {
		return nil, fmt.Errorf("%w: wager amount too small to cover fee", entities.ErrInvalidArgument)
	}

	// Odds are locked from the pool state this wager arrives into, before
	// its own stake moves the pools.
	pumpOdds, rugOdds, err := ComputeOdds(market.PumpPool, market.RugPool, market.TimeToCutoff(now), s.oddsParams())
	if err != nil {
		return nil, err
	}
	oddsLocked := pumpOdds
	if side == entities.BetSideRug {
		oddsLocked = rugOdds
	}

	bet := &entities.Bet{
		MarketID:    marketID,
		UserID:      userID,
		Side:        side,
		GrossAmount: grossAmount,
		NetAmount:   net,
		FeeAmount:   fee,
		Status:      entities.BetStatusPending,
		OddsLocked:  oddsLocked,
	}
	if err := s.betRepo.Create(ctx, bet); err != nil {
		return nil, fmt.Errorf("failed to create bet: %w", err)
	}

	matches, err := s.consumeOpposingCapacity(ctx, market, bet)
	if err != nil {
		return nil, err
	}

	// Update pools and the published odds
	market.AddToPool(side, net)
	market.PumpOdds, market.RugOdds, err = ComputeOdds(market.PumpPool, market.RugPool, market.TimeToCutoff(now), s.oddsParams())
	if err != nil {
		return nil, err
	}
	if err := s.marketRepo.Update(ctx, market); err != nil {
		return nil, fmt.Errorf("failed to update market pools: %w", err)
	}

	if err := s.eventPublisher.Publish(events.OddsUpdateEvent{
		MarketID: market.ID,
		PumpPool: market.PumpPool,
		RugPool:  market.RugPool,
		PumpOdds: market.PumpOdds,
		RugOdds:  market.RugOdds,
	}); err != nil {
		log.WithError(err).Error("Failed to publish odds update event")
	}

	if err := s.eventPublisher.Publish(events.BetMatchedEvent{
		MarketID:      market.ID,
		BetID:         bet.ID,
		UserID:        bet.UserID,
		Side:          string(bet.Side),
		MatchedAmount: bet.MatchedAmount,
		OddsLocked:    bet.OddsLocked,
	}); err != nil {
		log.WithError(err).Error("Failed to publish bet matched event")
	}

	return &entities.MatchResult{
		Bet:           bet,
		MatchedAmount: bet.MatchedAmount,
		OddsLocked:    bet.OddsLocked,
		Matches:       matches,
	}, nil
}

// consumeOpposingCapacity pairs the new bet against opposing unmatched
// bets, oldest first, until either the bet is fully matched or the
// opposing side runs out of capacity
func (s *matchingService) consumeOpposingCapacity(ctx context.Context, market *entities.Market, bet *entities.Bet) ([]*entities.Match, error) {
	opposing, err := s.betRepo.GetUnmatchedByMarketAndSide(ctx, market.ID, bet.Side.Opposite())
	if err != nil {
		return nil, fmt.Errorf("failed to load opposing capacity: %w", err)
	}

	var matches []*entities.Match
	remaining := bet.NetAmount

	for _, opp := range opposing {
		if remaining == 0 {
			break
		}
		available := opp.UnmatchedAmount()
		if available <= 0 {
			continue
		}

		take := remaining
		if available < take {
			take = available
		}

		match := &entities.Match{
			MarketID: market.ID,
			Amount:   take,
		}
		if bet.Side == entities.BetSidePump {
			match.PumpBetID = bet.ID
			match.RugBetID = opp.ID
		} else {
			match.PumpBetID = opp.ID
			match.RugBetID = bet.ID
		}
		if err := s.matchRepo.Create(ctx, match); err != nil {
			return nil, fmt.Errorf("failed to create match: %w", err)
		}

		opp.Consume(take)
		if err := s.betRepo.Update(ctx, opp); err != nil {
			return nil, fmt.Errorf("failed to update opposing bet %d: %w", opp.ID, err)
		}

		bet.Consume(take)
		remaining -= take
		matches = append(matches, match)
	}

	if bet.MatchedAmount > 0 {
		if err := s.betRepo.Update(ctx, bet); err != nil {
			return nil, fmt.Errorf("failed to update bet: %w", err)
		}
	}

	return matches, nil
}
