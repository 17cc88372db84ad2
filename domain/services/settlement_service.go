package services

import (
	"context"
	"fmt"
	"time"

	"pumprug/domain/entities"
	"pumprug/domain/events"
	"pumprug/domain/interfaces"

	log "github.com/sirupsen/logrus"
)

type settlementService struct {
	marketRepo     interfaces.MarketRepository
	betRepo        interfaces.BetRepository
	crediter       interfaces.BalanceCrediter
	eventPublisher interfaces.EventPublisher
}

// NewSettlementService creates a new settlement service
func NewSettlementService(
	marketRepo interfaces.MarketRepository,
	betRepo interfaces.BetRepository,
	crediter interfaces.BalanceCrediter,
	eventPublisher interfaces.EventPublisher,
) interfaces.SettlementService {
	return &settlementService{
		marketRepo:     marketRepo,
		betRepo:        betRepo,
		crediter:       crediter,
		eventPublisher: eventPublisher,
	}
}

// Settle finalizes every bet on a resolved market and credits payouts.
// Each bet reaches a terminal status exactly once, so a re-invocation
// after a partial failure resumes where the previous run stopped instead
// of double-crediting.
func (s *settlementService) Settle(ctx context.Context, marketID int64, outcome entities.Outcome, finalPrice float64) (*entities.SettlementResult, error) {
	if outcome != entities.OutcomePump && outcome != entities.OutcomeRug {
		return nil, fmt.Errorf("%w: unknown outcome %q", entities.ErrInvalidArgument, outcome)
	}

	market, err := s.marketRepo.GetByIDForUpdate(ctx, marketID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock market: %w", err)
	}
	if market == nil {
		return nil, fmt.Errorf("market %d: %w", marketID, entities.ErrNotFound)
	}

	// Re-delivered settlement for an already-settled market: no-op
	if market.IsSettled() {
		log.WithField("marketId", marketID).Info("Market already settled, ignoring re-delivered settlement")
		return nil, nil
	}
	if market.Phase != entities.MarketPhaseResolving {
		return nil, fmt.Errorf("market %d in phase %s: %w", marketID, market.Phase, entities.ErrSettlementConflict)
	}

	bets, err := s.betRepo.GetByMarket(ctx, marketID)
	if err != nil {
		return nil, fmt.Errorf("failed to load market bets: %w", err)
	}

	result := &entities.SettlementResult{
		Market:        market,
		Outcome:       outcome,
		PayoutDetails: make(map[int64]int64),
	}

	for _, bet := range bets {
		if bet.IsSettled() {
			continue
		}
		if err := s.settleBet(ctx, market, bet, outcome, result); err != nil {
			return nil, err
		}
	}

	market.Settle(outcome, finalPrice)
	if err := s.marketRepo.Update(ctx, market); err != nil {
		return nil, fmt.Errorf("failed to update settled market: %w", err)
	}

	if err := s.eventPublisher.Publish(events.MarketPhaseChangeEvent{
		MarketID: market.ID,
		OldPhase: string(entities.MarketPhaseResolving),
		NewPhase: string(entities.MarketPhaseSettled),
		Outcome:  string(outcome),
	}); err != nil {
		log.WithError(err).Error("Failed to publish settlement phase change event")
	}

	log.WithFields(log.Fields{
		"marketId": marketID,
		"outcome":  outcome,
		"winners":  len(result.Winners),
		"losers":   len(result.Losers),
		"refunded": len(result.Refunded),
	}).Info("Market settled")

	return result, nil
}

// settleBet assigns the bet its terminal status and credits the payout.
// The unmatched remainder frozen at cutoff is returned on every bet, win
// or lose; only the matched stake is actually at risk.
func (s *settlementService) settleBet(ctx context.Context, market *entities.Market, bet *entities.Bet, outcome entities.Outcome, result *entities.SettlementResult) error {
	var payout int64

	switch {
	case bet.MatchedAmount == 0:
		bet.Status = entities.BetStatusRefunded
		payout = bet.RefundAmount
		result.Refunded = append(result.Refunded, bet)
	case entities.Outcome(bet.Side) == outcome:
		bet.Status = entities.BetStatusWon
		payout = bet.PotentialPayout() + bet.RefundAmount
		result.Winners = append(result.Winners, bet)
	default:
		bet.Status = entities.BetStatusLost
		payout = bet.RefundAmount
		result.Losers = append(result.Losers, bet)
	}

	bet.PayoutAmount = &payout
	now := time.Now()
	bet.SettledAt = &now

	if payout > 0 {
		reference := fmt.Sprintf("settlement:%d:%d", market.ID, bet.ID)
		if err := s.crediter.Credit(ctx, bet.UserID, payout, reference); err != nil {
			return fmt.Errorf("failed to credit payout for bet %d: %w", bet.ID, err)
		}
	}

	if err := s.betRepo.Update(ctx, bet); err != nil {
		return fmt.Errorf("failed to update settled bet %d: %w", bet.ID, err)
	}

	result.PayoutDetails[bet.ID] = payout

	if err := s.eventPublisher.Publish(events.BetSettledEvent{
		MarketID: market.ID,
		BetID:    bet.ID,
		UserID:   bet.UserID,
		Status:   string(bet.Status),
		Payout:   payout,
	}); err != nil {
		log.WithError(err).Error("Failed to publish bet settled event")
	}

	return nil
}
