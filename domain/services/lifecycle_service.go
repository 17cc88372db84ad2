package services

import (
	"context"
	"fmt"
	"time"

	"pumprug/config"
	"pumprug/domain/entities"
	"pumprug/domain/events"
	"pumprug/domain/interfaces"

	log "github.com/sirupsen/logrus"
)

type lifecycleService struct {
	config         *config.Config
	marketRepo     interfaces.MarketRepository
	betRepo        interfaces.BetRepository
	oracle         interfaces.PriceOracle
	scheduler      interfaces.TransitionScheduler
	settlement     interfaces.SettlementService
	eventPublisher interfaces.EventPublisher
}

// NewLifecycleService creates a new market lifecycle service
func NewLifecycleService(
	marketRepo interfaces.MarketRepository,
	betRepo interfaces.BetRepository,
	oracle interfaces.PriceOracle,
	scheduler interfaces.TransitionScheduler,
	settlement interfaces.SettlementService,
	eventPublisher interfaces.EventPublisher,
) interfaces.LifecycleService {
	return &lifecycleService{
		config:         config.Get(),
		marketRepo:     marketRepo,
		betRepo:        betRepo,
		oracle:         oracle,
		scheduler:      scheduler,
		settlement:     settlement,
		eventPublisher: eventPublisher,
	}
}

// CreateMarket persists a new market, captures the oracle baseline the
// resolution will be measured against, and schedules the phase callbacks
func (s *lifecycleService) CreateMarket(ctx context.Context, tokenMint string, startsAt time.Time, durationMinutes int) (*entities.Market, error) {
	if tokenMint == "" {
		return nil, fmt.Errorf("%w: token mint is required", entities.ErrInvalidArgument)
	}
	if durationMinutes <= 0 {
		return nil, fmt.Errorf("%w: duration must be positive", entities.ErrInvalidArgument)
	}

	snapshot, err := s.oracle.GetSnapshot(ctx, tokenMint)
	if err != nil {
		return nil, fmt.Errorf("failed to read oracle baseline for %s: %w", tokenMint, err)
	}

	market := &entities.Market{
		TokenMint:       tokenMint,
		Phase:           entities.MarketPhaseOpen,
		StartsAt:        startsAt,
		EndsAt:          startsAt.Add(time.Duration(durationMinutes) * time.Minute),
		DurationMinutes: durationMinutes,
		StartPrice:      &snapshot.PriceUSD,
		StartLiquidity:  &snapshot.LiquidityUSD,
	}
	if err := s.marketRepo.Create(ctx, market); err != nil {
		return nil, fmt.Errorf("failed to create market: %w", err)
	}

	// At-least-once delivery; HandleTransition absorbs duplicates
	schedules := []struct {
		target entities.MarketPhase
		at     time.Time
	}{
		{entities.MarketPhaseBetting, market.StartsAt},
		{entities.MarketPhaseCutoff, market.CutoffAt()},
		{entities.MarketPhaseResolving, market.EndsAt},
	}
	for _, sched := range schedules {
		if err := s.scheduler.Schedule(ctx, market.ID, sched.target, sched.at); err != nil {
			return nil, fmt.Errorf("failed to schedule %s transition: %w", sched.target, err)
		}
	}

	log.WithFields(log.Fields{
		"marketId":   market.ID,
		"tokenMint":  tokenMint,
		"startsAt":   startsAt,
		"startPrice": snapshot.PriceUSD,
	}).Info("Market created")

	return market, nil
}

// HandleTransition is the scheduled-callback entry point. A callback for a
// market already in or past the target phase is a no-op, with one
// exception: a repeated resolving callback retries a failed resolution.
func (s *lifecycleService) HandleTransition(ctx context.Context, marketID int64, target entities.MarketPhase) error {
	market, err := s.marketRepo.GetByIDForUpdate(ctx, marketID)
	if err != nil {
		return fmt.Errorf("failed to lock market: %w", err)
	}
	if market == nil {
		return fmt.Errorf("market %d: %w", marketID, entities.ErrNotFound)
	}

	if !market.CanTransitionTo(target) {
		// Re-delivered resolving callbacks drive oracle retries
		if target == entities.MarketPhaseResolving && market.Phase == entities.MarketPhaseResolving {
			return s.resolve(ctx, market)
		}
		log.WithFields(log.Fields{
			"marketId": marketID,
			"phase":    market.Phase,
			"target":   target,
		}).Debug("Ignoring stale phase transition")
		return nil
	}

	switch target {
	case entities.MarketPhaseBetting:
		return s.transitionPhase(ctx, market, entities.MarketPhaseBetting)
	case entities.MarketPhaseCutoff:
		return s.enterCutoff(ctx, market)
	case entities.MarketPhaseResolving:
		// A market whose cutoff callback never ran still owes every bet
		// its unmatched remainder. Freeze refunds before resolving.
		if market.Phase == entities.MarketPhaseOpen || market.Phase == entities.MarketPhaseBetting {
			if err := s.freezeRefunds(ctx, market); err != nil {
				return err
			}
		}
		if err := s.transitionPhase(ctx, market, entities.MarketPhaseResolving); err != nil {
			return err
		}
		return s.resolve(ctx, market)
	default:
		return fmt.Errorf("%w: cannot schedule transition to %s", entities.ErrInvalidArgument, target)
	}
}

func (s *lifecycleService) transitionPhase(ctx context.Context, market *entities.Market, target entities.MarketPhase) error {
	oldPhase := market.Phase
	market.Phase = target
	if err := s.marketRepo.Update(ctx, market); err != nil {
		return fmt.Errorf("failed to update market phase: %w", err)
	}

	log.WithFields(log.Fields{
		"marketId": market.ID,
		"from":     oldPhase,
		"to":       target,
	}).Info("Market phase transition")

	if err := s.eventPublisher.Publish(events.MarketPhaseChangeEvent{
		MarketID: market.ID,
		OldPhase: string(oldPhase),
		NewPhase: string(target),
	}); err != nil {
		log.WithError(err).Error("Failed to publish phase change event")
	}
	return nil
}

// enterCutoff closes betting and freezes each bet's refundable remainder
func (s *lifecycleService) enterCutoff(ctx context.Context, market *entities.Market) error {
	if err := s.freezeRefunds(ctx, market); err != nil {
		return err
	}
	return s.transitionPhase(ctx, market, entities.MarketPhaseCutoff)
}

// freezeRefunds records each bet's unmatched remainder as its refund.
// Unmatched stake can no longer be consumed once betting closes, so
// whatever is unpaired now is returned at settlement regardless of the
// outcome.
func (s *lifecycleService) freezeRefunds(ctx context.Context, market *entities.Market) error {
	bets, err := s.betRepo.GetByMarket(ctx, market.ID)
	if err != nil {
		return fmt.Errorf("failed to load market bets: %w", err)
	}

	for _, bet := range bets {
		unmatched := bet.UnmatchedAmount()
		if unmatched == bet.RefundAmount {
			continue
		}
		bet.RefundAmount = unmatched
		if err := s.betRepo.Update(ctx, bet); err != nil {
			return fmt.Errorf("failed to freeze refund for bet %d: %w", bet.ID, err)
		}
	}

	return nil
}

// resolve reads the oracle, classifies the outcome and settles. Oracle
// failures are retried on a delay up to the configured attempt cap.
func (s *lifecycleService) resolve(ctx context.Context, market *entities.Market) error {
	snapshot, err := s.oracle.GetSnapshot(ctx, market.TokenMint)
	if err != nil {
		market.ResolveAttempts++
		if updateErr := s.marketRepo.Update(ctx, market); updateErr != nil {
			log.WithError(updateErr).Error("Failed to record resolve attempt")
		}

		if market.ResolveAttempts >= s.config.ResolveMaxAttempts {
			// No further automatic retries. The market stays in resolving
			// until an operator intervenes; returning an error here would
			// roll back the attempt count and requeue the callback.
			log.WithError(err).WithFields(log.Fields{
				"marketId": market.ID,
				"attempts": market.ResolveAttempts,
			}).Error("Oracle unavailable after final resolve attempt, market needs manual resolution")
			return nil
		}

		retryAt := time.Now().Add(s.config.ResolveRetryDelay)
		if schedErr := s.scheduler.Schedule(ctx, market.ID, entities.MarketPhaseResolving, retryAt); schedErr != nil {
			return fmt.Errorf("failed to schedule resolve retry: %w", schedErr)
		}
		log.WithError(err).WithFields(log.Fields{
			"marketId": market.ID,
			"attempt":  market.ResolveAttempts,
			"retryAt":  retryAt,
		}).Warn("Oracle read failed, resolve retry scheduled")
		return nil
	}

	outcome := s.classifyOutcome(market, snapshot)

	log.WithFields(log.Fields{
		"marketId":   market.ID,
		"outcome":    outcome,
		"finalPrice": snapshot.PriceUSD,
	}).Info("Market resolved")

	if _, err := s.settlement.Settle(ctx, market.ID, outcome, snapshot.PriceUSD); err != nil {
		return fmt.Errorf("failed to settle resolved market: %w", err)
	}
	return nil
}

// classifyOutcome applies the resolution policy: a liquidity collapse is a
// rug no matter what the price did, otherwise the price must clear the
// pump threshold over the market window.
func (s *lifecycleService) classifyOutcome(market *entities.Market, snapshot *entities.PriceSnapshot) entities.Outcome {
	if market.StartLiquidity != nil && *market.StartLiquidity > 0 {
		liquidityChange := (snapshot.LiquidityUSD - *market.StartLiquidity) / *market.StartLiquidity * 100
		if liquidityChange <= s.config.RugThresholdPct {
			return entities.OutcomeRug
		}
	}

	startPrice := 0.0
	if market.StartPrice != nil {
		startPrice = *market.StartPrice
	}
	if snapshot.ChangePct(startPrice) >= s.config.PumpThresholdPct {
		return entities.OutcomePump
	}
	return entities.OutcomeRug
}
