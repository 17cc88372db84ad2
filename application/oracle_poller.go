package application

import (
	"context"
	"errors"
	"time"

	"pumprug/domain/entities"
	"pumprug/domain/events"
	"pumprug/domain/interfaces"

	log "github.com/sirupsen/logrus"
)

const (
	oracleLeaderKey = "oracle-poller"
	oracleLeaderTTL = 30 * time.Second
)

// OraclePoller periodically reads the price oracle for every token with
// an active market and broadcasts the readings as price ticks. Purely
// informational for live clients; resolution reads the oracle on its own.
type OraclePoller struct {
	marketRepo     interfaces.MarketRepository
	oracle         interfaces.PriceOracle
	eventPublisher interfaces.EventPublisher
	leaderLock     LeaderLock
	interval       time.Duration
}

// NewOraclePoller creates a new oracle poller
func NewOraclePoller(
	marketRepo interfaces.MarketRepository,
	oracle interfaces.PriceOracle,
	eventPublisher interfaces.EventPublisher,
	leaderLock LeaderLock,
	interval time.Duration,
) *OraclePoller {
	return &OraclePoller{
		marketRepo:     marketRepo,
		oracle:         oracle,
		eventPublisher: eventPublisher,
		leaderLock:     leaderLock,
		interval:       interval,
	}
}

// Start begins the oracle poller. Returns a cleanup function.
func (p *OraclePoller) Start(ctx context.Context) func() {
	stopChan := make(chan struct{})

	go func() {
		log.WithField("interval", p.interval).Info("Oracle poller started")
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				log.Info("Oracle poller shutting down (context cancelled)...")
				return
			case <-stopChan:
				log.Info("Oracle poller shutting down (stop requested)...")
				return
			case <-ticker.C:
				p.poll(ctx)
			}
		}
	}()

	return func() {
		close(stopChan)
	}
}

func (p *OraclePoller) poll(ctx context.Context) {
	unlock, err := p.leaderLock.Acquire(ctx, oracleLeaderKey, oracleLeaderTTL)
	if err != nil {
		if errors.Is(err, ErrLockHeld) {
			// Another instance is broadcasting ticks
			return
		}
		log.WithError(err).Error("Failed to acquire oracle leader lock")
		return
	}
	defer unlock()

	tokens := make(map[string]struct{})
	for _, phase := range []entities.MarketPhase{entities.MarketPhaseBetting, entities.MarketPhaseCutoff} {
		markets, err := p.marketRepo.GetByPhase(ctx, phase)
		if err != nil {
			log.WithError(err).Error("Failed to load active markets for price polling")
			return
		}
		for _, market := range markets {
			tokens[market.TokenMint] = struct{}{}
		}
	}

	for token := range tokens {
		snapshot, err := p.oracle.GetSnapshot(ctx, token)
		if err != nil {
			log.WithError(err).WithField("tokenMint", token).Warn("Oracle read failed, skipping tick")
			continue
		}

		if err := p.eventPublisher.Publish(events.PriceTickEvent{
			TokenMint:    snapshot.TokenMint,
			PriceUSD:     snapshot.PriceUSD,
			LiquidityUSD: snapshot.LiquidityUSD,
		}); err != nil {
			log.WithError(err).Error("Failed to publish price tick")
		}
	}
}
