package application

import (
	"context"
	"errors"
	"time"

	"pumprug/config"
	"pumprug/domain/interfaces"
	"pumprug/domain/services"

	log "github.com/sirupsen/logrus"
)

const (
	transitionPollInterval = time.Second
	transitionBatchSize    = 20
	transitionLeaderKey    = "transition-worker"
	transitionLeaderTTL    = 15 * time.Second
)

// TransitionWorker drives scheduled market phase transitions. It claims
// due callbacks from the delay queue and runs each one inside its own
// transaction. Leader election keeps multiple instances from claiming
// the queue concurrently; handler idempotency absorbs whatever slips
// through anyway.
type TransitionWorker struct {
	uowFactory UnitOfWorkFactory
	source     TransitionSource
	scheduler  interfaces.TransitionScheduler
	oracle     interfaces.PriceOracle
	leaderLock LeaderLock
}

// NewTransitionWorker creates a new transition worker
func NewTransitionWorker(
	uowFactory UnitOfWorkFactory,
	source TransitionSource,
	scheduler interfaces.TransitionScheduler,
	oracle interfaces.PriceOracle,
	leaderLock LeaderLock,
) *TransitionWorker {
	return &TransitionWorker{
		uowFactory: uowFactory,
		source:     source,
		scheduler:  scheduler,
		oracle:     oracle,
		leaderLock: leaderLock,
	}
}

// Start begins the transition worker. Returns a cleanup function.
func (w *TransitionWorker) Start(ctx context.Context) func() {
	stopChan := make(chan struct{})

	go func() {
		log.Info("Transition worker started")
		ticker := time.NewTicker(transitionPollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				log.Info("Transition worker shutting down (context cancelled)...")
				return
			case <-stopChan:
				log.Info("Transition worker shutting down (stop requested)...")
				return
			case <-ticker.C:
				w.tick(ctx)
			}
		}
	}()

	return func() {
		close(stopChan)
	}
}

func (w *TransitionWorker) tick(ctx context.Context) {
	unlock, err := w.leaderLock.Acquire(ctx, transitionLeaderKey, transitionLeaderTTL)
	if err != nil {
		if errors.Is(err, ErrLockHeld) {
			// Another instance is driving the queue
			return
		}
		log.WithError(err).Error("Failed to acquire transition leader lock")
		return
	}
	defer unlock()

	due, err := w.source.PopDue(ctx, time.Now(), transitionBatchSize)
	if err != nil {
		log.WithError(err).Error("Failed to claim due transitions")
		return
	}

	for _, transition := range due {
		if err := w.processTransition(ctx, transition); err != nil {
			log.WithError(err).WithFields(log.Fields{
				"marketId": transition.MarketID,
				"target":   transition.Target,
			}).Error("Transition failed, rescheduling")

			// The claim removed the entry, so put it back for a retry
			retryAt := time.Now().Add(config.Get().ResolveRetryDelay)
			if schedErr := w.scheduler.Schedule(ctx, transition.MarketID, transition.Target, retryAt); schedErr != nil {
				log.WithError(schedErr).WithField("marketId", transition.MarketID).
					Error("Failed to reschedule transition, callback is lost")
			}
		}
	}
}

func (w *TransitionWorker) processTransition(ctx context.Context, transition DueTransition) error {
	uow := w.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return err
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
		w.oracle,
		w.scheduler,
		settlement,
		uow.EventPublisher(),
	)

	if err := lifecycle.HandleTransition(ctx, transition.MarketID, transition.Target); err != nil {
		return err
	}

	return uow.Commit()
}
