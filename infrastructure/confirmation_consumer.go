package infrastructure

import (
	"context"
	"errors"
	"time"

	"pumprug/domain/entities"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const confirmationQueueKey = "pumprug:confirmations"

// ConfirmationHandler processes a confirmed ledger signature
type ConfirmationHandler interface {
	ConfirmTransfer(ctx context.Context, signature string) (*entities.Bet, error)
}

// ConfirmationConsumer drains the confirmation queue the wallet gateway
// pushes signatures onto and hands each one to the promotion pipeline.
// The pipeline is idempotent per signature, so at-least-once delivery
// from the queue is safe.
type ConfirmationConsumer struct {
	rdb     *redis.Client
	handler ConfirmationHandler
}

// NewConfirmationConsumer creates a new confirmation consumer
func NewConfirmationConsumer(rdb *redis.Client, handler ConfirmationHandler) *ConfirmationConsumer {
	return &ConfirmationConsumer{
		rdb:     rdb,
		handler: handler,
	}
}

// Start begins consuming confirmations. Returns a cleanup function.
func (c *ConfirmationConsumer) Start(ctx context.Context) func() {
	workerCtx, cancel := context.WithCancel(ctx)

	go func() {
		log.Info("Confirmation consumer started")
		for {
			result, err := c.rdb.BRPop(workerCtx, 5*time.Second, confirmationQueueKey).Result()
			if err != nil {
				if workerCtx.Err() != nil {
					log.Info("Confirmation consumer shutting down...")
					return
				}
				if err != redis.Nil {
					log.WithError(err).Error("Failed to read confirmation queue")
					time.Sleep(time.Second)
				}
				continue
			}

			// BRPop returns [key, value]
			if len(result) != 2 {
				continue
			}
			c.process(workerCtx, result[1])
		}
	}()

	return cancel
}

func (c *ConfirmationConsumer) process(ctx context.Context, signature string) {
	bet, err := c.handler.ConfirmTransfer(ctx, signature)
	if err != nil {
		// Not-landed transfers are re-queued for a later pass; terminal
		// verification failures were already recorded on the intent
		if errors.Is(err, entities.ErrTransactionNotFound) {
			log.WithField("signature", signature).Info("Transfer still outstanding, re-queueing")
			if pushErr := c.rdb.LPush(ctx, confirmationQueueKey, signature).Err(); pushErr != nil {
				log.WithError(pushErr).Error("Failed to re-queue outstanding confirmation")
			}
			return
		}
		log.WithError(err).WithField("signature", signature).Warn("Confirmation rejected")
		return
	}

	if bet != nil {
		log.WithFields(log.Fields{
			"signature": signature,
			"betId":     bet.ID,
		}).Info("Confirmation promoted to bet")
	}
}
