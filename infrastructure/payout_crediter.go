package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"pumprug/domain/interfaces"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const (
	payoutQueueKey     = "pumprug:payouts"
	payoutDedupePrefix = "pumprug:payouts:seen:"
	payoutDedupeTTL    = 30 * 24 * time.Hour
)

// payoutInstruction is the message the treasury worker consumes to move
// funds back to the user
type payoutInstruction struct {
	UserID    int64  `json:"user_id"`
	Amount    int64  `json:"amount"`
	Reference string `json:"reference"`
	CreatedAt int64  `json:"created_at"`
}

// PayoutCrediter implements the BalanceCrediter interface by enqueueing
// payout instructions for the treasury worker. The settlement reference
// doubles as a dedupe key so a settlement re-run cannot enqueue the same
// payout twice.
type PayoutCrediter struct {
	rdb *redis.Client
}

// NewPayoutCrediter creates a new redis-backed payout crediter
func NewPayoutCrediter(rdb *redis.Client) *PayoutCrediter {
	return &PayoutCrediter{rdb: rdb}
}

// Credit enqueues a payout for the user. Idempotent per reference.
func (c *PayoutCrediter) Credit(ctx context.Context, userID int64, amount int64, reference string) error {
	if amount <= 0 {
		return fmt.Errorf("payout amount must be positive, got %d", amount)
	}

	fresh, err := c.rdb.SetNX(ctx, payoutDedupePrefix+reference, 1, payoutDedupeTTL).Result()
	if err != nil {
		return fmt.Errorf("failed to check payout dedupe: %w", err)
	}
	if !fresh {
		log.WithField("reference", reference).Info("Payout already enqueued, skipping")
		return nil
	}

	payload, err := json.Marshal(payoutInstruction{
		UserID:    userID,
		Amount:    amount,
		Reference: reference,
		CreatedAt: time.Now().Unix(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal payout instruction: %w", err)
	}

	if err := c.rdb.LPush(ctx, payoutQueueKey, payload).Err(); err != nil {
		return fmt.Errorf("failed to enqueue payout %s: %w", reference, err)
	}

	log.WithFields(log.Fields{
		"userId":    userID,
		"amount":    amount,
		"reference": reference,
	}).Info("Payout enqueued")

	return nil
}

var _ interfaces.BalanceCrediter = (*PayoutCrediter)(nil)
