package infrastructure

import (
	"context"

	"pumprug/application"
	"pumprug/domain/interfaces"

	log "github.com/sirupsen/logrus"
)

// creditInstruction is a payout credit held back until commit
type creditInstruction struct {
	userID    int64
	amount    int64
	reference string
}

// TransactionalCrediter holds payout credits until flush, then hands them
// to the real crediter. Keeps payout instructions out of the treasury
// queue when the settlement transaction rolls back; the dedupe key is
// only claimed once the settled bet rows are committed.
type TransactionalCrediter struct {
	realCrediter interfaces.BalanceCrediter
	pending      []creditInstruction
}

// NewTransactionalCrediter creates a new transactional crediter
func NewTransactionalCrediter(realCrediter interfaces.BalanceCrediter) application.TransactionalBalanceCrediter {
	return &TransactionalCrediter{
		realCrediter: realCrediter,
		pending:      make([]creditInstruction, 0),
	}
}

// Credit stores a payout credit in the pending queue without enqueueing it
func (c *TransactionalCrediter) Credit(ctx context.Context, userID int64, amount int64, reference string) error {
	log.WithFields(log.Fields{
		"reference":    reference,
		"pendingCount": len(c.pending),
	}).Debug("Buffering payout credit until commit")

	c.pending = append(c.pending, creditInstruction{
		userID:    userID,
		amount:    amount,
		reference: reference,
	})
	return nil
}

// Flush applies all pending credits. Called after a successful commit.
func (c *TransactionalCrediter) Flush(ctx context.Context) {
	for _, instr := range c.pending {
		if err := c.realCrediter.Credit(ctx, instr.userID, instr.amount, instr.reference); err != nil {
			// The settled bet row is already committed; log everything a
			// manual replay of the credit needs
			log.WithFields(log.Fields{
				"userId":    instr.userID,
				"amount":    instr.amount,
				"reference": instr.reference,
				"error":     err,
			}).Error("Failed to apply payout credit during flush")
		}
	}

	c.pending = c.pending[:0]
}

// Discard clears all pending credits without applying them. Called on
// rollback.
func (c *TransactionalCrediter) Discard() {
	if len(c.pending) > 0 {
		log.WithField("discardedCount", len(c.pending)).Debug("Discarding buffered payout credits")
	}
	c.pending = c.pending[:0]
}
