package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pumprug/config"
	"pumprug/domain/entities"
	"pumprug/domain/interfaces"

	log "github.com/sirupsen/logrus"
)

type promotionService struct {
	config         *config.Config
	pendingBetRepo interfaces.PendingBetRepository
	marketRepo     interfaces.MarketRepository
	ledgerClient   interfaces.LedgerClient
	matching       interfaces.MatchingService
	rateLimiter    interfaces.RateLimiter
}

// NewPromotionService creates a new pending-wager promotion service
func NewPromotionService(
	pendingBetRepo interfaces.PendingBetRepository,
	marketRepo interfaces.MarketRepository,
	ledgerClient interfaces.LedgerClient,
	matching interfaces.MatchingService,
	rateLimiter interfaces.RateLimiter,
) interfaces.PromotionService {
	return &promotionService{
		config:         config.Get(),
		pendingBetRepo: pendingBetRepo,
		marketRepo:     marketRepo,
		ledgerClient:   ledgerClient,
		matching:       matching,
		rateLimiter:    rateLimiter,
	}
}

// PlaceIntent records a new wager intent under a client-generated nonce
func (s *promotionService) PlaceIntent(ctx context.Context, userID, marketID int64, side entities.BetSide, amount int64, walletAddress, nonce string) (*entities.PendingBet, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: wager amount must be positive", entities.ErrInvalidArgument)
	}
	if nonce == "" {
		return nil, fmt.Errorf("%w: nonce is required", entities.ErrInvalidArgument)
	}
	if walletAddress == "" {
		return nil, fmt.Errorf("%w: wallet address is required", entities.ErrInvalidArgument)
	}
	if side != entities.BetSidePump && side != entities.BetSideRug {
		return nil, fmt.Errorf("%w: unknown side %q", entities.ErrInvalidArgument, side)
	}

	if s.rateLimiter != nil {
		allowed, err := s.rateLimiter.Allow(ctx, fmt.Sprintf("intent:%d", userID), s.config.IntentRateLimit, s.config.IntentRateWindow)
		if err != nil {
			return nil, fmt.Errorf("failed to check rate limit: %w", err)
		}
		if !allowed {
			return nil, fmt.Errorf("%w: too many wager intents, slow down", entities.ErrInvalidArgument)
		}
	}

	market, err := s.marketRepo.GetByID(ctx, marketID)
	if err != nil {
		return nil, fmt.Errorf("failed to get market: %w", err)
	}
	if market == nil {
		return nil, fmt.Errorf("market %d: %w", marketID, entities.ErrNotFound)
	}
	if !market.IsBetting() {
		return nil, fmt.Errorf("market %d (phase %s): %w", marketID, market.Phase, entities.ErrMarketClosed)
	}

	pendingBet := &entities.PendingBet{
		Nonce:         nonce,
		UserID:        userID,
		MarketID:      marketID,
		Side:          side,
		Amount:        amount,
		WalletAddress: walletAddress,
		Status:        entities.PendingBetStatusPending,
	}
	if err := s.pendingBetRepo.Create(ctx, pendingBet); err != nil {
		return nil, err
	}

	return pendingBet, nil
}

// MarkSubmitted transitions pending -> processing once a ledger transfer
// request has been issued for the intent
func (s *promotionService) MarkSubmitted(ctx context.Context, nonce string, ledgerReference string) error {
	moved, err := s.pendingBetRepo.TransitionStatus(ctx, nonce, entities.PendingBetStatusPending, entities.PendingBetStatusProcessing)
	if err != nil {
		return fmt.Errorf("failed to transition pending bet: %w", err)
	}
	if !moved {
		pendingBet, err := s.pendingBetRepo.GetByNonce(ctx, nonce)
		if err != nil {
			return fmt.Errorf("failed to get pending bet: %w", err)
		}
		if pendingBet == nil {
			return fmt.Errorf("pending bet %q: %w", nonce, entities.ErrNotFound)
		}
		// Re-delivered submit ack: absorb
		if pendingBet.Status == entities.PendingBetStatusProcessing || pendingBet.IsComplete() {
			return nil
		}
		return fmt.Errorf("pending bet %q is in state %s, cannot submit", nonce, pendingBet.Status)
	}

	pendingBet, err := s.pendingBetRepo.GetByNonce(ctx, nonce)
	if err != nil {
		return fmt.Errorf("failed to get pending bet: %w", err)
	}
	pendingBet.LedgerReference = &ledgerReference
	if err := s.pendingBetRepo.Update(ctx, pendingBet); err != nil {
		return fmt.Errorf("failed to record ledger reference: %w", err)
	}

	return nil
}

// ConfirmTransfer verifies a ledger transaction and promotes the pending bet
// its memo nonce points at. Safe to call repeatedly with the same signature:
// only the first call creates a bet, later calls are no-ops.
func (s *promotionService) ConfirmTransfer(ctx context.Context, signature string) (*entities.Bet, error) {
	tx, err := s.fetchTransaction(ctx, signature)
	if err != nil {
		return nil, err
	}

	if !tx.Succeeded() {
		return nil, s.failUnverified(ctx, tx, fmt.Sprintf("transaction failed on ledger: %s", *tx.Err))
	}

	if tx.Memo == nil || *tx.Memo == "" {
		return nil, s.failUnverified(ctx, tx, "transaction has no memo instruction")
	}
	nonce := *tx.Memo

	pendingBet, err := s.pendingBetRepo.GetByNonce(ctx, nonce)
	if err != nil {
		return nil, fmt.Errorf("failed to look up pending bet: %w", err)
	}
	if pendingBet == nil {
		log.WithFields(log.Fields{
			"signature": signature,
			"nonce":     nonce,
		}).Warn("Ledger confirmation references unknown nonce, possible fraud attempt")
		return nil, fmt.Errorf("%w: no pending bet for nonce %q", entities.ErrVerificationFailed, nonce)
	}

	// Replayed confirmation for an already-promoted intent: no-op
	if pendingBet.IsComplete() {
		log.WithField("nonce", nonce).Info("Pending bet already complete, ignoring re-delivered confirmation")
		return nil, nil
	}

	if err := s.verifyTransfer(tx, pendingBet); err != nil {
		return nil, s.failPendingBet(ctx, pendingBet, err)
	}

	// Atomic check-and-set on status is the idempotency gate: of two
	// concurrent deliveries of the same confirmation, exactly one wins
	moved, err := s.pendingBetRepo.TransitionStatus(ctx, nonce, entities.PendingBetStatusProcessing, entities.PendingBetStatusComplete)
	if err != nil {
		return nil, fmt.Errorf("failed to transition pending bet: %w", err)
	}
	if !moved {
		// Confirmation may have raced the submit ack; a still-pending row
		// is promoted directly
		moved, err = s.pendingBetRepo.TransitionStatus(ctx, nonce, entities.PendingBetStatusPending, entities.PendingBetStatusComplete)
		if err != nil {
			return nil, fmt.Errorf("failed to transition pending bet: %w", err)
		}
	}
	if !moved {
		log.WithField("nonce", nonce).Info("Pending bet promoted by a concurrent confirmation, nothing to do")
		return nil, nil
	}

	pendingBet.Status = entities.PendingBetStatusComplete
	pendingBet.VerifiedSignature = &signature
	if err := s.pendingBetRepo.Update(ctx, pendingBet); err != nil {
		return nil, fmt.Errorf("failed to record verified signature: %w", err)
	}

	result, err := s.matching.PlaceBet(ctx, pendingBet.UserID, pendingBet.MarketID, pendingBet.Side, pendingBet.Amount)
	if err != nil {
		// Funds moved but the wager can no longer enter the market (e.g.
		// confirmation landed after cutoff). Flag for manual refund.
		log.WithError(err).WithFields(log.Fields{
			"nonce":    nonce,
			"marketId": pendingBet.MarketID,
		}).Error("Confirmed wager could not be placed, flagging for manual refund")
		reason := err.Error()
		pendingBet.Status = entities.PendingBetStatusError
		pendingBet.ErrorReason = &reason
		if updateErr := s.pendingBetRepo.Update(ctx, pendingBet); updateErr != nil {
			log.WithError(updateErr).Error("Failed to flag pending bet for manual refund")
		}
		return nil, err
	}

	log.WithFields(log.Fields{
		"nonce":    nonce,
		"betId":    result.Bet.ID,
		"matched":  result.MatchedAmount,
		"odds":     result.OddsLocked,
		"marketId": pendingBet.MarketID,
	}).Info("Pending bet promoted to confirmed bet")

	return result.Bet, nil
}

// RejectIntent removes an intent whose transfer the user rejected before
// any funds moved
func (s *promotionService) RejectIntent(ctx context.Context, nonce string) error {
	pendingBet, err := s.pendingBetRepo.GetByNonce(ctx, nonce)
	if err != nil {
		return fmt.Errorf("failed to get pending bet: %w", err)
	}
	if pendingBet == nil {
		return nil
	}
	if pendingBet.IsComplete() {
		return fmt.Errorf("pending bet %q is already complete, cannot reject", nonce)
	}

	// No funds moved, no record worth keeping
	if err := s.pendingBetRepo.Delete(ctx, pendingBet.ID); err != nil {
		return fmt.Errorf("failed to delete pending bet: %w", err)
	}
	return nil
}

// fetchTransaction polls the ledger for a signature with bounded backoff.
// A transaction that has not landed yet is not fatal, the submitter may
// simply be ahead of confirmation.
func (s *promotionService) fetchTransaction(ctx context.Context, signature string) (*entities.LedgerTransaction, error) {
	var tx *entities.LedgerTransaction
	var err error

	for attempt := 1; attempt <= s.config.VerifyMaxAttempts; attempt++ {
		tx, err = s.ledgerClient.GetTransaction(ctx, signature)
		if err == nil {
			return tx, nil
		}
		if !errors.Is(err, entities.ErrTransactionNotFound) {
			return nil, fmt.Errorf("failed to fetch ledger transaction: %w", err)
		}

		if attempt < s.config.VerifyMaxAttempts {
			backoff := s.config.VerifyBackoff * time.Duration(attempt)
			log.WithFields(log.Fields{
				"signature": signature,
				"attempt":   attempt,
			}).Debug("Ledger transaction not found yet, retrying")

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	// Still not landed: surface as outstanding, the pending bet stays
	// processing and the caller may retry the whole confirmation later
	return nil, fmt.Errorf("transaction %s after %d attempts: %w", signature, s.config.VerifyMaxAttempts, entities.ErrTransactionNotFound)
}

// verifyTransfer checks the confirmed transaction against the pending
// bet's expected values. All checks are mandatory except the source
// wallet, which is logged only.
func (s *promotionService) verifyTransfer(tx *entities.LedgerTransaction, pendingBet *entities.PendingBet) error {
	transfer := tx.TransferTo(s.config.CollectionAddress)
	if transfer == nil {
		return fmt.Errorf("%w: no transfer to collection address %s", entities.ErrVerificationFailed, s.config.CollectionAddress)
	}

	if transfer.Amount != pendingBet.Amount {
		return fmt.Errorf("%w: transferred %d, expected exactly %d", entities.ErrVerificationFailed, transfer.Amount, pendingBet.Amount)
	}

	// Best-effort source check: some wallets route transfers through
	// intermediate accounts, so this is logged, not enforced
	if transfer.Source != pendingBet.WalletAddress {
		log.WithFields(log.Fields{
			"nonce":          pendingBet.Nonce,
			"transferSource": transfer.Source,
			"expectedWallet": pendingBet.WalletAddress,
		}).Warn("Transfer source does not match registered wallet")
	}

	return nil
}

// failPendingBet marks the intent errored with the verification failure
// reason and returns the original error
func (s *promotionService) failPendingBet(ctx context.Context, pendingBet *entities.PendingBet, verifyErr error) error {
	log.WithError(verifyErr).WithFields(log.Fields{
		"nonce":    pendingBet.Nonce,
		"marketId": pendingBet.MarketID,
	}).Warn("Ledger verification failed, potential fraud signal")

	reason := verifyErr.Error()
	pendingBet.Status = entities.PendingBetStatusError
	pendingBet.ErrorReason = &reason
	if err := s.pendingBetRepo.Update(ctx, pendingBet); err != nil {
		log.WithError(err).Error("Failed to mark pending bet as errored")
	}
	return verifyErr
}

// failUnverified handles verification failures where the transaction's
// memo could not even identify a pending bet
func (s *promotionService) failUnverified(ctx context.Context, tx *entities.LedgerTransaction, reason string) error {
	// If the memo identifies an intent, record the failure on it
	if tx.Memo != nil && *tx.Memo != "" {
		pendingBet, err := s.pendingBetRepo.GetByNonce(ctx, *tx.Memo)
		if err == nil && pendingBet != nil && !pendingBet.IsTerminal() {
			return s.failPendingBet(ctx, pendingBet, fmt.Errorf("%w: %s", entities.ErrVerificationFailed, reason))
		}
	}

	log.WithFields(log.Fields{
		"signature": tx.Signature,
		"reason":    reason,
	}).Warn("Ledger confirmation rejected")
	return fmt.Errorf("%w: %s", entities.ErrVerificationFailed, reason)
}
