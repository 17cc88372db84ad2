package entities

import "errors"

var (
	// ErrInvalidArgument indicates bad caller input, never retried automatically
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrMarketClosed indicates a wager arrived outside the betting window
	ErrMarketClosed = errors.New("market is not accepting wagers")

	// ErrVerificationFailed indicates the ledger confirmation did not match
	// the pending bet's expected values
	ErrVerificationFailed = errors.New("ledger verification failed")

	// ErrDuplicateNonce indicates a nonce that already maps to a pending bet
	ErrDuplicateNonce = errors.New("nonce already used")

	// ErrSettlementConflict indicates settlement of an already-settled market
	ErrSettlementConflict = errors.New("market already settled")

	// ErrNotFound indicates the requested record does not exist
	ErrNotFound = errors.New("not found")

	// ErrTransactionNotFound indicates the ledger transaction has not landed
	// yet. Retryable, unlike other verification failures.
	ErrTransactionNotFound = errors.New("ledger transaction not found")
)
