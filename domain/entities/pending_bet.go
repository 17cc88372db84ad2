package entities

import (
	"time"
)

// PendingBetStatus represents the promotion state of a wager intent
type PendingBetStatus string

const (
	PendingBetStatusPending    PendingBetStatus = "pending"
	PendingBetStatusProcessing PendingBetStatus = "processing"
	PendingBetStatusComplete   PendingBetStatus = "complete"
	PendingBetStatusError      PendingBetStatus = "error"
)

// PendingBet represents a client-submitted wager intent awaiting ledger
// confirmation. The nonce is the idempotency boundary: it maps to at most
// one PendingBet, and the row transitions to complete at most once.
type PendingBet struct {
	ID                int64            `db:"id"`
	Nonce             string           `db:"nonce"`
	UserID            int64            `db:"user_id"`
	MarketID          int64            `db:"market_id"`
	Side              BetSide          `db:"side"`
	Amount            int64            `db:"amount"`
	WalletAddress     string           `db:"wallet_address"`
	Status            PendingBetStatus `db:"status"`
	LedgerReference   *string          `db:"ledger_reference"`
	VerifiedSignature *string          `db:"verified_signature"`
	ErrorReason       *string          `db:"error_reason"`
	CreatedAt         time.Time        `db:"created_at"`
	UpdatedAt         time.Time        `db:"updated_at"`
}

// IsComplete checks if the intent has already been promoted
func (pb *PendingBet) IsComplete() bool {
	return pb.Status == PendingBetStatusComplete
}

// IsTerminal checks if the intent can no longer change state
func (pb *PendingBet) IsTerminal() bool {
	return pb.Status == PendingBetStatusComplete || pb.Status == PendingBetStatusError
}
