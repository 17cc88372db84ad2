package entities

import (
	"math"
	"time"
)

// BetSide represents which outcome a bet is staked on
type BetSide string

const (
	BetSidePump BetSide = "pump"
	BetSideRug  BetSide = "rug"
)

// Opposite returns the opposing side
func (s BetSide) Opposite() BetSide {
	if s == BetSidePump {
		return BetSideRug
	}
	return BetSidePump
}

// BetStatus represents the state of a confirmed bet
type BetStatus string

const (
	BetStatusPending  BetStatus = "pending"
	BetStatusMatched  BetStatus = "matched"
	BetStatusWon      BetStatus = "won"
	BetStatusLost     BetStatus = "lost"
	BetStatusRefunded BetStatus = "refunded"
)

// Bet represents a confirmed wager on a market
type Bet struct {
	ID            int64      `db:"id"`
	MarketID      int64      `db:"market_id"`
	UserID        int64      `db:"user_id"`
	Side          BetSide    `db:"side"`
	GrossAmount   int64      `db:"gross_amount"`
	NetAmount     int64      `db:"net_amount"`
	FeeAmount     int64      `db:"fee_amount"`
	Status        BetStatus  `db:"status"`
	MatchedAmount int64      `db:"matched_amount"`
	OddsLocked    float64    `db:"odds_locked"`
	RefundAmount  int64      `db:"refund_amount"`
	PayoutAmount  *int64     `db:"payout_amount"`
	CreatedAt     time.Time  `db:"created_at"`
	MatchedAt     *time.Time `db:"matched_at"`
	SettledAt     *time.Time `db:"settled_at"`
}

// UnmatchedAmount returns the portion of the net stake not yet paired
// against opposing capacity
func (b *Bet) UnmatchedAmount() int64 {
	return b.NetAmount - b.MatchedAmount
}

// PotentialPayout returns the payout if the bet wins: matched stake at
// the odds locked at match time, rounded down
func (b *Bet) PotentialPayout() int64 {
	if b.MatchedAmount == 0 || b.OddsLocked <= 0 {
		return 0
	}
	return int64(math.Floor(float64(b.MatchedAmount) * b.OddsLocked))
}

// IsSettled returns true once a terminal status has been assigned
func (b *Bet) IsSettled() bool {
	return b.Status == BetStatusWon || b.Status == BetStatusLost || b.Status == BetStatusRefunded
}

// Consume records amount of this bet's capacity as matched. OddsLocked is
// frozen on first match and never recomputed.
func (b *Bet) Consume(amount int64) {
	b.MatchedAmount += amount
	if b.MatchedAmount >= b.NetAmount {
		b.Status = BetStatusMatched
	}
	now := time.Now()
	b.MatchedAt = &now
}

// ComputeFee splits a gross stake into net stake and platform fee
func ComputeFee(gross int64, feeBps int64) (net, fee int64) {
	fee = gross * feeBps / 10000
	net = gross - fee
	return net, fee
}
