package entities

import (
	"time"
)

// Match links a pump bet and a rug bet for the amount paired between them.
// Immutable once created.
type Match struct {
	ID        int64     `db:"id"`
	MarketID  int64     `db:"market_id"`
	PumpBetID int64     `db:"pump_bet_id"`
	RugBetID  int64     `db:"rug_bet_id"`
	Amount    int64     `db:"amount"`
	CreatedAt time.Time `db:"created_at"`
}

// MatchResult is the outcome of inserting a wager into a market
type MatchResult struct {
	Bet           *Bet
	MatchedAmount int64
	OddsLocked    float64
	Matches       []*Match
}

// SettlementResult summarizes a market settlement
type SettlementResult struct {
	Market        *Market
	Outcome       Outcome
	Winners       []*Bet
	Losers        []*Bet
	Refunded      []*Bet
	PayoutDetails map[int64]int64 // bet ID -> credited amount
}
