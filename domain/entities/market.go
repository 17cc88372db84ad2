package entities

import (
	"time"
)

// MarketPhase represents the lifecycle phase of a market
type MarketPhase string

const (
	MarketPhaseOpen      MarketPhase = "open"
	MarketPhaseBetting   MarketPhase = "betting"
	MarketPhaseCutoff    MarketPhase = "cutoff"
	MarketPhaseResolving MarketPhase = "resolving"
	MarketPhaseSettled   MarketPhase = "settled"
)

// Outcome represents the final classification of a market
type Outcome string

const (
	OutcomePump Outcome = "pump"
	OutcomeRug  Outcome = "rug"
)

// phaseOrder gives each phase a monotonic rank. A market never regresses.
var phaseOrder = map[MarketPhase]int{
	MarketPhaseOpen:      0,
	MarketPhaseBetting:   1,
	MarketPhaseCutoff:    2,
	MarketPhaseResolving: 3,
	MarketPhaseSettled:   4,
}

// Market represents a time-boxed pump/rug market for a single token
type Market struct {
	ID              int64       `db:"id"`
	TokenMint       string      `db:"token_mint"`
	Phase           MarketPhase `db:"phase"`
	StartsAt        time.Time   `db:"starts_at"`
	EndsAt          time.Time   `db:"ends_at"`
	DurationMinutes int         `db:"duration_minutes"`
	PumpPool        int64       `db:"pump_pool"`
	RugPool         int64       `db:"rug_pool"`
	PumpOdds        float64     `db:"pump_odds"`
	RugOdds         float64     `db:"rug_odds"`
	Outcome         *Outcome    `db:"outcome"`
	StartPrice      *float64    `db:"start_price"`
	StartLiquidity  *float64    `db:"start_liquidity"`
	FinalPrice      *float64    `db:"final_price"`
	ResolveAttempts int         `db:"resolve_attempts"`
	CreatedAt       time.Time   `db:"created_at"`
	SettledAt       *time.Time  `db:"settled_at"`
}

// CutoffAt returns the instant betting closes: the midpoint of the market window
func (m *Market) CutoffAt() time.Time {
	return m.StartsAt.Add(time.Duration(m.DurationMinutes) * time.Minute / 2)
}

// IsBetting checks if the market is accepting wagers
func (m *Market) IsBetting() bool {
	return m.Phase == MarketPhaseBetting
}

// IsSettled checks if the market has been settled
func (m *Market) IsSettled() bool {
	return m.Phase == MarketPhaseSettled
}

// TimeToCutoff returns the remaining betting window at the given instant.
// Returns zero once the cutoff has passed.
func (m *Market) TimeToCutoff(now time.Time) time.Duration {
	remaining := m.CutoffAt().Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// CanTransitionTo reports whether target is a strictly forward phase
func (m *Market) CanTransitionTo(target MarketPhase) bool {
	return phaseOrder[target] > phaseOrder[m.Phase]
}

// PoolForSide returns the running pool sum for the given side
func (m *Market) PoolForSide(side BetSide) int64 {
	if side == BetSidePump {
		return m.PumpPool
	}
	return m.RugPool
}

// AddToPool adds amount to the side's pool sum
func (m *Market) AddToPool(side BetSide, amount int64) {
	if side == BetSidePump {
		m.PumpPool += amount
	} else {
		m.RugPool += amount
	}
}

// Settle records the outcome and moves the market to its terminal phase.
// Has no effect if the market is already settled.
func (m *Market) Settle(outcome Outcome, finalPrice float64) {
	if m.Phase == MarketPhaseSettled {
		return
	}
	m.Phase = MarketPhaseSettled
	m.Outcome = &outcome
	m.FinalPrice = &finalPrice
	now := time.Now()
	m.SettledAt = &now
}
