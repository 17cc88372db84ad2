package events

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeOddsUpdate        EventType = "odds_update"
	EventTypeMarketPhaseChange EventType = "market_phase_change"
	EventTypeBetMatched        EventType = "bet_matched"
	EventTypeBetSettled        EventType = "bet_settled"
	EventTypePriceTick         EventType = "price_tick"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// OddsUpdateEvent is broadcast whenever a market's pools or odds change
type OddsUpdateEvent struct {
	MarketID int64   `json:"market_id"`
	PumpPool int64   `json:"pump_pool"`
	RugPool  int64   `json:"rug_pool"`
	PumpOdds float64 `json:"pump_odds"`
	RugOdds  float64 `json:"rug_odds"`
}

func (e OddsUpdateEvent) Type() EventType {
	return EventTypeOddsUpdate
}

// MarketPhaseChangeEvent represents a market phase transition
type MarketPhaseChangeEvent struct {
	MarketID int64  `json:"market_id"`
	OldPhase string `json:"old_phase"`
	NewPhase string `json:"new_phase"`
	Outcome  string `json:"outcome,omitempty"`
}

func (e MarketPhaseChangeEvent) Type() EventType {
	return EventTypeMarketPhaseChange
}

// BetMatchedEvent represents a wager being paired against opposing capacity
type BetMatchedEvent struct {
	MarketID      int64   `json:"market_id"`
	BetID         int64   `json:"bet_id"`
	UserID        int64   `json:"user_id"`
	Side          string  `json:"side"`
	MatchedAmount int64   `json:"matched_amount"`
	OddsLocked    float64 `json:"odds_locked"`
}

func (e BetMatchedEvent) Type() EventType {
	return EventTypeBetMatched
}

// BetSettledEvent represents a bet reaching a terminal status
type BetSettledEvent struct {
	MarketID int64  `json:"market_id"`
	BetID    int64  `json:"bet_id"`
	UserID   int64  `json:"user_id"`
	Status   string `json:"status"`
	Payout   int64  `json:"payout"`
}

func (e BetSettledEvent) Type() EventType {
	return EventTypeBetSettled
}

// PriceTickEvent carries an oracle price reading for an open market's token
type PriceTickEvent struct {
	TokenMint    string  `json:"token_mint"`
	PriceUSD     float64 `json:"price_usd"`
	LiquidityUSD float64 `json:"liquidity_usd"`
}

func (e PriceTickEvent) Type() EventType {
	return EventTypePriceTick
}
