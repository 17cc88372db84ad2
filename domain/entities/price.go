package entities

import (
	"time"
)

// PriceSnapshot is a point-in-time reading from the price oracle
type PriceSnapshot struct {
	TokenMint    string
	PriceUSD     float64
	LiquidityUSD float64
	Volume24h    float64
	ObservedAt   time.Time
}

// ChangePct returns the percentage change from a reference price
func (p *PriceSnapshot) ChangePct(reference float64) float64 {
	if reference == 0 {
		return 0
	}
	return (p.PriceUSD - reference) / reference * 100
}
