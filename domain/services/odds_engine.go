package services

import (
	"fmt"
	"time"

	"pumprug/domain/entities"
)

// OddsParams configures the odds curve
type OddsParams struct {
	Floor     float64 // odds never drop below this
	Ceiling   float64 // odds never exceed this
	Smoothing float64 // phantom stake added to each side, in base units
}

// neutralOdds is returned when neither side has any stake
const neutralOdds = 2.0

// ComputeOdds converts pool state into the live odds multiplier for each
// side. Pari-mutuel skew: the side with less money staked gets higher odds.
// A smoothing stake is added to both sides so early imbalances don't
// produce unbounded odds; the smoothing decays as the cutoff approaches,
// letting odds converge to the raw pool ratio late in the window.
//
// Pure and deterministic; no I/O.
func ComputeOdds(pumpPool, rugPool int64, timeToCutoff time.Duration, params OddsParams) (float64, float64, error) {
	if pumpPool < 0 || rugPool < 0 {
		return 0, 0, fmt.Errorf("%w: pool sums must be non-negative", entities.ErrInvalidArgument)
	}
	if timeToCutoff < 0 {
		return 0, 0, fmt.Errorf("%w: time to cutoff must be non-negative", entities.ErrInvalidArgument)
	}

	// No stake anywhere: even odds
	if pumpPool == 0 && rugPool == 0 {
		neutral := clampOdds(neutralOdds, params)
		return neutral, neutral, nil
	}

	// One side empty: maximum odds on the empty side, minimum on the other
	if pumpPool == 0 {
		return params.Ceiling, params.Floor, nil
	}
	if rugPool == 0 {
		return params.Floor, params.Ceiling, nil
	}

	total := float64(pumpPool + rugPool)

	// Smoothing scales with the remaining betting window: a heavy early
	// imbalance is damped, the same imbalance near cutoff is not.
	smoothing := params.Smoothing * (1 + timeToCutoff.Minutes())

	pumpOdds := clampOdds((total+2*smoothing)/(float64(pumpPool)+smoothing), params)
	rugOdds := clampOdds((total+2*smoothing)/(float64(rugPool)+smoothing), params)

	return pumpOdds, rugOdds, nil
}

func clampOdds(odds float64, params OddsParams) float64 {
	if odds < params.Floor {
		return params.Floor
	}
	if odds > params.Ceiling {
		return params.Ceiling
	}
	return odds
}
