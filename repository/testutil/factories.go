package testutil

import (
	"time"

	"pumprug/domain/entities"
)

// CreateTestMarket builds a betting-phase market for a token
func CreateTestMarket(tokenMint string) *entities.Market {
	now := time.Now().UTC().Truncate(time.Second)
	startPrice := 1.0
	startLiquidity := 100000.0
	return &entities.Market{
		TokenMint:       tokenMint,
		Phase:           entities.MarketPhaseBetting,
		StartsAt:        now,
		EndsAt:          now.Add(60 * time.Minute),
		DurationMinutes: 60,
		StartPrice:      &startPrice,
		StartLiquidity:  &startLiquidity,
	}
}

// CreateTestPendingBet builds a pending wager intent
func CreateTestPendingBet(nonce string, marketID int64) *entities.PendingBet {
	return &entities.PendingBet{
		Nonce:         nonce,
		UserID:        555,
		MarketID:      marketID,
		Side:          entities.BetSidePump,
		Amount:        10000,
		WalletAddress: "USERWALLET1111111111111111111111111111111",
		Status:        entities.PendingBetStatusPending,
	}
}

// CreateTestBet builds an unmatched confirmed bet
func CreateTestBet(marketID, userID int64, side entities.BetSide, net int64) *entities.Bet {
	gross := net * 10000 / 9800
	return &entities.Bet{
		MarketID:    marketID,
		UserID:      userID,
		Side:        side,
		GrossAmount: gross,
		NetAmount:   net,
		FeeAmount:   gross - net,
		Status:      entities.BetStatusPending,
		OddsLocked:  2.0,
	}
}
