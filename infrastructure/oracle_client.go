package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"pumprug/domain/entities"
	"pumprug/domain/interfaces"
)

// OracleClient reads token price and liquidity from the price oracle's
// HTTP API
type OracleClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewOracleClient creates a new price oracle client
func NewOracleClient(baseURL string) *OracleClient {
	return &OracleClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type snapshotResponse struct {
	TokenMint    string  `json:"token_mint"`
	PriceUSD     float64 `json:"price_usd"`
	LiquidityUSD float64 `json:"liquidity_usd"`
	Volume24h    float64 `json:"volume_24h"`
}

// GetSnapshot fetches the current price, liquidity and volume reading for
// a token
func (c *OracleClient) GetSnapshot(ctx context.Context, tokenMint string) (*entities.PriceSnapshot, error) {
	endpoint := fmt.Sprintf("%s/v1/tokens/%s", c.baseURL, url.PathEscape(tokenMint))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build oracle request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call oracle: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read oracle response: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("token %s: %w", tokenMint, entities.ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("oracle returned status %d: %s", resp.StatusCode, body)
	}

	var snapshot snapshotResponse
	if err := json.Unmarshal(body, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode oracle response: %w", err)
	}

	return &entities.PriceSnapshot{
		TokenMint:    tokenMint,
		PriceUSD:     snapshot.PriceUSD,
		LiquidityUSD: snapshot.LiquidityUSD,
		Volume24h:    snapshot.Volume24h,
		ObservedAt:   time.Now(),
	}, nil
}

var _ interfaces.PriceOracle = (*OracleClient)(nil)
