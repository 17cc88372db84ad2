package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"pumprug/domain/entities"
	"pumprug/domain/interfaces"
)

// LedgerClient is a JSON-RPC client for the ledger node, used to verify
// that wager transfers actually landed on chain
type LedgerClient struct {
	rpcURL     string
	httpClient *http.Client
}

// NewLedgerClient creates a new ledger RPC client
func NewLedgerClient(rpcURL string) *LedgerClient {
	return &LedgerClient{
		rpcURL: rpcURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// rpcRequest is the standard JSON-RPC request envelope
type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

// rpcResponse is the standard JSON-RPC response envelope
type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// transactionResult is the node's view of a confirmed transaction
type transactionResult struct {
	Signature string  `json:"signature"`
	Err       *string `json:"err"`
	Memo      *string `json:"memo"`
	Transfers []struct {
		Source      string `json:"source"`
		Destination string `json:"destination"`
		Amount      int64  `json:"amount"`
	} `json:"transfers"`
}

// GetTransaction fetches a confirmed transaction by signature. A null
// result means the node has not seen the transaction yet, which maps to
// entities.ErrTransactionNotFound so callers can retry.
func (c *LedgerClient) GetTransaction(ctx context.Context, signature string) (*entities.LedgerTransaction, error) {
	result, err := c.call(ctx, "getTransaction", []any{signature})
	if err != nil {
		return nil, err
	}

	if len(result) == 0 || string(result) == "null" {
		return nil, fmt.Errorf("transaction %s: %w", signature, entities.ErrTransactionNotFound)
	}

	var txResult transactionResult
	if err := json.Unmarshal(result, &txResult); err != nil {
		return nil, fmt.Errorf("failed to decode transaction %s: %w", signature, err)
	}

	tx := &entities.LedgerTransaction{
		Signature: txResult.Signature,
		Err:       txResult.Err,
		Memo:      txResult.Memo,
	}
	for _, transfer := range txResult.Transfers {
		tx.Transfers = append(tx.Transfers, entities.LedgerTransfer{
			Source:      transfer.Source,
			Destination: transfer.Destination,
			Amount:      transfer.Amount,
		})
	}

	return tx, nil
}

func (c *LedgerClient) call(ctx context.Context, method string, params []any) (json.RawMessage, error) {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal rpc request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build rpc request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call ledger rpc: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read rpc response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ledger rpc returned status %d: %s", resp.StatusCode, respBody)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return nil, fmt.Errorf("failed to decode rpc response: %w", err)
	}
	if rpcResp.Error != nil {
		return nil, fmt.Errorf("ledger rpc error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}

	return rpcResp.Result, nil
}

var _ interfaces.LedgerClient = (*LedgerClient)(nil)
