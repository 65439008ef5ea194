package pricing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/poolworks/navengine/internal/logger"
	"github.com/poolworks/navengine/internal/types"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidEndpoint = errors.New("pricing endpoint is invalid")
	ErrRequestFailed   = errors.New("pricing request failed")
	ErrInvalidResponse = errors.New("pricing response is invalid")
)

var pricingLogger = logger.GetForComponent("pricing_client")

// JSON-RPC structures for the external conversion service.

// JSONRPCRequest defines the structure of a JSON-RPC request.
type JSONRPCRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  ConvertParams `json:"params"`
}

// ConvertParams defines the parameters for the "nav_convert" method.
type ConvertParams struct {
	Target  string       `json:"target"`
	Entries []QuoteEntry `json:"entries"`
}

// QuoteEntry is one (token, amount) pair to be priced. Amounts travel as
// strings to survive arbitrary precision.
type QuoteEntry struct {
	Token  string `json:"token"`
	Amount string `json:"amount"`
}

// JSONRPCResponse defines the structure of a JSON-RPC response.
type JSONRPCResponse struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Result  ConvertResult `json:"result,omitempty"`
	Error   *JSONRPCError `json:"error,omitempty"`
}

// ConvertResult carries the converted amounts, index-aligned with the request
// entries. An empty string marks a pair the service could not price.
type ConvertResult struct {
	Amounts []string `json:"amounts"`
}

// JSONRPCError defines the structure of a JSON-RPC error.
type JSONRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data,omitempty"`
}

// noQuoteErrorCode is the application-level code the conversion service uses
// for an unpriceable pair.
const noQuoteErrorCode = -32001

// Client is an HTTP JSON-RPC client for the external price-conversion
// service.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// NewClient creates a conversion client for the given JSON-RPC endpoint.
func NewClient(endpoint string) (*Client, error) {
	if endpoint == "" {
		return nil, errors.Join(ErrInvalidEndpoint, errors.New("endpoint cannot be empty"))
	}
	return &Client{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}, nil
}

// Convert prices a single signed amount of token in target units.
func (c *Client) Convert(ctx context.Context, token types.AssetID, amount sdkmath.Int, target types.AssetID) (sdkmath.Int, error) {
	results, err := c.ConvertBatch(ctx, []types.PositionEntry{{Token: token, Amount: amount}}, target)
	if err != nil {
		return sdkmath.Int{}, err
	}
	if len(results) != 1 {
		return sdkmath.Int{}, errors.Join(ErrInvalidResponse, fmt.Errorf("expected 1 result, got %d", len(results)))
	}
	return results[0], nil
}

// ConvertBatch prices several tokens against one target in a single round
// trip.
func (c *Client) ConvertBatch(ctx context.Context, entries []types.PositionEntry, target types.AssetID) ([]sdkmath.Int, error) {
	if target == "" {
		return nil, errors.Join(ErrRequestFailed, errors.New("target token cannot be empty"))
	}
	if len(entries) == 0 {
		return nil, nil
	}

	params := ConvertParams{Target: string(target), Entries: make([]QuoteEntry, 0, len(entries))}
	for i, entry := range entries {
		if entry.Token == "" {
			return nil, errors.Join(ErrRequestFailed, fmt.Errorf("entry %d has empty token", i))
		}
		if entry.Amount.IsNil() {
			return nil, errors.Join(ErrRequestFailed, fmt.Errorf("entry %d has nil amount", i))
		}
		params.Entries = append(params.Entries, QuoteEntry{
			Token:  string(entry.Token),
			Amount: entry.Amount.String(),
		})
	}

	jsonRPCReq := JSONRPCRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "nav_convert",
		Params:  params,
	}

	jsonData, err := json.Marshal(jsonRPCReq)
	if err != nil {
		return nil, errors.Join(ErrRequestFailed, fmt.Errorf("failed to marshal JSON-RPC request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, errors.Join(ErrRequestFailed, fmt.Errorf("failed to create HTTP request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		pricingLogger.Error().Err(err).Str("endpoint", c.endpoint).Msg("Failed to execute conversion request")
		return nil, errors.Join(ErrNoQuote, fmt.Errorf("conversion service unreachable: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Join(ErrNoQuote, fmt.Errorf("conversion service returned status %d", resp.StatusCode))
	}

	respBodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Join(ErrInvalidResponse, fmt.Errorf("failed to read response body: %w", err))
	}

	var jsonRPCResp JSONRPCResponse
	if err := json.Unmarshal(respBodyBytes, &jsonRPCResp); err != nil {
		pricingLogger.Error().Err(err).Str("body", string(respBodyBytes)).Msg("Failed to unmarshal JSON-RPC response")
		return nil, errors.Join(ErrInvalidResponse, fmt.Errorf("failed to unmarshal JSON-RPC response: %w", err))
	}

	if jsonRPCResp.Error != nil {
		if jsonRPCResp.Error.Code == noQuoteErrorCode {
			return nil, errors.Join(ErrNoQuote, fmt.Errorf("no quote: %s", jsonRPCResp.Error.Message))
		}
		return nil, errors.Join(ErrRequestFailed, fmt.Errorf("RPC error (code %d): %s", jsonRPCResp.Error.Code, jsonRPCResp.Error.Message))
	}

	if len(jsonRPCResp.Result.Amounts) != len(entries) {
		return nil, errors.Join(ErrInvalidResponse,
			fmt.Errorf("result count mismatch: sent %d entries, got %d amounts", len(entries), len(jsonRPCResp.Result.Amounts)))
	}

	results := make([]sdkmath.Int, 0, len(entries))
	for i, raw := range jsonRPCResp.Result.Amounts {
		if raw == "" {
			return nil, errors.Join(ErrNoQuote, fmt.Errorf("no quote for token %s", entries[i].Token))
		}
		amount, ok := sdkmath.NewIntFromString(raw)
		if !ok {
			return nil, errors.Join(ErrInvalidResponse, fmt.Errorf("unparseable amount %q for token %s", raw, entries[i].Token))
		}
		results = append(results, amount)
	}

	pricingLogger.Debug().
		Int("entryCount", len(entries)).
		Str("target", string(target)).
		Msg("Converted token amounts")

	return results, nil
}
