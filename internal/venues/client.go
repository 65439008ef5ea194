package venues

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
	ErrInvalidEndpoint = errors.New("venue endpoint is invalid")
	ErrRequestFailed   = errors.New("venue request failed")
	ErrInvalidResponse = errors.New("venue response is invalid")
)

var venueLogger = logger.GetForComponent("venue_client")

// Client is an HTTP JSON-RPC client for the external venue read services.
// One endpoint serves the staking registry, the derivatives-position reader
// and the liquidity-position manager; each lives behind its own RPC method.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// NewClient creates a venue client for the given JSON-RPC endpoint.
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

type rpcRequest struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      int       `json:"id"`
	Method  string    `json:"method"`
	Params  rpcParams `json:"params"`
}

type rpcParams struct {
	PoolID uint64 `json:"pool_id"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data,omitempty"`
}

// Wire forms decode integer amounts from strings so precision survives JSON.

type wireStakingBalance struct {
	Token          string `json:"token"`
	Staked         string `json:"staked"`
	PendingRewards string `json:"pending_rewards"`
}

type wireMarginPosition struct {
	Market          string `json:"market"`
	CollateralToken string `json:"collateral_token"`
	Collateral      string `json:"collateral"`
	VenueDecimals   uint32 `json:"venue_decimals"`
	TokenDecimals   uint32 `json:"token_decimals"`
	PnL             string `json:"pnl"`
	PriceImpact     string `json:"price_impact"`
	Costs           string `json:"costs"`
	CollateralPrice string `json:"collateral_price"`
}

type wirePendingOrder struct {
	Market             string `json:"market"`
	Increase           bool   `json:"increase"`
	CollateralToken    string `json:"collateral_token"`
	ReservedCollateral string `json:"reserved_collateral"`
	FeeToken           string `json:"fee_token"`
	ExecutionFee       string `json:"execution_fee"`
}

type wireClaimableFee struct {
	Token  string `json:"token"`
	Amount string `json:"amount"`
}

type wireLiquidityPosition struct {
	ID        uint64 `json:"id"`
	Token0    string `json:"token0"`
	Token1    string `json:"token1"`
	Amount0   string `json:"amount0"`
	Amount1   string `json:"amount1"`
	FeesOwed0 string `json:"fees_owed0"`
	FeesOwed1 string `json:"fees_owed1"`
}

// call executes one JSON-RPC round trip and unmarshals the result into out.
func (c *Client) call(ctx context.Context, method string, pool types.PoolID, out any) error {
	reqBody := rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  method,
		Params:  rpcParams{PoolID: uint64(pool)},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return errors.Join(ErrRequestFailed, fmt.Errorf("failed to marshal JSON-RPC request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return errors.Join(ErrRequestFailed, fmt.Errorf("failed to create HTTP request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Join(ErrRequestFailed, fmt.Errorf("failed to execute HTTP request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Join(ErrRequestFailed, fmt.Errorf("HTTP request failed with status: %d %s", resp.StatusCode, resp.Status))
	}

	respBodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Join(ErrRequestFailed, fmt.Errorf("failed to read response body: %w", err))
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBodyBytes, &rpcResp); err != nil {
		venueLogger.Error().Err(err).Str("method", method).Msg("Failed to unmarshal JSON-RPC response")
		return errors.Join(ErrInvalidResponse, fmt.Errorf("failed to unmarshal JSON-RPC response: %w", err))
	}
	if rpcResp.Error != nil {
		return errors.Join(ErrRequestFailed, fmt.Errorf("RPC error (code %d): %s", rpcResp.Error.Code, rpcResp.Error.Message))
	}
	if len(rpcResp.Result) == 0 {
		return errors.Join(ErrInvalidResponse, errors.New("response result is empty"))
	}
	if err := json.Unmarshal(rpcResp.Result, out); err != nil {
		return errors.Join(ErrInvalidResponse, fmt.Errorf("failed to unmarshal result: %w", err))
	}
	return nil
}

func parseInt(raw, field string) (sdkmath.Int, error) {
	if raw == "" {
		return sdkmath.ZeroInt(), nil
	}
	amount, ok := sdkmath.NewIntFromString(raw)
	if !ok {
		return sdkmath.Int{}, errors.Join(ErrInvalidResponse, fmt.Errorf("unparseable %s amount: %q", field, raw))
	}
	return amount, nil
}

// StakingBalance fetches the pool's staked principal and pending rewards.
func (c *Client) StakingBalance(ctx context.Context, pool types.PoolID) (StakingBalance, error) {
	var wire wireStakingBalance
	if err := c.call(ctx, "venues_stakingBalance", pool, &wire); err != nil {
		return StakingBalance{}, err
	}
	staked, err := parseInt(wire.Staked, "staked")
	if err != nil {
		return StakingBalance{}, err
	}
	rewards, err := parseInt(wire.PendingRewards, "pending_rewards")
	if err != nil {
		return StakingBalance{}, err
	}
	return StakingBalance{
		Token:          types.AssetID(wire.Token),
		Staked:         staked,
		PendingRewards: rewards,
	}, nil
}

// Positions lists open derivatives positions with enriched pricing info.
func (c *Client) Positions(ctx context.Context, pool types.PoolID) ([]MarginPosition, error) {
	return c.marginPositions(ctx, "venues_positions", pool)
}

// RawPositions lists open derivatives positions with collateral only.
func (c *Client) RawPositions(ctx context.Context, pool types.PoolID) ([]MarginPosition, error) {
	return c.marginPositions(ctx, "venues_rawPositions", pool)
}

func (c *Client) marginPositions(ctx context.Context, method string, pool types.PoolID) ([]MarginPosition, error) {
	var wire []wireMarginPosition
	if err := c.call(ctx, method, pool, &wire); err != nil {
		return nil, err
	}
	positions := make([]MarginPosition, 0, len(wire))
	for i, w := range wire {
		if w.CollateralToken == "" {
			return nil, errors.Join(ErrInvalidResponse, fmt.Errorf("position %d has empty collateral token", i))
		}
		collateral, err := parseInt(w.Collateral, "collateral")
		if err != nil {
			return nil, err
		}
		pnl, err := parseInt(w.PnL, "pnl")
		if err != nil {
			return nil, err
		}
		impact, err := parseInt(w.PriceImpact, "price_impact")
		if err != nil {
			return nil, err
		}
		costs, err := parseInt(w.Costs, "costs")
		if err != nil {
			return nil, err
		}
		price, err := parseInt(w.CollateralPrice, "collateral_price")
		if err != nil {
			return nil, err
		}
		positions = append(positions, MarginPosition{
			Market:          w.Market,
			CollateralToken: types.AssetID(w.CollateralToken),
			Collateral:      collateral,
			VenueDecimals:   w.VenueDecimals,
			TokenDecimals:   w.TokenDecimals,
			PnL:             pnl,
			PriceImpact:     impact,
			Costs:           costs,
			CollateralPrice: price,
		})
	}
	return positions, nil
}

// PendingOrders lists not-yet-executed orders for the pool.
func (c *Client) PendingOrders(ctx context.Context, pool types.PoolID) ([]PendingOrder, error) {
	var wire []wirePendingOrder
	if err := c.call(ctx, "venues_pendingOrders", pool, &wire); err != nil {
		return nil, err
	}
	orders := make([]PendingOrder, 0, len(wire))
	for i, w := range wire {
		if w.CollateralToken == "" {
			return nil, errors.Join(ErrInvalidResponse, fmt.Errorf("order %d has empty collateral token", i))
		}
		collateral, err := parseInt(w.ReservedCollateral, "reserved_collateral")
		if err != nil {
			return nil, err
		}
		fee, err := parseInt(w.ExecutionFee, "execution_fee")
		if err != nil {
			return nil, err
		}
		orders = append(orders, PendingOrder{
			Market:             w.Market,
			Increase:           w.Increase,
			CollateralToken:    types.AssetID(w.CollateralToken),
			ReservedCollateral: collateral,
			FeeToken:           types.AssetID(w.FeeToken),
			ExecutionFee:       fee,
		})
	}
	return orders, nil
}

// ClaimableFees lists accrued funding and reward fees claimable by the pool.
func (c *Client) ClaimableFees(ctx context.Context, pool types.PoolID) ([]ClaimableFee, error) {
	var wire []wireClaimableFee
	if err := c.call(ctx, "venues_claimableFees", pool, &wire); err != nil {
		return nil, err
	}
	fees := make([]ClaimableFee, 0, len(wire))
	for i, w := range wire {
		if w.Token == "" {
			return nil, errors.Join(ErrInvalidResponse, fmt.Errorf("fee %d has empty token", i))
		}
		amount, err := parseInt(w.Amount, "fee")
		if err != nil {
			return nil, err
		}
		fees = append(fees, ClaimableFee{Token: types.AssetID(w.Token), Amount: amount})
	}
	return fees, nil
}

// LiquidityPositions lists concentrated-liquidity positions owned by the pool.
func (c *Client) LiquidityPositions(ctx context.Context, pool types.PoolID) ([]LiquidityPosition, error) {
	var wire []wireLiquidityPosition
	if err := c.call(ctx, "venues_liquidityPositions", pool, &wire); err != nil {
		return nil, err
	}
	positions := make([]LiquidityPosition, 0, len(wire))
	for i, w := range wire {
		if w.Token0 == "" || w.Token1 == "" {
			return nil, errors.Join(ErrInvalidResponse, fmt.Errorf("liquidity position %d has empty token pair", i))
		}
		amount0, err := parseInt(w.Amount0, "amount0")
		if err != nil {
			return nil, err
		}
		amount1, err := parseInt(w.Amount1, "amount1")
		if err != nil {
			return nil, err
		}
		fees0, err := parseInt(w.FeesOwed0, "fees_owed0")
		if err != nil {
			return nil, err
		}
		fees1, err := parseInt(w.FeesOwed1, "fees_owed1")
		if err != nil {
			return nil, err
		}
		positions = append(positions, LiquidityPosition{
			ID:        w.ID,
			Token0:    types.AssetID(w.Token0),
			Token1:    types.AssetID(w.Token1),
			Amount0:   amount0,
			Amount1:   amount1,
			FeesOwed0: fees0,
			FeesOwed1: fees1,
		})
	}
	return positions, nil
}
