package venues

import (
	"context"

	sdkmath "cosmossdk.io/math"

	"github.com/poolworks/navengine/internal/types"
)

// StakingBalance is a pool's position in the external staking registry:
// staked principal plus pending, claimable rewards, both in the reference
// token's native units.
type StakingBalance struct {
	Token          types.AssetID `json:"token"`
	Staked         sdkmath.Int   `json:"staked"`
	PendingRewards sdkmath.Int   `json:"pending_rewards"`
}

// MarginPosition is one open derivatives position as reported by the
// external position reader.
//
// Collateral is expressed in the venue's own decimal representation of the
// collateral token (VenueDecimals); TokenDecimals is the token's canonical
// precision, so callers can rescale exactly. PnL, PriceImpact and Costs are
// value-denominated and are converted into collateral units through
// CollateralPrice, the value of one raw collateral unit. A zero
// CollateralPrice means the venue's internal oracle had no usable price.
type MarginPosition struct {
	Market          string        `json:"market"`
	CollateralToken types.AssetID `json:"collateral_token"`
	Collateral      sdkmath.Int   `json:"collateral"`
	VenueDecimals   uint32        `json:"venue_decimals"`
	TokenDecimals   uint32        `json:"token_decimals"`
	PnL             sdkmath.Int   `json:"pnl"`          // signed
	PriceImpact     sdkmath.Int   `json:"price_impact"` // signed
	Costs           sdkmath.Int   `json:"costs"`        // funding + borrowing + close fees, never negative
	CollateralPrice sdkmath.Int   `json:"collateral_price"`
}

// PendingOrder is a not-yet-executed order. Only increase orders reserve
// value (collateral and execution fee); decrease orders release value and
// never count toward valuation.
type PendingOrder struct {
	Market             string        `json:"market"`
	Increase           bool          `json:"increase"`
	CollateralToken    types.AssetID `json:"collateral_token"`
	ReservedCollateral sdkmath.Int   `json:"reserved_collateral"` // token native units
	FeeToken           types.AssetID `json:"fee_token"`
	ExecutionFee       sdkmath.Int   `json:"execution_fee"` // token native units
}

// ClaimableFee is an accrued funding or reward fee the pool may claim from
// the venue, in the token's native units.
type ClaimableFee struct {
	Token  types.AssetID `json:"token"`
	Amount sdkmath.Int   `json:"amount"`
}

// LiquidityPosition is a concentrated-liquidity position owned by the pool:
// the withdrawable principal per token plus uncollected fees, in native
// units.
type LiquidityPosition struct {
	ID        uint64        `json:"id"`
	Token0    types.AssetID `json:"token0"`
	Token1    types.AssetID `json:"token1"`
	Amount0   sdkmath.Int   `json:"amount0"`
	Amount1   sdkmath.Int   `json:"amount1"`
	FeesOwed0 sdkmath.Int   `json:"fees_owed0"`
	FeesOwed1 sdkmath.Int   `json:"fees_owed1"`
}

// StakingRegistry exposes the external staking collaborator, keyed by pool
// identity.
type StakingRegistry interface {
	StakingBalance(ctx context.Context, pool types.PoolID) (StakingBalance, error)
}

// DerivativesReader exposes the external derivatives-position reader. It is
// a fixed read-only service and may fail under upstream oracle staleness;
// the aggregator degrades to raw collateral in that case.
type DerivativesReader interface {
	Positions(ctx context.Context, pool types.PoolID) ([]MarginPosition, error)
	PendingOrders(ctx context.Context, pool types.PoolID) ([]PendingOrder, error)
	ClaimableFees(ctx context.Context, pool types.PoolID) ([]ClaimableFee, error)

	// RawPositions lists positions with collateral only, bypassing the
	// venue's internal pricing. Used as the degraded fallback.
	RawPositions(ctx context.Context, pool types.PoolID) ([]MarginPosition, error)
}

// LiquidityManager exposes ownership and position queries for
// concentrated-liquidity positions held by the pool.
type LiquidityManager interface {
	LiquidityPositions(ctx context.Context, pool types.PoolID) ([]LiquidityPosition, error)
}
