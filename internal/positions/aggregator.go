/*

This package normalizes a pool's open positions in external venues into
(token, signed amount) entries for the valuation engine. One collector per
venue kind, composed through a dispatch table, so adding a venue kind is
additive.

*/

package positions

import (
	"context"
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/poolworks/navengine/internal/logger"
	"github.com/poolworks/navengine/internal/types"
	"github.com/poolworks/navengine/internal/venues"
)

// Error definitions for zero-tolerance error handling
var (
	ErrUnknownVenue   = errors.New("venue kind is unknown")
	ErrInvalidReaders = errors.New("venue readers are invalid")
)

// collector produces the entries for one venue kind.
type collector func(ctx context.Context, pool types.PoolID) ([]types.PositionEntry, error)

// Aggregator collects and normalizes open positions across all active venue
// kinds for a pool.
type Aggregator struct {
	staking     venues.StakingRegistry
	derivatives venues.DerivativesReader
	liquidity   venues.LiquidityManager

	collectors map[types.VenueKind]collector
	logger     zerolog.Logger
}

// NewAggregator wires one collector per supported venue kind.
func NewAggregator(staking venues.StakingRegistry, derivatives venues.DerivativesReader, liquidity venues.LiquidityManager) (*Aggregator, error) {
	if staking == nil || derivatives == nil || liquidity == nil {
		return nil, errors.Join(ErrInvalidReaders, errors.New("all venue readers are required"))
	}
	a := &Aggregator{
		staking:     staking,
		derivatives: derivatives,
		liquidity:   liquidity,
		logger:      logger.GetForComponent("position_aggregator"),
	}
	a.collectors = map[types.VenueKind]collector{
		types.VenueStaking:     a.collectStaking,
		types.VenueDerivatives: a.collectDerivatives,
		types.VenueLiquidity:   a.collectLiquidity,
	}
	return a, nil
}

// Collect returns the normalized entries for every venue kind in active.
// A failing venue degrades (or is skipped for non-degradable kinds) rather
// than zeroing out unrelated value; the error return is reserved for
// programming errors such as an unknown venue kind.
func (a *Aggregator) Collect(ctx context.Context, pool types.PoolID, active []types.VenueKind) ([]types.PositionEntry, error) {
	var entries []types.PositionEntry
	for _, kind := range active {
		collect, ok := a.collectors[kind]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownVenue, kind)
		}
		venueEntries, err := collect(ctx, pool)
		if err != nil {
			// Keep the other venues' value intact.
			a.logger.Warn().
				Err(err).
				Uint64("poolId", uint64(pool)).
				Str("venue", string(kind)).
				Msg("Venue collection failed; contributing nothing for this venue")
			continue
		}
		entries = append(entries, venueEntries...)
	}
	return entries, nil
}

// collectStaking reports staked balance plus pending rewards as one entry,
// omitted entirely when zero.
func (a *Aggregator) collectStaking(ctx context.Context, pool types.PoolID) ([]types.PositionEntry, error) {
	balance, err := a.staking.StakingBalance(ctx, pool)
	if err != nil {
		return nil, fmt.Errorf("staking registry lookup failed: %w", err)
	}
	if balance.Token == "" {
		return nil, errors.New("staking registry returned empty reference token")
	}
	if balance.Staked.IsNil() || balance.PendingRewards.IsNil() {
		return nil, errors.New("staking registry returned nil amounts")
	}

	total := balance.Staked.Add(balance.PendingRewards)
	if total.IsZero() {
		return nil, nil
	}
	return []types.PositionEntry{{
		Token:  balance.Token,
		Amount: total,
		Venue:  types.VenueStaking,
	}}, nil
}

// collectDerivatives nets every open position into collateral terms, counts
// reserved value of pending increase orders, and appends claimable fees.
//
// If the enriched position listing fails outright (e.g. the venue's internal
// oracle is stale), the whole venue degrades to the coarser raw-collateral
// listing instead of dropping its value.
func (a *Aggregator) collectDerivatives(ctx context.Context, pool types.PoolID) ([]types.PositionEntry, error) {
	var entries []types.PositionEntry

	openPositions, err := a.derivatives.Positions(ctx, pool)
	if err != nil {
		a.logger.Warn().
			Err(err).
			Uint64("poolId", uint64(pool)).
			Msg("Enriched position listing failed; degrading to raw collateral")
		openPositions, err = a.derivatives.RawPositions(ctx, pool)
		if err != nil {
			return nil, fmt.Errorf("raw position listing failed: %w", err)
		}
	}

	for i, position := range openPositions {
		entry, include, err := netPositionEntry(position)
		if err != nil {
			return nil, fmt.Errorf("position %d: %w", i, err)
		}
		if include {
			entries = append(entries, entry)
		}
	}

	orders, err := a.derivatives.PendingOrders(ctx, pool)
	if err != nil {
		return nil, fmt.Errorf("pending order listing failed: %w", err)
	}
	for _, order := range orders {
		// Decrease orders release value rather than reserving it.
		if !order.Increase {
			continue
		}
		if order.ReservedCollateral.IsPositive() {
			entries = append(entries, types.PositionEntry{
				Token:  order.CollateralToken,
				Amount: order.ReservedCollateral,
				Venue:  types.VenueDerivatives,
			})
		}
		if order.ExecutionFee.IsPositive() {
			entries = append(entries, types.PositionEntry{
				Token:  order.FeeToken,
				Amount: order.ExecutionFee,
				Venue:  types.VenueDerivatives,
			})
		}
	}

	fees, err := a.derivatives.ClaimableFees(ctx, pool)
	if err != nil {
		return nil, fmt.Errorf("claimable fee listing failed: %w", err)
	}
	for _, fee := range fees {
		if fee.Amount.IsPositive() {
			entries = append(entries, types.PositionEntry{
				Token:  fee.Token,
				Amount: fee.Amount,
				Venue:  types.VenueDerivatives,
			})
		}
	}

	return entries, nil
}

// netPositionEntry converts one margin position into a single collateral-
// token entry:
//
//	net = collateral + pnl + priceImpact - costs
//
// PnL and impact additions convert with floor division (rounds against the
// holder); subtracted costs convert with ceiling division (rounds against
// the pool's counterparty), so rounding always favors solvency. Entries
// netting to zero or below are omitted; a zero collateral reference price
// degrades to the raw, unadjusted collateral.
func netPositionEntry(position venues.MarginPosition) (types.PositionEntry, bool, error) {
	if position.Collateral.IsNil() {
		return types.PositionEntry{}, false, errors.New("nil collateral")
	}

	collateral, err := types.AssetAmount{
		Amount:   position.Collateral,
		Decimals: position.VenueDecimals,
	}.Rescale(position.TokenDecimals)
	if err != nil {
		return types.PositionEntry{}, false, fmt.Errorf("collateral rescale: %w", err)
	}

	net := collateral.Amount
	if position.CollateralPrice.IsNil() || position.CollateralPrice.IsZero() {
		// Degenerate zero-price condition: the adjustments cannot be
		// expressed in collateral units, so fall back to raw collateral.
		if !net.IsPositive() {
			return types.PositionEntry{}, false, nil
		}
		return types.PositionEntry{
			Token:  position.CollateralToken,
			Amount: net,
			Venue:  types.VenueDerivatives,
		}, true, nil
	}

	pnl, err := types.DivFloor(position.PnL, position.CollateralPrice)
	if err != nil {
		return types.PositionEntry{}, false, fmt.Errorf("pnl conversion: %w", err)
	}
	impact, err := types.DivFloor(position.PriceImpact, position.CollateralPrice)
	if err != nil {
		return types.PositionEntry{}, false, fmt.Errorf("impact conversion: %w", err)
	}
	costs, err := types.DivCeil(position.Costs, position.CollateralPrice)
	if err != nil {
		return types.PositionEntry{}, false, fmt.Errorf("cost conversion: %w", err)
	}

	net = net.Add(pnl).Add(impact).Sub(costs)
	if !net.IsPositive() {
		// Never contribute a negative balance.
		return types.PositionEntry{}, false, nil
	}
	return types.PositionEntry{
		Token:  position.CollateralToken,
		Amount: net,
		Venue:  types.VenueDerivatives,
	}, true, nil
}

// collectLiquidity reports concentrated-liquidity principal plus uncollected
// fees, one entry per token.
func (a *Aggregator) collectLiquidity(ctx context.Context, pool types.PoolID) ([]types.PositionEntry, error) {
	liquidityPositions, err := a.liquidity.LiquidityPositions(ctx, pool)
	if err != nil {
		return nil, fmt.Errorf("liquidity position listing failed: %w", err)
	}

	totals := make(map[types.AssetID]sdkmath.Int)
	var order []types.AssetID
	add := func(token types.AssetID, amount sdkmath.Int) {
		if amount.IsNil() || !amount.IsPositive() {
			return
		}
		current, ok := totals[token]
		if !ok {
			current = sdkmath.ZeroInt()
			order = append(order, token)
		}
		totals[token] = current.Add(amount)
	}

	for _, position := range liquidityPositions {
		add(position.Token0, position.Amount0)
		add(position.Token0, position.FeesOwed0)
		add(position.Token1, position.Amount1)
		add(position.Token1, position.FeesOwed1)
	}

	entries := make([]types.PositionEntry, 0, len(order))
	for _, token := range order {
		entries = append(entries, types.PositionEntry{
			Token:  token,
			Amount: totals[token],
			Venue:  types.VenueLiquidity,
		})
	}
	return entries, nil
}
