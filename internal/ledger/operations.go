package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"

	"github.com/poolworks/navengine/internal/guard"
	"github.com/poolworks/navengine/internal/registry"
	"github.com/poolworks/navengine/internal/types"
)

// RefreshValuation recomputes the pool's value and persists it as the new
// stored accounting price.
//
// A pricing outage is a quiet no-op: the sentinel result comes back with a
// nil error and the stored values stay untouched, so readers keep seeing the
// last good price. An unchanged valuation is also not persisted, which keeps
// the price history free of duplicate points.
func (l *Ledger) RefreshValuation(ctx context.Context, poolID types.PoolID, actor string) (types.ValuationResult, error) {
	release, err := l.begin(poolID)
	if err != nil {
		return types.ValuationResult{}, err
	}
	defer release()

	pool, err := l.store.GetPool(ctx, poolID)
	if err != nil {
		return types.ValuationResult{}, err
	}

	result, err := l.engine.Compute(ctx, pool)
	if err != nil {
		return types.ValuationResult{}, err
	}
	if result.Unavailable() {
		l.logger.Info().
			Uint64("poolId", uint64(poolID)).
			Msg("Valuation unavailable; stored values left untouched")
		return result, nil
	}

	if result.TotalValue.Equal(pool.StoredTotalValue) && result.PerShareValue.Equal(pool.StoredPerShareValue) {
		return result, nil
	}

	effects := types.NewOperationEffects(pool.ID)
	effects.StoredTotalValue = &result.TotalValue
	effects.StoredPerShareValue = &result.PerShareValue
	effects.StoredValueAt = &result.Timestamp
	effects.PricePoint = &types.PricePoint{
		Pool:          pool.ID,
		PerShareValue: result.PerShareValue,
		TotalValue:    result.TotalValue,
		Timestamp:     result.Timestamp,
	}
	effects.Journal = &types.JournalEntry{
		OperationID: uuid.New().String(),
		Pool:        pool.ID,
		Kind:        types.OpRefresh,
		Actor:       actor,
		AssetAmount: result.TotalValue,
		ShareAmount: sdkmath.ZeroInt(),
		FeeShares:   sdkmath.ZeroInt(),
		Timestamp:   result.Timestamp,
	}

	if err := l.store.Apply(ctx, effects); err != nil {
		return types.ValuationResult{}, err
	}

	l.logger.Info().
		Uint64("poolId", uint64(pool.ID)).
		Str("oldPerShare", pool.StoredPerShareValue.String()).
		Str("newPerShare", result.PerShareValue.String()).
		Str("oldTotal", pool.StoredTotalValue.String()).
		Str("newTotal", result.TotalValue.String()).
		Msg("Stored valuation changed")

	return result, nil
}

// Sweep retires active-asset entries with a zero balance and venue flags with
// nothing behind them. Sweeping a clean pool is a no-op and writes nothing,
// so the operation is idempotent.
func (l *Ledger) Sweep(ctx context.Context, poolID types.PoolID, actor string) (registry.SweepPlan, error) {
	release, err := l.begin(poolID)
	if err != nil {
		return registry.SweepPlan{}, err
	}
	defer release()

	pool, err := l.store.GetPool(ctx, poolID)
	if err != nil {
		return registry.SweepPlan{}, err
	}

	plan, err := l.sweeper.PlanSweep(ctx, pool)
	if err != nil {
		return registry.SweepPlan{}, err
	}
	if plan.Empty() {
		return plan, nil
	}

	effects := types.NewOperationEffects(pool.ID)
	effects.EvictAssets = plan.EvictAssets
	effects.DeactivateVenues = plan.DeactivateVenues
	effects.Journal = &types.JournalEntry{
		OperationID: uuid.New().String(),
		Pool:        pool.ID,
		Kind:        types.OpSweep,
		Actor:       actor,
		AssetAmount: sdkmath.ZeroInt(),
		ShareAmount: sdkmath.ZeroInt(),
		FeeShares:   sdkmath.ZeroInt(),
		Timestamp:   l.now().UTC(),
	}

	if err := l.store.Apply(ctx, effects); err != nil {
		return registry.SweepPlan{}, err
	}

	l.logger.Info().
		Uint64("poolId", uint64(pool.ID)).
		Int("evictedAssets", len(plan.EvictAssets)).
		Int("deactivatedVenues", len(plan.DeactivateVenues)).
		Msg("Swept registry")
	return plan, nil
}

// AdjustVirtualSupply applies a signed correction to the pool's virtual
// supply, used while settlement value is in flight. Negative corrections may
// never push the virtual supply past the floor.
func (l *Ledger) AdjustVirtualSupply(ctx context.Context, poolID types.PoolID, delta sdkmath.Int, actor string) error {
	if delta.IsNil() || delta.IsZero() {
		return errors.Join(ErrInvalidParams, errors.New("delta must be non-zero"))
	}

	release, err := l.begin(poolID)
	if err != nil {
		return err
	}
	defer release()

	pool, err := l.store.GetPool(ctx, poolID)
	if err != nil {
		return err
	}

	if err := guard.CheckSupplyFloor(pool, delta); err != nil {
		return err
	}

	effects := types.NewOperationEffects(pool.ID)
	effects.VirtualSupplyDelta = delta
	effects.Journal = &types.JournalEntry{
		OperationID: uuid.New().String(),
		Pool:        pool.ID,
		Kind:        types.OpEscrow,
		Actor:       actor,
		AssetAmount: sdkmath.ZeroInt(),
		ShareAmount: delta,
		FeeShares:   sdkmath.ZeroInt(),
		Timestamp:   l.now().UTC(),
	}

	if err := l.store.Apply(ctx, effects); err != nil {
		return err
	}

	l.logger.Info().
		Uint64("poolId", uint64(pool.ID)).
		Str("delta", delta.String()).
		Str("virtualSupply", pool.VirtualSupply.Add(delta).String()).
		Msg("Adjusted virtual supply")
	return nil
}

// TransferParams describes one movement of a tracked asset between the pool
// and an external venue.
type TransferParams struct {
	Pool   types.PoolID
	Asset  types.AssetID
	Amount sdkmath.Int
	Venue  types.VenueKind
	Actor  string
	// ToleranceBps bounds outbound movements relative to the pool's stored
	// total value. Ignored for inbound transfers.
	ToleranceBps uint32
}

// TransferOut debits a tracked asset for deployment into a venue. The
// movement is bounded by the impact guard against the STORED total value, so
// the verdict cannot be gamed by a concurrent price move, and the venue flag
// activates in the same commit.
func (l *Ledger) TransferOut(ctx context.Context, params TransferParams) (string, error) {
	if err := validateTransfer(params); err != nil {
		return "", err
	}

	release, err := l.begin(params.Pool)
	if err != nil {
		return "", err
	}
	defer release()

	pool, err := l.store.GetPool(ctx, params.Pool)
	if err != nil {
		return "", err
	}

	value := params.Amount
	if params.Asset != pool.BaseAsset {
		value, err = l.converter.Convert(ctx, params.Asset, params.Amount, pool.BaseAsset)
		if err != nil {
			return "", errors.Join(ErrNoPrice, fmt.Errorf("cannot value transfer of %s: %w", params.Asset, err))
		}
	}

	if err := guard.CheckImpact(pool, value, params.ToleranceBps); err != nil {
		return "", err
	}

	holding, err := l.store.GetHolding(ctx, pool.ID, params.Asset)
	if err != nil {
		return "", err
	}
	if holding.LT(params.Amount) {
		return "", errors.Join(ErrInsufficientHolding,
			fmt.Errorf("pool holds %s of %s, transfer needs %s", holding.String(), params.Asset, params.Amount.String()))
	}

	effects := types.NewOperationEffects(pool.ID)
	effects.HoldingDeltas = append(effects.HoldingDeltas, types.HoldingDelta{
		Asset: params.Asset,
		Delta: params.Amount.Neg(),
	})
	effects.ActivateVenues = append(effects.ActivateVenues, params.Venue)

	operationID := uuid.New().String()
	effects.Journal = transferJournal(operationID, pool.ID, params, l.now().UTC())

	if err := l.store.Apply(ctx, effects); err != nil {
		return "", err
	}

	l.logger.Info().
		Uint64("poolId", uint64(pool.ID)).
		Str("operationId", operationID).
		Str("asset", string(params.Asset)).
		Str("amount", params.Amount.String()).
		Str("venue", string(params.Venue)).
		Msg("Transferred out to venue")
	return operationID, nil
}

// TransferIn credits a tracked asset returning from a venue, activating the
// asset in the same commit when it is new to the pool. Inbound movements are
// not impact-guarded.
func (l *Ledger) TransferIn(ctx context.Context, params TransferParams) (string, error) {
	if err := validateTransfer(params); err != nil {
		return "", err
	}

	release, err := l.begin(params.Pool)
	if err != nil {
		return "", err
	}
	defer release()

	pool, err := l.store.GetPool(ctx, params.Pool)
	if err != nil {
		return "", err
	}

	effects := types.NewOperationEffects(pool.ID)
	effects.HoldingDeltas = append(effects.HoldingDeltas, types.HoldingDelta{
		Asset: params.Asset,
		Delta: params.Amount,
	})
	if params.Asset != pool.BaseAsset {
		active, err := l.store.IsActiveAsset(ctx, pool.ID, params.Asset)
		if err != nil {
			return "", err
		}
		if !active {
			effects.ActivateAssets = append(effects.ActivateAssets, params.Asset)
		}
	}

	operationID := uuid.New().String()
	effects.Journal = transferJournal(operationID, pool.ID, params, l.now().UTC())

	if err := l.store.Apply(ctx, effects); err != nil {
		return "", err
	}

	l.logger.Info().
		Uint64("poolId", uint64(pool.ID)).
		Str("operationId", operationID).
		Str("asset", string(params.Asset)).
		Str("amount", params.Amount.String()).
		Str("venue", string(params.Venue)).
		Msg("Transferred in from venue")
	return operationID, nil
}

func validateTransfer(params TransferParams) error {
	if params.Asset == "" {
		return errors.Join(ErrInvalidParams, errors.New("asset is required"))
	}
	if params.Amount.IsNil() || !params.Amount.IsPositive() {
		return errors.Join(ErrInvalidParams, errors.New("amount must be positive"))
	}
	if params.Actor == "" {
		return errors.Join(ErrInvalidParams, errors.New("actor is required"))
	}
	switch params.Venue {
	case types.VenueStaking, types.VenueDerivatives, types.VenueLiquidity:
		return nil
	default:
		return errors.Join(ErrInvalidParams, fmt.Errorf("unknown venue kind %q", params.Venue))
	}
}

func transferJournal(operationID string, pool types.PoolID, params TransferParams, at time.Time) *types.JournalEntry {
	return &types.JournalEntry{
		OperationID: operationID,
		Pool:        pool,
		Kind:        types.OpTransfer,
		Actor:       params.Actor,
		Asset:       params.Asset,
		AssetAmount: params.Amount,
		ShareAmount: sdkmath.ZeroInt(),
		FeeShares:   sdkmath.ZeroInt(),
		Timestamp:   at,
	}
}
