package ledger

import (
	"context"
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/poolworks/navengine/internal/types"
)

// CreatePool registers a new, empty pool. Supply and value fields are reset;
// a zero StoredPerShareValue defaults to 10^BaseDecimals, i.e. one base unit
// of value per share.
func (l *Ledger) CreatePool(ctx context.Context, pool types.Pool) (*types.Pool, error) {
	if pool.Name == "" {
		return nil, errors.Join(ErrInvalidParams, errors.New("pool name is required"))
	}
	if pool.BaseAsset == "" {
		return nil, errors.Join(ErrInvalidParams, errors.New("base asset is required"))
	}
	if pool.BaseDecimals > types.MaxDecimals {
		return nil, errors.Join(ErrInvalidParams,
			fmt.Errorf("base decimals %d exceed %d", pool.BaseDecimals, types.MaxDecimals))
	}
	if pool.FeeCollector == "" {
		return nil, errors.Join(ErrInvalidParams, errors.New("fee collector is required"))
	}
	if pool.SpreadBps > bpsDenominator {
		return nil, errors.Join(ErrInvalidParams,
			fmt.Errorf("spread %d bps exceeds %d", pool.SpreadBps, bpsDenominator))
	}
	if pool.LockupDuration < 0 {
		return nil, errors.Join(ErrInvalidParams, errors.New("lockup duration cannot be negative"))
	}

	pool.ShareSupply = sdkmath.ZeroInt()
	pool.VirtualSupply = sdkmath.ZeroInt()
	pool.StoredTotalValue = sdkmath.ZeroInt()
	if pool.StoredPerShareValue.IsNil() || pool.StoredPerShareValue.IsZero() {
		pool.StoredPerShareValue = types.ScaleFactor(pool.BaseDecimals)
	}
	if !pool.StoredPerShareValue.IsPositive() {
		return nil, errors.Join(ErrInvalidParams, errors.New("initial per-share value must be positive"))
	}
	pool.EverDeposited = false
	pool.CreatedAt = l.now().UTC()

	if err := l.store.CreatePool(ctx, &pool); err != nil {
		return nil, err
	}

	l.logger.Info().
		Uint64("poolId", uint64(pool.ID)).
		Str("name", pool.Name).
		Str("baseAsset", string(pool.BaseAsset)).
		Uint32("spreadBps", pool.SpreadBps).
		Msg("Created pool")
	return &pool, nil
}

// SetPoolParams replaces the pool's adjustable settings.
func (l *Ledger) SetPoolParams(ctx context.Context, poolID types.PoolID, params types.PoolParams) error {
	if params.FeeCollector == "" {
		return errors.Join(ErrInvalidParams, errors.New("fee collector is required"))
	}
	if params.SpreadBps > bpsDenominator {
		return errors.Join(ErrInvalidParams,
			fmt.Errorf("spread %d bps exceeds %d", params.SpreadBps, bpsDenominator))
	}
	if params.LockupDuration < 0 {
		return errors.Join(ErrInvalidParams, errors.New("lockup duration cannot be negative"))
	}
	if err := l.store.UpdatePoolParams(ctx, poolID, params); err != nil {
		return err
	}
	l.logger.Info().
		Uint64("poolId", uint64(poolID)).
		Uint32("spreadBps", params.SpreadBps).
		Dur("lockup", params.LockupDuration).
		Str("feeCollector", params.FeeCollector).
		Bool("allowListed", params.AllowListed).
		Msg("Updated pool parameters")
	return nil
}

// SetEligibleInput marks an asset as accepted (or no longer accepted) as
// alternate deposit input. The base asset is always accepted and cannot be
// configured.
func (l *Ledger) SetEligibleInput(ctx context.Context, poolID types.PoolID, asset types.AssetID, eligible bool) error {
	if asset == "" {
		return errors.Join(ErrInvalidParams, errors.New("asset is required"))
	}
	pool, err := l.store.GetPool(ctx, poolID)
	if err != nil {
		return err
	}
	if asset == pool.BaseAsset {
		return errors.Join(ErrInvalidParams, errors.New("base asset eligibility is fixed"))
	}
	return l.store.SetEligibleInput(ctx, poolID, asset, eligible)
}

// SetOperator grants or revokes another account's right to redeem on the
// holder's behalf.
func (l *Ledger) SetOperator(ctx context.Context, poolID types.PoolID, holder, operator string, approved bool) error {
	if holder == "" || operator == "" {
		return errors.Join(ErrInvalidParams, errors.New("holder and operator are required"))
	}
	if holder == operator {
		return errors.Join(ErrInvalidParams, errors.New("holder cannot be their own operator"))
	}
	return l.store.SetOperator(ctx, poolID, holder, operator, approved)
}

// SetAllowed adds or removes a holder from the pool's allow list.
func (l *Ledger) SetAllowed(ctx context.Context, poolID types.PoolID, holder string, allowed bool) error {
	if holder == "" {
		return errors.Join(ErrInvalidParams, errors.New("holder is required"))
	}
	return l.store.SetAllowed(ctx, poolID, holder, allowed)
}
