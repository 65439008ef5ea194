package ledger

import (
	"context"
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"

	"github.com/poolworks/navengine/internal/types"
)

// RedeemParams describes one burn-and-withdraw request.
type RedeemParams struct {
	Pool   types.PoolID
	Holder string
	// Actor performs the redemption; defaults to the holder. Anyone else must
	// hold an operator approval from the holder.
	Actor  string
	Shares sdkmath.Int
	// MinValue is the smallest acceptable net payout in base-asset units;
	// nil disables the bound.
	MinValue sdkmath.Int
	// OutputAsset defaults to the pool's base asset. Anything else must be an
	// active asset the pool actually holds.
	OutputAsset types.AssetID
}

// RedeemResult reports what one redemption actually paid out.
type RedeemResult struct {
	OperationID   string        `json:"operation_id"`
	PerShareValue sdkmath.Int   `json:"per_share_value"`
	FeeShares     sdkmath.Int   `json:"fee_shares"`
	NetShares     sdkmath.Int   `json:"net_shares"`
	OutputAsset   types.AssetID `json:"output_asset"`
	OutputAmount  sdkmath.Int   `json:"output_amount"`
}

// Redeem burns a holder's shares and pays out their value.
//
// Redemption always prices against a fresh valuation; if pricing is down the
// redemption fails rather than paying out at a stale stored price. The spread
// fee is taken in shares and moved to the fee collector, so only the net
// shares leave the supply. Every rounding step floors against the holder,
// which keeps the remaining holders whole.
func (l *Ledger) Redeem(ctx context.Context, params RedeemParams) (RedeemResult, error) {
	if params.Holder == "" {
		return RedeemResult{}, errors.Join(ErrInvalidParams, errors.New("holder is required"))
	}
	if params.Shares.IsNil() || !params.Shares.IsPositive() {
		return RedeemResult{}, errors.Join(ErrInvalidParams, errors.New("share amount must be positive"))
	}
	actor := params.Actor
	if actor == "" {
		actor = params.Holder
	}

	release, err := l.begin(params.Pool)
	if err != nil {
		return RedeemResult{}, err
	}
	defer release()

	pool, err := l.store.GetPool(ctx, params.Pool)
	if err != nil {
		return RedeemResult{}, err
	}

	if actor != params.Holder {
		approved, err := l.store.IsOperator(ctx, pool.ID, params.Holder, actor)
		if err != nil {
			return RedeemResult{}, err
		}
		if !approved {
			return RedeemResult{}, errors.Join(ErrNotOperator,
				fmt.Errorf("%s is not approved by %s", actor, params.Holder))
		}
	}

	account, err := l.store.GetHolder(ctx, pool.ID, params.Holder)
	if err != nil {
		return RedeemResult{}, err
	}
	if account.Shares.LT(params.Shares) {
		return RedeemResult{}, errors.Join(ErrInsufficientShares,
			fmt.Errorf("holder %s has %s, wants to redeem %s", params.Holder, account.Shares.String(), params.Shares.String()))
	}
	now := l.now().UTC()
	if !account.LockupElapsed(now) {
		return RedeemResult{}, errors.Join(ErrLockupActive,
			fmt.Errorf("lockup expires at %s", account.LockupExpiry.Format("2006-01-02T15:04:05Z07:00")))
	}

	result, err := l.engine.Compute(ctx, pool)
	if err != nil {
		return RedeemResult{}, err
	}
	if result.Unavailable() {
		return RedeemResult{}, errors.Join(ErrValuationUnavailable, errors.New("cannot price redemption"))
	}
	if !result.PerShareValue.IsPositive() {
		return RedeemResult{}, errors.Join(ErrNoPrice,
			fmt.Errorf("per-share value is %s", result.PerShareValue.String()))
	}

	netShares, feeShares := spreadSplit(params.Shares, pool.SpreadBps)
	if !netShares.IsPositive() {
		return RedeemResult{}, errors.Join(ErrZeroShares, errors.New("spread consumes the entire redemption"))
	}

	// The spread splits in shares first and value floors once on the net
	// shares, so the fee leg and the payout leg never disagree by more than
	// the final division's dust.
	netValue := netShares.Mul(result.PerShareValue).Quo(pool.Scale())
	if !netValue.IsPositive() {
		return RedeemResult{}, errors.Join(ErrZeroOutput,
			fmt.Errorf("%s shares at price %s", netShares.String(), result.PerShareValue.String()))
	}
	if !params.MinValue.IsNil() && netValue.LT(params.MinValue) {
		return RedeemResult{}, errors.Join(ErrSlippage,
			fmt.Errorf("net value %s below minimum %s", netValue.String(), params.MinValue.String()))
	}

	outputAsset, outputAmount, err := l.redemptionOutput(ctx, pool, params.OutputAsset, netValue)
	if err != nil {
		return RedeemResult{}, err
	}

	effects := types.NewOperationEffects(pool.ID)
	effects.SupplyDelta = netShares.Neg()
	effects.HolderDeltas = append(effects.HolderDeltas, types.HolderDelta{
		Holder:      params.Holder,
		SharesDelta: params.Shares.Neg(),
	})
	if feeShares.IsPositive() {
		effects.HolderDeltas = append(effects.HolderDeltas, types.HolderDelta{
			Holder:      pool.FeeCollector,
			SharesDelta: feeShares,
		})
	}
	effects.HoldingDeltas = append(effects.HoldingDeltas, types.HoldingDelta{
		Asset: outputAsset,
		Delta: outputAmount.Neg(),
	})

	operationID := uuid.New().String()
	effects.Journal = &types.JournalEntry{
		OperationID: operationID,
		Pool:        pool.ID,
		Kind:        types.OpRedeem,
		Actor:       actor,
		Asset:       outputAsset,
		AssetAmount: outputAmount,
		ShareAmount: params.Shares,
		FeeShares:   feeShares,
		Timestamp:   now,
	}

	if err := l.store.Apply(ctx, effects); err != nil {
		return RedeemResult{}, err
	}

	l.logger.Info().
		Uint64("poolId", uint64(pool.ID)).
		Str("operationId", operationID).
		Str("holder", params.Holder).
		Str("shares", params.Shares.String()).
		Str("outputAsset", string(outputAsset)).
		Str("outputAmount", outputAmount.String()).
		Str("feeShares", feeShares.String()).
		Msg("Redeemed shares")

	return RedeemResult{
		OperationID:   operationID,
		PerShareValue: result.PerShareValue,
		FeeShares:     feeShares,
		NetShares:     netShares,
		OutputAsset:   outputAsset,
		OutputAmount:  outputAmount,
	}, nil
}

// redemptionOutput resolves the payout asset and amount for a redemption
// worth netValue base units, and verifies the pool can actually pay it.
func (l *Ledger) redemptionOutput(ctx context.Context, pool *types.Pool, requested types.AssetID, netValue sdkmath.Int) (types.AssetID, sdkmath.Int, error) {
	outputAsset := requested
	if outputAsset == "" {
		outputAsset = pool.BaseAsset
	}

	outputAmount := netValue
	if outputAsset != pool.BaseAsset {
		active, err := l.store.IsActiveAsset(ctx, pool.ID, outputAsset)
		if err != nil {
			return "", sdkmath.Int{}, err
		}
		if !active {
			return "", sdkmath.Int{}, errors.Join(ErrAssetInactive, fmt.Errorf("asset %s", outputAsset))
		}
		outputAmount, err = l.converter.Convert(ctx, pool.BaseAsset, netValue, outputAsset)
		if err != nil {
			return "", sdkmath.Int{}, errors.Join(ErrNoPrice,
				fmt.Errorf("cannot express payout in %s: %w", outputAsset, err))
		}
		if !outputAmount.IsPositive() {
			return "", sdkmath.Int{}, errors.Join(ErrZeroOutput, fmt.Errorf("payout in %s rounds to zero", outputAsset))
		}
	}

	holding, err := l.store.GetHolding(ctx, pool.ID, outputAsset)
	if err != nil {
		return "", sdkmath.Int{}, err
	}
	if holding.LT(outputAmount) {
		return "", sdkmath.Int{}, errors.Join(ErrInsufficientHolding,
			fmt.Errorf("pool holds %s of %s, payout needs %s", holding.String(), outputAsset, outputAmount.String()))
	}
	return outputAsset, outputAmount, nil
}
