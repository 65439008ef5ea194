package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"

	"github.com/poolworks/navengine/internal/types"
)

// IssueParams describes one deposit-and-mint request.
type IssueParams struct {
	Pool      types.PoolID
	Depositor string
	// Recipient receives the minted shares; defaults to the depositor. A
	// depositor other than the recipient must hold an operator approval from
	// the recipient.
	Recipient string
	Asset     types.AssetID
	Amount    sdkmath.Int
	// MinShares is the smallest acceptable net mint; nil disables the bound.
	MinShares sdkmath.Int
}

// IssueResult reports what one issuance actually did.
type IssueResult struct {
	OperationID   string      `json:"operation_id"`
	DepositValue  sdkmath.Int `json:"deposit_value"`
	PerShareValue sdkmath.Int `json:"per_share_value"`
	GrossShares   sdkmath.Int `json:"gross_shares"`
	FeeShares     sdkmath.Int `json:"fee_shares"`
	NetShares     sdkmath.Int `json:"net_shares"`
	LockupExpiry  time.Time   `json:"lockup_expiry"`
}

// Issue accepts a deposit and mints shares to the recipient.
//
// The deposit prices against a fresh valuation, with one exception: the very
// first deposit a pool ever sees prices against the stored per-share value,
// since there is nothing to value yet. Issuance into a pool whose supply
// later returned to zero is NOT the first deposit and still values the
// remaining backing, so leftover value accrues to the new shares instead of
// being captured by a bootstrap price.
//
// The spread fee is taken in shares and credited to the fee collector; it
// floors, so recipient shares plus fee shares always equal the gross mint.
// Any deposit, including a top-up, restarts the recipient's lockup. Because
// of that refresh, only the recipient or one of their approved operators may
// deposit on the recipient's behalf.
func (l *Ledger) Issue(ctx context.Context, params IssueParams) (IssueResult, error) {
	if params.Depositor == "" {
		return IssueResult{}, errors.Join(ErrInvalidParams, errors.New("depositor is required"))
	}
	if params.Asset == "" {
		return IssueResult{}, errors.Join(ErrInvalidParams, errors.New("asset is required"))
	}
	if params.Amount.IsNil() || !params.Amount.IsPositive() {
		return IssueResult{}, errors.Join(ErrInvalidParams, errors.New("amount must be positive"))
	}
	recipient := params.Recipient
	if recipient == "" {
		recipient = params.Depositor
	}

	release, err := l.begin(params.Pool)
	if err != nil {
		return IssueResult{}, err
	}
	defer release()

	pool, err := l.store.GetPool(ctx, params.Pool)
	if err != nil {
		return IssueResult{}, err
	}

	if params.Depositor != recipient {
		approved, err := l.store.IsOperator(ctx, pool.ID, recipient, params.Depositor)
		if err != nil {
			return IssueResult{}, err
		}
		if !approved {
			return IssueResult{}, errors.Join(ErrNotOperator,
				fmt.Errorf("%s is not approved by %s", params.Depositor, recipient))
		}
	}

	if pool.AllowListed {
		allowed, err := l.store.IsAllowed(ctx, pool.ID, recipient)
		if err != nil {
			return IssueResult{}, err
		}
		if !allowed {
			return IssueResult{}, errors.Join(ErrNotAllowed, fmt.Errorf("recipient %s", recipient))
		}
	}

	depositValue, err := l.depositValue(ctx, pool, params.Asset, params.Amount)
	if err != nil {
		return IssueResult{}, err
	}
	if depositValue.LT(l.minDeposit) {
		return IssueResult{}, errors.Join(ErrDepositTooSmall,
			fmt.Errorf("value %s is below minimum %s", depositValue.String(), l.minDeposit.String()))
	}

	perShare, err := l.issuancePrice(ctx, pool)
	if err != nil {
		return IssueResult{}, err
	}

	grossShares := depositValue.Mul(pool.Scale()).Quo(perShare)
	if !grossShares.IsPositive() {
		return IssueResult{}, errors.Join(ErrZeroShares,
			fmt.Errorf("deposit value %s at price %s", depositValue.String(), perShare.String()))
	}
	netShares, feeShares := spreadSplit(grossShares, pool.SpreadBps)
	if !netShares.IsPositive() {
		return IssueResult{}, errors.Join(ErrZeroShares, errors.New("spread consumes the entire mint"))
	}
	if !params.MinShares.IsNil() && netShares.LT(params.MinShares) {
		return IssueResult{}, errors.Join(ErrSlippage,
			fmt.Errorf("net shares %s below minimum %s", netShares.String(), params.MinShares.String()))
	}

	now := l.now().UTC()
	lockupExpiry := now.Add(pool.LockupDuration)

	effects := types.NewOperationEffects(pool.ID)
	effects.SupplyDelta = grossShares
	effects.HolderDeltas = append(effects.HolderDeltas, types.HolderDelta{
		Holder:       recipient,
		SharesDelta:  netShares,
		LockupExpiry: &lockupExpiry,
	})
	if feeShares.IsPositive() {
		effects.HolderDeltas = append(effects.HolderDeltas, types.HolderDelta{
			Holder:      pool.FeeCollector,
			SharesDelta: feeShares,
		})
	}
	effects.HoldingDeltas = append(effects.HoldingDeltas, types.HoldingDelta{
		Asset: params.Asset,
		Delta: params.Amount,
	})
	if params.Asset != pool.BaseAsset {
		active, err := l.store.IsActiveAsset(ctx, pool.ID, params.Asset)
		if err != nil {
			return IssueResult{}, err
		}
		if !active {
			effects.ActivateAssets = append(effects.ActivateAssets, params.Asset)
		}
	}
	if !pool.EverDeposited {
		effects.MarkDeposited = true
	}

	operationID := uuid.New().String()
	effects.Journal = &types.JournalEntry{
		OperationID: operationID,
		Pool:        pool.ID,
		Kind:        types.OpIssue,
		Actor:       params.Depositor,
		Asset:       params.Asset,
		AssetAmount: params.Amount,
		ShareAmount: netShares,
		FeeShares:   feeShares,
		Timestamp:   now,
	}

	if err := l.store.Apply(ctx, effects); err != nil {
		return IssueResult{}, err
	}

	l.logger.Info().
		Uint64("poolId", uint64(pool.ID)).
		Str("operationId", operationID).
		Str("depositor", params.Depositor).
		Str("recipient", recipient).
		Str("asset", string(params.Asset)).
		Str("amount", params.Amount.String()).
		Str("netShares", netShares.String()).
		Str("feeShares", feeShares.String()).
		Msg("Issued shares")

	return IssueResult{
		OperationID:   operationID,
		DepositValue:  depositValue,
		PerShareValue: perShare,
		GrossShares:   grossShares,
		FeeShares:     feeShares,
		NetShares:     netShares,
		LockupExpiry:  lockupExpiry,
	}, nil
}

// depositValue expresses the deposit in base-asset units. Base-asset deposits
// count at face value; anything else must be an eligible input and must have
// a live quote, with no stored-value fallback.
func (l *Ledger) depositValue(ctx context.Context, pool *types.Pool, asset types.AssetID, amount sdkmath.Int) (sdkmath.Int, error) {
	if asset == pool.BaseAsset {
		return amount, nil
	}

	eligible, err := l.store.IsEligibleInput(ctx, pool.ID, asset)
	if err != nil {
		return sdkmath.Int{}, err
	}
	if !eligible {
		return sdkmath.Int{}, errors.Join(ErrIneligibleInput, fmt.Errorf("asset %s", asset))
	}

	value, err := l.converter.Convert(ctx, asset, amount, pool.BaseAsset)
	if err != nil {
		return sdkmath.Int{}, errors.Join(ErrNoPrice, fmt.Errorf("cannot value deposit of %s: %w", asset, err))
	}
	if !value.IsPositive() {
		return sdkmath.Int{}, errors.Join(ErrNoPrice, fmt.Errorf("deposit of %s values to %s", asset, value.String()))
	}
	return value, nil
}

// issuancePrice resolves the per-share price a deposit mints at.
func (l *Ledger) issuancePrice(ctx context.Context, pool *types.Pool) (sdkmath.Int, error) {
	if !pool.EverDeposited {
		if !pool.StoredPerShareValue.IsPositive() {
			return sdkmath.Int{}, errors.Join(ErrNoPrice, errors.New("pool has no initial per-share value"))
		}
		return pool.StoredPerShareValue, nil
	}

	result, err := l.engine.Compute(ctx, pool)
	if err != nil {
		return sdkmath.Int{}, err
	}
	if result.Unavailable() {
		return sdkmath.Int{}, errors.Join(ErrValuationUnavailable, errors.New("cannot price issuance"))
	}
	if !result.PerShareValue.IsPositive() {
		return sdkmath.Int{}, errors.Join(ErrNoPrice,
			fmt.Errorf("per-share value is %s", result.PerShareValue.String()))
	}
	return result.PerShareValue, nil
}
