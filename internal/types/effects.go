/*

This file contains the effect types an operation produces. Every mutating
top-level operation (issue, redeem, refresh, sweep, settlement adjustments)
validates and computes first, then hands a single OperationEffects batch to
the store, which applies it atomically. A failing step therefore never leaves
a partial commit behind.

*/

package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

// OperationKind labels journal entries by the top-level operation that
// produced them.
type OperationKind string

const (
	OpIssue    OperationKind = "ISSUE"
	OpRedeem   OperationKind = "REDEEM"
	OpRefresh  OperationKind = "REFRESH"
	OpSweep    OperationKind = "SWEEP"
	OpTransfer OperationKind = "TRANSFER"
	OpEscrow   OperationKind = "ESCROW"
)

// HolderDelta adjusts one holder account. A nil LockupExpiry leaves the
// holder's current lockup untouched.
type HolderDelta struct {
	Holder       string      `json:"holder"`
	SharesDelta  sdkmath.Int `json:"shares_delta"`
	LockupExpiry *time.Time  `json:"lockup_expiry,omitempty"`
}

// HoldingDelta adjusts the pool's balance of one asset.
type HoldingDelta struct {
	Asset AssetID     `json:"asset"`
	Delta sdkmath.Int `json:"delta"`
}

// JournalEntry is the durable record of one completed operation.
type JournalEntry struct {
	OperationID string        `json:"operation_id"`
	Pool        PoolID        `json:"pool_id"`
	Kind        OperationKind `json:"kind"`
	Actor       string        `json:"actor"`
	Asset       AssetID       `json:"asset,omitempty"`
	AssetAmount sdkmath.Int   `json:"asset_amount"`
	ShareAmount sdkmath.Int   `json:"share_amount"`
	FeeShares   sdkmath.Int   `json:"fee_shares"`
	Timestamp   time.Time     `json:"timestamp"`
}

// PricePoint is one row of the price history written whenever a refresh
// changes the stored valuation.
type PricePoint struct {
	Pool          PoolID      `json:"pool_id"`
	PerShareValue sdkmath.Int `json:"per_share_value"`
	TotalValue    sdkmath.Int `json:"total_value"`
	Timestamp     time.Time   `json:"timestamp"`
}

// OperationEffects is the full set of state mutations one top-level operation
// commits. Zero-valued fields are no-ops.
type OperationEffects struct {
	Pool PoolID

	SupplyDelta        sdkmath.Int
	VirtualSupplyDelta sdkmath.Int

	// Stored valuation updates; nil leaves the stored values untouched.
	StoredTotalValue    *sdkmath.Int
	StoredPerShareValue *sdkmath.Int
	StoredValueAt       *time.Time

	MarkDeposited bool

	HolderDeltas  []HolderDelta
	HoldingDeltas []HoldingDelta

	// Registry changes, applied in the same commit as the balance changes
	// that justify them.
	ActivateAssets   []AssetID
	EvictAssets      []AssetID
	ActivateVenues   []VenueKind
	DeactivateVenues []VenueKind

	Journal    *JournalEntry
	PricePoint *PricePoint
}

// NewOperationEffects returns an effects batch with zeroed deltas for the
// given pool.
func NewOperationEffects(pool PoolID) *OperationEffects {
	return &OperationEffects{
		Pool:               pool,
		SupplyDelta:        sdkmath.ZeroInt(),
		VirtualSupplyDelta: sdkmath.ZeroInt(),
	}
}

// Empty reports whether applying the batch would change nothing durable.
func (e *OperationEffects) Empty() bool {
	return e.SupplyDelta.IsZero() &&
		e.VirtualSupplyDelta.IsZero() &&
		e.StoredTotalValue == nil &&
		e.StoredPerShareValue == nil &&
		!e.MarkDeposited &&
		len(e.HolderDeltas) == 0 &&
		len(e.HoldingDeltas) == 0 &&
		len(e.ActivateAssets) == 0 &&
		len(e.EvictAssets) == 0 &&
		len(e.ActivateVenues) == 0 &&
		len(e.DeactivateVenues) == 0 &&
		e.Journal == nil &&
		e.PricePoint == nil
}
