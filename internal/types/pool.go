/*

This file contains the core pool types which hold all the durable state needed
for valuation and share accounting.

*/

package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

// PoolID uniquely identifies a pool in the store.
type PoolID uint64

// AssetID identifies a token (denom or address form, e.g. "uusdc" or "0xA0b8...").
type AssetID string

// VenueKind enumerates the external venue types a pool can hold positions in.
// The set is closed: the position aggregator has one collector per kind.
type VenueKind string

const (
	VenueStaking     VenueKind = "STAKING"
	VenueDerivatives VenueKind = "DERIVATIVES"
	VenueLiquidity   VenueKind = "LIQUIDITY"
)

// AllVenueKinds lists every supported venue kind in collection order.
var AllVenueKinds = []VenueKind{VenueStaking, VenueDerivatives, VenueLiquidity}

// Pool is the durable accounting record for one tokenized pool.
type Pool struct {
	ID           PoolID  `json:"id"`
	Name         string  `json:"name"`
	BaseAsset    AssetID `json:"base_asset"`    // the asset valuation is expressed in
	BaseDecimals uint32  `json:"base_decimals"` // e.g. 6 for a USDC-based pool

	ShareSupply   sdkmath.Int `json:"share_supply"`
	VirtualSupply sdkmath.Int `json:"virtual_supply"` // signed correction for value in flight

	// Last persisted valuation. StoredPerShareValue is scaled so that
	// 10^BaseDecimals means exactly 1.0 base units per share.
	StoredPerShareValue sdkmath.Int `json:"stored_per_share_value"`
	StoredTotalValue    sdkmath.Int `json:"stored_total_value"`
	StoredValueAt       time.Time   `json:"stored_value_at"`

	SpreadBps      uint32        `json:"spread_bps"`      // issuance/redemption fee in basis points
	LockupDuration time.Duration `json:"lockup_duration"` // applied to the recipient on every issuance
	FeeCollector   string        `json:"fee_collector"`   // holder account receiving spread fees
	AllowListed    bool          `json:"allow_listed"`    // if true, recipients must be on the allow list

	// EverDeposited distinguishes the very first deposit into the pool (which
	// prices against the stored value) from a pool whose supply later returned
	// to zero (which prices against a fresh valuation of the remaining backing).
	EverDeposited bool `json:"ever_deposited"`

	CreatedAt time.Time `json:"created_at"`
}

// Scale returns the fixed-point scale of the pool's per-share value,
// 10^BaseDecimals.
func (p *Pool) Scale() sdkmath.Int {
	return ScaleFactor(p.BaseDecimals)
}

// EffectiveSupply is the valuation divisor: real share supply plus the signed
// virtual-supply correction.
func (p *Pool) EffectiveSupply() sdkmath.Int {
	return p.ShareSupply.Add(p.VirtualSupply)
}

// PoolParams are the administratively adjustable pool settings.
type PoolParams struct {
	SpreadBps      uint32        `json:"spread_bps"`
	LockupDuration time.Duration `json:"lockup_duration"`
	FeeCollector   string        `json:"fee_collector"`
	AllowListed    bool          `json:"allow_listed"`
}

// HolderAccount tracks one holder's shares in one pool.
type HolderAccount struct {
	Holder       string      `json:"holder"`
	Shares       sdkmath.Int `json:"shares"`
	LockupExpiry time.Time   `json:"lockup_expiry"`
}

// LockupElapsed reports whether the holder may redeem at the given time.
func (h *HolderAccount) LockupElapsed(now time.Time) bool {
	return !now.Before(h.LockupExpiry)
}

// ValuationResult is the output of one valuation pass.
//
// A zero Timestamp marks the sentinel "unavailable" result returned when the
// price-conversion service had no quote; callers must keep using the last
// stored value in that case.
type ValuationResult struct {
	TotalValue    sdkmath.Int `json:"total_value"`     // in base-asset units
	PerShareValue sdkmath.Int `json:"per_share_value"` // scaled by 10^BaseDecimals
	Timestamp     time.Time   `json:"timestamp"`
}

// Unavailable reports whether this result is the pricing-outage sentinel.
func (v ValuationResult) Unavailable() bool {
	return v.Timestamp.IsZero()
}

// UnavailableValuation returns the zero-valued sentinel result.
func UnavailableValuation() ValuationResult {
	return ValuationResult{
		TotalValue:    sdkmath.ZeroInt(),
		PerShareValue: sdkmath.ZeroInt(),
	}
}

// PositionEntry is one normalized (token, signed amount) contribution produced
// by the position aggregator. Entries are ephemeral: computed on demand and
// never persisted.
type PositionEntry struct {
	Token  AssetID     `json:"token"`
	Amount sdkmath.Int `json:"amount"` // token units, signed
	Venue  VenueKind   `json:"venue"`
}
