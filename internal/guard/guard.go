/*

This package holds the pure admission checks run before value moves: the
impact guard, which bounds how large a single movement may be relative to the
pool's stored value, and the virtual-supply floor, which bounds how far the
settlement adjuster may push the effective supply below the real supply.

Both checks read only the stored accounting values, never a live valuation, so
their verdict cannot flip between the check and the commit.

*/

package guard

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/poolworks/navengine/internal/types"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidPool      = errors.New("pool is invalid")
	ErrInvalidAmount    = errors.New("amount is invalid")
	ErrImpactExceeded   = errors.New("movement exceeds the impact tolerance")
	ErrSupplyFloor      = errors.New("virtual supply would breach the floor")
	ErrInvalidTolerance = errors.New("tolerance is invalid")
)

const bpsDenominator = 10_000

// Virtual supply may offset at most 7/8 of the real share supply. The
// remaining 1/8 keeps the effective supply meaningfully positive while
// settlements are in flight.
const (
	virtualFloorNumerator   = 7
	virtualFloorDenominator = 8
)

// CheckImpact verifies that moving amountValue (in base-asset units) stays
// within toleranceBps of the pool's stored total value.
//
// The check passes vacuously when the stored total value or the effective
// supply is not positive: an empty or unvalued pool has no holders whose
// price the movement could distort. The boundary is inclusive, so a movement
// of exactly the tolerance passes.
func CheckImpact(pool *types.Pool, amountValue sdkmath.Int, toleranceBps uint32) error {
	if pool == nil {
		return errors.Join(ErrInvalidPool, errors.New("pool is required"))
	}
	if amountValue.IsNil() || amountValue.IsNegative() {
		return errors.Join(ErrInvalidAmount, errors.New("amount value must be non-negative"))
	}
	if toleranceBps > bpsDenominator {
		return errors.Join(ErrInvalidTolerance, fmt.Errorf("tolerance %d bps exceeds %d", toleranceBps, bpsDenominator))
	}

	if !pool.StoredTotalValue.IsPositive() || !pool.EffectiveSupply().IsPositive() {
		return nil
	}

	impactBps := amountValue.MulRaw(bpsDenominator).Quo(pool.StoredTotalValue)
	if impactBps.GT(sdkmath.NewInt(int64(toleranceBps))) {
		return errors.Join(ErrImpactExceeded,
			fmt.Errorf("movement of %s is %s bps of stored value %s, tolerance %d bps",
				amountValue.String(), impactBps.String(), pool.StoredTotalValue.String(), toleranceBps))
	}
	return nil
}

// CheckSupplyFloor verifies that applying virtualDelta keeps the virtual
// supply above the floor: its negative magnitude may never exceed 7/8 of the
// real share supply.
func CheckSupplyFloor(pool *types.Pool, virtualDelta sdkmath.Int) error {
	if pool == nil {
		return errors.Join(ErrInvalidPool, errors.New("pool is required"))
	}
	if virtualDelta.IsNil() {
		return errors.Join(ErrInvalidAmount, errors.New("virtual delta is required"))
	}

	newVirtual := pool.VirtualSupply.Add(virtualDelta)
	if !newVirtual.IsNegative() {
		return nil
	}

	// -newVirtual > shareSupply * 7/8, compared without division.
	if newVirtual.Neg().MulRaw(virtualFloorDenominator).GT(pool.ShareSupply.MulRaw(virtualFloorNumerator)) {
		return errors.Join(ErrSupplyFloor,
			fmt.Errorf("virtual supply %s would offset more than %d/%d of share supply %s",
				newVirtual.String(), virtualFloorNumerator, virtualFloorDenominator, pool.ShareSupply.String()))
	}
	return nil
}
