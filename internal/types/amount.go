/*

This file contains fixed-point helpers shared by every accounting component:
an explicit (amount, decimals) pair type with exact rescaling, and signed
division with an explicit rounding direction.

*/

package types

import (
	"errors"
	"fmt"
	"strings"

	sdkmath "cosmossdk.io/math"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidDecimals = errors.New("decimal precision is invalid")
	ErrAmountNil       = errors.New("amount is nil")
	ErrDivisionByZero  = errors.New("division by zero")
)

// MaxDecimals is the highest decimal precision any supported asset uses.
const MaxDecimals = 18

var tenInt = sdkmath.NewInt(10)

// ScaleFactor returns 10^decimals as an Int.
func ScaleFactor(decimals uint32) sdkmath.Int {
	factor := sdkmath.OneInt()
	for i := uint32(0); i < decimals; i++ {
		factor = factor.Mul(tenInt)
	}
	return factor
}

// AssetAmount pairs a raw integer amount with the decimal precision it is
// expressed in, so cross-venue conversions never rely on ad hoc scaling
// constants.
type AssetAmount struct {
	Amount   sdkmath.Int `json:"amount"`
	Decimals uint32      `json:"decimals"`
}

// NewAssetAmount builds an AssetAmount after validating the precision.
func NewAssetAmount(amount sdkmath.Int, decimals uint32) (AssetAmount, error) {
	if decimals > MaxDecimals {
		return AssetAmount{}, fmt.Errorf("%w: %d (must be between 0 and %d)", ErrInvalidDecimals, decimals, MaxDecimals)
	}
	if amount.IsNil() {
		return AssetAmount{}, ErrAmountNil
	}
	return AssetAmount{Amount: amount, Decimals: decimals}, nil
}

// Rescale converts the amount to a different decimal precision.
//
// Scaling up is exact. Scaling down floors toward negative infinity, so a
// round trip up-then-down (or down-then-up for amounts integral at the lower
// precision) restores the original amount exactly.
func (a AssetAmount) Rescale(decimals uint32) (AssetAmount, error) {
	if decimals > MaxDecimals {
		return AssetAmount{}, fmt.Errorf("%w: %d (must be between 0 and %d)", ErrInvalidDecimals, decimals, MaxDecimals)
	}
	if a.Amount.IsNil() {
		return AssetAmount{}, ErrAmountNil
	}
	switch {
	case decimals == a.Decimals:
		return a, nil
	case decimals > a.Decimals:
		factor := ScaleFactor(decimals - a.Decimals)
		return AssetAmount{Amount: a.Amount.Mul(factor), Decimals: decimals}, nil
	default:
		factor := ScaleFactor(a.Decimals - decimals)
		scaled, err := DivFloor(a.Amount, factor)
		if err != nil {
			return AssetAmount{}, err
		}
		return AssetAmount{Amount: scaled, Decimals: decimals}, nil
	}
}

// DivFloor divides a by b rounding toward negative infinity. Used wherever
// rounding must go against the holder (profit and impact additions).
func DivFloor(a, b sdkmath.Int) (sdkmath.Int, error) {
	if a.IsNil() || b.IsNil() {
		return sdkmath.Int{}, ErrAmountNil
	}
	if b.IsZero() {
		return sdkmath.Int{}, ErrDivisionByZero
	}
	quo := a.Quo(b)
	rem := a.Mod(b)
	// Quo truncates toward zero; push down when signs differ and there is a
	// remainder.
	if !rem.IsZero() && a.IsNegative() != b.IsNegative() {
		quo = quo.Sub(sdkmath.OneInt())
	}
	return quo, nil
}

// DivCeil divides a by b rounding toward positive infinity. Used wherever
// rounding must go against the pool's counterparty (subtracted costs).
func DivCeil(a, b sdkmath.Int) (sdkmath.Int, error) {
	if a.IsNil() || b.IsNil() {
		return sdkmath.Int{}, ErrAmountNil
	}
	if b.IsZero() {
		return sdkmath.Int{}, ErrDivisionByZero
	}
	quo := a.Quo(b)
	rem := a.Mod(b)
	if !rem.IsZero() && a.IsNegative() == b.IsNegative() {
		quo = quo.Add(sdkmath.OneInt())
	}
	return quo, nil
}

// FormatAmount renders a raw integer amount as a decimal string for logs and
// API responses, e.g. 1500000 at 6 decimals -> "1.5".
func FormatAmount(amount sdkmath.Int, decimals uint32) string {
	if amount.IsNil() {
		return "0"
	}
	dec := sdkmath.LegacyNewDecFromIntWithPrec(amount, int64(decimals))
	return trimTrailingZeros(dec.String())
}

func trimTrailingZeros(s string) string {
	if !strings.Contains(s, ".") {
		return s
	}
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
