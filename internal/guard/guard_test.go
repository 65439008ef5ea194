package guard

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/poolworks/navengine/internal/types"
)

// testPool holds one million base units (6 decimals) against one million
// shares, so the per-share value is exactly 1.0.
func testPool() *types.Pool {
	return &types.Pool{
		ID:                  1,
		BaseAsset:           "uusdc",
		BaseDecimals:        6,
		ShareSupply:         sdkmath.NewInt(1_000_000_000_000),
		VirtualSupply:       sdkmath.ZeroInt(),
		StoredPerShareValue: sdkmath.NewInt(1_000_000),
		StoredTotalValue:    sdkmath.NewInt(1_000_000_000_000),
	}
}

func TestCheckImpactWithinTolerance(t *testing.T) {
	pool := testPool()

	// 100,000 units against 1,000,000 units of stored value is exactly
	// 1000 bps; the boundary is inclusive.
	err := CheckImpact(pool, sdkmath.NewInt(100_000_000_000), 1000)
	require.NoError(t, err)
}

func TestCheckImpactExceeded(t *testing.T) {
	pool := testPool()

	err := CheckImpact(pool, sdkmath.NewInt(101_000_000_000), 1000)
	require.ErrorIs(t, err, ErrImpactExceeded)
}

func TestCheckImpactVacuousOnUnvaluedPool(t *testing.T) {
	pool := testPool()
	pool.StoredTotalValue = sdkmath.ZeroInt()
	require.NoError(t, CheckImpact(pool, sdkmath.NewInt(1_000_000_000_000_000), 1))

	pool = testPool()
	pool.VirtualSupply = pool.ShareSupply.Neg()
	require.NoError(t, CheckImpact(pool, sdkmath.NewInt(1_000_000_000_000_000), 1))
}

func TestCheckImpactRejectsBadInput(t *testing.T) {
	pool := testPool()
	require.ErrorIs(t, CheckImpact(nil, sdkmath.NewInt(1), 100), ErrInvalidPool)
	require.ErrorIs(t, CheckImpact(pool, sdkmath.NewInt(-1), 100), ErrInvalidAmount)
	require.ErrorIs(t, CheckImpact(pool, sdkmath.Int{}, 100), ErrInvalidAmount)
	require.ErrorIs(t, CheckImpact(pool, sdkmath.NewInt(1), 10_001), ErrInvalidTolerance)
}

func TestCheckSupplyFloorAtBoundary(t *testing.T) {
	pool := &types.Pool{
		ShareSupply:   sdkmath.NewInt(800),
		VirtualSupply: sdkmath.ZeroInt(),
	}

	// -700 is exactly 7/8 of 800; the boundary is inclusive.
	require.NoError(t, CheckSupplyFloor(pool, sdkmath.NewInt(-700)))
	require.ErrorIs(t, CheckSupplyFloor(pool, sdkmath.NewInt(-701)), ErrSupplyFloor)
}

func TestCheckSupplyFloorAccumulates(t *testing.T) {
	pool := &types.Pool{
		ShareSupply:   sdkmath.NewInt(800),
		VirtualSupply: sdkmath.NewInt(-650),
	}

	require.NoError(t, CheckSupplyFloor(pool, sdkmath.NewInt(-50)))
	require.ErrorIs(t, CheckSupplyFloor(pool, sdkmath.NewInt(-51)), ErrSupplyFloor)

	// Positive corrections are never floored.
	require.NoError(t, CheckSupplyFloor(pool, sdkmath.NewInt(10_000)))
}

func TestCheckSupplyFloorPositiveVirtualUnbounded(t *testing.T) {
	pool := &types.Pool{
		ShareSupply:   sdkmath.NewInt(100),
		VirtualSupply: sdkmath.ZeroInt(),
	}
	require.NoError(t, CheckSupplyFloor(pool, sdkmath.NewInt(1_000_000)))
}
