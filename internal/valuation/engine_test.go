package valuation

import (
	"context"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/poolworks/navengine/internal/positions"
	"github.com/poolworks/navengine/internal/pricing"
	"github.com/poolworks/navengine/internal/state"
	"github.com/poolworks/navengine/internal/types"
	"github.com/poolworks/navengine/internal/venues"
)

type stubStaking struct{}

func (stubStaking) StakingBalance(ctx context.Context, pool types.PoolID) (venues.StakingBalance, error) {
	return venues.StakingBalance{
		Token:          "ustake",
		Staked:         sdkmath.ZeroInt(),
		PendingRewards: sdkmath.ZeroInt(),
	}, nil
}

type stubDerivatives struct{}

func (stubDerivatives) Positions(ctx context.Context, pool types.PoolID) ([]venues.MarginPosition, error) {
	return nil, nil
}
func (stubDerivatives) RawPositions(ctx context.Context, pool types.PoolID) ([]venues.MarginPosition, error) {
	return nil, nil
}
func (stubDerivatives) PendingOrders(ctx context.Context, pool types.PoolID) ([]venues.PendingOrder, error) {
	return nil, nil
}
func (stubDerivatives) ClaimableFees(ctx context.Context, pool types.PoolID) ([]venues.ClaimableFee, error) {
	return nil, nil
}

type stubLiquidity struct{}

func (stubLiquidity) LiquidityPositions(ctx context.Context, pool types.PoolID) ([]venues.LiquidityPosition, error) {
	return nil, nil
}

// stubConverter prices tokens at fixed integer rates into the target. A
// missing rate means no quote.
type stubConverter struct {
	rates map[types.AssetID]int64
}

func (c *stubConverter) Convert(ctx context.Context, token types.AssetID, amount sdkmath.Int, target types.AssetID) (sdkmath.Int, error) {
	rate, ok := c.rates[token]
	if !ok {
		return sdkmath.Int{}, pricing.ErrNoQuote
	}
	return amount.MulRaw(rate), nil
}

func (c *stubConverter) ConvertBatch(ctx context.Context, entries []types.PositionEntry, target types.AssetID) ([]sdkmath.Int, error) {
	values := make([]sdkmath.Int, 0, len(entries))
	for _, entry := range entries {
		value, err := c.Convert(ctx, entry.Token, entry.Amount, target)
		if err != nil {
			return nil, err
		}
		values = append(values, value)
	}
	return values, nil
}

func newTestEngine(t *testing.T, store state.Store, converter pricing.Converter) *Engine {
	t.Helper()
	aggregator, err := positions.NewAggregator(stubStaking{}, stubDerivatives{}, stubLiquidity{})
	require.NoError(t, err)
	engine, err := NewEngine(store, aggregator, converter)
	require.NoError(t, err)
	engine.SetClock(func() time.Time { return time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC) })
	return engine
}

func seedPool(t *testing.T, store *state.MemoryStore) *types.Pool {
	t.Helper()
	pool := &types.Pool{
		ID:                  1,
		Name:                "usdc-main",
		BaseAsset:           "uusdc",
		BaseDecimals:        6,
		ShareSupply:         sdkmath.ZeroInt(),
		VirtualSupply:       sdkmath.ZeroInt(),
		StoredPerShareValue: sdkmath.NewInt(1_000_000),
		StoredTotalValue:    sdkmath.ZeroInt(),
	}
	require.NoError(t, store.CreatePool(context.Background(), pool))
	return pool
}

// credit funds the pool's holding and mints matching shares through the
// effects path.
func credit(t *testing.T, store *state.MemoryStore, pool types.PoolID, asset types.AssetID, amount, shares int64) {
	t.Helper()
	effects := types.NewOperationEffects(pool)
	effects.SupplyDelta = sdkmath.NewInt(shares)
	effects.HoldingDeltas = []types.HoldingDelta{{Asset: asset, Delta: sdkmath.NewInt(amount)}}
	if asset != "uusdc" {
		effects.ActivateAssets = []types.AssetID{asset}
	}
	require.NoError(t, store.Apply(context.Background(), effects))
}

func TestComputeBaseOnly(t *testing.T) {
	store := state.NewMemoryStore()
	seedPool(t, store)
	credit(t, store, 1, "uusdc", 5_000_000, 5_000_000)

	engine := newTestEngine(t, store, &stubConverter{})
	pool, err := store.GetPool(context.Background(), 1)
	require.NoError(t, err)

	result, err := engine.Compute(context.Background(), pool)
	require.NoError(t, err)
	require.False(t, result.Unavailable())
	require.Equal(t, "5000000", result.TotalValue.String())
	// 5.0 of value against 5.0 shares is exactly 1.0 per share.
	require.Equal(t, "1000000", result.PerShareValue.String())
}

func TestComputeConvertsActiveAssets(t *testing.T) {
	store := state.NewMemoryStore()
	seedPool(t, store)
	credit(t, store, 1, "uusdc", 5_000_000, 5_000_000)
	credit(t, store, 1, "uatom", 100, 0)

	converter := &stubConverter{rates: map[types.AssetID]int64{"uatom": 3}}
	engine := newTestEngine(t, store, converter)
	pool, err := store.GetPool(context.Background(), 1)
	require.NoError(t, err)

	result, err := engine.Compute(context.Background(), pool)
	require.NoError(t, err)
	require.Equal(t, "5000300", result.TotalValue.String())
}

func TestComputeReturnsSentinelOnPricingOutage(t *testing.T) {
	store := state.NewMemoryStore()
	seedPool(t, store)
	credit(t, store, 1, "uusdc", 5_000_000, 5_000_000)
	credit(t, store, 1, "uatom", 100, 0)

	// No rate for uatom: the batch conversion fails and the pass returns
	// the sentinel with no error.
	engine := newTestEngine(t, store, &stubConverter{})
	pool, err := store.GetPool(context.Background(), 1)
	require.NoError(t, err)

	result, err := engine.Compute(context.Background(), pool)
	require.NoError(t, err)
	require.True(t, result.Unavailable())
	require.True(t, result.TotalValue.IsZero())
}

func TestComputePreservesStoredPriceAtZeroSupply(t *testing.T) {
	store := state.NewMemoryStore()
	pool := seedPool(t, store)
	pool.StoredPerShareValue = sdkmath.NewInt(1_234_567)
	credit(t, store, 1, "uusdc", 42, 0)

	engine := newTestEngine(t, store, &stubConverter{})

	result, err := engine.Compute(context.Background(), pool)
	require.NoError(t, err)
	require.Equal(t, "42", result.TotalValue.String())
	require.Equal(t, "1234567", result.PerShareValue.String())
}

func TestComputeZeroValueWithSupply(t *testing.T) {
	store := state.NewMemoryStore()
	seedPool(t, store)
	credit(t, store, 1, "uusdc", 0, 1_000_000)

	engine := newTestEngine(t, store, &stubConverter{})
	pool, err := store.GetPool(context.Background(), 1)
	require.NoError(t, err)

	result, err := engine.Compute(context.Background(), pool)
	require.NoError(t, err)
	require.True(t, result.TotalValue.IsZero())
	require.True(t, result.PerShareValue.IsZero())
}

func TestComputeVirtualSupplyDilutesPrice(t *testing.T) {
	store := state.NewMemoryStore()
	seedPool(t, store)
	credit(t, store, 1, "uusdc", 4_000_000, 2_000_000)

	effects := types.NewOperationEffects(1)
	effects.VirtualSupplyDelta = sdkmath.NewInt(2_000_000)
	require.NoError(t, store.Apply(context.Background(), effects))

	engine := newTestEngine(t, store, &stubConverter{})
	pool, err := store.GetPool(context.Background(), 1)
	require.NoError(t, err)

	// 4.0 of value against an effective supply of 4.0 shares.
	result, err := engine.Compute(context.Background(), pool)
	require.NoError(t, err)
	require.Equal(t, "1000000", result.PerShareValue.String())
}
