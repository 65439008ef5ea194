package state

import (
	"context"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/poolworks/navengine/internal/types"
)

func newStoreWithPool(t *testing.T) *MemoryStore {
	t.Helper()
	store := NewMemoryStore()
	require.NoError(t, store.CreatePool(context.Background(), &types.Pool{
		ID:                  1,
		Name:                "usdc-main",
		BaseAsset:           "uusdc",
		BaseDecimals:        6,
		ShareSupply:         sdkmath.ZeroInt(),
		VirtualSupply:       sdkmath.ZeroInt(),
		StoredPerShareValue: sdkmath.NewInt(1_000_000),
		StoredTotalValue:    sdkmath.ZeroInt(),
	}))
	return store
}

func TestCreatePoolRejectsDuplicates(t *testing.T) {
	store := newStoreWithPool(t)
	err := store.CreatePool(context.Background(), &types.Pool{
		ID:                  1,
		Name:                "other",
		BaseAsset:           "uusdc",
		ShareSupply:         sdkmath.ZeroInt(),
		VirtualSupply:       sdkmath.ZeroInt(),
		StoredPerShareValue: sdkmath.OneInt(),
		StoredTotalValue:    sdkmath.ZeroInt(),
	})
	require.ErrorIs(t, err, ErrPoolExists)
}

func TestGetPoolReturnsCopy(t *testing.T) {
	store := newStoreWithPool(t)
	pool, err := store.GetPool(context.Background(), 1)
	require.NoError(t, err)

	// Mutating the returned record must not leak into the store.
	pool.ShareSupply = sdkmath.NewInt(999)
	again, err := store.GetPool(context.Background(), 1)
	require.NoError(t, err)
	require.True(t, again.ShareSupply.IsZero())
}

func TestListPoolsAscending(t *testing.T) {
	store := newStoreWithPool(t)
	for _, id := range []types.PoolID{7, 3} {
		require.NoError(t, store.CreatePool(context.Background(), &types.Pool{
			ID:                  id,
			Name:                "p",
			BaseAsset:           "uusdc",
			ShareSupply:         sdkmath.ZeroInt(),
			VirtualSupply:       sdkmath.ZeroInt(),
			StoredPerShareValue: sdkmath.OneInt(),
			StoredTotalValue:    sdkmath.ZeroInt(),
		}))
	}
	ids, err := store.ListPools(context.Background())
	require.NoError(t, err)
	require.Equal(t, []types.PoolID{1, 3, 7}, ids)
}

func TestUpdatePoolParams(t *testing.T) {
	store := newStoreWithPool(t)
	params := types.PoolParams{
		SpreadBps:      250,
		LockupDuration: 48 * time.Hour,
		FeeCollector:   "treasury",
		AllowListed:    true,
	}
	require.NoError(t, store.UpdatePoolParams(context.Background(), 1, params))

	pool, err := store.GetPool(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, uint32(250), pool.SpreadBps)
	require.Equal(t, 48*time.Hour, pool.LockupDuration)
	require.Equal(t, "treasury", pool.FeeCollector)
	require.True(t, pool.AllowListed)

	err = store.UpdatePoolParams(context.Background(), 99, params)
	require.ErrorIs(t, err, ErrPoolNotFound)
}

func TestApplyCommitsFullBatch(t *testing.T) {
	store := newStoreWithPool(t)

	expiry := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	effects := types.NewOperationEffects(1)
	effects.SupplyDelta = sdkmath.NewInt(1_000)
	effects.HolderDeltas = []types.HolderDelta{
		{Holder: "alice", SharesDelta: sdkmath.NewInt(990), LockupExpiry: &expiry},
		{Holder: "collector", SharesDelta: sdkmath.NewInt(10)},
	}
	effects.HoldingDeltas = []types.HoldingDelta{{Asset: "uusdc", Delta: sdkmath.NewInt(1_000)}}
	effects.MarkDeposited = true
	effects.Journal = &types.JournalEntry{OperationID: "op-1", Pool: 1, Kind: types.OpIssue}
	require.NoError(t, store.Apply(context.Background(), effects))

	pool, err := store.GetPool(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, "1000", pool.ShareSupply.String())
	require.True(t, pool.EverDeposited)

	alice, err := store.GetHolder(context.Background(), 1, "alice")
	require.NoError(t, err)
	require.Equal(t, "990", alice.Shares.String())
	require.Equal(t, expiry, alice.LockupExpiry)

	holding, err := store.GetHolding(context.Background(), 1, "uusdc")
	require.NoError(t, err)
	require.Equal(t, "1000", holding.String())

	require.Len(t, store.Journal(), 1)
}

func TestApplyFailingBatchChangesNothing(t *testing.T) {
	store := newStoreWithPool(t)

	seed := types.NewOperationEffects(1)
	seed.SupplyDelta = sdkmath.NewInt(100)
	seed.HolderDeltas = []types.HolderDelta{{Holder: "alice", SharesDelta: sdkmath.NewInt(100)}}
	seed.HoldingDeltas = []types.HoldingDelta{{Asset: "uusdc", Delta: sdkmath.NewInt(100)}}
	seed.Journal = &types.JournalEntry{OperationID: "op-seed", Pool: 1, Kind: types.OpIssue}
	require.NoError(t, store.Apply(context.Background(), seed))

	// The holding debit at the END of the batch fails, so the supply and
	// holder writes at the start must not land either.
	bad := types.NewOperationEffects(1)
	bad.SupplyDelta = sdkmath.NewInt(50)
	bad.HolderDeltas = []types.HolderDelta{{Holder: "alice", SharesDelta: sdkmath.NewInt(50)}}
	bad.HoldingDeltas = []types.HoldingDelta{{Asset: "uusdc", Delta: sdkmath.NewInt(-101)}}
	bad.Journal = &types.JournalEntry{OperationID: "op-bad", Pool: 1, Kind: types.OpIssue}
	require.ErrorIs(t, store.Apply(context.Background(), bad), ErrNegativeBalance)

	pool, err := store.GetPool(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, "100", pool.ShareSupply.String())

	alice, err := store.GetHolder(context.Background(), 1, "alice")
	require.NoError(t, err)
	require.Equal(t, "100", alice.Shares.String())

	holding, err := store.GetHolding(context.Background(), 1, "uusdc")
	require.NoError(t, err)
	require.Equal(t, "100", holding.String())

	require.Len(t, store.Journal(), 1)
}

func TestApplyRejectsNegativeSupply(t *testing.T) {
	store := newStoreWithPool(t)
	effects := types.NewOperationEffects(1)
	effects.SupplyDelta = sdkmath.NewInt(-1)
	require.ErrorIs(t, store.Apply(context.Background(), effects), ErrNegativeBalance)
}

func TestApplyRequiresCompleteValuationTriple(t *testing.T) {
	store := newStoreWithPool(t)

	total := sdkmath.NewInt(5_000)
	effects := types.NewOperationEffects(1)
	effects.StoredTotalValue = &total
	require.ErrorIs(t, store.Apply(context.Background(), effects), ErrEffectsViolation)

	perShare := sdkmath.NewInt(1_000_000)
	at := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	effects = types.NewOperationEffects(1)
	effects.StoredTotalValue = &total
	effects.StoredPerShareValue = &perShare
	effects.StoredValueAt = &at
	require.NoError(t, store.Apply(context.Background(), effects))

	pool, err := store.GetPool(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, "5000", pool.StoredTotalValue.String())
	require.Equal(t, "1000000", pool.StoredPerShareValue.String())
	require.Equal(t, at, pool.StoredValueAt)
}

func TestApplyUnknownPool(t *testing.T) {
	store := NewMemoryStore()
	effects := types.NewOperationEffects(42)
	effects.SupplyDelta = sdkmath.NewInt(1)
	require.ErrorIs(t, store.Apply(context.Background(), effects), ErrPoolNotFound)
}

func TestApplyRegistryDeltas(t *testing.T) {
	store := newStoreWithPool(t)

	effects := types.NewOperationEffects(1)
	effects.ActivateAssets = []types.AssetID{"uatom", "uosmo"}
	effects.ActivateVenues = []types.VenueKind{types.VenueStaking}
	require.NoError(t, store.Apply(context.Background(), effects))

	assets, err := store.GetActiveAssets(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, []types.AssetID{"uatom", "uosmo"}, assets)
	venues, err := store.GetActiveVenues(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, []types.VenueKind{types.VenueStaking}, venues)

	effects = types.NewOperationEffects(1)
	effects.EvictAssets = []types.AssetID{"uatom"}
	effects.DeactivateVenues = []types.VenueKind{types.VenueStaking}
	require.NoError(t, store.Apply(context.Background(), effects))

	assets, err = store.GetActiveAssets(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, []types.AssetID{"uosmo"}, assets)
	venues, err = store.GetActiveVenues(context.Background(), 1)
	require.NoError(t, err)
	require.Empty(t, venues)
}

func TestPriceHistoryNewestFirst(t *testing.T) {
	store := newStoreWithPool(t)

	base := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	for i := int64(1); i <= 3; i++ {
		total := sdkmath.NewInt(i * 1_000)
		perShare := sdkmath.NewInt(i)
		at := base.Add(time.Duration(i) * time.Hour)
		effects := types.NewOperationEffects(1)
		effects.StoredTotalValue = &total
		effects.StoredPerShareValue = &perShare
		effects.StoredValueAt = &at
		effects.PricePoint = &types.PricePoint{Pool: 1, PerShareValue: perShare, TotalValue: total, Timestamp: at}
		require.NoError(t, store.Apply(context.Background(), effects))
	}

	points, err := store.PriceHistory(context.Background(), 1, 2)
	require.NoError(t, err)
	require.Len(t, points, 2)
	require.Equal(t, "3", points[0].PerShareValue.String())
	require.Equal(t, "2", points[1].PerShareValue.String())

	all, err := store.PriceHistory(context.Background(), 1, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
}
