package registry

import (
	"context"
	"errors"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/poolworks/navengine/internal/state"
	"github.com/poolworks/navengine/internal/types"
	"github.com/poolworks/navengine/internal/venues"
)

type stubStaking struct {
	balance venues.StakingBalance
	err     error
}

func (s *stubStaking) StakingBalance(ctx context.Context, pool types.PoolID) (venues.StakingBalance, error) {
	return s.balance, s.err
}

type stubDerivatives struct {
	raw       []venues.MarginPosition
	rawErr    error
	orders    []venues.PendingOrder
	ordersErr error
	fees      []venues.ClaimableFee
	feesErr   error
}

func (s *stubDerivatives) Positions(ctx context.Context, pool types.PoolID) ([]venues.MarginPosition, error) {
	return s.raw, s.rawErr
}

func (s *stubDerivatives) RawPositions(ctx context.Context, pool types.PoolID) ([]venues.MarginPosition, error) {
	return s.raw, s.rawErr
}

func (s *stubDerivatives) PendingOrders(ctx context.Context, pool types.PoolID) ([]venues.PendingOrder, error) {
	return s.orders, s.ordersErr
}

func (s *stubDerivatives) ClaimableFees(ctx context.Context, pool types.PoolID) ([]venues.ClaimableFee, error) {
	return s.fees, s.feesErr
}

type stubLiquidity struct {
	positions []venues.LiquidityPosition
	err       error
}

func (s *stubLiquidity) LiquidityPositions(ctx context.Context, pool types.PoolID) ([]venues.LiquidityPosition, error) {
	return s.positions, s.err
}

type fixture struct {
	store       *state.MemoryStore
	staking     *stubStaking
	derivatives *stubDerivatives
	liquidity   *stubLiquidity
	sweeper     *Sweeper
	pool        *types.Pool
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store: state.NewMemoryStore(),
		staking: &stubStaking{balance: venues.StakingBalance{
			Token:          "ustake",
			Staked:         sdkmath.ZeroInt(),
			PendingRewards: sdkmath.ZeroInt(),
		}},
		derivatives: &stubDerivatives{},
		liquidity:   &stubLiquidity{},
	}
	f.pool = &types.Pool{
		ID:                  1,
		Name:                "usdc-main",
		BaseAsset:           "uusdc",
		BaseDecimals:        6,
		ShareSupply:         sdkmath.ZeroInt(),
		VirtualSupply:       sdkmath.ZeroInt(),
		StoredPerShareValue: sdkmath.NewInt(1_000_000),
		StoredTotalValue:    sdkmath.ZeroInt(),
	}
	require.NoError(t, f.store.CreatePool(context.Background(), f.pool))

	var err error
	f.sweeper, err = NewSweeper(f.store, f.staking, f.derivatives, f.liquidity)
	require.NoError(t, err)
	return f
}

// seed activates assets and venues and sets holdings through the effects path.
func (f *fixture) seed(t *testing.T, holdings map[types.AssetID]int64, venueFlags ...types.VenueKind) {
	t.Helper()
	effects := types.NewOperationEffects(1)
	for asset, amount := range holdings {
		effects.HoldingDeltas = append(effects.HoldingDeltas, types.HoldingDelta{
			Asset: asset,
			Delta: sdkmath.NewInt(amount),
		})
		if asset != "uusdc" {
			effects.ActivateAssets = append(effects.ActivateAssets, asset)
		}
	}
	effects.ActivateVenues = venueFlags
	require.NoError(t, f.store.Apply(context.Background(), effects))
}

func TestPlanSweepEvictsZeroBalances(t *testing.T) {
	f := newFixture(t)
	f.seed(t, map[types.AssetID]int64{"uatom": 0, "uosmo": 500})

	plan, err := f.sweeper.PlanSweep(context.Background(), f.pool)
	require.NoError(t, err)
	require.Equal(t, []types.AssetID{"uatom"}, plan.EvictAssets)
}

func TestPlanSweepNeverEvictsBaseAsset(t *testing.T) {
	f := newFixture(t)

	// Force the base asset into the active set; even at zero balance it must
	// stay.
	effects := types.NewOperationEffects(1)
	effects.ActivateAssets = []types.AssetID{"uusdc"}
	require.NoError(t, f.store.Apply(context.Background(), effects))

	plan, err := f.sweeper.PlanSweep(context.Background(), f.pool)
	require.NoError(t, err)
	require.Empty(t, plan.EvictAssets)
}

func TestPlanSweepEmptyOnCleanPool(t *testing.T) {
	f := newFixture(t)

	plan, err := f.sweeper.PlanSweep(context.Background(), f.pool)
	require.NoError(t, err)
	require.True(t, plan.Empty())
}

func TestPlanSweepDeactivatesIdleVenues(t *testing.T) {
	f := newFixture(t)
	f.seed(t, nil, types.VenueStaking, types.VenueDerivatives, types.VenueLiquidity)

	plan, err := f.sweeper.PlanSweep(context.Background(), f.pool)
	require.NoError(t, err)
	require.ElementsMatch(t,
		[]types.VenueKind{types.VenueStaking, types.VenueDerivatives, types.VenueLiquidity},
		plan.DeactivateVenues)
}

func TestPlanSweepKeepsBusyVenues(t *testing.T) {
	f := newFixture(t)
	f.seed(t, nil, types.VenueStaking, types.VenueDerivatives, types.VenueLiquidity)

	f.staking.balance.PendingRewards = sdkmath.NewInt(1)
	f.derivatives.fees = []venues.ClaimableFee{{Token: "uusdc", Amount: sdkmath.NewInt(5)}}
	f.liquidity.positions = []venues.LiquidityPosition{{
		Token0:  "uusdc",
		Token1:  "uatom",
		Amount0: sdkmath.NewInt(1),
		Amount1: sdkmath.NewInt(1),
	}}

	plan, err := f.sweeper.PlanSweep(context.Background(), f.pool)
	require.NoError(t, err)
	require.Empty(t, plan.DeactivateVenues)
}

func TestPlanSweepReaderErrorKeepsFlag(t *testing.T) {
	f := newFixture(t)
	f.seed(t, nil, types.VenueStaking, types.VenueLiquidity)

	// One reader down must not clear its flag, and must not block the other
	// venue's cleanup either.
	f.staking.err = errors.New("registry unreachable")

	plan, err := f.sweeper.PlanSweep(context.Background(), f.pool)
	require.NoError(t, err)
	require.Equal(t, []types.VenueKind{types.VenueLiquidity}, plan.DeactivateVenues)
}

func TestPlanSweepDerivativesChecksAllThreeSources(t *testing.T) {
	f := newFixture(t)
	f.seed(t, nil, types.VenueDerivatives)

	// Positions and fees are empty but one pending order remains.
	f.derivatives.orders = []venues.PendingOrder{{
		Increase:           true,
		CollateralToken:    "uusdc",
		ReservedCollateral: sdkmath.NewInt(100),
		FeeToken:           "ugas",
		ExecutionFee:       sdkmath.NewInt(1),
	}}

	plan, err := f.sweeper.PlanSweep(context.Background(), f.pool)
	require.NoError(t, err)
	require.Empty(t, plan.DeactivateVenues)

	// An error on a later check also keeps the flag.
	f.derivatives.orders = nil
	f.derivatives.feesErr = errors.New("fee query failed")
	plan, err = f.sweeper.PlanSweep(context.Background(), f.pool)
	require.NoError(t, err)
	require.Empty(t, plan.DeactivateVenues)
}

func TestPlanSweepRejectsNilPool(t *testing.T) {
	f := newFixture(t)
	_, err := f.sweeper.PlanSweep(context.Background(), nil)
	require.ErrorIs(t, err, ErrInvalidPool)
}
