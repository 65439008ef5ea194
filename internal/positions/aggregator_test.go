package positions

import (
	"context"
	"errors"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

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
	positions    []venues.MarginPosition
	positionsErr error
	raw          []venues.MarginPosition
	rawErr       error
	orders       []venues.PendingOrder
	ordersErr    error
	fees         []venues.ClaimableFee
	feesErr      error
}

func (s *stubDerivatives) Positions(ctx context.Context, pool types.PoolID) ([]venues.MarginPosition, error) {
	return s.positions, s.positionsErr
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

func emptyStubs() (*stubStaking, *stubDerivatives, *stubLiquidity) {
	staking := &stubStaking{balance: venues.StakingBalance{
		Token:          "ustake",
		Staked:         sdkmath.ZeroInt(),
		PendingRewards: sdkmath.ZeroInt(),
	}}
	return staking, &stubDerivatives{}, &stubLiquidity{}
}

func newTestAggregator(t *testing.T, staking *stubStaking, derivatives *stubDerivatives, liquidity *stubLiquidity) *Aggregator {
	t.Helper()
	a, err := NewAggregator(staking, derivatives, liquidity)
	require.NoError(t, err)
	return a
}

func TestStakingCombinesStakedAndRewards(t *testing.T) {
	staking, derivatives, liquidity := emptyStubs()
	staking.balance = venues.StakingBalance{
		Token:          "ustake",
		Staked:         sdkmath.NewInt(5_000_000),
		PendingRewards: sdkmath.NewInt(123),
	}
	a := newTestAggregator(t, staking, derivatives, liquidity)

	entries, err := a.Collect(context.Background(), 1, []types.VenueKind{types.VenueStaking})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, types.AssetID("ustake"), entries[0].Token)
	require.Equal(t, "5000123", entries[0].Amount.String())
	require.Equal(t, types.VenueStaking, entries[0].Venue)
}

func TestStakingOmitsZeroBalance(t *testing.T) {
	staking, derivatives, liquidity := emptyStubs()
	a := newTestAggregator(t, staking, derivatives, liquidity)

	entries, err := a.Collect(context.Background(), 1, []types.VenueKind{types.VenueStaking})
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestMarginPositionNetsAcrossDecimals(t *testing.T) {
	staking, derivatives, liquidity := emptyStubs()
	// Collateral 2.0 tokens at the venue's 18-decimal representation of a
	// 6-decimal token; +0.5 pnl, -0.1 impact, 0.15 costs, all value-
	// denominated with a price of 1 per raw collateral unit.
	derivatives.positions = []venues.MarginPosition{{
		Market:          "BTC-PERP",
		CollateralToken: "uusdc",
		Collateral:      sdkmath.NewInt(2_000_000).Mul(types.ScaleFactor(12)),
		VenueDecimals:   18,
		TokenDecimals:   6,
		PnL:             sdkmath.NewInt(500_000),
		PriceImpact:     sdkmath.NewInt(-100_000),
		Costs:           sdkmath.NewInt(150_000),
		CollateralPrice: sdkmath.OneInt(),
	}}
	a := newTestAggregator(t, staking, derivatives, liquidity)

	entries, err := a.Collect(context.Background(), 1, []types.VenueKind{types.VenueDerivatives})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	// 2.0 + 0.5 - 0.1 - 0.15 = 2.25 tokens.
	require.Equal(t, "2250000", entries[0].Amount.String())
	require.Equal(t, types.AssetID("uusdc"), entries[0].Token)
}

func TestMarginPositionRoundingFavorsPool(t *testing.T) {
	staking, derivatives, liquidity := emptyStubs()
	// Price of 3 per raw unit: pnl 10/3 floors to 3, costs 10/3 ceils to 4.
	derivatives.positions = []venues.MarginPosition{{
		CollateralToken: "uusdc",
		Collateral:      sdkmath.NewInt(1_000),
		VenueDecimals:   6,
		TokenDecimals:   6,
		PnL:             sdkmath.NewInt(10),
		PriceImpact:     sdkmath.ZeroInt(),
		Costs:           sdkmath.NewInt(10),
		CollateralPrice: sdkmath.NewInt(3),
	}}
	a := newTestAggregator(t, staking, derivatives, liquidity)

	entries, err := a.Collect(context.Background(), 1, []types.VenueKind{types.VenueDerivatives})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "999", entries[0].Amount.String())
}

func TestMarginPositionOmittedWhenNetNonPositive(t *testing.T) {
	staking, derivatives, liquidity := emptyStubs()
	derivatives.positions = []venues.MarginPosition{{
		CollateralToken: "uusdc",
		Collateral:      sdkmath.NewInt(100),
		VenueDecimals:   6,
		TokenDecimals:   6,
		PnL:             sdkmath.NewInt(-100),
		PriceImpact:     sdkmath.ZeroInt(),
		Costs:           sdkmath.ZeroInt(),
		CollateralPrice: sdkmath.OneInt(),
	}}
	a := newTestAggregator(t, staking, derivatives, liquidity)

	entries, err := a.Collect(context.Background(), 1, []types.VenueKind{types.VenueDerivatives})
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestMarginZeroPriceDegradesToRawCollateral(t *testing.T) {
	staking, derivatives, liquidity := emptyStubs()
	derivatives.positions = []venues.MarginPosition{{
		CollateralToken: "uusdc",
		Collateral:      sdkmath.NewInt(777),
		VenueDecimals:   6,
		TokenDecimals:   6,
		PnL:             sdkmath.NewInt(1_000_000),
		PriceImpact:     sdkmath.ZeroInt(),
		Costs:           sdkmath.ZeroInt(),
		CollateralPrice: sdkmath.ZeroInt(),
	}}
	a := newTestAggregator(t, staking, derivatives, liquidity)

	entries, err := a.Collect(context.Background(), 1, []types.VenueKind{types.VenueDerivatives})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "777", entries[0].Amount.String())
}

func TestEnrichedListingFailureFallsBackToRaw(t *testing.T) {
	staking, derivatives, liquidity := emptyStubs()
	derivatives.positionsErr = errors.New("oracle stale")
	derivatives.raw = []venues.MarginPosition{{
		CollateralToken: "uusdc",
		Collateral:      sdkmath.NewInt(4_200),
		VenueDecimals:   6,
		TokenDecimals:   6,
	}}
	a := newTestAggregator(t, staking, derivatives, liquidity)

	entries, err := a.Collect(context.Background(), 1, []types.VenueKind{types.VenueDerivatives})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "4200", entries[0].Amount.String())
}

func TestPendingOrders(t *testing.T) {
	staking, derivatives, liquidity := emptyStubs()
	derivatives.orders = []venues.PendingOrder{
		{
			Increase:           true,
			CollateralToken:    "uusdc",
			ReservedCollateral: sdkmath.NewInt(1_000),
			FeeToken:           "ugas",
			ExecutionFee:       sdkmath.NewInt(25),
		},
		{
			// Decrease orders never count.
			Increase:           false,
			CollateralToken:    "uusdc",
			ReservedCollateral: sdkmath.NewInt(9_999_999),
			FeeToken:           "ugas",
			ExecutionFee:       sdkmath.NewInt(9_999_999),
		},
	}
	a := newTestAggregator(t, staking, derivatives, liquidity)

	entries, err := a.Collect(context.Background(), 1, []types.VenueKind{types.VenueDerivatives})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "1000", entries[0].Amount.String())
	require.Equal(t, types.AssetID("ugas"), entries[1].Token)
	require.Equal(t, "25", entries[1].Amount.String())
}

func TestClaimableFees(t *testing.T) {
	staking, derivatives, liquidity := emptyStubs()
	derivatives.fees = []venues.ClaimableFee{
		{Token: "uusdc", Amount: sdkmath.NewInt(11)},
		{Token: "uatom", Amount: sdkmath.ZeroInt()},
	}
	a := newTestAggregator(t, staking, derivatives, liquidity)

	entries, err := a.Collect(context.Background(), 1, []types.VenueKind{types.VenueDerivatives})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "11", entries[0].Amount.String())
}

func TestLiquidityAggregatesPerToken(t *testing.T) {
	staking, derivatives, liquidity := emptyStubs()
	liquidity.positions = []venues.LiquidityPosition{
		{
			Token0:    "uusdc",
			Token1:    "uatom",
			Amount0:   sdkmath.NewInt(100),
			Amount1:   sdkmath.NewInt(200),
			FeesOwed0: sdkmath.NewInt(1),
			FeesOwed1: sdkmath.NewInt(2),
		},
		{
			Token0:    "uusdc",
			Token1:    "uosmo",
			Amount0:   sdkmath.NewInt(50),
			Amount1:   sdkmath.ZeroInt(),
			FeesOwed0: sdkmath.ZeroInt(),
			FeesOwed1: sdkmath.ZeroInt(),
		},
	}
	a := newTestAggregator(t, staking, derivatives, liquidity)

	entries, err := a.Collect(context.Background(), 1, []types.VenueKind{types.VenueLiquidity})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, types.AssetID("uusdc"), entries[0].Token)
	require.Equal(t, "151", entries[0].Amount.String())
	require.Equal(t, types.AssetID("uatom"), entries[1].Token)
	require.Equal(t, "202", entries[1].Amount.String())
}

func TestFailingVenueDoesNotZeroOthers(t *testing.T) {
	staking, derivatives, liquidity := emptyStubs()
	staking.err = errors.New("registry unreachable")
	liquidity.positions = []venues.LiquidityPosition{{
		Token0:    "uusdc",
		Token1:    "uatom",
		Amount0:   sdkmath.NewInt(100),
		Amount1:   sdkmath.NewInt(200),
		FeesOwed0: sdkmath.ZeroInt(),
		FeesOwed1: sdkmath.ZeroInt(),
	}}
	a := newTestAggregator(t, staking, derivatives, liquidity)

	entries, err := a.Collect(context.Background(), 1, types.AllVenueKinds)
	require.NoError(t, err)
	require.Len(t, entries, 2)
}

func TestUnknownVenueKindIsAnError(t *testing.T) {
	staking, derivatives, liquidity := emptyStubs()
	a := newTestAggregator(t, staking, derivatives, liquidity)

	_, err := a.Collect(context.Background(), 1, []types.VenueKind{"LENDING"})
	require.ErrorIs(t, err, ErrUnknownVenue)
}
